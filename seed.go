package main

import (
	"encoding/json"
	"os"

	"go.uber.org/zap"

	"rentroll/models"
)

// seedUnits loads canonical units from a JSON fixture file. Existing
// rows are matched by external id and updated; everything else is
// inserted. Used via `./rentroll seed <file>` to bootstrap a portfolio.
func seedUnits(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var units []models.Unit
	if err := json.Unmarshal(raw, &units); err != nil {
		return err
	}
	created, updated := 0, 0
	for i := range units {
		u := &units[i]
		if u.ExternalID != "" {
			var existing models.Unit
			q := db.Where("external_id = ?", u.ExternalID)
			if u.AssetID != nil {
				q = q.Where("asset_id = ?", *u.AssetID)
			}
			if err := q.First(&existing).Error; err == nil {
				u.ID = existing.ID
				u.CreatedAt = existing.CreatedAt
				if err := db.Save(u).Error; err != nil {
					return err
				}
				updated++
				continue
			}
		}
		if err := db.Create(u).Error; err != nil {
			return err
		}
		created++
	}
	logger.Info("seeded canonical units",
		zap.String("file", path), zap.Int("created", created), zap.Int("updated", updated))
	return nil
}
