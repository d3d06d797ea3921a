package anomaly

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"rentroll/pkg/queue"
)

// Registry looks up one external data source by address.
type Registry interface {
	Name() string
	Lookup(ctx context.Context, address, zipcode string) (Snapshot, error)
}

// HTTPRegistry reads a registry over its keyed-lookup HTTP API. A 404
// means the registry has no record for the address, which is a valid
// answer, not an error.
type HTTPRegistry struct {
	RegistryName string
	BaseURL      string
	HTTP         *http.Client
	Log          *zap.Logger
}

func NewHTTPRegistry(name, baseURL string, timeout time.Duration, log *zap.Logger) *HTTPRegistry {
	if log == nil {
		log = zap.NewNop()
	}
	return &HTTPRegistry{
		RegistryName: name,
		BaseURL:      strings.TrimRight(baseURL, "/"),
		HTTP:         &http.Client{Timeout: timeout},
		Log:          log,
	}
}

func (r *HTTPRegistry) Name() string { return r.RegistryName }

func (r *HTTPRegistry) Lookup(ctx context.Context, address, zipcode string) (Snapshot, error) {
	snap := Snapshot{Source: r.RegistryName}
	q := url.Values{}
	q.Set("address", address)
	if zipcode != "" {
		q.Set("zipcode", zipcode)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.BaseURL+"/lookup?"+q.Encode(), nil)
	if err != nil {
		return snap, err
	}
	resp, err := r.HTTP.Do(req)
	if err != nil {
		return snap, &queue.TransientError{Msg: r.RegistryName + " unreachable", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return snap, nil
	}
	if resp.StatusCode/100 != 2 {
		return snap, &queue.TransientError{Msg: fmt.Sprintf("%s status %d", r.RegistryName, resp.StatusCode)}
	}
	body, _ := io.ReadAll(resp.Body)
	var payload struct {
		PropertyValue float64 `json:"property_value"`
		BuildingYear  int     `json:"building_year"`
		AreaSqm       float64 `json:"area_sqm"`
		AnnualTax     float64 `json:"annual_tax"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return snap, &queue.TransientError{Msg: r.RegistryName + " response decode", Err: err}
	}
	snap.Found = true
	snap.PropertyValue = payload.PropertyValue
	snap.BuildingYear = payload.BuildingYear
	snap.AreaSqm = payload.AreaSqm
	snap.AnnualTax = payload.AnnualTax
	return snap, nil
}
