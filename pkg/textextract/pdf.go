package textextract

import (
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"rentroll/pkg/queue"
)

// ValidatePDF runs a relaxed pdfcpu validation pass. Corrupt, truncated
// or encrypted files come back as structural errors so the worker fails
// them without burning retries.
func ValidatePDF(path string) error {
	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed
	if err := api.ValidateFile(path, cfg); err != nil {
		return &queue.StructuralError{Msg: "unreadable pdf", Err: err}
	}
	return nil
}

// PageCount returns the page count of a local PDF.
func PageCount(path string) (int, error) {
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, &queue.StructuralError{Msg: "pdf page count", Err: err}
	}
	return n, nil
}
