package textextract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"rentroll/pkg/queue"
)

// Client calls the external text-extraction service with the raw file
// bytes and returns text plus page metadata.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Log     *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
		Log:     log,
	}
}

// Extract validates the PDF locally, ships it to the text service and
// normalizes the response. Empty extracted text is a structural failure:
// retrying the same bytes cannot produce different text.
func (c *Client) Extract(ctx context.Context, path string) (*Extraction, error) {
	if err := ValidatePDF(path); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &queue.StructuralError{Msg: "read file", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/extract", bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/pdf")

	start := time.Now()
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, &queue.TransientError{Msg: "text service unreachable", Err: err}
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	c.Log.Info("text service response",
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)),
		zap.Int64("elapsed_ms", time.Since(start).Milliseconds()))
	if resp.StatusCode/100 != 2 {
		return nil, &queue.TransientError{Msg: fmt.Sprintf("text service status %d", resp.StatusCode)}
	}

	var ex Extraction
	if err := json.Unmarshal(body, &ex); err != nil {
		return nil, &queue.TransientError{Msg: "text service response decode", Err: err}
	}
	if strings.TrimSpace(ex.Text) == "" {
		return nil, &queue.StructuralError{Msg: "document produced no text"}
	}
	if len(ex.Pages) == 0 {
		ex.Pages = SplitPages(ex.Text)
	}
	if ex.PageCount == 0 {
		// services that return bare text omit the count; read it locally
		if n, err := PageCount(path); err == nil {
			ex.PageCount = n
		} else {
			ex.PageCount = len(ex.Pages)
		}
	}
	for _, p := range ex.Pages {
		if p.TableLike {
			ex.HasTableIndicators = true
			break
		}
	}
	return &ex, nil
}

// SplitPages derives page records from bare text when the service sends
// none, using form feeds as page breaks.
func SplitPages(text string) []Page {
	parts := strings.Split(text, "\f")
	pages := make([]Page, 0, len(parts))
	for i, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		pages = append(pages, Page{
			Number:      i + 1,
			Text:        part,
			TableLike:   LooksTabular(part),
			KeywordHits: CountKeywords(part),
		})
	}
	return pages
}
