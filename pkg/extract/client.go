package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.uber.org/zap"

	"rentroll/pkg/queue"
)

// Client talks to an OpenAI-compatible chat-completions endpoint and
// asks for structured unit rows. The response is validated against a
// JSON schema before anything downstream sees it.
type Client struct {
	BaseURL string
	APIKey  string
	Model   string
	HTTP    *http.Client
	Log     *zap.Logger

	schema *jsonschema.Schema
}

func NewClient(baseURL, apiKey, model string, timeout time.Duration, log *zap.Logger) (*Client, error) {
	if log == nil {
		log = zap.NewNop()
	}
	raw, err := json.Marshal(buildUnitSchema())
	if err != nil {
		return nil, err
	}
	sch, err := jsonschema.CompileString("units.schema.json", string(raw))
	if err != nil {
		return nil, fmt.Errorf("compile unit schema: %w", err)
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Model:   model,
		HTTP:    &http.Client{Timeout: timeout},
		Log:     log,
		schema:  sch,
	}, nil
}

// buildUnitSchema returns the draft 2020-12 schema the backend output
// must satisfy. Field types are unions because the normalizer, not the
// schema, decides how to coerce loose values.
func buildUnitSchema() map[string]any {
	loose := map[string]any{"type": []string{"string", "number", "null"}}
	unitProps := map[string]any{
		"unit_id":      loose,
		"address":      loose,
		"zipcode":      loose,
		"floor":        loose,
		"door":         loose,
		"size_sqm":     loose,
		"rent_current": loose,
		"tenant_name":  loose,
		"status":       loose,
		"lease_start":  loose,
	}
	propertyProps := map[string]any{
		"property_value": loose,
		"building_year":  loose,
		"area_sqm":       loose,
		"annual_tax":     loose,
	}
	return map[string]any{
		"type":     "object",
		"required": []string{"units"},
		"properties": map[string]any{
			"units": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":       "object",
					"properties": unitProps,
				},
			},
			"property": map[string]any{
				"type":       []string{"object", "null"},
				"properties": propertyProps,
			},
		},
	}
}

const systemPrompt = `You extract unit-level records from rent-roll and investment-memo text.
Reply with a single JSON object: {"units": [...], "property": {...}}.
Each unit has: unit_id, address, zipcode, floor, door, size_sqm, rent_current, tenant_name, status, lease_start.
The optional property object has: property_value, building_year, area_sqm, annual_tax.
Leave out or null any field you cannot find. Never invent values.`

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	ResponseFormat *respFormat   `json:"response_format,omitempty"`
	Temperature    float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type respFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Extract sends the selected text to the backend and decodes the unit
// rows. Backend and transport failures are transient; a response that
// fails schema validation is also transient (the model can do better on
// a retry).
func (c *Client) Extract(ctx context.Context, text string) (*Result, error) {
	reqID := uuid.New().String()
	payload := chatRequest{
		Model: c.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: text},
		},
		ResponseFormat: &respFormat{Type: "json_object"},
	}
	bs, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/chat/completions", bytes.NewReader(bs))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	start := time.Now()
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, &queue.TransientError{Msg: "extraction backend unreachable", Err: err}
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	c.Log.Info("extraction backend response",
		zap.String("req_id", reqID),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)),
		zap.Int64("elapsed_ms", time.Since(start).Milliseconds()))
	if resp.StatusCode/100 != 2 {
		return nil, &queue.TransientError{Msg: fmt.Sprintf("extraction backend status %d", resp.StatusCode)}
	}

	var cr chatResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return nil, &queue.TransientError{Msg: "extraction response decode", Err: err}
	}
	if len(cr.Choices) == 0 {
		return nil, &queue.TransientError{Msg: "extraction response has no choices"}
	}
	return DecodeResult([]byte(cr.Choices[0].Message.Content), c.schema)
}

// DecodeResult leniently decodes and validates the model output. Models
// wrap JSON in code fences or prose often enough that stripping is the
// normal path, not the exception, and field names drift between runs,
// so known synonyms are renamed before decoding.
func DecodeResult(raw []byte, schema *jsonschema.Schema) (*Result, error) {
	cleaned := stripFences(raw)

	var v any
	if err := json.Unmarshal(cleaned, &v); err != nil {
		return nil, &queue.TransientError{Msg: "extraction output is not JSON", Err: err}
	}
	v = renameSynonyms(v)
	if schema != nil {
		if err := schema.Validate(v); err != nil {
			return nil, &queue.TransientError{Msg: "extraction output failed schema validation", Err: err}
		}
	}
	normalized, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var res Result
	if err := json.Unmarshal(normalized, &res); err != nil {
		return nil, &queue.TransientError{Msg: "extraction output decode", Err: err}
	}
	return &res, nil
}

// unitKeySynonyms maps the field names the backend tends to improvise
// onto the canonical ones.
var unitKeySynonyms = map[string]string{
	"id":               "unit_id",
	"unit":             "unit_id",
	"size":             "size_sqm",
	"area":             "size_sqm",
	"rent":             "rent_current",
	"monthly_rent":     "rent_current",
	"tenant":           "tenant_name",
	"postal_code":      "zipcode",
	"zip":              "zipcode",
	"lease_start_date": "lease_start",
}

// renameSynonyms rewrites improvised unit field names in place. Only the
// units array is touched; a canonical key always wins over a synonym.
func renameSynonyms(v any) any {
	root, ok := v.(map[string]any)
	if !ok {
		return v
	}
	units, ok := root["units"].([]any)
	if !ok {
		return v
	}
	for _, u := range units {
		row, ok := u.(map[string]any)
		if !ok {
			continue
		}
		for from, to := range unitKeySynonyms {
			val, has := row[from]
			if !has {
				continue
			}
			if _, canonical := row[to]; !canonical {
				row[to] = val
			}
			delete(row, from)
		}
	}
	return v
}

// stripFences removes markdown code fences and any prose around the
// outermost JSON object.
func stripFences(raw []byte) []byte {
	s := strings.TrimSpace(string(raw))
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
	}
	if i := strings.Index(s, "{"); i > 0 {
		if j := strings.LastIndex(s, "}"); j > i {
			s = s[i : j+1]
		}
	}
	return []byte(strings.TrimSpace(s))
}
