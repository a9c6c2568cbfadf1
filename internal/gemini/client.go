// Package gemini adapts the Gemini generateContent API to the three AI
// features: receipt scanning, bank statement analysis and the assistant.
// Every response is decoded into a typed payload and validated before any
// of it reaches the domain.
package gemini

import (
	"context"
	"embed"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	gl "google.golang.org/api/generativelanguage/v1beta"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	DefaultModel   = "gemini-2.5-flash"
	DefaultTimeout = 60 * time.Second
)

//go:embed schemas/*.json
var schemaFS embed.FS

var (
	receiptConfig   = mustGenerationConfig("schemas/receipt.json")
	statementConfig = mustGenerationConfig("schemas/statement.json")
	assistantConfig = mustAssistantConfig("schemas/assistant.json")
)

// Generator performs one generateContent call against a fully qualified
// model name such as "models/gemini-2.5-flash".
type Generator interface {
	GenerateContent(ctx context.Context, model string, req *gl.GenerateContentRequest) (*gl.GenerateContentResponse, error)
}

type serviceGenerator struct {
	svc *gl.Service
}

func (g serviceGenerator) GenerateContent(ctx context.Context, model string, req *gl.GenerateContentRequest) (*gl.GenerateContentResponse, error) {
	return g.svc.Models.GenerateContent(model, req).Context(ctx).Do()
}

type Config struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

type Client struct {
	gen      Generator
	model    string
	timeout  time.Duration
	validate *validator.Validate
	now      func() time.Time
}

// New builds a client backed by the public Gemini endpoint.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrNotConfigured
	}
	svc, err := gl.NewService(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("create generativelanguage service: %w", err)
	}
	return NewWithGenerator(serviceGenerator{svc: svc}, cfg), nil
}

// NewWithGenerator builds a client on any Generator; tests pass a fake.
func NewWithGenerator(gen Generator, cfg Config) *Client {
	model := strings.TrimPrefix(strings.TrimSpace(cfg.Model), "models/")
	if model == "" {
		model = DefaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		gen:      gen,
		model:    model,
		timeout:  timeout,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      time.Now,
	}
}

func (c *Client) Model() string { return c.model }

// Document is an uploaded file.
type Document struct {
	Name        string
	ContentType string
	Data        []byte
}

func (c *Client) generate(ctx context.Context, op string, req *gl.GenerateContentRequest) (*gl.GenerateContentResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.gen.GenerateContent(ctx, "models/"+c.model, req)
	if err != nil {
		slog.ErrorContext(ctx, "Gemini call failed",
			"component", "gemini",
			"operation", op,
			"model", c.model,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err)
		return nil, err
	}
	slog.InfoContext(ctx, "Gemini call completed",
		"component", "gemini",
		"operation", op,
		"model", c.model,
		"duration_ms", time.Since(start).Milliseconds())
	return resp, nil
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *gl.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if p != nil {
			sb.WriteString(p.Text)
		}
	}
	return strings.TrimSpace(sb.String())
}

// decodeJSON unmarshals the model's JSON answer, tolerating a markdown
// code fence around it.
func decodeJSON(text string, dst any) error {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}
	return json.Unmarshal([]byte(text), dst)
}

func textPart(text string) *gl.Part {
	return &gl.Part{Text: text}
}

func inlinePart(mimeType string, data []byte) *gl.Part {
	return &gl.Part{InlineData: &gl.Blob{
		MimeType: mimeType,
		Data:     base64.StdEncoding.EncodeToString(data),
	}}
}

func userContent(parts ...*gl.Part) []*gl.Content {
	return []*gl.Content{{Role: "user", Parts: parts}}
}

// isUnsupportedInput reports whether the API rejected the request itself,
// which for uploads almost always means an unreadable document.
func isUnsupportedInput(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == 400 {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "no pages") || strings.Contains(msg, "INVALID_ARGUMENT") || strings.Contains(msg, "Proxy")
}

func mustGenerationConfig(path string) *gl.GenerationConfig {
	raw, err := schemaFS.ReadFile(path)
	if err != nil {
		panic(fmt.Sprintf("gemini: read %s: %v", path, err))
	}
	var cfg gl.GenerationConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		panic(fmt.Sprintf("gemini: decode %s: %v", path, err))
	}
	return &cfg
}

type toolConfig struct {
	GenerationConfig *gl.GenerationConfig `json:"generationConfig"`
	Tools            []*gl.Tool           `json:"tools"`
}

func mustAssistantConfig(path string) toolConfig {
	raw, err := schemaFS.ReadFile(path)
	if err != nil {
		panic(fmt.Sprintf("gemini: read %s: %v", path, err))
	}
	var cfg toolConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		panic(fmt.Sprintf("gemini: decode %s: %v", path, err))
	}
	return cfg
}
