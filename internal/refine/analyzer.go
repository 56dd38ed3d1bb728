package refine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"promptbuilder/internal/catalog"
	llmclient "promptbuilder/internal/llmClient"
	"promptbuilder/internal/taxonomy"
)

var (
	ErrNoImage          = errors.New("analyze: image is empty")
	ErrUnsupportedImage = errors.New("analyze: not an image")
	ErrInvalidAnalysis  = errors.New("analyze: model output does not match schema")
)

// AnalyzedItem is the model's suggestion for one category.
type AnalyzedItem struct {
	Label      string   `json:"label"`
	PromptText string   `json:"prompt_text"`
	Tags       []string `json:"tags"`
}

// Draft turns the suggestion into an unsaved taxonomy item.
func (a AnalyzedItem) Draft(category string) taxonomy.Item {
	tags := []string{}
	for _, t := range a.Tags {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return taxonomy.Item{
		Category:   category,
		Label:      strings.TrimSpace(a.Label),
		PromptText: strings.TrimSpace(a.PromptText),
		Tags:       tags,
	}
}

type AnalysisResult struct {
	Items     map[string]AnalyzedItem `json:"items"`
	ModelUsed string                  `json:"model_used"`
	Advisory  string                  `json:"advisory,omitempty"`
	RequestID string                  `json:"request_id"`
}

// AnalysisSchema describes one object per catalog category.
func AnalysisSchema(cat *catalog.Catalog) map[string]any {
	props := map[string]any{}
	for _, c := range cat.Categories() {
		desc := c.AnalysisHint
		if desc == "" {
			desc = fmt.Sprintf("Analysis for the %s category.", c.Label)
		}
		props[c.ID] = map[string]any{
			"type":        "object",
			"description": desc,
			"properties": map[string]any{
				"label": map[string]any{
					"type":        "string",
					"description": "A short, descriptive title (2-4 words).",
				},
				"prompt_text": map[string]any{
					"type":        "string",
					"description": "A detailed, evocative description suitable for an AI image generator prompt.",
				},
				"tags": map[string]any{
					"type":        "array",
					"description": "An array of 3-4 relevant, single-word, lowercase tags.",
					"items":       map[string]any{"type": "string"},
				},
			},
			"required": []any{"label", "prompt_text", "tags"},
		}
	}
	return map[string]any{"type": "object", "properties": props}
}

// AnalysisPrompt is the instruction sent with the image.
func AnalysisPrompt(cat *catalog.Catalog) string {
	ids := make([]string, 0, cat.Len())
	for _, id := range cat.IDs() {
		ids = append(ids, "`"+id+"`")
	}
	return "You are an expert fashion photographer and stylist with a deep understanding of visual language. " +
		"Analyze the provided image. For EACH of the following categories, provide a single, best-fit description.\n\n" +
		"Categories: " + strings.Join(ids, ", ") + ".\n\n" +
		"Your output must be a valid JSON object matching the provided schema. For each category key, provide an object with three properties: \n" +
		"1. 'label': a short, descriptive title.\n" +
		"2. 'prompt_text': a detailed, evocative description.\n" +
		"3. 'tags': an array of 3-4 relevant, single-word, lowercase string tags.\n\n" +
		"If the image depicts a broader scene or environment, clearly explain the scene setup. Keep all lighting details ONLY " +
		"in the lighting category (direction, quality, color, intensity, and how they affect subjects) and do not mix " +
		"lighting into the scene description."
}

// Analyzer extracts per-category suggestions from an image. Like Refiner it
// rejects a call while another is running.
type Analyzer struct {
	cat      *catalog.Catalog
	primary  llmclient.Client
	fallback llmclient.Client
	s        settings
	schema   map[string]any
	compiled *jsonschema.Schema
	prompt   string
	inflight atomic.Bool
}

// NewAnalyzer compiles the catalog schema. A nil primary disables analysis.
func NewAnalyzer(cat *catalog.Catalog, primary, fallback llmclient.Client, opts ...Option) (*Analyzer, error) {
	doc := AnalysisSchema(cat)
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode analysis schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("analysis.json", bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("load analysis schema: %w", err)
	}
	compiled, err := compiler.Compile("analysis.json")
	if err != nil {
		return nil, fmt.Errorf("compile analysis schema: %w", err)
	}
	return &Analyzer{
		cat:      cat,
		primary:  primary,
		fallback: fallback,
		s:        newSettings(opts),
		schema:   doc,
		compiled: compiled,
		prompt:   AnalysisPrompt(cat),
	}, nil
}

func (a *Analyzer) Enabled() bool { return a != nil && a.primary != nil }

// Validate checks raw model output against the schema and decodes it,
// dropping keys that are not catalog categories.
func (a *Analyzer) Validate(raw json.RawMessage) (map[string]AnalyzedItem, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAnalysis, err)
	}
	if err := a.compiled.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAnalysis, err)
	}
	var items map[string]AnalyzedItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAnalysis, err)
	}
	out := make(map[string]AnalyzedItem, len(items))
	for id, it := range items {
		if _, ok := a.cat.Lookup(id); ok {
			out[id] = it
		}
	}
	return out, nil
}

func (a *Analyzer) Analyze(ctx context.Context, image []byte, mimeType string) (AnalysisResult, error) {
	if !a.Enabled() {
		return AnalysisResult{}, ErrDisabled
	}
	if len(image) == 0 {
		return AnalysisResult{}, ErrNoImage
	}
	if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(mimeType)), "image/") {
		return AnalysisResult{}, fmt.Errorf("%w: %q", ErrUnsupportedImage, mimeType)
	}
	if !a.inflight.CompareAndSwap(false, true) {
		a.s.rec.ObserveOutcome("analyze", OutcomeRejected)
		return AnalysisResult{}, ErrInFlight
	}
	defer a.inflight.Store(false)

	req := llmclient.JSONRequest{Prompt: a.prompt, Image: image, ImageMIMEType: mimeType, Schema: a.schema}
	out, err := withFallback(ctx, a.s, "analyze", a.primary, a.fallback,
		func(ctx context.Context, c llmclient.Client) (map[string]AnalyzedItem, error) {
			raw, err := c.GenerateJSON(ctx, req)
			if err != nil {
				return nil, err
			}
			return a.Validate(raw)
		})
	if err != nil {
		return AnalysisResult{}, fmt.Errorf("analyze: %w", err)
	}
	return AnalysisResult{Items: out.value, ModelUsed: out.model, Advisory: out.advisory, RequestID: out.requestID}, nil
}
