// Package suggest asks a text-generation service for task suggestions for
// a project and validates the structured answer.
package suggest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/sadopc/prodhub/internal/metrics"
	"github.com/sadopc/prodhub/internal/model"
	"github.com/sadopc/prodhub/internal/schedule"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel   = "gemini-2.0-flash"
	defaultTimeout = 60 * time.Second
)

var (
	ErrNoSuggestions = errors.New("no tasks were generated")
	ErrNoAPIKey      = errors.New("text generation api key is not configured")
	ErrInvalidOutput = errors.New("generated output does not match schema")
)

// Suggestion is one generated task.
type Suggestion struct {
	Title    string         `json:"title"`
	Priority model.Priority `json:"priority"`
}

type Options struct {
	BaseURL    string
	APIKey     string
	Model      string
	HTTPClient *http.Client
	Logger     *zerolog.Logger
}

type Service struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	schema     *jsonschema.Schema
	log        zerolog.Logger
}

// outputSchema is the JSON schema the generated text must satisfy.
const outputSchema = `{
	"type": "object",
	"required": ["tasks"],
	"properties": {
		"tasks": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["title", "priority"],
				"properties": {
					"title": {"type": "string", "minLength": 1},
					"priority": {"enum": ["High", "Medium", "Low"]}
				}
			}
		}
	}
}`

// responseSchema is the same contract in the generation API's schema
// dialect.
var responseSchema = map[string]any{
	"type": "OBJECT",
	"properties": map[string]any{
		"tasks": map[string]any{
			"type": "ARRAY",
			"items": map[string]any{
				"type": "OBJECT",
				"properties": map[string]any{
					"title":    map[string]any{"type": "STRING"},
					"priority": map[string]any{"type": "STRING", "enum": []string{"High", "Medium", "Low"}},
				},
				"required": []string{"title", "priority"},
			},
		},
	},
	"required": []string{"tasks"},
}

func compileSchema() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(outputSchema))
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("suggestions.json", doc); err != nil {
		return nil, err
	}
	return c.Compile("suggestions.json")
}

func New(opts Options) (*Service, error) {
	schema, err := compileSchema()
	if err != nil {
		return nil, fmt.Errorf("compile output schema: %w", err)
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	modelName := strings.TrimSpace(opts.Model)
	if modelName == "" {
		modelName = DefaultModel
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}
	return &Service{
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(opts.APIKey),
		model:      modelName,
		httpClient: httpClient,
		schema:     schema,
		log:        log.With().Str("component", "suggest").Logger(),
	}, nil
}

type genRequest struct {
	Contents         []genContent     `json:"contents"`
	GenerationConfig genConfiguration `json:"generationConfig"`
}

type genContent struct {
	Role  string    `json:"role,omitempty"`
	Parts []genPart `json:"parts"`
}

type genPart struct {
	Text string `json:"text"`
}

type genConfiguration struct {
	ResponseMimeType string         `json:"responseMimeType"`
	ResponseSchema   map[string]any `json:"responseSchema"`
}

type genResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

// Generate returns suggested tasks for project. instruction is the user's
// optional main instruction; events are upcoming calendar events, of which
// only those mentioning the project are used as context.
func (s *Service) Generate(ctx context.Context, project model.Project, instruction string, events []schedule.Event) ([]Suggestion, error) {
	out, err := s.generate(ctx, project, instruction, events)
	metrics.SuggestRequests.WithLabelValues(metrics.Status(err)).Inc()
	if err != nil {
		s.log.Warn().Err(err).Str("project", project.ID).Msg("task suggestion failed")
		return nil, err
	}
	return out, nil
}

func (s *Service) generate(ctx context.Context, project model.Project, instruction string, events []schedule.Event) ([]Suggestion, error) {
	if s.apiKey == "" {
		return nil, ErrNoAPIKey
	}
	relevant, err := RelevantEvents(project, events)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(genRequest{
		Contents: []genContent{{Role: "user", Parts: []genPart{{Text: BuildPrompt(project, instruction, relevant)}}}},
		GenerationConfig: genConfiguration{
			ResponseMimeType: "application/json",
			ResponseSchema:   responseSchema,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", s.baseURL, url.PathEscape(s.model), url.QueryEscape(s.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("text generation request: %w", err)
	}
	payload, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, err
	}

	var gen genResponse
	if err := json.Unmarshal(payload, &gen); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("text generation failed with status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("parse text generation response: %w", err)
	}
	if gen.Error != nil {
		return nil, fmt.Errorf("text generation error %d: %s", gen.Error.Code, gen.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("text generation failed with status %d", resp.StatusCode)
	}
	if len(gen.Candidates) == 0 || len(gen.Candidates[0].Content.Parts) == 0 || strings.TrimSpace(gen.Candidates[0].Content.Parts[0].Text) == "" {
		return nil, ErrNoSuggestions
	}
	return s.Parse(gen.Candidates[0].Content.Parts[0].Text)
}

// Parse validates generated text against the output schema and returns the
// suggestions it holds.
func (s *Service) Parse(text string) ([]Suggestion, error) {
	inst, err := jsonschema.UnmarshalJSON(strings.NewReader(text))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}
	if err := s.schema.Validate(inst); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}

	var out struct {
		Tasks []Suggestion `json:"tasks"`
	}
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}
	var suggestions []Suggestion
	for _, t := range out.Tasks {
		t.Title = strings.TrimSpace(t.Title)
		if t.Title == "" {
			continue
		}
		suggestions = append(suggestions, t)
	}
	if len(suggestions) == 0 {
		return nil, ErrNoSuggestions
	}
	return suggestions, nil
}
