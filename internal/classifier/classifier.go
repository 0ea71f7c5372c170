// Package classifier maps extracted form fields to standard fields by asking
// an LLM. It is an alternate recognizer consulted on request; any failure
// here sends the caller back to the keyword matcher.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	jsoniter "github.com/json-iterator/go"
	"github.com/kaptinlin/jsonrepair"
	"go.uber.org/zap"

	"github.com/formscout/formscout/api/schemas"
	"github.com/formscout/formscout/internal/config"
	"github.com/formscout/formscout/internal/llmclient"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrNoAssignments signals that the model answered but produced nothing
// usable. Callers fall back to the keyword matcher result.
var ErrNoAssignments = errors.New("classifier: model returned no usable assignments")

const (
	defaultRequestTimeout  = 45 * time.Second
	defaultMaxExcerptBytes = 16 * 1024
	defaultConfidence      = 0.8
)

// Classifier drives one LLM round per recognition pass.
type Classifier struct {
	client  llmclient.Client
	timeout time.Duration
	excerpt int
	logger  *zap.Logger
}

// New wires a Classifier over an LLM client. Zero config values fall back to
// defaults.
func New(client llmclient.Client, cfg config.ClassifierConfig, logger *zap.Logger) (*Classifier, error) {
	if client == nil {
		return nil, fmt.Errorf("classifier: llm client is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	excerpt := cfg.MaxExcerptBytes
	if excerpt <= 0 {
		excerpt = defaultMaxExcerptBytes
	}
	return &Classifier{
		client:  client,
		timeout: timeout,
		excerpt: excerpt,
		logger:  logger.Named("classifier"),
	}, nil
}

// fieldAssignment is the per-field verdict requested from the model.
type fieldAssignment struct {
	FieldIndex    int     `json:"fieldIndex"`
	StandardField string  `json:"standardField"`
	Confidence    float64 `json:"confidence"`
}

// Classify asks the model to assign a standard field to each descriptor.
// Invalid or "unknown" verdicts are dropped silently; an answer with zero
// surviving verdicts returns ErrNoAssignments.
func (c *Classifier) Classify(ctx context.Context, fields []schemas.FieldDescriptor, htmlExcerpt string) ([]schemas.FieldMapping, error) {
	if len(fields) == 0 {
		return nil, ErrNoAssignments
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := schemas.GenerationRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   c.buildUserPrompt(fields, htmlExcerpt),
		Options: schemas.GenerationOptions{
			Temperature:     0.1,
			ForceJSONFormat: true,
		},
	}

	raw, err := c.client.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("classifier: generation failed: %w", err)
	}

	assignments, err := parseAssignments(raw)
	if err != nil {
		c.logger.Warn("unparseable classifier response", zap.Error(err), zap.Int("responseLen", len(raw)))
		return nil, fmt.Errorf("classifier: %w", err)
	}

	mappings := make([]schemas.FieldMapping, 0, len(assignments))
	claimed := make(map[int]bool, len(assignments))
	for _, a := range assignments {
		if a.FieldIndex < 0 || a.FieldIndex >= len(fields) || claimed[a.FieldIndex] {
			continue
		}
		std, err := schemas.ParseStandardField(a.StandardField)
		if err != nil {
			// "unknown" is the model's way of declining a field.
			continue
		}
		confidence := a.Confidence
		if confidence <= 0 || confidence > 1 {
			confidence = defaultConfidence
		}
		claimed[a.FieldIndex] = true
		mappings = append(mappings, schemas.FieldMapping{
			Locator:       fields[a.FieldIndex].Locator,
			StandardField: std,
			Confidence:    confidence,
			Method:        schemas.MethodAI,
		})
	}

	if len(mappings) == 0 {
		return nil, ErrNoAssignments
	}

	c.logger.Debug("classifier assigned fields",
		zap.Int("assigned", len(mappings)), zap.Int("candidates", len(fields)))
	return mappings, nil
}

const systemPrompt = `You label web form fields for a site submission workflow.
For each numbered field, answer with the single best matching standard field
name, or "unknown" when none applies. Respond with ONLY a JSON array of
objects shaped {"fieldIndex": <number>, "standardField": "<name>", "confidence": <0..1>}.
Never invent field names outside the allowed list.`

func (c *Classifier) buildUserPrompt(fields []schemas.FieldDescriptor, htmlExcerpt string) string {
	var b strings.Builder

	b.WriteString("Allowed standard fields:\n")
	for _, f := range schemas.AllStandardFields() {
		b.WriteString("- ")
		b.WriteString(string(f))
		b.WriteByte('\n')
	}

	b.WriteString("\nFields:\n")
	for i, f := range fields {
		fmt.Fprintf(&b, "%d. kind=%s", i, f.ControlKind)
		writeAttr(&b, "name", f.Name)
		writeAttr(&b, "id", f.DomID)
		writeAttr(&b, "label", f.Label)
		writeAttr(&b, "placeholder", f.Placeholder)
		writeAttr(&b, "aria-label", f.AriaLabel)
		if len(f.Options) > 0 {
			fmt.Fprintf(&b, " options=%d", len(f.Options))
		}
		b.WriteByte('\n')
	}

	if excerpt := boundExcerpt(htmlExcerpt, c.excerpt); excerpt != "" {
		b.WriteString("\nPage excerpt:\n")
		b.WriteString(excerpt)
		b.WriteByte('\n')
	}

	return b.String()
}

func writeAttr(b *strings.Builder, key, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(b, " %s=%q", key, value)
}

// boundExcerpt truncates on a rune boundary so the prompt never carries a
// split UTF-8 sequence.
func boundExcerpt(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := s[:max]
	for len(cut) > 0 && !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}
	return cut
}

// parseAssignments pulls the first balanced JSON array out of the model's
// answer, repairing near-JSON when straight decoding fails.
func parseAssignments(raw string) ([]fieldAssignment, error) {
	candidate := extractJSONArray(raw)
	if candidate == "" {
		return nil, errors.New("no JSON array in response")
	}

	var assignments []fieldAssignment
	if err := json.Unmarshal([]byte(candidate), &assignments); err == nil {
		return assignments, nil
	}

	repaired, err := jsonrepair.JSONRepair(candidate)
	if err != nil {
		return nil, fmt.Errorf("malformed JSON array: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), &assignments); err != nil {
		return nil, fmt.Errorf("repaired JSON still undecodable: %w", err)
	}
	return assignments, nil
}

// extractJSONArray returns the first balanced top-level array in s, ignoring
// brackets inside string literals.
func extractJSONArray(s string) string {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			if start >= 0 {
				inString = true
			}
		case '[':
			if start < 0 {
				start = i
			}
			depth++
		case ']':
			if start >= 0 {
				depth--
				if depth == 0 {
					return s[start : i+1]
				}
			}
		}
	}
	return ""
}
