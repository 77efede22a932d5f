package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-triage/internal/domain"
)

const (
	defaultCategory       = "general"
	defaultResolutionTime = "2-3 business days"
	defaultComplexity     = 5
	fallbackSkill         = "general-support"
)

// ClassificationParseError means the completion could not be turned into a classification.
type ClassificationParseError struct {
	Raw        string
	Violations []string
	Err        error
}

func (e *ClassificationParseError) Error() string {
	if len(e.Violations) > 0 {
		return fmt.Sprintf("AI response failed schema validation: %s", strings.Join(e.Violations, "; "))
	}
	return fmt.Sprintf("AI response was not valid JSON after extraction: %v", e.Err)
}

func (e *ClassificationParseError) Unwrap() error {
	return e.Err
}

// Classifier turns ticket text into a ClassificationResult using a Generator.
type Classifier struct {
	generator Generator
	schema    *jsonschema.Schema
	logger    *zap.Logger
}

// NewClassifier compiles the response schema and wraps generator.
func NewClassifier(generator Generator, logger *zap.Logger) (*Classifier, error) {
	sch, err := compileClassificationSchema()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{generator: generator, schema: sch, logger: logger}, nil
}

// Classify never fails: transport and parse errors yield Fallback(description).
func (c *Classifier) Classify(ctx context.Context, title, description string) domain.ClassificationResult {
	text, err := c.generator.Generate(ctx, buildPrompt(title, description))
	if err != nil {
		c.logger.Warn("AI classification unavailable, using fallback", zap.Error(err))
		return Fallback(description)
	}

	result, err := c.Parse(text)
	if err != nil {
		c.logger.Warn("AI response unusable, using fallback", zap.Error(err))
		return Fallback(description)
	}
	if result.EnhancedDescription == "" {
		result.EnhancedDescription = fallbackDescription(description)
	}

	c.logger.Info("ticket classified",
		zap.String("priority", string(result.Priority)),
		zap.String("category", result.Category),
		zap.Strings("skills", result.SuggestedSkills),
		zap.Int("complexity", result.ComplexityScore),
		zap.String("sentiment", result.Sentiment),
		zap.String("root_cause_hypothesis", result.RootCauseHypothesis),
	)
	return result
}

// Parse extracts, validates and repairs a classification from a raw completion.
// Only text that is not a JSON object is an error; missing, null or mistyped fields
// fall back to their defaults.
func (c *Classifier) Parse(text string) (domain.ClassificationResult, error) {
	raw := extractJSON(text)

	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(raw))
	if err != nil {
		return domain.ClassificationResult{}, &ClassificationParseError{Raw: raw, Err: err}
	}
	var dropped []string
	if err := c.schema.Validate(doc); err != nil {
		props, root := invalidProperties(err)
		if root {
			return domain.ClassificationResult{}, &ClassificationParseError{Raw: raw, Violations: violations(err), Err: err}
		}
		dropped = props
	}

	fields, ok := doc.(map[string]any)
	if !ok {
		return domain.ClassificationResult{}, &ClassificationParseError{Raw: raw, Err: fmt.Errorf("expected object, got %T", doc)}
	}
	for _, name := range dropped {
		delete(fields, name)
	}
	if len(dropped) > 0 {
		c.logger.Warn("AI response fields of the wrong type ignored", zap.Strings("fields", dropped))
	}
	return repair(fields), nil
}

// Fallback is the classification used whenever the AI result is unusable.
func Fallback(description string) domain.ClassificationResult {
	return domain.ClassificationResult{
		EnhancedDescription:     fallbackDescription(description),
		SuggestedSkills:         []string{fallbackSkill},
		Priority:                domain.TicketPriorityMedium,
		Category:                defaultCategory,
		ComplexityScore:         defaultComplexity,
		EstimatedResolutionTime: defaultResolutionTime,
		SubCategory:             "General",
		Sentiment:               "Neutral",
		Keywords:                []string{},
		AffectedSystems:         []string{"Unknown"},
		RootCauseHypothesis:     "Further investigation required.",
		RecommendedAction:       "Analyze provided description.",
	}
}

func fallbackDescription(description string) string {
	return "Technical analysis needed for: " + description
}

func repair(fields map[string]any) domain.ClassificationResult {
	result := domain.ClassificationResult{
		EnhancedDescription:     strings.TrimSpace(stringField(fields, "enhancedDescription")),
		SuggestedSkills:         normalizeSkills(fields["suggestedSkills"]),
		Priority:                normalizePriority(stringField(fields, "priority")),
		Category:                strings.TrimSpace(stringField(fields, "category")),
		ComplexityScore:         normalizeComplexity(fields["complexityScore"]),
		EstimatedResolutionTime: strings.TrimSpace(stringField(fields, "estimatedResolutionTime")),
		SubCategory:             stringField(fields, "subCategory"),
		Sentiment:               stringField(fields, "sentiment"),
		Keywords:                stringList(fields["keywords"]),
		AffectedSystems:         stringList(fields["affectedSystems"]),
		RootCauseHypothesis:     stringField(fields, "rootCauseHypothesis"),
		RecommendedAction:       stringField(fields, "recommendedAction"),
	}
	if result.Category == "" {
		result.Category = defaultCategory
	}
	if result.EstimatedResolutionTime == "" {
		result.EstimatedResolutionTime = defaultResolutionTime
	}
	return result
}

func normalizePriority(value string) domain.TicketPriority {
	p := domain.TicketPriority(strings.ToLower(strings.TrimSpace(value)))
	if p == "urgent" {
		return domain.TicketPriorityCritical
	}
	if p.Valid() {
		return p
	}
	return domain.TicketPriorityMedium
}

func normalizeComplexity(value any) int {
	var score float64
	switch v := value.(type) {
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return defaultComplexity
		}
		score = f
	case float64:
		score = v
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return defaultComplexity
		}
		score = f
	default:
		return defaultComplexity
	}
	if math.IsNaN(score) {
		return defaultComplexity
	}
	return int(math.Max(1, math.Min(10, math.Round(score))))
}

func normalizeSkills(value any) []string {
	var candidates []string
	switch v := value.(type) {
	case string:
		candidates = strings.Split(v, ",")
	default:
		candidates = stringList(v)
	}

	seen := make(map[string]struct{}, len(candidates))
	skills := make([]string, 0, len(candidates))
	for _, skill := range candidates {
		skill = strings.TrimSpace(skill)
		if skill == "" {
			continue
		}
		key := strings.ToLower(skill)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		skills = append(skills, skill)
	}
	return skills
}

func stringField(fields map[string]any, key string) string {
	s, _ := fields[key].(string)
	return s
}

func stringList(value any) []string {
	items, ok := value.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func buildPrompt(title, description string) string {
	return fmt.Sprintf(`You are an expert support ticket analysis AI. Analyze the provided support ticket thoroughly.
Return ONLY valid JSON. Do not include any commentary or extra text outside the JSON block.

Support Ticket:
Title: %s
Description: %s

JSON Schema:
{
  "enhancedDescription": "A concise, professionally rephrased and slightly expanded version of the description.",
  "suggestedSkills": ["Specific technical skills required to resolve this ticket, e.g. 'Authentication', 'Database_SQL', 'Frontend_React'."],
  "priority": "One of 'critical', 'high', 'medium', 'low'.",
  "category": "A broad category such as 'Software_Bug', 'Network_Connectivity', 'Account_Management', 'Feature_Request'.",
  "subCategory": "A more granular sub-category, or 'General'.",
  "complexityScore": "An integer from 1 (trivial) to 10 (multi-system, deep investigation).",
  "estimatedResolutionTime": "e.g. '1-2 hours', '1-2 business days', '1-2 weeks'.",
  "sentiment": "One of 'Positive', 'Neutral', 'Negative', 'Frustrated'.",
  "keywords": ["5-10 keywords that summarize the problem."],
  "affectedSystems": ["Systems or services affected, or 'N/A'."],
  "rootCauseHypothesis": "A brief initial hypothesis about the root cause.",
  "recommendedAction": "A brief recommendation for the first step."
}
`, title, description)
}
