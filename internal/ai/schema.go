package ai

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const classificationSchemaURL = "https://ticket-triage.local/schemas/classification.json"

// Every property is optional and nullable; repair supplies defaults. A property of the
// wrong type is dropped rather than failing the whole document.
const classificationSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "enhancedDescription": {"type": ["string", "null"]},
    "suggestedSkills": {"type": ["array", "string", "null"]},
    "priority": {"type": ["string", "null"]},
    "category": {"type": ["string", "null"]},
    "subCategory": {"type": ["string", "null"]},
    "complexityScore": {"type": ["number", "string", "null"]},
    "estimatedResolutionTime": {"type": ["string", "null"]},
    "sentiment": {"type": ["string", "null"]},
    "keywords": {"type": ["array", "null"]},
    "affectedSystems": {"type": ["array", "null"]},
    "rootCauseHypothesis": {"type": ["string", "null"]},
    "recommendedAction": {"type": ["string", "null"]}
  }
}`

func compileClassificationSchema() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()

	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(classificationSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("unmarshal classification schema: %w", err)
	}
	if err := c.AddResource(classificationSchemaURL, doc); err != nil {
		return nil, fmt.Errorf("add classification schema resource: %w", err)
	}
	sch, err := c.Compile(classificationSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile classification schema: %w", err)
	}
	return sch, nil
}

// invalidProperties returns the top-level properties named by a validation error.
// root is true when the document itself is rejected (not an object).
func invalidProperties(err error) (props []string, root bool) {
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return nil, true
	}
	if len(verr.Causes) == 0 {
		if len(verr.InstanceLocation) == 0 {
			return nil, true
		}
		return []string{verr.InstanceLocation[0]}, false
	}
	for _, cause := range verr.Causes {
		p, r := invalidProperties(cause)
		if r {
			return nil, true
		}
		props = append(props, p...)
	}
	return props, false
}

// violations flattens a validation error into "location: message" lines.
func violations(err error) []string {
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []string{err.Error()}
	}
	if len(verr.Causes) == 0 {
		return []string{"/" + strings.Join(verr.InstanceLocation, "/") + ": " + verr.Error()}
	}
	var out []string
	for _, cause := range verr.Causes {
		out = append(out, violations(cause)...)
	}
	return out
}
