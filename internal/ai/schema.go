package ai

import (
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
	"google.golang.org/genai"
)

// candidateRecordSchema mirrors types.CandidateRecord. The generation
// schema below constrains the model; this one checks what actually came back.
const candidateRecordSchema = `{
  "type": "object",
  "required": ["personalInfo", "experiences", "skills"],
  "properties": {
    "id": {"type": "string"},
    "personalInfo": {
      "type": "object",
      "required": ["name"],
      "properties": {
        "name": {"type": "string"},
        "email": {"type": "string"},
        "phone": {"type": "string"},
        "location": {"type": "string"},
        "summary": {"type": "string"}
      }
    },
    "experiences": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["company", "title", "startDate", "description"],
        "properties": {
          "company": {"type": "string"},
          "title": {"type": "string"},
          "startDate": {"type": "string"},
          "endDate": {"type": ["string", "null"]},
          "description": {"type": "string"}
        }
      }
    },
    "skills": {"type": "array", "items": {"type": "string"}},
    "education": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["institution"],
        "properties": {
          "institution": {"type": "string"},
          "degree": {"type": "string"},
          "startDate": {"type": "string"},
          "endDate": {"type": ["string", "null"]},
          "description": {"type": "string"}
        }
      }
    },
    "sections": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["title", "content"],
        "properties": {
          "title": {"type": "string"},
          "content": {"type": "string"}
        }
      }
    }
  }
}`

var (
	compiledSchema     *gojsonschema.Schema
	compiledSchemaErr  error
	compiledSchemaOnce sync.Once
)

// FieldError is a single schema violation at a JSON path.
type FieldError struct {
	Field   string
	Message string
}

// SchemaError lists every schema violation of a response.
type SchemaError struct {
	Errors []FieldError
}

func (e *SchemaError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		parts = append(parts, fmt.Sprintf("%s: %s", fe.Field, fe.Message))
	}
	return "response does not match the candidate record schema: " + strings.Join(parts, "; ")
}

// Fields returns the offending field paths.
func (e *SchemaError) Fields() []string {
	out := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		out = append(out, fe.Field)
	}
	return out
}

// validateCandidateJSON checks raw response text against the candidate record schema.
func validateCandidateJSON(text string) error {
	compiledSchemaOnce.Do(func() {
		compiledSchema, compiledSchemaErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(candidateRecordSchema))
	})
	if compiledSchemaErr != nil {
		return fmt.Errorf("failed to compile candidate record schema: %w", compiledSchemaErr)
	}

	result, err := compiledSchema.Validate(gojsonschema.NewStringLoader(text))
	if err != nil {
		// Not JSON at all
		return err
	}
	if result.Valid() {
		return nil
	}

	schemaErr := &SchemaError{Errors: make([]FieldError, 0, len(result.Errors()))}
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		schemaErr.Errors = append(schemaErr.Errors, FieldError{Field: field, Message: desc.Description()})
	}
	return schemaErr
}

// buildOptimizeSchema creates the generation config constraining the model to a candidate record.
func (g *GeminiOracle) buildOptimizeSchema() *genai.GenerateContentConfig {
	str := &genai.Schema{Type: genai.TypeString}
	nullableStr := &genai.Schema{Type: genai.TypeString, Nullable: genai.Ptr(true)}

	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"personalInfo": {
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"name":     str,
						"email":    str,
						"phone":    str,
						"location": str,
						"summary":  str,
					},
					Required: []string{"name"},
				},
				"experiences": {
					Type: genai.TypeArray,
					Items: &genai.Schema{
						Type: genai.TypeObject,
						Properties: map[string]*genai.Schema{
							"company":     str,
							"title":       str,
							"startDate":   str,
							"endDate":     nullableStr,
							"description": str,
						},
						Required: []string{"company", "title", "startDate", "endDate", "description"},
					},
				},
				"skills": {
					Type:  genai.TypeArray,
					Items: str,
				},
				"education": {
					Type: genai.TypeArray,
					Items: &genai.Schema{
						Type: genai.TypeObject,
						Properties: map[string]*genai.Schema{
							"institution": str,
							"degree":      str,
							"startDate":   str,
							"endDate":     nullableStr,
							"description": str,
						},
						Required: []string{"institution"},
					},
				},
				"sections": {
					Type: genai.TypeArray,
					Items: &genai.Schema{
						Type: genai.TypeObject,
						Properties: map[string]*genai.Schema{
							"title":   str,
							"content": str,
						},
						Required: []string{"title", "content"},
					},
				},
			},
			Required: []string{"personalInfo", "experiences", "skills"},
		},
	}

	if g.config.Temperature != nil && *g.config.Temperature > 0 {
		config.Temperature = g.config.Temperature
	}
	return config
}
