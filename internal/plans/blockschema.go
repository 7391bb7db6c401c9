package plans

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/abhisek/opoplan/internal/schedule"
)

// blocksSchemaURL identifies the compiled block schema.
const blocksSchemaURL = "schema://opoplan/blocks.json"

var activityTypes = []any{"STUDY", "REVIEW", "FLASH_REVIEW", "TEST", "SIMULATION",
	"study", "review", "flash_review", "flash-review", "test", "simulation"}

// blocksSchema describes the JSON shape of a custom-block configuration.
// Semantic rules (budgets, overlaps, known themes) live in
// schedule.ValidateBlocks; this only rejects malformed documents.
var blocksSchema = map[string]any{
	"type":     "array",
	"minItems": 1,
	"items": map[string]any{
		"type":     "object",
		"required": []any{"blockNumber", "startDate", "endDate", "weeklyPattern"},
		"properties": map[string]any{
			"blockNumber":   map[string]any{"type": "integer", "minimum": 1},
			"startDate":     map[string]any{"type": "string", "pattern": `^\d{4}-\d{2}-\d{2}`},
			"endDate":       map[string]any{"type": "string", "pattern": `^\d{4}-\d{2}-\d{2}`},
			"weeklyPattern": map[string]any{"$ref": "#/$defs/pattern"},
		},
	},
	"$defs": map[string]any{
		"pattern": map[string]any{
			"type":                 "object",
			"additionalProperties": false,
			"properties": map[string]any{
				"monday":    map[string]any{"$ref": "#/$defs/day"},
				"tuesday":   map[string]any{"$ref": "#/$defs/day"},
				"wednesday": map[string]any{"$ref": "#/$defs/day"},
				"thursday":  map[string]any{"$ref": "#/$defs/day"},
				"friday":    map[string]any{"$ref": "#/$defs/day"},
				"saturday":  map[string]any{"$ref": "#/$defs/day"},
				"sunday":    map[string]any{"$ref": "#/$defs/day"},
			},
		},
		"day": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":     "object",
				"required": []any{"themeId", "activityType", "durationMinutes"},
				"properties": map[string]any{
					"themeId": map[string]any{
						"anyOf": []any{
							map[string]any{"type": "integer", "minimum": 1},
							map[string]any{"type": "string", "pattern": `^\s*\d+(\s*-\s*\d+)?\s*$`},
						},
					},
					"activityType":    map[string]any{"enum": activityTypes},
					"durationMinutes": map[string]any{"type": "integer"},
				},
			},
		},
	},
}

var (
	compileOnce    sync.Once
	compiledBlocks *jsonschema.Schema
	compileErr     error
)

// compiledBlocksSchema compiles the block schema once.
func compiledBlocksSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		// The compiler wants a parsed JSON value; round-trip the Go literal.
		raw, err := json.Marshal(blocksSchema)
		if err != nil {
			compileErr = fmt.Errorf("marshal schema: %w", err)
			return
		}
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
		if err != nil {
			compileErr = fmt.Errorf("parse schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(blocksSchemaURL, doc); err != nil {
			compileErr = fmt.Errorf("add resource: %w", err)
			return
		}
		compiledBlocks, compileErr = c.Compile(blocksSchemaURL)
	})
	return compiledBlocks, compileErr
}

// ParseBlocks checks raw JSON against the block schema and decodes it.
// Schema violations are returned as *schedule.ValidationError.
func ParseBlocks(raw []byte) ([]schedule.BlockConfig, error) {
	if err := checkBlocksJSON(raw); err != nil {
		return nil, err
	}
	var blocks []schedule.BlockConfig
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return nil, schedule.NewValidationError(fmt.Sprintf("blocksConfig: %v", err))
	}
	return blocks, nil
}

func checkBlocksJSON(raw []byte) error {
	sch, err := compiledBlocksSchema()
	if err != nil {
		return fmt.Errorf("compile blocks schema: %w", err)
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return schedule.NewValidationError(fmt.Sprintf("blocksConfig: invalid JSON: %v", err))
	}
	if err := sch.Validate(doc); err != nil {
		return schedule.NewValidationError(fmt.Sprintf("blocksConfig: %v", err))
	}
	return nil
}

// Draft is a user's in-progress custom-block configuration.
type Draft struct {
	StartDate             schedule.Date          `json:"startDate"`
	ExamDate              schedule.Date          `json:"examDate"`
	BlocksConfig          []schedule.BlockConfig `json:"blocksConfig"`
	AvailableDailyMinutes int                    `json:"availableDailyMinutes,omitempty"`
	Themes                []ThemeRequest         `json:"themes,omitempty"`
}

// parseDraft validates a draft document. Drafts may be incomplete, so only
// the block list (when present) is held to the schema.
func parseDraft(raw []byte) (*Draft, error) {
	var envelope struct {
		BlocksConfig json.RawMessage `json:"blocksConfig"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, schedule.NewValidationError(fmt.Sprintf("draft: invalid JSON: %v", err))
	}
	if len(envelope.BlocksConfig) > 0 && string(envelope.BlocksConfig) != "null" &&
		string(envelope.BlocksConfig) != "[]" {
		if err := checkBlocksJSON(envelope.BlocksConfig); err != nil {
			return nil, err
		}
	}
	var d Draft
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, schedule.NewValidationError(fmt.Sprintf("draft: %v", err))
	}
	return &d, nil
}
