package engine

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	"github.com/underwritepro/flowengine/internal/domain"
)

// Trigger and action configs arrive as operator-authored JSON. They are
// validated against these schemas when the registry loads, so unknown
// operators and missing fields are rejected eagerly instead of surfacing
// mid-execution.

const conditionsSchemaFragment = `{
	"type": "array",
	"items": {
		"type": "object",
		"required": ["field", "operator", "value"],
		"properties": {
			"field": { "type": "string", "minLength": 1 },
			"operator": { "enum": ["equals", "not_equals", "greater_than", "less_than", "contains"] },
			"value": {}
		},
		"additionalProperties": false
	}
}`

var triggerConfigSchema = `{
	"type": "object",
	"properties": {
		"conditions": ` + conditionsSchemaFragment + `,
		"$or": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"properties": {
					"conditions": ` + conditionsSchemaFragment + `
				},
				"additionalProperties": false
			}
		}
	},
	"additionalProperties": false
}`

var actionConfigSchemas = map[string]string{
	domain.ActionSendEmail: `{
		"type": "object",
		"required": ["to_email", "subject", "body"],
		"properties": {
			"to_email": { "type": "string", "minLength": 1 },
			"subject": { "type": "string" },
			"body": { "type": "string" }
		},
		"additionalProperties": false
	}`,
	domain.ActionSendSms: `{
		"type": "object",
		"required": ["to_phone", "body"],
		"properties": {
			"to_phone": { "type": "string", "minLength": 1 },
			"body": { "type": "string" }
		},
		"additionalProperties": false
	}`,
	domain.ActionCreateTask: `{
		"type": "object",
		"required": ["title"],
		"properties": {
			"title": { "type": "string", "minLength": 1 },
			"description": { "type": "string" },
			"assigned_to": { "type": "string" },
			"task_type": { "type": "string" },
			"priority": { "enum": ["low", "medium", "high"] },
			"due_in_days": { "type": "integer", "minimum": 0 }
		},
		"additionalProperties": false
	}`,
	domain.ActionChangeStage: `{
		"type": "object",
		"required": ["new_stage"],
		"properties": {
			"new_stage": { "type": "string", "minLength": 1 }
		},
		"additionalProperties": false
	}`,
	domain.ActionAssignUser: `{
		"type": "object",
		"required": ["user_id"],
		"properties": {
			"user_id": { "type": "string", "minLength": 1 }
		},
		"additionalProperties": false
	}`,
	domain.ActionAwardPoints: `{
		"type": "object",
		"required": ["rule_key"],
		"properties": {
			"rule_key": { "type": "string", "minLength": 1 },
			"user_id": { "type": "string" }
		},
		"additionalProperties": false
	}`,
	domain.ActionLogTouchpoint: `{
		"type": "object",
		"properties": {
			"touchpoint_type": { "type": "string" },
			"description": { "type": "string" }
		},
		"additionalProperties": false
	}`,
}

type configSchemas struct {
	trigger *gojsonschema.Schema
	actions map[string]*gojsonschema.Schema
}

func compileSchemas() (*configSchemas, error) {
	trigger, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(triggerConfigSchema))
	if err != nil {
		return nil, fmt.Errorf("compile trigger schema: %w", err)
	}
	actions := make(map[string]*gojsonschema.Schema, len(actionConfigSchemas))
	for actionType, raw := range actionConfigSchemas {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(raw))
		if err != nil {
			return nil, fmt.Errorf("compile %s schema: %w", actionType, err)
		}
		actions[actionType] = schema
	}
	return &configSchemas{trigger: trigger, actions: actions}, nil
}

func (s *configSchemas) validateTriggerConfig(raw string) error {
	return validateAgainst(s.trigger, raw)
}

func (s *configSchemas) validateActionConfig(actionType string, raw string) error {
	schema, ok := s.actions[actionType]
	if !ok {
		return fmt.Errorf("unknown action type: %s", actionType)
	}
	return validateAgainst(schema, raw)
}

func validateAgainst(schema *gojsonschema.Schema, raw string) error {
	if raw == "" {
		raw = "{}"
	}
	result, err := schema.Validate(gojsonschema.NewStringLoader(raw))
	if err != nil {
		return err
	}
	if !result.Valid() {
		errs := result.Errors()
		if len(errs) > 0 {
			return fmt.Errorf("%s", errs[0].String())
		}
		return fmt.Errorf("config invalid")
	}
	return nil
}
