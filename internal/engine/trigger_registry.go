package engine

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/underwritepro/flowengine/internal/domain"
)

// TriggerRegistry holds the live set of active workflows, indexed by trigger
// type. It is rebuilt from persisted rows at startup and on an explicit
// Reload, never by continuous polling. A workflow with a malformed trigger or
// action config is logged and left out of the live set; the rest still load.
type TriggerRegistry struct {
	workflowRepo WorkflowRepo
	schemas      *configSchemas
	validate     *validator.Validate

	mu        sync.RWMutex
	byTrigger map[string][]*compiledWorkflow
}

type compiledWorkflow struct {
	workflow  *domain.Workflow
	predicate predicate
}

type condition struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    any    `json:"value"`
}

// predicate is the parsed trigger_config. Conditions are conjunctive; a
// non-empty $or list makes the predicate the disjunction of its blocks.
type predicate struct {
	Conditions []condition `json:"conditions"`
	Or         []predicate `json:"$or"`
}

func NewTriggerRegistry(workflowRepo WorkflowRepo) (*TriggerRegistry, error) {
	schemas, err := compileSchemas()
	if err != nil {
		return nil, err
	}
	return &TriggerRegistry{
		workflowRepo: workflowRepo,
		schemas:      schemas,
		validate:     validator.New(),
		byTrigger:    map[string][]*compiledWorkflow{},
	}, nil
}

// Reload rebuilds the live set from the store. Called at startup and on the
// explicit reload signal after definitions change.
func (tr *TriggerRegistry) Reload() error {
	workflows, err := tr.workflowRepo.FindActive()
	if err != nil {
		return err
	}

	byTrigger := map[string][]*compiledWorkflow{}
	for i := range *workflows {
		wf := &(*workflows)[i]
		compiled, err := tr.compile(wf)
		if err != nil {
			slog.Error("Skipping workflow with invalid config", "workflow_id", wf.ID, "name", wf.Name, "error", err)
			continue
		}
		byTrigger[wf.TriggerType] = append(byTrigger[wf.TriggerType], compiled)
	}

	tr.mu.Lock()
	tr.byTrigger = byTrigger
	tr.mu.Unlock()

	slog.Info("Trigger registry loaded", "workflows", len(*workflows), "trigger_types", len(byTrigger))
	return nil
}

func (tr *TriggerRegistry) compile(wf *domain.Workflow) (*compiledWorkflow, error) {
	if err := tr.validate.Struct(wf); err != nil {
		return nil, &ConfigError{WorkflowID: wf.ID, Detail: err.Error()}
	}
	if err := tr.schemas.validateTriggerConfig(wf.TriggerConfig); err != nil {
		return nil, &ConfigError{WorkflowID: wf.ID, Detail: "trigger_config: " + err.Error()}
	}
	for _, a := range wf.Actions {
		if err := tr.schemas.validateActionConfig(a.ActionType, a.ActionConfig); err != nil {
			return nil, &ConfigError{WorkflowID: wf.ID, Detail: fmt.Sprintf("action %d (%s): %s", a.OrderIndex, a.ActionType, err)}
		}
	}

	var p predicate
	raw := wf.TriggerConfig
	if raw == "" {
		raw = "{}"
	}
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, &ConfigError{WorkflowID: wf.ID, Detail: "trigger_config: " + err.Error()}
	}
	return &compiledWorkflow{workflow: wf, predicate: p}, nil
}

// Match evaluates the event against every live workflow for its trigger type
// and returns the matches. Matching never errors: a field absent from the
// event simply fails that workflow's predicate.
func (tr *TriggerRegistry) Match(event *domain.Event) []*domain.Workflow {
	tr.mu.RLock()
	candidates := tr.byTrigger[event.Type]
	tr.mu.RUnlock()

	var matched []*domain.Workflow
	for _, cw := range candidates {
		if cw.predicate.matches(event.Fields) {
			matched = append(matched, cw.workflow)
		}
	}
	return matched
}

func (p *predicate) matches(fields map[string]any) bool {
	if len(p.Or) > 0 {
		for i := range p.Or {
			if p.Or[i].matches(fields) {
				return true
			}
		}
		return false
	}
	for _, c := range p.Conditions {
		if !c.matches(fields) {
			return false
		}
	}
	return true
}

func (c *condition) matches(fields map[string]any) bool {
	actual, ok := fields[c.Field]
	if !ok {
		return false
	}
	switch c.Operator {
	case "equals":
		return looseEquals(actual, c.Value)
	case "not_equals":
		return !looseEquals(actual, c.Value)
	case "greater_than":
		a, okA := toFloat(actual)
		b, okB := toFloat(c.Value)
		return okA && okB && a > b
	case "less_than":
		a, okA := toFloat(actual)
		b, okB := toFloat(c.Value)
		return okA && okB && a < b
	case "contains":
		return strings.Contains(fmt.Sprint(actual), fmt.Sprint(c.Value))
	default:
		// schema validation rejects unknown operators at load, fail closed anyway
		slog.Warn("Unknown trigger operator", "operator", c.Operator)
		return false
	}
}

// looseEquals compares numerically when both sides are numbers, so a JSON
// 3 matches an event field 3.0, and falls back to string comparison.
func looseEquals(a, b any) bool {
	fa, okA := toFloat(a)
	fb, okB := toFloat(b)
	if okA && okB {
		return fa == fb
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
