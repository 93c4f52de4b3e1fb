package workflows

import (
	"database/sql"

	"github.com/underwritepro/flowengine/internal/domain"
)

// Template is a prebuilt workflow definition an organization can adopt
// as-is or use as a starting point. Build stamps a fresh inactive copy so
// operators review the action chain before switching it on.
type Template struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description"`

	triggerType     string
	triggerConfig   string
	continueOnError bool
	actions         []domain.WorkflowAction
}

func (t *Template) Build(organizationID string) *domain.Workflow {
	wf := &domain.Workflow{
		OrganizationID:  organizationID,
		Name:            t.Name,
		Description:     sql.NullString{String: t.Description, Valid: t.Description != ""},
		TriggerType:     t.triggerType,
		TriggerConfig:   t.triggerConfig,
		ContinueOnError: t.continueOnError,
		IsActive:        false,
	}
	wf.Actions = make([]domain.WorkflowAction, len(t.actions))
	copy(wf.Actions, t.actions)
	return wf
}

var templates = []Template{
	{
		Key:         "new_deal_onboarding",
		Name:        "New Deal Onboarding",
		Description: "Welcome the borrower, open a document-collection task and log the touchpoint when a deal is created.",
		triggerType: domain.EventDealCreated,
		actions: []domain.WorkflowAction{
			{
				OrderIndex: 0, ActionType: domain.ActionSendEmail,
				ActionConfig: `{"to_email":"{{borrower_email}}","subject":"Welcome, {{borrower_name}}","body":"Thanks for starting your application for {{deal_name}}. We will be in touch shortly."}`,
			},
			{
				OrderIndex: 1, ActionType: domain.ActionCreateTask,
				ActionConfig: `{"title":"Collect documents for {{deal_name}}","task_type":"document_collection","priority":"high","due_in_days":2}`,
			},
			{
				OrderIndex: 2, ActionType: domain.ActionLogTouchpoint,
				ActionConfig: `{"touchpoint_type":"email","description":"Sent onboarding welcome email"}`,
			},
		},
	},
	{
		Key:             "document_reminder",
		Name:            "Document Reminder",
		Description:     "Nudge the borrower when a requested document is still missing after three days.",
		triggerType:     domain.EventDocumentMissing,
		triggerConfig:   `{"conditions":[{"field":"days_since_request","operator":"greater_than","value":3}]}`,
		continueOnError: true,
		actions: []domain.WorkflowAction{
			{
				OrderIndex: 0, ActionType: domain.ActionSendEmail,
				ActionConfig: `{"to_email":"{{borrower_email}}","subject":"Reminder: {{document_name}} still needed","body":"We are still waiting on your {{document_name}}. Uploading it keeps your application moving."}`,
			},
			{
				OrderIndex: 1, ActionType: domain.ActionSendSms,
				ActionConfig: `{"to_phone":"{{borrower_phone}}","body":"Reminder from your loan team: we still need your {{document_name}}."}`,
				DelayMinutes: 1440,
			},
		},
	},
	{
		Key:           "deal_approved",
		Name:          "Deal Approved",
		Description:   "Congratulate the borrower and queue closing work when a deal reaches the approved stage.",
		triggerType:   domain.EventStageChanged,
		triggerConfig: `{"conditions":[{"field":"new_stage","operator":"equals","value":"approved"}]}`,
		actions: []domain.WorkflowAction{
			{
				OrderIndex: 0, ActionType: domain.ActionSendEmail,
				ActionConfig: `{"to_email":"{{borrower_email}}","subject":"Your loan is approved!","body":"Congratulations {{borrower_name}}, {{deal_name}} has been approved. Your closing team will reach out with next steps."}`,
			},
			{
				OrderIndex: 1, ActionType: domain.ActionCreateTask,
				ActionConfig: `{"title":"Prepare closing package for {{deal_name}}","task_type":"closing","priority":"high","due_in_days":1}`,
			},
			{
				OrderIndex: 2, ActionType: domain.ActionAwardPoints,
				ActionConfig: `{"rule_key":"deal_funded","user_id":"{{assigned_user_id}}"}`,
			},
		},
	},
}

// Templates lists every prebuilt template.
func Templates() []Template {
	out := make([]Template, len(templates))
	copy(out, templates)
	return out
}

// TemplateByKey looks a template up by its stable key.
func TemplateByKey(key string) (*Template, bool) {
	for i := range templates {
		if templates[i].Key == key {
			return &templates[i], true
		}
	}
	return nil, false
}
