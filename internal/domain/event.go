package domain

// Event is one business-entity event delivered by an upstream entity service.
// EventID must be stable across redeliveries; the engine deduplicates on it.
type Event struct {
	EventID     string         `json:"event_id" validate:"required"`
	Type        string         `json:"type" validate:"required"`
	EntityType  string         `json:"entity_type" validate:"required"`
	EntityID    string         `json:"entity_id" validate:"required"`
	UserID      string         `json:"user_id"`
	Fields      map[string]any `json:"fields"`
	RootEventID string         `json:"root_event_id"`
	Depth       int            `json:"depth" validate:"gte=0"`
}

const (
	EventDealCreated      = "deal_created"
	EventDealUpdated      = "deal_updated"
	EventStageChanged     = "stage_changed"
	EventBorrowerUpdated  = "borrower_updated"
	EventDocumentMissing  = "document_missing"
	EventLessonCompleted  = "lesson_completed"
	EventDocumentUploaded = "document_uploaded"
)

// Root returns the id of the event that started a re-trigger chain,
// falling back to the event itself when it is the root.
func (e *Event) Root() string {
	if e.RootEventID != "" {
		return e.RootEventID
	}
	return e.EventID
}
