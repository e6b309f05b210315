package models

// Live event types
const (
	EventPickUpdate   = "pick:update"
	EventPickFinalize = "pick:finalize"
)

// EventPayload is deliberately minimal; consumers re-fetch the week
type EventPayload struct {
	UserID int `json:"userId"`
	Week   int `json:"week"`
}

// LiveEvent is the message pushed to live subscribers
type LiveEvent struct {
	Type    string       `json:"type"`
	Payload EventPayload `json:"payload"`
}

// NewPickEvent builds a pick event for a user/week
func NewPickEvent(eventType string, userID, week int) LiveEvent {
	return LiveEvent{Type: eventType, Payload: EventPayload{UserID: userID, Week: week}}
}
