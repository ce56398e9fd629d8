package model

// ConversationState is the short-lived per-session memory used to resolve
// ambiguous follow-up questions. Absence after TTL expiry reads as the zero
// value.
type ConversationState struct {
	Topic        string `json:"topic"`
	LastQuestion string `json:"last_question"`
}
