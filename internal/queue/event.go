// Package queue defines message payloads exchanged over the message broker.
package queue

// ResponseSubmittedEvent is published when a response is successfully
// stored. It contains enough information for downstream consumers
// (notification trail, issue-tracker and CRM forwarders) to act
// without querying the primary database.
type ResponseSubmittedEvent struct {
	ResponseID    uint64 `json:"response_id"`
	TemplateID    uint64 `json:"template_id"`
	TemplateTitle string `json:"template_title"`
	OwnerID       uint64 `json:"owner_id"`
	RespondentID  uint64 `json:"respondent_id,omitempty"`
	Anonymous     bool   `json:"anonymous"`
	SubmittedAt   string `json:"submitted_at"`
}
