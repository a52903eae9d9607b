package model

import "time"

// Response is one respondent's submitted answers to a template.
// Responses are immutable once created: there is no update or delete
// operation, and archiving a template leaves its responses in place
// so the owner can keep auditing them.
//
// Fields:
//  ID           – primary key identifier.
//  TemplateID   – template the answers belong to.
//  RespondentID – submitting user, nil for anonymous submissions
//                 (allowed only while the template is public).
//  Answers      – question id -> submitted value, stored as JSON.
//  CreatedAt    – submission timestamp.
type Response struct {
	ID           uint64         // responses.id
	TemplateID   uint64         // responses.template_id
	RespondentID *uint64        // responses.respondent_id (nullable)
	Answers      map[string]any // responses.answers (JSON)
	CreatedAt    time.Time      // responses.created_at
}
