package model

import (
	"strings"
	"time"
)

// Visibility controls who may read or respond to a template.  A
// public template is open to any caller including anonymous guests;
// a private template is restricted to its owner and share grantees.
type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityPublic  Visibility = "public"
)

// ShareLevel is the access level attached to a share grant.  Levels
// are strictly ordered: view < respond < edit.  A higher level
// implies the lower ones when reading, but never grants the
// owner-only operations (delete, share, view responses).
type ShareLevel string

const (
	ShareView    ShareLevel = "view"
	ShareRespond ShareLevel = "respond"
	ShareEdit    ShareLevel = "edit"
)

// ValidShareLevel reports whether s is one of the recognised levels.
func ValidShareLevel(s ShareLevel) bool {
	return s == ShareView || s == ShareRespond || s == ShareEdit
}

// QuestionType enumerates the supported question kinds.  Choice
// types (select, radio, checkbox) must carry at least one option.
type QuestionType string

const (
	QuestionText     QuestionType = "text"
	QuestionTextarea QuestionType = "textarea"
	QuestionNumber   QuestionType = "number"
	QuestionSelect   QuestionType = "select"
	QuestionRadio    QuestionType = "radio"
	QuestionCheckbox QuestionType = "checkbox"
	QuestionEmail    QuestionType = "email"
	QuestionDate     QuestionType = "date"
)

// ValidQuestionType reports whether t is a supported question type.
func ValidQuestionType(t QuestionType) bool {
	switch t {
	case QuestionText, QuestionTextarea, QuestionNumber, QuestionSelect,
		QuestionRadio, QuestionCheckbox, QuestionEmail, QuestionDate:
		return true
	}
	return false
}

// IsChoice reports whether t requires a non-empty options list.
func (t QuestionType) IsChoice() bool {
	return t == QuestionSelect || t == QuestionRadio || t == QuestionCheckbox
}

// Validation carries optional per-question constraints.  Pointers
// distinguish "unset" from zero values for the numeric bounds.
type Validation struct {
	Min     *float64 `json:"min,omitempty"`
	Max     *float64 `json:"max,omitempty"`
	Pattern string   `json:"pattern,omitempty"`
}

// Question is one typed prompt within a template.  Questions are
// stored as an ordered JSON array in the `templates.questions`
// column; slice order is display and response order.  The ID is an
// opaque identifier assigned when the template is saved so that
// response answers can reference individual questions.
type Question struct {
	ID         string       `json:"id"`
	Type       QuestionType `json:"type"`
	Label      string       `json:"label"`
	Required   bool         `json:"required"`
	Options    []string     `json:"options,omitempty"`
	Validation *Validation  `json:"validation,omitempty"`
}

// Share is a per-grantee access grant on a template, one row in the
// `template_shares` table.  Grants are keyed by email so that a
// template can be shared with people who have not registered yet;
// GranteeUserID is backfilled once the email resolves to a known
// account.  Matching against an authenticated user succeeds on
// either the user id or a case-insensitive email comparison.
type Share struct {
	TemplateID    uint64     // template_shares.template_id
	GranteeEmail  string     // template_shares.grantee_email (lowercase)
	GranteeUserID uint64     // template_shares.grantee_user_id (0 when unresolved)
	Level         ShareLevel // template_shares.level
	CreatedAt     time.Time  // template_shares.created_at
}

// Template is the central entity: an ordered set of typed questions
// authored by exactly one owner.  Ownership never transfers.
//
// State machine: draft (private, not archived) -> published (public,
// not archived) -> archived (private, archived).  Archiving forces
// visibility back to private in the same write; an archived template
// stays archived.
type Template struct {
	ID          uint64     // templates.id
	OwnerID     uint64     // templates.owner_id
	Title       string     // templates.title
	Description string     // templates.description
	Questions   []Question // templates.questions (JSON, ordered)
	Visibility  Visibility // templates.visibility
	Archived    bool       // templates.archived
	ShareLink   string     // templates.share_link ("" until minted, stable after)
	Shares      []Share    // template_shares rows for this template
	CreatedAt   time.Time  // templates.created_at
	UpdatedAt   time.Time  // templates.updated_at
}

// ShareFor returns the share grant matching the given user, or nil.
// A grant matches on the resolved user id when set, otherwise on the
// grantee email compared case-insensitively.
func (t *Template) ShareFor(u *User) *Share {
	if u == nil {
		return nil
	}
	for i := range t.Shares {
		s := &t.Shares[i]
		if s.GranteeUserID != 0 && s.GranteeUserID == u.ID {
			return s
		}
		if strings.EqualFold(s.GranteeEmail, u.Email) {
			return s
		}
	}
	return nil
}
