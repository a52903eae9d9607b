package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/iliyamo/form-builder/internal/access"
	"github.com/iliyamo/form-builder/internal/model"
	"github.com/iliyamo/form-builder/internal/repository"
)

// TemplateStore abstracts the persistence operations required by
// TemplateService. Implemented by repository.TemplateRepo.
type TemplateStore interface {
	Insert(ctx context.Context, t *model.Template) error
	GetByID(ctx context.Context, id uint64) (*model.Template, error)
	GetByShareLink(ctx context.Context, token string) (*model.Template, error)
	ListByOwner(ctx context.Context, ownerID uint64, includeArchived bool) ([]*model.Template, error)
	ListPublic(ctx context.Context, search string) ([]*model.Template, error)
	Update(ctx context.Context, t *model.Template) error
	Archive(ctx context.Context, id uint64) error
	UpsertShare(ctx context.Context, s model.Share) error
	SetShareLink(ctx context.Context, id uint64, token string) error
}

// UserDirectory resolves grantee emails to registered accounts so
// share grants can carry a stable user id from the start.
type UserDirectory interface {
	GetByEmail(ctx context.Context, email string) (model.User, error)
}

// TemplateService owns the template lifecycle: draft -> published ->
// archived, plus sharing and shareable links.
type TemplateService struct {
	store TemplateStore
	users UserDirectory

	// newLinkToken mints shareable-link tokens; replaced in tests.
	newLinkToken func() string
}

func NewTemplateService(store TemplateStore, users UserDirectory) *TemplateService {
	return &TemplateService{
		store:        store,
		users:        users,
		newLinkToken: uuid.NewString,
	}
}

// TemplateInput carries the caller-supplied template fields.
type TemplateInput struct {
	Title       string
	Description string
	Questions   []model.Question
}

// TemplatePatch carries partial updates; nil fields are left
// untouched.
type TemplatePatch struct {
	Title       *string
	Description *string
	Questions   *[]model.Question
}

// validateQuestions enforces the structural question invariants:
// known type, non-empty label, and options on choice types. It also
// assigns ids to questions that do not have one yet so response
// answers can reference them.
func validateQuestions(questions []model.Question) error {
	for i := range questions {
		q := &questions[i]
		if !model.ValidQuestionType(q.Type) {
			return validationf("question %d: unknown type %q", i+1, q.Type)
		}
		if strings.TrimSpace(q.Label) == "" {
			return validationf("question %d: label is required", i+1)
		}
		if q.Type.IsChoice() && len(q.Options) == 0 {
			return validationf("question %d: %s questions must have options", i+1, q.Type)
		}
		if q.ID == "" {
			q.ID = uuid.NewString()
		}
	}
	return nil
}

// Create validates the input and stores a new template owned by the
// caller. New templates always start as private drafts; publishing
// is a separate transition.
func (s *TemplateService) Create(ctx context.Context, caller *model.User, in TemplateInput) (*model.Template, error) {
	if caller == nil {
		return nil, ErrUnauthenticated
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, validationf("title is required")
	}
	if err := validateQuestions(in.Questions); err != nil {
		return nil, err
	}
	t := &model.Template{
		OwnerID:     caller.ID,
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Questions:   in.Questions,
		Visibility:  model.VisibilityPrivate,
	}
	if err := s.store.Insert(ctx, t); err != nil {
		return nil, upstream(err)
	}
	return t, nil
}

// Get loads a template if the caller may view it. Anonymous callers
// see public templates only.
func (s *TemplateService) Get(ctx context.Context, caller *model.User, id uint64) (*model.Template, error) {
	t, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if d := access.Authorize(t, caller, access.View); !d.Allowed {
		return nil, forbidden(d.Reason)
	}
	return t, nil
}

// GetByShareLink resolves a minted link token. Possession of the
// link is equivalent to a view grant, so it opens private templates
// but never archived ones (except for the owner).
func (s *TemplateService) GetByShareLink(ctx context.Context, caller *model.User, token string) (*model.Template, error) {
	t, err := s.store.GetByShareLink(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrTemplateNotFound) {
			return nil, ErrNotFound
		}
		return nil, upstream(err)
	}
	if caller != nil && caller.ID == t.OwnerID {
		return t, nil
	}
	if t.Archived {
		return nil, forbidden("archived")
	}
	return t, nil
}

// ListMine returns the caller's own templates.
func (s *TemplateService) ListMine(ctx context.Context, caller *model.User, includeArchived bool) ([]*model.Template, error) {
	if caller == nil {
		return nil, ErrUnauthenticated
	}
	out, err := s.store.ListByOwner(ctx, caller.ID, includeArchived)
	if err != nil {
		return nil, upstream(err)
	}
	return out, nil
}

// ListPublic returns published templates, optionally filtered by a
// search term over title and description. Open to anonymous callers.
func (s *TemplateService) ListPublic(ctx context.Context, search string) ([]*model.Template, error) {
	out, err := s.store.ListPublic(ctx, search)
	if err != nil {
		return nil, upstream(err)
	}
	return out, nil
}

// Update applies a partial patch after an Edit authorization check
// and re-validates the question invariants.
func (s *TemplateService) Update(ctx context.Context, caller *model.User, id uint64, patch TemplatePatch) (*model.Template, error) {
	t, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if d := access.Authorize(t, caller, access.Edit); !d.Allowed {
		return nil, forbidden(d.Reason)
	}
	if patch.Title != nil {
		if strings.TrimSpace(*patch.Title) == "" {
			return nil, validationf("title is required")
		}
		t.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		t.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Questions != nil {
		if err := validateQuestions(*patch.Questions); err != nil {
			return nil, err
		}
		t.Questions = *patch.Questions
	}
	if err := s.store.Update(ctx, t); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, upstream(err)
	}
	return t, nil
}

// Publish makes the template public. Archived templates cannot be
// republished; archive is terminal.
func (s *TemplateService) Publish(ctx context.Context, caller *model.User, id uint64) (*model.Template, error) {
	return s.setVisibility(ctx, caller, id, model.VisibilityPublic)
}

// Unpublish returns a published template to a private draft.
func (s *TemplateService) Unpublish(ctx context.Context, caller *model.User, id uint64) (*model.Template, error) {
	return s.setVisibility(ctx, caller, id, model.VisibilityPrivate)
}

func (s *TemplateService) setVisibility(ctx context.Context, caller *model.User, id uint64, v model.Visibility) (*model.Template, error) {
	t, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if d := access.Authorize(t, caller, access.Edit); !d.Allowed {
		return nil, forbidden(d.Reason)
	}
	if t.Archived {
		return nil, forbidden("archived")
	}
	if t.Visibility == v {
		return t, nil
	}
	t.Visibility = v
	if err := s.store.Update(ctx, t); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, upstream(err)
	}
	return t, nil
}

// Delete archives the template. This is a soft delete: visibility is
// forced private, responses stay queryable by the owner, and the
// template never leaves the store.
func (s *TemplateService) Delete(ctx context.Context, caller *model.User, id uint64) error {
	t, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if d := access.Authorize(t, caller, access.Delete); !d.Allowed {
		return forbidden(d.Reason)
	}
	if err := s.store.Archive(ctx, t.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return upstream(err)
	}
	return nil
}

// Share grants or replaces access for a grantee email. When the
// email already belongs to a registered account the grant carries
// the user id from the start; otherwise the id is backfilled later.
func (s *TemplateService) Share(ctx context.Context, caller *model.User, id uint64, granteeEmail string, level model.ShareLevel) (*model.Template, error) {
	t, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if d := access.Authorize(t, caller, access.Share); !d.Allowed {
		return nil, forbidden(d.Reason)
	}
	email := strings.ToLower(strings.TrimSpace(granteeEmail))
	if email == "" || !strings.Contains(email, "@") {
		return nil, validationf("grantee email is required")
	}
	if !model.ValidShareLevel(level) {
		return nil, validationf("unknown share level %q", level)
	}
	share := model.Share{TemplateID: t.ID, GranteeEmail: email, Level: level}
	if s.users != nil {
		if u, err := s.users.GetByEmail(ctx, email); err == nil {
			share.GranteeUserID = u.ID
		}
		// An unregistered grantee is fine; the grant stays keyed by
		// email until the account exists.
	}
	if err := s.store.UpsertShare(ctx, share); err != nil {
		return nil, upstream(err)
	}
	return s.load(ctx, t.ID)
}

// MintShareLink returns the template's shareable link token, minting
// one on first use. A minted token is stable forever. Token
// collisions are retried once with a fresh token; a second collision
// surfaces as ErrConflict.
func (s *TemplateService) MintShareLink(ctx context.Context, caller *model.User, id uint64) (string, error) {
	t, err := s.load(ctx, id)
	if err != nil {
		return "", err
	}
	if d := access.Authorize(t, caller, access.Share); !d.Allowed {
		return "", forbidden(d.Reason)
	}
	if t.ShareLink != "" {
		return t.ShareLink, nil
	}
	for attempt := 0; attempt < 2; attempt++ {
		token := s.newLinkToken()
		err := s.store.SetShareLink(ctx, t.ID, token)
		if err == nil {
			return token, nil
		}
		if errors.Is(err, repository.ErrConflict) {
			continue
		}
		if errors.Is(err, sql.ErrNoRows) {
			// Raced with a concurrent mint; return the winner.
			if cur, lerr := s.load(ctx, t.ID); lerr == nil && cur.ShareLink != "" {
				return cur.ShareLink, nil
			}
			return "", ErrConflict
		}
		return "", upstream(err)
	}
	return "", ErrConflict
}

// load fetches a template and maps the repository's not-found
// sentinel to the service taxonomy.
func (s *TemplateService) load(ctx context.Context, id uint64) (*model.Template, error) {
	t, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrTemplateNotFound) {
			return nil, ErrNotFound
		}
		return nil, upstream(err)
	}
	return t, nil
}
