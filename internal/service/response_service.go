package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/iliyamo/form-builder/internal/access"
	"github.com/iliyamo/form-builder/internal/model"
	"github.com/iliyamo/form-builder/internal/queue"
	"github.com/iliyamo/form-builder/internal/repository"
)

// ResponseStore abstracts the persistence operations required by
// ResponseService. Implemented by repository.ResponseRepo.
type ResponseStore interface {
	Insert(ctx context.Context, resp *model.Response) error
	ListByTemplate(ctx context.Context, templateID uint64) ([]*model.Response, error)
}

// TemplateReader is the slice of TemplateStore needed to authorize
// response operations.
type TemplateReader interface {
	GetByID(ctx context.Context, id uint64) (*model.Template, error)
}

// ResponseService handles response submission and listing. Each
// submission is authorized against the template's current share and
// visibility state and then stored as a single immutable row.
type ResponseService struct {
	templates TemplateReader
	store     ResponseStore

	// publish emits the response.submitted event after a successful
	// insert. Failures are logged and ignored; the submission itself
	// is already durable. Nil disables publishing.
	publish func(ctx context.Context, ev queue.ResponseSubmittedEvent) error
}

func NewResponseService(templates TemplateReader, store ResponseStore) *ResponseService {
	return &ResponseService{
		templates: templates,
		store:     store,
		publish:   queue.PublishResponseSubmitted,
	}
}

// Submit validates and stores a response to a template. Anonymous
// callers are accepted only while the template is public and not
// archived; every required question must have a non-empty answer.
// Answers for unknown question ids are dropped at this boundary.
func (s *ResponseService) Submit(ctx context.Context, caller *model.User, templateID uint64, answers map[string]any) (*model.Response, error) {
	t, err := s.templates.GetByID(ctx, templateID)
	if err != nil {
		if errors.Is(err, repository.ErrTemplateNotFound) {
			return nil, ErrNotFound
		}
		return nil, upstream(err)
	}
	if d := access.Authorize(t, caller, access.Respond); !d.Allowed {
		return nil, forbidden(d.Reason)
	}

	known := make(map[string]bool, len(t.Questions))
	for _, q := range t.Questions {
		known[q.ID] = true
		if !q.Required {
			continue
		}
		v, ok := answers[q.ID]
		if !ok || v == nil || v == "" {
			return nil, validationf("question %q requires an answer", q.Label)
		}
	}
	kept := make(map[string]any, len(answers))
	for id, v := range answers {
		if known[id] {
			kept[id] = v
		}
	}

	resp := &model.Response{TemplateID: t.ID, Answers: kept}
	if caller != nil {
		uid := caller.ID
		resp.RespondentID = &uid
	}
	if err := s.store.Insert(ctx, resp); err != nil {
		return nil, upstream(err)
	}

	if s.publish != nil {
		ev := queue.ResponseSubmittedEvent{
			ResponseID:    resp.ID,
			TemplateID:    t.ID,
			TemplateTitle: t.Title,
			OwnerID:       t.OwnerID,
			Anonymous:     caller == nil,
			SubmittedAt:   resp.CreatedAt.UTC().Format(time.RFC3339),
		}
		if caller != nil {
			ev.RespondentID = caller.ID
		}
		if err := s.publish(ctx, ev); err != nil {
			log.Printf("response service: publish event failed: %v", err)
		}
	}
	return resp, nil
}

// List returns all responses for a template newest-first. Only the
// owner may list responses; no share level grants this.
func (s *ResponseService) List(ctx context.Context, caller *model.User, templateID uint64) ([]*model.Response, error) {
	t, err := s.templates.GetByID(ctx, templateID)
	if err != nil {
		if errors.Is(err, repository.ErrTemplateNotFound) {
			return nil, ErrNotFound
		}
		return nil, upstream(err)
	}
	if d := access.Authorize(t, caller, access.ViewResponses); !d.Allowed {
		return nil, forbidden(d.Reason)
	}
	out, err := s.store.ListByTemplate(ctx, t.ID)
	if err != nil {
		return nil, upstream(err)
	}
	return out, nil
}
