package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/iliyamo/form-builder/internal/model"
	"github.com/iliyamo/form-builder/internal/queue"
)

type stubResponseStore struct {
	responses []*model.Response
	nextID    uint64
}

func (s *stubResponseStore) Insert(_ context.Context, resp *model.Response) error {
	s.nextID++
	resp.ID = s.nextID
	resp.CreatedAt = time.Now().UTC()
	cp := *resp
	s.responses = append(s.responses, &cp)
	return nil
}

func (s *stubResponseStore) ListByTemplate(_ context.Context, templateID uint64) ([]*model.Response, error) {
	var out []*model.Response
	// Newest-first, matching the repository ordering.
	for i := len(s.responses) - 1; i >= 0; i-- {
		if s.responses[i].TemplateID == templateID {
			out = append(out, s.responses[i])
		}
	}
	return out, nil
}

func newResponseFixture(t *testing.T) (*TemplateService, *ResponseService, *stubResponseStore, *stubTemplateStore) {
	t.Helper()
	templates := newStubTemplateStore()
	responses := &stubResponseStore{}
	tplSvc := newTemplateService(templates)
	respSvc := NewResponseService(templates, responses)
	respSvc.publish = func(context.Context, queue.ResponseSubmittedEvent) error { return nil }
	return tplSvc, respSvc, responses, templates
}

func TestSubmitLifecycleScenario(t *testing.T) {
	// Draft template: anonymous submissions are rejected. After
	// publish they succeed with a nil respondent; after archive they
	// are rejected again.
	templates := newStubTemplateStore()
	responses := &stubResponseStore{}
	tplSvc := newTemplateService(templates)
	respSvc := NewResponseService(templates, responses)
	var events []queue.ResponseSubmittedEvent
	respSvc.publish = func(_ context.Context, ev queue.ResponseSubmittedEvent) error {
		events = append(events, ev)
		return nil
	}
	ctx := context.Background()

	tpl := mustCreate(t, tplSvc, alice, model.Question{Type: model.QuestionText, Label: "Name"})
	if _, err := tplSvc.Share(ctx, alice, tpl.ID, "b@x.com", model.ShareRespond); err != nil {
		t.Fatalf("share: %v", err)
	}
	qid := templates.templates[tpl.ID].Questions[0].ID
	answers := map[string]any{qid: "Ada"}

	if _, err := respSvc.Submit(ctx, nil, tpl.ID, answers); !errors.Is(err, ErrForbidden) {
		t.Fatalf("anonymous submit to draft: err = %v, want ErrForbidden", err)
	}

	if _, err := tplSvc.Publish(ctx, alice, tpl.ID); err != nil {
		t.Fatalf("publish: %v", err)
	}
	resp, err := respSvc.Submit(ctx, nil, tpl.ID, answers)
	if err != nil {
		t.Fatalf("anonymous submit to published: %v", err)
	}
	if resp.RespondentID != nil {
		t.Fatalf("respondent = %v, want nil for anonymous", *resp.RespondentID)
	}

	if err := tplSvc.Delete(ctx, alice, tpl.ID); err != nil {
		t.Fatalf("archive: %v", err)
	}
	if got := templates.templates[tpl.ID].Visibility; got != model.VisibilityPrivate {
		t.Fatalf("visibility after archive = %s, want private", got)
	}
	if _, err := respSvc.Submit(ctx, nil, tpl.ID, answers); !errors.Is(err, ErrForbidden) {
		t.Fatalf("anonymous submit to archived: err = %v, want ErrForbidden", err)
	}

	if len(events) != 1 {
		t.Fatalf("events published = %d, want 1", len(events))
	}
	if !events[0].Anonymous || events[0].TemplateID != tpl.ID {
		t.Fatalf("event = %+v, want anonymous event for template %d", events[0], tpl.ID)
	}
}

func TestSubmitRequiresRequiredAnswers(t *testing.T) {
	tplSvc, respSvc, store, templates := newResponseFixture(t)
	ctx := context.Background()

	tpl := mustCreate(t, tplSvc, alice,
		model.Question{Type: model.QuestionText, Label: "Name", Required: true},
		model.Question{Type: model.QuestionNumber, Label: "Age"})
	if _, err := tplSvc.Publish(ctx, alice, tpl.ID); err != nil {
		t.Fatalf("publish: %v", err)
	}
	qs := templates.templates[tpl.ID].Questions

	if _, err := respSvc.Submit(ctx, nil, tpl.ID, map[string]any{qs[1].ID: 30}); !isValidation(err) {
		t.Fatalf("missing required answer: err = %v, want ValidationError", err)
	}
	if _, err := respSvc.Submit(ctx, nil, tpl.ID, map[string]any{qs[0].ID: ""}); !isValidation(err) {
		t.Fatalf("empty required answer: err = %v, want ValidationError", err)
	}
	if _, err := respSvc.Submit(ctx, nil, tpl.ID, map[string]any{qs[0].ID: "Ada"}); err != nil {
		t.Fatalf("valid submit: %v", err)
	}
	if len(store.responses) != 1 {
		t.Fatalf("responses stored = %d, want 1", len(store.responses))
	}
}

func TestSubmitDropsUnknownAnswerKeys(t *testing.T) {
	tplSvc, respSvc, store, templates := newResponseFixture(t)
	ctx := context.Background()

	tpl := mustCreate(t, tplSvc, alice, model.Question{Type: model.QuestionText, Label: "Name"})
	if _, err := tplSvc.Publish(ctx, alice, tpl.ID); err != nil {
		t.Fatalf("publish: %v", err)
	}
	qid := templates.templates[tpl.ID].Questions[0].ID

	if _, err := respSvc.Submit(ctx, nil, tpl.ID, map[string]any{qid: "Ada", "bogus": "x"}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	got := store.responses[0].Answers
	if len(got) != 1 || got[qid] != "Ada" {
		t.Fatalf("stored answers = %v, want only %q", got, qid)
	}
}

func TestSubmitByRespondGranteeOnPrivateTemplate(t *testing.T) {
	tplSvc, respSvc, store, _ := newResponseFixture(t)
	ctx := context.Background()

	tpl := mustCreate(t, tplSvc, alice)
	if _, err := tplSvc.Share(ctx, alice, tpl.ID, "b@x.com", model.ShareRespond); err != nil {
		t.Fatalf("share: %v", err)
	}

	resp, err := respSvc.Submit(ctx, bob, tpl.ID, map[string]any{})
	if err != nil {
		t.Fatalf("grantee submit: %v", err)
	}
	if resp.RespondentID == nil || *resp.RespondentID != bob.ID {
		t.Fatalf("respondent = %v, want %d", resp.RespondentID, bob.ID)
	}
	if len(store.responses) != 1 {
		t.Fatalf("responses stored = %d, want 1", len(store.responses))
	}
}

func TestListResponsesIsOwnerOnly(t *testing.T) {
	tplSvc, respSvc, _, _ := newResponseFixture(t)
	ctx := context.Background()

	tpl := mustCreate(t, tplSvc, alice)
	if _, err := tplSvc.Share(ctx, alice, tpl.ID, "b@x.com", model.ShareEdit); err != nil {
		t.Fatalf("share: %v", err)
	}
	if _, err := tplSvc.Publish(ctx, alice, tpl.ID); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if _, err := respSvc.Submit(ctx, nil, tpl.ID, map[string]any{}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	if _, err := respSvc.List(ctx, bob, tpl.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("edit grantee list: err = %v, want ErrForbidden", err)
	}
	if _, err := respSvc.List(ctx, nil, tpl.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("anonymous list: err = %v, want ErrForbidden", err)
	}
	got, err := respSvc.List(ctx, alice, tpl.ID)
	if err != nil {
		t.Fatalf("owner list: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("responses listed = %d, want 1", len(got))
	}
}

func TestListResponsesNewestFirst(t *testing.T) {
	tplSvc, respSvc, _, _ := newResponseFixture(t)
	ctx := context.Background()

	tpl := mustCreate(t, tplSvc, alice)
	if _, err := tplSvc.Publish(ctx, alice, tpl.ID); err != nil {
		t.Fatalf("publish: %v", err)
	}
	first, err := respSvc.Submit(ctx, bob, tpl.ID, map[string]any{})
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}
	second, err := respSvc.Submit(ctx, nil, tpl.ID, map[string]any{})
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}

	got, err := respSvc.List(ctx, alice, tpl.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].ID != second.ID || got[1].ID != first.ID {
		t.Fatalf("order = %v, want newest first", []uint64{got[0].ID, got[1].ID})
	}
}
