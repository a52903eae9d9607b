package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/iliyamo/form-builder/internal/model"
	"github.com/iliyamo/form-builder/internal/repository"
)

// stubTemplateStore is an in-memory TemplateStore mirroring the
// repository contract: archive forces visibility private in the same
// write, shares are keyed by grantee email, share links are unique.
type stubTemplateStore struct {
	templates map[uint64]*model.Template
	nextID    uint64
	links     map[string]bool
}

func newStubTemplateStore() *stubTemplateStore {
	return &stubTemplateStore{templates: map[uint64]*model.Template{}, links: map[string]bool{}}
}

func (s *stubTemplateStore) Insert(_ context.Context, t *model.Template) error {
	s.nextID++
	t.ID = s.nextID
	t.CreatedAt = time.Now().UTC()
	t.UpdatedAt = t.CreatedAt
	cp := *t
	s.templates[t.ID] = &cp
	return nil
}

func (s *stubTemplateStore) GetByID(_ context.Context, id uint64) (*model.Template, error) {
	t, ok := s.templates[id]
	if !ok {
		return nil, repository.ErrTemplateNotFound
	}
	cp := *t
	cp.Shares = append([]model.Share(nil), t.Shares...)
	return &cp, nil
}

func (s *stubTemplateStore) GetByShareLink(_ context.Context, token string) (*model.Template, error) {
	for _, t := range s.templates {
		if t.ShareLink == token && token != "" {
			cp := *t
			return &cp, nil
		}
	}
	return nil, repository.ErrTemplateNotFound
}

func (s *stubTemplateStore) ListByOwner(_ context.Context, ownerID uint64, includeArchived bool) ([]*model.Template, error) {
	var out []*model.Template
	for _, t := range s.templates {
		if t.OwnerID == ownerID && (includeArchived || !t.Archived) {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *stubTemplateStore) ListPublic(_ context.Context, search string) ([]*model.Template, error) {
	var out []*model.Template
	for _, t := range s.templates {
		if t.Visibility != model.VisibilityPublic || t.Archived {
			continue
		}
		if search != "" && !strings.Contains(t.Title, search) && !strings.Contains(t.Description, search) {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}

func (s *stubTemplateStore) Update(_ context.Context, t *model.Template) error {
	cur, ok := s.templates[t.ID]
	if !ok {
		return sql.ErrNoRows
	}
	cur.Title = t.Title
	cur.Description = t.Description
	cur.Questions = t.Questions
	cur.Visibility = t.Visibility
	cur.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *stubTemplateStore) Archive(_ context.Context, id uint64) error {
	t, ok := s.templates[id]
	if !ok {
		return sql.ErrNoRows
	}
	t.Archived = true
	t.Visibility = model.VisibilityPrivate
	return nil
}

func (s *stubTemplateStore) UpsertShare(_ context.Context, share model.Share) error {
	t, ok := s.templates[share.TemplateID]
	if !ok {
		return sql.ErrNoRows
	}
	for i := range t.Shares {
		if t.Shares[i].GranteeEmail == share.GranteeEmail {
			t.Shares[i].Level = share.Level
			t.Shares[i].GranteeUserID = share.GranteeUserID
			return nil
		}
	}
	t.Shares = append(t.Shares, share)
	return nil
}

func (s *stubTemplateStore) SetShareLink(_ context.Context, id uint64, token string) error {
	t, ok := s.templates[id]
	if !ok {
		return sql.ErrNoRows
	}
	if t.ShareLink != "" {
		return sql.ErrNoRows
	}
	if s.links[token] {
		return repository.ErrConflict
	}
	t.ShareLink = token
	s.links[token] = true
	return nil
}

// stubDirectory resolves emails to registered users.
type stubDirectory struct {
	byEmail map[string]model.User
}

func (d *stubDirectory) GetByEmail(_ context.Context, email string) (model.User, error) {
	if u, ok := d.byEmail[email]; ok {
		return u, nil
	}
	return model.User{}, sql.ErrNoRows
}

var (
	alice = &model.User{ID: 1, Email: "a@x.com", Role: model.RoleUser}
	bob   = &model.User{ID: 2, Email: "b@x.com", Role: model.RoleUser}
)

func newTemplateService(store *stubTemplateStore) *TemplateService {
	svc := NewTemplateService(store, &stubDirectory{byEmail: map[string]model.User{}})
	n := 0
	svc.newLinkToken = func() string { n++; return "link-" + strings.Repeat("x", n) }
	return svc
}

func mustCreate(t *testing.T, svc *TemplateService, owner *model.User, questions ...model.Question) *model.Template {
	t.Helper()
	tpl, err := svc.Create(context.Background(), owner, TemplateInput{
		Title:     "Customer feedback",
		Questions: questions,
	})
	if err != nil {
		t.Fatalf("create template: %v", err)
	}
	return tpl
}

func TestCreateRequiresAuthenticatedCaller(t *testing.T) {
	svc := newTemplateService(newStubTemplateStore())
	if _, err := svc.Create(context.Background(), nil, TemplateInput{Title: "t"}); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("err = %v, want ErrUnauthenticated", err)
	}
}

func TestCreateValidatesTitleAndChoiceOptions(t *testing.T) {
	svc := newTemplateService(newStubTemplateStore())
	ctx := context.Background()

	if _, err := svc.Create(ctx, alice, TemplateInput{Title: "  "}); !isValidation(err) {
		t.Fatalf("missing title: err = %v, want ValidationError", err)
	}

	radio := model.Question{Type: model.QuestionRadio, Label: "Pick one"}
	if _, err := svc.Create(ctx, alice, TemplateInput{Title: "t", Questions: []model.Question{radio}}); !isValidation(err) {
		t.Fatalf("choice without options: err = %v, want ValidationError", err)
	}

	radio.Options = []string{"a"}
	tpl, err := svc.Create(ctx, alice, TemplateInput{Title: "t", Questions: []model.Question{radio}})
	if err != nil {
		t.Fatalf("choice with options: %v", err)
	}
	if tpl.Visibility != model.VisibilityPrivate || tpl.Archived {
		t.Fatalf("new template state = %s/%v, want private draft", tpl.Visibility, tpl.Archived)
	}
	if tpl.Questions[0].ID == "" {
		t.Fatal("question id was not assigned at save")
	}
}

func TestShareUpsertReplacesLevel(t *testing.T) {
	store := newStubTemplateStore()
	svc := newTemplateService(store)
	ctx := context.Background()
	tpl := mustCreate(t, svc, alice)

	if _, err := svc.Share(ctx, alice, tpl.ID, "B@x.com", model.ShareView); err != nil {
		t.Fatalf("first share: %v", err)
	}
	got, err := svc.Share(ctx, alice, tpl.ID, "b@x.com", model.ShareEdit)
	if err != nil {
		t.Fatalf("re-share: %v", err)
	}
	if len(got.Shares) != 1 {
		t.Fatalf("shares = %d, want 1", len(got.Shares))
	}
	if got.Shares[0].Level != model.ShareEdit || got.Shares[0].GranteeEmail != "b@x.com" {
		t.Fatalf("share = %+v, want edit grant for b@x.com", got.Shares[0])
	}
}

func TestShareResolvesRegisteredGrantee(t *testing.T) {
	store := newStubTemplateStore()
	svc := NewTemplateService(store, &stubDirectory{byEmail: map[string]model.User{
		"b@x.com": *bob,
	}})
	tpl := mustCreate(t, svc, alice)

	got, err := svc.Share(context.Background(), alice, tpl.ID, "b@x.com", model.ShareRespond)
	if err != nil {
		t.Fatalf("share: %v", err)
	}
	if got.Shares[0].GranteeUserID != bob.ID {
		t.Fatalf("grantee user id = %d, want %d", got.Shares[0].GranteeUserID, bob.ID)
	}
}

func TestShareIsOwnerOnly(t *testing.T) {
	store := newStubTemplateStore()
	svc := newTemplateService(store)
	ctx := context.Background()
	tpl := mustCreate(t, svc, alice)
	if _, err := svc.Share(ctx, alice, tpl.ID, "b@x.com", model.ShareEdit); err != nil {
		t.Fatalf("owner share: %v", err)
	}

	// Even an edit grantee cannot re-share.
	if _, err := svc.Share(ctx, bob, tpl.ID, "c@x.com", model.ShareView); !errors.Is(err, ErrForbidden) {
		t.Fatalf("grantee share: err = %v, want ErrForbidden", err)
	}
}

func TestDeleteArchivesAndForcesPrivate(t *testing.T) {
	store := newStubTemplateStore()
	svc := newTemplateService(store)
	ctx := context.Background()
	tpl := mustCreate(t, svc, alice)
	if _, err := svc.Publish(ctx, alice, tpl.ID); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if err := svc.Delete(ctx, bob, tpl.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("non-owner delete: err = %v, want ErrForbidden", err)
	}
	if err := svc.Delete(ctx, alice, tpl.ID); err != nil {
		t.Fatalf("owner delete: %v", err)
	}

	got := store.templates[tpl.ID]
	if !got.Archived {
		t.Fatal("template not archived after delete")
	}
	if got.Visibility != model.VisibilityPrivate {
		t.Fatalf("visibility = %s after archive, want private", got.Visibility)
	}
}

func TestPublishDeniedWhenArchived(t *testing.T) {
	store := newStubTemplateStore()
	svc := newTemplateService(store)
	ctx := context.Background()
	tpl := mustCreate(t, svc, alice)
	if err := svc.Delete(ctx, alice, tpl.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := svc.Publish(ctx, alice, tpl.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("publish archived: err = %v, want ErrForbidden", err)
	}
}

func TestUpdateRequiresEditGrant(t *testing.T) {
	store := newStubTemplateStore()
	svc := newTemplateService(store)
	ctx := context.Background()
	tpl := mustCreate(t, svc, alice)

	title := "Renamed"
	if _, err := svc.Share(ctx, alice, tpl.ID, "b@x.com", model.ShareView); err != nil {
		t.Fatalf("share view: %v", err)
	}
	if _, err := svc.Update(ctx, bob, tpl.ID, TemplatePatch{Title: &title}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("view grantee update: err = %v, want ErrForbidden", err)
	}

	if _, err := svc.Share(ctx, alice, tpl.ID, "b@x.com", model.ShareEdit); err != nil {
		t.Fatalf("re-share edit: %v", err)
	}
	got, err := svc.Update(ctx, bob, tpl.ID, TemplatePatch{Title: &title})
	if err != nil {
		t.Fatalf("edit grantee update: %v", err)
	}
	if got.Title != "Renamed" {
		t.Fatalf("title = %q, want Renamed", got.Title)
	}
}

func TestMintShareLinkStableOnceMinted(t *testing.T) {
	store := newStubTemplateStore()
	svc := newTemplateService(store)
	ctx := context.Background()
	tpl := mustCreate(t, svc, alice)

	first, err := svc.MintShareLink(ctx, alice, tpl.ID)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	second, err := svc.MintShareLink(ctx, alice, tpl.ID)
	if err != nil {
		t.Fatalf("second mint: %v", err)
	}
	if first == "" || first != second {
		t.Fatalf("tokens = %q / %q, want one stable token", first, second)
	}

	if _, err := svc.MintShareLink(ctx, bob, tpl.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("non-owner mint: err = %v, want ErrForbidden", err)
	}
}

func TestMintShareLinkRetriesCollisionOnce(t *testing.T) {
	store := newStubTemplateStore()
	svc := newTemplateService(store)
	ctx := context.Background()
	other := mustCreate(t, svc, alice)
	tpl := mustCreate(t, svc, alice)

	// Occupy a token, then force the generator to emit it first.
	taken, err := svc.MintShareLink(ctx, alice, other.ID)
	if err != nil {
		t.Fatalf("mint other: %v", err)
	}
	calls := 0
	svc.newLinkToken = func() string {
		calls++
		if calls == 1 {
			return taken
		}
		return "fresh-token"
	}
	got, err := svc.MintShareLink(ctx, alice, tpl.ID)
	if err != nil {
		t.Fatalf("mint with collision: %v", err)
	}
	if got != "fresh-token" {
		t.Fatalf("token = %q, want fresh-token", got)
	}

	// A generator that only collides surfaces ErrConflict.
	third := mustCreate(t, svc, alice)
	svc.newLinkToken = func() string { return taken }
	if _, err := svc.MintShareLink(ctx, alice, third.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("persistent collision: err = %v, want ErrConflict", err)
	}
}

func TestGetByShareLinkOpensPrivateTemplate(t *testing.T) {
	store := newStubTemplateStore()
	svc := newTemplateService(store)
	ctx := context.Background()
	tpl := mustCreate(t, svc, alice)
	token, err := svc.MintShareLink(ctx, alice, tpl.ID)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	if _, err := svc.GetByShareLink(ctx, nil, token); err != nil {
		t.Fatalf("anonymous link view: %v", err)
	}

	if err := svc.Delete(ctx, alice, tpl.ID); err != nil {
		t.Fatalf("archive: %v", err)
	}
	if _, err := svc.GetByShareLink(ctx, nil, token); !errors.Is(err, ErrForbidden) {
		t.Fatalf("archived link view: err = %v, want ErrForbidden", err)
	}
	if _, err := svc.GetByShareLink(ctx, alice, token); err != nil {
		t.Fatalf("owner link view after archive: %v", err)
	}
}

func TestGetNotFound(t *testing.T) {
	svc := newTemplateService(newStubTemplateStore())
	if _, err := svc.Get(context.Background(), alice, 99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func isValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
