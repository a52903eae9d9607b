package access

import (
	"testing"

	"github.com/iliyamo/form-builder/internal/model"
)

func owner() *model.User { return &model.User{ID: 1, Email: "owner@x.com"} }

func template(vis model.Visibility, archived bool, shares ...model.Share) *model.Template {
	return &model.Template{
		ID:         7,
		OwnerID:    1,
		Title:      "Customer feedback",
		Visibility: vis,
		Archived:   archived,
		Shares:     shares,
	}
}

func TestOwnerAllowedEverything(t *testing.T) {
	tpl := template(model.VisibilityPrivate, true)
	for _, a := range []Action{View, Respond, Edit, Delete, Share, ViewResponses} {
		if d := Authorize(tpl, owner(), a); !d.Allowed {
			t.Fatalf("owner denied %s: %q", a, d.Reason)
		}
	}
}

func TestOwnerOnlyActionsNeverGrantable(t *testing.T) {
	// Even an edit-level share must not unlock delete, share or
	// response listing.
	grantee := &model.User{ID: 2, Email: "b@x.com"}
	tpl := template(model.VisibilityPublic, false,
		model.Share{GranteeEmail: "b@x.com", GranteeUserID: 2, Level: model.ShareEdit})
	for _, a := range []Action{Delete, Share, ViewResponses} {
		d := Authorize(tpl, grantee, a)
		if d.Allowed {
			t.Fatalf("%s allowed for non-owner", a)
		}
		if d.Reason != "owner-only action" {
			t.Fatalf("%s reason = %q, want owner-only action", a, d.Reason)
		}
	}
}

func TestPublicTemplateOpenToAnonymous(t *testing.T) {
	tpl := template(model.VisibilityPublic, false)
	if d := Authorize(tpl, nil, View); !d.Allowed {
		t.Fatalf("anonymous view denied: %q", d.Reason)
	}
	if d := Authorize(tpl, nil, Respond); !d.Allowed {
		t.Fatalf("anonymous respond denied: %q", d.Reason)
	}
	if d := Authorize(tpl, nil, Edit); d.Allowed {
		t.Fatal("anonymous edit allowed on public template")
	}
}

func TestPrivateTemplateDeniedToAnonymous(t *testing.T) {
	tpl := template(model.VisibilityPrivate, false)
	for _, a := range []Action{View, Respond, Edit} {
		if d := Authorize(tpl, nil, a); d.Allowed {
			t.Fatalf("anonymous %s allowed on private template", a)
		}
	}
}

func TestArchivedBlocksNonOwnerView(t *testing.T) {
	tpl := template(model.VisibilityPrivate, true,
		model.Share{GranteeEmail: "b@x.com", Level: model.ShareView})
	grantee := &model.User{ID: 2, Email: "b@x.com"}

	d := Authorize(tpl, grantee, View)
	if d.Allowed {
		t.Fatal("view allowed on archived template for non-owner")
	}
	if d.Reason != "archived" {
		t.Fatalf("reason = %q, want archived", d.Reason)
	}
	if d := Authorize(tpl, owner(), View); !d.Allowed {
		t.Fatalf("owner view denied on archived template: %q", d.Reason)
	}
}

func TestShareLevels(t *testing.T) {
	grantee := &model.User{ID: 2, Email: "b@x.com"}
	cases := []struct {
		level   model.ShareLevel
		view    bool
		respond bool
		edit    bool
	}{
		{model.ShareView, true, false, false},
		{model.ShareRespond, true, true, false},
		{model.ShareEdit, true, true, true},
	}
	for _, tc := range cases {
		tpl := template(model.VisibilityPrivate, false,
			model.Share{GranteeEmail: "b@x.com", Level: tc.level})
		if got := Authorize(tpl, grantee, View).Allowed; got != tc.view {
			t.Fatalf("level %s: view = %v, want %v", tc.level, got, tc.view)
		}
		if got := Authorize(tpl, grantee, Respond).Allowed; got != tc.respond {
			t.Fatalf("level %s: respond = %v, want %v", tc.level, got, tc.respond)
		}
		if got := Authorize(tpl, grantee, Edit).Allowed; got != tc.edit {
			t.Fatalf("level %s: edit = %v, want %v", tc.level, got, tc.edit)
		}
	}
}

func TestShareMatchesEmailCaseInsensitively(t *testing.T) {
	tpl := template(model.VisibilityPrivate, false,
		model.Share{GranteeEmail: "b@x.com", Level: model.ShareRespond})
	grantee := &model.User{ID: 9, Email: "B@X.COM"}
	if d := Authorize(tpl, grantee, Respond); !d.Allowed {
		t.Fatalf("case-insensitive email match failed: %q", d.Reason)
	}
}

func TestShareMatchesResolvedUserID(t *testing.T) {
	// The grantee registered after the share was created under a
	// different address; the backfilled user id must still match.
	tpl := template(model.VisibilityPrivate, false,
		model.Share{GranteeEmail: "old@x.com", GranteeUserID: 9, Level: model.ShareView})
	grantee := &model.User{ID: 9, Email: "new@x.com"}
	if d := Authorize(tpl, grantee, View); !d.Allowed {
		t.Fatalf("user id match failed: %q", d.Reason)
	}
}

func TestStrangerDenied(t *testing.T) {
	tpl := template(model.VisibilityPrivate, false,
		model.Share{GranteeEmail: "b@x.com", Level: model.ShareEdit})
	stranger := &model.User{ID: 42, Email: "c@x.com"}
	for _, a := range []Action{View, Respond, Edit} {
		d := Authorize(tpl, stranger, a)
		if d.Allowed {
			t.Fatalf("stranger %s allowed", a)
		}
		if d.Reason != "access denied" {
			t.Fatalf("stranger %s reason = %q, want access denied", a, d.Reason)
		}
	}
}
