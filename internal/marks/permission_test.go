package marks_test

import (
	"context"
	"errors"
	"testing"

	"marks-go/internal/marks"
	"marks-go/internal/model"
	"marks-go/internal/testutil"
)

func TestFolderRoleResolution(t *testing.T) {
	ctx := context.Background()
	svc, _ := testutil.NewTestService(t)

	owner := testutil.MustCreateUser(t, svc, "owner@example.com")
	reader := testutil.MustCreateUser(t, svc, "reader@example.com")

	root, err := svc.CreateFolder(ctx, owner.ID, "root", nil)
	if err != nil {
		t.Fatal(err)
	}
	sub, err := svc.CreateFolder(ctx, owner.ID, "sub", &root.ID)
	if err != nil {
		t.Fatal(err)
	}

	t.Run("owner is always admin", func(t *testing.T) {
		role, err := svc.EffectiveRole(ctx, owner.ID, model.ResourceFolder, sub.ID)
		if err != nil {
			t.Fatal(err)
		}
		if role != model.RoleAdmin {
			t.Errorf("owner role = %s, want admin", role)
		}
	})

	t.Run("no grant means no access", func(t *testing.T) {
		role, err := svc.EffectiveRole(ctx, reader.ID, model.ResourceFolder, sub.ID)
		if err != nil {
			t.Fatal(err)
		}
		if role != model.RoleNone {
			t.Errorf("role = %s, want none", role)
		}
	})

	t.Run("grants inherit down the chain", func(t *testing.T) {
		if err := svc.GrantRole(ctx, owner.ID, model.ResourceFolder, root.ID, reader.ID, model.RoleView); err != nil {
			t.Fatal(err)
		}
		role, err := svc.EffectiveRole(ctx, reader.ID, model.ResourceFolder, sub.ID)
		if err != nil {
			t.Fatal(err)
		}
		if role != model.RoleView {
			t.Errorf("inherited role on sub = %s, want view", role)
		}
	})

	t.Run("nearest grant wins", func(t *testing.T) {
		// reader holds View on root; an Edit grant directly on sub
		// overrides it there but not above.
		if err := svc.GrantRole(ctx, owner.ID, model.ResourceFolder, sub.ID, reader.ID, model.RoleEdit); err != nil {
			t.Fatal(err)
		}
		role, err := svc.EffectiveRole(ctx, reader.ID, model.ResourceFolder, sub.ID)
		if err != nil {
			t.Fatal(err)
		}
		if role != model.RoleEdit {
			t.Errorf("role on sub = %s, want edit", role)
		}
		role, err = svc.EffectiveRole(ctx, reader.ID, model.ResourceFolder, root.ID)
		if err != nil {
			t.Fatal(err)
		}
		if role != model.RoleView {
			t.Errorf("role on root = %s, want view", role)
		}
	})

	t.Run("nearest grant can narrow access", func(t *testing.T) {
		// A View grant on a subfolder shadows an Edit grant further up.
		editor := testutil.MustCreateUser(t, svc, "editor@example.com")
		if err := svc.GrantRole(ctx, owner.ID, model.ResourceFolder, root.ID, editor.ID, model.RoleEdit); err != nil {
			t.Fatal(err)
		}
		if err := svc.GrantRole(ctx, owner.ID, model.ResourceFolder, sub.ID, editor.ID, model.RoleView); err != nil {
			t.Fatal(err)
		}
		role, err := svc.EffectiveRole(ctx, editor.ID, model.ResourceFolder, sub.ID)
		if err != nil {
			t.Fatal(err)
		}
		if role != model.RoleView {
			t.Errorf("role on sub = %s, want view", role)
		}
	})

	t.Run("anonymous callers never see folders", func(t *testing.T) {
		role, err := svc.EffectiveRole(ctx, marks.AnonymousUser, model.ResourceFolder, root.ID)
		if err != nil {
			t.Fatal(err)
		}
		if role != model.RoleNone {
			t.Errorf("anonymous role = %s, want none", role)
		}
	})
}

func TestCollectionRoleResolution(t *testing.T) {
	ctx := context.Background()
	svc, _ := testutil.NewTestService(t)

	owner := testutil.MustCreateUser(t, svc, "owner@example.com")
	other := testutil.MustCreateUser(t, svc, "other@example.com")

	c, err := svc.CreateCollection(ctx, owner.ID, "reading list")
	if err != nil {
		t.Fatal(err)
	}

	t.Run("direct grant applies", func(t *testing.T) {
		if err := svc.GrantRole(ctx, owner.ID, model.ResourceCollection, c.ID, other.ID, model.RoleEdit); err != nil {
			t.Fatal(err)
		}
		role, err := svc.EffectiveRole(ctx, other.ID, model.ResourceCollection, c.ID)
		if err != nil {
			t.Fatal(err)
		}
		if role != model.RoleEdit {
			t.Errorf("role = %s, want edit", role)
		}
	})

	t.Run("public grants view to anyone for reads", func(t *testing.T) {
		stranger := testutil.MustCreateUser(t, svc, "stranger@example.com")
		if _, err := svc.ShareCollection(ctx, owner.ID, c.ID); err != nil {
			t.Fatal(err)
		}
		for _, userID := range []string{marks.AnonymousUser, stranger.ID} {
			if err := svc.CheckPermission(ctx, userID, model.ResourceCollection, c.ID, model.RoleView); err != nil {
				t.Errorf("view check for %q: %v", userID, err)
			}
		}
	})

	t.Run("public access never satisfies writes", func(t *testing.T) {
		err := svc.CheckPermission(ctx, marks.AnonymousUser, model.ResourceCollection, c.ID, model.RoleEdit)
		if !errors.Is(err, marks.ErrPermissionDenied) {
			t.Errorf("got %v, want ErrPermissionDenied", err)
		}
	})

	t.Run("deleted collection resolves to not found", func(t *testing.T) {
		if err := svc.SoftDeleteCollection(ctx, owner.ID, c.ID); err != nil {
			t.Fatal(err)
		}
		err := svc.CheckPermission(ctx, owner.ID, model.ResourceCollection, c.ID, model.RoleView)
		if !errors.Is(err, marks.ErrNotFound) {
			t.Errorf("got %v, want ErrNotFound", err)
		}
	})
}

func TestBookmarkRoleResolution(t *testing.T) {
	ctx := context.Background()
	svc, _ := testutil.NewTestService(t)

	owner := testutil.MustCreateUser(t, svc, "owner@example.com")
	other := testutil.MustCreateUser(t, svc, "other@example.com")

	b, err := svc.CreateBookmark(ctx, owner.ID, "example", "https://example.com")
	if err != nil {
		t.Fatal(err)
	}

	t.Run("bookmark owner is admin", func(t *testing.T) {
		role, err := svc.EffectiveRole(ctx, owner.ID, model.ResourceBookmark, b.ID)
		if err != nil {
			t.Fatal(err)
		}
		if role != model.RoleAdmin {
			t.Errorf("owner role = %s, want admin", role)
		}
	})

	t.Run("unfiled bookmark is invisible to others", func(t *testing.T) {
		role, err := svc.EffectiveRole(ctx, other.ID, model.ResourceBookmark, b.ID)
		if err != nil {
			t.Fatal(err)
		}
		if role != model.RoleNone {
			t.Errorf("role = %s, want none", role)
		}
	})

	var sharedList *model.Collection

	t.Run("highest container role governs", func(t *testing.T) {
		// View via a shared folder, Edit via a shared collection: the
		// bookmark resolves to the maximum of the two.
		f, err := svc.CreateFolder(ctx, owner.ID, "shared", nil)
		if err != nil {
			t.Fatal(err)
		}
		if err := svc.GrantRole(ctx, owner.ID, model.ResourceFolder, f.ID, other.ID, model.RoleView); err != nil {
			t.Fatal(err)
		}
		if err := svc.AddBookmarkToFolder(ctx, owner.ID, f.ID, b.ID); err != nil {
			t.Fatal(err)
		}

		role, err := svc.EffectiveRole(ctx, other.ID, model.ResourceBookmark, b.ID)
		if err != nil {
			t.Fatal(err)
		}
		if role != model.RoleView {
			t.Fatalf("role via folder = %s, want view", role)
		}

		c, err := svc.CreateCollection(ctx, owner.ID, "shared list")
		if err != nil {
			t.Fatal(err)
		}
		sharedList = c
		if err := svc.GrantRole(ctx, owner.ID, model.ResourceCollection, c.ID, other.ID, model.RoleEdit); err != nil {
			t.Fatal(err)
		}
		if _, err := svc.InsertIntoCollection(ctx, owner.ID, c.ID, b.ID, nil); err != nil {
			t.Fatal(err)
		}

		role, err = svc.EffectiveRole(ctx, other.ID, model.ResourceBookmark, b.ID)
		if err != nil {
			t.Fatal(err)
		}
		if role != model.RoleEdit {
			t.Errorf("role via both containers = %s, want edit", role)
		}
	})

	t.Run("deleted container stops conferring access", func(t *testing.T) {
		// Tombstone the collection that granted Edit; access falls back to
		// the folder's View.
		if sharedList == nil {
			t.Skip("container setup did not run")
		}
		if err := svc.SoftDeleteCollection(ctx, owner.ID, sharedList.ID); err != nil {
			t.Fatal(err)
		}
		role, err := svc.EffectiveRole(ctx, other.ID, model.ResourceBookmark, b.ID)
		if err != nil {
			t.Fatal(err)
		}
		if role != model.RoleView {
			t.Errorf("role after container deletion = %s, want view", role)
		}
	})
}
