package marks_test

import (
	"context"
	"errors"
	"testing"

	"marks-go/internal/marks"
	"marks-go/internal/model"
	"marks-go/internal/testutil"
)

// getFolder reads a folder straight from the store, tombstoned or not.
func getFolder(t *testing.T, store marks.Store, id string) *model.Folder {
	t.Helper()
	var f *model.Folder
	err := store.ReadTx(context.Background(), func(tx marks.Tx) (err error) {
		f, err = tx.GetFolder(id)
		return err
	})
	if err != nil {
		t.Fatalf("loading folder %s: %v", id, err)
	}
	if f == nil {
		t.Fatalf("folder %s not found", id)
	}
	return f
}

func TestMoveFolder(t *testing.T) {
	ctx := context.Background()
	svc, store := testutil.NewTestService(t)

	owner := testutil.MustCreateUser(t, svc, "owner@example.com")
	other := testutil.MustCreateUser(t, svc, "other@example.com")

	root, err := svc.CreateFolder(ctx, owner.ID, "root", nil)
	if err != nil {
		t.Fatal(err)
	}
	child, err := svc.CreateFolder(ctx, owner.ID, "child", &root.ID)
	if err != nil {
		t.Fatal(err)
	}
	grandchild, err := svc.CreateFolder(ctx, owner.ID, "grandchild", &child.ID)
	if err != nil {
		t.Fatal(err)
	}

	t.Run("move under own descendant fails", func(t *testing.T) {
		err := svc.MoveFolder(ctx, owner.ID, root.ID, &grandchild.ID)
		var cycleErr *marks.CycleError
		if !errors.As(err, &cycleErr) {
			t.Fatalf("got %v, want CycleError", err)
		}
		if cycleErr.FolderID != root.ID {
			t.Errorf("CycleError.FolderID = %s, want %s", cycleErr.FolderID, root.ID)
		}
	})

	t.Run("move under itself fails", func(t *testing.T) {
		err := svc.MoveFolder(ctx, owner.ID, child.ID, &child.ID)
		var cycleErr *marks.CycleError
		if !errors.As(err, &cycleErr) {
			t.Fatalf("got %v, want CycleError", err)
		}
	})

	t.Run("move across owners fails", func(t *testing.T) {
		foreign, err := svc.CreateFolder(ctx, other.ID, "foreign", nil)
		if err != nil {
			t.Fatal(err)
		}
		// other needs Edit on child to attempt the move at all.
		if err := svc.GrantRole(ctx, owner.ID, model.ResourceFolder, child.ID, other.ID, model.RoleEdit); err != nil {
			t.Fatal(err)
		}
		moveErr := svc.MoveFolder(ctx, other.ID, child.ID, &foreign.ID)
		var ownerErr *marks.CrossOwnerError
		if !errors.As(moveErr, &ownerErr) {
			t.Fatalf("got %v, want CrossOwnerError", moveErr)
		}
	})

	t.Run("valid reparent succeeds", func(t *testing.T) {
		if err := svc.MoveFolder(ctx, owner.ID, grandchild.ID, &root.ID); err != nil {
			t.Fatal(err)
		}
		f := getFolder(t, store, grandchild.ID)
		if f.ParentID == nil || *f.ParentID != root.ID {
			t.Errorf("grandchild parent = %v, want %s", f.ParentID, root.ID)
		}
	})

	t.Run("move to root", func(t *testing.T) {
		if err := svc.MoveFolder(ctx, owner.ID, child.ID, nil); err != nil {
			t.Fatal(err)
		}
	})

	t.Run("move to duplicate sibling name fails", func(t *testing.T) {
		if _, err := svc.CreateFolder(ctx, owner.ID, "child", &root.ID); err != nil {
			t.Fatal(err)
		}
		// child now lives at the root; moving it back collides with the
		// folder created above.
		err := svc.MoveFolder(ctx, owner.ID, child.ID, &root.ID)
		if !errors.Is(err, marks.ErrDuplicateName) {
			t.Errorf("got %v, want ErrDuplicateName", err)
		}
	})
}

func TestSoftDeleteCascade(t *testing.T) {
	ctx := context.Background()
	svc, store := testutil.NewTestService(t)

	owner := testutil.MustCreateUser(t, svc, "owner@example.com")
	root, err := svc.CreateFolder(ctx, owner.ID, "root", nil)
	if err != nil {
		t.Fatal(err)
	}
	child, err := svc.CreateFolder(ctx, owner.ID, "child", &root.ID)
	if err != nil {
		t.Fatal(err)
	}
	grandchild, err := svc.CreateFolder(ctx, owner.ID, "grandchild", &child.ID)
	if err != nil {
		t.Fatal(err)
	}
	sibling, err := svc.CreateFolder(ctx, owner.ID, "sibling", nil)
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.SoftDeleteFolder(ctx, owner.ID, root.ID); err != nil {
		t.Fatal(err)
	}

	t.Run("whole subtree is tombstoned with one timestamp", func(t *testing.T) {
		for _, id := range []string{root.ID, child.ID, grandchild.ID} {
			f := getFolder(t, store, id)
			if !f.Deleted {
				t.Errorf("folder %s should be deleted", id)
			}
			if f.DeletedAt == nil || !f.DeletedAt.Equal(testutil.SeedTime) {
				t.Errorf("folder %s deleted_at = %v, want %v", id, f.DeletedAt, testutil.SeedTime)
			}
		}
	})

	t.Run("unrelated folders are untouched", func(t *testing.T) {
		if f := getFolder(t, store, sibling.ID); f.Deleted {
			t.Error("sibling should not be deleted")
		}
	})

	t.Run("deleting again is a no-op", func(t *testing.T) {
		if err := svc.SoftDeleteFolder(ctx, owner.ID, root.ID); err != nil {
			t.Errorf("second delete: %v", err)
		}
	})

	t.Run("deleted folders are not found", func(t *testing.T) {
		err := svc.CheckPermission(ctx, owner.ID, model.ResourceFolder, child.ID, model.RoleView)
		if !errors.Is(err, marks.ErrNotFound) {
			t.Errorf("got %v, want ErrNotFound", err)
		}
	})
}

func TestRestoreFolder(t *testing.T) {
	ctx := context.Background()
	svc, store := testutil.NewTestService(t)

	owner := testutil.MustCreateUser(t, svc, "owner@example.com")
	root, err := svc.CreateFolder(ctx, owner.ID, "root", nil)
	if err != nil {
		t.Fatal(err)
	}
	child, err := svc.CreateFolder(ctx, owner.ID, "child", &root.ID)
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.SoftDeleteFolder(ctx, owner.ID, root.ID); err != nil {
		t.Fatal(err)
	}

	t.Run("restore under deleted parent fails", func(t *testing.T) {
		err := svc.RestoreFolder(ctx, owner.ID, child.ID, false)
		var orphanErr *marks.OrphanedParentError
		if !errors.As(err, &orphanErr) {
			t.Fatalf("got %v, want OrphanedParentError", err)
		}
		if orphanErr.ParentID != root.ID {
			t.Errorf("OrphanedParentError.ParentID = %s, want %s", orphanErr.ParentID, root.ID)
		}
	})

	t.Run("restore without cascade leaves children deleted", func(t *testing.T) {
		if err := svc.RestoreFolder(ctx, owner.ID, root.ID, false); err != nil {
			t.Fatal(err)
		}
		if f := getFolder(t, store, root.ID); f.Deleted {
			t.Error("root should be live")
		}
		if f := getFolder(t, store, child.ID); !f.Deleted {
			t.Error("child should still be deleted")
		}
	})

	t.Run("restore child once parent is live", func(t *testing.T) {
		if err := svc.RestoreFolder(ctx, owner.ID, child.ID, false); err != nil {
			t.Fatal(err)
		}
		f := getFolder(t, store, child.ID)
		if f.Deleted || f.DeletedAt != nil {
			t.Errorf("child should be live with cleared deleted_at, got %+v", f)
		}
	})

	t.Run("cascade restore brings back the subtree", func(t *testing.T) {
		if err := svc.SoftDeleteFolder(ctx, owner.ID, root.ID); err != nil {
			t.Fatal(err)
		}
		if err := svc.RestoreFolder(ctx, owner.ID, root.ID, true); err != nil {
			t.Fatal(err)
		}
		for _, id := range []string{root.ID, child.ID} {
			if f := getFolder(t, store, id); f.Deleted {
				t.Errorf("folder %s should be live after cascade restore", id)
			}
		}
	})

	t.Run("restore into taken name fails", func(t *testing.T) {
		if err := svc.SoftDeleteFolder(ctx, owner.ID, root.ID); err != nil {
			t.Fatal(err)
		}
		if _, err := svc.CreateFolder(ctx, owner.ID, "root", nil); err != nil {
			t.Fatal(err)
		}
		err := svc.RestoreFolder(ctx, owner.ID, root.ID, false)
		if !errors.Is(err, marks.ErrDuplicateName) {
			t.Errorf("got %v, want ErrDuplicateName", err)
		}
	})
}
