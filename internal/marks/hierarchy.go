package marks

import (
	"fmt"
	"time"

	"marks-go/internal/model"
)

// maxFolderDepth bounds every parent-chain walk. A chain longer than this
// means the hierarchy is corrupt (or an input is pathological); walks fail
// instead of looping.
const maxFolderDepth = 128

// ancestors returns the parent chain starting at folder itself and ending
// at its root. The forest is kept acyclic by validateMove, so the walk
// always terminates within maxFolderDepth.
func ancestors(tx Tx, folder *model.Folder) ([]*model.Folder, error) {
	chain := make([]*model.Folder, 0, 8)
	cur := folder
	for {
		chain = append(chain, cur)
		if len(chain) > maxFolderDepth {
			return nil, fmt.Errorf("folder %s: ancestor chain exceeds max depth %d", folder.ID, maxFolderDepth)
		}
		if cur.ParentID == nil {
			return chain, nil
		}
		parent, err := tx.GetFolder(*cur.ParentID)
		if err != nil {
			return nil, fmt.Errorf("loading parent of folder %s: %w", cur.ID, err)
		}
		if parent == nil {
			return nil, fmt.Errorf("folder %s references missing parent %s", cur.ID, *cur.ParentID)
		}
		cur = parent
	}
}

// validateMove checks that folder may be reparented under newParent.
// A nil newParent (move to root) is always structurally valid. Fails with
// CrossOwnerError when owners differ and CycleError when newParent is the
// folder itself or one of its descendants.
func validateMove(tx Tx, folder *model.Folder, newParent *model.Folder) error {
	if newParent == nil {
		return nil
	}
	if newParent.OwnerID != folder.OwnerID {
		return &CrossOwnerError{FolderID: folder.ID, NewParentID: newParent.ID}
	}
	if newParent.ID == folder.ID {
		return &CycleError{FolderID: folder.ID, NewParentID: newParent.ID}
	}
	// newParent is a descendant of folder exactly when folder appears in
	// newParent's ancestor chain.
	chain, err := ancestors(tx, newParent)
	if err != nil {
		return err
	}
	for _, a := range chain {
		if a.ID == folder.ID {
			return &CycleError{FolderID: folder.ID, NewParentID: newParent.ID}
		}
	}
	return nil
}

// subtree collects folder and all of its descendants breadth-first,
// deleted nodes included.
func subtree(tx Tx, root *model.Folder) ([]*model.Folder, error) {
	nodes := []*model.Folder{root}
	for i := 0; i < len(nodes); i++ {
		children, err := tx.FolderChildren(nodes[i].OwnerID, &nodes[i].ID)
		if err != nil {
			return nil, fmt.Errorf("loading children of folder %s: %w", nodes[i].ID, err)
		}
		nodes = append(nodes, children...)
	}
	return nodes, nil
}

// softDeleteSubtree tombstones folder and every live descendant, stamping
// all of them with the single timestamp at. A folder that is already
// deleted is left alone, so the whole call is idempotent and descendants
// that were tombstoned earlier keep their original deletion time.
func softDeleteSubtree(tx Tx, folder *model.Folder, at time.Time) error {
	if folder.Deleted {
		return nil
	}
	nodes, err := subtree(tx, folder)
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if !n.Deleted {
			ids = append(ids, n.ID)
		}
	}
	return tx.SetFoldersDeleted(ids, true, &at)
}

// restoreFolder clears the tombstone on folder. Restoring under a parent
// that is itself still deleted fails with OrphanedParentError. Without
// cascade only the folder itself is restored and its children stay
// deleted; with cascade the whole subtree comes back.
func restoreFolder(tx Tx, folder *model.Folder, cascade bool) error {
	if !folder.Deleted {
		return nil
	}
	if folder.ParentID != nil {
		parent, err := tx.GetFolder(*folder.ParentID)
		if err != nil {
			return fmt.Errorf("loading parent of folder %s: %w", folder.ID, err)
		}
		if parent == nil {
			return fmt.Errorf("folder %s references missing parent %s", folder.ID, *folder.ParentID)
		}
		if parent.Deleted {
			return &OrphanedParentError{FolderID: folder.ID, ParentID: parent.ID}
		}
	}

	if !cascade {
		return tx.SetFoldersDeleted([]string{folder.ID}, false, nil)
	}

	nodes, err := subtree(tx, folder)
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if n.Deleted {
			ids = append(ids, n.ID)
		}
	}
	return tx.SetFoldersDeleted(ids, false, nil)
}
