package marks

import (
	"fmt"

	"marks-go/internal/model"
)

// AnonymousUser is the caller ID for unauthenticated requests. Anonymous
// callers only ever resolve to RoleView, and only on public collections.
const AnonymousUser = ""

// folderRole computes userID's effective role over folder: Admin for the
// owner, otherwise the role of the nearest ancestor (the folder itself
// first) holding a direct grant for the user. The nearest grant wins, so
// an explicit grant on a subfolder overrides a broader grant further up.
func folderRole(tx Tx, userID string, folder *model.Folder) (model.Role, error) {
	if userID == AnonymousUser {
		return model.RoleNone, nil
	}
	if folder.OwnerID == userID {
		return model.RoleAdmin, nil
	}
	chain, err := ancestors(tx, folder)
	if err != nil {
		return model.RoleNone, err
	}
	for _, a := range chain {
		grant, err := tx.GetFolderCollaborator(a.ID, userID)
		if err != nil {
			return model.RoleNone, fmt.Errorf("loading grant on folder %s: %w", a.ID, err)
		}
		if grant != nil {
			return grant.Role, nil
		}
	}
	return model.RoleNone, nil
}

// collectionRole computes userID's effective role over a collection:
// Admin for the owner, otherwise the direct grant if one exists. A public
// collection resolves to View for any other caller, anonymous included,
// but only when the operation is read-shaped (publicRead) and never higher.
func collectionRole(tx Tx, userID string, c *model.Collection, publicRead bool) (model.Role, error) {
	if userID != AnonymousUser {
		if c.OwnerID == userID {
			return model.RoleAdmin, nil
		}
		grant, err := tx.GetCollectionCollaborator(c.ID, userID)
		if err != nil {
			return model.RoleNone, fmt.Errorf("loading grant on collection %s: %w", c.ID, err)
		}
		if grant != nil {
			return grant.Role, nil
		}
	}
	if c.IsPublic && publicRead {
		return model.RoleView, nil
	}
	return model.RoleNone, nil
}

// bookmarkRole computes userID's effective role over a bookmark. Bookmarks
// carry no grants of their own: the owner gets Admin, everyone else gets
// the maximum role across every live folder and collection the bookmark
// belongs to. The highest-privilege path governs; a bookmark with no
// visible container resolves to RoleNone.
func bookmarkRole(tx Tx, userID string, b *model.Bookmark, publicRead bool) (model.Role, error) {
	if userID != AnonymousUser && b.OwnerID == userID {
		return model.RoleAdmin, nil
	}

	best := model.RoleNone

	folderIDs, err := tx.FolderIDsForBookmark(b.ID)
	if err != nil {
		return model.RoleNone, err
	}
	for _, id := range folderIDs {
		f, err := tx.GetFolder(id)
		if err != nil {
			return model.RoleNone, err
		}
		if f == nil || f.Deleted {
			continue
		}
		r, err := folderRole(tx, userID, f)
		if err != nil {
			return model.RoleNone, err
		}
		best = model.MaxRole(best, r)
	}

	collectionIDs, err := tx.CollectionIDsForBookmark(b.ID)
	if err != nil {
		return model.RoleNone, err
	}
	for _, id := range collectionIDs {
		c, err := tx.GetCollection(id)
		if err != nil {
			return model.RoleNone, err
		}
		if c == nil || c.Deleted {
			continue
		}
		r, err := collectionRole(tx, userID, c, publicRead)
		if err != nil {
			return model.RoleNone, err
		}
		best = model.MaxRole(best, r)
	}

	return best, nil
}
