package marks

import (
	"context"
	"fmt"

	"marks-go/internal/model"
)

// MarksService is the orchestration layer for the access-control and
// hierarchy engine. Every operation resolves the caller's effective role
// and performs the guarded reads/writes inside one store transaction, so a
// permission that held at check time still holds at commit time.
type MarksService struct {
	store  Store
	logger Logger
	clock  Clock
	idgen  IDGenerator
	tokens TokenGenerator
}

// NewMarksService creates a new MarksService with the provided dependencies.
func NewMarksService(store Store, logger Logger, clock Clock, idgen IDGenerator, tokens TokenGenerator) *MarksService {
	return &MarksService{
		store:  store,
		logger: logger,
		clock:  clock,
		idgen:  idgen,
		tokens: tokens,
	}
}

// User operations

// CreateUser registers a new user. Email must be unique.
func (s *MarksService) CreateUser(ctx context.Context, email string) (*model.User, error) {
	if email == "" {
		return nil, fmt.Errorf("email must not be empty")
	}
	u := &model.User{
		ID:        s.idgen.New(),
		Email:     email,
		CreatedAt: s.clock.Now(),
	}
	err := s.store.WriteTx(ctx, func(tx Tx) error {
		return tx.CreateUser(u)
	})
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}
	return u, nil
}

// GetUser loads a user by ID.
func (s *MarksService) GetUser(ctx context.Context, userID string) (*model.User, error) {
	var u *model.User
	err := s.store.ReadTx(ctx, func(tx Tx) (err error) {
		u, err = tx.GetUser(userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	return u, nil
}

// ListUsers returns all registered users.
func (s *MarksService) ListUsers(ctx context.Context) ([]*model.User, error) {
	var users []*model.User
	err := s.store.ReadTx(ctx, func(tx Tx) (err error) {
		users, err = tx.ListUsers()
		return err
	})
	return users, err
}

// Permission operations

// CheckPermission reports whether userID holds at least the given role
// over the resource. Returns nil to allow, ErrPermissionDenied to deny,
// and ErrNotFound for missing or soft-deleted resources.
func (s *MarksService) CheckPermission(ctx context.Context, userID string, resourceType model.ResourceType, resourceID string, need model.Role) error {
	if !need.Valid() {
		return fmt.Errorf("invalid required role %d", need)
	}
	return s.store.ReadTx(ctx, func(tx Tx) error {
		role, err := s.effectiveRole(tx, userID, resourceType, resourceID, need == model.RoleView)
		if err != nil {
			return err
		}
		if !role.AtLeast(need) {
			return ErrPermissionDenied
		}
		return nil
	})
}

// EffectiveRole resolves the caller's effective role over a resource,
// counting public access as it would for a read-shaped operation.
// Returns RoleNone when the user has no access path.
func (s *MarksService) EffectiveRole(ctx context.Context, userID string, resourceType model.ResourceType, resourceID string) (model.Role, error) {
	var role model.Role
	err := s.store.ReadTx(ctx, func(tx Tx) (err error) {
		role, err = s.effectiveRole(tx, userID, resourceType, resourceID, true)
		return err
	})
	return role, err
}

// effectiveRole loads the live resource and dispatches to the
// per-resource resolvers. Soft-deleted resources resolve to ErrNotFound.
func (s *MarksService) effectiveRole(tx Tx, userID string, resourceType model.ResourceType, resourceID string, publicRead bool) (model.Role, error) {
	switch resourceType {
	case model.ResourceFolder:
		f, err := s.liveFolder(tx, resourceID)
		if err != nil {
			return model.RoleNone, err
		}
		return folderRole(tx, userID, f)
	case model.ResourceCollection:
		c, err := s.liveCollection(tx, resourceID)
		if err != nil {
			return model.RoleNone, err
		}
		return collectionRole(tx, userID, c, publicRead)
	case model.ResourceBookmark:
		b, err := s.liveBookmark(tx, resourceID)
		if err != nil {
			return model.RoleNone, err
		}
		return bookmarkRole(tx, userID, b, publicRead)
	default:
		return model.RoleNone, fmt.Errorf("unknown resource type %q", resourceType)
	}
}

// Folder operations

// CreateFolder creates a folder for userID. With a parent, the caller
// needs Edit on the parent and the new folder belongs to the parent's
// owner so every chain stays within one owner's forest. Sibling names
// must be unique among non-deleted folders.
func (s *MarksService) CreateFolder(ctx context.Context, userID, name string, parentID *string) (*model.Folder, error) {
	if name == "" {
		return nil, fmt.Errorf("folder name must not be empty")
	}
	var folder *model.Folder
	err := s.store.WriteTx(ctx, func(tx Tx) error {
		ownerID := userID
		if parentID != nil {
			parent, err := s.liveFolder(tx, *parentID)
			if err != nil {
				return err
			}
			if err := s.requireFolderRole(tx, userID, parent, model.RoleEdit); err != nil {
				return err
			}
			ownerID = parent.OwnerID
		}
		folder = &model.Folder{
			ID:        s.idgen.New(),
			OwnerID:   ownerID,
			ParentID:  parentID,
			Name:      name,
			CreatedAt: s.clock.Now(),
		}
		return tx.CreateFolder(folder)
	})
	if err != nil {
		return nil, fmt.Errorf("creating folder %q: %w", name, err)
	}
	return folder, nil
}

// RenameFolder renames a folder. Requires Edit. Fails with
// ErrDuplicateName when a live sibling already uses the name.
func (s *MarksService) RenameFolder(ctx context.Context, userID, folderID, name string) error {
	if name == "" {
		return fmt.Errorf("folder name must not be empty")
	}
	err := s.store.WriteTx(ctx, func(tx Tx) error {
		f, err := s.liveFolder(tx, folderID)
		if err != nil {
			return err
		}
		if err := s.requireFolderRole(tx, userID, f, model.RoleEdit); err != nil {
			return err
		}
		return tx.RenameFolder(folderID, name)
	})
	if err != nil {
		return fmt.Errorf("renaming folder %s: %w", folderID, err)
	}
	return nil
}

// MoveFolder reparents a folder. nil newParentID moves it to the root of
// its owner's forest. Requires Edit on the folder and, for non-root
// targets, Edit on the new parent. Fails with CycleError when the target
// is the folder itself or one of its descendants, CrossOwnerError when
// owners differ, and ErrDuplicateName when the new sibling set already has
// a live folder with the same name.
func (s *MarksService) MoveFolder(ctx context.Context, userID, folderID string, newParentID *string) error {
	err := s.store.WriteTx(ctx, func(tx Tx) error {
		f, err := s.liveFolder(tx, folderID)
		if err != nil {
			return err
		}
		if err := s.requireFolderRole(tx, userID, f, model.RoleEdit); err != nil {
			return err
		}
		var newParent *model.Folder
		if newParentID != nil {
			newParent, err = s.liveFolder(tx, *newParentID)
			if err != nil {
				return err
			}
			if err := s.requireFolderRole(tx, userID, newParent, model.RoleEdit); err != nil {
				return err
			}
		}
		if err := validateMove(tx, f, newParent); err != nil {
			return err
		}
		return tx.UpdateFolderParent(folderID, newParentID)
	})
	if err != nil {
		return fmt.Errorf("moving folder %s: %w", folderID, err)
	}
	s.logger.Info("folder moved", "folder", folderID, "user", userID)
	return nil
}

// SoftDeleteFolder tombstones a folder and its whole subtree with one
// shared deletion timestamp. Requires Admin. Deleting an already-deleted
// folder is a no-op.
func (s *MarksService) SoftDeleteFolder(ctx context.Context, userID, folderID string) error {
	err := s.store.WriteTx(ctx, func(tx Tx) error {
		f, err := tx.GetFolder(folderID)
		if err != nil {
			return err
		}
		if f == nil {
			return fmt.Errorf("folder %s: %w", folderID, ErrNotFound)
		}
		// Authorization comes before the idempotency short-circuit so an
		// unauthorized caller is denied rather than told the delete "worked".
		if err := s.requireFolderRole(tx, userID, f, model.RoleAdmin); err != nil {
			return err
		}
		if f.Deleted {
			return nil
		}
		return softDeleteSubtree(tx, f, s.clock.Now())
	})
	if err != nil {
		return fmt.Errorf("deleting folder %s: %w", folderID, err)
	}
	s.logger.Info("folder soft-deleted", "folder", folderID, "user", userID)
	return nil
}

// RestoreFolder clears a folder's tombstone. Requires Admin. Fails with
// OrphanedParentError when the immediate parent is still deleted. Without
// cascade the folder's children stay deleted; with cascade the whole
// subtree is restored. Fails with ErrDuplicateName when a live sibling
// took the name while the folder was deleted.
func (s *MarksService) RestoreFolder(ctx context.Context, userID, folderID string, cascade bool) error {
	err := s.store.WriteTx(ctx, func(tx Tx) error {
		f, err := tx.GetFolder(folderID)
		if err != nil {
			return err
		}
		if f == nil {
			return fmt.Errorf("folder %s: %w", folderID, ErrNotFound)
		}
		if err := s.requireFolderRole(tx, userID, f, model.RoleAdmin); err != nil {
			return err
		}
		return restoreFolder(tx, f, cascade)
	})
	if err != nil {
		return fmt.Errorf("restoring folder %s: %w", folderID, err)
	}
	return nil
}

// Collection operations

// CreateCollection creates a collection owned and created by userID.
// Collection names are unique per owner among non-deleted collections.
func (s *MarksService) CreateCollection(ctx context.Context, userID, name string) (*model.Collection, error) {
	if name == "" {
		return nil, fmt.Errorf("collection name must not be empty")
	}
	c := &model.Collection{
		ID:        s.idgen.New(),
		OwnerID:   userID,
		CreatorID: userID,
		Name:      name,
		CreatedAt: s.clock.Now(),
	}
	err := s.store.WriteTx(ctx, func(tx Tx) error {
		return tx.CreateCollection(c)
	})
	if err != nil {
		return nil, fmt.Errorf("creating collection %q: %w", name, err)
	}
	return c, nil
}

// RenameCollection renames a collection. Requires Edit.
func (s *MarksService) RenameCollection(ctx context.Context, userID, collectionID, name string) error {
	if name == "" {
		return fmt.Errorf("collection name must not be empty")
	}
	err := s.store.WriteTx(ctx, func(tx Tx) error {
		c, err := s.liveCollection(tx, collectionID)
		if err != nil {
			return err
		}
		if err := s.requireCollectionRole(tx, userID, c, model.RoleEdit); err != nil {
			return err
		}
		return tx.RenameCollection(collectionID, name)
	})
	if err != nil {
		return fmt.Errorf("renaming collection %s: %w", collectionID, err)
	}
	return nil
}

// SoftDeleteCollection tombstones a collection. Requires Admin.
// Idempotent.
func (s *MarksService) SoftDeleteCollection(ctx context.Context, userID, collectionID string) error {
	err := s.store.WriteTx(ctx, func(tx Tx) error {
		c, err := tx.GetCollection(collectionID)
		if err != nil {
			return err
		}
		if c == nil {
			return fmt.Errorf("collection %s: %w", collectionID, ErrNotFound)
		}
		if err := s.requireCollectionRole(tx, userID, c, model.RoleAdmin); err != nil {
			return err
		}
		if c.Deleted {
			return nil
		}
		now := s.clock.Now()
		return tx.SetCollectionDeleted(collectionID, true, &now)
	})
	if err != nil {
		return fmt.Errorf("deleting collection %s: %w", collectionID, err)
	}
	return nil
}

// RestoreCollection clears a collection's tombstone. Requires Admin.
// Fails with ErrDuplicateName when the owner created a live collection
// with the same name in the meantime.
func (s *MarksService) RestoreCollection(ctx context.Context, userID, collectionID string) error {
	err := s.store.WriteTx(ctx, func(tx Tx) error {
		c, err := tx.GetCollection(collectionID)
		if err != nil {
			return err
		}
		if c == nil {
			return fmt.Errorf("collection %s: %w", collectionID, ErrNotFound)
		}
		if err := s.requireCollectionRole(tx, userID, c, model.RoleAdmin); err != nil {
			return err
		}
		if !c.Deleted {
			return nil
		}
		return tx.SetCollectionDeleted(collectionID, false, nil)
	})
	if err != nil {
		return fmt.Errorf("restoring collection %s: %w", collectionID, err)
	}
	return nil
}

// Bookmark operations

// CreateBookmark saves a bookmark owned by userID.
func (s *MarksService) CreateBookmark(ctx context.Context, userID, title, url string) (*model.Bookmark, error) {
	if url == "" {
		return nil, fmt.Errorf("bookmark URL must not be empty")
	}
	b := &model.Bookmark{
		ID:        s.idgen.New(),
		OwnerID:   userID,
		Title:     title,
		URL:       url,
		CreatedAt: s.clock.Now(),
	}
	err := s.store.WriteTx(ctx, func(tx Tx) error {
		return tx.CreateBookmark(b)
	})
	if err != nil {
		return nil, fmt.Errorf("creating bookmark: %w", err)
	}
	return b, nil
}

// SoftDeleteBookmark tombstones a bookmark. Requires Admin on the
// bookmark. Idempotent.
func (s *MarksService) SoftDeleteBookmark(ctx context.Context, userID, bookmarkID string) error {
	err := s.store.WriteTx(ctx, func(tx Tx) error {
		b, err := tx.GetBookmark(bookmarkID)
		if err != nil {
			return err
		}
		if b == nil {
			return fmt.Errorf("bookmark %s: %w", bookmarkID, ErrNotFound)
		}
		role, err := bookmarkRole(tx, userID, b, false)
		if err != nil {
			return err
		}
		if !role.AtLeast(model.RoleAdmin) {
			return ErrPermissionDenied
		}
		if b.Deleted {
			return nil
		}
		now := s.clock.Now()
		return tx.SetBookmarkDeleted(bookmarkID, true, &now)
	})
	if err != nil {
		return fmt.Errorf("deleting bookmark %s: %w", bookmarkID, err)
	}
	return nil
}

// AddBookmarkToFolder files a bookmark into a folder (unordered).
// Requires Edit on the folder and visibility of the bookmark.
func (s *MarksService) AddBookmarkToFolder(ctx context.Context, userID, folderID, bookmarkID string) error {
	err := s.store.WriteTx(ctx, func(tx Tx) error {
		f, err := s.liveFolder(tx, folderID)
		if err != nil {
			return err
		}
		if err := s.requireFolderRole(tx, userID, f, model.RoleEdit); err != nil {
			return err
		}
		b, err := s.liveBookmark(tx, bookmarkID)
		if err != nil {
			return err
		}
		if err := s.requireBookmarkRole(tx, userID, b, model.RoleView); err != nil {
			return err
		}
		return tx.AddFolderBookmark(&model.FolderBookmark{
			FolderID:   folderID,
			BookmarkID: bookmarkID,
			AddedAt:    s.clock.Now(),
		})
	})
	if err != nil {
		return fmt.Errorf("filing bookmark %s into folder %s: %w", bookmarkID, folderID, err)
	}
	return nil
}

// RemoveBookmarkFromFolder removes a bookmark's folder membership.
// Requires Edit on the folder. Removing an absent membership is a no-op.
func (s *MarksService) RemoveBookmarkFromFolder(ctx context.Context, userID, folderID, bookmarkID string) error {
	err := s.store.WriteTx(ctx, func(tx Tx) error {
		f, err := s.liveFolder(tx, folderID)
		if err != nil {
			return err
		}
		if err := s.requireFolderRole(tx, userID, f, model.RoleEdit); err != nil {
			return err
		}
		return tx.DeleteFolderBookmark(folderID, bookmarkID)
	})
	if err != nil {
		return fmt.Errorf("unfiling bookmark %s from folder %s: %w", bookmarkID, folderID, err)
	}
	return nil
}

// Collection membership operations

// InsertIntoCollection adds a bookmark to a collection and returns its
// order key. afterBookmarkID positions the new member: nil appends at the
// tail, a pointer to the empty string inserts at the head, anything else
// names the member it follows. Requires Edit on the collection and
// visibility of the bookmark. Fails with ErrDuplicateName when the
// bookmark is already a member.
func (s *MarksService) InsertIntoCollection(ctx context.Context, userID, collectionID, bookmarkID string, afterBookmarkID *string) (float64, error) {
	var key float64
	err := s.store.WriteTx(ctx, func(tx Tx) error {
		c, err := s.liveCollection(tx, collectionID)
		if err != nil {
			return err
		}
		if err := s.requireCollectionRole(tx, userID, c, model.RoleEdit); err != nil {
			return err
		}
		b, err := s.liveBookmark(tx, bookmarkID)
		if err != nil {
			return err
		}
		if err := s.requireBookmarkRole(tx, userID, b, model.RoleView); err != nil {
			return err
		}
		existing, err := tx.GetCollectionMember(collectionID, bookmarkID)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("bookmark %s already in collection: %w", bookmarkID, ErrDuplicateName)
		}
		key, err = orderKeyFor(tx, collectionID, afterBookmarkID, "")
		if err != nil {
			return err
		}
		return tx.AddCollectionMember(&model.BookmarkCollection{
			CollectionID: collectionID,
			BookmarkID:   bookmarkID,
			AddedAt:      s.clock.Now(),
			Ord:          key,
		})
	})
	if err != nil {
		return 0, fmt.Errorf("inserting into collection %s: %w", collectionID, err)
	}
	return key, nil
}

// MoveWithinCollection repositions an existing member and returns its new
// order key. Position semantics match InsertIntoCollection. Requires Edit.
func (s *MarksService) MoveWithinCollection(ctx context.Context, userID, collectionID, bookmarkID string, afterBookmarkID *string) (float64, error) {
	var key float64
	err := s.store.WriteTx(ctx, func(tx Tx) error {
		c, err := s.liveCollection(tx, collectionID)
		if err != nil {
			return err
		}
		if err := s.requireCollectionRole(tx, userID, c, model.RoleEdit); err != nil {
			return err
		}
		member, err := tx.GetCollectionMember(collectionID, bookmarkID)
		if err != nil {
			return err
		}
		if member == nil {
			return fmt.Errorf("bookmark %s not in collection: %w", bookmarkID, ErrNotFound)
		}
		if afterBookmarkID != nil && *afterBookmarkID == bookmarkID {
			key = member.Ord
			return nil
		}
		key, err = orderKeyFor(tx, collectionID, afterBookmarkID, bookmarkID)
		if err != nil {
			return err
		}
		return tx.UpdateCollectionMemberOrd(collectionID, bookmarkID, key)
	})
	if err != nil {
		return 0, fmt.Errorf("reordering collection %s: %w", collectionID, err)
	}
	return key, nil
}

// RemoveFromCollection removes a bookmark from a collection. Requires
// Edit. Removing an absent member is a no-op.
func (s *MarksService) RemoveFromCollection(ctx context.Context, userID, collectionID, bookmarkID string) error {
	err := s.store.WriteTx(ctx, func(tx Tx) error {
		c, err := s.liveCollection(tx, collectionID)
		if err != nil {
			return err
		}
		if err := s.requireCollectionRole(tx, userID, c, model.RoleEdit); err != nil {
			return err
		}
		return tx.DeleteCollectionMember(collectionID, bookmarkID)
	})
	if err != nil {
		return fmt.Errorf("removing from collection %s: %w", collectionID, err)
	}
	return nil
}

// ListCollection returns the collection's live bookmarks in order.
// Requires View; public collections are listable by anyone.
func (s *MarksService) ListCollection(ctx context.Context, userID, collectionID string) ([]*model.Bookmark, error) {
	var out []*model.Bookmark
	err := s.store.ReadTx(ctx, func(tx Tx) error {
		c, err := s.liveCollection(tx, collectionID)
		if err != nil {
			return err
		}
		if err := s.requireCollectionRole(tx, userID, c, model.RoleView); err != nil {
			return err
		}
		members, err := tx.CollectionMembers(collectionID)
		if err != nil {
			return err
		}
		for _, m := range members {
			b, err := tx.GetBookmark(m.BookmarkID)
			if err != nil {
				return err
			}
			if b == nil || b.Deleted {
				continue
			}
			out = append(out, b)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing collection %s: %w", collectionID, err)
	}
	return out, nil
}

// Sharing operations

// ShareCollection enables the public link for a collection and returns
// its token. Requires Admin. Sharing an already-public collection returns
// the existing token.
func (s *MarksService) ShareCollection(ctx context.Context, userID, collectionID string) (string, error) {
	var token string
	err := s.store.WriteTx(ctx, func(tx Tx) error {
		c, err := s.liveCollection(tx, collectionID)
		if err != nil {
			return err
		}
		if err := s.requireCollectionRole(tx, userID, c, model.RoleAdmin); err != nil {
			return err
		}
		if c.IsPublic && c.PublicToken != "" {
			token = c.PublicToken
			return nil
		}
		token, err = s.tokens.New()
		if err != nil {
			return err
		}
		return tx.SetCollectionSharing(collectionID, true, token)
	})
	if err != nil {
		return "", fmt.Errorf("sharing collection %s: %w", collectionID, err)
	}
	s.logger.Info("collection shared", "collection", collectionID, "user", userID)
	return token, nil
}

// RevokeSharing disables the public link. The token is rotated to a fresh
// discarded value rather than cleared, so old links fail closed even if
// sharing is re-enabled later. Requires Admin.
func (s *MarksService) RevokeSharing(ctx context.Context, userID, collectionID string) error {
	err := s.store.WriteTx(ctx, func(tx Tx) error {
		c, err := s.liveCollection(tx, collectionID)
		if err != nil {
			return err
		}
		if err := s.requireCollectionRole(tx, userID, c, model.RoleAdmin); err != nil {
			return err
		}
		discarded, err := s.tokens.New()
		if err != nil {
			return err
		}
		return tx.SetCollectionSharing(collectionID, false, discarded)
	})
	if err != nil {
		return fmt.Errorf("revoking sharing on collection %s: %w", collectionID, err)
	}
	s.logger.Info("collection sharing revoked", "collection", collectionID, "user", userID)
	return nil
}

// ResolvePublicToken looks up the public, non-deleted collection behind a
// share token. Revoked, rotated and unknown tokens all resolve to
// ErrNotFound.
func (s *MarksService) ResolvePublicToken(ctx context.Context, token string) (*model.Collection, error) {
	var c *model.Collection
	err := s.store.ReadTx(ctx, func(tx Tx) error {
		if token == "" {
			return ErrNotFound
		}
		found, err := tx.GetCollectionByToken(token)
		if err != nil {
			return err
		}
		if found == nil || found.Deleted || !found.IsPublic {
			return ErrNotFound
		}
		c = found
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("resolving public token: %w", err)
	}
	return c, nil
}

// Grant operations

// GrantRole gives granteeID a direct role on a folder or collection.
// Requires Admin on the resource. The owner's role is implicit and cannot
// be granted or overridden. Re-granting updates the existing grant.
func (s *MarksService) GrantRole(ctx context.Context, userID string, resourceType model.ResourceType, resourceID, granteeID string, role model.Role) error {
	if !role.Valid() {
		return fmt.Errorf("invalid role %d", role)
	}
	err := s.store.WriteTx(ctx, func(tx Tx) error {
		grantee, err := tx.GetUser(granteeID)
		if err != nil {
			return err
		}
		if grantee == nil {
			return fmt.Errorf("grantee %s: %w", granteeID, ErrNotFound)
		}
		now := s.clock.Now()
		switch resourceType {
		case model.ResourceFolder:
			f, err := s.liveFolder(tx, resourceID)
			if err != nil {
				return err
			}
			if err := s.requireFolderRole(tx, userID, f, model.RoleAdmin); err != nil {
				return err
			}
			if f.OwnerID == granteeID {
				return fmt.Errorf("user %s owns folder %s; the owner role is implicit", granteeID, resourceID)
			}
			return tx.UpsertFolderCollaborator(&model.FolderCollaborator{
				FolderID:  resourceID,
				UserID:    granteeID,
				Role:      role,
				GrantedBy: userID,
				GrantedAt: now,
			})
		case model.ResourceCollection:
			c, err := s.liveCollection(tx, resourceID)
			if err != nil {
				return err
			}
			if err := s.requireCollectionRole(tx, userID, c, model.RoleAdmin); err != nil {
				return err
			}
			if c.OwnerID == granteeID {
				return fmt.Errorf("user %s owns collection %s; the owner role is implicit", granteeID, resourceID)
			}
			return tx.UpsertCollectionCollaborator(&model.CollectionCollaborator{
				CollectionID: resourceID,
				UserID:       granteeID,
				Role:         role,
				GrantedBy:    userID,
				GrantedAt:    now,
			})
		default:
			return fmt.Errorf("resource type %q does not support direct grants", resourceType)
		}
	})
	if err != nil {
		return fmt.Errorf("granting %s on %s %s: %w", role, resourceType, resourceID, err)
	}
	s.logger.Info("role granted", "resource", resourceID, "grantee", granteeID, "role", role.String(), "by", userID)
	return nil
}

// RevokeRole removes granteeID's direct grant on a folder or collection.
// Requires Admin. Revoking an absent grant is a no-op; the owner's role
// cannot be revoked because it is never stored as a grant.
func (s *MarksService) RevokeRole(ctx context.Context, userID string, resourceType model.ResourceType, resourceID, granteeID string) error {
	err := s.store.WriteTx(ctx, func(tx Tx) error {
		switch resourceType {
		case model.ResourceFolder:
			f, err := s.liveFolder(tx, resourceID)
			if err != nil {
				return err
			}
			if err := s.requireFolderRole(tx, userID, f, model.RoleAdmin); err != nil {
				return err
			}
			return tx.DeleteFolderCollaborator(resourceID, granteeID)
		case model.ResourceCollection:
			c, err := s.liveCollection(tx, resourceID)
			if err != nil {
				return err
			}
			if err := s.requireCollectionRole(tx, userID, c, model.RoleAdmin); err != nil {
				return err
			}
			return tx.DeleteCollectionCollaborator(resourceID, granteeID)
		default:
			return fmt.Errorf("resource type %q does not support direct grants", resourceType)
		}
	})
	if err != nil {
		return fmt.Errorf("revoking grant on %s %s: %w", resourceType, resourceID, err)
	}
	s.logger.Info("role revoked", "resource", resourceID, "grantee", granteeID, "by", userID)
	return nil
}

// Tag operations

// CreateTag creates an owner-scoped tag. Tag names are unique per owner.
func (s *MarksService) CreateTag(ctx context.Context, userID, name string) (*model.Tag, error) {
	if name == "" {
		return nil, fmt.Errorf("tag name must not be empty")
	}
	t := &model.Tag{
		ID:        s.idgen.New(),
		OwnerID:   userID,
		Name:      name,
		CreatedAt: s.clock.Now(),
	}
	err := s.store.WriteTx(ctx, func(tx Tx) error {
		return tx.CreateTag(t)
	})
	if err != nil {
		return nil, fmt.Errorf("creating tag %q: %w", name, err)
	}
	return t, nil
}

// TagBookmark labels a bookmark with one of the caller's own tags.
// Tags are personal, so only the tag owner may apply them. Idempotent.
func (s *MarksService) TagBookmark(ctx context.Context, userID, tagID, bookmarkID string) error {
	err := s.store.WriteTx(ctx, func(tx Tx) error {
		t, err := tx.GetTag(tagID)
		if err != nil {
			return err
		}
		if t == nil {
			return fmt.Errorf("tag %s: %w", tagID, ErrNotFound)
		}
		if t.OwnerID != userID {
			return ErrPermissionDenied
		}
		b, err := s.liveBookmark(tx, bookmarkID)
		if err != nil {
			return err
		}
		if err := s.requireBookmarkRole(tx, userID, b, model.RoleView); err != nil {
			return err
		}
		return tx.AddBookmarkTag(&model.BookmarkTag{TagID: tagID, BookmarkID: bookmarkID})
	})
	if err != nil {
		return fmt.Errorf("tagging bookmark %s: %w", bookmarkID, err)
	}
	return nil
}

// UntagBookmark removes one of the caller's tags from a bookmark.
// Idempotent.
func (s *MarksService) UntagBookmark(ctx context.Context, userID, tagID, bookmarkID string) error {
	err := s.store.WriteTx(ctx, func(tx Tx) error {
		t, err := tx.GetTag(tagID)
		if err != nil {
			return err
		}
		if t == nil {
			return fmt.Errorf("tag %s: %w", tagID, ErrNotFound)
		}
		if t.OwnerID != userID {
			return ErrPermissionDenied
		}
		return tx.DeleteBookmarkTag(tagID, bookmarkID)
	})
	if err != nil {
		return fmt.Errorf("untagging bookmark %s: %w", bookmarkID, err)
	}
	return nil
}

// Lookup helpers. Lookups treat soft-deleted rows as absent so tombstoned
// resources surface as ErrNotFound, never as permission failures.

func (s *MarksService) liveFolder(tx Tx, id string) (*model.Folder, error) {
	f, err := tx.GetFolder(id)
	if err != nil {
		return nil, err
	}
	if f == nil || f.Deleted {
		return nil, fmt.Errorf("folder %s: %w", id, ErrNotFound)
	}
	return f, nil
}

func (s *MarksService) liveCollection(tx Tx, id string) (*model.Collection, error) {
	c, err := tx.GetCollection(id)
	if err != nil {
		return nil, err
	}
	if c == nil || c.Deleted {
		return nil, fmt.Errorf("collection %s: %w", id, ErrNotFound)
	}
	return c, nil
}

func (s *MarksService) liveBookmark(tx Tx, id string) (*model.Bookmark, error) {
	b, err := tx.GetBookmark(id)
	if err != nil {
		return nil, err
	}
	if b == nil || b.Deleted {
		return nil, fmt.Errorf("bookmark %s: %w", id, ErrNotFound)
	}
	return b, nil
}

// Role-requirement helpers. publicRead is derived from the required role:
// public access only ever satisfies read-shaped (View) checks.

func (s *MarksService) requireFolderRole(tx Tx, userID string, f *model.Folder, need model.Role) error {
	role, err := folderRole(tx, userID, f)
	if err != nil {
		return err
	}
	if !role.AtLeast(need) {
		return ErrPermissionDenied
	}
	return nil
}

func (s *MarksService) requireCollectionRole(tx Tx, userID string, c *model.Collection, need model.Role) error {
	role, err := collectionRole(tx, userID, c, need == model.RoleView)
	if err != nil {
		return err
	}
	if !role.AtLeast(need) {
		return ErrPermissionDenied
	}
	return nil
}

func (s *MarksService) requireBookmarkRole(tx Tx, userID string, b *model.Bookmark, need model.Role) error {
	role, err := bookmarkRole(tx, userID, b, need == model.RoleView)
	if err != nil {
		return err
	}
	if !role.AtLeast(need) {
		return ErrPermissionDenied
	}
	return nil
}
