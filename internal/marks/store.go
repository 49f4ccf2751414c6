package marks

import (
	"context"
	"time"

	"marks-go/internal/model"
)

// Store is the engine's persistence boundary: a transactional key/record
// store with at least snapshot isolation. The engine holds no state of its
// own; every operation runs entirely inside a single transaction so that
// permission checks and the writes they guard can never be split.
type Store interface {
	// ReadTx runs fn inside a read-only transaction.
	ReadTx(ctx context.Context, fn func(tx Tx) error) error

	// WriteTx runs fn inside a write transaction. Writers to the same
	// store serialize; when they cannot, the transaction fails with
	// ErrConflict and nothing is committed. Any error from fn rolls the
	// transaction back.
	WriteTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases the underlying store.
	Close() error
}

// Tx exposes the entity reads and writes available inside one transaction.
// Lookups return (nil, nil) when the row does not exist. Writes that hit a
// scoped uniqueness constraint fail with ErrDuplicateName.
type Tx interface {
	// User operations

	GetUser(id string) (*model.User, error)
	GetUserByEmail(email string) (*model.User, error)
	CreateUser(u *model.User) error
	ListUsers() ([]*model.User, error)

	// Folder operations

	GetFolder(id string) (*model.Folder, error)

	// FolderChildren returns the direct children of parentID (all of the
	// owner's root folders when parentID is nil), deleted rows included.
	FolderChildren(ownerID string, parentID *string) ([]*model.Folder, error)

	CreateFolder(f *model.Folder) error
	RenameFolder(id, name string) error
	UpdateFolderParent(id string, parentID *string) error

	// SetFoldersDeleted flips the tombstone on every listed folder in one
	// statement. deletedAt is stored as given so a cascade shares a single
	// timestamp; it must be nil when deleted is false.
	SetFoldersDeleted(ids []string, deleted bool, deletedAt *time.Time) error

	// Folder collaborator operations

	GetFolderCollaborator(folderID, userID string) (*model.FolderCollaborator, error)
	UpsertFolderCollaborator(c *model.FolderCollaborator) error
	DeleteFolderCollaborator(folderID, userID string) error

	// Collection operations

	GetCollection(id string) (*model.Collection, error)
	GetCollectionByToken(token string) (*model.Collection, error)
	CreateCollection(c *model.Collection) error
	RenameCollection(id, name string) error
	SetCollectionSharing(id string, isPublic bool, token string) error
	SetCollectionDeleted(id string, deleted bool, deletedAt *time.Time) error

	// Collection collaborator operations

	GetCollectionCollaborator(collectionID, userID string) (*model.CollectionCollaborator, error)
	UpsertCollectionCollaborator(c *model.CollectionCollaborator) error
	DeleteCollectionCollaborator(collectionID, userID string) error

	// Bookmark operations

	GetBookmark(id string) (*model.Bookmark, error)
	CreateBookmark(b *model.Bookmark) error
	SetBookmarkDeleted(id string, deleted bool, deletedAt *time.Time) error

	// Folder membership operations

	AddFolderBookmark(m *model.FolderBookmark) error
	DeleteFolderBookmark(folderID, bookmarkID string) error
	FolderIDsForBookmark(bookmarkID string) ([]string, error)

	// Collection membership operations

	// CollectionMembers returns membership rows ordered by ascending Ord.
	CollectionMembers(collectionID string) ([]*model.BookmarkCollection, error)

	GetCollectionMember(collectionID, bookmarkID string) (*model.BookmarkCollection, error)
	AddCollectionMember(m *model.BookmarkCollection) error
	UpdateCollectionMemberOrd(collectionID, bookmarkID string, ord float64) error
	DeleteCollectionMember(collectionID, bookmarkID string) error
	CollectionIDsForBookmark(bookmarkID string) ([]string, error)

	// Tag operations

	GetTag(id string) (*model.Tag, error)
	CreateTag(t *model.Tag) error
	AddBookmarkTag(bt *model.BookmarkTag) error
	DeleteBookmarkTag(tagID, bookmarkID string) error
}
