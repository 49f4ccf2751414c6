package model

import "time"

// ResourceType tags which entity kind a permission check or grant targets.
type ResourceType string

const (
	ResourceFolder     ResourceType = "folder"
	ResourceCollection ResourceType = "collection"
	ResourceBookmark   ResourceType = "bookmark"
)

// User is an account that owns folders, collections, tags and bookmarks.
// Authentication happens outside the engine; the engine only sees user IDs.
type User struct {
	ID        string // UUID
	Email     string
	CreatedAt time.Time
}

// Folder is a node in an owner-scoped folder forest. ParentID is nil for
// root-level folders. (OwnerID, ParentID, Name) is unique among non-deleted
// siblings.
type Folder struct {
	ID        string  // UUID
	OwnerID   string  // Foreign key to User
	ParentID  *string // nil = root level
	Name      string
	Deleted   bool
	DeletedAt *time.Time // set when Deleted; shared across a cascade
	CreatedAt time.Time
}

// FolderCollaborator is a direct role grant on a folder. Grants inherit
// down the folder tree; the nearest grant to a folder wins.
type FolderCollaborator struct {
	FolderID  string
	UserID    string
	Role      Role
	GrantedBy string // User who issued the grant
	GrantedAt time.Time
}

// Collection is a flat, shareable, ordered set of bookmarks. CreatorID
// records who created it; authorization always goes through OwnerID.
// (OwnerID, Name) is unique among non-deleted collections.
type Collection struct {
	ID          string // UUID
	OwnerID     string
	CreatorID   string
	Name        string
	IsPublic    bool
	PublicToken string // rotated on revoke so old links fail closed
	Deleted     bool
	DeletedAt   *time.Time
	CreatedAt   time.Time
}

// CollectionCollaborator is a direct role grant on a collection.
// Collections do not nest, so there is no inheritance.
type CollectionCollaborator struct {
	CollectionID string
	UserID       string
	Role         Role
	GrantedBy    string
	GrantedAt    time.Time
}

// Bookmark is a saved URL owned by exactly one user. It can belong to any
// number of folders and collections through membership rows.
type Bookmark struct {
	ID        string // UUID
	OwnerID   string
	Title     string
	URL       string
	Deleted   bool
	DeletedAt *time.Time
	CreatedAt time.Time
}

// FolderBookmark is unordered folder membership for a bookmark.
type FolderBookmark struct {
	FolderID   string
	BookmarkID string
	AddedAt    time.Time
}

// BookmarkCollection is ordered collection membership. Ord is a fractional
// position key: totally ordered and distinct within one collection, dense
// enough that an insert between neighbors takes their midpoint.
type BookmarkCollection struct {
	CollectionID string
	BookmarkID   string
	AddedAt      time.Time
	Ord          float64
}

// Tag is an owner-scoped label. (OwnerID, Name) is unique per owner.
type Tag struct {
	ID        string // UUID
	OwnerID   string
	Name      string
	CreatedAt time.Time
}

// BookmarkTag is unordered tag membership for a bookmark.
type BookmarkTag struct {
	TagID      string
	BookmarkID string
}
