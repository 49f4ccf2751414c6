package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"marks-go/internal/database/migrations"
	"marks-go/internal/marks"
	"marks-go/internal/model"
)

// SQLiteStore implements marks.Store on SQLite. Scoped name uniqueness is
// enforced by partial unique indexes over non-deleted rows, so the engine
// never needs a read-then-insert existence check. Write transactions take
// the database write lock up front (BEGIN IMMEDIATE via the _txlock DSN
// option), which turns racing writers into busy errors that surface as
// marks.ErrConflict.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens (or creates) the database at path and brings the
// schema up to date. path can be ":memory:" for an in-memory database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}
	return &SQLiteStore{db: db, path: path}, nil
}

// NewSQLiteStoreFromDB wraps an existing connection. The caller is
// responsible for the connection's configuration, schema and closing.
func NewSQLiteStoreFromDB(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db, path: ""}
}

// OpenConnection opens and configures a SQLite connection. Exported for
// tools and tests that need a properly configured connection.
func OpenConnection(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_fk=1&_busy_timeout=5000&_txlock=immediate", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// An in-memory SQLite database exists per connection; cap the pool at
	// one so every transaction sees the same data.
	if strings.Contains(path, ":memory:") {
		db.SetMaxOpenConns(1)
	}

	return db, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ReadTx implements marks.Store.
func (s *SQLiteStore) ReadTx(ctx context.Context, fn func(tx marks.Tx) error) error {
	return s.runTx(ctx, fn)
}

// WriteTx implements marks.Store.
func (s *SQLiteStore) WriteTx(ctx context.Context, fn func(tx marks.Tx) error) error {
	return s.runTx(ctx, fn)
}

func (s *SQLiteStore) runTx(ctx context.Context, fn func(tx marks.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapSQLiteErr(err)
	}
	defer tx.Rollback()

	if err := fn(&sqliteTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return mapSQLiteErr(err)
	}
	return nil
}

// mapSQLiteErr translates driver errors into the engine's error kinds:
// unique-constraint violations become ErrDuplicateName and lock contention
// becomes the retryable ErrConflict.
func mapSQLiteErr(err error) error {
	if err == nil {
		return nil
	}
	var se sqlite3.Error
	if errors.As(err, &se) {
		switch {
		case se.ExtendedCode == sqlite3.ErrConstraintUnique,
			se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey:
			return fmt.Errorf("%w: %v", marks.ErrDuplicateName, err)
		case se.Code == sqlite3.ErrBusy, se.Code == sqlite3.ErrLocked:
			return fmt.Errorf("%w: %v", marks.ErrConflict, err)
		}
	}
	return err
}

// sqliteTx implements marks.Tx over one *sql.Tx.
type sqliteTx struct {
	tx *sql.Tx
}

// User operations

func (t *sqliteTx) GetUser(id string) (*model.User, error) {
	row := t.tx.QueryRow(`SELECT id, email, created_at FROM users WHERE id = ?`, id)
	u := &model.User{}
	if err := row.Scan(&u.ID, &u.Email, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("loading user: %w", err)
	}
	return u, nil
}

func (t *sqliteTx) GetUserByEmail(email string) (*model.User, error) {
	row := t.tx.QueryRow(`SELECT id, email, created_at FROM users WHERE email = ?`, email)
	u := &model.User{}
	if err := row.Scan(&u.ID, &u.Email, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("loading user by email: %w", err)
	}
	return u, nil
}

func (t *sqliteTx) CreateUser(u *model.User) error {
	_, err := t.tx.Exec(`INSERT INTO users (id, email, created_at) VALUES (?, ?, ?)`,
		u.ID, u.Email, u.CreatedAt)
	return mapSQLiteErr(err)
}

func (t *sqliteTx) ListUsers() ([]*model.User, error) {
	rows, err := t.tx.Query(`SELECT id, email, created_at FROM users ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		u := &model.User{}
		if err := rows.Scan(&u.ID, &u.Email, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Folder operations

const folderColumns = `id, owner_id, parent_id, name, deleted, deleted_at, created_at`

func scanFolder(row interface{ Scan(...any) error }) (*model.Folder, error) {
	f := &model.Folder{}
	var parentID sql.NullString
	var deletedAt sql.NullTime
	if err := row.Scan(&f.ID, &f.OwnerID, &parentID, &f.Name, &f.Deleted, &deletedAt, &f.CreatedAt); err != nil {
		return nil, err
	}
	if parentID.Valid {
		f.ParentID = &parentID.String
	}
	if deletedAt.Valid {
		f.DeletedAt = &deletedAt.Time
	}
	return f, nil
}

func (t *sqliteTx) GetFolder(id string) (*model.Folder, error) {
	row := t.tx.QueryRow(`SELECT `+folderColumns+` FROM folders WHERE id = ?`, id)
	f, err := scanFolder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("loading folder: %w", err)
	}
	return f, nil
}

func (t *sqliteTx) FolderChildren(ownerID string, parentID *string) ([]*model.Folder, error) {
	var rows *sql.Rows
	var err error
	if parentID == nil {
		rows, err = t.tx.Query(`SELECT `+folderColumns+` FROM folders WHERE owner_id = ? AND parent_id IS NULL ORDER BY name`, ownerID)
	} else {
		rows, err = t.tx.Query(`SELECT `+folderColumns+` FROM folders WHERE owner_id = ? AND parent_id = ? ORDER BY name`, ownerID, *parentID)
	}
	if err != nil {
		return nil, fmt.Errorf("listing folder children: %w", err)
	}
	defer rows.Close()

	var folders []*model.Folder
	for rows.Next() {
		f, err := scanFolder(rows)
		if err != nil {
			return nil, err
		}
		folders = append(folders, f)
	}
	return folders, rows.Err()
}

func (t *sqliteTx) CreateFolder(f *model.Folder) error {
	_, err := t.tx.Exec(`INSERT INTO folders (id, owner_id, parent_id, name, deleted, deleted_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.OwnerID, nullableString(f.ParentID), f.Name, f.Deleted, nullableTime(f.DeletedAt), f.CreatedAt)
	return mapSQLiteErr(err)
}

func (t *sqliteTx) RenameFolder(id, name string) error {
	_, err := t.tx.Exec(`UPDATE folders SET name = ? WHERE id = ?`, name, id)
	return mapSQLiteErr(err)
}

func (t *sqliteTx) UpdateFolderParent(id string, parentID *string) error {
	_, err := t.tx.Exec(`UPDATE folders SET parent_id = ? WHERE id = ?`, nullableString(parentID), id)
	return mapSQLiteErr(err)
}

func (t *sqliteTx) SetFoldersDeleted(ids []string, deleted bool, deletedAt *time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, 0, len(ids)+2)
	args = append(args, deleted, nullableTime(deletedAt))
	for _, id := range ids {
		args = append(args, id)
	}
	_, err := t.tx.Exec(`UPDATE folders SET deleted = ?, deleted_at = ? WHERE id IN (`+placeholders+`)`, args...)
	return mapSQLiteErr(err)
}

// Folder collaborator operations

func (t *sqliteTx) GetFolderCollaborator(folderID, userID string) (*model.FolderCollaborator, error) {
	row := t.tx.QueryRow(`SELECT folder_id, user_id, role, granted_by, granted_at
		FROM folder_collaborators WHERE folder_id = ? AND user_id = ?`, folderID, userID)
	c := &model.FolderCollaborator{}
	if err := row.Scan(&c.FolderID, &c.UserID, &c.Role, &c.GrantedBy, &c.GrantedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("loading folder grant: %w", err)
	}
	return c, nil
}

func (t *sqliteTx) UpsertFolderCollaborator(c *model.FolderCollaborator) error {
	_, err := t.tx.Exec(`INSERT INTO folder_collaborators (folder_id, user_id, role, granted_by, granted_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (folder_id, user_id) DO UPDATE SET role = excluded.role,
			granted_by = excluded.granted_by, granted_at = excluded.granted_at`,
		c.FolderID, c.UserID, c.Role, c.GrantedBy, c.GrantedAt)
	return mapSQLiteErr(err)
}

func (t *sqliteTx) DeleteFolderCollaborator(folderID, userID string) error {
	_, err := t.tx.Exec(`DELETE FROM folder_collaborators WHERE folder_id = ? AND user_id = ?`, folderID, userID)
	return mapSQLiteErr(err)
}

// Collection operations

const collectionColumns = `id, owner_id, creator_id, name, is_public, public_token, deleted, deleted_at, created_at`

func scanCollection(row interface{ Scan(...any) error }) (*model.Collection, error) {
	c := &model.Collection{}
	var deletedAt sql.NullTime
	if err := row.Scan(&c.ID, &c.OwnerID, &c.CreatorID, &c.Name, &c.IsPublic, &c.PublicToken, &c.Deleted, &deletedAt, &c.CreatedAt); err != nil {
		return nil, err
	}
	if deletedAt.Valid {
		c.DeletedAt = &deletedAt.Time
	}
	return c, nil
}

func (t *sqliteTx) GetCollection(id string) (*model.Collection, error) {
	row := t.tx.QueryRow(`SELECT `+collectionColumns+` FROM collections WHERE id = ?`, id)
	c, err := scanCollection(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("loading collection: %w", err)
	}
	return c, nil
}

func (t *sqliteTx) GetCollectionByToken(token string) (*model.Collection, error) {
	row := t.tx.QueryRow(`SELECT `+collectionColumns+` FROM collections WHERE public_token = ?`, token)
	c, err := scanCollection(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("loading collection by token: %w", err)
	}
	return c, nil
}

func (t *sqliteTx) CreateCollection(c *model.Collection) error {
	_, err := t.tx.Exec(`INSERT INTO collections (id, owner_id, creator_id, name, is_public, public_token, deleted, deleted_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.OwnerID, c.CreatorID, c.Name, c.IsPublic, c.PublicToken, c.Deleted, nullableTime(c.DeletedAt), c.CreatedAt)
	return mapSQLiteErr(err)
}

func (t *sqliteTx) RenameCollection(id, name string) error {
	_, err := t.tx.Exec(`UPDATE collections SET name = ? WHERE id = ?`, name, id)
	return mapSQLiteErr(err)
}

func (t *sqliteTx) SetCollectionSharing(id string, isPublic bool, token string) error {
	_, err := t.tx.Exec(`UPDATE collections SET is_public = ?, public_token = ? WHERE id = ?`, isPublic, token, id)
	return mapSQLiteErr(err)
}

func (t *sqliteTx) SetCollectionDeleted(id string, deleted bool, deletedAt *time.Time) error {
	_, err := t.tx.Exec(`UPDATE collections SET deleted = ?, deleted_at = ? WHERE id = ?`,
		deleted, nullableTime(deletedAt), id)
	return mapSQLiteErr(err)
}

// Collection collaborator operations

func (t *sqliteTx) GetCollectionCollaborator(collectionID, userID string) (*model.CollectionCollaborator, error) {
	row := t.tx.QueryRow(`SELECT collection_id, user_id, role, granted_by, granted_at
		FROM collection_collaborators WHERE collection_id = ? AND user_id = ?`, collectionID, userID)
	c := &model.CollectionCollaborator{}
	if err := row.Scan(&c.CollectionID, &c.UserID, &c.Role, &c.GrantedBy, &c.GrantedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("loading collection grant: %w", err)
	}
	return c, nil
}

func (t *sqliteTx) UpsertCollectionCollaborator(c *model.CollectionCollaborator) error {
	_, err := t.tx.Exec(`INSERT INTO collection_collaborators (collection_id, user_id, role, granted_by, granted_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (collection_id, user_id) DO UPDATE SET role = excluded.role,
			granted_by = excluded.granted_by, granted_at = excluded.granted_at`,
		c.CollectionID, c.UserID, c.Role, c.GrantedBy, c.GrantedAt)
	return mapSQLiteErr(err)
}

func (t *sqliteTx) DeleteCollectionCollaborator(collectionID, userID string) error {
	_, err := t.tx.Exec(`DELETE FROM collection_collaborators WHERE collection_id = ? AND user_id = ?`, collectionID, userID)
	return mapSQLiteErr(err)
}

// Bookmark operations

func (t *sqliteTx) GetBookmark(id string) (*model.Bookmark, error) {
	row := t.tx.QueryRow(`SELECT id, owner_id, title, url, deleted, deleted_at, created_at FROM bookmarks WHERE id = ?`, id)
	b := &model.Bookmark{}
	var deletedAt sql.NullTime
	if err := row.Scan(&b.ID, &b.OwnerID, &b.Title, &b.URL, &b.Deleted, &deletedAt, &b.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("loading bookmark: %w", err)
	}
	if deletedAt.Valid {
		b.DeletedAt = &deletedAt.Time
	}
	return b, nil
}

func (t *sqliteTx) CreateBookmark(b *model.Bookmark) error {
	_, err := t.tx.Exec(`INSERT INTO bookmarks (id, owner_id, title, url, deleted, deleted_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.OwnerID, b.Title, b.URL, b.Deleted, nullableTime(b.DeletedAt), b.CreatedAt)
	return mapSQLiteErr(err)
}

func (t *sqliteTx) SetBookmarkDeleted(id string, deleted bool, deletedAt *time.Time) error {
	_, err := t.tx.Exec(`UPDATE bookmarks SET deleted = ?, deleted_at = ? WHERE id = ?`,
		deleted, nullableTime(deletedAt), id)
	return mapSQLiteErr(err)
}

// Folder membership operations

func (t *sqliteTx) AddFolderBookmark(m *model.FolderBookmark) error {
	_, err := t.tx.Exec(`INSERT INTO folder_bookmarks (folder_id, bookmark_id, added_at) VALUES (?, ?, ?)`,
		m.FolderID, m.BookmarkID, m.AddedAt)
	return mapSQLiteErr(err)
}

func (t *sqliteTx) DeleteFolderBookmark(folderID, bookmarkID string) error {
	_, err := t.tx.Exec(`DELETE FROM folder_bookmarks WHERE folder_id = ? AND bookmark_id = ?`, folderID, bookmarkID)
	return mapSQLiteErr(err)
}

func (t *sqliteTx) FolderIDsForBookmark(bookmarkID string) ([]string, error) {
	return t.idList(`SELECT folder_id FROM folder_bookmarks WHERE bookmark_id = ?`, bookmarkID)
}

// Collection membership operations

func (t *sqliteTx) CollectionMembers(collectionID string) ([]*model.BookmarkCollection, error) {
	rows, err := t.tx.Query(`SELECT collection_id, bookmark_id, added_at, ord
		FROM bookmark_collections WHERE collection_id = ? ORDER BY ord`, collectionID)
	if err != nil {
		return nil, fmt.Errorf("listing collection members: %w", err)
	}
	defer rows.Close()

	var members []*model.BookmarkCollection
	for rows.Next() {
		m := &model.BookmarkCollection{}
		if err := rows.Scan(&m.CollectionID, &m.BookmarkID, &m.AddedAt, &m.Ord); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (t *sqliteTx) GetCollectionMember(collectionID, bookmarkID string) (*model.BookmarkCollection, error) {
	row := t.tx.QueryRow(`SELECT collection_id, bookmark_id, added_at, ord
		FROM bookmark_collections WHERE collection_id = ? AND bookmark_id = ?`, collectionID, bookmarkID)
	m := &model.BookmarkCollection{}
	if err := row.Scan(&m.CollectionID, &m.BookmarkID, &m.AddedAt, &m.Ord); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("loading collection member: %w", err)
	}
	return m, nil
}

func (t *sqliteTx) AddCollectionMember(m *model.BookmarkCollection) error {
	_, err := t.tx.Exec(`INSERT INTO bookmark_collections (collection_id, bookmark_id, added_at, ord)
		VALUES (?, ?, ?, ?)`,
		m.CollectionID, m.BookmarkID, m.AddedAt, m.Ord)
	return mapSQLiteErr(err)
}

func (t *sqliteTx) UpdateCollectionMemberOrd(collectionID, bookmarkID string, ord float64) error {
	_, err := t.tx.Exec(`UPDATE bookmark_collections SET ord = ? WHERE collection_id = ? AND bookmark_id = ?`,
		ord, collectionID, bookmarkID)
	return mapSQLiteErr(err)
}

func (t *sqliteTx) DeleteCollectionMember(collectionID, bookmarkID string) error {
	_, err := t.tx.Exec(`DELETE FROM bookmark_collections WHERE collection_id = ? AND bookmark_id = ?`, collectionID, bookmarkID)
	return mapSQLiteErr(err)
}

func (t *sqliteTx) CollectionIDsForBookmark(bookmarkID string) ([]string, error) {
	return t.idList(`SELECT collection_id FROM bookmark_collections WHERE bookmark_id = ?`, bookmarkID)
}

// Tag operations

func (t *sqliteTx) GetTag(id string) (*model.Tag, error) {
	row := t.tx.QueryRow(`SELECT id, owner_id, name, created_at FROM tags WHERE id = ?`, id)
	tag := &model.Tag{}
	if err := row.Scan(&tag.ID, &tag.OwnerID, &tag.Name, &tag.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("loading tag: %w", err)
	}
	return tag, nil
}

func (t *sqliteTx) CreateTag(tag *model.Tag) error {
	_, err := t.tx.Exec(`INSERT INTO tags (id, owner_id, name, created_at) VALUES (?, ?, ?, ?)`,
		tag.ID, tag.OwnerID, tag.Name, tag.CreatedAt)
	return mapSQLiteErr(err)
}

func (t *sqliteTx) AddBookmarkTag(bt *model.BookmarkTag) error {
	// OR IGNORE: tagging is idempotent.
	_, err := t.tx.Exec(`INSERT OR IGNORE INTO bookmark_tags (tag_id, bookmark_id) VALUES (?, ?)`,
		bt.TagID, bt.BookmarkID)
	return mapSQLiteErr(err)
}

func (t *sqliteTx) DeleteBookmarkTag(tagID, bookmarkID string) error {
	_, err := t.tx.Exec(`DELETE FROM bookmark_tags WHERE tag_id = ? AND bookmark_id = ?`, tagID, bookmarkID)
	return mapSQLiteErr(err)
}

// Helpers

func (t *sqliteTx) idList(query string, args ...any) ([]string, error) {
	rows, err := t.tx.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
