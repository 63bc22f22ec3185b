package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mediarank/mediarank/internal/models"
	"github.com/mediarank/mediarank/internal/services"
)

// SQLiteStore backs every service of the lifecycle engine with a
// single embedded database. All reads that inform a decision hit the
// store fresh; nothing is cached in process.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New("nil db")
	}
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("apply sqlite pragma %q: %w", stmt, err)
		}
	}
	return &SQLiteStore{db: db}, nil
}

func toNullString(s string) sql.NullString {
	if strings.TrimSpace(s) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func fromNullString(ns sql.NullString) string {
	if !ns.Valid {
		return ""
	}
	return ns.String
}

func fromNullTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

// --- admins ---

func (s *SQLiteStore) FindAdminByUsername(username string) (*models.Admin, error) {
	row := s.db.QueryRow(
		`SELECT id, username, password_hash, is_super_admin, created_at FROM admins WHERE username = ?`,
		username)
	var a models.Admin
	var super int64
	if err := row.Scan(&a.ID, &a.Username, &a.PasswordHash, &super, &a.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find admin: %w", err)
	}
	a.SuperAdmin = super != 0
	return &a, nil
}

// UpsertAdmin creates or replaces an admin credential. Used by the
// seed-admin command; admin-account management is otherwise external.
func (s *SQLiteStore) UpsertAdmin(username string, passwordHash []byte, superAdmin bool) error {
	super := 0
	if superAdmin {
		super = 1
	}
	_, err := s.db.Exec(
		`INSERT INTO admins (username, password_hash, is_super_admin)
		 VALUES (?, ?, ?)
		 ON CONFLICT(username)
		 DO UPDATE SET password_hash = excluded.password_hash, is_super_admin = excluded.is_super_admin`,
		username, passwordHash, super)
	if err != nil {
		return fmt.Errorf("upsert admin: %w", err)
	}
	return nil
}

// --- categories / media catalog ---

func (s *SQLiteStore) InsertCategory(c *models.Category) (*models.Category, error) {
	res, err := s.db.Exec(
		`INSERT INTO categories (name, media_type, created_at) VALUES (?, ?, ?)`,
		c.Name, c.MediaType, c.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, services.NewConflictError("category name already exists")
		}
		return nil, fmt.Errorf("insert category: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert category id: %w", err)
	}
	c.ID = id
	return c, nil
}

func (s *SQLiteStore) GetCategory(id int64) (*models.Category, error) {
	return s.scanCategory(s.db.QueryRow(
		`SELECT id, name, media_type, created_at FROM categories WHERE id = ?`, id))
}

func (s *SQLiteStore) GetCategoryByName(name string) (*models.Category, error) {
	return s.scanCategory(s.db.QueryRow(
		`SELECT id, name, media_type, created_at FROM categories WHERE name = ?`, name))
}

func (s *SQLiteStore) scanCategory(row *sql.Row) (*models.Category, error) {
	var c models.Category
	if err := row.Scan(&c.ID, &c.Name, &c.MediaType, &c.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan category: %w", err)
	}
	return &c, nil
}

func (s *SQLiteStore) ListCategories() ([]*models.Category, error) {
	rows, err := s.db.Query(
		`SELECT id, name, media_type, created_at FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()
	var out []*models.Category
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.MediaType, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeleteCategory(id int64) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete category: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// InsertMediaFile registers a catalog row for an already-stored media
// file. The bytes themselves are owned by the storage subsystem.
func (s *SQLiteStore) InsertMediaFile(mf *models.MediaFile) (*models.MediaFile, error) {
	res, err := s.db.Exec(
		`INSERT INTO media_files (filename, file_path, media_type, mime_type, uploaded_at)
		 VALUES (?, ?, ?, ?, ?)`,
		mf.Filename, mf.FilePath, mf.MediaType, mf.MimeType, mf.UploadedAt)
	if err != nil {
		return nil, fmt.Errorf("insert media file: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert media file id: %w", err)
	}
	mf.ID = id
	return mf, nil
}

func (s *SQLiteStore) GetMediaFile(id int64) (*models.MediaFile, error) {
	row := s.db.QueryRow(
		`SELECT id, filename, file_path, media_type, mime_type, uploaded_at
		 FROM media_files WHERE id = ?`, id)
	var mf models.MediaFile
	if err := row.Scan(&mf.ID, &mf.Filename, &mf.FilePath, &mf.MediaType, &mf.MimeType, &mf.UploadedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan media file: %w", err)
	}
	return &mf, nil
}

func (s *SQLiteStore) ListMedia() ([]*models.MediaFileWithCategories, error) {
	rows, err := s.db.Query(
		`SELECT id, filename, file_path, media_type, mime_type, uploaded_at
		 FROM media_files ORDER BY uploaded_at`)
	if err != nil {
		return nil, fmt.Errorf("list media: %w", err)
	}
	defer rows.Close()
	var out []*models.MediaFileWithCategories
	byID := map[int64]*models.MediaFileWithCategories{}
	for rows.Next() {
		var mf models.MediaFile
		if err := rows.Scan(&mf.ID, &mf.Filename, &mf.FilePath, &mf.MediaType, &mf.MimeType, &mf.UploadedAt); err != nil {
			return nil, fmt.Errorf("scan media file: %w", err)
		}
		entry := &models.MediaFileWithCategories{MediaFile: mf, Categories: []*models.Category{}}
		out = append(out, entry)
		byID[mf.ID] = entry
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	catRows, err := s.db.Query(
		`SELECT mfc.media_file_id, c.id, c.name, c.media_type, c.created_at
		 FROM media_file_categories mfc
		 JOIN categories c ON c.id = mfc.category_id
		 ORDER BY c.name`)
	if err != nil {
		return nil, fmt.Errorf("list media categories: %w", err)
	}
	defer catRows.Close()
	for catRows.Next() {
		var mediaID int64
		var c models.Category
		if err := catRows.Scan(&mediaID, &c.ID, &c.Name, &c.MediaType, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan media category: %w", err)
		}
		if entry, ok := byID[mediaID]; ok {
			entry.Categories = append(entry.Categories, &c)
		}
	}
	return out, catRows.Err()
}

func (s *SQLiteStore) SetMediaCategories(mediaFileID int64, categoryIDs []int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("set media categories: %w", err)
	}
	defer tx.Rollback()
	if _, err := tx.Exec(`DELETE FROM media_file_categories WHERE media_file_id = ?`, mediaFileID); err != nil {
		return fmt.Errorf("clear media categories: %w", err)
	}
	for _, cid := range categoryIDs {
		if _, err := tx.Exec(
			`INSERT OR IGNORE INTO media_file_categories (media_file_id, category_id) VALUES (?, ?)`,
			mediaFileID, cid); err != nil {
			return fmt.Errorf("assign media category: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) MediaForTest(testID int64) ([]*models.MediaFile, error) {
	rows, err := s.db.Query(
		`SELECT DISTINCT mf.id, mf.filename, mf.file_path, mf.media_type, mf.mime_type, mf.uploaded_at
		 FROM media_files mf
		 JOIN media_file_categories mfc ON mf.id = mfc.media_file_id
		 JOIN test_categories tc ON mfc.category_id = tc.category_id
		 WHERE tc.test_id = ?
		 ORDER BY mf.uploaded_at`, testID)
	if err != nil {
		return nil, fmt.Errorf("media for test: %w", err)
	}
	defer rows.Close()
	var out []*models.MediaFile
	for rows.Next() {
		var mf models.MediaFile
		if err := rows.Scan(&mf.ID, &mf.Filename, &mf.FilePath, &mf.MediaType, &mf.MimeType, &mf.UploadedAt); err != nil {
			return nil, fmt.Errorf("scan media file: %w", err)
		}
		out = append(out, &mf)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) MediaInTest(testID, mediaFileID int64) (bool, error) {
	var exists int
	err := s.db.QueryRow(
		`SELECT EXISTS (
		   SELECT 1
		   FROM media_file_categories mfc
		   JOIN test_categories tc ON mfc.category_id = tc.category_id
		   WHERE tc.test_id = ? AND mfc.media_file_id = ?)`,
		testID, mediaFileID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("media in test: %w", err)
	}
	return exists != 0, nil
}

// --- tests ---

func (s *SQLiteStore) InsertTest(t *models.Test, categoryID int64) (*models.Test, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("insert test: %w", err)
	}
	defer tx.Rollback()
	loop := 0
	if t.LoopMedia {
		loop = 1
	}
	res, err := tx.Exec(
		`INSERT INTO tests (name, description, created_by, status, loop_media, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		t.Name, toNullString(t.Description), toNullString(t.CreatedBy), t.Status, loop, t.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert test: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert test id: %w", err)
	}
	if _, err := tx.Exec(
		`INSERT INTO test_categories (test_id, category_id) VALUES (?, ?)`, id, categoryID); err != nil {
		return nil, fmt.Errorf("link test category: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("insert test commit: %w", err)
	}
	t.ID = id
	return t, nil
}

func (s *SQLiteStore) GetTest(id int64) (*models.Test, error) {
	row := s.db.QueryRow(
		`SELECT id, name, description, created_by, status, loop_media, created_at
		 FROM tests WHERE id = ?`, id)
	return scanTest(row)
}

func scanTest(row *sql.Row) (*models.Test, error) {
	var t models.Test
	var desc, createdBy sql.NullString
	var loop int64
	if err := row.Scan(&t.ID, &t.Name, &desc, &createdBy, &t.Status, &loop, &t.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan test: %w", err)
	}
	t.Description = fromNullString(desc)
	t.CreatedBy = fromNullString(createdBy)
	t.LoopMedia = loop != 0
	return &t, nil
}

func (s *SQLiteStore) ListTests() ([]*models.Test, error) {
	rows, err := s.db.Query(
		`SELECT id, name, description, created_by, status, loop_media, created_at
		 FROM tests ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list tests: %w", err)
	}
	defer rows.Close()
	var out []*models.Test
	for rows.Next() {
		var t models.Test
		var desc, createdBy sql.NullString
		var loop int64
		if err := rows.Scan(&t.ID, &t.Name, &desc, &createdBy, &t.Status, &loop, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan test: %w", err)
		}
		t.Description = fromNullString(desc)
		t.CreatedBy = fromNullString(createdBy)
		t.LoopMedia = loop != 0
		out = append(out, &t)
	}
	return out, rows.Err()
}

// CloseTest performs the open->closed transition as one conditional
// statement; zero rows means the test was already closed.
func (s *SQLiteStore) CloseTest(id int64) (bool, error) {
	res, err := s.db.Exec(
		`UPDATE tests SET status = ? WHERE id = ? AND status = ?`,
		models.TestStatusClosed, id, models.TestStatusOpen)
	if err != nil {
		return false, fmt.Errorf("close test: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLiteStore) DeleteTest(id int64) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM tests WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete test: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// --- sessions (test_users) ---

const sessionColumns = `id, test_id, email, one_time_token, accessed_at, completed_at`

func (s *SQLiteStore) InsertSession(sess *models.Session) (*models.Session, error) {
	res, err := s.db.Exec(
		`INSERT INTO test_users (test_id, email, one_time_token) VALUES (?, ?, ?)`,
		sess.TestID, sess.Email, sess.Token)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, services.NewConflictError("respondent already invited")
		}
		return nil, fmt.Errorf("insert session: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert session id: %w", err)
	}
	sess.ID = id
	return sess, nil
}

func (s *SQLiteStore) GetSession(id int64) (*models.Session, error) {
	return scanSession(s.db.QueryRow(
		`SELECT `+sessionColumns+` FROM test_users WHERE id = ?`, id))
}

func (s *SQLiteStore) GetSessionByToken(token string) (*models.Session, error) {
	return scanSession(s.db.QueryRow(
		`SELECT `+sessionColumns+` FROM test_users WHERE one_time_token = ?`, token))
}

func (s *SQLiteStore) GetSessionByEmail(testID int64, email string) (*models.Session, error) {
	return scanSession(s.db.QueryRow(
		`SELECT `+sessionColumns+` FROM test_users WHERE test_id = ? AND email = ?`, testID, email))
}

func scanSession(row *sql.Row) (*models.Session, error) {
	var sess models.Session
	var accessed, completed sql.NullTime
	if err := row.Scan(&sess.ID, &sess.TestID, &sess.Email, &sess.Token, &accessed, &completed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	sess.AccessedAt = fromNullTime(accessed)
	sess.CompletedAt = fromNullTime(completed)
	return &sess, nil
}

func (s *SQLiteStore) ListSessions(testID int64) ([]*models.Session, error) {
	rows, err := s.db.Query(
		`SELECT `+sessionColumns+` FROM test_users WHERE test_id = ? ORDER BY id DESC`, testID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()
	var out []*models.Session
	for rows.Next() {
		var sess models.Session
		var accessed, completed sql.NullTime
		if err := rows.Scan(&sess.ID, &sess.TestID, &sess.Email, &sess.Token, &accessed, &completed); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sess.AccessedAt = fromNullTime(accessed)
		sess.CompletedAt = fromNullTime(completed)
		out = append(out, &sess)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeleteSession(id, testID int64) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM test_users WHERE id = ? AND test_id = ?`, id, testID)
	if err != nil {
		return false, fmt.Errorf("delete session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MarkAccessed stamps the first successful resolution only.
func (s *SQLiteStore) MarkAccessed(sessionID int64, at time.Time) (bool, error) {
	res, err := s.db.Exec(
		`UPDATE test_users SET accessed_at = ? WHERE id = ? AND accessed_at IS NULL`,
		at, sessionID)
	if err != nil {
		return false, fmt.Errorf("mark accessed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MarkCompleted seals the session; the IS NULL guard makes the
// transition at-most-once under concurrent callers.
func (s *SQLiteStore) MarkCompleted(sessionID int64, at time.Time) (bool, error) {
	res, err := s.db.Exec(
		`UPDATE test_users SET completed_at = ? WHERE id = ? AND completed_at IS NULL`,
		at, sessionID)
	if err != nil {
		return false, fmt.Errorf("mark completed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// --- ratings ---

// UpsertRating inserts or overwrites in place, keyed on the
// (test_user_id, media_file_id) uniqueness, as one conflict-aware
// statement.
func (s *SQLiteStore) UpsertRating(r *models.Rating) (*models.Rating, error) {
	var comment sql.NullString
	if r.Comment != nil {
		comment = sql.NullString{String: *r.Comment, Valid: true}
	}
	_, err := s.db.Exec(
		`INSERT INTO ratings (test_user_id, media_file_id, stars, comment, rated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(test_user_id, media_file_id)
		 DO UPDATE SET stars = excluded.stars, comment = excluded.comment, rated_at = excluded.rated_at`,
		r.SessionID, r.MediaFileID, r.Stars, comment, r.RatedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert rating: %w", err)
	}
	return s.getRating(r.SessionID, r.MediaFileID)
}

func (s *SQLiteStore) getRating(sessionID, mediaFileID int64) (*models.Rating, error) {
	row := s.db.QueryRow(
		`SELECT id, test_user_id, media_file_id, stars, comment, rated_at
		 FROM ratings WHERE test_user_id = ? AND media_file_id = ?`,
		sessionID, mediaFileID)
	var r models.Rating
	var comment sql.NullString
	if err := row.Scan(&r.ID, &r.SessionID, &r.MediaFileID, &r.Stars, &comment, &r.RatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan rating: %w", err)
	}
	if comment.Valid {
		c := comment.String
		r.Comment = &c
	}
	return &r, nil
}

func (s *SQLiteStore) ListRatingsBySession(sessionID int64) ([]*models.Rating, error) {
	rows, err := s.db.Query(
		`SELECT id, test_user_id, media_file_id, stars, comment, rated_at
		 FROM ratings WHERE test_user_id = ? ORDER BY rated_at DESC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list ratings: %w", err)
	}
	defer rows.Close()
	var out []*models.Rating
	for rows.Next() {
		var r models.Rating
		var comment sql.NullString
		if err := rows.Scan(&r.ID, &r.SessionID, &r.MediaFileID, &r.Stars, &comment, &r.RatedAt); err != nil {
			return nil, fmt.Errorf("scan rating: %w", err)
		}
		if comment.Valid {
			c := comment.String
			r.Comment = &c
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

// AggregateRatings recomputes per-media mean and count from current
// rows on every call. Media files nobody rated produce no row.
func (s *SQLiteStore) AggregateRatings(testID int64) ([]*services.MediaAggregate, error) {
	rows, err := s.db.Query(
		`SELECT mf.id, mf.filename, mf.file_path, mf.media_type, mf.mime_type, mf.uploaded_at,
		        AVG(r.stars), COUNT(r.id)
		 FROM ratings r
		 JOIN test_users tu ON tu.id = r.test_user_id
		 JOIN media_files mf ON mf.id = r.media_file_id
		 WHERE tu.test_id = ?
		 GROUP BY mf.id
		 ORDER BY AVG(r.stars) DESC`, testID)
	if err != nil {
		return nil, fmt.Errorf("aggregate ratings: %w", err)
	}
	defer rows.Close()
	var out []*services.MediaAggregate
	for rows.Next() {
		var agg services.MediaAggregate
		mf := &agg.MediaFile
		if err := rows.Scan(&mf.ID, &mf.Filename, &mf.FilePath, &mf.MediaType, &mf.MimeType, &mf.UploadedAt,
			&agg.MeanStars, &agg.RatingCount); err != nil {
			return nil, fmt.Errorf("scan aggregate: %w", err)
		}
		out = append(out, &agg)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ListTestRatings(testID int64) ([]*services.IndividualRating, error) {
	rows, err := s.db.Query(
		`SELECT r.id, r.test_user_id, r.media_file_id, r.stars, r.comment, r.rated_at, tu.email,
		        mf.id, mf.filename, mf.file_path, mf.media_type, mf.mime_type, mf.uploaded_at
		 FROM ratings r
		 JOIN test_users tu ON r.test_user_id = tu.id
		 JOIN media_files mf ON r.media_file_id = mf.id
		 WHERE tu.test_id = ?
		 ORDER BY r.rated_at DESC`, testID)
	if err != nil {
		return nil, fmt.Errorf("list test ratings: %w", err)
	}
	defer rows.Close()
	var out []*services.IndividualRating
	for rows.Next() {
		var ir services.IndividualRating
		var comment sql.NullString
		r := &ir.Rating
		mf := &ir.MediaFile
		if err := rows.Scan(&r.ID, &r.SessionID, &r.MediaFileID, &r.Stars, &comment, &r.RatedAt, &ir.Email,
			&mf.ID, &mf.Filename, &mf.FilePath, &mf.MediaType, &mf.MimeType, &mf.UploadedAt); err != nil {
			return nil, fmt.Errorf("scan test rating: %w", err)
		}
		if comment.Valid {
			c := comment.String
			r.Comment = &c
		}
		out = append(out, &ir)
	}
	return out, rows.Err()
}

// --- activity log ---

func (s *SQLiteStore) InsertActivity(e *models.ActivityEntry) error {
	var entityID sql.NullInt64
	if e.EntityID != 0 {
		entityID = sql.NullInt64{Int64: e.EntityID, Valid: true}
	}
	_, err := s.db.Exec(
		`INSERT INTO activity_logs
		   (admin_username, user_email, action, entity_type, entity_id, details, ip_address, user_agent, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		toNullString(e.AdminUsername), toNullString(e.RespondentEmail), e.Action,
		toNullString(e.EntityType), entityID, toNullString(e.Details),
		toNullString(e.IPAddress), toNullString(e.UserAgent), e.Timestamp)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	return nil
}

// ListActivity filters with AND semantics and a [from, to) time range,
// newest first. The returned total counts the whole filtered set.
func (s *SQLiteStore) ListActivity(f services.ActivityFilter, limit, offset int) ([]*models.ActivityEntry, int, error) {
	var where []string
	var args []any
	if f.AdminUsername != "" {
		where = append(where, "admin_username = ?")
		args = append(args, f.AdminUsername)
	}
	if f.RespondentEmail != "" {
		where = append(where, "user_email = ?")
		args = append(args, f.RespondentEmail)
	}
	if f.Action != "" {
		where = append(where, "action = ?")
		args = append(args, f.Action)
	}
	if f.EntityType != "" {
		where = append(where, "entity_type = ?")
		args = append(args, f.EntityType)
	}
	if f.From != nil {
		where = append(where, "timestamp >= ?")
		args = append(args, *f.From)
	}
	if f.To != nil {
		where = append(where, "timestamp < ?")
		args = append(args, *f.To)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM activity_logs`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count activity: %w", err)
	}

	pageArgs := append(append([]any{}, args...), limit, offset)
	rows, err := s.db.Query(
		`SELECT id, admin_username, user_email, action, entity_type, entity_id, details, ip_address, user_agent, timestamp
		 FROM activity_logs`+clause+` ORDER BY timestamp DESC, id DESC LIMIT ? OFFSET ?`, pageArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()
	var out []*models.ActivityEntry
	for rows.Next() {
		var e models.ActivityEntry
		var admin, email, entityType, details, ip, agent sql.NullString
		var entityID sql.NullInt64
		if err := rows.Scan(&e.ID, &admin, &email, &e.Action, &entityType, &entityID, &details, &ip, &agent, &e.Timestamp); err != nil {
			return nil, 0, fmt.Errorf("scan activity: %w", err)
		}
		e.AdminUsername = fromNullString(admin)
		e.RespondentEmail = fromNullString(email)
		e.EntityType = fromNullString(entityType)
		if entityID.Valid {
			e.EntityID = entityID.Int64
		}
		e.Details = fromNullString(details)
		e.IPAddress = fromNullString(ip)
		e.UserAgent = fromNullString(agent)
		out = append(out, &e)
	}
	return out, total, rows.Err()
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

var (
	_ services.TestStore     = (*SQLiteStore)(nil)
	_ services.SessionStore  = (*SQLiteStore)(nil)
	_ services.RatingStore   = (*SQLiteStore)(nil)
	_ services.ResultsStore  = (*SQLiteStore)(nil)
	_ services.CatalogStore  = (*SQLiteStore)(nil)
	_ services.ActivityStore = (*SQLiteStore)(nil)
	_ services.AuthStore     = (*SQLiteStore)(nil)
)
