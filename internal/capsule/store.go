package capsule

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	// Register modernc SQLite driver with database/sql.
	_ "modernc.org/sqlite"
)

// Store is a SQLite-backed record store. It is safe for use from
// concurrent processes: writes serialize through SQLite's own locking
// and a busy timeout absorbs short contention.
type Store struct {
	db   *sql.DB
	path string
}

// buildDSN renders a modernc.org/sqlite DSN with the pragmas every
// connection needs. WAL keeps concurrent hook writers from starving.
func buildDSN(path string) string {
	if path == ":memory:" {
		return "file::memory:?cache=shared&_pragma=busy_timeout(5000)"
	}
	return "file:" + path +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=foreign_keys(ON)" +
		"&_pragma=busy_timeout(5000)"
}

// Open opens (creating if needed) the record store at path and brings
// its schema up to date.
func Open(ctx context.Context, path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("capsule: create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", buildDSN(path))
	if err != nil {
		return nil, fmt.Errorf("capsule: open database: %w", err)
	}
	// A single connection sidesteps table-lock races between pool members.
	db.SetMaxOpenConns(1)

	if err := applyMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, path: path}, nil
}

// OpenExisting opens the store at path only if the database file already
// exists. Hook handlers use this so a host without an installed store
// stays untouched.
func OpenExisting(ctx context.Context, path string) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("capsule: no store at %s: %w", path, err)
	}
	return Open(ctx, path)
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// DB exposes the raw handle for stats queries and tests.
func (s *Store) DB() *sql.DB {
	return s.db
}

const recordColumns = "namespace, title, summary, type, content, tags, created_at, updated_at, hit_count"

// Save upserts a record by (namespace, title). The namespace is
// normalized first. CreatedAt is preserved on update and UpdatedAt never
// moves backwards, even when two writers race.
func (s *Store) Save(ctx context.Context, rec *Record) error {
	ns, err := NormalizeNamespace(rec.Namespace)
	if err != nil {
		return err
	}
	if rec.Title == "" {
		return errors.New("capsule: record title required")
	}
	if rec.Type == "" {
		rec.Type = TypeSummary
	}

	now := time.Now()
	created := rec.CreatedAt
	if created.IsZero() {
		created = now
	}
	updated := rec.UpdatedAt
	if updated.IsZero() {
		updated = now
	}

	content, err := toJSONText(rec.Content)
	if err != nil {
		return fmt.Errorf("capsule: encode content: %w", err)
	}
	tags, err := toJSONText(rec.Tags)
	if err != nil {
		return fmt.Errorf("capsule: encode tags: %w", err)
	}

	const q = `INSERT INTO records (namespace, title, summary, type, content, tags, created_at, updated_at, hit_count)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0)
ON CONFLICT (namespace, title) DO UPDATE SET
    summary = excluded.summary,
    type = excluded.type,
    content = excluded.content,
    tags = excluded.tags,
    updated_at = MAX(records.updated_at, excluded.updated_at)`

	if _, err := s.db.ExecContext(ctx, q,
		ns, rec.Title, rec.Summary, string(rec.Type),
		content, tags, formatTime(created), formatTime(updated),
	); err != nil {
		return fmt.Errorf("capsule: save record: %w", err)
	}
	return nil
}

// Get fetches a single record by key. Returns ErrNotFound if absent.
func (s *Store) Get(ctx context.Context, namespace, title string) (*Record, error) {
	ns, err := NormalizeNamespace(namespace)
	if err != nil {
		return nil, err
	}

	q := "SELECT " + recordColumns + " FROM records WHERE namespace = ? AND title = ?"
	rec, err := scanRecord(s.db.QueryRowContext(ctx, q, ns, title))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("capsule: get record: %w", err)
	}
	return rec, nil
}

// GetAndTouch fetches a record and bumps its hit count. Access frequency
// feeds discovery ranking, so read-for-use paths go through here.
func (s *Store) GetAndTouch(ctx context.Context, namespace, title string) (*Record, error) {
	rec, err := s.Get(ctx, namespace, title)
	if err != nil {
		return nil, err
	}
	if err := s.touch(ctx, rec.Namespace, rec.Title); err != nil {
		return nil, err
	}
	rec.HitCount++
	return rec, nil
}

func (s *Store) touch(ctx context.Context, namespace, title string) error {
	const q = `UPDATE records SET hit_count = hit_count + 1 WHERE namespace = ? AND title = ?`
	if _, err := s.db.ExecContext(ctx, q, namespace, title); err != nil {
		return fmt.Errorf("capsule: touch record: %w", err)
	}
	return nil
}

// List returns the records directly at a namespace, most recent first.
// limit <= 0 means no limit.
func (s *Store) List(ctx context.Context, namespace string, limit int) ([]*Record, error) {
	ns, err := NormalizeNamespace(namespace)
	if err != nil {
		return nil, err
	}

	q := "SELECT " + recordColumns + " FROM records WHERE namespace = ? ORDER BY updated_at DESC"
	args := []interface{}{ns}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	return s.queryRecords(ctx, q, args...)
}

// ListPrefix returns records at a namespace and everything below it,
// most recent first. limit <= 0 means no limit.
func (s *Store) ListPrefix(ctx context.Context, prefix string, limit int) ([]*Record, error) {
	ns, err := NormalizeNamespace(prefix)
	if err != nil {
		return nil, err
	}

	q := "SELECT " + recordColumns + ` FROM records
WHERE (namespace = ? OR namespace LIKE ? ESCAPE '\')
ORDER BY updated_at DESC`
	args := []interface{}{ns, escapeLike(ns) + "/%"}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	return s.queryRecords(ctx, q, args...)
}

// Search matches term as a substring of title or summary, title matches
// ranking above summary matches, ties broken by recency.
func (s *Store) Search(ctx context.Context, term string, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + escapeLike(term) + "%"

	q := "SELECT " + recordColumns + ` FROM records
WHERE title LIKE ? ESCAPE '\' OR summary LIKE ? ESCAPE '\'
ORDER BY CASE WHEN title LIKE ? ESCAPE '\' THEN 0 ELSE 1 END, updated_at DESC
LIMIT ?`
	return s.queryRecords(ctx, q, pattern, pattern, pattern, limit)
}

// QueryOpts filters and orders a namespace-scoped query.
type QueryOpts struct {
	// Tag restricts results to records carrying the tag.
	Tag string
	// OrderByHits orders by hit_count (descending) instead of recency.
	OrderByHits bool
	// Limit caps results; <= 0 means no limit.
	Limit int
}

// Query lists records at a namespace with ordering and tag filtering.
func (s *Store) Query(ctx context.Context, namespace string, opts QueryOpts) ([]*Record, error) {
	ns, err := NormalizeNamespace(namespace)
	if err != nil {
		return nil, err
	}

	q := "SELECT " + recordColumns + " FROM records WHERE namespace = ?"
	args := []interface{}{ns}

	if opts.Tag != "" {
		q += ` AND tags LIKE ? ESCAPE '\'`
		args = append(args, `%"`+escapeLike(opts.Tag)+`"%`)
	}
	if opts.OrderByHits {
		q += " ORDER BY hit_count DESC, updated_at DESC"
	} else {
		q += " ORDER BY updated_at DESC"
	}
	if opts.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, opts.Limit)
	}
	return s.queryRecords(ctx, q, args...)
}

// resolveDepthLimit caps ALIAS/COLLECTION chasing so cyclic references
// terminate.
const resolveDepthLimit = 5

// Resolve fetches the records at a namespace and expands them: ALIAS
// records are replaced by the records at their target namespace and
// COLLECTION records by their listed children. Every record returned
// counts as an access and has its hit count bumped.
func (s *Store) Resolve(ctx context.Context, namespace string) ([]*Record, error) {
	recs, err := s.List(ctx, namespace, 0)
	if err != nil {
		return nil, err
	}

	visited := map[string]bool{}
	out := make([]*Record, 0, len(recs))
	queue := recs
	for depth := 0; depth < resolveDepthLimit && len(queue) > 0; depth++ {
		var next []*Record
		for _, rec := range queue {
			key := rec.Namespace + "\x00" + rec.Title
			if visited[key] {
				continue
			}
			visited[key] = true

			switch rec.Type {
			case TypeAlias:
				target := rec.ContentString("target")
				if target == "" {
					continue
				}
				children, err := s.List(ctx, target, 0)
				if err != nil {
					continue
				}
				next = append(next, children...)
			case TypeCollection:
				for _, child := range contentStringSlice(rec.Content, "children") {
					children, err := s.List(ctx, child, 0)
					if err != nil {
						continue
					}
					next = append(next, children...)
				}
				out = append(out, rec)
			default:
				out = append(out, rec)
			}
		}
		queue = next
	}

	for _, rec := range out {
		_ = s.touch(ctx, rec.Namespace, rec.Title)
		rec.HitCount++
	}
	return out, nil
}

// Prune deletes records whose updated_at is strictly before the cutoff.
// Returns the number of deleted records.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	const q = `DELETE FROM records WHERE updated_at < ?`
	res, err := s.db.ExecContext(ctx, q, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("capsule: prune records: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("capsule: prune rows affected: %w", err)
	}
	return int(n), nil
}

// CountOlderThan reports how many records Prune would delete at the
// same cutoff, without deleting anything.
func (s *Store) CountOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM records WHERE updated_at < ?`, formatTime(cutoff)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("capsule: count old records: %w", err)
	}
	return n, nil
}

// Delete removes one record by key. Missing records are not an error.
func (s *Store) Delete(ctx context.Context, namespace, title string) error {
	ns, err := NormalizeNamespace(namespace)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM records WHERE namespace = ? AND title = ?`, ns, title); err != nil {
		return fmt.Errorf("capsule: delete record: %w", err)
	}
	return nil
}

func (s *Store) queryRecords(ctx context.Context, q string, args ...interface{}) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("capsule: query records: %w", err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("capsule: scan record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("capsule: iterate records: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var rec Record
	var typ, content, tags, createdAt, updatedAt string
	if err := row.Scan(&rec.Namespace, &rec.Title, &rec.Summary, &typ,
		&content, &tags, &createdAt, &updatedAt, &rec.HitCount); err != nil {
		return nil, err
	}
	rec.Type = RecordType(typ)
	rec.CreatedAt = parseTime(createdAt)
	rec.UpdatedAt = parseTime(updatedAt)
	if err := fromJSONText(content, &rec.Content); err != nil {
		rec.Content = nil
	}
	if err := fromJSONText(tags, &rec.Tags); err != nil {
		rec.Tags = nil
	}
	return &rec, nil
}

func toJSONText(v interface{}) (string, error) {
	if v == nil {
		return "{}", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func fromJSONText(s string, v interface{}) error {
	if s == "" {
		return nil
	}
	return json.Unmarshal([]byte(s), v)
}

func contentStringSlice(content map[string]interface{}, key string) []string {
	if content == nil {
		return nil
	}
	raw, ok := content[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// escapeLike escapes LIKE wildcards so user text matches literally.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
