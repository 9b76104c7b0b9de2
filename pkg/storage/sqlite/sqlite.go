// Package sqlite provides a SQLite-backed storage driver.
//
// Lists of entry ids and memory snapshots are serialized to JSON at this
// boundary only; everything above works with typed structs.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lattermind/mnemo/pkg/memory"
	"github.com/lattermind/mnemo/pkg/storage"
)

// Driver implements storage.Driver using SQLite.
type Driver struct {
	db *sql.DB
}

// NewDriver opens or creates a SQLite database at dbPath. The path may be
// ":memory:" for an in-memory database.
func NewDriver(dbPath string) (*Driver, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	d := &Driver{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return d, nil
}

func (d *Driver) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS memories (
		id                TEXT PRIMARY KEY,
		owner             TEXT NOT NULL,
		memory_type       TEXT NOT NULL,
		category          TEXT NOT NULL DEFAULT 'general',
		content           TEXT NOT NULL,
		source_entry_ids  TEXT,
		confidence        REAL NOT NULL DEFAULT 1.0,
		importance        INTEGER NOT NULL DEFAULT 5,
		first_observed_at TEXT NOT NULL,
		last_confirmed_at TEXT NOT NULL,
		mention_count     INTEGER NOT NULL DEFAULT 1,
		is_active         INTEGER NOT NULL DEFAULT 1,
		superseded_by     TEXT,
		user_confirmed    INTEGER NOT NULL DEFAULT 0,
		created_at        TEXT NOT NULL,
		updated_at        TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_memories_owner_active ON memories(owner, is_active);
	CREATE INDEX IF NOT EXISTS idx_memories_owner_type ON memories(owner, memory_type);

	CREATE TABLE IF NOT EXISTS extraction_jobs (
		id              TEXT PRIMARY KEY,
		owner           TEXT NOT NULL,
		source_entry_id TEXT NOT NULL,
		status          TEXT NOT NULL,
		extracted       TEXT,
		notes           TEXT NOT NULL DEFAULT '',
		created_at      TEXT NOT NULL,
		processed_at    TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_jobs_owner_entry ON extraction_jobs(owner, source_entry_id);
	CREATE INDEX IF NOT EXISTS idx_jobs_status_created ON extraction_jobs(status, created_at);

	CREATE TABLE IF NOT EXISTS context_cache (
		owner           TEXT PRIMARY KEY,
		context_summary TEXT NOT NULL,
		snapshot        TEXT,
		last_updated_at TEXT NOT NULL,
		invalidated_at  TEXT
	);
	`
	_, err := d.db.Exec(schema)
	return err
}

const timeLayout = time.RFC3339Nano

func encodeTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func decodeTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func encodeNullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return encodeTime(*t)
}

func decodeNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := decodeTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// encodeJSON marshals v, mapping nil-able empty slices to SQL NULL.
func encodeJSON(v any, empty bool) (any, error) {
	if empty {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	return string(data), nil
}

// CreateMemory inserts a new memory record.
func (d *Driver) CreateMemory(ctx context.Context, m *memory.Memory) error {
	sourceIDs, err := encodeJSON(m.SourceEntryIDs, len(m.SourceEntryIDs) == 0)
	if err != nil {
		return fmt.Errorf("encode source entry ids: %w", err)
	}

	var supersededBy any
	if m.SupersededBy != nil {
		supersededBy = *m.SupersededBy
	}

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO memories (
			id, owner, memory_type, category, content, source_entry_ids,
			confidence, importance, first_observed_at, last_confirmed_at,
			mention_count, is_active, superseded_by, user_confirmed,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Owner, string(m.Type), string(m.Category), m.Content, sourceIDs,
		m.Confidence, m.Importance, encodeTime(m.FirstObservedAt), encodeTime(m.LastConfirmedAt),
		m.MentionCount, boolToInt(m.Active), supersededBy, boolToInt(m.UserConfirmed),
		encodeTime(m.CreatedAt), encodeTime(m.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert memory: %w", err)
	}

	return nil
}

// GetMemory retrieves a memory by id.
func (d *Driver) GetMemory(ctx context.Context, id string) (*memory.Memory, error) {
	row := d.db.QueryRowContext(ctx, memorySelect+` WHERE id = ?`, id)
	m, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, storage.NotFoundError{Entity: "memory", ID: id}
	}
	return m, err
}

// UpdateMemory overwrites an existing memory row.
func (d *Driver) UpdateMemory(ctx context.Context, m *memory.Memory) error {
	sourceIDs, err := encodeJSON(m.SourceEntryIDs, len(m.SourceEntryIDs) == 0)
	if err != nil {
		return fmt.Errorf("encode source entry ids: %w", err)
	}

	var supersededBy any
	if m.SupersededBy != nil {
		supersededBy = *m.SupersededBy
	}

	res, err := d.db.ExecContext(ctx, `
		UPDATE memories SET
			owner = ?, memory_type = ?, category = ?, content = ?,
			source_entry_ids = ?, confidence = ?, importance = ?,
			first_observed_at = ?, last_confirmed_at = ?, mention_count = ?,
			is_active = ?, superseded_by = ?, user_confirmed = ?, updated_at = ?
		WHERE id = ?`,
		m.Owner, string(m.Type), string(m.Category), m.Content,
		sourceIDs, m.Confidence, m.Importance,
		encodeTime(m.FirstObservedAt), encodeTime(m.LastConfirmedAt), m.MentionCount,
		boolToInt(m.Active), supersededBy, boolToInt(m.UserConfirmed), encodeTime(m.UpdatedAt),
		m.ID,
	)
	if err != nil {
		return fmt.Errorf("update memory: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.NotFoundError{Entity: "memory", ID: m.ID}
	}

	return nil
}

// ConfirmMemory bumps mention_count and last_confirmed_at in one UPDATE so
// concurrent confirmations never lose increments.
func (d *Driver) ConfirmMemory(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := d.db.ExecContext(ctx, `
		UPDATE memories
		SET mention_count = mention_count + 1, last_confirmed_at = ?, updated_at = ?
		WHERE id = ?`,
		encodeTime(at), encodeTime(at), id,
	)
	if err != nil {
		return false, fmt.Errorf("confirm memory: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return n > 0, nil
}

// ListMemories returns all of an owner's memories.
func (d *Driver) ListMemories(ctx context.Context, owner string, activeOnly bool) ([]*memory.Memory, error) {
	query := memorySelect + ` WHERE owner = ?`
	if activeOnly {
		query += ` AND is_active = 1`
	}

	rows, err := d.db.QueryContext(ctx, query, owner)
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}
	defer rows.Close()

	var result []*memory.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, m)
	}

	return result, rows.Err()
}

// CountActiveMemories returns the number of active memories for owner.
func (d *Driver) CountActiveMemories(ctx context.Context, owner string) (int, error) {
	var count int
	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM memories WHERE owner = ? AND is_active = 1`, owner,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count memories: %w", err)
	}

	return count, nil
}

// DeleteMemoriesByOwner hard-deletes every memory row for owner.
func (d *Driver) DeleteMemoriesByOwner(ctx context.Context, owner string) (int, error) {
	res, err := d.db.ExecContext(ctx, `DELETE FROM memories WHERE owner = ?`, owner)
	if err != nil {
		return 0, fmt.Errorf("delete memories: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	return int(n), nil
}

// CreateJob inserts a new extraction job.
func (d *Driver) CreateJob(ctx context.Context, j *memory.ExtractionJob) error {
	extracted, err := encodeJSON(j.Extracted, len(j.Extracted) == 0)
	if err != nil {
		return fmt.Errorf("encode extracted snapshot: %w", err)
	}

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO extraction_jobs (
			id, owner, source_entry_id, status, extracted, notes, created_at, processed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		j.ID, j.Owner, j.SourceEntryID, string(j.Status), extracted, j.Notes,
		encodeTime(j.CreatedAt), encodeNullTime(j.ProcessedAt),
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}

	return nil
}

// GetJob retrieves a job by id.
func (d *Driver) GetJob(ctx context.Context, id string) (*memory.ExtractionJob, error) {
	row := d.db.QueryRowContext(ctx, jobSelect+` WHERE id = ?`, id)
	j, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, storage.NotFoundError{Entity: "extraction job", ID: id}
	}
	return j, err
}

// UpdateJob overwrites an existing job row.
func (d *Driver) UpdateJob(ctx context.Context, j *memory.ExtractionJob) error {
	extracted, err := encodeJSON(j.Extracted, len(j.Extracted) == 0)
	if err != nil {
		return fmt.Errorf("encode extracted snapshot: %w", err)
	}

	res, err := d.db.ExecContext(ctx, `
		UPDATE extraction_jobs SET
			owner = ?, source_entry_id = ?, status = ?, extracted = ?,
			notes = ?, processed_at = ?
		WHERE id = ?`,
		j.Owner, j.SourceEntryID, string(j.Status), extracted,
		j.Notes, encodeNullTime(j.ProcessedAt),
		j.ID,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.NotFoundError{Entity: "extraction job", ID: j.ID}
	}

	return nil
}

// GetInFlightJob returns the pending or processing job for the entry, or nil.
func (d *Driver) GetInFlightJob(ctx context.Context, owner, sourceEntryID string) (*memory.ExtractionJob, error) {
	row := d.db.QueryRowContext(ctx,
		jobSelect+` WHERE owner = ? AND source_entry_id = ? AND status IN ('pending', 'processing') LIMIT 1`,
		owner, sourceEntryID,
	)
	j, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return j, err
}

// ListPendingJobs returns up to limit pending jobs, oldest first.
func (d *Driver) ListPendingJobs(ctx context.Context, limit int) ([]*memory.ExtractionJob, error) {
	query := jobSelect + ` WHERE status = 'pending' ORDER BY created_at ASC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list pending jobs: %w", err)
	}
	defer rows.Close()

	var result []*memory.ExtractionJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, j)
	}

	return result, rows.Err()
}

// PurgeTerminalJobs removes completed and failed jobs created before cutoff.
func (d *Driver) PurgeTerminalJobs(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := d.db.ExecContext(ctx,
		`DELETE FROM extraction_jobs WHERE status IN ('completed', 'failed') AND created_at < ?`,
		encodeTime(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("purge jobs: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	return int(n), nil
}

// GetCacheEntry retrieves the cache entry for owner.
func (d *Driver) GetCacheEntry(ctx context.Context, owner string) (*memory.ContextCacheEntry, error) {
	row := d.db.QueryRowContext(ctx, `
		SELECT owner, context_summary, snapshot, last_updated_at, invalidated_at
		FROM context_cache WHERE owner = ?`, owner)

	var (
		e             memory.ContextCacheEntry
		snapshot      sql.NullString
		lastUpdated   string
		invalidatedAt sql.NullString
	)
	err := row.Scan(&e.Owner, &e.ContextSummary, &snapshot, &lastUpdated, &invalidatedAt)
	if err == sql.ErrNoRows {
		return nil, storage.NotFoundError{Entity: "context cache entry", ID: owner}
	}
	if err != nil {
		return nil, fmt.Errorf("scan cache entry: %w", err)
	}

	if snapshot.Valid {
		if err := json.Unmarshal([]byte(snapshot.String), &e.Snapshot); err != nil {
			return nil, fmt.Errorf("decode snapshot: %w", err)
		}
	}
	if e.LastUpdatedAt, err = decodeTime(lastUpdated); err != nil {
		return nil, fmt.Errorf("decode last_updated_at: %w", err)
	}
	if e.InvalidatedAt, err = decodeNullTime(invalidatedAt); err != nil {
		return nil, fmt.Errorf("decode invalidated_at: %w", err)
	}

	return &e, nil
}

// UpsertCacheEntry inserts or replaces the cache entry for its owner.
func (d *Driver) UpsertCacheEntry(ctx context.Context, e *memory.ContextCacheEntry) error {
	snapshot, err := encodeJSON(e.Snapshot, len(e.Snapshot) == 0)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO context_cache (owner, context_summary, snapshot, last_updated_at, invalidated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(owner) DO UPDATE SET
			context_summary = excluded.context_summary,
			snapshot = excluded.snapshot,
			last_updated_at = excluded.last_updated_at,
			invalidated_at = excluded.invalidated_at`,
		e.Owner, e.ContextSummary, snapshot, encodeTime(e.LastUpdatedAt), encodeNullTime(e.InvalidatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert cache entry: %w", err)
	}

	return nil
}

// InvalidateCacheEntry stamps the owner's entry; missing entries are a no-op.
func (d *Driver) InvalidateCacheEntry(ctx context.Context, owner string, at time.Time) error {
	_, err := d.db.ExecContext(ctx,
		`UPDATE context_cache SET invalidated_at = ? WHERE owner = ?`,
		encodeTime(at), owner,
	)
	if err != nil {
		return fmt.Errorf("invalidate cache entry: %w", err)
	}

	return nil
}

// DeleteCacheEntry removes the owner's entry; missing entries are a no-op.
func (d *Driver) DeleteCacheEntry(ctx context.Context, owner string) error {
	_, err := d.db.ExecContext(ctx, `DELETE FROM context_cache WHERE owner = ?`, owner)
	if err != nil {
		return fmt.Errorf("delete cache entry: %w", err)
	}

	return nil
}

// Close closes the underlying database.
func (d *Driver) Close() error {
	return d.db.Close()
}

const memorySelect = `
	SELECT id, owner, memory_type, category, content, source_entry_ids,
	       confidence, importance, first_observed_at, last_confirmed_at,
	       mention_count, is_active, superseded_by, user_confirmed,
	       created_at, updated_at
	FROM memories`

const jobSelect = `
	SELECT id, owner, source_entry_id, status, extracted, notes, created_at, processed_at
	FROM extraction_jobs`

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanMemory(row scanner) (*memory.Memory, error) {
	var (
		m             memory.Memory
		memType       string
		category      string
		sourceIDs     sql.NullString
		firstObserved string
		lastConfirmed string
		active        int
		supersededBy  sql.NullString
		userConfirmed int
		createdAt     string
		updatedAt     string
	)

	err := row.Scan(
		&m.ID, &m.Owner, &memType, &category, &m.Content, &sourceIDs,
		&m.Confidence, &m.Importance, &firstObserved, &lastConfirmed,
		&m.MentionCount, &active, &supersededBy, &userConfirmed,
		&createdAt, &updatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan memory: %w", err)
	}

	m.Type = memory.Type(memType)
	m.Category = memory.Category(category)
	m.Active = active != 0
	m.UserConfirmed = userConfirmed != 0

	if sourceIDs.Valid {
		if err := json.Unmarshal([]byte(sourceIDs.String), &m.SourceEntryIDs); err != nil {
			return nil, fmt.Errorf("decode source entry ids: %w", err)
		}
	}
	if supersededBy.Valid {
		v := supersededBy.String
		m.SupersededBy = &v
	}
	if m.FirstObservedAt, err = decodeTime(firstObserved); err != nil {
		return nil, fmt.Errorf("decode first_observed_at: %w", err)
	}
	if m.LastConfirmedAt, err = decodeTime(lastConfirmed); err != nil {
		return nil, fmt.Errorf("decode last_confirmed_at: %w", err)
	}
	if m.CreatedAt, err = decodeTime(createdAt); err != nil {
		return nil, fmt.Errorf("decode created_at: %w", err)
	}
	if m.UpdatedAt, err = decodeTime(updatedAt); err != nil {
		return nil, fmt.Errorf("decode updated_at: %w", err)
	}

	return &m, nil
}

func scanJob(row scanner) (*memory.ExtractionJob, error) {
	var (
		j           memory.ExtractionJob
		status      string
		extracted   sql.NullString
		createdAt   string
		processedAt sql.NullString
	)

	err := row.Scan(&j.ID, &j.Owner, &j.SourceEntryID, &status, &extracted, &j.Notes, &createdAt, &processedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan job: %w", err)
	}

	j.Status = memory.JobStatus(status)
	if extracted.Valid {
		if err := json.Unmarshal([]byte(extracted.String), &j.Extracted); err != nil {
			return nil, fmt.Errorf("decode extracted snapshot: %w", err)
		}
	}
	if j.CreatedAt, err = decodeTime(createdAt); err != nil {
		return nil, fmt.Errorf("decode created_at: %w", err)
	}
	if j.ProcessedAt, err = decodeNullTime(processedAt); err != nil {
		return nil, fmt.Errorf("decode processed_at: %w", err)
	}

	return &j, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
