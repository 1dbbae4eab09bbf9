package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"reposter/internal/model"
	"reposter/migrations"
)

// timeLayout keeps sub-second precision so cursor comparisons stay exact.
const timeLayout = time.RFC3339Nano

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection: SQLite has a single writer and ":memory:" databases
	// are private to their connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := migrations.Run(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// SaveBatch stores messages and moves the channel cursor to the newest one.
func (s *SQLite) SaveBatch(ctx context.Context, channel string, msgs []model.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	newest := msgs[0].Date
	for i := range msgs {
		m := &msgs[i]
		res, err := tx.ExecContext(ctx,
			`INSERT INTO messages (channel, text, message_at, created_at) VALUES (?, ?, ?, ?)`,
			channel, m.Text, formatTime(m.Date), formatTime(time.Now()),
		)
		if err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
		m.ID = id
		m.Channel = channel
		if m.Date.After(newest) {
			newest = m.Date
		}
	}

	if err := upsertCursor(ctx, tx, channel, newest); err != nil {
		return err
	}
	return tx.Commit()
}

// ListMessages returns stored messages, newest first. A limit of 0 returns all.
func (s *SQLite) ListMessages(ctx context.Context, limit int) ([]model.Message, error) {
	query := `SELECT id, channel, text, message_at FROM messages ORDER BY id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var msgs []model.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, *m)
	}
	return msgs, rows.Err()
}

// RecentMessages returns the last RecentLimit stored messages, newest first.
func (s *SQLite) RecentMessages(ctx context.Context) ([]model.Message, error) {
	return s.ListMessages(ctx, RecentLimit)
}

// GetMessage returns a single message by its ID.
func (s *SQLite) GetMessage(ctx context.Context, id int64) (*model.Message, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, channel, text, message_at FROM messages WHERE id = ?`, id,
	)
	return scanMessage(row)
}

// DeleteMessage removes a message by its ID. The channel cursor is left as is.
func (s *SQLite) DeleteMessage(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return expectAffected(res, "message", id)
}

// GetCursor returns the last stored message timestamp for the channel,
// or nil when the channel was never scanned.
func (s *SQLite) GetCursor(ctx context.Context, channel string) (*time.Time, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT last_message_at FROM scan_cursors WHERE channel = ?`, channel,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cursor: %w", err)
	}
	t, err := parseTime(raw)
	if err != nil {
		return nil, fmt.Errorf("parse cursor %q: %w", raw, err)
	}
	return &t, nil
}

// SetCursor overwrites the cursor of the channel.
func (s *SQLite) SetCursor(ctx context.Context, channel string, at time.Time) error {
	return upsertCursor(ctx, s.db, channel, at)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertCursor(ctx context.Context, db execer, channel string, at time.Time) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO scan_cursors (channel, last_message_at, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(channel) DO UPDATE SET last_message_at = excluded.last_message_at, updated_at = excluded.updated_at`,
		channel, formatTime(at), formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("upsert cursor: %w", err)
	}
	return nil
}

// CreatePrompt inserts a new prompt and populates its ID.
func (s *SQLite) CreatePrompt(ctx context.Context, p *model.Prompt) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO prompts (name, message_prompt, image_prompt, name_prompt) VALUES (?, ?, ?, ?)`,
		p.Name, p.MessagePrompt, p.ImagePrompt, p.NamePrompt,
	)
	if err != nil {
		return fmt.Errorf("insert prompt: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	p.ID = id
	return nil
}

// GetPrompt returns a single prompt by its ID.
func (s *SQLite) GetPrompt(ctx context.Context, id int64) (*model.Prompt, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, message_prompt, image_prompt, name_prompt FROM prompts WHERE id = ?`, id,
	)
	var p model.Prompt
	err := row.Scan(&p.ID, &p.Name, &p.MessagePrompt, &p.ImagePrompt, &p.NamePrompt)
	if err != nil {
		return nil, wrapScan("prompt", err)
	}
	return &p, nil
}

// ListPrompts returns all prompts ordered by ID.
func (s *SQLite) ListPrompts(ctx context.Context) ([]model.Prompt, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, message_prompt, image_prompt, name_prompt FROM prompts ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query prompts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var prompts []model.Prompt
	for rows.Next() {
		var p model.Prompt
		if err := rows.Scan(&p.ID, &p.Name, &p.MessagePrompt, &p.ImagePrompt, &p.NamePrompt); err != nil {
			return nil, fmt.Errorf("scan prompt: %w", err)
		}
		prompts = append(prompts, p)
	}
	return prompts, rows.Err()
}

// UpdatePrompt persists the three prompt texts of an existing prompt.
func (s *SQLite) UpdatePrompt(ctx context.Context, p *model.Prompt) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE prompts SET message_prompt = ?, image_prompt = ?, name_prompt = ? WHERE id = ?`,
		p.MessagePrompt, p.ImagePrompt, p.NamePrompt, p.ID,
	)
	if err != nil {
		return fmt.Errorf("update prompt: %w", err)
	}
	return expectAffected(res, "prompt", p.ID)
}

// DeletePrompt removes a prompt by its ID.
func (s *SQLite) DeletePrompt(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM prompts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete prompt: %w", err)
	}
	return expectAffected(res, "prompt", id)
}

// SaveRewrite inserts a transformed message and populates its ID and CreatedAt.
func (s *SQLite) SaveRewrite(ctx context.Context, r *model.Rewrite) error {
	now := time.Now().UTC()
	var messageID *int64
	if r.MessageID != 0 {
		messageID = &r.MessageID
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO rewrites (message_id, title, original, text, image_path, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		messageID, r.Title, r.Original, r.Text, r.ImagePath, formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("insert rewrite: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	r.ID = id
	r.CreatedAt = now
	return nil
}

// GetRewrite returns a single rewrite by its ID.
func (s *SQLite) GetRewrite(ctx context.Context, id int64) (*model.Rewrite, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, message_id, title, original, text, image_path, published_at, created_at
		 FROM rewrites WHERE id = ?`, id,
	)
	return scanRewrite(row)
}

// ListRewrites returns all rewrites, newest first.
func (s *SQLite) ListRewrites(ctx context.Context) ([]model.Rewrite, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, message_id, title, original, text, image_path, published_at, created_at
		 FROM rewrites ORDER BY id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query rewrites: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Rewrite
	for rows.Next() {
		r, err := scanRewrite(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// UpdateRewrite persists a regenerated title, text or image of a rewrite.
func (s *SQLite) UpdateRewrite(ctx context.Context, r *model.Rewrite) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE rewrites SET title = ?, text = ?, image_path = ? WHERE id = ?`,
		r.Title, r.Text, r.ImagePath, r.ID,
	)
	if err != nil {
		return fmt.Errorf("update rewrite: %w", err)
	}
	return expectAffected(res, "rewrite", r.ID)
}

// MarkPublished records when a rewrite was published.
func (s *SQLite) MarkPublished(ctx context.Context, id int64, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE rewrites SET published_at = ? WHERE id = ?`, formatTime(at), id,
	)
	if err != nil {
		return fmt.Errorf("mark published: %w", err)
	}
	return expectAffected(res, "rewrite", id)
}

// CreateWatch inserts a new watch and populates its ID and CreatedAt.
func (s *SQLite) CreateWatch(ctx context.Context, w *model.Watch) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO watches (channel, include_terms, exclude_terms, interval_minutes, is_active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		w.Channel, joinTerms(w.Include), joinTerms(w.Exclude), w.IntervalMinutes, boolToInt(w.IsActive), formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("insert watch: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	w.ID = id
	w.CreatedAt = now
	return nil
}

const watchColumns = `id, channel, include_terms, exclude_terms, interval_minutes, is_active, last_check_at, created_at`

// GetWatch returns a single watch by its ID.
func (s *SQLite) GetWatch(ctx context.Context, id int64) (*model.Watch, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+watchColumns+` FROM watches WHERE id = ?`, id)
	return scanWatch(row)
}

// ListWatches returns all watches ordered by ID.
func (s *SQLite) ListWatches(ctx context.Context) ([]model.Watch, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+watchColumns+` FROM watches ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query watches: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanWatches(rows)
}

// ListDueWatches returns all active watches whose interval has elapsed.
func (s *SQLite) ListDueWatches(ctx context.Context) ([]model.Watch, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+watchColumns+` FROM watches WHERE is_active = 1 ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query due watches: %w", err)
	}
	defer func() { _ = rows.Close() }()

	all, err := scanWatches(rows)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	var due []model.Watch
	for _, w := range all {
		if w.LastCheckAt == nil || !w.LastCheckAt.Add(time.Duration(w.IntervalMinutes)*time.Minute).After(now) {
			due = append(due, w)
		}
	}
	return due, nil
}

// UpdateWatch persists changes to an existing watch.
func (s *SQLite) UpdateWatch(ctx context.Context, w *model.Watch) error {
	var lastCheck *string
	if w.LastCheckAt != nil {
		v := formatTime(*w.LastCheckAt)
		lastCheck = &v
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE watches SET include_terms = ?, exclude_terms = ?, interval_minutes = ?, is_active = ?, last_check_at = ?
		 WHERE id = ?`,
		joinTerms(w.Include), joinTerms(w.Exclude), w.IntervalMinutes, boolToInt(w.IsActive), lastCheck, w.ID,
	)
	if err != nil {
		return fmt.Errorf("update watch: %w", err)
	}
	return expectAffected(res, "watch", w.ID)
}

// DeleteWatch removes a watch. The channel cursor is kept.
func (s *SQLite) DeleteWatch(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM watches WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete watch: %w", err)
	}
	return expectAffected(res, "watch", id)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Terms are stored newline-separated since a term may contain commas.
func joinTerms(terms []string) string {
	return strings.Join(terms, "\n")
}

func splitTerms(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func expectAffected(res sql.Result, what string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", what, id, ErrNotFound)
	}
	return nil
}

func wrapScan(what string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("scan %s: %w", what, err)
}

type scannable interface {
	Scan(dest ...any) error
}

func scanMessage(row scannable) (*model.Message, error) {
	var m model.Message
	var at string
	if err := row.Scan(&m.ID, &m.Channel, &m.Text, &at); err != nil {
		return nil, wrapScan("message", err)
	}
	t, err := parseTime(at)
	if err != nil {
		return nil, fmt.Errorf("parse message time %q: %w", at, err)
	}
	m.Date = t
	return &m, nil
}

func scanRewrite(row scannable) (*model.Rewrite, error) {
	var r model.Rewrite
	var messageID sql.NullInt64
	var published sql.NullString
	var created string
	err := row.Scan(&r.ID, &messageID, &r.Title, &r.Original, &r.Text, &r.ImagePath, &published, &created)
	if err != nil {
		return nil, wrapScan("rewrite", err)
	}
	if messageID.Valid {
		r.MessageID = messageID.Int64
	}
	if published.Valid {
		t, _ := parseTime(published.String)
		r.PublishedAt = &t
	}
	r.CreatedAt, _ = parseTime(created)
	return &r, nil
}

func scanWatch(row scannable) (*model.Watch, error) {
	var w model.Watch
	var include, exclude string
	var isActive int
	var lastCheck sql.NullString
	var created string
	err := row.Scan(&w.ID, &w.Channel, &include, &exclude, &w.IntervalMinutes, &isActive, &lastCheck, &created)
	if err != nil {
		return nil, wrapScan("watch", err)
	}
	w.Include = splitTerms(include)
	w.Exclude = splitTerms(exclude)
	w.IsActive = isActive == 1
	if lastCheck.Valid {
		t, _ := parseTime(lastCheck.String)
		w.LastCheckAt = &t
	}
	w.CreatedAt, _ = parseTime(created)
	return &w, nil
}

func scanWatches(rows *sql.Rows) ([]model.Watch, error) {
	var watches []model.Watch
	for rows.Next() {
		w, err := scanWatch(rows)
		if err != nil {
			return nil, err
		}
		watches = append(watches, *w)
	}
	return watches, rows.Err()
}
