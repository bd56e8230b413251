package progress

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/abhisek/wordiz/internal/llm"
	"github.com/abhisek/wordiz/internal/quiz"

	// Pure Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

// DefaultMaxSessions bounds the local history. The oldest snapshot is
// evicted when a new one overflows the cap.
const DefaultMaxSessions = 50

// Local is the SQLite-backed Store. It also serves as the model request
// log sink for llm.WithLogging.
type Local struct {
	db          *sql.DB
	maxSessions int
	now         func() time.Time
}

var _ Store = (*Local)(nil)
var _ llm.RequestLogger = (*Local)(nil)

// OpenLocal creates a Local store at dsn, applies the recommended
// pragmas and creates the schema.
func OpenLocal(dsn string) (*Local, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Local{db: db, maxSessions: DefaultMaxSessions, now: time.Now}, nil
}

// Close closes the database connection.
func (l *Local) Close() error {
	return l.db.Close()
}

// applyPragmas configures SQLite for single-user performance.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

func createSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS progress_sessions (
			id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			data TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_progress_status ON progress_sessions (status, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS llm_requests (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			provider TEXT NOT NULL,
			model TEXT NOT NULL,
			purpose TEXT NOT NULL,
			input_tokens INTEGER NOT NULL,
			output_tokens INTEGER NOT NULL,
			latency_ms INTEGER NOT NULL,
			success INTEGER NOT NULL,
			error_message TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		)`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (l *Local) CreateInProgress(ctx context.Context, difficulty quiz.Difficulty, words []string, set quiz.QuestionSet, details json.RawMessage) (Created, error) {
	now := l.now().UTC()
	snap := &SessionSnapshot{
		ID:           uuid.NewString(),
		Mode:         ModeLocal,
		Difficulty:   difficulty,
		Words:        words,
		Questions:    set,
		Answers:      []quiz.AnswerRecord{},
		Status:       StatusInProgress,
		CurrentIndex: 0,
		CreatedAt:    now,
		UpdatedAt:    now,
		WordDetails:  details,
	}

	if err := l.insert(ctx, snap); err != nil {
		return Created{}, err
	}
	if err := l.evictOverflow(ctx); err != nil {
		return Created{}, fmt.Errorf("evict overflow: %w", err)
	}
	return Created{ID: snap.ID, CreatedAt: snap.CreatedAt}, nil
}

func (l *Local) insert(ctx context.Context, snap *SessionSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	_, err = l.db.ExecContext(ctx,
		`INSERT INTO progress_sessions (id, status, created_at, updated_at, data) VALUES (?, ?, ?, ?, ?)`,
		snap.ID, string(snap.Status), snap.CreatedAt.UnixMilli(), snap.UpdatedAt.UnixMilli(), string(data),
	)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// evictOverflow keeps at most maxSessions rows, dropping the oldest.
func (l *Local) evictOverflow(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx,
		`DELETE FROM progress_sessions WHERE id IN (
			SELECT id FROM progress_sessions ORDER BY created_at DESC, rowid DESC LIMIT -1 OFFSET ?
		)`, l.maxSessions)
	return err
}

func (l *Local) SaveAnswer(ctx context.Context, id string, rec quiz.AnswerRecord, newIndex int) error {
	snap, err := l.load(ctx, id)
	if err != nil {
		return err
	}

	if err := applyAnswer(snap, rec, newIndex, l.now().UTC()); err != nil {
		return fmt.Errorf("save answer: %w", err)
	}
	return l.update(ctx, snap)
}

func (l *Local) ListInProgress(ctx context.Context) ([]Summary, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT data FROM progress_sessions WHERE status = ? ORDER BY created_at DESC, rowid DESC`,
		string(StatusInProgress))
	if err != nil {
		return nil, fmt.Errorf("query in-progress sessions: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		var snap SessionSnapshot
		if err := json.Unmarshal([]byte(data), &snap); err != nil {
			return nil, fmt.Errorf("unmarshal session: %w", err)
		}
		out = append(out, summarize(&snap))
	}
	return out, rows.Err()
}

func summarize(snap *SessionSnapshot) Summary {
	return Summary{
		ID:             snap.ID,
		Difficulty:     snap.Difficulty,
		WordCount:      len(snap.Words),
		AnsweredCount:  len(snap.Answers),
		TotalQuestions: snap.Questions.Total(),
		CreatedAt:      snap.CreatedAt,
		UpdatedAt:      snap.UpdatedAt,
	}
}

func (l *Local) GetForResume(ctx context.Context, id string) (*SessionSnapshot, error) {
	return l.load(ctx, id)
}

func (l *Local) Delete(ctx context.Context, id string) (bool, error) {
	res, err := l.db.ExecContext(ctx, `DELETE FROM progress_sessions WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete snapshot: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (l *Local) UpdateQuestionSet(ctx context.Context, id string, set quiz.QuestionSet) error {
	snap, err := l.load(ctx, id)
	if err != nil {
		return err
	}
	if snap.Status != StatusInProgress {
		return fmt.Errorf("session %s is %s: question set is frozen", id, snap.Status)
	}
	snap.Questions = set
	snap.UpdatedAt = l.now().UTC()
	return l.update(ctx, snap)
}

func (l *Local) SaveAnalysis(ctx context.Context, id string, a quiz.Analysis) error {
	snap, err := l.load(ctx, id)
	if err != nil {
		return err
	}
	snap.Analysis = a
	snap.UpdatedAt = l.now().UTC()
	return l.update(ctx, snap)
}

func (l *Local) load(ctx context.Context, id string) (*SessionSnapshot, error) {
	var data string
	err := l.db.QueryRowContext(ctx,
		`SELECT data FROM progress_sessions WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	var snap SessionSnapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

func (l *Local) update(ctx context.Context, snap *SessionSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	res, err := l.db.ExecContext(ctx,
		`UPDATE progress_sessions SET status = ?, updated_at = ?, data = ? WHERE id = ?`,
		string(snap.Status), snap.UpdatedAt.UnixMilli(), string(data), snap.ID)
	if err != nil {
		return fmt.Errorf("update snapshot: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendRequestLog records one model call; see llm.RequestLogger.
func (l *Local) AppendRequestLog(ctx context.Context, entry llm.RequestLog) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO llm_requests (provider, model, purpose, input_tokens, output_tokens, latency_ms, success, error_message, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.Provider, entry.Model, entry.Purpose,
		entry.InputTokens, entry.OutputTokens, entry.LatencyMs,
		boolToInt(entry.Success), entry.ErrorMessage, l.now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert request log: %w", err)
	}
	return nil
}

// RequestLogEntry is one persisted model call.
type RequestLogEntry struct {
	ID           int64
	Provider     string
	Model        string
	Purpose      string
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Success      bool
	ErrorMessage string
	CreatedAt    time.Time
}

// RecentRequestLogs returns the newest model calls, most recent first.
func (l *Local) RecentRequestLogs(ctx context.Context, limit int) ([]RequestLogEntry, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, provider, model, purpose, input_tokens, output_tokens, latency_ms, success, error_message, created_at
		 FROM llm_requests ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query request logs: %w", err)
	}
	defer rows.Close()

	var out []RequestLogEntry
	for rows.Next() {
		var e RequestLogEntry
		var success int
		var createdAt int64
		if err := rows.Scan(&e.ID, &e.Provider, &e.Model, &e.Purpose,
			&e.InputTokens, &e.OutputTokens, &e.LatencyMs, &success, &e.ErrorMessage, &createdAt); err != nil {
			return nil, fmt.Errorf("scan request log: %w", err)
		}
		e.Success = success != 0
		e.CreatedAt = time.UnixMilli(createdAt).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// RequestUsage aggregates model calls by purpose.
type RequestUsage struct {
	Purpose      string
	Calls        int
	InputTokens  int
	OutputTokens int
	AvgLatencyMs int64
}

// RequestUsageByPurpose sums token usage grouped by purpose.
func (l *Local) RequestUsageByPurpose(ctx context.Context) ([]RequestUsage, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT purpose, COUNT(*), SUM(input_tokens), SUM(output_tokens), CAST(AVG(latency_ms) AS INTEGER)
		 FROM llm_requests GROUP BY purpose ORDER BY purpose`)
	if err != nil {
		return nil, fmt.Errorf("query request usage: %w", err)
	}
	defer rows.Close()

	var out []RequestUsage
	for rows.Next() {
		var u RequestUsage
		if err := rows.Scan(&u.Purpose, &u.Calls, &u.InputTokens, &u.OutputTokens, &u.AvgLatencyMs); err != nil {
			return nil, fmt.Errorf("scan request usage: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// DefaultDBPath resolves the database file path in priority order:
// WORDIZ_DB, then $XDG_DATA_HOME/wordiz/wordiz.db, then
// ~/.local/share/wordiz/wordiz.db.
func DefaultDBPath() (string, error) {
	if p := os.Getenv("WORDIZ_DB"); p != "" {
		return p, EnsureDir(p)
	}

	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		dataHome = filepath.Join(home, ".local", "share")
	}

	p := filepath.Join(dataHome, "wordiz", "wordiz.db")
	return p, EnsureDir(p)
}

// EnsureDir creates the parent directory of path if it doesn't exist.
func EnsureDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}
