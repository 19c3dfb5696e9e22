package history

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// maxRecords caps the history table at the most recent runs.
const maxRecords = 100

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Record is one completed, failed or stopped translation run.
type Record struct {
	ID               string    `json:"id"`
	FileName         string    `json:"file_name"`
	OutputPath       string    `json:"output_path"`
	Model            string    `json:"model"`
	SrcLang          string    `json:"src_lang"`
	DstLang          string    `json:"dst_lang"`
	Status           string    `json:"status"`
	StartTime        time.Time `json:"start_time"`
	EndTime          time.Time `json:"end_time"`
	DurationSeconds  int       `json:"duration_seconds"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens"`
}

// Statuses for Record.Status.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusStopped = "stopped"
)

// Store persists translation run records in SQLite.
type Store struct {
	db *sql.DB
}

func NewStore(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &Store{db: db}
	if err := store.init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		return fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version := migrationVersion(entry.Name())
		if version <= 0 {
			continue
		}
		var exists int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, version).Scan(&exists); err != nil {
			return fmt.Errorf("check migration %s: %w", entry.Name(), err)
		}
		if exists > 0 {
			continue
		}
		content, err := migrationFiles.ReadFile(filepath.Join("migrations", entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
			return fmt.Errorf("record migration %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// migrationVersion extracts the leading integer from a migration filename (e.g. "001_init.sql" → 1).
func migrationVersion(name string) int {
	for i, c := range name {
		if c < '0' || c > '9' {
			if i == 0 {
				return 0
			}
			n, _ := strconv.Atoi(name[:i])
			return n
		}
	}
	n, _ := strconv.Atoi(name)
	return n
}

// Add inserts or updates a record and prunes the table down to the newest
// runs. A missing ID gets one assigned.
func (s *Store) Add(ctx context.Context, record Record) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.DurationSeconds == 0 && record.EndTime.After(record.StartTime) {
		record.DurationSeconds = int(record.EndTime.Sub(record.StartTime).Seconds())
	}

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO translation_records (
			id, file_name, output_path, model, src_lang, dst_lang, status,
			start_time, end_time, duration_seconds,
			prompt_tokens, completion_tokens, total_tokens
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			file_name=excluded.file_name,
			output_path=excluded.output_path,
			model=excluded.model,
			src_lang=excluded.src_lang,
			dst_lang=excluded.dst_lang,
			status=excluded.status,
			start_time=excluded.start_time,
			end_time=excluded.end_time,
			duration_seconds=excluded.duration_seconds,
			prompt_tokens=excluded.prompt_tokens,
			completion_tokens=excluded.completion_tokens,
			total_tokens=excluded.total_tokens`,
		record.ID,
		record.FileName,
		record.OutputPath,
		record.Model,
		record.SrcLang,
		record.DstLang,
		record.Status,
		record.StartTime.UTC(),
		record.EndTime.UTC(),
		record.DurationSeconds,
		record.PromptTokens,
		record.CompletionTokens,
		record.TotalTokens,
	)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(
		ctx,
		`DELETE FROM translation_records WHERE id NOT IN (
			SELECT id FROM translation_records ORDER BY start_time DESC LIMIT ?
		)`,
		maxRecords,
	)
	return err
}

// List returns records newest-first, up to limit (0 means all retained rows).
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	query := `SELECT id, file_name, output_path, model, src_lang, dst_lang, status,
		start_time, end_time, duration_seconds,
		prompt_tokens, completion_tokens, total_tokens
		FROM translation_records ORDER BY start_time DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]Record, 0)
	for rows.Next() {
		var item Record
		if err := rows.Scan(
			&item.ID,
			&item.FileName,
			&item.OutputPath,
			&item.Model,
			&item.SrcLang,
			&item.DstLang,
			&item.Status,
			&item.StartTime,
			&item.EndTime,
			&item.DurationSeconds,
			&item.PromptTokens,
			&item.CompletionTokens,
			&item.TotalTokens,
		); err != nil {
			return nil, err
		}
		ret = append(ret, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

// Get returns the record with the given id.
func (s *Store) Get(ctx context.Context, id string) (Record, bool, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, file_name, output_path, model, src_lang, dst_lang, status,
			start_time, end_time, duration_seconds,
			prompt_tokens, completion_tokens, total_tokens
		FROM translation_records WHERE id = ?`,
		id,
	)
	var item Record
	if err := row.Scan(
		&item.ID,
		&item.FileName,
		&item.OutputPath,
		&item.Model,
		&item.SrcLang,
		&item.DstLang,
		&item.Status,
		&item.StartTime,
		&item.EndTime,
		&item.DurationSeconds,
		&item.PromptTokens,
		&item.CompletionTokens,
		&item.TotalTokens,
	); err != nil {
		if err == sql.ErrNoRows {
			return Record{}, false, nil
		}
		return Record{}, false, err
	}
	return item, true, nil
}

// Delete removes one record by id.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM translation_records WHERE id = ?`, id)
	return err
}

// FormatDuration renders a duration like "5m 23s" or "1h 30m 45s".
func FormatDuration(seconds int) string {
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}

	minutes := seconds / 60
	remainingSeconds := seconds % 60

	if minutes < 60 {
		if remainingSeconds > 0 {
			return fmt.Sprintf("%dm %ds", minutes, remainingSeconds)
		}
		return fmt.Sprintf("%dm", minutes)
	}

	hours := minutes / 60
	remainingMinutes := minutes % 60

	parts := []string{fmt.Sprintf("%dh", hours)}
	if remainingMinutes > 0 {
		parts = append(parts, fmt.Sprintf("%dm", remainingMinutes))
	}
	if remainingSeconds > 0 {
		parts = append(parts, fmt.Sprintf("%ds", remainingSeconds))
	}
	return strings.Join(parts, " ")
}

// FormatTokens renders a token count with a K suffix for thousands.
func FormatTokens(tokens int) string {
	if tokens >= 1000 {
		return fmt.Sprintf("%.1fK", float64(tokens)/1000)
	}
	return strconv.Itoa(tokens)
}
