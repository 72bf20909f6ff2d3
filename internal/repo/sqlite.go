package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"toko-builder/internal/store"
)

// SQLiteRepository provides access to a local SQLite database. It backs the
// single-binary deployment where running Postgres is overkill.
type SQLiteRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLite opens a new connection to the SQLite database.
func NewSQLite(ctx context.Context, databasePath string, logger *slog.Logger) (*SQLiteRepository, error) {
	path := strings.TrimSpace(databasePath)
	if path == "" {
		return nil, fmt.Errorf("sqlite database path is empty")
	}
	// Busy timeout and WAL mode are recommended for SQLite concurrency.
	dsn := path
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	dsn = fmt.Sprintf("%s%s_pragma=busy_timeout=10000&_pragma=journal_mode=WAL&_pragma=foreign_keys=ON", dsn, sep)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteRepository{
		db:     db,
		logger: logger.With("component", "repo_sqlite"),
	}, nil
}

// Close releases the database connection.
func (r *SQLiteRepository) Close() {
	if r.db != nil {
		r.db.Close()
	}
}

// Ping ensures the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// RunMigrations applies the SQLite variant of the schema migrations. The
// filesystem is the shared migrations FS; the sqlite files live in a
// subdirectory because the dialects differ.
func (r *SQLiteRepository) RunMigrations(ctx context.Context, filesystem fs.FS) error {
	sub, err := fs.Sub(filesystem, "sqlite")
	if err != nil {
		return fmt.Errorf("open sqlite migrations: %w", err)
	}

	names, err := migrationFiles(sub)
	if err != nil {
		return err
	}

	for _, name := range names {
		sqlBytes, err := fs.ReadFile(sub, name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := r.db.ExecContext(ctx, string(sqlBytes)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		r.logger.Info("migration applied", "file", name)
	}
	return nil
}

// LoadStoreConfig returns the persisted configuration, or nil when the store
// has never been saved.
func (r *SQLiteRepository) LoadStoreConfig(ctx context.Context, storeID string) (*store.Configuration, error) {
	const q = `SELECT config FROM store_configs WHERE store_id = ?;`

	var raw []byte
	if err := r.db.QueryRowContext(ctx, q, storeID).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load store config: %w", err)
	}

	var cfg store.Configuration
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("decode store config: %w", err)
	}
	return &cfg, nil
}

// SaveStoreConfig upserts the whole configuration blob for a store.
func (r *SQLiteRepository) SaveStoreConfig(ctx context.Context, storeID string, cfg store.Configuration) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode store config: %w", err)
	}

	const q = `
INSERT INTO store_configs (store_id, config, updated_at)
VALUES (?, ?, CURRENT_TIMESTAMP)
ON CONFLICT (store_id) DO UPDATE
SET config = excluded.config,
    updated_at = CURRENT_TIMESTAMP;
`
	if _, err := r.db.ExecContext(ctx, q, storeID, raw); err != nil {
		return fmt.Errorf("save store config: %w", err)
	}
	return nil
}

// InsertChatMessage stores one builder transcript entry.
func (r *SQLiteRepository) InsertChatMessage(ctx context.Context, storeID string, msg store.ChatMessage) error {
	var card []byte
	if msg.CardContent != nil {
		raw, err := json.Marshal(msg.CardContent)
		if err != nil {
			return fmt.Errorf("encode card content: %w", err)
		}
		card = raw
	}

	const q = `
INSERT OR IGNORE INTO chat_messages (id, store_id, sender, body, content_type, card_content, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?);
`
	_, err := r.db.ExecContext(ctx, q,
		msg.ID, storeID, msg.Sender, msg.Text, msg.ContentType, card,
		msg.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert chat message: %w", err)
	}
	return nil
}

// ListChatMessages returns the latest transcript entries in chronological
// order.
func (r *SQLiteRepository) ListChatMessages(ctx context.Context, storeID string, limit int) ([]store.ChatMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `
SELECT id, sender, body, content_type, card_content, created_at
FROM (
    SELECT id, sender, body, content_type, card_content, created_at
    FROM chat_messages
    WHERE store_id = ?
    ORDER BY created_at DESC
    LIMIT ?
)
ORDER BY created_at ASC;
`
	rows, err := r.db.QueryContext(ctx, q, storeID, limit)
	if err != nil {
		return nil, fmt.Errorf("list chat messages: %w", err)
	}
	defer rows.Close()

	var msgs []store.ChatMessage
	for rows.Next() {
		var msg store.ChatMessage
		var card []byte
		var createdAt string
		if err := rows.Scan(&msg.ID, &msg.Sender, &msg.Text, &msg.ContentType, &card, &createdAt); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		if ts, err := parseSQLiteTime(createdAt); err == nil {
			msg.Timestamp = ts
		}
		if len(card) > 0 {
			msg.CardContent = &store.CardContent{}
			if err := json.Unmarshal(card, msg.CardContent); err != nil {
				return nil, fmt.Errorf("decode card content: %w", err)
			}
		}
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat messages: %w", err)
	}
	return msgs, nil
}

// SyncGeminiKeys ensures provided keys exist in the database with matching
// priority.
func (r *SQLiteRepository) SyncGeminiKeys(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return fmt.Errorf("no gemini keys provided")
	}

	const q = `
INSERT INTO api_keys (id, provider, value, priority)
VALUES (?, ?, ?, ?)
ON CONFLICT (provider, value) DO UPDATE
SET priority = excluded.priority,
    updated_at = CURRENT_TIMESTAMP;
`
	for idx, key := range keys {
		if _, err := r.db.ExecContext(ctx, q, uuid.NewString(), providerGemini, key, idx); err != nil {
			return fmt.Errorf("upsert api key: %w", err)
		}
	}
	return nil
}

// ListActiveGeminiKeys returns Gemini API keys ordered by priority.
func (r *SQLiteRepository) ListActiveGeminiKeys(ctx context.Context) ([]APIKey, error) {
	const q = `
SELECT id, provider, value, priority, cooldown_until, created_at, updated_at
FROM api_keys
WHERE provider = ?
ORDER BY priority ASC;
`
	rows, err := r.db.QueryContext(ctx, q, providerGemini)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	var res []APIKey
	for rows.Next() {
		var k APIKey
		var cooldown, createdAt, updatedAt sql.NullString
		if err := rows.Scan(&k.ID, &k.Provider, &k.Value, &k.Priority, &cooldown, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		if cooldown.Valid {
			if ts, err := parseSQLiteTime(cooldown.String); err == nil {
				k.CooldownUntil = &ts
			}
		}
		if createdAt.Valid {
			if ts, err := parseSQLiteTime(createdAt.String); err == nil {
				k.CreatedAt = ts
			}
		}
		if updatedAt.Valid {
			if ts, err := parseSQLiteTime(updatedAt.String); err == nil {
				k.UpdatedAt = ts
			}
		}
		res = append(res, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list api keys rows: %w", err)
	}
	return res, nil
}

// ClearCooldown resets cooldown for a key.
func (r *SQLiteRepository) ClearCooldown(ctx context.Context, id string) error {
	const q = `UPDATE api_keys SET cooldown_until = NULL, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return fmt.Errorf("clear cooldown: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("api key not found: %s", id)
	}
	return nil
}

// SetCooldownUntil updates cooldown until specific time.
func (r *SQLiteRepository) SetCooldownUntil(ctx context.Context, id string, until time.Time) error {
	const q = `UPDATE api_keys SET cooldown_until = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, until.UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("set cooldown: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("api key not found: %s", id)
	}
	return nil
}

func parseSQLiteTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02 15:04:05.999999999"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}
