package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"toko-builder/internal/store"
)

const providerGemini = "gemini"

// PostgresRepository provides typed access to Postgres resources.
type PostgresRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
	schema string
}

// New opens a new connection pool to the database with the desired search_path.
func New(ctx context.Context, databaseURL, schema string, logger *slog.Logger) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	if cfg.ConnConfig.RuntimeParams == nil {
		cfg.ConnConfig.RuntimeParams = map[string]string{}
	}
	if schema != "" {
		cfg.ConnConfig.RuntimeParams["search_path"] = schema
	}
	cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	r := &PostgresRepository{
		pool:   pool,
		logger: logger.With("component", "repo"),
		schema: schema,
	}

	if err := r.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

// Close releases the connection pool.
func (r *PostgresRepository) Close() {
	if r.pool != nil {
		r.pool.Close()
	}
}

// Ping ensures the database is reachable.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// WithTx executes fn within a database transaction.
func (r *PostgresRepository) WithTx(ctx context.Context, fn func(pgx.Tx) error) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(tx)
	})
}

// LoadStoreConfig returns the persisted configuration, or nil when the store
// has never been saved.
func (r *PostgresRepository) LoadStoreConfig(ctx context.Context, storeID string) (*store.Configuration, error) {
	const q = `SELECT config FROM store_configs WHERE store_id = $1;`

	var raw []byte
	if err := r.pool.QueryRow(ctx, q, storeID).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
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
func (r *PostgresRepository) SaveStoreConfig(ctx context.Context, storeID string, cfg store.Configuration) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode store config: %w", err)
	}

	const q = `
INSERT INTO store_configs (store_id, config, updated_at)
VALUES ($1, $2, NOW())
ON CONFLICT (store_id) DO UPDATE
SET config = EXCLUDED.config,
    updated_at = NOW();
`
	if _, err := r.pool.Exec(ctx, q, storeID, raw); err != nil {
		return fmt.Errorf("save store config: %w", err)
	}
	return nil
}

// InsertChatMessage stores one builder transcript entry.
func (r *PostgresRepository) InsertChatMessage(ctx context.Context, storeID string, msg store.ChatMessage) error {
	var card []byte
	if msg.CardContent != nil {
		raw, err := json.Marshal(msg.CardContent)
		if err != nil {
			return fmt.Errorf("encode card content: %w", err)
		}
		card = raw
	}

	const q = `
INSERT INTO chat_messages (id, store_id, sender, body, content_type, card_content, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO NOTHING;
`
	_, err := r.pool.Exec(ctx, q, msg.ID, storeID, msg.Sender, msg.Text, msg.ContentType, card, msg.Timestamp)
	if err != nil {
		return fmt.Errorf("insert chat message: %w", err)
	}
	return nil
}

// ListChatMessages returns the latest transcript entries in chronological
// order.
func (r *PostgresRepository) ListChatMessages(ctx context.Context, storeID string, limit int) ([]store.ChatMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `
SELECT id, sender, body, content_type, card_content, created_at
FROM (
    SELECT id, sender, body, content_type, card_content, created_at
    FROM chat_messages
    WHERE store_id = $1
    ORDER BY created_at DESC
    LIMIT $2
) latest
ORDER BY created_at ASC;
`
	rows, err := r.pool.Query(ctx, q, storeID, limit)
	if err != nil {
		return nil, fmt.Errorf("list chat messages: %w", err)
	}
	defer rows.Close()

	var msgs []store.ChatMessage
	for rows.Next() {
		var msg store.ChatMessage
		var card []byte
		if err := rows.Scan(&msg.ID, &msg.Sender, &msg.Text, &msg.ContentType, &card, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
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
func (r *PostgresRepository) SyncGeminiKeys(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return fmt.Errorf("no gemini keys provided")
	}

	for idx, key := range keys {
		if err := r.upsertAPIKey(ctx, providerGemini, key, idx); err != nil {
			return err
		}
	}
	return nil
}

func (r *PostgresRepository) upsertAPIKey(ctx context.Context, provider, value string, priority int) error {
	const q = `
INSERT INTO api_keys (provider, value, priority)
VALUES ($1, $2, $3)
ON CONFLICT (provider, value) DO UPDATE
SET priority = EXCLUDED.priority,
    updated_at = NOW();`
	_, err := r.pool.Exec(ctx, q, provider, value, priority)
	if err != nil {
		return fmt.Errorf("upsert api key: %w", err)
	}
	return nil
}

// ListActiveGeminiKeys returns Gemini API keys ordered by priority.
func (r *PostgresRepository) ListActiveGeminiKeys(ctx context.Context) ([]APIKey, error) {
	const q = `
SELECT id, provider, value, priority, cooldown_until, created_at, updated_at
FROM api_keys
WHERE provider = $1
ORDER BY priority ASC;
`
	rows, err := r.pool.Query(ctx, q, providerGemini)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	var res []APIKey
	for rows.Next() {
		var k APIKey
		if err := rows.Scan(&k.ID, &k.Provider, &k.Value, &k.Priority, &k.CooldownUntil, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		res = append(res, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list api keys rows: %w", err)
	}
	return res, nil
}

// ClearCooldown resets cooldown for a key.
func (r *PostgresRepository) ClearCooldown(ctx context.Context, id string) error {
	const q = `UPDATE api_keys SET cooldown_until = NULL, updated_at = NOW() WHERE id = $1`
	ct, err := r.pool.Exec(ctx, q, id)
	if err != nil {
		return fmt.Errorf("clear cooldown: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("api key not found: %s", id)
	}
	return nil
}

// SetCooldownUntil updates cooldown until specific time.
func (r *PostgresRepository) SetCooldownUntil(ctx context.Context, id string, until time.Time) error {
	const q = `UPDATE api_keys SET cooldown_until = $2, updated_at = NOW() WHERE id = $1`
	ct, err := r.pool.Exec(ctx, q, id, until)
	if err != nil {
		return fmt.Errorf("set cooldown: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("api key not found: %s", id)
	}
	return nil
}
