package repo

import (
	"context"
	"io/fs"
	"time"

	"toko-builder/internal/store"
)

// Repository defines the interface for data persistence.
type Repository interface {
	// Lifecycle
	Close()
	Ping(ctx context.Context) error
	RunMigrations(ctx context.Context, filesystem fs.FS) error

	// Store configuration
	LoadStoreConfig(ctx context.Context, storeID string) (*store.Configuration, error)
	SaveStoreConfig(ctx context.Context, storeID string, cfg store.Configuration) error

	// Builder transcript
	InsertChatMessage(ctx context.Context, storeID string, msg store.ChatMessage) error
	ListChatMessages(ctx context.Context, storeID string, limit int) ([]store.ChatMessage, error)

	// API keys
	SyncGeminiKeys(ctx context.Context, keys []string) error
	ListActiveGeminiKeys(ctx context.Context) ([]APIKey, error)
	ClearCooldown(ctx context.Context, id string) error
	SetCooldownUntil(ctx context.Context, id string, until time.Time) error
}
