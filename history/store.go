// Package history provides client-side transcript snapshot storage, so a
// conversation survives process restarts and can hydrate without a round
// trip to the backend. Snapshots are written when a turn settles.
package history

import (
	"context"
	"errors"

	"github.com/varkai/chatflow/types"
)

// ErrNotFound is returned when no snapshot exists for a thread.
var ErrNotFound = errors.New("history: snapshot not found")

// Store persists one transcript snapshot per thread.
type Store interface {
	// Save replaces the snapshot for a thread.
	Save(ctx context.Context, threadID string, msgs []types.ChatMessage) error

	// Load returns the snapshot for a thread, or ErrNotFound.
	Load(ctx context.Context, threadID string) ([]types.ChatMessage, error)

	// Delete removes a thread's snapshot. Deleting a missing snapshot is
	// not an error.
	Delete(ctx context.Context, threadID string) error

	// Threads lists the thread ids with a stored snapshot.
	Threads(ctx context.Context) ([]string, error)

	// Close releases the store's resources.
	Close() error
}

// Backend selects a Store implementation.
type Backend string

const (
	BackendMemory Backend = "memory"
	BackendSQLite Backend = "sqlite"
	BackendRedis  Backend = "redis"
)

// RedisConfig holds connection settings for the redis backend.
type RedisConfig struct {
	Addr      string `yaml:"addr" env:"ADDR"`
	Password  string `yaml:"password" env:"PASSWORD"`
	DB        int    `yaml:"db" env:"DB"`
	KeyPrefix string `yaml:"key_prefix" env:"KEY_PREFIX"`
}

// Config selects and configures a snapshot store backend.
type Config struct {
	// Backend is one of memory, sqlite, redis. Empty means memory.
	Backend Backend `yaml:"backend" env:"BACKEND"`
	// Path is the sqlite database file.
	Path string `yaml:"path" env:"PATH"`
	// Redis configures the redis backend.
	Redis RedisConfig `yaml:"redis" env:"REDIS"`
}
