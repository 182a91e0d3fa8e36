package store

import (
	"fmt"
	"path/filepath"

	"contribook/db"
)

// BackendType represents the type of database backend
type BackendType string

const (
	// LevelDBBackend uses the LevelDB implementation
	LevelDBBackend BackendType = "leveldb"

	// BoltBackend uses the bbolt implementation
	BoltBackend BackendType = "bolt"

	// RedisBackend uses the Redis implementation
	RedisBackend BackendType = "redis"

	// MemoryBackend keeps everything in process memory
	MemoryBackend BackendType = "memory"
)

// VerificationBackendType selects where verification records live
type VerificationBackendType string

const (
	// EmbeddedVerificationBackend reuses the ledger's database provider
	EmbeddedVerificationBackend VerificationBackendType = "embedded"

	// PostgresVerificationBackend keeps records in Postgres
	PostgresVerificationBackend VerificationBackendType = "postgres"
)

// StoreConfig holds configuration for creating store instances
type StoreConfig struct {
	// Backend specifies which database backend to use for the ledger
	Backend BackendType `json:"backend" yaml:"backend"`

	// Directory is the database directory path (for file-based databases)
	Directory string `json:"directory" yaml:"directory"`

	// RedisAddr is the redis address (for the redis backend)
	RedisAddr string `json:"redis_addr" yaml:"redis_addr"`

	// VerificationBackend selects the verification record store
	VerificationBackend VerificationBackendType `json:"verification_backend" yaml:"verification_backend"`

	// PostgresDSN is the postgres connection string (postgres backend only)
	PostgresDSN string `json:"postgres_dsn" yaml:"postgres_dsn"`
}

// Validate validates the store configuration
func (sc *StoreConfig) Validate() error {
	switch sc.Backend {
	case LevelDBBackend, BoltBackend:
		if sc.Directory == "" {
			return fmt.Errorf("directory cannot be empty for backend %s", sc.Backend)
		}
	case RedisBackend:
		if sc.RedisAddr == "" {
			return fmt.Errorf("redis_addr cannot be empty for backend %s", sc.Backend)
		}
	case MemoryBackend:
	case "":
		return fmt.Errorf("backend cannot be empty")
	default:
		return fmt.Errorf("unsupported backend: %s", sc.Backend)
	}

	switch sc.VerificationBackend {
	case EmbeddedVerificationBackend, "":
	case PostgresVerificationBackend:
		if sc.PostgresDSN == "" {
			return fmt.Errorf("postgres_dsn cannot be empty for verification backend %s", sc.VerificationBackend)
		}
	default:
		return fmt.Errorf("unsupported verification backend: %s", sc.VerificationBackend)
	}

	return nil
}

// CreateProvider creates a database provider based on the configuration
func CreateProvider(config *StoreConfig) (db.IterableProvider, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	switch config.Backend {
	case LevelDBBackend:
		provider, err := db.NewLevelDBProvider(config.Directory)
		if err != nil {
			return nil, err
		}
		return provider.(db.IterableProvider), nil

	case BoltBackend:
		provider, err := db.NewBoltProvider(filepath.Join(config.Directory, "ledger.db"))
		if err != nil {
			return nil, err
		}
		return provider.(db.IterableProvider), nil

	case RedisBackend:
		provider, err := db.NewRedisProvider(config.RedisAddr)
		if err != nil {
			return nil, err
		}
		return provider.(db.IterableProvider), nil

	case MemoryBackend:
		return db.NewMemoryProvider(), nil

	default:
		return nil, fmt.Errorf("unsupported backend: %s", config.Backend)
	}
}

// CreateStores creates every store instance using the provider pattern
func CreateStores(config *StoreConfig) (*GenericLedgerStore, *ContributionStore, VerificationStore, *ScoreStore, error) {
	provider, err := CreateProvider(config)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to create provider: %w", err)
	}

	ledger, err := NewGenericLedgerStore(provider)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to create ledger store: %w", err)
	}

	contribs, err := NewContributionStore(provider)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to create contribution store: %w", err)
	}

	var verifications VerificationStore
	if config.VerificationBackend == PostgresVerificationBackend {
		verifications, err = NewPgVerificationStore(config.PostgresDSN)
	} else {
		verifications, err = NewGenericVerificationStore(provider)
	}
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to create verification store: %w", err)
	}

	scores, err := NewScoreStore(provider)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("failed to create score store: %w", err)
	}

	return ledger, contribs, verifications, scores, nil
}
