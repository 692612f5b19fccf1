package factory

import (
	"errors"
	"io"
	"log/slog"

	"github.com/membergate/membergate/internal/dependencies/clock"
	"github.com/membergate/membergate/internal/dependencies/random"
	"github.com/membergate/membergate/internal/services/authn"
	"github.com/membergate/membergate/internal/services/credential"
	"github.com/membergate/membergate/internal/services/csrf"
	"github.com/membergate/membergate/internal/services/provision"
	"github.com/membergate/membergate/internal/services/session"
	"github.com/membergate/membergate/internal/storage"
	"github.com/membergate/membergate/internal/storage/memory"
	redisstorage "github.com/membergate/membergate/internal/storage/redis"
)

// Storage type constants
const (
	StorageTypeMemory = "memory"
	StorageTypeRedis  = "redis"
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock  clock.Clock
	Random random.Random

	// Services
	Codec          *credential.Codec
	SessionManager *session.Manager
	Provisioner    *provision.Provisioner
	AuthService    *authn.Service
	CSRFGuard      *csrf.Guard
}

// Config holds configuration for the application factory
type Config struct {
	// SessionConfig holds configuration for the session manager (optional)
	// If zero value, defaults to session.DefaultConfig()
	SessionConfig session.Config
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend ("memory" or "redis")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
}

// New creates a new application with all dependencies wired
func New(cfg Config) (*App, error) {
	// Use no-op logger if not provided
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	// Create storage based on type
	var store storage.Storage
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		store = memory.New()
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		redisStore, err := redisstorage.New(*cfg.RedisConfig)
		if err != nil {
			return nil, err
		}
		store = redisStore
	default:
		return nil, errors.New("invalid StorageType: must be 'memory' or 'redis'")
	}

	// Create external dependencies
	clk := clock.New()
	rnd := random.New()

	// Use default session config if not provided
	sessionCfg := cfg.SessionConfig
	if sessionCfg.CacheTTL == 0 {
		sessionCfg = session.DefaultConfig()
	}

	return newWithDependencies(store, clk, rnd, sessionCfg, logger), nil
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(store storage.Storage, clk clock.Clock, rnd random.Random, sessionCfg session.Config, logger *slog.Logger) *App {
	// Create services
	codec := credential.New(rnd)
	sessionManager := session.New(store, clk, rnd, sessionCfg, logger)
	provisioner := provision.New(store, codec, sessionManager, logger)
	authService := authn.New(store, codec, sessionManager, provisioner, logger)
	guard := csrf.New(rnd)

	return &App{
		Storage:        store,
		Clock:          clk,
		Random:         rnd,
		Codec:          codec,
		SessionManager: sessionManager,
		Provisioner:    provisioner,
		AuthService:    authService,
		CSRFGuard:      guard,
	}
}
