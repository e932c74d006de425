package store

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Backend names accepted by Open.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendBleve  = "bleve"
	BackendNone   = "none"
)

// Config selects and configures the backend.
type Config struct {
	Backend     string
	SQLitePath  string
	RedisAddr   string
	RedisStream string
	BlevePath   string
	Timeout     time.Duration
	Retry       RetryPolicy
	SessionID   string
}

// Open connects the configured backend. It always returns a usable Store:
// when the backend cannot be initialized the returned store is disabled and
// the error explains why.
func Open(ctx context.Context, cfg Config) (Store, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	if backend == "" {
		backend = BackendSQLite
	}
	opts := Options{SessionID: cfg.SessionID, Timeout: cfg.Timeout}

	var open func(ctx context.Context) (Store, error)
	switch backend {
	case BackendSQLite:
		open = func(ctx context.Context) (Store, error) {
			db, err := NewSQLiteDB(ctx, cfg.SQLitePath)
			if err != nil {
				return nil, err
			}
			s, err := NewDocumentStore(ctx, db, opts)
			if err != nil {
				_ = db.Close()
				return nil, err
			}
			return s, nil
		}
	case BackendRedis:
		open = func(ctx context.Context) (Store, error) {
			db, err := NewRedisStreamDB(ctx, cfg.RedisAddr, cfg.RedisStream)
			if err != nil {
				return nil, err
			}
			s, err := NewDocumentStore(ctx, db, opts)
			if err != nil {
				_ = db.Close()
				return nil, err
			}
			return s, nil
		}
	case BackendBleve:
		open = func(ctx context.Context) (Store, error) {
			coll, err := NewBleveCollection(cfg.BlevePath)
			if err != nil {
				return nil, err
			}
			s, err := NewCollectionStore(ctx, coll, opts)
			if err != nil {
				_ = coll.Close()
				return nil, err
			}
			return s, nil
		}
	case BackendNone:
		return Disabled(backend, errors.New("persistence disabled by configuration")), nil
	default:
		err := errors.Errorf("unknown store backend %q (supported: sqlite, redis, bleve, none)", cfg.Backend)
		return Disabled(backend, err), err
	}

	s, err := retryWithPolicy(ctx, cfg.Retry, open, func(attempt int, delay time.Duration, err error) {
		log.Warn().Err(err).Str("backend", backend).Int("attempt", attempt).Dur("delay", delay).
			Msg("store: open failed, retrying")
	})
	if err != nil {
		return Disabled(backend, err), errors.Wrapf(err, "open %s store", backend)
	}
	log.Debug().Str("backend", backend).Msg("store: opened")
	return s, nil
}
