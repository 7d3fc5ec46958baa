package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	_ "modernc.org/sqlite"

	"github.com/sonar-music/sonar/internal/migrate"
)

// Store is the catalog's database handle plus an optional read-through
// cache for denormalized counters. One Store is shared by every component
// of the engine (spec.md §9: "no ambient globals" — the Store is handed
// around explicitly, never accessed through a package global the way
// db/database.go's `var DB *sql.DB` was in the teacher).
type Store struct {
	db    *sql.DB
	cache Cache
	log   *zap.Logger
}

// Cache is the narrow read-through caching interface catalog needs;
// internal/cache.Redis implements it, and a nil Cache (the default) simply
// disables caching, per spec.md's "no global request deadline" spirit of
// making every auxiliary subsystem optional.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Del(ctx context.Context, keys ...string) error
}

// Open connects to a SQLite database at path, enables WAL mode per spec.md
// §6's persisted-state layout ("sonar.db # catalog (SQLite) with WAL"),
// bounds the connection pool per spec.md §5 (default 8), and runs pending
// migrations.
func Open(ctx context.Context, path string, maxConns int, cache Cache, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog database: %w", err)
	}
	if maxConns <= 0 {
		maxConns = 8
	}
	db.SetMaxOpenConns(maxConns)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to catalog database: %w", err)
	}

	migrations, err := migrate.Load(migrationFS, "migrations", nil)
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := migrate.Run(ctx, db, migrations, log); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, cache: cache, log: log}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// WithTx runs fn inside a transaction, committing on success and rolling
// back on any error fn returns. Every multi-statement catalog write (the
// invariants spec.md §8 tests) goes through WithTx so writes observe the
// "all catalog writes are in one transaction" guarantee of spec.md §5.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// querier is satisfied by both *sql.DB and *sql.Tx, letting entity methods
// run either standalone or inside a caller-provided transaction.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) q(tx *sql.Tx) querier {
	if tx != nil {
		return tx
	}
	return s.db
}

// cacheKey builds the read-through cache key for an entity kind and id,
// e.g. "artist:42".
func cacheKey(kind string, id int64) string {
	return kind + ":" + strconv.FormatInt(id, 10)
}

// cacheGet looks up key and decodes it into a fresh v, reporting whether it
// was found. Caching is only ever attempted for standalone reads (tx ==
// nil): populating from data read inside an in-flight transaction risks
// caching a value that a later rollback would make untrue, so cacheGet and
// cacheSet both take tx and silently no-op when it isn't nil. A cache miss,
// a nil Store.cache, or a decode failure are all treated the same way —
// "not found" — since caching is an optimization the read path must be
// able to fall back from without failing the request.
func (s *Store) cacheGet(ctx context.Context, tx *sql.Tx, key string, v any) bool {
	if s.cache == nil || tx != nil {
		return false
	}
	raw, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.log.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		s.log.Warn("cache decode failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// cacheSet populates key with v's JSON encoding, if caching is enabled and
// this isn't happening inside a not-yet-committed transaction. Errors are
// logged, not returned: a cache write failing must never fail the write it
// is shadowing.
func (s *Store) cacheSet(ctx context.Context, tx *sql.Tx, key string, v any) {
	if s.cache == nil || tx != nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		s.log.Warn("cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := s.cache.Set(ctx, key, string(raw)); err != nil {
		s.log.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// cacheDel evicts key. Unlike cacheGet/cacheSet it runs unconditionally,
// including inside a transaction, because evicting too eagerly only costs
// an extra cache miss while evicting too late risks serving stale data.
func (s *Store) cacheDel(ctx context.Context, key string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, key); err != nil {
		s.log.Warn("cache del failed", zap.String("key", key), zap.Error(err))
	}
}

// isUniqueViolation reports whether err came from a SQLite UNIQUE
// constraint failure. modernc.org/sqlite surfaces these as a generic
// error whose message carries the SQLite text ("UNIQUE constraint
// failed: ..."), so string matching is the closest this driver gets to a
// typed check (it does not export a *sqlite.Error with a Code() the way
// mattn/go-sqlite3 does).
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// isForeignKeyViolation reports whether err came from SQLite rejecting a
// delete that still has dependent rows — the catalog-level signal for
// spec.md §3's "Deletion of a parent with dependent children fails with
// Conflict unless a cascading policy is documented for that parent" rule.
func isForeignKeyViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
