// Package sqlitestore is a treestore.Store persisted in a local SQLite file.
// Each top-level document (for example rooms/{roomId}) is one row holding
// its JSON tree; nested paths are resolved in Go inside a SQL transaction.
// Subscriptions are served in-process, so only writers sharing the Store
// value are observed.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/yourusername/nikah-service/internal/treestore"
)

// Store wraps the database handle.
type Store struct {
	db   *sql.DB
	mu   sync.Mutex
	feed treestore.Feed
}

// Open opens (creating if needed) the database at dbPath.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{db: db}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS nodes (
		collection TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (collection, key)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// docPath splits a path into its document address and the field path
// inside the document.
func docPath(path string) (collection, key string, field []string, err error) {
	segs := treestore.Split(path)
	if len(segs) < 2 {
		return "", "", nil, fmt.Errorf("%w: %q does not address a document", treestore.ErrInvalidPath, path)
	}
	return segs[0], segs[1], segs[2:], nil
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func loadDoc(ctx context.Context, q querier, collection, key string) (any, error) {
	var raw string
	err := q.QueryRowContext(ctx,
		"SELECT value FROM nodes WHERE collection = ? AND key = ?",
		collection, key,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("decode %s/%s: %w", collection, key, err)
	}
	return doc, nil
}

func saveDoc(ctx context.Context, tx *sql.Tx, collection, key string, doc any) error {
	if doc == nil {
		_, err := tx.ExecContext(ctx,
			"DELETE FROM nodes WHERE collection = ? AND key = ?",
			collection, key,
		)
		return err
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO nodes (collection, key, value, updated_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(collection, key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		collection, key, string(raw),
	)
	return err
}

// getCollection reads every document of a collection into one map keyed
// by document key.
func (s *Store) getCollection(ctx context.Context, collection string) (treestore.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT key, value FROM nodes WHERE collection = ? ORDER BY key",
		collection,
	)
	if err != nil {
		return treestore.Snapshot{}, err
	}
	defer rows.Close()

	docs := map[string]json.RawMessage{}
	for rows.Next() {
		var key, raw string
		if err := rows.Scan(&key, &raw); err != nil {
			return treestore.Snapshot{}, err
		}
		docs[key] = json.RawMessage(raw)
	}
	if err := rows.Err(); err != nil {
		return treestore.Snapshot{}, err
	}
	if len(docs) == 0 {
		return treestore.Snapshot{Path: collection}, nil
	}
	return treestore.NewSnapshot(collection, docs)
}

func (s *Store) Get(ctx context.Context, path string) (treestore.Snapshot, error) {
	if segs := treestore.Split(path); len(segs) == 1 {
		return s.getCollection(ctx, segs[0])
	}
	collection, key, field, err := docPath(path)
	if err != nil {
		return treestore.Snapshot{}, err
	}
	doc, err := loadDoc(ctx, s.db, collection, key)
	if err != nil {
		return treestore.Snapshot{}, err
	}
	v, ok := treestore.Lookup(doc, field)
	if !ok {
		return treestore.Snapshot{Path: treestore.Clean(path)}, nil
	}
	return treestore.NewSnapshot(treestore.Clean(path), v)
}

// mutate applies fn to the document containing path inside one SQL
// transaction and publishes the result to subscribers.
func (s *Store) mutate(ctx context.Context, path string, fn func(doc any, field []string) (any, error)) error {
	collection, key, field, err := docPath(path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	doc, err := loadDoc(ctx, tx, collection, key)
	if err != nil {
		return err
	}
	doc, err = fn(doc, field)
	if err != nil {
		return err
	}
	if err := saveDoc(ctx, tx, collection, key, doc); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	s.feed.Publish(path, func(p string) (treestore.Snapshot, bool) {
		snap, err := s.Get(context.Background(), p)
		if err != nil {
			log.Printf("⚠️  sqlitestore: read %s for subscribers: %v", p, err)
			return treestore.Snapshot{}, false
		}
		return snap, true
	})
	return nil
}

func (s *Store) Set(ctx context.Context, path string, value any) error {
	normalized, err := treestore.Normalize(value)
	if err != nil {
		return err
	}
	return s.mutate(ctx, path, func(doc any, field []string) (any, error) {
		return treestore.Assign(doc, field, normalized), nil
	})
}

func (s *Store) Update(ctx context.Context, path string, values map[string]any) error {
	normalized := make(map[string]any, len(values))
	for rel, v := range values {
		n, err := treestore.Normalize(v)
		if err != nil {
			return err
		}
		normalized[rel] = n
	}
	return s.mutate(ctx, path, func(doc any, field []string) (any, error) {
		for rel, v := range normalized {
			doc = treestore.Assign(doc, append(append([]string{}, field...), treestore.Split(rel)...), v)
		}
		return doc, nil
	})
}

func (s *Store) Push(ctx context.Context, path string, value any) (string, error) {
	key := treestore.NewKey()
	if err := s.Set(ctx, treestore.Join(path, key), value); err != nil {
		return "", err
	}
	return key, nil
}

func (s *Store) Remove(ctx context.Context, path string) error {
	return s.Set(ctx, path, nil)
}

func (s *Store) Transact(ctx context.Context, path string, fn treestore.TxFunc) error {
	err := s.mutate(ctx, path, func(doc any, field []string) (any, error) {
		var current treestore.Snapshot
		if v, ok := treestore.Lookup(doc, field); ok {
			snap, err := treestore.NewSnapshot(treestore.Clean(path), v)
			if err != nil {
				return nil, err
			}
			current = snap
		} else {
			current = treestore.Snapshot{Path: treestore.Clean(path)}
		}
		next, err := fn(current)
		if err != nil {
			return nil, err
		}
		normalized, err := treestore.Normalize(next)
		if err != nil {
			return nil, err
		}
		return treestore.Assign(doc, field, normalized), nil
	})
	if errors.Is(err, treestore.ErrNoChange) {
		return nil
	}
	return err
}

func (s *Store) Subscribe(ctx context.Context, path string) (*treestore.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	initial, err := s.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	return s.feed.Subscribe(ctx, treestore.Clean(path), initial)
}

func (s *Store) Close() error {
	s.feed.Close()
	return s.db.Close()
}
