// Package firestorestore implements treestore.Store on Cloud Firestore.
//
// The first two path segments name a document (rooms/{roomId}); the rest
// address nested map fields inside it. A bare collection path can be read
// but not written. Values are stored in their JSON
// form, so numbers come back as int64 or float64 and are re-encoded through
// JSON on the way out.
package firestorestore

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/yourusername/nikah-service/internal/treestore"
)

// Store adapts a *firestore.Client.
type Store struct {
	client *firestore.Client
}

// New wraps client. The caller owns client and closes it.
func New(client *firestore.Client) *Store {
	return &Store{client: client}
}

type location struct {
	path  string
	doc   *firestore.DocumentRef
	field []string
}

func (s *Store) locate(path string) (location, error) {
	segs := treestore.Split(path)
	if len(segs) < 2 {
		return location{}, fmt.Errorf("%w: %q does not address a document", treestore.ErrInvalidPath, path)
	}
	return location{
		path:  treestore.Join(segs...),
		doc:   s.client.Collection(segs[0]).Doc(segs[1]),
		field: segs[2:],
	}, nil
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

// snapshotOf extracts the value at loc.field from a document snapshot.
func snapshotOf(loc location, doc *firestore.DocumentSnapshot) (treestore.Snapshot, error) {
	if doc == nil || !doc.Exists() {
		return treestore.Snapshot{Path: loc.path}, nil
	}
	v, ok := treestore.Lookup(doc.Data(), loc.field)
	if !ok {
		return treestore.Snapshot{Path: loc.path}, nil
	}
	return treestore.NewSnapshot(loc.path, v)
}

// nest wraps value in maps so that it sits at field.
func nest(field []string, value any) map[string]any {
	out := map[string]any{}
	cur := out
	for i, seg := range field {
		if i == len(field)-1 {
			cur[seg] = value
			break
		}
		next := map[string]any{}
		cur[seg] = next
		cur = next
	}
	return out
}

// mergeInto adds value at field to an existing nested map.
func mergeInto(dst map[string]any, field []string, value any) {
	cur := dst
	for i, seg := range field {
		if i == len(field)-1 {
			cur[seg] = value
			return
		}
		next, ok := cur[seg].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[seg] = next
		}
		cur = next
	}
}

func deleteOr(value any) any {
	if value == nil {
		return firestore.Delete
	}
	return value
}

func (s *Store) Get(ctx context.Context, path string) (treestore.Snapshot, error) {
	if segs := treestore.Split(path); len(segs) == 1 {
		return s.getCollection(ctx, segs[0])
	}
	loc, err := s.locate(path)
	if err != nil {
		return treestore.Snapshot{}, err
	}
	doc, err := loc.doc.Get(ctx)
	if err != nil && !isNotFound(err) {
		return treestore.Snapshot{}, err
	}
	return snapshotOf(loc, doc)
}

// getCollection reads every document of a collection into one map keyed
// by document id.
func (s *Store) getCollection(ctx context.Context, name string) (treestore.Snapshot, error) {
	docs := map[string]any{}
	iter := s.client.Collection(name).Documents(ctx)
	defer iter.Stop()
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return treestore.Snapshot{}, err
		}
		docs[doc.Ref.ID] = doc.Data()
	}
	if len(docs) == 0 {
		return treestore.Snapshot{Path: name}, nil
	}
	return treestore.NewSnapshot(name, docs)
}

func (s *Store) Set(ctx context.Context, path string, value any) error {
	loc, err := s.locate(path)
	if err != nil {
		return err
	}
	normalized, err := treestore.Normalize(value)
	if err != nil {
		return err
	}

	if len(loc.field) == 0 {
		if normalized == nil {
			_, err := loc.doc.Delete(ctx)
			return err
		}
		data, ok := normalized.(map[string]any)
		if !ok {
			return fmt.Errorf("%w: document %s must hold an object", treestore.ErrInvalidPath, loc.path)
		}
		_, err := loc.doc.Set(ctx, data)
		return err
	}

	_, err = loc.doc.Set(ctx, nest(loc.field, deleteOr(normalized)), firestore.Merge(loc.field))
	return err
}

func (s *Store) Update(ctx context.Context, path string, values map[string]any) error {
	loc, err := s.locate(path)
	if err != nil {
		return err
	}
	if len(values) == 0 {
		return nil
	}

	data := map[string]any{}
	paths := make([]firestore.FieldPath, 0, len(values))
	for rel, v := range values {
		normalized, err := treestore.Normalize(v)
		if err != nil {
			return err
		}
		field := append(append([]string{}, loc.field...), treestore.Split(rel)...)
		if len(field) == 0 {
			return fmt.Errorf("%w: update of %s replaces the whole document", treestore.ErrInvalidPath, loc.path)
		}
		mergeInto(data, field, deleteOr(normalized))
		paths = append(paths, firestore.FieldPath(field))
	}
	_, err = loc.doc.Set(ctx, data, firestore.Merge(paths...))
	return err
}

func (s *Store) Push(ctx context.Context, path string, value any) (string, error) {
	key := treestore.NewKey()
	if err := s.Set(ctx, treestore.Join(path, key), value); err != nil {
		return "", err
	}
	return key, nil
}

func (s *Store) Remove(ctx context.Context, path string) error {
	err := s.Set(ctx, path, nil)
	if isNotFound(err) {
		return nil
	}
	return err
}

// Transact runs fn inside a Firestore transaction on the containing
// document. Firestore retries the function on contention.
func (s *Store) Transact(ctx context.Context, path string, fn treestore.TxFunc) error {
	loc, err := s.locate(path)
	if err != nil {
		return err
	}

	err = s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(loc.doc)
		if err != nil && !isNotFound(err) {
			return err
		}
		current, err := snapshotOf(loc, doc)
		if err != nil {
			return err
		}
		next, err := fn(current)
		if err != nil {
			return err
		}
		normalized, err := treestore.Normalize(next)
		if err != nil {
			return err
		}

		if len(loc.field) == 0 {
			if normalized == nil {
				if doc == nil || !doc.Exists() {
					return nil
				}
				return tx.Delete(loc.doc)
			}
			data, ok := normalized.(map[string]any)
			if !ok {
				return fmt.Errorf("%w: document %s must hold an object", treestore.ErrInvalidPath, loc.path)
			}
			return tx.Set(loc.doc, data)
		}
		return tx.Set(loc.doc, nest(loc.field, deleteOr(normalized)), firestore.Merge(loc.field))
	})
	if errors.Is(err, treestore.ErrNoChange) {
		return nil
	}
	return err
}

// Subscribe listens to the containing document with Firestore's realtime
// snapshots and emits the addressed field on every document change.
func (s *Store) Subscribe(ctx context.Context, path string) (*treestore.Subscription, error) {
	loc, err := s.locate(path)
	if err != nil {
		return nil, err
	}

	return treestore.StartSubscription(ctx, loc.path, func(ctx context.Context, emit treestore.EmitFunc) error {
		it := loc.doc.Snapshots(ctx)
		defer it.Stop()
		for {
			doc, err := it.Next()
			if err != nil {
				if ctx.Err() != nil || status.Code(err) == codes.Canceled {
					return nil
				}
				return fmt.Errorf("listen %s: %w", loc.path, err)
			}
			snap, err := snapshotOf(loc, doc)
			if err != nil {
				return err
			}
			if !emit(snap) {
				return nil
			}
		}
	}), nil
}

// Close is a no-op; open subscriptions end with their contexts.
func (s *Store) Close() error {
	return nil
}
