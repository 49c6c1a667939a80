// Package state persists wizard snapshots per session so a reloaded page or
// a reconnected socket resumes where the user left off.
package state

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hsche/edureg/pkg/wizard"
)

// Common store errors.
var (
	ErrKeyNotFound = errors.New("state: key not found")
	ErrStoreClosed = errors.New("state: store is closed")
	ErrInvalidData = errors.New("state: invalid data format")
)

// Store is the interface for byte-oriented storage backends.
type Store interface {
	// Get retrieves a value by key.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value. A zero ttl never expires.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a key.
	Delete(ctx context.Context, key string) error

	// Keys returns all keys matching a glob pattern.
	Keys(ctx context.Context, pattern string) ([]string, error)

	Close() error
}

// TypedStore provides type-safe access to a Store.
type TypedStore[T any] struct {
	store      Store
	serializer Serializer[T]
}

// NewTypedStore creates a new typed store wrapper.
func NewTypedStore[T any](store Store, serializer Serializer[T]) *TypedStore[T] {
	return &TypedStore[T]{
		store:      store,
		serializer: serializer,
	}
}

// Get retrieves and deserializes a value.
func (ts *TypedStore[T]) Get(ctx context.Context, key string) (T, error) {
	var zero T

	data, err := ts.store.Get(ctx, key)
	if err != nil {
		return zero, err
	}

	return ts.serializer.Deserialize(data)
}

// Set serializes and stores a value.
func (ts *TypedStore[T]) Set(ctx context.Context, key string, value T, ttl time.Duration) error {
	data, err := ts.serializer.Serialize(value)
	if err != nil {
		return err
	}

	return ts.store.Set(ctx, key, data, ttl)
}

// Delete removes a key.
func (ts *TypedStore[T]) Delete(ctx context.Context, key string) error {
	return ts.store.Delete(ctx, key)
}

// Serializer handles serialization/deserialization.
type Serializer[T any] interface {
	Serialize(value T) ([]byte, error)
	Deserialize(data []byte) (T, error)
}

// FormState is the persisted state of one wizard instance.
type FormState struct {
	SessionID string          `msgpack:"session_id"`
	Snapshot  wizard.Snapshot `msgpack:"snapshot"`
	Version   uint64          `msgpack:"version"`
	UpdatedAt time.Time       `msgpack:"updated_at"`
}

// SnapshotStore saves wizard snapshots keyed by session and form.
type SnapshotStore struct {
	states    *TypedStore[FormState]
	store     Store
	keyPrefix string
	ttl       time.Duration
	now       func() time.Time
}

// SnapshotStoreOption configures a SnapshotStore.
type SnapshotStoreOption func(*SnapshotStore)

// WithKeyPrefix sets the key prefix.
func WithKeyPrefix(prefix string) SnapshotStoreOption {
	return func(s *SnapshotStore) {
		s.keyPrefix = prefix
	}
}

// WithTTL sets how long an untouched snapshot is kept.
func WithTTL(ttl time.Duration) SnapshotStoreOption {
	return func(s *SnapshotStore) {
		s.ttl = ttl
	}
}

// NewSnapshotStore creates a snapshot store over store.
func NewSnapshotStore(store Store, opts ...SnapshotStoreOption) *SnapshotStore {
	s := &SnapshotStore{
		store:     store,
		keyPrefix: "edureg:wizard:",
		ttl:       24 * time.Hour,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.states = NewTypedStore[FormState](store, NewGenericSerializer[FormState]())
	return s
}

func (s *SnapshotStore) key(sessionID, form string) string {
	return s.keyPrefix + sessionID + ":" + form
}

// Save stores the snapshot, bumping the version of any previous one.
func (s *SnapshotStore) Save(ctx context.Context, sessionID string, snap wizard.Snapshot) error {
	if sessionID == "" || snap.Form == "" {
		return fmt.Errorf("%w: session and form are required", ErrInvalidData)
	}
	key := s.key(sessionID, snap.Form)

	version := uint64(1)
	if prev, err := s.states.Get(ctx, key); err == nil {
		version = prev.Version + 1
	}

	return s.states.Set(ctx, key, FormState{
		SessionID: sessionID,
		Snapshot:  snap,
		Version:   version,
		UpdatedAt: s.now().UTC(),
	}, s.ttl)
}

// Load returns the saved state for a session's form.
func (s *SnapshotStore) Load(ctx context.Context, sessionID, form string) (FormState, error) {
	st, err := s.states.Get(ctx, s.key(sessionID, form))
	if err != nil {
		return FormState{}, err
	}
	if st.Snapshot.Form != form {
		return FormState{}, fmt.Errorf("%w: snapshot for %q stored under %q", ErrInvalidData, st.Snapshot.Form, form)
	}
	return st, nil
}

// Delete removes the saved state for a session's form.
func (s *SnapshotStore) Delete(ctx context.Context, sessionID, form string) error {
	return s.states.Delete(ctx, s.key(sessionID, form))
}

// Forms lists the forms with saved state for a session.
func (s *SnapshotStore) Forms(ctx context.Context, sessionID string) ([]string, error) {
	prefix := s.keyPrefix + sessionID + ":"
	keys, err := s.store.Keys(ctx, prefix+"*")
	if err != nil {
		return nil, err
	}
	forms := make([]string, 0, len(keys))
	for _, k := range keys {
		forms = append(forms, strings.TrimPrefix(k, prefix))
	}
	return forms, nil
}

// Ping reports whether the underlying store is usable.
func (s *SnapshotStore) Ping(ctx context.Context) error {
	_, err := s.store.Keys(ctx, s.keyPrefix+"ping")
	return err
}

// Close closes the underlying store.
func (s *SnapshotStore) Close() error {
	return s.store.Close()
}
