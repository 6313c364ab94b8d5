package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dgallion1/docqa/internal/index"
)

// ErrSessionClosed reports staging or committing through a session
// that was already committed or abandoned.
var ErrSessionClosed = errors.New("ingestion session closed")

// Session stages page points for one document ingestion and commits
// them in a single replace operation. It exists so partially-built
// state lives with the caller rather than in shared global storage:
// an abandoned session simply drops its staged points.
type Session struct {
	collection string
	store      Store

	mu     sync.Mutex
	staged []index.PagePoint
	closed bool
}

// NewSession opens a staging session targeting one collection.
func (ing *Ingestor) NewSession(collection string) *Session {
	return &Session{
		collection: collection,
		store:      ing.store,
	}
}

// Stage adds points to the pending set. Points staged after the
// session closes are discarded.
func (s *Session) Stage(points ...index.PagePoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.staged = append(s.staged, points...)
}

// Commit resets the target collection and writes every staged point.
// The reset-then-upsert order makes re-ingestion a wholesale
// replacement: no chunk from an earlier upload can survive. A session
// commits at most once.
func (s *Session) Commit(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.closed = true
	points := s.staged
	s.staged = nil
	s.mu.Unlock()

	if len(points) == 0 {
		return ErrNoContent
	}

	if err := s.store.ResetCollection(ctx, s.collection); err != nil {
		return fmt.Errorf("reset %s: %w", s.collection, err)
	}
	if err := s.store.UpsertPages(ctx, s.collection, points); err != nil {
		return fmt.Errorf("commit %d points to %s: %w", len(points), s.collection, err)
	}
	return nil
}

// Abandon drops staged points without touching the store. The existing
// collection, if any, stays intact. Abandoning twice or after commit
// is a no-op.
func (s *Session) Abandon() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.staged = nil
}
