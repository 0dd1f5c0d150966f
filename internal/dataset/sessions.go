package dataset

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultSessions is the number of sessions kept before the least recently
// used one is dropped.
const DefaultSessions = 1024

// ErrSessionNotFound is returned for unknown or expired session ids.
var ErrSessionNotFound = errors.New("invalid session")

// Ref identifies an upload.
type Ref struct {
	Bucket string
	File   string
}

// Sessions maps session ids to uploads. It is safe for concurrent use.
type Sessions struct {
	refs *lru.Cache[string, Ref]
}

// NewSessions creates a session table holding at most size sessions.
func NewSessions(size int) (*Sessions, error) {
	if size <= 0 {
		size = DefaultSessions
	}
	refs, err := lru.New[string, Ref](size)
	if err != nil {
		return nil, fmt.Errorf("create session cache: %w", err)
	}
	return &Sessions{refs: refs}, nil
}

// Create opens a session for ref and returns its id.
func (s *Sessions) Create(ref Ref) string {
	id := uuid.NewString()
	s.refs.Add(id, ref)
	return id
}

// Get returns the upload of a session.
func (s *Sessions) Get(id string) (Ref, error) {
	ref, ok := s.refs.Get(id)
	if !ok {
		return Ref{}, fmt.Errorf("%w: %q", ErrSessionNotFound, id)
	}
	return ref, nil
}

// Delete closes a session. Deleting an unknown session is not an error.
func (s *Sessions) Delete(id string) {
	s.refs.Remove(id)
}

// Len returns the number of open sessions.
func (s *Sessions) Len() int {
	return s.refs.Len()
}
