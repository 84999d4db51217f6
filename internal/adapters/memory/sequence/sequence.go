package sequence

import (
	"context"
	"sync"

	"github.com/Voupi/sistema-gestion-addag/internal/domain"
)

// Sequence is an in-memory card counter, one per record kind.
type Sequence struct {
	mu   sync.Mutex
	next map[domain.RecordKind]int64
	// calls counts Next invocations per kind; tests assert on it.
	calls map[domain.RecordKind]int
}

func NewSequence() *Sequence {
	return &Sequence{
		next:  make(map[domain.RecordKind]int64),
		calls: make(map[domain.RecordKind]int),
	}
}

func (s *Sequence) Next(ctx context.Context, kind domain.RecordKind) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next[kind]++
	s.calls[kind]++
	return s.next[kind], nil
}

func (s *Sequence) Current(ctx context.Context, kind domain.RecordKind) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next[kind], nil
}

func (s *Sequence) Calls(kind domain.RecordKind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[kind]
}
