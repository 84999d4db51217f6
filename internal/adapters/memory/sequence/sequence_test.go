package sequence

import (
	"context"
	"sync"
	"testing"

	"github.com/Voupi/sistema-gestion-addag/internal/adapters/contracttest"
	"github.com/Voupi/sistema-gestion-addag/internal/domain"
	sequenceport "github.com/Voupi/sistema-gestion-addag/internal/ports/out/sequence"
)

func TestContract_Sequence(t *testing.T) {
	contracttest.RunSequence(t, func(t *testing.T) (sequenceport.Sequence, func()) {
		t.Helper()
		return NewSequence(), nil
	})
}

func TestSequence_ConcurrentNextIsUnique(t *testing.T) {
	t.Parallel()

	s := NewSequence()
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[int64]bool)
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := s.Next(context.Background(), domain.KindMembership)
			if err != nil {
				t.Errorf("Next() err=%v", err)
				return
			}
			mu.Lock()
			seen[n] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	if len(seen) != 50 || s.Calls(domain.KindMembership) != 50 {
		t.Fatalf("unique=%d calls=%d, want 50", len(seen), s.Calls(domain.KindMembership))
	}
}
