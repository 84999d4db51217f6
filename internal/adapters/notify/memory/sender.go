package memory

import (
	"context"
	"sync"

	"github.com/Voupi/sistema-gestion-addag/internal/ports/out/notifier"
)

// Sender records every message instead of delivering it. FailFor makes sends
// to a given address fail; FailAll makes every send fail.
type Sender struct {
	mu      sync.Mutex
	sent    []notifier.Message
	calls   int
	failFor map[string]error
	failAll error
}

func NewSender() *Sender {
	return &Sender{failFor: make(map[string]error)}
}

func (s *Sender) FailFor(address string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failFor[address] = err
}

func (s *Sender) FailAll(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAll = err
}

func (s *Sender) Send(ctx context.Context, msg notifier.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if err := ctx.Err(); err != nil {
		return err
	}
	if msg.To == "" {
		return notifier.ErrNoRecipient
	}
	if s.failAll != nil {
		return s.failAll
	}
	if err, ok := s.failFor[msg.To]; ok {
		return err
	}
	s.sent = append(s.sent, msg)
	return nil
}

// Sent returns delivered messages in send order.
func (s *Sender) Sent() []notifier.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]notifier.Message, len(s.sent))
	copy(out, s.sent)
	return out
}

// Calls counts every Send invocation, failed ones included.
func (s *Sender) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
