package sequence

import (
	"context"

	"github.com/Voupi/sistema-gestion-addag/internal/domain"
)

// Sequence hands out card numbers. Next must be atomic across processes; gaps are
// allowed (a value consumed by a losing concurrent approval is never reused).
type Sequence interface {
	Next(ctx context.Context, kind domain.RecordKind) (int64, error)
}

// Reader reports the last value handed out for kind, or 0 when none was.
type Reader interface {
	Current(ctx context.Context, kind domain.RecordKind) (int64, error)
}
