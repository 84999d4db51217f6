package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/Voupi/sistema-gestion-addag/internal/ports/out/notifier"
)

// LogSender writes messages to the log instead of delivering them. Used in
// development and when no mail backend is configured.
type LogSender struct {
	logger   *zap.Logger
	renderer *Renderer
}

func NewLogSender(logger *zap.Logger, renderer *Renderer) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger, renderer: renderer}
}

func (s *LogSender) Send(ctx context.Context, msg notifier.Message) error {
	_ = ctx
	if msg.To == "" {
		return notifier.ErrNoRecipient
	}
	subject := ""
	if s.renderer != nil {
		r, err := s.renderer.Render(msg)
		if err != nil {
			return err
		}
		subject = r.Subject
	}
	s.logger.Info("notification",
		zap.String("kind", string(msg.Kind)),
		zap.String("recordKind", string(msg.RecordKind)),
		zap.String("recordId", string(msg.RecordID)),
		zap.String("to", msg.To),
		zap.String("subject", subject),
	)
	return nil
}
