package notify

import (
	"context"
	"log/slog"

	"leadtracker/pkg/logger"
)

// LogNotifier writes notices to the request-scoped structured logger.
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, n Notice) {
	attrs := []any{"op", n.Op, "level", string(n.Level)}
	if n.LeadID != "" {
		attrs = append(attrs, "lead_id", n.LeadID)
	}
	if n.Scope != "" {
		attrs = append(attrs, "scope", n.Scope)
	}
	if n.Err != "" {
		attrs = append(attrs, "err", n.Err)
	}

	l := logger.From(ctx)
	switch n.Level {
	case LevelError:
		l.Error(n.Message, attrs...)
	default:
		l.Log(ctx, slog.LevelInfo, n.Message, attrs...)
	}
}

// Notifier receives notices.
type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

// Multi fans a notice out to every notifier in order.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n Notice) {
	for _, x := range m {
		if x != nil {
			x.Notify(ctx, n)
		}
	}
}
