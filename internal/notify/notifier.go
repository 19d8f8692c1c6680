// Package notify pushes settlement events to operator chat channels. Events
// are filtered by type so operators only hear about what they opted into.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/settleoracle/internal/domain"
)

// Event types.
const (
	EventSettlementConfirmed = "settlement_confirmed"
	EventSettlementRejected  = "settlement_rejected"
	EventSettlementUnknown   = "settlement_unknown"
	EventCycleError          = "cycle_error"
)

// Sender is one notification channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Notifier fans a message out to every Sender.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier. An empty events list lets every event
// through.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[e] = true
		}
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Enabled reports whether any sender is configured.
func (n *Notifier) Enabled() bool { return len(n.senders) > 0 }

// Notify sends to all senders if event passes the filter. One failing sender
// does not stop delivery to the others.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if len(n.senders) == 0 {
		return nil
	}
	if len(n.events) > 0 && !n.events[event] {
		n.logger.DebugContext(ctx, "event filtered out", slog.String("event", event))
		return nil
	}

	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %w", errors.Join(errs...))
	}
	return nil
}

// NotifySettlement formats and sends a settlement result.
func (n *Notifier) NotifySettlement(ctx context.Context, s domain.Settlement) error {
	event, title := settlementEvent(s.Status)
	msg := fmt.Sprintf("market %d → %q via %s", s.MarketID, s.Outcome, s.Strategy)
	if s.TxHash != "" {
		msg += "\ntx " + s.TxHash
	}
	if s.Err != nil {
		msg += "\nerror: " + s.Err.Error()
	}
	return n.Notify(ctx, event, title, msg)
}

// NotifyCycleError reports a failed scan.
func (n *Notifier) NotifyCycleError(ctx context.Context, err error) error {
	return n.Notify(ctx, EventCycleError, "Oracle cycle failed", err.Error())
}

func settlementEvent(status domain.SettlementStatus) (event, title string) {
	switch status {
	case domain.SettlementConfirmed:
		return EventSettlementConfirmed, "Market settled"
	case domain.SettlementRejected:
		return EventSettlementRejected, "Settlement rejected"
	default:
		return EventSettlementUnknown, "Settlement outcome unknown"
	}
}
