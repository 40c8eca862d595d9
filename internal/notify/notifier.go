// Package notify delivers operator notifications over one or more channels
// (Telegram, Discord). Settlement events are filtered by type so operators
// receive only the alerts they care about.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/outcomelabs/marketd/internal/domain"
)

// Sender is the interface each notification channel implements.
type Sender interface {
	// Send delivers a notification with the given title and message body.
	Send(ctx context.Context, title, message string) error
	// Name returns a human-readable identifier for the sender.
	Name() string
}

// Notifier dispatches notifications to the registered senders, filtered by
// event type. An empty allow-list lets every event through.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier delivering to the given senders. Only events
// whose type appears in events are forwarded by NotifyEvent.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		allowed[strings.TrimSpace(e)] = true
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// NotifyEvent formats and delivers a settlement event when its type passes
// the filter.
func (n *Notifier) NotifyEvent(ctx context.Context, evt domain.Event) error {
	title, message := formatEvent(evt)
	return n.Notify(ctx, string(evt.Type), title, message)
}

// Notify sends a notification to all senders when the event type is allowed.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if len(n.events) > 0 && !n.events[event] {
		n.logger.DebugContext(ctx, "event filtered out",
			slog.String("event", event),
		)
		return nil
	}

	return n.dispatch(ctx, title, message)
}

// NotifyAll sends a notification to all senders regardless of event type.
func (n *Notifier) NotifyAll(ctx context.Context, title, message string) error {
	return n.dispatch(ctx, title, message)
}

// dispatch sends to every sender, collecting failures so one broken channel
// does not block the rest.
func (n *Notifier) dispatch(ctx context.Context, title, message string) error {
	if len(n.senders) == 0 {
		return nil
	}

	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
		} else {
			n.logger.DebugContext(ctx, "notification sent",
				slog.String("sender", s.Name()),
				slog.String("title", title),
			)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}

// formatEvent renders a settlement event as a human-readable notification.
func formatEvent(evt domain.Event) (title, message string) {
	switch evt.Type {
	case domain.EventMarketCreated:
		title = fmt.Sprintf("Market %d created", evt.MarketID)
	case domain.EventMarketResolved:
		title = fmt.Sprintf("Market %d resolved", evt.MarketID)
	case domain.EventMarketCancelled:
		title = fmt.Sprintf("Market %d cancelled", evt.MarketID)
	default:
		title = fmt.Sprintf("Market %d: %s", evt.MarketID, evt.Type)
	}

	keys := make([]string, 0, len(evt.Detail))
	for k := range evt.Detail {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	if evt.Account != "" {
		fmt.Fprintf(&b, "account: %s\n", evt.Account)
	}
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %v\n", k, evt.Detail[k])
	}
	return title, strings.TrimRight(b.String(), "\n")
}
