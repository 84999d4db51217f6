package lifecycle

import (
	"fmt"
	"strings"

	"github.com/Voupi/sistema-gestion-addag/internal/ports/out/notifier"
)

// NotificationPolicy decides which state-writing operation sends which message.
// Reject always sends a rejected message and is not governed by the policy.
type NotificationPolicy map[Operation]notifier.Kind

// DefaultPolicy sends the ready message when a card is marked ready for pickup.
func DefaultPolicy() NotificationPolicy {
	return NotificationPolicy{OpMarkReady: notifier.KindReady}
}

// LegacyPolicy sends the ready message as soon as a print run is confirmed.
func LegacyPolicy() NotificationPolicy {
	return NotificationPolicy{OpConfirmPrint: notifier.KindReady}
}

// PolicyFromSetting maps the notify.ready_on setting to a policy.
func PolicyFromSetting(readyOn string) (NotificationPolicy, error) {
	op, err := ParseOperation(readyOn)
	if err != nil && strings.TrimSpace(readyOn) != "" {
		return nil, fmt.Errorf("notify.ready_on: %w", err)
	}
	switch op {
	case "", OpMarkReady:
		return DefaultPolicy(), nil
	case OpConfirmPrint:
		return LegacyPolicy(), nil
	default:
		return nil, fmt.Errorf("notify.ready_on: %q cannot trigger the ready message", readyOn)
	}
}

// KindFor returns the message kind sent after op, if any.
func (p NotificationPolicy) KindFor(op Operation) (notifier.Kind, bool) {
	if op == OpReject {
		return notifier.KindRejected, true
	}
	k, ok := p[op]
	return k, ok
}
