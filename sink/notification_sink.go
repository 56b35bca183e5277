package sink

import (
	"context"
	"fmt"
	"log/slog"

	"paluwagan/contract"
	"paluwagan/domain/event"
)

// NotificationSink turns contribution events into the payment messages the
// external chat collaborator relays, matching the wording members see in
// the transcript.
type NotificationSink struct {
	notifier contract.Notifier
	log      *slog.Logger
}

func NewNotificationSink(notifier contract.Notifier, log *slog.Logger) NotificationSink {
	return NotificationSink{notifier: notifier, log: log}
}

func (s NotificationSink) Consume(ctx context.Context, e event.DomainEvent) error {
	evt, ok := e.(event.ContributionRecorded)
	if !ok {
		return nil
	}
	return s.notifier.Notify(ctx, contract.Notification{
		PoolID:   evt.PoolID,
		SlotID:   evt.SlotID.String(),
		MemberID: evt.MemberID.String(),
		Message: fmt.Sprintf("User %s marked %s as PAID (₱%s)",
			evt.Codename, evt.SlotName, evt.Amount.StringFixed(2)),
	})
}
