package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogSender writes notifications to the structured log. It is the default
// delivery backend until a push or email sender is wired in.
type LogSender struct {
	Logger *zap.Logger
}

func (s *LogSender) Send(_ context.Context, n Notification) error {
	s.Logger.Info("notification",
		zap.String("kind", n.Kind),
		zap.Uint64("recipient_id", n.RecipientID),
		zap.Uint64("listing_id", n.ListingID),
		zap.String("direction", n.Direction),
	)
	return nil
}
