package commands

import (
	"context"

	"github.com/bookowl/botross/pkg/logger"
)

type MessageDeleter interface {
	DeleteMessage(ctx context.Context, channelID, messageID string) error
}

type PinFlag interface {
	DeletePinConfirmations() bool
}

// PinCleaner deletes the system "pinned a message" notices when the
// delete_pin_confs setting is on.
type PinCleaner struct {
	settings PinFlag
	deleter  MessageDeleter
}

func NewPinCleaner(settings PinFlag, deleter MessageDeleter) *PinCleaner {
	return &PinCleaner{settings: settings, deleter: deleter}
}

// Handle reports whether it deleted the message. Deletion failures are
// logged and not retried.
func (p *PinCleaner) Handle(ctx context.Context, req Request) bool {
	if req.Kind != KindPinsAdd {
		return false
	}
	if !p.settings.DeletePinConfirmations() {
		logger.DebugCF("pins", "Not deleting pin conf message", map[string]any{
			"message_id": req.MessageID,
		})
		return false
	}

	logger.InfoCF("pins", "Deleting pin conf message", map[string]any{
		"channel_id": req.ChannelID,
		"message_id": req.MessageID,
	})
	if err := p.deleter.DeleteMessage(ctx, req.ChannelID, req.MessageID); err != nil {
		logger.ErrorCF("pins", "Error deleting pin conf message", map[string]any{
			"message_id": req.MessageID,
			"error":      err.Error(),
		})
		return false
	}
	return true
}
