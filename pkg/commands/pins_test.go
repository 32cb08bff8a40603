package commands

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type staticFlag bool

func (f staticFlag) DeletePinConfirmations() bool { return bool(f) }

type recordingDeleter struct {
	deleted []string
	err     error
}

func (r *recordingDeleter) DeleteMessage(_ context.Context, channelID, messageID string) error {
	r.deleted = append(r.deleted, channelID+"/"+messageID)
	return r.err
}

func TestPinCleaner(t *testing.T) {
	pin := Request{ChannelID: "c", MessageID: "m", Kind: KindPinsAdd}

	t.Run("deletes when enabled", func(t *testing.T) {
		del := &recordingDeleter{}
		assert.True(t, NewPinCleaner(staticFlag(true), del).Handle(context.Background(), pin))
		assert.Equal(t, []string{"c/m"}, del.deleted)
	})

	t.Run("keeps when disabled", func(t *testing.T) {
		del := &recordingDeleter{}
		assert.False(t, NewPinCleaner(staticFlag(false), del).Handle(context.Background(), pin))
		assert.Empty(t, del.deleted)
	})

	t.Run("ignores ordinary messages", func(t *testing.T) {
		del := &recordingDeleter{}
		msg := pin
		msg.Kind = KindDefault
		assert.False(t, NewPinCleaner(staticFlag(true), del).Handle(context.Background(), msg))
		assert.Empty(t, del.deleted)
	})

	t.Run("delete failure is not retried", func(t *testing.T) {
		del := &recordingDeleter{err: errors.New("missing permissions")}
		assert.False(t, NewPinCleaner(staticFlag(true), del).Handle(context.Background(), pin))
		assert.Len(t, del.deleted, 1)
	})
}
