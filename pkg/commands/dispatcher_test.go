package commands

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDispatcher(t *testing.T, defs ...Definition) *Dispatcher {
	t.Helper()
	reg, err := NewRegistry(defs)
	require.NoError(t, err)
	return NewDispatcher(reg, NewCounter(), `\`)
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		text, prefix, botID string
		name, args          string
		ok                  bool
	}{
		{text: `\ping`, prefix: `\`, name: "ping", ok: true},
		{text: `  \  help py`, prefix: `\`, name: "help", args: "py", ok: true},
		{text: "\\py\n```py\nprint(1)\n```", prefix: `\`, name: "py", args: "```py\nprint(1)\n```", ok: true},
		{text: "<@123> ping", prefix: `\`, botID: "123", name: "ping", ok: true},
		{text: "<@!123>ping now", prefix: `\`, botID: "123", name: "ping", args: "now", ok: true},
		{text: "<@456> ping", prefix: `\`, botID: "123", ok: false},
		{text: "ping", prefix: `\`, ok: false},
		{text: `\`, prefix: `\`, ok: false},
		{text: "", prefix: `\`, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			name, args, ok := ParseCommand(tt.text, tt.prefix, tt.botID)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.name, name)
			assert.Equal(t, tt.args, args)
		})
	}
}

func TestDispatcher_HandlesKnownCommand(t *testing.T) {
	var got Request
	d := newTestDispatcher(t, Definition{
		Name: "echo",
		Handler: func(_ context.Context, req Request) error {
			got = req
			return nil
		},
	})

	res := d.Dispatch(context.Background(), Request{Text: `\echo hello  world `})

	assert.Equal(t, OutcomeHandled, res.Outcome)
	assert.Equal(t, "echo", res.Command)
	assert.NoError(t, res.Err)
	assert.Equal(t, "hello  world", got.Args)
	assert.Equal(t, uint64(1), d.Counter().Get("echo"))
}

func TestDispatcher_UnknownCommandRepliesOnce(t *testing.T) {
	d := newTestDispatcher(t, Definition{Name: "ping", Handler: replyText("Pong!")})
	out := &replies{}

	res := d.Dispatch(context.Background(), Request{Text: `\nope`, Reply: out.fn})

	assert.Equal(t, OutcomeUnrecognized, res.Outcome)
	assert.Equal(t, []string{"Unknown command"}, out.all())
	assert.Empty(t, d.Counter().Snapshot(), "unknown commands are not counted")
}

func TestDispatcher_DeniedCommandIsSilent(t *testing.T) {
	called := false
	d := newTestDispatcher(t, Definition{
		Name:  "secret",
		Check: func(Request) bool { return false },
		Handler: func(context.Context, Request) error {
			called = true
			return nil
		},
	})
	out := &replies{}

	res := d.Dispatch(context.Background(), Request{Text: `\secret`, Reply: out.fn})

	assert.Equal(t, OutcomeDenied, res.Outcome)
	assert.False(t, called)
	assert.Empty(t, out.all())
	assert.Equal(t, uint64(1), d.Counter().Get("secret"), "denied calls still count as dispatched")
}

func TestDispatcher_HandlerErrorIsReturnedNotEscalated(t *testing.T) {
	d := newTestDispatcher(t,
		Definition{
			Name:    "fail",
			Handler: func(context.Context, Request) error { return errors.New("send failed") },
		},
		Definition{
			Name:    "boom",
			Handler: func(context.Context, Request) error { panic("kaboom") },
		},
	)

	res := d.Dispatch(context.Background(), Request{Text: `\fail`})
	assert.Equal(t, OutcomeHandled, res.Outcome)
	assert.EqualError(t, res.Err, "send failed")

	res = d.Dispatch(context.Background(), Request{Text: `\boom`})
	assert.Equal(t, OutcomeHandled, res.Outcome)
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "kaboom")
}

func TestDispatcher_NonCommandHook(t *testing.T) {
	d := newTestDispatcher(t, Definition{Name: "ping"})
	var seen []string
	d.OnNonCommand(func(_ context.Context, req Request) {
		seen = append(seen, req.Text)
	})

	res := d.Dispatch(context.Background(), Request{Text: "just chatting"})
	assert.Equal(t, OutcomePassthrough, res.Outcome)
	assert.Equal(t, []string{"just chatting"}, seen)

	d.Dispatch(context.Background(), Request{Text: `\ping`})
	assert.Len(t, seen, 1)
}

func TestDispatcher_MentionPrefix(t *testing.T) {
	d := newTestDispatcher(t, Definition{Name: "ping", Handler: replyText("Pong!")})
	out := &replies{}

	res := d.Dispatch(context.Background(), Request{Text: "<@99> ping", Reply: out.fn})
	assert.Equal(t, OutcomePassthrough, res.Outcome)

	d.SetBotID("99")
	res = d.Dispatch(context.Background(), Request{Text: "<@99> ping", Reply: out.fn})
	assert.Equal(t, OutcomeHandled, res.Outcome)
	assert.Equal(t, []string{"Pong!"}, out.all())
}

func TestDispatcher_ConcurrentCounting(t *testing.T) {
	names := []string{"a", "b", "c"}
	defs := make([]Definition, 0, len(names))
	for _, n := range names {
		defs = append(defs, Definition{Name: n, Handler: func(context.Context, Request) error { return nil }})
	}
	d := newTestDispatcher(t, defs...)

	const perName = 200
	var wg sync.WaitGroup
	for _, n := range names {
		for i := 0; i < perName; i++ {
			wg.Add(1)
			go func(n string) {
				defer wg.Done()
				d.Dispatch(context.Background(), Request{Text: fmt.Sprintf(`\%s`, n)})
			}(n)
		}
	}
	wg.Wait()

	snap := d.Counter().Snapshot()
	for _, n := range names {
		assert.Equal(t, uint64(perName), snap[n], n)
	}
}

func TestNewRegistry_RejectsDuplicates(t *testing.T) {
	_, err := NewRegistry([]Definition{{Name: "ping"}, {Name: "ping"}})
	assert.Error(t, err)

	_, err = NewRegistry([]Definition{{Name: ""}})
	assert.Error(t, err)
}

func TestRegistry_AllSorted(t *testing.T) {
	reg, err := NewRegistry([]Definition{{Name: "py"}, {Name: "about"}, {Name: "help"}})
	require.NoError(t, err)

	var names []string
	for _, d := range reg.All() {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"about", "help", "py"}, names)
}
