package commands

import (
	"context"
	"sync"

	"github.com/bookowl/botross/pkg/sandbox"
)

// replies records everything sent through Request.Reply.
type replies struct {
	mu   sync.Mutex
	msgs []string
	err  error
}

func (r *replies) fn(text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, text)
	return r.err
}

func (r *replies) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.msgs...)
}

func adminRequest(text string, out *replies) Request {
	return Request{
		ChannelID:        "chan",
		MessageID:        "msg",
		GuildID:          "guild",
		SenderID:         "admin-user",
		SenderName:       "admin",
		Text:             text,
		Permissions:      0x8,
		PermissionsKnown: true,
		Reply:            out.fn,
	}
}

func memberRequest(text string, out *replies) Request {
	req := adminRequest(text, out)
	req.SenderID = "member-user"
	req.SenderName = "member"
	req.Permissions = 0x400 | 0x800
	return req
}

type fakeRunner struct {
	mu     sync.Mutex
	calls  []sandbox.Request
	result sandbox.Result
}

func (f *fakeRunner) Run(_ context.Context, req sandbox.Request) sandbox.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	res := f.result
	res.Mode = req.Mode
	return res
}

type denyAll struct{}

func (denyAll) Allow(string) bool { return false }
