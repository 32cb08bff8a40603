package commands

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/bookowl/botross/pkg/logger"
)

type Outcome int

const (
	// OutcomePassthrough: the message is not a command.
	OutcomePassthrough Outcome = iota
	// OutcomeUnrecognized: prefixed, but no such command.
	OutcomeUnrecognized
	// OutcomeDenied: the command's check rejected the caller.
	OutcomeDenied
	// OutcomeHandled: the handler ran; Err carries its failure, if any.
	OutcomeHandled
)

func (o Outcome) String() string {
	switch o {
	case OutcomePassthrough:
		return "passthrough"
	case OutcomeUnrecognized:
		return "unrecognized"
	case OutcomeDenied:
		return "denied"
	case OutcomeHandled:
		return "handled"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

type Result struct {
	Outcome Outcome
	Command string
	Err     error
}

const unknownCommandReply = "Unknown command"

type Dispatcher struct {
	reg     *Registry
	counter *Counter
	prefix  string

	mu         sync.RWMutex
	botID      string
	nonCommand func(ctx context.Context, req Request)
}

func NewDispatcher(reg *Registry, counter *Counter, prefix string) *Dispatcher {
	if counter == nil {
		counter = NewCounter()
	}
	return &Dispatcher{reg: reg, counter: counter, prefix: prefix}
}

// SetBotID enables "@bot command" as an alternative to the prefix.
func (d *Dispatcher) SetBotID(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.botID = id
}

// OnNonCommand registers the hook that receives messages which are not
// commands.
func (d *Dispatcher) OnNonCommand(fn func(ctx context.Context, req Request)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nonCommand = fn
}

func (d *Dispatcher) Counter() *Counter {
	return d.counter
}

func (d *Dispatcher) Dispatch(ctx context.Context, req Request) Result {
	d.mu.RLock()
	botID := d.botID
	nonCommand := d.nonCommand
	d.mu.RUnlock()

	name, args, ok := ParseCommand(req.Text, d.prefix, botID)
	if !ok {
		if nonCommand != nil {
			nonCommand(ctx, req)
		}
		return Result{Outcome: OutcomePassthrough}
	}

	def, found := d.reg.Lookup(name)
	if !found {
		logger.InfoCF("commands", "Unknown command", map[string]any{
			"command": name,
			"user":    req.SenderName,
		})
		if err := reply(req, unknownCommandReply); err != nil {
			logger.ErrorCF("commands", "Error sending message", map[string]any{
				"error": err.Error(),
			})
		}
		return Result{Outcome: OutcomeUnrecognized, Command: name}
	}

	count := d.counter.Increment(def.Name)
	logger.InfoCF("commands", "Got command", map[string]any{
		"command": def.Name,
		"user":    req.SenderName,
		"count":   count,
	})

	if def.Check != nil && !def.Check(req) {
		logger.DebugCF("commands", "Command check failed", map[string]any{
			"command": def.Name,
			"user_id": req.SenderID,
		})
		return Result{Outcome: OutcomeDenied, Command: def.Name}
	}

	req.Args = args
	err := d.run(ctx, def, req)
	if err != nil {
		logger.ErrorCF("commands", "Command returned error", map[string]any{
			"command": def.Name,
			"error":   err.Error(),
		})
	} else {
		logger.InfoCF("commands", "Processed command", map[string]any{
			"command": def.Name,
		})
	}
	return Result{Outcome: OutcomeHandled, Command: def.Name, Err: err}
}

func (d *Dispatcher) run(ctx context.Context, def Definition, req Request) (err error) {
	if def.Handler == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("command %s panicked: %v", def.Name, r)
		}
	}()
	return def.Handler(ctx, req)
}

// ParseCommand splits text into a command name and its arguments. The text
// must start with prefix, or with a mention of botID when botID is set.
// Whitespace between the prefix and the name is allowed.
func ParseCommand(text, prefix, botID string) (name, args string, ok bool) {
	rest := strings.TrimLeft(text, " \t\r\n")

	switch {
	case prefix != "" && strings.HasPrefix(rest, prefix):
		rest = rest[len(prefix):]
	case botID != "" && strings.HasPrefix(rest, "<@"+botID+">"):
		rest = rest[len("<@"+botID+">"):]
	case botID != "" && strings.HasPrefix(rest, "<@!"+botID+">"):
		rest = rest[len("<@!"+botID+">"):]
	default:
		return "", "", false
	}

	rest = strings.TrimLeft(rest, " \t\r\n")
	end := strings.IndexAny(rest, " \t\r\n")
	if end < 0 {
		name = rest
	} else {
		name, args = rest[:end], strings.TrimSpace(rest[end:])
	}
	if name == "" {
		return "", "", false
	}
	return name, args, true
}
