package commands

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bookowl/botross/assets"
	"github.com/bookowl/botross/pkg/sandbox"
)

// SettingsStore is the slice of the settings manager the commands need.
type SettingsStore interface {
	DeletePinConfirmations() bool
	SetDeletePinConfirmations(ctx context.Context, v bool) error
}

type CodeRunner interface {
	Run(ctx context.Context, req sandbox.Request) sandbox.Result
}

type RateLimiter interface {
	Allow(key string) bool
}

// Deps are the collaborators of the builtin commands.
type Deps struct {
	Settings SettingsStore
	Runner   CodeRunner
	Limiter  RateLimiter
	Counter  *Counter
	OwnerID  string
	Prefix   string
	// SaveTimeout bounds a delete_pin_confs write. Zero means
	// DefaultSaveTimeout.
	SaveTimeout time.Duration
}

// DefaultSaveTimeout keeps an unreachable database from holding the
// settings lock, and with it every pin notice, for long.
const DefaultSaveTimeout = 10 * time.Second

const (
	maxReplyOutput = 1900

	v2Text = "This is what +V2 was for"
	// Discord unfurls the link into the image.
	v2Image = "https://media.giphy.com/media/HhTXt43pk1I1W/giphy.gif"

	aboutTemplate = `
BotRoss is a Discord bot created by Matthew Stanley and released under the MIT license.
For a list of commands type ` + "`%[1]shelp`" + `
To see the license type ` + "`%[1]slicense`" + `

Source code for BotRoss can be found at https://github.com/BookOwl/botross/
`
)

func BuiltinDefinitions(deps Deps) []Definition {
	var defs []Definition
	defs = []Definition{
		{
			Name:    "ping",
			Usage:   "ping",
			Short:   "(Test command)",
			Long:    `Sends "Pong!" (for testing)`,
			Handler: replyText("Pong!"),
		},
		{
			Name:    "about",
			Usage:   "about",
			Long:    "Displays information about BotRoss and links to the source code",
			Handler: replyText(fmt.Sprintf(aboutTemplate, deps.Prefix)),
		},
		{
			Name:    "license",
			Usage:   "license",
			Long:    "Displays the license for BotRoss (the MIT license)",
			Handler: replyText(fmt.Sprintf("License for BotRoss:```\n%s\n```", strings.TrimSpace(assets.License))),
		},
		{
			Name:  "help",
			Usage: "help [cmd]",
			Short: "Displays help",
			Long:  "Displays a list of commands if run without arguments or help for a specified command.",
			Handler: func(_ context.Context, req Request) error {
				return reply(req, FormatHelp(defs, deps.Prefix, req.Args))
			},
		},
		{
			Name:    "V2",
			Usage:   "V2",
			Long:    v2Text,
			Check:   AdministratorOnly(),
			Handler: replyText(v2Text + "\n" + v2Image),
		},
		{
			Name:  "delete_pin_confs",
			Usage: "delete_pin_confs [yes|no|true|false]",
			Short: "Sets BotRoss to automatically delete pin conf messages",
			Long: `BotRoss can automatically delete pin confirmation messages.
If called with no arguments displays the current pin deletion status,
otherwise if called with [yes|no|true|false] sets the pin confirmation setting`,
			Check: AdministratorOnly(),
			Handler: func(ctx context.Context, req Request) error {
				return handleDeletePinConfs(ctx, req, deps.Settings, deps.SaveTimeout)
			},
		},
		{
			Name:  "py",
			Usage: "py (code)",
			Short: "Runs Python3 code",
			Long: `Evaluates the Python3 code passed and prints the result.
Can take the (code) argument either in a triple backtick code block for one or more statements or as the rest of the comment for an expression.`,
			Check: AdministratorOnly(),
			Handler: func(ctx context.Context, req Request) error {
				return handlePy(ctx, req, deps)
			},
		},
		{
			Name:  "stats",
			Usage: "stats",
			Short: "Shows command usage counts",
			Long:  "Shows how many times each command has been used since BotRoss started. Owner only.",
			Check: OwnerOnly(deps.OwnerID),
			Handler: func(_ context.Context, req Request) error {
				return reply(req, FormatStats(deps.Counter))
			},
		},
	}
	return defs
}

func replyText(text string) Handler {
	return func(_ context.Context, req Request) error {
		return reply(req, text)
	}
}

// FormatHelp lists every command, or details the one named by arg.
func FormatHelp(defs []Definition, prefix, arg string) string {
	sorted := append([]Definition(nil), defs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	if name := firstField(arg); name != "" {
		for _, d := range sorted {
			if d.Name == name {
				return fmt.Sprintf("%s\nUsage: `%s%s`\n\n%s", d.Name, prefix, d.Usage, d.Long)
			}
		}
		return fmt.Sprintf("`%s%s` is not a known command", prefix, name)
	}

	var b strings.Builder
	b.WriteString("Commands:\n```\n")
	for _, d := range sorted {
		b.WriteString(prefix + d.Usage)
		if d.Short != "" {
			b.WriteString(": " + d.Short)
		}
		b.WriteString("\n\n")
	}
	b.WriteString("```")
	return b.String()
}

func FormatStats(c *Counter) string {
	if c == nil {
		return "No statistics available."
	}
	snap := c.Snapshot()
	if len(snap) == 0 {
		return "No commands used yet."
	}
	names := make([]string, 0, len(snap))
	for n := range snap {
		names = append(names, n)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("Command usage:\n```\n")
	for _, n := range names {
		fmt.Fprintf(&b, "%s: %d\n", n, snap[n])
	}
	b.WriteString("```")
	return b.String()
}

// ParseToggle reports the value a delete_pin_confs argument asks for.
// Only y, yes, true and 1 (any case) mean true.
func ParseToggle(arg string) bool {
	switch strings.ToLower(arg) {
	case "y", "yes", "true", "1":
		return true
	default:
		return false
	}
}

func handleDeletePinConfs(ctx context.Context, req Request, settings SettingsStore, timeout time.Duration) error {
	if settings == nil {
		return reply(req, "Command unavailable in current context.")
	}

	arg := firstField(req.Args)
	if arg == "" || strings.EqualFold(arg, "status") {
		return reply(req, fmt.Sprintf("Ping conf delete status: %t", settings.DeletePinConfirmations()))
	}

	if timeout <= 0 {
		timeout = DefaultSaveTimeout
	}
	saveCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	v := ParseToggle(arg)
	if err := settings.SetDeletePinConfirmations(saveCtx, v); err != nil {
		if replyErr := reply(req, fmt.Sprintf("Failed to save pin conf setting: %v", err)); replyErr != nil {
			return fmt.Errorf("%w (reply also failed: %v)", err, replyErr)
		}
		return err
	}
	return reply(req, fmt.Sprintf("Ping conf delete status: %t", v))
}

func handlePy(ctx context.Context, req Request, deps Deps) error {
	if deps.Runner == nil {
		return reply(req, "Command unavailable in current context.")
	}
	if strings.TrimSpace(req.Args) == "" {
		return reply(req, "Usage: `"+deps.Prefix+"py (code)`")
	}
	if deps.Limiter != nil && !deps.Limiter.Allow(req.SenderID) {
		return reply(req, "Slow down, try again in a few seconds.")
	}

	code := sandbox.ParseRequest(req.Args)
	res := deps.Runner.Run(ctx, code)
	return reply(req, FormatRunResult(code, res))
}

// FormatRunResult renders a run the way it is shown in chat.
func FormatRunResult(code sandbox.Request, res sandbox.Result) string {
	switch res.Outcome {
	case sandbox.OutcomeTimedOut:
		return "Process timed out. :("
	case sandbox.OutcomeSpawnFailed:
		return fmt.Sprintf("Failed to run code: %v", res.Err)
	}

	output := truncateRunes(res.Output, maxReplyOutput)
	if res.Truncated && !strings.HasSuffix(output, truncatedMarker) {
		output += truncatedMarker
	}
	if res.Mode == sandbox.ModeExpression {
		return fmt.Sprintf("```py\n>>> %s\n%s\n```", code.Body, output)
	}
	return fmt.Sprintf("Result:\n```\n%s\n```", output)
}

const truncatedMarker = "\n... (truncated)"

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + truncatedMarker
}

func firstField(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
