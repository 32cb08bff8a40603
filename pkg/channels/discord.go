package channels

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/bookowl/botross/pkg/commands"
	"github.com/bookowl/botross/pkg/config"
	"github.com/bookowl/botross/pkg/logger"
)

const (
	sendTimeout   = 10 * time.Second
	deleteTimeout = 10 * time.Second
	// Leave headroom under discordMessageLimit so fence reopening never
	// pushes a chunk over.
	chunkLimit = 1500
)

// Dispatcher is the part of commands.Dispatcher the channel drives.
type Dispatcher interface {
	Dispatch(ctx context.Context, req commands.Request) commands.Result
	SetBotID(id string)
}

type permissionFunc func(s *discordgo.Session, m *discordgo.Message) (int64, error)

// DiscordChannel bridges a discordgo session to the command dispatcher and
// implements commands.Bridge for outbound traffic.
type DiscordChannel struct {
	session    *discordgo.Session
	config     config.DiscordConfig
	dispatcher Dispatcher
	ctx        context.Context
	running    atomic.Bool
	inflight   sync.WaitGroup

	permissions permissionFunc
}

var _ commands.Bridge = (*DiscordChannel)(nil)

func NewDiscordChannel(cfg config.DiscordConfig, d Dispatcher) (*DiscordChannel, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	if err := applyDiscordProxy(session, cfg.Proxy); err != nil {
		return nil, err
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	return &DiscordChannel{
		session:     session,
		config:      cfg,
		dispatcher:  d,
		ctx:         context.Background(),
		permissions: messagePermissions,
	}, nil
}

// messagePermissions computes the author's permissions from the member and
// roles carried by the event plus the cached guild. Only when the event has
// no member data does it fall back to a lookup that may hit the REST API.
func messagePermissions(s *discordgo.Session, m *discordgo.Message) (int64, error) {
	perms, err := s.State.MessagePermissions(m)
	if errors.Is(err, discordgo.ErrMessageIncompletePermissions) {
		return s.UserChannelPermissions(m.Author.ID, m.ChannelID)
	}
	return perms, err
}

// applyDiscordProxy routes both REST and gateway traffic through proxyURL.
// An empty proxyURL falls back to the standard proxy environment variables.
func applyDiscordProxy(session *discordgo.Session, proxyURL string) error {
	proxy := http.ProxyFromEnvironment
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return fmt.Errorf("invalid discord proxy URL %q: %w", proxyURL, err)
		}
		if u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid discord proxy URL %q: scheme and host are required", proxyURL)
		}
		proxy = http.ProxyURL(u)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = proxy
	if session.Client == nil {
		session.Client = &http.Client{Timeout: 20 * time.Second}
	}
	session.Client.Transport = transport

	if session.Dialer != nil {
		// Copy so the package-level default dialer is left alone.
		dialer := *session.Dialer
		dialer.Proxy = proxy
		session.Dialer = &dialer
	}
	return nil
}

func (c *DiscordChannel) getContext() context.Context {
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}

func (c *DiscordChannel) IsRunning() bool {
	return c.running.Load()
}

func (c *DiscordChannel) Start(ctx context.Context) error {
	logger.InfoC("discord", "Starting Discord bot")

	c.ctx = ctx
	c.session.AddHandler(c.handleReady)
	c.session.AddHandler(c.handleResumed)
	c.session.AddHandler(c.handleMessage)

	if err := c.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}
	c.running.Store(true)
	return nil
}

// Stop closes the gateway and waits for in-flight commands, bounded by ctx.
func (c *DiscordChannel) Stop(ctx context.Context) error {
	logger.InfoC("discord", "Stopping Discord bot")
	c.running.Store(false)

	closeErr := c.session.Close()

	done := make(chan struct{})
	go func() {
		c.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		logger.WarnC("discord", "Gave up waiting for in-flight commands")
	}

	if closeErr != nil {
		return fmt.Errorf("failed to close discord session: %w", closeErr)
	}
	return nil
}

func (c *DiscordChannel) SendText(ctx context.Context, channelID, text string) error {
	if channelID == "" {
		return errors.New("channel ID is empty")
	}
	if text == "" {
		return nil
	}

	for _, chunk := range splitMessage(text, chunkLimit) {
		if err := c.sendChunk(ctx, channelID, chunk); err != nil {
			return err
		}
	}
	return nil
}

func (c *DiscordChannel) sendChunk(ctx context.Context, channelID, content string) error {
	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	if _, err := c.session.ChannelMessageSend(channelID, content, discordgo.WithContext(sendCtx)); err != nil {
		if sendCtx.Err() != nil {
			return fmt.Errorf("send message timeout: %w", sendCtx.Err())
		}
		return fmt.Errorf("failed to send discord message: %w", err)
	}
	return nil
}

func (c *DiscordChannel) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	delCtx, cancel := context.WithTimeout(ctx, deleteTimeout)
	defer cancel()

	if err := c.session.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(delCtx)); err != nil {
		return fmt.Errorf("failed to delete discord message: %w", err)
	}
	return nil
}

func (c *DiscordChannel) SetPresence(status string) error {
	if err := c.session.UpdateGameStatus(0, status); err != nil {
		return fmt.Errorf("failed to update presence: %w", err)
	}
	return nil
}

func (c *DiscordChannel) handleReady(s *discordgo.Session, r *discordgo.Ready) {
	if r == nil || r.User == nil {
		return
	}
	logger.InfoCF("discord", "Discord bot connected", map[string]any{
		"username": r.User.Username,
		"user_id":  r.User.ID,
		"guilds":   len(r.Guilds),
	})

	c.dispatcher.SetBotID(r.User.ID)
	if err := c.SetPresence("Prefix: " + c.config.Prefix); err != nil {
		logger.WarnCF("discord", "Failed to set presence", map[string]any{
			"error": err.Error(),
		})
	}
}

func (c *DiscordChannel) handleResumed(_ *discordgo.Session, _ *discordgo.Resumed) {
	logger.DebugC("discord", "Gateway session resumed")
}

func (c *DiscordChannel) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m == nil || m.Message == nil || m.Author == nil {
		return
	}
	// Other bots, including this one, never drive commands.
	if m.Author.Bot {
		return
	}
	if s.State != nil && s.State.User != nil && m.Author.ID == s.State.User.ID {
		return
	}

	req := c.buildRequest(s, m.Message)

	ctx := c.getContext()
	req.Reply = func(text string) error {
		return c.SendText(ctx, m.ChannelID, text)
	}

	logger.DebugCF("discord", "Received message", map[string]any{
		"sender_name": req.SenderName,
		"sender_id":   req.SenderID,
		"channel_id":  req.ChannelID,
		"preview":     truncate(req.Text, 50),
	})

	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		c.dispatcher.Dispatch(ctx, req)
	}()
}

func (c *DiscordChannel) buildRequest(s *discordgo.Session, m *discordgo.Message) commands.Request {
	senderName := m.Author.Username
	if m.Author.Discriminator != "" && m.Author.Discriminator != "0" {
		senderName += "#" + m.Author.Discriminator
	}

	req := commands.Request{
		ChannelID:  m.ChannelID,
		MessageID:  m.ID,
		GuildID:    m.GuildID,
		SenderID:   m.Author.ID,
		SenderName: senderName,
		Text:       m.Content,
	}
	if m.Type == discordgo.MessageTypeChannelPinnedMessage {
		req.Kind = commands.KindPinsAdd
	}

	// Direct messages carry no guild permissions.
	if m.GuildID != "" && c.permissions != nil {
		perms, err := c.permissions(s, m)
		if err != nil {
			logger.WarnCF("discord", "Failed to resolve permissions", map[string]any{
				"user_id":    m.Author.ID,
				"channel_id": m.ChannelID,
				"error":      err.Error(),
			})
		} else {
			req.Permissions = perms
			req.PermissionsKnown = true
		}
	}
	return req
}

func truncate(s string, maxLen int) string {
	runes := []rune(strings.TrimSpace(s))
	if len(runes) <= maxLen {
		return string(runes)
	}
	return string(runes[:maxLen]) + "..."
}
