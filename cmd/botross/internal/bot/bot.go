package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/bookowl/botross/cmd/botross/internal"
	"github.com/bookowl/botross/pkg/channels"
	"github.com/bookowl/botross/pkg/commands"
	"github.com/bookowl/botross/pkg/config"
	"github.com/bookowl/botross/pkg/logger"
	"github.com/bookowl/botross/pkg/ratelimit"
	"github.com/bookowl/botross/pkg/redaction"
	"github.com/bookowl/botross/pkg/sandbox"
	"github.com/bookowl/botross/pkg/state"
)

const (
	shutdownTimeout = 15 * time.Second
	limiterSweep    = 10 * time.Minute
)

// App is everything the bot needs except the chat connection.
type App struct {
	Config     *config.Config
	Settings   *state.Manager
	Limiter    *ratelimit.Limiter
	Dispatcher *commands.Dispatcher
}

// NewApp loads the persisted settings from store and builds the command
// table. A settings load failure is returned as is; callers treat it as
// fatal.
func NewApp(ctx context.Context, cfg *config.Config, store state.Store) (*App, error) {
	settings, err := state.NewManager(ctx, store)
	if err != nil {
		return nil, err
	}

	runner := sandbox.NewRunner(sandbox.Options{
		Command: cfg.Python.Command,
		Timeout: cfg.Python.Timeout,
		WorkDir: cfg.Python.WorkDir,
	})
	limiter := ratelimit.NewLimiter(ratelimit.Config{
		Burst:    cfg.Python.RateBurst,
		Interval: cfg.Python.RateInterval,
	})
	counter := commands.NewCounter()

	reg, err := commands.NewRegistry(commands.BuiltinDefinitions(commands.Deps{
		Settings: settings,
		Runner:   runner,
		Limiter:  limiter,
		Counter:  counter,
		OwnerID:  cfg.Discord.OwnerID,
		Prefix:   cfg.Discord.Prefix,
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to build command registry: %w", err)
	}

	return &App{
		Config:     cfg,
		Settings:   settings,
		Limiter:    limiter,
		Dispatcher: commands.NewDispatcher(reg, counter, cfg.Discord.Prefix),
	}, nil
}

// AttachDeleter routes non-command messages through the pin notice
// cleaner, using deleter to remove them.
func (a *App) AttachDeleter(deleter commands.MessageDeleter) {
	cleaner := commands.NewPinCleaner(a.Settings, deleter)
	a.Dispatcher.OnNonCommand(func(ctx context.Context, req commands.Request) {
		cleaner.Handle(ctx, req)
	})
}

// Run reads the environment and serves until ctx is cancelled.
func Run(ctx context.Context) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := setupLogging(cfg); err != nil {
		return err
	}

	logger.InfoCF("bot", "Starting BotRoss", internal.ReadBuildInfo().Fields())

	store, err := state.NewSQLStore(cfg.Store.DatabaseURL)
	if err != nil {
		return err
	}
	return Serve(ctx, cfg, store)
}

func setupLogging(cfg *config.Config) error {
	redaction.AddSecret(cfg.Discord.Token)
	redaction.AddSecret(cfg.Store.DatabaseURL)

	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logger.SetLevel(level)

	if cfg.Log.File != "" {
		if err := logger.EnableFileLogging(cfg.Log.File); err != nil {
			return fmt.Errorf("failed to enable file logging: %w", err)
		}
	}
	return nil
}

// Serve connects to Discord and handles messages until ctx is cancelled.
func Serve(ctx context.Context, cfg *config.Config, store state.Store) error {
	app, err := NewApp(ctx, cfg, store)
	if err != nil {
		return err
	}

	discord, err := channels.NewDiscordChannel(cfg.Discord, app.Dispatcher)
	if err != nil {
		return err
	}
	app.AttachDeleter(discord)

	if err := discord.Start(ctx); err != nil {
		return err
	}
	logger.InfoCF("bot", "Bot is now running", map[string]any{
		"prefix": cfg.Discord.Prefix,
	})

	go sweepLimiter(ctx, app.Limiter, limiterSweep)

	<-ctx.Done()
	logger.InfoC("bot", "Shutting down")

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := discord.Stop(stopCtx); err != nil {
		logger.ErrorCF("bot", "Error during shutdown", map[string]any{
			"error": err.Error(),
		})
	}
	logger.DisableFileLogging()
	return nil
}

// sweepLimiter drops idle rate limit buckets every interval.
func sweepLimiter(ctx context.Context, l *ratelimit.Limiter, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Cleanup(interval)
		}
	}
}
