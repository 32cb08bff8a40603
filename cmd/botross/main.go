// BotRoss - a small Discord utility bot
// License: MIT
//
// Copyright (c) 2018 Matthew Stanley

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bookowl/botross/cmd/botross/internal/bot"
	"github.com/bookowl/botross/pkg/logger"
)

func NewBotrossCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "botross",
		Short: "BotRoss Discord bot",
		Long:  "BotRoss connects to Discord with DISCORD_TOKEN and keeps its settings in DATABASE_URL.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return bot.Run(ctx)
		},
		SilenceUsage:      true,
		SilenceErrors:     true,
		CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
	}

	return cmd
}

func main() {
	cmd := NewBotrossCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		logger.ErrorCF("main", "Fatal error", map[string]any{
			"error": err.Error(),
		})
		os.Exit(1)
	}
}
