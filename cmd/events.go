/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/mouldconnect/apiserver/config"
	"github.com/mouldconnect/apiserver/internal/logging"
	"github.com/mouldconnect/apiserver/internal/mq"
)

// eventsCmd represents the events command.
var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect account events on the message queue",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Subscribe to the account event channel and log every event",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logger := logging.New(cfg.Env, cfg.LogLevel)

		broker, err := mq.Open(cmd.Context(), cfg.MQ)
		if err != nil {
			return err
		}
		if broker == nil {
			return errors.New("MQ_BACKEND is not configured")
		}
		defer broker.Close()

		logger.Info("tailing account events", slog.String("backend", cfg.MQ.Backend), slog.String("channel", cfg.MQ.Channel))
		err = broker.Subscribe(cmd.Context(), cfg.MQ.Channel, logEvent(logger))
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("subscribe %s: %w", cfg.MQ.Channel, err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsTailCmd)
}

// logEvent acknowledges undecodable messages after logging them so a bad
// payload is not redelivered forever.
func logEvent(logger *slog.Logger) mq.Handler {
	return func(ctx context.Context, msg mq.Message) error {
		event, err := mq.DecodeEvent(msg)
		if err != nil {
			logger.WarnContext(ctx, "skipping malformed event", slog.String("message_id", msg.ID), slog.Any("err", err))
			return nil
		}
		logger.InfoContext(ctx, "account event",
			slog.String("id", event.ID),
			slog.String("type", event.Type),
			slog.Int("user_id", event.UserID),
			slog.String("user_code", event.UserCode),
			slog.String("email", event.Email),
			slog.Time("at", event.At),
		)
		return nil
	}
}
