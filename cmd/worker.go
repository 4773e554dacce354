/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/cinevault/apiserver/config"
	"github.com/cinevault/apiserver/internal/logging"
	"github.com/cinevault/apiserver/internal/mailer"
	"github.com/cinevault/apiserver/internal/mq"
	"github.com/spf13/cobra"
)

// workerCmd represents the mail delivery worker.
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Deliver queued emails",
	Long: `Consumes the mail channel of the configured message queue and delivers
each message over SMTP. Without SMTP settings messages are only logged.

	MQ_BACKEND=rabbitmq cinevault worker
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Queue.Backend == config.BackendNone {
			return errors.New("worker requires MQ_BACKEND to be rabbitmq or pubsub")
		}

		queue, err := mq.Open(cmd.Context(), cfg.Queue)
		if err != nil {
			return err
		}
		defer queue.Close()

		var sender mailer.Sender = mailer.LogMailer{}
		if cfg.SMTP.Enabled() {
			smtp, err := mailer.NewSMTPMailer(cfg.SMTP)
			if err != nil {
				return fmt.Errorf("configure smtp: %w", err)
			}
			sender = smtp
		}

		err = mailer.NewWorker(queue, cfg.Queue.MailChannel, sender).Run(cmd.Context())
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		logging.Info().Msg("mail worker stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
