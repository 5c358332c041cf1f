// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Command mailer consumes activation mail jobs from RabbitMQ and delivers them over SMTP.
//
// Without SMTP_ADDR every rendered message is written to the log instead.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/taibuivan/keygate/internal/platform/config"
	"github.com/taibuivan/keygate/internal/platform/constants"
	"github.com/taibuivan/keygate/internal/platform/logger"
	"github.com/taibuivan/keygate/internal/platform/rabbitmq"
	"github.com/taibuivan/keygate/internal/users/mail"
)

func main() {
	cfg, err := config.LoadMailer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "startup failure: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Development: cfg.LogDev})
	if err != nil {
		fmt.Fprintf(os.Stderr, "startup failure: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	log = log.With(zap.String("app", "keygate-mailer"))

	renderer, err := mail.NewRenderer()
	if err != nil {
		log.Fatal("startup_failure", zap.String("step", "parse mail templates"), zap.Error(err))
	}

	var sender mail.Sender = mail.NewLogSender(log)
	if cfg.SMTPAddr != "" {
		smtpSender, err := mail.NewSMTPSender(mail.SMTPConfig{
			Addr:     cfg.SMTPAddr,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
		if err != nil {
			log.Fatal("startup_failure", zap.String("step", "configure smtp"), zap.Error(err))
		}
		sender = smtpSender
	} else {
		log.Warn("smtp_disabled", zap.String("reason", "SMTP_ADDR not set"))
	}

	worker := mail.NewWorker(renderer, sender, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	log.Info("mailer_started", zap.String("queue", constants.QueueActivationEmail))

	err = rabbitmq.Consume(ctx, cfg.AMQPURL, constants.QueueActivationEmail, worker.Handle, log)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("mailer_stopped_with_error", zap.Error(err))
		os.Exit(1)
	}

	log.Info("mailer_stopped")
}
