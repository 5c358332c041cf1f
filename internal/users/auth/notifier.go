// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/taibuivan/keygate/internal/platform/constants"
	"github.com/taibuivan/keygate/internal/users/mail"
)

// # Notification Contracts

// Notifier delivers activation codes to users.
//
// Callers treat it as fire-and-forget: a returned error is logged, never propagated.
type Notifier interface {
	SendActivationEmail(context context.Context, to, name, code string) error
}

// Publisher is the slice of [rabbitmq.Publisher] the queue notifier needs.
type Publisher interface {
	PublishJSON(context context.Context, queue string, payload any) error
}

// # Queue Notifier

// QueueNotifier hands activation mails to the mailer worker through a message queue.
type QueueNotifier struct {
	publisher Publisher
	queue     string
}

// NewQueueNotifier constructs a [QueueNotifier] publishing to [constants.QueueActivationEmail].
func NewQueueNotifier(publisher Publisher) *QueueNotifier {
	return &QueueNotifier{publisher: publisher, queue: constants.QueueActivationEmail}
}

// SendActivationEmail publishes an activation job.
func (notifier *QueueNotifier) SendActivationEmail(context context.Context, to, name, code string) error {
	job := mail.Job{
		To:       to,
		Name:     name,
		Code:     code,
		Template: TemplateRegister,
	}

	if err := notifier.publisher.PublishJSON(context, notifier.queue, job); err != nil {
		return fmt.Errorf("auth_notifier_publish_failed: %w", err)
	}
	return nil
}

// # Log Notifier

// LogNotifier writes activation codes to the log. Intended for local runs without a broker.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier constructs a [LogNotifier].
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// SendActivationEmail logs the code at info level.
func (notifier *LogNotifier) SendActivationEmail(_ context.Context, to, name, code string) error {
	notifier.logger.Info("activation_email_logged",
		zap.String("to", to),
		zap.String("name", name),
		zap.String("code", code),
	)
	return nil
}
