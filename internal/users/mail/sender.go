// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package mail

import (
	"context"
	"fmt"
	"net"
	"strconv"

	gomail "github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

// # SMTP Delivery

// SMTPConfig describes the relay used for outbound mail.
type SMTPConfig struct {
	Addr     string // host:port
	Username string
	Password string
	From     string
}

// SMTPSender delivers messages through an SMTP relay.
type SMTPSender struct {
	from string
	send func(context context.Context, messages ...*gomail.Msg) error
}

// NewSMTPSender constructs an [SMTPSender]. PLAIN auth is used when a username
// is set; STARTTLS is used whenever the relay offers it.
func NewSMTPSender(config SMTPConfig) (*SMTPSender, error) {
	host, rawPort, err := net.SplitHostPort(config.Addr)
	if err != nil {
		return nil, fmt.Errorf("smtp: invalid addr %q: %w", config.Addr, err)
	}
	port, err := strconv.Atoi(rawPort)
	if err != nil {
		return nil, fmt.Errorf("smtp: invalid port %q: %w", rawPort, err)
	}

	options := []gomail.Option{
		gomail.WithPort(port),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
	}
	if config.Username != "" {
		options = append(options,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(config.Username),
			gomail.WithPassword(config.Password),
		)
	}

	client, err := gomail.NewClient(host, options...)
	if err != nil {
		return nil, fmt.Errorf("smtp: client setup failed: %w", err)
	}

	return &SMTPSender{from: config.From, send: client.DialAndSendWithContext}, nil
}

// Send delivers message, aborting the SMTP exchange when context is done.
func (sender *SMTPSender) Send(context context.Context, message Message) error {
	msg, err := buildMessage(sender.from, message)
	if err != nil {
		return err
	}

	if err := sender.send(context, msg); err != nil {
		return fmt.Errorf("smtp: send to %s: %w", message.To, err)
	}
	return nil
}

// buildMessage assembles a plain-text message with Date and Message-ID set.
// Header values are encoded by go-mail, so non-ASCII subjects survive transit.
func buildMessage(from string, message Message) (*gomail.Msg, error) {
	msg := gomail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("smtp: invalid sender %q: %w", from, err)
	}
	if err := msg.To(message.To); err != nil {
		return nil, fmt.Errorf("smtp: invalid recipient %q: %w", message.To, err)
	}

	msg.Subject(message.Subject)
	msg.SetDate()
	msg.SetMessageID()
	msg.SetBodyString(gomail.TypeTextPlain, message.Body)
	return msg, nil
}

// # Log Delivery

// LogSender writes messages to the log instead of sending them.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender constructs a [LogSender].
func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Send logs message at info level.
func (sender *LogSender) Send(_ context.Context, message Message) error {
	sender.logger.Info("mail_delivery_logged",
		zap.String("to", message.To),
		zap.String("subject", message.Subject),
		zap.String("body", message.Body),
	)
	return nil
}
