// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package mail renders and delivers transactional email for keygate.

The API never talks to SMTP directly. It publishes a [Job] to the activation
queue; cmd/mailer consumes the queue and hands each body to [Worker.Handle].

Flow:

  - Decode: the queue body is a JSON [Job].
  - Render: the job's template name selects a subject and a text body.
  - Deliver: a [Sender] ships the rendered [Message].
*/
package mail

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	netmail "net/mail"
	"text/template"

	"go.uber.org/zap"
)

// # Wire Types

// Job is the queue payload describing one email to send.
type Job struct {
	To       string `json:"to"`
	Name     string `json:"name"`
	Code     string `json:"code"`
	Template string `json:"template"`
}

// Message is a rendered email ready for delivery.
type Message struct {
	To      string
	Subject string
	Body    string
}

// ErrUnknownTemplate is returned when a job names a template that does not exist.
var ErrUnknownTemplate = errors.New("mail: unknown template")

// # Rendering

//go:embed templates/*.tmpl
var templateFS embed.FS

// subjects maps template names to their subject line.
var subjects = map[string]string{
	"register": "Activate your account",
}

// Renderer turns jobs into messages using the embedded templates.
type Renderer struct {
	templates *template.Template
}

// NewRenderer parses the embedded templates.
func NewRenderer() (*Renderer, error) {
	templates, err := template.ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("mail: parse templates: %w", err)
	}
	return &Renderer{templates: templates}, nil
}

/*
Render produces the message for job.

Parameters:
  - job: Job

Returns:
  - Message: Subject and body
  - error: ErrUnknownTemplate or execution failures
*/
func (renderer *Renderer) Render(job Job) (Message, error) {
	subject, ok := subjects[job.Template]
	tmpl := renderer.templates.Lookup(job.Template + ".tmpl")
	if !ok || tmpl == nil {
		return Message{}, fmt.Errorf("%w: %q", ErrUnknownTemplate, job.Template)
	}

	var body bytes.Buffer
	if err := tmpl.Execute(&body, job); err != nil {
		return Message{}, fmt.Errorf("mail: render %s: %w", job.Template, err)
	}

	return Message{To: job.To, Subject: subject, Body: body.String()}, nil
}

// # Worker

// Sender delivers a rendered message.
type Sender interface {
	Send(context context.Context, message Message) error
}

// Worker handles activation mail jobs pulled from the queue.
type Worker struct {
	renderer *Renderer
	sender   Sender
	logger   *zap.Logger
}

// NewWorker constructs a [Worker].
func NewWorker(renderer *Renderer, sender Sender, logger *zap.Logger) *Worker {
	return &Worker{renderer: renderer, sender: sender, logger: logger}
}

/*
Handle decodes, renders and sends one queue message.

Description: Any returned error makes the consumer drop the message without
requeue; a poison message is never retried forever.

Parameters:
  - context: context.Context
  - body: []byte (JSON Job)

Returns:
  - error: Decode, render or delivery failures
*/
func (worker *Worker) Handle(context context.Context, body []byte) error {
	var job Job
	if err := json.Unmarshal(body, &job); err != nil {
		return fmt.Errorf("mail_worker_decode_failed: %w", err)
	}

	if address, err := netmail.ParseAddress(job.To); err != nil || address.Address != job.To {
		return fmt.Errorf("mail_worker_invalid_recipient: %q", job.To)
	}

	message, err := worker.renderer.Render(job)
	if err != nil {
		return fmt.Errorf("mail_worker_render_failed: %w", err)
	}

	if err := worker.sender.Send(context, message); err != nil {
		return fmt.Errorf("mail_worker_send_failed: %w", err)
	}

	worker.logger.Info("mail_sent",
		zap.String("to", message.To),
		zap.String("template", job.Template),
	)
	return nil
}
