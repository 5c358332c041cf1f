// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package rabbitmq provides the message broker plumbing used for background work.

Core Responsibilities:

  - Publishing: JSON payloads to durable queues with persistent delivery.
  - Consuming: A reconnecting consume loop with exponential backoff.

Queues are declared idempotently on both sides, so neither the API nor the worker
depends on the other having started first.
*/
package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Opinionated defaults for broker connectivity.
const (
	initialBackoff = 1 * time.Second
	maxBackoff     = 30 * time.Second
	defaultQoS     = 20
)

// # Publisher

// Publisher sends JSON messages over a single shared channel.
//
// AMQP channels must not be used concurrently, so every publish holds the mutex.
type Publisher struct {
	url      string
	logger   *zap.Logger
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	declared map[string]bool
}

// NewPublisher dials the broker and opens the publishing channel.
func NewPublisher(url string, logger *zap.Logger) (*Publisher, error) {
	publisher := &Publisher{url: url, logger: logger, declared: make(map[string]bool)}
	if err := publisher.connect(); err != nil {
		return nil, err
	}

	logger.Info("rabbitmq_publisher_connected")
	return publisher, nil
}

// # Link State

type linkState int

const (
	linkHealthy linkState = iota
	linkChannelDown
	linkConnectionDown
)

// closer is the liveness surface shared by [amqp.Connection] and [amqp.Channel].
type closer interface {
	IsClosed() bool
}

// inspect classifies the publishing link. A channel exception closes only the
// channel, so the connection can be reused to open a new one.
func inspect(conn, channel closer) linkState {
	switch {
	case conn == nil || conn.IsClosed():
		return linkConnectionDown
	case channel == nil || channel.IsClosed():
		return linkChannelDown
	default:
		return linkHealthy
	}
}

func (publisher *Publisher) state() linkState {
	var conn, channel closer
	if publisher.conn != nil {
		conn = publisher.conn
	}
	if publisher.channel != nil {
		channel = publisher.channel
	}
	return inspect(conn, channel)
}

// repair restores whatever part of the link is down. Queue declarations are
// per channel, so both paths forget them.
func (publisher *Publisher) repair() error {
	switch publisher.state() {
	case linkConnectionDown:
		publisher.logger.Warn("rabbitmq_publisher_reconnecting")
		return publisher.connect()

	case linkChannelDown:
		publisher.logger.Warn("rabbitmq_publisher_channel_reopening")
		channel, err := publisher.conn.Channel()
		if err != nil {
			return fmt.Errorf("rabbitmq: channel open failed: %w", err)
		}
		publisher.channel = channel
		publisher.declared = make(map[string]bool)
	}
	return nil
}

func (publisher *Publisher) connect() error {
	conn, err := amqp.Dial(publisher.url)
	if err != nil {
		return fmt.Errorf("rabbitmq: dial failed: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("rabbitmq: channel open failed: %w", err)
	}

	publisher.conn = conn
	publisher.channel = channel
	publisher.declared = make(map[string]bool)
	return nil
}

// PublishJSON marshals payload and publishes it to queue through the default exchange.
//
// A dropped connection is re-dialed, and a channel closed by the broker is
// reopened, once before giving up.
func (publisher *Publisher) PublishJSON(ctx context.Context, queue string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("rabbitmq: marshal failed: %w", err)
	}

	publisher.mu.Lock()
	defer publisher.mu.Unlock()

	if err := publisher.repair(); err != nil {
		return err
	}

	if !publisher.declared[queue] {
		if _, err := publisher.channel.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			return fmt.Errorf("rabbitmq: queue declare failed: %w", err)
		}
		publisher.declared[queue] = true
	}

	message := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	if err := publisher.channel.PublishWithContext(ctx, "", queue, false, false, message); err != nil {
		return fmt.Errorf("rabbitmq: publish failed: %w", err)
	}

	return nil
}

// Ping reports whether both the broker connection and the publishing channel are open.
func (publisher *Publisher) Ping() error {
	publisher.mu.Lock()
	defer publisher.mu.Unlock()

	switch publisher.state() {
	case linkConnectionDown:
		return errors.New("rabbitmq: connection closed")
	case linkChannelDown:
		return errors.New("rabbitmq: channel closed")
	}
	return nil
}

// Close releases the channel and the connection.
func (publisher *Publisher) Close() error {
	publisher.mu.Lock()
	defer publisher.mu.Unlock()

	if publisher.channel != nil {
		_ = publisher.channel.Close()
	}
	if publisher.conn != nil && !publisher.conn.IsClosed() {
		return publisher.conn.Close()
	}
	return nil
}

// # Consumer

// Handler processes one message body. A returned error rejects the message without requeue.
type Handler func(ctx context.Context, body []byte) error

// Consume declares queue and hands every delivery to handler until ctx is cancelled.
//
// Broker failures are retried with exponential backoff; Consume only returns
// once ctx is done.
func Consume(ctx context.Context, url, queue string, handler Handler, logger *zap.Logger) error {
	backoff := initialBackoff

	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			logger.Warn("rabbitmq_dial_failed", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}
		backoff = initialBackoff

		err = consumeLoop(ctx, conn, queue, handler, logger)
		_ = conn.Close()

		if ctx.Err() != nil {
			return ctx.Err()
		}

		logger.Warn("rabbitmq_consume_loop_ended", zap.Error(err))
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, queue string, handler Handler, logger *zap.Logger) error {
	channel, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = channel.Close() }()

	if err := channel.Qos(defaultQoS, 0, false); err != nil {
		logger.Warn("rabbitmq_qos_failed", zap.Error(err))
	}

	if _, err := channel.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	deliveries, err := channel.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	logger.Info("rabbitmq_consumer_started", zap.String("queue", queue))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case delivery, ok := <-deliveries:
			if !ok {
				return errors.New("deliveries channel closed")
			}

			if err := handler(ctx, delivery.Body); err != nil {
				logger.Error("rabbitmq_message_rejected", zap.String("queue", queue), zap.Error(err))
				_ = delivery.Nack(false, false)
				continue
			}
			_ = delivery.Ack(false)
		}
	}
}

// sleep waits for d or until ctx is done. It reports whether the full delay elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
