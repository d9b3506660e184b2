package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/labstack/gommon/log"
	amqp "github.com/rabbitmq/amqp091-go"
)

// EventLogFile is the archive file written under the consumer's log dir.
const EventLogFile = "session-events.log"

// StartEventConsumer connects to RabbitMQ, declares the session.events queue
// and appends every delivery to <logDir>/session-events.log as one line. It
// reconnects with backoff and returns only when ctx is cancelled. Messages
// that cannot be decoded or written are rejected without requeue.
func StartEventConsumer(ctx context.Context, url, logDir string, logger *log.Logger) {
	if url == "" {
		url = DefaultURL
	}
	if logger == nil {
		logger = log.New("queue")
	}
	backoff := time.Second
	for ctx.Err() == nil {
		conn, err := amqp.Dial(url)
		if err != nil {
			logger.Warnj(log.JSON{"msg": "event consumer: dial failed", "error": err.Error(), "retry_in": backoff.String()})
			if !sleep(ctx, backoff) {
				return
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = consumeLoop(ctx, conn, logDir, logger)
		_ = conn.Close()
		if err != nil && ctx.Err() == nil {
			logger.Warnj(log.JSON{"msg": "event consumer: loop ended, reconnecting", "error": err.Error()})
			sleep(ctx, 2*time.Second)
		}
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, logDir string, logger *log.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		logger.Warnj(log.JSON{"msg": "event consumer: set QoS", "error": err.Error()})
	}
	if _, err := ch.QueueDeclare(SessionEventsQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(SessionEventsQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := handleMessage(logDir, d.Body); err != nil {
				logger.Errorj(log.JSON{"msg": "event consumer: handle message", "message_id": d.MessageId, "error": err.Error()})
				_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func handleMessage(logDir string, body []byte) error {
	var ev SessionEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.EventID == "" || ev.Type == "" {
		return errors.New("event id and type are required")
	}
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", logDir, err)
	}
	f, err := os.OpenFile(filepath.Join(logDir, EventLogFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	payload := ev.RawPayload
	if len(ev.Payload) > 0 {
		payload = string(ev.Payload)
	}
	payload = strings.ReplaceAll(payload, "\n", " ")

	line := fmt.Sprintf("[%s] %s | event_id=%s | actor=%s | payload=%s\n",
		ev.OccurredAt, ev.Type, ev.EventID, ev.ActorRole, payload)
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}
