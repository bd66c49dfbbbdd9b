package upload

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/charmbracelet/log"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/synapsedaili/youtube-automation/logging"
	"github.com/synapsedaili/youtube-automation/types"
)

// AMQPNotifier announces each completed upload on a durable queue.
// A connection is opened per notification; runs publish at most twice.
type AMQPNotifier struct {
	url   string
	queue string
	log   *log.Logger
}

func NewAMQPNotifier(rawURL, queue string, logger *log.Logger) *AMQPNotifier {
	if queue == "" {
		queue = "uploads"
	}
	return &AMQPNotifier{url: rawURL, queue: queue, log: logging.OrDefault(logger, "notify")}
}

// Notify publishes rec as JSON.
func (n *AMQPNotifier) Notify(ctx context.Context, rec types.UploadRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	n.log.Debug("queue connect", "url", redactURL(n.url))
	conn, err := amqp.Dial(n.url)
	if err != nil {
		return fmt.Errorf("amqp dial %s: %w", redactURL(n.url), err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("amqp channel: %w", err)
	}
	defer ch.Close()

	if _, err := ch.QueueDeclare(n.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", n.queue, err)
	}

	err = ch.PublishWithContext(ctx, "", n.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         payload,
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", n.queue, err)
	}
	n.log.Info("queue publish", "queue", n.queue, "video", rec.ExternalVideoID)
	return nil
}

func redactURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	if parsed.User == nil {
		return parsed.String()
	}
	username := parsed.User.Username()
	if _, hasPassword := parsed.User.Password(); hasPassword {
		parsed.User = url.UserPassword(username, "REDACTED")
	} else {
		parsed.User = url.User(username)
	}
	return parsed.String()
}
