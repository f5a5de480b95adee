package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"satellite-service/internal/config"
	"satellite-service/internal/models"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitMQConnection holds the AMQP connection and channel used by the
// publisher.
type RabbitMQConnection struct {
	Conn    *amqp.Connection
	Channel *amqp.Channel
}

func NewRabbitMQConnection(cfg config.RabbitMQConfig) (*RabbitMQConnection, error) {
	url := fmt.Sprintf("amqp://%s:%s@%s:%s/", cfg.Username, cfg.Password, cfg.Host, cfg.Port)
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open RabbitMQ channel: %w", err)
	}

	return &RabbitMQConnection{Conn: conn, Channel: channel}, nil
}

func (c *RabbitMQConnection) Close() {
	if c.Channel != nil {
		c.Channel.Close()
	}
	if c.Conn != nil {
		c.Conn.Close()
	}
}

// AnomalyPublisher publishes anomaly flags to the vegetation anomaly queue.
type AnomalyPublisher struct {
	conn              *RabbitMQConnection
	messagesPublished int64
	messagesFailed    int64
	lastPublishTime   time.Time
}

func NewAnomalyPublisher(conn *RabbitMQConnection) *AnomalyPublisher {
	return &AnomalyPublisher{
		conn:            conn,
		lastPublishTime: time.Now(),
	}
}

// PublishAnomaly pushes one watch/alert flag to the anomaly queue.
func (p *AnomalyPublisher) PublishAnomaly(ctx context.Context, flag models.AnomalyFlag) error {
	_, err := p.conn.Channel.QueueDeclare(
		AnomalyQueue, // queue name
		true,         // durable
		false,        // delete when unused
		false,        // exclusive
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		p.messagesFailed++
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	evt := AnomalyEvent{
		ID:             uuid.NewString(),
		FieldID:        flag.FieldID.String(),
		IndexType:      flag.IndexType,
		Date:           flag.Date.Format("2006-01-02"),
		DeviationScore: flag.DeviationScore,
		Severity:       flag.Severity,
		DetectedAt:     time.Now(),
	}

	body, err := json.Marshal(evt)
	if err != nil {
		p.messagesFailed++
		return fmt.Errorf("failed to marshal anomaly event: %w", err)
	}

	err = p.conn.Channel.PublishWithContext(
		ctx,
		"",           // exchange
		AnomalyQueue, // routing key (queue name)
		false,        // mandatory
		false,        // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		p.messagesFailed++
		return fmt.Errorf("failed to publish anomaly event: %w", err)
	}

	p.messagesPublished++
	p.lastPublishTime = time.Now()

	slog.Info("Anomaly event published",
		"queue", AnomalyQueue,
		"field_id", evt.FieldID,
		"severity", evt.Severity)

	return nil
}

// GetMetrics returns publisher metrics.
func (p *AnomalyPublisher) GetMetrics() map[string]any {
	return map[string]any{
		"messages_published": p.messagesPublished,
		"messages_failed":    p.messagesFailed,
		"last_publish_time":  p.lastPublishTime,
		"queue":              AnomalyQueue,
	}
}
