package notify

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"
	"go.uber.org/multierr"
)

// Event is the payload published for every notification.
type Event struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Text      string    `json:"text,omitempty"`
	Filename  string    `json:"filename,omitempty"`
	Caption   string    `json:"caption,omitempty"`
	To        string    `json:"to,omitempty"`
	Subject   string    `json:"subject,omitempty"`
	Body      string    `json:"body,omitempty"`
	Content   []byte    `json:"content,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// MessageWriter is the part of kafka.Writer the sink uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConfig configures the kafka transport.
type KafkaConfig struct {
	Brokers  []string
	Topic    string
	Username string
	Password string
	TLS      bool
}

// KafkaSink publishes notifications as JSON events. Delivery consumers
// (mail, messengers) live outside this service.
type KafkaSink struct {
	writer MessageWriter
	now    func() time.Time
}

// NewKafkaWriter builds a synchronous writer for cfg.
func NewKafkaWriter(cfg KafkaConfig) (*kafka.Writer, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return nil, fmt.Errorf("kafka brokers and topic are required")
	}

	transport := &kafka.Transport{DialTimeout: 10 * time.Second}
	if cfg.Username != "" && cfg.Password != "" {
		transport.SASL = plain.Mechanism{Username: cfg.Username, Password: cfg.Password}
	}
	if cfg.TLS || transport.SASL != nil {
		transport.TLS = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	return &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.LeastBytes{},
		Transport:              transport,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}, nil
}

// NewKafkaSink publishes through writer.
func NewKafkaSink(writer MessageWriter) *KafkaSink {
	return &KafkaSink{writer: writer, now: time.Now}
}

func (s *KafkaSink) SendMessage(ctx context.Context, text string) error {
	return s.publish(ctx, Event{Kind: "message", Text: text})
}

func (s *KafkaSink) SendFile(ctx context.Context, content []byte, filename, caption string) error {
	return s.publish(ctx, Event{Kind: "file", Content: content, Filename: filename, Caption: caption})
}

func (s *KafkaSink) SendEmailWithAttachment(ctx context.Context, to, subject, body string, content []byte, filename string) error {
	return s.publish(ctx, Event{Kind: "email", To: to, Subject: subject, Body: body, Content: content, Filename: filename})
}

// Close flushes and closes the writer.
func (s *KafkaSink) Close() error {
	return s.writer.Close()
}

func (s *KafkaSink) publish(ctx context.Context, ev Event) error {
	ev.ID = uuid.NewString()
	ev.CreatedAt = s.now().UTC()

	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", ev.Kind, err)
	}

	if err := s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.Kind),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event-id", Value: []byte(ev.ID)},
		},
	}); err != nil {
		return fmt.Errorf("publish %s event: %w", ev.Kind, err)
	}
	return nil
}

// CloseAll closes every sink that holds resources.
func CloseAll(sinks ...Sink) error {
	var err error
	for _, s := range sinks {
		if c, ok := s.(interface{ Close() error }); ok {
			err = multierr.Append(err, c.Close())
		}
	}
	return err
}
