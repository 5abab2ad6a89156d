// Package notify delivers operator notifications. Delivery is fire-and-forget:
// a failed notification is logged and never undoes the work that caused it.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/partstrade/trade-service/internal/metrics"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"
)

// Sink delivers notifications to one channel.
type Sink interface {
	SendMessage(ctx context.Context, text string) error
	SendFile(ctx context.Context, content []byte, filename, caption string) error
	SendEmailWithAttachment(ctx context.Context, to, subject, body string, content []byte, filename string) error
}

// MultiSink fans every notification out to all sinks and joins their errors.
type MultiSink []Sink

func (m MultiSink) SendMessage(ctx context.Context, text string) error {
	var err error
	for _, s := range m {
		err = multierr.Append(err, s.SendMessage(ctx, text))
	}
	return err
}

func (m MultiSink) SendFile(ctx context.Context, content []byte, filename, caption string) error {
	var err error
	for _, s := range m {
		err = multierr.Append(err, s.SendFile(ctx, content, filename, caption))
	}
	return err
}

func (m MultiSink) SendEmailWithAttachment(ctx context.Context, to, subject, body string, content []byte, filename string) error {
	var err error
	for _, s := range m {
		err = multierr.Append(err, s.SendEmailWithAttachment(ctx, to, subject, body, content, filename))
	}
	return err
}

// LogSink writes notifications to the log. It is the sink of last resort
// when no transport is configured.
type LogSink struct {
	log zerolog.Logger
}

// NewLogSink creates a log-backed sink.
func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{log: logger.With().Str("component", "notify").Logger()}
}

func (s *LogSink) SendMessage(_ context.Context, text string) error {
	s.log.Info().Str("text", text).Msg("Notification")
	return nil
}

func (s *LogSink) SendFile(_ context.Context, content []byte, filename, caption string) error {
	s.log.Info().Str("filename", filename).Int("bytes", len(content)).Str("caption", caption).Msg("Notification file")
	return nil
}

func (s *LogSink) SendEmailWithAttachment(_ context.Context, to, subject, _ string, content []byte, filename string) error {
	s.log.Info().Str("to", to).Str("subject", subject).Str("filename", filename).Int("bytes", len(content)).Msg("Notification email")
	return nil
}

// Notifier sends through a Sink in the background.
type Notifier struct {
	sink    Sink
	log     zerolog.Logger
	timeout time.Duration
	metrics *metrics.Recorder
	wg      sync.WaitGroup
}

// NewNotifier wraps sink. timeout bounds each delivery; zero means 30s.
func NewNotifier(sink Sink, timeout time.Duration, logger zerolog.Logger) *Notifier {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Notifier{
		sink:    sink,
		log:     logger.With().Str("component", "notifier").Logger(),
		timeout: timeout,
		metrics: metrics.NewRecorder(),
	}
}

// Message queues a text notification.
func (n *Notifier) Message(text string) {
	n.dispatch("message", func(ctx context.Context) error {
		return n.sink.SendMessage(ctx, text)
	})
}

// File queues a file notification.
func (n *Notifier) File(content []byte, filename, caption string) {
	n.dispatch("file", func(ctx context.Context) error {
		return n.sink.SendFile(ctx, content, filename, caption)
	})
}

// Email queues an e-mail with one attachment.
func (n *Notifier) Email(to, subject, body string, content []byte, filename string) {
	n.dispatch("email", func(ctx context.Context) error {
		return n.sink.SendEmailWithAttachment(ctx, to, subject, body, content, filename)
	})
}

// Wait blocks until queued deliveries finish.
func (n *Notifier) Wait() {
	if n == nil {
		return
	}
	n.wg.Wait()
}

func (n *Notifier) dispatch(kind string, send func(ctx context.Context) error) {
	if n == nil || n.sink == nil {
		return
	}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		// detached from the request: the caller has already committed
		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()

		if err := send(ctx); err != nil {
			n.metrics.RecordNotificationFailure(kind)
			n.log.Warn().Err(err).Str("kind", kind).Msg("Notification delivery failed")
		}
	}()
}
