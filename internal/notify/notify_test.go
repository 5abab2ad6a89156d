package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/partstrade/trade-service/internal/notify/notifytest"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestMultiSinkJoinsErrors(t *testing.T) {
	ok := &notifytest.Recorder{}
	failing := &notifytest.Recorder{Err: errors.New("smtp down")}
	alsoFailing := &notifytest.Recorder{Err: errors.New("bot blocked")}

	err := MultiSink{ok, failing, alsoFailing}.SendMessage(context.Background(), "hi")
	require.Error(t, err)
	assert.ErrorContains(t, err, "smtp down")
	assert.ErrorContains(t, err, "bot blocked")

	// every sink is attempted
	assert.Len(t, ok.Sent(), 1)
	assert.Len(t, failing.Sent(), 1)
	assert.Len(t, alsoFailing.Sent(), 1)
}

func TestNotifierIsFireAndForget(t *testing.T) {
	rec := &notifytest.Recorder{Err: errors.New("unreachable")}
	n := NewNotifier(rec, time.Second, zerolog.Nop())

	n.Message("price changes")
	n.File([]byte("x"), "report.xlsx", "rejects")
	n.Email("ops@example.com", "subject", "body", []byte("y"), "list.xlsx")
	n.Wait()

	assert.ElementsMatch(t, []string{"message", "file", "email"}, rec.Kinds())
}

func TestNilNotifierIsSafe(t *testing.T) {
	var n *Notifier
	assert.NotPanics(t, func() { n.Message("x") })
}

func TestKafkaSinkPublishesEvents(t *testing.T) {
	w := &fakeWriter{}
	sink := NewKafkaSink(w)
	sink.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	require.NoError(t, sink.SendEmailWithAttachment(context.Background(), "c@example.com", "Prices", "see attached", []byte("xlsx"), "p.xlsx"))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "email", string(msg.Key))

	var ev Event
	require.NoError(t, json.Unmarshal(msg.Value, &ev))
	assert.Equal(t, "email", ev.Kind)
	assert.Equal(t, "c@example.com", ev.To)
	assert.Equal(t, []byte("xlsx"), ev.Content)
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, ev.ID, string(msg.Headers[0].Value))

	require.NoError(t, CloseAll(sink, &notifytest.Recorder{}))
	assert.True(t, w.closed)
}

func TestKafkaSinkWrapsWriteErrors(t *testing.T) {
	sink := NewKafkaSink(&fakeWriter{err: errors.New("leader not available")})
	err := sink.SendMessage(context.Background(), "x")
	assert.ErrorContains(t, err, "publish message event")
}

func TestNewKafkaWriterRequiresBrokers(t *testing.T) {
	_, err := NewKafkaWriter(KafkaConfig{Topic: "t"})
	assert.Error(t, err)

	w, err := NewKafkaWriter(KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "notifications"})
	require.NoError(t, err)
	assert.Equal(t, "notifications", w.Topic)
}
