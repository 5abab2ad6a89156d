// Package notifytest provides a recording notify.Sink for tests.
package notifytest

import (
	"context"
	"sync"
)

// Sent is one recorded notification.
type Sent struct {
	Kind     string
	Text     string
	Filename string
	Caption  string
	To       string
	Subject  string
	Body     string
	Content  []byte
}

// Recorder stores notifications in memory. Err, when set, is returned from
// every call after recording.
type Recorder struct {
	mu   sync.Mutex
	sent []Sent
	Err  error
}

func (r *Recorder) SendMessage(_ context.Context, text string) error {
	return r.record(Sent{Kind: "message", Text: text})
}

func (r *Recorder) SendFile(_ context.Context, content []byte, filename, caption string) error {
	return r.record(Sent{Kind: "file", Content: content, Filename: filename, Caption: caption})
}

func (r *Recorder) SendEmailWithAttachment(_ context.Context, to, subject, body string, content []byte, filename string) error {
	return r.record(Sent{Kind: "email", To: to, Subject: subject, Body: body, Content: content, Filename: filename})
}

// Sent returns a copy of everything recorded so far.
func (r *Recorder) Sent() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Sent(nil), r.sent...)
}

// Kinds returns the kinds of recorded notifications in order.
func (r *Recorder) Kinds() []string {
	var kinds []string
	for _, s := range r.Sent() {
		kinds = append(kinds, s.Kind)
	}
	return kinds
}

func (r *Recorder) record(s Sent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, s)
	return r.Err
}
