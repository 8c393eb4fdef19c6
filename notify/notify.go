// Package notify delivers one-time codes to users.
//
// Delivery is fire-and-forget from the caller's point of view: a failed
// delivery is logged and counted by the Engine, and the issued code stays
// valid.
package notify

import (
	"context"
	"sync"

	"github.com/juju/loggo"
)

var logger = loggo.GetLogger("goaccess.notify")

// Notifier sends code to destination. purpose names the ceremony the code
// belongs to ("EMAIL_VERIFICATION" or "TWO_FACTOR").
type Notifier interface {
	Deliver(ctx context.Context, destination, code, purpose string) error
}

// Func adapts a function to [Notifier].
type Func func(ctx context.Context, destination, code, purpose string) error

// Deliver calls f.
func (f Func) Deliver(ctx context.Context, destination, code, purpose string) error {
	return f(ctx, destination, code, purpose)
}

// LogNotifier writes codes to the goaccess.notify logger. It is meant for
// development; production deployments plug in a mail or SMS sender.
type LogNotifier struct{}

// Deliver logs the delivery at INFO.
func (LogNotifier) Deliver(_ context.Context, destination, code, purpose string) error {
	logger.Infof("deliver %s code %s to %s", purpose, code, destination)
	return nil
}

// Message is one delivery captured by a [Recorder].
type Message struct {
	Destination string
	Code        string
	Purpose     string
}

// Recorder keeps every delivery in memory.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
}

// NewRecorder returns an empty [Recorder].
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Deliver records the message.
func (r *Recorder) Deliver(_ context.Context, destination, code, purpose string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, Message{Destination: destination, Code: code, Purpose: purpose})
	return nil
}

// Messages returns a copy of everything delivered so far.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}

// Last returns the newest message for destination and purpose.
func (r *Recorder) Last(destination, purpose string) (Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.messages) - 1; i >= 0; i-- {
		m := r.messages[i]
		if m.Destination == destination && m.Purpose == purpose {
			return m, true
		}
	}
	return Message{}, false
}
