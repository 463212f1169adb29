package push

import (
	"context"
	"sync"
)

// Delivery is a push captured by Recorder.
type Delivery struct {
	To   string
	Text string
}

// ReplyCall is a reply captured by Recorder.
type ReplyCall struct {
	Token    string
	Messages []Message
}

// Recorder is an in-memory Sender and Replier used by tests and local runs.
type Recorder struct {
	mu      sync.Mutex
	pushes  []Delivery
	replies []ReplyCall

	// FailFor, when set, decides whether a push to a recipient fails.
	FailFor func(to string) error
	// ReplyFailFor, when set, decides whether a reply to a token fails.
	ReplyFailFor func(token string) error
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Push records the delivery, or returns the error chosen by FailFor.
func (r *Recorder) Push(_ context.Context, to, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.FailFor != nil {
		if err := r.FailFor(to); err != nil {
			return err
		}
	}
	r.pushes = append(r.pushes, Delivery{To: to, Text: text})
	return nil
}

// Reply records the reply, or returns the error chosen by ReplyFailFor.
func (r *Recorder) Reply(_ context.Context, replyToken string, messages ...Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ReplyFailFor != nil {
		if err := r.ReplyFailFor(replyToken); err != nil {
			return err
		}
	}
	r.replies = append(r.replies, ReplyCall{Token: replyToken, Messages: append([]Message(nil), messages...)})
	return nil
}

// Pushes returns a copy of the recorded deliveries.
func (r *Recorder) Pushes() []Delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Delivery(nil), r.pushes...)
}

// PushesTo returns the deliveries addressed to one recipient.
func (r *Recorder) PushesTo(to string) []Delivery {
	var out []Delivery
	for _, d := range r.Pushes() {
		if d.To == to {
			out = append(out, d)
		}
	}
	return out
}

// Replies returns a copy of the recorded replies.
func (r *Recorder) Replies() []ReplyCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ReplyCall(nil), r.replies...)
}
