// Package push delivers text notifications to family members through the
// LINE Messaging API or Firebase Cloud Messaging.
package push

import (
	"context"
	"errors"
)

// ErrNoPushToken is returned when a recipient has no registered device token.
var ErrNoPushToken = errors.New("push: recipient has no push token")

// Sender delivers a text body to a single recipient.
type Sender interface {
	Push(ctx context.Context, to, text string) error
}

// Replier answers an inbound webhook event through its reply token.
type Replier interface {
	Reply(ctx context.Context, replyToken string, messages ...Message) error
}

// Message is a LINE message object.
type Message struct {
	Type       string      `json:"type"`
	Text       string      `json:"text"`
	QuickReply *QuickReply `json:"quickReply,omitempty"`
}

// QuickReply holds the buttons shown under a message.
type QuickReply struct {
	Items []QuickReplyItem `json:"items"`
}

// QuickReplyItem wraps a single quick reply action.
type QuickReplyItem struct {
	Type   string `json:"type"`
	Action Action `json:"action"`
}

// Action is a postback action attached to a quick reply button.
type Action struct {
	Type        string `json:"type"`
	Label       string `json:"label"`
	Data        string `json:"data"`
	DisplayText string `json:"displayText,omitempty"`
}

// TextMessage builds a plain text message.
func TextMessage(text string) Message {
	return Message{Type: "text", Text: text}
}

// PostbackAction builds a postback button that echoes its label when tapped.
func PostbackAction(label, data string) Action {
	return Action{Type: "postback", Label: label, Data: data, DisplayText: label}
}

// PromptMessage builds a text message with quick reply buttons.
func PromptMessage(text string, actions ...Action) Message {
	msg := TextMessage(text)
	if len(actions) == 0 {
		return msg
	}

	items := make([]QuickReplyItem, 0, len(actions))
	for _, action := range actions {
		items = append(items, QuickReplyItem{Type: "action", Action: action})
	}
	msg.QuickReply = &QuickReply{Items: items}
	return msg
}
