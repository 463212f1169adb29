package push

import (
	"context"
	"errors"
	"testing"

	"firebase.google.com/go/v4/messaging"
	"github.com/stretchr/testify/require"
)

type fakeMessaging struct {
	sent []*messaging.Message
	err  error
}

func (f *fakeMessaging) Send(_ context.Context, message *messaging.Message) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, message)
	return "projects/test/messages/1", nil
}

type staticTokens map[string]string

func (s staticTokens) PushToken(_ context.Context, userID string) (string, error) {
	return s[userID], nil
}

func TestFCMSenderPush(t *testing.T) {
	client := &fakeMessaging{}
	sender := newFCMSender(client, staticTokens{"U1": "device-token"}, "やるよ")

	require.NoError(t, sender.Push(context.Background(), "U1", "さくらが「算数」をやるよ ✏️"))
	require.Len(t, client.sent, 1)

	msg := client.sent[0]
	require.Equal(t, "device-token", msg.Token)
	require.Equal(t, "やるよ", msg.Notification.Title)
	require.Equal(t, "さくらが「算数」をやるよ ✏️", msg.Notification.Body)
	require.Equal(t, "U1", msg.Data["recipient"])
}

func TestFCMSenderMissingToken(t *testing.T) {
	client := &fakeMessaging{}
	sender := newFCMSender(client, staticTokens{}, "")

	err := sender.Push(context.Background(), "U2", "hi")
	require.ErrorIs(t, err, ErrNoPushToken)
	require.Empty(t, client.sent)
}

func TestFCMSenderSendError(t *testing.T) {
	client := &fakeMessaging{err: errors.New("unregistered")}
	sender := newFCMSender(client, staticTokens{"U1": "device-token"}, "")

	err := sender.Push(context.Background(), "U1", "hi")
	require.ErrorContains(t, err, "fcm: send: unregistered")
}

func TestNewFCMSenderRequiresResolver(t *testing.T) {
	_, err := NewFCMSender(context.Background(), FCMConfig{}, nil)
	require.Error(t, err)
}
