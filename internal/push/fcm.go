package push

import (
	"context"
	"errors"
	"fmt"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"github.com/charlesng35/yaruyo/pkg/metrics"
)

// TokenResolver looks up the FCM registration token of a user.
type TokenResolver interface {
	PushToken(ctx context.Context, userID string) (string, error)
}

// FCMConfig configures the Firebase Cloud Messaging sender.
type FCMConfig struct {
	CredentialsFile string
	ProjectID       string
	Title           string
}

type messagingClient interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCMSender delivers notifications as FCM notification messages.
type FCMSender struct {
	client messagingClient
	tokens TokenResolver
	title  string
}

// NewFCMSender initialises a Firebase app from a service account file.
func NewFCMSender(ctx context.Context, cfg FCMConfig, tokens TokenResolver) (*FCMSender, error) {
	if tokens == nil {
		return nil, errors.New("fcm: token resolver is required")
	}

	var opts []option.ClientOption
	if path := strings.TrimSpace(cfg.CredentialsFile); path != "" {
		opts = append(opts, option.WithCredentialsFile(path))
	}

	var fbConfig *firebase.Config
	if cfg.ProjectID != "" {
		fbConfig = &firebase.Config{ProjectID: cfg.ProjectID}
	}

	app, err := firebase.NewApp(ctx, fbConfig, opts...)
	if err != nil {
		return nil, fmt.Errorf("fcm: initialise app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("fcm: messaging client: %w", err)
	}

	return newFCMSender(client, tokens, cfg.Title), nil
}

func newFCMSender(client messagingClient, tokens TokenResolver, title string) *FCMSender {
	return &FCMSender{client: client, tokens: tokens, title: title}
}

// Push sends text to the device registered by user to.
func (s *FCMSender) Push(ctx context.Context, to, text string) (err error) {
	defer func() {
		result := "success"
		if err != nil {
			result = "failure"
		}
		metrics.PushRequests.WithLabelValues("fcm", "push", result).Inc()
	}()

	token, err := s.tokens.PushToken(ctx, to)
	if err != nil {
		return fmt.Errorf("fcm: resolve token: %w", err)
	}
	if strings.TrimSpace(token) == "" {
		return ErrNoPushToken
	}

	_, err = s.client.Send(ctx, &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: s.title,
			Body:  text,
		},
		Data: map[string]string{"recipient": to},
	})
	if err != nil {
		return fmt.Errorf("fcm: send: %w", err)
	}
	return nil
}
