package app

import (
	"time"

	"github.com/charlesng35/yaruyo/internal/auth"
	"github.com/charlesng35/yaruyo/internal/push"
	"github.com/charlesng35/yaruyo/internal/timeslot"
)

// JWTServiceConfig converts AuthConfig into the parameters expected by the JWT service.
func (c AuthConfig) JWTServiceConfig() auth.JWTConfig {
	ttl := c.JWT.TTL
	if ttl <= 0 {
		ttl = auth.DefaultAccessTokenTTL
	}

	return auth.JWTConfig{
		Secret:         c.JWT.Secret,
		Issuer:         c.JWT.Issuer,
		AccessTokenTTL: ttl,
	}
}

// LineLoginConfig converts AuthConfig into LINE ID token verifier parameters.
func (c AuthConfig) LineLoginConfig() auth.LineLoginConfig {
	issuer := c.LineLogin.Issuer
	if issuer == "" {
		issuer = auth.DefaultLineIssuer
	}

	return auth.LineLoginConfig{
		ChannelID: c.LineLogin.ChannelID,
		Issuer:    issuer,
	}
}

// LineClientConfig converts LineConfig into LINE Messaging API client parameters.
func (c LineConfig) LineClientConfig() push.LineConfig {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	cfg := push.LineConfig{
		ChannelAccessToken: c.ChannelAccessToken,
		BaseURL:            c.APIBaseURL,
		Timeout:            timeout,
	}
	if c.RateLimit.Enabled {
		cfg.RequestsPerSecond = c.RateLimit.RequestsPerSecond
		cfg.Burst = c.RateLimit.Burst
	}
	return cfg
}

// Grid returns the reminder slot grid as a duration.
func (c ReminderConfig) Grid() time.Duration {
	if c.GridMinutes <= 0 {
		return timeslot.DefaultGrid
	}
	return time.Duration(c.GridMinutes) * time.Minute
}

// Location loads the reminder timezone, falling back to Asia/Tokyo.
func (c ReminderConfig) Location() (*time.Location, error) {
	name := c.Timezone
	if name == "" {
		name = timeslot.DefaultTimezone
	}
	return time.LoadLocation(name)
}

// FCMSenderConfig converts PushConfig into Firebase sender parameters.
func (c PushConfig) FCMSenderConfig() push.FCMConfig {
	title := c.FCM.Title
	if title == "" {
		title = "やるよ"
	}
	return push.FCMConfig{
		CredentialsFile: c.FCM.CredentialsFile,
		ProjectID:       c.FCM.ProjectID,
		Title:           title,
	}
}
