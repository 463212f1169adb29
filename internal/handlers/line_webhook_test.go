package handlers_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/yaruyo/internal/handlers/testutil"
	"github.com/charlesng35/yaruyo/internal/models"
	"github.com/charlesng35/yaruyo/internal/push"
)

func sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testutil.ChannelSecret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func postEvents(t *testing.T, env *testutil.Env, events ...map[string]any) {
	t.Helper()
	body, err := json.Marshal(map[string]any{"events": events})
	require.NoError(t, err)

	w := env.Webhook(http.MethodPost, body, sign(body))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.JSONEq(t, `{"ok":true}`, w.Body.String())
}

func textEvent(uid, replyToken, text string) map[string]any {
	return map[string]any{
		"type":       "message",
		"replyToken": replyToken,
		"source":     map[string]string{"userId": uid},
		"message":    map[string]string{"type": "text", "text": text},
	}
}

func postbackEvent(uid, replyToken, data string) map[string]any {
	return map[string]any{
		"type":       "postback",
		"replyToken": replyToken,
		"source":     map[string]string{"userId": uid},
		"postback":   map[string]string{"data": data},
	}
}

func lastReply(t *testing.T, env *testutil.Env, token string) push.ReplyCall {
	t.Helper()
	var found *push.ReplyCall
	for _, r := range env.Push.Replies() {
		if r.Token == token {
			r := r
			found = &r
		}
	}
	require.NotNil(t, found, "no reply for token %s", token)
	return *found
}

func TestLineWebhook_RejectsBadRequests(t *testing.T) {
	env := testutil.NewEnv(t)
	body := []byte(`{"events":[]}`)

	w := env.Webhook(http.MethodGet, nil, "")
	require.Equal(t, http.StatusMethodNotAllowed, w.Code)

	w = env.Webhook(http.MethodPost, body, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.Webhook(http.MethodPost, body, sign([]byte(`{"events":[{}]}`)))
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.Webhook(http.MethodPost, body, sign(body))
	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, env.Push.Replies())
}

func TestLineWebhook_NonTextAndNoFamily(t *testing.T) {
	env := testutil.NewEnv(t)
	env.Request(http.MethodGet, "/api/me", nil, env.Token("U1", ""))

	postEvents(t, env,
		map[string]any{
			"type":       "message",
			"replyToken": "r-sticker",
			"source":     map[string]string{"userId": "U1"},
			"message":    map[string]string{"type": "sticker"},
		},
		textEvent("U1", "r-text", "こんにちは"),
		textEvent("U1", "r-blank", "   "),
	)

	require.Equal(t, "テキストだけ送れるよ。文字で送ってね。", lastReply(t, env, "r-sticker").Messages[0].Text)
	require.Equal(t, "家族に参加していないみたい。アプリで家族登録してね。", lastReply(t, env, "r-text").Messages[0].Text)
	require.Equal(t, "テキストだけ送れるよ。文字で送ってね。", lastReply(t, env, "r-blank").Messages[0].Text)

	var drafts int64
	require.NoError(t, env.DB.Model(&models.MessageDraft{}).Count(&drafts).Error)
	require.Zero(t, drafts)
}

func TestLineWebhook_DraftConfirmFlow(t *testing.T) {
	env := testutil.NewEnv(t)
	newFamily(t, env)

	postEvents(t, env, textEvent("C1", "r-1", " じゅくに行ってきます "))

	prompt := lastReply(t, env, "r-1").Messages[0]
	require.Equal(t, "家族全員におくる？\n「じゅくに行ってきます」", prompt.Text)
	require.NotNil(t, prompt.QuickReply)
	require.Len(t, prompt.QuickReply.Items, 2)

	confirm := prompt.QuickReply.Items[0].Action
	cancel := prompt.QuickReply.Items[1].Action
	require.Equal(t, "おくる", confirm.Label)
	require.Equal(t, "やめる", cancel.Label)

	values, err := url.ParseQuery(confirm.Data)
	require.NoError(t, err)
	require.Equal(t, "confirm", values.Get("action"))
	draftID := values.Get("draftId")
	require.NotEmpty(t, draftID)
	require.True(t, strings.HasPrefix(cancel.Data, "action=cancel&draftId="))

	postEvents(t, env, postbackEvent("C1", "r-2", confirm.Data))
	require.Equal(t, "おくったよ", lastReply(t, env, "r-2").Messages[0].Text)

	pushes := env.Push.PushesTo("P1")
	require.Len(t, pushes, 1)
	require.Equal(t, "はなこ：じゅくに行ってきます", pushes[0].Text)
	require.Empty(t, env.Push.PushesTo("C1"))

	postEvents(t, env,
		postbackEvent("C1", "r-3", confirm.Data),
		postbackEvent("C1", "r-4", cancel.Data),
	)
	require.Equal(t, "おくったよ", lastReply(t, env, "r-3").Messages[0].Text)
	require.Equal(t, "おくったよ", lastReply(t, env, "r-4").Messages[0].Text)
	require.Len(t, env.Push.PushesTo("P1"), 1)
}

func TestLineWebhook_DraftCancelFlow(t *testing.T) {
	env := testutil.NewEnv(t)
	newFamily(t, env)

	postEvents(t, env, textEvent("C1", "r-1", "やっぱりなし"))
	prompt := lastReply(t, env, "r-1").Messages[0]
	confirm := prompt.QuickReply.Items[0].Action
	cancel := prompt.QuickReply.Items[1].Action

	postEvents(t, env,
		postbackEvent("C1", "r-2", cancel.Data),
		postbackEvent("C1", "r-3", confirm.Data),
		postbackEvent("P1", "r-4", confirm.Data),
		postbackEvent("C1", "r-5", "action=confirm"),
		postbackEvent("C1", "r-6", "action=unknown&draftId=x"),
	)
	require.Equal(t, "やめたよ", lastReply(t, env, "r-2").Messages[0].Text)
	require.Equal(t, "やめたよ", lastReply(t, env, "r-3").Messages[0].Text)
	require.Equal(t, "おくったよ", lastReply(t, env, "r-4").Messages[0].Text)
	require.Equal(t, "やめたよ", lastReply(t, env, "r-5").Messages[0].Text)
	require.Equal(t, "やめたよ", lastReply(t, env, "r-6").Messages[0].Text)
	require.Empty(t, env.Push.Pushes())
}

func TestLineWebhook_NilBodyIsEmpty(t *testing.T) {
	env := testutil.NewEnv(t)

	req, err := http.NewRequest(http.MethodPost, "/webhooks/line", nil)
	require.NoError(t, err)
	w := httptest.NewRecorder()
	env.Router.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code, w.Body.String())

	req, err = http.NewRequest(http.MethodPost, "/webhooks/line", nil)
	require.NoError(t, err)
	req.Header.Set("X-Line-Signature", sign(nil))
	w = httptest.NewRecorder()
	env.Router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.JSONEq(t, `{"ok":true}`, w.Body.String())
}

func TestLineWebhook_FailedEventDoesNotStopBatch(t *testing.T) {
	env := testutil.NewEnv(t)
	newFamily(t, env)
	env.Push.ReplyFailFor = func(token string) error {
		if token == "r-broken" {
			return errors.New("reply token expired")
		}
		return nil
	}

	postEvents(t, env,
		textEvent("C1", "r-broken", "さんすう"),
		textEvent("C1", "r-ok", "こくご"),
	)

	for _, r := range env.Push.Replies() {
		require.NotEqual(t, "r-broken", r.Token)
	}
	require.Equal(t, "家族全員におくる？\n「こくご」", lastReply(t, env, "r-ok").Messages[0].Text)

	var drafts []models.MessageDraft
	require.NoError(t, env.DB.WithContext(context.Background()).Order("created_at").Find(&drafts).Error)
	require.Len(t, drafts, 2)
}
