package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/yaruyo/internal/push"
	"github.com/charlesng35/yaruyo/internal/services"
	appErrors "github.com/charlesng35/yaruyo/pkg/errors"
	"github.com/charlesng35/yaruyo/pkg/logger"
	"github.com/charlesng35/yaruyo/pkg/metrics"
	"github.com/charlesng35/yaruyo/pkg/response"
)

// LineSignatureHeader carries the base64 HMAC-SHA256 of the webhook body.
const LineSignatureHeader = "X-Line-Signature"

const maxWebhookBody = 1 << 20

const (
	replyTextOnly  = "テキストだけ送れるよ。文字で送ってね。"
	replyNoFamily  = "家族に参加していないみたい。アプリで家族登録してね。"
	replySent      = "おくったよ"
	replyCancelled = "やめたよ"

	postbackConfirm = "confirm"
	postbackCancel  = "cancel"
)

var errMethodNotAllowed = appErrors.New("method-not-allowed", "Method not allowed", http.StatusMethodNotAllowed)

type lineWebhookPayload struct {
	Events []lineEvent `json:"events"`
}

type lineEvent struct {
	Type       string `json:"type"`
	ReplyToken string `json:"replyToken"`
	Source     struct {
		UserID string `json:"userId"`
	} `json:"source"`
	Message *struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"message"`
	Postback *struct {
		Data string `json:"data"`
	} `json:"postback"`
}

// LineWebhookHandler turns chat messages into family broadcast drafts and
// resolves them from quick reply postbacks.
type LineWebhookHandler struct {
	secret  string
	drafts  *services.DraftService
	replier push.Replier
	log     *zap.Logger
}

// NewLineWebhookHandler configures the webhook handler. An empty secret
// rejects every request.
func NewLineWebhookHandler(secret string, drafts *services.DraftService, replier push.Replier) *LineWebhookHandler {
	return &LineWebhookHandler{
		secret:  secret,
		drafts:  drafts,
		replier: replier,
		log:     logger.WithModule("line_webhook"),
	}
}

// POST /webhooks/line
func (h *LineWebhookHandler) Handle(c *gin.Context) {
	if c.Request.Method != http.MethodPost {
		response.Error(c, errMethodNotAllowed)
		return
	}

	reqBody := c.Request.Body
	if reqBody == nil {
		reqBody = http.NoBody
	}
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, reqBody, maxWebhookBody))
	if err != nil {
		response.Error(c, appErrors.NewBadRequest("unable to read request body"))
		return
	}
	if !VerifyLineSignature(h.secret, body, c.GetHeader(LineSignatureHeader)) {
		response.Error(c, appErrors.Unauthenticated("invalid signature"))
		return
	}

	var payload lineWebhookPayload
	if len(body) > 0 {
		if err := json.Unmarshal(body, &payload); err != nil {
			h.log.Warn("malformed webhook payload", zap.Error(err))
		}
	}

	ctx := context.WithoutCancel(requestContext(c))
	for i := range payload.Events {
		event := &payload.Events[i]
		if err := h.handleEvent(ctx, event); err != nil {
			metrics.WebhookEvents.WithLabelValues(event.Type, "error").Inc()
			h.log.Error("webhook event failed",
				zap.String("type", event.Type),
				zap.String("user_id", event.Source.UserID),
				zap.Error(err),
			)
			continue
		}
		metrics.WebhookEvents.WithLabelValues(event.Type, "ok").Inc()
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// VerifyLineSignature reports whether signature is the base64 HMAC-SHA256 of
// body keyed by secret.
func VerifyLineSignature(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(signature), []byte(expected))
}

func (h *LineWebhookHandler) handleEvent(ctx context.Context, event *lineEvent) error {
	switch event.Type {
	case "message":
		if event.Message == nil || event.Message.Type != "text" {
			return h.replyText(ctx, event.ReplyToken, replyTextOnly)
		}
		return h.handleText(ctx, event)
	case "postback":
		return h.handlePostback(ctx, event)
	default:
		return nil
	}
}

func (h *LineWebhookHandler) handleText(ctx context.Context, event *lineEvent) error {
	fromUID := strings.TrimSpace(event.Source.UserID)
	if fromUID == "" {
		return nil
	}

	draft, err := h.drafts.CreateFromMessage(ctx, fromUID, event.Message.Text)
	switch {
	case errors.Is(err, services.ErrDraftTextEmpty):
		return h.replyText(ctx, event.ReplyToken, replyTextOnly)
	case errors.Is(err, services.ErrNotInFamily):
		return h.replyText(ctx, event.ReplyToken, replyNoFamily)
	case err != nil:
		return err
	}

	if event.ReplyToken == "" {
		return nil
	}
	id := url.QueryEscape(draft.ID)
	prompt := push.PromptMessage("家族全員におくる？\n「"+draft.Text+"」",
		push.PostbackAction("おくる", "action="+postbackConfirm+"&draftId="+id),
		push.PostbackAction("やめる", "action="+postbackCancel+"&draftId="+id),
	)
	return h.replier.Reply(ctx, event.ReplyToken, prompt)
}

func (h *LineWebhookHandler) handlePostback(ctx context.Context, event *lineEvent) error {
	fromUID := strings.TrimSpace(event.Source.UserID)
	if fromUID == "" {
		return nil
	}

	var data string
	if event.Postback != nil {
		data = event.Postback.Data
	}
	values, _ := url.ParseQuery(data)
	action := values.Get("action")
	draftID := values.Get("draftId")
	if draftID == "" {
		return h.replyText(ctx, event.ReplyToken, replyCancelled)
	}

	switch action {
	case postbackConfirm:
		result, err := h.drafts.Confirm(ctx, draftID, fromUID)
		if err != nil {
			return err
		}
		if result.Status == services.DraftAlreadyCancelled {
			return h.replyText(ctx, event.ReplyToken, replyCancelled)
		}
		return h.replyText(ctx, event.ReplyToken, replySent)
	case postbackCancel:
		result, err := h.drafts.Cancel(ctx, draftID, fromUID)
		if err != nil {
			return err
		}
		if result.Status == services.DraftAlreadySent {
			return h.replyText(ctx, event.ReplyToken, replySent)
		}
		return h.replyText(ctx, event.ReplyToken, replyCancelled)
	default:
		return h.replyText(ctx, event.ReplyToken, replyCancelled)
	}
}

func (h *LineWebhookHandler) replyText(ctx context.Context, replyToken, text string) error {
	if replyToken == "" {
		return nil
	}
	return h.replier.Reply(ctx, replyToken, push.TextMessage(text))
}
