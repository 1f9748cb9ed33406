// Telegram webhook.
//
// Telegram POSTs each update as a JSON object and retries until it gets a
// 2xx. The handler therefore answers 200 for every well-formed update, even
// when processing fails, and relies on the update_id claim to drop
// redeliveries.
package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tbourn/go-filebot-backend/internal/http/middleware"
	"github.com/tbourn/go-filebot-backend/internal/observability"
)

// WebhookResponse is the body of every webhook reply.
type WebhookResponse struct {
	Status string `json:"status" example:"ok"`
}

// parseUpdateID returns the numeric update_id of a JSON object body.
// ok=false with valid=false means the body is not JSON at all.
func parseUpdateID(raw []byte) (id int64, valid, ok bool) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return 0, false, false
	}
	obj, isObj := v.(map[string]any)
	if !isObj {
		return 0, true, false
	}
	num, isNum := obj["update_id"].(json.Number)
	if !isNum {
		return 0, true, false
	}
	id, err := num.Int64()
	if err != nil {
		return 0, true, false
	}
	return id, true, true
}

// TelegramWebhook godoc
// @ID          telegramWebhook
// @Summary     Receive a Telegram update
// @Description Entry point registered with setWebhook. Redelivered update ids are acknowledged without being processed again.
// @Tags        Telegram
// @Accept      json
// @Produce     json
//
// @Param       X-Telegram-Bot-Api-Secret-Token  header  string  false  "Webhook secret (when WEBHOOK_SECRET is set)"
// @Param       body  body  object  true  "Telegram Update"
//
// @Success     200  {object}  handlers.WebhookResponse
// @Failure     400  {object}  handlers.WebhookResponse  "invalid json | invalid update data"
// @Failure     401  {object}  handlers.WebhookResponse  "secret mismatch"
// @Failure     500  {object}  handlers.WebhookResponse  "bot token not configured"
// @Router      /telegram/webhook [post]
func (h *Handlers) TelegramWebhook(c *gin.Context) {
	if h.updates == nil {
		c.JSON(http.StatusInternalServerError, WebhookResponse{Status: "bot token not configured"})
		return
	}
	raw, err := c.GetRawData()
	if err != nil {
		observability.WebhookUpdates.WithLabelValues("invalid").Inc()
		c.JSON(http.StatusBadRequest, WebhookResponse{Status: "invalid json"})
		return
	}
	id, valid, ok := parseUpdateID(raw)
	if !valid {
		observability.WebhookUpdates.WithLabelValues("invalid").Inc()
		c.JSON(http.StatusBadRequest, WebhookResponse{Status: "invalid json"})
		return
	}
	var upd tgbotapi.Update
	if ok {
		ok = json.Unmarshal(raw, &upd) == nil
	}
	if !ok {
		observability.WebhookUpdates.WithLabelValues("invalid").Inc()
		c.JSON(http.StatusBadRequest, WebhookResponse{Status: "invalid update data"})
		return
	}

	ctx := c.Request.Context()
	lg := middleware.LoggerFrom(c).With().Int64("update_id", id).Logger()

	if h.claim != nil {
		fresh, err := h.claim(ctx, id)
		switch {
		case err != nil:
			// Processing twice beats dropping the update.
			lg.Warn().Err(err).Msg("update claim failed; processing anyway")
		case !fresh:
			observability.WebhookUpdates.WithLabelValues("duplicate").Inc()
			lg.Info().Msg("duplicate update ignored")
			c.JSON(http.StatusOK, WebhookResponse{Status: "ok"})
			return
		}
	}

	if err := h.updates.Handle(ctx, upd); err != nil {
		observability.WebhookUpdates.WithLabelValues("error").Inc()
		lg.Error().Err(err).Msg("update handling failed")
	} else {
		observability.WebhookUpdates.WithLabelValues("ok").Inc()
	}
	c.JSON(http.StatusOK, WebhookResponse{Status: "ok"})
}
