// Broadcast HTTP handlers.
//
//   - GET  /broadcasts                    (list, paginated)
//   - POST /broadcasts                    (create; honours Idempotency-Key)
//   - GET  /broadcasts/stats              (aggregate counters)
//   - GET  /broadcasts/{id}               (broadcast with progress)
//   - GET  /broadcasts/{id}/recipients    (delivery records, paginated)
//   - POST /broadcasts/{id}/retry         (requeue failed deliveries)
package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-filebot-backend/internal/domain"
	"github.com/tbourn/go-filebot-backend/internal/http/middleware"
)

// CreateBroadcastRequest is the payload for creating a broadcast. The
// message is copied from (from_chat_id, message_id) to every recipient.
type CreateBroadcastRequest struct {
	FromChatID    int64      `json:"from_chat_id" binding:"required" example:"-1001234567890"`
	MessageID     int        `json:"message_id" binding:"required,min=1" example:"55"`
	ScheduledTime *time.Time `json:"scheduled_time,omitempty" example:"2025-01-02T09:00:00Z"`
}

// ListBroadcastsResponse wraps a page of broadcasts.
type ListBroadcastsResponse struct {
	Broadcasts []domain.Broadcast `json:"broadcasts"`
	Pagination Pagination         `json:"pagination"`
}

// BroadcastDetail is a broadcast with its delivery progress.
type BroadcastDetail struct {
	Broadcast *domain.Broadcast         `json:"broadcast"`
	Progress  *domain.BroadcastProgress `json:"progress"`
}

// ListRecipientsResponse wraps a page of delivery records.
type ListRecipientsResponse struct {
	Recipients []domain.BroadcastRecipient `json:"recipients"`
	Pagination Pagination                  `json:"pagination"`
}

// RetryResponse reports how many failed deliveries were requeued.
type RetryResponse struct {
	RetryCount int `json:"retry_count" example:"3"`
}

// ListBroadcasts godoc
// @ID          listBroadcasts
// @Summary     List broadcasts
// @Description Returns broadcasts newest first.
// @Tags        Broadcasts
// @Produce     json
// @Security    BearerAuth
//
// @Param       page       query  int  false  "Page (1-based)"  minimum(1) default(1)
// @Param       page_size  query  int  false  "Page size"       minimum(1) maximum(100) default(20)
//
// @Success     200  {object}  handlers.ListBroadcastsResponse
// @Failure     401  {object}  handlers.ErrorResponse
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /broadcasts [get]
func (h *Handlers) ListBroadcasts(c *gin.Context) {
	p := pageParams(c, 20, 100)
	items, total, err := h.broadcasts.ListPage(c.Request.Context(), p.Number, p.Size)
	if err != nil {
		failErr(c, err, ErrCodeListFailed)
		return
	}
	if items == nil {
		items = []domain.Broadcast{}
	}
	ok(c, http.StatusOK, ListBroadcastsResponse{Broadcasts: items, Pagination: paginationOf(p, total)})
}

// CreateBroadcast godoc
// @ID          createBroadcast
// @Summary     Create a broadcast
// @Description Persists a pending broadcast. Without scheduled_time (or with one in the past) fan-out starts immediately; otherwise the scheduler starts it when due. A repeated Idempotency-Key returns the broadcast created by the first request.
// @Tags        Broadcasts
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       Idempotency-Key  header  string                           false  "Retry key"
// @Param       body             body    handlers.CreateBroadcastRequest  true   "Broadcast"
//
// @Success     201  {object}  domain.Broadcast
// @Success     200  {object}  domain.Broadcast  "Replay of an earlier request"
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     401  {object}  handlers.ErrorResponse
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /broadcasts [post]
func (h *Handlers) CreateBroadcast(c *gin.Context) {
	ctx := c.Request.Context()

	if rid, replay := middleware.ReplayResource(c); replay {
		if id, err := strconv.ParseUint(rid, 10, 64); err == nil {
			if b, err := h.broadcasts.Get(ctx, uint(id)); err == nil {
				ok(c, http.StatusOK, b)
				return
			}
		}
	}

	var req CreateBroadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "from_chat_id and message_id are required")
		return
	}

	b, err := h.broadcasts.Create(ctx, req.FromChatID, req.MessageID, req.ScheduledTime)
	if err != nil && b == nil {
		failErr(c, err, ErrCodeCreateFailed)
		return
	}
	if err != nil {
		// Stored but not queued; the row stays pending and the key is not remembered.
		fail(c, http.StatusInternalServerError, ErrCodeEnqueueFailed, err.Error())
		return
	}

	if key, has := middleware.GetIdempotencyKey(c); has && h.remember != nil {
		uid := c.GetString("userID")
		if err := h.remember(ctx, uid, c.FullPath(), key, strconv.FormatUint(uint64(b.ID), 10), http.StatusCreated); err != nil {
			middleware.LoggerFrom(c).Warn().Err(err).Uint("broadcast_id", b.ID).Msg("idempotency record not stored")
		}
	}
	ok(c, http.StatusCreated, b)
}

// GetBroadcast godoc
// @ID          getBroadcast
// @Summary     Get a broadcast with progress
// @Tags        Broadcasts
// @Produce     json
// @Security    BearerAuth
//
// @Param       id  path  int  true  "Broadcast ID"
//
// @Success     200  {object}  handlers.BroadcastDetail
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /broadcasts/{id} [get]
func (h *Handlers) GetBroadcast(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid broadcast id")
		return
	}
	ctx := c.Request.Context()
	b, err := h.broadcasts.Get(ctx, id)
	if err != nil {
		failErr(c, err, ErrCodeInternal)
		return
	}
	p, err := h.broadcasts.Progress(ctx, id)
	if err != nil {
		failErr(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, BroadcastDetail{Broadcast: b, Progress: p})
}

// ListRecipients godoc
// @ID          listBroadcastRecipients
// @Summary     List delivery records of a broadcast
// @Tags        Broadcasts
// @Produce     json
// @Security    BearerAuth
//
// @Param       id         path   int     true   "Broadcast ID"
// @Param       status     query  string  false  "pending | sent | failed"
// @Param       page       query  int     false  "Page (1-based)"  minimum(1) default(1)
// @Param       page_size  query  int     false  "Page size"       minimum(1) maximum(200) default(50)
//
// @Success     200  {object}  handlers.ListRecipientsResponse
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /broadcasts/{id}/recipients [get]
func (h *Handlers) ListRecipients(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid broadcast id")
		return
	}
	p := pageParams(c, 50, 200)
	status := domain.RecipientStatus(c.Query("status"))
	items, total, err := h.broadcasts.Recipients(c.Request.Context(), id, status, p.Number, p.Size)
	if err != nil {
		failErr(c, err, ErrCodeListFailed)
		return
	}
	if items == nil {
		items = []domain.BroadcastRecipient{}
	}
	ok(c, http.StatusOK, ListRecipientsResponse{Recipients: items, Pagination: paginationOf(p, total)})
}

// RetryBroadcast godoc
// @ID          retryBroadcast
// @Summary     Requeue failed deliveries
// @Description Resets failed recipients to pending and queues them again. Returns 0 when nothing failed.
// @Tags        Broadcasts
// @Produce     json
// @Security    BearerAuth
//
// @Param       id  path  int  true  "Broadcast ID"
//
// @Success     200  {object}  handlers.RetryResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /broadcasts/{id}/retry [post]
func (h *Handlers) RetryBroadcast(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid broadcast id")
		return
	}
	n, err := h.broadcasts.RequeueFailed(c.Request.Context(), id)
	if err != nil {
		failErr(c, err, ErrCodeEnqueueFailed)
		return
	}
	ok(c, http.StatusOK, RetryResponse{RetryCount: n})
}

// BroadcastStats godoc
// @ID          broadcastStats
// @Summary     Broadcast and delivery counters
// @Tags        Broadcasts
// @Produce     json
// @Security    BearerAuth
//
// @Success     200  {object}  services.BroadcastStats
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /broadcasts/stats [get]
func (h *Handlers) BroadcastStats(c *gin.Context) {
	st, err := h.broadcasts.Stats(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeStatsFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, st)
}
