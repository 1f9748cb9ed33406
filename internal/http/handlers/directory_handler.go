// Subscription channel and location handlers.
//
//   - GET    /channels         (list; ?active=true for enforced ones only)
//   - POST   /channels         (create)
//   - PUT    /channels/{id}    (replace)
//   - DELETE /channels/{id}
//   - GET    /locations        (list, paginated; ?user_id= filters)
//   - POST   /locations        (record a location for a user)
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-filebot-backend/internal/domain"
	"github.com/tbourn/go-filebot-backend/internal/services"
	"github.com/tbourn/go-filebot-backend/internal/utils"
)

// ChannelRequest is the payload for creating or replacing a channel.
// Active defaults to true when omitted.
type ChannelRequest struct {
	ChannelUsername string `json:"channel_username" example:"@filebot_news"`
	ChannelLink     string `json:"channel_link" example:"https://t.me/filebot_news"`
	ChannelID       int64  `json:"channel_id" binding:"required" example:"-1001234567890"`
	Active          *bool  `json:"active,omitempty" example:"true"`
	Private         bool   `json:"private" example:"false"`
}

func (r ChannelRequest) input() services.ChannelInput {
	active := true
	if r.Active != nil {
		active = *r.Active
	}
	return services.ChannelInput{
		ChannelUsername: strings.TrimSpace(r.ChannelUsername),
		ChannelLink:     strings.TrimSpace(r.ChannelLink),
		ChannelID:       r.ChannelID,
		Active:          active,
		Private:         r.Private,
	}
}

// LocationRequest records a location on behalf of a user.
type LocationRequest struct {
	UserID    uint     `json:"user_id" binding:"required" example:"12"`
	Latitude  *float64 `json:"latitude" binding:"required" example:"41.2995"`
	Longitude *float64 `json:"longitude" binding:"required" example:"69.2401"`
}

// ListLocationsResponse wraps a page of locations.
type ListLocationsResponse struct {
	Locations  []domain.Location `json:"locations"`
	Pagination Pagination        `json:"pagination"`
}

// ListChannels godoc
// @ID          listChannels
// @Summary     List subscription channels
// @Tags        Channels
// @Produce     json
// @Security    BearerAuth
//
// @Param       active  query  bool  false  "Only enforced channels"
//
// @Success     200  {array}   domain.SubscribeChannel
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /channels [get]
func (h *Handlers) ListChannels(c *gin.Context) {
	items, err := h.directory.ListChannels(c.Request.Context(), c.Query("active") == "true")
	if err != nil {
		failErr(c, err, ErrCodeListFailed)
		return
	}
	if items == nil {
		items = []domain.SubscribeChannel{}
	}
	ok(c, http.StatusOK, items)
}

// CreateChannel godoc
// @ID          createChannel
// @Summary     Register a subscription channel
// @Tags        Channels
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       body  body  handlers.ChannelRequest  true  "Channel"
//
// @Success     201  {object}  domain.SubscribeChannel
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     409  {object}  handlers.ErrorResponse
// @Router      /channels [post]
func (h *Handlers) CreateChannel(c *gin.Context) {
	var req ChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "channel_id is required")
		return
	}
	ch, err := h.directory.CreateChannel(c.Request.Context(), req.input())
	if err != nil {
		failErr(c, err, ErrCodeCreateFailed)
		return
	}
	ok(c, http.StatusCreated, ch)
}

// UpdateChannel godoc
// @ID          updateChannel
// @Summary     Replace a subscription channel
// @Tags        Channels
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       id    path  int                      true  "Channel ID"
// @Param       body  body  handlers.ChannelRequest  true  "Channel"
//
// @Success     200  {object}  domain.SubscribeChannel
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Failure     409  {object}  handlers.ErrorResponse
// @Router      /channels/{id} [put]
func (h *Handlers) UpdateChannel(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid channel id")
		return
	}
	var req ChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "channel_id is required")
		return
	}
	ch, err := h.directory.UpdateChannel(c.Request.Context(), id, req.input())
	if err != nil {
		failErr(c, err, ErrCodeUpdateFailed)
		return
	}
	ok(c, http.StatusOK, ch)
}

// DeleteChannel godoc
// @ID          deleteChannel
// @Summary     Remove a subscription channel
// @Tags        Channels
// @Security    BearerAuth
//
// @Param       id  path  int  true  "Channel ID"
//
// @Success     204
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /channels/{id} [delete]
func (h *Handlers) DeleteChannel(c *gin.Context) {
	id, valid := idParam(c, "id")
	if !valid {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid channel id")
		return
	}
	if err := h.directory.DeleteChannel(c.Request.Context(), id); err != nil {
		failErr(c, err, ErrCodeInternal)
		return
	}
	noContent(c)
}

// ListLocations godoc
// @ID          listLocations
// @Summary     List shared locations
// @Tags        Locations
// @Produce     json
// @Security    BearerAuth
//
// @Param       user_id    query  int  false  "Filter by user"
// @Param       page       query  int  false  "Page (1-based)"  minimum(1) default(1)
// @Param       page_size  query  int  false  "Page size"       minimum(1) maximum(100) default(20)
//
// @Success     200  {object}  handlers.ListLocationsResponse
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /locations [get]
func (h *Handlers) ListLocations(c *gin.Context) {
	p := pageParams(c, 20, 100)
	uid := utils.AtoiDefault(c.Query("user_id"), 0)
	if uid < 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid user_id")
		return
	}
	items, total, err := h.directory.ListLocations(c.Request.Context(), uint(uid), p.Number, p.Size)
	if err != nil {
		failErr(c, err, ErrCodeListFailed)
		return
	}
	if items == nil {
		items = []domain.Location{}
	}
	ok(c, http.StatusOK, ListLocationsResponse{Locations: items, Pagination: paginationOf(p, total)})
}

// CreateLocation godoc
// @ID          createLocation
// @Summary     Record a location for a user
// @Tags        Locations
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       body  body  handlers.LocationRequest  true  "Location"
//
// @Success     201  {object}  domain.Location
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /locations [post]
func (h *Handlers) CreateLocation(c *gin.Context) {
	var req LocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "user_id, latitude and longitude are required")
		return
	}
	loc, err := h.directory.AddLocation(c.Request.Context(), req.UserID, *req.Latitude, *req.Longitude)
	if err != nil {
		failErr(c, err, ErrCodeCreateFailed)
		return
	}
	ok(c, http.StatusCreated, loc)
}
