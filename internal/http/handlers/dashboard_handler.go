// Dashboard handlers. Statistics and chart data are served from cache when
// fresh; invalidate drops both entries so the next read recomputes.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// DashboardStats godoc
// @ID          dashboardStats
// @Summary     Document pipeline statistics
// @Description Cached for STATS_TTL (5 minutes by default).
// @Tags        Dashboard
// @Produce     json
// @Security    BearerAuth
//
// @Success     200  {object}  services.Statistics
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /dashboard/stats [get]
func (h *Handlers) DashboardStats(c *gin.Context) {
	st, err := h.dashboard.GetStatistics(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeStatsFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, st)
}

// DashboardCharts godoc
// @ID          dashboardCharts
// @Summary     Chart series for the dashboard
// @Description Seven daily product counts, status buckets, error types and stage completion. Cached for CHART_TTL (10 minutes by default).
// @Tags        Dashboard
// @Produce     json
// @Security    BearerAuth
//
// @Success     200  {object}  services.ChartData
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /dashboard/charts [get]
func (h *Handlers) DashboardCharts(c *gin.Context) {
	cd, err := h.dashboard.GetChartData(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeStatsFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, cd)
}

// InvalidateDashboard godoc
// @ID          invalidateDashboard
// @Summary     Drop cached dashboard data
// @Tags        Dashboard
// @Security    BearerAuth
//
// @Success     204
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /dashboard/invalidate [post]
func (h *Handlers) InvalidateDashboard(c *gin.Context) {
	if err := h.dashboard.Invalidate(c.Request.Context()); err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	noContent(c)
}

// DashboardUsers godoc
// @ID          dashboardUsers
// @Summary     User totals
// @Description Total users and users active in the last 24 hours. Not cached.
// @Tags        Dashboard
// @Produce     json
// @Security    BearerAuth
//
// @Success     200  {object}  services.UserCounts
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /dashboard/users [get]
func (h *Handlers) DashboardUsers(c *gin.Context) {
	uc, err := h.dashboard.UserStats(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeStatsFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, uc)
}
