package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/daily-reflections-bot/internal/domain"
	"github.com/tbourn/daily-reflections-bot/internal/utils"
)

// ListDeliveriesResponse wraps the most recent delivery runs.
type ListDeliveriesResponse struct {
	Runs []domain.DeliveryRun `json:"runs"`
}

// ListDeliveries godoc
// @ID          listDeliveries
// @Summary     List recent delivery runs
// @Description Returns the most recent scheduled delivery runs from the delivery log, newest first.
// @Tags        Admin
// @Produce     json
// @Param       Authorization  header  string  true   "Bearer token"
// @Param       limit          query   int     false  "Number of runs"  minimum(1) maximum(100) default(20)
// @Success     200  {object} handlers.ListDeliveriesResponse
// @Failure     401  {object} map[string]string
// @Failure     503  {object} handlers.ErrorResponse "Delivery log unavailable"
// @Router      /deliveries [get]
func (h *Handlers) ListDeliveries(c *gin.Context) {
	if h.delivery == nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeUnavailable, "delivery is not configured")
		return
	}
	limit := min(max(utils.AtoiDefault(c.Query("limit"), 20), 1), 100)

	runs, err := h.delivery.ListRuns(c.Request.Context(), limit)
	if err != nil {
		failErr(c, err)
		return
	}
	if runs == nil {
		runs = []domain.DeliveryRun{}
	}
	ok(c, http.StatusOK, ListDeliveriesResponse{Runs: runs})
}
