// Reflection cache endpoints.
//
//   - GET    /api/v1/reflections         (list, paginated, ETag support)
//   - POST   /api/v1/reflections         (create-if-absent)
//   - GET    /api/v1/reflections/{date}  (read)
//   - PUT    /api/v1/reflections/{date}  (overwrite content)
//   - DELETE /api/v1/reflections/{date}  (remove)
//
// {date} accepts "MM-DD", "14 OCTOBER", or "YYYY-MM-DD".
package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/daily-reflections-bot/internal/dates"
	"github.com/tbourn/daily-reflections-bot/internal/domain"
	"github.com/tbourn/daily-reflections-bot/internal/repo"
	"github.com/tbourn/daily-reflections-bot/internal/services"
	"github.com/tbourn/daily-reflections-bot/internal/utils"
)

// ReflectionRequest is the JSON payload for create and update. Date is
// required on create and ignored on update, where the path decides.
type ReflectionRequest struct {
	Date       string  `json:"date" example:"01-05"`
	Title      string  `json:"title" binding:"max=512" example:"A PROGRAM FOR LIVING"`
	Reflection string  `json:"reflection" example:"..."`
	QuoteText  string  `json:"quote_text" example:"..."`
	PageNumber *int    `json:"page_number,omitempty" binding:"omitempty,min=1" example:"86"`
	BookName   *string `json:"book_name,omitempty" example:"ALCOHOLICS ANONYMOUS"`
}

func (r ReflectionRequest) row() *domain.Reflection {
	return &domain.Reflection{
		DateString: r.Date,
		Title:      strings.TrimSpace(r.Title),
		Body:       r.Reflection,
		QuoteText:  r.QuoteText,
		PageNumber: r.PageNumber,
		BookName:   r.BookName,
	}
}

// ListReflectionsResponse wraps a page of reflections.
type ListReflectionsResponse struct {
	Reflections []domain.Reflection `json:"reflections"`
	Pagination  Pagination          `json:"pagination"`
}

// pathDate parses the :date param or writes a 400.
func pathDate(c *gin.Context) (dates.Canonical, bool) {
	d, err := dates.Parse(c.Param("date"))
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeInvalidDate, "date must be MM-DD, \"14 OCTOBER\", or YYYY-MM-DD")
		return dates.Canonical{}, false
	}
	return d, true
}

// ListReflections godoc
// @ID          listReflections
// @Summary     List cached reflections (paginated)
// @Description Returns a page of cached reflections in calendar order. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Reflections
// @Produce     json
//
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"abc123\")
// @Param       page           query   int     false "Page number"                  minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"               minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListReflectionsResponse
// @Header      200  {string} ETag  "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /reflections [get]
func (h *Handlers) ListReflections(c *gin.Context) {
	ctx := c.Request.Context()
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	if svc, isSvc := h.refSvc.(*services.ReflectionService); isSvc && svc.DB != nil {
		if count, maxTS, err := repo.ReflectionsStats(ctx, svc.DB); err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.UnixNano()
			}
			etag := fmt.Sprintf(`W/"reflections:%d:%d:%d:%d"`, count, ts, page, pageSize)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	items, total, err := h.refSvc.ListPage(ctx, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not list reflections")
		return
	}
	totalPages := utils.TotalPages(total, pageSize)
	ok(c, http.StatusOK, ListReflectionsResponse{
		Reflections: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// GetReflection godoc
// @ID          getReflection
// @Summary     Get a cached reflection
// @Tags        Reflections
// @Produce     json
// @Param       date  path  string  true  "Date"  example(01-05)
// @Success     200  {object} domain.Reflection
// @Failure     400  {object} handlers.ErrorResponse "Invalid date"
// @Failure     404  {object} handlers.ErrorResponse "Not cached"
// @Router      /reflections/{date} [get]
func (h *Handlers) GetReflection(c *gin.Context) {
	d, valid := pathDate(c)
	if !valid {
		return
	}
	r, err := h.refSvc.Get(c.Request.Context(), d)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, r)
}

// CreateReflection godoc
// @ID          createReflection
// @Summary     Cache a reflection
// @Description Stores the reflection under its canonical date. An existing row for that date is kept and returned with 200.
// @Tags        Reflections
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.ReflectionRequest  true  "Reflection"
// @Success     201  {object} domain.Reflection "Created"
// @Success     200  {object} domain.Reflection "Already cached"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     503  {object} handlers.ErrorResponse "Database unavailable"
// @Router      /reflections [post]
func (h *Handlers) CreateReflection(c *gin.Context) {
	var req ReflectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Date) == "" {
		fail(c, http.StatusBadRequest, ErrCodeInvalidDate, "date is required")
		return
	}

	ctx := c.Request.Context()
	row := req.row()
	created, err := h.refSvc.Create(ctx, row)
	if err != nil {
		failErr(c, err)
		return
	}
	if created {
		ok(c, http.StatusCreated, row)
		return
	}

	d, _ := dates.Parse(row.DateString)
	existing, err := h.refSvc.Get(ctx, d)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, existing)
}

// UpdateReflection godoc
// @ID          updateReflection
// @Summary     Overwrite a cached reflection
// @Tags        Reflections
// @Accept      json
// @Param       date  path  string                      true  "Date"  example(01-05)
// @Param       body  body  handlers.ReflectionRequest  true  "New content"
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Not cached"
// @Router      /reflections/{date} [put]
func (h *Handlers) UpdateReflection(c *gin.Context) {
	d, valid := pathDate(c)
	if !valid {
		return
	}
	var req ReflectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if err := h.refSvc.Update(c.Request.Context(), d, req.row()); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}

// DeleteReflection godoc
// @ID          deleteReflection
// @Summary     Remove a cached reflection
// @Tags        Reflections
// @Param       date  path  string  true  "Date"  example(01-05)
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Invalid date"
// @Failure     404  {object} handlers.ErrorResponse "Not cached"
// @Router      /reflections/{date} [delete]
func (h *Handlers) DeleteReflection(c *gin.Context) {
	d, valid := pathDate(c)
	if !valid {
		return
	}
	if err := h.refSvc.Delete(c.Request.Context(), d); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}
