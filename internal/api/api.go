// Package api exposes the course search service over HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyellow/nycu-course-go/internal/acysem"
	"github.com/garyellow/nycu-course-go/internal/course"
	"github.com/garyellow/nycu-course-go/internal/department"
	domerrors "github.com/garyellow/nycu-course-go/internal/errors"
	"github.com/garyellow/nycu-course-go/internal/search"
	"github.com/garyellow/nycu-course-go/internal/suggest"
)

// Service is the subset of search.Service served over HTTP.
type Service interface {
	GetCourses(ctx context.Context, p search.Parameters) (*search.CoursesResult, error)
	GetDepartments(ctx context.Context, period string) ([]department.Department, error)
	GetCachedCourseNames(ctx context.Context, period, language string) ([]string, error)
	GetCachedTeacherNames(ctx context.Context, period, language string) ([]string, error)
	GetAcademicPeriods(ctx context.Context) ([]string, error)
	Suggest(ctx context.Context, req suggest.Request) ([]string, error)
}

var _ Service = (*search.Service)(nil)

// ErrorReporter receives failures that are not the caller's fault.
type ErrorReporter func(ctx context.Context, err error)

// Handler serves the /api routes.
type Handler struct {
	service Service
	report  ErrorReporter
}

// NewHandler creates a Handler. report may be nil.
func NewHandler(service Service, report ErrorReporter) *Handler {
	if report == nil {
		report = func(context.Context, error) {}
	}
	return &Handler{service: service, report: report}
}

// Register mounts the API routes on r.
func (h *Handler) Register(r gin.IRouter) {
	g := r.Group("/api")
	g.POST("/courses", h.getCourses)
	g.GET("/acysem", h.getAcademicPeriods)
	g.GET("/departments", h.getDepartments)
	g.GET("/names/courses", h.getCourseNames)
	g.GET("/names/teachers", h.getTeacherNames)
	g.POST("/suggestions", h.suggest)
}

type errorResponse struct {
	Error string `json:"error"`
}

type periodEntry struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

func (h *Handler) getCourses(c *gin.Context) {
	var p search.Parameters
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	result, err := h.service.GetCourses(c.Request.Context(), p)
	if err != nil {
		status := h.fail(c, err)
		if result != nil && status == http.StatusBadGateway {
			// The empty result still tells the client when the attempt was made.
			c.JSON(status, gin.H{"error": err.Error(), "courses": result.Courses, "time": result.Time})
			return
		}
		c.JSON(status, errorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) getAcademicPeriods(c *gin.Context) {
	periods, err := h.service.GetAcademicPeriods(c.Request.Context())
	if err != nil {
		c.JSON(h.fail(c, err), errorResponse{Error: err.Error()})
		return
	}

	language := c.DefaultQuery("language", course.LangZH)
	if language != course.LangZH && language != course.LangEN {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "language must be zh-tw or en-us"})
		return
	}
	entries := make([]periodEntry, 0, len(periods))
	for _, p := range periods {
		entries = append(entries, periodEntry{Value: p, Label: acysem.Label(p, language)})
	}
	c.JSON(http.StatusOK, gin.H{"acysem": entries})
}

func (h *Handler) getDepartments(c *gin.Context) {
	deps, err := h.service.GetDepartments(c.Request.Context(), c.Query("acysem"))
	if err != nil {
		c.JSON(h.fail(c, err), errorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"departments": deps})
}

func (h *Handler) getCourseNames(c *gin.Context) {
	names, err := h.service.GetCachedCourseNames(c.Request.Context(), c.Query("acysem"), c.Query("language"))
	if err != nil {
		c.JSON(h.fail(c, err), errorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"names": names})
}

func (h *Handler) getTeacherNames(c *gin.Context) {
	names, err := h.service.GetCachedTeacherNames(c.Request.Context(), c.Query("acysem"), c.Query("language"))
	if err != nil {
		c.JSON(h.fail(c, err), errorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"names": names})
}

func (h *Handler) suggest(c *gin.Context) {
	var req suggest.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	names, err := h.service.Suggest(c.Request.Context(), req)
	if err != nil {
		c.JSON(h.fail(c, err), errorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"suggestions": names})
}

// fail maps err to a status code and reports server-side failures.
func (h *Handler) fail(c *gin.Context, err error) int {
	status := statusFor(err)
	if status == http.StatusServiceUnavailable {
		c.Header("Retry-After", "30")
	}
	if status >= http.StatusInternalServerError {
		ctx := c.Request.Context()
		slog.WarnContext(ctx, "API request failed", "path", c.FullPath(), "error", err)
		h.report(ctx, err)
	}
	return status
}

func statusFor(err error) int {
	switch {
	case domerrors.IsInvalidInput(err):
		return http.StatusBadRequest
	case domerrors.IsDepartmentsNotReady(err):
		return http.StatusServiceUnavailable
	case domerrors.IsUpstreamUnavailable(err), errors.Is(err, domerrors.ErrMalformedPayload):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return 499
	default:
		return http.StatusInternalServerError
	}
}

// Timeout bounds the request context of every API call.
func Timeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
