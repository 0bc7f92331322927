// Package search is the course query façade: it maps a user search onto a
// catalog API query, serves it through the response cache, flattens the
// payload and feeds the name index.
package search

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/garyellow/nycu-course-go/internal/acysem"
	"github.com/garyellow/nycu-course-go/internal/cache"
	"github.com/garyellow/nycu-course-go/internal/config"
	"github.com/garyellow/nycu-course-go/internal/course"
	"github.com/garyellow/nycu-course-go/internal/ctxutil"
	"github.com/garyellow/nycu-course-go/internal/department"
	domerrors "github.com/garyellow/nycu-course-go/internal/errors"
	"github.com/garyellow/nycu-course-go/internal/nameindex"
	"github.com/garyellow/nycu-course-go/internal/nycuapi"
	"github.com/garyellow/nycu-course-go/internal/suggest"
)

// Search categories.
const (
	CategoryCourseName        = "courseName"
	CategoryTeacherName       = "teacherName"
	CategoryDepartmentName    = "departmentName"
	CategoryCourseID          = "courseId"
	CategoryCoursePermanentID = "coursePermanentId"
)

var categoryOptions = map[string]nycuapi.Option{
	CategoryCourseName:        nycuapi.OptionCourseName,
	CategoryTeacherName:       nycuapi.OptionTeacherName,
	CategoryDepartmentName:    nycuapi.OptionDepartment,
	CategoryCourseID:          nycuapi.OptionCourseID,
	CategoryCoursePermanentID: nycuapi.OptionPermanentID,
}

// Parameters is a course search.
type Parameters struct {
	Period   string `json:"acysem"`
	Category string `json:"category"`
	Query    string `json:"query"`
	Language string `json:"language"`
	// Force skips the cache read. The fresh result is still stored.
	Force bool `json:"force"`
}

// CoursesResult is a course search answer. Time is when the payload was
// fetched from the catalog API.
type CoursesResult struct {
	Courses []course.Course `json:"courses"`
	Time    time.Time       `json:"time"`
}

// Upstream is the catalog API.
type Upstream interface {
	FetchCourses(ctx context.Context, q nycuapi.CourseQuery) (json.RawMessage, error)
	Do(ctx context.Context, r nycuapi.Request) (json.RawMessage, error)
}

// NameIndex records and reads course and teacher names.
type NameIndex interface {
	Record(ctx context.Context, period string, courses []course.Course) (nameindex.Stats, error)
	suggest.NameSource
}

// Departments reads crawled department lists.
type Departments interface {
	List(ctx context.Context, period string) ([]department.Department, bool, error)
	Lookup(ctx context.Context, period, language, query string) (department.Department, bool, bool, error)
}

// Warmer starts department crawls.
type Warmer interface {
	Start(ctx context.Context, period string) <-chan struct{}
}

// Options wires a Service.
type Options struct {
	Upstream    Upstream
	Cache       *cache.Cache
	Index       NameIndex
	Departments Departments
	Warmer      Warmer
	Suggester   *suggest.Suggester
	// WaitForWarmup makes department searches wait for a crawl of an
	// unwarmed period instead of failing with ErrDepartmentsNotReady.
	WaitForWarmup bool
}

// Service implements the course search operations.
type Service struct {
	upstream      Upstream
	cache         *cache.Cache
	index         NameIndex
	departments   Departments
	warmer        Warmer
	suggester     *suggest.Suggester
	waitForWarmup bool
	now           func() time.Time

	indexing sync.WaitGroup
}

// New creates a Service.
func New(opts Options) *Service {
	return &Service{
		upstream:      opts.Upstream,
		cache:         opts.Cache,
		index:         opts.Index,
		departments:   opts.Departments,
		warmer:        opts.Warmer,
		suggester:     opts.Suggester,
		waitForWarmup: opts.WaitForWarmup,
		now:           time.Now,
	}
}

func normalizeLanguage(language string) (string, error) {
	switch language {
	case "":
		return course.LangZH, nil
	case course.LangZH, course.LangEN:
		return language, nil
	default:
		return "", domerrors.NewValidationError("language", "must be zh-tw or en-us")
	}
}

// GetCourses runs a course search.
//
// A department search whose name matches no department returns an empty
// result without calling the catalog API. When the catalog API fails, the
// result holds no courses and the current time, and the error wraps
// ErrUpstreamUnavailable. The name index is updated in the background on
// every successful answer, cached or not.
func (s *Service) GetCourses(ctx context.Context, p Parameters) (*CoursesResult, error) {
	if err := acysem.Validate(p.Period); err != nil {
		return nil, err
	}
	option, ok := categoryOptions[p.Category]
	if !ok {
		return nil, domerrors.NewValidationError("category", "unknown search category")
	}
	language, err := normalizeLanguage(p.Language)
	if err != nil {
		return nil, err
	}
	query := strings.TrimSpace(p.Query)
	if query == "" {
		return nil, domerrors.NewValidationError("query", "must not be empty")
	}
	ctx = ctxutil.WithPeriod(ctx, p.Period)

	parameter := query
	if option == nycuapi.OptionDepartment {
		dep, found, err := s.resolveDepartment(ctx, p.Period, language, query)
		if err != nil {
			return nil, err
		}
		if !found {
			slog.DebugContext(ctx, "No department matches query", "query", query)
			return &CoursesResult{Courses: []course.Course{}, Time: s.now()}, nil
		}
		parameter = dep.ID
	}

	q := nycuapi.CourseQuery{Period: p.Period, Option: option, Parameter: parameter}
	req := q.Request()
	key := cache.Key{Operation: req.Operation, Parameters: req.Params()}
	entry, err := s.cache.Fetch(ctx, key, func(ctx context.Context) (json.RawMessage, error) {
		return s.upstream.FetchCourses(ctx, q)
	}, p.Force)
	if err != nil {
		return &CoursesResult{Courses: []course.Course{}, Time: entry.Time}, err
	}

	courses := course.Normalize(entry.Data)
	s.recordNames(ctx, p.Period, courses)
	return &CoursesResult{Courses: courses, Time: entry.Time}, nil
}

// resolveDepartment maps a department name to its id. An unwarmed period
// starts a crawl.
func (s *Service) resolveDepartment(ctx context.Context, period, language, name string) (department.Department, bool, error) {
	dep, found, ready, err := s.departments.Lookup(ctx, period, language, name)
	if err != nil || ready {
		return dep, found, err
	}

	done := s.warmer.Start(ctx, period)
	if !s.waitForWarmup {
		return department.Department{}, false, domerrors.ErrDepartmentsNotReady
	}
	select {
	case <-done:
	case <-ctx.Done():
		return department.Department{}, false, ctx.Err()
	}

	dep, found, ready, err = s.departments.Lookup(ctx, period, language, name)
	if err == nil && !ready {
		err = domerrors.ErrDepartmentsNotReady
	}
	return dep, found, err
}

// recordNames feeds the name index without delaying the caller.
func (s *Service) recordNames(ctx context.Context, period string, courses []course.Course) {
	if len(courses) == 0 {
		return
	}
	bg := ctxutil.PreserveTracing(ctx)
	s.indexing.Add(1)
	go func() {
		defer s.indexing.Done()
		ctx, cancel := context.WithTimeout(bg, config.NameIndexUpdate)
		defer cancel()
		stats, err := s.index.Record(ctx, period, courses)
		if err != nil {
			slog.WarnContext(ctx, "Failed to update name index", "error", err)
			return
		}
		slog.DebugContext(ctx, "Name index updated",
			"course_names", stats.CourseNames, "teacher_names", stats.TeacherNames)
	}()
}

// Wait blocks until pending name index updates finish.
func (s *Service) Wait() {
	s.indexing.Wait()
}

// GetDepartments returns the crawled departments of period. An unwarmed
// period starts a crawl and returns ErrDepartmentsNotReady.
func (s *Service) GetDepartments(ctx context.Context, period string) ([]department.Department, error) {
	if err := acysem.Validate(period); err != nil {
		return nil, err
	}
	deps, ok, err := s.departments.List(ctx, period)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.warmer.Start(ctx, period)
		return nil, domerrors.ErrDepartmentsNotReady
	}
	return deps, nil
}

// GetCachedCourseNames returns the course names seen for period.
func (s *Service) GetCachedCourseNames(ctx context.Context, period, language string) ([]string, error) {
	language, err := normalizeLanguage(language)
	if err != nil {
		return nil, err
	}
	return s.index.CourseNames(ctx, period, language)
}

// GetCachedTeacherNames returns the teacher names seen for period. Teacher
// names are not localized, so language is only validated.
func (s *Service) GetCachedTeacherNames(ctx context.Context, period, language string) ([]string, error) {
	if _, err := normalizeLanguage(language); err != nil {
		return nil, err
	}
	return s.index.TeacherNames(ctx, period)
}

// GetAcademicPeriods lists the periods known to the catalog API, as cached.
func (s *Service) GetAcademicPeriods(ctx context.Context) ([]string, error) {
	return s.academicPeriods(ctx, false)
}

// RefreshAcademicPeriods refetches the period list and replaces the cached one.
func (s *Service) RefreshAcademicPeriods(ctx context.Context) ([]string, error) {
	return s.academicPeriods(ctx, true)
}

func (s *Service) academicPeriods(ctx context.Context, force bool) ([]string, error) {
	req := nycuapi.AcademicPeriodsRequest()
	key := cache.Key{Operation: req.Operation, Parameters: req.Params()}
	entry, err := s.cache.Fetch(ctx, key, func(ctx context.Context) (json.RawMessage, error) {
		return s.upstream.Do(ctx, req)
	}, force)
	if err != nil {
		return nil, err
	}
	return nycuapi.ParseAcademicPeriods(entry.Data), nil
}

// Suggest ranks recorded names against a partial query.
func (s *Service) Suggest(ctx context.Context, req suggest.Request) ([]string, error) {
	return s.suggester.Suggest(ctx, req)
}
