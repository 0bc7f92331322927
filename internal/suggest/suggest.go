// Package suggest ranks recorded course and teacher names against a partial
// query for autocomplete.
package suggest

import (
	"context"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"golang.org/x/text/width"

	"github.com/garyellow/nycu-course-go/internal/acysem"
	"github.com/garyellow/nycu-course-go/internal/course"
	domerrors "github.com/garyellow/nycu-course-go/internal/errors"
	"github.com/garyellow/nycu-course-go/internal/stringutil"
)

// Suggestion categories.
const (
	CategoryCourseName  = "courseName"
	CategoryTeacherName = "teacherName"
)

// Matcher ranks corpus entries against query, best first.
type Matcher interface {
	Search(corpus []string, query string) []string
}

// FuzzyMatcher matches when the query's characters appear in order in an
// entry (case and width insensitive), ranked by edit distance. When nothing
// matches in order, entries containing every query character in any order
// are returned in corpus order, so "工程資訊" still finds "資訊工程".
type FuzzyMatcher struct{}

// Search implements Matcher.
func (FuzzyMatcher) Search(corpus []string, query string) []string {
	q := strings.TrimSpace(width.Fold.String(query))
	if q == "" {
		return []string{}
	}

	folded := make([]string, len(corpus))
	for i, c := range corpus {
		folded[i] = width.Fold.String(c)
	}

	ranks := fuzzy.RankFindNormalizedFold(q, folded)
	if len(ranks) > 0 {
		sort.Stable(ranks)
		out := make([]string, len(ranks))
		for i, r := range ranks {
			out[i] = corpus[r.OriginalIndex]
		}
		return out
	}

	out := []string{}
	for i, f := range folded {
		if stringutil.ContainsAllRunes(f, q) {
			out = append(out, corpus[i])
		}
	}
	return out
}

// NameSource reads the recorded name sets.
type NameSource interface {
	CourseNames(ctx context.Context, period, language string) ([]string, error)
	TeacherNames(ctx context.Context, period string) ([]string, error)
}

// Request is an autocomplete query.
type Request struct {
	Period   string `json:"acysem"`
	Category string `json:"category"`
	Query    string `json:"query"`
	Language string `json:"language"`
}

// Suggester answers autocomplete queries from the name index.
type Suggester struct {
	names   NameSource
	matcher Matcher
	limit   int
}

// New creates a suggester returning at most limit names. A nil matcher
// means FuzzyMatcher.
func New(names NameSource, matcher Matcher, limit int) *Suggester {
	if matcher == nil {
		matcher = FuzzyMatcher{}
	}
	return &Suggester{names: names, matcher: matcher, limit: limit}
}

// Suggest returns the best matching recorded names. Names are only known
// for periods that have been searched before.
func (s *Suggester) Suggest(ctx context.Context, req Request) ([]string, error) {
	if err := acysem.Validate(req.Period); err != nil {
		return nil, err
	}
	language := req.Language
	if language == "" {
		language = course.LangZH
	}

	var corpus []string
	var err error
	switch req.Category {
	case CategoryCourseName:
		if language != course.LangZH && language != course.LangEN {
			return nil, domerrors.NewValidationError("language", "must be zh-tw or en-us")
		}
		corpus, err = s.names.CourseNames(ctx, req.Period, language)
	case CategoryTeacherName:
		corpus, err = s.names.TeacherNames(ctx, req.Period)
	default:
		return nil, domerrors.NewValidationError("category", "must be courseName or teacherName")
	}
	if err != nil {
		return nil, err
	}

	matches := s.matcher.Search(corpus, req.Query)
	if s.limit > 0 && len(matches) > s.limit {
		matches = matches[:s.limit]
	}
	return matches, nil
}
