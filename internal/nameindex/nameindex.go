// Package nameindex maintains the growth-only sets of course and teacher
// names seen per period. The sets feed the suggestion matcher.
package nameindex

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/garyellow/nycu-course-go/internal/course"
	"github.com/garyellow/nycu-course-go/internal/kvstore"
	"github.com/garyellow/nycu-course-go/internal/metrics"
	"github.com/garyellow/nycu-course-go/internal/sliceutil"
	"github.com/garyellow/nycu-course-go/internal/stringutil"
)

// TeacherSeparators delimit co-teachers in the upstream teacher field.
const TeacherSeparators = ",，、"

// Stats counts the names a Record call appended.
type Stats struct {
	CourseNames  int
	TeacherNames int
}

// Index reads and appends name sets in a kvstore.Store.
//
// Record serializes its read-modify-write cycles within the process. Two
// processes sharing one store can still lose each other's appends; the next
// batch containing the lost names adds them back.
type Index struct {
	store   kvstore.Store
	metrics *metrics.Metrics
	mu      sync.Mutex
}

// New creates an index over store. m may be nil.
func New(store kvstore.Store, m *metrics.Metrics) *Index {
	return &Index{store: store, metrics: m}
}

func courseKey(period, language string) string {
	return fmt.Sprintf("names:course:%s:%s", period, language)
}

func teacherKey(period string) string {
	return "names:teacher:" + period
}

// Record appends the names of courses that are not yet in the period's sets.
// Recording the same batch twice appends nothing the second time.
func (x *Index) Record(ctx context.Context, period string, courses []course.Course) (Stats, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	var stats Stats
	for _, lang := range course.Languages {
		names := make([]string, 0, len(courses))
		for _, c := range courses {
			if n := c.Name[lang]; n != "" {
				names = append(names, n)
			}
		}
		added, err := x.append(ctx, courseKey(period, lang), names)
		if err != nil {
			return stats, err
		}
		stats.CourseNames += added
	}

	var teachers []string
	for _, c := range courses {
		teachers = append(teachers, stringutil.SplitAny(c.Teacher, TeacherSeparators)...)
	}
	added, err := x.append(ctx, teacherKey(period), teachers)
	if err != nil {
		return stats, err
	}
	stats.TeacherNames = added

	x.metrics.RecordNameInsertions("course", stats.CourseNames)
	x.metrics.RecordNameInsertions("teacher", stats.TeacherNames)
	return stats, nil
}

func (x *Index) append(ctx context.Context, key string, names []string) (int, error) {
	if len(names) == 0 {
		return 0, nil
	}
	current, err := x.load(ctx, key)
	if err != nil {
		return 0, err
	}
	grown, added := sliceutil.Union(current, names...)
	if added == 0 {
		return 0, nil
	}
	b, err := json.Marshal(grown)
	if err != nil {
		return 0, fmt.Errorf("encode %s: %w", key, err)
	}
	if err := x.store.Set(ctx, key, string(b)); err != nil {
		return 0, err
	}
	return added, nil
}

func (x *Index) load(ctx context.Context, key string) ([]string, error) {
	raw, ok, err := x.store.Get(ctx, key)
	if err != nil || !ok {
		return []string{}, err
	}
	var names []string
	if err := json.Unmarshal([]byte(raw), &names); err != nil {
		// A corrupt set is rebuilt from the following batches.
		return []string{}, nil
	}
	return names, nil
}

// CourseNames returns the course names recorded for period in language.
func (x *Index) CourseNames(ctx context.Context, period, language string) ([]string, error) {
	return x.load(ctx, courseKey(period, language))
}

// TeacherNames returns the teacher names recorded for period.
func (x *Index) TeacherNames(ctx context.Context, period string) ([]string, error) {
	return x.load(ctx, teacherKey(period))
}
