package department

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/garyellow/nycu-course-go/internal/course"
	"github.com/garyellow/nycu-course-go/internal/nycuapi"
)

// uuidKeyLength is the length of category keys that are department ids.
const uuidKeyLength = 36

// HierarchySource fetches one level of the department hierarchy.
type HierarchySource interface {
	FetchDepartmentLevel(ctx context.Context, q nycuapi.LevelQuery) (json.RawMessage, error)
}

// Resolver walks the hierarchy of one period.
type Resolver struct {
	source HierarchySource
}

// NewResolver creates a resolver over source.
func NewResolver(source HierarchySource) *Resolver {
	return &Resolver{source: source}
}

// labels is a level fetched in both languages. Keys follow zh-tw order.
type labels struct {
	keys []string
	zh   map[string]string
	en   map[string]string
}

func (l labels) name(key string) course.Name {
	return course.Name{course.LangZH: l.zh[key], course.LangEN: l.en[key]}
}

// Resolve crawls every type, category, college and department of period.
//
// Levels are strictly sequential; the two language requests of a level run
// concurrently. Any failed request fails the whole crawl: a partial list
// would hide departments until the next refresh, so none is returned.
func (r *Resolver) Resolve(ctx context.Context, period string) ([]Department, error) {
	raw, err := r.source.FetchDepartmentLevel(ctx, nycuapi.LevelQuery{
		Operation: nycuapi.OpTypes,
		Period:    period,
		Language:  nycuapi.LangZH,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch types: %w", err)
	}

	departments := []Department{}
	for _, typeID := range nycuapi.ParseTypes(raw) {
		deps, err := r.categories(ctx, period, typeID)
		if err != nil {
			return nil, fmt.Errorf("type %s: %w", typeID, err)
		}
		departments = append(departments, deps...)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return departments, nil
}

// categories resolves one type. The category key alone decides the shape of
// the subtree below it, because the upstream nests program types to
// different depths:
//
//   - "" means the type has no categories; its departments are listed
//     directly with a wildcard college.
//   - a 36 character key is a department uid, so the category itself is the
//     leaf and no college request is made.
//   - anything else is a real category with colleges below it.
//
// These are the only signals the upstream gives. A schema change there
// breaks this switch.
func (r *Resolver) categories(ctx context.Context, period, typeID string) ([]Department, error) {
	cats, err := r.fetchLabels(ctx, nycuapi.LevelQuery{
		Operation: nycuapi.OpCategories,
		Period:    period,
		TypeID:    typeID,
	})
	if err != nil {
		return nil, err
	}

	var departments []Department
	for _, key := range cats.keys {
		switch len(key) {
		case 0:
			deps, err := r.departments(ctx, period, typeID, key, nycuapi.LevelWildcard)
			if err != nil {
				return nil, err
			}
			departments = append(departments, deps...)
		case uuidKeyLength:
			departments = append(departments, Department{
				ID:         key,
				Name:       cats.name(key),
				TypeID:     typeID,
				CategoryID: key,
				CollegeID:  nycuapi.LevelWildcard,
				Grades:     []Grade{},
			})
		default:
			deps, err := r.colleges(ctx, period, typeID, key)
			if err != nil {
				return nil, fmt.Errorf("category %s: %w", key, err)
			}
			departments = append(departments, deps...)
		}
	}
	return departments, ctx.Err()
}

// colleges resolves one category. An empty college key lists the
// category's departments with a wildcard college.
func (r *Resolver) colleges(ctx context.Context, period, typeID, categoryID string) ([]Department, error) {
	cols, err := r.fetchLabels(ctx, nycuapi.LevelQuery{
		Operation:  nycuapi.OpColleges,
		Period:     period,
		TypeID:     typeID,
		CategoryID: categoryID,
	})
	if err != nil {
		return nil, err
	}

	var departments []Department
	for _, key := range cols.keys {
		collegeID := key
		if collegeID == "" {
			collegeID = nycuapi.LevelWildcard
		}
		deps, err := r.departments(ctx, period, typeID, categoryID, collegeID)
		if err != nil {
			return nil, fmt.Errorf("college %s: %w", collegeID, err)
		}
		departments = append(departments, deps...)
	}
	return departments, ctx.Err()
}

func (r *Resolver) departments(ctx context.Context, period, typeID, categoryID, collegeID string) ([]Department, error) {
	deps, err := r.fetchLabels(ctx, nycuapi.LevelQuery{
		Operation:  nycuapi.OpDepartments,
		Period:     period,
		TypeID:     typeID,
		CategoryID: categoryID,
		CollegeID:  collegeID,
	})
	if err != nil {
		return nil, err
	}

	storedCategory := categoryID
	if storedCategory == "" {
		storedCategory = nycuapi.LevelWildcard
	}
	out := make([]Department, 0, len(deps.keys))
	for _, key := range deps.keys {
		out = append(out, Department{
			ID:         key,
			Name:       deps.name(key),
			TypeID:     typeID,
			CategoryID: storedCategory,
			CollegeID:  collegeID,
			Grades:     []Grade{},
		})
	}
	return out, nil
}

// fetchLabels issues the zh-tw and en-us requests of a level concurrently.
// Keys that only the English listing has are appended after the zh-tw keys.
func (r *Resolver) fetchLabels(ctx context.Context, q nycuapi.LevelQuery) (labels, error) {
	var zhRaw, enRaw json.RawMessage
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zq := q
		zq.Language = nycuapi.LangZH
		var err error
		zhRaw, err = r.source.FetchDepartmentLevel(gctx, zq)
		return err
	})
	g.Go(func() error {
		eq := q
		eq.Language = nycuapi.LangEN
		var err error
		enRaw, err = r.source.FetchDepartmentLevel(gctx, eq)
		return err
	})
	if err := g.Wait(); err != nil {
		return labels{}, fmt.Errorf("fetch %s: %w", q.Operation, err)
	}

	out := labels{zh: map[string]string{}, en: map[string]string{}}
	for _, l := range nycuapi.ParseLabels(zhRaw) {
		if _, dup := out.zh[l.Key]; !dup {
			out.keys = append(out.keys, l.Key)
		}
		out.zh[l.Key] = l.Value
	}
	for _, l := range nycuapi.ParseLabels(enRaw) {
		if _, inZH := out.zh[l.Key]; !inZH {
			if _, dup := out.en[l.Key]; !dup {
				out.keys = append(out.keys, l.Key)
			}
		}
		out.en[l.Key] = l.Value
	}
	return out, nil
}

