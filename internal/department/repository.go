package department

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/garyellow/nycu-course-go/internal/course"
	"github.com/garyellow/nycu-course-go/internal/kvstore"
)

func listKey(period string) string {
	return "departments:" + period
}

func namesKey(period, language string) string {
	return fmt.Sprintf("departments:names:%s:%s", period, language)
}

// Repository persists crawled department lists in a kvstore.Store.
type Repository struct {
	store kvstore.Store
}

// NewRepository creates a repository over store.
func NewRepository(store kvstore.Store) *Repository {
	return &Repository{store: store}
}

// Save replaces the department list of period and its per-language name
// projections.
func (r *Repository) Save(ctx context.Context, period string, departments []Department) error {
	b, err := json.Marshal(departments)
	if err != nil {
		return fmt.Errorf("encode departments: %w", err)
	}
	if err := r.store.Set(ctx, listKey(period), string(b)); err != nil {
		return err
	}
	for _, lang := range course.Languages {
		names := make([]string, len(departments))
		for i, d := range departments {
			names[i] = d.Name[lang]
		}
		b, err := json.Marshal(names)
		if err != nil {
			return fmt.Errorf("encode department names: %w", err)
		}
		if err := r.store.Set(ctx, namesKey(period, lang), string(b)); err != nil {
			return err
		}
	}
	return nil
}

// List returns the saved departments of period. ok is false when the period
// has not been crawled yet.
func (r *Repository) List(ctx context.Context, period string) (departments []Department, ok bool, err error) {
	raw, ok, err := r.store.Get(ctx, listKey(period))
	if err != nil || !ok {
		return nil, false, err
	}
	if err := json.Unmarshal([]byte(raw), &departments); err != nil {
		return nil, false, fmt.Errorf("decode departments: %w", err)
	}
	return departments, true, nil
}

// Names returns the department names of period in language, in list order.
func (r *Repository) Names(ctx context.Context, period, language string) ([]string, bool, error) {
	raw, ok, err := r.store.Get(ctx, namesKey(period, language))
	if err != nil || !ok {
		return nil, false, err
	}
	var names []string
	if err := json.Unmarshal([]byte(raw), &names); err != nil {
		return nil, false, fmt.Errorf("decode department names: %w", err)
	}
	return names, true, nil
}

// Lookup returns the first department of period whose name in language
// contains query. found is false when nothing matches; ready is false when
// the period has not been crawled.
func (r *Repository) Lookup(ctx context.Context, period, language, query string) (dep Department, found, ready bool, err error) {
	departments, ok, err := r.List(ctx, period)
	if err != nil || !ok {
		return Department{}, false, false, err
	}
	if query == "" {
		return Department{}, false, true, nil
	}
	for _, d := range departments {
		if strings.Contains(d.Name[language], query) {
			return d, true, true, nil
		}
	}
	return Department{}, false, true, nil
}
