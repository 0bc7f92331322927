// Package department crawls the catalog's department hierarchy and keeps
// the resulting flat department list per period.
package department

import "github.com/garyellow/nycu-course-go/internal/course"

// Department is a leaf of the type/category/college/department hierarchy.
// Absent hierarchy levels hold nycuapi.LevelWildcard.
type Department struct {
	ID         string      `json:"id"`
	Name       course.Name `json:"name"`
	TypeID     string      `json:"typeId"`
	CategoryID string      `json:"categoryId"`
	CollegeID  string      `json:"collegeId"`
	// Grades is never populated; no caller needs the grade level.
	Grades []Grade `json:"grades"`
}

// Grade is a class year within a department.
type Grade struct {
	Name  course.Name `json:"name"`
	Value string      `json:"value"`
}
