// Package course flattens catalog API course list payloads into Course records.
package course

// Language keys of a bilingual Name.
const (
	LangZH = "zh-tw"
	LangEN = "en-us"
)

// Languages lists every language a Name carries.
var Languages = []string{LangZH, LangEN}

// Name is a bilingual string keyed by language.
type Name map[string]string

// Course is one course section of a period.
type Course struct {
	Year            int     `json:"year"`
	Semester        int     `json:"semester"`
	ID              string  `json:"id"`
	PermanentID     string  `json:"permanentId"`
	Name            Name    `json:"name"`
	Credits         float64 `json:"credits"`
	Hours           float64 `json:"hours"`
	Teacher         string  `json:"teacher"`
	TeacherLink     *string `json:"teacherLink,omitempty"`
	Time            string  `json:"time"`
	DepartmentID    string  `json:"departmentId"`
	DepartmentName  Name    `json:"departmentName"`
	Type            Name    `json:"type"`
	TypeInformation *string `json:"typeInformation,omitempty"` // joined brief footnotes
	Language        string  `json:"language"`
	Limit           int     `json:"limit"`
	Registered      int     `json:"registered"`
	Memo            *string `json:"memo,omitempty"`
	Link            *string `json:"link,omitempty"`
}
