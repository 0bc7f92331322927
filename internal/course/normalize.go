package course

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"

	"github.com/garyellow/nycu-course-go/internal/acysem"
	"github.com/garyellow/nycu-course-go/internal/nycuapi"
)

// Section buckets of a department entry, in emission order.
// "1" holds required and "2" elective sections.
var sectionBuckets = []string{"1", "2"}

// briefSeparator joins the brief footnotes of one section.
const briefSeparator = "、"

// languageCodeField is the per-section key of the language side table.
const languageCodeField = "授課語言代碼"

var reBRTag = regexp.MustCompile(`(?i)<br\s*/?>`)

// Normalize flattens a get_cos_list payload.
//
// Departments and sections are visited in document order and a section id
// already emitted in this batch is skipped. Sections with no id are never
// treated as duplicates. Fields that are missing or have the wrong shape come
// out as zero values; a malformed entry never aborts the batch. A payload that
// is not a JSON object yields no courses.
func Normalize(raw json.RawMessage) []Course {
	root := gjson.ParseBytes(raw)
	courses := []Course{}
	if !root.IsObject() {
		return courses
	}

	seen := make(map[string]struct{})
	root.ForEach(func(_, dep gjson.Result) bool {
		if !dep.IsObject() {
			return true
		}
		for _, bucket := range sectionBuckets {
			nycuapi.ForEachEntry(dep.Get(bucket), func(_ string, section gjson.Result) {
				// Sections without an id cannot be told apart, so all are kept.
				if id := section.Get("cos_id").String(); id != "" {
					if _, dup := seen[id]; dup {
						return
					}
					seen[id] = struct{}{}
				}
				courses = append(courses, buildCourse(dep, section))
			})
		}
		return true
	})
	return courses
}

func buildCourse(dep, section gjson.Result) Course {
	id := section.Get("cos_id").String()
	return Course{
		Year:        parseInt(section.Get("acy").String()),
		Semester:    acysem.SemesterNumber(section.Get("sem").String()),
		ID:          id,
		PermanentID: section.Get("cos_code").String(),
		Name: Name{
			LangZH: section.Get("cos_cname").String(),
			LangEN: section.Get("cos_ename").String(),
		},
		Credits:      parseFloat(section.Get("cos_credit").String()),
		Hours:        parseFloat(section.Get("cos_hours").String()),
		Teacher:      section.Get("teacher").String(),
		TeacherLink:  optional(section.Get("TURL")),
		Time:         section.Get("cos_time").String(),
		DepartmentID: firstString(section.Get("dep_id"), dep.Get("dep_id")),
		DepartmentName: Name{
			LangZH: firstString(section.Get("dep_cname"), dep.Get("dep_cname")),
			LangEN: firstString(section.Get("dep_ename"), dep.Get("dep_ename")),
		},
		Type: Name{
			LangZH: section.Get("cos_type").String(),
			LangEN: section.Get("cos_type_e").String(),
		},
		TypeInformation: briefs(child(dep.Get("brief"), id)),
		Language:        child(dep.Get("language"), id).Get(languageCodeField).String(),
		Limit:           parseInt(section.Get("num_limit").String()),
		Registered:      parseInt(section.Get("reg_num").String()),
		Memo:            memo(section.Get("memo")),
		Link:            optional(section.Get("URL")),
	}
}

// briefs joins the brief texts of a section in table order.
func briefs(table gjson.Result) *string {
	var parts []string
	nycuapi.ForEachEntry(table, func(_ string, entry gjson.Result) {
		if b := strings.TrimSpace(entry.Get("brief").String()); b != "" {
			parts = append(parts, b)
		}
	})
	if len(parts) == 0 {
		return nil
	}
	s := strings.Join(parts, briefSeparator)
	return &s
}

// memo flattens HTML markup in the memo to plain text. Line breaks survive
// as newlines.
func memo(v gjson.Result) *string {
	s := v.String()
	if strings.TrimSpace(s) == "" {
		return nil
	}
	if strings.ContainsRune(s, '<') || strings.ContainsRune(s, '&') {
		s = reBRTag.ReplaceAllString(s, "\n")
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(s)); err == nil {
			s = doc.Text()
		}
	}
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	s = strings.Join(kept, "\n")
	return &s
}

// optional returns nil for null, missing or blank values.
func optional(v gjson.Result) *string {
	if v.Type == gjson.Null {
		return nil
	}
	s := strings.TrimSpace(v.String())
	if s == "" {
		return nil
	}
	return &s
}

// child looks up key literally. Section ids may contain characters that
// are special in gjson paths.
func child(obj gjson.Result, key string) gjson.Result {
	if key == "" {
		return gjson.Result{}
	}
	var found gjson.Result
	obj.ForEach(func(k, v gjson.Result) bool {
		if k.String() == key {
			found = v
			return false
		}
		return true
	})
	return found
}

func firstString(values ...gjson.Result) string {
	for _, v := range values {
		if s := v.String(); s != "" {
			return s
		}
	}
	return ""
}

func parseInt(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}
