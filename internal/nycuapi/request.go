package nycuapi

import (
	"net/http"
	"net/url"

	"github.com/garyellow/nycu-course-go/internal/acysem"
)

// Catalog API operations. The operation name is appended to the endpoint.
const (
	OpCourseList      = "get_cos_list"
	OpAcademicPeriods = "get_acysem"
	OpTypes           = "get_type"
	OpCategories      = "get_category"
	OpColleges        = "get_college"
	OpDepartments     = "get_dep"
)

// Wildcards understood by the catalog API.
const (
	// CourseWildcard disables a course list filter field.
	CourseWildcard = "**"
	// LevelWildcard marks an absent department hierarchy level.
	LevelWildcard = "*"
)

// Option selects which course list filter carries the query.
type Option string

// Course list filters. Exactly one is active per request.
const (
	OptionCourseName  Option = "crsname"
	OptionTeacherName Option = "teaname"
	OptionDepartment  Option = "dep"
	OptionCourseID    Option = "cos_id"
	OptionPermanentID Option = "cos_code"
)

// Languages accepted by the hierarchy operations.
const (
	LangZH = "zh-tw"
	LangEN = "en-us"
)

// Request is a single catalog API round trip.
type Request struct {
	Operation string
	Method    string
	Form      url.Values
}

// Params flattens the form into the map used for cache keys.
func (r Request) Params() map[string]string {
	params := make(map[string]string, len(r.Form))
	for k, v := range r.Form {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}
	return params
}

// CourseQuery is a course list search for one period.
type CourseQuery struct {
	Period    string
	Option    Option
	Parameter string
}

func (q CourseQuery) pick(opt Option) string {
	if q.Option == opt {
		return q.Parameter
	}
	return CourseWildcard
}

// Request builds the get_cos_list form. The department filter travels in
// m_dep_uid with m_option wildcarded; every other filter sets m_option.
func (q CourseQuery) Request() Request {
	year, sem := acysem.Split(q.Period)
	option := string(q.Option)
	if q.Option == OptionDepartment {
		option = CourseWildcard
	}
	return Request{
		Operation: OpCourseList,
		Method:    http.MethodPost,
		Form: url.Values{
			"m_acy":        {year},
			"m_sem":        {sem},
			"m_acyend":     {year},
			"m_semend":     {sem},
			"m_dep_uid":    {q.pick(OptionDepartment)},
			"m_group":      {CourseWildcard},
			"m_grade":      {CourseWildcard},
			"m_class":      {CourseWildcard},
			"m_option":     {option},
			"m_crsname":    {q.pick(OptionCourseName)},
			"m_teaname":    {q.pick(OptionTeacherName)},
			"m_cos_id":     {q.pick(OptionCourseID)},
			"m_cos_code":   {q.pick(OptionPermanentID)},
			"m_crstime":    {CourseWildcard},
			"m_crsoutline": {CourseWildcard},
			"m_costype":    {CourseWildcard},
			"m_selcampus":  {CourseWildcard},
		},
	}
}

// AcademicPeriodsRequest lists the periods the catalog knows about.
func AcademicPeriodsRequest() Request {
	return Request{Operation: OpAcademicPeriods, Method: http.MethodGet}
}

// LevelQuery asks for one level of the department hierarchy.
// Fields a level does not use are ignored.
type LevelQuery struct {
	Operation  string // OpTypes, OpCategories, OpColleges or OpDepartments
	Period     string
	Language   string
	TypeID     string
	CategoryID string
	CollegeID  string
}

// Request builds the form for the hierarchy level.
func (q LevelQuery) Request() Request {
	form := url.Values{
		"flang":     {q.Language},
		"acysem":    {q.Period},
		"acysemend": {q.Period},
	}
	switch q.Operation {
	case OpDepartments:
		form.Set("fcollege", q.CollegeID)
		fallthrough
	case OpColleges:
		form.Set("fcategory", q.CategoryID)
		fallthrough
	case OpCategories:
		form.Set("ftype", q.TypeID)
	}
	return Request{Operation: q.Operation, Method: http.MethodPost, Form: form}
}
