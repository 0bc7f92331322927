package course

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePayload = `{
  "5162": {
    "dep_id": "5162",
    "dep_cname": "資訊工程學系",
    "dep_ename": "Department of Computer Science",
    "1": {
      "1121_515016": {
        "acy": "112", "sem": "1", "cos_id": "515016", "cos_code": "DCP1155",
        "num_limit": "120", "reg_num": "98", "URL": null,
        "cos_cname": "計算機概論", "cos_ename": "Introduction to Computers",
        "cos_credit": "3.00", "cos_hours": "3", "TURL": "",
        "teacher": "王小明、陳大文", "cos_time": "M56R7-EC115",
        "memo": "", "dep_id": "5162", "dep_cname": "資訊工程學系",
        "dep_ename": "Department of Computer Science",
        "cos_type": "必修", "cos_type_e": "Required"
      }
    },
    "2": {
      "1121_515016": {
        "acy": "112", "sem": "1", "cos_id": "515016", "cos_code": "DCP1155",
        "cos_cname": "重複", "cos_ename": "Duplicate", "teacher": "X"
      },
      "1121_515099": {
        "acy": "112", "sem": "1", "cos_id": "515099", "cos_code": "DCP3001",
        "num_limit": "abc", "reg_num": "", "URL": "https://example.edu/syllabus",
        "cos_cname": "演算法", "cos_ename": "Algorithms",
        "cos_credit": "2.5", "cos_hours": "", "TURL": "https://example.edu/t",
        "teacher": "李大華", "cos_time": "T34-EC022",
        "memo": "英文授課<br>限本系<br/>  ", "cos_type": "選修", "cos_type_e": "Elective"
      }
    },
    "brief": {
      "515016": {
        "0": {"brief_code": "A1", "brief": "核心"},
        "1": {"brief_code": "B2", "brief": "通識"}
      }
    },
    "language": {
      "515016": {"授課語言代碼": "zh-tw"},
      "515099": {"授課語言代碼": "en-us"}
    }
  },
  "9999": {
    "dep_id": "9999",
    "dep_cname": "通識",
    "dep_ename": "General Education",
    "1": null,
    "2": {
      "112X_700001": {
        "acy": "112", "sem": "X", "cos_id": "700001", "cos_code": "GEN1000",
        "cos_cname": "暑期課程", "cos_ename": "Summer Course",
        "teacher": "張三,李四", "cos_type": "選修", "cos_type_e": "Elective"
      },
      "1121_515016": {
        "acy": "112", "sem": "1", "cos_id": "515016", "cos_cname": "又重複"
      }
    },
    "brief": [],
    "language": []
  }
}`

func TestNormalize(t *testing.T) {
	t.Parallel()
	courses := Normalize(json.RawMessage(samplePayload))
	require.Len(t, courses, 3)

	ids := []string{courses[0].ID, courses[1].ID, courses[2].ID}
	assert.Equal(t, []string{"515016", "515099", "700001"}, ids, "document order with first-wins dedup")

	first := courses[0]
	assert.Equal(t, 112, first.Year)
	assert.Equal(t, 1, first.Semester)
	assert.Equal(t, "DCP1155", first.PermanentID)
	assert.Equal(t, Name{LangZH: "計算機概論", LangEN: "Introduction to Computers"}, first.Name)
	assert.InDelta(t, 3.0, first.Credits, 1e-9)
	assert.InDelta(t, 3.0, first.Hours, 1e-9)
	assert.Equal(t, 120, first.Limit)
	assert.Equal(t, 98, first.Registered)
	assert.Equal(t, "王小明、陳大文", first.Teacher)
	assert.Equal(t, "5162", first.DepartmentID)
	assert.Equal(t, "Department of Computer Science", first.DepartmentName[LangEN])
	assert.Equal(t, Name{LangZH: "必修", LangEN: "Required"}, first.Type)
	require.NotNil(t, first.TypeInformation)
	assert.Equal(t, "核心、通識", *first.TypeInformation)
	assert.Equal(t, "zh-tw", first.Language)
	assert.Nil(t, first.Link, "null URL")
	assert.Nil(t, first.TeacherLink, "empty TURL")
	assert.Nil(t, first.Memo, "empty memo")

	second := courses[1]
	assert.InDelta(t, 2.5, second.Credits, 1e-9)
	assert.Zero(t, second.Hours)
	assert.Zero(t, second.Limit, "non-numeric limit")
	assert.Zero(t, second.Registered)
	assert.Nil(t, second.TypeInformation)
	assert.Equal(t, "en-us", second.Language)
	require.NotNil(t, second.Link)
	assert.Equal(t, "https://example.edu/syllabus", *second.Link)
	require.NotNil(t, second.TeacherLink)
	require.NotNil(t, second.Memo)
	assert.Equal(t, "英文授課\n限本系", *second.Memo)
	assert.Equal(t, "5162", second.DepartmentID, "falls back to the department entry")

	summer := courses[2]
	assert.Equal(t, 3, summer.Semester)
	assert.Equal(t, "9999", summer.DepartmentID)
	assert.Equal(t, "通識", summer.DepartmentName[LangZH])
	assert.Empty(t, summer.Language)
}

func TestNormalize_SemesterCodes(t *testing.T) {
	t.Parallel()
	tests := []struct {
		code string
		want int
	}{
		{"1", 1},
		{"2", 2},
		{"X", 3},
		{"", 0},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			t.Parallel()
			raw := `{"d":{"1":{"s":{"cos_id":"1","sem":"` + tt.code + `"}}}}`
			courses := Normalize(json.RawMessage(raw))
			require.Len(t, courses, 1)
			assert.Equal(t, tt.want, courses[0].Semester)
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	t.Parallel()
	a := Normalize(json.RawMessage(samplePayload))
	b := Normalize(json.RawMessage(samplePayload))
	assert.Equal(t, a, b)
}

func TestNormalize_Malformed(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		raw  string
		want int
	}{
		{"empty array", `[]`, 0},
		{"null", `null`, 0},
		{"not json", `<html>`, 0},
		{"department is a string", `{"x":"y"}`, 0},
		{"bucket is a string", `{"x":{"1":"oops"}}`, 0},
		{"section without fields", `{"x":{"1":{"a":{}}}}`, 1},
		{"sections without ids are all kept", `{"x":{"1":{"a":{},"b":{"cos_cname":"專題"}},"2":{"c":{}}}}`, 3},
		{"repeated id across buckets", `{"x":{"1":{"a":{"cos_id":"7"}},"2":{"b":{"cos_id":"7"}}}}`, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Len(t, Normalize(json.RawMessage(tt.raw)), tt.want)
		})
	}
}

func TestCourse_JSONOmitsAbsentOptionals(t *testing.T) {
	t.Parallel()
	courses := Normalize(json.RawMessage(samplePayload))
	b, err := json.Marshal(courses[0])
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	for _, key := range []string{"link", "memo", "teacherLink"} {
		assert.NotContains(t, m, key)
	}
	assert.Contains(t, m, "typeInformation")
	assert.Contains(t, m, "permanentId")
}
