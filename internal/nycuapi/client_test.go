package nycuapi

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/traditionalchinese"

	domerrors "github.com/garyellow/nycu-course-go/internal/errors"
)

type captured struct {
	method      string
	path        string
	query       string
	contentType string
	form        url.Values
}

func newTestServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*httptest.Server, *captured) {
	t.Helper()
	got := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.method = r.Method
		got.path = r.URL.Path
		got.query = r.URL.RawQuery
		got.contentType = r.Header.Get("Content-Type")
		_ = r.ParseForm()
		got.form = r.PostForm
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func newTestClient(srv *httptest.Server, throttle time.Duration) *Client {
	return NewClient(Config{Endpoint: srv.URL + "/?r=main/", Throttle: throttle})
}

func TestFetchCourses_CourseIDQuery(t *testing.T) {
	srv, got := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"dep":{}}`)
	})
	client := newTestClient(srv, 0)

	raw, err := client.FetchCourses(context.Background(), CourseQuery{
		Period: "1121", Option: OptionCourseID, Parameter: "CS101",
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"dep":{}}`, string(raw))

	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, "r=main/get_cos_list", got.query)
	assert.Equal(t, formContentType, got.contentType)

	assert.Equal(t, "CS101", got.form.Get("m_cos_id"))
	assert.Equal(t, "cos_id", got.form.Get("m_option"))
	assert.Equal(t, "112", got.form.Get("m_acy"))
	assert.Equal(t, "1", got.form.Get("m_sem"))
	assert.Equal(t, "112", got.form.Get("m_acyend"))
	assert.Equal(t, "1", got.form.Get("m_semend"))
	for _, field := range []string{
		"m_dep_uid", "m_group", "m_grade", "m_class", "m_crsname", "m_teaname",
		"m_cos_code", "m_crstime", "m_crsoutline", "m_costype", "m_selcampus",
	} {
		assert.Equal(t, CourseWildcard, got.form.Get(field), field)
	}
}

func TestCourseQuery_DepartmentOption(t *testing.T) {
	form := CourseQuery{Period: "112X", Option: OptionDepartment, Parameter: "UUID"}.Request().Form

	assert.Equal(t, "UUID", form.Get("m_dep_uid"))
	assert.Equal(t, CourseWildcard, form.Get("m_option"))
	assert.Equal(t, CourseWildcard, form.Get("m_crsname"))
	assert.Equal(t, "X", form.Get("m_sem"))
}

func TestLevelQuery_Request(t *testing.T) {
	tests := []struct {
		name    string
		query   LevelQuery
		present []string
		absent  []string
	}{
		{
			name:    "types",
			query:   LevelQuery{Operation: OpTypes, Period: "1121", Language: LangZH},
			present: []string{"flang", "acysem", "acysemend"},
			absent:  []string{"ftype", "fcategory", "fcollege"},
		},
		{
			name:    "categories",
			query:   LevelQuery{Operation: OpCategories, Period: "1121", Language: LangEN, TypeID: "3"},
			present: []string{"ftype"},
			absent:  []string{"fcategory", "fcollege"},
		},
		{
			name:    "colleges",
			query:   LevelQuery{Operation: OpColleges, Period: "1121", Language: LangZH, TypeID: "3", CategoryID: "3*"},
			present: []string{"ftype", "fcategory"},
			absent:  []string{"fcollege"},
		},
		{
			name:    "departments with empty category",
			query:   LevelQuery{Operation: OpDepartments, Period: "1121", Language: LangZH, TypeID: "3", CategoryID: "", CollegeID: "*"},
			present: []string{"ftype", "fcategory", "fcollege"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.query.Request()
			assert.Equal(t, tt.query.Operation, req.Operation)
			assert.Equal(t, http.MethodPost, req.Method)
			assert.Equal(t, tt.query.Language, req.Form.Get("flang"))
			for _, k := range tt.present {
				assert.Contains(t, req.Form, k)
			}
			for _, k := range tt.absent {
				assert.NotContains(t, req.Form, k)
			}
		})
	}
}

func TestRequest_Params(t *testing.T) {
	params := CourseQuery{Period: "1121", Option: OptionCourseName, Parameter: "微積分"}.Request().Params()
	assert.Equal(t, "微積分", params["m_crsname"])
	assert.Len(t, params, 17)
}

func TestDo_NonSuccessStatus(t *testing.T) {
	srv, _ := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := newTestClient(srv, 0).FetchCourses(context.Background(), CourseQuery{Period: "1121", Option: OptionCourseID, Parameter: "x"})
	require.Error(t, err)
	assert.True(t, domerrors.IsUpstreamUnavailable(err))

	var ue *domerrors.UpstreamError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, http.StatusServiceUnavailable, ue.StatusCode)
	assert.Equal(t, OpCourseList, ue.Operation)
}

func TestDo_TransportFailure(t *testing.T) {
	srv, _ := newTestServer(t, func(http.ResponseWriter, *http.Request) {})
	client := newTestClient(srv, 0)
	srv.Close()

	_, err := client.FetchAcademicPeriods(context.Background())
	assert.True(t, domerrors.IsUpstreamUnavailable(err))
}

func TestDo_MalformedBody(t *testing.T) {
	srv, _ := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "<html>maintenance</html>")
	})

	_, err := newTestClient(srv, 0).FetchAcademicPeriods(context.Background())
	assert.ErrorIs(t, err, domerrors.ErrMalformedPayload)
}

func TestDo_GzipAndBig5(t *testing.T) {
	big5, err := traditionalchinese.Big5.NewEncoder().Bytes([]byte(`[{"T":"1121","name":"資訊工程"}]`))
	require.NoError(t, err)

	var compressed bytes.Buffer
	gz := gzip.NewWriter(&compressed)
	_, _ = gz.Write(big5)
	require.NoError(t, gz.Close())

	srv, got := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=big5")
		w.Header().Set("Content-Encoding", "gzip")
		_, _ = w.Write(compressed.Bytes())
	})

	raw, err := newTestClient(srv, 0).Do(context.Background(), AcademicPeriodsRequest())
	require.NoError(t, err)
	assert.Equal(t, http.MethodGet, got.method)
	assert.JSONEq(t, `[{"T":"1121","name":"資訊工程"}]`, string(raw))
}

func TestFetchAcademicPeriods(t *testing.T) {
	srv, _ := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "\xef\xbb\xbf"+`[{"T":"1122"},{"T":"1121"},{"X":"ignored"}]`)
	})

	periods, err := newTestClient(srv, 0).FetchAcademicPeriods(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"1122", "1121"}, periods)
}

func TestFetchDepartmentLevel_Throttles(t *testing.T) {
	var calls atomic.Int32
	srv, got := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = io.WriteString(w, `{"":"","A1":"理學院"}`)
	})
	throttle := 30 * time.Millisecond

	start := time.Now()
	raw, err := newTestClient(srv, throttle).FetchDepartmentLevel(context.Background(), LevelQuery{
		Operation: OpColleges, Period: "1121", Language: LangZH, TypeID: "3", CategoryID: "3*",
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), throttle)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, "3*", got.form.Get("fcategory"))
	assert.Equal(t, []Label{{Key: "", Value: ""}, {Key: "A1", Value: "理學院"}}, ParseLabels(raw))
}

func TestFetchDepartmentLevel_CanceledDuringThrottle(t *testing.T) {
	srv, _ := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{}`)
	})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := newTestClient(srv, time.Minute).FetchDepartmentLevel(ctx, LevelQuery{Operation: OpTypes, Period: "1121", Language: LangZH})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSleep(t *testing.T) {
	assert.NoError(t, Sleep(context.Background(), 0))
	assert.NoError(t, Sleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
}
