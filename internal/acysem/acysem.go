// Package acysem handles academic period codes ("acysem"), such as "1121"
// for year 112 semester 1 or "112X" for the summer term of year 112.
package acysem

import (
	"slices"
	"strconv"
	"strings"

	domerrors "github.com/garyellow/nycu-course-go/internal/errors"
	"github.com/garyellow/nycu-course-go/internal/stringutil"
)

// Semester codes used by the catalog API.
const (
	SemesterFall   = "1"
	SemesterSpring = "2"
	SemesterSummer = "X"
)

// SummerSemester is the numeric value used for SemesterSummer.
const SummerSemester = 3

// Split separates a period into its year and semester code.
// The semester is the last character; everything before it is the year.
func Split(period string) (year, semester string) {
	if period == "" {
		return "", ""
	}
	return period[:len(period)-1], period[len(period)-1:]
}

// yearDigits is the width of the ROC year in a period code.
const yearDigits = 3

// Validate checks that period is a three-digit year followed by 1, 2 or X.
func Validate(period string) error {
	if len(period) != yearDigits+1 {
		return domerrors.NewValidationError("acysem", "must be a 3-digit year followed by 1, 2 or X")
	}
	year, sem := Split(period)
	if !stringutil.IsNumeric(year) {
		return domerrors.NewValidationError("acysem", "year must be numeric")
	}
	if SemesterNumber(sem) == 0 {
		return domerrors.NewValidationError("acysem", "semester must be 1, 2 or X")
	}
	return nil
}

// SemesterNumber maps a semester code to 1, 2 or 3 (summer).
// Unknown codes map to 0.
func SemesterNumber(code string) int {
	switch strings.ToUpper(code) {
	case SemesterFall:
		return 1
	case SemesterSpring:
		return 2
	case SemesterSummer:
		return SummerSemester
	default:
		return 0
	}
}

// Label renders a period for display, e.g. "112 上" or "112 Fall".
func Label(period, language string) string {
	year, sem := Split(period)
	var text string
	switch language {
	case "en-us":
		text = map[int]string{1: "Fall", 2: "Spring", 3: "Summer"}[SemesterNumber(sem)]
	default:
		text = map[int]string{1: "上", 2: "下", 3: "暑"}[SemesterNumber(sem)]
	}
	return year + " " + text
}

// Latest returns up to n valid periods, most recent first.
// Within a year the order is summer, spring, fall.
func Latest(periods []string, n int) []string {
	valid := make([]string, 0, len(periods))
	for _, p := range periods {
		if Validate(p) == nil && !slices.Contains(valid, p) {
			valid = append(valid, p)
		}
	}
	slices.SortFunc(valid, func(a, b string) int {
		ay, as := Split(a)
		by, bs := Split(b)
		ai, _ := strconv.Atoi(ay)
		bi, _ := strconv.Atoi(by)
		if ai != bi {
			return bi - ai
		}
		return SemesterNumber(bs) - SemesterNumber(as)
	})
	if n >= 0 && len(valid) > n {
		valid = valid[:n]
	}
	return valid
}
