package logger

import "time"

var testTime = time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC)
