package model

import "time"

// regionalZone is the fixed UTC+8 offset used for every string timestamp.
// A fixed zone avoids depending on the host's tzdata.
var regionalZone = time.FixedZone("HKT", 8*60*60)

const timestampLayout = "2006-01-02T15:04:05+08:00"

// Timestamp formats t as UTC+8 wall-clock time, e.g. 2024-05-01T09:30:00+08:00.
func Timestamp(t time.Time) string {
	return t.In(regionalZone).Format(timestampLayout)
}
