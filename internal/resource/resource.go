// Package resource maps backend endpoints to the mirror bucket they share.
package resource

import "strings"

// Kind is a logical resource collection.
type Kind int

const (
	// Other is the shared catch-all bucket for endpoints outside the table.
	Other Kind = iota
	Students
	Attendance
	Activities
	Syllabus
)

type route struct {
	kind    Kind
	segment string
	name    string
}

// Order matters: the first segment contained in an endpoint wins.
var routes = []route{
	{Students, "/students", "students"},
	{Attendance, "/attendance", "attendance"},
	{Activities, "/activities", "activities"},
	{Syllabus, "/syllabus", "syllabus"},
}

const otherName = "data"

// All lists every kind, including the catch-all.
func All() []Kind {
	return []Kind{Students, Attendance, Activities, Syllabus, Other}
}

// Resolve returns the kind an endpoint belongs to.
func Resolve(endpoint string) Kind {
	for _, r := range routes {
		if strings.Contains(endpoint, r.segment) {
			return r.kind
		}
	}
	return Other
}

// String returns the bucket name, which also labels metrics.
func (k Kind) String() string {
	for _, r := range routes {
		if r.kind == k {
			return r.name
		}
	}
	return otherName
}

// Key returns the mirror key for the kind under the given prefix.
func (k Kind) Key(prefix string) string {
	return prefix + k.String()
}
