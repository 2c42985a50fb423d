package dashboard

import (
	"time"

	"ruraldash/internal/dataaccess"
	"ruraldash/internal/record"
	"ruraldash/internal/resource"
)

// Endpoints the dashboard loads on every refresh, by resource.
var refreshEndpoints = []struct {
	kind     resource.Kind
	endpoint string
}{
	{resource.Students, "/students/"},
	{resource.Attendance, "/attendance/"},
	{resource.Activities, "/activities/"},
	{resource.Syllabus, "/syllabus/"},
}

// State is the last loaded copy of every collection the dashboard shows.
type State struct {
	Students   record.Collection
	Attendance record.Collection
	Activities record.Collection
	Syllabus   record.Collection

	// Sources records who served each collection on the last refresh.
	Sources  map[string]dataaccess.Source
	LastSync time.Time
}

func (s *State) set(kind resource.Kind, coll record.Collection) {
	switch kind {
	case resource.Students:
		s.Students = coll
	case resource.Attendance:
		s.Attendance = coll
	case resource.Activities:
		s.Activities = coll
	case resource.Syllabus:
		s.Syllabus = coll
	}
}

func (s State) clone() State {
	out := State{
		Students:   append(record.Collection(nil), s.Students...),
		Attendance: append(record.Collection(nil), s.Attendance...),
		Activities: append(record.Collection(nil), s.Activities...),
		Syllabus:   append(record.Collection(nil), s.Syllabus...),
		Sources:    make(map[string]dataaccess.Source, len(s.Sources)),
		LastSync:   s.LastSync,
	}
	for k, v := range s.Sources {
		out.Sources[k] = v
	}
	return out
}
