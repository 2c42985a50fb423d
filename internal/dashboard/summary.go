package dashboard

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"ruraldash/internal/dataaccess"
	"ruraldash/internal/record"
)

const (
	dateLayout         = "2006-01-02"
	recentLimit        = 5
	lowAttendanceLimit = 70.0
	inactivityWindow   = 7 * 24 * time.Hour
	attendanceSubject  = "General"
	studentsPerPage    = 10
)

// Alert is one entry in the dashboard's alert panel.
type Alert struct {
	Type    string `json:"type"`
	Icon    string `json:"icon"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// RecentActivity is one row of the recent-activity feed.
type RecentActivity struct {
	StudentName string `json:"student_name"`
	Notes       string `json:"notes"`
	StartTime   string `json:"start_time"`
	Ago         string `json:"ago"`
}

// Summary is everything the dashboard's front page renders.
type Summary struct {
	TotalStudents    int                          `json:"total_students"`
	AttendanceRate   int                          `json:"attendance_rate"`
	RecentActivities []RecentActivity             `json:"recent_activities"`
	Alerts           []Alert                      `json:"alerts"`
	LastSync         *time.Time                   `json:"last_sync,omitempty"`
	Offline          bool                         `json:"offline"`
	Sources          map[string]dataaccess.Source `json:"sources"`
}

// Summary computes the front-page figures from the current state.
func (s *Service) Summary(ctx context.Context) Summary {
	st := s.Snapshot()
	now := s.now()

	sum := Summary{
		TotalStudents:    len(st.Students),
		AttendanceRate:   attendanceRate(st.Attendance, now),
		RecentActivities: recentActivities(st, now),
		Alerts:           alerts(st, now),
		Offline:          s.data.Offline(),
		Sources:          st.Sources,
	}
	if !st.LastSync.IsZero() {
		t := st.LastSync
		sum.LastSync = &t
	}
	return sum
}

// attendanceRate is the rounded percentage of today's records marked present.
func attendanceRate(attendance record.Collection, now time.Time) int {
	today := now.UTC().Format(dateLayout)
	var total, present int
	for _, a := range attendance {
		if !strings.HasPrefix(a.String("date"), today) {
			continue
		}
		total++
		if a.Bool("present") {
			present++
		}
	}
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(present) / float64(total) * 100))
}

func recentActivities(st State, now time.Time) []RecentActivity {
	acts := append(record.Collection(nil), st.Activities...)
	sort.SliceStable(acts, func(i, j int) bool {
		ti, _ := acts[i].Time("start_time")
		tj, _ := acts[j].Time("start_time")
		return ti.After(tj)
	})
	if len(acts) > recentLimit {
		acts = acts[:recentLimit]
	}

	names := studentNames(st.Students)
	out := make([]RecentActivity, 0, len(acts))
	for _, a := range acts {
		name, ok := names[idKeyOf(a["student_id"])]
		if !ok {
			name = "Unknown Student"
		}
		notes := a.String("notes")
		if notes == "" {
			notes = "No additional notes"
		}
		started, _ := a.Time("start_time")
		out = append(out, RecentActivity{
			StudentName: name,
			Notes:       notes,
			StartTime:   a.String("start_time"),
			Ago:         ago(started, now),
		})
	}
	return out
}

func alerts(st State, now time.Time) []Alert {
	out := []Alert{}

	for _, student := range st.Students {
		sid, ok := student.ID()
		if !ok {
			continue
		}
		id := record.IDKey(sid)
		var total, present int
		for _, a := range st.Attendance {
			if idKeyOf(a["student_id"]) != id {
				continue
			}
			total++
			if a.Bool("present") {
				present++
			}
		}
		if total == 0 {
			continue
		}
		rate := float64(present) / float64(total) * 100
		if rate < lowAttendanceLimit {
			out = append(out, Alert{
				Type:    "warning",
				Icon:    "exclamation-triangle",
				Title:   "Low Attendance Alert",
				Message: fmt.Sprintf("%s has %d%% attendance rate", student.String("name"), int(math.Round(rate))),
			})
		}
	}

	cutoff := now.Add(-inactivityWindow)
	for _, student := range st.Students {
		sid, ok := student.ID()
		if !ok {
			continue
		}
		id := record.IDKey(sid)
		active := false
		for _, a := range st.Activities {
			if idKeyOf(a["student_id"]) != id {
				continue
			}
			if started, ok := a.Time("start_time"); ok && started.After(cutoff) {
				active = true
				break
			}
		}
		if !active {
			out = append(out, Alert{
				Type:    "info",
				Icon:    "info-circle",
				Title:   "Inactive Student",
				Message: fmt.Sprintf("%s hasn't studied in the last 7 days", student.String("name")),
			})
		}
	}
	return out
}

func studentNames(students record.Collection) map[string]string {
	names := make(map[string]string, len(students))
	for _, s := range students {
		if id, ok := s.ID(); ok {
			names[record.IDKey(id)] = s.String("name")
		}
	}
	return names
}

// idKeyOf normalizes a foreign key; nil maps to a key no student can have.
func idKeyOf(v any) string {
	if v == nil {
		return "\x00"
	}
	return record.IDKey(v)
}

// ago renders "Just now", "3h ago" or "2d ago".
func ago(t, now time.Time) string {
	if t.IsZero() {
		return "Just now"
	}
	hours := int(now.Sub(t).Hours())
	switch {
	case hours < 1:
		return "Just now"
	case hours < 24:
		return fmt.Sprintf("%dh ago", hours)
	}
	return fmt.Sprintf("%dd ago", hours/24)
}
