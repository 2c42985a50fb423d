package dashboard

import (
	"fmt"
	"sort"
	"strings"

	"ruraldash/internal/record"
)

// StudentQuery filters the student list. Empty fields match everything.
type StudentQuery struct {
	Q       string `form:"q"`
	Village string `form:"village"`
	Grade   string `form:"grade"`
	Page    int    `form:"page"`
}

// StudentPage is one page of the filtered student list.
type StudentPage struct {
	Students   record.Collection `json:"students"`
	Page       int               `json:"page"`
	TotalPages int               `json:"total_pages"`
	Total      int               `json:"total"`
	Villages   []string          `json:"villages"`
}

// ListStudents filters the loaded students and returns the requested page.
func (s *Service) ListStudents(q StudentQuery) StudentPage {
	students := s.Snapshot().Students
	search := strings.ToLower(strings.TrimSpace(q.Q))

	matched := record.Collection{}
	for _, st := range students {
		if q.Village != "" && fieldText(st, "village") != q.Village {
			continue
		}
		if q.Grade != "" && fieldText(st, "grade") != q.Grade {
			continue
		}
		if search != "" && !matchesSearch(st, search) {
			continue
		}
		matched = append(matched, st)
	}

	page := max(q.Page, 1)
	out := StudentPage{
		Students:   record.Collection{},
		Page:       page,
		TotalPages: (len(matched) + studentsPerPage - 1) / studentsPerPage,
		Total:      len(matched),
		Villages:   villages(students),
	}
	if from := (page - 1) * studentsPerPage; from < len(matched) {
		out.Students = matched[from:min(from+studentsPerPage, len(matched))]
	}
	return out
}

func matchesSearch(st record.Record, search string) bool {
	for _, field := range []string{"name", "village", "school"} {
		if strings.Contains(strings.ToLower(fieldText(st, field)), search) {
			return true
		}
	}
	return false
}

// villages lists the distinct non-empty villages, sorted.
func villages(students record.Collection) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, st := range students {
		v := fieldText(st, "village")
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// fieldText renders a field for comparison; grades arrive as numbers or strings.
func fieldText(r record.Record, field string) string {
	switch v := r[field].(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return record.IDKey(v)
	default:
		return fmt.Sprint(v)
	}
}
