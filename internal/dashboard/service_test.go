package dashboard

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ruraldash/internal/dataaccess"
	"ruraldash/internal/mirror"
	"ruraldash/internal/record"
	"ruraldash/internal/resource"
)

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// fakeData serves canned collections; endpoints in down come back as mirror
// results the way the real layer degrades.
type fakeData struct {
	mu      sync.Mutex
	live    map[string]record.Collection
	down    map[string]bool
	offline bool
	writes  []record.Record
	m       *mirror.Mirror
}

func (f *fakeData) Read(ctx context.Context, endpoint string) dataaccess.ReadResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offline || f.down[endpoint] {
		return dataaccess.ReadResult{Records: f.m.Load(ctx, resource.Resolve(endpoint)), Source: dataaccess.SourceMirror}
	}
	return dataaccess.ReadResult{Records: f.live[endpoint], Source: dataaccess.SourceLive}
}

func (f *fakeData) Write(ctx context.Context, endpoint string, rec record.Record) dataaccess.WriteResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, rec)
	return dataaccess.WriteResult{Record: rec, Source: dataaccess.SourceLive}
}

func (f *fakeData) Offline() bool { return f.offline }

func fixture(t *testing.T) (*Service, *fakeData, *mirror.Mirror) {
	t.Helper()
	m := mirror.New(mirror.NewMemory(), "t_", mirror.Upsert, nil)
	f := &fakeData{
		m:    m,
		down: map[string]bool{},
		live: map[string]record.Collection{
			"/students/": {
				{"id": 1.0, "name": "Asha"},
				{"id": 2.0, "name": "Ravi"},
			},
			"/attendance/": {
				{"id": 10.0, "student_id": 1.0, "present": true, "date": "2024-05-01"},
				{"id": 11.0, "student_id": 2.0, "present": false, "date": "2024-05-01T08:00:00"},
				{"id": 12.0, "student_id": 2.0, "present": false, "date": "2024-04-30"},
				{"id": 13.0, "student_id": 2.0, "present": true, "date": "2024-04-29"},
			},
			"/activities/": {
				{"id": 20.0, "student_id": 1.0, "start_time": "2024-04-30T10:00:00", "notes": "fractions"},
				{"id": 21.0, "student_id": 2.0, "start_time": "2024-04-01T10:00:00"},
			},
			"/syllabus/": {{"id": 30.0, "subject": "Math"}},
		},
	}
	svc := NewService(f, m, nil, nil)
	svc.now = func() time.Time { return now }
	return svc, f, m
}

func TestRefreshAllLive(t *testing.T) {
	ctx := context.Background()
	svc, _, m := fixture(t)

	rep := svc.Refresh(ctx)
	assert.True(t, rep.Complete)
	assert.True(t, now.Equal(rep.LastSync))
	for _, src := range rep.Sources {
		assert.Equal(t, dataaccess.SourceLive, src)
	}

	st := svc.Snapshot()
	assert.Len(t, st.Students, 2)
	assert.Len(t, st.Attendance, 4)
	assert.Len(t, st.Syllabus, 1)

	// live collections overwrite the mirror
	assert.Len(t, m.Load(ctx, resource.Students), 2)
	last, ok := m.LastSync(ctx)
	require.True(t, ok)
	assert.True(t, now.Equal(last))
}

func TestRefreshPartialKeepsLastSync(t *testing.T) {
	ctx := context.Background()
	svc, f, m := fixture(t)
	require.NoError(t, m.Replace(ctx, resource.Syllabus, record.Collection{{"id": 99.0, "subject": "Cached"}}))
	f.down["/syllabus/"] = true

	rep := svc.Refresh(ctx)
	assert.False(t, rep.Complete)
	assert.Equal(t, dataaccess.SourceMirror, rep.Sources["syllabus"])
	assert.Equal(t, dataaccess.SourceLive, rep.Sources["students"])
	assert.True(t, rep.LastSync.IsZero())

	st := svc.Snapshot()
	require.Len(t, st.Syllabus, 1)
	assert.Equal(t, "Cached", st.Syllabus[0].String("subject"))
	assert.Len(t, st.Students, 2)

	_, ok := m.LastSync(ctx)
	assert.False(t, ok)
}

func TestLoadCached(t *testing.T) {
	ctx := context.Background()
	svc, _, m := fixture(t)
	require.NoError(t, m.Replace(ctx, resource.Students, record.Collection{{"id": 5.0, "name": "Meena"}}))
	require.NoError(t, m.MarkSynced(ctx, now.Add(-time.Hour)))

	svc.LoadCached(ctx)
	st := svc.Snapshot()
	require.Len(t, st.Students, 1)
	assert.Equal(t, "Meena", st.Students[0].String("name"))
	assert.Equal(t, dataaccess.SourceMirror, st.Sources["students"])
	assert.True(t, now.Add(-time.Hour).Equal(st.LastSync))
}

func TestSnapshotIsACopy(t *testing.T) {
	svc, _, _ := fixture(t)
	svc.Refresh(context.Background())

	st := svc.Snapshot()
	st.Students[0] = record.Record{"id": 0.0, "name": "changed"}
	st.Sources["students"] = "bogus"

	again := svc.Snapshot()
	assert.Equal(t, "Asha", again.Students[0].String("name"))
	assert.Equal(t, dataaccess.SourceLive, again.Sources["students"])
}

func TestMarkAll(t *testing.T) {
	tests := []struct {
		name     string
		date     string
		present  bool
		wantDate string
		wantErr  string
	}{
		{name: "present today", present: true, wantDate: "2024-05-01"},
		{name: "absent today", present: false, wantDate: "2024-05-01"},
		{name: "explicit date", date: "2024-04-15", present: true, wantDate: "2024-04-15"},
		{name: "bad date", date: "05/01/2024", present: true, wantErr: "date must be formatted as YYYY-MM-DD"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			svc, f, _ := fixture(t)
			svc.Refresh(ctx)

			res, err := svc.MarkAll(ctx, tt.date, tt.present)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.True(t, IsValidation(err))
				assert.Equal(t, tt.wantErr, err.Error())
				assert.Empty(t, f.writes)
				return
			}
			require.NoError(t, err)
			require.Len(t, res, 2)
			require.Len(t, f.writes, 2)
			assert.Equal(t, record.Record{"student_id": 1.0, "date": tt.wantDate, "present": tt.present, "subject": "General"}, f.writes[0])
			assert.Equal(t, 2.0, f.writes[1]["student_id"])
		})
	}
}

func TestMarkAllNeedsStudents(t *testing.T) {
	svc, f, _ := fixture(t)

	_, err := svc.MarkAll(context.Background(), "", true)
	require.Error(t, err)
	assert.True(t, IsValidation(err))
	assert.Equal(t, "No students available. Please add students first.", err.Error())
	assert.Empty(t, f.writes)
}

func TestMarkStudent(t *testing.T) {
	tests := []struct {
		name    string
		id      any
		date    string
		present bool
		want    record.Record
		wantErr string
	}{
		{name: "numeric id", id: 2.0, present: false, want: record.Record{"student_id": 2.0, "date": "2024-05-01", "present": false, "subject": "General"}},
		{name: "string id with date", id: "s9", date: "2024-04-02", present: true, want: record.Record{"student_id": "s9", "date": "2024-04-02", "present": true, "subject": "General"}},
		{name: "missing id", id: nil, wantErr: "student_id is required"},
		{name: "empty id", id: "", wantErr: "student_id is required"},
		{name: "bad date", id: 1.0, date: "yesterday", wantErr: "date must be formatted as YYYY-MM-DD"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, f, _ := fixture(t)
			_, err := svc.MarkStudent(context.Background(), tt.id, tt.date, tt.present)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.True(t, IsValidation(err))
				assert.Equal(t, tt.wantErr, err.Error())
				assert.Empty(t, f.writes)
				return
			}
			require.NoError(t, err)
			require.Len(t, f.writes, 1)
			assert.Equal(t, tt.want, f.writes[0])
		})
	}
}

func TestWritesReloadState(t *testing.T) {
	ctx := context.Background()
	m := mirror.New(mirror.NewMemory(), "t_", mirror.Upsert, nil)
	layer := dataaccess.New(nil, m)
	require.True(t, layer.Offline())

	svc := NewService(layer, m, nil, nil)
	svc.now = func() time.Time { return now }

	_, err := svc.AddStudent(ctx, StudentInput{Name: "Asha"})
	require.NoError(t, err)
	assert.Equal(t, 1, svc.Summary(ctx).TotalStudents)
	assert.Len(t, m.Load(ctx, resource.Students), 1)

	res, err := svc.MarkAll(ctx, "", true)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, 100, svc.Summary(ctx).AttendanceRate)

	_, err = svc.MarkStudent(ctx, res[0].Record["student_id"], "", false)
	require.NoError(t, err)
	assert.Len(t, svc.Snapshot().Attendance, 2)
	assert.Equal(t, 50, svc.Summary(ctx).AttendanceRate)
}

func TestAddStudent(t *testing.T) {
	ctx := context.Background()
	age := 11
	badAge := -3

	tests := []struct {
		name    string
		in      StudentInput
		wantErr string
	}{
		{name: "valid", in: StudentInput{Name: "  Asha  ", Age: &age, Grade: "5", LearningStyle: "visual"}},
		{name: "no age", in: StudentInput{Name: "Ravi"}},
		{name: "missing name", in: StudentInput{Name: "   "}, wantErr: "Please enter student name"},
		{name: "negative age", in: StudentInput{Name: "Asha", Age: &badAge}, wantErr: "invalid age"},
		{name: "bad style", in: StudentInput{Name: "Asha", LearningStyle: "osmosis"}, wantErr: "learning_style must be one of: visual auditory kinesthetic reading"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, f, _ := fixture(t)
			res, err := svc.AddStudent(ctx, tt.in)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.True(t, IsValidation(err))
				assert.Equal(t, tt.wantErr, err.Error())
				assert.Empty(t, f.writes)
				return
			}
			require.NoError(t, err)
			require.Len(t, f.writes, 1)
			assert.Equal(t, dataaccess.SourceLive, res.Source)
			assert.Equal(t, strings.TrimSpace(tt.in.Name), f.writes[0]["name"])
			_, hasAge := f.writes[0]["age"]
			assert.Equal(t, tt.in.Age != nil, hasAge)
		})
	}
}
