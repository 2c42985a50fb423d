// Package dashboard owns the application state behind the admin dashboard:
// the loaded collections, the refresh that fills them, and the actions the
// dashboard offers on top of the data-access layer.
package dashboard

import (
	"context"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ruraldash/internal/dataaccess"
	"ruraldash/internal/metrics"
	"ruraldash/internal/record"
	"ruraldash/internal/resource"
)

// DataAccess is the subset of the data-access layer the dashboard uses.
type DataAccess interface {
	Read(ctx context.Context, endpoint string) dataaccess.ReadResult
	Write(ctx context.Context, endpoint string, rec record.Record) dataaccess.WriteResult
	Offline() bool
}

// Mirror is the subset of the mirror store the dashboard uses.
type Mirror interface {
	Load(ctx context.Context, kind resource.Kind) record.Collection
	Replace(ctx context.Context, kind resource.Kind, coll record.Collection) error
	MarkSynced(ctx context.Context, t time.Time) error
	LastSync(ctx context.Context) (time.Time, bool)
}

// RefreshReport says who served each collection during a refresh.
type RefreshReport struct {
	Sources  map[string]dataaccess.Source `json:"sources"`
	Complete bool                         `json:"complete"`
	LastSync time.Time                    `json:"last_sync"`
}

// Service is safe for concurrent use.
type Service struct {
	data     DataAccess
	mirror   Mirror
	log      *zap.Logger
	metrics  *metrics.Metrics
	validate *validator.Validate
	now      func() time.Time

	mu    sync.RWMutex
	state State
}

// NewService builds the dashboard service. metrics may be nil.
func NewService(data DataAccess, m Mirror, log *zap.Logger, met *metrics.Metrics) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		data:     data,
		mirror:   m,
		log:      log,
		metrics:  met,
		validate: newValidator(),
		now:      time.Now,
		state:    State{Sources: map[string]dataaccess.Source{}},
	}
}

// Snapshot returns a copy of the current state.
func (s *Service) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// LoadCached fills the state from the mirror without touching the network,
// so the dashboard has something to show before the first refresh.
func (s *Service) LoadCached(ctx context.Context) {
	loaded := State{Sources: map[string]dataaccess.Source{}}
	for _, ep := range refreshEndpoints {
		loaded.set(ep.kind, s.mirror.Load(ctx, ep.kind))
		loaded.Sources[ep.kind.String()] = dataaccess.SourceMirror
	}
	if t, ok := s.mirror.LastSync(ctx); ok {
		loaded.LastSync = t
	}

	s.mu.Lock()
	s.state = loaded
	s.mu.Unlock()
}

// Refresh loads all four collections in parallel. Each one falls back to the
// mirror on its own; live collections overwrite their mirror copy, and the
// last-sync time only moves when every collection came back live.
func (s *Service) Refresh(ctx context.Context) RefreshReport {
	results := make([]dataaccess.ReadResult, len(refreshEndpoints))

	var g errgroup.Group
	for i, ep := range refreshEndpoints {
		i, ep := i, ep
		g.Go(func() error {
			results[i] = s.data.Read(ctx, ep.endpoint)
			return nil
		})
	}
	_ = g.Wait()

	next := State{Sources: make(map[string]dataaccess.Source, len(refreshEndpoints))}
	complete := true
	for i, ep := range refreshEndpoints {
		res := results[i]
		next.set(ep.kind, res.Records)
		next.Sources[ep.kind.String()] = res.Source
		if res.Source != dataaccess.SourceLive {
			complete = false
			continue
		}
		if err := s.mirror.Replace(ctx, ep.kind, res.Records); err != nil {
			s.log.Error("saving refreshed collection failed", zap.String("resource", ep.kind.String()), zap.Error(err))
			complete = false
		}
	}

	if complete {
		now := s.now()
		if err := s.mirror.MarkSynced(ctx, now); err != nil {
			s.log.Error("saving last sync failed", zap.Error(err))
		}
	}
	if t, ok := s.mirror.LastSync(ctx); ok {
		next.LastSync = t
	}

	s.mu.Lock()
	s.state = next
	s.mu.Unlock()

	if s.metrics != nil {
		outcome := "partial"
		if complete {
			outcome = "live"
		}
		s.metrics.Refreshes.WithLabelValues(outcome).Inc()
	}
	s.log.Info("dashboard refreshed", zap.Bool("complete", complete), zap.Any("sources", next.Sources))

	return RefreshReport{Sources: next.Sources, Complete: complete, LastSync: next.LastSync}
}

// MarkAll records every loaded student as present or absent on date
// (YYYY-MM-DD, today when empty), then reloads the state.
func (s *Service) MarkAll(ctx context.Context, date string, present bool) ([]dataaccess.WriteResult, error) {
	students := s.Snapshot().Students
	if len(students) == 0 {
		return nil, &ValidationError{Message: "No students available. Please add students first."}
	}
	date, err := s.attendanceDate(date)
	if err != nil {
		return nil, err
	}

	out := make([]dataaccess.WriteResult, 0, len(students))
	for _, st := range students {
		id, ok := st.ID()
		if !ok {
			s.log.Warn("skipping student without id", zap.String("name", st.String("name")))
			continue
		}
		out = append(out, s.data.Write(ctx, "/attendance/", attendanceRecord(id, date, present)))
	}
	s.Refresh(ctx)
	return out, nil
}

// MarkStudent records one student's attendance on date, then reloads the state.
func (s *Service) MarkStudent(ctx context.Context, studentID any, date string, present bool) (dataaccess.WriteResult, error) {
	id, ok := record.Record{record.FieldID: studentID}.ID()
	if !ok {
		return dataaccess.WriteResult{}, &ValidationError{Message: "student_id is required"}
	}
	date, err := s.attendanceDate(date)
	if err != nil {
		return dataaccess.WriteResult{}, err
	}
	res := s.data.Write(ctx, "/attendance/", attendanceRecord(id, date, present))
	s.Refresh(ctx)
	return res, nil
}

func (s *Service) attendanceDate(date string) (string, error) {
	if date == "" {
		return s.now().UTC().Format(dateLayout), nil
	}
	if _, err := time.Parse(dateLayout, date); err != nil {
		return "", &ValidationError{Message: "date must be formatted as YYYY-MM-DD"}
	}
	return date, nil
}

func attendanceRecord(studentID any, date string, present bool) record.Record {
	return record.Record{
		"student_id": studentID,
		"date":       date,
		"present":    present,
		"subject":    attendanceSubject,
	}
}

// AddStudent validates the form, writes the new student and reloads the state.
func (s *Service) AddStudent(ctx context.Context, in StudentInput) (dataaccess.WriteResult, error) {
	in.normalize()
	if err := s.validate.Struct(in); err != nil {
		return dataaccess.WriteResult{}, validationMessage(err)
	}

	rec := record.Record{
		"name":           in.Name,
		"grade":          in.Grade,
		"village":        in.Village,
		"contact":        in.Contact,
		"school":         in.School,
		"learning_style": in.LearningStyle,
	}
	if in.Age != nil {
		rec["age"] = *in.Age
	}
	res := s.data.Write(ctx, "/students/", rec)
	s.Refresh(ctx)
	return res, nil
}
