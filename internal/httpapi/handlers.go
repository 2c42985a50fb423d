package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ruraldash/internal/dashboard"
	"ruraldash/internal/queue"
	"ruraldash/internal/record"
)

// Handler serves the API routes.
type Handler struct {
	data   dashboard.DataAccess
	dash   *dashboard.Service
	queue  queue.Queue
	checks map[string]func(context.Context) bool
	log    *zap.Logger
}

// Healthz reports process health. Being offline is not unhealthy.
func (h *Handler) Healthz(c *gin.Context) {
	body := gin.H{"status": "ok", "offline": h.data.Offline()}
	status := http.StatusOK
	for name, check := range h.checks {
		ok := check(c.Request.Context())
		body[name] = ok
		if !ok {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}
	c.JSON(status, body)
}

// Status reports the connectivity mode and when data was last synchronized.
func (h *Handler) Status(c *gin.Context) {
	st := h.dash.Snapshot()
	body := gin.H{
		"mode":    "online",
		"offline": h.data.Offline(),
		"sources": st.Sources,
	}
	if h.data.Offline() {
		body["mode"] = "offline"
	}
	if !st.LastSync.IsZero() {
		body["last_sync"] = st.LastSync
	}
	c.JSON(http.StatusOK, body)
}

// Dashboard returns the front-page summary.
func (h *Handler) Dashboard(c *gin.Context) {
	c.JSON(http.StatusOK, h.dash.Summary(c.Request.Context()))
}

// Refresh queues a dashboard refresh.
func (h *Handler) Refresh(c *gin.Context) {
	job := queue.NewJob(queue.JobRefresh, "api")
	err := h.queue.Publish(c.Request.Context(), job)
	switch {
	case errors.Is(err, queue.ErrFull):
		c.JSON(http.StatusAccepted, gin.H{"status": "pending"})
		return
	case err != nil:
		h.log.Error("queue publish failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "could not queue refresh"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "queued", "job_id": job.ID})
}

// ReadResource reads any collection through the data-access layer.
func (h *Handler) ReadResource(c *gin.Context) {
	endpoint, ok := endpointParam(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.data.Read(c.Request.Context(), endpoint))
}

// WriteResource writes one record through the data-access layer.
func (h *Handler) WriteResource(c *gin.Context) {
	endpoint, ok := endpointParam(c)
	if !ok {
		return
	}
	var rec record.Record
	if err := c.ShouldBindJSON(&rec); err != nil || rec == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must be a JSON object"})
		return
	}
	c.JSON(http.StatusCreated, h.data.Write(c.Request.Context(), endpoint, rec))
}

// AddStudent handles the "add student" form.
func (h *Handler) AddStudent(c *gin.Context) {
	var in dashboard.StudentInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid student payload"})
		return
	}
	res, err := h.dash.AddStudent(c.Request.Context(), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// ListStudents serves the filtered, paged student list.
func (h *Handler) ListStudents(c *gin.Context) {
	var q dashboard.StudentQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid student query"})
		return
	}
	c.JSON(http.StatusOK, h.dash.ListStudents(q))
}

// attendanceRequest is the body of both attendance routes; present defaults
// to true.
type attendanceRequest struct {
	StudentID any    `json:"student_id"`
	Date      string `json:"date"`
	Present   *bool  `json:"present"`
}

func (r attendanceRequest) present() bool {
	return r.Present == nil || *r.Present
}

// MarkStudent records one student's attendance.
func (h *Handler) MarkStudent(c *gin.Context) {
	var req attendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	res, err := h.dash.MarkStudent(c.Request.Context(), req.StudentID, req.Date, req.present())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// MarkAll marks every loaded student present or absent. The body is optional.
func (h *Handler) MarkAll(c *gin.Context) {
	var req attendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	results, err := h.dash.MarkAll(c.Request.Context(), req.Date, req.present())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(results), "present": req.present(), "results": results})
}

func (h *Handler) fail(c *gin.Context, err error) {
	if dashboard.IsValidation(err) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

func endpointParam(c *gin.Context) (string, bool) {
	endpoint := c.Param("endpoint")
	if endpoint == "" || endpoint == "/" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "endpoint required"})
		return "", false
	}
	return endpoint, true
}
