package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ruraldash/internal/record"
)

func TestList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/students/":
			w.Write([]byte(`[{"id":1,"name":"Asha"},{"id":2,"name":"Ravi"}]`))
		case "/attendance/today":
			w.Write([]byte(`{"date":"2024-05-01","present_count":3}`))
		case "/broken/":
			w.Write([]byte(`[{"id":`))
		default:
			http.Error(w, `{"detail":"Not Found"}`, http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := New(srv.URL+"/", "", time.Second)
	ctx := context.Background()

	coll, err := c.List(ctx, "/students/")
	require.NoError(t, err)
	require.Len(t, coll, 2)
	assert.Equal(t, "Ravi", coll[1].String("name"))

	coll, err = c.List(ctx, "/attendance/today")
	require.NoError(t, err)
	require.Len(t, coll, 1)
	assert.Equal(t, "2024-05-01", coll[0].String("date"))

	_, err = c.List(ctx, "/broken/")
	assert.Error(t, err)

	_, err = c.List(ctx, "/missing/")
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.Code)
}

func TestCreate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var in record.Record
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		in["id"] = 99
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(in)
	}))
	defer srv.Close()

	c := New(srv.URL, "", time.Second)
	out, err := c.Create(context.Background(), "/attendance/", record.Record{"student_id": 7, "present": true})
	require.NoError(t, err)
	assert.Equal(t, 99.0, out["id"])
	assert.Equal(t, true, out["present"])
}

func TestCreateServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := New(srv.URL, "", time.Second).Create(context.Background(), "/students/", record.Record{"name": "x"})
	assert.Error(t, err)
}

func TestHealth(t *testing.T) {
	healthy := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/health", r.URL.Path)
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"status":"healthy"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "", time.Second)
	assert.NoError(t, c.Health(context.Background()))

	healthy = false
	assert.Error(t, c.Health(context.Background()))

	srv.Close()
	assert.Error(t, c.Health(context.Background()))
}
