package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tgienger/pmt/internal/lifecycle"
	"github.com/tgienger/pmt/internal/models"
)

type staticToken string

func (s staticToken) Token() string { return string(s) }

type recorded struct {
	Method string
	Path   string
	Header http.Header
	Body   []byte
}

// backend is a fake server that records requests and replies from a route table
type backend struct {
	t      *testing.T
	mu     sync.Mutex
	reqs   []recorded
	routes map[string]http.HandlerFunc
}

func newBackend(t *testing.T) (*backend, *Client) {
	t.Helper()
	b := &backend{t: t, routes: map[string]http.HandlerFunc{}}
	srv := httptest.NewServer(http.HandlerFunc(b.serve))
	t.Cleanup(srv.Close)
	return b, New(Config{BaseURL: srv.URL + "/api/", Timeout: 2 * time.Second}, staticToken("tok"))
}

func (b *backend) handle(pattern string, h http.HandlerFunc) { b.routes[pattern] = h }

func (b *backend) json(pattern string, status int, v any) {
	b.handle(pattern, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(v)
	})
}

func (b *backend) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	b.mu.Lock()
	b.reqs = append(b.reqs, recorded{Method: r.Method, Path: r.URL.Path, Header: r.Header.Clone(), Body: body})
	b.mu.Unlock()

	h, ok := b.routes[r.Method+" "+r.URL.Path]
	if !ok {
		http.NotFound(w, r)
		return
	}
	h(w, r)
}

func (b *backend) last() recorded {
	b.mu.Lock()
	defer b.mu.Unlock()
	require.NotEmpty(b.t, b.reqs)
	return b.reqs[len(b.reqs)-1]
}

func (b *backend) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.reqs)
}

func TestHeaders(t *testing.T) {
	b, c := newBackend(t)
	b.json("GET /api/users", http.StatusOK, []models.User{})

	_, err := c.Users(context.Background())
	require.NoError(t, err)

	req := b.last()
	assert.Equal(t, "Bearer tok", req.Header.Get("Authorization"))
	_, err = uuid.Parse(req.Header.Get("X-Request-ID"))
	assert.NoError(t, err, "request id is a uuid")
}

func TestNoTokenNoAuthorization(t *testing.T) {
	b, _ := newBackend(t)
	b.json("GET /api/users", http.StatusOK, []models.User{})

	srv := httptest.NewServer(http.HandlerFunc(b.serve))
	defer srv.Close()
	c := New(Config{BaseURL: srv.URL + "/api"}, staticToken(""))

	_, err := c.Users(context.Background())
	require.NoError(t, err)
	assert.Empty(t, b.last().Header.Get("Authorization"))
}

func TestStatusErrors(t *testing.T) {
	b, c := newBackend(t)
	b.json("GET /api/tasks/t1", http.StatusUnauthorized, map[string]string{"message": "token expired"})
	b.json("GET /api/tasks/t2", http.StatusForbidden, map[string]string{"message": "Access denied"})
	b.handle("GET /api/tasks/t3", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := c.Task(context.Background(), "t1")
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.NotErrorIs(t, err, ErrRequestFailed)

	_, err = c.Task(context.Background(), "t2")
	assert.ErrorIs(t, err, ErrRequestFailed)
	assert.NotErrorIs(t, err, ErrSessionExpired)
	assert.Equal(t, "Access denied", Message(err))

	_, err = c.Task(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, ErrRequestFailed)

	_, err = c.Task(context.Background(), "t3")
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusInternalServerError, se.Status)
	assert.Equal(t, "boom", se.Message)
	assert.True(t, IsTransient(err))
}

func TestBackendUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(Config{BaseURL: url, Timeout: time.Second}, nil)
	_, err := c.Users(context.Background())
	assert.ErrorIs(t, err, ErrBackendUnavailable)
	assert.True(t, IsTransient(err))
	assert.Equal(t, "Cannot reach the server", Message(err))
}

func TestGetIsShared(t *testing.T) {
	b, c := newBackend(t)

	entered := make(chan struct{})
	release := make(chan struct{})
	var hits atomic.Int32
	b.handle("GET /api/tasks/project/p1", func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			close(entered)
		}
		<-release
		w.Write([]byte(`[{"id":"t1","name":"A","state":"NOT_STARTED"}]`))
	})

	var wg sync.WaitGroup
	results := make([][]models.Task, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tasks, err := c.ProjectTasks(context.Background(), "p1")
			assert.NoError(t, err)
			results[i] = tasks
		}(i)
		if i == 0 {
			<-entered
		}
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), hits.Load())
	assert.Len(t, results[0], 1)
	assert.Len(t, results[1], 1)
}

func TestGetAfterWriteIsNotShared(t *testing.T) {
	b, c := newBackend(t)

	var (
		mu    sync.Mutex
		state = "IN_PROGRESS"
	)
	entered := make(chan struct{})
	release := make(chan struct{})
	var hits atomic.Int32
	b.handle("GET /api/tasks/t1", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		current := state
		mu.Unlock()
		if hits.Add(1) == 1 {
			close(entered)
			<-release
		}
		json.NewEncoder(w).Encode(map[string]string{"id": "t1", "state": current})
	})
	b.handle("PUT /api/tasks/t1/finish", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		state = "WAITING_FOR_APPROVAL"
		mu.Unlock()
		json.NewEncoder(w).Encode(map[string]string{"id": "t1", "state": "WAITING_FOR_APPROVAL"})
	})

	// A load that is still in flight when the write lands
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		task, err := c.Task(context.Background(), "t1")
		assert.NoError(t, err)
		assert.Equal(t, models.StateInProgress, task.State)
	}()
	<-entered

	_, err := c.Transition(context.Background(), "t1", lifecycle.Finish)
	require.NoError(t, err)

	refetched := make(chan *models.Task, 1)
	go func() {
		task, err := c.Task(context.Background(), "t1")
		assert.NoError(t, err)
		refetched <- task
	}()

	select {
	case task := <-refetched:
		require.NotNil(t, task)
		assert.Equal(t, models.StateWaitingForApproval, task.State)
	case <-time.After(time.Second):
		t.Fatal("refetch after a write waited on the earlier load")
	}

	close(release)
	wg.Wait()
	assert.Equal(t, int32(2), hits.Load())
}

func TestErrorMessageKeepsRunesWhole(t *testing.T) {
	body := strings.Repeat("é", 250)
	msg := errorMessage([]byte(body))

	assert.True(t, utf8.ValidString(msg))
	assert.Equal(t, maxErrorRunes, utf8.RuneCountInString(msg))
	assert.Equal(t, "boom", errorMessage([]byte("  boom \n")))
}

func TestRateLimit(t *testing.T) {
	b, _ := newBackend(t)
	b.json("PUT /api/tasks/t1/start", http.StatusOK, map[string]string{"id": "t1", "state": "IN_PROGRESS"})

	srv := httptest.NewServer(http.HandlerFunc(b.serve))
	defer srv.Close()
	c := New(Config{BaseURL: srv.URL + "/api", RateLimit: 1}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := c.Transition(ctx, "t1", lifecycle.Start)
	require.NoError(t, err)
	_, err = c.Transition(ctx, "t1", lifecycle.Start)
	assert.Error(t, err, "second request must wait for a token past the deadline")
	assert.Equal(t, 1, b.count())
}

func TestContextCanceled(t *testing.T) {
	_, c := newBackend(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Users(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.NotErrorIs(t, err, ErrBackendUnavailable)
}
