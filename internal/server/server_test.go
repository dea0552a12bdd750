package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cwbudde/thinfilm/internal/store"
)

func postJob(t *testing.T, h http.Handler, config JobConfig) *httptest.ResponseRecorder {
	t.Helper()
	body, _ := json.Marshal(config)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", bytes.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func waitFinished(t *testing.T, jm *JobManager, id string) *Job {
	t.Helper()
	deadline := time.Now().Add(30 * time.Second)
	for time.Now().Before(deadline) {
		job, ok := jm.GetJob(id)
		if ok && job.State.Finished() {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("Job %s did not finish", id)
	return nil
}

func TestServer_CreateJob(t *testing.T) {
	s := NewServer(":0", nil)
	defer s.Shutdown(context.Background())

	w := postJob(t, s.Handler(), JobConfig{Document: quarterWave})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	var job Job
	if err := json.NewDecoder(w.Body).Decode(&job); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if job.ID == "" {
		t.Error("Job ID should not be empty")
	}

	done := waitFinished(t, s.jobManager, job.ID)
	if done.State != StateCompleted {
		t.Errorf("Expected completed, got %s (%s)", done.State, done.Error)
	}
}

func TestServer_CreateJobRejectsBadRequests(t *testing.T) {
	s := NewServer(":0", nil)
	h := s.Handler()

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", "{"},
		{"no design", "{}"},
		{"broken document", `{"document": "medium: air\nsubstrate: nothing\n"}`},
		{"unknown key", `{"document": "colour: red\n"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			if w.Code != http.StatusBadRequest {
				t.Errorf("Expected status 400, got %d", w.Code)
			}
		})
	}
	if jobs := s.jobManager.ListJobs(); len(jobs) != 0 {
		t.Errorf("Rejected requests created %d jobs", len(jobs))
	}
}

func TestServer_ListJobs(t *testing.T) {
	s := NewServer(":0", nil)
	s.jobManager.CreateJob(JobConfig{Path: "a.yaml"})
	s.jobManager.CreateJob(JobConfig{Path: "b.yaml"})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var jobs []*Job
	if err := json.NewDecoder(w.Body).Decode(&jobs); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(jobs) != 2 {
		t.Errorf("Expected 2 jobs, got %d", len(jobs))
	}
}

func TestServer_MethodNotAllowed(t *testing.T) {
	s := NewServer(":0", nil)
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/jobs", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", w.Code)
	}
}

func TestServer_GetJobStatus(t *testing.T) {
	s := NewServer(":0", nil)
	job := s.jobManager.CreateJob(JobConfig{Path: "a.yaml"})
	s.jobManager.UpdateJob(job.ID, func(j *Job) {
		j.State = StateRunning
		j.Chi2 = 2.5
		j.Iterations = 7
	})

	for _, path := range []string{"/api/v1/jobs/" + job.ID, "/api/v1/jobs/" + job.ID + "/status"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("%s: expected status 200, got %d", path, w.Code)
		}
		var status map[string]any
		if err := json.NewDecoder(w.Body).Decode(&status); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if status["state"] != string(StateRunning) {
			t.Errorf("Expected running, got %v", status["state"])
		}
		if status["chi2"] != 2.5 || status["iterations"] != 7.0 {
			t.Errorf("Unexpected progress: %v", status)
		}
		if _, ok := status["elapsed"]; !ok {
			t.Error("Status should include elapsed")
		}
	}
}

func TestServer_NotFound(t *testing.T) {
	s := NewServer(":0", nil)
	job := s.jobManager.CreateJob(JobConfig{Path: "a.yaml"})

	for _, path := range []string{
		"/api/v1/jobs/missing",
		"/api/v1/jobs/missing/stream",
		"/api/v1/jobs/missing/spectrum",
		"/api/v1/jobs/" + job.ID + "/best.png",
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, req)
		if w.Code != http.StatusNotFound {
			t.Errorf("%s: expected status 404, got %d", path, w.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 without ID, got %d", w.Code)
	}
}

func TestServer_Spectrum(t *testing.T) {
	s := NewServer(":0", nil)
	defer s.Shutdown(context.Background())
	h := s.Handler()

	pending := s.jobManager.CreateJob(JobConfig{Path: "a.yaml"})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+pending.ID+"/spectrum", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusConflict {
		t.Errorf("Expected status 409 before build, got %d", w.Code)
	}

	var job Job
	json.NewDecoder(postJob(t, h, JobConfig{Document: quarterWave}).Body).Decode(&job)
	waitFinished(t, s.jobManager, job.ID)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+job.ID+"/spectrum?kind=T&from=500&to=600&points=5", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var a store.SpectrumArchive
	if err := json.NewDecoder(w.Body).Decode(&a); err != nil {
		t.Fatal(err)
	}
	if a.Kind != "T" || len(a.Values) != 5 || a.Polarization != 45 {
		t.Errorf("Unexpected spectrum: %+v", a)
	}
	for _, v := range a.Values {
		if v < 0.9 || v > 1 {
			t.Errorf("Transmittance of an antireflection layer out of range: %g", v)
		}
	}

	for _, query := range []string{"kind=X", "from=abc", "points=0"} {
		req = httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+job.ID+"/spectrum?"+query, nil)
		w = httptest.NewRecorder()
		h.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected status 400, got %d", query, w.Code)
		}
	}
}

func TestServer_SpectrumAngleDefaultsToDesign(t *testing.T) {
	s := NewServer(":0", nil)
	defer s.Shutdown(context.Background())
	h := s.Handler()

	doc := strings.Replace(quarterWave, "center_wavelength: 550\n", "center_wavelength: 550\nangle: 30\nback_angle: 10\n", 1)
	var job Job
	json.NewDecoder(postJob(t, h, JobConfig{Document: doc}).Body).Decode(&job)
	waitFinished(t, s.jobManager, job.ID)

	for query, want := range map[string]float64{"": 30, "reverse=true": 10, "angle=5&reverse=true": 5} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+job.ID+"/spectrum?points=3&"+query, nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("%q: expected status 200, got %d: %s", query, w.Code, w.Body.String())
		}
		var a store.SpectrumArchive
		if err := json.NewDecoder(w.Body).Decode(&a); err != nil {
			t.Fatal(err)
		}
		if a.Angle != want {
			t.Errorf("%q: expected angle %g, got %g", query, want, a.Angle)
		}
	}
}

func TestServer_CancelJob(t *testing.T) {
	s := NewServer(":0", nil)
	job := s.jobManager.CreateJob(JobConfig{Document: quarterWave})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.jobManager.setCancel(job.ID, cancel)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs/"+job.ID+"/cancel", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusAccepted {
		t.Errorf("Expected status 202, got %d", w.Code)
	}
	if ctx.Err() == nil {
		t.Error("Job context should be cancelled")
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+job.ID+"/cancel", nil)
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", w.Code)
	}
}

func TestServer_Designs(t *testing.T) {
	st, err := store.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	s := NewServer(":0", st)
	defer s.Shutdown(context.Background())
	h := s.Handler()

	var job Job
	json.NewDecoder(postJob(t, h, JobConfig{Document: quarterWave}).Body).Decode(&job)
	waitFinished(t, s.jobManager, job.ID)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/designs", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var infos []store.SnapshotInfo
	if err := json.NewDecoder(w.Body).Decode(&infos); err != nil {
		t.Fatal(err)
	}
	if len(infos) != 1 || infos[0].ID != job.ID || infos[0].Design != "quarter-wave" {
		t.Errorf("Unexpected designs: %+v", infos)
	}
}

func TestServer_CORS(t *testing.T) {
	s := NewServer(":0", nil)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/jobs", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("CORS header missing")
	}
}

func readEvents(t *testing.T, url string) []ProgressEvent {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Expected text/event-stream, got %s", ct)
	}

	var events []ProgressEvent
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev ProgressEvent
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			t.Fatalf("Bad event %q: %v", line, err)
		}
		events = append(events, ev)
	}
	return events
}

func TestServer_StreamEndsWithFinalEvent(t *testing.T) {
	s := NewServer(":0", nil)
	defer s.Shutdown(context.Background())
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	var job Job
	json.NewDecoder(postJob(t, s.Handler(), JobConfig{Document: quarterWave}).Body).Decode(&job)

	events := readEvents(t, ts.URL+"/api/v1/jobs/"+job.ID+"/stream")
	if len(events) == 0 {
		t.Fatal("Expected at least one event")
	}
	last := events[len(events)-1]
	if last.State != StateCompleted {
		t.Errorf("Last event should be completed, got %s", last.State)
	}
	if last.JobID != job.ID {
		t.Errorf("Event for wrong job: %s", last.JobID)
	}

	// A finished job answers with a single event.
	events = readEvents(t, ts.URL+"/api/v1/jobs/"+job.ID+"/stream")
	if len(events) != 1 || events[0].State != StateCompleted {
		t.Errorf("Expected one completed event, got %+v", events)
	}
}

func TestEventBroadcaster(t *testing.T) {
	eb := NewEventBroadcaster()
	eb.Broadcast(ProgressEvent{JobID: "a", Iterations: 1})

	ch := eb.Subscribe("a")
	select {
	case ev := <-ch:
		if ev.Iterations != 1 {
			t.Errorf("Expected replayed event, got %+v", ev)
		}
	default:
		t.Fatal("Last event should be replayed")
	}

	eb.Broadcast(ProgressEvent{JobID: "a", Iterations: 2})
	eb.Broadcast(ProgressEvent{JobID: "b", Iterations: 9})
	if ev := <-ch; ev.Iterations != 2 {
		t.Errorf("Expected iteration 2, got %d", ev.Iterations)
	}

	eb.CleanupJob("a")
	if _, ok := <-ch; ok {
		t.Error("Channel should be closed after cleanup")
	}
	eb.Unsubscribe("a", ch)
}
