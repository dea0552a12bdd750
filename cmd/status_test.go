package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestStatusJob(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/jobs":
			w.Write([]byte(`[{"id":"j1","state":"running","design":"ar","method":"refine","chi2":0.5,"initialChi2":2}]`))
		case "/api/v1/jobs/j1/status":
			w.Write([]byte(`{"id":"j1","state":"completed","design":"ar","method":"refine","status":"minimum found","chi2":0.5,"initialChi2":2,"iterations":4,"layers":2,"progress":1,"elapsed":1.5}`))
		default:
			http.Error(w, "Job not found", http.StatusNotFound)
		}
	}))
	defer ts.Close()

	var out bytes.Buffer
	if err := listJobs(&out, ts.URL+"/api/v1/jobs"); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "Found 1 job(s)") || !strings.Contains(out.String(), "Chi2: 2 -> 0.5") {
		t.Errorf("Unexpected listing:\n%s", out.String())
	}

	out.Reset()
	if err := getJobStatus(&out, ts.URL+"/api/v1/jobs/j1/status", "j1"); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"State: completed", "Iterations: 4", "Improvement: 75.0%", "Elapsed: 1.5s", "Status: minimum found"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("Status output misses %q:\n%s", want, out.String())
		}
	}

	err := getJobStatus(&out, ts.URL+"/api/v1/jobs/missing/status", "missing")
	if err == nil || !strings.Contains(err.Error(), "job not found") {
		t.Errorf("Expected job not found, got %v", err)
	}
}
