package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
)

func sortJobs(jobs []*Job) {
	sort.SliceStable(jobs, func(i, k int) bool { return jobs[i].StartTime.Before(jobs[k].StartTime) })
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
