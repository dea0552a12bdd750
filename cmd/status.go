package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var serverURL string

var statusCmd = &cobra.Command{
	Use:   "status [job-id]",
	Short: "Query server status or specific job",
	Long: `Queries the server for job status information.
If no job-id is provided, lists all jobs.
If job-id is provided, shows detailed status for that job.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return listJobs(cmd.OutOrStdout(), serverURL+"/api/v1/jobs")
	}
	return getJobStatus(cmd.OutOrStdout(), serverURL+"/api/v1/jobs/"+args[0]+"/status", args[0])
}

func getJSON(url string, v any) (int, error) {
	resp, err := http.Get(url)
	if err != nil {
		return 0, fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, fmt.Errorf("server returned error: %s", string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
	}
	return resp.StatusCode, nil
}

// jobSummary holds the job fields printed by status.
type jobSummary struct {
	ID          string   `json:"id"`
	State       string   `json:"state"`
	Design      string   `json:"design"`
	Method      string   `json:"method"`
	Status      string   `json:"status"`
	Chi2        float64  `json:"chi2"`
	InitialChi2 float64  `json:"initialChi2"`
	Iterations  int      `json:"iterations"`
	Inserted    int      `json:"inserted"`
	Layers      int      `json:"layers"`
	Progress    float64  `json:"progress"`
	Elapsed     *float64 `json:"elapsed"`
	Error       string   `json:"error"`
}

func listJobs(out io.Writer, url string) error {
	var jobs []jobSummary
	if _, err := getJSON(url, &jobs); err != nil {
		return err
	}
	if len(jobs) == 0 {
		fmt.Fprintln(out, "No jobs found")
		return nil
	}

	fmt.Fprintf(out, "Found %d job(s):\n\n", len(jobs))
	for _, job := range jobs {
		fmt.Fprintf(out, "Job ID: %s\n", job.ID)
		fmt.Fprintf(out, "  State: %s\n", job.State)
		if job.Design != "" {
			fmt.Fprintf(out, "  Design: %s (%s)\n", job.Design, job.Method)
		}
		if job.InitialChi2 > 0 {
			fmt.Fprintf(out, "  Chi2: %.6g -> %.6g\n", job.InitialChi2, job.Chi2)
		}
		fmt.Fprintln(out)
	}
	return nil
}

func getJobStatus(out io.Writer, url, jobID string) error {
	var status jobSummary
	code, err := getJSON(url, &status)
	if code == http.StatusNotFound {
		return fmt.Errorf("job not found: %s", jobID)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Job: %s\n", status.ID)
	fmt.Fprintf(out, "State: %s\n", status.State)
	fmt.Fprintf(out, "Design: %s\n", status.Design)
	fmt.Fprintf(out, "Method: %s\n", status.Method)
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Progress:")
	if status.Progress >= 0 {
		fmt.Fprintf(out, "  Done: %.0f%%\n", status.Progress*100)
	}
	fmt.Fprintf(out, "  Iterations: %d\n", status.Iterations)
	if status.Inserted > 0 {
		fmt.Fprintf(out, "  Inserted layers: %d\n", status.Inserted)
	}
	fmt.Fprintf(out, "  Layers: %d\n", status.Layers)
	if status.InitialChi2 > 0 {
		fmt.Fprintf(out, "  Initial Chi2: %.6g\n", status.InitialChi2)
		fmt.Fprintf(out, "  Chi2: %.6g\n", status.Chi2)
		fmt.Fprintf(out, "  Improvement: %.1f%%\n", (status.InitialChi2-status.Chi2)/status.InitialChi2*100)
	}
	if status.Elapsed != nil {
		elapsed := time.Duration(*status.Elapsed * float64(time.Second))
		fmt.Fprintf(out, "  Elapsed: %s\n", elapsed.Round(time.Millisecond))
	}
	if status.Status != "" {
		fmt.Fprintf(out, "  Status: %s\n", status.Status)
	}
	if status.Error != "" {
		fmt.Fprintf(out, "\nError: %s\n", status.Error)
	}
	return nil
}
