// Package main probes a running advisor instance. Exit codes suit Docker
// HEALTHCHECK: 0 when the status is acceptable, 1 when it is not, 2 when
// the endpoint could not be read.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/goccy/go-json"

	"github.com/smartcrop/advisor/internal/infrastructure/config"
	"github.com/smartcrop/advisor/pkg/healthcheck"
)

const (
	exitCodeSuccess = 0
	exitCodeFailure = 1
	exitCodeError   = 2
)

// Options holds command-line configuration
type Options struct {
	URL            string
	ConfigPath     string
	Timeout        time.Duration
	Verbose        bool
	OutputFormat   string
	ExpectedStatus string
	RetryCount     int
	RetryDelay     time.Duration
}

func main() {
	opts := parseFlags()
	if opts.URL == "" {
		url, err := urlFromConfig(opts.ConfigPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
			os.Exit(exitCodeError)
		}
		opts.URL = url
	}
	os.Exit(run(opts))
}

func parseFlags() Options {
	opts := Options{}
	flag.StringVar(&opts.URL, "url", os.Getenv("HEALTH_CHECK_URL"), "Health endpoint URL; derived from the configuration when empty")
	flag.StringVar(&opts.ConfigPath, "config", "", "Configuration file path")
	flag.DurationVar(&opts.Timeout, "timeout", 5*time.Second, "Request timeout")
	flag.BoolVar(&opts.Verbose, "verbose", false, "Print every check")
	flag.StringVar(&opts.OutputFormat, "format", "text", "Output format: text, json")
	flag.StringVar(&opts.ExpectedStatus, "expect", "degraded", "Worst acceptable status: healthy or degraded")
	flag.IntVar(&opts.RetryCount, "retry", 0, "Number of retries on failure")
	flag.DurationVar(&opts.RetryDelay, "retry-delay", time.Second, "Delay between retries")
	flag.Parse()
	return opts
}

func urlFromConfig(path string) (string, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return "", err
	}
	host := cfg.Server.Host
	if host == "" || host == "0.0.0.0" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("http://%s:%d%s", host, cfg.Server.Port, cfg.Monitoring.HealthCheckPath), nil
}

func run(opts Options) int {
	client := &http.Client{Timeout: opts.Timeout}

	var lastErr error
	for attempt := 0; attempt <= opts.RetryCount; attempt++ {
		if attempt > 0 {
			if opts.Verbose {
				fmt.Printf("Retrying in %v... (attempt %d/%d)\n", opts.RetryDelay, attempt, opts.RetryCount)
			}
			time.Sleep(opts.RetryDelay)
		}

		report, err := fetch(client, opts.URL)
		if err != nil {
			lastErr = err
			continue
		}
		output(report, opts)
		return exitCode(report.Status, healthcheck.Status(opts.ExpectedStatus))
	}

	fmt.Fprintf(os.Stderr, "Health check failed after %d attempts: %v\n", opts.RetryCount+1, lastErr)
	return exitCodeError
}

// report mirrors the JSON of the health endpoint.
type report struct {
	Status    healthcheck.Status `json:"status"`
	Version   string             `json:"version"`
	Timestamp time.Time          `json:"timestamp"`
	Duration  float64            `json:"total_duration_ms"`
	Checks    []struct {
		Name     string             `json:"name"`
		Status   healthcheck.Status `json:"status"`
		Message  string             `json:"message"`
		Duration float64            `json:"duration_ms"`
	} `json:"checks"`
}

func fetch(client *http.Client, url string) (*report, error) {
	resp, err := client.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var r report
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("decode %s (HTTP %d): %w", url, resp.StatusCode, err)
	}
	return &r, nil
}

// exitCode maps the reported status against the worst acceptable one.
func exitCode(got, worst healthcheck.Status) int {
	switch got {
	case healthcheck.StatusHealthy:
		return exitCodeSuccess
	case healthcheck.StatusDegraded:
		if worst == healthcheck.StatusHealthy {
			return exitCodeFailure
		}
		return exitCodeSuccess
	default:
		return exitCodeFailure
	}
}

func output(r *report, opts Options) {
	if opts.OutputFormat == "json" {
		data, _ := json.MarshalIndent(r, "", "  ")
		fmt.Println(string(data))
		return
	}

	fmt.Printf("Status: %s\n", r.Status)
	fmt.Printf("Version: %s\n", r.Version)
	fmt.Printf("Timestamp: %s\n", r.Timestamp.Format(time.RFC3339))
	fmt.Printf("Duration: %.1fms\n", r.Duration)
	if !opts.Verbose {
		return
	}
	for _, check := range r.Checks {
		fmt.Printf("  %s: %s", check.Name, check.Status)
		if check.Message != "" {
			fmt.Printf(" (%s)", check.Message)
		}
		fmt.Printf(" [%.1fms]\n", check.Duration)
	}
}
