package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// StepReport collects the steps an install went through so they can be
// written out even when the install fails halfway.
type StepReport struct {
	Title string
	Items []string
}

// NewStepReport returns an empty report with the given title.
func NewStepReport(title string) *StepReport {
	return &StepReport{Title: title, Items: []string{}}
}

// Add records a step with a timestamp.
func (r *StepReport) Add(format string, args ...interface{}) {
	line := fmt.Sprintf(format, args...)
	r.Items = append(r.Items, time.Now().UTC().Format(time.RFC3339)+" "+line)
}

// SafeTitle returns the title reduced to [A-Za-z0-9_] for use in a filename.
func (r *StepReport) SafeTitle() string {
	title := r.Title
	if title == "" {
		title = "untitled"
	}
	safe := make([]rune, 0, len(title))
	for _, c := range title {
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			safe = append(safe, c)
		} else {
			safe = append(safe, '_')
		}
	}
	return string(safe)
}

// WriteTo appends the report to dir/install-<title>.txt and clears it.
// It returns the path written.
func (r *StepReport) WriteTo(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating report dir: %w", err)
	}

	reportPath := filepath.Join(dir, fmt.Sprintf("install-%s.txt", r.SafeTitle()))

	f, err := os.OpenFile(reportPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return "", fmt.Errorf("opening report file: %w", err)
	}
	defer f.Close()

	for _, item := range r.Items {
		if _, err := fmt.Fprintln(f, item); err != nil {
			return "", fmt.Errorf("writing to report file: %w", err)
		}
	}
	if _, err := fmt.Fprintln(f); err != nil {
		return "", fmt.Errorf("writing new line to report file: %w", err)
	}

	r.Items = []string{}
	return reportPath, nil
}
