// Package quality collects data-quality issues raised while a workbook
// is converted and condenses them into a score and report.
package quality

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Severity grades an issue.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Issue categories used across the pipeline. The score weights key off
// these values.
const (
	CategoryMissingHeaders     = "missing_headers"
	CategoryFormulaErrors      = "formula_errors"
	CategoryDataValidation     = "data_validation"
	CategoryValidationWarning  = "validation_warning"
	CategoryValidationFailed   = "validation_failed"
	CategoryFileValidation     = "file_validation_failed"
	CategoryProcessingFailed   = "processing_failed"
	CategoryEmptyExtraction    = "empty_extraction"
	CategoryUnmatchedReference = "unmatched_reference"
	CategoryCompletion         = "completion"
)

// Issue is one recorded processing finding.
type Issue struct {
	Severity Severity  `json:"severity"`
	Step     string    `json:"step"`
	Category string    `json:"category"`
	Message  string    `json:"message"`
	Details  string    `json:"details,omitempty"`
	Time     time.Time `json:"time"`
}

// Stats aggregates run counters for the report.
type Stats struct {
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
	StepsCompleted int       `json:"steps_completed"`
	TotalWarnings  int       `json:"total_warnings"`
	TotalErrors    int       `json:"total_errors"`
	FilesProcessed int       `json:"files_processed"`
	RowsExtracted  int       `json:"rows_extracted"`
	RowsFinal      int       `json:"rows_final"`
}

// Summary is the user-facing digest of a run.
type Summary struct {
	QualityScore      float64  `json:"quality_score"`
	TotalIssues       int      `json:"total_issues"`
	WarningCount      int      `json:"warnings_count"`
	ErrorCount        int      `json:"errors_count"`
	DataQualityIssues int      `json:"data_quality_issues"`
	ProcessingIssues  int      `json:"processing_issues"`
	ProcessingSeconds float64  `json:"processing_time_seconds"`
	Recommendations   []string `json:"recommendations"`
}

// Report bundles everything for export.
type Report struct {
	Issues           []Issue `json:"issues"`
	Stats            Stats   `json:"statistics"`
	Summary          Summary `json:"summary"`
	InputFingerprint string  `json:"input_fingerprint,omitempty"`
}

// Reporter tracks issues for a single conversion run. Safe for
// concurrent use: progress consumers read while stages append.
type Reporter struct {
	mu     sync.RWMutex
	logger *slog.Logger
	issues []Issue
	stats  Stats
}

// NewReporter creates a reporter logging through the supplied logger.
func NewReporter(logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{
		logger: logger.With(slog.String("component", "quality_reporter")),
	}
}

// Start marks the beginning of processing.
func (r *Reporter) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.StartTime = time.Now()
}

// End marks the end of processing.
func (r *Reporter) End() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.EndTime = time.Now()
}

// AddIssue records an issue of any severity.
func (r *Reporter) AddIssue(sev Severity, step, category, message, details string) {
	r.mu.Lock()
	r.issues = append(r.issues, Issue{
		Severity: sev,
		Step:     step,
		Category: category,
		Message:  message,
		Details:  details,
		Time:     time.Now(),
	})
	switch sev {
	case SeverityWarning:
		r.stats.TotalWarnings++
	case SeverityError:
		r.stats.TotalErrors++
	}
	r.mu.Unlock()

	level := slog.LevelInfo
	switch sev {
	case SeverityWarning:
		level = slog.LevelWarn
	case SeverityError:
		level = slog.LevelError
	}
	r.logger.Log(context.Background(), level, message,
		slog.String("step", step),
		slog.String("category", category),
	)
}

// AddWarning records a warning.
func (r *Reporter) AddWarning(step, category, message string) {
	r.AddIssue(SeverityWarning, step, category, message, "")
}

// AddError records an error.
func (r *Reporter) AddError(step, category, message string) {
	r.AddIssue(SeverityError, step, category, message, "")
}

// AddInfo records an informational note.
func (r *Reporter) AddInfo(step, category, message string) {
	r.AddIssue(SeverityInfo, step, category, message, "")
}

// StepCompleted marks a pipeline step as done.
func (r *Reporter) StepCompleted(step string) {
	r.mu.Lock()
	r.stats.StepsCompleted++
	r.mu.Unlock()
	r.AddInfo(step, CategoryCompletion, step+" completed successfully")
}

// FileProcessed bumps the processed-file counter.
func (r *Reporter) FileProcessed() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.FilesProcessed++
}

// SetRowsExtracted records how many data rows extraction produced.
func (r *Reporter) SetRowsExtracted(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.RowsExtracted = n
}

// SetRowsFinal records the row count of the finished workbook.
func (r *Reporter) SetRowsFinal(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats.RowsFinal = n
}

// Issues returns a copy of all recorded issues.
func (r *Reporter) Issues() []Issue {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Issue, len(r.issues))
	copy(out, r.issues)
	return out
}

// IssuesBySeverity filters recorded issues by severity.
func (r *Reporter) IssuesBySeverity(sev Severity) []Issue {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Issue
	for _, issue := range r.issues {
		if issue.Severity == sev {
			out = append(out, issue)
		}
	}
	return out
}

// IssuesByStep filters recorded issues by originating step.
func (r *Reporter) IssuesByStep(step string) []Issue {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Issue
	for _, issue := range r.issues {
		if issue.Step == step {
			out = append(out, issue)
		}
	}
	return out
}

// HasCriticalErrors reports whether any recorded error would have
// prevented meaningful output.
func (r *Reporter) HasCriticalErrors() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, issue := range r.issues {
		if issue.Severity != SeverityError {
			continue
		}
		if issue.Category == CategoryFileValidation || issue.Category == CategoryProcessingFailed {
			return true
		}
	}
	return false
}

// QualityScore condenses the issue list into a 0-100 score. Critical
// errors cost 30 points, other errors 15; header and formula warnings
// cost 10, validation warnings 15, anything else 5. Two or more
// missing-header warnings add a one-time 20 point penalty.
func (r *Reporter) QualityScore() float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.scoreLocked()
}

func (r *Reporter) scoreLocked() float64 {
	if len(r.issues) == 0 {
		return 100.0
	}

	score := 100.0
	missingHeaders := 0

	for _, issue := range r.issues {
		switch issue.Severity {
		case SeverityError:
			if issue.Category == CategoryFileValidation || issue.Category == CategoryProcessingFailed {
				score -= 30
			} else {
				score -= 15
			}
		case SeverityWarning:
			switch issue.Category {
			case CategoryMissingHeaders, CategoryFormulaErrors:
				score -= 10
			case CategoryValidationWarning, CategoryValidationFailed:
				score -= 15
			default:
				score -= 5
			}
		}
		if issue.Category == CategoryMissingHeaders {
			missingHeaders++
		}
	}

	if missingHeaders >= 2 {
		score -= 20
	}

	if score < 0 {
		return 0
	}
	return score
}

// Summary builds the user-facing digest.
func (r *Reporter) Summary() Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var warnings, errors, dataIssues, processingIssues int
	for _, issue := range r.issues {
		switch issue.Severity {
		case SeverityWarning:
			warnings++
		case SeverityError:
			errors++
		default:
			continue
		}
		switch issue.Category {
		case CategoryMissingHeaders, CategoryFormulaErrors, CategoryDataValidation:
			dataIssues++
		default:
			processingIssues++
		}
	}

	s := Summary{
		QualityScore:      r.scoreLocked(),
		TotalIssues:       len(r.issues),
		WarningCount:      warnings,
		ErrorCount:        errors,
		DataQualityIssues: dataIssues,
		ProcessingIssues:  processingIssues,
	}

	if !r.stats.StartTime.IsZero() && !r.stats.EndTime.IsZero() {
		s.ProcessingSeconds = r.stats.EndTime.Sub(r.stats.StartTime).Seconds()
	}

	if dataIssues > 0 {
		s.Recommendations = append(s.Recommendations,
			"Consider reviewing your input file for missing headers or formula errors to improve data quality.")
	}
	if s.QualityScore < 80 {
		s.Recommendations = append(s.Recommendations,
			"The processing quality score is below 80%. Please check the detailed issues below.")
	}
	if warnings == 0 && errors == 0 {
		s.Recommendations = append(s.Recommendations,
			"Excellent! Your file was processed without any issues.")
	}

	return s
}

// Stats returns a copy of the run counters.
func (r *Reporter) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stats
}

// Report bundles issues, stats and summary. The fingerprint ties the
// report to the exact input file content.
func (r *Reporter) Report(fingerprint string) Report {
	return Report{
		Issues:           r.Issues(),
		Stats:            r.Stats(),
		Summary:          r.Summary(),
		InputFingerprint: fingerprint,
	}
}

// ExportJSON writes the report to path as indented JSON.
func (r *Reporter) ExportJSON(path, fingerprint string) error {
	data, err := json.MarshalIndent(r.Report(fingerprint), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
