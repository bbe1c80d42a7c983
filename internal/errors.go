package internal

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCategory represents the type of error encountered
type ErrorCategory string

const (
	ErrorCategoryConfig   ErrorCategory = "config_error"       // Bad template or settings, fatal before the batch
	ErrorCategoryIO       ErrorCategory = "io_error"           // File system, permissions, disk space
	ErrorCategoryHash     ErrorCategory = "hash_mismatch"      // Corruption detected after copy/move
	ErrorCategoryConflict ErrorCategory = "conflict_exhausted" // Suffix ceiling reached for a destination
	ErrorCategoryGeocode  ErrorCategory = "geocode_error"      // Reverse lookup failed, degraded to Unknown Location
	ErrorCategoryMetadata ErrorCategory = "metadata_error"     // EXIF/metadata extraction failed
	ErrorCategoryUnknown  ErrorCategory = "unknown_error"      // Unexpected errors
)

// ErrorSeverity indicates how critical the error is
type ErrorSeverity string

const (
	ErrorSeverityCritical ErrorSeverity = "critical" // Aborts the run (config errors, disk full)
	ErrorSeverityError    ErrorSeverity = "error"    // File-level issues, batch continues
	ErrorSeverityWarning  ErrorSeverity = "warning"  // Recoverable issues (date mismatch, geocode miss)
)

// ProcessError represents a categorized error during file processing
type ProcessError struct {
	FilePath    string
	Category    ErrorCategory
	Severity    ErrorSeverity
	OriginalErr error
	Context     map[string]string // Additional context (checksum, destination, etc.)
	Suggestion  string            // User-friendly suggestion to fix
}

func (e *ProcessError) Error() string {
	if e.FilePath == "" {
		return fmt.Sprintf("[%s/%s] %v", e.Severity, e.Category, e.OriginalErr)
	}
	return fmt.Sprintf("[%s/%s] %s: %v", e.Severity, e.Category, e.FilePath, e.OriginalErr)
}

func (e *ProcessError) Unwrap() error {
	return e.OriginalErr
}

// ConfigError builds a critical configuration error. Configuration errors
// apply to every file of a run, so they abort before any file is touched.
func ConfigError(format string, args ...interface{}) *ProcessError {
	return &ProcessError{
		Category:    ErrorCategoryConfig,
		Severity:    ErrorSeverityCritical,
		OriginalErr: fmt.Errorf(format, args...),
		Suggestion:  "Fix the path format or configuration file before re-running",
	}
}

// CategorizeError analyzes an error and returns a ProcessError with category and severity
func CategorizeError(filePath string, err error) *ProcessError {
	if err == nil {
		return nil
	}
	var procErr *ProcessError
	if errors.As(err, &procErr) {
		if procErr.FilePath == "" {
			procErr.FilePath = filePath
		}
		return procErr
	}

	errStr := strings.ToLower(err.Error())
	procErr = &ProcessError{
		FilePath:    filePath,
		OriginalErr: err,
		Context:     make(map[string]string),
	}

	switch {
	case strings.Contains(errStr, "no space left"):
		procErr.Category = ErrorCategoryIO
		procErr.Severity = ErrorSeverityCritical
		procErr.Suggestion = "Free up disk space on the destination drive and retry"

	case strings.Contains(errStr, "permission denied"):
		procErr.Category = ErrorCategoryIO
		procErr.Severity = ErrorSeverityCritical
		procErr.Suggestion = "Check file permissions on both source and destination directories"

	case strings.Contains(errStr, "read-only file system"):
		procErr.Category = ErrorCategoryIO
		procErr.Severity = ErrorSeverityCritical
		procErr.Suggestion = "Destination filesystem is read-only - check mount options"

	case strings.Contains(errStr, "checksum mismatch"):
		procErr.Category = ErrorCategoryHash
		procErr.Severity = ErrorSeverityError
		procErr.Suggestion = "Data corruption detected during copy - check disk health"

	case strings.Contains(errStr, "too many conflict"):
		procErr.Category = ErrorCategoryConflict
		procErr.Severity = ErrorSeverityError
		procErr.Suggestion = "Over 100 files share this destination name - review the path format"

	case strings.Contains(errStr, "no such file"):
		procErr.Category = ErrorCategoryIO
		procErr.Severity = ErrorSeverityError
		procErr.Suggestion = "Source file disappeared during the run - check if external drive disconnected"

	case strings.Contains(errStr, "geocod"):
		procErr.Category = ErrorCategoryGeocode
		procErr.Severity = ErrorSeverityWarning
		procErr.Suggestion = "File sorts under Unknown Location - retry later for a place name"

	case strings.Contains(errStr, "exif") || strings.Contains(errStr, "metadata"):
		procErr.Category = ErrorCategoryMetadata
		procErr.Severity = ErrorSeverityWarning
		procErr.Suggestion = "File will be sorted by fallback fields - metadata could not be extracted"

	default:
		procErr.Category = ErrorCategoryUnknown
		procErr.Severity = ErrorSeverityError
		procErr.Suggestion = "Unexpected error - check logs for details"
	}

	return procErr
}

// ErrorStats tracks error statistics during a run
type ErrorStats struct {
	Total      int
	Critical   int
	Errors     int
	Warnings   int
	ByCategory map[ErrorCategory]int
	LastErrors []*ProcessError // Last 5 errors for quick diagnosis
}

func NewErrorStats() *ErrorStats {
	return &ErrorStats{
		ByCategory: make(map[ErrorCategory]int),
		LastErrors: make([]*ProcessError, 0, 5),
	}
}

func (s *ErrorStats) Add(err *ProcessError) {
	s.Total++
	s.ByCategory[err.Category]++

	switch err.Severity {
	case ErrorSeverityCritical:
		s.Critical++
	case ErrorSeverityError:
		s.Errors++
	case ErrorSeverityWarning:
		s.Warnings++
	}

	// Keep last 5 errors
	if len(s.LastErrors) >= 5 {
		s.LastErrors = s.LastErrors[1:]
	}
	s.LastErrors = append(s.LastErrors, err)
}

// ShouldAbort returns true if the run should stop before processing more files.
func (s *ErrorStats) ShouldAbort() (bool, string) {
	if s.Critical > 0 {
		return true, "Critical system error detected - aborting to prevent data loss"
	}
	return false, ""
}

// GenerateReport creates a human-readable error report
func (s *ErrorStats) GenerateReport() string {
	var report strings.Builder

	report.WriteString(fmt.Sprintf("\n%d errors during run:\n\n", s.Total))

	if s.Critical > 0 {
		report.WriteString(fmt.Sprintf("  critical: %d (system-level issues)\n", s.Critical))
	}
	if s.Errors > 0 {
		report.WriteString(fmt.Sprintf("  errors:   %d (file-level issues)\n", s.Errors))
	}
	if s.Warnings > 0 {
		report.WriteString(fmt.Sprintf("  warnings: %d (recoverable issues)\n", s.Warnings))
	}

	report.WriteString("\nError categories:\n")
	for cat, count := range s.ByCategory {
		report.WriteString(fmt.Sprintf("  - %s: %d\n", cat, count))
	}

	report.WriteString("\nRecent errors:\n")
	for i, err := range s.LastErrors {
		report.WriteString(fmt.Sprintf("\n%d. %s\n", i+1, err.FilePath))
		report.WriteString(fmt.Sprintf("   Category: %s | Severity: %s\n", err.Category, err.Severity))
		report.WriteString(fmt.Sprintf("   Error: %v\n", err.OriginalErr))
		if err.Suggestion != "" {
			report.WriteString(fmt.Sprintf("   Suggestion: %s\n", err.Suggestion))
		}
	}

	return report.String()
}
