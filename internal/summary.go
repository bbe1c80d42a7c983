package internal

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

// Summary accumulates per-file outcomes of a run and renders a report.
type Summary struct {
	Root string

	Moved            int
	Copied           int
	SkippedIdentical int
	Failed           int
	BytesPlaced      int64

	errStats *ErrorStats
}

func NewSummary(root string) *Summary {
	return &Summary{Root: root, errStats: NewErrorStats()}
}

// Record tallies one commit decision. size is the source file size in bytes.
func (s *Summary) Record(dec CommitDecision, size int64) {
	switch dec.Outcome {
	case OutcomeMoved:
		s.Moved++
		s.BytesPlaced += size
	case OutcomeCopied:
		s.Copied++
		s.BytesPlaced += size
	case OutcomeSkippedIdentical:
		s.SkippedIdentical++
	case OutcomeFailed:
		s.Failed++
		if dec.Err != nil {
			s.errStats.Add(CategorizeError(dec.Source, dec.Err))
		}
	}
}

// RecordError tallies a failure that happened before any commit decision.
func (s *Summary) RecordError(path string, err error) {
	s.Failed++
	s.errStats.Add(CategorizeError(path, err))
}

// RecordWarning tallies a recoverable issue without failing the file.
func (s *Summary) RecordWarning(procErr *ProcessError) {
	s.errStats.Add(procErr)
}

// HasErrors reports whether any per-file error occurred; the process exit
// code depends on it once the whole batch completes.
func (s *Summary) HasErrors() bool {
	return s.Failed > 0
}

// ShouldAbort reports whether a critical error makes continuing pointless.
func (s *Summary) ShouldAbort() (bool, string) {
	return s.errStats.ShouldAbort()
}

// Report renders a human-readable run summary.
func (s *Summary) Report() string {
	var b strings.Builder

	b.WriteString("\n")
	if s.Moved > 0 {
		b.WriteString(fmt.Sprintf("SUMMARY: %d files moved into %s (%s).\n",
			s.Moved, s.Root, humanize.Bytes(uint64(s.BytesPlaced))))
	}
	if s.Copied > 0 {
		b.WriteString(fmt.Sprintf("SUMMARY: %d files copied into %s (%s).\n",
			s.Copied, s.Root, humanize.Bytes(uint64(s.BytesPlaced))))
	}
	if s.SkippedIdentical > 0 {
		b.WriteString(fmt.Sprintf("SUMMARY: %d duplicates skipped.\n", s.SkippedIdentical))
	}
	if s.Moved == 0 && s.Copied == 0 && s.SkippedIdentical == 0 && s.Failed == 0 {
		b.WriteString(fmt.Sprintf("SUMMARY: no action done in %s.\n", s.Root))
	}

	if s.errStats.Total > 0 {
		b.WriteString(s.errStats.GenerateReport())
	}
	return b.String()
}
