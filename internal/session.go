package internal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// RunSession logs every decision of one run to an append-only manifest,
// kept under <dest>/.curator/runs/<timestamp>/manifest.jsonl.
type RunSession struct {
	ID           string
	SessionDir   string
	manifestFile *os.File
}

// ManifestEvent is a single JSON line in the manifest log.
type ManifestEvent struct {
	Event string `json:"event"`
	Ts    string `json:"ts"`
	Src   string `json:"src,omitempty"`
	Dest  string `json:"dest,omitempty"`
	Hash  string `json:"hash,omitempty"`
	Error string `json:"error,omitempty"`

	// Run start/end fields
	Mode       string `json:"mode,omitempty"`
	InputDir   string `json:"input_dir,omitempty"`
	TotalFiles int    `json:"total_files,omitempty"`
	Sorted     int    `json:"sorted,omitempty"`
	Skipped    int    `json:"skipped,omitempty"`
	ErrorCount int    `json:"errors,omitempty"`
}

func NewRunSession(destRoot string) (*RunSession, error) {
	sessionID := time.Now().Format("2006-01-02-150405")
	sessionDir := filepath.Join(destRoot, ".curator", "runs", sessionID)

	if err := os.MkdirAll(sessionDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}

	manifestPath := filepath.Join(sessionDir, "manifest.jsonl")
	manifestFile, err := os.OpenFile(manifestPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create manifest file: %w", err)
	}

	return &RunSession{
		ID:           sessionID,
		SessionDir:   sessionDir,
		manifestFile: manifestFile,
	}, nil
}

func (s *RunSession) LogRunStart(inputDir, mode string, totalFiles int) error {
	return s.writeEvent(ManifestEvent{
		Event:      "run_start",
		Ts:         time.Now().UTC().Format(time.RFC3339),
		InputDir:   inputDir,
		Mode:       mode,
		TotalFiles: totalFiles,
	})
}

// LogDecision records one commit decision.
func (s *RunSession) LogDecision(dec CommitDecision) error {
	event := ManifestEvent{
		Event: string(dec.Outcome),
		Ts:    time.Now().UTC().Format(time.RFC3339),
		Src:   dec.Source,
		Dest:  dec.Destination,
		Hash:  dec.Checksum,
	}
	if dec.Err != nil {
		event.Error = dec.Err.Error()
	}
	return s.writeEvent(event)
}

func (s *RunSession) LogError(src string, err error) error {
	return s.writeEvent(ManifestEvent{
		Event: "error",
		Ts:    time.Now().UTC().Format(time.RFC3339),
		Src:   src,
		Error: err.Error(),
	})
}

func (s *RunSession) LogRunEnd(sorted, skipped, errors int) error {
	return s.writeEvent(ManifestEvent{
		Event:      "run_end",
		Ts:         time.Now().UTC().Format(time.RFC3339),
		Sorted:     sorted,
		Skipped:    skipped,
		ErrorCount: errors,
	})
}

func (s *RunSession) Close() error {
	if s.manifestFile != nil {
		return s.manifestFile.Close()
	}
	return nil
}

// writeEvent writes a manifest event as a JSON line
func (s *RunSession) writeEvent(event ManifestEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if _, err := s.manifestFile.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write to manifest: %w", err)
	}

	// Flush to ensure data is written
	return s.manifestFile.Sync()
}
