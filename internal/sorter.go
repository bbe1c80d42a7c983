package internal

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// SourceFile is one scanned input file with its subdirectory chain relative
// to the scan root.
type SourceFile struct {
	Path    string
	Subdirs string
}

// Sorter wires the resolution pipeline together: metadata extraction, date
// and place resolution, path rendering and the conflict-safe commit.
type Sorter struct {
	Config    *Config
	Logger    *Logger
	Store     *Store
	Engine    *PathTemplateEngine
	Extractor Extractor
	Committer *Committer

	excludes []*regexp.Regexp
}

// NewSorter builds a sorter against an opened destination store. geocoder
// may be swapped out in tests.
func NewSorter(cfg *Config, logger *Logger, store *Store, geocoder Geocoder, dryRun bool) (*Sorter, error) {
	if geocoder == nil {
		geocoder = NewNominatimGeocoder(time.Duration(cfg.GeocoderTimeoutSecs) * time.Second)
	}

	var userRegex *regexp.Regexp
	if cfg.FilenameDateRegex != "" {
		rx, err := regexp.Compile(cfg.FilenameDateRegex)
		if err != nil {
			return nil, ConfigError("invalid filename_date_regex %q: %v", cfg.FilenameDateRegex, err)
		}
		userRegex = rx
	}

	dates := &DateResolver{DayBegins: cfg.DayBegins, UserRegex: userRegex, Logger: logger}
	locations := NewLocationCache(store, geocoder, cfg.PreferEnglishNames, logger)
	engine := NewPathTemplateEngine(dates, locations, cfg.WhitespaceSub)

	var excludes []*regexp.Regexp
	for _, raw := range cfg.ExcludeRegexes {
		rx, err := regexp.Compile(raw)
		if err != nil {
			return nil, ConfigError("invalid exclude regex %q: %v", raw, err)
		}
		excludes = append(excludes, rx)
	}

	return &Sorter{
		Config:    cfg,
		Logger:    logger,
		Store:     store,
		Engine:    engine,
		Extractor: NewExtractor(cfg.UseExifTool, logger),
		Committer: &Committer{
			Mode:             cfg.Mode,
			DryRun:           dryRun,
			RemoveDuplicates: cfg.RemoveDuplicates,
			MaxSuffix:        cfg.MaxConflictSuffix,
			Store:            store,
			Logger:           logger,
		},
		excludes: excludes,
	}, nil
}

func (s *Sorter) Close() error {
	return s.Extractor.Close()
}

// ScanFiles walks inputDir recursively for media files, honoring the
// configured extensions, exclusion regexes and maximum depth.
func (s *Sorter) ScanFiles(inputDir string) ([]SourceFile, error) {
	inputDir = filepath.Clean(inputDir)
	rootDepth := strings.Count(inputDir, string(os.PathSeparator))
	exts := s.Config.MediaExtensions()

	var files []SourceFile
	err := filepath.Walk(inputDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if filepath.Base(path) == ".curator" {
				return filepath.SkipDir
			}
			if s.Config.MaxDeep >= 0 {
				depth := strings.Count(path, string(os.PathSeparator)) - rootDepth
				if depth > s.Config.MaxDeep {
					return filepath.SkipDir
				}
			}
			return nil
		}

		if s.shouldExclude(path) {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(info.Name()))
		for _, e := range exts {
			if ext == e {
				subdirs, relErr := filepath.Rel(inputDir, filepath.Dir(path))
				if relErr != nil || subdirs == "." {
					subdirs = ""
				}
				files = append(files, SourceFile{Path: path, Subdirs: subdirs})
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error scanning files: %w", err)
	}
	return files, nil
}

func (s *Sorter) shouldExclude(path string) bool {
	for _, rx := range s.excludes {
		if rx.MatchString(path) {
			return true
		}
	}
	return false
}

// SortFiles processes a scanned batch into destRoot. Conflicts are queued
// during the main pass and suffix-resolved afterwards. Configuration errors
// abort before the first file; per-file errors accumulate in the summary.
func (s *Sorter) SortFiles(files []SourceFile, destRoot string, session *RunSession, summary *Summary) error {
	// Compile up front so a bad template aborts before any file is touched.
	tpl, err := s.Engine.Compile(s.Config.PathFormat)
	if err != nil {
		return err
	}

	var conflicts []CommitDecision
	for _, f := range files {
		dec, size, procErr := s.sortOne(tpl, f, destRoot)
		if procErr != nil {
			s.Logger.Error("%v", procErr)
			summary.RecordError(f.Path, procErr)
			if session != nil {
				session.LogError(f.Path, procErr)
			}
			if abort, reason := summary.ShouldAbort(); abort {
				return fmt.Errorf("%s", reason)
			}
			continue
		}

		if dec.Outcome == OutcomeConflict {
			conflicts = append(conflicts, dec)
			continue
		}

		summary.Record(dec, size)
		if session != nil {
			session.LogDecision(dec)
		}
	}

	// Suffix resolution pass over queued conflicts. The source is statted
	// first; a resolved move leaves nothing behind to measure.
	for _, dec := range conflicts {
		var size int64
		if fi, statErr := os.Stat(dec.Source); statErr == nil {
			size = fi.Size()
		}
		resolved := s.Committer.ResolveConflict(dec)
		summary.Record(resolved, size)
		if session != nil {
			session.LogDecision(resolved)
		}
	}

	return nil
}

// SortSingle resolves and commits one file, used by watch mode.
func (s *Sorter) SortSingle(f SourceFile, destRoot string, summary *Summary) error {
	tpl, err := s.Engine.Compile(s.Config.PathFormat)
	if err != nil {
		return err
	}

	dec, size, procErr := s.sortOne(tpl, f, destRoot)
	if procErr != nil {
		summary.RecordError(f.Path, procErr)
		return procErr
	}
	if dec.Outcome == OutcomeConflict {
		dec = s.Committer.ResolveConflict(dec)
	}
	summary.Record(dec, size)
	return nil
}

func (s *Sorter) sortOne(tpl *PathTemplate, f SourceFile, destRoot string) (CommitDecision, int64, error) {
	rec, err := BuildRecord(f.Path, f.Subdirs, s.Extractor, s.Config.AlbumFromFolder)
	if rec == nil {
		return CommitDecision{}, 0, err
	}
	if err != nil {
		// Extraction trouble is recoverable: the record still carries
		// filename and filesystem facts.
		s.Logger.Warn("metadata extraction incomplete for %s: %v", f.Path, err)
	}

	relPath, err := s.Engine.Render(tpl, rec)
	if err != nil {
		return CommitDecision{}, 0, err
	}

	var size int64
	if fi, statErr := os.Stat(f.Path); statErr == nil {
		size = fi.Size()
	}

	dest := filepath.Join(destRoot, relPath)
	return s.Committer.Commit(f.Path, dest, rec.Checksum), size, nil
}

// CheckChecksums re-verifies every checksum recorded in the store against
// the file currently at the recorded path. Returns the number of verified
// entries and the paths that failed.
func (s *Sorter) CheckChecksums() (int, []string, error) {
	verified := 0
	var bad []string

	err := s.Store.EachChecksum(func(checksum, path string) error {
		actual, hashErr := fileHash(path)
		if hashErr != nil || actual != checksum {
			s.Logger.Error("checksum mismatch for %s", path)
			bad = append(bad, path)
			return nil
		}
		verified++
		return nil
	})
	if err != nil {
		return verified, bad, err
	}
	return verified, bad, nil
}
