package internal

import (
	"os"
	"path/filepath"
	"testing"
)

func testSorterConfig() *Config {
	return &Config{
		PathFormat:          "{%Y}/{%m}/{basename}.%l{ext}",
		Mode:                "copy",
		WhitespaceSub:       "_",
		MaxConflictSuffix:   100,
		GeocoderTimeoutSecs: 1,
		MaxDeep:             -1,
		ImageExt:            []string{".jpg", ".jpeg"},
		VideoExt:            []string{".mp4"},
	}
}

func newTestSorter(t *testing.T, cfg *Config, destRoot string) *Sorter {
	t.Helper()
	store, err := OpenStore(destRoot)
	if err != nil {
		t.Fatalf("OpenStore failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	sorter, err := NewSorter(cfg, newTestLogger(t), store, &countingGeocoder{}, false)
	if err != nil {
		t.Fatalf("NewSorter failed: %v", err)
	}
	t.Cleanup(func() { sorter.Close() })
	return sorter
}

func TestScanFiles(t *testing.T) {
	src := t.TempDir()
	writeTestFile(t, filepath.Join(src, "IMG_1.jpg"), "a")
	writeTestFile(t, filepath.Join(src, "holiday", "IMG_2.JPG"), "b")
	writeTestFile(t, filepath.Join(src, "holiday", "clip.mp4"), "c")
	writeTestFile(t, filepath.Join(src, "notes.txt"), "d")
	writeTestFile(t, filepath.Join(src, ".curator", "curator.db"), "e")
	writeTestFile(t, filepath.Join(src, "backup", "IMG_3.jpg"), "f")

	cfg := testSorterConfig()
	cfg.ExcludeRegexes = []string{`backup/`}
	sorter := newTestSorter(t, cfg, t.TempDir())

	files, err := sorter.ScanFiles(src)
	if err != nil {
		t.Fatalf("ScanFiles failed: %v", err)
	}

	got := map[string]string{}
	for _, f := range files {
		got[filepath.Base(f.Path)] = f.Subdirs
	}
	want := map[string]string{
		"IMG_1.jpg": "",
		"IMG_2.JPG": "holiday",
		"clip.mp4":  "holiday",
	}
	if len(got) != len(want) {
		t.Fatalf("scanned %v, want %v", got, want)
	}
	for name, subdirs := range want {
		if got[name] != subdirs {
			t.Errorf("%s: subdirs %q, want %q", name, got[name], subdirs)
		}
	}
}

func TestScanFilesMaxDeep(t *testing.T) {
	src := t.TempDir()
	writeTestFile(t, filepath.Join(src, "IMG_top.jpg"), "a")
	writeTestFile(t, filepath.Join(src, "one", "IMG_one.jpg"), "b")
	writeTestFile(t, filepath.Join(src, "one", "two", "IMG_two.jpg"), "c")

	cfg := testSorterConfig()
	cfg.MaxDeep = 1
	sorter := newTestSorter(t, cfg, t.TempDir())

	files, err := sorter.ScanFiles(src)
	if err != nil {
		t.Fatalf("ScanFiles failed: %v", err)
	}
	if len(files) != 2 {
		t.Errorf("scanned %d files with max_deep=1, want 2: %v", len(files), files)
	}
}

func TestSortFilesEndToEnd(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()
	writeTestFile(t, filepath.Join(src, "IMG_20240101_120000.jpg"), "new year photo")
	writeTestFile(t, filepath.Join(src, "trip", "VID_20230715_090000.mp4"), "summer video")

	sorter := newTestSorter(t, testSorterConfig(), dest)
	files, err := sorter.ScanFiles(src)
	if err != nil {
		t.Fatalf("ScanFiles failed: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("scanned %d files, want 2", len(files))
	}

	session, err := NewRunSession(dest)
	if err != nil {
		t.Fatalf("NewRunSession failed: %v", err)
	}
	defer session.Close()

	summary := NewSummary(dest)
	if err := sorter.SortFiles(files, dest, session, summary); err != nil {
		t.Fatalf("SortFiles failed: %v", err)
	}

	if summary.Copied != 2 || summary.Failed != 0 {
		t.Fatalf("copied=%d failed=%d, want 2/0", summary.Copied, summary.Failed)
	}
	for _, want := range []string{
		filepath.Join(dest, "2024", "01", "IMG_20240101_120000.jpg"),
		filepath.Join(dest, "2023", "07", "VID_20230715_090000.mp4"),
	} {
		if _, err := os.Stat(want); err != nil {
			t.Errorf("expected destination %s: %v", want, err)
		}
	}

	// The checksum index points at the placed files.
	checksum := testChecksum("new year photo")
	path, found, err := sorter.Store.GetPath(checksum)
	if err != nil || !found {
		t.Fatalf("checksum not recorded: found=%v err=%v", found, err)
	}
	if path != filepath.Join(dest, "2024", "01", "IMG_20240101_120000.jpg") {
		t.Errorf("recorded path = %q", path)
	}

	// The run manifest exists and has content.
	runsDir := filepath.Join(dest, ".curator", "runs")
	entries, err := os.ReadDir(runsDir)
	if err != nil || len(entries) == 0 {
		t.Fatalf("no run session recorded: %v", err)
	}
	manifest := filepath.Join(runsDir, entries[0].Name(), "manifest.jsonl")
	if data, err := os.ReadFile(manifest); err != nil || len(data) == 0 {
		t.Errorf("manifest missing or empty: %v", err)
	}
}

func TestSortFilesIdempotent(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()
	writeTestFile(t, filepath.Join(src, "IMG_20240101_120000.jpg"), "photo")

	sorter := newTestSorter(t, testSorterConfig(), dest)
	files, _ := sorter.ScanFiles(src)

	first := NewSummary(dest)
	if err := sorter.SortFiles(files, dest, nil, first); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if first.Copied != 1 {
		t.Fatalf("first run copied=%d, want 1", first.Copied)
	}

	second := NewSummary(dest)
	if err := sorter.SortFiles(files, dest, nil, second); err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if second.Copied != 0 || second.SkippedIdentical != 1 {
		t.Errorf("second run copied=%d skipped=%d, want 0/1", second.Copied, second.SkippedIdentical)
	}
}

func TestSortFilesResolvesConflicts(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()
	// Two distinct files that render to the same destination name.
	writeTestFile(t, filepath.Join(src, "a", "IMG_20240101_120000.jpg"), "first shot")
	writeTestFile(t, filepath.Join(src, "b", "IMG_20240101_120000.jpg"), "second shot")

	sorter := newTestSorter(t, testSorterConfig(), dest)
	files, _ := sorter.ScanFiles(src)
	if len(files) != 2 {
		t.Fatalf("scanned %d files, want 2", len(files))
	}

	summary := NewSummary(dest)
	if err := sorter.SortFiles(files, dest, nil, summary); err != nil {
		t.Fatalf("SortFiles failed: %v", err)
	}
	if summary.Copied != 2 || summary.Failed != 0 {
		t.Fatalf("copied=%d failed=%d, want 2/0", summary.Copied, summary.Failed)
	}

	base := filepath.Join(dest, "2024", "01", "IMG_20240101_120000.jpg")
	suffixed := filepath.Join(dest, "2024", "01", "IMG_20240101_120000_1.jpg")
	for _, p := range []string{base, suffixed} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("expected %s: %v", p, err)
		}
	}
}

func TestSortFilesMoveCountsResolvedConflictBytes(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()
	writeTestFile(t, filepath.Join(src, "a", "IMG_20240101_120000.jpg"), "first shot")
	writeTestFile(t, filepath.Join(src, "b", "IMG_20240101_120000.jpg"), "a longer second shot")

	cfg := testSorterConfig()
	cfg.Mode = "move"
	sorter := newTestSorter(t, cfg, dest)
	files, _ := sorter.ScanFiles(src)

	summary := NewSummary(dest)
	if err := sorter.SortFiles(files, dest, nil, summary); err != nil {
		t.Fatalf("SortFiles failed: %v", err)
	}
	if summary.Moved != 2 || summary.Failed != 0 {
		t.Fatalf("moved=%d failed=%d, want 2/0", summary.Moved, summary.Failed)
	}

	want := int64(len("first shot") + len("a longer second shot"))
	if summary.BytesPlaced != want {
		t.Errorf("BytesPlaced = %d, want %d; suffixed moves must count their size", summary.BytesPlaced, want)
	}
}

func TestSortFilesBadTemplateAbortsBeforeAnyFile(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()
	writeTestFile(t, filepath.Join(src, "IMG_1.jpg"), "photo")

	cfg := testSorterConfig()
	cfg.PathFormat = "{bogus}/{basename}.{ext}"
	sorter := newTestSorter(t, cfg, dest)
	files, _ := sorter.ScanFiles(src)

	summary := NewSummary(dest)
	if err := sorter.SortFiles(files, dest, nil, summary); err == nil {
		t.Fatal("bad template should abort the run")
	}

	entries, err := os.ReadDir(dest)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	for _, e := range entries {
		if e.Name() != ".curator" {
			t.Errorf("bad template must not place files, found %s", e.Name())
		}
	}
}

func TestSortSingle(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()
	path := filepath.Join(src, "IMG_20240101_120000.jpg")
	writeTestFile(t, path, "photo")

	sorter := newTestSorter(t, testSorterConfig(), dest)
	summary := NewSummary(dest)
	if err := sorter.SortSingle(SourceFile{Path: path}, dest, summary); err != nil {
		t.Fatalf("SortSingle failed: %v", err)
	}
	if summary.Copied != 1 {
		t.Errorf("copied=%d, want 1", summary.Copied)
	}
}

func TestCheckChecksums(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()
	writeTestFile(t, filepath.Join(src, "IMG_20240101_120000.jpg"), "photo")

	sorter := newTestSorter(t, testSorterConfig(), dest)
	files, _ := sorter.ScanFiles(src)
	summary := NewSummary(dest)
	if err := sorter.SortFiles(files, dest, nil, summary); err != nil {
		t.Fatalf("SortFiles failed: %v", err)
	}

	verified, bad, err := sorter.CheckChecksums()
	if err != nil {
		t.Fatalf("CheckChecksums failed: %v", err)
	}
	if verified != 1 || len(bad) != 0 {
		t.Fatalf("verified=%d bad=%v, want 1 and none", verified, bad)
	}

	// Corrupt the placed file and verify again.
	placed := filepath.Join(dest, "2024", "01", "IMG_20240101_120000.jpg")
	writeTestFile(t, placed, "corrupted")
	verified, bad, err = sorter.CheckChecksums()
	if err != nil {
		t.Fatalf("CheckChecksums failed: %v", err)
	}
	if verified != 0 || len(bad) != 1 {
		t.Errorf("verified=%d bad=%v, want 0 and one", verified, bad)
	}
}
