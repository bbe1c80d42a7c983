package internal

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestCommitter(t *testing.T, mode string) (*Committer, *Store) {
	t.Helper()
	store := newTestStore(t)
	return &Committer{
		Mode:      mode,
		MaxSuffix: 100,
		Store:     store,
		Logger:    newTestLogger(t),
	}, store
}

func testChecksum(content string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(content)))
}

func TestCommitCopy(t *testing.T) {
	committer, store := newTestCommitter(t, "copy")
	dir := t.TempDir()
	src := filepath.Join(dir, "src", "a.jpg")
	dest := filepath.Join(dir, "dest", "2024", "a.jpg")
	writeTestFile(t, src, "photo content")

	dec := committer.Commit(src, dest, testChecksum("photo content"))
	if dec.Outcome != OutcomeCopied {
		t.Fatalf("outcome = %s (err %v), want copied", dec.Outcome, dec.Err)
	}

	data, err := os.ReadFile(dest)
	if err != nil || string(data) != "photo content" {
		t.Fatalf("destination content wrong: %q, %v", data, err)
	}
	if _, err := os.Stat(src); err != nil {
		t.Errorf("copy mode must leave the source in place: %v", err)
	}

	path, found, err := store.GetPath(dec.Checksum)
	if err != nil || !found || path != dest {
		t.Errorf("checksum not recorded: path=%q found=%v err=%v", path, found, err)
	}
}

func TestCommitMove(t *testing.T) {
	committer, _ := newTestCommitter(t, "move")
	dir := t.TempDir()
	src := filepath.Join(dir, "a.jpg")
	dest := filepath.Join(dir, "sorted", "a.jpg")
	writeTestFile(t, src, "photo content")

	dec := committer.Commit(src, dest, testChecksum("photo content"))
	if dec.Outcome != OutcomeMoved {
		t.Fatalf("outcome = %s (err %v), want moved", dec.Outcome, dec.Err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Error("move mode must remove the source")
	}
	if _, err := os.Stat(dest); err != nil {
		t.Errorf("destination missing: %v", err)
	}
}

func TestCommitSkipsIdenticalDestination(t *testing.T) {
	dir := t.TempDir()

	t.Run("copy keeps source", func(t *testing.T) {
		committer, _ := newTestCommitter(t, "copy")
		src := filepath.Join(dir, "copy-src.jpg")
		dest := filepath.Join(dir, "copy-dest.jpg")
		writeTestFile(t, src, "same bytes")
		writeTestFile(t, dest, "same bytes")

		dec := committer.Commit(src, dest, testChecksum("same bytes"))
		if dec.Outcome != OutcomeSkippedIdentical {
			t.Fatalf("outcome = %s, want skipped_identical", dec.Outcome)
		}
		if _, err := os.Stat(src); err != nil {
			t.Errorf("source should survive in copy mode: %v", err)
		}
	})

	t.Run("copy with remove-duplicates drops source", func(t *testing.T) {
		committer, _ := newTestCommitter(t, "copy")
		committer.RemoveDuplicates = true
		src := filepath.Join(dir, "dedup-src.jpg")
		dest := filepath.Join(dir, "dedup-dest.jpg")
		writeTestFile(t, src, "same bytes")
		writeTestFile(t, dest, "same bytes")

		dec := committer.Commit(src, dest, testChecksum("same bytes"))
		if dec.Outcome != OutcomeSkippedIdentical {
			t.Fatalf("outcome = %s, want skipped_identical", dec.Outcome)
		}
		if _, err := os.Stat(src); !os.IsNotExist(err) {
			t.Error("duplicate source should be removed with remove-duplicates")
		}
	})

	t.Run("move removes duplicate source", func(t *testing.T) {
		committer, _ := newTestCommitter(t, "move")
		src := filepath.Join(dir, "move-src.jpg")
		dest := filepath.Join(dir, "move-dest.jpg")
		writeTestFile(t, src, "same bytes")
		writeTestFile(t, dest, "same bytes")

		dec := committer.Commit(src, dest, testChecksum("same bytes"))
		if dec.Outcome != OutcomeSkippedIdentical {
			t.Fatalf("outcome = %s, want skipped_identical", dec.Outcome)
		}
		if _, err := os.Stat(src); !os.IsNotExist(err) {
			t.Error("duplicate source should be removed in move mode")
		}
	})
}

func TestCommitSkipsContentKnownElsewhere(t *testing.T) {
	committer, _ := newTestCommitter(t, "copy")
	dir := t.TempDir()
	first := filepath.Join(dir, "inbox", "a.jpg")
	second := filepath.Join(dir, "inbox", "b.jpg")
	writeTestFile(t, first, "same bytes")
	writeTestFile(t, second, "same bytes")

	checksum := testChecksum("same bytes")
	placed := filepath.Join(dir, "lib", "2024", "a.jpg")
	if dec := committer.Commit(first, placed, checksum); dec.Outcome != OutcomeCopied {
		t.Fatalf("first commit outcome = %s (err %v), want copied", dec.Outcome, dec.Err)
	}

	// The same content resolving to a different name is still a duplicate.
	wanted := filepath.Join(dir, "lib", "2024", "b.jpg")
	dec := committer.Commit(second, wanted, checksum)
	if dec.Outcome != OutcomeSkippedIdentical {
		t.Fatalf("second commit outcome = %s (err %v), want skipped_identical", dec.Outcome, dec.Err)
	}
	if dec.Destination != placed {
		t.Errorf("decision should point at the existing copy: got %q, want %q", dec.Destination, placed)
	}
	if _, err := os.Stat(wanted); !os.IsNotExist(err) {
		t.Error("duplicate content must not be placed a second time")
	}
	if _, err := os.Stat(second); err != nil {
		t.Errorf("copy mode keeps the duplicate source: %v", err)
	}
}

func TestCommitKnownDuplicateMoveRemovesSource(t *testing.T) {
	committer, store := newTestCommitter(t, "move")
	dir := t.TempDir()
	placed := filepath.Join(dir, "lib", "a.jpg")
	src := filepath.Join(dir, "inbox", "b.jpg")
	writeTestFile(t, placed, "same bytes")
	writeTestFile(t, src, "same bytes")

	checksum := testChecksum("same bytes")
	if err := store.PutChecksum(checksum, placed); err != nil {
		t.Fatalf("PutChecksum failed: %v", err)
	}

	dec := committer.Commit(src, filepath.Join(dir, "lib", "b.jpg"), checksum)
	if dec.Outcome != OutcomeSkippedIdentical {
		t.Fatalf("outcome = %s (err %v), want skipped_identical", dec.Outcome, dec.Err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Error("move mode removes the duplicate source")
	}
}

func TestCommitStaleIndexEntryDoesNotSuppress(t *testing.T) {
	committer, store := newTestCommitter(t, "copy")
	dir := t.TempDir()
	src := filepath.Join(dir, "a.jpg")
	dest := filepath.Join(dir, "lib", "a.jpg")
	writeTestFile(t, src, "photo content")

	// The index remembers a path whose file is gone.
	checksum := testChecksum("photo content")
	if err := store.PutChecksum(checksum, filepath.Join(dir, "vanished.jpg")); err != nil {
		t.Fatalf("PutChecksum failed: %v", err)
	}

	dec := committer.Commit(src, dest, checksum)
	if dec.Outcome != OutcomeCopied {
		t.Fatalf("outcome = %s (err %v), want copied despite stale index", dec.Outcome, dec.Err)
	}
	if _, err := os.Stat(dest); err != nil {
		t.Errorf("destination missing: %v", err)
	}
}

func TestCommitConflictAndResolution(t *testing.T) {
	committer, _ := newTestCommitter(t, "copy")
	dir := t.TempDir()
	src := filepath.Join(dir, "new.jpg")
	dest := filepath.Join(dir, "sorted", "shot.jpg")
	writeTestFile(t, src, "new content")
	writeTestFile(t, dest, "old content")

	dec := committer.Commit(src, dest, testChecksum("new content"))
	if dec.Outcome != OutcomeConflict {
		t.Fatalf("outcome = %s, want conflict", dec.Outcome)
	}
	if _, err := os.Stat(src); err != nil {
		t.Fatalf("conflict must not touch the source: %v", err)
	}
	if data, _ := os.ReadFile(dest); string(data) != "old content" {
		t.Fatal("conflict must not touch the existing destination")
	}

	resolved := committer.ResolveConflict(dec)
	if resolved.Outcome != OutcomeCopied {
		t.Fatalf("resolved outcome = %s (err %v), want copied", resolved.Outcome, resolved.Err)
	}
	want := filepath.Join(dir, "sorted", "shot_1.jpg")
	if resolved.Destination != want {
		t.Errorf("resolved destination = %q, want %q", resolved.Destination, want)
	}
}

func TestResolveConflictSkipsTakenSuffixes(t *testing.T) {
	committer, _ := newTestCommitter(t, "copy")
	dir := t.TempDir()
	src := filepath.Join(dir, "new.jpg")
	dest := filepath.Join(dir, "shot.jpg")
	writeTestFile(t, src, "fourth version")
	writeTestFile(t, dest, "first version")
	writeTestFile(t, filepath.Join(dir, "shot_1.jpg"), "second version")
	writeTestFile(t, filepath.Join(dir, "shot_2.jpg"), "third version")

	dec := committer.Commit(src, dest, testChecksum("fourth version"))
	resolved := committer.ResolveConflict(dec)
	if resolved.Outcome != OutcomeCopied {
		t.Fatalf("resolved outcome = %s (err %v), want copied", resolved.Outcome, resolved.Err)
	}
	if want := filepath.Join(dir, "shot_3.jpg"); resolved.Destination != want {
		t.Errorf("resolved destination = %q, want %q", resolved.Destination, want)
	}
}

func TestResolveConflictIdenticalSuffixDedupes(t *testing.T) {
	committer, _ := newTestCommitter(t, "copy")
	dir := t.TempDir()
	src := filepath.Join(dir, "new.jpg")
	dest := filepath.Join(dir, "shot.jpg")
	writeTestFile(t, src, "second version")
	writeTestFile(t, dest, "first version")
	writeTestFile(t, filepath.Join(dir, "shot_1.jpg"), "second version")

	dec := committer.Commit(src, dest, testChecksum("second version"))
	resolved := committer.ResolveConflict(dec)
	if resolved.Outcome != OutcomeSkippedIdentical {
		t.Fatalf("resolved outcome = %s, want skipped_identical", resolved.Outcome)
	}
}

func TestResolveConflictExhaustsSuffixes(t *testing.T) {
	committer, _ := newTestCommitter(t, "copy")
	committer.MaxSuffix = 3
	dir := t.TempDir()
	src := filepath.Join(dir, "new.jpg")
	dest := filepath.Join(dir, "shot.jpg")
	writeTestFile(t, src, "version x")
	writeTestFile(t, dest, "version 0")
	for n := 1; n <= 3; n++ {
		writeTestFile(t, filepath.Join(dir, fmt.Sprintf("shot_%d.jpg", n)), fmt.Sprintf("version %d", n))
	}

	dec := committer.Commit(src, dest, testChecksum("version x"))
	resolved := committer.ResolveConflict(dec)
	if resolved.Outcome != OutcomeFailed {
		t.Fatalf("resolved outcome = %s, want failed", resolved.Outcome)
	}
	if resolved.Err == nil || !strings.Contains(resolved.Err.Error(), "too many conflicts") {
		t.Errorf("err = %v, want suffix exhaustion", resolved.Err)
	}
	if _, err := os.Stat(src); err != nil {
		t.Errorf("exhaustion must leave the source untouched: %v", err)
	}
}

func TestCommitChecksumMismatch(t *testing.T) {
	committer, _ := newTestCommitter(t, "copy")
	dir := t.TempDir()
	src := filepath.Join(dir, "a.jpg")
	dest := filepath.Join(dir, "sorted", "a.jpg")
	writeTestFile(t, src, "current content")

	// A checksum taken before the file changed no longer matches what
	// arrives at the destination.
	dec := committer.Commit(src, dest, testChecksum("stale content"))
	if dec.Outcome != OutcomeFailed {
		t.Fatalf("outcome = %s, want failed", dec.Outcome)
	}
	if dec.Err == nil || !strings.Contains(dec.Err.Error(), "checksum mismatch") {
		t.Errorf("err = %v, want checksum mismatch", dec.Err)
	}
}

func TestCommitDryRunTouchesNothing(t *testing.T) {
	committer, store := newTestCommitter(t, "move")
	committer.DryRun = true
	dir := t.TempDir()
	src := filepath.Join(dir, "a.jpg")
	dest := filepath.Join(dir, "sorted", "a.jpg")
	writeTestFile(t, src, "photo content")

	checksum := testChecksum("photo content")
	dec := committer.Commit(src, dest, checksum)
	if dec.Outcome != OutcomeMoved {
		t.Fatalf("outcome = %s (err %v), want moved", dec.Outcome, dec.Err)
	}
	if _, err := os.Stat(src); err != nil {
		t.Error("dry-run must not move the source")
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Error("dry-run must not create the destination")
	}
	if _, found, _ := store.GetPath(checksum); found {
		t.Error("dry-run must not record checksums")
	}
}

func TestCommitSourceEqualsDestination(t *testing.T) {
	committer, store := newTestCommitter(t, "move")
	dir := t.TempDir()
	path := filepath.Join(dir, "a.jpg")
	writeTestFile(t, path, "photo content")

	checksum := testChecksum("photo content")
	dec := committer.Commit(path, path, checksum)
	if dec.Outcome != OutcomeMoved {
		t.Fatalf("outcome = %s, want moved", dec.Outcome)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("file disappeared: %v", err)
	}
	if _, found, _ := store.GetPath(checksum); !found {
		t.Error("already sorted file should still be recorded")
	}
}

func TestCopyFileAtomicPreservesMtime(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.jpg")
	dest := filepath.Join(dir, "dest.jpg")
	writeTestFile(t, src, "content")

	if err := copyFileAtomic(src, dest); err != nil {
		t.Fatalf("copyFileAtomic failed: %v", err)
	}

	srcInfo, _ := os.Stat(src)
	destInfo, err := os.Stat(dest)
	if err != nil {
		t.Fatalf("destination missing: %v", err)
	}
	if !destInfo.ModTime().Equal(srcInfo.ModTime()) {
		t.Errorf("mtime not preserved: src %v, dest %v", srcInfo.ModTime(), destInfo.ModTime())
	}
}

func TestFilesIdentical(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")
	c := filepath.Join(dir, "c")
	d := filepath.Join(dir, "d")
	writeTestFile(t, a, "same")
	writeTestFile(t, b, "same")
	writeTestFile(t, c, "diff")
	writeTestFile(t, d, "same but longer")

	if same, err := filesIdentical(a, b); err != nil || !same {
		t.Errorf("equal files: same=%v err=%v", same, err)
	}
	if same, err := filesIdentical(a, c); err != nil || same {
		t.Errorf("different content: same=%v err=%v", same, err)
	}
	if same, err := filesIdentical(a, d); err != nil || same {
		t.Errorf("different size: same=%v err=%v", same, err)
	}
}
