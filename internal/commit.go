package internal

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// CommitOutcome is the result of placing one file at one destination.
type CommitOutcome string

const (
	OutcomeMoved            CommitOutcome = "moved"
	OutcomeCopied           CommitOutcome = "copied"
	OutcomeSkippedIdentical CommitOutcome = "skipped_identical"
	OutcomeConflict         CommitOutcome = "conflict"
	OutcomeFailed           CommitOutcome = "failed"
)

// CommitDecision records what happened to a (source, destination) pair.
// Destination may differ from the originally resolved path after suffixing.
type CommitDecision struct {
	Outcome     CommitOutcome
	Source      string
	Destination string
	Checksum    string
	Err         error
}

// ChecksumStore is the persistence boundary for content checksums.
type ChecksumStore interface {
	GetPath(checksum string) (string, bool, error)
	PutChecksum(checksum, path string) error
}

// Committer places files at resolved destinations without ever destroying
// distinct content or duplicating identical content.
type Committer struct {
	Mode             string // "copy" or "move"
	DryRun           bool
	RemoveDuplicates bool // delete duplicate sources even in copy mode
	MaxSuffix        int  // conflict suffix ceiling, guarantees termination
	Store            ChecksumStore
	Logger           *Logger
}

// Commit runs the per-file state machine once. A Conflict outcome means the
// destination holds different content; the caller queues it for suffix
// resolution rather than overwriting.
func (c *Committer) Commit(src, dest, checksum string) CommitDecision {
	dec := CommitDecision{Source: src, Destination: dest, Checksum: checksum}

	if src == dest {
		c.Logger.Info("%s already sorted", dest)
		dec.Outcome = c.placementOutcome()
		c.recordChecksum(&dec)
		return dec
	}

	// Content already placed anywhere in the library is a duplicate, even
	// when it resolved to a different name than this source would.
	if prior, ok := c.knownDuplicate(src, checksum); ok {
		c.Logger.Info("%s already in library at %s, duplicate ignored", src, prior)
		if (c.Mode == "move" || c.RemoveDuplicates) && !c.DryRun {
			if rmErr := os.Remove(src); rmErr != nil {
				dec.Outcome = OutcomeFailed
				dec.Err = fmt.Errorf("failed to remove duplicate source %s: %w", src, rmErr)
				return dec
			}
			c.Logger.Info("remove: %s", src)
		}
		dec.Outcome = OutcomeSkippedIdentical
		dec.Destination = prior
		return dec
	}

	if _, err := os.Stat(dest); err == nil {
		identical, cmpErr := filesIdentical(src, dest)
		if cmpErr != nil {
			dec.Outcome = OutcomeFailed
			dec.Err = fmt.Errorf("failed to compare %s and %s: %w", src, dest, cmpErr)
			return dec
		}

		if identical {
			c.Logger.Info("%s and %s are identical, duplicate ignored", src, dest)
			if (c.Mode == "move" || c.RemoveDuplicates) && !c.DryRun {
				if rmErr := os.Remove(src); rmErr != nil {
					dec.Outcome = OutcomeFailed
					dec.Err = fmt.Errorf("failed to remove duplicate source %s: %w", src, rmErr)
					return dec
				}
				c.Logger.Info("remove: %s", src)
			}
			dec.Outcome = OutcomeSkippedIdentical
			return dec
		}

		c.Logger.Info("%s exists with different content", dest)
		dec.Outcome = OutcomeConflict
		return dec
	} else if !errors.Is(err, os.ErrNotExist) {
		dec.Outcome = OutcomeFailed
		dec.Err = fmt.Errorf("failed to stat %s: %w", dest, err)
		return dec
	}

	if err := c.place(src, dest); err != nil {
		dec.Outcome = OutcomeFailed
		dec.Err = err
		return dec
	}

	if err := c.verify(dest, checksum); err != nil {
		dec.Outcome = OutcomeFailed
		dec.Err = err
		return dec
	}

	dec.Outcome = c.placementOutcome()
	c.recordChecksum(&dec)
	return dec
}

// knownDuplicate consults the checksum index for content already placed
// somewhere in the library. The recorded path is byte-verified before the
// source counts as a duplicate, so a stale index entry never suppresses a
// commit.
func (c *Committer) knownDuplicate(src, checksum string) (string, bool) {
	if c.Store == nil {
		return "", false
	}

	prior, found, err := c.Store.GetPath(checksum)
	if err != nil || !found || prior == src {
		return "", false
	}

	identical, err := filesIdentical(src, prior)
	if err != nil || !identical {
		return "", false
	}
	return prior, true
}

// ResolveConflict retries a conflicting decision with _1, _2, ... suffixes
// until an outcome other than Conflict is reached or the ceiling is hit.
func (c *Committer) ResolveConflict(dec CommitDecision) CommitDecision {
	ext := filepath.Ext(dec.Destination)
	stem := dec.Destination[:len(dec.Destination)-len(ext)]

	for n := 1; n <= c.MaxSuffix; n++ {
		candidate := fmt.Sprintf("%s_%d%s", stem, n, ext)
		c.Logger.Warn("same name already exists, renaming to %s", candidate)

		next := c.Commit(dec.Source, candidate, dec.Checksum)
		if next.Outcome != OutcomeConflict {
			return next
		}
	}

	dec.Outcome = OutcomeFailed
	dec.Err = fmt.Errorf("too many conflicts for %s (%d attempts)", dec.Destination, c.MaxSuffix)
	return dec
}

func (c *Committer) placementOutcome() CommitOutcome {
	if c.Mode == "move" {
		return OutcomeMoved
	}
	return OutcomeCopied
}

func (c *Committer) place(src, dest string) error {
	if c.DryRun {
		c.Logger.Info("[dry-run] would %s %s -> %s", c.Mode, src, dest)
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", filepath.Dir(dest), err)
	}

	if c.Mode == "move" {
		if err := os.Rename(src, dest); err == nil {
			c.Logger.Info("move: %s -> %s", src, dest)
			return nil
		}
		// Rename fails across filesystems; fall back to copy then remove.
		if err := copyFileAtomic(src, dest); err != nil {
			return fmt.Errorf("failed to move %s to %s: %w", src, dest, err)
		}
		if err := os.Remove(src); err != nil {
			return fmt.Errorf("failed to remove source %s after move: %w", src, err)
		}
		c.Logger.Info("move: %s -> %s", src, dest)
		return nil
	}

	if err := copyFileAtomic(src, dest); err != nil {
		return fmt.Errorf("failed to copy %s to %s: %w", src, dest, err)
	}
	c.Logger.Info("copy: %s -> %s", src, dest)
	return nil
}

// verify recomputes the destination checksum and compares it to the source
// checksum taken before the operation. Dry-run has nothing to verify.
func (c *Committer) verify(dest, srcChecksum string) error {
	if c.DryRun {
		return nil
	}

	destChecksum, err := fileHash(dest)
	if err != nil {
		return fmt.Errorf("failed to hash destination %s: %w", dest, err)
	}
	if destChecksum != srcChecksum {
		return fmt.Errorf("checksum mismatch for %s: source %s, destination %s", dest, srcChecksum, destChecksum)
	}
	return nil
}

// recordChecksum persists (checksum -> destination) so a crash after N files
// leaves the store consistent for those N.
func (c *Committer) recordChecksum(dec *CommitDecision) {
	if c.DryRun || c.Store == nil {
		return
	}
	if err := c.Store.PutChecksum(dec.Checksum, dec.Destination); err != nil {
		c.Logger.Error("failed to record checksum for %s: %v", dec.Destination, err)
	}
}

// fileHash computes the SHA256 hash of a file's content.
func fileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// copyFileAtomic copies a file atomically (copy temp -> rename) and carries
// the source's permission bits and modification time over.
func copyFileAtomic(src, dest string) error {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return err
	}

	tmp := dest + ".tmp"
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, srcInfo.Mode().Perm())
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	out.Close()

	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Chtimes(dest, srcInfo.ModTime(), srcInfo.ModTime())
}

// filesIdentical compares two files byte for byte.
func filesIdentical(path1, path2 string) (bool, error) {
	info1, err := os.Stat(path1)
	if err != nil {
		return false, err
	}
	info2, err := os.Stat(path2)
	if err != nil {
		return false, err
	}
	if info1.Size() != info2.Size() {
		return false, nil
	}

	f1, err := os.Open(path1)
	if err != nil {
		return false, err
	}
	defer f1.Close()
	f2, err := os.Open(path2)
	if err != nil {
		return false, err
	}
	defer f2.Close()

	buf1 := make([]byte, 64*1024)
	buf2 := make([]byte, 64*1024)
	for {
		n1, err1 := io.ReadFull(f1, buf1)
		n2, err2 := io.ReadFull(f2, buf2)
		if !bytes.Equal(buf1[:n1], buf2[:n2]) {
			return false, nil
		}
		if err1 == io.EOF || err1 == io.ErrUnexpectedEOF {
			return err2 == io.EOF || err2 == io.ErrUnexpectedEOF, nil
		}
		if err1 != nil {
			return false, err1
		}
		if err2 != nil {
			return false, err2
		}
	}
}
