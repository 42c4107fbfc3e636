// Package scan walks a repository tree and counts movement idioms in its
// eligible source files.
package scan

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/huangsam/cfpscan/schema"
)

// ErrRepositoryUnreadable is returned when the repository root itself cannot
// be walked, before any file is processed.
var ErrRepositoryUnreadable = errors.New("repository unreadable")

// Counter detects movements in a body of text.
type Counter interface {
	ZeroCounts() schema.MovementCounts
	CountInto(counts schema.MovementCounts, text string)
}

// Policy decides which directories are skipped and which files are scanned.
type Policy struct {
	Extensions   []string // eligible file extensions, including the dot
	ExcludeDirs  []string // substring tokens tested against the directory path
	TestSuffix   string   // file name suffix marking test files
	IncludeTests bool     // scan test files too
}

// DefaultPolicy scans non-test Go files outside vendored, third-party and
// generated trees.
func DefaultPolicy() Policy {
	return Policy{
		Extensions:   []string{".go"},
		ExcludeDirs:  []string{"vendor", "third_party", "generated"},
		TestSuffix:   "_test.go",
		IncludeTests: false,
	}
}

// ExcludesDir reports whether the directory at rel, a slash-separated path
// relative to the repository root, must be skipped with its subtree. The
// test is a plain substring match so "vendored/" is skipped as well.
func (p Policy) ExcludesDir(rel string) bool {
	if rel == "." || rel == "" {
		return false
	}
	for _, token := range p.ExcludeDirs {
		if token != "" && strings.Contains(rel, token) {
			return true
		}
	}
	return false
}

// Eligible reports whether a file with the given base name is scanned.
func (p Policy) Eligible(name string) bool {
	if !p.IncludeTests && p.TestSuffix != "" && strings.HasSuffix(name, p.TestSuffix) {
		return false
	}
	return slices.Contains(p.Extensions, filepath.Ext(name))
}

// String is a stable rendering used for fingerprints.
func (p Policy) String() string {
	return fmt.Sprintf("ext=%s;exclude=%s;test=%s;include-tests=%t",
		strings.Join(p.Extensions, ","), strings.Join(p.ExcludeDirs, ","), p.TestSuffix, p.IncludeTests)
}

// Scanner counts movements in one repository at a time. A Scanner holds no
// per-scan state, so one value can serve many goroutines.
type Scanner struct {
	counter  Counter
	policy   Policy
	readFile func(string) ([]byte, error)
}

// NewScanner builds a Scanner over the given counter and policy.
func NewScanner(counter Counter, policy Policy) *Scanner {
	return &Scanner{counter: counter, policy: policy, readFile: os.ReadFile}
}

// Policy returns the file selection policy of the scanner.
func (s *Scanner) Policy() Policy {
	return s.policy
}

// visitFunc receives each eligible file found by walk.
type visitFunc func(path, rel string, d fs.DirEntry) error

// walk visits eligible files under root in lexical order. A symlinked root
// is resolved first; links below it are not followed. Errors on
// subdirectories or single entries are skipped; only an error on the root
// itself is returned, wrapped in ErrRepositoryUnreadable.
func (s *Scanner) walk(ctx context.Context, root string, visit visitFunc) error {
	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRepositoryUnreadable, err)
	}
	root = resolved
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == root {
				return fmt.Errorf("%w: %v", ErrRepositoryUnreadable, err)
			}
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if s.policy.ExcludesDir(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !s.policy.Eligible(d.Name()) {
			return nil
		}
		return visit(path, rel, d)
	})
}

// Scan counts movements across the eligible files under root. Unreadable
// files are skipped and tallied. When root cannot be walked the result
// carries zero counts and a diagnostic alongside the returned error.
func (s *Scanner) Scan(ctx context.Context, root string) (schema.ScanResult, error) {
	result := schema.ScanResult{Counts: s.counter.ZeroCounts()}
	err := s.walk(ctx, root, func(path, _ string, _ fs.DirEntry) error {
		data, readErr := s.readFile(path)
		if readErr != nil {
			result.FilesUnreadable++
			return nil
		}
		s.counter.CountInto(result.Counts, strings.ToValidUTF8(string(data), ""))
		result.FilesScanned++
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrRepositoryUnreadable) {
			return schema.ScanResult{Counts: s.counter.ZeroCounts(), Error: err.Error()}, err
		}
		return schema.ScanResult{}, err
	}
	return result, nil
}

// Fingerprint summarizes the eligible files under root by relative path,
// size and modification time, together with the policy. It changes when
// any scanned file changes.
func (s *Scanner) Fingerprint(ctx context.Context, root string) (string, error) {
	h := sha256.New()
	_, _ = fmt.Fprintln(h, s.policy.String())
	err := s.walk(ctx, root, func(_, rel string, d fs.DirEntry) error {
		info, infoErr := d.Info()
		if infoErr != nil {
			_, _ = fmt.Fprintf(h, "%s|?\n", rel)
			return nil
		}
		_, _ = fmt.Fprintf(h, "%s|%d|%d\n", rel, info.Size(), info.ModTime().UnixNano())
		return nil
	})
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
