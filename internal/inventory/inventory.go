// Package inventory loads the repository set to estimate: line metrics from
// the line-count stage, the fetched repository list, or a plain directory
// listing.
package inventory

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/huangsam/cfpscan/schema"
)

// Source names where an inventory came from.
type Source string

// Inventory sources in order of preference.
const (
	ELOCSource      Source = "eloc-file"
	RepoListSource  Source = "inventory-file"
	DirectorySource Source = "repos-dir"
)

// Options selects the inputs to read.
type Options struct {
	ReposDir      string
	ELOCFile      string
	InventoryFile string
}

// RepoEntry is one element of the fetched repository list.
type RepoEntry struct {
	FullName string `json:"full_name"`
	CloneURL string `json:"clone_url"`
	Language string `json:"language"`
	Stars    int    `json:"stargazers_count"`
}

// LocalName is the directory name a repository is cloned into.
func (r RepoEntry) LocalName() string {
	return strings.ReplaceAll(r.FullName, "/", "_")
}

// Load builds the inputs for a batch. Line metrics come from the ELOC file
// when it exists; otherwise the repository list or the repos directory
// supplies the identifiers with zero line metrics. Clone metadata from the
// repository list is attached whenever that file exists.
func Load(opts Options) ([]schema.RepositoryInput, Source, error) {
	var entries []RepoEntry
	if exists(opts.InventoryFile) {
		var err error
		entries, err = ReadRepoList(opts.InventoryFile)
		if err != nil {
			return nil, "", err
		}
	}

	var (
		inputs []schema.RepositoryInput
		source Source
	)
	switch {
	case exists(opts.ELOCFile):
		var err error
		inputs, err = ReadELOCFile(opts.ELOCFile, opts.ReposDir)
		if err != nil {
			return nil, "", err
		}
		source = ELOCSource
	case entries != nil:
		for _, e := range entries {
			inputs = append(inputs, schema.RepositoryInput{
				Repo: e.LocalName(),
				Path: filepath.Join(opts.ReposDir, e.LocalName()),
			})
		}
		source = RepoListSource
	default:
		var err error
		inputs, err = ListDirectory(opts.ReposDir)
		if err != nil {
			return nil, "", err
		}
		source = DirectorySource
	}

	attachMetadata(inputs, entries)
	return inputs, source, nil
}

// ReadELOCFile reads line metrics from a CSV with a header row. Required
// columns are repo and code; comments, blanks, total_eloc and error are
// optional. Empty numeric cells count as zero and a zero total_eloc falls
// back to code + comments + blanks.
func ReadELOCFile(path, reposDir string) ([]schema.RepositoryInput, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open eloc file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return parseELOC(f, reposDir)
}

// parseELOC does the work of ReadELOCFile on any reader.
func parseELOC(r io.Reader, reposDir string) ([]schema.RepositoryInput, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read eloc header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"repo", "code"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("eloc file is missing the %q column", required)
		}
	}

	var inputs []schema.RepositoryInput
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("eloc line %d: %w", line, err)
		}
		cell := func(name string) string {
			i, ok := cols[name]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		repo := cell("repo")
		if repo == "" {
			continue
		}
		var lm schema.LineMetrics
		for _, field := range []struct {
			name string
			dst  *int
		}{
			{"code", &lm.Code},
			{"comments", &lm.Comments},
			{"blanks", &lm.Blanks},
			{"total_eloc", &lm.TotalELOC},
		} {
			v, err := parseCount(cell(field.name))
			if err != nil {
				return nil, fmt.Errorf("eloc line %d, column %s: %w", line, field.name, err)
			}
			*field.dst = v
		}
		if lm.TotalELOC == 0 {
			lm.TotalELOC = lm.Code + lm.Comments + lm.Blanks
		}
		inputs = append(inputs, schema.RepositoryInput{
			Repo:        repo,
			Path:        filepath.Join(reposDir, repo),
			LineMetrics: lm,
			HasMetrics:  true,
			UpstreamErr: cell("error"),
		})
	}
	return inputs, nil
}

// parseCount parses a non-negative count. Values written as floats (such as
// "120.0") are accepted and truncated.
func parseCount(s string) (int, error) {
	if s == "" || strings.EqualFold(s, "nan") {
		return 0, nil
	}
	if v, err := strconv.Atoi(s); err == nil {
		if v < 0 {
			return 0, fmt.Errorf("negative count %d", v)
		}
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, fmt.Errorf("invalid count %q", s)
	}
	if f < 0 {
		return 0, fmt.Errorf("negative count %v", f)
	}
	return int(f), nil
}

// ReadRepoList reads the JSON array written by the fetch stage.
func ReadRepoList(path string) ([]RepoEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read inventory file: %w", err)
	}
	var entries []RepoEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse inventory file: %w", err)
	}
	out := entries[:0]
	for _, e := range entries {
		if e.FullName != "" {
			out = append(out, e)
		}
	}
	return out, nil
}

// ListDirectory returns one input per sub-directory of reposDir, sorted by name.
func ListDirectory(reposDir string) ([]schema.RepositoryInput, error) {
	dirEntries, err := os.ReadDir(reposDir)
	if err != nil {
		return nil, fmt.Errorf("list repos directory: %w", err)
	}
	var inputs []schema.RepositoryInput
	for _, d := range dirEntries {
		if !d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			continue
		}
		inputs = append(inputs, schema.RepositoryInput{
			Repo: d.Name(),
			Path: filepath.Join(reposDir, d.Name()),
		})
	}
	sort.Slice(inputs, func(i, j int) bool { return inputs[i].Repo < inputs[j].Repo })
	return inputs, nil
}

// attachMetadata copies clone URL and stars onto matching inputs.
func attachMetadata(inputs []schema.RepositoryInput, entries []RepoEntry) {
	if len(entries) == 0 {
		return
	}
	byName := make(map[string]RepoEntry, len(entries))
	for _, e := range entries {
		byName[e.LocalName()] = e
	}
	for i := range inputs {
		if e, ok := byName[inputs[i].Repo]; ok {
			inputs[i].CloneURL = e.CloneURL
			inputs[i].Stars = e.Stars
		}
	}
}

// exists reports whether path names an existing regular file.
func exists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
