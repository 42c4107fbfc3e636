// Package gitclient has the git client used to fetch repositories.
package gitclient

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/huangsam/cfpscan/internal/contract"
)

// LocalGitClient implements the GitClient interface by executing the
// local 'git' binary installed on the machine.
type LocalGitClient struct {
	// Depth is the history depth of clones; 0 clones everything.
	Depth int
}

var _ contract.GitClient = &LocalGitClient{} // Compile-time check

// NewLocalGitClient creates a client that makes single-commit clones.
func NewLocalGitClient() *LocalGitClient {
	return &LocalGitClient{Depth: 1}
}

// Run executes a git command and returns its stdout.
func (c *LocalGitClient) Run(ctx context.Context, repoPath string, args ...string) ([]byte, error) {
	fullArgs := append([]string{"-C", repoPath}, args...)
	return run(ctx, fullArgs)
}

// Clone implements the GitClient interface.
func (c *LocalGitClient) Clone(ctx context.Context, url, dest string) error {
	args := []string{"clone", "--quiet"}
	if c.Depth > 0 {
		args = append(args, fmt.Sprintf("--depth=%d", c.Depth))
	}
	args = append(args, "--", url, dest)
	_, err := run(ctx, args)
	return err
}

func run(ctx context.Context, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	// No credential prompts
	cmd.Env = append(cmd.Environ(), "GIT_TERMINAL_PROMPT=0")
	out, err := cmd.Output()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil, fmt.Errorf("git '%v' exit: %s", strings.Join(args, " "), strings.TrimSpace(string(exitErr.Stderr)))
	} else if err != nil {
		return nil, fmt.Errorf("git '%v' unknown: %w", strings.Join(args, " "), err)
	}
	return out, nil
}
