package contract

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// LocalGitClient implements the GitClient interface by executing the
// local 'git' binary installed on the machine.
type LocalGitClient struct{}

var _ GitClient = &LocalGitClient{} // Compile-time check

// NewLocalGitClient creates a new instance of the local Git client.
func NewLocalGitClient() *LocalGitClient {
	return &LocalGitClient{}
}

// Run executes a git command inside repoPath and returns its stdout.
func (c *LocalGitClient) Run(ctx context.Context, repoPath string, args ...string) ([]byte, error) {
	fullArgs := append([]string{"-C", repoPath}, args...)
	return runGit(ctx, repoPath, fullArgs...)
}

// Clone implements the GitClient interface.
func (c *LocalGitClient) Clone(ctx context.Context, source, dest string) error {
	if _, err := runGit(ctx, dest, "clone", "--depth", "1", source, dest); err != nil {
		return fmt.Errorf("failed to clone %q: %w", source, err)
	}
	return nil
}

// Refresh implements the GitClient interface.
func (c *LocalGitClient) Refresh(ctx context.Context, repoPath string) error {
	steps := [][]string{
		{"fetch", "--depth", "1", "origin"},
		{"reset", "--hard", "FETCH_HEAD"},
		{"clean", "-fd"},
	}
	for _, args := range steps {
		if _, err := c.Run(ctx, repoPath, args...); err != nil {
			return fmt.Errorf("failed to refresh %q: %w", repoPath, err)
		}
	}
	return nil
}

// GetRepoHash implements the GitClient interface.
func (c *LocalGitClient) GetRepoHash(ctx context.Context, repoPath string) (string, error) {
	out, err := c.Run(ctx, repoPath, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// IsRepo implements the GitClient interface.
func (c *LocalGitClient) IsRepo(ctx context.Context, path string) bool {
	out, err := c.Run(ctx, path, "rev-parse", "--is-inside-work-tree")
	return err == nil && strings.TrimSpace(string(out)) == "true"
}

func runGit(ctx context.Context, where string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	out, err := cmd.Output()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		stderr := strings.TrimSpace(string(exitErr.Stderr))
		return nil, fmt.Errorf("git command failed in %q: %s", where, stderr)
	} else if err != nil {
		return nil, fmt.Errorf("git command failed: %w. Ensure Git is installed and available on your PATH", err)
	}
	return out, nil
}
