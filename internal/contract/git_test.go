package contract

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// skipIfGitNotAvailable skips the test if git binary is not found in PATH
func skipIfGitNotAvailable(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skipf("git binary not found in PATH: %v", err)
	}
}

// TestMockGitClient_Run ensures the mock records variadic arguments individually.
func TestMockGitClient_Run(t *testing.T) {
	mockClient := new(MockGitClient)
	ctx := context.Background()
	expectedErr := errors.New("mocked git error")

	mockClient.
		On("Run", ctx, "/path/to/repo", "rev-parse", "HEAD").
		Return([]byte("abc123\n"), expectedErr).
		Once()

	out, err := mockClient.Run(ctx, "/path/to/repo", "rev-parse", "HEAD")
	assert.Equal(t, []byte("abc123\n"), out)
	assert.ErrorIs(t, err, expectedErr)
	mockClient.AssertExpectations(t)
}

func TestMockGitClient_Lifecycle(t *testing.T) {
	mockClient := new(MockGitClient)
	ctx := context.Background()

	mockClient.On("IsRepo", ctx, "/work/app").Return(false).Once()
	mockClient.On("Clone", ctx, "https://example.com/app.git", "/work/app").Return(nil).Once()
	mockClient.On("GetRepoHash", ctx, "/work/app").Return("deadbeef", nil).Once()

	assert.False(t, mockClient.IsRepo(ctx, "/work/app"))
	assert.NoError(t, mockClient.Clone(ctx, "https://example.com/app.git", "/work/app"))
	hash, err := mockClient.GetRepoHash(ctx, "/work/app")
	require.NoError(t, err)
	assert.Equal(t, "deadbeef", hash)

	mockClient.AssertExpectations(t)
	mockClient.AssertNotCalled(t, "Refresh", mock.Anything, mock.Anything)
}

func TestLocalGitClient_CloneAndRefresh(t *testing.T) {
	skipIfGitNotAvailable(t)
	ctx := context.Background()
	client := NewLocalGitClient()

	origin := t.TempDir()
	_, err := runGit(ctx, origin, "init", "-q", origin)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(origin, "index.js"), []byte("console.log('hi')\n"), 0o644))
	for _, args := range [][]string{
		{"add", "."},
		{"-c", "user.email=dev@example.com", "-c", "user.name=dev", "commit", "-q", "-m", "init"},
	} {
		_, err := client.Run(ctx, origin, args...)
		require.NoError(t, err)
	}
	assert.True(t, client.IsRepo(ctx, origin))

	dest := filepath.Join(t.TempDir(), "checkout")
	require.NoError(t, client.Clone(ctx, "file://"+origin, dest))
	assert.FileExists(t, filepath.Join(dest, "index.js"))

	originHash, err := client.GetRepoHash(ctx, origin)
	require.NoError(t, err)
	destHash, err := client.GetRepoHash(ctx, dest)
	require.NoError(t, err)
	assert.Equal(t, originHash, destHash)

	require.NoError(t, os.WriteFile(filepath.Join(dest, "stray.txt"), []byte("x"), 0o644))
	require.NoError(t, client.Refresh(ctx, dest))
	assert.NoFileExists(t, filepath.Join(dest, "stray.txt"))
}

func TestLocalGitClient_NotARepo(t *testing.T) {
	skipIfGitNotAvailable(t)
	client := NewLocalGitClient()
	assert.False(t, client.IsRepo(context.Background(), t.TempDir()))

	_, err := client.GetRepoHash(context.Background(), t.TempDir())
	assert.Error(t, err)
}
