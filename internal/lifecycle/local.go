package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/huangsam/apigrade/internal/contract"
	"go.uber.org/zap"
	"go.uber.org/zap/zapio"
)

// maxOutputTail is how much command output is kept in error messages.
const maxOutputTail = 400

// unsafeDirChars are replaced when deriving a checkout directory from a target name.
var unsafeDirChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// LocalOptions configures how a local service is prepared and run.
type LocalOptions struct {
	WorkDir        string
	InstallCmd     string
	StartCmd       string
	RequiredFiles  []string
	Host           string
	Port           int
	StartupTimeout time.Duration
	Logger         *zap.Logger
}

// LocalApp runs a service from a git checkout or a local directory.
type LocalApp struct {
	target contract.Target
	opts   LocalOptions
	git    contract.GitClient
	logger *zap.Logger
	dir    string

	mu      sync.Mutex
	cmd     *exec.Cmd
	exited  chan struct{}
	waitErr error
	output  *zapio.Writer
}

var _ contract.Lifecycle = &LocalApp{} // Compile-time check

// NewLocalApp creates a lifecycle for a target that is checked out under opts.WorkDir,
// or used in place when the target is a local directory.
func NewLocalApp(target contract.Target, git contract.GitClient, opts LocalOptions) *LocalApp {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	dir := target.Repo
	if !target.Local {
		dir = filepath.Join(opts.WorkDir, unsafeDirChars.ReplaceAllString(target.Name, "_"))
	}
	return &LocalApp{
		target: target,
		opts:   opts,
		git:    git,
		logger: logger.With(zap.String("target", target.Name)),
		dir:    dir,
	}
}

// Name implements the Lifecycle interface.
func (a *LocalApp) Name() string { return a.target.Name }

// ProjectID implements the Lifecycle interface.
func (a *LocalApp) ProjectID() string { return a.target.ProjectID }

// Dir returns the directory the service runs from.
func (a *LocalApp) Dir() string { return a.dir }

// FetchRepo clones the target, or refreshes an existing checkout.
// Local directories are used as they are.
func (a *LocalApp) FetchRepo(ctx context.Context) error {
	if a.target.Local {
		if info, err := os.Stat(a.dir); err != nil || !info.IsDir() {
			return fmt.Errorf("local target %q is not a directory", a.dir)
		}
		return nil
	}

	if a.git.IsRepo(ctx, a.dir) {
		a.logger.Debug("refreshing checkout", zap.String("dir", a.dir))
		if err := a.git.Refresh(ctx, a.dir); err != nil {
			return err
		}
	} else {
		if err := os.RemoveAll(a.dir); err != nil {
			return fmt.Errorf("failed to clear %q: %w", a.dir, err)
		}
		if err := os.MkdirAll(filepath.Dir(a.dir), 0o755); err != nil {
			return fmt.Errorf("failed to create workdir: %w", err)
		}
		a.logger.Debug("cloning", zap.String("repo", a.target.Repo), zap.String("dir", a.dir))
		if err := a.git.Clone(ctx, a.target.Repo, a.dir); err != nil {
			return err
		}
	}

	if hash, err := a.git.GetRepoHash(ctx, a.dir); err == nil {
		a.logger.Info("checkout ready", zap.String("commit", hash))
	}
	return nil
}

// ValidateMainFiles implements the Lifecycle interface.
func (a *LocalApp) ValidateMainFiles(_ context.Context) error {
	var missing []string
	for _, name := range a.opts.RequiredFiles {
		info, err := os.Stat(filepath.Join(a.dir, name))
		if err != nil || info.IsDir() {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("required files missing in %s: %s", a.dir, strings.Join(missing, ", "))
	}
	return nil
}

// InstallDependencies runs the install command in the service directory.
func (a *LocalApp) InstallDependencies(ctx context.Context) error {
	args := strings.Fields(a.opts.InstallCmd)
	if len(args) == 0 {
		return nil
	}
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = a.dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%q failed: %w: %s", a.opts.InstallCmd, err, tail(out))
	}
	a.logger.Debug("dependencies installed", zap.String("cmd", a.opts.InstallCmd))
	return nil
}

// Start launches the start command with PORT set and waits until the port accepts connections.
func (a *LocalApp) Start(ctx context.Context) error {
	args := strings.Fields(a.opts.StartCmd)
	if len(args) == 0 {
		return errors.New("no start command configured")
	}

	output := &zapio.Writer{Log: a.logger.Named("service"), Level: zap.DebugLevel}
	// The process must outlive ctx, so it is not bound to it.
	cmd := exec.Command(args[0], args[1:]...)
	cmd.Dir = a.dir
	cmd.Env = append(os.Environ(), "PORT="+strconv.Itoa(a.opts.Port))
	cmd.Stdout = output
	cmd.Stderr = output
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %q: %w", a.opts.StartCmd, err)
	}

	exited := make(chan struct{})
	a.mu.Lock()
	a.cmd, a.exited, a.output = cmd, exited, output
	a.mu.Unlock()
	go func() {
		err := cmd.Wait()
		a.mu.Lock()
		a.waitErr = err
		a.mu.Unlock()
		close(exited)
	}()

	a.logger.Info("service launched", zap.Int("pid", cmd.Process.Pid), zap.Int("port", a.opts.Port))
	addr := Address(a.opts.Host, a.opts.Port)
	if err := WaitForPort(ctx, addr, a.opts.StartupTimeout, exited); err != nil {
		if errors.Is(err, ErrServiceExited) {
			a.mu.Lock()
			waitErr := a.waitErr
			a.mu.Unlock()
			return fmt.Errorf("%w (%v)", err, waitErr)
		}
		return err
	}
	return nil
}

// Stop kills the service process tree and waits for it to exit.
// It is a no-op when nothing was started.
func (a *LocalApp) Stop(ctx context.Context) error {
	a.mu.Lock()
	cmd, exited, output := a.cmd, a.exited, a.output
	a.cmd = nil
	a.mu.Unlock()
	if cmd == nil {
		return nil
	}
	defer func() { _ = output.Close() }()

	select {
	case <-exited:
		return nil
	default:
	}

	if err := killTree(ctx, int32(cmd.Process.Pid)); err != nil {
		return err
	}
	select {
	case <-exited:
		a.logger.Info("service stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("service did not exit: %w", ctx.Err())
	}
}

func tail(out []byte) string {
	s := strings.TrimSpace(string(out))
	if len(s) > maxOutputTail {
		s = "..." + s[len(s)-maxOutputTail:]
	}
	return s
}
