// Package dvctool talks to the DVC command-line tool: it finds the binary for
// a project directory, asks it for the stage diagram and reads the lock file.
package dvctool

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pipescope/core/internal/ctxlog"
	"github.com/pipescope/core/internal/models"
	"github.com/pipescope/core/internal/parser"
	"gopkg.in/yaml.v3"
)

var _ parser.StageSource = (*CLI)(nil)

// ErrNotFound is returned when no dvc binary can be located.
var ErrNotFound = errors.New("dvc executable not found")

// ErrOutsideRoot is returned when a working directory is not below the
// configured project root.
var ErrOutsideRoot = errors.New("path outside project root")

const lockFileName = "dvc.lock"

// Runner executes name with args in dir and returns its standard output.
type Runner func(ctx context.Context, dir, name string, args ...string) ([]byte, error)

// CLI implements the stage source on top of the dvc executable. Resolved
// binary locations are cached per working directory for the lifetime of the
// instance. Without virtualenv probing the location does not depend on the
// working directory and a single entry is kept.
type CLI struct {
	binary     string
	root       string
	virtualenv bool
	lookPath   func(string) (string, error)
	run        Runner

	mu       sync.Mutex
	resolved map[string]string
}

type Option func(*CLI)

// WithBinary pins the executable instead of searching for it.
func WithBinary(path string) Option {
	return func(c *CLI) { c.binary = path }
}

// WithRoot restricts Load to working directories below root.
func WithRoot(root string) Option {
	return func(c *CLI) { c.root = root }
}

// WithoutVirtualenv skips the project virtualenv and only uses the pinned
// binary or PATH.
func WithoutVirtualenv() Option {
	return func(c *CLI) { c.virtualenv = false }
}

func WithRunner(run Runner) Option {
	return func(c *CLI) { c.run = run }
}

func WithLookPath(lookPath func(string) (string, error)) Option {
	return func(c *CLI) { c.lookPath = lookPath }
}

func New(opts ...Option) *CLI {
	c := &CLI{
		virtualenv: true,
		lookPath:   exec.LookPath,
		run:        execRunner,
		resolved:   make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// virtualenvCandidates are checked, relative to the working directory,
// before falling back to PATH.
var virtualenvCandidates = []string{
	filepath.Join(".venv", "bin", "dvc"),
	filepath.Join("venv", "bin", "dvc"),
	filepath.Join(".venv", "Scripts", "dvc.exe"),
	filepath.Join("venv", "Scripts", "dvc.exe"),
}

// Locate returns the dvc executable to use for workDir.
func (c *CLI) Locate(workDir string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := workDir
	if c.binary != "" || !c.virtualenv {
		key = ""
	}
	if path, ok := c.resolved[key]; ok {
		return path, nil
	}

	path, err := c.locate(workDir)
	if err != nil {
		return "", err
	}
	c.resolved[key] = path
	return path, nil
}

func (c *CLI) locate(workDir string) (string, error) {
	if c.binary != "" {
		return c.binary, nil
	}

	if c.virtualenv {
		for _, candidate := range virtualenvCandidates {
			path := filepath.Join(workDir, candidate)
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				return path, nil
			}
		}
	}

	path, err := c.lookPath("dvc")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return path, nil
}

// Load runs `dvc dag --mermaid` in workDir and reads dvc.lock next to it.
// A missing lock file is not an error; Stages is then nil.
func (c *CLI) Load(ctx context.Context, workDir string) (*models.ToolOutput, error) {
	workDir, err := c.checkRoot(workDir)
	if err != nil {
		return nil, err
	}
	logger := ctxlog.FromContext(ctx).With("work_dir", workDir)

	bin, err := c.Locate(workDir)
	if err != nil {
		return nil, err
	}
	logger.Debug("Running dependency tool.", "binary", bin)

	flow, err := c.run(ctx, workDir, bin, "dag", "--mermaid")
	if err != nil {
		return nil, fmt.Errorf("dvc dag: %w", err)
	}

	out := &models.ToolOutput{Flow: string(flow)}

	stages, err := readLock(filepath.Join(workDir, lockFileName))
	if err != nil {
		return nil, err
	}
	if stages != nil {
		out.Stages = stages
		out.Artifacts = folderMarkers(workDir, stages)
	}

	return out, nil
}

// checkRoot resolves workDir and rejects it when it is not below the root.
func (c *CLI) checkRoot(workDir string) (string, error) {
	if c.root == "" {
		return workDir, nil
	}

	root, err := resolveDir(c.root)
	if err != nil {
		return "", err
	}
	dir, err := resolveDir(workDir)
	if err != nil {
		return "", err
	}

	rel, err := filepath.Rel(root, dir)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, workDir)
	}
	return dir, nil
}

// resolveDir returns p as an absolute path with symlinks evaluated when it
// exists.
func resolveDir(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	return abs, nil
}

func readLock(path string) (*models.StageFile, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", lockFileName, err)
	}

	var file models.StageFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode %s: %w", lockFileName, err)
	}
	return &file, nil
}

// folderMarkers flags every output that is a directory on disk.
func folderMarkers(workDir string, file *models.StageFile) map[string]models.ArtifactMeta {
	markers := make(map[string]models.ArtifactMeta)
	for _, stage := range file.Stages {
		for _, out := range stage.Outputs() {
			info, err := os.Stat(filepath.Join(workDir, filepath.FromSlash(out.Path)))
			if err == nil && info.IsDir() {
				markers[out.Path] = models.ArtifactMeta{Kind: "folder"}
			}
		}
	}
	return markers
}

func execRunner(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return nil, fmt.Errorf("%w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, err
	}
	return out, nil
}
