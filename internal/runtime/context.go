package runtime

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"mergeguard.dev/mergeguard/internal/config"
	"mergeguard.dev/mergeguard/internal/git"
	"mergeguard.dev/mergeguard/internal/github"
	"mergeguard.dev/mergeguard/internal/tui"
)

// StateDirName is the directory under the git dir holding the lock, the run
// records and the debug log
const StateDirName = "mergeguard"

// Options controls how a Context is built
type Options struct {
	// Dir is any directory inside the working tree; "" means the process cwd
	Dir string
	// ConfigPath is an explicit config file, "" to search the repository
	ConfigPath string
	// Out receives console output; nil means stdout
	Out   io.Writer
	Debug bool
}

// Context provides access to the repository and output for commands
type Context struct {
	context.Context
	Splog      *tui.Splog
	RepoRoot   string
	GitDir     string
	Config     config.Config
	ConfigPath string
	Remote     string
	Runner     git.Runner
	Repo       *git.Repository
}

// StateDir returns <git-dir>/mergeguard
func (c *Context) StateDir() string {
	return filepath.Join(c.GitDir, StateDirName)
}

// LogDir returns the directory holding run records
func (c *Context) LogDir() string {
	return filepath.Join(c.StateDir(), "logs")
}

// Close flushes the debug log
func (c *Context) Close() error {
	return c.Splog.Close()
}

// NewContext locates the repository, loads the configuration and opens the
// debug log. With github_protection enabled the hosted protected branches are
// merged into the configured set; a lookup failure only warns.
func NewContext(ctx context.Context, opts Options) (*Context, error) {
	dir := opts.Dir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		dir = wd
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	startDir := git.NewCommandRunner(dir)
	repoRoot, err := git.RepoRoot(ctx, startDir)
	if err != nil {
		return nil, err
	}
	runner := git.NewCommandRunner(repoRoot)
	gitDir, err := git.GitDir(ctx, runner)
	if err != nil {
		return nil, err
	}

	splog, err := tui.NewSplogWithConfig(out, tui.GetLogFilePath(filepath.Join(gitDir, StateDirName)))
	if err != nil {
		return nil, err
	}
	if opts.Debug {
		splog.SetDebug(true)
	}

	cfg, cfgPath, err := config.Load(repoRoot, opts.ConfigPath)
	if err != nil {
		_ = splog.Close()
		return nil, err
	}
	if cfgPath != "" {
		splog.Debug("loaded config from %s", cfgPath)
	}

	remote := cfg.Remote
	if remote == "" {
		remote, err = git.RemoteName(ctx, runner)
		if err != nil {
			_ = splog.Close()
			return nil, err
		}
	}
	if remote == "" {
		splog.Debug("repository has no remote; merges stay local")
	}

	repo, err := git.OpenRepository(repoRoot)
	if err != nil {
		_ = splog.Close()
		return nil, err
	}

	rc := &Context{
		Context:    ctx,
		Splog:      splog,
		RepoRoot:   repoRoot,
		GitDir:     gitDir,
		Config:     cfg,
		ConfigPath: cfgPath,
		Remote:     remote,
		Runner:     runner,
		Repo:       repo,
	}

	if cfg.GitHubProtection && remote != "" {
		rc.addHostedProtection()
	}
	return rc, nil
}

func (c *Context) addHostedProtection() {
	url, err := git.RemoteURL(c, c.Runner, c.Remote)
	if err != nil {
		c.Splog.Warn("github_protection: %v", err)
		return
	}
	client, err := github.NewClientForRemote(c, url)
	if err != nil {
		c.Splog.Warn("github_protection: %v", err)
		return
	}
	names, err := client.ProtectedBranches(c)
	if err != nil {
		c.Splog.Warn("github_protection: %v", err)
		return
	}
	owner, repo := client.OwnerRepo()
	c.Splog.Debug("%s/%s protects %v", owner, repo, names)
	c.Config = c.Config.WithProtectedBranches(names)
}
