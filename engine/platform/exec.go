package platform

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/spaghettifunk/anima-cooker/engine/core"
)

// Command is one external tool invocation.
type Command struct {
	Name   string
	Args   []string
	Dir    string
	Env    []string
	Stream bool
}

type CmdOption func(*Command)

func WithArgs(args ...string) CmdOption {
	return func(c *Command) {
		c.Args = append(c.Args, args...)
	}
}

func WithDir(dir string) CmdOption {
	return func(c *Command) {
		c.Dir = dir
	}
}

// WithEnv adds KEY=VALUE pairs on top of the cooker's own environment.
func WithEnv(env ...string) CmdOption {
	return func(c *Command) {
		c.Env = append(c.Env, env...)
	}
}

func WithStream() CmdOption {
	return func(c *Command) {
		c.Stream = true
	}
}

// NewCommand builds a Command for name.
func NewCommand(name string, options ...CmdOption) Command {
	c := Command{Name: name}
	for _, o := range options {
		o(&c)
	}
	return c
}

// CommandLine is the command as it would be typed in a shell.
func (c Command) CommandLine() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Runner starts external tools. The cooker only talks to subprocesses
// through it so tests can script the replies.
type Runner interface {
	Run(ctx context.Context, cmd Command) (string, error)
}

// ToolError is a subprocess that could not start or exited with a
// non-zero code.
type ToolError struct {
	CommandLine string
	ExitCode    int
	Output      string
	Err         error
}

func (e *ToolError) Error() string {
	if e.ExitCode != 0 {
		return fmt.Sprintf("%s failed with exit code %d", e.CommandLine, e.ExitCode)
	}
	return fmt.Sprintf("%s failed: %v", e.CommandLine, e.Err)
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	// Output receives streamed commands, os.Stdout when nil.
	Output io.Writer
}

func (r *ExecRunner) Run(ctx context.Context, c Command) (string, error) {
	core.LogDebug("executing: %s", c.CommandLine())
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	if c.Dir != "" {
		cmd.Dir = c.Dir
	}
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}

	var b bytes.Buffer
	if c.Stream {
		out := r.Output
		if out == nil {
			out = os.Stdout
		}
		cmd.Stdout = io.MultiWriter(&b, out)
		cmd.Stderr = io.MultiWriter(&b, out)
	} else {
		cmd.Stdout = &b
		cmd.Stderr = &b
	}
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", core.NewError(core.KindCancelled, c.Name, ctx.Err())
		}
		te := &ToolError{CommandLine: c.CommandLine(), Output: b.String(), Err: err}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			te.ExitCode = exitErr.ExitCode()
		}
		if !c.Stream {
			core.LogError("... failed command output:\n%s", te.Output)
		}
		return te.Output, core.NewError(core.KindTooling, c.Name, te)
	}
	return b.String(), nil
}
