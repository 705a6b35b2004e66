/*
anima-cooker turns a game project into a runnable build for one platform,
and exposes the texture and icon tools used by the cook.
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/anima-cooker/engine/core"
)

const usage = `usage: anima-cooker <command> [flags]

commands:
  cook      cook a project for a platform
  texture   import an image and export it as a texture
  icon      replace the icon of a Windows executable
  icons     list the 32-bit icons of a Windows executable

run "anima-cooker <command> -h" for the flags of a command.
`

// exit codes
const (
	exitOK = iota
	exitFailed
	exitUsage
	exitCancelled = 130
)

type command func(ctx context.Context, args []string) error

var commands = map[string]command{
	"cook":    runCook,
	"texture": runTexture,
	"icon":    runIcon,
	"icons":   runIcons,
}

// errUsage marks bad command lines, the flag set already printed why.
var errUsage = errors.New("invalid command line")

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		fmt.Fprint(os.Stderr, usage)
		if len(args) == 0 {
			return exitUsage
		}
		return exitOK
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", args[0], usage)
		return exitUsage
	}

	// signal channel to capture system calls
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	defer stop()

	err := cmd(ctx, args[1:])
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errUsage):
		if err != errUsage {
			fmt.Fprintln(os.Stderr, err)
		}
		return exitUsage
	case core.IsKind(err, core.KindCancelled):
		core.LogWarn("cancelled")
		return exitCancelled
	}
	core.LogError("%s", err)
	return exitFailed
}

// setLogLevel applies the --log-level flag.
func setLogLevel(s string) error {
	level, ok := core.ParseLogLevel(s)
	if !ok {
		return fmt.Errorf("%w: unknown log level %q", errUsage, s)
	}
	core.SetLogLevel(level)
	return nil
}
