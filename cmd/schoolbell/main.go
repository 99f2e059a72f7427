package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/urfave/cli"

	"schoolbell/internal/app"
	"schoolbell/internal/audio"
	logx "schoolbell/pkg/logx"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
)

const stopTimeout = 5 * time.Second

// env carries what the commands touch outside the process.
type env struct {
	fs      afero.Fs
	stdout  io.Writer
	now     func() time.Time
	backend audio.Backend
}

func newCLI(e *env) *cli.App {
	return &cli.App{
		Name:      "schoolbell",
		HelpName:  "schoolbell",
		Usage:     "rings scheduled bells through the local audio device",
		UsageText: "schoolbell [--config PATH] [command]",
		Version:   version,
		Writer:    e.stdout,
		Flags:     globalFlags,
		Action:    e.run,
		Commands: []cli.Command{
			{
				Name:   "run",
				Usage:  "run the bell service in the foreground (default)",
				Action: e.run,
			},
			{
				Name:   "check",
				Usage:  "validate the config and print when each entry rings next",
				Action: e.check,
			},
			{
				Name:    "version",
				Aliases: []string{"v"},
				Usage:   "prints the installed version",
				Action:  e.version,
			},
		},
		HideVersion: true,
	}
}

func (e *env) run(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return e.serve(ctx)
}

// serve runs the service until ctx is done or a fatal fault stops it.
// Fatal faults are appended to the fallback log and exit with status 1.
func (e *env) serve(ctx context.Context) error {
	a, err := app.New(app.Options{
		ConfigPath: cfgPath,
		LogLevel:   logLevel,
		Fs:         e.fs,
		Backend:    e.backend,
	})
	if err != nil {
		return e.fatal(err)
	}
	if err := a.Start(ctx); err != nil {
		_ = a.Stop(context.Background())
		return e.fatal(err)
	}

	<-a.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := a.Stop(stopCtx); err != nil {
		return e.fatal(err)
	}
	return nil
}

func (e *env) fatal(err error) error {
	if ferr := logx.AppendFallback(e.fs, fallbackLog, "Service stopped: "+err.Error()); ferr != nil {
		fmt.Fprintf(os.Stderr, "schoolbell: writing %s: %v\n", fallbackLog, ferr)
	}
	return cli.NewExitError("schoolbell: "+err.Error(), 1)
}

func (e *env) check(c *cli.Context) error {
	warnings, err := app.Check(e.stdout, cfgPath, e.fs, e.now())
	if err != nil {
		return cli.NewExitError("schoolbell: "+err.Error(), 1)
	}
	if warnings > 0 {
		return cli.NewExitError("", 2)
	}
	return nil
}

func (e *env) version(c *cli.Context) error {
	fmt.Fprintf(e.stdout, "%s %s (%s_%s)\nBuild: %s\n", c.App.Name, version, runtime.GOOS, runtime.GOARCH, commit)
	return nil
}

func main() {
	e := &env{fs: afero.NewOsFs(), stdout: os.Stdout, now: time.Now}
	if err := newCLI(e).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
