package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"github.com/stone-age-io/sysconfig/internal/app"
	"github.com/stone-age-io/sysconfig/internal/config"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) (code int) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(stdout, "An error occurred: %v\n", r)
			code = 1
		}
	}()

	flags := pflag.NewFlagSet("sysconfig", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	configFile := flags.StringP("config", "c", "", "path to config file")
	check := flags.Bool("check", false, "re-read the written file and fail if it does not parse")
	showVersion := flags.Bool("version", false, "print version and exit")
	config.RegisterFlags(flags)
	flags.Usage = func() {
		fmt.Fprintf(stderr, "Usage: sysconfig [flags] [output-path]\n\n")
		flags.PrintDefaults()
	}

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}

	if *showVersion {
		fmt.Fprintf(stdout, "sysconfig %s\n", version)
		return 0
	}

	if flags.NArg() > 1 {
		fmt.Fprintf(stdout, "An error occurred: expected at most one output path, got %d arguments\n", flags.NArg())
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(app.Options{
		ConfigFile: *configFile,
		Output:     flags.Arg(0),
		Flags:      flags,
		Check:      *check,
		Version:    version,
		Stdout:     stdout,
		Stderr:     stderr,
	})
	if err != nil {
		fmt.Fprintf(stdout, "An error occurred: %v\n", err)
		return 1
	}
	defer a.Close()

	if err := a.Run(ctx); err != nil {
		fmt.Fprintf(stdout, "An error occurred: %v\n", err)
		return 1
	}

	return 0
}
