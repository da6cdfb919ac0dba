// tasksync is a terminal client for the task service: it logs in,
// remembers the session across runs, and lists, adds, and deletes the
// signed-in user's tasks.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/pflag"

	"github.com/nhle/tasksync/internal/model"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, errSilent) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

// errSilent marks a failure whose message has already been printed.
var errSilent = errors.New("failed")

// globalOptions are accepted before the subcommand name.
type globalOptions struct {
	configPath string
	baseURL    string
	backend    string
	verbose    bool
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var opts globalOptions

	flagSet := pflag.NewFlagSet("tasksync", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.SetInterspersed(false)
	flagSet.StringVar(&opts.configPath, "config", model.DefaultConfigPath(), "path to config file")
	flagSet.StringVar(&opts.baseURL, "base-url", "", "task service URL (overrides api.base_url)")
	flagSet.StringVar(&opts.backend, "session-backend", "", "where to keep the session: keyring, sqlite, or memory")
	flagSet.BoolVarP(&opts.verbose, "verbose", "v", false, "log requests to stderr")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printUsage(stderr, flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printUsage(stderr, flagSet)
		return nil
	}

	rest := flagSet.Args()
	if len(rest) == 0 {
		printUsage(stderr, flagSet)
		return errors.New("missing command")
	}

	name, cmdArgs := rest[0], rest[1:]
	cmd, ok := commands[name]
	if !ok {
		return fmt.Errorf("unknown command %q (see tasksync --help)", name)
	}

	if name == "config" {
		return cmd(ctx, nil, &opts, cmdArgs, stdout)
	}

	a, err := newApp(&opts, stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	return cmd(ctx, a, &opts, cmdArgs, stdout)
}

func printUsage(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprint(w, `tasksync manages your task list from the terminal.

Usage:
  tasksync [global flags] <command> [flags]

Commands:
  login       log in and remember the session
  register    create an account
  logout      forget the session
  whoami      show the signed-in user
  list        list your tasks (--cached for the last fetched copy)
  add         add a task
  delete ID   delete a task
  browse      interactive task list
  config init write a config file with the current settings

Global flags:
`)
	flagSet.PrintDefaults()
}
