// Command boikhata is a terminal client for the Boi Khata shop backend. The session and
// refresh cookie survive between invocations in the configured storage.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/boikhata/khata"
	"github.com/boikhata/khata/guard"
)

var errUsage = errors.New("usage")

type command struct {
	summary string
	run     func(ctx context.Context, a *app, args []string) error
}

var commands = map[string]command{
	"login":    {"login -email <email> [-password <password>]", cmdLogin},
	"logout":   {"logout", cmdLogout},
	"whoami":   {"whoami", cmdWhoami},
	"route":    {"route <path>", cmdRoute},
	"products": {"products list|get|add|update|delete ...", cmdProducts},
	"metrics":  {"metrics", cmdMetrics},
}

type app struct {
	client *khata.Client
	guards *guard.Guards
	log    zerolog.Logger
	out    io.Writer
	json   bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("boikhata", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		configPath = fs.String("config", "", "config file (default ./boikhata.yaml if present)")
		stateDir   = fs.String("state", "", "directory for the persisted session; forces the file storage driver")
		baseURL    = fs.String("base-url", "", "backend base URL override")
		jsonOut    = fs.Bool("json", false, "print results as JSON")
	)
	fs.Usage = func() { usage(fs) }
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		usage(fs)
		return 2
	}
	cmd, found := commands[fs.Arg(0)]
	if !found {
		fmt.Fprintf(stderr, "boikhata: unknown command %q\n", fs.Arg(0))
		usage(fs)
		return 2
	}

	cfg, err := khata.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "boikhata: %v\n", err)
		return 1
	}
	if *baseURL != "" {
		cfg.BaseURL = *baseURL
	}
	if err := useDurableStorage(&cfg, *stateDir); err != nil {
		fmt.Fprintf(stderr, "boikhata: %v\n", err)
		return 1
	}

	log := khata.NewLogger(cfg.Log, stderr)
	client, err := khata.New().WithConfig(cfg).WithLogger(log).Build()
	if err != nil {
		fmt.Fprintf(stderr, "boikhata: %v\n", err)
		return 1
	}
	defer func() {
		if err := client.Close(); err != nil {
			log.Warn().Err(err).Msg("close client")
		}
	}()

	a := &app{
		client: client,
		guards: guard.New(client),
		log:    log,
		out:    stdout,
		json:   *jsonOut,
	}
	if err := cmd.run(ctx, a, fs.Args()[1:]); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintf(stderr, "usage: boikhata %s\n", cmd.summary)
			return 2
		}
		fmt.Fprintf(stderr, "boikhata: %v\n", err)
		return 1
	}
	return 0
}

// useDurableStorage keeps the session between runs: an explicit state dir wins, and the
// in-memory driver is replaced with a file store under the user config dir.
func useDurableStorage(cfg *khata.Config, stateDir string) error {
	if stateDir == "" && cfg.Storage.Driver != khata.StorageMemory {
		return nil
	}
	if stateDir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return fmt.Errorf("locate state dir: %w", err)
		}
		stateDir = filepath.Join(base, "boikhata")
	}
	cfg.Storage.Driver = khata.StorageFile
	cfg.Storage.Dir = stateDir
	return nil
}

func usage(fs *flag.FlagSet) {
	out := fs.Output()
	fmt.Fprintln(out, "usage: boikhata [flags] <command> [args]")
	fmt.Fprintln(out, "\ncommands:")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "  %s\n", commands[name].summary)
	}
	fmt.Fprintln(out, "\nflags:")
	fs.PrintDefaults()
}

func subFlags(name string, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	return fs
}

func parseSub(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return errUsage
		}
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	return nil
}

func oneArg(args []string) (string, error) {
	if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
		return "", errUsage
	}
	return args[0], nil
}
