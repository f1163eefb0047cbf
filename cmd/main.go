// Package main is the command-line entry point of tunelib, a personal media
// library manager.
//
// Build:
//
//	go build -o build/tunelib ./cmd
//
// Run:
//
//	./build/tunelib [-config path] <command> [arguments]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/tejashwikalptaru/tunelib/internal/app"
	"github.com/tejashwikalptaru/tunelib/internal/config"
	"github.com/tejashwikalptaru/tunelib/internal/logger"
)

// command runs one subcommand against a wired application.
type command struct {
	usage string
	run   func(ctx context.Context, c *cli, args []string) error
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"import":   {"import <file|folder>...", runImport},
		"remove":   {"remove <track-id>...", runRemove},
		"list":     {"list [-search q] [-artist a] [-album b] [-tag t]... [-playlist id]", runList},
		"playlist": {"playlist create|rename|delete|add|remove|list|show|export|import ...", runPlaylist},
		"tag":      {"tag add|remove <track-id> <name> | tag list", runTag},
		"artist":   {"artist link|unlink <track-id> <name> | artist list", runArtist},
		"album":    {"album link|unlink <track-id> <name> | album list [-artist id]", runAlbum},
		"history":  {"history [-limit n] [-clear]", runHistory},
		"cover":    {"cover [-set image] <track-id>", runCover},
		"play":     {"play [-shuffle] [-repeat] [-playlist id] [-search q] [-plays n]", runPlay},
		"watch":    {"watch [folder]...", runWatch},
	}
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) (err error) {
	global := flag.NewFlagSet("tunelib", flag.ContinueOnError)
	configPath := global.String("config", config.DefaultPath(), "configuration file")
	global.Usage = func() { printUsage(global) }
	if err := global.Parse(args); err != nil {
		return err
	}

	rest := global.Args()
	if len(rest) == 0 {
		global.Usage()
		return flag.ErrHelp
	}
	name, cmdArgs := rest[0], rest[1:]

	if name == "version" {
		fmt.Fprintln(out, app.GetVersionInfo().FullString())
		return nil
	}
	cmd, ok := commands[name]
	if !ok {
		global.Usage()
		return fmt.Errorf("unknown command %q", name)
	}

	// Config loading logs before the configured logger exists
	slog.SetDefault(logger.NewLogger(logger.DefaultConfig()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.NewApplication(app.Options{ConfigPath: *configPath})
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, application.Shutdown())
	}()

	return cmd.run(ctx, &cli{app: application, out: out}, cmdArgs)
}

func printUsage(fs *flag.FlagSet) {
	w := fs.Output()
	fmt.Fprintf(w, "Usage: tunelib [-config path] <command> [arguments]\n\nCommands:\n")

	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %s\n", commands[name].usage)
	}
	fmt.Fprintf(w, "  version\n\nFlags:\n")
	fs.PrintDefaults()
}
