package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/tejashwikalptaru/tunelib/internal/adapter/audio/mock"
	"github.com/tejashwikalptaru/tunelib/internal/app"
	"github.com/tejashwikalptaru/tunelib/internal/domain"
	"github.com/tejashwikalptaru/tunelib/internal/service"
)

// simulationStep is the playback time one step of the play simulation covers.
const simulationStep int64 = 5000

type cli struct {
	app *app.Application
	out io.Writer
}

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

// stringList collects a repeatable string flag.
type stringList []string

func (l *stringList) String() string { return strings.Join(*l, ",") }

func (l *stringList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: tunelib %s\n", commands[name].usage)
		fs.PrintDefaults()
	}
	return fs
}

func parseID(s, what string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("invalid %s id %q", what, s)
	}
	return id, nil
}

func needArgs(args []string, n int, usage string) error {
	if len(args) != n {
		return fmt.Errorf("usage: tunelib %s", usage)
	}
	return nil
}

func formatDuration(ms int64) string {
	if ms <= 0 {
		return "-"
	}
	return service.FormatTime(ms)
}

func (c *cli) printTracks(tracks []domain.Track) {
	if len(tracks) == 0 {
		fmt.Fprintln(c.out, "no tracks")
		return
	}

	rows := make([][]string, 0, len(tracks))
	for _, t := range tracks {
		rows = append(rows, []string{
			strconv.FormatInt(t.ID, 10),
			t.DisplayTitle(),
			t.Artist,
			t.Album,
			formatDuration(t.Duration),
			strings.Join(t.Tags, ", "),
			strconv.Itoa(t.PlayCount),
		})
	}
	c.printTable([]string{"ID", "Title", "Artist", "Album", "Length", "Tags", "Plays"}, rows)
}

func (c *cli) printTable(headers []string, rows [][]string) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	fmt.Fprintln(c.out, t.Render())
}

func (c *cli) printImport(source string, res service.ImportResult) {
	fmt.Fprintf(c.out, "%s: imported %d, already in library %d, failed %d\n",
		source, len(res.Imported), res.Existing, len(res.Failed))
	for _, f := range res.Failed {
		fmt.Fprintf(c.out, "  skipped %s: %v\n", f.Path, f.Err)
	}
	if res.Cancelled {
		fmt.Fprintln(c.out, "  import cancelled")
	}
}

func runImport(ctx context.Context, c *cli, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: tunelib %s", commands["import"].usage)
	}

	sub := c.app.EventBus().Subscribe(domain.EventImportProgress, func(e domain.Event) {
		if ev, ok := e.(domain.ImportProgressEvent); ok {
			fmt.Fprintf(os.Stderr, "[%d/%d] %s\n", ev.Progress.FilesProcessed, ev.Progress.TotalFiles, filepath.Base(ev.Progress.CurrentFile))
		}
	})
	defer c.app.EventBus().Unsubscribe(sub)

	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return err
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		res, err := c.app.Library().ImportFolder(ctx, arg)
		c.printImport(arg, res)
		if err != nil {
			return err
		}
	}

	if len(files) > 0 {
		res, err := c.app.Library().ImportFiles(ctx, files)
		c.printImport(fmt.Sprintf("%d file(s)", len(files)), res)
		return err
	}
	return nil
}

func runRemove(ctx context.Context, c *cli, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: tunelib %s", commands["remove"].usage)
	}
	for _, arg := range args {
		id, err := parseID(arg, "track")
		if err != nil {
			return err
		}
		if err := c.app.Library().DeleteTrack(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func runList(ctx context.Context, c *cli, args []string) error {
	var view service.View
	var tags stringList
	fs := newFlagSet("list")
	fs.StringVar(&view.Search, "search", "", "match title, artist or album")
	fs.StringVar(&view.Artist, "artist", "", "exact artist name")
	fs.StringVar(&view.Album, "album", "", "exact album name")
	fs.Var(&tags, "tag", "tag name (repeatable, any of)")
	fs.Int64Var(&view.PlaylistID, "playlist", 0, "playlist id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	view.Tags = tags

	if _, err := c.app.Library().ApplyView(ctx, view); err != nil {
		return err
	}
	c.printTracks(c.app.Library().Tracks())
	return nil
}

func runPlaylist(ctx context.Context, c *cli, args []string) error {
	usage := commands["playlist"].usage
	if len(args) == 0 {
		return fmt.Errorf("usage: tunelib %s", usage)
	}
	playlists := c.app.Playlists()
	action, args := args[0], args[1:]

	switch action {
	case "create":
		if err := needArgs(args, 1, "playlist create <name>"); err != nil {
			return err
		}
		id, err := playlists.Create(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "created playlist %d\n", id)
		return nil

	case "rename":
		if err := needArgs(args, 2, "playlist rename <id> <name>"); err != nil {
			return err
		}
		id, err := parseID(args[0], "playlist")
		if err != nil {
			return err
		}
		return playlists.Rename(ctx, id, args[1])

	case "delete":
		if err := needArgs(args, 1, "playlist delete <id>"); err != nil {
			return err
		}
		id, err := parseID(args[0], "playlist")
		if err != nil {
			return err
		}
		return playlists.Delete(ctx, id)

	case "add":
		fs := flag.NewFlagSet("playlist add", flag.ContinueOnError)
		at := fs.Int("at", -1, "position to insert at (default appends)")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if err := needArgs(fs.Args(), 2, "playlist add [-at n] <playlist-id> <track-id>"); err != nil {
			return err
		}
		playlistID, err := parseID(fs.Arg(0), "playlist")
		if err != nil {
			return err
		}
		trackID, err := parseID(fs.Arg(1), "track")
		if err != nil {
			return err
		}
		return playlists.Add(ctx, playlistID, trackID, *at)

	case "remove":
		if err := needArgs(args, 2, "playlist remove <playlist-id> <track-id>"); err != nil {
			return err
		}
		playlistID, err := parseID(args[0], "playlist")
		if err != nil {
			return err
		}
		trackID, err := parseID(args[1], "track")
		if err != nil {
			return err
		}
		return playlists.Remove(ctx, playlistID, trackID)

	case "list":
		all, err := playlists.List(ctx)
		if err != nil {
			return err
		}
		rows := make([][]string, 0, len(all))
		for _, p := range all {
			rows = append(rows, []string{
				strconv.FormatInt(p.ID, 10),
				p.Name,
				p.Modified.Local().Format(time.DateTime),
			})
		}
		c.printTable([]string{"ID", "Name", "Modified"}, rows)
		return nil

	case "show":
		if err := needArgs(args, 1, "playlist show <id>"); err != nil {
			return err
		}
		id, err := parseID(args[0], "playlist")
		if err != nil {
			return err
		}
		tracks, err := playlists.Tracks(ctx, id)
		if err != nil {
			return err
		}
		c.printTracks(tracks)
		return nil

	case "export":
		if len(args) < 1 || len(args) > 2 {
			return errors.New("usage: tunelib playlist export <id> [file.m3u]")
		}
		id, err := parseID(args[0], "playlist")
		if err != nil {
			return err
		}
		if len(args) == 1 {
			return playlists.ExportM3U(ctx, id, c.out)
		}
		file, err := os.Create(args[1])
		if err != nil {
			return err
		}
		if err := playlists.ExportM3U(ctx, id, file); err != nil {
			file.Close()
			return err
		}
		return file.Close()

	case "import":
		if err := needArgs(args, 2, "playlist import <name> <file.m3u>"); err != nil {
			return err
		}
		file, err := os.Open(args[1])
		if err != nil {
			return err
		}
		defer file.Close()

		res, err := playlists.ImportM3U(ctx, args[0], file, filepath.Dir(args[1]))
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "created playlist %d with %d track(s)\n", res.PlaylistID, res.Added)
		for _, entry := range res.Unknown {
			fmt.Fprintf(c.out, "  not in library: %s\n", entry)
		}
		return nil

	default:
		return fmt.Errorf("unknown playlist action %q; usage: tunelib %s", action, usage)
	}
}

// relation runs the add/remove pair of a track relationship.
func relation(ctx context.Context, args []string, usage string, actions map[string]func(context.Context, int64, string) error) error {
	if len(args) != 3 {
		return fmt.Errorf("usage: tunelib %s", usage)
	}
	apply, ok := actions[args[0]]
	if !ok {
		return fmt.Errorf("unknown action %q; usage: tunelib %s", args[0], usage)
	}
	trackID, err := parseID(args[1], "track")
	if err != nil {
		return err
	}
	return apply(ctx, trackID, args[2])
}

func runTag(ctx context.Context, c *cli, args []string) error {
	lib := c.app.Library()
	if len(args) == 1 && args[0] == "list" {
		tags, err := lib.Tags(ctx)
		if err != nil {
			return err
		}
		for _, t := range tags {
			fmt.Fprintf(c.out, "%d\t%s\n", t.ID, t.Name)
		}
		return nil
	}
	return relation(ctx, args, commands["tag"].usage, map[string]func(context.Context, int64, string) error{
		"add":    lib.TagTrack,
		"remove": lib.UntagTrack,
	})
}

func runArtist(ctx context.Context, c *cli, args []string) error {
	lib := c.app.Library()
	if len(args) == 1 && args[0] == "list" {
		artists, err := lib.Artists(ctx)
		if err != nil {
			return err
		}
		for _, a := range artists {
			fmt.Fprintf(c.out, "%d\t%s\n", a.ID, a.Name)
		}
		return nil
	}
	return relation(ctx, args, commands["artist"].usage, map[string]func(context.Context, int64, string) error{
		"link":   lib.LinkArtist,
		"unlink": lib.UnlinkArtist,
	})
}

func runAlbum(ctx context.Context, c *cli, args []string) error {
	lib := c.app.Library()
	if len(args) > 0 && args[0] == "list" {
		fs := flag.NewFlagSet("album list", flag.ContinueOnError)
		artist := fs.Int64("artist", -1, "only albums of this artist id")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}

		var albums []domain.Album
		var err error
		if *artist >= 0 {
			albums, err = lib.AlbumsByArtist(ctx, *artist)
		} else {
			albums, err = lib.Albums(ctx)
		}
		if err != nil {
			return err
		}
		for _, a := range albums {
			fmt.Fprintf(c.out, "%d\t%s\n", a.ID, a.Name)
		}
		return nil
	}
	return relation(ctx, args, commands["album"].usage, map[string]func(context.Context, int64, string) error{
		"link":   lib.LinkAlbum,
		"unlink": lib.UnlinkAlbum,
	})
}

func runHistory(ctx context.Context, c *cli, args []string) error {
	fs := newFlagSet("history")
	limit := fs.Int("limit", c.app.Config().Library.HistoryLimit, "number of plays to show")
	clearAll := fs.Bool("clear", false, "forget every recorded play")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *clearAll {
		if err := c.app.Library().ClearHistory(ctx); err != nil {
			return err
		}
		fmt.Fprintln(c.out, "history cleared")
		return nil
	}

	if _, err := c.app.Library().ShowHistory(ctx, *limit); err != nil {
		return err
	}
	c.printTracks(c.app.Library().Tracks())
	return nil
}

func runCover(ctx context.Context, c *cli, args []string) error {
	fs := newFlagSet("cover")
	set := fs.String("set", "", "image to use as the cover")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := needArgs(fs.Args(), 1, commands["cover"].usage); err != nil {
		return err
	}
	id, err := parseID(fs.Arg(0), "track")
	if err != nil {
		return err
	}

	if *set != "" {
		path, err := c.app.Library().AssignCover(ctx, id, *set)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.out, path)
		return nil
	}

	path, ok, err := c.app.Library().Cover(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(c.out, "no cover")
		return nil
	}
	fmt.Fprintln(c.out, path)
	return nil
}

// runPlay simulates a listening session over the simulated engine. Plays are
// recorded in the history like real ones.
func runPlay(ctx context.Context, c *cli, args []string) error {
	var view service.View
	fs := newFlagSet("play")
	shuffle := fs.Bool("shuffle", false, "shuffle the queue")
	repeat := fs.Bool("repeat", false, "repeat the queue")
	plays := fs.Int("plays", 0, "stop after this many plays (default: the queue length)")
	pace := fs.Duration("pace", 0, "real time to wait between simulation steps")
	fs.Int64Var(&view.PlaylistID, "playlist", 0, "playlist id")
	fs.StringVar(&view.Search, "search", "", "match title, artist or album")
	if err := fs.Parse(args); err != nil {
		return err
	}

	engine, ok := c.app.Engine().(*mock.Engine)
	if !ok {
		return errors.New("play needs the simulated engine")
	}

	count, err := c.app.Library().ApplyView(ctx, view)
	if err != nil {
		return err
	}
	if count == 0 {
		fmt.Fprintln(c.out, "nothing to play")
		return nil
	}
	if *plays <= 0 {
		*plays = count
	}
	for _, t := range c.app.Library().Tracks() {
		if t.Duration > 0 {
			engine.SetDuration(t.FilePath, t.Duration)
		}
	}

	controller := c.app.Controller()
	controller.SetShuffle(*shuffle)
	controller.SetRepeat(*repeat)

	played := 0
	bus := c.app.EventBus()
	subs := []domain.SubscriptionID{
		bus.Subscribe(domain.EventPlayRecorded, func(domain.Event) {
			played++
			if played > *plays {
				return
			}
			t := controller.State().Track
			fmt.Fprintf(c.out, "> %s  %s [%s]\n", t.DisplayTitle(), t.Artist, formatDuration(t.Duration))
		}),
		bus.Subscribe(domain.EventMediaError, func(e domain.Event) {
			if ev, ok := e.(domain.MediaErrorEvent); ok {
				fmt.Fprintf(c.out, "! %s: %v\n", ev.Track.FilePath, ev.Err)
			}
		}),
	}
	defer func() {
		for _, id := range subs {
			bus.Unsubscribe(id)
		}
	}()

	// Shuffle picks the first track at random
	if *shuffle {
		_, err = controller.Next()
	} else {
		err = controller.PlayAt(0)
	}
	if err != nil {
		return err
	}
	controller.ProcessPending(ctx)

	for ctx.Err() == nil && played <= *plays && controller.State().State != domain.StateStopped {
		engine.Advance(simulationStep)
		controller.ProcessPending(ctx)

		if *pace > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(*pace):
			}
		}
	}
	controller.Stop()

	fmt.Fprintf(c.out, "played %d track(s)\n", min(played, *plays))
	return nil
}

func runWatch(ctx context.Context, c *cli, args []string) error {
	dirs := args
	if len(dirs) == 0 {
		dirs = c.app.Config().Library.WatchFolders
	}
	if len(dirs) == 0 {
		return errors.New("no folders to watch: pass them as arguments or set library.watch_folders")
	}

	c.app.Start(ctx)
	if err := c.app.Watch(ctx, dirs...); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "watching %s (Ctrl+C to stop)\n", strings.Join(dirs, ", "))

	<-ctx.Done()
	return nil
}
