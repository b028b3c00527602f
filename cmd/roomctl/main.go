// roomctl inspects ceremony rooms directly in the configured store.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/yourusername/nikah-service/internal/ceremony"
	"github.com/yourusername/nikah-service/internal/certificate"
	"github.com/yourusername/nikah-service/internal/config"
	"github.com/yourusername/nikah-service/internal/repository"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	backend    string
	sqlitePath string
	rulesFile  string
	jsonOutput bool
	html       bool
}

func run(args []string, out io.Writer) error {
	_ = godotenv.Load()

	var opts options
	flagSet := pflag.NewFlagSet("roomctl", pflag.ContinueOnError)
	flagSet.StringVar(&opts.backend, "backend", "", "store backend: memory, sqlite, rtdb or firestore (default: $STORE_BACKEND)")
	flagSet.StringVar(&opts.sqlitePath, "sqlite-path", "", "sqlite database file (default: $SQLITE_PATH)")
	flagSet.StringVar(&opts.rulesFile, "rules", "", "ceremony rules YAML file (default: $RULES_FILE)")
	flagSet.BoolVar(&opts.jsonOutput, "json", false, "print JSON instead of text")
	flagSet.BoolVar(&opts.html, "html", false, "render certificates as HTML instead of Markdown")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}

	rest := flagSet.Args()
	if len(rest) == 0 {
		printHelp(flagSet)
		return fmt.Errorf("expected a command")
	}
	command, roomID := rest[0], ""
	switch {
	case command == "list" && len(rest) == 1:
	case command != "list" && len(rest) == 2:
		roomID = rest[1]
	default:
		printHelp(flagSet)
		return fmt.Errorf("wrong number of arguments for %s", command)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if opts.backend != "" {
		cfg.StoreBackend = opts.backend
	}
	if opts.sqlitePath != "" {
		cfg.SQLitePath = opts.sqlitePath
	}
	if opts.rulesFile != "" {
		cfg.RulesFile = opts.rulesFile
	}
	cfg.FCMEnabled = false

	rules, err := config.LoadRules(cfg.RulesFile)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var fb *config.Firebase
	if cfg.NeedsFirebase() {
		fb, err = config.InitFirebase(ctx, cfg)
		if err != nil {
			return err
		}
		defer fb.Close()
	}
	store, err := config.OpenStore(cfg, fb)
	if err != nil {
		return err
	}
	defer store.Close()

	repo := repository.NewRoomRepository(store)

	switch command {
	case "list":
		return list(ctx, out, repo, rules)
	case "show":
		return show(ctx, out, repo, rules, roomID, opts)
	case "watch":
		return watch(ctx, out, repo, rules, roomID, opts)
	case "certificate":
		return printCertificate(ctx, out, repo, rules, roomID, opts)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `roomctl inspects nikah rooms in the configured store.

Usage:
  roomctl [flags] list
  roomctl [flags] show <roomId>
  roomctl [flags] watch <roomId>
  roomctl [flags] certificate <roomId>

Flags:
`)
	flagSet.PrintDefaults()
}

func list(ctx context.Context, out io.Writer, repo *repository.RoomRepository, rules ceremony.Rules) error {
	rooms, err := repo.ListRooms(ctx)
	if err != nil {
		return err
	}
	for _, room := range rooms {
		fmt.Fprintf(out, "%s\t%s\t%d participants\t%d witnesses\n",
			room.ID, ceremony.Derive(room, rules), len(room.Users), room.WitnessCount)
	}
	fmt.Fprintf(out, "%s rooms\n", humanize.Comma(int64(len(rooms))))
	return nil
}

func show(ctx context.Context, out io.Writer, repo *repository.RoomRepository, rules ceremony.Rules, roomID string, opts options) error {
	room, err := repo.GetRoom(ctx, roomID)
	if err != nil {
		return err
	}
	return printView(out, ceremony.NewView(roomID, room, rules), opts.jsonOutput, time.Now())
}

// watch prints every snapshot of the room until it is deleted or the
// command is interrupted.
func watch(ctx context.Context, out io.Writer, repo *repository.RoomRepository, rules ceremony.Rules, roomID string, opts options) error {
	sub, err := repo.WatchRoom(ctx, roomID)
	if err != nil {
		return err
	}
	defer sub.Close()

	for snap := range sub.Snapshots() {
		room, err := repository.DecodeRoom(snap)
		if err != nil {
			fmt.Fprintf(os.Stderr, "skipping snapshot: %v\n", err)
			continue
		}
		if err := printView(out, ceremony.NewView(roomID, room, rules), opts.jsonOutput, time.Now()); err != nil {
			return err
		}
		if room == nil {
			return nil
		}
	}
	if ctx.Err() != nil {
		return nil
	}
	return sub.Err()
}

func printCertificate(ctx context.Context, out io.Writer, repo *repository.RoomRepository, rules ceremony.Rules, roomID string, opts options) error {
	room, err := repo.GetRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if !ceremony.EvaluateCompletion(room, rules) {
		return fmt.Errorf("room %s: ceremony not completed", roomID)
	}

	cert := certificate.New(room, time.Now())
	switch {
	case opts.jsonOutput:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(cert)
	case opts.html:
		page, err := cert.HTML()
		if err != nil {
			return err
		}
		_, err = out.Write(page)
		return err
	default:
		_, err := io.WriteString(out, cert.Markdown())
		return err
	}
}

// printView writes a human readable summary of view, or its JSON form
func printView(out io.Writer, view ceremony.View, asJSON bool, now time.Time) error {
	if asJSON {
		return json.NewEncoder(out).Encode(view)
	}

	if view.Room == nil {
		_, err := fmt.Fprintf(out, "room %s: %s (deleted)\n", view.RoomID, view.State)
		return err
	}

	fmt.Fprintf(out, "room %s: %s\n", view.RoomID, view.State)
	if view.Room.MarriageDate > 0 {
		fmt.Fprintf(out, "  ceremony date: %s\n", certificate.FormatCeremonyDate(time.UnixMilli(view.Room.MarriageDate).UTC()))
	}
	for _, p := range view.Participants {
		joined := ""
		if p.JoinedAt > 0 {
			joined = ", joined " + humanize.RelTime(time.UnixMilli(p.JoinedAt), now, "ago", "from now")
		}
		fmt.Fprintf(out, "  participant %s: %s (%s), kabul %d (%d left)%s\n",
			p.ID, p.Name, p.Gender, p.KabulCount, view.Progress.AcceptancesLeft[p.ID], joined)
	}
	fmt.Fprintf(out, "  witnesses: %d (%d more needed)\n", view.Progress.WitnessCount, view.Progress.WitnessesNeeded)
	for _, w := range view.Witnesses {
		fmt.Fprintf(out, "    %s: %s\n", w.ID, w.Name)
	}
	_, err := fmt.Fprintf(out, "  messages: %s\n", humanize.Comma(int64(len(view.Messages))))
	return err
}
