package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/walked/fretflow/internal/audio"
	"github.com/walked/fretflow/internal/engine"
	"github.com/walked/fretflow/internal/session"
	"github.com/walked/fretflow/internal/storage"
	"github.com/walked/fretflow/internal/theory"
	"github.com/walked/fretflow/pkg/logger"
)

func main() {
	log := logger.GetLogger()
	if err := log.TeeToFile("logs"); err != nil {
		log.Warnf("cli: log file unavailable: %v", err)
	}
	defer log.Close()

	printBanner()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	log.Debugf("Executing command: %s", command)

	switch command {
	case "live":
		handleLive()
	case "wav":
		handleWav()
	case "stats":
		handleStats()
	case "positions":
		handlePositions()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printBanner() {
	banner := `
  ___        _   ___ _
 | __| _ ___| |_| __| |_____ __ __
 | _| '_/ -_)  _| _|| / _ \ V  V /
 |_||_|_\___|\__|_| |_\___/\_/\_/

      Guitar Fretboard Trainer
`
	fmt.Println(banner)
}

func printUsage() {
	fmt.Println(`Usage: fretflow <command> [flags]

Commands:
  live       Practice against the microphone
             -strings E,A  -difficulty natural|all  -rate 22050  -block 100ms  -no-store
  wav        Replay a recorded WAV file against one target
             -note A  -string E  <file.wav>
  stats      Show recent practice sessions
             -limit 10
  positions  Show fret positions and intervals for a note
             -note C  -string A`)
}

func parseStrings(csv string) ([]theory.GuitarString, error) {
	if csv == "" {
		return nil, nil
	}
	var out []theory.GuitarString
	for _, name := range strings.Split(csv, ",") {
		s, err := theory.ParseString(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func handleLive() {
	log := logger.GetLogger()

	liveCmd := flag.NewFlagSet("live", flag.ExitOnError)
	stringsFlag := liveCmd.String("strings", "E,A", "Comma-separated strings to drill")
	difficultyFlag := liveCmd.String("difficulty", "natural", "Note pool: natural or all")
	rateFlag := liveCmd.Int("rate", 22050, "Capture sample rate in Hz")
	blockFlag := liveCmd.Duration("block", 100*time.Millisecond, "Capture block duration")
	noStoreFlag := liveCmd.Bool("no-store", false, "Disable session persistence")
	liveCmd.Parse(os.Args[2:])

	selected, err := parseStrings(*stringsFlag)
	if err != nil {
		log.Fatalf("Invalid -strings: %v", err)
	}
	difficulty, err := session.ParseDifficulty(*difficultyFlag)
	if err != nil {
		log.Fatalf("Invalid -difficulty: %v", err)
	}

	var store *storage.Client
	if !*noStoreFlag {
		store, err = storage.Open()
		if err != nil {
			log.Fatalf("Opening results database: %v", err)
		}
		defer store.Close()
	}

	if err := portaudio.Initialize(); err != nil {
		log.Fatalf("Initializing portaudio: %v", err)
	}
	defer portaudio.Terminate()

	capture, err := audio.NewCapture(audio.CaptureConfig{
		SampleRate:    *rateFlag,
		BlockDuration: *blockFlag,
	})
	if err != nil {
		log.Fatalf("Opening microphone: %v", err)
	}
	defer capture.Close()

	if err := capture.Start(); err != nil {
		log.Fatalf("Starting capture: %v", err)
	}
	defer capture.Stop()

	ctrl, err := session.New(session.Config{
		Strings:    selected,
		Difficulty: difficulty,
		Store:      store,
	})
	if err != nil {
		log.Fatalf("Starting session: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Println("Listening. Play the prompted note; Ctrl-C to finish.")

	for ctx.Err() == nil {
		ch, err := ctrl.NextChallenge()
		if errors.Is(err, session.ErrNoStrings) {
			log.Fatalf("No strings selected; pass -strings with at least one of E,A,D,G,B,e")
		}
		if err != nil {
			log.Fatalf("Picking challenge: %v", err)
		}

		fmt.Printf("\nFind: %s on the %s string\n", ch.Note, ch.String)

		err = ctrl.RunChallenge(ctx, capture.Blocks(), printEvent)
		if errors.Is(err, context.Canceled) {
			break
		}
		if err != nil {
			log.Fatalf("Challenge aborted: %v", err)
		}
	}

	fmt.Printf("\nSession over: %d notes confirmed", len(ctrl.Times()))
	if avg := ctrl.AverageTime(); avg > 0 {
		fmt.Printf(", average %.2fs", avg.Seconds())
	}
	fmt.Println()
}

func printEvent(ev engine.Event) {
	switch ev.Kind {
	case engine.EventWrongNote:
		fmt.Printf("Heard: %s\n", ev.Note)
	case engine.EventNoteConfirmed:
		third, fifth := theory.Intervals(ev.Note)
		fmt.Printf("Correct! %.2fs  (major third %s, perfect fifth %s)\n",
			ev.Elapsed.Seconds(), third, fifth)
	}
}

func handleWav() {
	log := logger.GetLogger()

	wavCmd := flag.NewFlagSet("wav", flag.ExitOnError)
	noteFlag := wavCmd.String("note", "A", "Target note")
	stringFlag := wavCmd.String("string", "E", "Target string (E,A,D,G,B,e)")

	// Accept the file path before or after the flags.
	args := os.Args[2:]
	var path string
	var flagArgs []string
	for i, arg := range args {
		if !strings.HasPrefix(arg, "-") && path == "" {
			path = arg
		} else {
			flagArgs = append(flagArgs, args[i:]...)
			break
		}
	}
	wavCmd.Parse(flagArgs)
	if path == "" && wavCmd.NArg() > 0 {
		path = wavCmd.Arg(0)
	}
	if path == "" {
		fmt.Println("Usage: fretflow wav [-note A] [-string E] <file.wav>")
		os.Exit(1)
	}

	note, err := theory.ParseNote(*noteFlag)
	if err != nil {
		log.Fatalf("Invalid -note: %v", err)
	}
	gstring, err := theory.ParseString(*stringFlag)
	if err != nil {
		log.Fatalf("Invalid -string: %v", err)
	}

	blocks, err := audio.ReadBlocks(path, audio.BatchBlockDuration)
	if err != nil {
		log.Fatalf("Reading %s: %v", path, err)
	}
	log.Infof("Loaded %d blocks from %s", len(blocks), path)

	ctrl, err := session.New(session.Config{Strings: []theory.GuitarString{gstring}})
	if err != nil {
		log.Fatalf("Starting session: %v", err)
	}
	ctrl.StartChallenge(session.Challenge{Note: note, String: gstring})

	feed := make(chan audio.Block, len(blocks))
	for _, b := range blocks {
		feed <- b
	}
	close(feed)

	confirmed := false
	err = ctrl.RunChallenge(context.Background(), feed, func(ev engine.Event) {
		if ev.Kind == engine.EventNoteConfirmed {
			confirmed = true
		}
		printEvent(ev)
	})
	if err != nil {
		log.Fatalf("Processing blocks: %v", err)
	}

	if !confirmed {
		fmt.Printf("No stable %s heard on the recording.\n", note)
		os.Exit(1)
	}
}

func handleStats() {
	log := logger.GetLogger()

	statsCmd := flag.NewFlagSet("stats", flag.ExitOnError)
	limitFlag := statsCmd.Int("limit", 10, "Number of sessions to show")
	statsCmd.Parse(os.Args[2:])

	store, err := storage.Open()
	if err != nil {
		log.Fatalf("Opening results database: %v", err)
	}
	defer store.Close()

	summaries, err := store.RecentSessions(*limitFlag)
	if err != nil {
		log.Fatalf("Listing sessions: %v", err)
	}
	if len(summaries) == 0 {
		fmt.Println("No sessions recorded yet.")
		return
	}

	fmt.Printf("%-20s  %-8s  %-12s  %8s  %8s\n", "Started", "Notes", "Strings", "Attempts", "Avg (s)")
	for _, s := range summaries {
		fmt.Printf("%-20s  %-8s  %-12s  %8d  %8.2f\n",
			s.CreatedAt.Format("2006-01-02 15:04"),
			s.Difficulty, s.Strings, s.Attempts, s.AvgElapsedMs/1000)
	}
}

func handlePositions() {
	log := logger.GetLogger()

	posCmd := flag.NewFlagSet("positions", flag.ExitOnError)
	noteFlag := posCmd.String("note", "C", "Root note")
	stringFlag := posCmd.String("string", "A", "String the root is played on")
	posCmd.Parse(os.Args[2:])

	note, err := theory.ParseNote(*noteFlag)
	if err != nil {
		log.Fatalf("Invalid -note: %v", err)
	}
	gstring, err := theory.ParseString(*stringFlag)
	if err != nil {
		log.Fatalf("Invalid -string: %v", err)
	}

	rootFret := theory.FretOf(gstring, note)
	third, fifth := theory.Intervals(note)

	fmt.Printf("Root:          %s on %s string, fret %d\n", note, gstring, rootFret)
	fmt.Printf("Major third:   %s\n", third)
	fmt.Printf("Perfect fifth: %s\n", fifth)
	fmt.Println()

	fmt.Printf("%-8s  %-6s  %-7s  %-7s\n", "String", note.String(), third.String(), fifth.String())
	for _, s := range theory.Strings {
		rf := theory.FretOf(s, note)
		tf, _ := theory.NearestFret(third, s, rootFret)
		ff, _ := theory.NearestFret(fifth, s, rootFret)
		fmt.Printf("%-8s  %-6d  %-7d  %-7d\n", s, rf, tf, ff)
	}
}
