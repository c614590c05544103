// ABOUTME: Entry point for the synchronized group player
// ABOUTME: Parses CLI flags, loads sources into a group and runs the TUI or streaming logs
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Resonate-Protocol/syncsource-go/internal/app"
	"github.com/Resonate-Protocol/syncsource-go/internal/ui"
	"github.com/Resonate-Protocol/syncsource-go/internal/version"
	"github.com/Resonate-Protocol/syncsource-go/pkg/audio"
)

var (
	deviceName = flag.String("device", app.DeviceOto, "Output device: oto, beep or null")
	sampleRate = flag.Int("sample-rate", 48000, "Mixer sample rate in Hz")
	loop       = flag.Bool("loop", false, "Loop every source")
	static     = flag.Bool("static", false, "Load files fully into memory instead of streaming them")
	toneLength = flag.Duration("tone-length", 30*time.Second, "Length of tone inputs without an explicit duration")
	name       = flag.String("name", "", "Group and server name (default: hostname-syncsource)")
	port       = flag.Int("port", 8927, "Control server port")
	noControl  = flag.Bool("no-control", false, "Disable the control server")
	noMDNS     = flag.Bool("no-mdns", false, "Disable mDNS advertisement")
	autoplay   = flag.Bool("play", false, "Start the group on launch")
	trace      = flag.Bool("trace", false, "Log every device control call")
	logFile    = flag.String("log-file", "syncsource.log", "Log file path")
	noTUI      = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
	render     = flag.String("render", "", "Render the group into this WAV file and exit (null device, static sources)")
	renderFor  = flag.Duration("render-length", 10*time.Second, "Length of -render output")
	bitDepth   = flag.Int("bit-depth", 16, "Bit depth of -render output: 16 or 24")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "%s\n\nUsage: %s [flags] [file|tone:<hz>[:<duration>] ...]\n\n", version.String(), os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	useTUI := !*noTUI && *render == ""

	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer func() { _ = f.Close() }()

	if useTUI {
		log.SetOutput(f)
	} else {
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	groupName := *name
	if groupName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		groupName = fmt.Sprintf("%s-syncsource", hostname)
	}

	config := app.Config{
		Inputs:        flag.Args(),
		Device:        *deviceName,
		SampleRate:    *sampleRate,
		Loop:          *loop,
		Static:        *static,
		Name:          groupName,
		Port:          *port,
		EnableControl: !*noControl,
		EnableMDNS:    !*noMDNS,
		Trace:         *trace,
		ToneLength:    *toneLength,
	}

	if *render != "" {
		config.Device = app.DeviceNull
		config.Static = true
		config.EnableControl = false
		if err := renderFile(config); err != nil {
			log.Fatalf("Render failed: %v", err)
		}
		return
	}

	log.Printf("Starting %s: %s", version.String(), groupName)

	player, err := app.New(config)
	if err != nil {
		log.Fatalf("Failed to create player: %v", err)
	}
	defer player.Close()

	player.Start()

	if *autoplay {
		if err := player.Play(); err != nil {
			log.Printf("Autoplay failed: %v", err)
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if useTUI {
		prog := ui.Run(player)
		go func() {
			<-sigChan
			prog.Quit()
		}()
		if _, err := prog.Run(); err != nil {
			log.Printf("TUI error: %v", err)
		}
		log.Printf("Received quit from TUI")
	} else {
		go logStatusLoop(player)
		<-sigChan
		log.Printf("Shutdown signal received")
	}

	log.Printf("Player stopped")
}

func renderFile(config app.Config) error {
	out, err := os.Create(*render)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", *render, err)
	}
	defer out.Close()

	player, err := app.New(config)
	if err != nil {
		return err
	}
	defer player.Close()

	return player.Render(out, *renderFor, *bitDepth)
}

// logStatusLoop reports the group while it plays when there is no TUI
func logStatusLoop(player *app.Player) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		state := player.State()
		if state.Status != audio.StatusPlaying {
			continue
		}
		for _, src := range state.Sources {
			log.Printf("Source %s: %v at %v (volume %.0f)", src.Name, src.Status, src.Offset.Truncate(time.Millisecond), src.Volume)
		}
	}
}
