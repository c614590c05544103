// ABOUTME: Interactive controller for a synchronized group player
// ABOUTME: Finds a player over mDNS or by address and sends commands from a readline prompt
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/Resonate-Protocol/syncsource-go/internal/discovery"
	"github.com/Resonate-Protocol/syncsource-go/internal/version"
	"github.com/Resonate-Protocol/syncsource-go/pkg/protocol"
	"github.com/chzyer/readline"
)

var (
	serverAddr = flag.String("server", "", "Player address host:port (default: first found over mDNS)")
	name       = flag.String("name", "syncctl", "Controller name")
	wait       = flag.Duration("discover", 3*time.Second, "mDNS discovery time")
	verbose    = flag.Bool("v", false, "Log protocol traffic")
	list       = flag.Bool("list", false, "List players as they are discovered and exit on Ctrl+C")
)

func main() {
	flag.Parse()

	log.SetFlags(log.Ltime | log.Lmicroseconds)
	if !*verbose {
		log.SetOutput(io.Discard)
	}

	if *list {
		watch()
		return
	}

	addr := *serverAddr
	if addr == "" {
		found, err := discover(*wait)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Discovery failed: %v\n", err)
			os.Exit(1)
		}
		addr = found
	}

	client := protocol.NewClient(protocol.Config{ServerAddr: addr, Name: *name})
	if err := client.Connect(); err != nil {
		fmt.Fprintf(os.Stderr, "Connection to %s failed: %v\n", addr, err)
		os.Exit(1)
	}
	defer client.Close()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "sync> ",
		HistoryFile:     historyFile(),
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
		AutoComplete: readline.NewPrefixCompleter(
			readline.PcItem("play"),
			readline.PcItem("pause"),
			readline.PcItem("stop"),
			readline.PcItem("seek"),
			readline.PcItem("status"),
			readline.PcItem("volume"),
			readline.PcItem("pitch"),
			readline.PcItem("filter"),
			readline.PcItem("help"),
			readline.PcItem("quit"),
		),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start prompt: %v\n", err)
		os.Exit(1)
	}
	defer rl.Close()

	hello := client.Server()
	fmt.Fprintf(rl.Stdout(), "%s controller connected to %s (%s)\n", version.String(), hello.Name, addr)

	var (
		mu    sync.Mutex
		state *protocol.GroupState
	)
	go func() {
		for {
			select {
			case s, ok := <-client.States:
				if !ok {
					return
				}
				mu.Lock()
				state = &s
				mu.Unlock()
			case e := <-client.Errors:
				fmt.Fprintf(rl.Stdout(), "error: %s\n", e.Message)
			}
		}
	}()

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if len(line) == 0 {
				return
			}
			continue
		}
		if err != nil {
			return
		}
		if !client.IsConnected() {
			fmt.Fprintln(rl.Stdout(), "Connection lost")
			return
		}

		mu.Lock()
		current := state
		mu.Unlock()

		req, err := parseLine(strings.TrimSpace(line), current)
		if err != nil {
			fmt.Fprintf(rl.Stdout(), "%v\n", err)
			continue
		}

		switch {
		case req.quit:
			return
		case req.help:
			fmt.Fprintln(rl.Stdout(), helpText)
		case req.status:
			printState(rl.Stdout(), current)
		case req.command != nil:
			if err := client.SendCommand(*req.command); err != nil {
				fmt.Fprintf(rl.Stdout(), "send failed: %v\n", err)
			}
		case req.set != nil:
			if err := client.SetSource(*req.set); err != nil {
				fmt.Fprintf(rl.Stdout(), "send failed: %v\n", err)
			}
		}
	}
}

func discover(timeout time.Duration) (string, error) {
	fmt.Printf("Looking for players (%v)...\n", timeout)

	mgr := discovery.NewManager(discovery.Config{BrowseTimeout: timeout})
	defer mgr.Stop()

	servers, err := mgr.Lookup()
	if err != nil {
		return "", err
	}
	if len(servers) == 0 {
		return "", errors.New("no player found, use -server")
	}
	for _, s := range servers {
		fmt.Printf("  found %s at %s\n", s.Name, s.Addr())
	}
	return servers[0].Addr(), nil
}

// watch prints each player found by a background browse until interrupted
func watch() {
	mgr := discovery.NewManager(discovery.Config{BrowseTimeout: *wait})
	defer mgr.Stop()

	if err := mgr.Browse(); err != nil {
		fmt.Fprintf(os.Stderr, "Browse failed: %v\n", err)
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	seen := make(map[string]bool)
	fmt.Println("Watching for players, Ctrl+C to stop")
	for {
		select {
		case s := <-mgr.Servers():
			key := s.Name + "@" + s.Addr()
			if seen[key] {
				continue
			}
			seen[key] = true
			fmt.Printf("  %s at %s%s\n", s.Name, s.Addr(), s.Path)
		case <-sigChan:
			return
		}
	}
}

func historyFile() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return dir + string(os.PathSeparator) + "syncctl_history"
}
