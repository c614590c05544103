// ABOUTME: Command line parsing for the group controller REPL
// ABOUTME: Turns typed commands into protocol requests and formats group state
package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/Resonate-Protocol/syncsource-go/pkg/protocol"
)

var errUsage = errors.New("usage")

// request is one parsed line
type request struct {
	command *protocol.GroupCommand
	set     *protocol.SourceSet
	status  bool
	help    bool
	quit    bool
}

const helpText = `Commands:
  play [offset]          start the group, at offset if given
  pause                  pause the group
  stop                   stop the group
  seek <offset>          move the group to offset (90, 1:30 or 1m30s)
  status                 show the group
  volume <source> <0-100>
  pitch <source> <factor>
  filter <source> on|off
  quit
Sources are given by number (from status) or by id prefix.`

func parseLine(line string, state *protocol.GroupState) (request, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return request{}, nil
	}

	cmd, args := strings.ToLower(fields[0]), fields[1:]
	switch cmd {
	case "play":
		if len(args) > 1 {
			return request{}, fmt.Errorf("%w: play [offset]", errUsage)
		}
		gc := &protocol.GroupCommand{Command: protocol.CommandPlay}
		if len(args) == 1 {
			offset, err := parseOffset(args[0])
			if err != nil {
				return request{}, err
			}
			ms := offset.Milliseconds()
			gc.OffsetMs = &ms
		}
		return request{command: gc}, nil

	case "pause", "stop":
		if len(args) != 0 {
			return request{}, fmt.Errorf("%w: %s", errUsage, cmd)
		}
		return request{command: &protocol.GroupCommand{Command: cmd}}, nil

	case "seek":
		if len(args) != 1 {
			return request{}, fmt.Errorf("%w: seek <offset>", errUsage)
		}
		offset, err := parseOffset(args[0])
		if err != nil {
			return request{}, err
		}
		ms := offset.Milliseconds()
		return request{command: &protocol.GroupCommand{Command: protocol.CommandSeek, OffsetMs: &ms}}, nil

	case "volume", "pitch":
		if len(args) != 2 {
			return request{}, fmt.Errorf("%w: %s <source> <value>", errUsage, cmd)
		}
		id, err := resolveSource(args[0], state)
		if err != nil {
			return request{}, err
		}
		v, err := strconv.ParseFloat(args[1], 32)
		if err != nil {
			return request{}, fmt.Errorf("invalid %s %q", cmd, args[1])
		}
		value := float32(v)
		set := &protocol.SourceSet{ID: id}
		if cmd == "volume" {
			if value < 0 || value > 100 {
				return request{}, fmt.Errorf("volume must be 0-100, got %v", value)
			}
			set.Volume = &value
		} else {
			if value <= 0 {
				return request{}, fmt.Errorf("pitch must be positive, got %v", value)
			}
			set.Pitch = &value
		}
		return request{set: set}, nil

	case "filter":
		if len(args) != 2 {
			return request{}, fmt.Errorf("%w: filter <source> on|off", errUsage)
		}
		id, err := resolveSource(args[0], state)
		if err != nil {
			return request{}, err
		}
		var on bool
		switch strings.ToLower(args[1]) {
		case "on":
			on = true
		case "off":
		default:
			return request{}, fmt.Errorf("%w: filter <source> on|off", errUsage)
		}
		return request{set: &protocol.SourceSet{ID: id, LowPass: &on}}, nil

	case "status":
		return request{status: true}, nil
	case "help", "?":
		return request{help: true}, nil
	case "quit", "exit":
		return request{quit: true}, nil
	}

	return request{}, fmt.Errorf("unknown command %q (try help)", cmd)
}

// parseOffset accepts seconds ("90", "1.5"), m:ss ("1:30") or a Go duration ("1m30s")
func parseOffset(s string) (time.Duration, error) {
	var offset time.Duration
	if minText, secText, ok := strings.Cut(s, ":"); ok {
		minutes, err1 := strconv.Atoi(minText)
		seconds, err2 := strconv.ParseFloat(secText, 64)
		if err1 != nil || err2 != nil || seconds >= 60 {
			return 0, fmt.Errorf("invalid offset %q", s)
		}
		offset = time.Duration(minutes)*time.Minute + time.Duration(seconds*float64(time.Second))
	} else if seconds, err := strconv.ParseFloat(s, 64); err == nil {
		offset = time.Duration(seconds * float64(time.Second))
	} else if d, err := time.ParseDuration(s); err == nil {
		offset = d
	} else {
		return 0, fmt.Errorf("invalid offset %q", s)
	}

	if offset < 0 {
		return 0, fmt.Errorf("offset must not be negative, got %v", offset)
	}
	return offset, nil
}

// resolveSource maps a 1-based index or an id prefix to a source id
func resolveSource(ref string, state *protocol.GroupState) (string, error) {
	if state == nil || len(state.Sources) == 0 {
		return "", errors.New("no group state yet")
	}

	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(state.Sources) {
			return "", fmt.Errorf("source %d out of range 1-%d", n, len(state.Sources))
		}
		return state.Sources[n-1].ID, nil
	}

	var match string
	for _, src := range state.Sources {
		if strings.HasPrefix(src.ID, ref) {
			if match != "" {
				return "", fmt.Errorf("source %q is ambiguous", ref)
			}
			match = src.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("no source matches %q", ref)
	}
	return match, nil
}

func printState(w io.Writer, state *protocol.GroupState) {
	if state == nil {
		fmt.Fprintln(w, "No group state yet")
		return
	}
	fmt.Fprintf(w, "Group %s: %s\n", state.Group, state.Status)
	for i, src := range state.Sources {
		lp := ""
		if src.Filtered {
			lp = " low-pass"
		}
		offset := time.Duration(src.OffsetMs) * time.Millisecond
		fmt.Fprintf(w, "  %d. %-20s %-8s %9v  vol %3.0f  pitch %.2f%s  [%s]\n",
			i+1, src.Name, src.Status, offset, src.Volume, src.Pitch, lp, shortID(src.ID))
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
