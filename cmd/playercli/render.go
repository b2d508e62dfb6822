package main

import (
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/osa030/podbox/internal/app/player/state"
	"github.com/osa030/podbox/internal/domain/progress"
)

const (
	ansiReset  = "\x1b[0m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
	ansiGray   = "\x1b[90m"
)

func shouldColorize(f *os.File) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// formatClock renders seconds as m:ss, or h:mm:ss past one hour.
func formatClock(seconds float64) string {
	if math.IsNaN(seconds) || seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

func phaseLabel(phase string) string {
	switch phase {
	case "playing":
		return "▶  Playing"
	case "paused":
		return "⏸  Paused"
	case "loading":
		return "⏳ Loading"
	case "completed":
		return "✔  Completed"
	case "idle":
		return "⏹  Idle"
	default:
		return "❓ Unknown"
	}
}

func phaseColor(phase string) string {
	switch phase {
	case "playing":
		return ansiGreen
	case "paused", "loading":
		return ansiYellow
	case "completed":
		return ansiBlue
	default:
		return ansiGray
	}
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

// renderStatus renders a session snapshot as a few labelled lines.
func renderStatus(s state.Snapshot, colorize bool) string {
	var b strings.Builder

	status := phaseLabel(s.Phase)
	if colorize {
		status = phaseColor(s.Phase) + status + ansiReset
	}
	fmt.Fprintf(&b, "%-10s %s\n", "State:", status)

	if s.CurrentEpisode != nil {
		ep := s.CurrentEpisode
		fmt.Fprintf(&b, "%-10s %s\n", "Episode:", ep.Title)
		fmt.Fprintf(&b, "%-10s %s (S%d E%d)\n", "Show:", ep.ShowTitle, ep.Season, ep.Episode)
		fmt.Fprintf(&b, "%-10s %s / %s\n", "Position:", formatClock(s.CurrentTime), formatClock(s.Duration))
	} else {
		fmt.Fprintf(&b, "%-10s %s\n", "Episode:", "-")
	}
	fmt.Fprintf(&b, "%-10s %d%%\n", "Volume:", s.Volume)
	fmt.Fprintf(&b, "%-10s repeat=%s shuffle=%s", "Modes:", onOff(s.IsRepeatActive), onOff(s.IsShuffleActive))
	return b.String()
}

// lastListened renders an RFC 3339 timestamp relative to now.
func lastListened(r progress.Record, now time.Time) string {
	at := r.LastListenedAt()
	if at.IsZero() {
		return "-"
	}
	return humanize.RelTime(at, now, "ago", "from now")
}

func progressCell(r progress.Record) string {
	if r.Completed {
		return "done"
	}
	return fmt.Sprintf("%.0f%%", r.Percent())
}
