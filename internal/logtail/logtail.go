package logtail

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Read returns at most maxLines from the end of the file at path. A
// non-positive maxLines returns every line. A missing file yields no lines.
func Read(path string, maxLines int) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer func() { _ = file.Close() }()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if maxLines <= 0 {
		var lines []string
		for scanner.Scan() {
			lines = append(lines, scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read log: %w", err)
		}
		return lines, nil
	}

	ring := make([]string, maxLines)
	count := 0
	idx := 0
	for scanner.Scan() {
		ring[idx] = scanner.Text()
		idx = (idx + 1) % maxLines
		if count < maxLines {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}

	lines := make([]string, count)
	if count == maxLines {
		for i := 0; i < count; i++ {
			lines[i] = ring[(idx+i)%maxLines]
		}
	} else {
		copy(lines, ring[:count])
	}
	return lines, nil
}

// Filter keeps the lines at or above minLevel. Lines without a recognisable
// level are kept so multi-line messages stay intact.
func Filter(lines []string, minLevel string) []string {
	floor := levelRank(strings.ToUpper(strings.TrimSpace(minLevel)))
	if floor <= 0 {
		return lines
	}
	out := lines[:0:0]
	for _, line := range lines {
		_, level, _, ok := split(line)
		if !ok || levelRank(level) >= floor {
			out = append(out, line)
		}
	}
	return out
}

var (
	timeStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#808080"))
	componentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#87AFFF"))
	levelStyles    = map[string]lipgloss.Style{
		"TRC": lipgloss.NewStyle().Foreground(lipgloss.Color("#666666")),
		"DBG": lipgloss.NewStyle().Foreground(lipgloss.Color("#87CEEB")).Bold(true),
		"INF": lipgloss.NewStyle().Foreground(lipgloss.Color("#5FD75F")).Bold(true),
		"WRN": lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD700")).Bold(true),
		"ERR": lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true),
		"FTL": lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true),
	}
)

// ColorizeLine styles one console-format log line: timestamp, level and the
// component field. Other lines are returned unchanged.
func ColorizeLine(line string) string {
	ts, level, rest, ok := split(line)
	if !ok {
		return line
	}
	out := timeStyle.Render(ts) + " " + levelStyles[level].Render(level)
	if rest == "" {
		return out
	}
	fields := strings.Fields(rest)
	for i, f := range fields {
		if strings.HasPrefix(f, "component=") {
			fields[i] = componentStyle.Render(f)
		}
	}
	return out + " " + strings.Join(fields, " ")
}

// ColorizeLines applies ColorizeLine to each line.
func ColorizeLines(lines []string) []string {
	out := make([]string, len(lines))
	for i, line := range lines {
		out[i] = ColorizeLine(line)
	}
	return out
}

// split parses "<timestamp> <LVL> <rest>".
func split(line string) (ts, level, rest string, ok bool) {
	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 2 {
		return "", "", "", false
	}
	if _, known := levelStyles[parts[1]]; !known {
		return "", "", "", false
	}
	if len(parts) == 3 {
		rest = parts[2]
	}
	return parts[0], parts[1], rest, true
}

func levelRank(level string) int {
	switch level {
	case "TRC", "TRACE":
		return 1
	case "DBG", "DEBUG":
		return 2
	case "INF", "INFO":
		return 3
	case "WRN", "WARN":
		return 4
	case "ERR", "ERROR":
		return 5
	case "FTL", "FATAL":
		return 6
	default:
		return 0
	}
}
