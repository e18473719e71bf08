package dispatch

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/donnabot/donna/internal/ledger"
	"github.com/donnabot/donna/internal/logging"
)

// handleCommand serves the slash commands that bypass the classifier.
func (d *Dispatcher) handleCommand(ctx context.Context, conversationID, text string) Response {
	fields := strings.Fields(text)
	cmd := strings.ToLower(fields[0])
	args := fields[1:]

	if d.journal != nil {
		if err := d.journal.LogCommand(conversationID, cmd); err != nil {
			logging.Debug("command", "journal write failed: %v", err)
		}
	}

	switch cmd {
	case "/help", "/start":
		return Response{Text: helpText}
	case "/status":
		return Response{Text: d.statusText()}
	case "/search":
		if len(args) == 0 {
			return Response{Text: "Usage: /search <term>"}
		}
		return Response{Text: d.searchText(conversationID, strings.Join(args, " "))}
	case "/export":
		days := 7
		if len(args) > 0 {
			if n, err := strconv.Atoi(args[0]); err == nil && n > 0 {
				days = n
			}
		}
		return d.exportResponse(conversationID, days)
	case "/summary":
		days := 7
		if len(args) > 0 {
			if n, err := strconv.Atoi(args[0]); err == nil && n > 0 {
				days = n
			}
		}
		sum, err := d.memory.Summary(conversationID, days)
		if err != nil {
			return Response{Text: fmt.Sprintf("Couldn't summarize: %v", err)}
		}
		return Response{Text: sum}
	default:
		return Response{Text: fmt.Sprintf("Unknown command %s. Try /help.", cmd)}
	}
}

const helpText = `Hi! Talk to me in plain language, or use:
/status — process and timer status
/search <term> — search our conversation history
/summary [days] — conversation summary
/export [days] — export conversations as markdown
/help — this message`

func (d *Dispatcher) statusText() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Up %s\n", time.Since(d.startedAt).Round(time.Second))

	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if cpu, err := proc.CPUPercent(); err == nil {
			fmt.Fprintf(&b, "CPU: %.1f%%\n", cpu)
		}
		if mem, err := proc.MemoryInfo(); err == nil {
			fmt.Fprintf(&b, "Memory: %.1f MB\n", float64(mem.RSS)/(1024*1024))
		}
	}

	if active, err := d.ledger.Active(); err == nil {
		fmt.Fprintf(&b, "Active timers: %d\n", len(active))
	}
	if lg, ok := d.ledger.(*ledger.Ledger); ok {
		if hours, err := lg.BillableToday(); err == nil {
			fmt.Fprintf(&b, "Billable today: %.1f h\n", hours)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func (d *Dispatcher) searchText(conversationID, term string) string {
	results, err := d.memory.Search(conversationID, term, 10)
	if err != nil {
		return fmt.Sprintf("Search failed: %v", err)
	}
	if len(results) == 0 {
		return fmt.Sprintf("Nothing in our history matches %q.", term)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d matches for %q:\n", len(results), term)
	for _, r := range results {
		fmt.Fprintf(&b, "%s — %s / %s\n",
			r.Turn.CreatedAt.Format("Jan 2 15:04"),
			logging.Truncate(r.Turn.UserText, 60),
			logging.Truncate(r.Turn.AgentText, 60))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (d *Dispatcher) exportResponse(conversationID string, days int) Response {
	md, err := d.memory.ExportMarkdown(conversationID, days)
	if err != nil {
		return Response{Text: fmt.Sprintf("Export failed: %v", err)}
	}
	name := fmt.Sprintf("conversations-%s.md", d.now().Format("2006-01-02"))
	return Response{
		Text: fmt.Sprintf("Here's the last %d days of conversation.", days),
		File: &FilePayload{Name: name, Content: md},
	}
}
