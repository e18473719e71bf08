// donna-mcp exposes donna's collaborators as MCP tools over stdio, so other
// agents (or a local Claude session) can read the agenda, drive timers, and
// touch vault pages without going through the chat transport.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/donnabot/donna/internal/config"
	"github.com/donnabot/donna/internal/graph"
	"github.com/donnabot/donna/internal/ledger"
	"github.com/donnabot/donna/internal/vault"
)

type deps struct {
	ledger *ledger.Ledger
	graph  *graph.Client
	vault  *vault.Vault
	home   *time.Location
}

func main() {
	// Log to stderr so stdout is clean for JSON-RPC
	log.SetOutput(os.Stderr)
	log.SetPrefix("[donna-mcp] ")

	if err := godotenv.Load(); err == nil {
		log.Println("Loaded .env file")
	}

	cfg, err := config.Load("donna.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	home, err := cfg.HomeLocation()
	if err != nil {
		log.Fatalf("Bad timezone config: %v", err)
	}

	timeLedger, err := ledger.Open(cfg.StatePath)
	if err != nil {
		log.Fatalf("Failed to open time ledger: %v", err)
	}
	defer timeLedger.Close()

	graphClient, err := graph.NewClient(graph.Config{
		ClientID:     cfg.MSClientID,
		TenantID:     cfg.MSTenantID,
		ClientSecret: cfg.MSClientSecret,
		User:         cfg.MSUser,
	})
	if err != nil {
		log.Fatalf("Failed to create Graph client: %v", err)
	}

	d := &deps{
		ledger: timeLedger,
		graph:  graphClient,
		vault:  vault.New(graphClient, cfg.VaultRoot, cfg.WeeklyPlan),
		home:   home,
	}

	s := server.NewMCPServer(
		"donna-mcp",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	s.AddTool(startTimerTool(), d.handleStartTimer)
	s.AddTool(stopTimerTool(), d.handleStopTimer)
	s.AddTool(activeTimersTool(), d.handleActiveTimers)
	s.AddTool(todayAgendaTool(), d.handleTodayAgenda)
	s.AddTool(readPageTool(), d.handleReadPage)
	s.AddTool(appendPageTool(), d.handleAppendPage)

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}

func startTimerTool() mcp.Tool {
	return mcp.NewTool("start_timer",
		mcp.WithDescription("Start a time-tracking timer for a task. Creates the task if it doesn't exist."),
		mcp.WithString("task",
			mcp.Required(),
			mcp.Description("Task description"),
		),
		mcp.WithBoolean("billable",
			mcp.Description("Whether the time is billable. Default: true"),
		),
	)
}

func (d *deps) handleStartTimer(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := req.Params.Arguments.(map[string]any)
	task, _ := args["task"].(string)
	if task == "" {
		return mcp.NewToolResultError("task is required"), nil
	}
	billable := true
	if b, ok := args["billable"].(bool); ok {
		billable = b
	}

	id, err := d.ledger.Start(task, billable, "")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to start timer: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Started timer #%d for: %s", id, task)), nil
}

func stopTimerTool() mcp.Tool {
	return mcp.NewTool("stop_timer",
		mcp.WithDescription("Stop the most recently started timer."),
	)
}

func (d *deps) handleStopTimer(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stopped, err := d.ledger.StopLatest()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to stop timer: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Stopped timer #%d for: %s", stopped.ID, stopped.TaskRef)), nil
}

func activeTimersTool() mcp.Tool {
	return mcp.NewTool("active_timers",
		mcp.WithDescription("List all currently running timers with elapsed time."),
	)
}

func (d *deps) handleActiveTimers(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	timers, err := d.ledger.Active()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list timers: %v", err)), nil
	}
	if len(timers) == 0 {
		return mcp.NewToolResultText("No active timers."), nil
	}

	var b strings.Builder
	for _, t := range timers {
		fmt.Fprintf(&b, "#%d %s (running %s)\n", t.ID, t.TaskRef, time.Since(t.Start).Round(time.Minute))
	}
	return mcp.NewToolResultText(strings.TrimRight(b.String(), "\n")), nil
}

func todayAgendaTool() mcp.Tool {
	return mcp.NewTool("today_agenda",
		mcp.WithDescription("List today's calendar events across all calendars, sorted by start time."),
	)
}

func (d *deps) handleTodayAgenda(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	now := time.Now().In(d.home)
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, d.home)
	end := start.Add(24*time.Hour - time.Millisecond)

	calendars, err := d.graph.ListCalendars(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list calendars: %v", err)), nil
	}

	var events []graph.Event
	for _, cal := range calendars {
		evs, err := d.graph.ListEvents(ctx, cal.ID, cal.Name, start, end)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to list events for %s: %v", cal.Name, err)), nil
		}
		events = append(events, evs...)
	}
	if len(events) == 0 {
		return mcp.NewToolResultText("Nothing on the calendar today."), nil
	}

	sort.SliceStable(events, func(i, j int) bool { return events[i].Start.Before(events[j].Start) })

	var b strings.Builder
	for _, ev := range events {
		when := "All day"
		if !ev.IsAllDay {
			when = ev.Start.In(d.home).Format("3:04 PM")
		}
		fmt.Fprintf(&b, "%s - %s [%s]\n", when, ev.Subject, ev.Calendar)
	}
	return mcp.NewToolResultText(strings.TrimRight(b.String(), "\n")), nil
}

func readPageTool() mcp.Tool {
	return mcp.NewTool("read_page",
		mcp.WithDescription("Read a markdown page from the vault."),
		mcp.WithString("page",
			mcp.Required(),
			mcp.Description("Page name relative to the vault root, without the .md extension"),
		),
	)
}

func (d *deps) handleReadPage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := req.Params.Arguments.(map[string]any)
	page, _ := args["page"].(string)
	if page == "" {
		return mcp.NewToolResultError("page is required"), nil
	}

	content, err := d.vault.ReadPage(ctx, page)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read page: %v", err)), nil
	}
	return mcp.NewToolResultText(content), nil
}

func appendPageTool() mcp.Tool {
	return mcp.NewTool("append_page",
		mcp.WithDescription("Append markdown content to a vault page, creating it if missing."),
		mcp.WithString("page",
			mcp.Required(),
			mcp.Description("Page name relative to the vault root, without the .md extension"),
		),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("Markdown content to append"),
		),
	)
}

func (d *deps) handleAppendPage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := req.Params.Arguments.(map[string]any)
	page, _ := args["page"].(string)
	content, _ := args["content"].(string)
	if page == "" || content == "" {
		return mcp.NewToolResultError("page and content are required"), nil
	}

	if err := d.vault.AppendToPage(ctx, page, content); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to append: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Appended to %s.md", page)), nil
}
