package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/donnabot/donna/internal/graph"
	"github.com/donnabot/donna/internal/ledger"
	"github.com/donnabot/donna/internal/logging"
)

// CalendarService is the calendar collaborator boundary.
type CalendarService interface {
	ListCalendars(ctx context.Context) ([]graph.Calendar, error)
	ListEvents(ctx context.Context, calendarID, calendarName string, start, end time.Time) ([]graph.Event, error)
	CreateEvent(ctx context.Context, params graph.CreateEventParams) (*graph.Event, error)
	DeleteEvent(ctx context.Context, eventID string) error
}

// VaultService is the note/task vault boundary.
type VaultService interface {
	ReadPage(ctx context.Context, name string) (string, error)
	CreatePage(ctx context.Context, name, content string) error
	AppendToPage(ctx context.Context, name, content string) error
	Priorities(ctx context.Context) (string, error)
	CompleteTask(ctx context.Context, n int) (string, error)
}

// LedgerService is the time-tracking boundary.
type LedgerService interface {
	Start(taskRef string, billable bool, notes string) (int64, error)
	StopLatest() (*ledger.Timer, error)
	Active() ([]ledger.Timer, error)
}

// Executor maps each action to its handler. Every collaborator failure is
// converted to a user-visible message naming the attempted action; nothing
// escapes Execute as an error.
type Executor struct {
	calendar CalendarService
	vault    VaultService
	ledger   LedgerService
	home     *time.Location
	now      func() time.Time

	handlers map[Action]func(ctx context.Context, d Decision) (string, error)
}

// NewExecutor wires the dispatch table. home is the operator's fixed home
// time zone; all relative dates and event time renderings use it.
func NewExecutor(cal CalendarService, vlt VaultService, led LedgerService, home *time.Location) *Executor {
	e := &Executor{
		calendar: cal,
		vault:    vlt,
		ledger:   led,
		home:     home,
		now:      time.Now,
	}
	e.handlers = map[Action]func(ctx context.Context, d Decision) (string, error){
		ActionViewCalendar:   e.viewCalendar,
		ActionCreateEvent:    e.createEvent,
		ActionDeleteEvent:    e.deleteEvent,
		ActionDeleteMultiple: e.deleteMultiple,
		ActionStartTimer:     e.startTimer,
		ActionStopTimer:      e.stopTimer,
		ActionViewTimers:     e.viewTimers,
		ActionViewPriorities: e.viewPriorities,
		ActionCreatePage:     e.createPage,
		ActionAddToPage:      e.addToPage,
		ActionCompleteTask:   e.completeTask,
	}
	return e
}

// Execute runs the decision and always returns text for the operator.
func (e *Executor) Execute(ctx context.Context, d Decision) string {
	switch d.Action {
	case ActionChat:
		if d.Reply != "" {
			return d.Reply
		}
		return "I'm not sure how to help with that. Could you try rephrasing?"
	case ActionUnknown:
		if d.Reply != "" {
			return d.Reply
		}
		return "I didn't quite catch that. Could you try rephrasing?"
	}

	handler, ok := e.handlers[d.Action]
	if !ok {
		return "I didn't quite catch that. Could you try rephrasing?"
	}

	text, err := handler(ctx, d)
	if err != nil {
		logging.Warn("dispatch", "%s failed: %v", d.Action, err)
		return fmt.Sprintf("Sorry, %s failed: %v", describeAction(d.Action), err)
	}
	return text
}

func describeAction(a Action) string {
	return strings.ReplaceAll(string(a), "_", " ")
}

// --- timer handlers ---

func (e *Executor) startTimer(ctx context.Context, d Decision) (string, error) {
	task := stringParam(d.Params, "task")
	if task == "" {
		task = "Untitled task"
	}
	billable := true
	if v, ok := d.Params["billable"].(bool); ok {
		billable = v
	}

	id, err := e.ledger.Start(task, billable, "")
	if err != nil {
		return "", err
	}

	active, err := e.ledger.Active()
	if err != nil {
		return fmt.Sprintf("Started timer #%d for: %s", id, task), nil
	}
	return fmt.Sprintf("Started timer #%d for: %s\nYou now have %d active %s",
		id, task, len(active), plural(len(active), "timer")), nil
}

func (e *Executor) stopTimer(ctx context.Context, d Decision) (string, error) {
	stopped, err := e.ledger.StopLatest()
	if errors.Is(err, ledger.ErrNoActiveTimer) {
		return "No active timer to stop.", nil
	}
	if errors.Is(err, ledger.ErrInconsistent) {
		return "", fmt.Errorf("the time ledger looks inconsistent (%v); not guessing which timer to stop", err)
	}
	if err != nil {
		return "", err
	}

	remaining, _ := e.ledger.Active()
	return fmt.Sprintf("Stopped timer #%d for: %s\n%d %s remaining",
		stopped.ID, stopped.TaskRef, len(remaining), plural(len(remaining), "timer")), nil
}

func (e *Executor) viewTimers(ctx context.Context, d Decision) (string, error) {
	timers, err := e.ledger.Active()
	if err != nil {
		return "", err
	}
	if len(timers) == 0 {
		return "No active timers.", nil
	}

	var b strings.Builder
	b.WriteString("Active timers:\n")
	now := e.now()
	for _, tm := range timers {
		dur := now.Sub(tm.Start)
		mark := "(non-billable)"
		if tm.Billable {
			mark = "(billable)"
		}
		fmt.Fprintf(&b, "#%d %s — %02d:%02d %s\n",
			tm.ID, tm.TaskRef, int(dur.Hours()), int(dur.Minutes())%60, mark)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// --- vault handlers ---

func (e *Executor) viewPriorities(ctx context.Context, d Decision) (string, error) {
	return e.vault.Priorities(ctx)
}

func (e *Executor) createPage(ctx context.Context, d Decision) (string, error) {
	page := stringParam(d.Params, "page")
	if page == "" {
		return "", fmt.Errorf("no page name given")
	}
	if err := e.vault.CreatePage(ctx, page, stringParam(d.Params, "content")); err != nil {
		return "", err
	}
	return fmt.Sprintf("Created page %s.md", page), nil
}

func (e *Executor) addToPage(ctx context.Context, d Decision) (string, error) {
	page := stringParam(d.Params, "page")
	content := stringParam(d.Params, "content")
	if page == "" || content == "" {
		return "", fmt.Errorf("need both a page name and content")
	}
	if err := e.vault.AppendToPage(ctx, page, content); err != nil {
		return "", err
	}
	return fmt.Sprintf("Added to %s.md", page), nil
}

func (e *Executor) completeTask(ctx context.Context, d Decision) (string, error) {
	n, ok := intParam(d.Params, "number")
	if !ok {
		return "", fmt.Errorf("no task number given")
	}
	desc, err := e.vault.CompleteTask(ctx, n)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Task #%d marked as complete: %s", n, desc), nil
}

// --- param helpers ---

func stringParam(params map[string]any, key string) string {
	if params == nil {
		return ""
	}
	if s, ok := params[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

// intParam accepts JSON numbers as well as numeric strings.
func intParam(params map[string]any, key string) (int, bool) {
	if params == nil {
		return 0, false
	}
	switch v := params[key].(type) {
	case float64:
		return int(v), true
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n, true
		}
	}
	return 0, false
}

func stringSliceParam(params map[string]any, key string) []string {
	if params == nil {
		return nil
	}
	var out []string
	switch v := params[key].(type) {
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	case string:
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
