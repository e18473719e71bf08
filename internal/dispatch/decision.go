// Package dispatch is the natural-language action dispatcher: it parses the
// classifier's semi-structured output into a typed action decision, executes
// the decision against the calendar, vault and ledger collaborators, and
// renders the result as user-facing text.
package dispatch

import "strings"

// Action identifies what the operator asked for.
type Action string

const (
	ActionViewCalendar   Action = "view_calendar"
	ActionCreateEvent    Action = "create_event"
	ActionDeleteEvent    Action = "delete_event"
	ActionDeleteMultiple Action = "delete_multiple"
	ActionStartTimer     Action = "start_timer"
	ActionStopTimer      Action = "stop_timer"
	ActionViewTimers     Action = "view_timers"
	ActionViewPriorities Action = "view_priorities"
	ActionCreatePage     Action = "create_page"
	ActionAddToPage      Action = "add_to_page"
	ActionCompleteTask   Action = "complete_task"
	ActionChat           Action = "chat"
	ActionUnknown        Action = "unknown"
)

// Decision is the parsed verdict for one turn. Exactly one Action is set;
// Reply is populated for chat decisions and as the fallback when parsing
// degraded.
type Decision struct {
	Action Action
	Params map[string]any
	Reply  string
}

// actions maps normalized tokens to the closed enumeration.
var actions = map[string]Action{
	"viewcalendar":   ActionViewCalendar,
	"createevent":    ActionCreateEvent,
	"deleteevent":    ActionDeleteEvent,
	"deletemultiple": ActionDeleteMultiple,
	"starttimer":     ActionStartTimer,
	"stoptimer":      ActionStopTimer,
	"viewtimers":     ActionViewTimers,
	"viewpriorities": ActionViewPriorities,
	"createpage":     ActionCreatePage,
	"addtopage":      ActionAddToPage,
	"completetask":   ActionCompleteTask,
	"chat":           ActionChat,
}

// actionFromToken resolves an action name case-insensitively, ignoring
// separators: "createevent", "CREATE_EVENT" and "create-event" all resolve
// to ActionCreateEvent.
func actionFromToken(token string) (Action, bool) {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(token)) {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	a, ok := actions[b.String()]
	return a, ok
}
