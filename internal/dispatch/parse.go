package dispatch

import (
	"encoding/json"
	"strings"
)

// Labels the classifier is asked to emit. Matching is line-oriented and
// case-insensitive.
const (
	labelAction = "action:"
	labelParams = "params:"
	labelReply  = "reply:"
)

// Parse extracts a typed decision from the classifier's raw output. It never
// fails: a pure JSON payload is decoded strictly first; otherwise labeled
// lines are scanned permissively. Output with no recognizable action label
// is treated as a direct chat reply, and a recognizable action whose
// parameter block won't decode degrades to ActionUnknown carrying the raw
// text. Malformed model output must always resolve to some user-visible
// response.
func Parse(raw string) Decision {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Decision{Action: ActionChat, Reply: raw}
	}

	if d, ok := parseStrict(trimmed); ok {
		return d
	}
	return parseLabeled(raw)
}

// strictPayload is the preferred fully-structured response shape.
type strictPayload struct {
	Action string         `json:"action"`
	Params map[string]any `json:"params"`
	Reply  string         `json:"reply"`
}

// parseStrict accepts output that is a single JSON object with an "action"
// key. Models often wrap JSON in code fences; those are stripped first.
func parseStrict(text string) (Decision, bool) {
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
		text = strings.TrimSpace(text)
	}
	if !strings.HasPrefix(text, "{") {
		return Decision{}, false
	}

	var payload strictPayload
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return Decision{}, false
	}
	action, ok := actionFromToken(payload.Action)
	if !ok {
		return Decision{}, false
	}
	return Decision{Action: action, Params: payload.Params, Reply: payload.Reply}, true
}

// parseLabeled scans for ACTION/PARAMS/REPLY labeled lines.
func parseLabeled(raw string) Decision {
	lines := strings.Split(raw, "\n")

	var action Action
	found := false
	var replyLines []string
	inReply := false
	paramsText := ""

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		lower := strings.ToLower(trimmed)

		switch {
		case strings.HasPrefix(lower, labelAction):
			inReply = false
			if found {
				continue // first action label wins
			}
			token := strings.TrimSpace(trimmed[len(labelAction):])
			if a, ok := actionFromToken(token); ok {
				action = a
				found = true
			} else {
				// A labeled but unrecognized action is malformed output.
				return Decision{Action: ActionUnknown, Reply: raw}
			}
		case strings.HasPrefix(lower, labelParams):
			inReply = false
			paramsText = strings.TrimSpace(trimmed[len(labelParams):])
		case strings.HasPrefix(lower, labelReply):
			inReply = true
			if rest := strings.TrimSpace(trimmed[len(labelReply):]); rest != "" {
				replyLines = append(replyLines, rest)
			}
		case inReply:
			replyLines = append(replyLines, line)
		case paramsText != "" && !strings.Contains(paramsText, "}"):
			// Parameter object spilled onto following lines.
			paramsText += "\n" + line
		}
	}

	if !found {
		// No action label at all: the whole output is a direct reply.
		return Decision{Action: ActionChat, Reply: raw}
	}

	d := Decision{Action: action, Reply: strings.TrimSpace(strings.Join(replyLines, "\n"))}

	if paramsText != "" {
		params, ok := parseParams(paramsText)
		if !ok {
			return Decision{Action: ActionUnknown, Reply: raw}
		}
		d.Params = params
	}
	return d
}

// parseParams decodes the parameter block as a small JSON object.
func parseParams(text string) (map[string]any, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, false
	}
	var params map[string]any
	if err := json.Unmarshal([]byte(text[start:end+1]), &params); err != nil {
		return nil, false
	}
	return params, true
}
