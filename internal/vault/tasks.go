package vault

import (
	"context"
	"fmt"
	"strings"
)

// Task is one markdown checkbox line from a note.
type Task struct {
	Description string
	Completed   bool
	Line        int // 1-based line number within the note
	Tags        []string
}

// ParseTasks extracts checkbox tasks ("- [ ]" / "- [x]") from markdown.
func ParseTasks(md string) []Task {
	var tasks []Task
	for idx, raw := range strings.Split(md, "\n") {
		line := strings.TrimSpace(raw)
		var completed bool
		switch {
		case strings.HasPrefix(line, "- [ ]"):
			completed = false
		case strings.HasPrefix(line, "- [x]"), strings.HasPrefix(line, "- [X]"):
			completed = true
		default:
			continue
		}

		body := strings.TrimSpace(line[5:])
		var tags []string
		for _, word := range strings.Fields(body) {
			if strings.HasPrefix(word, "#") && len(word) > 1 {
				tags = append(tags, word)
			}
		}
		tasks = append(tasks, Task{
			Description: body,
			Completed:   completed,
			Line:        idx + 1,
			Tags:        tags,
		})
	}
	return tasks
}

// Priorities renders the open tasks of the weekly plan as a numbered list.
func (v *Vault) Priorities(ctx context.Context) (string, error) {
	md, err := v.ReadPage(ctx, v.planNote)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	n := 0
	for _, task := range ParseTasks(md) {
		if task.Completed {
			continue
		}
		n++
		fmt.Fprintf(&b, "%d. %s\n", n, task.Description)
	}
	if n == 0 {
		return "No open tasks in the weekly plan.", nil
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// CompleteTask marks the nth open task (1-indexed, numbering as shown by
// Priorities) as done and writes the plan back. Returns the task description.
func (v *Vault) CompleteTask(ctx context.Context, n int) (string, error) {
	if n < 1 {
		return "", fmt.Errorf("task number must be positive, got %d", n)
	}

	md, err := v.ReadPage(ctx, v.planNote)
	if err != nil {
		return "", err
	}

	open := 0
	var target *Task
	for _, task := range ParseTasks(md) {
		if task.Completed {
			continue
		}
		open++
		if open == n {
			t := task
			target = &t
			break
		}
	}
	if target == nil {
		return "", fmt.Errorf("no open task #%d (found %d)", n, open)
	}

	lines := strings.Split(md, "\n")
	raw := lines[target.Line-1]
	lines[target.Line-1] = strings.Replace(raw, "- [ ]", "- [x]", 1)

	if err := v.files.PutFileText(ctx, v.pagePath(v.planNote), strings.Join(lines, "\n")); err != nil {
		return "", fmt.Errorf("update plan: %w", err)
	}
	return target.Description, nil
}
