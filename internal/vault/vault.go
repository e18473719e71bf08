// Package vault implements the note/task vault: plain-text markdown pages
// addressed by name, stored in the operator's Obsidian vault on OneDrive.
package vault

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/donnabot/donna/internal/graph"
)

// ErrNotFound is returned when a page does not exist in the vault.
var ErrNotFound = errors.New("page not found")

// Files is the slice of the Graph client the vault needs.
type Files interface {
	GetFileText(ctx context.Context, path string) (string, error)
	PutFileText(ctx context.Context, path, content string) error
}

// Vault reads and writes markdown pages under a fixed OneDrive root.
type Vault struct {
	files    Files
	root     string
	planNote string // weekly plan page name, e.g. "Tasks/WeeklyPlan"
}

// New creates a vault rooted at root. planNote names the weekly plan page.
func New(files Files, root, planNote string) *Vault {
	return &Vault{
		files:    files,
		root:     strings.Trim(root, "/"),
		planNote: planNote,
	}
}

// ReadPage returns the text of a page by name (without the .md extension).
func (v *Vault) ReadPage(ctx context.Context, name string) (string, error) {
	text, err := v.files.GetFileText(ctx, v.pagePath(name))
	if graph.IsNotFound(err) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return "", fmt.Errorf("read page %s: %w", name, err)
	}
	return text, nil
}

// CreatePage writes a new page, overwriting any existing page of that name.
func (v *Vault) CreatePage(ctx context.Context, name, content string) error {
	if err := v.files.PutFileText(ctx, v.pagePath(name), content); err != nil {
		return fmt.Errorf("create page %s: %w", name, err)
	}
	return nil
}

// AppendToPage appends content to a page, creating it when absent. Composed
// as read-then-write; the store has plain overwrite semantics.
func (v *Vault) AppendToPage(ctx context.Context, name, content string) error {
	existing, err := v.ReadPage(ctx, name)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}

	var text string
	switch {
	case existing == "":
		text = content + "\n"
	case strings.HasSuffix(existing, "\n"):
		text = existing + content + "\n"
	default:
		text = existing + "\n" + content + "\n"
	}

	if err := v.files.PutFileText(ctx, v.pagePath(name), text); err != nil {
		return fmt.Errorf("append to page %s: %w", name, err)
	}
	return nil
}

func (v *Vault) pagePath(name string) string {
	name = strings.Trim(name, "/")
	if !strings.HasSuffix(name, ".md") {
		name += ".md"
	}
	return v.root + "/" + name
}
