package dispatch

import (
	"context"
	"strings"
	"time"

	"github.com/donnabot/donna/internal/conv"
	"github.com/donnabot/donna/internal/journal"
	"github.com/donnabot/donna/internal/logging"
)

// historyDepth is how many prior turns the classifier sees.
const historyDepth = 3

// Classifier is the intent-classification boundary: one model call that maps
// the message plus recent history to a raw decision payload.
type Classifier interface {
	Classify(ctx context.Context, text string, recent []conv.Turn, now time.Time) (string, error)
}

// MemoryService is the conversation-memory boundary.
type MemoryService interface {
	Record(conversationID, userName string, turn conv.Turn) error
	Recent(conversationID string, n int) ([]conv.Turn, error)
	Search(conversationID, term string, limit int) ([]conv.SearchResult, error)
	Summary(conversationID string, days int) (string, error)
	ExportMarkdown(conversationID string, days int) (string, error)
}

// Response is what goes back to the transport: text, and for export-style
// commands an optional document payload to attach.
type Response struct {
	Text string
	File *FilePayload
}

// FilePayload is a document to send alongside the text.
type FilePayload struct {
	Name    string
	Content string
}

// Dispatcher runs one conversation turn to completion. Turns for the same
// conversation are handled sequentially by the transport; concurrent turns
// for different conversations share nothing mutable but the stores.
type Dispatcher struct {
	memory     MemoryService
	classifier Classifier
	executor   *Executor
	journal    *journal.Journal
	ledger     LedgerService
	startedAt  time.Time
	now        func() time.Time
}

// New wires a dispatcher. journal may be nil to disable action logging.
func New(memory MemoryService, classifier Classifier, executor *Executor, jnl *journal.Journal) *Dispatcher {
	return &Dispatcher{
		memory:     memory,
		classifier: classifier,
		executor:   executor,
		journal:    jnl,
		ledger:     executor.ledger,
		startedAt:  time.Now(),
		now:        time.Now,
	}
}

// HandleMessage processes one operator message and always produces a
// response; no error from a collaborator or from the model escapes to the
// transport layer.
func (d *Dispatcher) HandleMessage(ctx context.Context, conversationID, userName, text string) Response {
	text = strings.TrimSpace(text)
	if text == "" {
		return Response{Text: "Say something and I'll try to help."}
	}

	if strings.HasPrefix(text, "/") {
		return d.handleCommand(ctx, conversationID, text)
	}

	recent, err := d.memory.Recent(conversationID, historyDepth)
	if err != nil {
		logging.Warn("turn", "recent history unavailable: %v", err)
		// Degrade to a history-less classification rather than failing the turn.
		recent = nil
	}

	raw, err := d.classifier.Classify(ctx, text, recent, d.now())
	if err != nil {
		// Classifier down: apologize and record nothing as a completed turn.
		logging.Warn("turn", "classifier unavailable: %v", err)
		if d.journal != nil {
			if jerr := d.journal.LogError(conversationID, err.Error()); jerr != nil {
				logging.Debug("turn", "journal write failed: %v", jerr)
			}
		}
		return Response{Text: "Sorry, I'm having trouble thinking right now. Please try again in a moment."}
	}

	decision := Parse(raw)
	logging.Debug("turn", "decision %s params=%v", decision.Action, decision.Params)

	reply := d.executor.Execute(ctx, decision)

	if d.journal != nil {
		if err := d.journal.LogAction(conversationID, string(decision.Action), decision.Params, logging.Truncate(reply, 120)); err != nil {
			logging.Debug("turn", "journal write failed: %v", err)
		}
	}

	if err := d.memory.Record(conversationID, userName, conv.Turn{
		UserText:  text,
		AgentText: reply,
		CreatedAt: d.now(),
	}); err != nil {
		logging.Warn("turn", "failed to record turn: %v", err)
	}

	return Response{Text: reply}
}
