package dispatch

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/donnabot/donna/internal/conv"
	"github.com/donnabot/donna/internal/journal"
)

type fakeMemory struct {
	turns   map[string][]conv.Turn
	recErr  error
	results []conv.SearchResult
}

func newFakeMemory() *fakeMemory {
	return &fakeMemory{turns: map[string][]conv.Turn{}}
}

func (f *fakeMemory) Record(conversationID, userName string, turn conv.Turn) error {
	if f.recErr != nil {
		return f.recErr
	}
	f.turns[conversationID] = append(f.turns[conversationID], turn)
	return nil
}

func (f *fakeMemory) Recent(conversationID string, n int) ([]conv.Turn, error) {
	turns := f.turns[conversationID]
	if len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	return turns, nil
}

func (f *fakeMemory) Search(conversationID, term string, limit int) ([]conv.SearchResult, error) {
	return f.results, nil
}

func (f *fakeMemory) Summary(conversationID string, days int) (string, error) {
	return fmt.Sprintf("summary over %d days", days), nil
}

func (f *fakeMemory) ExportMarkdown(conversationID string, days int) (string, error) {
	return "# Conversations\n", nil
}

type fakeClassifier struct {
	raw      string
	err      error
	lastText string
	lastHist []conv.Turn
	calls    int
}

func (f *fakeClassifier) Classify(_ context.Context, text string, recent []conv.Turn, _ time.Time) (string, error) {
	f.calls++
	f.lastText = text
	f.lastHist = recent
	return f.raw, f.err
}

func newTestDispatcher(mem *fakeMemory, cls *fakeClassifier) *Dispatcher {
	e := newTestExecutor(nil, nil, &fakeLedger{})
	d := New(mem, cls, e, nil)
	d.now = func() time.Time { return testNow }
	return d
}

func TestHandleMessageFullTurn(t *testing.T) {
	mem := newFakeMemory()
	cls := &fakeClassifier{raw: `{"action": "chat", "reply": "hello there"}`}
	d := newTestDispatcher(mem, cls)

	resp := d.HandleMessage(context.Background(), "chan1", "sam", "hi donna")
	if resp.Text != "hello there" {
		t.Fatalf("unexpected reply: %q", resp.Text)
	}

	turns := mem.turns["chan1"]
	if len(turns) != 1 {
		t.Fatalf("expected one recorded turn, got %d", len(turns))
	}
	if turns[0].UserText != "hi donna" || turns[0].AgentText != "hello there" {
		t.Errorf("recorded turn wrong: %+v", turns[0])
	}
}

func TestHandleMessagePassesHistory(t *testing.T) {
	mem := newFakeMemory()
	for i := 1; i <= 5; i++ {
		mem.turns["chan1"] = append(mem.turns["chan1"], conv.Turn{
			UserText: fmt.Sprintf("message %d", i),
		})
	}
	cls := &fakeClassifier{raw: `{"action": "chat", "reply": "ok"}`}
	d := newTestDispatcher(mem, cls)

	d.HandleMessage(context.Background(), "chan1", "sam", "next")
	if len(cls.lastHist) != historyDepth {
		t.Fatalf("expected %d history turns, got %d", historyDepth, len(cls.lastHist))
	}
	if cls.lastHist[0].UserText != "message 3" {
		t.Errorf("expected oldest of last three, got %q", cls.lastHist[0].UserText)
	}
	if cls.lastText != "next" {
		t.Errorf("message not passed verbatim: %q", cls.lastText)
	}
}

func TestHandleMessageClassifierDown(t *testing.T) {
	mem := newFakeMemory()
	cls := &fakeClassifier{err: fmt.Errorf("model unavailable")}
	d := newTestDispatcher(mem, cls)

	resp := d.HandleMessage(context.Background(), "chan1", "sam", "hi")
	if !strings.Contains(resp.Text, "trouble thinking") {
		t.Errorf("expected apology, got %q", resp.Text)
	}
	if len(mem.turns["chan1"]) != 0 {
		t.Error("a failed classification must not be recorded as a turn")
	}
}

func TestClassifierFailureJournaled(t *testing.T) {
	jnl := journal.New(t.TempDir())
	cls := &fakeClassifier{err: fmt.Errorf("model unavailable")}
	d := New(newFakeMemory(), cls, newTestExecutor(nil, nil, &fakeLedger{}), jnl)

	d.HandleMessage(context.Background(), "chan1", "sam", "hi")

	entries, err := jnl.Recent(5)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Type != journal.EntryError {
		t.Fatalf("expected one error entry, got %+v", entries)
	}
	if !strings.Contains(entries[0].Outcome, "model unavailable") {
		t.Errorf("entry should carry the failure: %+v", entries[0])
	}
}

func TestHandleMessageGarbledDecisionStillResponds(t *testing.T) {
	mem := newFakeMemory()
	cls := &fakeClassifier{raw: "ACTION: teleport\nsome nonsense"}
	d := newTestDispatcher(mem, cls)

	resp := d.HandleMessage(context.Background(), "chan1", "sam", "do the thing")
	if resp.Text == "" {
		t.Fatal("garbled decision must still produce a response")
	}
	if len(mem.turns["chan1"]) != 1 {
		t.Error("the turn still completed and should be recorded")
	}
}

func TestHandleMessageEmpty(t *testing.T) {
	d := newTestDispatcher(newFakeMemory(), &fakeClassifier{})
	resp := d.HandleMessage(context.Background(), "chan1", "sam", "   ")
	if resp.Text == "" {
		t.Fatal("empty message still gets a prompt back")
	}
}

func TestCommandsBypassClassifier(t *testing.T) {
	cls := &fakeClassifier{}
	d := newTestDispatcher(newFakeMemory(), cls)

	resp := d.HandleMessage(context.Background(), "chan1", "sam", "/help")
	if cls.calls != 0 {
		t.Error("slash commands must not hit the classifier")
	}
	if !strings.Contains(resp.Text, "/search") {
		t.Errorf("help should list commands:\n%s", resp.Text)
	}
}

func TestSearchCommand(t *testing.T) {
	mem := newFakeMemory()
	mem.results = []conv.SearchResult{
		{Turn: conv.Turn{UserText: "order the cnc parts", AgentText: "noted", CreatedAt: testNow}},
	}
	d := newTestDispatcher(mem, &fakeClassifier{})

	resp := d.HandleMessage(context.Background(), "chan1", "sam", "/search cnc")
	if !strings.Contains(resp.Text, "cnc parts") {
		t.Errorf("expected match in output:\n%s", resp.Text)
	}
}

func TestExportCommandAttachesFile(t *testing.T) {
	d := newTestDispatcher(newFakeMemory(), &fakeClassifier{})

	resp := d.HandleMessage(context.Background(), "chan1", "sam", "/export 30")
	if resp.File == nil {
		t.Fatal("export must attach a document")
	}
	if resp.File.Name != "conversations-2026-09-04.md" {
		t.Errorf("unexpected file name %q", resp.File.Name)
	}
	if !strings.Contains(resp.Text, "30 days") {
		t.Errorf("unexpected text: %q", resp.Text)
	}
}

func TestUnknownCommand(t *testing.T) {
	d := newTestDispatcher(newFakeMemory(), &fakeClassifier{})
	resp := d.HandleMessage(context.Background(), "chan1", "sam", "/frobnicate")
	if !strings.Contains(resp.Text, "/help") {
		t.Errorf("unknown command should point at /help: %q", resp.Text)
	}
}
