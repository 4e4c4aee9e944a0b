package transcript

import (
	"testing"
	"time"

	"github.com/kalambet/rxassist/internal/chat"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleTurn(id, content string) chat.Turn {
	return chat.Turn{
		ID:          id,
		Author:      chat.AuthorAgent,
		Content:     content,
		Suggestions: []string{"View customers"},
		FollowUpActions: []chat.ActionProposal{
			{Label: "View customers", Kind: chat.ActionViewCustomers},
		},
		Intent:           "search_customers",
		Confidence:       0.9,
		ProcessingMillis: 120,
		CreatedAt:        time.Now().UTC(),
	}
}

func TestSaveAndListTurns(t *testing.T) {
	s := newTestStore(t)

	turn := sampleTurn("t1", "Found 3 customers.")
	turn.ConfirmationData = map[string]any{"targetDescription": "customer 42"}
	turn.RequiresConfirmation = true
	if err := s.SaveTurn("conv-1", turn); err != nil {
		t.Fatalf("SaveTurn: %v", err)
	}

	turns, err := s.ListTurns("conv-1")
	if err != nil {
		t.Fatalf("ListTurns: %v", err)
	}
	if len(turns) != 1 {
		t.Fatalf("got %d turns, want 1", len(turns))
	}

	got := turns[0]
	if got.ID != "t1" || got.Author != chat.AuthorAgent || got.Content != "Found 3 customers." {
		t.Errorf("turn = %+v", got)
	}
	if len(got.Suggestions) != 1 || got.Suggestions[0] != "View customers" {
		t.Errorf("Suggestions = %v", got.Suggestions)
	}
	if len(got.FollowUpActions) != 1 || got.FollowUpActions[0].Kind != chat.ActionViewCustomers {
		t.Errorf("FollowUpActions = %+v", got.FollowUpActions)
	}
	if !got.RequiresConfirmation {
		t.Error("RequiresConfirmation = false")
	}
	if got.ConfirmationData["targetDescription"] != "customer 42" {
		t.Errorf("ConfirmationData = %v", got.ConfirmationData)
	}
	if got.Intent != "search_customers" || got.ProcessingMillis != 120 {
		t.Errorf("intent/processing = %q/%d", got.Intent, got.ProcessingMillis)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt is zero")
	}
}

func TestListTurnsKeepsAppendOrder(t *testing.T) {
	s := newTestStore(t)

	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		turn := sampleTurn(id, id)
		turn.CreatedAt = base.Add(time.Duration(i) * time.Second)
		if err := s.SaveTurn("conv-1", turn); err != nil {
			t.Fatalf("SaveTurn %s: %v", id, err)
		}
	}

	turns, err := s.ListTurns("conv-1")
	if err != nil {
		t.Fatalf("ListTurns: %v", err)
	}
	for i, want := range []string{"a", "b", "c"} {
		if turns[i].ID != want {
			t.Errorf("turns[%d].ID = %q, want %q", i, turns[i].ID, want)
		}
	}
}

func TestListTurnsEmptyConversation(t *testing.T) {
	s := newTestStore(t)

	turns, err := s.ListTurns("nope")
	if err != nil {
		t.Fatalf("ListTurns: %v", err)
	}
	if len(turns) != 0 {
		t.Errorf("got %d turns, want 0", len(turns))
	}
}

func TestConversationsMostRecentFirst(t *testing.T) {
	s := newTestStore(t)

	older := sampleTurn("t1", "old")
	older.CreatedAt = time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	newer := sampleTurn("t2", "new")
	newer.CreatedAt = time.Date(2026, 8, 2, 10, 0, 0, 0, time.UTC)

	s.SaveTurn("conv-old", older)
	s.SaveTurn("conv-new", newer)

	ids, err := s.Conversations()
	if err != nil {
		t.Fatalf("Conversations: %v", err)
	}
	if len(ids) != 2 || ids[0] != "conv-new" || ids[1] != "conv-old" {
		t.Errorf("ids = %v, want [conv-new conv-old]", ids)
	}
}

func TestPurgeConversation(t *testing.T) {
	s := newTestStore(t)

	s.SaveTurn("conv-1", sampleTurn("t1", "keep"))
	s.SaveTurn("conv-2", sampleTurn("t2", "purge"))

	if err := s.PurgeConversation("conv-2"); err != nil {
		t.Fatalf("PurgeConversation: %v", err)
	}

	turns, _ := s.ListTurns("conv-2")
	if len(turns) != 0 {
		t.Errorf("purged conversation still has %d turns", len(turns))
	}
	turns, _ = s.ListTurns("conv-1")
	if len(turns) != 1 {
		t.Errorf("untouched conversation has %d turns, want 1", len(turns))
	}
}

func TestPurgeMissingConversation(t *testing.T) {
	s := newTestStore(t)
	if err := s.PurgeConversation("missing"); err != nil {
		t.Errorf("PurgeConversation on empty store: %v", err)
	}
}

func TestMigrationsApplied(t *testing.T) {
	s := newTestStore(t)

	versions, err := s.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if len(versions) == 0 || versions[0] != 1 {
		t.Errorf("versions = %v, want [1 ...]", versions)
	}
}

func TestOpenIsIdempotentOnDisk(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	if err := s1.SaveTurn("conv-1", sampleTurn("t1", "persisted")); err != nil {
		t.Fatalf("SaveTurn: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open: %v", err)
	}
	defer s2.Close()

	turns, err := s2.ListTurns("conv-1")
	if err != nil {
		t.Fatalf("ListTurns: %v", err)
	}
	if len(turns) != 1 || turns[0].Content != "persisted" {
		t.Errorf("turns = %+v, want the persisted turn", turns)
	}
}

func TestParseMigrationVersion(t *testing.T) {
	tests := []struct {
		name    string
		want    int
		wantErr bool
	}{
		{"0001_init.sql", 1, false},
		{"0042_add_index.sql", 42, false},
		{"init.sql", 0, true},
	}
	for _, tt := range tests {
		got, err := parseMigrationVersion(tt.name)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseMigrationVersion(%q) err = nil, want error", tt.name)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("parseMigrationVersion(%q) = %d, %v, want %d", tt.name, got, err, tt.want)
		}
	}
}

func TestSaveTurnNilSlices(t *testing.T) {
	s := newTestStore(t)

	turn := chat.Turn{
		ID:        "bare",
		Author:    chat.AuthorUser,
		Content:   "hello",
		CreatedAt: time.Now().UTC(),
	}
	if err := s.SaveTurn("conv-1", turn); err != nil {
		t.Fatalf("SaveTurn: %v", err)
	}

	turns, err := s.ListTurns("conv-1")
	if err != nil {
		t.Fatalf("ListTurns: %v", err)
	}
	got := turns[0]
	if len(got.Suggestions) != 0 || len(got.FollowUpActions) != 0 || got.ConfirmationData != nil {
		t.Errorf("round-tripped empties = %+v", got)
	}
}
