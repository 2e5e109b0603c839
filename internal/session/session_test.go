package session

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/persona/internal/storage"
)

func TestThreadID(t *testing.T) {
	tests := []struct {
		name      string
		existing  string
		messageID string
		want      string
	}{
		{"reuse existing", "thread-1", "msg-9", "thread-1"},
		{"first message id", "", "msg-9", "msg-9"},
		{"blank existing", "  ", "msg-9", "msg-9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ThreadID(tt.existing, tt.messageID); got != tt.want {
				t.Errorf("ThreadID = %q, want %q", got, tt.want)
			}
		})
	}

	generated := ThreadID("", "")
	if _, err := uuid.Parse(generated); err != nil {
		t.Errorf("generated id %q is not a UUID: %v", generated, err)
	}
}

func TestRecord_WithStore(t *testing.T) {
	s, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	m := NewManager(s)
	first, err := m.Record("", "msg-1")
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if first.ThreadID != "msg-1" || first.Turns != 1 {
		t.Errorf("first = %+v", first)
	}

	second, err := m.Record(first.ThreadID, "msg-2")
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if second.ThreadID != "msg-1" || second.Turns != 2 {
		t.Errorf("second = %+v, want thread reused with 2 turns", second)
	}
}

func TestRecord_NilRegistry(t *testing.T) {
	m := NewManager(nil)
	fixed := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return fixed }

	sess, err := m.Record("t", "")
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if sess.ThreadID != "t" || !sess.CreatedAt.Equal(fixed) {
		t.Errorf("sess = %+v", sess)
	}
}

type failingRegistry struct{}

func (failingRegistry) TouchSession(string, time.Time) (storage.Session, error) {
	return storage.Session{}, errors.New("disk full")
}

func TestRecord_RegistryError(t *testing.T) {
	_, err := NewManager(failingRegistry{}).Record("t", "")
	if err == nil {
		t.Fatal("expected error")
	}
}
