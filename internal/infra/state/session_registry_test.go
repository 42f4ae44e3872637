package state

import (
	"errors"
	"testing"

	"ai-buddy-chat/internal/domain"
)

func TestRegistryJoinLookup(t *testing.T) {
	r := NewSessionRegistry()

	p := r.Join("c1", "alice")
	if p.Username != "alice" || p.ConnID != "c1" {
		t.Fatalf("unexpected participant: %+v", p)
	}
	if p.JoinedAt.IsZero() {
		t.Fatal("JoinedAt not set")
	}

	got, err := r.Lookup("c1")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got != p {
		t.Fatal("Lookup returned different participant")
	}
	if r.Size() != 1 {
		t.Fatalf("Size = %d, want 1", r.Size())
	}
}

func TestRegistryJoinReplaces(t *testing.T) {
	r := NewSessionRegistry()
	r.Join("c1", "alice")
	r.Join("c1", "alice2")

	got, err := r.Lookup("c1")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got.Username != "alice2" {
		t.Fatalf("Username = %q, want replacement", got.Username)
	}
	if r.Size() != 1 {
		t.Fatalf("Size = %d, want 1 after replace", r.Size())
	}
}

func TestRegistryRemoveIdempotent(t *testing.T) {
	r := NewSessionRegistry()
	r.Join("c1", "alice")

	p, err := r.Remove("c1")
	if err != nil {
		t.Fatalf("first Remove: %v", err)
	}
	if p.Username != "alice" {
		t.Fatalf("removed %q, want alice", p.Username)
	}

	if _, err := r.Remove("c1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("second Remove err = %v, want ErrNotFound", err)
	}
	if r.Size() != 0 {
		t.Fatalf("Size = %d, want 0", r.Size())
	}
}

func TestRegistryLookupMissing(t *testing.T) {
	r := NewSessionRegistry()
	if _, err := r.Lookup("nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestRegistryList(t *testing.T) {
	r := NewSessionRegistry()
	r.Join("c1", "alice")
	r.Join("c2", "bob")

	names := map[string]bool{}
	for _, p := range r.List() {
		names[p.Username] = true
	}
	if len(names) != 2 || !names["alice"] || !names["bob"] {
		t.Fatalf("List = %v", names)
	}
}
