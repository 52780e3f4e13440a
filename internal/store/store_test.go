package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"lensd/pkg/types"
)

// newMemStore creates an in-memory badger store for testing.
func newMemStore(t *testing.T) *Badger {
	t.Helper()
	s, err := Open(Options{InMemory: true})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenRequiresDir(t *testing.T) {
	if _, err := Open(Options{}); err == nil {
		t.Fatalf("expected error without dir")
	}
}

func TestInsertFetchDelete(t *testing.T) {
	ctx := context.Background()
	s := newMemStore(t)
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := types.TranslationRecord{
		ID:             "r1",
		SourceText:     "hello",
		TranslatedText: "こんにちは",
		Modality:       types.ModalityText,
		CreatedAt:      created,
		Messages: []types.ChatMessage{
			{Role: types.RoleUser, Text: "formal?", CreatedAt: created},
			{Role: types.RoleAssistant, Text: "こんにちは is neutral", CreatedAt: created},
		},
	}

	if _, err := s.FetchThread(ctx, "r1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.Insert(ctx, rec); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	got, err := s.FetchThread(ctx, "r1")
	if err != nil {
		t.Fatalf("FetchThread: %v", err)
	}
	if got.TranslatedText != rec.TranslatedText || len(got.Messages) != 2 || got.Messages[1].Role != types.RoleAssistant {
		t.Fatalf("unexpected record: %+v", got)
	}
	if !got.CreatedAt.Equal(created) {
		t.Fatalf("created_at = %v, want %v", got.CreatedAt, created)
	}

	rec.TranslatedText = "どうも"
	if err := s.Insert(ctx, rec); err != nil {
		t.Fatalf("Insert overwrite: %v", err)
	}
	got, _ = s.FetchThread(ctx, "r1")
	if got.TranslatedText != "どうも" {
		t.Fatalf("overwrite not applied: %q", got.TranslatedText)
	}

	if err := s.Delete(ctx, "r1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.FetchThread(ctx, "r1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := s.Delete(ctx, "missing"); err != nil {
		t.Fatalf("Delete missing: %v", err)
	}
}

func TestInsertRequiresID(t *testing.T) {
	s := newMemStore(t)
	if err := s.Insert(context.Background(), types.TranslationRecord{}); err == nil {
		t.Fatalf("expected error for empty id")
	}
}

func TestListNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := newMemStore(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		rec := types.TranslationRecord{ID: id, CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := s.Insert(ctx, rec); err != nil {
			t.Fatalf("Insert %s: %v", id, err)
		}
	}
	out, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(out) != 3 || out[0].ID != "c" || out[2].ID != "a" {
		t.Fatalf("unexpected order: %+v", out)
	}
}
