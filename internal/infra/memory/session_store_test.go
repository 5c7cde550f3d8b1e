package memory

import (
	"testing"
	"time"

	"photo-quiz-service/internal/app"
)

func TestSessionStoreLifecycle(t *testing.T) {
	store := NewSessionStore()
	create := func() *app.Session { return app.NewSession("p1", app.DefaultRules()) }

	session := store.GetOrCreate("p1", create)
	if session == nil {
		t.Fatalf("expected session")
	}
	if again := store.GetOrCreate("p1", create); again != session {
		t.Fatalf("expected the same session on second lookup")
	}
	if _, ok := store.Get("p1"); !ok {
		t.Fatalf("expected session present")
	}

	store.Delete("p1")
	if _, ok := store.Get("p1"); ok {
		t.Fatalf("expected session removed")
	}
}

func TestSessionStoreDeleteIdle(t *testing.T) {
	store := NewSessionStore()
	base := time.Date(2024, 11, 22, 9, 0, 0, 0, time.UTC)
	old := func() *app.Session {
		return app.NewSessionWithClock("old", app.DefaultRules(), func() time.Time { return base }, nil)
	}
	fresh := func() *app.Session {
		return app.NewSessionWithClock("fresh", app.DefaultRules(), func() time.Time { return base.Add(time.Hour) }, nil)
	}
	store.GetOrCreate("old", old)
	store.GetOrCreate("fresh", fresh)

	if removed := store.DeleteIdle(base.Add(30 * time.Minute)); removed != 1 {
		t.Fatalf("expected one idle session removed, got %d", removed)
	}
	if _, ok := store.Get("fresh"); !ok {
		t.Fatalf("expected fresh session kept")
	}
	if store.Len() != 1 {
		t.Fatalf("expected one session left, got %d", store.Len())
	}
}
