package narrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/oligibbons/one-mind-many-sub000/internal/game/domain"
)

func TestTemplatedNarratesEachAction(t *testing.T) {
	actions := []domain.ActionType{
		domain.ActionMove, domain.ActionSearch, domain.ActionInteract,
		domain.ActionSabotage, domain.ActionScheme,
	}
	for _, action := range actions {
		prose, err := Templated{}.Narrate(context.Background(), Outcome{
			Action:       action,
			LocationName: "The Chapel",
			TargetName:   "The Crypt",
		})
		if err != nil {
			t.Fatalf("narrate %s: %v", action, err)
		}
		if prose == "" {
			t.Fatalf("expected prose for %s", action)
		}
	}
}

func TestTemplatedNarratesDroppedAction(t *testing.T) {
	prose, err := Templated{}.Narrate(context.Background(), Outcome{
		Action:       domain.ActionMove,
		LocationName: "The Cloister",
		Dropped:      true,
	})
	if err != nil {
		t.Fatalf("narrate dropped: %v", err)
	}
	if !strings.Contains(prose, "hesitates") {
		t.Fatalf("expected hesitation prose for dropped action, got %q", prose)
	}
}

func TestTemplatedAppendsEffectNotes(t *testing.T) {
	prose, err := Templated{}.Narrate(context.Background(), Outcome{
		Action:       domain.ActionInteract,
		LocationName: "The Crypt",
		TargetName:   "The Cracked Reliquary",
		EffectNotes:  []string{"Something slips into a pocket."},
	})
	if err != nil {
		t.Fatalf("narrate with notes: %v", err)
	}
	if !strings.Contains(prose, "Something slips into a pocket.") {
		t.Fatalf("expected effect note appended, got %q", prose)
	}
}

type failingNarrator struct{}

func (failingNarrator) Narrate(context.Context, Outcome) (string, error) {
	return "", errors.New("model offline")
}

func TestWithFallbackDegradesToTemplates(t *testing.T) {
	n := WithFallback(failingNarrator{})
	prose, err := n.Narrate(context.Background(), Outcome{
		Action:       domain.ActionSearch,
		LocationName: "The Night Garden",
	})
	if err != nil {
		t.Fatalf("narrate with fallback: %v", err)
	}
	if prose == "" {
		t.Fatal("expected fallback prose")
	}
}

type hangingNarrator struct {
	mu          sync.Mutex
	sawDeadline bool
	release     chan struct{}
}

func (h *hangingNarrator) Narrate(ctx context.Context, _ Outcome) (string, error) {
	h.mu.Lock()
	_, h.sawDeadline = ctx.Deadline()
	h.mu.Unlock()
	<-h.release
	return "late prose", nil
}

func TestWithFallbackAbandonsHangingPrimary(t *testing.T) {
	hang := &hangingNarrator{release: make(chan struct{})}
	t.Cleanup(func() { close(hang.release) })

	n := WithFallbackTimeout(hang, 20*time.Millisecond)
	start := time.Now()
	prose, err := n.Narrate(context.Background(), Outcome{
		Action:       domain.ActionSearch,
		LocationName: "The Scriptorium",
	})
	if err != nil {
		t.Fatalf("narrate with hanging primary: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("expected narration bounded by the timeout, took %s", elapsed)
	}
	if !strings.Contains(prose, "searches") {
		t.Fatalf("expected templated prose, got %q", prose)
	}

	hang.mu.Lock()
	defer hang.mu.Unlock()
	if !hang.sawDeadline {
		t.Fatal("expected primary to receive a deadline-bound context")
	}
}

func TestWithFallbackHandlesNilPrimary(t *testing.T) {
	n := WithFallback(nil)
	prose, err := n.Narrate(context.Background(), Outcome{
		Action:       domain.ActionMove,
		TargetName:   "The Bell Tower",
		LocationName: "The Crypt",
	})
	if err != nil {
		t.Fatalf("narrate nil primary: %v", err)
	}
	if prose == "" {
		t.Fatal("expected prose from templated fallback")
	}
}
