package domain

import (
	"errors"
	"testing"
)

func TestNewActionDefaultsTargetKind(t *testing.T) {
	action, err := NewAction("p1", ActionSearch, Target{})
	if err != nil {
		t.Fatalf("new action: %v", err)
	}
	if action.Target.Kind != TargetNone {
		t.Fatalf("expected target kind none, got %q", action.Target.Kind)
	}
	if action.Status != ActionStatusPending {
		t.Fatalf("expected pending status, got %q", action.Status)
	}
}

func TestNewActionTrimsIDs(t *testing.T) {
	action, err := NewAction("  p1  ", ActionMove, Target{Kind: TargetLocation, ID: " cellar "})
	if err != nil {
		t.Fatalf("new action: %v", err)
	}
	if action.ParticipantID != "p1" {
		t.Fatalf("expected trimmed participant id, got %q", action.ParticipantID)
	}
	if action.Target.ID != "cellar" {
		t.Fatalf("expected trimmed target id, got %q", action.Target.ID)
	}
}

func TestNewActionRejectsMalformedPieces(t *testing.T) {
	if _, err := NewAction("", ActionMove, Target{}); !errors.Is(err, ErrEmptyParticipantID) {
		t.Fatalf("expected empty participant error, got %v", err)
	}
	if _, err := NewAction("p1", ActionType("dance"), Target{}); !errors.Is(err, ErrUnknownActionType) {
		t.Fatalf("expected unknown action type error, got %v", err)
	}
	if _, err := NewAction("p1", ActionMove, Target{Kind: TargetKind("galaxy")}); !errors.Is(err, ErrUnknownTargetKind) {
		t.Fatalf("expected unknown target kind error, got %v", err)
	}
}
