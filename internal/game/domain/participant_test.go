package domain

import (
	"errors"
	"testing"
)

func TestCreateParticipantDefaults(t *testing.T) {
	participant, err := CreateParticipant(CreateParticipantInput{
		DisplayName:    "  Mireille  ",
		Role:           RoleCollaborator,
		SecretIdentity: "the-lamplighter",
		Hand:           []string{"card-a", "card-b"},
	}, fixedClock, func() (string, error) { return "part-1", nil })
	if err != nil {
		t.Fatalf("create participant: %v", err)
	}
	if participant.DisplayName != "Mireille" {
		t.Fatalf("expected trimmed display name, got %q", participant.DisplayName)
	}
	if !participant.Alive {
		t.Fatal("expected new participant to be alive")
	}
	if participant.Connection != ConnectionConnected {
		t.Fatalf("expected connected status, got %q", participant.Connection)
	}
	if participant.PendingAction != nil {
		t.Fatal("expected no pending action")
	}
	if len(participant.Hand) != 2 {
		t.Fatalf("expected starting hand of 2, got %d", len(participant.Hand))
	}
}

func TestCreateParticipantRejectsBadInput(t *testing.T) {
	_, err := CreateParticipant(CreateParticipantInput{Role: RoleSaboteur}, fixedClock, nil)
	if !errors.Is(err, ErrEmptyDisplayName) {
		t.Fatalf("expected empty display name error, got %v", err)
	}

	_, err = CreateParticipant(CreateParticipantInput{
		DisplayName: "Anax",
		Role:        Role("trickster"),
	}, fixedClock, nil)
	if !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected invalid role error, got %v", err)
	}
}

func TestParticipantHandOperations(t *testing.T) {
	participant := Participant{Hand: []string{"torch", "rope", "torch"}}

	if !participant.HoldsCard("rope") {
		t.Fatal("expected hand to hold rope")
	}
	if !participant.RemoveCard("torch") {
		t.Fatal("expected removal of held card to succeed")
	}
	if len(participant.Hand) != 2 {
		t.Fatalf("expected 2 cards after removal, got %d", len(participant.Hand))
	}
	// One copy of torch should remain.
	if !participant.HoldsCard("torch") {
		t.Fatal("expected second copy of torch to remain")
	}
	if participant.RemoveCard("lantern") {
		t.Fatal("expected removal of unheld card to fail")
	}
}
