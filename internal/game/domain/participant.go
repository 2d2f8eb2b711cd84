package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oligibbons/one-mind-many-sub000/internal/platform/id"
)

// ConnectionStatus describes a participant's liveness.
type ConnectionStatus string

const (
	// ConnectionConnected means a live transport connection is attached.
	ConnectionConnected ConnectionStatus = "connected"
	// ConnectionGracePeriod means the connection dropped and the reconnect
	// window is still open.
	ConnectionGracePeriod ConnectionStatus = "grace-period"
	// ConnectionAIControlled means the grace window expired and submissions
	// are auto-filled until the participant reconnects.
	ConnectionAIControlled ConnectionStatus = "ai-controlled"
)

var (
	// ErrEmptyDisplayName indicates a missing participant display name.
	ErrEmptyDisplayName = errors.New("participant display name is required")
	// ErrInvalidRole indicates a role outside the defined set.
	ErrInvalidRole = errors.New("participant role is invalid")
)

// Participant is one player inside a session.
//
// SecretIdentity is the participant's private priority-track label. It is
// distinct from the role and never shared with other participants.
type Participant struct {
	ID             string
	DisplayName    string
	Role           Role
	SubRoleID      string
	SecretIdentity string
	Hand           []string
	Alive          bool
	Connection     ConnectionStatus
	PendingAction  *Action
	// LastSabotageRound is the round a sabotage action last resolved for
	// this participant, 0 when none has.
	LastSabotageRound int
	// GoalPathID assigns a rogue their personal goal path; empty otherwise.
	GoalPathID     string
	VictoryPoints  int
	SubRoleAwarded bool
	CreatedAt      time.Time
}

// CreateParticipantInput describes the data needed to create a participant.
type CreateParticipantInput struct {
	DisplayName    string
	Role           Role
	SubRoleID      string
	SecretIdentity string
	GoalPathID     string
	Hand           []string
}

// CreateParticipant creates a participant with a generated ID, alive and
// connected, with no pending action.
func CreateParticipant(input CreateParticipantInput, now func() time.Time, idGenerator func() (string, error)) (Participant, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	normalized, err := NormalizeCreateParticipantInput(input)
	if err != nil {
		return Participant{}, err
	}

	participantID, err := idGenerator()
	if err != nil {
		return Participant{}, fmt.Errorf("generate participant id: %w", err)
	}

	return Participant{
		ID:             participantID,
		DisplayName:    normalized.DisplayName,
		Role:           normalized.Role,
		SubRoleID:      normalized.SubRoleID,
		SecretIdentity: normalized.SecretIdentity,
		GoalPathID:     normalized.GoalPathID,
		Hand:           append([]string(nil), normalized.Hand...),
		Alive:          true,
		Connection:     ConnectionConnected,
		CreatedAt:      now().UTC(),
	}, nil
}

// NormalizeCreateParticipantInput trims and validates participant input.
func NormalizeCreateParticipantInput(input CreateParticipantInput) (CreateParticipantInput, error) {
	input.DisplayName = strings.TrimSpace(input.DisplayName)
	if input.DisplayName == "" {
		return CreateParticipantInput{}, ErrEmptyDisplayName
	}
	if !KnownRole(input.Role) {
		return CreateParticipantInput{}, ErrInvalidRole
	}
	input.SubRoleID = strings.TrimSpace(input.SubRoleID)
	input.SecretIdentity = strings.TrimSpace(input.SecretIdentity)
	return input, nil
}

// HoldsCard reports whether the participant's hand contains cardID.
func (p Participant) HoldsCard(cardID string) bool {
	for _, held := range p.Hand {
		if held == cardID {
			return true
		}
	}
	return false
}

// RemoveCard removes one copy of cardID from the hand, reporting whether a
// copy was held.
func (p *Participant) RemoveCard(cardID string) bool {
	for i, held := range p.Hand {
		if held == cardID {
			p.Hand = append(p.Hand[:i], p.Hand[i+1:]...)
			return true
		}
	}
	return false
}
