package engine

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/oligibbons/one-mind-many-sub000/internal/game/domain"
	"github.com/oligibbons/one-mind-many-sub000/internal/game/narrator"
	apperrors "github.com/oligibbons/one-mind-many-sub000/internal/platform/errors"
)

func TestGridSteps(t *testing.T) {
	tests := []struct {
		name     string
		from, to int
		gridSize int
		want     int
	}{
		{name: "single orthogonal", from: 0, to: 1, gridSize: 3, want: 1},
		{name: "single diagonal", from: 0, to: 4, gridSize: 3, want: 1},
		{name: "straight line", from: 0, to: 2, gridSize: 3, want: 2},
		{name: "knight shape", from: 0, to: 5, gridSize: 3, want: 2},
		{name: "long diagonal pays orthogonal", from: 0, to: 8, gridSize: 3, want: 3},
		{name: "full row", from: 0, to: 4, gridSize: 5, want: 4},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := gridSteps(tc.from, tc.to, tc.gridSize); got != tc.want {
				t.Fatalf("expected %d steps from %d to %d, got %d", tc.want, tc.from, tc.to, got)
			}
		})
	}
}

func TestMoveAcrossGridSizeOneResolvesSameRound(t *testing.T) {
	eng, timers, _ := newTestEngine(t)
	eng.Start()
	timers.Fire()

	if err := eng.SubmitAction("p1", domain.ActionMove, domain.Target{Kind: domain.TargetLocation, ID: "yard"}, ""); err != nil {
		t.Fatalf("expected move off a one-cell grid to be legal, got %v", err)
	}
	submitSearch(t, eng, "p2")
	submitSearch(t, eng, "p3")

	if eng.session.Phase != domain.PhaseDeduction {
		t.Fatalf("expected the move to resolve within its round, got phase %s", eng.session.Phase)
	}
	if eng.session.Position.LocationID != "yard" || eng.session.Position.Cell != 0 {
		t.Fatalf("expected token at yard cell 0, got %s cell %d",
			eng.session.Position.LocationID, eng.session.Position.Cell)
	}
}

func TestMoveRejectsUnreachableDestinations(t *testing.T) {
	eng, timers, _ := newTestEngine(t)
	eng.Start()
	timers.Fire()

	// pit is not adjacent to the start location.
	err := eng.SubmitAction("p1", domain.ActionMove, domain.Target{Kind: domain.TargetLocation, ID: "pit"}, "")
	if apperrors.CodeOf(err) != apperrors.CodeActionMoveIllegal {
		t.Fatalf("expected non-adjacent move rejection, got %v", err)
	}
}

func TestMoveCrossingConsumesRemainingCells(t *testing.T) {
	eng, timers, _ := newTestEngine(t)
	eng.Start()
	eng.session.Position = domain.BoardPosition{LocationID: "catacombs", Cell: 0}
	timers.Fire()

	// Five cells remain in the row from cell 0 of a five-wide grid.
	err := eng.SubmitAction("p1", domain.ActionMove, domain.Target{Kind: domain.TargetLocation, ID: "hall"}, "")
	if apperrors.CodeOf(err) != apperrors.CodeActionMoveIllegal {
		t.Fatalf("expected the crossing to exceed the step budget, got %v", err)
	}

	eng.session.Position.Cell = 3
	if err := eng.SubmitAction("p1", domain.ActionMove, domain.Target{Kind: domain.TargetLocation, ID: "hall"}, ""); err != nil {
		t.Fatalf("expected crossing from cell 3 to be affordable, got %v", err)
	}
}

func TestDoomsdayEndsSessionAndHonorsEarlierGoalWin(t *testing.T) {
	eng, timers, notifier := newTestEngine(t)
	eng.Start()
	eng.session.Track = domain.NewTrack([]string{"p3", "p2", "p1"})
	eng.session.Position = domain.BoardPosition{LocationID: "vault"}
	eng.session.GoalProgress["p3"] = 1
	timers.Fire()

	if err := eng.SubmitAction("p3", domain.ActionScheme, domain.Target{}, ""); err != nil {
		t.Fatalf("expected scheme submission to succeed, got %v", err)
	}
	if err := eng.SubmitAction("p2", domain.ActionInteract, domain.Target{Kind: domain.TargetObject, ID: "altar"}, ""); err != nil {
		t.Fatalf("expected interact submission to succeed, got %v", err)
	}
	submitSearch(t, eng, "p1")

	if eng.session.Status != domain.StatusEnded {
		t.Fatalf("expected doomsday to end the session, got %s", eng.session.Status)
	}
	if !notifier.ended {
		t.Fatalf("expected the ended notification")
	}
	if len(eng.session.Winners) != 2 {
		t.Fatalf("expected the earlier goal win plus the doomsday winner, got %v", eng.session.Winners)
	}
	if eng.session.Winners[0].ParticipantID != "p3" || eng.session.Winners[0].Reason != "goal-complete" {
		t.Fatalf("expected p3's goal win recorded first, got %+v", eng.session.Winners[0])
	}
	if eng.session.Winners[1].ParticipantID != "p2" || eng.session.Winners[1].Role != domain.RoleSaboteur {
		t.Fatalf("expected the saboteur doomsday win second, got %+v", eng.session.Winners[1])
	}
	// p1 resolves after the terminal trigger; the queued action is discarded.
	if eng.participants["p1"].PendingAction == nil ||
		eng.participants["p1"].PendingAction.Status != domain.ActionStatusPending {
		t.Fatalf("expected p1's action left unresolved after the session ended")
	}
}

func TestFailLocationEndsWithNoWinners(t *testing.T) {
	eng, timers, notifier := newTestEngine(t)
	eng.Start()
	eng.session.Position = domain.BoardPosition{LocationID: "vault"}
	timers.Fire()

	if err := eng.SubmitAction("p1", domain.ActionMove, domain.Target{Kind: domain.TargetLocation, ID: "pit"}, ""); err != nil {
		t.Fatalf("expected move toward the pit to be legal, got %v", err)
	}
	submitSearch(t, eng, "p2")
	submitSearch(t, eng, "p3")

	if eng.session.Status != domain.StatusEnded {
		t.Fatalf("expected touching the fail location to end the session, got %s", eng.session.Status)
	}
	if len(eng.session.Winners) != 0 {
		t.Fatalf("expected no winners on a global fail, got %v", eng.session.Winners)
	}
	if !notifier.ended || len(notifier.winners) != 0 {
		t.Fatalf("expected an ended notification with no winners, got %v", notifier.winners)
	}
}

func TestInteractAppliesEntityEffects(t *testing.T) {
	eng, timers, _ := newTestEngine(t)
	eng.Start()
	timers.Fire()

	if err := eng.SubmitAction("p1", domain.ActionInteract, domain.Target{Kind: domain.TargetObject, ID: "well"}, ""); err != nil {
		t.Fatalf("expected interact submission to succeed, got %v", err)
	}
	submitSearch(t, eng, "p2")
	submitSearch(t, eng, "p3")

	if !eng.participants["p1"].HoldsCard("coin") {
		t.Fatalf("expected the well to grant a coin, got hand %v", eng.participants["p1"].Hand)
	}
}

func TestSearchDrawsFromDeck(t *testing.T) {
	eng, timers, _ := newTestEngine(t)
	eng.Start()
	timers.Fire()

	before := len(eng.participants["p1"].Hand)
	submitSearch(t, eng, "p1")
	submitSearch(t, eng, "p2")
	submitSearch(t, eng, "p3")

	if got := len(eng.participants["p1"].Hand); got != before+1 {
		t.Fatalf("expected a drawn card, hand went %d to %d", before, got)
	}
}

func TestSubRoleAwardsOnce(t *testing.T) {
	eng, timers, _ := newTestEngine(t)
	eng.participants["p1"].SubRoleID = "archivist"
	eng.Start()
	timers.Fire()

	submitSearch(t, eng, "p1")
	submitSearch(t, eng, "p2")
	submitSearch(t, eng, "p3")

	if got := eng.participants["p1"].VictoryPoints; got != 1 {
		t.Fatalf("expected the sub-role award, got %d points", got)
	}

	timers.Fire() // round 2 planning
	timers.Fire() // round 2 submission
	submitSearch(t, eng, "p1")
	submitSearch(t, eng, "p2")
	submitSearch(t, eng, "p3")

	if got := eng.participants["p1"].VictoryPoints; got != 1 {
		t.Fatalf("expected no second sub-role award, got %d points", got)
	}
}

func TestSabotageDrainsAResource(t *testing.T) {
	eng, timers, _ := newTestEngine(t)
	eng.Start()
	timers.Fire()

	if err := eng.SubmitAction("p2", domain.ActionSabotage, domain.Target{Kind: domain.TargetObject, ID: "well"}, ""); err != nil {
		t.Fatalf("expected object sabotage submission to succeed, got %v", err)
	}
	submitSearch(t, eng, "p1")
	submitSearch(t, eng, "p3")

	if got := eng.session.Resources["lanterns"]; got != 1 {
		t.Fatalf("expected a lantern drained, got %d", got)
	}
}

func TestComplicationActivatesAndExpires(t *testing.T) {
	eng, timers, _ := newTestEngine(t)
	eng.Start()
	eng.session.Position = domain.BoardPosition{LocationID: "yard"}
	timers.Fire()

	submitSearch(t, eng, "p1")
	submitSearch(t, eng, "p2")
	submitSearch(t, eng, "p3")

	if len(eng.session.Complications) != 1 ||
		eng.session.Complications[0].ComplicationID != "tolling-bell" ||
		eng.session.Complications[0].RemainingRounds != 2 {
		t.Fatalf("expected the tolling bell active for 2 rounds, got %v", eng.session.Complications)
	}
	if eng.movementPenalty() != 1 {
		t.Fatalf("expected a movement penalty of 1, got %d", eng.movementPenalty())
	}

	timers.Fire() // round 2, duration ticks down
	if eng.session.Complications[0].RemainingRounds != 1 {
		t.Fatalf("expected 1 remaining round, got %v", eng.session.Complications)
	}

	timers.Fire() // round 2 submission
	submitSearch(t, eng, "p1")
	submitSearch(t, eng, "p2")
	submitSearch(t, eng, "p3")
	timers.Fire() // round 3, expires

	if len(eng.session.Complications) != 0 {
		t.Fatalf("expected the complication removed at zero, got %v", eng.session.Complications)
	}
}

func TestSnapshotIsByteStable(t *testing.T) {
	eng, timers, _ := newTestEngine(t)
	eng.Start()
	playRound(t, eng, timers)

	first, err := eng.Snapshot()
	if err != nil {
		t.Fatalf("expected snapshot to encode, got %v", err)
	}
	second, err := eng.Snapshot()
	if err != nil {
		t.Fatalf("expected snapshot to encode, got %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("expected identical snapshots with no intervening mutation")
	}
	if bytes.Contains(first, []byte("track")) {
		t.Fatalf("expected the snapshot to omit the priority track")
	}
}

func TestCheckStateReportsViolations(t *testing.T) {
	def := testDefinition()

	valid := []byte(`{
		"round": 2, "phase": "planning",
		"position": {"location_id": "vault", "cell": 3},
		"track": ["a", "b", "c"],
		"resources": {"lanterns": 1},
		"participants": [
			{"id": "a", "role": "collaborator"},
			{"id": "b", "role": "saboteur"},
			{"id": "c", "role": "rogue"}
		]
	}`)
	if violations := CheckState(def, valid); len(violations) != 0 {
		t.Fatalf("expected no violations, got %v", violations)
	}

	invalid := []byte(`{
		"round": 0, "phase": "intermission",
		"position": {"location_id": "moon", "cell": 9},
		"track": ["a", "a"],
		"resources": {"lanterns": -1},
		"participants": [
			{"id": "a", "role": "collaborator"},
			{"id": "a", "role": "wizard"}
		]
	}`)
	violations := CheckState(def, invalid)
	if len(violations) < 6 {
		t.Fatalf("expected at least 6 violations, got %d: %v", len(violations), violations)
	}

	if violations := CheckState(def, []byte("not json")); len(violations) != 1 {
		t.Fatalf("expected a single parse violation, got %v", violations)
	}
}

type stuckNarrator struct {
	release chan struct{}
}

func (s stuckNarrator) Narrate(ctx context.Context, _ narrator.Outcome) (string, error) {
	<-s.release
	return "", ctx.Err()
}

func TestResolutionNotWedgedByHangingNarrator(t *testing.T) {
	eng, timers, _ := newSearchOnlyEngine(t)
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	eng.narrate = narrator.WithFallbackTimeout(stuckNarrator{release: release}, 10*time.Millisecond)

	eng.Start()
	timers.Fire()

	start := time.Now()
	submitSearch(t, eng, "p1")
	submitSearch(t, eng, "p2")
	submitSearch(t, eng, "p3")
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("expected resolution bounded by the narration timeout, took %s", elapsed)
	}

	raw, err := eng.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if !bytes.Contains(raw, []byte(`"phase":"deduction"`)) {
		t.Fatalf("expected round to reach deduction, got %s", raw)
	}
}
