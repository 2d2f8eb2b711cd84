package domain

import "testing"

func TestTrackRotateLeft(t *testing.T) {
	track := NewTrack([]string{"a", "b", "c", "d"})
	rotated := track.RotateLeft()

	want := []string{"b", "c", "d", "a"}
	for i, id := range want {
		if rotated[i] != id {
			t.Fatalf("expected %v at slot %d, got %v", id, i, rotated[i])
		}
	}
	// Original track must be untouched.
	if track[0] != "a" {
		t.Fatalf("expected original track unchanged, got first slot %q", track[0])
	}
}

func TestTrackRotateLeftIsPermutation(t *testing.T) {
	ids := []string{"p1", "p2", "p3", "p4", "p5"}
	track := NewTrack(ids)
	for round := 0; round < 12; round++ {
		if !track.IsPermutationOf(ids) {
			t.Fatalf("expected permutation after %d rotations, got %v", round, track)
		}
		track = track.RotateLeft()
	}
}

func TestTrackRotateLeftFullCycle(t *testing.T) {
	ids := []string{"a", "b", "c"}
	track := NewTrack(ids)
	cycled := track.RotateLeft().RotateLeft().RotateLeft()
	for i := range ids {
		if cycled[i] != ids[i] {
			t.Fatalf("expected track to return to start after full cycle, got %v", cycled)
		}
	}
}

func TestTrackIsPermutationOfRejectsMismatch(t *testing.T) {
	track := NewTrack([]string{"a", "b", "b"})
	if track.IsPermutationOf([]string{"a", "b", "c"}) {
		t.Fatal("expected duplicate entries to fail permutation check")
	}
	if track.IsPermutationOf([]string{"a", "b"}) {
		t.Fatal("expected length mismatch to fail permutation check")
	}
}

func TestTrackPosition(t *testing.T) {
	track := NewTrack([]string{"a", "b", "c"})
	if pos := track.Position("b"); pos != 1 {
		t.Fatalf("expected slot 1, got %d", pos)
	}
	if pos := track.Position("missing"); pos != -1 {
		t.Fatalf("expected -1 for unknown participant, got %d", pos)
	}
}
