package domain

// Track is the hidden priority track: the ordered participant ids defining
// resolution order for the current round.
//
// The track lives server-side only. Snapshots and broadcast events must never
// carry it; participants may only infer order from narrated outcomes.
type Track []string

// NewTrack copies ids into a track.
func NewTrack(ids []string) Track {
	return append(Track(nil), ids...)
}

// RotateLeft returns the track rotated one position left: the participant
// resolved first this round resolves last next round. The receiver is not
// modified.
func (t Track) RotateLeft() Track {
	if len(t) < 2 {
		return append(Track(nil), t...)
	}
	rotated := make(Track, 0, len(t))
	rotated = append(rotated, t[1:]...)
	return append(rotated, t[0])
}

// IsPermutationOf reports whether the track holds exactly the given ids,
// each once, in any order.
func (t Track) IsPermutationOf(ids []string) bool {
	if len(t) != len(ids) {
		return false
	}
	counts := make(map[string]int, len(ids))
	for _, id := range ids {
		counts[id]++
	}
	for _, id := range t {
		counts[id]--
		if counts[id] < 0 {
			return false
		}
	}
	for _, n := range counts {
		if n != 0 {
			return false
		}
	}
	return true
}

// Position returns the zero-based slot of participantID, or -1 when absent.
func (t Track) Position(participantID string) int {
	for i, id := range t {
		if id == participantID {
			return i
		}
	}
	return -1
}
