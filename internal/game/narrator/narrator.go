// Package narrator turns structured resolution outcomes into prose.
//
// The engine treats narration as a black box: any implementation may be
// plugged in (including a remote model), and the templated fallback keeps
// sessions fully playable when that collaborator is unavailable.
package narrator

import (
	"context"
	"fmt"
	"time"

	"github.com/oligibbons/one-mind-many-sub000/internal/game/domain"
)

// DefaultTimeout bounds one primary narration call. Resolution holds the
// session lock while narrating, so a primary that does not answer in time is
// abandoned in favor of the templated fallback.
const DefaultTimeout = 2 * time.Second

// Outcome is the structured description of one resolved action handed to the
// narrator. It deliberately omits the acting participant and their intention
// tag wording: prose must describe what the shared character did, never who
// steered it.
type Outcome struct {
	Round        int
	Action       domain.ActionType
	LocationName string
	TargetName   string
	Dropped      bool
	EffectNotes  []string
}

// Narrator produces prose for a resolved action.
type Narrator interface {
	Narrate(ctx context.Context, outcome Outcome) (string, error)
}

// Templated is the built-in narrator. It is deterministic and needs no
// external collaborator.
type Templated struct{}

// Narrate renders a plain-text description of the outcome.
func (Templated) Narrate(_ context.Context, outcome Outcome) (string, error) {
	if outcome.Dropped {
		return fmt.Sprintf("The figure hesitates in %s, and the moment passes.", outcome.LocationName), nil
	}

	var line string
	switch outcome.Action {
	case domain.ActionMove:
		line = fmt.Sprintf("The figure presses on toward %s.", outcome.TargetName)
	case domain.ActionSearch:
		line = fmt.Sprintf("The figure searches %s.", outcome.LocationName)
	case domain.ActionInteract:
		line = fmt.Sprintf("In %s, the figure reaches for %s.", outcome.LocationName, outcome.TargetName)
	case domain.ActionSabotage:
		line = fmt.Sprintf("Something goes wrong near %s.", outcome.TargetName)
	case domain.ActionScheme:
		line = fmt.Sprintf("The figure lingers in %s, as if waiting for something.", outcome.LocationName)
	default:
		line = fmt.Sprintf("The figure acts in %s.", outcome.LocationName)
	}

	for _, note := range outcome.EffectNotes {
		line += " " + note
	}
	return line, nil
}

// withFallback wraps a primary narrator with the templated fallback.
type withFallback struct {
	primary  Narrator
	fallback Templated
	timeout  time.Duration
}

// WithFallback returns a narrator that consults primary first and degrades
// to templated prose when primary is nil, fails, or does not answer within
// DefaultTimeout.
func WithFallback(primary Narrator) Narrator {
	return WithFallbackTimeout(primary, DefaultTimeout)
}

// WithFallbackTimeout is WithFallback with an explicit primary-call timeout.
func WithFallbackTimeout(primary Narrator, timeout time.Duration) Narrator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return withFallback{primary: primary, timeout: timeout}
}

func (n withFallback) Narrate(ctx context.Context, outcome Outcome) (string, error) {
	if n.primary == nil {
		return n.fallback.Narrate(ctx, outcome)
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	type answer struct {
		prose string
		err   error
	}
	// Buffered so a primary that answers after the deadline does not leak
	// its goroutine.
	done := make(chan answer, 1)
	go func() {
		prose, err := n.primary.Narrate(ctx, outcome)
		done <- answer{prose: prose, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil || res.prose == "" {
			return n.fallback.Narrate(ctx, outcome)
		}
		return res.prose, nil
	case <-ctx.Done():
		return n.fallback.Narrate(context.Background(), outcome)
	}
}
