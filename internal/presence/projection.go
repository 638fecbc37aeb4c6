package presence

import (
	"fmt"

	"github.com/meridianchat/presenced/internal/config"
	apperrors "github.com/meridianchat/presenced/internal/errors"
	"github.com/meridianchat/presenced/internal/models"
)

// Projection is the effective presence derived from a stored state and the
// current time. It is computed fresh on every read and never persisted.
type Projection struct {
	Effective       models.PresenceState
	CurrentlyActive bool
	LastActiveAgo   int64 // milliseconds
}

// Project derives the effective presence of a stored state.
//
// In threshold mode, a stored online state older than timeoutMS is reported
// as unavailable and not currently active; the stored value is untouched.
// In simple mode the stored state is reported as-is and currently_active is
// just (state == online).
//
// A clock that went backwards (now < updatedAt) is an explicit error, never
// silently clamped to zero.
func Project(state models.PresenceState, updatedAt, now, timeoutMS int64, mode config.ActivityMode) (Projection, error) {
	if now < updatedAt {
		return Projection{}, apperrors.New(apperrors.ErrBadClock,
			fmt.Sprintf("status updated at %d which is after now %d", updatedAt, now))
	}

	proj := Projection{
		Effective:       state,
		CurrentlyActive: state == models.PresenceOnline,
		LastActiveAgo:   now - updatedAt,
	}

	if mode == config.ActivityThreshold &&
		state == models.PresenceOnline &&
		proj.LastActiveAgo > timeoutMS {
		proj.Effective = models.PresenceUnavailable
		proj.CurrentlyActive = false
	}

	return proj, nil
}
