// Package presence implements the presence tracking and distribution engine:
// the per-user status store, the append-only transition log, the subscription
// graph, and the sync algorithm that merges them into a client-facing view.
package presence

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/meridianchat/presenced/internal/config"
	"github.com/meridianchat/presenced/internal/db"
	apperrors "github.com/meridianchat/presenced/internal/errors"
	"github.com/meridianchat/presenced/internal/eventid"
	"github.com/meridianchat/presenced/internal/logging"
	"github.com/meridianchat/presenced/internal/models"
)

// Clock abstracts time for the staleness projection, injectable in tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// RoomMembershipCheck reports whether two users share a joined room.
// When configured, subscription invites additionally require a shared room.
type RoomMembershipCheck interface {
	SharesRoom(ctx context.Context, a, b string) (bool, error)
}

// Notifier receives each committed presence event. Delivery is best-effort;
// clients poll for correctness.
type Notifier interface {
	PresenceChanged(event models.PresenceEvent)
}

// Engine composes the status store, transition log and subscription graph
// over one repository. All mutual exclusion is delegated to the database:
// every mutating operation runs in a single explicit transaction.
type Engine struct {
	repo      *db.Repository
	domain    string
	timeoutMS int64
	mode      config.ActivityMode
	clock     Clock
	rooms     RoomMembershipCheck
	notifier  Notifier
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces the wall clock, for tests.
func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithRoomCheck enables the shared-room authorization variant for invites.
func WithRoomCheck(rc RoomMembershipCheck) Option {
	return func(e *Engine) { e.rooms = rc }
}

// WithNotifier attaches a best-effort live event sink.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// NewEngine creates a presence engine.
func NewEngine(repo *db.Repository, cfg *config.Config, opts ...Option) *Engine {
	e := &Engine{
		repo:      repo,
		domain:    cfg.Domain,
		timeoutMS: cfg.PresenceTimeoutMS,
		mode:      cfg.ActivityMode,
		clock:     systemClock{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// UpsertStatus records a new presence state for a user. In one transaction it
// appends a transition to the stream and creates or updates the user's status
// row; either both writes commit or neither does. Each call produces exactly
// one stream entry.
func (e *Engine) UpsertStatus(ctx context.Context, userID string, state models.PresenceState, statusMsg string) error {
	tx, err := e.repo.Begin(ctx)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	now := e.clock.Now().UnixMilli()
	id := eventid.New(e.domain)

	// Denormalize the profile into the stream row so sync can usually skip
	// the profile lookup.
	profiles, err := e.repo.ProfilesByUsers(ctx, tx, []string{userID})
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to load profile", err)
	}

	event := &models.StreamEvent{
		EventID:   id,
		UserID:    userID,
		Presence:  state.String(),
		CreatedAt: now,
	}
	if profile, ok := profiles[userID]; ok {
		event.AvatarURL = profile.AvatarURL
		event.Displayname = profile.Displayname
	}

	if _, err := e.repo.InsertStreamEvent(ctx, tx, event); err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to append presence stream", err)
	}

	status := &models.PresenceStatus{
		UserID:    userID,
		EventID:   id,
		Presence:  state.String(),
		StatusMsg: statusMsg,
		UpdatedAt: now,
	}
	if err := e.repo.UpsertStatus(ctx, tx, status); err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to upsert presence status", err)
	}

	if err := tx.Commit(); err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to commit presence update", err)
	}

	logging.Debug("presence updated", map[string]interface{}{
		"user_id":  userID,
		"presence": state.String(),
		"ordering": event.Ordering,
	})

	if e.notifier != nil {
		e.notifier.PresenceChanged(models.PresenceEvent{
			Content: models.PresenceEventContent{
				Presence:        state,
				CurrentlyActive: state == models.PresenceOnline,
				LastActiveAgo:   0,
				AvatarURL:       event.AvatarURL,
				Displayname:     event.Displayname,
				UserID:          userID,
			},
			Type:    models.EventTypePresence,
			EventID: id,
		})
	}
	return nil
}

// Status is the client-facing view of a single user's presence.
type Status struct {
	Presence        models.PresenceState `json:"presence"`
	StatusMsg       string               `json:"status_msg,omitempty"`
	CurrentlyActive bool                 `json:"currently_active"`
	LastActiveAgo   int64                `json:"last_active_ago"`
}

// Status returns the effective presence of a user, derived fresh from the
// stored row and the current time. A user with no recorded status is
// NOT_FOUND; an unparseable stored state is DATA_CORRUPTION, never a default.
func (e *Engine) Status(ctx context.Context, userID string) (*Status, error) {
	row, err := e.repo.StatusByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to load presence status", err)
	}
	if row == nil {
		return nil, apperrors.New(apperrors.ErrNotFound,
			fmt.Sprintf("no presence recorded for %s", userID))
	}

	state, err := row.State()
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDataCorruption,
			fmt.Sprintf("stored presence for %s is corrupted", userID), err)
	}

	proj, err := Project(state, row.UpdatedAt, e.clock.Now().UnixMilli(), e.timeoutMS, e.mode)
	if err != nil {
		return nil, err
	}

	return &Status{
		Presence:        proj.Effective,
		StatusMsg:       row.StatusMsg,
		CurrentlyActive: proj.CurrentlyActive,
		LastActiveAgo:   proj.LastActiveAgo,
	}, nil
}

// UpdateList applies a batch of subscription invites and drops for an
// observer in one transaction. Validation failures abort the whole call:
// either all validated edges are applied or none are. Re-inviting an already
// observed user is a no-op; dropping a non-existent edge is not an error.
func (e *Engine) UpdateList(ctx context.Context, observerID string, invite, drop []string) error {
	tx, err := e.repo.Begin(ctx)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	missing, err := e.repo.MissingUsers(ctx, tx, invite)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to validate invite list", err)
	}
	if len(missing) > 0 {
		return apperrors.New(apperrors.ErrUnknownUsers,
			fmt.Sprintf("unknown users in invite list: %s", strings.Join(missing, ", ")))
	}

	if e.rooms != nil {
		for _, observed := range invite {
			if observed == observerID {
				continue
			}
			shared, err := e.rooms.SharesRoom(ctx, observerID, observed)
			if err != nil {
				return apperrors.Wrap(apperrors.ErrInternal, "room membership check failed", err)
			}
			if !shared {
				return apperrors.New(apperrors.ErrForbidden,
					fmt.Sprintf("not authorized to observe presence for %s", observed))
			}
		}
	}

	if err := e.repo.InsertListEdges(ctx, tx, observerID, invite); err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to insert subscription edges", err)
	}

	missing, err = e.repo.MissingUsers(ctx, tx, drop)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to validate drop list", err)
	}
	if len(missing) > 0 {
		return apperrors.New(apperrors.ErrUnknownUsers,
			fmt.Sprintf("unknown users in drop list: %s", strings.Join(missing, ", ")))
	}

	if err := e.repo.DeleteListEdges(ctx, tx, observerID, drop); err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to delete subscription edges", err)
	}

	if err := tx.Commit(); err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to commit subscription update", err)
	}

	logging.Debug("presence list updated", map[string]interface{}{
		"user_id": observerID,
		"invited": len(invite),
		"dropped": len(drop),
	})
	return nil
}

// ObservedUsers returns the users the observer is subscribed to.
func (e *Engine) ObservedUsers(ctx context.Context, observerID string) ([]string, error) {
	users, err := e.repo.ObservedUsers(ctx, e.repo.DB(), observerID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to load presence list", err)
	}
	return users, nil
}
