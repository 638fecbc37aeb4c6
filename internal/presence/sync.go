package presence

import (
	"context"
	"fmt"

	apperrors "github.com/meridianchat/presenced/internal/errors"
	"github.com/meridianchat/presenced/internal/models"
)

// NoCursor requests every observed user's most recent transition.
const NoCursor int64 = -1

// Sync answers "what changed in my observed users' presence since cursor
// since". It returns at most one event per observed user: the latest
// transition with ordering > since, projected through the staleness rules at
// the current time. The returned cursor is the maximum ordering seen, or the
// input cursor unchanged when nothing matched.
//
// The subscription lookup and the stream query run inside one read
// transaction so an edge added concurrently is either fully reflected or not
// at all. The order of the returned events carries no meaning.
//
// timeoutMS overrides the server-wide staleness window when positive.
func (e *Engine) Sync(ctx context.Context, observerID string, since, timeoutMS int64) (int64, []models.PresenceEvent, error) {
	if timeoutMS <= 0 {
		timeoutMS = e.timeoutMS
	}

	tx, err := e.repo.BeginRead(ctx)
	if err != nil {
		return since, nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to begin sync transaction", err)
	}
	defer tx.Rollback()

	observed, err := e.repo.ObservedUsers(ctx, tx, observerID)
	if err != nil {
		return since, nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to load presence list", err)
	}

	entries, err := e.repo.LatestStreamPerUser(ctx, tx, observed, since)
	if err != nil {
		return since, nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to query presence stream", err)
	}

	// Older stream rows predate profile denormalization; fetch profiles for
	// those within the same snapshot.
	var bare []string
	for _, entry := range entries {
		if entry.AvatarURL == "" && entry.Displayname == "" {
			bare = append(bare, entry.UserID)
		}
	}
	profiles, err := e.repo.ProfilesByUsers(ctx, tx, bare)
	if err != nil {
		return since, nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to load profiles", err)
	}

	if err := tx.Commit(); err != nil {
		return since, nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to finish sync transaction", err)
	}

	now := e.clock.Now().UnixMilli()
	cursor := since
	events := make([]models.PresenceEvent, 0, len(entries))

	for _, entry := range entries {
		state, err := entry.State()
		if err != nil {
			return since, nil, apperrors.Wrap(apperrors.ErrDataCorruption,
				fmt.Sprintf("stream entry %s is corrupted", entry.EventID), err)
		}

		proj, err := Project(state, entry.CreatedAt, now, timeoutMS, e.mode)
		if err != nil {
			return since, nil, err
		}

		if entry.Ordering > cursor {
			cursor = entry.Ordering
		}

		avatarURL := entry.AvatarURL
		displayname := entry.Displayname
		if avatarURL == "" && displayname == "" {
			if profile, ok := profiles[entry.UserID]; ok {
				avatarURL = profile.AvatarURL
				displayname = profile.Displayname
			}
		}

		events = append(events, models.PresenceEvent{
			Content: models.PresenceEventContent{
				Presence:        proj.Effective,
				CurrentlyActive: proj.CurrentlyActive,
				LastActiveAgo:   proj.LastActiveAgo,
				AvatarURL:       avatarURL,
				Displayname:     displayname,
				UserID:          entry.UserID,
			},
			Type:    models.EventTypePresence,
			EventID: entry.EventID,
		})
	}

	return cursor, events, nil
}
