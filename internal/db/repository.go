// Package db provides the SQL operations backing the presence engine.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/meridianchat/presenced/internal/models"
)

// Querier is the subset of database/sql shared by *sql.DB and *sql.Tx.
// Operations that must participate in a caller-managed transaction take a
// Querier so the transaction is always explicit, never ambient.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Repository provides presence storage operations.
type Repository struct {
	db *sql.DB

	// Prepared statement cache for frequently used point lookups.
	stmtCache sync.Map // map[string]*sql.Stmt
}

// NewRepository creates a new Repository instance.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// DB returns the underlying sql.DB for non-transactional reads.
func (r *Repository) DB() *sql.DB {
	return r.db
}

// Begin starts a read-write transaction.
func (r *Repository) Begin(ctx context.Context) (*sql.Tx, error) {
	return r.db.BeginTx(ctx, nil)
}

// BeginRead starts the transaction used by sync so the subscription lookup
// and the stream query observe one consistent snapshot. SQLite transactions
// are snapshot-isolated regardless of the ReadOnly flag, which not every
// driver supports, so this uses default options.
func (r *Repository) BeginRead(ctx context.Context) (*sql.Tx, error) {
	return r.db.BeginTx(ctx, nil)
}

// prepareStmt gets or creates a prepared statement from the cache.
func (r *Repository) prepareStmt(query string) (*sql.Stmt, error) {
	if stmt, ok := r.stmtCache.Load(query); ok {
		return stmt.(*sql.Stmt), nil
	}

	stmt, err := r.db.Prepare(query)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}

	actual, loaded := r.stmtCache.LoadOrStore(query, stmt)
	if loaded {
		// Another goroutine already prepared this, close our duplicate
		stmt.Close()
		return actual.(*sql.Stmt), nil
	}

	return stmt, nil
}

// Close closes all cached prepared statements.
func (r *Repository) Close() error {
	var firstErr error
	r.stmtCache.Range(func(key, value any) bool {
		stmt := value.(*sql.Stmt)
		if err := stmt.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		return true
	})
	return firstErr
}

// placeholders builds a "?, ?, ?" list for IN clauses.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func stringArgs(ids []string) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

// =====================================================
// PresenceStatus Operations
// =====================================================

// StatusByUser retrieves the current presence row for a user.
// Returns (nil, nil) when the user has never recorded a status.
func (r *Repository) StatusByUser(ctx context.Context, userID string) (*models.PresenceStatus, error) {
	query := `
	SELECT user_id, event_id, presence, status_msg, updated_at
	FROM presence_status WHERE user_id = ?
	`
	stmt, err := r.prepareStmt(query)
	if err != nil {
		return nil, err
	}
	return scanStatus(stmt.QueryRowContext(ctx, userID))
}

// StatusByUserTx is StatusByUser inside a caller-managed transaction.
func (r *Repository) StatusByUserTx(ctx context.Context, q Querier, userID string) (*models.PresenceStatus, error) {
	query := `
	SELECT user_id, event_id, presence, status_msg, updated_at
	FROM presence_status WHERE user_id = ?
	`
	return scanStatus(q.QueryRowContext(ctx, query, userID))
}

func scanStatus(row *sql.Row) (*models.PresenceStatus, error) {
	var status models.PresenceStatus
	var statusMsg sql.NullString
	err := row.Scan(&status.UserID, &status.EventID, &status.Presence,
		&statusMsg, &status.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if statusMsg.Valid {
		status.StatusMsg = statusMsg.String
	}
	return &status, nil
}

// UpsertStatus writes the current presence row for a user, creating it on
// first update. Must run in the same transaction as the paired stream insert.
func (r *Repository) UpsertStatus(ctx context.Context, q Querier, status *models.PresenceStatus) error {
	query := `
	INSERT INTO presence_status (user_id, event_id, presence, status_msg, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		event_id = excluded.event_id,
		presence = excluded.presence,
		status_msg = excluded.status_msg,
		updated_at = excluded.updated_at
	`
	var statusMsg any
	if status.StatusMsg != "" {
		statusMsg = status.StatusMsg
	}
	_, err := q.ExecContext(ctx, query, status.UserID, status.EventID,
		status.Presence, statusMsg, status.UpdatedAt)
	return err
}

// =====================================================
// PresenceStream Operations
// =====================================================

// InsertStreamEvent appends one transition to the stream and returns the
// ordering assigned by the global counter. Must run in the same transaction
// as the paired status upsert.
func (r *Repository) InsertStreamEvent(ctx context.Context, q Querier, event *models.StreamEvent) (int64, error) {
	query := `
	INSERT INTO presence_stream (event_id, user_id, presence, avatar_url, displayname, created_at)
	VALUES (?, ?, ?, ?, ?, ?)
	RETURNING ordering
	`
	var avatarURL, displayname any
	if event.AvatarURL != "" {
		avatarURL = event.AvatarURL
	}
	if event.Displayname != "" {
		displayname = event.Displayname
	}

	var ordering int64
	err := q.QueryRowContext(ctx, query, event.EventID, event.UserID,
		event.Presence, avatarURL, displayname, event.CreatedAt).Scan(&ordering)
	if err != nil {
		return 0, err
	}
	event.Ordering = ordering
	return ordering, nil
}

// LatestStreamPerUser returns, for each given user, that user's stream entry
// with the highest ordering, restricted to ordering > since when since >= 0.
// Users with no matching entries are simply absent from the result.
//
// The latest-per-group aggregation happens in SQL (GROUP BY + MAX joined
// back), not by scanning rows in application memory.
func (r *Repository) LatestStreamPerUser(ctx context.Context, q Querier, userIDs []string, since int64) ([]*models.StreamEvent, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}

	inner := fmt.Sprintf(`
		SELECT MAX(ordering) FROM presence_stream
		WHERE user_id IN (%s)`, placeholders(len(userIDs)))
	args := stringArgs(userIDs)
	if since >= 0 {
		inner += " AND ordering > ?"
		args = append(args, since)
	}
	inner += " GROUP BY user_id"

	query := fmt.Sprintf(`
	SELECT ordering, event_id, user_id, presence, avatar_url, displayname, created_at
	FROM presence_stream
	WHERE ordering IN (%s)`, inner)

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*models.StreamEvent
	for rows.Next() {
		var event models.StreamEvent
		var avatarURL, displayname sql.NullString
		err := rows.Scan(&event.Ordering, &event.EventID, &event.UserID,
			&event.Presence, &avatarURL, &displayname, &event.CreatedAt)
		if err != nil {
			return nil, err
		}
		if avatarURL.Valid {
			event.AvatarURL = avatarURL.String
		}
		if displayname.Valid {
			event.Displayname = displayname.String
		}
		events = append(events, &event)
	}
	return events, rows.Err()
}

// =====================================================
// PresenceList Operations
// =====================================================

// InsertListEdges adds subscription edges from observer to each observed
// user. Re-inviting an already observed user is a no-op.
func (r *Repository) InsertListEdges(ctx context.Context, q Querier, observerID string, observedIDs []string) error {
	if len(observedIDs) == 0 {
		return nil
	}
	query := `
	INSERT INTO presence_list (user_id, observed_user_id)
	VALUES (?, ?)
	ON CONFLICT(user_id, observed_user_id) DO NOTHING
	`
	for _, observed := range observedIDs {
		if _, err := q.ExecContext(ctx, query, observerID, observed); err != nil {
			return err
		}
	}
	return nil
}

// DeleteListEdges removes subscription edges; missing edges are not an error.
func (r *Repository) DeleteListEdges(ctx context.Context, q Querier, observerID string, observedIDs []string) error {
	if len(observedIDs) == 0 {
		return nil
	}
	query := fmt.Sprintf(`
	DELETE FROM presence_list
	WHERE user_id = ? AND observed_user_id IN (%s)`, placeholders(len(observedIDs)))

	args := append([]any{observerID}, stringArgs(observedIDs)...)
	_, err := q.ExecContext(ctx, query, args...)
	return err
}

// ObservedUsers returns all users the observer is subscribed to.
func (r *Repository) ObservedUsers(ctx context.Context, q Querier, observerID string) ([]string, error) {
	query := `SELECT observed_user_id FROM presence_list WHERE user_id = ?`
	rows, err := q.QueryContext(ctx, query, observerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		users = append(users, id)
	}
	return users, rows.Err()
}

// =====================================================
// User / Profile / Token Operations
// =====================================================

// MissingUsers returns the subset of userIDs that do not exist.
func (r *Repository) MissingUsers(ctx context.Context, q Querier, userIDs []string) ([]string, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`SELECT id FROM users WHERE id IN (%s)`, placeholders(len(userIDs)))
	rows, err := q.QueryContext(ctx, query, stringArgs(userIDs)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	found := make(map[string]bool, len(userIDs))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		found[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var missing []string
	for _, id := range userIDs {
		if !found[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// ProfilesByUsers returns the profiles for the given users, keyed by user ID.
// Users without a profile row are absent from the map.
func (r *Repository) ProfilesByUsers(ctx context.Context, q Querier, userIDs []string) (map[string]*models.Profile, error) {
	profiles := make(map[string]*models.Profile)
	if len(userIDs) == 0 {
		return profiles, nil
	}
	query := fmt.Sprintf(`
	SELECT user_id, avatar_url, displayname
	FROM profiles WHERE user_id IN (%s)`, placeholders(len(userIDs)))

	rows, err := q.QueryContext(ctx, query, stringArgs(userIDs)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var profile models.Profile
		var avatarURL, displayname sql.NullString
		if err := rows.Scan(&profile.UserID, &avatarURL, &displayname); err != nil {
			return nil, err
		}
		if avatarURL.Valid {
			profile.AvatarURL = avatarURL.String
		}
		if displayname.Valid {
			profile.Displayname = displayname.String
		}
		profiles[profile.UserID] = &profile
	}
	return profiles, rows.Err()
}

// UserForToken resolves an access token to a user ID.
// Returns ("", nil) for an unknown token.
func (r *Repository) UserForToken(ctx context.Context, token string) (string, error) {
	query := `SELECT user_id FROM access_tokens WHERE token = ?`
	stmt, err := r.prepareStmt(query)
	if err != nil {
		return "", err
	}
	var userID string
	err = stmt.QueryRowContext(ctx, token).Scan(&userID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return userID, nil
}

// CreateUser registers a user identifier. Identity is externally owned; this
// exists for provisioning and tests.
func (r *Repository) CreateUser(ctx context.Context, userID string) error {
	query := `INSERT INTO users (id, created_at) VALUES (?, ?)`
	_, err := r.db.ExecContext(ctx, query, userID, time.Now().UnixMilli())
	return err
}

// CreateAccessToken associates a token with a user.
func (r *Repository) CreateAccessToken(ctx context.Context, token, userID string) error {
	query := `INSERT INTO access_tokens (token, user_id) VALUES (?, ?)`
	_, err := r.db.ExecContext(ctx, query, token, userID)
	return err
}

// SetProfile stores or replaces a user's profile.
func (r *Repository) SetProfile(ctx context.Context, profile *models.Profile) error {
	query := `
	INSERT INTO profiles (user_id, avatar_url, displayname)
	VALUES (?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		avatar_url = excluded.avatar_url,
		displayname = excluded.displayname
	`
	var avatarURL, displayname any
	if profile.AvatarURL != "" {
		avatarURL = profile.AvatarURL
	}
	if profile.Displayname != "" {
		displayname = profile.Displayname
	}
	_, err := r.db.ExecContext(ctx, query, profile.UserID, avatarURL, displayname)
	return err
}
