package sqlite

import (
	"context"
	"database/sql"

	"millionx-backend/application/ports"
	"millionx-backend/domain/config"
	"millionx-backend/domain/core/aggregates"
	"millionx-backend/domain/core/valueobjects"
	"millionx-backend/domain/versioning"
	"millionx-backend/pkg/errors"
)

// SessionRepository stores sessions as schema-versioned JSON blobs.
// Every statement filters by user_id, so a session owned by another
// user is indistinguishable from a missing one.
type SessionRepository struct {
	db    *sql.DB
	codec *versioning.SnapshotCodec
	cfg   *config.DomainConfig
}

// NewSessionRepository creates the repository
func NewSessionRepository(db *sql.DB, codec *versioning.SnapshotCodec, cfg *config.DomainConfig) *SessionRepository {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	return &SessionRepository{db: db, codec: codec, cfg: cfg}
}

// Save upserts a session
func (r *SessionRepository) Save(ctx context.Context, session *aggregates.Exploration) error {
	nodesData, err := r.codec.EncodeNodes(session.Nodes())
	if err != nil {
		return errors.NewInternalError(err.Error())
	}
	connectionsData, err := r.codec.EncodeConnections(session.Connections())
	if err != nil {
		return errors.NewInternalError(err.Error())
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO knowledge_sessions
			(id, user_id, title, initial_query, schema_version, nodes_data, connections_data, node_count, checksum, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			schema_version = excluded.schema_version,
			nodes_data = excluded.nodes_data,
			connections_data = excluded.connections_data,
			node_count = excluded.node_count,
			checksum = excluded.checksum,
			updated_at = excluded.updated_at
		WHERE knowledge_sessions.user_id = excluded.user_id`,
		session.ID().String(),
		session.UserID(),
		session.Title(),
		session.InitialQuery(),
		versioning.CurrentSchemaVersion,
		nodesData,
		connectionsData,
		session.NodeCount(),
		versioning.Checksum(nodesData, connectionsData),
		session.CreatedAt().UTC(),
		session.UpdatedAt().UTC(),
	)
	if err != nil {
		return errors.NewDatabaseError("save session", err)
	}
	return nil
}

// FindByID loads and reconstructs a session the user owns
func (r *SessionRepository) FindByID(ctx context.Context, userID string, id valueobjects.SessionID) (*aggregates.Exploration, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT title, initial_query, schema_version, nodes_data, connections_data, created_at, updated_at
		FROM knowledge_sessions
		WHERE id = ? AND user_id = ?`,
		id.String(), userID)

	var (
		title           string
		initialQuery    string
		schemaVersion   int
		nodesData       string
		connectionsData string
		createdAt       sql.NullTime
		updatedAt       sql.NullTime
	)
	if err := row.Scan(&title, &initialQuery, &schemaVersion, &nodesData, &connectionsData, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("session")
		}
		return nil, errors.NewDatabaseError("load session", err)
	}

	nodes, err := r.codec.DecodeNodes(schemaVersion, nodesData)
	if err != nil {
		return nil, errors.NewDatabaseError("decode session nodes", err)
	}
	connections, err := r.codec.DecodeConnections(schemaVersion, connectionsData)
	if err != nil {
		return nil, errors.NewDatabaseError("decode session connections", err)
	}

	session, err := aggregates.ReconstructExploration(
		id, userID, title, initialQuery, nodes, connections,
		createdAt.Time, updatedAt.Time, r.cfg,
	)
	if err != nil {
		return nil, err
	}
	if err := session.Validate(); err != nil {
		return nil, errors.Wrap(err, "stored session failed validation")
	}
	return session, nil
}

// List returns session summaries newest-activity-first with the
// total count for pagination
func (r *SessionRepository) List(ctx context.Context, userID string, offset, limit int) ([]ports.SessionSummary, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM knowledge_sessions WHERE user_id = ?`, userID,
	).Scan(&total); err != nil {
		return nil, 0, errors.NewDatabaseError("count sessions", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, title, node_count, created_at, updated_at
		FROM knowledge_sessions
		WHERE user_id = ?
		ORDER BY updated_at DESC
		LIMIT ? OFFSET ?`,
		userID, limit, offset)
	if err != nil {
		return nil, 0, errors.NewDatabaseError("list sessions", err)
	}
	defer rows.Close()

	var summaries []ports.SessionSummary
	for rows.Next() {
		var (
			rawID     string
			summary   ports.SessionSummary
			createdAt sql.NullTime
			updatedAt sql.NullTime
		)
		if err := rows.Scan(&rawID, &summary.Title, &summary.NodeCount, &createdAt, &updatedAt); err != nil {
			return nil, 0, errors.NewDatabaseError("scan session row", err)
		}
		id, err := valueobjects.NewSessionIDFromString(rawID)
		if err != nil {
			return nil, 0, errors.NewDatabaseError("parse session ID", err)
		}
		summary.ID = id
		summary.CreatedAt = createdAt.Time
		summary.UpdatedAt = updatedAt.Time
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.NewDatabaseError("iterate sessions", err)
	}
	return summaries, total, nil
}

// Delete removes a session the user owns
func (r *SessionRepository) Delete(ctx context.Context, userID string, id valueobjects.SessionID) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM knowledge_sessions WHERE id = ? AND user_id = ?`,
		id.String(), userID)
	if err != nil {
		return errors.NewDatabaseError("delete session", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return errors.NewDatabaseError("delete session", err)
	}
	if affected == 0 {
		return errors.NewNotFoundError("session")
	}
	return nil
}
