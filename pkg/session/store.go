// Package session implements the SessionStore contract from spec §4.4,
// backed by the pgx connection pool in pkg/database. Grounded on the
// teacher's pkg/session (per-ID registry + lock pattern) and pkg/queue's
// per-session locking idiom, re-applied here to serialize AppendTurn
// against persistent rows instead of in-memory state.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/canadianpizza/orderbot-core/pkg/apierr"
	"github.com/canadianpizza/orderbot-core/pkg/models"
)

// Store is the SessionStore implementation.
type Store struct {
	pool *pgxpool.Pool

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex // per-session append lock, spec §4.4 concurrency rule
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, locks: make(map[string]*sync.Mutex)}
}

// Ping verifies the database connection pool is reachable, used by the
// /health endpoint's database check (spec §6.2).
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) lockFor(sessionID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[sessionID] = l
	}
	return l
}

// EnsureSession returns an existing open session for the user within the
// inactivity window, or creates a new one. Creation succeeds even when
// outletID is empty (spec §4.4 / §9's open issue).
func (s *Store) EnsureSession(ctx context.Context, userID, outletID string, lang models.Language, inactivityWindow time.Duration) (string, error) {
	cutoff := time.Now().Add(-inactivityWindow)

	var sessionID string
	err := s.pool.QueryRow(ctx,
		`SELECT session_id FROM sessions
		 WHERE user_id = $1 AND end_time IS NULL AND last_activity >= $2
		 ORDER BY last_activity DESC LIMIT 1`,
		userID, cutoff,
	).Scan(&sessionID)
	if err == nil {
		return sessionID, nil
	}
	if err != pgx.ErrNoRows {
		return "", apierr.NewPersistenceError("ensure_session_lookup", err)
	}

	sessionID = uuid.NewString()
	now := time.Now()
	_, err = s.pool.Exec(ctx,
		`INSERT INTO sessions (session_id, user_id, outlet_id, language, start_time, last_activity, message_count, intents, context)
		 VALUES ($1, $2, NULLIF($3, ''), $4, $5, $5, 0, '{}'::jsonb, '{}'::jsonb)`,
		sessionID, userID, outletID, string(lang), now,
	)
	if err != nil {
		return "", apierr.NewFatalError("ensure_session_create", err)
	}
	return sessionID, nil
}

// AppendTurn persists a turn and atomically updates the session's
// message_count and intents aggregate. Appends to the same session are
// serialized by a per-session mutex; different sessions proceed in
// parallel (spec §4.4).
func (s *Store) AppendTurn(ctx context.Context, msg models.StoredMessage) error {
	lock := s.lockFor(msg.SessionID)
	lock.Lock()
	defer lock.Unlock()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return apierr.NewPersistenceError("append_turn_begin", err)
	}
	defer tx.Rollback(ctx)

	var embedding any
	if len(msg.Embedding) > 0 {
		embedding = msg.Embedding
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO stored_messages (session_id, role, content, language, intent, confidence, timestamp, pii_scrubbed, embedding)
		 VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9)`,
		msg.SessionID, string(msg.Role), msg.Content, string(msg.Language), msg.Intent, msg.Confidence, msg.Timestamp, msg.PIIScrubbed, embedding,
	); err != nil {
		return apierr.NewPersistenceError("append_turn_insert", err)
	}

	if err := s.updateIntentAggregate(ctx, tx, msg.SessionID, msg.Intent, msg.Confidence); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE sessions SET message_count = message_count + 1, last_activity = $2 WHERE session_id = $1`,
		msg.SessionID, msg.Timestamp,
	); err != nil {
		return apierr.NewPersistenceError("append_turn_update_session", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return apierr.NewPersistenceError("append_turn_commit", err)
	}
	return nil
}

// updateIntentAggregate folds a new observation into the session's
// intents map (count + running mean confidence), stored as JSONB.
func (s *Store) updateIntentAggregate(ctx context.Context, tx pgx.Tx, sessionID, intent string, confidence float64) error {
	if intent == "" {
		return nil
	}

	var raw []byte
	if err := tx.QueryRow(ctx, `SELECT intents FROM sessions WHERE session_id = $1 FOR UPDATE`, sessionID).Scan(&raw); err != nil {
		return apierr.NewPersistenceError("append_turn_select_intents", err)
	}

	aggregates := map[string]*models.IntentAggregate{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &aggregates); err != nil {
			return apierr.NewPersistenceError("append_turn_decode_intents", err)
		}
	}

	agg, ok := aggregates[intent]
	if !ok {
		agg = &models.IntentAggregate{}
		aggregates[intent] = agg
	}
	agg.MeanConfidence = (agg.MeanConfidence*float64(agg.Count) + confidence) / float64(agg.Count+1)
	agg.Count++

	encoded, err := json.Marshal(aggregates)
	if err != nil {
		return apierr.NewPersistenceError("append_turn_encode_intents", err)
	}
	if _, err := tx.Exec(ctx, `UPDATE sessions SET intents = $2 WHERE session_id = $1`, sessionID, encoded); err != nil {
		return apierr.NewPersistenceError("append_turn_update_intents", err)
	}
	return nil
}

// RecentTurns returns the last n turns for a session, oldest-first.
func (s *Store) RecentTurns(ctx context.Context, sessionID string, n int) ([]models.StoredMessage, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT session_id, role, content, language, COALESCE(intent, ''), COALESCE(confidence, 0), timestamp, pii_scrubbed
		 FROM stored_messages WHERE session_id = $1 ORDER BY timestamp DESC LIMIT $2`,
		sessionID, n,
	)
	if err != nil {
		return nil, apierr.NewPersistenceError("recent_turns_query", err)
	}
	defer rows.Close()

	var turns []models.StoredMessage
	for rows.Next() {
		var m models.StoredMessage
		var role, lang string
		if err := rows.Scan(&m.SessionID, &role, &m.Content, &lang, &m.Intent, &m.Confidence, &m.Timestamp, &m.PIIScrubbed); err != nil {
			return nil, apierr.NewPersistenceError("recent_turns_scan", err)
		}
		m.Role = models.Role(role)
		m.Language = models.Language(lang)
		turns = append(turns, m)
	}
	if err := rows.Err(); err != nil {
		return nil, apierr.NewPersistenceError("recent_turns_iterate", err)
	}

	// Reverse into oldest-first order (spec §4.4).
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// EndSession explicitly closes a session.
func (s *Store) EndSession(ctx context.Context, sessionID string) error {
	now := time.Now()
	ct, err := s.pool.Exec(ctx, `UPDATE sessions SET end_time = $2 WHERE session_id = $1 AND end_time IS NULL`, sessionID, now)
	if err != nil {
		return apierr.NewPersistenceError("end_session", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("session %s not found or already ended", sessionID)
	}
	return nil
}

// SweepResult reports how many rows a sweep pass removed.
type SweepResult struct {
	MessagesDeleted int64
	SessionsClosed  int64
}

// SweepExpired closes sessions that have been inactive past
// inactivityWindow and deletes StoredMessage rows past retentionDays,
// per spec §3/§4.4. Intended to be called periodically by pkg/cleanup.
func (s *Store) SweepExpired(ctx context.Context, retentionDays int, inactivityWindow time.Duration) (SweepResult, error) {
	var result SweepResult

	closedTag, err := s.pool.Exec(ctx,
		`UPDATE sessions SET end_time = now() WHERE end_time IS NULL AND last_activity < $1`,
		time.Now().Add(-inactivityWindow),
	)
	if err != nil {
		return result, apierr.NewPersistenceError("sweep_close_sessions", err)
	}
	result.SessionsClosed = closedTag.RowsAffected()

	deletedTag, err := s.pool.Exec(ctx,
		`DELETE FROM stored_messages WHERE timestamp < $1`,
		time.Now().AddDate(0, 0, -retentionDays),
	)
	if err != nil {
		return result, apierr.NewPersistenceError("sweep_delete_messages", err)
	}
	result.MessagesDeleted = deletedTag.RowsAffected()

	return result, nil
}
