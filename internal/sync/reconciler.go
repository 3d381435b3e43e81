package sync

import (
	"database/sql"
	"errors"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/jewelchat/internal/store"
)

const historyKeyPrefix = "history:"

// Reconciler manages history sync checkpoints.
type Reconciler struct {
	db     *store.DB
	logger *zap.Logger
}

// NewReconciler creates a new reconciler.
func NewReconciler(db *store.DB, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{db: db, logger: logger}
}

// UpdateCheckpoint updates a sync checkpoint value.
func (r *Reconciler) UpdateCheckpoint(key, value string) error {
	now := time.Now().UnixMilli()
	_, err := r.db.Exec(`
		INSERT INTO sync_state (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, now)
	return err
}

// GetCheckpoint retrieves a sync checkpoint value. A missing key yields
// sql.ErrNoRows.
func (r *Reconciler) GetCheckpoint(key string) (string, error) {
	var value string
	err := r.db.QueryRow(`SELECT value FROM sync_state WHERE key = ?`, key).Scan(&value)
	if err != nil {
		return "", err
	}
	return value, nil
}

// MarkHistoryLoaded records when the history of peer was last loaded.
func (r *Reconciler) MarkHistoryLoaded(peer string, at time.Time) error {
	return r.UpdateCheckpoint(historyKeyPrefix+peer, strconv.FormatInt(at.UnixMilli(), 10))
}

// LastHistoryLoad returns when the history of peer was last loaded.
func (r *Reconciler) LastHistoryLoad(peer string) (time.Time, bool) {
	v, err := r.GetCheckpoint(historyKeyPrefix + peer)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			r.logger.Warn("read checkpoint", zap.String("peer", peer), zap.Error(err))
		}
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}
