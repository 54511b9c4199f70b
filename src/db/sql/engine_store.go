package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ledger-server/src/engine"
	"ledger-server/src/models"
)

// EngineStore adapts the pool-backed SQL functions to the rule engine's
// EntityStore interface.
type EngineStore struct {
	Pool *pgxpool.Pool
}

func (s *EngineStore) FindOrCreateByName(ctx context.Context, userID int64, kind models.EntityKind, name string) (int64, error) {
	return FindOrCreateEntity(ctx, s.Pool, userID, kind, name)
}

func (s *EngineStore) EntityName(ctx context.Context, userID int64, kind models.EntityKind, id int64) (string, error) {
	name, err := GetEntityName(ctx, s.Pool, userID, kind, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", engine.ErrNotFound
	}
	return name, err
}

func (s *EngineStore) SetCategory(ctx context.Context, txnID, categoryID int64) error {
	return SetTransactionCategory(ctx, s.Pool, txnID, categoryID)
}

func (s *EngineStore) SetMerchant(ctx context.Context, txnID, merchantID int64) error {
	return SetTransactionMerchant(ctx, s.Pool, txnID, merchantID)
}

func (s *EngineStore) AttachTag(ctx context.Context, txnID, tagID int64) error {
	return AttachTransactionTag(ctx, s.Pool, txnID, tagID)
}

func (s *EngineStore) DetachTag(ctx context.Context, txnID, tagID int64) error {
	return DetachTransactionTag(ctx, s.Pool, txnID, tagID)
}

func (s *EngineStore) DetachAllTags(ctx context.Context, txnID int64) error {
	return DetachAllTransactionTags(ctx, s.Pool, txnID)
}

func (s *EngineStore) SetDescription(ctx context.Context, txnID int64, description string) error {
	return SetTransactionDescription(ctx, s.Pool, txnID, description)
}

func (s *EngineStore) SetNote(ctx context.Context, txnID int64, note string) error {
	return SetTransactionNote(ctx, s.Pool, txnID, note)
}

func (s *EngineStore) SetType(ctx context.Context, txnID int64, txnType string) error {
	return SetTransactionType(ctx, s.Pool, txnID, txnType)
}

func (s *EngineStore) MarkReconciled(ctx context.Context, txnID int64, at time.Time) error {
	return MarkTransactionReconciled(ctx, s.Pool, txnID, at)
}

// EngineLog adapts the execution log SQL to the engine's LogRecorder.
type EngineLog struct {
	Pool *pgxpool.Pool
}

func (l *EngineLog) Record(ctx context.Context, entry *models.ExecutionLogEntry) error {
	return InsertExecutionLog(ctx, l.Pool, entry)
}
