package storage

import (
	"context"
	"fmt"

	"github.com/KevinKickass/OpenProfinetDevice/internal/logging"
	"github.com/KevinKickass/OpenProfinetDevice/internal/profinet"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// DB is the part of *pgxpool.Pool the journal uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS connection_events (
		id               UUID PRIMARY KEY,
		session_id       UUID NOT NULL,
		station_name     TEXT NOT NULL,
		kind             TEXT NOT NULL,
		arep             BIGINT NOT NULL,
		slot             INTEGER NOT NULL DEFAULT 0,
		subslot          INTEGER NOT NULL DEFAULT 0,
		module_id        BIGINT NOT NULL DEFAULT 0,
		submodule_id     BIGINT NOT NULL DEFAULT 0,
		error_class      INTEGER NOT NULL DEFAULT 0,
		error_code       INTEGER NOT NULL DEFAULT 0,
		error_class_text TEXT NOT NULL DEFAULT '',
		error_code_text  TEXT NOT NULL DEFAULT '',
		created_at       TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS connection_events_session_idx ON connection_events (session_id)`,
}

// Journal writes runtime notifications as connection events. Record and
// Run must not be used concurrently.
type Journal struct {
	db          DB
	stationName string
	logger      logging.Logger

	session uuid.UUID
}

func NewJournal(db DB, stationName string, logger logging.Logger) *Journal {
	return &Journal{db: db, stationName: stationName, logger: logger}
}

func (j *Journal) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := j.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create journal schema: %w", err)
		}
	}
	return nil
}

// Session returns the id of the current AR session, uuid.Nil while no
// controller is connected.
func (j *Journal) Session() uuid.UUID {
	return j.session
}

// Record stores n. Notifications without journal meaning are skipped.
func (j *Journal) Record(ctx context.Context, n profinet.Notification) error {
	ev := ConnectionEvent{
		ID:          uuid.New(),
		StationName: j.stationName,
		AREP:        n.AREP,
		CreatedAt:   n.Timestamp,
	}

	switch n.Type {
	case profinet.NotificationStateChanged:
		if n.State != profinet.StateConnected {
			return nil
		}
		j.session = uuid.New()
		ev.Kind = EventConnect
	case profinet.NotificationConnectionAborted:
		ev.Kind = EventAbort
		ev.ErrorClass, ev.ErrorCode = n.ErrorClass, n.ErrorCode
		ev.ErrorClassText, ev.ErrorCodeText = n.ErrorClassText, n.ErrorCodeText
	case profinet.NotificationAlarm:
		ev.Kind = EventAlarm
		ev.Slot, ev.Subslot = n.Slot, n.Subslot
	case profinet.NotificationSubmodulePlugged:
		ev.Kind = EventPlug
		ev.Slot, ev.Subslot = n.Slot, n.Subslot
		ev.ModuleID, ev.SubmoduleID = n.ModuleID, n.SubmoduleID
	default:
		return nil
	}

	if j.session == uuid.Nil {
		// plug indications arrive before the AR is established
		j.session = uuid.New()
	}
	ev.SessionID = j.session
	if n.Type == profinet.NotificationConnectionAborted {
		j.session = uuid.Nil
	}

	return j.insert(ctx, ev)
}

func (j *Journal) insert(ctx context.Context, ev ConnectionEvent) error {
	_, err := j.db.Exec(ctx, `
		INSERT INTO connection_events (id, session_id, station_name, kind, arep, slot, subslot,
			module_id, submodule_id, error_class, error_code, error_class_text, error_code_text, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, ev.ID, ev.SessionID, ev.StationName, string(ev.Kind), int64(ev.AREP), int32(ev.Slot), int32(ev.Subslot),
		int64(ev.ModuleID), int64(ev.SubmoduleID), int32(ev.ErrorClass), int32(ev.ErrorCode),
		ev.ErrorClassText, ev.ErrorCodeText, ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert %s event: %w", ev.Kind, err)
	}
	return nil
}

// Run records notifications until ctx is done or events is closed.
func (j *Journal) Run(ctx context.Context, events <-chan profinet.Notification) {
	j.logger.Info("Connection journal started", zap.String("station_name", j.stationName))
	defer j.logger.Info("Connection journal stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-events:
			if !ok {
				return
			}
			if err := j.Record(ctx, n); err != nil {
				j.logger.Error("Failed to record connection event",
					zap.String("type", string(n.Type)),
					zap.Error(err))
			}
		}
	}
}

// Recent returns the newest events first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]ConnectionEvent, error) {
	rows, err := j.db.Query(ctx, `
		SELECT id, session_id, station_name, kind, arep, slot, subslot, module_id, submodule_id,
		       error_class, error_code, error_class_text, error_code_text, created_at
		FROM connection_events
		WHERE station_name = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, j.stationName, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	defer rows.Close()

	var events []ConnectionEvent
	for rows.Next() {
		var (
			ev          ConnectionEvent
			kind        string
			arep        int64
			moduleID    int64
			submoduleID int64
			slot        int32
			subslot     int32
			errorClass  int32
			errorCode   int32
		)
		if err := rows.Scan(&ev.ID, &ev.SessionID, &ev.StationName, &kind, &arep, &slot, &subslot,
			&moduleID, &submoduleID, &errorClass, &errorCode, &ev.ErrorClassText, &ev.ErrorCodeText,
			&ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan journal row: %w", err)
		}
		ev.Kind = EventKind(kind)
		ev.AREP = uint32(arep)
		ev.Slot, ev.Subslot = uint16(slot), uint16(subslot)
		ev.ModuleID, ev.SubmoduleID = uint32(moduleID), uint32(submoduleID)
		ev.ErrorClass, ev.ErrorCode = uint16(errorClass), uint16(errorCode)
		events = append(events, ev)
	}

	return events, rows.Err()
}
