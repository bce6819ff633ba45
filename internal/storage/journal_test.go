package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/KevinKickass/OpenProfinetDevice/internal/profinet"
	"github.com/KevinKickass/OpenProfinetDevice/internal/stack"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type execCall struct {
	sql  string
	args []any
}

type fakeDB struct {
	execs   []execCall
	execErr error
	rows    [][]any
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, execCall{sql: sql, args: args})
	return pgconn.NewCommandTag("INSERT 0 1"), f.execErr
}

func (f *fakeDB) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	return &fakeRows{rows: f.rows, pos: -1}, nil
}

func (f *fakeDB) inserts() []execCall {
	var out []execCall
	for _, c := range f.execs {
		if strings.Contains(c.sql, "INSERT INTO connection_events") {
			out = append(out, c)
		}
	}
	return out
}

type fakeRows struct {
	rows [][]any
	pos  int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.NewCommandTag("SELECT") }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return r.rows[r.pos], nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	r.pos++
	return r.pos < len(r.rows)
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.rows[r.pos]
	if len(dest) != len(row) {
		return fmt.Errorf("scan: %d targets for %d columns", len(dest), len(row))
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *uuid.UUID:
			*p = row[i].(uuid.UUID)
		case *string:
			*p = row[i].(string)
		case *int64:
			*p = row[i].(int64)
		case *int32:
			*p = row[i].(int32)
		case *time.Time:
			*p = row[i].(time.Time)
		default:
			return fmt.Errorf("scan: unsupported target %T", d)
		}
	}
	return nil
}

func TestEnsureSchema(t *testing.T) {
	db := &fakeDB{}
	j := NewJournal(db, "echo-device", zap.NewNop())
	if err := j.EnsureSchema(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(db.execs) != 2 || !strings.Contains(db.execs[0].sql, "CREATE TABLE IF NOT EXISTS connection_events") {
		t.Fatalf("execs = %+v", db.execs)
	}

	db.execErr = errors.New("permission denied")
	if err := j.EnsureSchema(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestRecordSessions(t *testing.T) {
	db := &fakeDB{}
	j := NewJournal(db, "echo-device", zap.NewNop())
	ctx := context.Background()
	now := time.Now()

	notifications := []profinet.Notification{
		{Type: profinet.NotificationSubmodulePlugged, Slot: 1, Subslot: 1, ModuleID: 0x40, SubmoduleID: 0x140, Timestamp: now},
		{Type: profinet.NotificationStateChanged, State: profinet.StateConnected, AREP: 1, Timestamp: now},
		{Type: profinet.NotificationAlarm, Slot: 1, Subslot: 1, AREP: 1, Timestamp: now},
		{Type: profinet.NotificationStateChanged, State: profinet.StateWaitingForConnection, Timestamp: now},
		{
			Type: profinet.NotificationConnectionAborted, AREP: 1, Timestamp: now,
			ErrorClass: stack.ErrorClassRTAProtocol, ErrorCode: stack.AbortCMITimeout,
		},
		{Type: profinet.NotificationStateChanged, State: profinet.StateConnected, AREP: 2, Timestamp: now},
	}
	for _, n := range notifications {
		if err := j.Record(ctx, n); err != nil {
			t.Fatal(err)
		}
	}

	inserts := db.inserts()
	if len(inserts) != 5 {
		t.Fatalf("%d inserts, want 5", len(inserts))
	}

	kinds := []EventKind{EventPlug, EventConnect, EventAlarm, EventAbort, EventConnect}
	for i, want := range kinds {
		if got := inserts[i].args[3]; got != string(want) {
			t.Errorf("insert %d kind = %v, want %s", i, got, want)
		}
	}

	session := func(i int) uuid.UUID { return inserts[i].args[1].(uuid.UUID) }
	if session(1) == session(0) {
		t.Fatal("connect must open a new session")
	}
	if session(2) != session(1) || session(3) != session(1) {
		t.Fatal("alarm and abort belong to the connected session")
	}
	if session(4) == session(1) {
		t.Fatal("reconnect must open a new session")
	}
	if inserts[3].args[9] != int32(stack.ErrorClassRTAProtocol) || inserts[3].args[10] != int32(stack.AbortCMITimeout) {
		t.Fatalf("abort codes = %v %v", inserts[3].args[9], inserts[3].args[10])
	}
	if j.Session() != session(4) {
		t.Fatal("current session not tracked")
	}
}

func TestRunLogsFailures(t *testing.T) {
	db := &fakeDB{execErr: errors.New("connection refused")}
	core, logs := observer.New(zapcore.InfoLevel)
	j := NewJournal(db, "echo-device", zap.New(core))

	events := make(chan profinet.Notification, 2)
	events <- profinet.Notification{Type: profinet.NotificationAlarm}
	events <- profinet.Notification{Type: profinet.NotificationStateChanged, State: profinet.StateStopped}
	close(events)

	j.Run(context.Background(), events)

	if logs.FilterMessage("Failed to record connection event").Len() != 1 {
		t.Fatalf("logs = %v", logs.All())
	}
	if logs.FilterMessage("Connection journal stopped").Len() != 1 {
		t.Fatal("stop not logged")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	j := NewJournal(&fakeDB{}, "echo-device", zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		j.Run(ctx, make(chan profinet.Notification))
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
}

func TestRecent(t *testing.T) {
	id, session := uuid.New(), uuid.New()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	db := &fakeDB{rows: [][]any{{
		id, session, "echo-device", "abort", int64(7), int32(0), int32(0), int64(0), int64(0),
		int32(0xfd), int32(0x1f), "RTA protocol", "CMI timeout", at,
	}}}

	events, err := NewJournal(db, "echo-device", zap.NewNop()).Recent(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Fatalf("events = %+v", events)
	}
	ev := events[0]
	if ev.ID != id || ev.SessionID != session || ev.Kind != EventAbort || ev.AREP != 7 ||
		ev.ErrorClass != 0xfd || ev.ErrorCode != 0x1f || !ev.CreatedAt.Equal(at) {
		t.Fatalf("event = %+v", ev)
	}
}
