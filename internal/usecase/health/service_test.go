package health

import (
	"context"
	"errors"
	"testing"
)

// --- Mocks ---

type mockDBPinger struct {
	err error
}

func (m *mockDBPinger) Ping(_ context.Context) error { return m.err }

type mockIndexChecker struct {
	err   error
	calls int
}

func (m *mockIndexChecker) CheckIndexes(_ context.Context) error {
	m.calls++
	return m.err
}

// --- Tests ---

func TestCheck_AllHealthy(t *testing.T) {
	svc := New(&mockDBPinger{}, &mockIndexChecker{})
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	if r.Checks["database"] != CheckOK {
		t.Errorf("expected database %q, got %q", CheckOK, r.Checks["database"])
	}
	if r.Checks["indexes"] != CheckOK {
		t.Errorf("expected indexes %q, got %q", CheckOK, r.Checks["indexes"])
	}
}

func TestCheck_DBError(t *testing.T) {
	idx := &mockIndexChecker{}
	svc := New(&mockDBPinger{err: errors.New("conn refused")}, idx)
	r := svc.Check(context.Background())

	if r.Status != Unhealthy {
		t.Errorf("expected %q, got %q", Unhealthy, r.Status)
	}
	if r.Checks["database"] != CheckError {
		t.Errorf("expected database %q, got %q", CheckError, r.Checks["database"])
	}
	if idx.calls != 0 {
		t.Errorf("index check ran %d times against an unreachable store", idx.calls)
	}
}

func TestCheck_IndexMissing(t *testing.T) {
	svc := New(&mockDBPinger{}, &mockIndexChecker{err: errors.New("index not found")})
	r := svc.Check(context.Background())

	if r.Status != Degraded {
		t.Errorf("expected %q, got %q", Degraded, r.Status)
	}
	if r.Checks["database"] != CheckOK {
		t.Errorf("expected database %q, got %q", CheckOK, r.Checks["database"])
	}
	if r.Checks["indexes"] != CheckError {
		t.Errorf("expected indexes %q, got %q", CheckError, r.Checks["indexes"])
	}
}

func TestCheck_NoIndexes(t *testing.T) {
	svc := New(&mockDBPinger{}, nil)
	r := svc.Check(context.Background())

	if r.Status != Healthy {
		t.Errorf("expected %q, got %q", Healthy, r.Status)
	}
	if _, ok := r.Checks["indexes"]; ok {
		t.Error("indexes check should be absent when no checker is configured")
	}
}
