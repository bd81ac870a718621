package resilience

import (
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsTransient_ExplicitTransientError(t *testing.T) {
	err := fmt.Errorf("save: %w", NewTransientError(errors.New("busy")))
	if !IsTransient(err) {
		t.Error("expected wrapped TransientError to be transient")
	}
}

func TestIsTransient_NilError(t *testing.T) {
	if IsTransient(nil) {
		t.Error("nil error should not be transient")
	}
}

func TestIsTransient_RegularError(t *testing.T) {
	if IsTransient(errors.New("no such table: comps")) {
		t.Error("schema error should not be transient")
	}
}

func TestIsTransient_SQLiteLockStrings(t *testing.T) {
	for _, msg := range []string{
		"database is locked (5) (SQLITE_BUSY)",
		"database table is locked",
		"SQLITE_LOCKED_SHAREDCACHE",
	} {
		if !IsTransient(errors.New(msg)) {
			t.Errorf("expected %q to be transient", msg)
		}
	}
}

func TestIsTransient_PostgresCodes(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"40001", true},
		{"40P01", true},
		{"55P03", true},
		{"23505", false},
		{"42P01", false},
	}
	for _, tt := range tests {
		err := fmt.Errorf("postgres: save: %w", &pgconn.PgError{Code: tt.code})
		if got := IsTransient(err); got != tt.want {
			t.Errorf("code %s: expected %v, got %v", tt.code, tt.want, got)
		}
	}
}

func TestIsTransient_Network(t *testing.T) {
	if !IsTransient(&net.DNSError{IsTimeout: true, Err: "timeout"}) {
		t.Error("network timeout should be transient")
	}
	if !IsTransient(fmt.Errorf("dial tcp: %w", syscall.ECONNREFUSED)) {
		t.Error("ECONNREFUSED should be transient")
	}
	if !IsTransient(fmt.Errorf("write tcp: %w", syscall.ECONNRESET)) {
		t.Error("ECONNRESET should be transient")
	}
}

func TestIsBusy_PlainError(t *testing.T) {
	if IsBusy(errors.New("database is locked")) {
		t.Error("IsBusy only matches driver errors")
	}
}

func TestTransientError_Unwrap(t *testing.T) {
	inner := errors.New("root cause")
	te := NewTransientError(inner)
	if !errors.Is(te, inner) {
		t.Error("TransientError should unwrap to the inner error")
	}
	if te.Error() != "root cause" {
		t.Errorf("unexpected message %q", te.Error())
	}
}
