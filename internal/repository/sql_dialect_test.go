package repository

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/underwritepro/flowengine/internal/config"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time                         { return c.t }
func (c fixedClock) After(d time.Duration) <-chan time.Time { return time.After(0) }
func (c fixedClock) Sleep(d time.Duration)                  {}

func TestPlaceholderPerDialect(t *testing.T) {
	os.Setenv(config.DATABASE_TYPE, config.DATABASE_TYPE_POSTGRES)
	if got := placeholder(3); got != "$3" {
		t.Errorf("Expected $3 for postgres, got %s", got)
	}
	os.Setenv(config.DATABASE_TYPE, config.DATABASE_TYPE_MYSQL)
	if got := placeholder(3); got != "?" {
		t.Errorf("Expected ? for mysql, got %s", got)
	}
	os.Unsetenv(config.DATABASE_TYPE)
}

func TestDateBeforeNowUsesJuliandayOnSqlite(t *testing.T) {
	clock := fixedClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}

	os.Setenv(config.DATABASE_TYPE, config.DATABASE_TYPE_SQLLITE)
	if got := dateBeforeNow("due_at", clock); !strings.Contains(got, "julianday(due_at)") {
		t.Errorf("Expected julianday comparison for sqlite, got %s", got)
	}
	os.Setenv(config.DATABASE_TYPE, config.DATABASE_TYPE_POSTGRES)
	if got := dateBeforeNow("due_at", clock); got != "due_at <= '2026-03-01 12:00:00.000'" {
		t.Errorf("Unexpected postgres predicate: %s", got)
	}
	os.Unsetenv(config.DATABASE_TYPE)
}

func TestDateOlderThanMinutes(t *testing.T) {
	clock := fixedClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}

	os.Setenv(config.DATABASE_TYPE, config.DATABASE_TYPE_POSTGRES)
	defer os.Unsetenv(config.DATABASE_TYPE)
	got := dateOlderThanMinutes("claimed_at", 5, clock)
	if got != "claimed_at < '2026-03-01 11:55:00.000'" {
		t.Errorf("Unexpected cutoff predicate: %s", got)
	}
}

func TestBoolLiteral(t *testing.T) {
	os.Setenv(config.DATABASE_TYPE, config.DATABASE_TYPE_POSTGRES)
	if boolLiteral(true) != "TRUE" || boolLiteral(false) != "FALSE" {
		t.Error("Expected TRUE/FALSE literals for postgres")
	}
	os.Setenv(config.DATABASE_TYPE, config.DATABASE_TYPE_SQLLITE)
	if boolLiteral(true) != "1" || boolLiteral(false) != "0" {
		t.Error("Expected 1/0 literals for sqlite")
	}
	os.Unsetenv(config.DATABASE_TYPE)
}
