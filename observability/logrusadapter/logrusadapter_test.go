package logrusadapter

import (
	"testing"

	"github.com/sirupsen/logrus"
	logrustest "github.com/sirupsen/logrus/hooks/test"

	"github.com/sudachi-dev/cardscan/observability"
)

func TestFieldsReachLogrus(t *testing.T) {
	base, hook := logrustest.NewNullLogger()
	base.SetLevel(logrus.DebugLevel)

	log := New(base).With(observability.String("session", "abc"))
	log.Info("scan session opened", observability.Int("tags", 2))

	entries := hook.AllEntries()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.Message != "scan session opened" || e.Level != logrus.InfoLevel {
		t.Fatalf("entry = %q at %v", e.Message, e.Level)
	}
	if e.Data["session"] != "abc" {
		t.Fatalf("session field = %v", e.Data["session"])
	}
	if e.Data["tags"] != 2 {
		t.Fatalf("tags field = %v", e.Data["tags"])
	}
}

func TestNilLoggerUsesStandard(t *testing.T) {
	// Must not panic; output goes to the logrus standard logger.
	New(nil).Debug("noop")
}
