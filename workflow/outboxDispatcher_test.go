package workflow

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestOutboxBackoff_DoublesPerAttemptUpToCap(t *testing.T) {
	d := NewOutboxDispatcher(nil, logrus.New())

	cases := []struct {
		attempts int
		expected time.Duration
	}{
		{0, 5 * time.Second},
		{1, 5 * time.Second},
		{2, 10 * time.Second},
		{3, 20 * time.Second},
		{4, 40 * time.Second},
		{7, 320 * time.Second},
		// 5s × 2^7 = 640s crosses the 10m cap
		{8, 10 * time.Minute},
		{20, 10 * time.Minute},
	}
	for _, c := range cases {
		if got := d.backoffFor(c.attempts); got != c.expected {
			t.Errorf("backoffFor(%d) = %s, expected %s", c.attempts, got, c.expected)
		}
	}
}

func TestOutboxDispatcher_Defaults(t *testing.T) {
	d := NewOutboxDispatcher(nil, logrus.New())
	if d.DispatcherID == "" {
		t.Fatal("expected a dispatcher id")
	}
	if d.MaxAttempts != 20 {
		t.Fatalf("MaxAttempts = %d", d.MaxAttempts)
	}
	if d.BatchSize != 50 {
		t.Fatalf("BatchSize = %d", d.BatchSize)
	}
	if d.LockTimeout != 30*time.Second {
		t.Fatalf("LockTimeout = %s", d.LockTimeout)
	}
}
