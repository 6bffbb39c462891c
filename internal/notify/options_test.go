package notify

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestBackoffDelay(t *testing.T) {
	tests := []struct {
		name    string
		backoff Backoff
		attempt int
		want    time.Duration
	}{
		{"local first", LocalBackoff, 1, 500 * time.Millisecond},
		{"local third", LocalBackoff, 3, 1500 * time.Millisecond},
		{"local capped", LocalBackoff, 11, 5 * time.Second},
		{"peer first", PeerBackoff, 1, 100 * time.Millisecond},
		{"peer capped", PeerBackoff, 80, 5 * time.Second},
		{"zero attempt", LocalBackoff, 0, 0},
		{"uncapped", Backoff{Step: time.Second}, 60, time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.backoff.Delay(tt.attempt); got != tt.want {
				t.Errorf("Delay(%d) = %s, want %s", tt.attempt, got, tt.want)
			}
		})
	}
}

func TestBackoffProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("delay is min(step*attempt, cap) and never decreases", prop.ForAll(
		func(stepMs, capMs, attempt int) bool {
			b := Backoff{
				Step: time.Duration(stepMs) * time.Millisecond,
				Cap:  time.Duration(capMs) * time.Millisecond,
			}
			d := b.Delay(attempt)
			want := b.Step * time.Duration(attempt)
			if want > b.Cap {
				want = b.Cap
			}
			return d == want && b.Delay(attempt+1) >= d
		},
		gen.IntRange(1, 1000),
		gen.IntRange(1, 10000),
		gen.IntRange(1, 1000),
	))

	properties.TestingRun(t)
}

func TestOptionsDefaults(t *testing.T) {
	o, err := (&Options{Auth: &stubAuth{kind: "local"}}).withDefaults()
	if err != nil {
		t.Fatalf("withDefaults failed: %v", err)
	}
	if o.PingInterval != DefaultPingInterval || o.Backoff != LocalBackoff {
		t.Errorf("unexpected timing defaults %s %+v", o.PingInterval, o.Backoff)
	}
	if o.WaitTimeMs != DefaultWaitTimeMs || o.BatchSize != DefaultBatchSize {
		t.Errorf("unexpected handshake defaults %d %d", o.WaitTimeMs, o.BatchSize)
	}
	if o.Dialer == nil || o.Codec == nil || o.Clock == nil || o.Online == nil {
		t.Error("collaborators not defaulted")
	}
}
