package notify

import (
	"fmt"
	"log"
	"math"
	"time"

	"github.com/homebase-id/odin-notify/internal/clock"
	"github.com/homebase-id/odin-notify/internal/codec"
)

const (
	// defaults for when not provided in Options
	DefaultPingInterval time.Duration = 8 * time.Second
	DefaultWaitTimeMs   int           = 2000
	DefaultBatchSize    int           = 1

	writeWait = 10 * time.Second
)

// Backoff computes the delay before reconnect attempt n as
// min(Step*n, Cap). A zero Cap means uncapped.
type Backoff struct {
	Step time.Duration
	Cap  time.Duration
}

// Delay returns the wait before the given attempt.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt <= 0 || b.Step <= 0 {
		return 0
	}
	d := b.Step * time.Duration(attempt)
	if d < 0 {
		// overflow
		if b.Cap > 0 {
			return b.Cap
		}
		return time.Duration(math.MaxInt64)
	}
	if b.Cap > 0 && d > b.Cap {
		return b.Cap
	}
	return d
}

var (
	// LocalBackoff is the reconnect policy of the local transport.
	LocalBackoff = Backoff{Step: 500 * time.Millisecond, Cap: 5 * time.Second}

	// PeerBackoff is the reconnect policy of the peer transport. It retries
	// faster because the token exchange already rate-limits attempts.
	PeerBackoff = Backoff{Step: 100 * time.Millisecond, Cap: 5 * time.Second}
)

// Options configures a Manager.
type Options struct {
	Auth   AuthStrategy
	Dialer Dialer
	Codec  *codec.Codec
	Clock  clock.Clock
	Online OnlineChecker

	PingInterval time.Duration
	Backoff      Backoff

	// handshake parameters sent with establishConnectionRequest
	WaitTimeMs int
	BatchSize  int

	LogPrefix string
	LogDebug  bool
}

func (o *Options) withDefaults() (*Options, error) {
	if o == nil {
		err := fmt.Errorf("nil notify options")
		log.Printf("%s", err.Error())
		return nil, err
	}

	c := *o
	if c.Auth == nil {
		err := fmt.Errorf("%s: nil Auth", c.LogPrefix)
		log.Printf("%s", err.Error())
		return nil, err
	}
	if c.LogPrefix == "" {
		c.LogPrefix = "Notify-" + c.Auth.Kind()
	}
	if c.Dialer == nil {
		c.Dialer = NewGorillaDialer()
	}
	if c.Codec == nil {
		c.Codec = codec.New(nil)
	}
	if c.Clock == nil {
		c.Clock = clock.Real()
	}
	if c.Online == nil {
		c.Online = AlwaysOnline{}
	}
	if c.PingInterval <= 0 {
		c.PingInterval = DefaultPingInterval
	}
	if c.Backoff.Step <= 0 {
		c.Backoff = LocalBackoff
	}
	if c.WaitTimeMs <= 0 {
		c.WaitTimeMs = DefaultWaitTimeMs
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	return &c, nil
}
