package notify

import "sync/atomic"

// OnlineChecker reports whether the runtime believes the network is reachable.
type OnlineChecker interface {
	Online() bool
}

// AlwaysOnline never reports offline.
type AlwaysOnline struct{}

func (AlwaysOnline) Online() bool { return true }

// OnlineSwitch is a settable OnlineChecker. The zero value is online.
type OnlineSwitch struct {
	offline atomic.Bool
}

func (s *OnlineSwitch) Online() bool { return !s.offline.Load() }

// Set records the current connectivity.
func (s *OnlineSwitch) Set(online bool) { s.offline.Store(!online) }
