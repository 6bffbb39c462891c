package notify

import (
	"context"
	"fmt"
	"net/http"

	"github.com/homebase-id/odin-notify/internal/identity"
)

// Endpoint is everything needed to open and speak on one socket.
type Endpoint struct {
	URL          string
	Header       http.Header
	Jar          http.CookieJar
	SharedSecret []byte

	// Token, when set, is attached to every outbound frame.
	Token string
}

// AuthStrategy prepares an Endpoint before each connect attempt. A failed
// PreConnect fails the attempt without opening a socket.
type AuthStrategy interface {
	PreConnect(ctx context.Context) (*Endpoint, error)
	Kind() string
}

// LocalAuth connects to the identity host the client is authenticated
// against. The apps API requires a pre-auth call before the upgrade.
type LocalAuth struct {
	Client *identity.Client
}

// NewLocalAuth returns the strategy for the local transport.
func NewLocalAuth(client *identity.Client) *LocalAuth {
	return &LocalAuth{Client: client}
}

func (a *LocalAuth) Kind() string { return "local" }

func (a *LocalAuth) PreConnect(ctx context.Context) (*Endpoint, error) {
	if a.Client.APIType() == identity.APITypeApps {
		if err := a.Client.Preauth(ctx); err != nil {
			return nil, fmt.Errorf("preauth failed: %w", err)
		}
	}

	return &Endpoint{
		URL:          a.Client.WebsocketURL(identity.PathNotifySocket),
		Header:       a.Client.AuthHeader(),
		Jar:          a.Client.Jar(),
		SharedSecret: a.Client.SharedSecret(),
	}, nil
}

// PeerAuth connects to a remote identity host through a token exchange
// performed by the local identity host. The remote authenticates every
// frame, so the token rides on each outbound command.
type PeerAuth struct {
	Client   *identity.Client
	Identity string
}

// NewPeerAuth returns the strategy for the peer transport towards remote.
func NewPeerAuth(client *identity.Client, remote string) *PeerAuth {
	return &PeerAuth{Client: client, Identity: remote}
}

func (a *PeerAuth) Kind() string { return "peer" }

func (a *PeerAuth) PreConnect(ctx context.Context) (*Endpoint, error) {
	token, err := a.Client.PeerToken(ctx, a.Identity)
	if err != nil {
		return nil, err
	}

	return &Endpoint{
		URL:          identity.WebsocketURL(a.Identity, identity.APITypeGuest, a.Client.Insecure(), identity.PathPeerSocket),
		Header:       http.Header{},
		SharedSecret: token.SharedSecret,
		Token:        token.AuthenticationToken64,
	}, nil
}
