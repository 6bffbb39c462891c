package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Socket is the physical connection owned by a Manager. *websocket.Conn
// satisfies it.
type Socket interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Dialer opens sockets.
type Dialer interface {
	Dial(ctx context.Context, url string, header http.Header, jar http.CookieJar) (Socket, error)
}

// GorillaDialer dials with gorilla/websocket.
type GorillaDialer struct {
	HandshakeTimeout time.Duration
	ReadBufferSize   int
	WriteBufferSize  int
}

// NewGorillaDialer returns a dialer with the library defaults.
func NewGorillaDialer() *GorillaDialer {
	return &GorillaDialer{
		HandshakeTimeout: 45 * time.Second,
		ReadBufferSize:   4096,
		WriteBufferSize:  4096,
	}
}

// Dial opens a websocket to url. Cookies from jar are sent with the upgrade.
func (d *GorillaDialer) Dial(ctx context.Context, url string, header http.Header, jar http.CookieJar) (Socket, error) {
	dialer := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: d.HandshakeTimeout,
		ReadBufferSize:   d.ReadBufferSize,
		WriteBufferSize:  d.WriteBufferSize,
		Jar:              jar,
	}

	conn, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket upgrade failed with status %d: %w", resp.StatusCode, err)
		}
		return nil, err
	}
	return conn, nil
}
