// Package notifytest provides an in-process identity host speaking the
// notification socket protocol, for tests.
package notifytest

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/homebase-id/odin-notify/internal/codec"
)

const (
	// PreauthCookie is set by the preauth endpoint and required on apps
	// socket upgrades.
	PreauthCookie = "XT32"

	DefaultPeerToken = "cGVlci1hdXRoLXRva2Vu"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Host is a fake identity host. Local sockets use Secret, peer sockets
// use PeerSecret and must present PeerToken on every frame.
type Host struct {
	Secret     []byte
	PeerSecret []byte
	PeerToken  string

	codec  *codec.Codec
	server *httptest.Server

	mu            sync.Mutex
	conns         []*Conn
	preauths      int
	tokenRequests int
	refuseTokens  bool
	autoHandshake bool
	autoPong      bool
	connected     chan *Conn
}

// New starts a Host on a loopback port. Handshakes and pongs are answered
// automatically until changed with SetAutoHandshake and SetAutoPong.
func New(secret, peerSecret []byte) *Host {
	gin.SetMode(gin.TestMode)

	h := &Host{
		Secret:        secret,
		PeerSecret:    peerSecret,
		PeerToken:     DefaultPeerToken,
		codec:         codec.New(nil),
		autoHandshake: true,
		autoPong:      true,
		connected:     make(chan *Conn, 32),
	}

	router := gin.New()
	for _, kind := range []string{"owner", "apps", "guest"} {
		api := router.Group("/api/" + kind + "/v1")
		api.POST("/notify/preauth", h.preauth)
		api.POST("/notify/peer/token", h.peerToken)
		api.GET("/notify/ws", h.attach(kind, false))
		api.GET("/notify/peer/ws", h.attach(kind, true))
	}

	h.server = httptest.NewServer(router)
	return h
}

// Addr returns host:port of the server, usable as an identity host with
// insecure transport.
func (h *Host) Addr() string {
	return strings.TrimPrefix(h.server.URL, "http://")
}

// Close drops every socket and stops the server.
func (h *Host) Close() {
	for _, c := range h.Conns() {
		c.Drop()
	}
	h.server.Close()
}

// SetAutoHandshake controls whether establishConnectionRequest is answered.
func (h *Host) SetAutoHandshake(on bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.autoHandshake = on
}

// SetAutoPong controls whether pings are answered.
func (h *Host) SetAutoPong(on bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.autoPong = on
}

// RefuseTokens makes the peer token endpoint fail.
func (h *Host) RefuseTokens(refuse bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.refuseTokens = refuse
}

// Conns returns every socket accepted so far.
func (h *Host) Conns() []*Conn {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*Conn(nil), h.conns...)
}

// Preauths returns the number of preauth calls.
func (h *Host) Preauths() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.preauths
}

// TokenRequests returns the number of peer token exchanges.
func (h *Host) TokenRequests() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.tokenRequests
}

// Next waits for the next accepted socket.
func (h *Host) Next(timeout time.Duration) (*Conn, error) {
	select {
	case c := <-h.connected:
		return c, nil
	case <-time.After(timeout):
		return nil, fmt.Errorf("no connection within %s", timeout)
	}
}

func (h *Host) preauth(c *gin.Context) {
	h.mu.Lock()
	h.preauths++
	h.mu.Unlock()

	http.SetCookie(c.Writer, &http.Cookie{Name: PreauthCookie, Value: "ok", Path: "/"})
	c.Status(http.StatusOK)
}

type peerTokenRequest struct {
	Identity string `json:"identity"`
}

func (h *Host) peerToken(c *gin.Context) {
	h.mu.Lock()
	h.tokenRequests++
	refuse := h.refuseTokens
	h.mu.Unlock()

	var req peerTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Identity == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "identity is required"})
		return
	}
	if refuse {
		c.JSON(http.StatusForbidden, gin.H{"error": "token exchange refused"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"authenticationToken64": h.PeerToken,
		"sharedSecret":          base64.StdEncoding.EncodeToString(h.PeerSecret),
	})
}

func (h *Host) attach(kind string, peer bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if kind == "apps" && !peer {
			if _, err := c.Cookie(PreauthCookie); err != nil {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "preauth required"})
				return
			}
		}

		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}

		secret := h.Secret
		if peer {
			secret = h.PeerSecret
		}
		conn := newConn(h, ws, secret, peer)

		h.mu.Lock()
		h.conns = append(h.conns, conn)
		h.mu.Unlock()
		h.connected <- conn

		go conn.readPump()
	}
}
