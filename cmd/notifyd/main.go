package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	flag "github.com/spf13/pflag"

	"github.com/homebase-id/odin-notify/api/handlers"
	"github.com/homebase-id/odin-notify/internal/config"
	"github.com/homebase-id/odin-notify/internal/db"
	"github.com/homebase-id/odin-notify/internal/identity"
	"github.com/homebase-id/odin-notify/internal/journal"
	"github.com/homebase-id/odin-notify/internal/notify"
	"github.com/homebase-id/odin-notify/internal/recorder"
	"github.com/homebase-id/odin-notify/internal/relay"
	"github.com/homebase-id/odin-notify/internal/repository"
)

// transport is one running notification manager and its subscribers.
type transport struct {
	name    string
	manager *notify.Manager
	journal *journal.Journal
	relay   *relay.Subscriber

	// recorder is nil unless notify.record_dir is set
	recorder *recorder.Recorder
}

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", os.Getenv("NOTIFY_CONFIG"), "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	secret, err := cfg.SharedSecretBytes()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Ensure data directories exist
	if err := os.MkdirAll(filepath.Dir(cfg.Server.DBPath), 0755); err != nil {
		log.Fatalf("Failed to create database directory: %v", err)
	}
	if cfg.Notify.RecordDir != "" {
		if err := os.MkdirAll(cfg.Notify.RecordDir, 0755); err != nil {
			log.Fatalf("Failed to create recording directory: %v", err)
		}
	}

	// Initialize database
	database, err := db.Open(cfg.Server.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	repo := repository.NewNotificationRepository(database)

	client, err := identity.NewClient(&identity.Options{
		Host:         cfg.Identity.Host,
		APIType:      cfg.Identity.APIType,
		Token:        cfg.Identity.Token,
		SharedSecret: secret,
		Insecure:     cfg.Identity.Insecure,
	})
	if err != nil {
		log.Fatalf("Failed to create identity client: %v", err)
	}

	hub := relay.NewHub()
	defer hub.Close()

	// Local transport plus one peer transport per followed identity
	var transports []*transport
	local, err := newTransport(cfg, notify.NewLocalAuth(client), "local", "", repo, hub)
	if err != nil {
		log.Fatalf("Failed to create local transport: %v", err)
	}
	transports = append(transports, local)
	for _, peer := range cfg.Peers {
		t, err := newTransport(cfg, notify.NewPeerAuth(client, peer), "peer:"+peer, "Notify-peer-"+peer, repo, hub)
		if err != nil {
			log.Fatalf("Failed to create peer transport for %s: %v", peer, err)
		}
		transports = append(transports, t)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	for _, t := range transports {
		go t.subscribe(ctx, cfg)
	}

	// Initialize handlers
	sources := make([]handlers.StatusSource, 0, len(transports))
	for _, t := range transports {
		sources = append(sources, t.manager)
	}
	notificationHandler := handlers.NewNotificationHandler(repo)
	statusHandler := handlers.NewStatusHandler(sources...)
	streamHandler := handlers.NewStreamHandler(relay.NewHandler(hub, nil))

	// Initialize Gin router
	r := gin.Default()

	// Enable CORS for development
	r.Use(corsMiddleware())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})

	// API routes
	api := r.Group("/api")
	{
		notificationHandler.RegisterRoutes(api)
		statusHandler.RegisterRoutes(api)
		streamHandler.RegisterRoutes(api)
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Println("Shutting down server...")
		cancel()
		for _, t := range transports {
			t.close()
		}
		hub.Close()
		database.Close()
		os.Exit(0)
	}()

	// Start server
	log.Printf("Starting server on port %s", cfg.Server.Port)
	if err := r.Run(":" + cfg.Server.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func newTransport(cfg *config.Config, auth notify.AuthStrategy, name, logPrefix string, repo *repository.NotificationRepository, hub *relay.Hub) (*transport, error) {
	opts := cfg.ManagerOptions(auth.Kind() == "peer")
	opts.Auth = auth
	opts.LogPrefix = logPrefix

	m, err := notify.NewManager(opts)
	if err != nil {
		return nil, err
	}
	t := &transport{
		name:    name,
		manager: m,
		journal: journal.New(repo, name, nil, journal.DefaultQueueSize),
		relay:   hub.Subscriber(name),
	}

	if dir := cfg.Notify.RecordDir; dir != "" {
		file := fmt.Sprintf("%s-%d.jsonl", strings.NewReplacer(":", "-", "/", "-").Replace(name), time.Now().Unix())
		rec, err := recorder.Create(filepath.Join(dir, file), name, nil)
		if err != nil {
			t.journal.Close()
			return nil, err
		}
		t.recorder = rec
	}
	return t, nil
}

// subscribe registers the journal, relay and recorder. The first subscription
// blocks until the handshake or a terminal failure; failed attempts keep
// retrying in the background.
func (t *transport) subscribe(ctx context.Context, cfg *config.Config) {
	drives := cfg.Notify.Drives
	subs := []notify.Subscriber{t.journal, t.relay}
	if t.recorder != nil {
		subs = append(subs, t.recorder)
	}
	for _, sub := range subs {
		if err := t.manager.Subscribe(ctx, drives, sub); err != nil {
			log.Printf("Transport %s: subscribe failed: %v", t.name, err)
		}
	}
}

func (t *transport) close() {
	t.manager.Disconnect()
	t.journal.Close()
	if t.recorder != nil {
		t.recorder.Close()
	}
}

// corsMiddleware returns a CORS middleware for development.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
