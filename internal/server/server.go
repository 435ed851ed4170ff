package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/HimanhsuRaj/chat-app-backend/internal/delivery"
	"github.com/HimanhsuRaj/chat-app-backend/internal/presence"
	"github.com/HimanhsuRaj/chat-app-backend/internal/router"
	"github.com/HimanhsuRaj/chat-app-backend/internal/server/middleware"
	"github.com/HimanhsuRaj/chat-app-backend/internal/store"
	"github.com/HimanhsuRaj/chat-app-backend/pkg/config"
	"github.com/HimanhsuRaj/chat-app-backend/pkg/transport"
)

type App struct {
	logger      *slog.Logger
	registry    *presence.Registry
	tracker     *presence.ChatTracker
	gateway     store.Gateway
	notifier    router.Notifier
	engine      *delivery.Engine
	eventRouter *router.EventRouter
	wg          sync.WaitGroup
	http        *http.Server
	config      *config.Config

	ctx context.Context
}

func NewApp(logger *slog.Logger, rootCtx context.Context, cfg *config.Config, db *bun.DB) *App {
	registry := presence.NewRegistry(logger)
	tracker := presence.NewChatTracker(logger)
	gateway := store.NewBunStore(db, logger)
	notifier := router.NewPresenceNotifier(registry, logger)
	engine := delivery.NewEngine(gateway, registry, tracker, notifier.Push, logger)
	eventRouter := router.NewEventRouter(logger, engine, notifier, tracker)

	app := &App{
		logger:      logger,
		registry:    registry,
		tracker:     tracker,
		gateway:     gateway,
		notifier:    notifier,
		engine:      engine,
		eventRouter: eventRouter,
		config:      cfg,
		ctx:         rootCtx,
	}

	mux := http.NewServeMux()
	upgradeHandler := http.HandlerFunc(app.upgradeHandler)
	connCounter := func(userID string) int {
		if registry.IsOnline(userID) {
			return 1
		}
		return 0
	}
	// Closing the old transport triggers its onClose handler, which takes
	// the stale session out of the registry before the new one registers.
	connCycler := func(userID string) {
		if sess, ok := registry.Lookup(userID); ok {
			logger.Info("Cycling connection: closing previous session", slog.String("userID", userID))
			sess.Conn.Close(errors.New("connection cycled by new connection"))
		}
	}

	mux.Handle("/ws",
		middleware.Chain(upgradeHandler,
			middleware.RequestMetadataMiddleware(),
			middleware.NewUpgradeLogger(app.logger),
			middleware.NewIdentityMiddleware(logger, cfg.Server.Auth.JWTSecret),
			middleware.NewConnectionLimiter(
				logger,
				connCounter,
				connCycler,
				cfg.Server.ConnectionLimit,
			),
		),
	)

	app.http = &http.Server{Addr: cfg.Server.Address, Handler: mux, BaseContext: func(l net.Listener) context.Context {
		return app.ctx
	}}

	return app
}

func (a *App) Run() error {
	go func() {
		a.logger.Info("Server starting", slog.String("addr", a.http.Addr))
		if err := a.http.ListenAndServe(); err != http.ErrServerClosed {
			a.logger.Error("HTTP server failed", slog.Any("error", err))
		}
	}()

	<-a.ctx.Done()
	return a.Shutdown()
}

func (a *App) upgradeHandler(w http.ResponseWriter, r *http.Request) {
	reqMeta, _ := middleware.ReqMetadataFrom(r.Context())
	userID := reqMeta.UserID
	connLogger := a.logger.With(
		slog.String("remoteAddr", reqMeta.IP),
		slog.String("userID", userID),
	)

	wsConn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		a.logger.Error("Failed to accept websocket connection", slog.Any("error", err))
		return
	}

	conn := transport.NewConnection(
		r.Context(),
		&a.wg,
		wsConn,
		transport.ConnectionConfig(a.config.Transport),
		nil,
		nil,
		a.logger,
	)

	sess, replaced := a.registry.Connect(userID, conn)
	if replaced != nil {
		// A rapid reconnect beat the limiter; the registry already holds
		// the new handle, so closing the old transport is all that's left.
		replaced.Conn.Close(errors.New("session superseded by new connection"))
	}

	conn.SetOnMessageHandler(func(ctx context.Context, connID uuid.UUID, msg []byte) {
		a.eventRouter.Dispatch(ctx, sess, msg)
	})
	conn.SetOnCloseHandler(func(connID uuid.UUID, err error) {
		a.handleDisconnect(userID, connID)
	})

	a.notifier.Broadcast("online-users", a.registry.OnlineUsers())

	if err := a.engine.Replay(r.Context(), userID); err != nil {
		// Pending deliveries stay recoverable; the next connect retries.
		connLogger.Warn("Pending-delivery replay failed", slog.Any("error", err))
	}

	connLogger.Info("User connection fully established")
	conn.Run()
	<-conn.Done()
}

// handleDisconnect tears down the session state for one closed connection.
// A stale close for a handle already superseded by a newer connect leaves
// everything untouched.
func (a *App) handleDisconnect(userID string, connID uuid.UUID) {
	if !a.registry.Disconnect(userID, connID) {
		return
	}
	a.tracker.Leave(userID)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.gateway.TouchLastSeen(ctx, userID, time.Now()); err != nil {
		a.logger.Error("Failed to persist lastSeen", slog.String("userID", userID), slog.Any("error", err))
	}

	a.notifier.Broadcast("online-users", a.registry.OnlineUsers())
	a.logger.Info("User disconnected", slog.String("userID", userID))
}

// graceful shutdown sequence.
func (a *App) Shutdown() error {
	a.logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.http.Shutdown(shutdownCtx); err != nil {
		return err
	}

	// close all active WebSocket connections.
	a.logger.Info("Closing all active connections...")
	for _, sess := range a.registry.Sessions() {
		sess.Conn.Close(errors.New("graceful shutdown"))
	}

	// wait for all connection goroutines to finish their cleanup.
	a.wg.Wait()
	a.logger.Info("Server shut down gracefully.")
	return nil
}
