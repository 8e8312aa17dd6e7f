package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"chatrelay/internal/app/server/handlers"
	"chatrelay/internal/config"
	"chatrelay/pkg/middleware"
)

type Server struct {
	log     *slog.Logger
	cfg     config.Config
	mux     *http.ServeMux
	handler http.Handler
}

func NewServer(
	log *slog.Logger,
	cfg config.Config,
	wsHandler *handlers.WSHandler,
	roomsHandler *handlers.RoomsHandler,
	uploadHandler *handlers.UploadHandler,
) *Server {
	s := &Server{
		log: log,
		cfg: cfg,
		mux: http.NewServeMux(),
	}
	s.routes(wsHandler, roomsHandler, uploadHandler)

	chain := middleware.RequestLogger(log)(
		middleware.TracerMiddleware(cfg.Service.Name)(s.mux),
	)
	s.handler = chain
	return s
}

func (s *Server) routes(
	wsHandler *handlers.WSHandler,
	roomsHandler *handlers.RoomsHandler,
	uploadHandler *handlers.UploadHandler,
) {
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	s.mux.HandleFunc("GET /rooms", roomsHandler.List)
	s.mux.HandleFunc("POST /rooms", roomsHandler.Create)
	s.mux.HandleFunc("GET /messages/{room}", roomsHandler.History)
	s.mux.HandleFunc("POST /upload", uploadHandler.Upload)
	s.mux.Handle("GET /uploads/", http.StripPrefix("/uploads/",
		http.FileServer(http.Dir(s.cfg.Uploads.Dir))))
	s.mux.HandleFunc("/ws", wsHandler.Handler)
}

// Start serves until ctx is cancelled, then drains with the configured
// shutdown timeout. Live WebSocket sessions are hijacked connections and
// fall outside Shutdown's drain; their read loops end when peers go away.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Server.Addr,
		Handler:      s.handler,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server - listening", "addr", s.cfg.Server.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
