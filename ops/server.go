package ops

import (
	"context"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/zerbitx/ramlizer/metrics"
)

// Server is the operations listener: metrics and live events, away from the mocked routes
type Server struct {
	srv    *http.Server
	logger logrus.FieldLogger
}

// NewServer wires recorder and hub behind addr
func NewServer(addr string, recorder *metrics.Recorder, hub *Hub, logger logrus.FieldLogger) *Server {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", recorder.Handler())
	mux.Handle("/events", hub)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	return &Server{
		srv:    &http.Server{Addr: addr, Handler: mux},
		logger: logger,
	}
}

// Handler exposes the routing of the listener
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Start listens until Shutdown is called
func (s *Server) Start() error {
	s.logger.WithField("addr", s.srv.Addr).Info("ops")

	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

// Shutdown gracefully stops the listener
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
