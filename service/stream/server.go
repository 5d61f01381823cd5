package stream

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/khaledhikmat/fs-go/service/lgr"
)

type Server struct {
	srv *http.Server
}

// NewRouter exposes the annotated video, the latest snapshot, health and metrics
func NewRouter(b *Broadcaster, gatherer prometheus.Gatherer) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/video", b.ServeVideo).Methods(http.MethodGet)
	r.HandleFunc("/snapshot", b.ServeSnapshot).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	return r
}

func NewServer(addr string, handler http.Handler) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start serves in the background; a listen failure is pushed to errorStream.
func (s *Server) Start(errorStream chan interface{}) {
	lgr.Logger.Info("stream server starting...", slog.String("addr", s.srv.Addr))

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lgr.Logger.Error("stream server exited", slog.Any("error", err))
			select {
			case errorStream <- err:
			default:
			}
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	// Open /video responses never go idle, so force them closed at the deadline
	err := s.srv.Shutdown(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		return s.srv.Close()
	}
	return err
}
