package stream

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/khaledhikmat/fs-go/service/lgr"
	"github.com/khaledhikmat/fs-go/service/metrics"
)

const boundary = "frame"

// Broadcaster fans the latest encoded frame out to every connected viewer.
// Slow viewers skip frames instead of holding back the response loop.
type Broadcaster struct {
	metricsSvc metrics.IService

	mu      sync.RWMutex
	latest  []byte
	viewers map[chan []byte]struct{}
}

func NewBroadcaster(metricsSvc metrics.IService) *Broadcaster {
	return &Broadcaster{
		metricsSvc: metricsSvc,
		viewers:    map[chan []byte]struct{}{},
	}
}

// Publish hands a JPEG frame to all viewers without blocking
func (b *Broadcaster) Publish(jpeg []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.latest = jpeg
	for ch := range b.viewers {
		select {
		case ch <- jpeg:
		default:
			// Replace the stale frame the viewer has not picked up yet
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- jpeg:
			default:
			}
		}
	}
}

func (b *Broadcaster) Latest() []byte {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.latest
}

func (b *Broadcaster) Viewers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.viewers)
}

func (b *Broadcaster) subscribe() chan []byte {
	ch := make(chan []byte, 1)

	b.mu.Lock()
	b.viewers[ch] = struct{}{}
	n := len(b.viewers)
	b.mu.Unlock()

	b.metricsSvc.SetGauge(metrics.StreamViewers, float64(n))
	return ch
}

func (b *Broadcaster) unsubscribe(ch chan []byte) {
	b.mu.Lock()
	delete(b.viewers, ch)
	n := len(b.viewers)
	b.mu.Unlock()

	b.metricsSvc.SetGauge(metrics.StreamViewers, float64(n))
}

// ServeVideo streams frames as multipart/x-mixed-replace until the viewer leaves
func (b *Broadcaster) ServeVideo(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ch := b.subscribe()
	defer b.unsubscribe(ch)

	lgr.Logger.Info("viewer connected", slog.String("remote", r.RemoteAddr))

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+boundary)
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			lgr.Logger.Info("viewer disconnected", slog.String("remote", r.RemoteAddr))
			return

		case frame := <-ch:
			if _, err := fmt.Fprintf(w, "--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", boundary, len(frame)); err != nil {
				return
			}
			if _, err := w.Write(frame); err != nil {
				return
			}
			if _, err := w.Write([]byte("\r\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (b *Broadcaster) ServeSnapshot(w http.ResponseWriter, _ *http.Request) {
	frame := b.Latest()
	if frame == nil {
		http.Error(w, "no frame yet", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(frame)
}
