package notifier

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"

	"github.com/khaledhikmat/fs-go/model"
	"github.com/khaledhikmat/fs-go/service/config"
	"github.com/khaledhikmat/fs-go/service/metrics"
	"github.com/khaledhikmat/fs-go/service/storage"
)

type recordingChannel struct {
	name    string
	err     error
	started chan model.Alert
	release chan struct{}
}

func (c *recordingChannel) Name() string { return c.name }

func (c *recordingChannel) Send(ctx context.Context, alert model.Alert) error {
	c.started <- alert
	if c.release != nil {
		select {
		case <-c.release:
		case <-ctx.Done():
		}
	}
	return c.err
}

func testConfig(t *testing.T, queue int) config.IService {
	dir := t.TempDir()
	return config.NewWith(func(s *config.Settings) {
		s.Storage.Folder = dir
		s.Notifier.QueueSize = queue
		s.Notifier.ChannelTimeout = time.Second
	})
}

func waitAlert(t *testing.T, ch chan model.Alert) model.Alert {
	t.Helper()
	select {
	case a := <-ch:
		return a
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for alert")
	}
	return model.Alert{}
}

func TestDispatcherDeliversToAllChannelsDespiteFailures(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := testConfig(t, 4)
	failing := &recordingChannel{name: "failing", err: errors.New("smtp down"), started: make(chan model.Alert, 1)}
	ok := &recordingChannel{name: "ok", started: make(chan model.Alert, 1)}
	errorStream := make(chan interface{}, 4)

	d := NewDispatcher(ctx, cfg, storage.NewLocal(cfg), metrics.NewProm(prometheus.NewRegistry()),
		[]Channel{failing, ok}, errorStream)

	accepted := d.Notify(model.Alert{
		EpisodeID: "e1",
		Camera:    "cam",
		Timestamp: time.Unix(100, 0),
		Snapshot:  []byte("jpeg"),
	})
	if !accepted {
		t.Fatalf("expected alert to be accepted")
	}

	waitAlert(t, failing.started)
	got := waitAlert(t, ok.started)
	if got.SnapshotURL == "" || !strings.HasSuffix(got.SnapshotURL, "cam_e1_100.jpg") {
		t.Fatalf("expected stored snapshot url, got %q", got.SnapshotURL)
	}

	select {
	case e := <-errorStream:
		ce, isCustom := e.(model.CustomError)
		if !isCustom || ce.Processor != "notifier_failing" {
			t.Fatalf("unexpected error report %#v", e)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expected failure on the error stream")
	}

	stats := d.Stats()
	if stats.Jobs != 1 || stats.Errors != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestDispatcherNotifyNeverBlocks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := testConfig(t, 1)
	slow := &recordingChannel{name: "slow", started: make(chan model.Alert, 4), release: make(chan struct{})}
	defer close(slow.release)

	d := NewDispatcher(ctx, cfg, nil, metrics.NewProm(prometheus.NewRegistry()), []Channel{slow}, nil)

	if !d.Notify(model.Alert{EpisodeID: "e1"}) {
		t.Fatalf("first alert must be accepted")
	}
	waitAlert(t, slow.started)

	if !d.Notify(model.Alert{EpisodeID: "e2"}) {
		t.Fatalf("second alert must fit in the queue")
	}

	start := time.Now()
	if d.Notify(model.Alert{EpisodeID: "e3"}) {
		t.Fatalf("third alert must be dropped while the queue is full")
	}
	if time.Since(start) > 100*time.Millisecond {
		t.Fatalf("Notify blocked for %s", time.Since(start))
	}

	if stats := d.Stats(); stats.Dropped != 1 || stats.Jobs != 2 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestWebhookPostsPayload(t *testing.T) {
	var payload map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("unexpected content type %s", r.Header.Get("Content-Type"))
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	ch := NewWebhook(srv.URL, srv.Client())
	err := ch.Send(context.Background(), model.Alert{
		EpisodeID:   "e9",
		Camera:      "kitchen",
		Direction:   model.AimRight,
		SnapshotURL: "http://store/e9.jpg",
		Timestamp:   time.Unix(0, 0),
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if payload["source"] != "kitchen" || payload["episodeId"] != "e9" || payload["direction"] != "right" {
		t.Fatalf("unexpected payload %v", payload)
	}
	if payload["alertImageURL"] != "http://store/e9.jpg" {
		t.Fatalf("expected snapshot url in payload, got %v", payload["alertImageURL"])
	}
}

func TestWebhookBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	if err := NewWebhook(srv.URL, srv.Client()).Send(context.Background(), model.Alert{}); err == nil {
		t.Fatalf("expected error for 500 response")
	}
}

func TestEmailMessage(t *testing.T) {
	params := config.Defaults().Notifier
	params.SMTPHost = "smtp.example.invalid"
	params.EmailFrom = "fs@example.invalid"
	params.EmailTo = []string{"ops@example.invalid"}

	ch, err := NewEmail(params)
	if err != nil {
		t.Fatalf("NewEmail: %v", err)
	}

	var sentTo []string
	var sent []byte
	email := ch.(*emailChannel)
	email.sendMail = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		if addr != "smtp.example.invalid:587" {
			t.Errorf("unexpected addr %s", addr)
		}
		sentTo = to
		sent = msg
		return nil
	}

	err = email.Send(context.Background(), model.Alert{
		EpisodeID: "e1",
		Camera:    "garage",
		Direction: model.AimLeft,
		Snapshot:  []byte{0xff, 0xd8},
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	msg := string(sent)
	if len(sentTo) != 1 || sentTo[0] != "ops@example.invalid" {
		t.Fatalf("unexpected recipients %v", sentTo)
	}
	if !strings.Contains(msg, "Subject: Fire alert from garage") {
		t.Fatalf("missing subject in %s", msg)
	}
	if !strings.Contains(msg, `filename="snapshot.jpg"`) {
		t.Fatalf("missing snapshot attachment in %s", msg)
	}
}

func TestEmailSnapshotLinesStayShort(t *testing.T) {
	params := config.Defaults().Notifier
	params.SMTPHost = "smtp.example.invalid"
	params.EmailFrom = "fs@example.invalid"
	params.EmailTo = []string{"ops@example.invalid"}

	ch, err := NewEmail(params)
	if err != nil {
		t.Fatalf("NewEmail: %v", err)
	}

	var sent []byte
	email := ch.(*emailChannel)
	email.sendMail = func(_ string, _ smtp.Auth, _ string, _ []string, msg []byte) error {
		sent = msg
		return nil
	}

	snapshot := make([]byte, 40*1024)
	for i := range snapshot {
		snapshot[i] = byte(i * 7)
	}
	err = email.Send(context.Background(), model.Alert{
		EpisodeID: "e1",
		Camera:    "garage",
		Direction: model.AimCenter,
		Snapshot:  snapshot,
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	var encoded strings.Builder
	imageHeader, inImage := false, false
	for _, line := range strings.Split(string(sent), "\r\n") {
		if len(line) > 998 {
			t.Fatalf("line of %d bytes exceeds the mail line limit", len(line))
		}
		switch {
		case strings.HasPrefix(line, "Content-Disposition: attachment"):
			imageHeader = true
		case imageHeader && line == "":
			imageHeader, inImage = false, true
		case strings.HasPrefix(line, "--"):
			inImage = false
		case inImage:
			if len(line) > base64LineLen {
				t.Fatalf("base64 line of %d bytes exceeds %d", len(line), base64LineLen)
			}
			encoded.WriteString(line)
		}
	}

	decoded, err := base64.StdEncoding.DecodeString(encoded.String())
	if err != nil {
		t.Fatalf("decode attachment: %v", err)
	}
	if !bytes.Equal(decoded, snapshot) {
		t.Fatalf("attachment round trip lost data: got %d bytes", len(decoded))
	}
}

func TestEmailRequiresRecipients(t *testing.T) {
	if _, err := NewEmail(config.Defaults().Notifier); err == nil {
		t.Fatalf("expected error without smtp settings")
	}
}

func TestBuzzerPulsesAndEndsSilent(t *testing.T) {
	pin := &gpiotest.Pin{N: "GPIO24", Num: 24, L: gpio.High}
	ch, err := newBuzzer(pin, 2, time.Millisecond)
	if err != nil {
		t.Fatalf("newBuzzer: %v", err)
	}

	if err := ch.Send(context.Background(), model.Alert{}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if pin.L != gpio.Low {
		t.Fatalf("expected buzzer silent after send")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := ch.Send(ctx, model.Alert{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation error, got %v", err)
	}
	if pin.L != gpio.Low {
		t.Fatalf("expected buzzer silent after cancelled send")
	}
}

func TestNewChannelsRejectsUnknown(t *testing.T) {
	cfg := config.NewWith(func(s *config.Settings) { s.Notifier.Channels = []string{"log", "pager"} })
	if _, err := NewChannels(context.Background(), cfg); err == nil {
		t.Fatalf("expected unknown channel to be rejected")
	}

	cfg = config.NewWith(func(s *config.Settings) { s.Notifier.Channels = []string{"log"} })
	channels, err := NewChannels(context.Background(), cfg)
	if err != nil || len(channels) != 1 || channels[0].Name() != "log" {
		t.Fatalf("unexpected channels %v (%v)", channels, err)
	}
}
