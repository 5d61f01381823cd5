package data

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/khaledhikmat/fs-go/model"
	"github.com/khaledhikmat/fs-go/service/config"
)

func newTestDB(t *testing.T) (IService, string) {
	t.Helper()

	dir := t.TempDir()
	cfgSvc := config.NewWith(func(s *config.Settings) {
		s.DataFolder = dir
	})
	return NewFilesDB(cfgSvc), dir
}

func TestEpisodesAppendAndRetrieve(t *testing.T) {
	db, _ := newTestDB(t)

	episodes, err := db.RetrieveEpisodes()
	if err != nil || len(episodes) != 0 {
		t.Fatalf("expected no episodes in a fresh folder, got %d (%v)", len(episodes), err)
	}

	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i, outcome := range []model.EpisodeOutcome{model.EpisodeClosed, model.EpisodeAbandoned} {
		err := db.NewEpisode(model.EpisodeRecord{
			ID:            "ep-" + string(rune('a'+i)),
			Camera:        "cam-0",
			StartedAt:     start,
			ClosedAt:      start.Add(12 * time.Second),
			Frames:        30,
			Notifications: 1,
			Outcome:       outcome,
		})
		if err != nil {
			t.Fatalf("new episode: %v", err)
		}
	}

	episodes, err = db.RetrieveEpisodes()
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(episodes) != 2 {
		t.Fatalf("expected 2 episodes, got %d", len(episodes))
	}
	if episodes[0].ID != "ep-a" || episodes[1].Outcome != model.EpisodeAbandoned {
		t.Fatalf("episodes not kept in order: %+v", episodes)
	}
	if !episodes[0].ClosedAt.Equal(start.Add(12 * time.Second)) {
		t.Fatalf("closedAt lost: %v", episodes[0].ClosedAt)
	}
}

func TestStatsAreStamped(t *testing.T) {
	db, dir := newTestDB(t)

	if err := db.NewResponderStats(model.ResponderStats{Camera: "cam-0", Frames: 10}); err != nil {
		t.Fatalf("responder stats: %v", err)
	}
	if err := db.NewFramerStats(model.FramerStats{Name: "camera", Frames: 10}); err != nil {
		t.Fatalf("framer stats: %v", err)
	}
	if err := db.NewNotifierStats(model.NotifierStats{Name: "dispatcher", Jobs: 1}); err != nil {
		t.Fatalf("notifier stats: %v", err)
	}

	stats, err := retrieveEntites[model.ResponderStats]("responder-stats", config.NewWith(func(s *config.Settings) {
		s.DataFolder = dir
	}))
	if err != nil || len(stats) != 1 {
		t.Fatalf("expected one responder stats entry, got %d (%v)", len(stats), err)
	}
	if stats[0].Timestamp == 0 {
		t.Fatalf("expected a timestamp to be set")
	}

	for _, name := range []string{"framer-stats.json", "notifier-stats.json"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("expected %s: %v", name, err)
		}
	}
}

func TestUpdateEpisodeClip(t *testing.T) {
	db, _ := newTestDB(t)

	for _, id := range []string{"ep-a", "ep-b"} {
		if err := db.NewEpisode(model.EpisodeRecord{ID: id, Camera: "cam-0", Outcome: model.EpisodeShutdown}); err != nil {
			t.Fatalf("new episode: %v", err)
		}
	}

	if err := db.UpdateEpisodeClip("ep-b", "http://minio.local/clips/ep-b.mp4"); err != nil {
		t.Fatalf("update clip: %v", err)
	}

	episodes, err := db.RetrieveEpisodes()
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(episodes) != 2 {
		t.Fatalf("update must not add records, got %d", len(episodes))
	}
	if episodes[0].ClipURL != "" {
		t.Fatalf("unexpected clip on ep-a: %q", episodes[0].ClipURL)
	}
	if episodes[1].ClipURL != "http://minio.local/clips/ep-b.mp4" || episodes[1].Outcome != model.EpisodeShutdown {
		t.Fatalf("clip not recorded on ep-b: %+v", episodes[1])
	}

	if err := db.UpdateEpisodeClip("ep-z", "x"); !errors.Is(err, ErrEpisodeNotFound) {
		t.Fatalf("expected ErrEpisodeNotFound, got %v", err)
	}
}

func TestNewErrorAcceptsAnyValue(t *testing.T) {
	db, dir := newTestDB(t)

	inputs := []interface{}{
		model.GenError("responder", errors.New("boom"), nil, "frame %d", 7),
		errors.New("plain"),
		"just a string",
	}
	for _, in := range inputs {
		if err := db.NewError(in); err != nil {
			t.Fatalf("new error %v: %v", in, err)
		}
	}

	data, err := os.ReadFile(filepath.Join(dir, "errors.json"))
	if err != nil {
		t.Fatalf("read errors: %v", err)
	}
	for _, want := range []string{`"processor": "responder"`, `"innerError": "boom"`, `"message": "just a string"`} {
		if !strings.Contains(string(data), want) {
			t.Fatalf("expected %s in %s", want, data)
		}
	}
}

func TestCorruptFileIsReported(t *testing.T) {
	db, dir := newTestDB(t)

	if err := os.WriteFile(filepath.Join(dir, "episodes.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := db.RetrieveEpisodes(); err == nil {
		t.Fatalf("expected a decode error")
	}
	if err := db.NewEpisode(model.EpisodeRecord{ID: "x"}); err == nil {
		t.Fatalf("expected append to refuse overwriting a corrupt file")
	}
}
