package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/xerrors"

	"github.com/khaledhikmat/fs-go/model"
	"github.com/khaledhikmat/fs-go/service/config"
	"github.com/khaledhikmat/fs-go/service/lgr"
)

// NewChannels builds the channels named in the notifier configuration
func NewChannels(ctx context.Context, cfgSvc config.IService) ([]Channel, error) {
	params := cfgSvc.GetNotifierParameters()

	channels := []Channel{}
	for _, name := range params.Channels {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "log":
			channels = append(channels, NewLog())
		case "webhook":
			if params.WebhookURL == "" {
				return nil, xerrors.New("webhook channel requires a webhook url")
			}
			channels = append(channels, NewWebhook(params.WebhookURL, http.DefaultClient))
		case "mqtt":
			ch, err := NewMQTT(ctx, params)
			if err != nil {
				return nil, err
			}
			channels = append(channels, ch)
		case "email":
			ch, err := NewEmail(params)
			if err != nil {
				return nil, err
			}
			channels = append(channels, ch)
		case "buzzer":
			ch, err := NewBuzzer(params)
			if err != nil {
				return nil, err
			}
			channels = append(channels, ch)
		case "":
		default:
			return nil, xerrors.Errorf("unknown notification channel %q", name)
		}
	}

	return channels, nil
}

// alertPayload is the JSON body shared by the webhook and mqtt channels
func alertPayload(alert model.Alert) map[string]interface{} {
	return map[string]interface{}{
		"source":        alert.Camera,
		"episodeId":     alert.EpisodeID,
		"label":         "fire",
		"direction":     alert.Direction,
		"region":        alert.Region,
		"alertImageURL": alert.SnapshotURL,
		"timestamp":     alert.Timestamp.Format(time.RFC3339),
	}
}

type logChannel struct{}

func NewLog() Channel {
	return &logChannel{}
}

func (c *logChannel) Name() string {
	return "log"
}

func (c *logChannel) Send(_ context.Context, alert model.Alert) error {
	lgr.Logger.Warn(
		"fire detected",
		slog.String("camera", alert.Camera),
		slog.String("episode", alert.EpisodeID),
		slog.String("direction", string(alert.Direction)),
		slog.String("snapshot", alert.SnapshotURL),
		slog.Time("timestamp", alert.Timestamp),
	)
	return nil
}

type webhookChannel struct {
	url    string
	client *http.Client
}

func NewWebhook(url string, client *http.Client) Channel {
	return &webhookChannel{
		url:    url,
		client: client,
	}
}

func (c *webhookChannel) Name() string {
	return "webhook"
}

func (c *webhookChannel) Send(ctx context.Context, alert model.Alert) error {
	body, err := json.Marshal(alertPayload(alert))
	if err != nil {
		return xerrors.Errorf("marshalling alert: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return xerrors.Errorf("creating webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return xerrors.Errorf("posting webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook bad status: %s, error: %s", resp.Status, msg)
	}

	return nil
}
