package notifier

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"golang.org/x/xerrors"

	"github.com/khaledhikmat/fs-go/model"
	"github.com/khaledhikmat/fs-go/service/config"
	"github.com/khaledhikmat/fs-go/service/lgr"
)

type mqttChannel struct {
	client mqtt.Client
	topic  string
}

// NewMQTT connects to the broker once; paho reconnects on its own afterwards.
func NewMQTT(ctx context.Context, params config.NotifierParameters) (Channel, error) {
	if params.MQTTBroker == "" {
		return nil, xerrors.New("mqtt channel requires a broker")
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(params.MQTTBroker)
	opts.SetClientID(params.MQTTClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		lgr.Logger.Warn("mqtt connection lost, will auto-reconnect",
			slog.String("broker", params.MQTTBroker),
			slog.Any("error", err),
		)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-token.Done():
	case <-time.After(5 * time.Second):
		// With connect retry enabled the client keeps trying in the background
		lgr.Logger.Warn("mqtt broker not reachable yet", slog.String("broker", params.MQTTBroker))
	}
	if err := token.Error(); err != nil {
		return nil, xerrors.Errorf("mqtt connection failed: %w", err)
	}

	return &mqttChannel{
		client: client,
		topic:  params.MQTTTopic,
	}, nil
}

func (c *mqttChannel) Name() string {
	return "mqtt"
}

func (c *mqttChannel) Send(ctx context.Context, alert model.Alert) error {
	payload, err := json.Marshal(alertPayload(alert))
	if err != nil {
		return xerrors.Errorf("marshalling alert: %w", err)
	}

	token := c.client.Publish(c.topic+"/"+alert.Camera, 1, false, payload)
	select {
	case <-ctx.Done():
		return xerrors.Errorf("mqtt publish: %w", ctx.Err())
	case <-token.Done():
	}

	if err := token.Error(); err != nil {
		return xerrors.Errorf("mqtt publish: %w", err)
	}
	return nil
}
