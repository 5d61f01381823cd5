package config

import (
	"os"

	"github.com/caarlos0/env/v11"
	"golang.org/x/xerrors"
	"gopkg.in/yaml.v3"
)

const envPrefix = "FS_"

// NewEnv loads the defaults, overlays the YAML file at path (if path is not empty)
// and finally applies FS_* environment variables.
func NewEnv(path string) (IService, error) {
	s := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, xerrors.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &s); err != nil {
			return nil, xerrors.Errorf("parsing config file %s: %w", path, err)
		}
	}

	if err := env.ParseWithOptions(&s, env.Options{Prefix: envPrefix}); err != nil {
		return nil, xerrors.Errorf("parsing environment: %w", err)
	}

	if err := Validate(s); err != nil {
		return nil, err
	}

	return &hardcodedService{
		settings: s,
	}, nil
}

func Validate(s Settings) error {
	if s.Responder.Cooldown <= 0 {
		return xerrors.New("responder.cooldown must be positive")
	}
	if s.Responder.Padding < 0 {
		return xerrors.New("responder.padding must not be negative")
	}
	switch s.Responder.ReopenPolicy {
	case ReopenRenotify, ReopenResume:
	default:
		return xerrors.Errorf("unknown responder.reopen_policy %q", s.Responder.ReopenPolicy)
	}

	switch s.Camera.FramerType {
	case CameraFramerName, RandomFramerName:
	default:
		return xerrors.Errorf("unknown camera.framer_type %q", s.Camera.FramerType)
	}

	switch s.Detector.Type {
	case CascadeDetectorName, PeriodicDetectorName:
	default:
		return xerrors.Errorf("unknown detector.type %q", s.Detector.Type)
	}

	switch s.Actuator.Type {
	case GPIOActuatorName:
		if s.Actuator.ServoPin == "" || s.Actuator.ValvePin == "" {
			return xerrors.New("actuator.servo_pin and actuator.valve_pin are required")
		}
		if s.Actuator.PWMFrequency <= 0 {
			return xerrors.New("actuator.pwm_frequency must be positive")
		}
	case FakeActuatorName:
	default:
		return xerrors.Errorf("unknown actuator.type %q", s.Actuator.Type)
	}

	switch s.Storage.Type {
	case LocalStorageName:
	case MinioStorageName:
		if s.Storage.MinioEndpoint == "" {
			return xerrors.New("storage.minio_endpoint is required for minio storage")
		}
	default:
		return xerrors.Errorf("unknown storage.type %q", s.Storage.Type)
	}

	if s.Stream.Addr == "" {
		return xerrors.New("stream.addr is required")
	}

	return nil
}
