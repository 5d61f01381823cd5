package config

import (
	"time"
)

type hardcodedService struct {
	settings Settings
}

func NewHardCoded() IService {
	return &hardcodedService{
		settings: Defaults(),
	}
}

// NewWith returns the hardcoded defaults with caller overrides applied.
func NewWith(override func(*Settings)) IService {
	s := Defaults()
	if override != nil {
		override(&s)
	}
	return &hardcodedService{
		settings: s,
	}
}

// Defaults target a Raspberry Pi rig: 640x480 camera 0, servo on GPIO17, valve on GPIO23,
// 20px annotation padding and a 10 second cooldown.
func Defaults() Settings {
	return Settings{
		ModeMaxShutdownTime:  5,
		DataFolder:           "./settings",
		RecordingsFolder:     "./recordings",
		StatsPeriodicTimeout: 30,
		Camera: CameraParameters{
			ID:         "cam-0",
			Name:       "camera0",
			URL:        "0",
			FramerType: CameraFramerName,
			Width:      640,
			Height:     480,
			FPS:        15,
		},
		Detector: DetectorParameters{
			Type:          CascadeDetectorName,
			CascadePath:   "./models/fire_detection_cascade_model.xml",
			ScaleFactor:   1.2,
			MinNeighbors:  5,
			MinRegionArea: 0,
			Period:        300,
			BurstLength:   60,
		},
		Responder: ResponderParameters{
			Padding:      20,
			Cooldown:     10 * time.Second,
			ReopenPolicy: ReopenRenotify,
			JPEGQuality:  80,
			RecordClips:  false,
		},
		Actuator: ActuatorParameters{
			Type:           GPIOActuatorName,
			ServoPin:       "GPIO17",
			ValvePin:       "GPIO23",
			PWMFrequency:   50,
			LeftAngle:      30,
			CenterAngle:    90,
			RightAngle:     150,
			ServoSettle:    500 * time.Millisecond,
			CommandTimeout: 2 * time.Second,
		},
		Notifier: NotifierParameters{
			Channels:       []string{"log"},
			QueueSize:      16,
			ChannelTimeout: 10 * time.Second,
			MQTTTopic:      "fs/alerts",
			MQTTClientID:   "fs-go",
			SMTPPort:       587,
			BuzzerPin:      "GPIO24",
			BuzzerPulses:   3,
			BuzzerPulse:    300 * time.Millisecond,
		},
		Storage: StorageParameters{
			Type:        LocalStorageName,
			Folder:      "./recordings",
			MinioBucket: "fs-alerts",
		},
		Stream: StreamParameters{
			Addr: "0.0.0.0:5000",
		},
		Log: LogParameters{
			Level:      "info",
			Format:     "pretty",
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 7,
		},
	}
}

func (svc *hardcodedService) GetModeMaxShutdownTime() int {
	return svc.settings.ModeMaxShutdownTime
}

func (svc *hardcodedService) GetDataFolder() string {
	return svc.settings.DataFolder
}

func (svc *hardcodedService) GetRecordingsFolder() string {
	return svc.settings.RecordingsFolder
}

func (svc *hardcodedService) GetStatsPeriodicTimeout() int {
	return svc.settings.StatsPeriodicTimeout
}

func (svc *hardcodedService) GetCameraParameters() CameraParameters {
	return svc.settings.Camera
}

func (svc *hardcodedService) GetDetectorParameters() DetectorParameters {
	return svc.settings.Detector
}

func (svc *hardcodedService) GetResponderParameters() ResponderParameters {
	return svc.settings.Responder
}

func (svc *hardcodedService) GetActuatorParameters() ActuatorParameters {
	return svc.settings.Actuator
}

func (svc *hardcodedService) GetNotifierParameters() NotifierParameters {
	return svc.settings.Notifier
}

func (svc *hardcodedService) GetStorageParameters() StorageParameters {
	return svc.settings.Storage
}

func (svc *hardcodedService) GetStreamParameters() StreamParameters {
	return svc.settings.Stream
}

func (svc *hardcodedService) GetLogParameters() LogParameters {
	return svc.settings.Log
}
