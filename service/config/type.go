package config

import "time"

const (
	CascadeDetectorName  = "cascade"
	PeriodicDetectorName = "periodic"

	CameraFramerName = "camera"
	RandomFramerName = "random"

	GPIOActuatorName = "gpio"
	FakeActuatorName = "fake"

	LocalStorageName = "local"
	MinioStorageName = "minio"

	ReopenRenotify = "renotify"
	ReopenResume   = "resume"
)

type IService interface {
	GetModeMaxShutdownTime() int
	GetDataFolder() string
	GetRecordingsFolder() string
	GetStatsPeriodicTimeout() int
	GetCameraParameters() CameraParameters
	GetDetectorParameters() DetectorParameters
	GetResponderParameters() ResponderParameters
	GetActuatorParameters() ActuatorParameters
	GetNotifierParameters() NotifierParameters
	GetStorageParameters() StorageParameters
	GetStreamParameters() StreamParameters
	GetLogParameters() LogParameters
}

type CameraParameters struct {
	ID         string `yaml:"id" env:"ID"`
	Name       string `yaml:"name" env:"NAME"`
	URL        string `yaml:"url" env:"URL"`
	FramerType string `yaml:"framer_type" env:"FRAMER_TYPE"`
	Width      int    `yaml:"width" env:"WIDTH"`
	Height     int    `yaml:"height" env:"HEIGHT"`
	FPS        int    `yaml:"fps" env:"FPS"`
}

type DetectorParameters struct {
	Type          string  `yaml:"type" env:"TYPE"`
	CascadePath   string  `yaml:"cascade_path" env:"CASCADE_PATH"`
	ScaleFactor   float64 `yaml:"scale_factor" env:"SCALE_FACTOR"`
	MinNeighbors  int     `yaml:"min_neighbors" env:"MIN_NEIGHBORS"`
	MinRegionArea int     `yaml:"min_region_area" env:"MIN_REGION_AREA"`
	// Periodic detector: emit a synthetic region for BurstLength frames every Period frames
	Period      int `yaml:"period" env:"PERIOD"`
	BurstLength int `yaml:"burst_length" env:"BURST_LENGTH"`
}

type ResponderParameters struct {
	Padding      int           `yaml:"padding" env:"PADDING"`
	Cooldown     time.Duration `yaml:"cooldown" env:"COOLDOWN"`
	ReopenPolicy string        `yaml:"reopen_policy" env:"REOPEN_POLICY"`
	JPEGQuality  int           `yaml:"jpeg_quality" env:"JPEG_QUALITY"`
	RecordClips  bool          `yaml:"record_clips" env:"RECORD_CLIPS"`
}

type ActuatorParameters struct {
	Type           string        `yaml:"type" env:"TYPE"`
	ServoPin       string        `yaml:"servo_pin" env:"SERVO_PIN"`
	ValvePin       string        `yaml:"valve_pin" env:"VALVE_PIN"`
	PWMFrequency   int           `yaml:"pwm_frequency" env:"PWM_FREQUENCY"`
	LeftAngle      float64       `yaml:"left_angle" env:"LEFT_ANGLE"`
	CenterAngle    float64       `yaml:"center_angle" env:"CENTER_ANGLE"`
	RightAngle     float64       `yaml:"right_angle" env:"RIGHT_ANGLE"`
	ServoSettle    time.Duration `yaml:"servo_settle" env:"SERVO_SETTLE"`
	CommandTimeout time.Duration `yaml:"command_timeout" env:"COMMAND_TIMEOUT"`
}

type NotifierParameters struct {
	Channels       []string      `yaml:"channels" env:"CHANNELS" envSeparator:","`
	QueueSize      int           `yaml:"queue_size" env:"QUEUE_SIZE"`
	ChannelTimeout time.Duration `yaml:"channel_timeout" env:"CHANNEL_TIMEOUT"`
	WebhookURL     string        `yaml:"webhook_url" env:"WEBHOOK_URL"`
	MQTTBroker     string        `yaml:"mqtt_broker" env:"MQTT_BROKER"`
	MQTTTopic      string        `yaml:"mqtt_topic" env:"MQTT_TOPIC"`
	MQTTClientID   string        `yaml:"mqtt_client_id" env:"MQTT_CLIENT_ID"`
	SMTPHost       string        `yaml:"smtp_host" env:"SMTP_HOST"`
	SMTPPort       int           `yaml:"smtp_port" env:"SMTP_PORT"`
	SMTPUser       string        `yaml:"smtp_user" env:"SMTP_USER"`
	SMTPPassword   string        `yaml:"smtp_password" env:"SMTP_PASSWORD"`
	EmailFrom      string        `yaml:"email_from" env:"EMAIL_FROM"`
	EmailTo        []string      `yaml:"email_to" env:"EMAIL_TO" envSeparator:","`
	BuzzerPin      string        `yaml:"buzzer_pin" env:"BUZZER_PIN"`
	BuzzerPulses   int           `yaml:"buzzer_pulses" env:"BUZZER_PULSES"`
	BuzzerPulse    time.Duration `yaml:"buzzer_pulse" env:"BUZZER_PULSE"`
}

type StorageParameters struct {
	Type           string `yaml:"type" env:"TYPE"`
	Folder         string `yaml:"folder" env:"FOLDER"`
	MinioEndpoint  string `yaml:"minio_endpoint" env:"MINIO_ENDPOINT"`
	MinioAccessKey string `yaml:"minio_access_key" env:"MINIO_ACCESS_KEY"`
	MinioSecretKey string `yaml:"minio_secret_key" env:"MINIO_SECRET_KEY"`
	MinioBucket    string `yaml:"minio_bucket" env:"MINIO_BUCKET"`
	MinioSecure    bool   `yaml:"minio_secure" env:"MINIO_SECURE"`
}

type StreamParameters struct {
	Addr string `yaml:"addr" env:"ADDR"`
}

type LogParameters struct {
	Level      string `yaml:"level" env:"LEVEL"`
	Format     string `yaml:"format" env:"FORMAT"`
	File       string `yaml:"file" env:"FILE"`
	MaxSizeMB  int    `yaml:"max_size_mb" env:"MAX_SIZE_MB"`
	MaxBackups int    `yaml:"max_backups" env:"MAX_BACKUPS"`
	MaxAgeDays int    `yaml:"max_age_days" env:"MAX_AGE_DAYS"`
}

// Settings is the complete configuration tree. It is filled from defaults,
// then an optional YAML file, then FS_* environment variables.
type Settings struct {
	ModeMaxShutdownTime  int    `yaml:"mode_max_shutdown_time" env:"MODE_MAX_SHUTDOWN_TIME"`
	DataFolder           string `yaml:"data_folder" env:"DATA_FOLDER"`
	RecordingsFolder     string `yaml:"recordings_folder" env:"RECORDINGS_FOLDER"`
	StatsPeriodicTimeout int    `yaml:"stats_periodic_timeout" env:"STATS_PERIODIC_TIMEOUT"`

	Camera    CameraParameters    `yaml:"camera" envPrefix:"CAMERA_"`
	Detector  DetectorParameters  `yaml:"detector" envPrefix:"DETECTOR_"`
	Responder ResponderParameters `yaml:"responder" envPrefix:"RESPONDER_"`
	Actuator  ActuatorParameters  `yaml:"actuator" envPrefix:"ACTUATOR_"`
	Notifier  NotifierParameters  `yaml:"notifier" envPrefix:"NOTIFIER_"`
	Storage   StorageParameters   `yaml:"storage" envPrefix:"STORAGE_"`
	Stream    StreamParameters    `yaml:"stream" envPrefix:"STREAM_"`
	Log       LogParameters       `yaml:"log" envPrefix:"LOG_"`
}
