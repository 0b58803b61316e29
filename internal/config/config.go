package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Worker   WorkerConfig
	Fetch    FetchConfig
	FFmpeg   FFmpegConfig
	MinIO    MinIOConfig
	RabbitMQ RabbitMQConfig
	Redis    RedisConfig
	Callback CallbackConfig
	Ops      OpsConfig
}

type WorkerConfig struct {
	TempDir         string        `envconfig:"WORKER_TEMP_DIR" default:"/tmp/reelpipe"`
	EncodeWorkers   int           `envconfig:"WORKER_ENCODE_WORKERS" default:"2"`
	UploadWorkers   int           `envconfig:"WORKER_UPLOAD_WORKERS" default:"4"`
	UploadRetries   int           `envconfig:"WORKER_UPLOAD_RETRIES" default:"3"`
	MaxRetries      int           `envconfig:"WORKER_MAX_RETRIES" default:"3"`
	ShutdownTimeout time.Duration `envconfig:"WORKER_SHUTDOWN_TIMEOUT" default:"30s"`
}

type FetchConfig struct {
	Timeout     time.Duration `envconfig:"FETCH_TIMEOUT" default:"60s"`
	MaxRetries  int           `envconfig:"FETCH_MAX_RETRIES" default:"3"`
	BaseBackoff time.Duration `envconfig:"FETCH_BASE_BACKOFF" default:"1s"`
	// MaxBytes bounds the accepted source payload (default 2GiB) so a
	// misbehaving source cannot fill the staging disk.
	MaxBytes int64 `envconfig:"FETCH_MAX_BYTES" default:"2147483648"`
}

type FFmpegConfig struct {
	FFmpegPath  string `envconfig:"FFMPEG_PATH" default:"ffmpeg"`
	FFprobePath string `envconfig:"FFPROBE_PATH" default:"ffprobe"`
	// ProbeTimeout bounds a single ffprobe invocation.
	ProbeTimeout time.Duration `envconfig:"FFPROBE_TIMEOUT" default:"60s"`
	// EncodeTimeout bounds a single ffmpeg invocation; a runaway encode is
	// killed and treated as a fatal stage error.
	EncodeTimeout time.Duration `envconfig:"FFMPEG_TIMEOUT" default:"15m"`
}

type MinIOConfig struct {
	Endpoint  string `envconfig:"MINIO_ENDPOINT" default:"localhost:9000"`
	AccessKey string `envconfig:"MINIO_ACCESS_KEY" default:"minioadmin"`
	SecretKey string `envconfig:"MINIO_SECRET_KEY" default:"minioadmin"`
	Bucket    string `envconfig:"MINIO_BUCKET" default:"reels"`
	UseSSL    bool   `envconfig:"MINIO_USE_SSL" default:"false"`
	// PublicBaseURL is the externally visible URL prefix artifacts are served
	// from (e.g. a CDN). When empty, URLs are derived from the endpoint.
	PublicBaseURL string `envconfig:"MINIO_PUBLIC_BASE_URL" default:""`
}

type RabbitMQConfig struct {
	Host     string `envconfig:"RABBITMQ_HOST" default:"localhost"`
	Port     int    `envconfig:"RABBITMQ_PORT" default:"5672"`
	User     string `envconfig:"RABBITMQ_USER" default:"reelpipe"`
	Password string `envconfig:"RABBITMQ_PASSWORD" default:"reelpipe"`
	VHost    string `envconfig:"RABBITMQ_VHOST" default:"/"`
}

func (c RabbitMQConfig) URL() string {
	return fmt.Sprintf(
		"amqp://%s:%s@%s:%d%s",
		c.User, c.Password, c.Host, c.Port, c.VHost,
	)
}

type RedisConfig struct {
	Host        string        `envconfig:"REDIS_HOST" default:"localhost"`
	Port        int           `envconfig:"REDIS_PORT" default:"6379"`
	Password    string        `envconfig:"REDIS_PASSWORD" default:""`
	DB          int           `envconfig:"REDIS_DB" default:"0"`
	ProgressTTL time.Duration `envconfig:"REDIS_PROGRESS_TTL" default:"1h"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type CallbackConfig struct {
	// URL is the status-reporting endpoint informed of terminal outcomes.
	// Empty disables notification.
	URL     string        `envconfig:"STATUS_CALLBACK_URL" default:""`
	Timeout time.Duration `envconfig:"STATUS_CALLBACK_TIMEOUT" default:"10s"`
}

type OpsConfig struct {
	Addr            string        `envconfig:"OPS_ADDR" default:":9090"`
	ReadTimeout     time.Duration `envconfig:"OPS_READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"OPS_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"OPS_SHUTDOWN_TIMEOUT" default:"10s"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}
