package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type (
	Config struct {
		HTTP     HTTP
		Log      Log
		PG       PG
		Redis    Redis
		Kafka    Kafka
		SMTP     SMTP
		Pipeline Pipeline
	}

	HTTP struct {
		Port           string `env:"HTTP_PORT,required"`
		UsePreforkMode bool   `env:"HTTP_USE_PREFORK_MODE" envDefault:"false"`
	}

	Log struct {
		Level string `env:"LOG_LEVEL,required"`
	}

	PG struct {
		PoolMax int    `env:"PG_POOL_MAX,required"`
		URL     string `env:"PG_URL,required"`
	}

	Redis struct {
		Addr        string        `env:"REDIS_ADDR,required"`
		Password    string        `env:"REDIS_PASSWORD" envDefault:""`
		DB          int           `env:"REDIS_DB" envDefault:"0"`
		SnapshotTTL time.Duration `env:"REDIS_SNAPSHOT_TTL" envDefault:"24h"`
	}

	Kafka struct {
		Brokers []string `env:"KAFKA_BROKERS,required"`

		DispatchTopic string `env:"KAFKA_TOPIC_DISPATCH" envDefault:"campaigns.dispatch"`
		DeliveryTopic string `env:"KAFKA_TOPIC_DELIVERY" envDefault:"campaigns.delivery"`
		StatusTopic   string `env:"KAFKA_TOPIC_STATUS" envDefault:"campaigns.status"`

		Partitions        int `env:"KAFKA_TOPIC_PARTITIONS" envDefault:"3"`
		ReplicationFactor int `env:"KAFKA_TOPIC_REPLICATION_FACTOR" envDefault:"1"`

		DispatcherGroupID string `env:"KAFKA_GROUP_DISPATCHER" envDefault:"crm-dispatcher"`
		DeliveryGroupID   string `env:"KAFKA_GROUP_DELIVERY" envDefault:"crm-delivery"`
		StatusGroupID     string `env:"KAFKA_GROUP_STATUS" envDefault:"crm-status"`
	}

	SMTP struct {
		Host     string `env:"SMTP_HOST,required"`
		Port     int    `env:"SMTP_PORT" envDefault:"587"`
		Username string `env:"SMTP_USER" envDefault:""`
		Password string `env:"SMTP_PASS" envDefault:""`
		From     string `env:"SMTP_FROM,required"`
	}

	Pipeline struct {
		RestartDelay    time.Duration `env:"PIPELINE_RESTART_DELAY" envDefault:"5s"`
		CommitTimeout   time.Duration `env:"PIPELINE_COMMIT_TIMEOUT" envDefault:"2s"`
		ShutdownTimeout time.Duration `env:"PIPELINE_SHUTDOWN_TIMEOUT" envDefault:"5s"`

		DefaultTTLMillis int64 `env:"PIPELINE_DEFAULT_TTL_MS" envDefault:"3600000"`
		DefaultBatchSize int   `env:"PIPELINE_DEFAULT_BATCH_SIZE" envDefault:"100"`
	}
)

func New() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	return cfg, nil
}
