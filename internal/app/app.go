package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/amitcrm/campaign-pipeline/config"
	kafkactrl "github.com/amitcrm/campaign-pipeline/internal/controller/kafka"
	"github.com/amitcrm/campaign-pipeline/internal/controller/restapi"
	"github.com/amitcrm/campaign-pipeline/internal/infrastructure/email"
	infrakafka "github.com/amitcrm/campaign-pipeline/internal/infrastructure/kafka"
	"github.com/amitcrm/campaign-pipeline/internal/infrastructure/rediscache"
	"github.com/amitcrm/campaign-pipeline/internal/repo/persistent"
	"github.com/amitcrm/campaign-pipeline/internal/usecase/campaign"
	"github.com/amitcrm/campaign-pipeline/internal/usecase/delivery"
	"github.com/amitcrm/campaign-pipeline/internal/usecase/dispatch"
	"github.com/amitcrm/campaign-pipeline/internal/usecase/progress"
	"github.com/amitcrm/campaign-pipeline/pkg/httpserver"
	"github.com/amitcrm/campaign-pipeline/pkg/kafka/admin"
	"github.com/amitcrm/campaign-pipeline/pkg/kafka/consumer"
	"github.com/amitcrm/campaign-pipeline/pkg/kafka/producer"
	"github.com/amitcrm/campaign-pipeline/pkg/logger"
	"github.com/amitcrm/campaign-pipeline/pkg/postgres"
)

func Run(cfg *config.Config) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Logger
	l := logger.New(cfg.Log.Level)

	// Postgres
	pg, err := postgres.New(cfg.PG.URL, postgres.MaxPoolSize(cfg.PG.PoolMax))
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - postgres.New: %w", err))
	}
	defer pg.Close()

	// Redis
	snapshotCache, err := rediscache.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.SnapshotTTL)
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - rediscache.New: %w", err))
	}
	defer snapshotCache.Close()

	// Topics. Creation failing is not fatal: the broker may have them
	// pre-provisioned or auto-create enabled.
	err = admin.EnsureTopics(ctx, cfg.Kafka.Brokers, cfg.Kafka.Partitions, cfg.Kafka.ReplicationFactor,
		cfg.Kafka.DispatchTopic, cfg.Kafka.DeliveryTopic, cfg.Kafka.StatusTopic)
	if err != nil {
		l.Warn("app - Run - admin.EnsureTopics: %s", err)
	}

	// Kafka Producer
	kafkaProducer, err := producer.New(ctx, cfg.Kafka.Brokers)
	if err != nil {
		l.Fatal(fmt.Errorf("app - Run - producer.New: %w", err))
	}

	events := infrakafka.NewEventProducer(kafkaProducer, infrakafka.Topics{
		Dispatch: cfg.Kafka.DispatchTopic,
		Delivery: cfg.Kafka.DeliveryTopic,
		Status:   cfg.Kafka.StatusTopic,
	})
	defer events.Close()

	// Repository
	campaignRepo := persistent.NewCampaignRepo(pg)
	customerRepo := persistent.NewCustomerRepo(pg)
	deliveryLogRepo := persistent.NewDeliveryLogRepo(pg)

	// Mail
	sender := email.NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From)

	// Use-Case
	dispatchUseCase := dispatch.New(campaignRepo, events, l)
	deliveryUseCase := delivery.New(campaignRepo, customerRepo, deliveryLogRepo, pg, sender, events, l)
	progressUseCase := progress.New(snapshotCache, l)
	campaignUseCase := campaign.New(
		campaignRepo,
		deliveryLogRepo,
		events,
		snapshotCache,
		cfg.Pipeline.DefaultTTLMillis,
		cfg.Pipeline.DefaultBatchSize,
		l,
	)

	// Workers
	dispatcherWorker := kafkactrl.NewWorker(
		"dispatcher",
		consumerFactory(cfg.Kafka.Brokers, cfg.Kafka.DispatcherGroupID, cfg.Kafka.DispatchTopic),
		kafkactrl.NewDispatcherHandler(dispatchUseCase),
		cfg.Pipeline.RestartDelay,
		cfg.Pipeline.CommitTimeout,
		l,
	)

	deliveryWorker := kafkactrl.NewWorker(
		"delivery",
		consumerFactory(cfg.Kafka.Brokers, cfg.Kafka.DeliveryGroupID, cfg.Kafka.DeliveryTopic),
		kafkactrl.NewDeliveryHandler(deliveryUseCase),
		cfg.Pipeline.RestartDelay,
		cfg.Pipeline.CommitTimeout,
		l,
	)

	statusWorker := kafkactrl.NewWorker(
		"status",
		consumerFactory(cfg.Kafka.Brokers, cfg.Kafka.StatusGroupID, cfg.Kafka.StatusTopic),
		kafkactrl.NewStatusHandler(progressUseCase),
		cfg.Pipeline.RestartDelay,
		cfg.Pipeline.CommitTimeout,
		l,
	)

	// HTTP Server
	httpServer := httpserver.New(l, httpserver.Port(cfg.HTTP.Port), httpserver.Prefork(cfg.HTTP.UsePreforkMode))
	restapi.NewRouter(httpServer.App, campaignUseCase, l)

	// Start Components
	dispatcherWorker.Start(ctx)
	deliveryWorker.Start(ctx)
	statusWorker.Start(ctx)
	httpServer.Start()

	// Waiting Signal
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	select {
	case s := <-interrupt:
		l.Info("app - Run - signal: %s", s.String())
	case err = <-httpServer.Notify():
		l.Error(fmt.Errorf("app - Run - httpServer.Notify: %w", err))
	}

	// Shutdown
	err = httpServer.Shutdown()
	if err != nil {
		l.Error(fmt.Errorf("app - Run - httpServer.Shutdown: %w", err))
	}

	for _, w := range []*kafkactrl.Worker{dispatcherWorker, deliveryWorker, statusWorker} {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Pipeline.ShutdownTimeout)
		err = w.Shutdown(shutdownCtx)
		shutdownCancel()
		if err != nil {
			l.Error(fmt.Errorf("app - Run - worker.Shutdown: %w", err))
		}
	}
}

// consumerFactory builds a fresh group consumer per supervision cycle so a
// restarted worker resumes from its committed offsets.
func consumerFactory(brokers []string, groupID, topic string) kafkactrl.ConsumerFactory {
	return func(ctx context.Context) (kafkactrl.EventSource, error) {
		c, err := consumer.New(ctx, brokers, groupID, topic)
		if err != nil {
			return nil, fmt.Errorf("consumer.New: %w", err)
		}

		return infrakafka.NewEventConsumer(c), nil
	}
}
