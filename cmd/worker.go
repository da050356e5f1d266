package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/frahmantamala/kitchen-ops/internal/core/database"
	"github.com/frahmantamala/kitchen-ops/internal/notification"
	notificationPostgres "github.com/frahmantamala/kitchen-ops/internal/notification/postgres"
	"github.com/frahmantamala/kitchen-ops/pkg/logger"
	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start background worker pools",
	Long:  `Start and manage worker pools for background jobs such as notification delivery.`,
}

var notificationWorkerCmd = &cobra.Command{
	Use:   "notifications",
	Short: "Start notification delivery worker pool",
	Long:  `Poll undelivered notifications and push them to the configured webhook`,
	Run: func(cmd *cobra.Command, args []string) {
		startNotificationWorker()
	},
}

var (
	maxWorkers   int
	jobQueueSize int
	batchSize    int
	webhookURL   string
)

func startNotificationWorker() {
	config, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logger.LoggerWrapper().With("component", "notification_worker")

	delivererConfig := notification.DelivererConfig{
		MaxWorkers:   getIntFlag(maxWorkers, config.Notification.MaxWorkers),
		JobQueueSize: getIntFlag(jobQueueSize, config.Notification.JobQueueSize),
		BatchSize:    getIntFlag(batchSize, config.Notification.BatchSize),
		PollInterval: config.Notification.PollInterval,
		MaxAttempts:  config.Notification.MaxAttempts,
	}
	url := getStringFlag(webhookURL, config.Notification.WebhookURL)
	if url == "" {
		fmt.Fprintln(os.Stderr, "notification.webhook_url is not configured")
		os.Exit(1)
	}

	handles, err := database.Open(config.Database, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize database: %v\n", err)
		os.Exit(1)
	}
	defer handles.Close()

	sender := notification.NewWebhookSender(url, config.Notification.RequestTimeout, config.Notification.MaxRetryElapsed)
	deliverer := notification.NewDeliverer(delivererConfig, notificationPostgres.NewNotificationRepository(handles.Gorm), sender, logger)

	logger.Info("starting notification worker",
		"max_workers", delivererConfig.MaxWorkers,
		"job_queue_size", delivererConfig.JobQueueSize,
		"batch_size", delivererConfig.BatchSize,
		"poll_interval", delivererConfig.PollInterval,
		"webhook_url", url)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	done := make(chan error, 1)
	go func() {
		done <- deliverer.Run(ctx)
	}()

	logger.Info("notification worker is running. Press Ctrl+C to stop.")

	select {
	case err := <-done:
		if err != nil {
			logger.Error("notification worker stopped", "error", err)
		}
		return
	case <-ctx.Done():
	}
	logger.Info("received signal, shutting down notification worker")

	select {
	case <-done:
		logger.Info("notification worker pool shutdown complete")
	case <-time.After(30 * time.Second):
		logger.Warn("shutdown timeout reached, forcing exit")
	}
}

func getStringFlag(flagValue, configValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return configValue
}

func getIntFlag(flagValue, configValue int) int {
	if flagValue > 0 {
		return flagValue
	}
	return configValue
}

func init() {
	notificationWorkerCmd.Flags().IntVar(&maxWorkers, "max-workers", 0, "Maximum number of workers (overrides config)")
	notificationWorkerCmd.Flags().IntVar(&jobQueueSize, "job-queue-size", 0, "Job queue buffer size (overrides config)")
	notificationWorkerCmd.Flags().IntVar(&batchSize, "batch-size", 0, "Notifications fetched per poll (overrides config)")
	notificationWorkerCmd.Flags().StringVar(&webhookURL, "webhook-url", "", "Webhook delivery URL (overrides config)")

	workerCmd.AddCommand(notificationWorkerCmd)

	rootCmd.AddCommand(workerCmd)
}
