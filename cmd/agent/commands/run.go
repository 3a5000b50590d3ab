package commands

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/benmeehan/findmy-agent/internal/cache"
	"github.com/benmeehan/findmy-agent/internal/constants"
	"github.com/benmeehan/findmy-agent/internal/forwarder"
	"github.com/benmeehan/findmy-agent/internal/metrics"
	"github.com/benmeehan/findmy-agent/internal/service_registry"
	"github.com/benmeehan/findmy-agent/internal/services"
	"github.com/benmeehan/findmy-agent/pkg/backend"
	"github.com/benmeehan/findmy-agent/pkg/mqtt"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func addRunFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.Int("interval", 0, "Polling interval in seconds (default from config, 10)")
	flags.Int("batch-size", 0, "Maximum locations to send in one request")
	flags.Bool("test", false, "Test connection and run once, then exit")

	for _, name := range []string{"interval", "batch-size", "test"} {
		viper.BindPFlag(name, flags.Lookup(name))
	}
}

func runPoller(cmd *cobra.Command, args []string) error {
	rt, err := loadRuntime()
	if err != nil {
		return err
	}
	defer rt.closer.Close()

	config := rt.config
	log := rt.logger

	if viper.IsSet("interval") && viper.GetInt("interval") > 0 {
		config.Poll.Interval = time.Duration(viper.GetInt("interval")) * time.Second
	}
	if viper.IsSet("batch-size") && viper.GetInt("batch-size") > 0 {
		config.Poll.BatchSize = viper.GetInt("batch-size")
	}

	client := backend.NewClient(config.Server.URL, config.Server.Timeout, constants.UserAgent())
	source := cache.NewReader(config.Cache.Path, rt.fileClient, log)

	log.Info().Msg("FindMyCat client starting...")
	log.Info().Str("server", client.ServerURL()).Msg("Server")
	log.Info().Str("cache", source.Path()).Msg("Cache")
	log.Info().Dur("interval", config.Poll.Interval).Msg("Poll interval")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	health, err := client.Health(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Cannot connect to server. Please check server is running.")
		return err
	}
	log.Info().Interface("health", health).Msg("Connected to server")

	var fw forwarder.Forwarder = forwarder.NewHTTPForwarder(client, config.Poll.BatchSize, log)
	var secondaries []forwarder.Forwarder

	if config.History.File != "" {
		historyPath := cache.ExpandHome(config.History.File)
		log.Info().Str("path", historyPath).Msg("Appending location history")
		secondaries = append(secondaries, forwarder.NewCSVForwarder(historyPath, log))
	}

	if config.MQTT.Enabled {
		mqttClient := mqtt.NewMqttService(rt.fileClient)
		clientID := config.MQTT.ClientID + "-" + uuid.New().String()
		log.Info().Str("client_id", clientID).Msg("Using MQTT Client ID")

		err := mqttClient.Initialize(mqtt.Options{
			Broker:         config.MQTT.Broker,
			ClientID:       clientID,
			Username:       config.MQTT.Username,
			Password:       config.MQTT.Password,
			CACertificate:  config.MQTT.CACertificate,
			ConnectTimeout: config.Server.Timeout,
		})
		if err != nil {
			log.Error().Err(err).Msg("Failed to initialize MQTT connection")
			return err
		}
		defer mqttClient.Disconnect(250)

		secondaries = append(secondaries,
			forwarder.NewMQTTForwarder(config.MQTT.Topic, config.MQTT.QOS, config.MQTT.PublishTimeout, mqttClient, log))
	}

	if len(secondaries) > 0 {
		fw = forwarder.NewMultiForwarder(log, fw, secondaries...)
	}

	m := metrics.NewMetrics()

	if viper.GetBool("test") {
		log.Info().Msg("Running in test mode...")
		svc := services.NewLocationService(config.Poll.Interval, 0, source, fw, m, log)
		if _, err := svc.RunOnce(ctx); err != nil {
			log.Error().Err(err).Msg("Test failed")
			return err
		}
		log.Info().Msg("Test completed successfully")
		return nil
	}

	serviceRegistry := service_registry.NewServiceRegistry(source, fw, m, log)
	if err := serviceRegistry.RegisterServices(config); err != nil {
		return err
	}
	if err := serviceRegistry.StartServices(); err != nil {
		return err
	}
	log.Info().Msg("All services started successfully")

	var loopDone <-chan struct{}
	if svc, ok := serviceRegistry.Get("location"); ok {
		if ls, ok := svc.(*services.LocationService); ok {
			loopDone = ls.Done()
		}
	}

	var runErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("Stopped by user")
	case <-loopDone:
		runErr = errors.New("location polling stopped after repeated errors")
	}

	log.Info().Msg("Shutting down gracefully...")
	if err := serviceRegistry.StopServices(); err != nil {
		log.Error().Err(err).Msg("Failed to stop services cleanly")
	}
	log.Info().Msg("FindMyCat client stopped")

	return runErr
}
