package service_registry

import (
	"errors"
	"fmt"

	"github.com/benmeehan/findmy-agent/internal/cache"
	"github.com/benmeehan/findmy-agent/internal/forwarder"
	"github.com/benmeehan/findmy-agent/internal/metrics"
	"github.com/benmeehan/findmy-agent/internal/registry"
	"github.com/benmeehan/findmy-agent/internal/services"
	"github.com/benmeehan/findmy-agent/internal/utils"
	"github.com/rs/zerolog"
)

// ServiceRegistry manages the lifecycle of various services in the system.
type ServiceRegistry struct {
	services    map[string]registry.Service // Stores registered services
	serviceKeys []string                    // Maintains order of service registration
	source      cache.Source
	forwarder   forwarder.Forwarder
	metrics     *metrics.Metrics
	Logger      zerolog.Logger
}

// NewServiceRegistry initializes a new service registry with dependencies.
func NewServiceRegistry(source cache.Source, fw forwarder.Forwarder, m *metrics.Metrics, logger zerolog.Logger) *ServiceRegistry {
	return &ServiceRegistry{
		services:  make(map[string]registry.Service),
		source:    source,
		forwarder: fw,
		metrics:   m,
		Logger:    logger,
	}
}

// RegisterService adds a new service to the registry.
func (sr *ServiceRegistry) RegisterService(name string, svc registry.Service) {
	if _, exists := sr.services[name]; exists {
		sr.Logger.Warn().Msgf("Service %s is already registered", name)
		return
	}
	sr.services[name] = svc
	sr.serviceKeys = append(sr.serviceKeys, name)
	sr.Logger.Info().Msgf("Registered service: %s", name)
}

// Get returns a registered service by name.
func (sr *ServiceRegistry) Get(name string) (registry.Service, bool) {
	svc, ok := sr.services[name]
	return svc, ok
}

// StartServices initiates all registered services in order.
// If a service fails to start, it stops already started services.
func (sr *ServiceRegistry) StartServices() error {
	startedServices := []string{}

	for _, name := range sr.serviceKeys {
		svc := sr.services[name]
		sr.Logger.Info().Msgf("Starting service: %s", name)
		if err := svc.Start(); err != nil {
			sr.Logger.Error().Err(err).Msgf("Failed to start service: %s", name)

			// Stop already started services before returning
			sr.Logger.Warn().Msg("Stopping already started services due to startup failure...")
			for i := len(startedServices) - 1; i >= 0; i-- {
				_ = sr.services[startedServices[i]].Stop()
			}
			return err
		}
		startedServices = append(startedServices, name)
	}

	return nil
}

// StopServices stops all services in reverse order.
func (sr *ServiceRegistry) StopServices() error {
	var stopErrors []error
	for i := len(sr.serviceKeys) - 1; i >= 0; i-- {
		name := sr.serviceKeys[i]
		if err := sr.services[name].Stop(); err != nil {
			stopErrors = append(stopErrors, fmt.Errorf("failed to stop %s: %w", name, err))
		}
	}
	if len(stopErrors) > 0 {
		for _, e := range stopErrors {
			sr.Logger.Error().Err(e).Msg("Service stop failure")
		}
		return errors.Join(stopErrors...)
	}
	return nil
}

// RegisterServices initializes and registers enabled services based on configuration.
func (sr *ServiceRegistry) RegisterServices(config *utils.Config) error {
	servicesInOrder := []struct {
		name        string
		enabled     bool
		constructor func() (registry.Service, error)
	}{
		{
			name:    "metrics",
			enabled: config.Metrics.Enabled,
			constructor: func() (registry.Service, error) {
				if sr.metrics == nil {
					return nil, errors.New("metrics enabled but no collectors configured")
				}
				return services.NewMetricsService(config.Metrics.ListenAddress, sr.metrics, sr.Logger), nil
			},
		},
		{
			name:    "location",
			enabled: true,
			constructor: func() (registry.Service, error) {
				return services.NewLocationService(
					config.Poll.Interval,
					config.Poll.MaxConsecutiveErrors,
					sr.source,
					sr.forwarder,
					sr.metrics,
					sr.Logger,
				), nil
			},
		},
	}

	var registeredServices []string
	for _, svc := range servicesInOrder {
		if svc.enabled {
			serviceInstance, err := svc.constructor()
			if err != nil {
				sr.Logger.Error().Err(err).Msgf("Failed to create %s service", svc.name)
				return err
			}
			sr.RegisterService(svc.name, serviceInstance)
			registeredServices = append(registeredServices, svc.name)
		}
	}

	sr.Logger.Info().Msgf("Registered services in order: %v", registeredServices)
	return nil
}
