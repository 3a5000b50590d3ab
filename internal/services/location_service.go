package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benmeehan/findmy-agent/internal/cache"
	"github.com/benmeehan/findmy-agent/internal/filter"
	"github.com/benmeehan/findmy-agent/internal/forwarder"
	"github.com/benmeehan/findmy-agent/internal/metrics"
	"github.com/benmeehan/findmy-agent/internal/models"
	"github.com/rs/zerolog"
)

// ErrForwardFailed is returned by RunOnce when at least one new reading could not be delivered.
var ErrForwardFailed = errors.New("failed to forward new locations")

// PollState is everything the poll loop remembers between cycles.
type PollState struct {
	Devices     filter.DeviceState
	LastModTime time.Time
}

// LocationService polls the location cache and forwards new readings.
type LocationService struct {
	// Configuration fields
	interval             time.Duration
	maxConsecutiveErrors int

	// Dependencies
	source    cache.Source
	filter    *filter.LocationFilter
	forwarder forwarder.Forwarder
	metrics   *metrics.Metrics
	logger    zerolog.Logger

	// Internal state management
	state  PollState
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	wg     sync.WaitGroup
}

// DefaultPollInterval replaces a non-positive interval.
const DefaultPollInterval = 10 * time.Second

// NewLocationService creates a new LocationService instance with the provided configuration.
// maxConsecutiveErrors of zero lets the loop run through any number of failed cycles.
func NewLocationService(interval time.Duration, maxConsecutiveErrors int, source cache.Source,
	fw forwarder.Forwarder, m *metrics.Metrics, logger zerolog.Logger) *LocationService {
	if interval <= 0 {
		logger.Warn().Dur("interval", interval).Dur("default", DefaultPollInterval).Msg("Invalid poll interval, using default")
		interval = DefaultPollInterval
	}
	return &LocationService{
		interval:             interval,
		maxConsecutiveErrors: maxConsecutiveErrors,
		source:               source,
		filter:               filter.NewLocationFilter(logger),
		forwarder:            fw,
		metrics:              m,
		logger:               logger,
		state:                PollState{Devices: filter.NewDeviceState()},
	}
}

// Start launches the poll loop in a separate goroutine. The first poll runs immediately.
func (l *LocationService) Start() error {
	if l.ctx != nil {
		l.logger.Warn().Msg("LocationService is already running")
		return errors.New("location service is already running")
	}

	l.ctx, l.cancel = context.WithCancel(context.Background())
	l.done = make(chan struct{})

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer close(l.done)
		l.runPollLoop()
	}()

	l.logger.Info().
		Str("cache", l.source.Path()).
		Str("forwarder", l.forwarder.Name()).
		Dur("interval_ms", l.interval).
		Msg("LocationService started")
	return nil
}

// Stop cancels the poll loop and waits for the current cycle to finish.
func (l *LocationService) Stop() error {
	if l.ctx == nil {
		l.logger.Warn().Msg("LocationService is not running")
		return errors.New("location service is not running")
	}

	l.cancel()
	l.wg.Wait()

	l.ctx = nil
	l.cancel = nil

	l.logger.Info().Msg("LocationService stopped")
	return nil
}

// Done is closed when the poll loop exits, either through Stop or after too
// many consecutive failed cycles. It is nil before Start.
func (l *LocationService) Done() <-chan struct{} {
	return l.done
}

// Interval returns the delay between polls.
func (l *LocationService) Interval() time.Duration {
	return l.interval
}

// State returns a copy of the state carried between cycles.
func (l *LocationService) State() PollState {
	return PollState{
		Devices:     l.state.Devices.Clone(),
		LastModTime: l.state.LastModTime,
	}
}

func (l *LocationService) runPollLoop() {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	consecutiveErrors := 0
	for {
		if _, err := l.RunOnce(l.ctx); err != nil {
			consecutiveErrors++
			l.logger.Error().Err(err).Int("consecutive_errors", consecutiveErrors).Msg("Poll cycle failed")
			if l.maxConsecutiveErrors > 0 && consecutiveErrors >= l.maxConsecutiveErrors {
				l.logger.Error().Int("consecutive_errors", consecutiveErrors).Msg("Too many consecutive errors, stopping")
				return
			}
		} else {
			consecutiveErrors = 0
		}

		select {
		case <-ticker.C:
		case <-l.ctx.Done():
			l.logger.Info().Msg("LocationService stopping gracefully")
			return
		}
	}
}

// RunOnce performs a single poll cycle and reports whether the cache had
// changed. It must not be called concurrently with a running poll loop.
func (l *LocationService) RunOnce(ctx context.Context) (bool, error) {
	next, changed, err := l.poll(ctx, l.state)
	l.state = next
	l.metrics.SetDevicesTracked(len(next.Devices))

	switch {
	case err != nil:
		l.metrics.ObserveCycle("error")
	case !changed:
		l.metrics.ObserveCycle("skipped")
	default:
		l.metrics.ObserveCycle("ok")
	}
	return changed, err
}

// poll runs one cycle against state and returns the state to carry forward.
// The modification time is only advanced once every new reading from that
// version of the cache has been delivered, so failed readings are retried.
func (l *LocationService) poll(ctx context.Context, state PollState) (PollState, bool, error) {
	if err := ctx.Err(); err != nil {
		return state, false, err
	}

	mtime, err := l.source.ModTime()
	if err != nil {
		return state, false, fmt.Errorf("location cache unavailable at %s: %w", l.source.Path(), err)
	}

	if !state.LastModTime.IsZero() && !mtime.After(state.LastModTime) {
		l.logger.Debug().Msg("No cache update detected")
		return state, false, nil
	}
	l.logger.Info().Time("mtime", mtime).Msg("Find My cache updated")

	records, err := l.source.Read()
	if err != nil {
		return state, false, err
	}
	l.metrics.ObserveRead(len(records))
	if len(records) == 0 {
		l.logger.Info().Msg("No locations found in Find My cache")
	}

	result := l.filter.Apply(records, state.Devices)
	for reason, n := range result.Rejected {
		l.metrics.ObserveRejected(string(reason), n)
	}

	next := PollState{Devices: state.Devices.Clone(), LastModTime: state.LastModTime}
	if len(result.Accepted) == 0 {
		l.logger.Info().Msg("No new locations to send")
		next.LastModTime = mtime
		return next, true, nil
	}

	outcomes := l.forwarder.Forward(ctx, result.Accepted)
	failed := commit(next.Devices, result.Accepted, outcomes)
	for _, o := range outcomes {
		l.metrics.ObserveForwarded(string(o))
	}

	if failed > 0 {
		return next, true, fmt.Errorf("%w: %d of %d", ErrForwardFailed, failed, len(result.Accepted))
	}

	next.LastModTime = mtime
	return next, true, nil
}

// commit advances devices for every delivered reading and returns how many
// were not delivered. A missing outcome counts as a failure.
func commit(devices filter.DeviceState, updates []models.LocationUpdate, outcomes []models.ForwardOutcome) int {
	failed := 0
	for i, update := range updates {
		if i >= len(outcomes) || !outcomes[i].Delivered() {
			failed++
			continue
		}
		devices.Advance(update.DeviceID, update.TimestampMs)
	}
	return failed
}
