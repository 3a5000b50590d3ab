package forwarder

import (
	"context"
	"errors"

	"github.com/benmeehan/findmy-agent/internal/models"
	"github.com/rs/zerolog"
)

var errPublishTimeout = errors.New("timed out waiting for publish acknowledgement")

// Forwarder delivers accepted readings somewhere and reports one outcome per
// reading, in input order.
type Forwarder interface {
	Name() string
	Forward(ctx context.Context, updates []models.LocationUpdate) []models.ForwardOutcome
}

// MultiForwarder sends every reading to a primary forwarder and any number of
// secondaries. Only the primary's outcomes are reported; secondary failures
// are logged.
type MultiForwarder struct {
	primary     Forwarder
	secondaries []Forwarder
	logger      zerolog.Logger
}

// NewMultiForwarder creates a MultiForwarder.
func NewMultiForwarder(logger zerolog.Logger, primary Forwarder, secondaries ...Forwarder) *MultiForwarder {
	return &MultiForwarder{
		primary:     primary,
		secondaries: secondaries,
		logger:      logger,
	}
}

// Name returns the primary forwarder's name.
func (m *MultiForwarder) Name() string {
	return m.primary.Name()
}

// Forward implements Forwarder.
func (m *MultiForwarder) Forward(ctx context.Context, updates []models.LocationUpdate) []models.ForwardOutcome {
	outcomes := m.primary.Forward(ctx, updates)

	for _, fw := range m.secondaries {
		failed := 0
		for _, o := range fw.Forward(ctx, updates) {
			if o == models.OutcomeFailed {
				failed++
			}
		}
		if failed > 0 {
			m.logger.Warn().
				Str("forwarder", fw.Name()).
				Int("failed", failed).
				Int("total", len(updates)).
				Msg("Secondary forwarder could not deliver all updates")
		}
	}

	return outcomes
}

func fill(n int, o models.ForwardOutcome) []models.ForwardOutcome {
	out := make([]models.ForwardOutcome, n)
	for i := range out {
		out[i] = o
	}
	return out
}
