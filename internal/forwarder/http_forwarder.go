package forwarder

import (
	"context"

	"github.com/benmeehan/findmy-agent/internal/models"
	"github.com/rs/zerolog"
)

// DefaultBatchSize is the largest number of readings sent in one request.
const DefaultBatchSize = 10

// BackendClient is the subset of the backend API the HTTP forwarder needs.
type BackendClient interface {
	SendUpdate(ctx context.Context, update models.LocationUpdate) (bool, error)
	SendBatch(ctx context.Context, updates []models.LocationUpdate) (models.BatchResult, error)
}

// HTTPForwarder posts readings to the backend, singly or in batches.
type HTTPForwarder struct {
	client    BackendClient
	batchSize int
	logger    zerolog.Logger
}

// NewHTTPForwarder creates an HTTPForwarder. A non-positive batchSize selects DefaultBatchSize.
func NewHTTPForwarder(client BackendClient, batchSize int, logger zerolog.Logger) *HTTPForwarder {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &HTTPForwarder{
		client:    client,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Name implements Forwarder.
func (h *HTTPForwarder) Name() string {
	return "http"
}

// Forward implements Forwarder. A single reading uses the update endpoint so
// the backend can say whether it was new; several readings go through the
// batch endpoint.
func (h *HTTPForwarder) Forward(ctx context.Context, updates []models.LocationUpdate) []models.ForwardOutcome {
	switch len(updates) {
	case 0:
		return nil
	case 1:
		return []models.ForwardOutcome{h.forwardOne(ctx, updates[0])}
	}

	outcomes := make([]models.ForwardOutcome, 0, len(updates))
	for start := 0; start < len(updates); start += h.batchSize {
		end := min(start+h.batchSize, len(updates))
		outcomes = append(outcomes, h.forwardBatch(ctx, updates[start:end])...)
	}
	return outcomes
}

func (h *HTTPForwarder) forwardOne(ctx context.Context, update models.LocationUpdate) models.ForwardOutcome {
	isNew, err := h.client.SendUpdate(ctx, update)
	if err != nil {
		h.logger.Error().Err(err).Str("device_id", update.DeviceID).Msg("Failed to send update")
		return models.OutcomeFailed
	}

	if isNew {
		h.logger.Info().Str("device_id", update.DeviceID).Msg("New location stored")
		return models.OutcomeStoredNew
	}
	h.logger.Info().Str("device_id", update.DeviceID).Msg("No change, backend already up to date")
	return models.OutcomeDuplicate
}

// forwardBatch maps the backend's aggregate counts onto the batch: the first
// NewLocations readings are reported as stored, the rest as duplicates.
func (h *HTTPForwarder) forwardBatch(ctx context.Context, batch []models.LocationUpdate) []models.ForwardOutcome {
	result, err := h.client.SendBatch(ctx, batch)
	if err != nil {
		h.logger.Error().Err(err).Int("size", len(batch)).Msg("Batch update failed")
		return fill(len(batch), models.OutcomeFailed)
	}

	h.logger.Info().
		Int("processed", result.Processed).
		Int("new", result.NewLocations).
		Msg("Sent batch update")

	outcomes := fill(len(batch), models.OutcomeDuplicate)
	for i := 0; i < result.NewLocations && i < len(outcomes); i++ {
		outcomes[i] = models.OutcomeStoredNew
	}
	return outcomes
}
