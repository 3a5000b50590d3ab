package mocks

import (
	"context"
	"time"

	"github.com/benmeehan/findmy-agent/internal/models"
	"github.com/stretchr/testify/mock"
)

// MockBackendClient is a mock implementation of the backend API.
type MockBackendClient struct {
	mock.Mock
}

func (m *MockBackendClient) Health(ctx context.Context) (models.HealthStatus, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(models.HealthStatus), args.Error(1)
}

func (m *MockBackendClient) SendUpdate(ctx context.Context, update models.LocationUpdate) (bool, error) {
	args := m.Called(ctx, update)
	return args.Bool(0), args.Error(1)
}

func (m *MockBackendClient) SendBatch(ctx context.Context, updates []models.LocationUpdate) (models.BatchResult, error) {
	args := m.Called(ctx, updates)
	return args.Get(0).(models.BatchResult), args.Error(1)
}

// MockForwarder is a mock implementation of the Forwarder interface.
type MockForwarder struct {
	mock.Mock
}

func (m *MockForwarder) Name() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockForwarder) Forward(ctx context.Context, updates []models.LocationUpdate) []models.ForwardOutcome {
	args := m.Called(ctx, updates)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]models.ForwardOutcome)
}

// MockSource is a mock implementation of the cache Source interface.
type MockSource struct {
	mock.Mock
}

func (m *MockSource) ModTime() (time.Time, error) {
	args := m.Called()
	return args.Get(0).(time.Time), args.Error(1)
}

func (m *MockSource) Read() ([]models.LocationRecord, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.LocationRecord), args.Error(1)
}

func (m *MockSource) Path() string {
	args := m.Called()
	return args.String(0)
}
