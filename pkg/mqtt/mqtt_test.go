package mqtt_test

import (
	"errors"
	"testing"

	"github.com/benmeehan/findmy-agent/internal/mocks"
	"github.com/benmeehan/findmy-agent/pkg/mqtt"
	"github.com/stretchr/testify/assert"
)

func TestMqttService_Initialize_MissingCACertificate(t *testing.T) {
	mockFile := new(mocks.MockFileOperations)
	mockFile.On("ReadFileRaw", "/certs/ca.pem").Return(nil, errors.New("no such file"))

	svc := mqtt.NewMqttService(mockFile)
	err := svc.Initialize(mqtt.Options{Broker: "tcp://localhost:1883", ClientID: "test", CACertificate: "/certs/ca.pem"})

	assert.ErrorContains(t, err, "failed to read CA certificate")
	mockFile.AssertExpectations(t)
}

func TestMqttService_Initialize_InvalidCACertificate(t *testing.T) {
	mockFile := new(mocks.MockFileOperations)
	mockFile.On("ReadFileRaw", "/certs/ca.pem").Return([]byte("not a pem"), nil)

	svc := mqtt.NewMqttService(mockFile)
	err := svc.Initialize(mqtt.Options{Broker: "tcp://localhost:1883", ClientID: "test", CACertificate: "/certs/ca.pem"})

	assert.EqualError(t, err, "failed to append CA certificate")
}

func TestMqttService_Disconnect_Uninitialized(t *testing.T) {
	svc := mqtt.NewMqttService(nil)
	assert.NotPanics(t, func() { svc.Disconnect(250) })
}
