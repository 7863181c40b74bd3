package natsclient

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XiandiShan/rclgo/metric"
	"github.com/XiandiShan/rclgo/pkg/retry"
)

// unreachableURL points at a port nothing listens on
const unreachableURL = "nats://127.0.0.1:1"

func failFastConfig() retry.Config {
	return retry.Config{
		MaxAttempts:  1,
		InitialDelay: time.Millisecond,
		MaxDelay:     time.Millisecond,
	}
}

func TestConnectionStatus_String(t *testing.T) {
	assert.Equal(t, "disconnected", StatusDisconnected.String())
	assert.Equal(t, "connecting", StatusConnecting.String())
	assert.Equal(t, "connected", StatusConnected.String())
	assert.Equal(t, "circuit_open", StatusCircuitOpen.String())
}

func TestNewClient_Defaults(t *testing.T) {
	c, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)
	assert.Equal(t, "nats://localhost:4222", c.URL())
	assert.Equal(t, StatusDisconnected, c.Status())
	assert.False(t, c.IsHealthy())
}

func TestClient_OperationsBeforeConnect(t *testing.T) {
	c, err := NewClient(unreachableURL)
	require.NoError(t, err)

	assert.ErrorIs(t, c.Publish("ros.0.chatter", []byte("x")), ErrNotConnected)

	_, err = c.Subscribe("ros.0.chatter", func([]byte) {})
	assert.ErrorIs(t, err, ErrNotConnected)

	_, err = c.Request("ros.0.srv.add", []byte("x"), time.Second)
	assert.ErrorIs(t, err, ErrNotConnected)

	_, err = c.JetStream()
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestClient_ConnectFailureRecordsAndReturnsTransport(t *testing.T) {
	c, err := NewClient(unreachableURL, WithRetryConfig(failFastConfig()), WithTimeout(100*time.Millisecond))
	require.NoError(t, err)

	err = c.Connect(context.Background())
	require.Error(t, err)
	assert.Equal(t, StatusDisconnected, c.Status())
}

func TestClient_CircuitOpensAfterThreshold(t *testing.T) {
	c, err := NewClient(unreachableURL,
		WithRetryConfig(failFastConfig()),
		WithTimeout(100*time.Millisecond),
		WithCircuitBreaker(2, 10*time.Second))
	require.NoError(t, err)

	require.Error(t, c.Connect(context.Background()))
	require.Error(t, c.Connect(context.Background()))
	require.Equal(t, StatusCircuitOpen, c.Status())

	err = c.Connect(context.Background())
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestClient_CloseIdempotent(t *testing.T) {
	c, err := NewClient(unreachableURL)
	require.NoError(t, err)

	require.NoError(t, c.Close(context.Background()))
	require.NoError(t, c.Close(context.Background()))
	assert.Equal(t, StatusDisconnected, c.Status())

	assert.ErrorIs(t, c.Connect(context.Background()), ErrClosed)
	assert.ErrorIs(t, c.Publish("ros.0.chatter", nil), ErrClosed)
}

func TestClient_MetricsTrackConnectionStatus(t *testing.T) {
	m := metric.NewMetrics()
	c, err := NewClient(unreachableURL, WithMetrics(m))
	require.NoError(t, err)

	c.setStatus(StatusConnected)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NATSConnected))

	c.setStatus(StatusDisconnected)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.NATSConnected))
}

func TestClient_MetricsTrackCircuitOpen(t *testing.T) {
	m := metric.NewMetrics()
	c, err := NewClient(unreachableURL,
		WithMetrics(m),
		WithCircuitBreaker(1, time.Second),
		WithRetryConfig(failFastConfig()),
	)
	require.NoError(t, err)

	c.setStatus(StatusConnected)
	c.recordFailure()
	assert.Equal(t, StatusCircuitOpen, c.Status())
	assert.Equal(t, 0.0, testutil.ToFloat64(m.NATSConnected))
}
