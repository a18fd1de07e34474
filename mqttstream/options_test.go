package mqttstream

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrokerURLFromParts(t *testing.T) {
	o := &Options{Host: "localhost", Port: 1883}
	assert.Equal(t, "tcp://localhost:1883", o.brokerURL())

	o = &Options{Scheme: "ssl", Host: "broker.example.com", Port: 8883}
	assert.Equal(t, "ssl://broker.example.com:8883", o.brokerURL())
}

func TestBrokerURLVerbatim(t *testing.T) {
	o := &Options{BrokerURL: "tcp://broker:1883", Host: "ignored", Port: 9999}
	assert.Equal(t, "tcp://broker:1883", o.brokerURL())
}

func TestBrokerURLMissing(t *testing.T) {
	assert.Empty(t, (&Options{}).brokerURL())
}

func TestWithDefaults(t *testing.T) {
	norm := (&Options{Host: "localhost", Port: 1883}).withDefaults()

	assert.Equal(t, DefaultConnectTimeout, norm.ConnectTimeout)
	assert.Equal(t, DefaultKeepAlive, norm.KeepAlive)
	assert.Equal(t, DefaultOperationTimeout, norm.OperationTimeout)
	assert.Equal(t, DefaultQuiesce, norm.Quiesce)
	assert.Equal(t, DefaultMaxReconnectInterval, norm.MaxReconnectInterval)
	assert.Equal(t, DefaultStreamBuffer, norm.StreamBuffer)
	assert.NotNil(t, norm.Codec)
	assert.NotNil(t, norm.Logger)
	assert.True(t, strings.HasPrefix(norm.ClientID, "mqtt-stream-"))
}

func TestWithDefaultsGeneratesUniqueClientIDs(t *testing.T) {
	a := (&Options{}).withDefaults()
	b := (&Options{}).withDefaults()
	assert.NotEqual(t, a.ClientID, b.ClientID)
}

func TestWithDefaultsKeepsExplicitValues(t *testing.T) {
	o := &Options{
		ClientID:       "fixed-id",
		ConnectTimeout: 3 * time.Second,
		StreamBuffer:   7,
	}
	norm := o.withDefaults()
	assert.Equal(t, "fixed-id", norm.ClientID)
	assert.Equal(t, 3*time.Second, norm.ConnectTimeout)
	assert.Equal(t, 7, norm.StreamBuffer)
}

func TestBuildClientOptions(t *testing.T) {
	po := BuildClientOptions(&Options{
		Host:     "localhost",
		Port:     1883,
		ClientID: "unit-test",
		Username: "alice",
		Password: "secret",
	})

	require.Len(t, po.Servers, 1)
	assert.Equal(t, "tcp://localhost:1883", po.Servers[0].String())
	assert.Equal(t, "unit-test", po.ClientID)
	assert.Equal(t, "alice", po.Username)
	assert.Equal(t, "secret", po.Password)
	assert.True(t, po.CleanSession)
	assert.True(t, po.AutoReconnect)
}

func TestBuildClientOptionsOptOuts(t *testing.T) {
	po := BuildClientOptions(&Options{
		Host:                 "localhost",
		Port:                 1883,
		PersistentSession:    true,
		DisableAutoReconnect: true,
	})

	assert.False(t, po.CleanSession)
	assert.False(t, po.AutoReconnect)
}
