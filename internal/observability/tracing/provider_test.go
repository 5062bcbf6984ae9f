package tracing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewProviderDisabledIsNoop(t *testing.T) {
	provider, err := NewProvider(nil, Config{Enabled: false}, zap.NewNop())
	require.NoError(t, err)

	_, span := provider.Tracer("test").Start(t.Context(), "op")
	assert.False(t, span.SpanContext().IsValid())
	span.End()
}

func TestNewProviderRequiresEndpoint(t *testing.T) {
	_, err := NewProvider(nil, Config{Enabled: true, ExporterEndpoint: " "}, zap.NewNop())
	assert.Error(t, err)
}

func TestNewProviderRejectsUnknownProtocol(t *testing.T) {
	_, err := NewProvider(nil, Config{Enabled: true, ExporterEndpoint: "localhost:4317", ExporterProtocol: "udp"}, zap.NewNop())
	assert.Error(t, err)
}
