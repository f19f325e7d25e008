package tracing

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestInitializeDisabled(t *testing.T) {
	shutdown, err := Initialize(Config{Enabled: false}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))

	ctx, span := StartSpan(context.Background(), "investigation.run")
	defer span.End()
	assert.NotNil(t, ctx)
}

func TestInjectTraceparentWithoutSpan(t *testing.T) {
	req, err := http.NewRequest(http.MethodGet, "https://data.sec.gov/submissions/CIK0001318605.json", nil)
	require.NoError(t, err)
	InjectTraceparent(context.Background(), req)
	assert.Empty(t, req.Header.Get("traceparent"))
	assert.Empty(t, W3CTraceparent(context.Background()))
}
