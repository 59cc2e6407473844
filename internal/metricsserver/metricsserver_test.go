package metricsserver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
)

func TestStartDisabledReturnsNil(t *testing.T) {
	srv, err := Start(false, ":0", "/metrics", nil, nil)
	require.NoError(t, err)
	assert.Nil(t, srv)
}

type recordingHandler struct{ served bool }

func (h *recordingHandler) ServeHTTP(ctx *fasthttp.RequestCtx) {
	h.served = true
	ctx.SetStatusCode(fasthttp.StatusOK)
}

func TestRequestHandlerServesOnlyConfiguredPath(t *testing.T) {
	h := &recordingHandler{}
	handler := requestHandler("/metrics", h)

	ctx := &fasthttp.RequestCtx{}
	ctx.Request.SetRequestURI("/other")
	handler(ctx)
	assert.False(t, h.served)
	assert.Equal(t, fasthttp.StatusNotFound, ctx.Response.StatusCode())

	ctx2 := &fasthttp.RequestCtx{}
	ctx2.Request.SetRequestURI("/metrics")
	handler(ctx2)
	assert.True(t, h.served)
	assert.Equal(t, fasthttp.StatusOK, ctx2.Response.StatusCode())
}
