package httpserver

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/valyala/fasthttp"

	"github.com/oas-sandbox/engine/internal/pipeline"
)

// buildRequest decodes a fasthttp.RequestCtx into the transport-agnostic
// pipeline.Request. A JSON body is decoded eagerly since both rule
// conditions and schema validation need it as a Go value, not raw bytes.
func buildRequest(ctx *fasthttp.RequestCtx, requestID string) (*pipeline.Request, error) {
	req := &pipeline.Request{
		ID:      requestID,
		Method:  string(ctx.Method()),
		Path:    string(ctx.Path()),
		Headers: make(map[string]string),
		Cookies: make(map[string]string),
		Query:   make(map[string]string),
	}

	ctx.Request.Header.VisitAll(func(key, value []byte) {
		req.Headers[string(key)] = string(value)
	})
	ctx.Request.Header.VisitAllCookie(func(key, value []byte) {
		req.Cookies[string(key)] = string(value)
	})
	ctx.QueryArgs().VisitAll(func(key, value []byte) {
		req.Query[string(key)] = string(value)
	})

	body := ctx.Request.Body()
	if len(body) > 0 && looksLikeJSON(ctx) {
		var decoded any
		if err := json.Unmarshal(body, &decoded); err != nil {
			return nil, fmt.Errorf("httpserver: malformed JSON body: %w", err)
		}
		req.Body = decoded
	}

	return req, nil
}

func looksLikeJSON(ctx *fasthttp.RequestCtx) bool {
	ct := string(ctx.Request.Header.ContentType())
	return ct == "" || strings.Contains(ct, "json")
}
