package httpserver

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/valyala/fasthttp"

	"github.com/oas-sandbox/engine/internal/problem"
	"github.com/oas-sandbox/engine/internal/rules"
)

const problemContentType = "application/problem+json"

// writeResponse renders a rules.Response onto the wire, gzip-compressing
// the body when the client advertises support for it.
func writeResponse(ctx *fasthttp.RequestCtx, resp *rules.Response) {
	for k, v := range resp.Headers {
		ctx.Response.Header.Set(k, v)
	}

	status := resp.Status
	if status == 0 {
		status = fasthttp.StatusOK
	}
	ctx.Response.SetStatusCode(status)

	if resp.Body == nil {
		return
	}
	raw, err := json.Marshal(resp.Body)
	if err != nil {
		writeProblem(ctx, problem.TemplateFailure("failed to encode response body", err), string(ctx.Path()))
		return
	}
	if len(ctx.Response.Header.ContentType()) == 0 {
		ctx.Response.Header.SetContentType("application/json")
	}
	writeCompressibleBody(ctx, raw)
}

// writeProblem renders an RFC 7807 problem document for err, unwrapping a
// *problem.Error for its status/category or falling back to a generic 500.
func writeProblem(ctx *fasthttp.RequestCtx, err error, instance string) {
	perr, ok := err.(*problem.Error)
	if !ok {
		perr = problem.RuleFailure("unexpected internal error", err)
	}
	doc := perr.Document(instance)

	raw, encErr := json.Marshal(doc)
	if encErr != nil {
		ctx.Response.SetStatusCode(fasthttp.StatusInternalServerError)
		ctx.Response.SetBodyString(`{"title":"Internal Server Error","status":500}`)
		return
	}
	ctx.Response.Header.SetContentType(problemContentType)
	ctx.Response.SetStatusCode(doc.Status)
	writeCompressibleBody(ctx, raw)
}

// writeCompressibleBody gzip-encodes the body when the request's
// Accept-Encoding allows it, otherwise writes it unmodified.
func writeCompressibleBody(ctx *fasthttp.RequestCtx, raw []byte) {
	if !strings.Contains(string(ctx.Request.Header.Peek("Accept-Encoding")), "gzip") {
		ctx.Response.SetBody(raw)
		return
	}

	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if _, err := gw.Write(raw); err != nil {
		ctx.Response.SetBody(raw)
		return
	}
	if err := gw.Close(); err != nil {
		ctx.Response.SetBody(raw)
		return
	}
	ctx.Response.Header.Set("Content-Encoding", "gzip")
	ctx.Response.SetBody(buf.Bytes())
}
