// Package testhelpers holds Gomega-based assertions shared across the
// acceptance suite, kept separate from suite_test.go so they can be reused
// by future suites without importing the ginkgo package tree.
package testhelpers

import (
	"encoding/json"
	"net/http"
	"time"

	. "github.com/onsi/gomega"
)

// Response is what an acceptance test gets back from a call against a
// running sandboxd instance.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       string
	JSON       map[string]any
	Duration   time.Duration
	Error      error
}

// ExpectNoError checks that the request itself completed (no transport
// error), independent of what status code came back.
func ExpectNoError(r *Response) {
	Expect(r).NotTo(BeNil(), "response should not be nil")
	Expect(r.Error).To(BeNil(), "request should not have failed at the transport level")
}

// ExpectStatus asserts the response's HTTP status code.
func ExpectStatus(r *Response, status int) {
	ExpectNoError(r)
	Expect(r.StatusCode).To(Equal(status), "unexpected status code; body was: %s", r.Body)
}

// ExpectJSONField asserts that the decoded JSON body has field set to an
// equal value.
func ExpectJSONField(r *Response, field string, value any) {
	ExpectNoError(r)
	Expect(r.JSON).NotTo(BeNil(), "response body was not valid JSON: %s", r.Body)
	Expect(r.JSON).To(HaveKeyWithValue(field, value))
}

// ExpectProblemDocument asserts the response is an RFC 7807 problem+json
// error with the given status and that its title contains substr.
func ExpectProblemDocument(r *Response, status int, titleSubstr string) {
	ExpectStatus(r, status)
	Expect(r.Headers.Get("Content-Type")).To(ContainSubstring("problem+json"))
	title, _ := r.JSON["title"].(string)
	Expect(title).To(ContainSubstring(titleSubstr))
}

// DecodeJSON attempts to unmarshal raw into a map, swallowing the error -
// callers assert on r.JSON being nil when they care whether decoding
// succeeded.
func DecodeJSON(raw string) map[string]any {
	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}
