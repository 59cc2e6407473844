package sandbox_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/oas-sandbox/engine/tests/testhelpers"
)

func newSession() string {
	return "sess-" + uuid.NewString()
}

func request(method, path, session string, body any) *testhelpers.Response {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		Expect(err).NotTo(HaveOccurred())
		reader = bytes.NewReader(raw)
	}

	start := time.Now()
	req, err := http.NewRequest(method, env.baseURL+path, reader)
	Expect(err).NotTo(HaveOccurred())
	req.Header.Set("Content-Type", "application/json")
	if session != "" {
		req.Header.Set("X-Sandbox-Session", session)
	}

	resp, err := env.client.Do(req)
	if err != nil {
		return &testhelpers.Response{Error: err}
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)

	return &testhelpers.Response{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       string(raw),
		JSON:       testhelpers.DecodeJSON(string(raw)),
		Duration:   time.Since(start),
	}
}

var _ = Describe("stateful create and read", func() {
	It("stores a widget on create and returns it on a subsequent read", func() {
		session := newSession()

		By("creating a widget")
		created := request(http.MethodPost, "/widgets", session, map[string]any{"name": "gadget-1"})
		testhelpers.ExpectStatus(created, http.StatusCreated)
		testhelpers.ExpectJSONField(created, "name", "gadget-1")

		By("reading it back by id")
		fetched := request(http.MethodGet, "/widgets/gadget-1", session, nil)
		testhelpers.ExpectStatus(fetched, http.StatusOK)
		testhelpers.ExpectJSONField(fetched, "name", "gadget-1")
	})

	It("reports 404 for a widget that was never created in this session", func() {
		session := newSession()
		fetched := request(http.MethodGet, "/widgets/does-not-exist", session, nil)
		testhelpers.ExpectStatus(fetched, http.StatusNotFound)
	})
})

var _ = Describe("counters with a default TTL", func() {
	It("increments once per call within the same session", func() {
		session := newSession()

		first := request(http.MethodPost, "/counter", session, nil)
		testhelpers.ExpectStatus(first, http.StatusOK)
		testhelpers.ExpectJSONField(first, "count", float64(1))

		second := request(http.MethodPost, "/counter", session, nil)
		testhelpers.ExpectStatus(second, http.StatusOK)
		testhelpers.ExpectJSONField(second, "count", float64(2))
	})
})

var _ = Describe("weighted enum generation", func() {
	It("only ever returns one of the declared enum values", func() {
		for i := 0; i < 20; i++ {
			resp := request(http.MethodGet, "/rollout", newSession(), nil)
			testhelpers.ExpectStatus(resp, http.StatusOK)
			bucket, _ := resp.JSON["bucket"].(string)
			Expect(bucket).To(Or(Equal("control"), Equal("treatment")))
		}
	})
})

var _ = Describe("session isolation", func() {
	It("never leaks state set by one session into another", func() {
		sessionA := newSession()
		sessionB := newSession()

		request(http.MethodPost, "/widgets", sessionA, map[string]any{"name": "private-to-a"})

		fromB := request(http.MethodGet, "/widgets/private-to-a", sessionB, nil)
		testhelpers.ExpectStatus(fromB, http.StatusNotFound)

		fromA := request(http.MethodGet, "/widgets/private-to-a", sessionA, nil)
		testhelpers.ExpectStatus(fromA, http.StatusOK)
	})
})

var _ = Describe("the safe rule evaluator", func() {
	It("selects the matching rule by evaluating a query-driven condition", func() {
		failing := request(http.MethodGet, "/risky?fail=true", newSession(), nil)
		testhelpers.ExpectStatus(failing, http.StatusInternalServerError)
		testhelpers.ExpectJSONField(failing, "ok", false)

		succeeding := request(http.MethodGet, "/risky", newSession(), nil)
		testhelpers.ExpectStatus(succeeding, http.StatusOK)
		testhelpers.ExpectJSONField(succeeding, "ok", true)
	})
})

var _ = Describe("response validation strictness", func() {
	It("rejects a rule-authored response that violates the operation's schema", func() {
		bad := request(http.MethodPost, "/strict-echo", newSession(), map[string]any{"crash": true})
		testhelpers.ExpectProblemDocument(bad, http.StatusInternalServerError, "Response Validation Failed")
	})

	It("passes through a response that satisfies the schema", func() {
		ok := request(http.MethodPost, "/strict-echo", newSession(), map[string]any{"message": "hello"})
		testhelpers.ExpectStatus(ok, http.StatusOK)
		testhelpers.ExpectJSONField(ok, "echo", "hello")
	})
})
