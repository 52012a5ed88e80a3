package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"bookshelf.org/internal/auth"
	"bookshelf.org/internal/initdb"
	"bookshelf.org/internal/library"
	"bookshelf.org/internal/obs"
	"bookshelf.org/internal/store/memory"
)

const testSecret = "handler-test-secret"

type apiClient struct {
	baseURL string
	client  *http.Client
	store   *memory.Store
	t       *testing.T
}

func testTokenConfig() auth.TokenConfig {
	return auth.TokenConfig{Secret: []byte(testSecret), Algorithm: "HS256", TTL: 30 * time.Minute}
}

func newTestAPI(t *testing.T) *apiClient {
	t.Helper()
	return newTestAPIWithReady(t, ReadyProbe{})
}

func newTestAPIWithReady(t *testing.T, ready Readiness) *apiClient {
	t.Helper()

	st := memory.New()
	hasher := auth.NewHasher(auth.WithCost(bcrypt.MinCost))
	if _, err := initdb.Seed(context.Background(), st, st, hasher); err != nil {
		t.Fatalf("seed: %v", err)
	}
	tokens, err := auth.NewTokenIssuer(testTokenConfig())
	if err != nil {
		t.Fatalf("token issuer: %v", err)
	}

	api := New(Deps{
		Accounts:      auth.NewAccounts(st, hasher, tokens),
		Gate:          auth.NewGate(tokens, st),
		Library:       library.NewService(st),
		Ready:         ready,
		Version:       "test",
		CORSOrigins:   []string{"*"},
		RateBurst:     1000,
		RatePerSecond: 1000,
	})

	ctx, cancel := context.WithCancel(context.Background())
	srv := httptest.NewServer(api.Handler(ctx))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})

	return &apiClient{
		baseURL: srv.URL,
		client:  srv.Client(),
		store:   st,
		t:       t,
	}
}

func (c *apiClient) do(method, path string, body any, headers map[string]string) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func (c *apiClient) post(path string, body any, headers map[string]string) *http.Response {
	c.t.Helper()
	return c.do(http.MethodPost, path, body, headers)
}

func (c *apiClient) get(path string, params url.Values, headers map[string]string) *http.Response {
	c.t.Helper()
	if params != nil {
		path += "?" + params.Encode()
	}
	return c.do(http.MethodGet, path, nil, headers)
}

func (c *apiClient) postForm(path string, form url.Values) *http.Response {
	c.t.Helper()
	resp, err := c.client.PostForm(c.baseURL+path, form)
	if err != nil {
		c.t.Fatalf("post form: %v", err)
	}
	return resp
}

func (c *apiClient) register(username, email, password string) string {
	c.t.Helper()
	resp := c.post("/auth/register", map[string]any{
		"username": username,
		"email":    email,
		"password": password,
	}, nil)
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		c.t.Fatalf("register %s: status %d", username, resp.StatusCode)
	}
	tok := decode[map[string]any](c.t, resp)
	if tok["token_type"] != "bearer" {
		c.t.Fatalf("unexpected token type: %v", tok["token_type"])
	}
	access, _ := tok["access_token"].(string)
	if access == "" {
		c.t.Fatal("empty access token")
	}
	return access
}

func bearerHeader(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func decode[T any](t *testing.T, r *http.Response) T {
	t.Helper()
	defer r.Body.Close()
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		resp.Body.Close()
		t.Fatalf("expected %d, got %d", want, resp.StatusCode)
	}
}

// expectUnauthorized checks the uniform rejection shape and returns the
// error message.
func expectUnauthorized(t *testing.T, resp *http.Response) string {
	t.Helper()
	expectStatus(t, resp, http.StatusUnauthorized)
	if got := resp.Header.Get("WWW-Authenticate"); got != "Bearer" {
		t.Fatalf("expected WWW-Authenticate Bearer, got %q", got)
	}
	body := decode[map[string]any](t, resp)
	msg, _ := body["error"].(string)
	if msg != "could not validate credentials" {
		t.Fatalf("unexpected 401 message %q", msg)
	}
	return msg
}

func TestRegisterThenResolveCurrentUser(t *testing.T) {
	api := newTestAPI(t)
	token := api.register("alice", "alice@example.com", "s3cret-pass")

	resp := api.get("/account/books", nil, bearerHeader(token))
	expectStatus(t, resp, http.StatusOK)
	entries := decode[[]map[string]any](t, resp)
	if len(entries) != 0 {
		t.Fatalf("new user should have an empty shelf, got %d entries", len(entries))
	}

	resp = api.postForm("/auth/login", url.Values{"username": {"alice"}, "password": {"s3cret-pass"}})
	expectStatus(t, resp, http.StatusOK)
	tok := decode[map[string]any](t, resp)
	if tok["access_token"] == "" || tok["token_type"] != "bearer" {
		t.Fatalf("unexpected login response: %v", tok)
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	api := newTestAPI(t)
	api.register("carol", "carol@example.com", "pw-one")

	resp := api.post("/auth/register", map[string]any{
		"username": "carol", "email": "other@example.com", "password": "pw",
	}, nil)
	expectStatus(t, resp, http.StatusBadRequest)
	if body := decode[map[string]any](t, resp); body["error"] != "username already registered" {
		t.Fatalf("unexpected error: %v", body["error"])
	}

	resp = api.post("/auth/register", map[string]any{
		"username": "carol2", "email": "carol@example.com", "password": "pw",
	}, nil)
	expectStatus(t, resp, http.StatusBadRequest)
	if body := decode[map[string]any](t, resp); body["error"] != "email already registered" {
		t.Fatalf("unexpected error: %v", body["error"])
	}
}

func TestRegisterValidatesInput(t *testing.T) {
	api := newTestAPI(t)
	cases := []map[string]any{
		{"username": "", "email": "x@example.com", "password": "pw"},
		{"username": "x", "email": "not-an-email", "password": "pw"},
		{"username": "x", "email": "x@example.com", "password": ""},
		{"username": "x", "email": "x@example.com", "password": "pw", "role": "admin"},
	}
	for _, body := range cases {
		resp := api.post("/auth/register", body, nil)
		expectStatus(t, resp, http.StatusBadRequest)
		resp.Body.Close()
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	api := newTestAPI(t)
	api.register("dave", "dave@example.com", "right-password")

	wrong := api.postForm("/auth/login", url.Values{"username": {"dave"}, "password": {"wrong-password"}})
	unknown := api.postForm("/auth/login", url.Values{"username": {"nobody"}, "password": {"wrong-password"}})

	if a, b := expectUnauthorized(t, wrong), expectUnauthorized(t, unknown); a != b {
		t.Fatalf("login failures differ: %q vs %q", a, b)
	}
}

func TestLoginRejectsPasswordSharingStoredPrefix(t *testing.T) {
	api := newTestAPI(t)
	password := strings.Repeat("k", 72)
	api.register("gina", "gina@example.com", password)

	resp := api.postForm("/auth/login", url.Values{"username": {"gina"}, "password": {password + "-not-my-password"}})
	expectUnauthorized(t, resp)

	resp = api.post("/auth/login", map[string]any{"username": "gina", "password": password + "x"}, nil)
	expectUnauthorized(t, resp)

	resp = api.postForm("/auth/login", url.Values{"username": {"gina"}, "password": {password}})
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()
}

func TestLoginAcceptsJSON(t *testing.T) {
	api := newTestAPI(t)
	resp := api.post("/auth/login", map[string]any{"username": "user", "password": "password"}, nil)
	expectStatus(t, resp, http.StatusOK)
	tok := decode[map[string]any](t, resp)
	if tok["access_token"] == "" {
		t.Fatal("expected token for seeded user")
	}
}

func TestGateRejectionsAreUniform(t *testing.T) {
	api := newTestAPI(t)
	token := api.register("erin", "erin@example.com", "pw")

	other, err := auth.NewTokenIssuer(auth.TokenConfig{Secret: []byte("another-secret"), TTL: time.Minute})
	if err != nil {
		t.Fatalf("issuer: %v", err)
	}
	forged, _ := other.Issue("erin")

	past, err := auth.NewTokenIssuer(testTokenConfig(), auth.WithTokenClock(func() time.Time {
		return time.Now().Add(-2 * time.Hour)
	}))
	if err != nil {
		t.Fatalf("issuer: %v", err)
	}
	expired, _ := past.Issue("erin")

	headers := []map[string]string{
		nil,
		{"Authorization": ""},
		{"Authorization": "Bearer"},
		{"Authorization": "Bearer not-a-jwt"},
		{"Authorization": "Basic " + token},
		bearerHeader(forged.AccessToken),
		bearerHeader(expired.AccessToken),
	}
	for _, h := range headers {
		expectUnauthorized(t, api.get("/account/books", nil, h))
	}

	resp := api.get("/account/books", nil, bearerHeader(token))
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()
}

func TestDeletedUserTokenRejected(t *testing.T) {
	api := newTestAPI(t)
	token := api.register("frank", "frank@example.com", "pw")
	if err := api.store.DeleteUser(context.Background(), "frank"); err != nil {
		t.Fatalf("delete user: %v", err)
	}
	expectUnauthorized(t, api.get("/account/books", nil, bearerHeader(token)))
}

func TestListBooksPagination(t *testing.T) {
	api := newTestAPI(t)

	resp := api.get("/books", nil, nil)
	expectStatus(t, resp, http.StatusOK)
	if books := decode[[]map[string]any](t, resp); len(books) != 5 {
		t.Fatalf("expected 5 seeded books, got %d", len(books))
	}

	resp = api.get("/books", url.Values{"skip": {"1"}, "limit": {"2"}}, nil)
	expectStatus(t, resp, http.StatusOK)
	books := decode[[]map[string]any](t, resp)
	if len(books) != 2 || books[0]["id"] != float64(2) || books[1]["id"] != float64(3) {
		t.Fatalf("unexpected page: %v", books)
	}

	resp = api.get("/books", url.Values{"skip": {"10"}}, nil)
	expectStatus(t, resp, http.StatusOK)
	if books := decode[[]map[string]any](t, resp); len(books) != 0 {
		t.Fatalf("expected empty page, got %d", len(books))
	}

	for _, q := range []url.Values{
		{"limit": {"0"}},
		{"limit": {"1001"}},
		{"skip": {"-1"}},
		{"limit": {"many"}},
	} {
		resp := api.get("/books", q, nil)
		expectStatus(t, resp, http.StatusBadRequest)
		resp.Body.Close()
	}
}

func TestGetBook(t *testing.T) {
	api := newTestAPI(t)

	resp := api.get("/books/1", nil, nil)
	expectStatus(t, resp, http.StatusOK)
	book := decode[map[string]any](t, resp)
	if book["title"] != "The Great Gatsby" {
		t.Fatalf("unexpected title: %v", book["title"])
	}
	if book["average_rating"] != 3.5 {
		t.Fatalf("unexpected average rating: %v", book["average_rating"])
	}

	for _, path := range []string{"/books/999", "/books/abc", "/books/0"} {
		resp := api.get(path, nil, nil)
		expectStatus(t, resp, http.StatusNotFound)
		if body := decode[map[string]any](t, resp); body["error"] != "book not found" {
			t.Fatalf("%s: unexpected error %v", path, body["error"])
		}
	}
}

func TestCreateBook(t *testing.T) {
	api := newTestAPI(t)

	resp := api.post("/books", map[string]any{"title": "Dune"}, nil)
	expectStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()

	resp = api.post("/books", map[string]any{"title": "Dune", "author": "Frank Herbert", "year": 1965}, nil)
	expectStatus(t, resp, http.StatusOK)
	book := decode[map[string]any](t, resp)
	if book["id"] != float64(6) || book["year"] != float64(1965) || book["average_rating"] != nil {
		t.Fatalf("unexpected book: %v", book)
	}
}

func TestShelfLifecycle(t *testing.T) {
	api := newTestAPI(t)
	owner := bearerHeader(api.register("gina", "gina@example.com", "pw"))
	intruder := bearerHeader(api.register("hank", "hank@example.com", "pw"))

	resp := api.post("/account/books", map[string]any{"book_id": 1, "status": "read", "rating": 5}, owner)
	expectStatus(t, resp, http.StatusOK)
	entry := decode[map[string]any](t, resp)
	entryID := int64(entry["id"].(float64))
	if entry["status"] != "read" || entry["rating"] != float64(5) {
		t.Fatalf("unexpected entry: %v", entry)
	}

	resp = api.post("/account/books", map[string]any{"book_id": 1, "status": "planned"}, owner)
	expectStatus(t, resp, http.StatusConflict)
	resp.Body.Close()

	resp = api.post("/account/books", map[string]any{"book_id": 999, "status": "planned"}, owner)
	expectStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()

	for _, bad := range []map[string]any{
		{"book_id": 2, "status": "reading"},
		{"book_id": 2, "status": "read", "rating": 6},
		{"book_id": 2, "status": "read", "rating": 0},
		{"status": "read"},
	} {
		resp := api.post("/account/books", bad, owner)
		expectStatus(t, resp, http.StatusBadRequest)
		resp.Body.Close()
	}

	path := "/account/books/" + strconv.FormatInt(entryID, 10)

	resp = api.do(http.MethodPatch, path, map[string]any{"status": "planned"}, intruder)
	expectStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()

	resp = api.do(http.MethodPatch, path, map[string]any{"status": "read", "rating": 2}, owner)
	expectStatus(t, resp, http.StatusOK)
	if updated := decode[map[string]any](t, resp); updated["rating"] != float64(2) {
		t.Fatalf("rating not updated: %v", updated)
	}

	resp = api.get("/account/books", nil, intruder)
	expectStatus(t, resp, http.StatusOK)
	if entries := decode[[]map[string]any](t, resp); len(entries) != 0 {
		t.Fatalf("intruder sees %d foreign entries", len(entries))
	}

	resp = api.do(http.MethodDelete, path, nil, intruder)
	expectStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()

	resp = api.do(http.MethodDelete, path, nil, owner)
	expectStatus(t, resp, http.StatusNoContent)
	resp.Body.Close()

	resp = api.get("/account/books", nil, owner)
	expectStatus(t, resp, http.StatusOK)
	if entries := decode[[]map[string]any](t, resp); len(entries) != 0 {
		t.Fatalf("expected empty shelf after delete, got %d", len(entries))
	}
}

func TestMethodNotAllowed(t *testing.T) {
	api := newTestAPI(t)
	resp := api.do(http.MethodDelete, "/books", nil, nil)
	expectStatus(t, resp, http.StatusMethodNotAllowed)
	if allow := resp.Header.Get("Allow"); allow != "GET, POST" {
		t.Fatalf("unexpected Allow header %q", allow)
	}
	resp.Body.Close()

	resp = api.get("/auth/login", nil, nil)
	expectStatus(t, resp, http.StatusMethodNotAllowed)
	resp.Body.Close()
}

func TestRootAndHealthEndpoints(t *testing.T) {
	api := newTestAPI(t)

	resp := api.get("/", nil, nil)
	expectStatus(t, resp, http.StatusOK)
	if body := decode[map[string]any](t, resp); body["message"] == "" {
		t.Fatal("expected root message")
	}

	resp = api.get("/healthz", nil, nil)
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	resp = api.get("/readyz", nil, nil)
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()

	resp = api.get("/nowhere", nil, nil)
	expectStatus(t, resp, http.StatusNotFound)
	if resp.Header.Get(requestIDHeader) == "" {
		t.Fatal("expected request id header")
	}
	resp.Body.Close()
}

func TestReadyzReportsFailure(t *testing.T) {
	api := newTestAPIWithReady(t, failingReadiness{})
	resp := api.get("/readyz", nil, nil)
	expectStatus(t, resp, http.StatusServiceUnavailable)
	body := decode[map[string]any](t, resp)
	if body["status"] != "not_ready" {
		t.Fatalf("unexpected body: %v", body)
	}
	if _, leaked := body["error"]; leaked {
		t.Fatal("readiness failure detail leaked to client")
	}
}

func TestReadyzUpdatesReadinessGauge(t *testing.T) {
	obs.Init()

	failing := newTestAPIWithReady(t, failingReadiness{})
	resp := failing.get("/readyz", nil, nil)
	expectStatus(t, resp, http.StatusServiceUnavailable)
	resp.Body.Close()
	if got := scrape(t, failing); !strings.Contains(got, "\nservice_ready 0\n") {
		t.Fatalf("expected service_ready 0 after failed check, got:\n%s", got)
	}

	healthy := newTestAPI(t)
	resp = healthy.get("/readyz", nil, nil)
	expectStatus(t, resp, http.StatusOK)
	resp.Body.Close()
	if got := scrape(t, healthy); !strings.Contains(got, "\nservice_ready 1\n") {
		t.Fatalf("expected service_ready 1 after passing check, got:\n%s", got)
	}
}

func scrape(t *testing.T, api *apiClient) string {
	t.Helper()
	resp := api.get("/metrics", nil, nil)
	expectStatus(t, resp, http.StatusOK)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	return string(raw)
}

func TestStorageFailureIsNotUnauthorized(t *testing.T) {
	tokens, err := auth.NewTokenIssuer(testTokenConfig())
	if err != nil {
		t.Fatalf("issuer: %v", err)
	}
	api := New(Deps{Gate: auth.NewGate(tokens, brokenUsers{})})
	tok, _ := tokens.Issue("anyone")

	req := httptest.NewRequest(http.MethodGet, "/account/books", nil)
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	rr := httptest.NewRecorder()
	api.withAuth(api.mux).ServeHTTP(rr, req)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
}
