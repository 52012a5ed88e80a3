package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"bookshelf.org/internal/auth"
	"bookshelf.org/internal/library"
	"bookshelf.org/internal/obs"
)

const serviceName = "bookshelf-api"

// Readiness reports whether the service can take traffic.
type Readiness interface {
	Check(ctx context.Context) error
}

// ReadyProbe pings the database when one is configured.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Deps wires the API to the domain services.
type Deps struct {
	Accounts *auth.Accounts
	Gate     *auth.Gate
	Library  *library.Service
	Ready    Readiness
	Version  string

	CORSOrigins   []string
	RateBurst     int
	RatePerSecond float64

	// TrustedProxies may set the client address via X-Forwarded-For.
	TrustedProxies TrustedProxies
}

// API is the HTTP layer.
type API struct {
	mux      *http.ServeMux
	accounts *auth.Accounts
	gate     *auth.Gate
	library  *library.Service
	ready    Readiness
	version  string

	corsOrigins []string
	rateBurst   int
	ratePerSec  float64
	proxies     TrustedProxies
}

func New(d Deps) *API {
	ready := d.Ready
	if ready == nil {
		ready = ReadyProbe{}
	}
	a := &API{
		mux:         http.NewServeMux(),
		accounts:    d.Accounts,
		gate:        d.Gate,
		library:     d.Library,
		ready:       ready,
		version:     d.Version,
		corsOrigins: d.CORSOrigins,
		rateBurst:   d.RateBurst,
		ratePerSec:  d.RatePerSecond,
		proxies:     d.TrustedProxies,
	}
	if a.rateBurst <= 0 {
		a.rateBurst = 20
	}
	if a.ratePerSec <= 0 {
		a.ratePerSec = 10
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/auth/register", a.handleRegister)
	a.mux.HandleFunc("/auth/login", a.handleLogin)

	a.mux.HandleFunc("/books", a.handleBooksCollection)
	a.mux.HandleFunc("/books/", a.handleBookResource)

	a.mux.HandleFunc("/account/books", a.handleShelfCollection)
	a.mux.HandleFunc("/account/books/", a.handleShelfResource)

	a.mux.HandleFunc("/", a.Root)

	return a
}

// Handler returns the fully wrapped handler. ctx bounds background work
// started by the middleware chain.
func (a *API) Handler(ctx context.Context) http.Handler {
	var h http.Handler = a.mux
	h = a.withAuth(h)
	h = RateLimit(ctx, h, a.rateBurst, a.ratePerSec, a.proxies)
	h = CORS(h, a.corsOrigins)
	h = SecurityHeaders(h)
	h = obs.Instrument(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return h
}

func (a *API) Root(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Bookshelf: a service for rating and finding books",
		"version": a.version,
	})
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := a.ready.Check(ctx); err != nil {
		obs.SetReady(false)
		obs.Warn("readiness check failed", map[string]any{
			"request_id": RequestIDFromContext(r.Context()),
			"error":      err.Error(),
		})
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}
