package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"fixedwindow-gateway/middleware/ratelimit/domain"

	"github.com/go-chi/chi/v5"
)

func TestDefaultKeyFunc_PrefersHeaderWhenSet(t *testing.T) {
	fn := DefaultKeyFunc("X-Client", false)

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	r.Header.Set("X-Client", " client-123 ")

	if got := fn(r); got != "client-123" {
		t.Fatalf("expected header key, got %q", got)
	}
}

func TestDefaultKeyFunc_TrustXForwardedForUsesFirstIP(t *testing.T) {
	fn := DefaultKeyFunc("", true)

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = "10.0.0.9:5555"
	r.Header.Set("X-Forwarded-For", "1.2.3.4, 5.6.7.8")

	if got := fn(r); got != "1.2.3.4" {
		t.Fatalf("expected first XFF ip, got %q", got)
	}
}

func TestDefaultKeyFunc_IgnoresXForwardedForWhenNotTrusted(t *testing.T) {
	fn := DefaultKeyFunc("", false)

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = "10.0.0.9:5555"
	r.Header.Set("X-Forwarded-For", "1.2.3.4")

	if got := fn(r); got != "10.0.0.9" {
		t.Fatalf("expected remote host, got %q", got)
	}
}

func TestDefaultKeyFunc_MissingAddressIsUnknown(t *testing.T) {
	fn := DefaultKeyFunc("", false)

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = ""

	if got := fn(r); got != domain.UnknownIdentity {
		t.Fatalf("expected %q, got %q", domain.UnknownIdentity, got)
	}
}

func TestDefaultRouteFunc_UsesChiPattern(t *testing.T) {
	var got string
	router := chi.NewRouter()
	router.Get("/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		got = DefaultRouteFunc(r)
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "http://example/users/42", nil))
	if got != "/users/{id}" {
		t.Fatalf("expected chi route pattern, got %q", got)
	}
}

func TestDefaultRouteFunc_FallsBackToPath(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "http://example/plain", nil)
	if got := DefaultRouteFunc(r); got != "/plain" {
		t.Fatalf("expected path fallback, got %q", got)
	}
}
