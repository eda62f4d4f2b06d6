package komga

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"h2hcat/internal/catalog"
)

func TestClient_RefreshLibrary(t *testing.T) {
	t.Run("posts a scan request with basic auth", func(t *testing.T) {
		var gotMethod, gotPath string
		var gotUser, gotPass string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotMethod = r.Method
			gotPath = r.URL.Path
			gotUser, gotPass, _ = r.BasicAuth()
			w.WriteHeader(http.StatusAccepted)
		}))
		defer srv.Close()

		c, err := NewClient(srv.URL, "lib1", "admin", "secret", catalog.NewNopLogger())
		if err != nil {
			t.Fatalf("NewClient() error = %v", err)
		}

		if err := c.RefreshLibrary(context.Background()); err != nil {
			t.Fatalf("RefreshLibrary() error = %v", err)
		}
		if gotMethod != http.MethodPost {
			t.Errorf("method = %s, want POST", gotMethod)
		}
		if gotPath != "/api/v1/libraries/lib1/scan" {
			t.Errorf("path = %s", gotPath)
		}
		if gotUser != "admin" || gotPass != "secret" {
			t.Errorf("basic auth = %s:%s", gotUser, gotPass)
		}
	})

	t.Run("non-2xx response is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer srv.Close()

		c, err := NewClient(srv.URL, "lib1", "admin", "secret", catalog.NewNopLogger())
		if err != nil {
			t.Fatal(err)
		}
		if err := c.RefreshLibrary(context.Background()); err == nil {
			t.Error("RefreshLibrary() accepted a 500 response")
		}
	})

	t.Run("requires a library id", func(t *testing.T) {
		if _, err := NewClient("http://localhost:25600", "", "u", "p", catalog.NewNopLogger()); err == nil {
			t.Error("NewClient() accepted an empty library id")
		}
	})
}
