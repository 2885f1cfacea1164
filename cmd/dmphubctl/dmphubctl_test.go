package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/dmphub/dmphub/pkg/dmp"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly ten", 11, "exactly ten"},
		{"this is a longer string", 10, "this is..."},
		{"abc", 3, "abc"},
		{"abcd", 3, "abc"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.max); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestResolvedProvenance(t *testing.T) {
	provenance = ""
	t.Setenv("DMPHUB_PROVENANCE", "dmptool")
	if got := resolvedProvenance(); got != "dmptool" {
		t.Errorf("resolvedProvenance() = %q, want env fallback", got)
	}

	provenance = "roadmap"
	defer func() { provenance = "" }()
	if got := resolvedProvenance(); got != "roadmap" {
		t.Errorf("resolvedProvenance() = %q, want flag to win", got)
	}
}

func TestReadBodyFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.json")
	if err := os.WriteFile(path, []byte(`{"title":"Arctic Plan"}`), 0o600); err != nil {
		t.Fatal(err)
	}

	bodyFile = path
	defer func() { bodyFile = "" }()

	var rec dmp.Record
	if err := readBody(&rec); err != nil {
		t.Fatalf("readBody: %v", err)
	}
	if rec.Title != "Arctic Plan" {
		t.Errorf("title = %q, want Arctic Plan", rec.Title)
	}
}

func TestReadBodyRequiresFile(t *testing.T) {
	bodyFile = ""
	var rec dmp.Record
	if err := readBody(&rec); err == nil {
		t.Error("expected an error when no body file is set")
	}
}

func TestClientSendsProvenanceHeader(t *testing.T) {
	var gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get(provenanceHeader)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}))
	defer srv.Close()

	serverURL = srv.URL
	provenance = "dmptool"
	defer func() { provenance = "" }()

	client := newClient()
	var out map[string]string
	if err := client.getJSON("/healthz", &out); err != nil {
		t.Fatalf("getJSON: %v", err)
	}
	if gotHeader != "dmptool" {
		t.Errorf("provenance header = %q, want dmptool", gotHeader)
	}
}

func TestClientReportsUnchanged(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotModified)
	}))
	defer srv.Close()

	serverURL = srv.URL
	client := newClient()
	err := client.do(http.MethodPut, "/dmps/10.48321/D1AAA", map[string]string{"title": "same"}, nil)
	if err != errUnchanged {
		t.Errorf("err = %v, want errUnchanged", err)
	}
}

func TestClientSurfacesServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"code":"forbidden"}`, http.StatusForbidden)
	}))
	defer srv.Close()

	serverURL = srv.URL
	client := newClient()
	err := client.getJSON("/dmps/10.48321/D1AAA", nil)
	if err == nil {
		t.Fatal("expected an error for a 403 response")
	}
}
