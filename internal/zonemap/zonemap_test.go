package zonemap

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestResolve_Mapped(t *testing.T) {
	r := NewStatic(map[string]string{"OOC_Stanton_2a": "Yela"})

	if got := r.Resolve("OOC_Stanton_2a"); got != "Yela" {
		t.Errorf("Resolve() = %q, want %q", got, "Yela")
	}
	if got := r.Resolve("OOC_Stanton_1"); got != "OOC_Stanton_1" {
		t.Errorf("Resolve(unmapped) = %q, want raw code", got)
	}
	if got := r.Resolve(""); got != "" {
		t.Errorf("Resolve(\"\") = %q, want empty", got)
	}
}

func TestResolve_EmptyMapping(t *testing.T) {
	r := New("")
	if r.Loaded() {
		t.Error("Loaded() = true before any refresh")
	}
	if got := r.Resolve("OOC_Stanton_2a"); got != "OOC_Stanton_2a" {
		t.Errorf("Resolve() = %q, want raw code", got)
	}
}

func TestRefresh_JSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"OOC_Stanton_2a": "Yela", "OOC_Stanton_2b": "Daymar"}`))
	}))
	defer srv.Close()

	r := New(srv.URL)
	if err := r.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if !r.Loaded() {
		t.Error("Loaded() = false after successful refresh")
	}
	if r.Len() != 2 {
		t.Errorf("Len() = %d, want 2", r.Len())
	}
	if got := r.Resolve("OOC_Stanton_2b"); got != "Daymar" {
		t.Errorf("Resolve() = %q, want %q", got, "Daymar")
	}
}

func TestRefresh_YAML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OOC_Stanton_2a: Yela\nOOC_Stanton_3a: Lyria\n"))
	}))
	defer srv.Close()

	r := New(srv.URL)
	if err := r.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if got := r.Resolve("OOC_Stanton_3a"); got != "Lyria" {
		t.Errorf("Resolve() = %q, want %q", got, "Lyria")
	}
}

func TestRefresh_NonSuccessKeepsPrevious(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	r := New(srv.URL)
	r.Replace(map[string]string{"OOC_Stanton_2a": "Yela"})

	err := r.Refresh(context.Background())
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("Refresh() error = %v, want *FetchError", err)
	}
	if fetchErr.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d, want 404", fetchErr.StatusCode)
	}
	if got := r.Resolve("OOC_Stanton_2a"); got != "Yela" {
		t.Errorf("Resolve() = %q after failed refresh, want previous mapping", got)
	}
}

func TestRefresh_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	r := New(url, WithRetries(0))
	err := r.Refresh(context.Background())
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("Refresh() error = %v, want *FetchError", err)
	}
	if fetchErr.StatusCode != 0 {
		t.Errorf("StatusCode = %d, want 0 for transport error", fetchErr.StatusCode)
	}
	if r.Loaded() {
		t.Error("Loaded() = true after failed refresh")
	}
}

func TestRefresh_InvalidBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("- just\n- a list\n"))
	}))
	defer srv.Close()

	r := New(srv.URL)
	var fetchErr *FetchError
	if err := r.Refresh(context.Background()); !errors.As(err, &fetchErr) {
		t.Fatalf("Refresh() error = %v, want *FetchError", err)
	}
}

func TestRefresh_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"OOC_Stanton_2a": "Yela"}`))
	}))
	defer srv.Close()

	r := New(srv.URL, WithBackoff(time.Millisecond))
	if err := r.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("server called %d times, want 3", calls.Load())
	}
}

func TestRefresh_GivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	r := New(srv.URL, WithRetries(2), WithBackoff(time.Millisecond))
	var fetchErr *FetchError
	if err := r.Refresh(context.Background()); !errors.As(err, &fetchErr) {
		t.Fatalf("Refresh() error = %v, want *FetchError", err)
	}
	if fetchErr.StatusCode != http.StatusBadGateway {
		t.Errorf("StatusCode = %d, want 502", fetchErr.StatusCode)
	}
	if calls.Load() != 3 {
		t.Errorf("server called %d times, want 3", calls.Load())
	}
}

func TestRefresh_NoSource(t *testing.T) {
	err := New("").Refresh(context.Background())
	if !errors.Is(err, ErrNoSource) {
		t.Errorf("Refresh() error = %v, want %v", err, ErrNoSource)
	}
}

func TestRefresh_ContextCancelledDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	r := New(srv.URL, WithBackoff(time.Hour))
	err := r.Refresh(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Refresh() error = %v, want context.DeadlineExceeded", err)
	}
}

func TestResolve_ConcurrentWithReplace(t *testing.T) {
	r := NewStatic(map[string]string{"a": "A"})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				if got := r.Resolve("a"); got != "A" && got != "AA" {
					t.Errorf("Resolve() = %q, want A or AA", got)
					return
				}
			}
		}()
	}
	for j := 0; j < 100; j++ {
		if j%2 == 0 {
			r.Replace(map[string]string{"a": "AA"})
		} else {
			r.Replace(map[string]string{"a": "A"})
		}
	}
	wg.Wait()
}

func TestSnapshot_IsCopy(t *testing.T) {
	r := NewStatic(map[string]string{"a": "A"})
	snap := r.Snapshot()
	snap["a"] = "changed"
	if got := r.Resolve("a"); got != "A" {
		t.Errorf("Resolve() = %q after mutating snapshot, want %q", got, "A")
	}
}
