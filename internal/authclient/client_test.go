package authclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestTokenCachesAfterFirstRefresh(t *testing.T) {
	var calls int32
	src := NewTokenSource(func(ctx context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "tok-1", nil
	})

	for i := 0; i < 5; i++ {
		tok, err := src.Token(context.Background())
		if err != nil {
			t.Fatalf("Token: %v", err)
		}
		if tok != "tok-1" {
			t.Fatalf("token = %q", tok)
		}
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("refresh calls = %d, want 1", got)
	}
}

// A burst of concurrent refreshes must cost exactly one upstream call,
// with every caller receiving the same token.
func TestRefreshSingleFlight(t *testing.T) {
	var calls int32
	gate := make(chan struct{})
	src := NewTokenSource(func(ctx context.Context) (string, error) {
		n := atomic.AddInt32(&calls, 1)
		<-gate
		return fmt.Sprintf("tok-%d", n), nil
	})

	const n = 20
	var wg sync.WaitGroup
	tokens := make([]string, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], errs[i] = src.Refresh(context.Background())
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(gate)
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("refresh calls = %d, want 1", got)
	}
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if tokens[i] != "tok-1" {
			t.Errorf("caller %d token = %q, want tok-1", i, tokens[i])
		}
	}
}

// A failed refresh is delivered to every waiter and nothing is cached.
func TestRefreshFailureShared(t *testing.T) {
	refreshErr := errors.New("upstream down")
	var calls int32
	gate := make(chan struct{})
	src := NewTokenSource(func(ctx context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		<-gate
		return "", refreshErr
	})

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = src.Refresh(context.Background())
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(gate)
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("refresh calls = %d, want 1", got)
	}
	for i, err := range errs {
		if !errors.Is(err, refreshErr) {
			t.Errorf("caller %d err = %v, want shared failure", i, err)
		}
	}

	// failure must not poison the source: the next call refreshes again
	src2calls := atomic.LoadInt32(&calls)
	_, err := src.Refresh(context.Background())
	if !errors.Is(err, refreshErr) {
		t.Fatalf("second refresh err = %v", err)
	}
	if atomic.LoadInt32(&calls) != src2calls+1 {
		t.Error("failed refresh was cached")
	}
}

func TestTransportAttachesBearer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	src := NewTokenSource(func(ctx context.Context) (string, error) { return "tok-1", nil })
	client := &http.Client{Transport: &Transport{Source: src}}

	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestTransportRetriesAfter401(t *testing.T) {
	var refreshes int32
	src := NewTokenSource(func(ctx context.Context) (string, error) {
		return fmt.Sprintf("tok-%d", atomic.AddInt32(&refreshes, 1)), nil
	})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// only the second token is accepted, as if the first expired
		if r.Header.Get("Authorization") != "Bearer tok-2" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := &http.Client{Transport: &Transport{Source: src}}
	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200 after retry", resp.StatusCode)
	}
	if got := atomic.LoadInt32(&refreshes); got != 2 {
		t.Errorf("refreshes = %d, want 2", got)
	}
}

func TestTransportGivesUpAfterSecond401(t *testing.T) {
	src := NewTokenSource(func(ctx context.Context) (string, error) { return "tok", nil })
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := &http.Client{Transport: &Transport{Source: src}}
	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want the 401 surfaced", resp.StatusCode)
	}
}
