package feedview

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/net/html"
)

// renderRecorder captures every render the loop publishes.
type renderRecorder struct {
	mu      sync.Mutex
	renders []string
}

func (r *renderRecorder) record(n *html.Node) {
	var b strings.Builder
	html.Render(&b, n)
	r.mu.Lock()
	r.renders = append(r.renders, b.String())
	r.mu.Unlock()
}

func (r *renderRecorder) last() (string, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.renders) == 0 {
		return "", 0
	}
	return r.renders[len(r.renders)-1], len(r.renders)
}

func TestLoopPublishesRender(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":1,"username":"alice","content":"first post"}]`))
	}))
	t.Cleanup(srv.Close)
	api, err := NewAPI(srv.URL)
	if err != nil {
		t.Fatal(err)
	}

	rec := &renderRecorder{}
	loop := NewLoop(api, "alice", rec.record)
	loop.fetch(context.Background())

	last, n := rec.last()
	if n != 1 {
		t.Fatalf("published %d renders, want 1", n)
	}
	if !strings.Contains(last, "first post") {
		t.Errorf("render missing post content:\n%s", last)
	}
}

func TestLoopKeepsPreviousRenderOnFailure(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`[{"id":1,"username":"alice","content":"kept"}]`))
	}))
	t.Cleanup(srv.Close)
	api, err := NewAPI(srv.URL)
	if err != nil {
		t.Fatal(err)
	}

	rec := &renderRecorder{}
	loop := NewLoop(api, "alice", rec.record)
	ctx := context.Background()

	loop.fetch(ctx)
	fail.Store(true)
	loop.fetch(ctx)

	last, n := rec.last()
	if n != 1 {
		t.Fatalf("published %d renders, want 1 (failure must not publish)", n)
	}
	if !strings.Contains(last, "kept") {
		t.Errorf("previous render was not kept:\n%s", last)
	}
}

func TestLoopDiscardsStaleResponse(t *testing.T) {
	var (
		reqs    atomic.Int64
		release = make(chan struct{})
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reqs.Add(1) == 1 {
			// The first fetch answers last.
			<-release
			w.Write([]byte(`[{"id":1,"username":"alice","content":"stale"}]`))
			return
		}
		w.Write([]byte(`[{"id":1,"username":"alice","content":"fresh"}]`))
	}))
	t.Cleanup(srv.Close)
	api, err := NewAPI(srv.URL)
	if err != nil {
		t.Fatal(err)
	}

	rec := &renderRecorder{}
	loop := NewLoop(api, "alice", rec.record)
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		loop.fetch(ctx)
	}()
	// Wait until the first fetch is parked in the handler so its
	// sequence number is definitely the lower one.
	for reqs.Load() == 0 {
		time.Sleep(time.Millisecond)
	}

	loop.fetch(ctx)
	close(release)
	wg.Wait()

	last, n := rec.last()
	if n != 1 {
		t.Fatalf("published %d renders, want 1 (stale response must be dropped)", n)
	}
	if !strings.Contains(last, "fresh") {
		t.Errorf("stale response overwrote the view:\n%s", last)
	}
}

func TestLoopRedrawUsesLastForest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"id":1,"username":"alice","content":"root"},
			{"id":2,"parent_id":1,"username":"bob","content":"reply"}
		]`))
	}))
	t.Cleanup(srv.Close)
	api, err := NewAPI(srv.URL)
	if err != nil {
		t.Fatal(err)
	}

	rec := &renderRecorder{}
	loop := NewLoop(api, "alice", rec.record)
	loop.fetch(context.Background())

	last, _ := rec.last()
	if !strings.Contains(last, `style="display:none"`) {
		t.Fatal("reply section should start collapsed")
	}

	loop.Mutate(func(st *ViewState) {
		st.Collapse.Toggle(1)
	})
	loop.Redraw()

	last, n := rec.last()
	if n != 2 {
		t.Fatalf("published %d renders, want 2", n)
	}
	if strings.Contains(last, `style="display:none"`) {
		t.Error("redraw should reflect the expanded collapse state")
	}
}

func TestLoopRefreshCoalesces(t *testing.T) {
	loop := NewLoop(nil, "alice", nil)
	loop.Refresh()
	loop.Refresh()
	loop.Refresh()

	if !pendingRefresh(loop) {
		t.Fatal("a refresh should be pending")
	}
	if pendingRefresh(loop) {
		t.Error("repeated refreshes should collapse into one")
	}
}
