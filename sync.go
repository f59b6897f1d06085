package feedview

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/net/html"
)

// DefaultPollInterval is how often the loop re-fetches the full feed.
// The timer repeats unconditionally for the lifetime of the process.
const DefaultPollInterval = 10 * time.Second

// Loop keeps the rendered view synchronized with server state. It owns
// the ephemeral view state and the last applied forest, re-fetches the
// full feed on a fixed timer and on demand, rebuilds the forest, and
// publishes a fresh render through the OnRender callback.
//
// Fetches may overlap: a new fetch can start while an earlier one is
// still outstanding. Every fetch carries a sequence number and a
// response is discarded if a higher-numbered response has already been
// applied, so a slow early response can never overwrite a newer view.
type Loop struct {
	api      *API
	viewer   string
	interval time.Duration

	// OnRender receives every published render. Called with the loop's
	// lock held; keep it cheap (serialize and store).
	OnRender func(*html.Node)

	refresh chan struct{}

	mu      sync.Mutex
	state   *ViewState
	forest  Forest
	nextSeq uint64
	applied uint64
}

// NewLoop returns a loop for the given API client and viewer identity.
// The viewer identity decides whether delete controls render; it comes
// from server-injected configuration, not from feed data.
func NewLoop(api *API, viewer string, onRender func(*html.Node)) *Loop {
	return &Loop{
		api:      api,
		viewer:   viewer,
		interval: DefaultPollInterval,
		OnRender: onRender,
		refresh:  make(chan struct{}, 1),
		state:    NewViewState(),
	}
}

// State returns the loop-owned view state for inspection. All mutation
// must go through Mutate; renders read these maps under the loop's lock
// and a bare write would race with them.
func (l *Loop) State() *ViewState {
	return l.state
}

// Mutate runs fn against the view state under the loop's lock. The
// interaction path uses it for every state change so that no render,
// whether from a fetch or a redraw, ever observes a map mid-write.
func (l *Loop) Mutate(fn func(*ViewState)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fn(l.state)
}

// Refresh schedules an immediate fetch. It never blocks; if a refresh
// is already pending the two collapse into one.
func (l *Loop) Refresh() {
	select {
	case l.refresh <- struct{}{}:
	default:
	}
}

// Run fetches once immediately and then keeps the view synchronized
// until ctx is canceled. Each trigger starts its own fetch, so the loop
// is never blocked by a slow response.
func (l *Loop) Run(ctx context.Context) {
	go l.fetch(ctx)
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			go l.fetch(ctx)
		case <-l.refresh:
			go l.fetch(ctx)
		}
	}
}

// fetch performs one full retrieval-rebuild-render cycle. On failure the
// previous render is left untouched; there is no backoff, the next tick
// or user action tries again.
func (l *Loop) fetch(ctx context.Context) {
	l.mu.Lock()
	l.nextSeq++
	seq := l.nextSeq
	l.mu.Unlock()
	syncCycleCtr.Inc()

	posts, err := l.api.ListPosts(ctx)
	if err != nil {
		fetchFailureCtr.Inc()
		log.Print("fetch feed: ", err)
		return
	}

	forest, orphans := BuildForest(posts)
	if len(orphans) > 0 {
		orphanDropCtr.Add(float64(len(orphans)))
		log.Printf("dropped %d posts with missing parents", len(orphans))
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if seq < l.applied {
		staleDropCtr.Inc()
		return
	}
	l.applied = seq
	l.forest = forest
	l.publishLocked()
}

// Redraw re-renders the last applied forest with the current view
// state, without contacting the server. Used by collapse toggles and
// reply-form toggles, which change only local state.
func (l *Loop) Redraw() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.publishLocked()
}

func (l *Loop) publishLocked() {
	if l.OnRender != nil {
		l.OnRender(RenderFeed(l.forest, l.state, l.viewer))
	}
}
