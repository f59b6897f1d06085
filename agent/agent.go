package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
)

// CacheName is the current cache version. Bumping it makes the next
// activation sweep out the previous version's assets.
const CacheName = "unsns-cache-v1"

// NotificationIcon is the fixed icon shown on every push notification.
const NotificationIcon = "/static/icons/icon-192.png"

// DefaultManifest is the fixed set of static assets pre-populated on
// install. Paths not in the manifest are never cached.
var DefaultManifest = []string{
	"/",
	"/static/style.css",
	"/static/script.js",
	"/static/manifest.json",
	"/static/icons/icon-192.png",
	"/static/icons/icon-512.png",
}

// NetworkFetcher retrieves a path from the network. It stands in for
// the direct network access the agent falls through to on cache misses.
type NetworkFetcher func(ctx context.Context, path string) ([]byte, error)

// Notifier displays a platform notification.
type Notifier interface {
	Notify(title, body, icon string) error
}

// ErrNotActive is returned by Activate when install has not completed.
var ErrNotActive = errors.New("agent has not been installed")

type message interface{ isMessage() }

type installMsg struct{ done chan error }
type activateMsg struct{ done chan error }
type fetchMsg struct {
	path  string
	reply chan fetchResult
}
type pushMsg struct{ payload []byte }

func (installMsg) isMessage()  {}
func (activateMsg) isMessage() {}
func (fetchMsg) isMessage()    {}
func (pushMsg) isMessage()     {}

type fetchResult struct {
	body []byte
	err  error
}

// pushPayload is the expected shape of an inbound push message. Any
// payload that does not decode as JSON fails the push handler; there is
// no defensive recovery.
type pushPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Agent caches static assets and converts push payloads into platform
// notifications. All work happens on the goroutine running Run; other
// goroutines interact only through Install, Activate, Fetch, Subscribe
// and the push transport, all of which post messages to the loop.
type Agent struct {
	cacheName string
	manifest  []string
	cache     *Cache
	fetchNet  NetworkFetcher
	notifier  Notifier

	// pushEndpoint is the websocket URL push payloads arrive on. It
	// doubles as the subscription endpoint sent to the backend.
	pushEndpoint string

	inbox chan message

	// Mutated only on the Run goroutine.
	installed bool
	active    bool
}

// New returns an agent backed by the given cache. fetchNet serves
// installs and cache misses; notifier displays push notifications.
func New(cache *Cache, fetchNet NetworkFetcher, notifier Notifier, pushEndpoint string) *Agent {
	return &Agent{
		cacheName:    CacheName,
		manifest:     DefaultManifest,
		cache:        cache,
		fetchNet:     fetchNet,
		notifier:     notifier,
		pushEndpoint: pushEndpoint,
		inbox:        make(chan message, 16),
	}
}

// Run is the agent's event loop. It blocks until ctx is canceled.
func (a *Agent) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-a.inbox:
			a.handle(ctx, msg)
		}
	}
}

func (a *Agent) handle(ctx context.Context, msg message) {
	switch m := msg.(type) {
	case installMsg:
		err := a.install(ctx)
		if err == nil {
			// Forced activation: do not wait for other instances.
			err = a.activate()
		}
		m.done <- err
	case activateMsg:
		m.done <- a.activate()
	case fetchMsg:
		body, err := a.serve(ctx, m.path)
		m.reply <- fetchResult{body: body, err: err}
	case pushMsg:
		if err := a.push(m.payload); err != nil {
			pushFailureCtr.Inc()
			log.Print("push: ", err)
		}
	}
}

// install pre-populates the named cache with the full manifest. Any
// asset failing to download fails the install.
func (a *Agent) install(ctx context.Context) error {
	for _, path := range a.manifest {
		body, err := a.fetchNet(ctx, path)
		if err != nil {
			return fmt.Errorf("install %s: %w", path, err)
		}
		if err := a.cache.Put(a.cacheName, path, body); err != nil {
			return fmt.Errorf("install %s: %w", path, err)
		}
	}
	a.installed = true
	return nil
}

// activate migrates cache versions by deleting every differently-named
// cache, then takes control of request interception immediately.
func (a *Agent) activate() error {
	if !a.installed {
		return ErrNotActive
	}
	if err := a.cache.DeleteOthers(a.cacheName); err != nil {
		return err
	}
	a.active = true
	return nil
}

// serve answers one intercepted request: cached bytes if present,
// otherwise the network. Network fallbacks are never written back, so
// assets outside the manifest stay uncached. Before activation every
// request passes straight through.
func (a *Agent) serve(ctx context.Context, path string) ([]byte, error) {
	if a.active {
		body, ok, err := a.cache.Get(a.cacheName, path)
		if err != nil {
			return nil, err
		}
		if ok {
			cacheHitCtr.Inc()
			return body, nil
		}
		cacheMissCtr.Inc()
	}
	return a.fetchNet(ctx, path)
}

// push converts one inbound payload into a notification. Malformed
// payloads fail the handler.
func (a *Agent) push(payload []byte) error {
	var p pushPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("malformed push payload: %w", err)
	}
	if err := a.notifier.Notify(p.Title, p.Body, NotificationIcon); err != nil {
		return err
	}
	pushShownCtr.Inc()
	return nil
}

// Install asks the loop to populate the cache and force activation.
func (a *Agent) Install(ctx context.Context) error {
	done := make(chan error, 1)
	return a.post(ctx, installMsg{done: done}, done)
}

// Activate asks the loop to run cache migration and take control.
func (a *Agent) Activate(ctx context.Context) error {
	done := make(chan error, 1)
	return a.post(ctx, activateMsg{done: done}, done)
}

func (a *Agent) post(ctx context.Context, msg message, done chan error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case a.inbox <- msg:
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

// Fetch intercepts one request for path and returns the response bytes.
func (a *Agent) Fetch(ctx context.Context, path string) ([]byte, error) {
	reply := make(chan fetchResult, 1)
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case a.inbox <- fetchMsg{path: path, reply: reply}:
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-reply:
		return res.body, res.err
	}
}

// Push injects one push payload into the loop. The push transport calls
// it for every inbound message; tests can call it directly.
func (a *Agent) Push(ctx context.Context, payload []byte) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case a.inbox <- pushMsg{payload: payload}:
		return nil
	}
}
