/*
	Runs the feedview bridge: a local page that mirrors an unsns feed,
	with a background agent caching static assets and showing push
	notifications. Defaults to listening on 127.0.0.1:8080.

	Only run this on private machines. This bridge has no security
	whatsoever.

Example:

	go run . --username "username" --password "password"
	go run . --env ".env"
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/unsns/feedview"
	"github.com/unsns/feedview/agent"
)

var (
	port        = flag.Int("port", 8080, "port to listen to")
	metricsPort = flag.Int("metrics-port", 0, "port for prometheus metrics, 0 disables")
	envFile     = flag.String("env", ".env", "env file with backend settings")
	username    = flag.String("username", "", "login")
	password    = flag.String("password", "", "password")
)

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

// cliPlatform answers notification permission from configuration. The
// user grants or denies at launch instead of through a browser prompt.
type cliPlatform struct {
	perm feedview.Permission
}

func (p cliPlatform) Permission() feedview.Permission {
	return p.perm
}

func (p cliPlatform) RequestPermission(context.Context) (feedview.Permission, error) {
	return p.perm, nil
}

// logNotifier displays notifications on the process log.
type logNotifier struct{}

func (logNotifier) Notify(title, body, icon string) error {
	log.Printf("notification: %s — %s (%s)", title, body, icon)
	return nil
}

func main() {
	flag.Parse()
	ctx := context.Background()

	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		log.Fatal(err)
	}
	var (
		baseURL      = getenv("UNSNS_BASE_URL", "http://127.0.0.1:5000")
		viewer       = getenv("UNSNS_USER", *username)
		publicKey    = getenv("UNSNS_VAPID_PUBLIC_KEY", "")
		pushEndpoint = getenv("UNSNS_PUSH_ENDPOINT", "")
		cachePath    = getenv("UNSNS_CACHE_PATH", "feedview-cache.db")
		permission   = feedview.Permission(getenv("UNSNS_NOTIFICATIONS", "default"))
	)

	feedview.RegisterMetrics()
	agent.RegisterMetrics()
	if *metricsPort != 0 {
		go func() {
			addr := fmt.Sprintf("127.0.0.1:%d", *metricsPort)
			log.Fatal(http.ListenAndServe(addr, promhttp.Handler()))
		}()
	}

	api, err := feedview.NewAPI(baseURL)
	if err != nil {
		log.Fatal(err)
	}
	if *username != "" {
		if err := api.Login(ctx, *username, *password); err != nil {
			log.Fatal(err)
		}
	}

	cache, err := agent.OpenCache(cachePath)
	if err != nil {
		log.Fatal(err)
	}
	defer cache.Close()

	fetchNet := func(ctx context.Context, path string) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, "GET", baseURL+path, nil)
		if err != nil {
			return nil, err
		}
		res, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer res.Body.Close()
		if res.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("fetching %s: unexpected status %s", path, res.Status)
		}
		return io.ReadAll(res.Body)
	}

	ag := agent.New(cache, fetchNet, logNotifier{}, pushEndpoint)
	go ag.Run(ctx)
	if err := ag.Install(ctx); err != nil {
		// The bridge still works without the asset cache; requests
		// pass through to the network until a later install succeeds.
		log.Print("agent install: ", err)
	}

	loop := feedview.NewLoop(api, viewer, nil)
	ctrl := feedview.NewController(api, loop, feedview.ConfirmFromContext)
	mgr := feedview.NewSubscriptionManager(
		api,
		cliPlatform{perm: permission},
		func() (feedview.PushRegistration, error) { return ag, nil },
		publicKey,
	)

	addr := fmt.Sprintf("127.0.0.1:%d", *port)
	bridge, err := feedview.ListenBridge(ctx, addr, loop, ctrl, mgr, ag)
	if err != nil {
		log.Fatal(err)
	}

	hidden, err := mgr.Resubscribe(ctx)
	if err != nil {
		log.Print("resubscribe: ", err)
	}
	if hidden {
		bridge.HideEnableControl()
	}

	go loop.Run(ctx)

	log.Printf("Serving on http://%s", addr)
	for {
		<-time.After(time.Minute)
		log.Printf("Still serving on http://%s", addr)
	}
}
