package agent

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"

	"github.com/gorilla/websocket"

	"github.com/unsns/feedview"
)

// ErrNotUserVisible rejects subscriptions that do not promise to show
// every push as a notification. The agent supports nothing else.
var ErrNotUserVisible = errors.New("only user-visible notifications are supported")

// Subscribe establishes the push subscription: it dials the agent's
// push endpoint over websocket, starts forwarding inbound messages to
// the push handler, and returns the descriptor to transmit to the
// backend. The reader goroutine lives until ctx is canceled or the
// connection drops; dropped connections are not redialed.
//
// Subscribe implements feedview.PushRegistration.
func (a *Agent) Subscribe(ctx context.Context, publicKey string, userVisibleOnly bool) (feedview.Subscription, error) {
	if !userVisibleOnly {
		return feedview.Subscription{}, ErrNotUserVisible
	}
	if a.pushEndpoint == "" {
		return feedview.Subscription{}, errors.New("no push endpoint configured")
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, a.pushEndpoint, nil)
	if err != nil {
		return feedview.Subscription{}, fmt.Errorf("unable to reach push endpoint: %w", err)
	}

	secret := make([]byte, 16)
	if _, err := rand.Read(secret); err != nil {
		conn.Close()
		return feedview.Subscription{}, err
	}

	go func() {
		defer conn.Close()
		go func() {
			<-ctx.Done()
			conn.Close()
		}()
		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil {
					log.Print("push transport closed: ", err)
				}
				return
			}
			if err := a.Push(ctx, payload); err != nil {
				return
			}
		}
	}()

	return feedview.Subscription{
		Endpoint: a.pushEndpoint,
		Keys: map[string]string{
			"p256dh": publicKey,
			"auth":   hex.EncodeToString(secret),
		},
	}, nil
}
