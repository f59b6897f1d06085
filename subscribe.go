package feedview

import (
	"context"
	"errors"
	"fmt"
)

// Permission is the platform's notification permission state.
type Permission string

const (
	PermissionDefault Permission = "default"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

// Platform is the host's notification permission surface.
type Platform interface {
	// Permission returns the current permission without prompting.
	Permission() Permission

	// RequestPermission prompts the user and returns the outcome.
	RequestPermission(ctx context.Context) (Permission, error)
}

// Subscription is the opaque push-endpoint descriptor handed to the
// backend. It is held only long enough to transmit.
type Subscription struct {
	Endpoint string            `json:"endpoint"`
	Keys     map[string]string `json:"keys,omitempty"`
}

// PushRegistration creates push subscriptions. The background agent
// implements it.
type PushRegistration interface {
	// Subscribe establishes a push subscription using the
	// server-supplied public key. userVisibleOnly promises every push
	// will surface as a notification.
	Subscribe(ctx context.Context, publicKey string, userVisibleOnly bool) (Subscription, error)
}

var (
	// ErrPermissionDenied is the single user-facing message for a
	// permission prompt that did not end in "granted".
	ErrPermissionDenied = errors.New("通知が許可されていません。")

	// ErrSubscribeFailed is the single user-facing message for any
	// later step of the subscription handshake failing.
	ErrSubscribeFailed = errors.New("通知の有効化に失敗しました。")

	// ErrNoAgent means no background agent was running to subscribe
	// against. The manager never starts one itself.
	ErrNoAgent = errors.New("background agent is not registered")
)

// SubscriptionManager negotiates the push-notification opt-in: ask
// permission, locate the already-running background agent, create a
// subscription with the server-supplied public key, and transmit the
// descriptor to the backend. Each step depends on the previous one
// succeeding; any failure surfaces exactly one message and nothing is
// retried automatically.
type SubscriptionManager struct {
	api       *API
	platform  Platform
	locate    func() (PushRegistration, error)
	publicKey string
}

// NewSubscriptionManager returns a manager. locate finds the running
// background agent; it must not register one.
func NewSubscriptionManager(api *API, platform Platform, locate func() (PushRegistration, error), publicKey string) *SubscriptionManager {
	return &SubscriptionManager{
		api:       api,
		platform:  platform,
		locate:    locate,
		publicKey: publicKey,
	}
}

// Enable runs the full opt-in handshake, prompting for permission
// first. It is the handler behind the manual "enable notifications"
// control.
func (m *SubscriptionManager) Enable(ctx context.Context) error {
	perm, err := m.platform.RequestPermission(ctx)
	if err != nil {
		return fmt.Errorf("%w (%v)", ErrSubscribeFailed, err)
	}
	if perm != PermissionGranted {
		return ErrPermissionDenied
	}
	return m.subscribe(ctx)
}

// Resubscribe re-establishes the subscription without prompting. Called
// at startup when permission is already granted; on success nothing is
// shown to the user. It reports whether the manual enable control
// should be hidden (true exactly when permission was already granted).
func (m *SubscriptionManager) Resubscribe(ctx context.Context) (bool, error) {
	if m.platform.Permission() != PermissionGranted {
		return false, nil
	}
	if err := m.subscribe(ctx); err != nil {
		return true, err
	}
	return true, nil
}

func (m *SubscriptionManager) subscribe(ctx context.Context) error {
	reg, err := m.locate()
	if err != nil {
		return fmt.Errorf("%w (%v)", ErrSubscribeFailed, err)
	}
	if reg == nil {
		return fmt.Errorf("%w (%v)", ErrSubscribeFailed, ErrNoAgent)
	}
	sub, err := reg.Subscribe(ctx, m.publicKey, true)
	if err != nil {
		return fmt.Errorf("%w (%v)", ErrSubscribeFailed, err)
	}
	if err := m.api.SendSubscription(ctx, sub); err != nil {
		return fmt.Errorf("%w (%v)", ErrSubscribeFailed, err)
	}
	return nil
}
