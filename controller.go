package feedview

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// User-facing failure messages, kept verbatim from the original client.
var (
	// ErrEmptyContent rejects a compose with no text. Raised before any
	// network I/O.
	ErrEmptyContent = errors.New("テキストを入力してください。")

	// ErrPostFailed covers compose/reply request failures, typically a
	// missing session.
	ErrPostFailed = errors.New("投稿に失敗しました。ログインしているか確認してください。")

	// ErrDeleteFailed covers delete request failures.
	ErrDeleteFailed = errors.New("削除に失敗しました。")
)

// DeletePrompt is the confirmation text shown before deleting a post.
const DeletePrompt = "本当にこの投稿を削除しますか？"

// Confirmer asks the user to confirm a destructive action and reports
// their answer. The context is the request context of the triggering
// action, which lets hosts carry a per-request answer.
type Confirmer func(ctx context.Context, prompt string) bool

type confirmedKey struct{}

// WithConfirmed returns a context carrying the user's answer to a
// confirmation dialog that already happened on the host's side.
func WithConfirmed(ctx context.Context, ok bool) context.Context {
	return context.WithValue(ctx, confirmedKey{}, ok)
}

// ConfirmFromContext is a Confirmer that reads the answer stored by
// WithConfirmed. Used by hosts whose confirmation dialog runs before
// the action request arrives, such as the local bridge.
func ConfirmFromContext(ctx context.Context, _ string) bool {
	ok, _ := ctx.Value(confirmedKey{}).(bool)
	return ok
}

// Controller executes user actions against the backend. Every operation
// issues one HTTP request and then asks the loop to refresh, on success
// and failure alike: the view always reconciles to server truth instead
// of applying local deltas.
type Controller struct {
	api     *API
	loop    *Loop
	confirm Confirmer
}

// NewController returns a controller wired to the given API client and
// synchronization loop. confirm guards the delete action; a nil
// confirm refuses every delete.
func NewController(api *API, loop *Loop, confirm Confirmer) *Controller {
	return &Controller{api: api, loop: loop, confirm: confirm}
}

// Compose validates and submits a new root post. Empty or
// whitespace-only content is rejected with ErrEmptyContent before any
// request is made. On request failure the caller keeps the draft; the
// error message tells the user to retry after checking their login.
func (c *Controller) Compose(ctx context.Context, content string, image io.Reader, imageName string) error {
	if strings.TrimSpace(content) == "" {
		return ErrEmptyContent
	}
	_, err := c.api.CreatePost(ctx, content, 0, image, imageName)
	c.loop.Refresh()
	if err != nil {
		return fmt.Errorf("%w (%v)", ErrPostFailed, err)
	}
	return nil
}

// ToggleReplyForm opens the inline reply form under the given post, or
// closes it without submitting if it is already open. Only local state
// changes, so the view is redrawn without a fetch.
func (c *Controller) ToggleReplyForm(id int64) {
	c.loop.Mutate(func(st *ViewState) {
		if st.OpenReplies[id] {
			delete(st.OpenReplies, id)
		} else {
			st.OpenReplies[id] = true
		}
	})
	c.loop.Redraw()
}

// SubmitReply posts content as a reply to the given post and closes its
// reply form.
func (c *Controller) SubmitReply(ctx context.Context, id int64, content string) error {
	_, err := c.api.CreatePost(ctx, content, id, nil, "")
	c.loop.Mutate(func(st *ViewState) {
		delete(st.OpenReplies, id)
	})
	c.loop.Refresh()
	if err != nil {
		return fmt.Errorf("%w (%v)", ErrPostFailed, err)
	}
	return nil
}

// ToggleLike issues a like toggle for the given post. The liked set is
// flipped exactly once per successful server response; every click
// issues its own independent request even while one is outstanding.
func (c *Controller) ToggleLike(ctx context.Context, id int64) error {
	_, err := c.api.ToggleLike(ctx, id)
	if err == nil {
		c.loop.Mutate(func(st *ViewState) {
			st.Liked.Toggle(id)
		})
	}
	c.loop.Refresh()
	return err
}

// Delete asks for confirmation and then deletes the given post. A
// canceled confirmation issues no request and changes nothing. On
// request failure the view is still refreshed so it reflects actual
// server state rather than an assumed deletion.
func (c *Controller) Delete(ctx context.Context, id int64) error {
	if c.confirm == nil || !c.confirm(ctx, DeletePrompt) {
		return nil
	}
	err := c.api.DeletePost(ctx, id)
	c.loop.Refresh()
	if err != nil {
		return fmt.Errorf("%w (%v)", ErrDeleteFailed, err)
	}
	return nil
}

// ToggleCollapse flips the visibility of a post's reply section and
// redraws. Toggling twice restores the original state.
func (c *Controller) ToggleCollapse(id int64) {
	c.loop.Mutate(func(st *ViewState) {
		st.Collapse.Toggle(id)
	})
	c.loop.Redraw()
}
