package feedview

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"mime"
	"net"
	"net/http"
	"path"
	"strconv"
	"sync"

	"golang.org/x/net/html"
)

// AssetFetcher answers intercepted static-asset requests. The
// background agent implements it.
type AssetFetcher interface {
	Fetch(ctx context.Context, path string) ([]byte, error)
}

// Bridge serves the rendered feed to a local browser and forwards user
// actions to the interaction controller. It is the presentation host:
// it owns the page shell, swaps in every render the loop publishes as a
// full replacement, and dispatches all action controls through a single
// handler per action class keyed by their data-action attribute, so no
// per-post handler ever needs re-registration.
type Bridge struct {
	listener net.Listener
	ctrl     *Controller
	mgr      *SubscriptionManager
	assets   AssetFetcher

	mu         sync.RWMutex
	feedHTML   []byte
	notice     string
	draft      string
	hideEnable bool
}

// ListenBridge starts the bridge on addr, usually 127.0.0.1:<port>. It
// wires itself as the loop's render sink, so start it before Loop.Run
// publishes the first render. Use non-local addresses at your peril;
// the bridge has no authentication of its own.
func ListenBridge(ctx context.Context, addr string, loop *Loop, ctrl *Controller, mgr *SubscriptionManager, assets AssetFetcher) (*Bridge, error) {
	var config net.ListenConfig
	l, err := config.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("ListenBridge: %w", err)
	}

	b := &Bridge{
		listener: l,
		ctrl:     ctrl,
		mgr:      mgr,
		assets:   assets,
	}
	loop.OnRender = b.storeRender

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", b.handleIndex)
	mux.HandleFunc("POST /action", b.handleAction)
	mux.HandleFunc("GET /static/", b.handleStatic)

	srv := &http.Server{
		Handler: mux,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}
	go func() {
		if err := srv.Serve(l); err != nil && err != http.ErrServerClosed {
			log.Print(err)
		}
	}()
	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	return b, nil
}

// Addr returns the bridge's bound address.
func (b *Bridge) Addr() net.Addr {
	return b.listener.Addr()
}

// HideEnableControl removes the manual "enable notifications" control
// from the page. Called when permission was already granted at startup
// and the silent resubscribe ran.
func (b *Bridge) HideEnableControl() {
	b.mu.Lock()
	b.hideEnable = true
	b.mu.Unlock()
}

// storeRender serializes a published render for the next page load.
func (b *Bridge) storeRender(n *html.Node) {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		log.Print("render feed: ", err)
		return
	}
	b.mu.Lock()
	b.feedHTML = buf.Bytes()
	b.mu.Unlock()
}

func (b *Bridge) setNotice(msg string) {
	b.mu.Lock()
	b.notice = msg
	b.mu.Unlock()
}

// keepDraft preserves a compose draft that failed to submit so the next
// index render puts it back in the textarea instead of clearing the
// input.
func (b *Bridge) keepDraft(content string) {
	b.mu.Lock()
	b.draft = content
	b.mu.Unlock()
}

func (b *Bridge) handleIndex(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	feed := b.feedHTML
	notice := b.notice
	draft := b.draft
	hideEnable := b.hideEnable
	b.notice, b.draft = "", ""
	b.mu.Unlock()

	var buf bytes.Buffer
	buf.WriteString(`<!doctype html><html><head><meta charset="utf-8">` +
		`<title>unsns</title>` +
		`<link rel="stylesheet" href="/static/style.css">` +
		`<link rel="manifest" href="/static/manifest.json">` +
		`</head><body>`)
	if notice != "" {
		buf.WriteString(`<div class="notice">`)
		buf.WriteString(html.EscapeString(notice))
		buf.WriteString(`</div>`)
	}
	buf.WriteString(`<form method="post" action="/action" enctype="multipart/form-data">` +
		`<input type="hidden" name="action" value="compose">` +
		`<textarea name="content" id="tweet-content">`)
	buf.WriteString(html.EscapeString(draft))
	buf.WriteString(`</textarea>` +
		`<input type="file" name="image">` +
		`<button id="tweet-button" type="submit">投稿</button>` +
		`</form>`)
	if !hideEnable {
		buf.WriteString(`<form method="post" action="/action">` +
			`<input type="hidden" name="action" value="subscribe">` +
			`<button id="enable-notifications" type="submit">通知を有効にする</button>` +
			`</form>`)
	}
	buf.Write(feed)
	buf.WriteString(`</body></html>`)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

// handleAction is the delegated dispatcher: one handler per action
// class, selected by the submitted action field, mirroring the
// data-action attributes the render engine emits.
func (b *Bridge) handleAction(w http.ResponseWriter, r *http.Request) {
	// Multipart for compose with attachments, urlencoded otherwise.
	if err := r.ParseMultipartForm(10 << 20); err != nil && err != http.ErrNotMultipart {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ctx := r.Context()
	id, _ := strconv.ParseInt(r.FormValue("id"), 10, 64)

	var err error
	switch action := r.FormValue("action"); action {
	case "compose":
		var (
			image     io.Reader
			imageName string
		)
		if f, fh, ferr := r.FormFile("image"); ferr == nil && fh.Size > 0 {
			defer f.Close()
			image, imageName = f, fh.Filename
		}
		content := r.FormValue("content")
		err = b.ctrl.Compose(ctx, content, image, imageName)
		if err != nil {
			// Failed composes keep the draft for the next render.
			b.keepDraft(content)
		}
	case "reply":
		b.ctrl.ToggleReplyForm(id)
	case "submit-reply":
		err = b.ctrl.SubmitReply(ctx, id, r.FormValue("content"))
	case "like":
		err = b.ctrl.ToggleLike(ctx, id)
	case "delete":
		ctx = WithConfirmed(ctx, r.FormValue("confirm") == "1")
		err = b.ctrl.Delete(ctx, id)
	case "collapse":
		b.ctrl.ToggleCollapse(id)
	case "subscribe":
		err = b.mgr.Enable(ctx)
	default:
		http.Error(w, fmt.Sprintf("unknown action %q", action), http.StatusBadRequest)
		return
	}
	if err != nil {
		b.setNotice(err.Error())
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleStatic routes asset requests through the background agent, so
// manifest assets come from the cache and everything else passes
// through to the backend.
func (b *Bridge) handleStatic(w http.ResponseWriter, r *http.Request) {
	body, err := b.assets.Fetch(r.Context(), r.URL.Path)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	if t := mime.TypeByExtension(path.Ext(r.URL.Path)); t != "" {
		w.Header().Set("Content-Type", t)
	}
	w.Write(body)
}
