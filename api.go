package feedview

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// ErrUnauthorized is returned for backend responses that indicate the
// session is missing or expired. The backend answers 401 for post
// creation and likes when no session cookie is present.
var ErrUnauthorized = errors.New("not logged in")

// API accesses the unsns backend. All methods perform a single HTTP
// request through the shared throttled client and honor the request
// context.
type API struct {
	base   *url.URL
	client *LimitedHTTPClient
}

// NewAPI returns a client for the backend at base, e.g.
// "http://127.0.0.1:5000". The client is not logged in; most write
// operations will fail with ErrUnauthorized until Login succeeds.
func NewAPI(base string) (*API, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", base, err)
	}
	c, err := NewLimitedHTTPClient(DefaultRequestInterval, DefaultRequestBurst)
	if err != nil {
		return nil, err
	}
	return &API{base: u, client: c}, nil
}

func (a *API) endpoint(path string) string {
	u := *a.base
	u.Path = path
	return u.String()
}

// Login logs in with the given credentials. The session is kept in the
// client's cookie jar; there is nothing to store on success.
func (a *API) Login(ctx context.Context, username, password string) error {
	data := url.Values{
		"username": {username},
		"password": {password},
	}
	req, err := http.NewRequestWithContext(
		ctx, "POST", a.endpoint("/login"),
		strings.NewReader(data.Encode()),
	)
	if err != nil {
		return fmt.Errorf("could not create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("unable to send login request: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK && res.StatusCode != http.StatusFound {
		return fmt.Errorf("login failed for username %q", username)
	}
	return nil
}

// ListPosts retrieves the full post collection. The server returns every
// post in one flat array; threading is the caller's job via BuildForest.
func (a *API) ListPosts(ctx context.Context) ([]Post, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", a.endpoint("/api/tweets"), nil)
	if err != nil {
		return nil, err
	}
	res, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("unable to fetch posts: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching posts: unexpected status %s", res.Status)
	}
	var posts []Post
	if err := json.NewDecoder(res.Body).Decode(&posts); err != nil {
		return nil, fmt.Errorf("unable to decode post list: %w", err)
	}
	return posts, nil
}

// CreatePost submits a new post. A zero parentID creates a root post,
// anything else a reply to that post. When image is non-nil its contents
// are attached as a multipart file named imageName; otherwise the post
// is sent as a plain JSON body.
func (a *API) CreatePost(ctx context.Context, content string, parentID int64, image io.Reader, imageName string) (Post, error) {
	var (
		body        io.Reader
		contentType string
	)
	if image != nil {
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		if err := w.WriteField("content", content); err != nil {
			return Post{}, err
		}
		if parentID != 0 {
			if err := w.WriteField("parent_id", strconv.FormatInt(parentID, 10)); err != nil {
				return Post{}, err
			}
		}
		fw, err := w.CreateFormFile("image", imageName)
		if err != nil {
			return Post{}, err
		}
		if _, err := io.Copy(fw, image); err != nil {
			return Post{}, fmt.Errorf("unable to attach image: %w", err)
		}
		if err := w.Close(); err != nil {
			return Post{}, err
		}
		body = &buf
		contentType = w.FormDataContentType()
	} else {
		payload := struct {
			Content  string `json:"content"`
			ParentID int64  `json:"parent_id,omitempty"`
		}{Content: content, ParentID: parentID}
		b, err := json.Marshal(payload)
		if err != nil {
			return Post{}, err
		}
		body = bytes.NewReader(b)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, "POST", a.endpoint("/api/tweets"), body)
	if err != nil {
		return Post{}, err
	}
	req.Header.Set("Content-Type", contentType)

	res, err := a.client.Do(req)
	if err != nil {
		return Post{}, fmt.Errorf("unable to send post: %w", err)
	}
	defer res.Body.Close()
	switch {
	case res.StatusCode == http.StatusUnauthorized:
		return Post{}, ErrUnauthorized
	case res.StatusCode >= 300:
		return Post{}, fmt.Errorf("creating post: unexpected status %s", res.Status)
	}
	var created Post
	if err := json.NewDecoder(res.Body).Decode(&created); err != nil {
		return Post{}, fmt.Errorf("unable to decode created post: %w", err)
	}
	return created, nil
}

// LikeResult is the backend's answer to a like toggle.
type LikeResult struct {
	// Liked reports whether the server now counts the viewer's like.
	Liked bool `json:"liked"`

	// LikeCount is the post's like total after the toggle.
	LikeCount int64 `json:"like_count"`
}

// ToggleLike toggles the viewer's like on the given post.
func (a *API) ToggleLike(ctx context.Context, id int64) (LikeResult, error) {
	path := fmt.Sprintf("/api/tweets/%d/likes", id)
	req, err := http.NewRequestWithContext(ctx, "POST", a.endpoint(path), nil)
	if err != nil {
		return LikeResult{}, err
	}
	res, err := a.client.Do(req)
	if err != nil {
		return LikeResult{}, fmt.Errorf("unable to toggle like: %w", err)
	}
	defer res.Body.Close()
	switch {
	case res.StatusCode == http.StatusUnauthorized:
		return LikeResult{}, ErrUnauthorized
	case res.StatusCode != http.StatusOK:
		return LikeResult{}, fmt.Errorf("toggling like: unexpected status %s", res.Status)
	}
	var lr LikeResult
	if err := json.NewDecoder(res.Body).Decode(&lr); err != nil {
		return LikeResult{}, fmt.Errorf("unable to decode like result: %w", err)
	}
	return lr, nil
}

// DeletePost deletes the given post on the server. The server enforces
// ownership; the client only hides the control for other users' posts.
func (a *API) DeletePost(ctx context.Context, id int64) error {
	path := fmt.Sprintf("/api/tweets/%d", id)
	req, err := http.NewRequestWithContext(ctx, "DELETE", a.endpoint(path), nil)
	if err != nil {
		return err
	}
	res, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("unable to delete post: %w", err)
	}
	defer res.Body.Close()
	switch {
	case res.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case res.StatusCode >= 300:
		return fmt.Errorf("deleting post: unexpected status %s", res.Status)
	}
	return nil
}

// SendSubscription transmits a push subscription descriptor to the
// backend, which stores it for later push dispatch.
func (a *API) SendSubscription(ctx context.Context, sub Subscription) error {
	b, err := json.Marshal(sub)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, "POST", a.endpoint("/subscribe"), bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("unable to send subscription: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return fmt.Errorf("sending subscription: unexpected status %s", res.Status)
	}
	return nil
}
