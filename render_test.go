package feedview

import (
	"strings"
	"testing"
	"time"

	"golang.org/x/net/html"
)

func renderToString(t *testing.T, forest Forest, st *ViewState, viewer string) string {
	t.Helper()
	var b strings.Builder
	if err := html.Render(&b, RenderFeed(forest, st, viewer)); err != nil {
		t.Fatal(err)
	}
	return b.String()
}

func testForest(t *testing.T) Forest {
	t.Helper()
	forest, orphans := BuildForest([]Post{
		{ID: 1, Username: "alice", Content: "hello", LikeCount: 3, Timestamp: time.Unix(0, 0)},
		{ID: 2, ParentID: 1, Username: "bob", Content: "hi back", Timestamp: time.Unix(1, 0)},
	})
	if len(orphans) != 0 {
		t.Fatalf("unexpected orphans: %v", orphans)
	}
	return forest
}

func TestRenderFeedBasicStructure(t *testing.T) {
	out := renderToString(t, testForest(t), NewViewState(), "carol")

	for _, want := range []string{
		`class="tweet"`,
		`class="tweet-header"`,
		`class="username"`,
		`href="/profile/alice"`,
		`class="tweet-content"`,
		`class="timestamp"`,
		`data-action="reply"`,
		`data-action="like"`,
		`♡ 3`,
		`data-action="collapse"`,
		"返信 1件",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("render missing %q:\n%s", want, out)
		}
	}
}

func TestRenderFeedDeleteControlOnlyForViewer(t *testing.T) {
	cases := []struct {
		name   string
		viewer string
		want   bool
	}{
		{name: "own post", viewer: "alice", want: true},
		{name: "someone else's post", viewer: "carol", want: false},
	}
	forest, _ := BuildForest([]Post{{ID: 1, Username: "alice"}})

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := renderToString(t, forest, NewViewState(), tc.viewer)
			if got := strings.Contains(out, `data-action="delete"`); got != tc.want {
				t.Errorf("delete control present = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestRenderFeedCollapseHidesReplies(t *testing.T) {
	forest := testForest(t)

	st := NewViewState()
	out := renderToString(t, forest, st, "alice")
	if !strings.Contains(out, `style="display:none"`) {
		t.Error("reply section should be hidden by default")
	}
	if !strings.Contains(out, "hi back") {
		t.Error("collapsed replies are still rendered, only hidden")
	}

	st.Collapse.Toggle(1)
	out = renderToString(t, forest, st, "alice")
	if strings.Contains(out, `style="display:none"`) {
		t.Error("expanded reply section should be visible")
	}
}

func TestRenderFeedReplyForm(t *testing.T) {
	forest := testForest(t)

	st := NewViewState()
	out := renderToString(t, forest, st, "alice")
	if strings.Contains(out, `class="reply-form"`) {
		t.Error("no reply form should render while closed")
	}

	st.OpenReplies[1] = true
	out = renderToString(t, forest, st, "alice")
	if !strings.Contains(out, `class="reply-form"`) {
		t.Error("open reply form should render")
	}
	if !strings.Contains(out, `data-action="submit-reply"`) {
		t.Error("reply form should carry a submit control")
	}
}

func TestRenderFeedOptionalImages(t *testing.T) {
	forest, _ := BuildForest([]Post{
		{ID: 1, Username: "alice", Avatar: "a.png", Image: "pic.jpg"},
		{ID: 2, Username: "bob"},
	})
	out := renderToString(t, forest, NewViewState(), "carol")

	if !strings.Contains(out, `src="/static/uploads/a.png"`) {
		t.Error("avatar should render when set")
	}
	if !strings.Contains(out, `src="/static/uploads/pic.jpg"`) {
		t.Error("attached image should render when set")
	}
	if n := strings.Count(out, "avatar-small"); n != 1 {
		t.Errorf("avatar rendered %d times, want 1", n)
	}
}

func TestRenderFeedIsPure(t *testing.T) {
	forest := testForest(t)
	st := NewViewState()

	a := renderToString(t, forest, st, "alice")
	b := renderToString(t, forest, st, "alice")
	if a != b {
		t.Error("same inputs should produce identical renders")
	}
	if len(st.Collapse) != 0 || len(st.Liked) != 0 || len(st.OpenReplies) != 0 {
		t.Error("render must not mutate view state")
	}
}
