package feedview

import (
	"fmt"
	"net/url"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/text/unicode/norm"
)

// The liked glyph is chosen from LikedSet membership but both branches
// currently resolve to the same rune, so membership has no visible
// effect. Kept from the original client pending a product decision.
const (
	likedGlyph   = "♡"
	unlikedGlyph = "♡"
)

// UI strings shown on action controls.
const (
	labelReply  = "返信"
	labelDelete = "削除"
	labelSubmit = "送信"

	placeholderReply = "返信を入力"
)

func element(a atom.Atom, attrs ...html.Attribute) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		DataAtom: a,
		Data:     a.String(),
		Attr:     attrs,
	}
}

func textNode(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

func attr(key, val string) html.Attribute {
	return html.Attribute{Key: key, Val: val}
}

func appendText(parent *html.Node, a atom.Atom, s string, attrs ...html.Attribute) *html.Node {
	n := element(a, attrs...)
	n.AppendChild(textNode(s))
	parent.AppendChild(n)
	return n
}

// profileHref builds the profile link for a username. Usernames are
// NFC-normalized before escaping so that the same visual name always
// yields the same URL.
func profileHref(username string) string {
	return "/profile/" + url.PathEscape(norm.NFC.String(username))
}

// sameUser compares the rendering viewer's identity against a post
// author under NFC normalization.
func sameUser(viewer, author string) bool {
	return norm.NFC.String(viewer) == norm.NFC.String(author)
}

// RenderFeed produces the full replacement content of the feed
// container from a threaded forest, the ephemeral view state, and the
// current viewer's identity. It is a pure function: it builds a fresh
// tree on every call, mutates nothing it is given, and performs no I/O.
// The host owns presentation; it serializes the returned node and
// installs one delegated handler per action class (reply, like, delete,
// collapse) on the container, keyed off each control's data-action and
// data-id attributes, so handlers survive full-container rebuilds.
func RenderFeed(forest Forest, st *ViewState, viewer string) *html.Node {
	feed := element(atom.Div, attr("id", "feed"))
	renderNodes(feed, forest, st, viewer)
	return feed
}

func renderNodes(container *html.Node, nodes []*ThreadNode, st *ViewState, viewer string) {
	for _, n := range nodes {
		container.AppendChild(renderPost(n, st, viewer))
		if len(n.Replies) == 0 {
			continue
		}

		// Each reply section restarts indentation at its own top
		// level; visual nesting tracks logical depth for one level
		// only, as in the original client.
		replies := element(atom.Div,
			attr("class", "replies"),
			attr("data-parent", fmt.Sprint(n.ID)),
		)
		if !st.Collapse.Expanded(n.ID) {
			replies.Attr = append(replies.Attr, attr("style", "display:none"))
		}
		renderNodes(replies, n.Replies, st, viewer)
		container.AppendChild(replies)
	}
}

func renderPost(n *ThreadNode, st *ViewState, viewer string) *html.Node {
	id := fmt.Sprint(n.ID)
	post := element(atom.Div, attr("class", "tweet"), attr("data-id", id))

	header := element(atom.Div, attr("class", "tweet-header"))
	if n.Avatar != "" {
		header.AppendChild(element(atom.Img,
			attr("src", "/static/uploads/"+n.Avatar),
			attr("class", "avatar-small"),
		))
	}
	appendText(header, atom.A, n.Username,
		attr("href", profileHref(n.Username)),
		attr("class", "username"),
	)
	post.AppendChild(header)

	appendText(post, atom.Div, n.Content, attr("class", "tweet-content"))
	if n.Image != "" {
		post.AppendChild(element(atom.Img,
			attr("src", "/static/uploads/"+n.Image),
			attr("class", "tweet-image"),
		))
	}

	footer := element(atom.Div, attr("class", "tweet-footer"))
	appendText(footer, atom.Span, n.Timestamp.Local().Format("2006/1/2 15:04:05"),
		attr("class", "timestamp"),
	)
	appendText(footer, atom.Button, labelReply,
		attr("class", "reply-button"),
		attr("data-action", "reply"),
		attr("data-id", id),
	)
	glyph := unlikedGlyph
	if st.Liked.Contains(n.ID) {
		glyph = likedGlyph
	}
	appendText(footer, atom.Button, fmt.Sprintf("%s %d", glyph, n.LikeCount),
		attr("class", "like-button"),
		attr("data-action", "like"),
		attr("data-id", id),
	)
	if sameUser(viewer, n.Username) {
		appendText(footer, atom.Button, labelDelete,
			attr("class", "delete-button"),
			attr("data-action", "delete"),
			attr("data-id", id),
		)
	}
	if len(n.Replies) > 0 {
		appendText(footer, atom.Button, fmt.Sprintf("%s %d件", labelReply, len(n.Replies)),
			attr("class", "collapse-toggle"),
			attr("data-action", "collapse"),
			attr("data-id", id),
		)
	}
	post.AppendChild(footer)

	if st.OpenReplies[n.ID] {
		form := element(atom.Div, attr("class", "reply-form"))
		form.AppendChild(element(atom.Input,
			attr("type", "text"),
			attr("class", "reply-content"),
			attr("placeholder", placeholderReply),
		))
		appendText(form, atom.Button, labelSubmit,
			attr("class", "submit-reply"),
			attr("data-action", "submit-reply"),
			attr("data-id", id),
		)
		post.AppendChild(form)
	}

	return post
}
