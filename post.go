package feedview

import "time"

// Post is a single message as served by the unsns backend. A post with a
// zero ParentID is a root post; anything else is a reply. Posts are
// immutable on the client for the duration of a fetch cycle.
type Post struct {
	// ID is the server-assigned post ID. It is the only stable key the
	// client has across fetch cycles.
	ID int64 `json:"id"`

	// ParentID references the post this one replies to, or 0 for a root
	// post.
	ParentID int64 `json:"parent_id,omitempty"`

	// Username is the author's name as stored by the backend.
	Username string `json:"username"`

	// Avatar is the author's avatar file name under /static/uploads/,
	// empty if the author has none.
	Avatar string `json:"avatar,omitempty"`

	// Body text of the post.
	Content string `json:"content"`

	// Timestamp is the server-side creation time.
	Timestamp time.Time `json:"timestamp"`

	// LikeCount is the current like total as counted by the backend.
	LikeCount int64 `json:"like_count"`

	// Image is an attached image file name under /static/uploads/,
	// empty if the post has none.
	Image string `json:"image,omitempty"`
}

// ThreadNode is a post together with its direct replies, in the order the
// replies appeared in the fetched batch.
type ThreadNode struct {
	Post
	Replies []*ThreadNode
}

// Forest is the ordered collection of root threads. Root order is the
// first-appearance order of parentless posts in the fetched batch, not
// timestamp order.
type Forest []*ThreadNode

// BuildForest threads a flat batch of posts into a Forest. It makes two
// passes over the input: one to materialize a node per post and one to
// attach each node to its parent or to the root sequence. The input is
// not mutated and no sorting is performed.
//
// A post whose ParentID names an ID not present in the same batch cannot
// be placed anywhere; such posts are excluded from the Forest and
// returned separately so the caller can decide whether to log them. They
// are never promoted to roots.
func BuildForest(posts []Post) (Forest, []Post) {
	nodes := make(map[int64]*ThreadNode, len(posts))
	for i := range posts {
		nodes[posts[i].ID] = &ThreadNode{Post: posts[i]}
	}

	var forest Forest
	var orphans []Post
	for i := range posts {
		n := nodes[posts[i].ID]
		if posts[i].ParentID == 0 {
			forest = append(forest, n)
			continue
		}
		parent, ok := nodes[posts[i].ParentID]
		if !ok {
			orphans = append(orphans, posts[i])
			continue
		}
		parent.Replies = append(parent.Replies, n)
	}
	return forest, orphans
}
