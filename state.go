package feedview

// CollapseState records which reply sections the viewer has expanded,
// keyed by the parent post's server-assigned ID. An absent entry means
// collapsed, which makes the default for any post with replies
// "collapsed" and keeps the map compatible across full redraws.
type CollapseState map[int64]bool

// Expanded reports whether the reply section under id is visible.
func (c CollapseState) Expanded(id int64) bool {
	return c[id]
}

// Toggle flips the reply section under id. Toggling twice restores the
// original visibility.
func (c CollapseState) Toggle(id int64) {
	c[id] = !c[id]
}

// LikedSet is the session-local record of posts the viewer has toggled
// as liked. It starts empty on every page load, is mutated only by the
// like action, and is never persisted or derived from server data.
type LikedSet map[int64]struct{}

// Contains reports whether id has been toggled liked this session.
func (l LikedSet) Contains(id int64) bool {
	_, ok := l[id]
	return ok
}

// Toggle flips id's membership.
func (l LikedSet) Toggle(id int64) {
	if _, ok := l[id]; ok {
		delete(l, id)
	} else {
		l[id] = struct{}{}
	}
}

// ViewState is the ephemeral per-session view state that survives full
// redraws: collapse flags, the liked set, and which inline reply forms
// are currently open. It is owned by the synchronization loop and passed
// by reference into every render.
type ViewState struct {
	Collapse    CollapseState
	Liked       LikedSet
	OpenReplies map[int64]bool
}

// NewViewState returns an empty view state, the state of a fresh page
// load.
func NewViewState() *ViewState {
	return &ViewState{
		Collapse:    make(CollapseState),
		Liked:       make(LikedSet),
		OpenReplies: make(map[int64]bool),
	}
}
