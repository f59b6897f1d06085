package feedview

import (
	"reflect"
	"testing"
)

func TestBuildForest(t *testing.T) {
	cases := []struct {
		name    string
		posts   []Post
		roots   []int64
		orphans []int64
	}{
		{
			name: "single root with reply, orphan dropped",
			posts: []Post{
				{ID: 1},
				{ID: 2, ParentID: 1},
				{ID: 3, ParentID: 99},
			},
			roots:   []int64{1},
			orphans: []int64{3},
		},
		{
			name:  "empty batch",
			posts: nil,
		},
		{
			name: "root order follows first appearance",
			posts: []Post{
				{ID: 5},
				{ID: 2},
				{ID: 9},
			},
			roots: []int64{5, 2, 9},
		},
		{
			name: "reply before parent still attaches",
			posts: []Post{
				{ID: 2, ParentID: 1},
				{ID: 1},
			},
			roots: []int64{1},
		},
		{
			name: "orphan is never promoted to root",
			posts: []Post{
				{ID: 4, ParentID: 100},
			},
			roots:   nil,
			orphans: []int64{4},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			forest, orphans := BuildForest(tc.posts)

			var roots []int64
			for _, n := range forest {
				roots = append(roots, n.ID)
			}
			if !reflect.DeepEqual(roots, tc.roots) {
				t.Errorf("roots = %v, want %v", roots, tc.roots)
			}

			var orphanIDs []int64
			for _, p := range orphans {
				orphanIDs = append(orphanIDs, p.ID)
			}
			if !reflect.DeepEqual(orphanIDs, tc.orphans) {
				t.Errorf("orphans = %v, want %v", orphanIDs, tc.orphans)
			}
		})
	}
}

func TestBuildForestRepliesMatchParent(t *testing.T) {
	posts := []Post{
		{ID: 1},
		{ID: 2, ParentID: 1},
		{ID: 3, ParentID: 1},
		{ID: 4, ParentID: 2},
		{ID: 5},
		{ID: 6, ParentID: 5},
	}
	forest, orphans := BuildForest(posts)
	if len(orphans) != 0 {
		t.Fatalf("orphans = %v, want none", orphans)
	}

	// Every node's replies must be exactly the input posts whose
	// ParentID matches that node's ID, in input order.
	var check func(n *ThreadNode)
	check = func(n *ThreadNode) {
		var want []int64
		for _, p := range posts {
			if p.ParentID == n.ID {
				want = append(want, p.ID)
			}
		}
		var got []int64
		for _, r := range n.Replies {
			got = append(got, r.ID)
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("replies of %d = %v, want %v", n.ID, got, want)
		}
		for _, r := range n.Replies {
			check(r)
		}
	}
	for _, n := range forest {
		check(n)
	}
}

func TestBuildForestDoesNotMutateInput(t *testing.T) {
	posts := []Post{
		{ID: 1, Content: "a"},
		{ID: 2, ParentID: 1, Content: "b"},
	}
	orig := make([]Post, len(posts))
	copy(orig, posts)

	BuildForest(posts)

	if !reflect.DeepEqual(posts, orig) {
		t.Errorf("input mutated: %v, want %v", posts, orig)
	}
}
