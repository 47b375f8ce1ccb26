package social_test

import (
	"testing"
	"time"

	"plaza/internal/model"
	"plaza/internal/social"
)

func TestAssembleFeed(t *testing.T) {
	viewer := model.NewAccount("alice", time.Time{})
	viewer.Follows = []string{"bob"}

	posts := []*model.Post{
		{ID: 1, Author: "bob", Content: "b1"},
		{ID: 2, Author: "carol", Content: "c1"},
		{ID: 3, Author: "alice", Content: "a1"},
		{ID: 4, Author: "bob", Content: "b2"},
	}

	feed := social.AssembleFeed(viewer, posts)

	// Own posts and followed authors only, newest first.
	want := []string{"b2", "a1", "b1"}
	if len(feed) != len(want) {
		t.Fatalf("got %d posts, want %d", len(feed), len(want))
	}
	for i := range want {
		if feed[i].Content != want[i] {
			t.Errorf("feed[%d].Content = %q, want %q", i, feed[i].Content, want[i])
		}
	}
}

func TestService_Feed(t *testing.T) {
	svc, _ := newTestService(t)
	registerAll(t, svc, "alice", "bob", "carol")

	svc.CreatePost("bob", "from bob")
	svc.CreatePost("carol", "from carol")
	svc.CreatePost("alice", "from alice")

	if err := svc.Follow("alice", "bob"); err != nil {
		t.Fatalf("Follow() error = %v", err)
	}

	feed, err := svc.Feed("alice")
	if err != nil {
		t.Fatalf("Feed() error = %v", err)
	}
	if len(feed) != 2 {
		t.Fatalf("got %d posts, want 2", len(feed))
	}
	for _, p := range feed {
		if p.Author == "carol" {
			t.Errorf("feed contains unfollowed author %q", p.Author)
		}
	}

	t.Run("empty for a fresh account that follows no one", func(t *testing.T) {
		registerAll(t, svc, "dave")
		feed, err := svc.Feed("dave")
		if err != nil {
			t.Fatalf("Feed() error = %v", err)
		}
		if len(feed) != 0 {
			t.Errorf("got %d posts, want 0", len(feed))
		}
	})
}
