package social_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"plaza/internal/social"
)

func registerAll(t *testing.T, svc *social.Service, users ...string) {
	t.Helper()
	for _, u := range users {
		if _, err := svc.Register(u, ""); err != nil {
			t.Fatalf("Register(%q) error = %v", u, err)
		}
	}
}

func TestService_CreatePost(t *testing.T) {
	t.Run("allocates increasing ids", func(t *testing.T) {
		svc, _ := newTestService(t)
		registerAll(t, svc, "alice")

		p1, err := svc.CreatePost("alice", "first")
		if err != nil {
			t.Fatalf("CreatePost() error = %v", err)
		}
		p2, err := svc.CreatePost("alice", "second")
		if err != nil {
			t.Fatalf("CreatePost() error = %v", err)
		}
		if p2.ID <= p1.ID {
			t.Errorf("ids not increasing: %d then %d", p1.ID, p2.ID)
		}
	})

	t.Run("rejects whitespace-only content", func(t *testing.T) {
		svc, _ := newTestService(t)
		registerAll(t, svc, "alice")

		_, err := svc.CreatePost("alice", "   \n\t")
		if !errors.Is(err, social.ErrEmptyContent) {
			t.Errorf("CreatePost() error = %v, want ErrEmptyContent", err)
		}
	})

	t.Run("deleted ids are never reused", func(t *testing.T) {
		svc, _ := newTestService(t)
		registerAll(t, svc, "alice")

		p1, _ := svc.CreatePost("alice", "doomed")
		if err := svc.DeletePost(p1.ID); err != nil {
			t.Fatalf("DeletePost() error = %v", err)
		}
		p2, err := svc.CreatePost("alice", "next")
		if err != nil {
			t.Fatalf("CreatePost() error = %v", err)
		}
		if p2.ID <= p1.ID {
			t.Errorf("id %d reused after delete of %d", p2.ID, p1.ID)
		}

		_, err = svc.Post(p1.ID)
		if !errors.Is(err, social.ErrNotFound) {
			t.Errorf("Post(deleted) error = %v, want ErrNotFound", err)
		}
	})
}

func TestService_EditPost(t *testing.T) {
	svc, _ := newTestService(t)
	registerAll(t, svc, "alice", "bob")

	p, _ := svc.CreatePost("alice", "orignal tpyo")
	svc.HeartToggle(p.ID, "bob")
	svc.AddComment(p.ID, "bob", "nice")

	if err := svc.EditPost(p.ID, "original typo, fixed"); err != nil {
		t.Fatalf("EditPost() error = %v", err)
	}

	got, _ := svc.Post(p.ID)
	if got.Content != "original typo, fixed" {
		t.Errorf("Content = %q, want edited content", got.Content)
	}
	if len(got.Hearts) != 1 || len(got.Comments) != 1 {
		t.Errorf("edit must preserve engagement: hearts=%d comments=%d", len(got.Hearts), len(got.Comments))
	}

	if err := svc.EditPost(p.ID, " "); !errors.Is(err, social.ErrEmptyContent) {
		t.Errorf("EditPost(blank) error = %v, want ErrEmptyContent", err)
	}
	if err := svc.EditPost(99999, "x"); !errors.Is(err, social.ErrNotFound) {
		t.Errorf("EditPost(missing) error = %v, want ErrNotFound", err)
	}
}

func TestService_HeartToggle(t *testing.T) {
	t.Run("toggles and notifies only off-to-on", func(t *testing.T) {
		svc, _ := newTestService(t)
		registerAll(t, svc, "alice", "bob")
		p, _ := svc.CreatePost("alice", "hello")

		on, err := svc.HeartToggle(p.ID, "bob")
		if err != nil {
			t.Fatalf("HeartToggle() error = %v", err)
		}
		if !on {
			t.Error("first toggle should heart the post")
		}

		off, err := svc.HeartToggle(p.ID, "bob")
		if err != nil {
			t.Fatalf("second HeartToggle() error = %v", err)
		}
		if off {
			t.Error("second toggle should remove the heart")
		}

		got, _ := svc.Post(p.ID)
		if len(got.Hearts) != 0 {
			t.Errorf("Hearts = %v, want empty", got.Hearts)
		}

		notes, _ := svc.DrainNotifications("alice")
		want := "bob hearted your post."
		if len(notes) != 1 || notes[0] != want {
			t.Errorf("notifications = %v, want [%q]", notes, want)
		}
	})

	t.Run("self-heart does not notify", func(t *testing.T) {
		svc, _ := newTestService(t)
		registerAll(t, svc, "alice")
		p, _ := svc.CreatePost("alice", "hello")

		if _, err := svc.HeartToggle(p.ID, "alice"); err != nil {
			t.Fatalf("HeartToggle() error = %v", err)
		}
		notes, _ := svc.DrainNotifications("alice")
		if len(notes) != 0 {
			t.Errorf("self-heart notified: %v", notes)
		}
	})
}

func TestService_AddComment(t *testing.T) {
	svc, _ := newTestService(t)
	registerAll(t, svc, "alice", "bob")
	p, _ := svc.CreatePost("alice", "hello")

	if err := svc.AddComment(p.ID, "bob", "first!"); err != nil {
		t.Fatalf("AddComment() error = %v", err)
	}
	if err := svc.AddComment(p.ID, "alice", "thanks bob"); err != nil {
		t.Fatalf("AddComment() error = %v", err)
	}

	got, _ := svc.Post(p.ID)
	if len(got.Comments) != 2 {
		t.Fatalf("got %d comments, want 2", len(got.Comments))
	}
	if got.Comments[0].Author != "bob" || got.Comments[1].Author != "alice" {
		t.Errorf("comments out of append order: %v", got.Comments)
	}

	// Only bob's comment notifies; alice commented on her own post.
	notes, _ := svc.DrainNotifications("alice")
	want := "bob commented on your post."
	if len(notes) != 1 || notes[0] != want {
		t.Errorf("notifications = %v, want [%q]", notes, want)
	}

	if err := svc.AddComment(p.ID, "bob", "  "); !errors.Is(err, social.ErrEmptyContent) {
		t.Errorf("AddComment(blank) error = %v, want ErrEmptyContent", err)
	}
}

func TestService_Repost(t *testing.T) {
	svc, _ := newTestService(t)
	registerAll(t, svc, "alice", "bob")
	src, _ := svc.CreatePost("alice", "look at this")

	p, err := svc.Repost(src.ID, "bob")
	if err != nil {
		t.Fatalf("Repost() error = %v", err)
	}
	if p.Author != "bob" {
		t.Errorf("Author = %q, want %q", p.Author, "bob")
	}
	want := "reposted from alice: look at this"
	if p.Content != want {
		t.Errorf("Content = %q, want %q", p.Content, want)
	}

	notes, _ := svc.DrainNotifications("alice")
	if len(notes) != 1 || notes[0] != "bob reposted your post." {
		t.Errorf("notifications = %v", notes)
	}
}

func TestService_Quote(t *testing.T) {
	svc, _ := newTestService(t)
	registerAll(t, svc, "alice", "bob")
	src, _ := svc.CreatePost("alice", "hot take")

	p, err := svc.Quote(src.ID, "bob", "strong disagree")
	if err != nil {
		t.Fatalf("Quote() error = %v", err)
	}
	want := "strong disagree\nquoted from alice: hot take"
	if p.Content != want {
		t.Errorf("Content = %q, want %q", p.Content, want)
	}

	notes, _ := svc.DrainNotifications("alice")
	if len(notes) != 1 || notes[0] != "bob quoted your post." {
		t.Errorf("notifications = %v", notes)
	}

	if _, err := svc.Quote(src.ID, "bob", " "); !errors.Is(err, social.ErrEmptyContent) {
		t.Errorf("Quote(blank) error = %v, want ErrEmptyContent", err)
	}
}

func TestService_Engage(t *testing.T) {
	svc, _ := newTestService(t)
	registerAll(t, svc, "alice", "bob")
	p, _ := svc.CreatePost("alice", "hello")

	cases := []struct {
		kind social.EngagementKind
		text string
		want string
	}{
		{social.EngageHeart, "", "bob hearted your post."},
		{social.EngageComment, "nice", "bob commented on your post."},
		{social.EngageRepost, "", "bob reposted your post."},
		{social.EngageQuote, "hm", "bob quoted your post."},
	}
	for _, tc := range cases {
		t.Run(string(tc.kind), func(t *testing.T) {
			if err := svc.Engage(tc.kind, p.ID, "bob", tc.text); err != nil {
				t.Fatalf("Engage(%s) error = %v", tc.kind, err)
			}
			notes, _ := svc.DrainNotifications("alice")
			if len(notes) != 1 || notes[0] != tc.want {
				t.Errorf("notifications = %v, want [%q]", notes, tc.want)
			}
		})
	}

	if err := svc.Engage("boost", p.ID, "bob", ""); err == nil {
		t.Error("Engage() expected error for unknown kind")
	}
}

func TestService_PostsBy(t *testing.T) {
	svc, clock := newTestService(t)
	registerAll(t, svc, "alice", "bob")

	for i := 1; i <= 3; i++ {
		if _, err := svc.CreatePost("alice", fmt.Sprintf("post %d", i)); err != nil {
			t.Fatalf("CreatePost() error = %v", err)
		}
		clock.Advance(time.Second)
	}
	svc.CreatePost("bob", "unrelated")

	posts, err := svc.PostsBy("alice")
	if err != nil {
		t.Fatalf("PostsBy() error = %v", err)
	}
	if len(posts) != 3 {
		t.Fatalf("got %d posts, want 3", len(posts))
	}
	// Newest first.
	for i, want := range []string{"post 3", "post 2", "post 1"} {
		if posts[i].Content != want {
			t.Errorf("posts[%d].Content = %q, want %q", i, posts[i].Content, want)
		}
	}
}
