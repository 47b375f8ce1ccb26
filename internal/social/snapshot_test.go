package social_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"plaza/internal/social"
	"plaza/internal/testutil"
)

// populate builds a small network: two accounts, posts with engagement,
// a conversation, and pending notifications.
func populate(t *testing.T, svc *social.Service, clock *testutil.StubClock) {
	t.Helper()
	registerAll(t, svc, "alice", "bob")
	svc.Follow("bob", "alice")

	p, err := svc.CreatePost("alice", "hello world")
	if err != nil {
		t.Fatalf("CreatePost() error = %v", err)
	}
	svc.HeartToggle(p.ID, "bob")
	svc.AddComment(p.ID, "bob", "welcome")

	svc.Send("alice", "bob", "thanks for the follow")
	clock.Advance(time.Minute)
	svc.Send("bob", "alice", "np")
	svc.MarkRead("bob", "alice")
}

func TestService_Snapshot(t *testing.T) {
	t.Run("round trip into a fresh store", func(t *testing.T) {
		src, clock := newTestService(t)
		populate(t, src, clock)

		var buf bytes.Buffer
		if err := src.ExportSnapshot(&buf); err != nil {
			t.Fatalf("ExportSnapshot() error = %v", err)
		}

		dst := social.NewService(testutil.NewTestStore(t), social.NewNopLogger(), clock)
		if err := dst.ImportSnapshot(bytes.NewReader(buf.Bytes())); err != nil {
			t.Fatalf("ImportSnapshot() error = %v", err)
		}

		a, err := dst.Account("bob")
		if err != nil {
			t.Fatalf("Account() error = %v", err)
		}
		if !a.IsFollowing("alice") {
			t.Error("follow edge lost in round trip")
		}

		posts, err := dst.PostsBy("alice")
		if err != nil {
			t.Fatalf("PostsBy() error = %v", err)
		}
		if len(posts) != 1 {
			t.Fatalf("got %d posts, want 1", len(posts))
		}
		if len(posts[0].Hearts) != 1 || len(posts[0].Comments) != 1 {
			t.Errorf("engagement lost: hearts=%d comments=%d", len(posts[0].Hearts), len(posts[0].Comments))
		}

		msgs, err := dst.Thread("bob", "alice")
		if err != nil {
			t.Fatalf("Thread() error = %v", err)
		}
		if len(msgs) != 2 {
			t.Fatalf("got %d messages, want 2", len(msgs))
		}
		if !msgs[0].Read {
			t.Error("bob's read marker lost in round trip")
		}

		// The restored allocator must not reissue an existing post id.
		p2, err := dst.CreatePost("alice", "after restore")
		if err != nil {
			t.Fatalf("CreatePost() error = %v", err)
		}
		if p2.ID <= posts[0].ID {
			t.Errorf("post id %d reissued at or below restored id %d", p2.ID, posts[0].ID)
		}
	})

	t.Run("re-import is idempotent", func(t *testing.T) {
		svc, clock := newTestService(t)
		populate(t, svc, clock)

		var buf bytes.Buffer
		if err := svc.ExportSnapshot(&buf); err != nil {
			t.Fatalf("ExportSnapshot() error = %v", err)
		}

		// Import the archive into the same store it came from, twice.
		for i := 0; i < 2; i++ {
			if err := svc.ImportSnapshot(bytes.NewReader(buf.Bytes())); err != nil {
				t.Fatalf("ImportSnapshot() #%d error = %v", i+1, err)
			}
		}

		posts, _ := svc.PostsBy("alice")
		if len(posts) != 1 {
			t.Errorf("got %d posts, want 1", len(posts))
		}
		msgs, _ := svc.Thread("alice", "bob")
		if len(msgs) != 2 {
			t.Errorf("got %d messages, want 2", len(msgs))
		}
	})

	t.Run("rejects an unknown format header", func(t *testing.T) {
		svc, _ := newTestService(t)
		err := svc.ImportSnapshot(strings.NewReader(`{"format":"something-else"}` + "\n"))
		if !errors.Is(err, social.ErrCorruptRecord) {
			t.Errorf("ImportSnapshot() error = %v, want ErrCorruptRecord", err)
		}
	})

	t.Run("rejects a garbled line with its line number", func(t *testing.T) {
		svc, _ := newTestService(t)
		archive := `{"format":"plaza-snapshot-v1"}` + "\n" + "not json\n"
		err := svc.ImportSnapshot(strings.NewReader(archive))
		if !errors.Is(err, social.ErrCorruptRecord) {
			t.Errorf("ImportSnapshot() error = %v, want ErrCorruptRecord", err)
		}
		if err == nil || !strings.Contains(err.Error(), "line 2") {
			t.Errorf("error %v should name the offending line", err)
		}
	})
}

func TestService_Verify(t *testing.T) {
	svc, clock := newTestService(t)
	populate(t, svc, clock)

	problems, err := svc.Verify()
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if len(problems) != 0 {
		t.Errorf("healthy store reported problems: %v", problems)
	}
}
