package social_test

import (
	"errors"
	"testing"
	"time"

	"plaza/internal/social"
)

func TestService_Send(t *testing.T) {
	t.Run("delivers and notifies the recipient", func(t *testing.T) {
		svc, _ := newTestService(t)
		registerAll(t, svc, "alice", "bob")

		m, err := svc.Send("alice", "bob", "hey bob")
		if err != nil {
			t.Fatalf("Send() error = %v", err)
		}
		if m.Seq != 1 {
			t.Errorf("Seq = %d, want 1", m.Seq)
		}

		notes, _ := svc.DrainNotifications("bob")
		want := "you have a new message from alice."
		if len(notes) != 1 || notes[0] != want {
			t.Errorf("notifications = %v, want [%q]", notes, want)
		}
	})

	t.Run("rejects empty text", func(t *testing.T) {
		svc, _ := newTestService(t)
		registerAll(t, svc, "alice", "bob")

		_, err := svc.Send("alice", "bob", "  \n")
		if !errors.Is(err, social.ErrEmptyContent) {
			t.Errorf("Send() error = %v, want ErrEmptyContent", err)
		}
		msgs, _ := svc.Thread("bob", "alice")
		if len(msgs) != 0 {
			t.Errorf("rejected send still stored a message: %v", msgs)
		}
	})

	t.Run("rejects self and unknown recipient", func(t *testing.T) {
		svc, _ := newTestService(t)
		registerAll(t, svc, "alice")

		if _, err := svc.Send("alice", "alice", "hi me"); err == nil {
			t.Error("Send() expected error for self-message")
		}
		_, err := svc.Send("alice", "ghost", "hi")
		if !errors.Is(err, social.ErrNotFound) {
			t.Errorf("Send() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("replaying an identical send is a no-op", func(t *testing.T) {
		svc, _ := newTestService(t)
		registerAll(t, svc, "alice", "bob")

		m1, err := svc.Send("alice", "bob", "hey")
		if err != nil {
			t.Fatalf("Send() error = %v", err)
		}
		// Same sender, recipient, text, and clock instant: a crash-retry replay.
		m2, err := svc.Send("alice", "bob", "hey")
		if err != nil {
			t.Fatalf("replayed Send() error = %v", err)
		}
		if m2.Seq != m1.Seq {
			t.Errorf("replay created a new message: seq %d then %d", m1.Seq, m2.Seq)
		}

		msgs, _ := svc.Thread("alice", "bob")
		if len(msgs) != 1 {
			t.Errorf("thread has %d messages, want 1", len(msgs))
		}
	})
}

func TestService_Thread(t *testing.T) {
	svc, clock := newTestService(t)
	registerAll(t, svc, "alice", "bob")

	svc.Send("alice", "bob", "one")
	clock.Advance(time.Minute)
	svc.Send("bob", "alice", "two")
	clock.Advance(time.Minute)
	svc.Send("alice", "bob", "three")

	t.Run("both participants see the same messages in order", func(t *testing.T) {
		for _, viewer := range []string{"alice", "bob"} {
			msgs, err := svc.Thread(viewer, other(viewer))
			if err != nil {
				t.Fatalf("Thread(%q) error = %v", viewer, err)
			}
			if len(msgs) != 3 {
				t.Fatalf("Thread(%q) has %d messages, want 3", viewer, len(msgs))
			}
			for i, want := range []string{"one", "two", "three"} {
				if msgs[i].Text != want {
					t.Errorf("Thread(%q)[%d].Text = %q, want %q", viewer, i, msgs[i].Text, want)
				}
			}
		}
	})

	t.Run("unknown pair yields an empty thread", func(t *testing.T) {
		registerAll(t, svc, "carol")
		msgs, err := svc.Thread("alice", "carol")
		if err != nil {
			t.Fatalf("Thread() error = %v", err)
		}
		if len(msgs) != 0 {
			t.Errorf("got %d messages, want 0", len(msgs))
		}
	})
}

func other(viewer string) string {
	if viewer == "alice" {
		return "bob"
	}
	return "alice"
}

func TestService_MarkRead(t *testing.T) {
	svc, _ := newTestService(t)
	registerAll(t, svc, "alice", "bob")

	svc.Send("alice", "bob", "one")
	svc.Send("alice", "bob", "two")
	svc.Send("bob", "alice", "reply")

	t.Run("read state is per viewer", func(t *testing.T) {
		if err := svc.MarkRead("bob", "alice"); err != nil {
			t.Fatalf("MarkRead() error = %v", err)
		}

		// Bob's incoming messages are now read.
		bobView, _ := svc.Thread("bob", "alice")
		for _, m := range bobView {
			if m.Recipient == "bob" && !m.Read {
				t.Errorf("bob's received message %q should be read", m.Text)
			}
		}

		// Alice's incoming message is untouched by bob's mark.
		aliceView, _ := svc.Thread("alice", "bob")
		for _, m := range aliceView {
			if m.Recipient == "alice" && m.Read {
				t.Errorf("alice's received message %q should still be unread", m.Text)
			}
		}

		n, err := svc.UnreadCount("alice", "bob")
		if err != nil {
			t.Fatalf("UnreadCount() error = %v", err)
		}
		if n != 1 {
			t.Errorf("alice unread = %d, want 1", n)
		}
		n, _ = svc.UnreadCount("bob", "alice")
		if n != 0 {
			t.Errorf("bob unread = %d, want 0", n)
		}
	})

	t.Run("messages after a mark are unread", func(t *testing.T) {
		svc.Send("alice", "bob", "three")
		n, _ := svc.UnreadCount("bob", "alice")
		if n != 1 {
			t.Errorf("bob unread = %d, want 1", n)
		}
	})

	t.Run("mark on empty pair is a no-op", func(t *testing.T) {
		registerAll(t, svc, "carol")
		if err := svc.MarkRead("carol", "alice"); err != nil {
			t.Fatalf("MarkRead() error = %v", err)
		}
	})
}

func TestService_Inbox(t *testing.T) {
	svc, clock := newTestService(t)
	registerAll(t, svc, "alice", "bob", "carol")

	svc.Send("bob", "alice", "oldest thread")
	clock.Advance(time.Hour)
	svc.Send("carol", "alice", "newer thread")
	clock.Advance(time.Hour)
	svc.Send("carol", "alice", "again")

	inbox, err := svc.Inbox("alice")
	if err != nil {
		t.Fatalf("Inbox() error = %v", err)
	}
	if len(inbox) != 2 {
		t.Fatalf("got %d conversations, want 2", len(inbox))
	}
	if inbox[0].Other != "carol" || inbox[1].Other != "bob" {
		t.Errorf("inbox order = [%s, %s], want most recent first", inbox[0].Other, inbox[1].Other)
	}
	if inbox[0].Unread != 2 {
		t.Errorf("carol thread unread = %d, want 2", inbox[0].Unread)
	}

	svc.MarkRead("alice", "carol")
	inbox, _ = svc.Inbox("alice")
	if inbox[0].Unread != 0 {
		t.Errorf("after mark, carol thread unread = %d, want 0", inbox[0].Unread)
	}

	t.Run("empty for account with no threads", func(t *testing.T) {
		registerAll(t, svc, "dave")
		inbox, err := svc.Inbox("dave")
		if err != nil {
			t.Fatalf("Inbox() error = %v", err)
		}
		if len(inbox) != 0 {
			t.Errorf("got %d conversations, want 0", len(inbox))
		}
	})
}
