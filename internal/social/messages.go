package social

import (
	"fmt"
	"sort"
	"strings"

	"plaza/internal/model"
)

// Send appends a message to the sender/recipient thread and notifies the
// recipient. The thread is stored once under the normalized pair key, so
// both participants observe the same canonical message.
//
// Re-applying the same logical send (identical sender, recipient, created-at,
// and text) is a no-op, which makes crash-retry safe: the caller can replay a
// send whose outcome it never observed without duplicating the message.
func (s *Service) Send(sender, recipient, text string) (*model.Message, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("sending message: %w", ErrEmptyContent)
	}
	if sender == recipient {
		return nil, fmt.Errorf("sending message to self: %w", ErrAlreadyExists)
	}
	if _, err := s.store.GetAccount(recipient); err != nil {
		return nil, fmt.Errorf("sending message to %q: %w", recipient, err)
	}

	now := s.clock.Now()
	var sent model.Message
	err := withRetry(s.logger, "Send", func() error {
		return s.store.UpdateConversation(sender, recipient, func(c *model.Conversation) error {
			for _, m := range c.Messages {
				if m.Sender == sender && m.Recipient == recipient &&
					m.Text == text && m.CreatedAt.Equal(now) {
					sent = m // duplicate of an already-applied send
					return nil
				}
			}
			sent = model.Message{
				Seq:       c.NextSeq,
				Sender:    sender,
				Recipient: recipient,
				Text:      text,
				CreatedAt: now,
			}
			c.NextSeq++
			c.Messages = append(c.Messages, sent)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("sending message to %q: %w", recipient, err)
	}

	s.Notify(recipient, fmt.Sprintf("you have a new message from %s.", sender))
	return &sent, nil
}

// Thread returns the owner's view of the conversation with other, ordered by
// creation time ascending (ties broken by insertion order). The Read flag is
// a per-viewer projection: set only on messages the owner received and has
// marked read. An unknown pair yields an empty thread.
func (s *Service) Thread(owner, other string) ([]model.ThreadMessage, error) {
	c, err := s.store.GetConversation(owner, other)
	if err != nil {
		if isNotFound(err) {
			return []model.ThreadMessage{}, nil
		}
		return nil, fmt.Errorf("loading thread %q/%q: %w", owner, other, err)
	}
	return projectThread(c, owner), nil
}

// MarkRead marks every message the owner has received in this thread as
// read, by advancing the owner's high-water mark. The other participant's
// view is untouched. Called whenever a thread is opened for viewing.
func (s *Service) MarkRead(owner, other string) error {
	err := withRetry(s.logger, "MarkRead", func() error {
		return s.store.UpdateConversation(owner, other, func(c *model.Conversation) error {
			var high int64
			for _, m := range c.Messages {
				if m.Recipient == owner && m.Seq > high {
					high = m.Seq
				}
			}
			if high > c.LastRead[owner] {
				c.LastRead[owner] = high
			}
			return nil
		})
	})
	if err != nil {
		return fmt.Errorf("marking thread %q/%q read: %w", owner, other, err)
	}
	return nil
}

// UnreadCount returns how many messages the owner has received in this
// thread and not yet marked read.
func (s *Service) UnreadCount(owner, other string) (int, error) {
	c, err := s.store.GetConversation(owner, other)
	if err != nil {
		if isNotFound(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("counting unread %q/%q: %w", owner, other, err)
	}
	return countUnread(c, owner), nil
}

// Inbox returns one summary per conversation the owner participates in,
// sorted by last message time, most recent first.
func (s *Service) Inbox(owner string) ([]model.ConversationSummary, error) {
	convos, err := s.store.ListConversations(owner)
	if err != nil {
		return nil, fmt.Errorf("listing conversations for %q: %w", owner, err)
	}

	summaries := make([]model.ConversationSummary, 0, len(convos))
	for _, c := range convos {
		if len(c.Messages) == 0 {
			continue
		}
		summaries = append(summaries, model.ConversationSummary{
			Other:         c.Other(owner),
			Unread:        countUnread(c, owner),
			LastMessageAt: c.Messages[len(c.Messages)-1].CreatedAt,
		})
	}
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].LastMessageAt.After(summaries[j].LastMessageAt)
	})
	return summaries, nil
}

// projectThread builds the viewer's ordered view over a canonical thread.
func projectThread(c *model.Conversation, viewer string) []model.ThreadMessage {
	out := make([]model.ThreadMessage, 0, len(c.Messages))
	lastRead := c.LastRead[viewer]
	for _, m := range c.Messages {
		out = append(out, model.ThreadMessage{
			Message: m,
			Read:    m.Recipient == viewer && m.Seq <= lastRead,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		ti, tj := out[i].CreatedAt, out[j].CreatedAt
		if ti.Equal(tj) {
			return out[i].Seq < out[j].Seq
		}
		return ti.Before(tj)
	})
	return out
}

func countUnread(c *model.Conversation, viewer string) int {
	n := 0
	lastRead := c.LastRead[viewer]
	for _, m := range c.Messages {
		if m.Recipient == viewer && m.Seq > lastRead {
			n++
		}
	}
	return n
}
