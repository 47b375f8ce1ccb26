package social

import (
	"fmt"

	"plaza/internal/model"
)

// AssembleFeed is the pure read side of the timeline: every post whose
// author is in the viewer's follow-set (or the viewer themself), newest
// first. posts must be in store insertion order (oldest first).
func AssembleFeed(viewer *model.Account, posts []*model.Post) []*model.Post {
	feed := make([]*model.Post, 0, len(posts))
	for _, p := range posts {
		if p.Author == viewer.Username || viewer.IsFollowing(p.Author) {
			feed = append(feed, p)
		}
	}
	reversePosts(feed)
	return feed
}

// Feed assembles the viewer's timeline from a fresh snapshot of the account
// and post stores.
func (s *Service) Feed(viewer string) ([]*model.Post, error) {
	a, err := s.store.GetAccount(viewer)
	if err != nil {
		return nil, fmt.Errorf("loading feed viewer %q: %w", viewer, err)
	}
	posts, err := s.store.ListPosts()
	if err != nil {
		return nil, fmt.Errorf("loading posts for feed: %w", err)
	}
	return AssembleFeed(a, posts), nil
}
