package social

import (
	"fmt"
	"strings"

	"plaza/internal/model"
)

// CreatePost allocates a fresh id, timestamps the content, and persists a
// new post. Empty or whitespace-only content is rejected.
func (s *Service) CreatePost(author, content string) (*model.Post, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("creating post: %w", ErrEmptyContent)
	}

	id, err := s.store.NextPostID()
	if err != nil {
		return nil, fmt.Errorf("allocating post id: %w", err)
	}

	p := model.NewPost(id, author, content, s.clock.Now())
	err = withRetry(s.logger, "CreatePost", func() error {
		return s.store.CreatePost(p)
	})
	if err != nil {
		return nil, fmt.Errorf("creating post %d: %w", id, err)
	}
	s.logger.Info("post created", "id", id, "author", author)
	return p, nil
}

// Post returns a single post by id.
func (s *Service) Post(id int64) (*model.Post, error) {
	return s.store.GetPost(id)
}

// EditPost replaces a post's content. Hearts and comments stay untouched.
func (s *Service) EditPost(id int64, content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("editing post %d: %w", id, ErrEmptyContent)
	}
	err := withRetry(s.logger, "EditPost", func() error {
		return s.store.UpdatePost(id, func(p *model.Post) error {
			p.Content = content
			return nil
		})
	})
	if err != nil {
		return fmt.Errorf("editing post %d: %w", id, err)
	}
	return nil
}

// DeletePost removes a post permanently. No tombstone: the id is never
// reused because the allocator's high-water mark survives the delete.
func (s *Service) DeletePost(id int64) error {
	err := withRetry(s.logger, "DeletePost", func() error {
		return s.store.DeletePost(id)
	})
	if err != nil {
		return fmt.Errorf("deleting post %d: %w", id, err)
	}
	s.logger.Info("post deleted", "id", id)
	return nil
}

// PostsBy returns a user's posts, newest first (display order).
func (s *Service) PostsBy(username string) ([]*model.Post, error) {
	posts, err := s.store.ListPostsByAuthor(username)
	if err != nil {
		return nil, fmt.Errorf("listing posts by %q: %w", username, err)
	}
	reversePosts(posts)
	return posts, nil
}

// HeartToggle flips actor's heart on the post. Returns true when the post is
// now hearted by actor. Only the off-to-on transition notifies the author,
// and never when actor is the author.
func (s *Service) HeartToggle(id int64, actor string) (bool, error) {
	var hearted bool
	var author string
	err := withRetry(s.logger, "HeartToggle", func() error {
		return s.store.UpdatePost(id, func(p *model.Post) error {
			author = p.Author
			if p.HeartedBy(actor) {
				for i, u := range p.Hearts {
					if u == actor {
						p.Hearts = append(p.Hearts[:i], p.Hearts[i+1:]...)
						break
					}
				}
				hearted = false
			} else {
				p.Hearts = append(p.Hearts, actor)
				hearted = true
			}
			return nil
		})
	})
	if err != nil {
		return false, fmt.Errorf("toggling heart on post %d: %w", id, err)
	}

	if hearted && actor != author {
		s.Notify(author, fmt.Sprintf("%s hearted your post.", actor))
	}
	return hearted, nil
}

// AddComment appends a comment to the post and notifies the author
// (suppressed for self-comments). Empty text is rejected.
func (s *Service) AddComment(id int64, author, text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("commenting on post %d: %w", id, ErrEmptyContent)
	}

	var postAuthor string
	now := s.clock.Now()
	err := withRetry(s.logger, "AddComment", func() error {
		return s.store.UpdatePost(id, func(p *model.Post) error {
			postAuthor = p.Author
			p.Comments = append(p.Comments, model.Comment{
				Author:    author,
				Text:      text,
				CreatedAt: now,
			})
			return nil
		})
	})
	if err != nil {
		return fmt.Errorf("commenting on post %d: %w", id, err)
	}

	if author != postAuthor {
		s.Notify(postAuthor, fmt.Sprintf("%s commented on your post.", author))
	}
	return nil
}

// Repost publishes a new post by actor embedding the source post's content.
// The link to the source is textual only; no structural reference is kept.
func (s *Service) Repost(id int64, actor string) (*model.Post, error) {
	src, err := s.store.GetPost(id)
	if err != nil {
		return nil, fmt.Errorf("reposting post %d: %w", id, err)
	}

	content := fmt.Sprintf("reposted from %s: %s", src.Author, src.Content)
	p, err := s.CreatePost(actor, content)
	if err != nil {
		return nil, err
	}

	if actor != src.Author {
		s.Notify(src.Author, fmt.Sprintf("%s reposted your post.", actor))
	}
	return p, nil
}

// Quote publishes a new post by actor combining their quote text with the
// source post's content. Empty quote text is rejected.
func (s *Service) Quote(id int64, actor, quote string) (*model.Post, error) {
	if strings.TrimSpace(quote) == "" {
		return nil, fmt.Errorf("quoting post %d: %w", id, ErrEmptyContent)
	}
	src, err := s.store.GetPost(id)
	if err != nil {
		return nil, fmt.Errorf("quoting post %d: %w", id, err)
	}

	content := fmt.Sprintf("%s\nquoted from %s: %s", quote, src.Author, src.Content)
	p, err := s.CreatePost(actor, content)
	if err != nil {
		return nil, err
	}

	if actor != src.Author {
		s.Notify(src.Author, fmt.Sprintf("%s quoted your post.", actor))
	}
	return p, nil
}

// EngagementKind selects the engagement dispatched by Engage.
type EngagementKind string

const (
	EngageHeart   EngagementKind = "heart"
	EngageComment EngagementKind = "comment"
	EngageRepost  EngagementKind = "repost"
	EngageQuote   EngagementKind = "quote"
)

// Engage dispatches a single engagement action against a post. text carries
// the comment or quote body and is ignored for heart and repost.
func (s *Service) Engage(kind EngagementKind, id int64, actor, text string) error {
	switch kind {
	case EngageHeart:
		_, err := s.HeartToggle(id, actor)
		return err
	case EngageComment:
		return s.AddComment(id, actor, text)
	case EngageRepost:
		_, err := s.Repost(id, actor)
		return err
	case EngageQuote:
		_, err := s.Quote(id, actor, text)
		return err
	default:
		return fmt.Errorf("unknown engagement kind: %s", kind)
	}
}

func reversePosts(posts []*model.Post) {
	for i, j := 0, len(posts)-1; i < j; i, j = i+1, j-1 {
		posts[i], posts[j] = posts[j], posts[i]
	}
}
