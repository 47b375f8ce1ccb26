package model

import "time"

// Account represents a registered user: profile fields, the ordered set of
// usernames they follow, and their pending notification queue.
// The username is the immutable primary key; accounts are never deleted.
type Account struct {
	Username      string    `json:"username"`
	DisplayName   string    `json:"display_name"`
	Bio           string    `json:"bio"`
	Pronouns      string    `json:"pronouns"`
	Age           string    `json:"age"`
	Follows       []string  `json:"follows"`       // insertion order = follow order
	Notifications []string  `json:"notifications"` // FIFO, drained on read
	PasswordHash  string    `json:"password_hash"` // opaque; hashing is the identity provider's job
	CreatedAt     time.Time `json:"created_at"`
}

// NewAccount creates an Account with initialized (empty, non-nil) collections.
func NewAccount(username string, createdAt time.Time) *Account {
	return &Account{
		Username:      username,
		Follows:       []string{},
		Notifications: []string{},
		CreatedAt:     createdAt,
	}
}

// IsFollowing reports whether the account follows the given username.
func (a *Account) IsFollowing(username string) bool {
	for _, u := range a.Follows {
		if u == username {
			return true
		}
	}
	return false
}

// Post represents a single piece of feed content with its engagement
// sub-records. The ID is unique and strictly increasing system-wide.
type Post struct {
	ID        int64     `json:"id"`
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	Hearts    []string  `json:"hearts"` // set of usernames, insertion order
	Comments  []Comment `json:"comments"`
	CreatedAt time.Time `json:"created_at"`
}

// NewPost creates a Post with initialized (empty, non-nil) collections.
func NewPost(id int64, author, content string, createdAt time.Time) *Post {
	return &Post{
		ID:        id,
		Author:    author,
		Content:   content,
		Hearts:    []string{},
		Comments:  []Comment{},
		CreatedAt: createdAt,
	}
}

// HeartedBy reports whether the given username is in the heart-set.
func (p *Post) HeartedBy(username string) bool {
	for _, u := range p.Hearts {
		if u == username {
			return true
		}
	}
	return false
}

// Comment is a single comment on a post. Comments display in append order.
type Comment struct {
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Message is one canonical direct message inside a Conversation.
// Messages are immutable once appended; read state lives on the
// Conversation as a per-viewer marker, not on the message.
type Message struct {
	Seq       int64     `json:"seq"` // per-conversation insertion order, starts at 1
	Sender    string    `json:"sender"`
	Recipient string    `json:"recipient"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Conversation is the message thread between two accounts, stored once and
// keyed by the lexically ordered participant pair. Each participant observes
// the thread through a projection (see ThreadMessage); LastRead records, per
// viewer, the highest Seq of an incoming message they have seen.
type Conversation struct {
	Low      string           `json:"low"`  // lexically smaller participant
	High     string           `json:"high"` // lexically larger participant
	NextSeq  int64            `json:"next_seq"`
	LastRead map[string]int64 `json:"last_read"`
	Messages []Message        `json:"messages"`
}

// NewConversation creates an empty Conversation for the given pair.
// The participant order is normalized.
func NewConversation(a, b string) *Conversation {
	low, high := PairKey(a, b)
	return &Conversation{
		Low:      low,
		High:     high,
		NextSeq:  1,
		LastRead: map[string]int64{},
		Messages: []Message{},
	}
}

// PairKey normalizes two usernames into the (low, high) storage key.
func PairKey(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

// Other returns the participant that is not the given owner.
func (c *Conversation) Other(owner string) string {
	if owner == c.Low {
		return c.High
	}
	return c.Low
}

// ThreadMessage is a per-viewer projection of a canonical Message.
// Read is computed: true only when the viewer is the recipient and has
// marked the thread read at or past this message. The flag on messages the
// viewer sent is always false and carries no meaning.
type ThreadMessage struct {
	Message
	Read bool `json:"read"`
}

// ConversationSummary describes one inbox row for a viewer.
type ConversationSummary struct {
	Other         string    `json:"other"`
	Unread        int       `json:"unread"`
	LastMessageAt time.Time `json:"last_message_at"`
}
