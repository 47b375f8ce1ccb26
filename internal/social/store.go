package social

import "plaza/internal/model"

// PostIDSequence is the durable sequence backing post id allocation.
const PostIDSequence = "post_id"

// Store provides durable, per-record-atomic storage for accounts, posts, and
// conversations. Every Update* method is a serialized read-modify-write: the
// mutator sees the current record and no other update to the same key
// interleaves between its read and write. Cross-record operations are the
// service layer's problem and are explicitly not atomic here.
//
// Implementations map engine-level contention to ErrBusy, lost version races
// to ErrConflict (after bounded internal retries), and undecodable rows to
// ErrCorruptRecord.
type Store interface {
	// Account operations

	// GetAccount returns the account, or ErrNotFound.
	GetAccount(username string) (*model.Account, error)

	// CreateAccount stores a new account, or returns ErrAlreadyExists.
	CreateAccount(a *model.Account) error

	// UpdateAccount applies mutate to the current account record and persists
	// the result atomically. A mutator error aborts the update unchanged.
	UpdateAccount(username string, mutate func(*model.Account) error) error

	// ListAccounts returns every account in creation order.
	ListAccounts() ([]*model.Account, error)

	// Post operations

	// NextPostID durably allocates the next post id. Allocated ids are
	// strictly increasing and never reused, even across restarts; the
	// high-water mark is independent of how many posts currently exist.
	NextPostID() (int64, error)

	// CreatePost stores a new post under its pre-allocated id.
	CreatePost(p *model.Post) error

	// GetPost returns the post, or ErrNotFound.
	GetPost(id int64) (*model.Post, error)

	// UpdatePost applies mutate to the current post record atomically.
	UpdatePost(id int64, mutate func(*model.Post) error) error

	// DeletePost removes the post permanently, or returns ErrNotFound.
	DeletePost(id int64) error

	// ListPosts returns every post in insertion (id) order, oldest first.
	ListPosts() ([]*model.Post, error)

	// ListPostsByAuthor returns the author's posts, oldest first.
	ListPostsByAuthor(username string) ([]*model.Post, error)

	// Conversation operations

	// GetConversation returns the thread record for the (unordered) pair,
	// or ErrNotFound if the two have never exchanged a message.
	GetConversation(a, b string) (*model.Conversation, error)

	// UpdateConversation applies mutate to the pair's thread record
	// atomically, creating an empty record first if none exists.
	UpdateConversation(a, b string, mutate func(*model.Conversation) error) error

	// ListConversations returns every thread the owner participates in.
	ListConversations(owner string) ([]*model.Conversation, error)

	// Sequence operations, used by snapshot restore to carry high-water
	// marks across stores.

	// SequenceValue returns the current value of a named sequence (0 if the
	// sequence has never been bumped).
	SequenceValue(name string) (int64, error)

	// SetSequence forces a named sequence to at least value.
	SetSequence(name string, value int64) error

	// VerifyRecords decodes every stored record and reports each one that
	// fails, without aborting the scan. kind is "account", "post", or
	// "conversation"; key identifies the record. The returned error covers
	// scan-level failures only, never individual corrupt records.
	VerifyRecords(report func(kind, key string, err error)) error

	// Close closes the underlying engine.
	Close() error
}
