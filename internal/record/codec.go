// Package record is the codec for durable entity records. Every entity that
// reaches disk (a store row, a snapshot archive line) goes through
// EncodeX/DecodeX here, so this package defines the on-disk record schema.
//
// The encoding is JSON with two extra guarantees:
//   - round-trip stability: DecodeX(EncodeX(x)) reproduces x field for field,
//     including empty collections (empty is encoded as [] / {}, never dropped);
//   - malformed or structurally invalid bytes fail with ErrCorrupt, never
//     decode to a half-formed entity.
package record

import (
	"encoding/json"
	"errors"
	"fmt"

	"plaza/internal/model"
)

// ErrCorrupt marks bytes that cannot be decoded into a well-formed entity.
// Callers surface it per-record and must not let it cascade to other records.
var ErrCorrupt = errors.New("corrupt record")

// EncodeAccount serializes an Account. Collections are normalized to empty
// before writing so absent and empty never conflate on disk.
func EncodeAccount(a *model.Account) ([]byte, error) {
	cp := *a
	if cp.Follows == nil {
		cp.Follows = []string{}
	}
	if cp.Notifications == nil {
		cp.Notifications = []string{}
	}
	return marshal(&cp)
}

// DecodeAccount deserializes an Account, failing with ErrCorrupt on
// malformed bytes or a record missing its key.
func DecodeAccount(data []byte) (*model.Account, error) {
	var a model.Account
	if err := unmarshal(data, &a); err != nil {
		return nil, err
	}
	if a.Username == "" {
		return nil, fmt.Errorf("%w: account has no username", ErrCorrupt)
	}
	if a.Follows == nil {
		a.Follows = []string{}
	}
	if a.Notifications == nil {
		a.Notifications = []string{}
	}
	return &a, nil
}

// EncodePost serializes a Post.
func EncodePost(p *model.Post) ([]byte, error) {
	cp := *p
	if cp.Hearts == nil {
		cp.Hearts = []string{}
	}
	if cp.Comments == nil {
		cp.Comments = []model.Comment{}
	}
	return marshal(&cp)
}

// DecodePost deserializes a Post.
func DecodePost(data []byte) (*model.Post, error) {
	var p model.Post
	if err := unmarshal(data, &p); err != nil {
		return nil, err
	}
	if p.ID <= 0 {
		return nil, fmt.Errorf("%w: post has non-positive id %d", ErrCorrupt, p.ID)
	}
	if p.Author == "" {
		return nil, fmt.Errorf("%w: post %d has no author", ErrCorrupt, p.ID)
	}
	if p.Hearts == nil {
		p.Hearts = []string{}
	}
	if p.Comments == nil {
		p.Comments = []model.Comment{}
	}
	return &p, nil
}

// EncodeConversation serializes a Conversation.
func EncodeConversation(c *model.Conversation) ([]byte, error) {
	cp := *c
	if cp.LastRead == nil {
		cp.LastRead = map[string]int64{}
	}
	if cp.Messages == nil {
		cp.Messages = []model.Message{}
	}
	return marshal(&cp)
}

// DecodeConversation deserializes a Conversation.
func DecodeConversation(data []byte) (*model.Conversation, error) {
	var c model.Conversation
	if err := unmarshal(data, &c); err != nil {
		return nil, err
	}
	if c.Low == "" || c.High == "" {
		return nil, fmt.Errorf("%w: conversation has incomplete participant pair", ErrCorrupt)
	}
	if c.Low >= c.High {
		return nil, fmt.Errorf("%w: conversation pair %q/%q is not normalized", ErrCorrupt, c.Low, c.High)
	}
	if c.NextSeq < 1 {
		return nil, fmt.Errorf("%w: conversation %s/%s has invalid next_seq %d", ErrCorrupt, c.Low, c.High, c.NextSeq)
	}
	if c.LastRead == nil {
		c.LastRead = map[string]int64{}
	}
	if c.Messages == nil {
		c.Messages = []model.Message{}
	}
	return &c, nil
}

func marshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding record: %w", err)
	}
	return data, nil
}

func unmarshal(data []byte, v any) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: empty record", ErrCorrupt)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return nil
}
