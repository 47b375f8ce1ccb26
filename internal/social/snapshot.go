package social

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"plaza/internal/model"
	"plaza/internal/record"
)

// Snapshot archives are JSON lines: a header, then one envelope per record.
// Records themselves are codec-encoded, so the archive format is the on-disk
// record schema plus a thin framing layer.
const snapshotFormat = "plaza-snapshot-v1"

type snapshotHeader struct {
	Format string `json:"format"`
}

type snapshotEnvelope struct {
	Kind   string          `json:"kind"` // "account", "post", "conversation", "sequence"
	Record json.RawMessage `json:"record,omitempty"`
	Name   string          `json:"name,omitempty"`  // sequence only
	Value  int64           `json:"value,omitempty"` // sequence only
}

// ExportSnapshot writes every record and sequence high-water mark to w.
// The export is a point-in-time read of the store; concurrent writers may
// or may not be included.
func (s *Service) ExportSnapshot(w io.Writer) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)

	if err := enc.Encode(snapshotHeader{Format: snapshotFormat}); err != nil {
		return fmt.Errorf("writing snapshot header: %w", err)
	}

	accounts, err := s.store.ListAccounts()
	if err != nil {
		return fmt.Errorf("exporting accounts: %w", err)
	}
	for _, a := range accounts {
		data, err := record.EncodeAccount(a)
		if err != nil {
			return fmt.Errorf("encoding account %q: %w", a.Username, err)
		}
		if err := enc.Encode(snapshotEnvelope{Kind: "account", Record: data}); err != nil {
			return fmt.Errorf("writing account %q: %w", a.Username, err)
		}
	}

	posts, err := s.store.ListPosts()
	if err != nil {
		return fmt.Errorf("exporting posts: %w", err)
	}
	for _, p := range posts {
		data, err := record.EncodePost(p)
		if err != nil {
			return fmt.Errorf("encoding post %d: %w", p.ID, err)
		}
		if err := enc.Encode(snapshotEnvelope{Kind: "post", Record: data}); err != nil {
			return fmt.Errorf("writing post %d: %w", p.ID, err)
		}
	}

	convos, err := s.listAllConversations(accounts)
	if err != nil {
		return fmt.Errorf("exporting conversations: %w", err)
	}
	for _, c := range convos {
		data, err := record.EncodeConversation(c)
		if err != nil {
			return fmt.Errorf("encoding conversation %s/%s: %w", c.Low, c.High, err)
		}
		if err := enc.Encode(snapshotEnvelope{Kind: "conversation", Record: data}); err != nil {
			return fmt.Errorf("writing conversation %s/%s: %w", c.Low, c.High, err)
		}
	}

	seq, err := s.store.SequenceValue(PostIDSequence)
	if err != nil {
		return fmt.Errorf("exporting post id sequence: %w", err)
	}
	if err := enc.Encode(snapshotEnvelope{Kind: "sequence", Name: PostIDSequence, Value: seq}); err != nil {
		return fmt.Errorf("writing post id sequence: %w", err)
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flushing snapshot: %w", err)
	}
	return nil
}

// ImportSnapshot restores records from an archive into the store. Existing
// records with the same key are overwritten whole, so re-importing the same
// archive is idempotent. Sequences only ever move forward: a restore can
// never cause an already-issued post id to be issued again.
func (s *Service) ImportSnapshot(r io.Reader) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return fmt.Errorf("reading snapshot header: %w", err)
		}
		return fmt.Errorf("reading snapshot header: %w", ErrCorruptRecord)
	}
	var hdr snapshotHeader
	if err := json.Unmarshal(sc.Bytes(), &hdr); err != nil {
		return fmt.Errorf("%w: invalid snapshot header: %v", ErrCorruptRecord, err)
	}
	if hdr.Format != snapshotFormat {
		return fmt.Errorf("%w: unsupported snapshot format %q", ErrCorruptRecord, hdr.Format)
	}

	line := 1
	for sc.Scan() {
		line++
		var env snapshotEnvelope
		if err := json.Unmarshal(sc.Bytes(), &env); err != nil {
			return fmt.Errorf("%w: snapshot line %d: %v", ErrCorruptRecord, line, err)
		}
		if err := s.importEnvelope(env); err != nil {
			return fmt.Errorf("snapshot line %d: %w", line, err)
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("reading snapshot: %w", err)
	}

	s.logger.Info("snapshot imported", "records", line-1)
	return nil
}

func (s *Service) importEnvelope(env snapshotEnvelope) error {
	switch env.Kind {
	case "account":
		a, err := record.DecodeAccount(env.Record)
		if err != nil {
			return err
		}
		if err := s.store.CreateAccount(a); err != nil {
			if !errors.Is(err, ErrAlreadyExists) {
				return err
			}
			return s.store.UpdateAccount(a.Username, func(cur *model.Account) error {
				*cur = *a
				return nil
			})
		}
		return nil
	case "post":
		p, err := record.DecodePost(env.Record)
		if err != nil {
			return err
		}
		if err := s.store.CreatePost(p); err != nil {
			if !errors.Is(err, ErrAlreadyExists) {
				return err
			}
			return s.store.UpdatePost(p.ID, func(cur *model.Post) error {
				*cur = *p
				return nil
			})
		}
		return nil
	case "conversation":
		c, err := record.DecodeConversation(env.Record)
		if err != nil {
			return err
		}
		return s.store.UpdateConversation(c.Low, c.High, func(cur *model.Conversation) error {
			*cur = *c
			return nil
		})
	case "sequence":
		return s.store.SetSequence(env.Name, env.Value)
	default:
		return fmt.Errorf("%w: unknown snapshot record kind %q", ErrCorruptRecord, env.Kind)
	}
}

// VerifyProblem describes one record that failed integrity checking.
type VerifyProblem struct {
	Kind string
	Key  string
	Err  error
}

// Verify decodes every stored record and returns the ones that fail,
// leaving healthy records untouched. An empty slice means a clean store.
func (s *Service) Verify() ([]VerifyProblem, error) {
	var problems []VerifyProblem
	err := s.store.VerifyRecords(func(kind, key string, err error) {
		s.logger.Error("corrupt record", "kind", kind, "key", key, "err", err)
		problems = append(problems, VerifyProblem{Kind: kind, Key: key, Err: err})
	})
	if err != nil {
		return nil, fmt.Errorf("verifying records: %w", err)
	}
	return problems, nil
}

// listAllConversations collects the distinct conversation records touching
// any known account. Each record is keyed by its normalized pair, so the
// low-participant pass alone sees every record exactly once.
func (s *Service) listAllConversations(accounts []*model.Account) ([]*model.Conversation, error) {
	var out []*model.Conversation
	for _, a := range accounts {
		convos, err := s.store.ListConversations(a.Username)
		if err != nil {
			return nil, err
		}
		for _, c := range convos {
			if c.Low == a.Username {
				out = append(out, c)
			}
		}
	}
	return out, nil
}
