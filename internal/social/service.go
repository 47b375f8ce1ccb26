package social

import (
	"errors"
	"fmt"
	"strings"

	"plaza/internal/model"
)

// Service is the consistency layer: every compound mutation the UI needs
// (follow-and-notify, heart-and-notify, send-and-notify, ...) is expressed
// here as a sequence of single-record atomic store operations.
//
// The caller supplies the acting username on every call; the service holds
// no ambient session state. Identity verification happens upstream; the
// service trusts the given username for write attribution.
type Service struct {
	store  Store
	logger Logger
	clock  Clock
}

// NewService creates a Service with the provided dependencies.
func NewService(store Store, logger Logger, clock Clock) *Service {
	return &Service{
		store:  store,
		logger: logger,
		clock:  clock,
	}
}

// Register creates a new account. The password hash is stored opaquely;
// verifying credentials is the identity provider's job, not ours.
func (s *Service) Register(username, passwordHash string) (*model.Account, error) {
	if strings.TrimSpace(username) == "" {
		return nil, fmt.Errorf("registering account: %w", ErrEmptyContent)
	}
	a := model.NewAccount(username, s.clock.Now())
	a.PasswordHash = passwordHash

	err := withRetry(s.logger, "Register", func() error {
		return s.store.CreateAccount(a)
	})
	if err != nil {
		return nil, fmt.Errorf("registering account %q: %w", username, err)
	}
	s.logger.Info("account registered", "username", username)
	return a, nil
}

// Account returns a single account by username.
func (s *Service) Account(username string) (*model.Account, error) {
	return s.store.GetAccount(username)
}

// ListAccounts returns every account, for the discovery screen.
func (s *Service) ListAccounts() ([]*model.Account, error) {
	return s.store.ListAccounts()
}

// ProfileEdits carries optional profile field changes. Nil fields are left
// unchanged, so a caller can update a single field without re-reading.
type ProfileEdits struct {
	DisplayName *string
	Bio         *string
	Pronouns    *string
	Age         *string
}

// UpdateProfile applies the given edits to the account's profile fields.
func (s *Service) UpdateProfile(username string, edits ProfileEdits) error {
	err := withRetry(s.logger, "UpdateProfile", func() error {
		return s.store.UpdateAccount(username, func(a *model.Account) error {
			if edits.DisplayName != nil {
				a.DisplayName = *edits.DisplayName
			}
			if edits.Bio != nil {
				a.Bio = *edits.Bio
			}
			if edits.Pronouns != nil {
				a.Pronouns = *edits.Pronouns
			}
			if edits.Age != nil {
				a.Age = *edits.Age
			}
			return nil
		})
	})
	if err != nil {
		return fmt.Errorf("updating profile for %q: %w", username, err)
	}
	return nil
}

// Follow appends followee to the follower's follow-set. Re-following is a
// no-op; only the first follow notifies the followee.
func (s *Service) Follow(follower, followee string) error {
	if follower == followee {
		return fmt.Errorf("following self: %w", ErrAlreadyExists)
	}
	if _, err := s.store.GetAccount(followee); err != nil {
		return fmt.Errorf("following %q: %w", followee, err)
	}

	first := false
	err := withRetry(s.logger, "Follow", func() error {
		first = false
		return s.store.UpdateAccount(follower, func(a *model.Account) error {
			if a.IsFollowing(followee) {
				return nil
			}
			a.Follows = append(a.Follows, followee)
			first = true
			return nil
		})
	})
	if err != nil {
		return fmt.Errorf("following %q: %w", followee, err)
	}

	if first {
		s.Notify(followee, fmt.Sprintf("%s started following you.", follower))
	}
	return nil
}

// Unfollow removes followee from the follower's follow-set. Idempotent,
// never notifies.
func (s *Service) Unfollow(follower, followee string) error {
	err := withRetry(s.logger, "Unfollow", func() error {
		return s.store.UpdateAccount(follower, func(a *model.Account) error {
			for i, u := range a.Follows {
				if u == followee {
					a.Follows = append(a.Follows[:i], a.Follows[i+1:]...)
					break
				}
			}
			return nil
		})
	})
	if err != nil {
		return fmt.Errorf("unfollowing %q: %w", followee, err)
	}
	return nil
}

// Notify appends a notification to the target's queue. Delivery is
// best-effort: a missing target is logged and swallowed so the triggering
// action is never rolled back or blocked on notification delivery.
func (s *Service) Notify(username, text string) {
	err := withRetry(s.logger, "Notify", func() error {
		return s.store.UpdateAccount(username, func(a *model.Account) error {
			a.Notifications = append(a.Notifications, text)
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.logger.Debug("notification target missing", "username", username)
			return
		}
		s.logger.Warn("notification dropped", "username", username, "err", err)
	}
}

// DrainNotifications returns the account's pending notifications and clears
// the queue in the same atomic update. A notification that lands after the
// drain completes is visible on the next call.
func (s *Service) DrainNotifications(username string) ([]string, error) {
	var drained []string
	err := withRetry(s.logger, "DrainNotifications", func() error {
		drained = nil
		return s.store.UpdateAccount(username, func(a *model.Account) error {
			drained = a.Notifications
			a.Notifications = []string{}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("draining notifications for %q: %w", username, err)
	}
	if drained == nil {
		drained = []string{}
	}
	return drained, nil
}
