package store

import (
	"errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"

	"github.com/nasty-codes-software/resonance/internal/core"
	"github.com/nasty-codes-software/resonance/internal/domain"
)

// CreateUser allocates an id and persists the profile.
func (s *Store) CreateUser(username, avatar string) (*domain.User, error) {
	user, err := domain.NewUser(username, avatar)
	if err != nil {
		return nil, err
	}
	id, err := nextID(s.userSeq)
	if err != nil {
		return nil, err
	}
	user.ID = domain.UserID(id)
	err = s.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, key(prefixUser, id), user)
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Store) FindUser(id domain.UserID) (*domain.User, error) {
	var user domain.User
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, key(prefixUser, int64(id)), &user)
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// SetOnline flips the durable presence flag. The flag only matters to page
// loads; live presence is the hub's business.
func (s *Store) SetOnline(id domain.UserID) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(prefixOnline, int64(id)), []byte{1})
	})
}

func (s *Store) SetOffline(id domain.UserID) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key(prefixOnline, int64(id)))
	})
}

// IsOnline reads the durable flag back, for roster rendering.
func (s *Store) IsOnline(id domain.UserID) (bool, error) {
	var online bool
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key(prefixOnline, int64(id)))
		if err == nil {
			online = true
			return nil
		}
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
	return online, err
}

// AddFriend records a symmetric friendship edge. Re-adding is a no-op.
func (s *Store) AddFriend(a, b domain.UserID) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if err := appendUnique(txn, key(prefixFriends, int64(a)), b); err != nil {
			return err
		}
		return appendUnique(txn, key(prefixFriends, int64(b)), a)
	})
}

func (s *Store) FriendsOf(id domain.UserID) ([]domain.UserID, error) {
	var friends []domain.UserID
	err := s.db.View(func(txn *badger.Txn) error {
		return readList(txn, key(prefixFriends, int64(id)), &friends)
	})
	return friends, err
}

func (s *Store) AreFriends(a, b domain.UserID) (bool, error) {
	friends, err := s.FriendsOf(a)
	if err != nil {
		return false, err
	}
	return lo.Contains(friends, b), nil
}

// GrantCapability adds one capability to the user's set.
func (s *Store) GrantCapability(id domain.UserID, cap domain.Capability) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return appendUnique(txn, key(prefixCapabilities, int64(id)), cap)
	})
}

func (s *Store) HasCapability(id domain.UserID, cap domain.Capability) (bool, error) {
	var caps []domain.Capability
	err := s.db.View(func(txn *badger.Txn) error {
		return readList(txn, key(prefixCapabilities, int64(id)), &caps)
	})
	if err != nil {
		return false, err
	}
	return lo.Contains(caps, cap), nil
}

// readList decodes a JSON list, treating a missing key as empty.
func readList[T any](txn *badger.Txn, k []byte, out *[]T) error {
	err := getJSON(txn, k, out)
	if err == nil || errors.Is(err, core.ErrNotFound) {
		return nil
	}
	return err
}

// appendUnique adds v to the JSON list at k unless already present.
func appendUnique[T comparable](txn *badger.Txn, k []byte, v T) error {
	var list []T
	if err := readList(txn, k, &list); err != nil {
		return err
	}
	if lo.Contains(list, v) {
		return nil
	}
	return setJSON(txn, k, append(list, v))
}
