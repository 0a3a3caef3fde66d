package store

import (
	"encoding/binary"
	"errors"

	"github.com/dgraph-io/badger/v4"

	"github.com/nasty-codes-software/resonance/internal/domain"
)

// AddMember records the user as an occupant of the channel. The reverse
// key makes removal by user cheap, mirroring the hub's one-room invariant:
// any occupancy the durable picture still has for the user is displaced.
func (s *Store) AddMember(ch domain.ChannelID, uid domain.UserID) error {
	return s.db.Update(func(txn *badger.Txn) error {
		revKey := key(prefixVoiceOfUser, int64(uid))
		if item, err := txn.Get(revKey); err == nil {
			var prev int64
			err = item.Value(func(val []byte) error {
				prev = int64(binary.BigEndian.Uint64(val))
				return nil
			})
			if err != nil {
				return err
			}
			if prev != int64(ch) {
				if err := txn.Delete(pairKey(prefixVoiceMember, prev, int64(uid))); err != nil {
					return err
				}
			}
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := txn.Set(pairKey(prefixVoiceMember, int64(ch), int64(uid)), nil); err != nil {
			return err
		}
		chVal := make([]byte, 8)
		binary.BigEndian.PutUint64(chVal, uint64(ch))
		return txn.Set(revKey, chVal)
	})
}

// RemoveMember drops the user from whichever channel the durable picture
// has them in. Unknown users are a no-op; the hub retries removal on every
// leave path and most of them race each other.
func (s *Store) RemoveMember(uid domain.UserID) error {
	return s.db.Update(func(txn *badger.Txn) error {
		revKey := key(prefixVoiceOfUser, int64(uid))
		item, err := txn.Get(revKey)
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}
		var ch int64
		err = item.Value(func(val []byte) error {
			ch = int64(binary.BigEndian.Uint64(val))
			return nil
		})
		if err != nil {
			return err
		}
		if err := txn.Delete(pairKey(prefixVoiceMember, ch, int64(uid))); err != nil {
			return err
		}
		return txn.Delete(revKey)
	})
}

// Members lists the durable occupants of a channel in join-key order.
func (s *Store) Members(ch domain.ChannelID) ([]domain.UserID, error) {
	var out []domain.UserID
	prefix := key(prefixVoiceMember, int64(ch))
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			k := it.Item().Key()
			uid := binary.BigEndian.Uint64(k[len(prefix):])
			out = append(out, domain.UserID(uid))
		}
		return nil
	})
	return out, err
}
