package store

import (
	"github.com/dgraph-io/badger/v4"
	json "github.com/goccy/go-json"
	"github.com/samber/lo"

	"github.com/nasty-codes-software/resonance/internal/domain"
)

// dmCallCapacity bounds a 1:1 call room to its two participants.
const dmCallCapacity = 2

// CreateChannel allocates an id and persists the channel record.
func (s *Store) CreateChannel(name string, kind domain.ChannelKind, maxUsers int) (*domain.Channel, error) {
	id, err := nextID(s.chanSeq)
	if err != nil {
		return nil, err
	}
	ch := &domain.Channel{ID: domain.ChannelID(id), Name: name, Kind: kind, MaxUsers: maxUsers}
	err = s.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, key(prefixChannel, id), ch)
	})
	if err != nil {
		return nil, err
	}
	return ch, nil
}

// CreateDM provisions the private channel pair for two users: a dm text
// thread and a dm_voice call room capped at the pair itself.
func (s *Store) CreateDM(a, b domain.UserID) (text, voice *domain.Channel, err error) {
	text, err = s.CreateChannel("", domain.ChannelDM, 0)
	if err != nil {
		return nil, nil, err
	}
	voice, err = s.CreateChannel("", domain.ChannelDMVoice, dmCallCapacity)
	if err != nil {
		return nil, nil, err
	}
	pair := []domain.UserID{a, b}
	if err = s.SetParticipants(text.ID, pair); err != nil {
		return nil, nil, err
	}
	if err = s.SetParticipants(voice.ID, pair); err != nil {
		return nil, nil, err
	}
	return text, voice, nil
}

// SetParticipants fixes the member list of a private channel.
func (s *Store) SetParticipants(ch domain.ChannelID, users []domain.UserID) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, key(prefixParticipants, int64(ch)), users)
	})
}

func (s *Store) ChannelInfo(id domain.ChannelID) (*domain.Channel, error) {
	var ch domain.Channel
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, key(prefixChannel, int64(id)), &ch)
	})
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

func (s *Store) ParticipantsOf(ch domain.ChannelID) ([]domain.UserID, error) {
	var users []domain.UserID
	err := s.db.View(func(txn *badger.Txn) error {
		return readList(txn, key(prefixParticipants, int64(ch)), &users)
	})
	return users, err
}

func (s *Store) IsParticipant(ch domain.ChannelID, uid domain.UserID) (bool, error) {
	users, err := s.ParticipantsOf(ch)
	if err != nil {
		return false, err
	}
	return lo.Contains(users, uid), nil
}

// Channels lists every channel record, ordered by id.
func (s *Store) Channels() ([]*domain.Channel, error) {
	var out []*domain.Channel
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixChannel)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			var ch domain.Channel
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &ch)
			})
			if err != nil {
				return err
			}
			out = append(out, &ch)
		}
		return nil
	})
	return out, err
}
