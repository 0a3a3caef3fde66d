package store

import (
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/nasty-codes-software/resonance/internal/domain"
)

func messageKey(id domain.MessageID) []byte {
	return append([]byte(prefixMessage), id...)
}

// CreateMessage persists one chat line and returns its id. History reads
// belong to the REST API; the realtime path only ever reads back the line
// it just wrote.
func (s *Store) CreateMessage(ch domain.ChannelID, author domain.UserID, content string) (domain.MessageID, error) {
	msg := domain.Message{
		ID:        domain.MessageID(uuid.NewString()),
		ChannelID: ch,
		AuthorID:  author,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, messageKey(msg.ID), &msg)
	})
	if err != nil {
		return "", err
	}
	return msg.ID, nil
}

// MessageWithAuthor loads a message and denormalizes the author profile
// onto it, ready for fan-out.
func (s *Store) MessageWithAuthor(id domain.MessageID) (*domain.Message, error) {
	var msg domain.Message
	err := s.db.View(func(txn *badger.Txn) error {
		if err := getJSON(txn, messageKey(id), &msg); err != nil {
			return err
		}
		var author domain.User
		if err := getJSON(txn, key(prefixUser, int64(msg.AuthorID)), &author); err != nil {
			return err
		}
		msg.Author = &author
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &msg, nil
}
