// Package store persists identities, the social graph, channels, messages
// and durable voice occupancy in BadgerDB. Records are JSON-encoded; keys
// are short ASCII prefixes followed by big-endian ids so prefix scans stay
// ordered and cheap.
package store

import (
	"encoding/binary"
	"errors"

	"github.com/dgraph-io/badger/v4"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/nasty-codes-software/resonance/internal/core"
	"github.com/nasty-codes-software/resonance/internal/domain"
)

const (
	prefixUser         = "u:"
	prefixOnline       = "on:"
	prefixFriends      = "f:"
	prefixCapabilities = "cap:"
	prefixChannel      = "c:"
	prefixParticipants = "p:"
	prefixMessage      = "m:"
	prefixVoiceMember  = "vm:"
	prefixVoiceOfUser  = "vu:"

	seqUsers    = "!seq:users"
	seqChannels = "!seq:channels"
)

type Store struct {
	db       *badger.DB
	userSeq  *badger.Sequence
	chanSeq  *badger.Sequence
	inMemory bool
}

// The hub depends on these five facets; one badger instance backs them all.
var (
	_ core.IdentityStore  = (*Store)(nil)
	_ core.SocialGraph    = (*Store)(nil)
	_ core.MessageStore   = (*Store)(nil)
	_ core.VoiceRoomStore = (*Store)(nil)
	_ core.Authorizer     = (*Store)(nil)
)

// Open mounts the database at dir. An empty dir opens a throwaway
// in-memory instance, used by tests and local runs without a data dir.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	inMemory := dir == ""
	if inMemory {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	userSeq, err := db.GetSequence([]byte(seqUsers), 64)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	chanSeq, err := db.GetSequence([]byte(seqChannels), 64)
	if err != nil {
		_ = userSeq.Release()
		_ = db.Close()
		return nil, err
	}
	log.Info().Str("module", "adapters.store").Str("dir", dir).Bool("in_memory", inMemory).Msg("store opened")
	return &Store{db: db, userSeq: userSeq, chanSeq: chanSeq, inMemory: inMemory}, nil
}

func (s *Store) Close() error {
	if err := s.userSeq.Release(); err != nil {
		log.Error().Str("module", "adapters.store").Err(err).Msg("release user sequence")
	}
	if err := s.chanSeq.Release(); err != nil {
		log.Error().Str("module", "adapters.store").Err(err).Msg("release channel sequence")
	}
	return s.db.Close()
}

// nextID draws from a sequence, skipping 0 which domain ids reserve for
// "unset".
func nextID(seq *badger.Sequence) (int64, error) {
	n, err := seq.Next()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		n, err = seq.Next()
		if err != nil {
			return 0, err
		}
	}
	return int64(n), nil
}

func key(prefix string, id int64) []byte {
	k := make([]byte, len(prefix)+8)
	copy(k, prefix)
	binary.BigEndian.PutUint64(k[len(prefix):], uint64(id))
	return k
}

func pairKey(prefix string, a, b int64) []byte {
	k := make([]byte, len(prefix)+16)
	copy(k, prefix)
	binary.BigEndian.PutUint64(k[len(prefix):], uint64(a))
	binary.BigEndian.PutUint64(k[len(prefix)+8:], uint64(b))
	return k
}

// getJSON loads and decodes one record inside txn, mapping a missing key
// to core.ErrNotFound.
func getJSON(txn *badger.Txn, k []byte, out any) error {
	item, err := txn.Get(k)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return core.ErrNotFound
		}
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, out)
	})
}

func setJSON(txn *badger.Txn, k []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set(k, data)
}

// Seed provisions the default server channels on first boot so a fresh
// install has somewhere to talk. It is a no-op once any channel exists.
func (s *Store) Seed() error {
	existing, err := s.Channels()
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	if _, err := s.CreateChannel("general", domain.ChannelText, 0); err != nil {
		return err
	}
	if _, err := s.CreateChannel("General", domain.ChannelVoice, 0); err != nil {
		return err
	}
	log.Info().Str("module", "adapters.store").Msg("seeded default channels")
	return nil
}
