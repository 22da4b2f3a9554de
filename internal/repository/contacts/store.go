package contacts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/oshokin/contact-ringer/internal/domain/ringer"
)

// Directory resolves callers to designated contacts.
// Lookups that find nothing return a nil contact and a nil error.
type Directory interface {
	FindByNumber(ctx context.Context, number string) (*ringer.Contact, error)
	FindByName(ctx context.Context, name string) (*ringer.Contact, error)
	ListDesignated(ctx context.Context) ([]*ringer.Contact, error)
}

// keyPrefix namespaces contact records in the database.
const keyPrefix = "contact/"

var (
	// ErrNotFound is returned when deleting a contact that does not exist.
	ErrNotFound = errors.New("contact not found")
	// ErrNameRequired is returned when a contact has no name.
	ErrNameRequired = errors.New("contact name is required")
)

// record is the stored form of a contact; the name is the key.
type record struct {
	Number      string  `json:"number"`
	Ringtone    *string `json:"ringtone,omitempty"`
	Volume      *int    `json:"volume,omitempty"`
	OnlyVibrate bool    `json:"onlyVibrate"`
}

// Options configures the BadgerDB store.
type Options struct {
	// Dir is the database directory. Required unless InMemory is set.
	Dir string
	// InMemory keeps the database in memory only.
	InMemory bool
	// Logger receives badger's own log output. Nil silences it.
	Logger badger.Logger
}

// Store is a Directory persisted in BadgerDB.
type Store struct {
	db *badger.DB
}

// Open opens or creates the contact database.
func Open(opts Options) (*Store, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("contacts: database directory is required")
	}

	dbOpts := badger.DefaultOptions(opts.Dir)
	if opts.InMemory {
		dbOpts = badger.DefaultOptions("").WithInMemory(true)
	}

	if opts.Logger != nil {
		dbOpts = dbOpts.WithLogger(opts.Logger)
	} else {
		dbOpts = dbOpts.WithLogger(nil)
	}

	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("open contact database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Upsert stores the contact under its name, replacing any previous record.
func (s *Store) Upsert(_ context.Context, contact *ringer.Contact) error {
	if contact == nil || strings.TrimSpace(contact.Name) == "" {
		return ErrNameRequired
	}

	volume := contact.Volume()
	rec := record{
		Number:      contact.Number,
		Volume:      &volume,
		OnlyVibrate: contact.OnlyVibrate,
	}

	if contact.HasRingtone() {
		ringtone := strings.TrimSpace(*contact.Ringtone)
		rec.Ringtone = &ringtone
	}

	value, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode contact %q: %w", contact.Name, err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(contactKey(contact.Name), value)
	})
	if err != nil {
		return fmt.Errorf("store contact %q: %w", contact.Name, err)
	}

	return nil
}

// Delete removes a contact by its exact name.
func (s *Store) Delete(_ context.Context, name string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		key := contactKey(name)

		if _, err := txn.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			}

			return err
		}

		return txn.Delete(key)
	})
}

// ListDesignated returns every contact ordered by name.
func (s *Store) ListDesignated(_ context.Context) ([]*ringer.Contact, error) {
	var result []*ringer.Contact

	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte(keyPrefix)

		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			name := strings.TrimPrefix(string(item.Key()), keyPrefix)

			value, err := item.ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("read contact %q: %w", name, err)
			}

			result = append(result, decode(name, value))
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// FindByNumber returns the first contact, in name order, whose number matches.
func (s *Store) FindByNumber(ctx context.Context, number string) (*ringer.Contact, error) {
	if ringer.NormalizeNumber(number) == "" {
		return nil, nil
	}

	all, err := s.ListDesignated(ctx)
	if err != nil {
		return nil, err
	}

	for _, contact := range all {
		if ringer.MatchesNumber(number, contact.Number) {
			return contact, nil
		}
	}

	return nil, nil
}

// FindByName prefers an exact key match, then a case-insensitive one.
func (s *Store) FindByName(ctx context.Context, name string) (*ringer.Contact, error) {
	if strings.TrimSpace(name) == "" {
		return nil, nil
	}

	var exact *ringer.Contact

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(contactKey(name))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}

			return err
		}

		value, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}

		exact = decode(name, value)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get contact %q: %w", name, err)
	}

	if exact != nil {
		return exact, nil
	}

	all, err := s.ListDesignated(ctx)
	if err != nil {
		return nil, err
	}

	for _, contact := range all {
		if ringer.SameName(contact.Name, name) {
			return contact, nil
		}
	}

	return nil, nil
}

// contactKey builds the database key of a contact.
func contactKey(name string) []byte {
	return []byte(keyPrefix + name)
}

// decode turns a stored value into a contact. A value that is not a JSON
// object yields a minimal contact whose number is the raw value. Inside an
// object every field is read on its own, so a mistyped field falls back to
// its default and the others are kept.
func decode(name string, value []byte) *ringer.Contact {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(value, &fields); err != nil || fields == nil {
		return ringer.NewContact(name, strings.TrimSpace(string(value)))
	}

	var rec record

	decodeField(fields, "number", &rec.Number)
	decodeField(fields, "ringtone", &rec.Ringtone)
	decodeField(fields, "volume", &rec.Volume)
	decodeField(fields, "onlyVibrate", &rec.OnlyVibrate)

	contact := ringer.NewContact(name, rec.Number)
	contact.OnlyVibrate = rec.OnlyVibrate

	if rec.Volume != nil {
		contact.VolumePercent = *rec.Volume
	}

	if rec.Ringtone != nil && strings.TrimSpace(*rec.Ringtone) != "" {
		contact.Ringtone = rec.Ringtone
	}

	return contact
}

// decodeField unmarshals one field into dst, leaving dst untouched when the
// field is missing or has the wrong type.
func decodeField[T any](fields map[string]json.RawMessage, key string, dst *T) {
	raw, ok := fields[key]
	if !ok {
		return
	}

	var value T
	if err := json.Unmarshal(raw, &value); err != nil {
		return
	}

	*dst = value
}
