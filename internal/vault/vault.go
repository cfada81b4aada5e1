// Package vault manages a collection of named credential entries and
// serializes it to a single JSON blob, the secret byte sequence handed to
// the crypto/stego core. The vault layer never touches salts, nonces, or key
// material.
package vault

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CurrentVersion is the vault blob format version.
const CurrentVersion = 2

// Entry is one named credential.
type Entry struct {
	ID         string    `json:"id"`
	Key        string    `json:"key"`
	Password   string    `json:"password"`
	Username   string    `json:"username,omitempty"`
	URL        string    `json:"url,omitempty"`
	Notes      string    `json:"notes,omitempty"`
	Tags       []string  `json:"tags,omitempty"`
	TOTPSecret string    `json:"totp_secret,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`
}

// Vault is an ordered collection of entries with unique keys.
type Vault struct {
	Version int     `json:"version"`
	Entries []Entry `json:"entries"`
}

// New returns an empty vault at the current format version.
func New() *Vault {
	return &Vault{Version: CurrentVersion, Entries: []Entry{}}
}

// FromPassword wraps a bare password in a one-entry vault, used to promote
// legacy single-password blobs.
func FromPassword(password, key string) *Vault {
	v := New()
	_ = v.Add(Entry{Key: key, Password: password})
	return v
}

// Add inserts a new entry. The entry key must be non-empty and unique; ID
// and timestamps are assigned here.
func (v *Vault) Add(e Entry) error {
	if e.Key == "" {
		return fmt.Errorf("entry key must not be empty")
	}
	if _, ok := v.Get(e.Key); ok {
		return fmt.Errorf("entry %q already exists", e.Key)
	}
	now := time.Now().UTC()
	e.ID = uuid.NewString()
	e.CreatedAt = now
	e.ModifiedAt = now
	v.Entries = append(v.Entries, e)
	return nil
}

// Get returns the entry with the given key.
func (v *Vault) Get(key string) (Entry, bool) {
	for _, e := range v.Entries {
		if e.Key == key {
			return e, true
		}
	}
	return Entry{}, false
}

// Update applies fn to the entry with the given key and bumps its modified
// timestamp. It reports whether the entry existed.
func (v *Vault) Update(key string, fn func(*Entry)) bool {
	for i := range v.Entries {
		if v.Entries[i].Key == key {
			fn(&v.Entries[i])
			v.Entries[i].Key = key // the key is the identity, not editable
			v.Entries[i].ModifiedAt = time.Now().UTC()
			return true
		}
	}
	return false
}

// Delete removes the entry with the given key, reporting whether it existed.
func (v *Vault) Delete(key string) bool {
	for i := range v.Entries {
		if v.Entries[i].Key == key {
			v.Entries = append(v.Entries[:i], v.Entries[i+1:]...)
			return true
		}
	}
	return false
}

// Keys returns all entry keys in sorted order.
func (v *Vault) Keys() []string {
	keys := make([]string, 0, len(v.Entries))
	for _, e := range v.Entries {
		keys = append(keys, e.Key)
	}
	sort.Strings(keys)
	return keys
}

// Search returns entries whose key, username, URL, or tags contain the term,
// case-insensitively.
func (v *Vault) Search(term string) []Entry {
	term = strings.ToLower(term)
	var out []Entry
	for _, e := range v.Entries {
		if strings.Contains(strings.ToLower(e.Key), term) ||
			strings.Contains(strings.ToLower(e.Username), term) ||
			strings.Contains(strings.ToLower(e.URL), term) ||
			tagsMatch(e.Tags, term) {
			out = append(out, e)
		}
	}
	return out
}

func tagsMatch(tags []string, term string) bool {
	for _, t := range tags {
		if strings.Contains(strings.ToLower(t), term) {
			return true
		}
	}
	return false
}

// MarshalBlob serializes the vault to the canonical JSON secret blob.
func (v *Vault) MarshalBlob() ([]byte, error) {
	return json.Marshal(v)
}

// UnmarshalBlob parses a secret blob. A blob that is not a vault JSON object
// is treated as a legacy single password and promoted to a one-entry vault
// under the key "default".
func UnmarshalBlob(blob []byte) (*Vault, error) {
	var v Vault
	if err := json.Unmarshal(blob, &v); err != nil || v.Entries == nil {
		return FromPassword(strings.TrimSpace(string(blob)), "default"), nil
	}
	if v.Version == 0 {
		v.Version = CurrentVersion
	}
	return &v, nil
}
