// Package settings provides storage for d2dedup user settings, currently the
// credentials used to reach DHIS2 servers.
//
// All settings are stored in the XDG data directory:
//
//	$XDG_DATA_HOME/d2dedup/  (default: ~/.local/share/d2dedup/)
//
// auth.json is a JSON object keyed by server URL, where each value is a
// discriminated union on the "type" field:
//
//   - "basic": username and password
//   - "token": personal access token
//
// File permissions are 0600 (owner read/write only).
//
// Lookup order for credentials:
//  1. command-line flags
//  2. D2DEDUP_* environment variables
//  3. this credential store
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	dataDirName = "d2dedup"
	fileName    = "auth.json"
)

// Credential types.
const (
	TypeBasic = "basic"
	TypeToken = "token"
)

// ---------------------------------------------------------------------------
// Auth entry types (discriminated union on "type")
// ---------------------------------------------------------------------------

// Info is the entry stored per server in auth.json.
type Info struct {
	// Type discriminator: "basic" or "token"
	Type string `json:"type"`

	// Basic auth fields (type == "basic")
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`

	// Personal access token (type == "token")
	Token string `json:"token,omitempty"`
}

// IsBasic returns true if this is a username/password entry.
func (i *Info) IsBasic() bool {
	return i.Type == TypeBasic
}

// IsToken returns true if this is a personal access token entry.
func (i *Info) IsToken() bool {
	return i.Type == TypeToken
}

// Secret returns the password or token, whichever the entry carries.
func (i *Info) Secret() string {
	if i.IsToken() {
		return i.Token
	}
	return i.Password
}

// Store holds all server credentials, keyed by normalized server URL.
type Store map[string]*Info

// Servers returns the stored server URLs in sorted order.
func (s Store) Servers() []string {
	servers := make([]string, 0, len(s))
	for k := range s {
		servers = append(servers, k)
	}
	sort.Strings(servers)
	return servers
}

// NormalizeServer returns the key used for a server URL.
func NormalizeServer(server string) string {
	return strings.TrimRight(strings.TrimSpace(server), "/")
}

// ---------------------------------------------------------------------------
// File path
// ---------------------------------------------------------------------------

// dataDir returns the XDG data directory for d2dedup.
func dataDir() (string, error) {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, dataDirName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", dataDirName), nil
}

func filePath() (string, error) {
	dir, err := dataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fileName), nil
}

// FilePath returns the auth.json file path for display purposes.
func FilePath() string {
	p, err := filePath()
	if err != nil {
		return ""
	}
	return p
}

// DataDir returns the d2dedup data directory path.
func DataDir() (string, error) {
	return dataDir()
}

// ---------------------------------------------------------------------------
// Load / Save
// ---------------------------------------------------------------------------

// Load reads the credential store from disk.
// Returns an empty store if the file doesn't exist or is invalid.
func Load() Store {
	path, err := filePath()
	if err != nil {
		return make(Store)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return make(Store)
	}

	var store Store
	if err := json.Unmarshal(data, &store); err != nil || store == nil {
		return make(Store)
	}
	return store
}

// Save writes the credential store to disk with 0600 permissions.
func Save(store Store) error {
	path, err := filePath()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(store, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling credentials: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing auth file: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Get / Set / Remove
// ---------------------------------------------------------------------------

// Get returns the entry for a server, or nil if not found.
func Get(server string) *Info {
	return Load()[NormalizeServer(server)]
}

// Set stores an entry for a server (upsert).
func Set(server string, info *Info) error {
	switch info.Type {
	case TypeBasic:
		if info.Username == "" {
			return fmt.Errorf("basic credentials need a username")
		}
	case TypeToken:
		if info.Token == "" {
			return fmt.Errorf("token credentials need a token")
		}
	default:
		return fmt.Errorf("unknown credential type %q", info.Type)
	}

	store := Load()
	store[NormalizeServer(server)] = info
	return Save(store)
}

// SetBasic stores a username and password for a server.
func SetBasic(server, username, password string) error {
	return Set(server, &Info{Type: TypeBasic, Username: username, Password: password})
}

// SetToken stores a personal access token for a server.
func SetToken(server, token string) error {
	return Set(server, &Info{Type: TypeToken, Token: token})
}

// Remove deletes credentials for a server.
func Remove(server string) error {
	store := Load()
	key := NormalizeServer(server)
	if _, ok := store[key]; !ok {
		return nil
	}
	delete(store, key)
	return Save(store)
}

// RemoveAll removes all stored credentials.
func RemoveAll() error {
	path, err := filePath()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing auth file: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Resolution
// ---------------------------------------------------------------------------

// Resolve fills the empty fields of explicit (built from flags and the
// environment) from the stored entry for server. The stored entry is only
// consulted when its type matches explicit.Type, or explicit.Type is empty.
func Resolve(server string, explicit Info) Info {
	stored := Get(server)
	if stored == nil {
		return explicit
	}
	if explicit.Type != "" && explicit.Type != stored.Type {
		return explicit
	}

	out := explicit
	if out.Type == "" {
		out.Type = stored.Type
	}
	switch out.Type {
	case TypeBasic:
		if out.Username == "" {
			out.Username = stored.Username
		}
		// a stored password only belongs to the stored user
		if out.Password == "" && out.Username == stored.Username {
			out.Password = stored.Password
		}
	case TypeToken:
		if out.Token == "" {
			out.Token = stored.Token
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Display helpers
// ---------------------------------------------------------------------------

// MaskKey returns a masked version of a password or token for display.
func MaskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
