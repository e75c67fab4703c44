package persistence

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// StateVersion is the current version of the state file format.
const StateVersion = 1

// ErrUnsupportedVersion is returned when a state file has a newer format.
var ErrUnsupportedVersion = errors.New("unsupported state version")

var (
	stateEncMode = mustEncMode()
	stateDecMode = mustDecMode()
)

func mustEncMode() cbor.EncMode {
	mode, err := cbor.EncOptions{
		Sort: cbor.SortCanonical,
		Time: cbor.TimeRFC3339Nano,
	}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("state CBOR encoder mode: %v", err))
	}
	return mode
}

func mustDecMode() cbor.DecMode {
	mode, err := cbor.DecOptions{
		DupMapKey: cbor.DupMapKeyEnforcedAPF,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("state CBOR decoder mode: %v", err))
	}
	return mode
}

// State is the persisted data model state.
type State struct {
	// Version is the state file format version.
	Version int `cbor:"1,keyasint"`

	// SavedAt is when the state was last saved.
	SavedAt time.Time `cbor:"2,keyasint"`

	// Security holds the Security object instances.
	Security []SecurityRecord `cbor:"3,keyasint,omitempty"`

	// Server holds the Server object instances.
	Server []ServerRecord `cbor:"4,keyasint,omitempty"`

	// ACL holds the access control entries.
	ACL []ACLRecord `cbor:"5,keyasint,omitempty"`
}

// SecurityRecord is one Security object instance.
type SecurityRecord struct {
	IID             uint16 `cbor:"1,keyasint"`
	SSID            uint16 `cbor:"2,keyasint"`
	ServerURI       string `cbor:"3,keyasint"`
	SecurityMode    uint8  `cbor:"4,keyasint"`
	BootstrapServer bool   `cbor:"5,keyasint,omitempty"`
}

// ServerRecord is one Server object instance. Durations are stored as
// nanoseconds; negative values mean not set.
type ServerRecord struct {
	IID              uint16        `cbor:"1,keyasint"`
	SSID             uint16        `cbor:"2,keyasint"`
	Lifetime         time.Duration `cbor:"3,keyasint"`
	DefaultMinPeriod time.Duration `cbor:"4,keyasint"`
	DefaultMaxPeriod time.Duration `cbor:"5,keyasint"`
	DisableTimeout   time.Duration `cbor:"6,keyasint"`
	Binding          string        `cbor:"7,keyasint"`
}

// ACLRecord is one access control entry. InstanceID 65535 is the wildcard.
type ACLRecord struct {
	ObjectID   uint16 `cbor:"1,keyasint"`
	InstanceID uint16 `cbor:"2,keyasint"`
	SSID       uint16 `cbor:"3,keyasint"`
	Mask       uint16 `cbor:"4,keyasint"`
}

// Store manages persistence of the state to a file.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore creates a state store backed by path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the state file path.
func (s *Store) Path() string { return s.path }

// Save persists the state. The file is written to a temporary name and
// renamed into place.
func (s *Store) Save(state *State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	state.Version = StateVersion
	if state.SavedAt.IsZero() {
		state.SavedAt = time.Now()
	}

	data, err := stateEncMode.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// Load reads the state from disk.
// Returns nil, nil if the file doesn't exist (empty state).
func (s *Store) Load() (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	state := &State{}
	if err := stateDecMode.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("decode state %s: %w", s.path, err)
	}
	if state.Version > StateVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, state.Version)
	}
	return state, nil
}

// Clear removes the state file.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
