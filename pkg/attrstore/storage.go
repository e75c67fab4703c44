// Package attrstore attaches observation attributes to registered objects.
//
// Attributes (minimum/maximum notification period and evaluation period)
// can be stored at object, instance or resource level. Lookups resolve the
// most specific level that has a value set.
//
// Objects are wrapped with Storage.Wrap before registration. The wrapper
// forwards every data model call to the wrapped object and drops stored
// attributes for instances that get deleted.
package attrstore

import (
	"errors"
	"sync"
	"time"

	"github.com/mash-protocol/lwm2m-go/pkg/dm"
)

// Attribute storage errors.
var (
	ErrInvalidPeriod  = errors.New("invalid attribute period")
	ErrStorageDeleted = errors.New("attribute storage deleted")
)

// Unset marks a period attribute as not set.
const Unset time.Duration = -1

// Attributes are the observation attributes for one target.
// Negative durations mean the attribute is not set.
type Attributes struct {
	// MinPeriod is the minimum time between notifications (pmin).
	MinPeriod time.Duration

	// MaxPeriod is the maximum time without a notification (pmax).
	MaxPeriod time.Duration

	// MinEvalPeriod is the minimum sampling interval (epmin).
	MinEvalPeriod time.Duration

	// MaxEvalPeriod is the maximum sampling interval (epmax).
	MaxEvalPeriod time.Duration
}

// Empty returns attributes with nothing set.
func Empty() Attributes {
	return Attributes{
		MinPeriod:     Unset,
		MaxPeriod:     Unset,
		MinEvalPeriod: Unset,
		MaxEvalPeriod: Unset,
	}
}

// IsEmpty returns true if no attribute is set.
func (a Attributes) IsEmpty() bool {
	return a.MinPeriod < 0 && a.MaxPeriod < 0 && a.MinEvalPeriod < 0 && a.MaxEvalPeriod < 0
}

// merge fills unset fields of a from fallback.
func (a Attributes) merge(fallback Attributes) Attributes {
	if a.MinPeriod < 0 {
		a.MinPeriod = fallback.MinPeriod
	}
	if a.MaxPeriod < 0 {
		a.MaxPeriod = fallback.MaxPeriod
	}
	if a.MinEvalPeriod < 0 {
		a.MinEvalPeriod = fallback.MinEvalPeriod
	}
	if a.MaxEvalPeriod < 0 {
		a.MaxEvalPeriod = fallback.MaxEvalPeriod
	}
	return a
}

// Config configures attribute storage behaviour.
type Config struct {
	// AutoCorrect swaps inverted min/max pairs instead of rejecting them.
	AutoCorrect bool
}

type key struct {
	oid dm.ObjectID
	iid dm.InstanceID
	rid dm.ResourceID
}

// Storage holds attributes for every wrapped object.
type Storage struct {
	mu sync.RWMutex

	config  Config
	attrs   map[key]Attributes
	deleted bool
}

// New creates an empty attribute storage.
func New(config Config) *Storage {
	return &Storage{
		config: config,
		attrs:  make(map[key]Attributes),
	}
}

// normalize validates a and applies auto-correction.
func (s *Storage) normalize(a Attributes) (Attributes, error) {
	if a.MinPeriod >= 0 && a.MaxPeriod >= 0 && a.MinPeriod > a.MaxPeriod {
		if !s.config.AutoCorrect {
			return a, ErrInvalidPeriod
		}
		a.MinPeriod, a.MaxPeriod = a.MaxPeriod, a.MinPeriod
	}
	if a.MinEvalPeriod >= 0 && a.MaxEvalPeriod >= 0 && a.MinEvalPeriod > a.MaxEvalPeriod {
		if !s.config.AutoCorrect {
			return a, ErrInvalidPeriod
		}
		a.MinEvalPeriod, a.MaxEvalPeriod = a.MaxEvalPeriod, a.MinEvalPeriod
	}
	return a, nil
}

// Set stores attributes for a target. Use dm.IIDInvalid and dm.RIDInvalid
// for object- and instance-level attributes. Setting empty attributes
// removes the entry.
func (s *Storage) Set(oid dm.ObjectID, iid dm.InstanceID, rid dm.ResourceID, attrs Attributes) error {
	if iid == dm.IIDInvalid && rid != dm.RIDInvalid {
		return dm.ErrBadRequest
	}
	attrs, err := s.normalize(attrs)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.deleted {
		return ErrStorageDeleted
	}

	k := key{oid: oid, iid: iid, rid: rid}
	if attrs.IsEmpty() {
		delete(s.attrs, k)
		return nil
	}
	s.attrs[k] = attrs
	return nil
}

// Get returns the attributes stored exactly at the target.
func (s *Storage) Get(oid dm.ObjectID, iid dm.InstanceID, rid dm.ResourceID) Attributes {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if a, ok := s.attrs[key{oid: oid, iid: iid, rid: rid}]; ok {
		return a
	}
	return Empty()
}

// Effective resolves attributes for a resource, falling back from resource
// to instance to object level for each unset field.
func (s *Storage) Effective(oid dm.ObjectID, iid dm.InstanceID, rid dm.ResourceID) Attributes {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := Empty()
	levels := []key{
		{oid: oid, iid: iid, rid: rid},
		{oid: oid, iid: iid, rid: dm.RIDInvalid},
		{oid: oid, iid: dm.IIDInvalid, rid: dm.RIDInvalid},
	}
	for _, k := range levels {
		if a, ok := s.attrs[k]; ok {
			result = result.merge(a)
		}
	}
	return result
}

// Len returns the number of targets with stored attributes.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.attrs)
}

// removeInstance drops every entry of one instance.
func (s *Storage) removeInstance(oid dm.ObjectID, iid dm.InstanceID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k := range s.attrs {
		if k.oid == oid && k.iid == iid {
			delete(s.attrs, k)
		}
	}
}

// removeObject drops every entry of one object.
func (s *Storage) removeObject(oid dm.ObjectID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k := range s.attrs {
		if k.oid == oid {
			delete(s.attrs, k)
		}
	}
}

// Delete releases all stored attributes. Wrappers created by this storage
// keep forwarding calls but no longer track attributes.
// Delete is safe to call on a nil Storage and more than once.
func (s *Storage) Delete() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deleted = true
	clear(s.attrs)
}
