package dm

import (
	"errors"
	"maps"
	"slices"
)

// Data model errors.
var (
	ErrObjectNotFound   = errors.New("object not found")
	ErrObjectExists     = errors.New("object already registered")
	ErrInvalidObject    = errors.New("invalid object")
	ErrInstanceNotFound = errors.New("instance not found")
	ErrInstanceExists   = errors.New("instance already exists")
	ErrResourceNotFound = errors.New("resource not found")
	ErrMethodNotAllowed = errors.New("method not allowed")
	ErrBadRequest       = errors.New("bad request")
)

// Object is the instance-management contract every registered object
// satisfies. Implementations are not required to be safe for concurrent use;
// the client runtime calls them from a single goroutine.
type Object interface {
	// ObjectID returns the numeric object ID.
	ObjectID() ObjectID

	// Version returns the object definition version, e.g. "1.0".
	Version() string

	// Instances returns the IDs of all instances in ascending order.
	Instances() []InstanceID

	// HasInstance returns true if the instance exists.
	HasInstance(iid InstanceID) bool

	// CreateInstance creates an empty instance. Passing IIDInvalid lets the
	// object allocate the lowest free ID. Returns the assigned ID.
	CreateInstance(iid InstanceID) (InstanceID, error)

	// DeleteInstance removes an instance.
	DeleteInstance(iid InstanceID) error

	// ReadResource returns the current value of a resource.
	ReadResource(iid InstanceID, rid ResourceID) (any, error)

	// WriteResource replaces the value of a resource.
	WriteResource(iid InstanceID, rid ResourceID, value any) error
}

// InstanceTable stores instances of an object keyed by instance ID.
// The zero value is not usable; create one with NewInstanceTable.
type InstanceTable[T any] struct {
	entries map[InstanceID]T
}

// NewInstanceTable creates an empty instance table.
func NewInstanceTable[T any]() *InstanceTable[T] {
	return &InstanceTable[T]{entries: make(map[InstanceID]T)}
}

// Insert stores value under iid, allocating an ID if iid is IIDInvalid.
// Returns the ID the value was stored under.
func (t *InstanceTable[T]) Insert(iid InstanceID, value T) (InstanceID, error) {
	if iid == IIDInvalid {
		allocated, err := AllocateInstanceID(t.IDs())
		if err != nil {
			return IIDInvalid, err
		}
		iid = allocated
	} else if _, exists := t.entries[iid]; exists {
		return IIDInvalid, ErrInstanceExists
	}
	t.entries[iid] = value
	return iid, nil
}

// Get returns the value stored under iid.
func (t *InstanceTable[T]) Get(iid InstanceID) (T, bool) {
	v, ok := t.entries[iid]
	return v, ok
}

// Set replaces the value of an existing instance.
func (t *InstanceTable[T]) Set(iid InstanceID, value T) error {
	if _, ok := t.entries[iid]; !ok {
		return ErrInstanceNotFound
	}
	t.entries[iid] = value
	return nil
}

// Remove deletes the instance.
func (t *InstanceTable[T]) Remove(iid InstanceID) error {
	if _, ok := t.entries[iid]; !ok {
		return ErrInstanceNotFound
	}
	delete(t.entries, iid)
	return nil
}

// Has returns true if iid exists.
func (t *InstanceTable[T]) Has(iid InstanceID) bool {
	_, ok := t.entries[iid]
	return ok
}

// IDs returns all instance IDs in ascending order.
func (t *InstanceTable[T]) IDs() []InstanceID {
	return slices.Sorted(maps.Keys(t.entries))
}

// Len returns the number of instances.
func (t *InstanceTable[T]) Len() int {
	return len(t.entries)
}

// Clear removes all instances.
func (t *InstanceTable[T]) Clear() {
	clear(t.entries)
}
