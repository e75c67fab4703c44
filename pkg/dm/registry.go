package dm

import (
	"fmt"
	"slices"
	"sync"
)

// Registry holds the registered objects in registration order.
//
// The registry does not own the objects it references: Clear or Deregister
// only forget them. Callers must tear the registry down before they delete
// the objects it points to.
type Registry struct {
	mu sync.RWMutex

	// objects in registration order.
	objects []Object

	// index maps object ID to its position in objects.
	index map[ObjectID]int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		index: make(map[ObjectID]int),
	}
}

// Register appends obj to the registry.
// Returns an error if obj is nil, has an invalid ID, or its ID is taken.
func (r *Registry) Register(obj Object) error {
	if obj == nil {
		return ErrInvalidObject
	}
	oid := obj.ObjectID()
	if oid == OIDInvalid {
		return fmt.Errorf("%w: object ID %d is reserved", ErrInvalidObject, uint16(oid))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.index[oid]; exists {
		return fmt.Errorf("%w: %s", ErrObjectExists, oid)
	}

	r.index[oid] = len(r.objects)
	r.objects = append(r.objects, obj)
	return nil
}

// Deregister removes the object with the given ID, preserving the order of
// the remaining objects.
func (r *Registry) Deregister(oid ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	pos, exists := r.index[oid]
	if !exists {
		return ErrObjectNotFound
	}

	r.objects = slices.Delete(r.objects, pos, pos+1)
	delete(r.index, oid)
	for i := pos; i < len(r.objects); i++ {
		r.index[r.objects[i].ObjectID()] = i
	}
	return nil
}

// Lookup returns the object registered under oid.
func (r *Registry) Lookup(oid ObjectID) (Object, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pos, exists := r.index[oid]
	if !exists {
		return nil, ErrObjectNotFound
	}
	return r.objects[pos], nil
}

// Objects returns the registered objects in registration order.
func (r *Registry) Objects() []Object {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.objects)
}

// ObjectIDs returns the registered object IDs in registration order.
func (r *Registry) ObjectIDs() []ObjectID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]ObjectID, len(r.objects))
	for i, obj := range r.objects {
		ids[i] = obj.ObjectID()
	}
	return ids
}

// Len returns the number of registered objects.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.objects)
}

// Clear forgets every registered object.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.objects = nil
	clear(r.index)
}
