// Package acl implements the Access Control object (object 2).
//
// The table maps (object, instance) targets to per-server permission masks.
// A target whose instance is dm.IIDInvalid applies to instances that do not
// exist yet, and may only carry the Create right.
//
// The table is registry-aware: every target must name a registered object,
// and concrete instance targets must exist when the entry is set.
package acl

import (
	"cmp"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/mash-protocol/lwm2m-go/pkg/dm"
)

// Access control errors.
var (
	ErrNilRegistry   = errors.New("access control requires a registry")
	ErrInvalidSSID   = errors.New("invalid subject SSID")
	ErrInvalidMask   = errors.New("invalid access mask")
	ErrInvalidTarget = errors.New("object cannot be access controlled")
	ErrTableDeleted  = errors.New("access control table deleted")
)

// Resource IDs.
const (
	ResObjectID   dm.ResourceID = 0
	ResInstanceID dm.ResourceID = 1
	ResACL        dm.ResourceID = 2
	ResOwner      dm.ResourceID = 3
)

// Entry is one (target, subject) permission.
type Entry struct {
	ObjectID   dm.ObjectID
	InstanceID dm.InstanceID
	SSID       dm.SSID
	Mask       dm.AccessMask
}

type target struct {
	oid dm.ObjectID
	iid dm.InstanceID
}

// instance is one Access Control object instance.
type instance struct {
	target target
	owner  dm.SSID
	acl    map[dm.SSID]dm.AccessMask
}

// Table is the Access Control object.
type Table struct {
	mu sync.RWMutex

	registry  *dm.Registry
	instances *dm.InstanceTable[*instance]
	byTarget  map[target]dm.InstanceID
	deleted   bool
}

// Compile-time interface satisfaction check.
var _ dm.Object = (*Table)(nil)

// New creates an empty table bound to registry.
func New(registry *dm.Registry) (*Table, error) {
	if registry == nil {
		return nil, ErrNilRegistry
	}
	return &Table{
		registry:  registry,
		instances: dm.NewInstanceTable[*instance](),
		byTarget:  make(map[target]dm.InstanceID),
	}, nil
}

func validate(oid dm.ObjectID, iid dm.InstanceID, ssid dm.SSID, mask dm.AccessMask) error {
	if oid == dm.ObjectSecurity || oid == dm.OIDInvalid {
		return fmt.Errorf("%w: %s", ErrInvalidTarget, oid)
	}
	if ssid == dm.SSIDBootstrap {
		return fmt.Errorf("%w: %d", ErrInvalidSSID, ssid)
	}
	if !mask.Valid() {
		return fmt.Errorf("%w: %#x", ErrInvalidMask, uint16(mask))
	}
	if iid == dm.IIDInvalid {
		if mask&^dm.AccessCreate != 0 {
			return fmt.Errorf("%w: only create applies to %s", ErrInvalidMask, dm.Path(oid, iid, dm.RIDInvalid))
		}
	} else if mask&dm.AccessCreate != 0 {
		return fmt.Errorf("%w: create requires a wildcard instance", ErrInvalidMask)
	}
	return nil
}

// SetACL grants mask to ssid on the (oid, iid) target, replacing any
// previous mask. A zero mask removes the subject from the target.
func (t *Table) SetACL(oid dm.ObjectID, iid dm.InstanceID, ssid dm.SSID, mask dm.AccessMask) error {
	if err := validate(oid, iid, ssid, mask); err != nil {
		return err
	}

	obj, err := t.registry.Lookup(oid)
	if err != nil {
		return fmt.Errorf("%s: %w", dm.Path(oid, iid, dm.RIDInvalid), err)
	}
	if iid != dm.IIDInvalid && !obj.HasInstance(iid) {
		return fmt.Errorf("%s: %w", dm.Path(oid, iid, dm.RIDInvalid), dm.ErrInstanceNotFound)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.deleted {
		return ErrTableDeleted
	}

	key := target{oid: oid, iid: iid}
	aiid, exists := t.byTarget[key]
	if !exists {
		if mask == dm.AccessNone {
			return nil
		}
		aiid, err = t.instances.Insert(dm.IIDInvalid, &instance{
			target: key,
			owner:  dm.SSIDBootstrap,
			acl:    make(map[dm.SSID]dm.AccessMask),
		})
		if err != nil {
			return err
		}
		t.byTarget[key] = aiid
	}

	inst, _ := t.instances.Get(aiid)
	if mask == dm.AccessNone {
		delete(inst.acl, ssid)
		if len(inst.acl) == 0 {
			t.removeLocked(aiid)
		}
		return nil
	}
	inst.acl[ssid] = mask
	return nil
}

// GetACL returns the mask granted to ssid on the target, or dm.AccessNone.
func (t *Table) GetACL(oid dm.ObjectID, iid dm.InstanceID, ssid dm.SSID) dm.AccessMask {
	t.mu.RLock()
	defer t.mu.RUnlock()

	aiid, exists := t.byTarget[target{oid: oid, iid: iid}]
	if !exists {
		return dm.AccessNone
	}
	inst, _ := t.instances.Get(aiid)
	return inst.acl[ssid]
}

// Allowed reports whether ssid holds every right in want on the target.
// The subject's own entry takes precedence over the SSIDAny default; the
// owner of a concrete instance target holds every right except Create.
func (t *Table) Allowed(ssid dm.SSID, oid dm.ObjectID, iid dm.InstanceID, want dm.AccessMask) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	aiid, exists := t.byTarget[target{oid: oid, iid: iid}]
	if !exists {
		return false
	}
	inst, _ := t.instances.Get(aiid)

	if mask, ok := inst.acl[ssid]; ok {
		return mask.Has(want)
	}
	if iid != dm.IIDInvalid && inst.owner == ssid {
		return (dm.AccessFull &^ dm.AccessCreate).Has(want)
	}
	return inst.acl[dm.SSIDAny].Has(want)
}

// Entries returns every non-zero permission ordered by object, instance
// (wildcard last) and SSID.
func (t *Table) Entries() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var entries []Entry
	for _, aiid := range t.instances.IDs() {
		inst, _ := t.instances.Get(aiid)
		for ssid, mask := range inst.acl {
			entries = append(entries, Entry{
				ObjectID:   inst.target.oid,
				InstanceID: inst.target.iid,
				SSID:       ssid,
				Mask:       mask,
			})
		}
	}
	slices.SortFunc(entries, func(a, b Entry) int {
		return cmp.Or(
			cmp.Compare(a.ObjectID, b.ObjectID),
			cmp.Compare(a.InstanceID, b.InstanceID),
			cmp.Compare(a.SSID, b.SSID),
		)
	})
	return entries
}

// RemoveTarget drops all entries for an (object, instance) target. The
// protocol engine calls it after deleting an instance.
func (t *Table) RemoveTarget(oid dm.ObjectID, iid dm.InstanceID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if aiid, exists := t.byTarget[target{oid: oid, iid: iid}]; exists {
		t.removeLocked(aiid)
	}
}

// RemoveSubject drops every entry granted to ssid, e.g. when a server
// account is removed.
func (t *Table) RemoveSubject(ssid dm.SSID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, aiid := range t.instances.IDs() {
		inst, _ := t.instances.Get(aiid)
		delete(inst.acl, ssid)
		if len(inst.acl) == 0 {
			t.removeLocked(aiid)
		}
	}
}

func (t *Table) removeLocked(aiid dm.InstanceID) {
	inst, ok := t.instances.Get(aiid)
	if !ok {
		return
	}
	delete(t.byTarget, inst.target)
	_ = t.instances.Remove(aiid)
}

// ObjectID returns 2.
func (t *Table) ObjectID() dm.ObjectID { return dm.ObjectAccessControl }

// Version returns the object version.
func (t *Table) Version() string { return "1.0" }

// Instances returns the Access Control instance IDs in ascending order.
func (t *Table) Instances() []dm.InstanceID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.instances.IDs()
}

// HasInstance returns true if the Access Control instance exists.
func (t *Table) HasInstance(iid dm.InstanceID) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.instances.Has(iid)
}

// CreateInstance is not supported; instances are created through SetACL.
func (t *Table) CreateInstance(dm.InstanceID) (dm.InstanceID, error) {
	return dm.IIDInvalid, dm.ErrMethodNotAllowed
}

// DeleteInstance removes an Access Control instance and all its entries.
func (t *Table) DeleteInstance(iid dm.InstanceID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.instances.Has(iid) {
		return dm.ErrInstanceNotFound
	}
	t.removeLocked(iid)
	return nil
}

// ReadResource reads a resource of an Access Control instance. The ACL
// resource is returned as a copy of the SSID to mask map.
func (t *Table) ReadResource(iid dm.InstanceID, rid dm.ResourceID) (any, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	inst, ok := t.instances.Get(iid)
	if !ok {
		return nil, dm.ErrInstanceNotFound
	}
	switch rid {
	case ResObjectID:
		return int64(inst.target.oid), nil
	case ResInstanceID:
		return int64(inst.target.iid), nil
	case ResACL:
		return maps.Clone(inst.acl), nil
	case ResOwner:
		return int64(inst.owner), nil
	default:
		return nil, dm.ErrResourceNotFound
	}
}

// WriteResource writes the owner of an Access Control instance. The target
// resources are read-only and ACL changes go through SetACL.
func (t *Table) WriteResource(iid dm.InstanceID, rid dm.ResourceID, value any) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	inst, ok := t.instances.Get(iid)
	if !ok {
		return dm.ErrInstanceNotFound
	}
	switch rid {
	case ResOwner:
		n, ok := value.(int64)
		if !ok || n < 0 || n > int64(dm.SSIDBootstrap) {
			return dm.ErrBadRequest
		}
		inst.owner = dm.SSID(n)
		return nil
	case ResObjectID, ResInstanceID, ResACL:
		return dm.ErrMethodNotAllowed
	default:
		return dm.ErrResourceNotFound
	}
}

// Delete releases every entry. It never touches the registry, so it is safe
// to call after the client context is gone, on a nil Table, and repeatedly.
func (t *Table) Delete() {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	t.instances.Clear()
	clear(t.byTarget)
	t.deleted = true
}
