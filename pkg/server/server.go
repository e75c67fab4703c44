// Package server implements the Server object (object 1).
//
// Each instance holds the registration parameters for one management server
// account. The SSID links an instance to the Security object instance that
// describes how to reach the same server.
package server

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mash-protocol/lwm2m-go/pkg/dm"
)

// Server object errors.
var (
	ErrInvalidSSID     = errors.New("invalid short server ID")
	ErrDuplicateSSID   = errors.New("short server ID already configured")
	ErrInvalidLifetime = errors.New("invalid lifetime")
	ErrInvalidBinding  = errors.New("invalid binding mode")
	ErrInvalidPeriod   = errors.New("invalid default period")
	ErrObjectDeleted   = errors.New("server object deleted")
)

// Resource IDs.
const (
	ResShortServerID    dm.ResourceID = 0
	ResLifetime         dm.ResourceID = 1
	ResDefaultMinPeriod dm.ResourceID = 2
	ResDefaultMaxPeriod dm.ResourceID = 3
	ResDisableTimeout   dm.ResourceID = 5
	ResBinding          dm.ResourceID = 7
)

// NotSet marks an optional duration resource as absent.
const NotSet time.Duration = -1

// Binding is the transport binding string, e.g. "U" for UDP.
type Binding string

// Common bindings.
const (
	BindingUDP       Binding = "U"
	BindingUDPQueue  Binding = "UQ"
	BindingSMS       Binding = "S"
	BindingTCP       Binding = "T"
	BindingNonIP     Binding = "N"
	BindingUDPAndSMS Binding = "US"
)

// Validate checks that b is a non-empty set of known binding letters.
func (b Binding) Validate() error {
	if b == "" {
		return fmt.Errorf("%w: empty", ErrInvalidBinding)
	}
	seen := make(map[rune]bool)
	for _, r := range string(b) {
		if !strings.ContainsRune("UTSNQ", r) || seen[r] {
			return fmt.Errorf("%w: %q", ErrInvalidBinding, string(b))
		}
		seen[r] = true
	}
	return nil
}

// Instance holds one server account's registration parameters.
// Durations are whole seconds on the wire; negative values mean not set.
type Instance struct {
	SSID             dm.SSID
	Lifetime         time.Duration
	DefaultMinPeriod time.Duration
	DefaultMaxPeriod time.Duration
	DisableTimeout   time.Duration
	Binding          Binding
}

// Validate checks the instance fields.
func (i Instance) Validate() error {
	if !i.SSID.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidSSID, i.SSID)
	}
	if i.Lifetime <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidLifetime, i.Lifetime)
	}
	if i.DefaultMinPeriod >= 0 && i.DefaultMaxPeriod >= 0 && i.DefaultMinPeriod > i.DefaultMaxPeriod {
		return fmt.Errorf("%w: min %s > max %s", ErrInvalidPeriod, i.DefaultMinPeriod, i.DefaultMaxPeriod)
	}
	return i.Binding.Validate()
}

// Entry pairs an instance with its instance ID.
type Entry struct {
	IID      dm.InstanceID
	Instance Instance
}

// Object is the Server object.
type Object struct {
	instances *dm.InstanceTable[Instance]
	deleted   bool
}

// Compile-time interface satisfaction check.
var _ dm.Object = (*Object)(nil)

// New creates an empty Server object.
func New() *Object {
	return &Object{instances: dm.NewInstanceTable[Instance]()}
}

// ObjectID returns 1.
func (o *Object) ObjectID() dm.ObjectID { return dm.ObjectServer }

// Version returns the object version.
func (o *Object) Version() string { return "1.0" }

// AddInstance validates inst and stores it. Pass dm.IIDInvalid to let the
// object allocate an instance ID. Returns the assigned instance ID.
func (o *Object) AddInstance(inst Instance, iid dm.InstanceID) (dm.InstanceID, error) {
	if o.deleted {
		return dm.IIDInvalid, ErrObjectDeleted
	}
	if err := inst.Validate(); err != nil {
		return dm.IIDInvalid, err
	}
	if _, _, found := o.BySSID(inst.SSID); found {
		return dm.IIDInvalid, fmt.Errorf("%w: %d", ErrDuplicateSSID, inst.SSID)
	}
	return o.instances.Insert(iid, inst)
}

// BySSID finds the instance for a server account.
func (o *Object) BySSID(ssid dm.SSID) (dm.InstanceID, Instance, bool) {
	for _, iid := range o.instances.IDs() {
		inst, _ := o.instances.Get(iid)
		if inst.SSID == ssid {
			return iid, inst, true
		}
	}
	return dm.IIDInvalid, Instance{}, false
}

// Entries returns all instances in instance ID order.
func (o *Object) Entries() []Entry {
	ids := o.instances.IDs()
	entries := make([]Entry, 0, len(ids))
	for _, iid := range ids {
		inst, _ := o.instances.Get(iid)
		entries = append(entries, Entry{IID: iid, Instance: inst})
	}
	return entries
}

// Instances returns the instance IDs in ascending order.
func (o *Object) Instances() []dm.InstanceID { return o.instances.IDs() }

// HasInstance returns true if the instance exists.
func (o *Object) HasInstance(iid dm.InstanceID) bool { return o.instances.Has(iid) }

// CreateInstance creates an instance with default parameters; the SSID must
// be written before the instance is usable.
func (o *Object) CreateInstance(iid dm.InstanceID) (dm.InstanceID, error) {
	if o.deleted {
		return dm.IIDInvalid, ErrObjectDeleted
	}
	return o.instances.Insert(iid, Instance{
		Lifetime:         86400 * time.Second,
		DefaultMinPeriod: NotSet,
		DefaultMaxPeriod: NotSet,
		DisableTimeout:   NotSet,
		Binding:          BindingUDP,
	})
}

// DeleteInstance removes an instance.
func (o *Object) DeleteInstance(iid dm.InstanceID) error {
	return o.instances.Remove(iid)
}

func seconds(d time.Duration) any {
	if d < 0 {
		return nil
	}
	return int64(d / time.Second)
}

// ReadResource reads one resource of an instance. Unset optional resources
// report dm.ErrResourceNotFound.
func (o *Object) ReadResource(iid dm.InstanceID, rid dm.ResourceID) (any, error) {
	inst, ok := o.instances.Get(iid)
	if !ok {
		return nil, dm.ErrInstanceNotFound
	}

	var value any
	switch rid {
	case ResShortServerID:
		value = int64(inst.SSID)
	case ResLifetime:
		value = seconds(inst.Lifetime)
	case ResDefaultMinPeriod:
		value = seconds(inst.DefaultMinPeriod)
	case ResDefaultMaxPeriod:
		value = seconds(inst.DefaultMaxPeriod)
	case ResDisableTimeout:
		value = seconds(inst.DisableTimeout)
	case ResBinding:
		value = string(inst.Binding)
	}
	if value == nil {
		return nil, dm.ErrResourceNotFound
	}
	return value, nil
}

// WriteResource writes one resource of an instance. Durations are given in
// whole seconds as int64.
func (o *Object) WriteResource(iid dm.InstanceID, rid dm.ResourceID, value any) error {
	inst, ok := o.instances.Get(iid)
	if !ok {
		return dm.ErrInstanceNotFound
	}

	if rid == ResBinding {
		s, ok := value.(string)
		if !ok || Binding(s).Validate() != nil {
			return dm.ErrBadRequest
		}
		inst.Binding = Binding(s)
		return o.instances.Set(iid, inst)
	}

	n, ok := value.(int64)
	if !ok || n < 0 {
		return dm.ErrBadRequest
	}
	d := time.Duration(n) * time.Second
	switch rid {
	case ResShortServerID:
		if n > int64(dm.SSIDBootstrap) || !dm.SSID(n).Valid() {
			return dm.ErrBadRequest
		}
		inst.SSID = dm.SSID(n)
	case ResLifetime:
		if n == 0 {
			return dm.ErrBadRequest
		}
		inst.Lifetime = d
	case ResDefaultMinPeriod:
		inst.DefaultMinPeriod = d
	case ResDefaultMaxPeriod:
		inst.DefaultMaxPeriod = d
	case ResDisableTimeout:
		inst.DisableTimeout = d
	default:
		return dm.ErrResourceNotFound
	}
	return o.instances.Set(iid, inst)
}

// Delete releases all instances. Safe on a nil Object and when repeated.
func (o *Object) Delete() {
	if o == nil {
		return
	}
	o.instances.Clear()
	o.deleted = true
}
