// Package security implements the Security object (object 0).
//
// Each instance describes how the client reaches and authenticates to one
// management server. Instances are correlated with Server object instances
// by SSID, never by instance ID.
package security

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/mash-protocol/lwm2m-go/pkg/dm"
)

// Security object errors.
var (
	ErrInvalidSSID   = errors.New("invalid short server ID")
	ErrDuplicateSSID = errors.New("short server ID already configured")
	ErrInvalidURI    = errors.New("invalid server URI")
	ErrModeMismatch  = errors.New("security mode does not match URI scheme")
	ErrUnknownMode   = errors.New("unknown security mode")
	ErrObjectDeleted = errors.New("security object deleted")
)

// Resource IDs.
const (
	ResServerURI       dm.ResourceID = 0
	ResBootstrapServer dm.ResourceID = 1
	ResSecurityMode    dm.ResourceID = 2
	ResShortServerID   dm.ResourceID = 10
)

// Mode is the security mode of a server connection.
type Mode uint8

const (
	// ModePSK uses a pre-shared key.
	ModePSK Mode = 0

	// ModeRPK uses a raw public key.
	ModeRPK Mode = 1

	// ModeCertificate uses X.509 certificates.
	ModeCertificate Mode = 2

	// ModeNoSec uses no security.
	ModeNoSec Mode = 3
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModePSK:
		return "psk"
	case ModeRPK:
		return "rpk"
	case ModeCertificate:
		return "cert"
	case ModeNoSec:
		return "nosec"
	default:
		return "unknown"
	}
}

// ParseMode converts a mode name to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "psk":
		return ModePSK, nil
	case "rpk":
		return ModeRPK, nil
	case "cert", "certificate":
		return ModeCertificate, nil
	case "nosec", "":
		return ModeNoSec, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Instance is one server account entry.
type Instance struct {
	SSID            dm.SSID
	ServerURI       string
	SecurityMode    Mode
	BootstrapServer bool
}

// Validate checks the instance fields.
func (i Instance) Validate() error {
	if !i.BootstrapServer && !i.SSID.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidSSID, i.SSID)
	}
	u, err := url.Parse(i.ServerURI)
	if err != nil || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidURI, i.ServerURI)
	}
	switch u.Scheme {
	case "coap":
		if i.SecurityMode != ModeNoSec {
			return fmt.Errorf("%w: %s over %s", ErrModeMismatch, i.SecurityMode, u.Scheme)
		}
	case "coaps":
		if i.SecurityMode == ModeNoSec {
			return fmt.Errorf("%w: %s over %s", ErrModeMismatch, i.SecurityMode, u.Scheme)
		}
	default:
		return fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURI, u.Scheme)
	}
	if i.SecurityMode > ModeNoSec {
		return ErrUnknownMode
	}
	return nil
}

// Entry pairs an instance with its instance ID.
type Entry struct {
	IID      dm.InstanceID
	Instance Instance
}

// Object is the Security object.
type Object struct {
	instances *dm.InstanceTable[Instance]
	deleted   bool
}

// Compile-time interface satisfaction check.
var _ dm.Object = (*Object)(nil)

// New creates an empty Security object.
func New() *Object {
	return &Object{instances: dm.NewInstanceTable[Instance]()}
}

// ObjectID returns 0.
func (o *Object) ObjectID() dm.ObjectID { return dm.ObjectSecurity }

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
	if !inst.BootstrapServer {
		if _, _, found := o.BySSID(inst.SSID); found {
			return dm.IIDInvalid, fmt.Errorf("%w: %d", ErrDuplicateSSID, inst.SSID)
		}
	}
	return o.instances.Insert(iid, inst)
}

// BySSID finds the instance for a server account.
func (o *Object) BySSID(ssid dm.SSID) (dm.InstanceID, Instance, bool) {
	for _, iid := range o.instances.IDs() {
		inst, _ := o.instances.Get(iid)
		if !inst.BootstrapServer && inst.SSID == ssid {
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

// Servers returns the management server instances, skipping a bootstrap
// server entry, in instance ID order.
func (o *Object) Servers() []Entry {
	var servers []Entry
	for _, e := range o.Entries() {
		if !e.Instance.BootstrapServer {
			servers = append(servers, e)
		}
	}
	return servers
}

// Instances returns the instance IDs in ascending order.
func (o *Object) Instances() []dm.InstanceID { return o.instances.IDs() }

// HasInstance returns true if the instance exists.
func (o *Object) HasInstance(iid dm.InstanceID) bool { return o.instances.Has(iid) }

// CreateInstance creates a blank instance to be filled in by resource writes.
func (o *Object) CreateInstance(iid dm.InstanceID) (dm.InstanceID, error) {
	if o.deleted {
		return dm.IIDInvalid, ErrObjectDeleted
	}
	return o.instances.Insert(iid, Instance{SecurityMode: ModeNoSec})
}

// DeleteInstance removes an instance.
func (o *Object) DeleteInstance(iid dm.InstanceID) error {
	return o.instances.Remove(iid)
}

// ReadResource reads one resource of an instance.
func (o *Object) ReadResource(iid dm.InstanceID, rid dm.ResourceID) (any, error) {
	inst, ok := o.instances.Get(iid)
	if !ok {
		return nil, dm.ErrInstanceNotFound
	}
	switch rid {
	case ResServerURI:
		return inst.ServerURI, nil
	case ResBootstrapServer:
		return inst.BootstrapServer, nil
	case ResSecurityMode:
		return int64(inst.SecurityMode), nil
	case ResShortServerID:
		return int64(inst.SSID), nil
	default:
		return nil, dm.ErrResourceNotFound
	}
}

// WriteResource writes one resource of an instance.
func (o *Object) WriteResource(iid dm.InstanceID, rid dm.ResourceID, value any) error {
	inst, ok := o.instances.Get(iid)
	if !ok {
		return dm.ErrInstanceNotFound
	}
	switch rid {
	case ResServerURI:
		s, ok := value.(string)
		if !ok {
			return dm.ErrBadRequest
		}
		inst.ServerURI = s
	case ResBootstrapServer:
		b, ok := value.(bool)
		if !ok {
			return dm.ErrBadRequest
		}
		inst.BootstrapServer = b
	case ResSecurityMode:
		n, ok := value.(int64)
		if !ok || n < 0 || n > int64(ModeNoSec) {
			return dm.ErrBadRequest
		}
		inst.SecurityMode = Mode(n)
	case ResShortServerID:
		n, ok := value.(int64)
		if !ok || n < 0 || n > int64(dm.SSIDBootstrap) {
			return dm.ErrBadRequest
		}
		inst.SSID = dm.SSID(n)
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
