package dm

import (
	"errors"
	"fmt"
	"slices"
)

// ObjectID identifies an object type.
type ObjectID uint16

// InstanceID identifies an instance within an object.
type InstanceID uint16

// ResourceID identifies a resource within an instance.
type ResourceID uint16

// SSID is the short server ID identifying one management server relationship.
type SSID uint16

// Sentinel identifiers.
const (
	// IIDInvalid requests instance ID allocation, or matches not-yet-created
	// instances in access control entries.
	IIDInvalid InstanceID = 0xFFFF

	// OIDInvalid is never a valid object ID.
	OIDInvalid ObjectID = 0xFFFF

	// RIDInvalid refers to no particular resource.
	RIDInvalid ResourceID = 0xFFFF

	// SSIDAny is the default subject in access control entries.
	SSIDAny SSID = 0

	// SSIDBootstrap identifies the bootstrap server. It never owns a
	// regular server account.
	SSIDBootstrap SSID = 0xFFFF
)

// Well-known object IDs.
const (
	ObjectSecurity      ObjectID = 0
	ObjectServer        ObjectID = 1
	ObjectAccessControl ObjectID = 2
)

// ErrNoFreeInstanceID is returned when every instance ID is taken.
var ErrNoFreeInstanceID = errors.New("no free instance ID")

// String returns the object ID in path notation.
func (o ObjectID) String() string {
	return fmt.Sprintf("/%d", uint16(o))
}

// String returns the instance ID, or "*" for the wildcard.
func (i InstanceID) String() string {
	if i == IIDInvalid {
		return "*"
	}
	return fmt.Sprintf("%d", uint16(i))
}

// Valid reports whether the SSID can identify a regular server account.
func (s SSID) Valid() bool {
	return s != SSIDAny && s != SSIDBootstrap
}

// AllocateInstanceID returns the lowest instance ID not present in existing.
func AllocateInstanceID(existing []InstanceID) (InstanceID, error) {
	sorted := slices.Clone(existing)
	slices.Sort(sorted)

	var candidate InstanceID
	for _, iid := range sorted {
		if iid < candidate {
			continue
		}
		if iid != candidate {
			break
		}
		candidate++
	}
	if candidate == IIDInvalid {
		return IIDInvalid, ErrNoFreeInstanceID
	}
	return candidate, nil
}

// Path formats an (object, instance, resource) address like "/1/0/1".
// Trailing wildcard parts are omitted.
func Path(oid ObjectID, iid InstanceID, rid ResourceID) string {
	switch {
	case iid == IIDInvalid:
		return oid.String()
	case rid == RIDInvalid:
		return fmt.Sprintf("%s/%d", oid, uint16(iid))
	default:
		return fmt.Sprintf("%s/%d/%d", oid, uint16(iid), uint16(rid))
	}
}
