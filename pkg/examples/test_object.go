package examples

import (
	"errors"

	"github.com/mash-protocol/lwm2m-go/pkg/dm"
)

// TestObjectID is the object ID of the Test Object.
const TestObjectID dm.ObjectID = 1234

// Test Object resource IDs.
const (
	ResLabel dm.ResourceID = 0
	ResValue dm.ResourceID = 1
	ResReset dm.ResourceID = 2
)

// ErrObjectDeleted is returned by operations on a deleted Test Object.
var ErrObjectDeleted = errors.New("test object deleted")

// TestInstance holds the resource values of one Test Object instance.
type TestInstance struct {
	Label string
	Value int64
}

// TestObject is a small application object with a writable label, a
// writable value and an executable reset.
type TestObject struct {
	instances *dm.InstanceTable[TestInstance]
	deleted   bool
}

// Compile-time interface satisfaction check.
var _ dm.Object = (*TestObject)(nil)

// NewTestObject creates a Test Object with no instances.
func NewTestObject() *TestObject {
	return &TestObject{instances: dm.NewInstanceTable[TestInstance]()}
}

// ObjectID returns TestObjectID.
func (o *TestObject) ObjectID() dm.ObjectID { return TestObjectID }

// Version returns the object version.
func (o *TestObject) Version() string { return "1.0" }

// Instances returns the instance IDs in ascending order.
func (o *TestObject) Instances() []dm.InstanceID { return o.instances.IDs() }

// HasInstance returns true if the instance exists.
func (o *TestObject) HasInstance(iid dm.InstanceID) bool { return o.instances.Has(iid) }

// CreateInstance creates an instance with an empty label and zero value.
func (o *TestObject) CreateInstance(iid dm.InstanceID) (dm.InstanceID, error) {
	if o.deleted {
		return dm.IIDInvalid, ErrObjectDeleted
	}
	return o.instances.Insert(iid, TestInstance{})
}

// DeleteInstance removes an instance.
func (o *TestObject) DeleteInstance(iid dm.InstanceID) error {
	return o.instances.Remove(iid)
}

// ReadResource reads the label or value of an instance.
func (o *TestObject) ReadResource(iid dm.InstanceID, rid dm.ResourceID) (any, error) {
	inst, ok := o.instances.Get(iid)
	if !ok {
		return nil, dm.ErrInstanceNotFound
	}
	switch rid {
	case ResLabel:
		return inst.Label, nil
	case ResValue:
		return inst.Value, nil
	case ResReset:
		return nil, dm.ErrMethodNotAllowed
	default:
		return nil, dm.ErrResourceNotFound
	}
}

// WriteResource writes the label (string) or value (int64) of an instance.
func (o *TestObject) WriteResource(iid dm.InstanceID, rid dm.ResourceID, value any) error {
	inst, ok := o.instances.Get(iid)
	if !ok {
		return dm.ErrInstanceNotFound
	}
	switch rid {
	case ResLabel:
		s, ok := value.(string)
		if !ok {
			return dm.ErrBadRequest
		}
		inst.Label = s
	case ResValue:
		n, ok := value.(int64)
		if !ok {
			return dm.ErrBadRequest
		}
		inst.Value = n
	case ResReset:
		return dm.ErrMethodNotAllowed
	default:
		return dm.ErrResourceNotFound
	}
	return o.instances.Set(iid, inst)
}

// Execute runs an executable resource. Only Reset is executable; it zeroes
// the value and keeps the label.
func (o *TestObject) Execute(iid dm.InstanceID, rid dm.ResourceID) error {
	inst, ok := o.instances.Get(iid)
	if !ok {
		return dm.ErrInstanceNotFound
	}
	if rid != ResReset {
		return dm.ErrMethodNotAllowed
	}
	inst.Value = 0
	return o.instances.Set(iid, inst)
}

// Delete releases all instances. Safe on a nil TestObject and when repeated.
func (o *TestObject) Delete() {
	if o == nil {
		return
	}
	o.instances.Clear()
	o.deleted = true
}
