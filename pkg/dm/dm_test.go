package dm

import (
	"errors"
	"testing"
)

type fakeObject struct {
	oid       ObjectID
	instances *InstanceTable[struct{}]
}

func newFakeObject(oid ObjectID) *fakeObject {
	return &fakeObject{oid: oid, instances: NewInstanceTable[struct{}]()}
}

func (f *fakeObject) ObjectID() ObjectID              { return f.oid }
func (f *fakeObject) Version() string                 { return "1.0" }
func (f *fakeObject) Instances() []InstanceID         { return f.instances.IDs() }
func (f *fakeObject) HasInstance(iid InstanceID) bool { return f.instances.Has(iid) }

func (f *fakeObject) DeleteInstance(iid InstanceID) error {
	return f.instances.Remove(iid)
}

func (f *fakeObject) CreateInstance(iid InstanceID) (InstanceID, error) {
	return f.instances.Insert(iid, struct{}{})
}

func (f *fakeObject) ReadResource(InstanceID, ResourceID) (any, error) {
	return nil, ErrResourceNotFound
}

func (f *fakeObject) WriteResource(InstanceID, ResourceID, any) error {
	return ErrMethodNotAllowed
}

func TestRegistryOrder(t *testing.T) {
	r := NewRegistry()

	for _, oid := range []ObjectID{ObjectSecurity, ObjectServer, 1234, ObjectAccessControl} {
		if err := r.Register(newFakeObject(oid)); err != nil {
			t.Fatalf("Register(%d) failed: %v", oid, err)
		}
	}

	got := r.ObjectIDs()
	want := []ObjectID{ObjectSecurity, ObjectServer, 1234, ObjectAccessControl}
	if len(got) != len(want) {
		t.Fatalf("ObjectIDs() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ObjectIDs()[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestRegistryRejects(t *testing.T) {
	r := NewRegistry()

	if err := r.Register(nil); !errors.Is(err, ErrInvalidObject) {
		t.Errorf("Register(nil) error = %v, want ErrInvalidObject", err)
	}
	if err := r.Register(newFakeObject(OIDInvalid)); !errors.Is(err, ErrInvalidObject) {
		t.Errorf("Register(OIDInvalid) error = %v, want ErrInvalidObject", err)
	}
	if err := r.Register(newFakeObject(5)); err != nil {
		t.Fatalf("Register(5) failed: %v", err)
	}
	if err := r.Register(newFakeObject(5)); !errors.Is(err, ErrObjectExists) {
		t.Errorf("duplicate Register error = %v, want ErrObjectExists", err)
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
}

func TestRegistryDeregisterKeepsOrder(t *testing.T) {
	r := NewRegistry()
	for _, oid := range []ObjectID{10, 11, 12, 13} {
		_ = r.Register(newFakeObject(oid))
	}

	if err := r.Deregister(11); err != nil {
		t.Fatalf("Deregister failed: %v", err)
	}
	if err := r.Deregister(11); !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("second Deregister error = %v, want ErrObjectNotFound", err)
	}

	obj, err := r.Lookup(13)
	if err != nil {
		t.Fatalf("Lookup(13) failed: %v", err)
	}
	if obj.ObjectID() != 13 {
		t.Errorf("Lookup(13) returned object %d", obj.ObjectID())
	}

	ids := r.ObjectIDs()
	if len(ids) != 3 || ids[0] != 10 || ids[1] != 12 || ids[2] != 13 {
		t.Errorf("ObjectIDs() = %v, want [10 12 13]", ids)
	}
}

func TestRegistryClear(t *testing.T) {
	r := NewRegistry()
	obj := newFakeObject(3)
	_ = r.Register(obj)
	_, _ = obj.CreateInstance(IIDInvalid)

	r.Clear()

	if r.Len() != 0 {
		t.Errorf("Len() = %d after Clear, want 0", r.Len())
	}
	if _, err := r.Lookup(3); !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("Lookup after Clear error = %v", err)
	}
	// The object itself is untouched.
	if len(obj.Instances()) != 1 {
		t.Errorf("object lost its instances on registry Clear")
	}
}

func TestAllocateInstanceID(t *testing.T) {
	tests := []struct {
		name     string
		existing []InstanceID
		want     InstanceID
	}{
		{"empty", nil, 0},
		{"dense", []InstanceID{0, 1, 2}, 3},
		{"gap", []InstanceID{0, 2, 3}, 1},
		{"unsorted", []InstanceID{3, 0, 1}, 2},
		{"first free", []InstanceID{1, 2}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AllocateInstanceID(tt.existing)
			if err != nil {
				t.Fatalf("AllocateInstanceID() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("AllocateInstanceID(%v) = %d, want %d", tt.existing, got, tt.want)
			}
		})
	}
}

func TestInstanceTable(t *testing.T) {
	table := NewInstanceTable[string]()

	first, err := table.Insert(IIDInvalid, "a")
	if err != nil || first != 0 {
		t.Fatalf("Insert() = %d, %v; want 0, nil", first, err)
	}
	if _, err := table.Insert(0, "b"); !errors.Is(err, ErrInstanceExists) {
		t.Errorf("Insert duplicate error = %v, want ErrInstanceExists", err)
	}
	if _, err := table.Insert(7, "c"); err != nil {
		t.Fatalf("Insert(7) failed: %v", err)
	}
	second, _ := table.Insert(IIDInvalid, "d")
	if second != 1 {
		t.Errorf("allocated %d, want 1", second)
	}

	ids := table.IDs()
	if len(ids) != 3 || ids[0] != 0 || ids[1] != 1 || ids[2] != 7 {
		t.Errorf("IDs() = %v, want [0 1 7]", ids)
	}

	if err := table.Remove(5); !errors.Is(err, ErrInstanceNotFound) {
		t.Errorf("Remove(5) error = %v", err)
	}
	if err := table.Set(7, "e"); err != nil {
		t.Errorf("Set(7) error = %v", err)
	}
	if v, _ := table.Get(7); v != "e" {
		t.Errorf("Get(7) = %q, want e", v)
	}
}

func TestAccessMaskString(t *testing.T) {
	tests := []struct {
		mask AccessMask
		want string
	}{
		{AccessNone, "-----"},
		{AccessRead, "R----"},
		{AccessCreate, "----C"},
		{AccessRead | AccessWrite | AccessExecute, "RWE--"},
		{AccessFull, "RWEDC"},
	}
	for _, tt := range tests {
		if got := tt.mask.String(); got != tt.want {
			t.Errorf("AccessMask(%d).String() = %q, want %q", tt.mask, got, tt.want)
		}
	}

	if !AccessFull.Has(AccessRead | AccessCreate) {
		t.Error("AccessFull should have read and create")
	}
	if AccessMask(1 << 7).Valid() {
		t.Error("undefined bit should be invalid")
	}
}

func TestPath(t *testing.T) {
	if got := Path(1, IIDInvalid, RIDInvalid); got != "/1" {
		t.Errorf("Path = %q, want /1", got)
	}
	if got := Path(1, 2, RIDInvalid); got != "/1/2" {
		t.Errorf("Path = %q, want /1/2", got)
	}
	if got := Path(1234, 0, 1); got != "/1234/0/1" {
		t.Errorf("Path = %q, want /1234/0/1", got)
	}
}
