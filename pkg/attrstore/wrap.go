package attrstore

import "github.com/mash-protocol/lwm2m-go/pkg/dm"

// WrappedObject decorates a data model object with attribute storage.
// It keeps the identity of the wrapped object.
type WrappedObject struct {
	dm.Object
	storage *Storage
}

// Compile-time interface satisfaction check.
var _ dm.Object = (*WrappedObject)(nil)

// Wrap returns obj decorated with this storage. Wrapping an already wrapped
// object re-targets it to this storage rather than nesting wrappers.
func (s *Storage) Wrap(obj dm.Object) *WrappedObject {
	if obj == nil {
		return nil
	}
	if w, ok := obj.(*WrappedObject); ok {
		obj = w.Object
	}
	return &WrappedObject{Object: obj, storage: s}
}

// Unwrap returns the decorated object.
func (w *WrappedObject) Unwrap() dm.Object {
	return w.Object
}

// DeleteInstance deletes the instance and its stored attributes.
func (w *WrappedObject) DeleteInstance(iid dm.InstanceID) error {
	if err := w.Object.DeleteInstance(iid); err != nil {
		return err
	}
	w.storage.removeInstance(w.ObjectID(), iid)
	return nil
}

// SetAttributes stores attributes for a target within this object.
func (w *WrappedObject) SetAttributes(iid dm.InstanceID, rid dm.ResourceID, attrs Attributes) error {
	if iid != dm.IIDInvalid && !w.HasInstance(iid) {
		return dm.ErrInstanceNotFound
	}
	return w.storage.Set(w.ObjectID(), iid, rid, attrs)
}

// Attributes returns the effective attributes for a target within this object.
func (w *WrappedObject) Attributes(iid dm.InstanceID, rid dm.ResourceID) Attributes {
	return w.storage.Effective(w.ObjectID(), iid, rid)
}

// ClearAttributes drops every attribute stored for this object.
func (w *WrappedObject) ClearAttributes() {
	w.storage.removeObject(w.ObjectID())
}
