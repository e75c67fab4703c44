// Package dm implements the client data model registry.
//
// # Object Model
//
// The data model is a flat set of objects, each a typed collection of
// instances:
//
//	Object (numeric ObjectID, versioned)
//	└── Instance (InstanceID, unique within the object)
//	    └── Resource (ResourceID)
//
// Well-known objects are Security (0), Server (1) and Access Control (2).
// Applications register additional objects, such as the Test Object (1234).
//
// # Addressing
//
// Resources are addressed by the tuple:
//
//	(ObjectID, InstanceID, ResourceID)
//
// IIDInvalid is a sentinel with two meanings: passed to CreateInstance it
// asks the object to allocate the lowest free instance ID, and in access
// control entries it denotes instances that do not exist yet.
//
// # Ownership
//
// The Registry holds references to objects that are owned elsewhere. It never
// deletes an object. Whoever created an object must clear or drop the
// registry (normally by deleting the client context) before releasing the
// object itself.
package dm
