// Package persistence stores the data model state of the client across
// restarts.
//
// The state holds the Security and Server instances and the access control
// entries, with instance IDs preserved, so a restarted client re-registers
// with the same server accounts. The file is CBOR-encoded.
package persistence
