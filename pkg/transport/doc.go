// Package transport is the reference UDP protocol engine adapter.
//
// Engine keeps one connected UDP socket per management server. The set of
// servers comes from a Targets provider and is re-synced every time the
// event loop asks for the socket list, so accounts added or removed at run
// time gain or lose their socket on the next loop iteration.
//
// Serve reads exactly one datagram and hands it to a Handler. Message
// parsing and the management protocol itself belong to the Handler.
//
// Only the coap scheme is dialed; coaps accounts are reported and skipped.
package transport
