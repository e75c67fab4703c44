// Package log captures a machine-readable protocol trace for the client.
//
// The trace is separate from operational logging (slog). Every datagram the
// transport receives or sends, every socket and client lifecycle change, and
// every serve failure the event loop isolates becomes an Event.
//
// # Basic Usage
//
//	// Console trace during development
//	engine := transport.New(cfg, targets, handler, log.NewSlogAdapter(slog.Default()))
//
//	// Binary trace file
//	fl, _ := log.NewFileLogger("/var/log/lwm2m/client.lwlog")
//
//	// Both
//	trace := log.NewMultiLogger(log.NewSlogAdapter(slog.Default()), fl)
//
// # File Format
//
// Trace files are a stream of CBOR-encoded events with integer map keys.
// Reader iterates a file and applies a Filter.
package log
