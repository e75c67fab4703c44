//go:build tools

// Package tools pins nothing. The mocks under pkg/*/mocks come from the
// mockery v3 binary (testify template) driven by .mockery.yaml at the
// module root; regenerate them with `mockery` after changing an interface
// listed there.
package tools
