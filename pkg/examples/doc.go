// Package examples provides reference application objects demonstrating how
// to implement the dm.Object contract.
//
// Available examples:
//   - TestObject (object 1234): a labelled counter with an executable reset
//
// These examples can serve as templates for building real objects.
package examples
