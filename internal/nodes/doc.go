// Package nodes is the built-in node library.
//
// Register adds every built-in to a registry. A document normally starts
// from NewRegistry, which returns a registry preloaded with them.
package nodes
