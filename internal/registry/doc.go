// Package registry holds the node types a document can instantiate.
//
// A node type is a socket layout plus an ApplyFunc: a pure function of the
// resolved inputs, the node's params and the frame number. The evaluator
// never calls anything else on a node type, so plugin types only have to
// satisfy that contract.
package registry
