// Package oplog is the persisted and exchanged form of a graph: an ordered
// sequence of structural operations that rebuilds the graph when replayed.
//
// Every op encodes to a JSON array whose first element names the op:
//
//	["addNode", "NumericConst", "src"]
//	["setNodeParam", "src", "value", 5]
//	["setNodeInput", "add", "b", 1]
//	["bindNodeInput", "add", "a", "src", "out"]
//	["setNodeOption", "add", "ONCE"]
//	["completeNode", "add"]
//	["markView", "add"]
//
// Replay applies ops to a graph in Checked mode (each edge is cycle
// checked as it is added) or Bulk mode (edges are linked unchecked after
// all nodes exist, then the graph is validated once). Export emits the ops
// that reconstruct an equivalent graph.
package oplog
