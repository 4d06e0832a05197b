// Package graph implements the structural model of a dataflow document:
// nodes with ordered input and output sockets, output-to-input links,
// view sinks, and subgraph instances whose bodies are forked from named
// template graphs.
//
// Every mutation validates before it changes anything. A failed AddEdge,
// for example, leaves the graph exactly as it was. Between edits the link
// structure is a DAG; edge insertion rejects anything that would close a
// cycle, and Validate re-checks graphs that were loaded in bulk without
// per-edge checks.
//
// A Graph is owned either by an editor or by an evaluation pass, never both.
// While a pass holds the latch (see BeginPass) every mutation fails with
// GRAPH_BUSY.
package graph
