// Package engine evaluates dataflow graphs.
//
// ARCHITECTURE:
//
// Pull Evaluation:
// A pass starts from the requested targets (or the graph's view sinks) and
// resolves each node depth-first: inputs first, then the node itself. Only
// nodes reachable from a target are ever visited.
//
// Memoization:
// Every node resolved in a pass is recorded, success or failure. A second
// consumer of the same node reads the record, so apply runs at most once
// per node per pass regardless of fan-out.
//
// Incremental Cache:
// Outputs survive across passes in a per-graph Cache. A node reuses its
// cached outputs when its revision is unchanged, its inputs are the same
// values by identity (value.Same) as when it last ran, and, for
// time-dependent nodes, the frame has not changed. Cache updates are
// staged during a pass and committed only when the pass completes.
//
// Failure Isolation:
// An apply error fails the target that needed it. Sibling targets that do
// not depend on the failed node still complete. Nodes of unknown type are
// logged and skipped with Null outputs so the rest of the graph stays
// inspectable.
//
// Concurrency:
// A pass is single-threaded and deterministic. The graph latch rejects
// structural edits while it runs. Parallelism is confined to a node's own
// apply (see package parallel). Cancellation is observed between node
// executions; a cancelled pass returns no result and commits nothing.
package engine
