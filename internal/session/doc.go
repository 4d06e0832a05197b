// Package session drives evaluation frame by frame.
//
// A Session owns a document and an evaluator. Each RunFrame call applies
// the edits queued since the previous frame, evaluates the view sinks of
// the session graph at the frame number, and, when every sink resolved,
// marks the frame completed and notifies subscribers. The frame number and
// run token travel in an explicit FrameContext; nothing is global.
//
// Edits are only ever applied between passes, so a pass always sees one
// consistent snapshot of the graph.
package session
