// Package loader compiles graph documents into op scripts.
//
// Two source formats are accepted. CUE documents declare graphs
// structurally:
//
//	graph: main: node: {
//		src: {type: "NumericConst", params: value: 5}
//		add: {
//			type:  "NumericAdd"
//			link:  a: "src.out"
//			input: b: 2
//			once:  true
//		}
//		view: {type: "ToView", link: object: "add.out", view: true}
//	}
//
// A node whose type names another graph of the document instantiates it
// as a subgraph. JSON documents are op scripts as written by
// oplog.EncodeScript.
//
// Compilation emits, per graph, every node's addNode block in declaration
// order, then every bindNodeInput, then markView. Graphs are ordered so
// that templates precede the graphs using them and main comes last.
package loader
