package cellgraph

// Op identifies a node operation reported to the trace hook.
type Op uint8

const (
	OpCreate Op = iota
	OpDispose
	OpGet
	OpSet
	OpNotify
	OpLink
	OpUnlink
	OpRun
)

var opNames = [...]string{
	OpCreate:  "create",
	OpDispose: "dispose",
	OpGet:     "get",
	OpSet:     "set",
	OpNotify:  "notify",
	OpLink:    "link",
	OpUnlink:  "unlink",
	OpRun:     "run",
}

func (op Op) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}
	return "unknown"
}

// TraceFunc observes node operations for debugging. Link and unlink report
// the producer side of the edge; run reports the consumer about to execute.
type TraceFunc func(op Op, n *Node)

func (rs *ReactiveSystem) trace(op Op, n *Node) {
	if rs.tracer != nil {
		rs.tracer(op, n)
	}
}
