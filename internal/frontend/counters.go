package frontend

import "sync/atomic"

// Op identifies a counted front end operation.
type Op int

const (
	OpAlloc Op = iota
	OpAllocAligned
	OpFree
	OpFreeAligned
	OpSize
	OpSizeAligned
	OpFlush
	OpFlushAll
	OpTotalCommitted
	OpTotalReserved
	OpEnableHugePages

	numOps
)

var opNames = [numOps]string{
	OpAlloc:           "alloc",
	OpAllocAligned:    "alloc_aligned",
	OpFree:            "free",
	OpFreeAligned:     "free_aligned",
	OpSize:            "size",
	OpSizeAligned:     "size_aligned",
	OpFlush:           "flush",
	OpFlushAll:        "flush_all",
	OpTotalCommitted:  "total_committed",
	OpTotalReserved:   "total_reserved",
	OpEnableHugePages: "enable_huge_pages",
}

func (o Op) String() string {
	if o < 0 || o >= numOps {
		return "unknown"
	}
	return opNames[o]
}

// Ops returns every counted operation in declaration order.
func Ops() []Op {
	ops := make([]Op, numOps)
	for i := range ops {
		ops[i] = Op(i)
	}
	return ops
}

// CallCounters holds one independent atomic counter per operation. The
// counters are not ordered relative to each other.
type CallCounters struct {
	n [numOps]atomic.Uint64
}

func (c *CallCounters) inc(op Op) { c.n[op].Add(1) }

// Load returns the count for op.
func (c *CallCounters) Load(op Op) uint64 { return c.n[op].Load() }

// Snapshot copies every counter. Each value is read atomically, the set is not.
func (c *CallCounters) Snapshot() Snapshot {
	var s Snapshot
	for i := range c.n {
		s.Calls[i] = c.n[i].Load()
	}
	return s
}

// Snapshot is a point-in-time copy of the call counters.
type Snapshot struct {
	Calls [numOps]uint64
}

// Get returns the count recorded for op.
func (s Snapshot) Get(op Op) uint64 {
	if op < 0 || op >= numOps {
		return 0
	}
	return s.Calls[op]
}

// Map returns the counts keyed by operation name.
func (s Snapshot) Map() map[string]uint64 {
	m := make(map[string]uint64, numOps)
	for i, v := range s.Calls {
		m[Op(i).String()] = v
	}
	return m
}
