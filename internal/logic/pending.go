package logic

import (
	"sync"
	"time"
)

// OpKind names the mutation families a pending operation can belong to.
type OpKind int

const (
	OpAdd OpKind = iota
	OpRemove
	OpUpdate
	OpRestore
	OpMove
	OpReorder
)

func (k OpKind) String() string {
	switch k {
	case OpAdd:
		return "add"
	case OpRemove:
		return "remove"
	case OpUpdate:
		return "update"
	case OpRestore:
		return "restore"
	case OpMove:
		return "move"
	case OpReorder:
		return "reorder"
	default:
		return "unknown"
	}
}

type opKey struct {
	ref  string
	kind OpKind
}

// Op is one pending-operation record: an optimistic effect that is visible
// locally but not yet backend-confirmed. Seq orders operations on the same
// (ref, kind) pair so a late response can be recognized as stale.
type Op struct {
	Ref         string
	Kind        OpKind
	Seq         uint64
	SubmittedAt time.Time
	Attempt     int
}

type pendingRecord struct {
	op       Op
	baseline any
}

// PendingOps tracks the in-flight mutations of one manager. At most one
// operation exists per (ref, kind) pair at a time.
type PendingOps struct {
	mu  sync.Mutex
	seq uint64
	ops map[opKey]pendingRecord
}

// NewPendingOps creates an empty tracker.
func NewPendingOps() *PendingOps {
	return &PendingOps{ops: make(map[opKey]pendingRecord)}
}

// Begin records a new pending operation. If one already exists for the
// same (ref, kind), nothing is recorded and ok is false — the duplicate
// request is coalesced, not queued.
func (p *PendingOps) Begin(ref string, kind OpKind) (Op, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := opKey{ref, kind}
	if _, exists := p.ops[key]; exists {
		return Op{}, false
	}
	return p.record(key, nil), true
}

// Supersede records a pending operation even if one is already in flight
// for the same (ref, kind), replacing it. The superseded operation's
// completion handler will observe that it is stale via Current and must
// not apply its result. Used for updates, where a newer payload wins.
//
// baseline is the rollback state the caller captured. When a live
// operation is replaced, the returned baseline is the one the chain
// started from: the superseded op's cache value is an unconfirmed
// optimistic write, so a failed newer op must roll back past it to the
// last backend-confirmed state.
func (p *PendingOps) Supersede(ref string, kind OpKind, baseline any) (Op, any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := opKey{ref, kind}
	if live, ok := p.ops[key]; ok {
		baseline = live.baseline
	}
	return p.record(key, baseline), baseline
}

func (p *PendingOps) record(key opKey, baseline any) Op {
	p.seq++
	op := Op{
		Ref:         key.ref,
		Kind:        key.kind,
		Seq:         p.seq,
		SubmittedAt: time.Now(),
		Attempt:     1,
	}
	p.ops[key] = pendingRecord{op: op, baseline: baseline}
	return op
}

// Current reports whether op is still the live record for its (ref, kind)
// pair. A completion handler whose op is no longer current has been
// superseded and must drop its response.
func (p *PendingOps) Current(op Op) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	live, ok := p.ops[opKey{op.Ref, op.Kind}]
	return ok && live.op.Seq == op.Seq
}

// End closes out a pending operation. The record is removed only if op is
// still current; the return value tells the caller whether its result may
// be applied.
func (p *PendingOps) End(op Op) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := opKey{op.Ref, op.Kind}
	live, ok := p.ops[key]
	if !ok || live.op.Seq != op.Seq {
		return false
	}
	delete(p.ops, key)
	return true
}

// Has reports whether a (ref, kind) operation is in flight.
func (p *PendingOps) Has(ref string, kind OpKind) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.ops[opKey{ref, kind}]
	return ok
}

// Len returns the number of in-flight operations.
func (p *PendingOps) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.ops)
}
