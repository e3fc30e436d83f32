// Package guard recognizes self-delivery loops. Some messaging backends
// loop a bot's own outgoing text back as an inbound event when sender and
// recipient identifiers coincide; recording a hash of everything we send
// lets the dispatcher discard those copies instead of re-processing them
// as new user turns.
package guard

import (
	"hash/fnv"
	"sync"
)

// EchoGuard keeps hashes of previously sent outbound text for membership
// testing. Loop prevention only, not authentication: a hash collision or a
// legitimately repeated human message is an accepted false positive. The
// set grows without bound for the lifetime of the process.
type EchoGuard struct {
	sent sync.Map // fnv64a(text) → struct{}
}

func New() *EchoGuard {
	return &EchoGuard{}
}

// Record remembers text as sent by us.
func (g *EchoGuard) Record(text string) {
	g.sent.Store(hashText(text), struct{}{})
}

// IsEcho reports whether text matches something we previously sent.
func (g *EchoGuard) IsEcho(text string) bool {
	_, ok := g.sent.Load(hashText(text))
	return ok
}

func hashText(text string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(text))
	return h.Sum64()
}
