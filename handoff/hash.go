package handoff

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"time"
)

// ContentHash produces a deterministic SHA-256 hex digest over the fields
// that identify a handoff: id, schema version, actors, creation time and
// task. Each field is length-prefixed before hashing so freeform text can
// never collide across field boundaries. The seal binds this digest into
// its signed claims; receivers recompute it to detect payload substitution.
func (p *Package) ContentHash() string {
	h := sha256.New()
	writeField := func(s string) {
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(s)))
		h.Write(lenBuf[:])
		h.Write([]byte(s))
	}
	writeField(p.ID.String())
	writeField(p.Version)
	writeField(p.Source)
	writeField(p.Target)
	writeField(p.CreatedAt.UTC().Format(time.RFC3339Nano))
	writeField(p.Instructions.Task)
	return hex.EncodeToString(h.Sum(nil))
}
