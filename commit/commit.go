// Package commit derives a succinct commitment over the command journal.
// Entries are folded into a MiMC hash chain on the BN254 scalar field, so
// two hosts holding the same journal prefix compute the same root and any
// divergence in content or order changes it. The field-native hash keeps
// the commitment cheap to re-verify inside a SNARK circuit later.
package commit

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"

	"github.com/pflow-xyz/go-presale/journal"
)

// Digest is a commitment root, the canonical 32-byte encoding of a BN254
// scalar field element.
type Digest [32]byte

// Hex returns the digest as lowercase hex.
func (d Digest) Hex() string {
	return hex.EncodeToString(d[:])
}

// IsZero reports whether the digest is the empty-chain root.
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// chunkSize keeps every absorbed block strictly below the field modulus.
const chunkSize = 31

// absorb writes raw bytes into the hasher as canonical field elements.
func absorb(h interface{ Write(p []byte) (int, error) }, data []byte) error {
	for len(data) > 0 {
		n := chunkSize
		if len(data) < n {
			n = len(data)
		}
		var elem fr.Element
		elem.SetBytes(data[:n])
		b := elem.Bytes()
		if _, err := h.Write(b[:]); err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}

// entryDigest hashes one journal entry's identity-bearing fields. The
// recorded wall-clock time is excluded: replay equivalence depends on the
// command content and position, not on when the host persisted it.
func entryDigest(entry *journal.Entry) (Digest, error) {
	h := mimc.NewMiMC()

	var fixed [16]byte
	binary.BigEndian.PutUint64(fixed[0:8], uint64(entry.Seq))
	binary.BigEndian.PutUint64(fixed[8:16], uint64(entry.Command.Now))
	if err := absorb(h, fixed[:]); err != nil {
		return Digest{}, fmt.Errorf("absorb entry %d header: %w", entry.Seq, err)
	}

	for _, field := range [][]byte{
		[]byte(entry.Command.Type),
		[]byte(entry.Command.Caller),
		entry.Command.Payload,
	} {
		// Length prefix keeps field boundaries unambiguous.
		var lenBuf [8]byte
		binary.BigEndian.PutUint64(lenBuf[:], uint64(len(field)))
		if err := absorb(h, lenBuf[:]); err != nil {
			return Digest{}, fmt.Errorf("absorb entry %d: %w", entry.Seq, err)
		}
		if err := absorb(h, field); err != nil {
			return Digest{}, fmt.Errorf("absorb entry %d: %w", entry.Seq, err)
		}
	}

	var d Digest
	copy(d[:], h.Sum(nil))
	return d, nil
}

// Chainer folds entries into the commitment chain incrementally.
type Chainer struct {
	root Digest
	n    int
}

// NewChainer starts an empty chain with the zero root.
func NewChainer() *Chainer {
	return &Chainer{}
}

// Add folds the next entry into the chain: root' = MiMC(root, H(entry)).
func (c *Chainer) Add(entry *journal.Entry) error {
	ed, err := entryDigest(entry)
	if err != nil {
		return err
	}

	h := mimc.NewMiMC()
	var prev, cur fr.Element
	prev.SetBytes(c.root[:])
	cur.SetBytes(ed[:])

	pb, cb := prev.Bytes(), cur.Bytes()
	if _, err := h.Write(pb[:]); err != nil {
		return fmt.Errorf("fold entry %d: %w", entry.Seq, err)
	}
	if _, err := h.Write(cb[:]); err != nil {
		return fmt.Errorf("fold entry %d: %w", entry.Seq, err)
	}

	copy(c.root[:], h.Sum(nil))
	c.n++
	return nil
}

// Root returns the current chain root.
func (c *Chainer) Root() Digest {
	return c.root
}

// Len returns the number of folded entries.
func (c *Chainer) Len() int {
	return c.n
}

// Chain computes the commitment root over entries in order.
func Chain(entries []*journal.Entry) (Digest, error) {
	c := NewChainer()
	for _, entry := range entries {
		if err := c.Add(entry); err != nil {
			return Digest{}, err
		}
	}
	return c.Root(), nil
}
