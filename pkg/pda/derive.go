package pda

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
)

// Seed prefixes. These are domain separators, not secrets: the same strings
// the on-chain program uses, so any party can recompute the same addresses.
const (
	SeedOrder     = "order"
	SeedOrderbook = "orderbook"
	SeedTrade     = "trade"

	SeedDelegationBuffer   = "buffer"
	SeedDelegationRecord   = "record"
	SeedDelegationMetadata = "metadata"
)

// derivedAddressMarker terminates the hash preimage so program-derived
// addresses can never collide with hashes computed for other purposes.
const derivedAddressMarker = "ProgramDerivedAddress"

const maxSeedLen = 32

// ErrSeedsExhausted means no bump in [0,255] produced an off-curve address
// for the given seeds. Callers must treat this as fatal: retrying with the
// same seeds recomputes the same 256 candidates.
var ErrSeedsExhausted = errors.New("pda: no viable derived address for seeds")

// FindProgramAddress searches bump 255 down to 0 for the first candidate
// hash that is NOT a valid edwards25519 point. Off-curve addresses have no
// private key, so the derived account can only ever be controlled by the
// program itself.
func FindProgramAddress(seeds [][]byte, programID Address) (Address, uint8, error) {
	for _, s := range seeds {
		if len(s) > maxSeedLen {
			return Address{}, 0, fmt.Errorf("pda: seed exceeds %d bytes (%d)", maxSeedLen, len(s))
		}
	}
	for bump := 255; bump >= 0; bump-- {
		h := sha256.New()
		for _, s := range seeds {
			h.Write(s)
		}
		h.Write([]byte{uint8(bump)})
		h.Write(programID[:])
		h.Write([]byte(derivedAddressMarker))

		var candidate Address
		copy(candidate[:], h.Sum(nil))

		if !onCurve(candidate) {
			return candidate, uint8(bump), nil
		}
	}
	return Address{}, 0, ErrSeedsExhausted
}

// onCurve reports whether b decodes as a valid edwards25519 point, i.e.
// whether a keypair could exist for it.
func onCurve(a Address) bool {
	_, err := new(edwards25519.Point).SetBytes(a[:])
	return err == nil
}

// uint64LE is the canonical fixed-width seed encoding for numeric ids.
// Variable-length encodings would make ("ab", 1) and ("a", "b1")
// indistinguishable.
func uint64LE(v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return b[:]
}

// Deriver computes every account address the protocol touches. It carries
// the program namespaces explicitly so tests can substitute sandboxed ids.
type Deriver struct {
	Program    Address // darkpool program
	Delegation Address // delegation program owning the handoff sub-accounts
}

// NewDeriver parses the configured base58 program ids.
func NewDeriver(programID, delegationID string) (*Deriver, error) {
	prog, err := ParseAddress(programID)
	if err != nil {
		return nil, fmt.Errorf("program id: %w", err)
	}
	deleg, err := ParseAddress(delegationID)
	if err != nil {
		return nil, fmt.Errorf("delegation program id: %w", err)
	}
	return &Deriver{Program: prog, Delegation: deleg}, nil
}

// OrderAddress derives the account for (owner, orderID). Uniqueness per
// owner falls out of the derivation: a reused id maps to the same account,
// and the ledger refuses to create it twice.
func (d *Deriver) OrderAddress(owner Address, orderID uint64) (Address, uint8, error) {
	return FindProgramAddress([][]byte{
		[]byte(SeedOrder),
		owner[:],
		uint64LE(orderID),
	}, d.Program)
}

// OrderbookAddress derives the single control account for a market.
func (d *Deriver) OrderbookAddress(market Address) (Address, uint8, error) {
	return FindProgramAddress([][]byte{
		[]byte(SeedOrderbook),
		market[:],
	}, d.Program)
}

// TradeAddress derives the settlement record account for a trade id.
func (d *Deriver) TradeAddress(tradeID uint64) (Address, uint8, error) {
	return FindProgramAddress([][]byte{
		[]byte(SeedTrade),
		uint64LE(tradeID),
	}, d.Program)
}

// DelegationAccounts are the three sub-accounts the delegation program
// creates when an order's mutable state is handed to the TEE.
type DelegationAccounts struct {
	Buffer   Address
	Record   Address
	Metadata Address
}

// DelegationAccountsFor derives the buffer/record/metadata accounts scoped
// to an order account, under the delegation program's namespace.
func (d *Deriver) DelegationAccountsFor(order Address) (DelegationAccounts, error) {
	var out DelegationAccounts
	var err error
	if out.Buffer, _, err = FindProgramAddress([][]byte{[]byte(SeedDelegationBuffer), order[:]}, d.Delegation); err != nil {
		return DelegationAccounts{}, fmt.Errorf("delegation buffer: %w", err)
	}
	if out.Record, _, err = FindProgramAddress([][]byte{[]byte(SeedDelegationRecord), order[:]}, d.Delegation); err != nil {
		return DelegationAccounts{}, fmt.Errorf("delegation record: %w", err)
	}
	if out.Metadata, _, err = FindProgramAddress([][]byte{[]byte(SeedDelegationMetadata), order[:]}, d.Delegation); err != nil {
		return DelegationAccounts{}, fmt.Errorf("delegation metadata: %w", err)
	}
	return out, nil
}
