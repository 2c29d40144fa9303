package ledger

import (
	"fmt"

	"github.com/obscura-markets/darkpool/pkg/pda"
)

// Pebble key schema.
//
// Accounts are the only authoritative state; everything else is derived.
//   acct:<base58 address>         → account envelope (owner + payload)
//   seq:tx                        → monotonically increasing submission counter
//
// The address is the natural primary key: it is already unique and
// recomputable by every party, so no secondary index is needed.

const (
	prefixAccount = "acct:"
	keyTxSeq      = "seq:tx"
)

// accountKey returns the key for an account envelope.
// Format: "acct:{address}"
func accountKey(addr pda.Address) []byte {
	return []byte(fmt.Sprintf("%s%s", prefixAccount, addr))
}

// accountPrefix is the range-scan prefix over every account.
func accountPrefix() []byte {
	return []byte(prefixAccount)
}

// keyUpperBound returns the exclusive upper bound for a prefix scan.
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
