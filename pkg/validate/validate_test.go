package validate

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obscura-markets/darkpool/params"
)

func TestAddress(t *testing.T) {
	good := "7LKw8vSiLfawMNFUSzCoAp9v4GomjTKkhaiXUfmoA6Wu"
	a, err := Address("market", good)
	require.NoError(t, err)
	assert.Equal(t, good, a.String())

	_, err = Address("market", "not-an-address")
	var fe *FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "market", fe.Field)
	assert.Equal(t, ReasonInvalidAddress, fe.Reason)
}

func TestID(t *testing.T) {
	tests := []struct {
		name    string
		in      int64
		want    uint64
		wantErr bool
	}{
		{"first valid id", 1, 1, false},
		{"large id", 1 << 40, 1 << 40, false},
		{"zero is reserved", 0, 0, true},
		{"negative", -5, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ID("orderId", tt.in)
			if tt.wantErr {
				var fe *FieldError
				require.ErrorAs(t, err, &fe)
				assert.Equal(t, ReasonNonPositiveID, fe.Reason)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAmountAndPrice(t *testing.T) {
	_, err := Amount("amount", 0)
	assert.Error(t, err)
	_, err = Amount("amount", -1)
	assert.Error(t, err)
	v, err := Amount("amount", 50)
	require.NoError(t, err)
	assert.Equal(t, uint64(50), v)

	_, err = Price("price", 0)
	assert.Error(t, err)
	p, err := Price("price", 20)
	require.NoError(t, err)
	assert.Equal(t, uint64(20), p)
}

func TestValidUntilFlagsStaleness(t *testing.T) {
	now := time.Unix(1_800_000_000, 0)

	_, _, err := ValidUntil("validUntil", 0, now)
	assert.Error(t, err)

	ts, stale, err := ValidUntil("validUntil", now.Unix()+3600, now)
	require.NoError(t, err)
	assert.False(t, stale)
	assert.Equal(t, now.Unix()+3600, ts)

	// Past timestamps pass validation but are flagged.
	_, stale, err = ValidUntil("validUntil", now.Unix()-1, now)
	require.NoError(t, err)
	assert.True(t, stale)
}

func TestCommitFreqPolicy(t *testing.T) {
	unbounded := params.Policy{}

	_, err := CommitFreq("commitFreqMs", 0, unbounded)
	assert.Error(t, err)

	// Sub-millisecond risk is a deployment decision; default accepts 1ms.
	v, err := CommitFreq("commitFreqMs", 1, unbounded)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), v)

	// Values past the 32-bit wire field are rejected, never truncated.
	_, err = CommitFreq("commitFreqMs", int64(math.MaxUint32)+7, unbounded)
	var overflow *FieldError
	require.ErrorAs(t, err, &overflow)
	assert.Equal(t, ReasonCommitFreqRange, overflow.Reason)

	v, err = CommitFreq("commitFreqMs", int64(math.MaxUint32), unbounded)
	require.NoError(t, err)
	assert.Equal(t, uint32(math.MaxUint32), v)

	bounded := params.Policy{
		MinCommitFreq: 100 * time.Millisecond,
		MaxCommitFreq: 10 * time.Second,
	}
	_, err = CommitFreq("commitFreqMs", 50, bounded)
	var fe *FieldError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, ReasonCommitFreqRange, fe.Reason)

	_, err = CommitFreq("commitFreqMs", 60_000, bounded)
	assert.Error(t, err)

	_, err = CommitFreq("commitFreqMs", 1000, bounded)
	assert.NoError(t, err)
}
