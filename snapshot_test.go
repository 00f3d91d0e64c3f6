package tapbank_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arhyth/tapbank"
)

func validSnapshot() tapbank.Snapshot {
	repaid := int64(1714564900000)
	return tapbank.Snapshot{
		"card1": {
			Balance:      1_497_000,
			Transactions: 1,
			Loans: []tapbank.LoanSnapshot{
				{Amount: 1_000, Paid: true, Timestamp: 1714564800000, RepaidTimestamp: &repaid},
				{Amount: 2_000, Timestamp: 1714564850000},
			},
		},
		"card2": {Balance: 1_500_000, Loans: []tapbank.LoanSnapshot{}},
	}
}

func TestSnapshotValidate(t *testing.T) {
	assert.NoError(t, validSnapshot().Validate())

	tests := map[string]func(tapbank.Snapshot){
		"negative transactions": func(s tapbank.Snapshot) {
			a := s["card2"]
			a.Transactions = -1
			s["card2"] = a
		},
		"zero loan": func(s tapbank.Snapshot) {
			s["card1"].Loans[1].Amount = 0
		},
		"paid loan without repaid timestamp": func(s tapbank.Snapshot) {
			s["card1"].Loans[0].RepaidTimestamp = nil
		},
		"unpaid loan with repaid timestamp": func(s tapbank.Snapshot) {
			ts := int64(1)
			s["card1"].Loans[1].RepaidTimestamp = &ts
		},
		"missing card": func(s tapbank.Snapshot) { delete(s, "card2") },
		"extra card":   func(s tapbank.Snapshot) { s["card3"] = tapbank.AccountSnapshot{} },
	}
	for name, mutate := range tests {
		t.Run(name, func(tt *testing.T) {
			s := validSnapshot()
			mutate(s)
			assert.ErrorIs(tt, s.Validate(), tapbank.ErrMalformedSnapshot)
		})
	}

	var empty tapbank.Snapshot
	assert.ErrorIs(t, empty.Validate(), tapbank.ErrMalformedSnapshot)
}

func TestSnapshotWireFormat(t *testing.T) {
	as := assert.New(t)
	reqrd := require.New(t)
	bits, err := tapbank.EncodeSnapshot(validSnapshot())
	reqrd.NoError(err)
	as.Contains(string(bits), `"transactions": 1`)
	as.Contains(string(bits), `"repaidTimestamp": 1714564900000`)

	decoded, err := tapbank.DecodeSnapshot(bits)
	reqrd.NoError(err)
	as.Equal(validSnapshot(), decoded)

	_, err = tapbank.DecodeSnapshot([]byte(`[1, 2]`))
	as.ErrorIs(err, tapbank.ErrMalformedSnapshot)
}

func TestFileRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("missing file", func(tt *testing.T) {
		repo := tapbank.NewFileRepository(filepath.Join(tt.TempDir(), "nope.json"))
		_, err := repo.Load(ctx)
		assert.ErrorIs(tt, err, tapbank.ErrNoSnapshot)
	})

	t.Run("save creates directories and replaces the file", func(tt *testing.T) {
		as := assert.New(tt)
		reqrd := require.New(tt)
		path := filepath.Join(tt.TempDir(), "state", "ledger.json")
		repo := tapbank.NewFileRepository(path)

		reqrd.NoError(repo.Save(ctx, validSnapshot()))
		next := validSnapshot()
		next["card2"] = tapbank.AccountSnapshot{Balance: 1, Loans: []tapbank.LoanSnapshot{}}
		reqrd.NoError(repo.Save(ctx, next))

		got, err := repo.Load(ctx)
		reqrd.NoError(err)
		as.Equal(next, got)
		_, err = os.Stat(path + ".tmp")
		as.ErrorIs(err, os.ErrNotExist)
	})

	t.Run("garbage on disk", func(tt *testing.T) {
		path := filepath.Join(tt.TempDir(), "ledger.json")
		require.NoError(tt, os.WriteFile(path, []byte("not json"), 0o644))
		_, err := tapbank.NewFileRepository(path).Load(ctx)
		assert.ErrorIs(tt, err, tapbank.ErrMalformedSnapshot)
	})
}
