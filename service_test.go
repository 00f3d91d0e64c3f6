package tapbank_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arhyth/tapbank"
)

func newService(tt *testing.T) (tapbank.Service, *tapbank.Ledger) {
	tt.Helper()
	log := zerolog.Nop()
	l := newLedger(tt)
	svc, err := tapbank.NewService(l, &log)
	require.NoError(tt, err)
	return svc, l
}

func TestServiceSessions(t *testing.T) {
	t.Run("open, view and close", func(tt *testing.T) {
		as := assert.New(tt)
		reqrd := require.New(tt)
		svc, _ := newService(tt)

		v, err := svc.OpenSession()
		reqrd.NoError(err)
		as.Equal(tapbank.PhaseIdle, v.Phase)
		as.Equal(tapbank.ModeIdle, v.Mode)

		got, err := svc.Session(v.ID)
		reqrd.NoError(err)
		as.Equal(v, got)

		reqrd.NoError(svc.CloseSession(v.ID))
		_, err = svc.Session(v.ID)
		as.ErrorAs(err, &tapbank.ErrNotFound{})
		as.ErrorAs(svc.CloseSession(v.ID), &tapbank.ErrNotFound{})
	})

	t.Run("dispatch to an unknown session", func(tt *testing.T) {
		svc, _ := newService(tt)
		res, err := svc.Dispatch(context.Background(), snowflake.ParseInt64(42), tapbank.Reset{})
		assert.ErrorAs(tt, err, &tapbank.ErrNotFound{})
		assert.Nil(tt, res)
	})

	t.Run("sessions keep their own state over a shared ledger", func(tt *testing.T) {
		as := assert.New(tt)
		reqrd := require.New(tt)
		ctx := context.Background()
		svc, l := newService(tt)
		a, err := svc.OpenSession()
		reqrd.NoError(err)
		b, err := svc.OpenSession()
		reqrd.NoError(err)
		as.NotEqual(a.ID, b.ID)

		for _, ev := range []tapbank.Event{
			tapbank.SelectMode{Mode: tapbank.ModeBid},
			tapbank.IdentifyCard{Card: tapbank.Card1},
			tapbank.EnterAmount{Value: "1000"},
			tapbank.AdjustBid{Delta: 500},
		} {
			_, err = svc.Dispatch(ctx, a.ID, ev)
			reqrd.NoError(err)
		}
		for _, ev := range []tapbank.Event{
			tapbank.SelectMode{Mode: tapbank.ModeLoan},
			tapbank.IdentifyCard{Card: tapbank.Card2},
			tapbank.EnterAmount{Value: "2000"},
		} {
			_, err = svc.Dispatch(ctx, b.ID, ev)
			reqrd.NoError(err)
		}

		va, err := svc.Session(a.ID)
		reqrd.NoError(err)
		as.Equal(tapbank.PhaseBidAdjustIncrement, va.Phase)
		reqrd.NotNil(va.Bid)
		as.Equal(int64(1_500), va.Bid.Current)

		vb, err := svc.Session(b.ID)
		reqrd.NoError(err)
		as.Equal(tapbank.PhaseIdle, vb.Phase)
		as.Equal(tapbank.DefaultBalance+2_000, balance(tt, l, tapbank.Card2))

		acct, err := svc.Account(tapbank.Card2)
		reqrd.NoError(err)
		as.Len(acct.Loans, 1)
	})

	t.Run("ResetLedger returns every session to idle", func(tt *testing.T) {
		as := assert.New(tt)
		reqrd := require.New(tt)
		ctx := context.Background()
		svc, l := newService(tt)
		v, err := svc.OpenSession()
		reqrd.NoError(err)
		reqrd.NoError(l.ApplyDelta(tapbank.Card1, -100))
		_, err = svc.Dispatch(ctx, v.ID, tapbank.SelectMode{Mode: tapbank.ModeTransfer})
		reqrd.NoError(err)

		reqrd.NoError(svc.ResetLedger(ctx))
		got, err := svc.Session(v.ID)
		reqrd.NoError(err)
		as.Equal(tapbank.PhaseIdle, got.Phase)
		as.Equal(tapbank.DefaultBalance, balance(tt, l, tapbank.Card1))
	})
}

func TestServiceAccount(t *testing.T) {
	t.Run("unknown card", func(tt *testing.T) {
		svc, _ := newService(tt)
		acct, err := svc.Account("card3")
		assert.ErrorAs(tt, err, &tapbank.ErrUnknownAccount{})
		assert.Nil(tt, acct)
	})

	t.Run("statement renders a PDF", func(tt *testing.T) {
		svc, l := newService(tt)
		require.NoError(tt, l.AddLoan(tapbank.Card1, 1_000))
		var buf bytes.Buffer
		require.NoError(tt, svc.Statement(&buf, tapbank.Card1))
		assert.True(tt, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
	})
}
