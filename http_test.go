package tapbank_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/arhyth/tapbank"
	"github.com/arhyth/tapbank/mocks"
)

func TestHTTPSessions(t *testing.T) {
	nooplog := zerolog.Nop()
	sessionID := snowflake.ParseInt64(7241722241547767808)

	t.Run("POST /sessions returns Created", func(tt *testing.T) {
		as := assert.New(tt)
		ctrl := gomock.NewController(tt)
		svc := mocks.NewMockService(ctrl)
		svc.EXPECT().
			OpenSession().
			Return(&tapbank.SessionView{
				ID:     sessionID,
				Phase:  tapbank.PhaseIdle,
				Mode:   tapbank.ModeIdle,
				Prompt: tapbank.Idle{}.Prompt(),
			}, nil)

		hndlr := tapbank.NewHTTPHandler(svc, &nooplog)
		req := httptest.NewRequest(http.MethodPost, "/sessions", nil)
		w := httptest.NewRecorder()
		hndlr.ServeHTTP(w, req)

		as.Equal(http.StatusCreated, w.Code)
		resp := map[string]any{}
		as.NoError(json.Unmarshal(w.Body.Bytes(), &resp))
		as.Equal("idle", resp["phase"])
		as.Equal(sessionID.String(), resp["id"])
	})

	t.Run("GET /sessions/{sessionID} returns not found for closed sessions", func(tt *testing.T) {
		as := assert.New(tt)
		ctrl := gomock.NewController(tt)
		svc := mocks.NewMockService(ctrl)
		svc.EXPECT().
			Session(sessionID).
			Return(nil, tapbank.ErrNotFound{ID: sessionID.String()})

		hndlr := tapbank.NewHTTPHandler(svc, &nooplog)
		req := httptest.NewRequest(http.MethodGet, "/sessions/"+sessionID.String(), nil)
		w := httptest.NewRecorder()
		hndlr.ServeHTTP(w, req)

		as.Equal(http.StatusNotFound, w.Code)
	})

	t.Run("DELETE /sessions/{sessionID} returns No Content", func(tt *testing.T) {
		ctrl := gomock.NewController(tt)
		svc := mocks.NewMockService(ctrl)
		svc.EXPECT().CloseSession(sessionID).Return(nil)

		hndlr := tapbank.NewHTTPHandler(svc, &nooplog)
		req := httptest.NewRequest(http.MethodDelete, "/sessions/"+sessionID.String(), nil)
		w := httptest.NewRecorder()
		hndlr.ServeHTTP(w, req)

		assert.Equal(tt, http.StatusNoContent, w.Code)
	})

	t.Run("non-numeric session IDs do not route", func(tt *testing.T) {
		ctrl := gomock.NewController(tt)
		svc := mocks.NewMockService(ctrl)

		hndlr := tapbank.NewHTTPHandler(svc, &nooplog)
		body := bytes.NewBufferString(`{"type":"reset"}`)
		req := httptest.NewRequest(http.MethodPost, "/sessions/24j24g*()/events", body)
		w := httptest.NewRecorder()
		hndlr.ServeHTTP(w, req)

		assert.Equal(tt, http.StatusNotFound, w.Code)
	})
}

func TestHTTPDispatch(t *testing.T) {
	nooplog := zerolog.Nop()
	sessionID := snowflake.ParseInt64(7241722241547767808)
	path := "/sessions/" + sessionID.String() + "/events"

	t.Run("returns OK with the next prompt", func(tt *testing.T) {
		as := assert.New(tt)
		ctrl := gomock.NewController(tt)
		svc := mocks.NewMockService(ctrl)
		svc.EXPECT().
			Dispatch(gomock.Any(), sessionID, tapbank.SelectMode{Mode: tapbank.ModeBid}).
			Return(&tapbank.Result{State: tapbank.BidSelectBidder{}, Prompt: "Tap card of bidder"}, nil)

		hndlr := tapbank.NewHTTPHandler(svc, &nooplog)
		body := bytes.NewBufferString(`{"type":"select_mode","mode":"bid"}`)
		req := httptest.NewRequest(http.MethodPost, path, body)
		w := httptest.NewRecorder()
		hndlr.ServeHTTP(w, req)

		as.Equal(http.StatusOK, w.Code)
		resp := map[string]any{}
		as.NoError(json.Unmarshal(w.Body.Bytes(), &resp))
		as.Equal("bid_select_bidder", resp["phase"])
		as.Equal("bid", resp["mode"])
		as.Equal("Tap card of bidder", resp["prompt"])
		as.NotContains(resp, "error")
	})

	t.Run("includes bid progress", func(tt *testing.T) {
		as := assert.New(tt)
		reqrd := require.New(tt)
		ctrl := gomock.NewController(tt)
		svc := mocks.NewMockService(ctrl)
		st := tapbank.BidAdjustIncrement{Bidder: tapbank.Card2, Base: 1_000, Current: 1_500}
		svc.EXPECT().
			Dispatch(gomock.Any(), sessionID, tapbank.AdjustBid{Delta: 500}).
			Return(&tapbank.Result{State: st, Prompt: st.Prompt()}, nil)

		hndlr := tapbank.NewHTTPHandler(svc, &nooplog)
		body := bytes.NewBufferString(`{"type":"adjust_bid","delta":500}`)
		req := httptest.NewRequest(http.MethodPost, path, body)
		w := httptest.NewRecorder()
		hndlr.ServeHTTP(w, req)

		reqrd.Equal(http.StatusOK, w.Code)
		var resp struct {
			Bid tapbank.BidView `json:"bid"`
		}
		reqrd.NoError(json.Unmarshal(w.Body.Bytes(), &resp))
		as.Equal(tapbank.BidView{Bidder: tapbank.Card2, Base: 1_000, Current: 1_500}, resp.Bid)
	})

	t.Run("rejected events keep the state and report the error", func(tt *testing.T) {
		as := assert.New(tt)
		ctrl := gomock.NewController(tt)
		svc := mocks.NewMockService(ctrl)
		st := tapbank.TransferSelectReceiver{Sender: tapbank.Card1, Amount: 100}
		svc.EXPECT().
			Dispatch(gomock.Any(), sessionID, tapbank.IdentifyCard{Card: tapbank.Card1}).
			Return(&tapbank.Result{State: st, Prompt: "Cannot transfer to the same card"}, tapbank.ErrSameAccountTransfer)

		hndlr := tapbank.NewHTTPHandler(svc, &nooplog)
		body := bytes.NewBufferString(`{"type":"identify_card","card":"card1"}`)
		req := httptest.NewRequest(http.MethodPost, path, body)
		w := httptest.NewRecorder()
		hndlr.ServeHTTP(w, req)

		as.Equal(http.StatusBadRequest, w.Code)
		resp := map[string]any{}
		as.NoError(json.Unmarshal(w.Body.Bytes(), &resp))
		as.Equal("transfer_select_receiver", resp["phase"])
		as.Equal("Cannot transfer to the same card", resp["prompt"])
		as.Equal(tapbank.ErrSameAccountTransfer.Error(), resp["error"])
	})

	t.Run("insufficient funds is a conflict", func(tt *testing.T) {
		ctrl := gomock.NewController(tt)
		svc := mocks.NewMockService(ctrl)
		st := tapbank.RepaySelectAccount{}
		svc.EXPECT().
			Dispatch(gomock.Any(), sessionID, gomock.AssignableToTypeOf(tapbank.IdentifyCard{})).
			Return(&tapbank.Result{State: st, Prompt: "Insufficient funds to repay loans"}, tapbank.ErrInsufficientFunds)

		hndlr := tapbank.NewHTTPHandler(svc, &nooplog)
		body := bytes.NewBufferString(`{"type":"identify_card","card":"card2"}`)
		req := httptest.NewRequest(http.MethodPost, path, body)
		w := httptest.NewRecorder()
		hndlr.ServeHTTP(w, req)

		assert.Equal(tt, http.StatusConflict, w.Code)
	})

	t.Run("malformed bodies are bad requests", func(tt *testing.T) {
		ctrl := gomock.NewController(tt)
		svc := mocks.NewMockService(ctrl)
		hndlr := tapbank.NewHTTPHandler(svc, &nooplog)

		for _, raw := range []string{
			`{"type":`,
			`{"type":"warp"}`,
			`{"type":"select_mode","mode":"idle"}`,
			`{"type":"identify_card"}`,
		} {
			req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(raw))
			w := httptest.NewRecorder()
			hndlr.ServeHTTP(w, req)
			assert.Equal(tt, http.StatusBadRequest, w.Code, raw)
		}
	})

	t.Run("unknown sessions are not found", func(tt *testing.T) {
		ctrl := gomock.NewController(tt)
		svc := mocks.NewMockService(ctrl)
		svc.EXPECT().
			Dispatch(gomock.Any(), sessionID, tapbank.Reset{}).
			Return(nil, tapbank.ErrNotFound{ID: sessionID.String()})

		hndlr := tapbank.NewHTTPHandler(svc, &nooplog)
		req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(`{"type":"reset"}`))
		w := httptest.NewRecorder()
		hndlr.ServeHTTP(w, req)

		assert.Equal(tt, http.StatusNotFound, w.Code)
	})
}

func TestHTTPAccounts(t *testing.T) {
	nooplog := zerolog.Nop()

	t.Run("GET /accounts/{cardID} returns the formatted balance", func(tt *testing.T) {
		as := assert.New(tt)
		ctrl := gomock.NewController(tt)
		svc := mocks.NewMockService(ctrl)
		svc.EXPECT().
			Account(tapbank.Card1).
			Return(&tapbank.Account{ID: tapbank.Card1, Balance: 1_500_000, Loans: []tapbank.Loan{}}, nil)

		hndlr := tapbank.NewHTTPHandler(svc, &nooplog)
		req := httptest.NewRequest(http.MethodGet, "/accounts/card1", nil)
		w := httptest.NewRecorder()
		hndlr.ServeHTTP(w, req)

		as.Equal(http.StatusOK, w.Code)
		resp := map[string]any{}
		as.NoError(json.Unmarshal(w.Body.Bytes(), &resp))
		as.Equal("$1.50M", resp["display"])
		as.EqualValues(1_500_000, resp["balance"])
	})

	t.Run("unknown cards are not found", func(tt *testing.T) {
		ctrl := gomock.NewController(tt)
		svc := mocks.NewMockService(ctrl)
		svc.EXPECT().
			Account(tapbank.CardID("card3")).
			Return(nil, tapbank.ErrUnknownAccount{ID: "card3"})

		hndlr := tapbank.NewHTTPHandler(svc, &nooplog)
		req := httptest.NewRequest(http.MethodGet, "/accounts/card3", nil)
		w := httptest.NewRecorder()
		hndlr.ServeHTTP(w, req)

		assert.Equal(tt, http.StatusNotFound, w.Code)
	})

	t.Run("statement is served as a PDF", func(tt *testing.T) {
		as := assert.New(tt)
		ctrl := gomock.NewController(tt)
		svc := mocks.NewMockService(ctrl)
		svc.EXPECT().
			Statement(gomock.Any(), tapbank.Card2).
			DoAndReturn(func(w io.Writer, _ tapbank.CardID) error {
				_, err := w.Write([]byte("%PDF-1.3"))
				return err
			})

		hndlr := tapbank.NewHTTPHandler(svc, &nooplog)
		req := httptest.NewRequest(http.MethodGet, "/accounts/card2/statement", nil)
		w := httptest.NewRecorder()
		hndlr.ServeHTTP(w, req)

		as.Equal(http.StatusOK, w.Code)
		as.Equal("application/pdf", w.Header().Get("Content-Type"))
		as.Equal("%PDF-1.3", w.Body.String())
	})

	t.Run("statement for an unknown card skips the service", func(tt *testing.T) {
		ctrl := gomock.NewController(tt)
		svc := mocks.NewMockService(ctrl)

		hndlr := tapbank.NewHTTPHandler(svc, &nooplog)
		req := httptest.NewRequest(http.MethodGet, "/accounts/card9/statement", nil)
		w := httptest.NewRecorder()
		hndlr.ServeHTTP(w, req)

		assert.Equal(tt, http.StatusNotFound, w.Code)
	})

	t.Run("POST /ledger/reset returns No Content", func(tt *testing.T) {
		ctrl := gomock.NewController(tt)
		svc := mocks.NewMockService(ctrl)
		svc.EXPECT().ResetLedger(gomock.Any()).DoAndReturn(func(ctx context.Context) error {
			return nil
		})

		hndlr := tapbank.NewHTTPHandler(svc, &nooplog)
		req := httptest.NewRequest(http.MethodPost, "/ledger/reset", nil)
		w := httptest.NewRecorder()
		hndlr.ServeHTTP(w, req)

		assert.Equal(tt, http.StatusNoContent, w.Code)
	})
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{tapbank.ErrUnknownAccount{ID: "x"}, http.StatusNotFound},
		{tapbank.ErrNotFound{ID: "1"}, http.StatusNotFound},
		{tapbank.ErrBadRequest{Fields: map[string]string{"type": "missing"}}, http.StatusBadRequest},
		{tapbank.ErrInvalidAmount{Input: "a"}, http.StatusBadRequest},
		{tapbank.ErrSameAccountTransfer, http.StatusBadRequest},
		{tapbank.ErrInsufficientFunds, http.StatusConflict},
		{tapbank.ErrNothingToRepay, http.StatusConflict},
		{tapbank.ErrUnexpectedEvent{Event: "confirm_bid"}, http.StatusConflict},
		{tapbank.ErrBusy, http.StatusServiceUnavailable},
		{tapbank.ErrInternalServer, http.StatusInternalServerError},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, tapbank.HTTPStatus(tc.err), tc.err.Error())
	}
}
