package tapbank

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type eventJSONReq struct {
	Type  string `json:"type"`
	Mode  string `json:"mode,omitempty"`
	Card  string `json:"card,omitempty"`
	Value string `json:"value,omitempty"`
	Delta int64  `json:"delta,omitempty"`
}

func (r eventJSONReq) event() (Event, error) {
	switch r.Type {
	case SelectMode{}.Name():
		m := Mode(r.Mode)
		if !m.Valid() {
			return nil, ErrBadRequest{Fields: map[string]string{"mode": "must be one of transfer, bid, loan, repay"}}
		}
		return SelectMode{Mode: m}, nil
	case IdentifyCard{}.Name():
		if r.Card == "" {
			return nil, ErrBadRequest{Fields: map[string]string{"card": "missing"}}
		}
		return IdentifyCard{Card: CardID(r.Card)}, nil
	case EnterAmount{}.Name():
		return EnterAmount{Value: r.Value}, nil
	case AdjustBid{}.Name():
		return AdjustBid{Delta: r.Delta}, nil
	case ResetBid{}.Name():
		return ResetBid{}, nil
	case ConfirmBid{}.Name():
		return ConfirmBid{}, nil
	case Reset{}.Name():
		return Reset{}, nil
	}
	return nil, ErrBadRequest{Fields: map[string]string{"type": "unknown event type"}}
}

type resultJSONResp struct {
	Phase   Phase            `json:"phase"`
	Mode    Mode             `json:"mode"`
	Prompt  string           `json:"prompt"`
	Bid     *BidView         `json:"bid,omitempty"`
	Card    *accountJSONResp `json:"card,omitempty"`
	Outcome *Outcome         `json:"outcome,omitempty"`
	Warning string           `json:"warning,omitempty"`
	Error   string           `json:"error,omitempty"`
}

type accountJSONResp struct {
	*Account
	Display string `json:"display"`
}

func newResultJSONResp(res *Result) resultJSONResp {
	resp := resultJSONResp{
		Phase:   res.State.Phase(),
		Mode:    res.State.Mode(),
		Prompt:  res.Prompt,
		Bid:     viewSession(0, res.State).Bid,
		Outcome: res.Outcome,
	}
	if res.Card != nil {
		resp.Card = &accountJSONResp{Account: res.Card, Display: FormatAmount(res.Card.Balance)}
	}
	if res.Warning != nil {
		resp.Warning = res.Warning.Error()
	}
	return resp
}

func NewHTTPHandler(svc Service, log *zerolog.Logger) http.Handler {
	hndlr := &httpHandler{
		Svc: svc,
		Log: log,
	}
	mux := chi.NewMux()
	mux.Use(middleware.Recoverer)
	mux.NotFound(HTTPNotFound)
	mux.Route("/sessions", func(r chi.Router) {
		r.Post("/", hndlr.OpenSession)
		r.Route("/{sessionID:[0-9]+}", func(rr chi.Router) {
			rr.Get("/", hndlr.Session)
			rr.Delete("/", hndlr.CloseSession)
			rr.Post("/events", hndlr.Dispatch)
		})
	})
	mux.Route("/accounts/{cardID}", func(r chi.Router) {
		r.Get("/", hndlr.Account)
		r.Get("/statement", hndlr.Statement)
	})
	mux.Post("/ledger/reset", hndlr.ResetLedger)

	return mux
}

type httpHandler struct {
	Svc Service
	Log *zerolog.Logger
}

func (h *httpHandler) OpenSession(w http.ResponseWriter, r *http.Request) {
	v, err := h.Svc.OpenSession()
	if err != nil {
		WriteHTTPError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (h *httpHandler) Session(w http.ResponseWriter, r *http.Request) {
	id, err := sessionIDParam(r)
	if err != nil {
		h.Log.Err(err).Str("method", "session").Msg("error parsing session ID")
		WriteHTTPError(w, err)
		return
	}
	v, err := h.Svc.Session(id)
	if err != nil {
		WriteHTTPError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *httpHandler) CloseSession(w http.ResponseWriter, r *http.Request) {
	id, err := sessionIDParam(r)
	if err != nil {
		h.Log.Err(err).Str("method", "close_session").Msg("error parsing session ID")
		WriteHTTPError(w, err)
		return
	}
	if err = h.Svc.CloseSession(id); err != nil {
		WriteHTTPError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *httpHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	buf, err := io.ReadAll(r.Body)
	defer r.Body.Close()
	if err != nil {
		h.Log.Err(err).Str("method", "dispatch").Msg("error reading HTTP request")
		WriteHTTPError(w, ErrInternalServer)
		return
	}
	var req eventJSONReq
	if err = json.Unmarshal(buf, &req); err != nil {
		h.Log.Err(err).Str("method", "dispatch").Msg("error unmarshalling JSON")
		WriteHTTPError(w, ErrBadRequest{Fields: map[string]string{"request body": "malformed JSON"}})
		return
	}
	ev, err := req.event()
	if err != nil {
		WriteHTTPError(w, err)
		return
	}
	id, err := sessionIDParam(r)
	if err != nil {
		h.Log.Err(err).Str("method", "dispatch").Msg("error parsing session ID")
		WriteHTTPError(w, err)
		return
	}

	res, err := h.Svc.Dispatch(r.Context(), id, ev)
	if err != nil && res == nil {
		WriteHTTPError(w, err)
		return
	}
	resp := newResultJSONResp(res)
	status := http.StatusOK
	if err != nil {
		resp.Error = err.Error()
		status = HTTPStatus(err)
	}
	writeJSON(w, status, resp)
}

func (h *httpHandler) Account(w http.ResponseWriter, r *http.Request) {
	acct, err := h.Svc.Account(CardID(chi.URLParam(r, "cardID")))
	if err != nil {
		WriteHTTPError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, accountJSONResp{Account: acct, Display: FormatAmount(acct.Balance)})
}

func (h *httpHandler) Statement(w http.ResponseWriter, r *http.Request) {
	cardID := CardID(chi.URLParam(r, "cardID"))
	if !cardID.Valid() {
		WriteHTTPError(w, ErrUnknownAccount{ID: cardID})
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	if err := h.Svc.Statement(w, cardID); err != nil {
		h.Log.Err(err).Str("method", "statement").Msg("error writing statement")
		WriteHTTPError(w, err)
	}
}

func (h *httpHandler) ResetLedger(w http.ResponseWriter, r *http.Request) {
	if err := h.Svc.ResetLedger(r.Context()); err != nil {
		WriteHTTPError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func sessionIDParam(r *http.Request) (snowflake.ID, error) {
	id, err := snowflake.ParseString(chi.URLParam(r, "sessionID"))
	if err != nil {
		return 0, ErrBadRequest{Fields: map[string]string{"sessionID": "invalid format"}}
	}
	return id, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("response encoding failed")
	}
}

// HTTPStatus maps domain errors to response codes.
func HTTPStatus(err error) int {
	switch {
	case errors.As(err, &ErrNotFound{}), errors.As(err, &ErrUnknownAccount{}):
		return http.StatusNotFound
	case errors.As(err, &ErrBadRequest{}), errors.As(err, &ErrInvalidAmount{}),
		errors.Is(err, ErrSameAccountTransfer):
		return http.StatusBadRequest
	case errors.Is(err, ErrInsufficientFunds), errors.Is(err, ErrNothingToRepay),
		errors.As(err, &ErrUnexpectedEvent{}):
		return http.StatusConflict
	case errors.Is(err, ErrBusy):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func WriteHTTPError(w http.ResponseWriter, err error) {
	var ne error
	defer func() {
		if ne != nil {
			log.Error().
				Err(ne).
				Msg("error response encoding failed")
		}
	}()

	w.Header().Set("Content-Type", "application/json")
	status := HTTPStatus(err)
	w.WriteHeader(status)
	errbr := &ErrBadRequest{}
	if errors.As(err, errbr) {
		ne = json.NewEncoder(w).Encode(errbr)
		return
	}
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "server error"
	}
	ne = json.NewEncoder(w).Encode(map[string]string{
		"message": msg,
	})
}

func HTTPNotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	resp := map[string]string{
		"path": r.URL.Path,
	}
	json.NewEncoder(w).Encode(resp)
}
