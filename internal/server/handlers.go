package server

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"paper-broker-go/internal/engine"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// httpStatus maps engine error kinds onto HTTP statuses.
func httpStatus(kind engine.Kind) int {
	switch kind {
	case engine.KindInvalidAmount, engine.KindInvalidQuantity, engine.KindInvalidSymbol:
		return http.StatusBadRequest
	case engine.KindSymbolNotFound, engine.KindNoSuchPosition:
		return http.StatusNotFound
	case engine.KindInsufficientFunds:
		return http.StatusPaymentRequired
	case engine.KindInsufficientShares:
		return http.StatusConflict
	case engine.KindUpstreamUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeEngineError renders a typed engine failure. The kind gives callers
// something stable to branch on, the message something human to show.
func (s *APIServer) writeEngineError(w http.ResponseWriter, err error) {
	var resp errorResponse
	var ee *engine.Error
	if errors.As(err, &ee) {
		resp = errorResponse{Error: string(ee.Kind), Message: ee.Message}
	} else {
		resp = errorResponse{Error: string(engine.KindStorage), Message: "internal error"}
	}
	s.writeJSON(w, httpStatus(engine.KindOf(err)), resp)
}

// userID pulls the caller's user from the request. Verifying that identity is
// the job of middleware in front of this server.
func userID(r *http.Request) string {
	if id := r.FormValue("user_id"); id != "" {
		return id
	}
	return r.URL.Query().Get("user_id")
}

func (s *APIServer) requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := userID(r)
	if id == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing_user", Message: "user_id is required"})
		return "", false
	}
	return id, true
}

func (s *APIServer) quoteHandler(w http.ResponseWriter, r *http.Request) {
	q, err := s.engine.Quote(r.Context(), r.URL.Query().Get("symbol"))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, q)
}

func (s *APIServer) portfolioHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	view, err := s.engine.Portfolio(r.Context(), user)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *APIServer) historyHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	records, err := s.engine.History(r.Context(), user)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, records)
}

func (s *APIServer) depositHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	receipt, err := s.engine.Deposit(r.Context(), user, r.FormValue("amount"))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.logger.Info("Deposit accepted", zap.String("user_id", user))
	s.writeJSON(w, http.StatusOK, receipt)
}

func (s *APIServer) buyHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	receipt, err := s.engine.Buy(r.Context(), user, r.FormValue("symbol"), r.FormValue("shares"))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.logger.Info("Buy accepted",
		zap.String("user_id", user),
		zap.String("symbol", receipt.Symbol),
		zap.Int64("shares", receipt.Shares),
	)
	s.writeJSON(w, http.StatusOK, receipt)
}

func (s *APIServer) sellHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	receipt, err := s.engine.Sell(r.Context(), user, r.FormValue("symbol"), r.FormValue("shares"))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	s.logger.Info("Sell accepted",
		zap.String("user_id", user),
		zap.String("symbol", receipt.Symbol),
		zap.Int64("shares", receipt.Shares),
	)
	s.writeJSON(w, http.StatusOK, receipt)
}
