package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/holiman/uint256"

	"token-ledger/internal/domain"
	"token-ledger/internal/feed"
)

// Event paging limits for GET /events.
const (
	defaultEventsLimit = 100
	maxEventsLimit     = 1000
)

// TokenResponse is the body of GET /token.
type TokenResponse struct {
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Decimals    uint8  `json:"decimals"`
	TotalSupply string `json:"totalSupply"`
}

// BalanceResponse is the body of GET /balances/{account}.
type BalanceResponse struct {
	Account string `json:"account"`
	Balance string `json:"balance"`
}

// AllowanceResponse is the body of GET /allowances/{owner}/{spender}.
type AllowanceResponse struct {
	Owner     string `json:"owner"`
	Spender   string `json:"spender"`
	Allowance string `json:"allowance"`
}

// EventsResponse is the body of GET /events.
type EventsResponse struct {
	Events []feed.Message `json:"events"`
	Next   uint64         `json:"next"` // pass as after= to continue
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Status    string    `json:"status"`
	Uptime    string    `json:"uptime"`
	StartedAt time.Time `json:"started_at"`
	Token     string    `json:"token"`
	Holders   int       `json:"holders"`
	Conserved bool      `json:"conserved"`
}

// TransferRequest is the body of POST /transfer.
type TransferRequest struct {
	Caller string `json:"caller"`
	To     string `json:"to"`
	Value  string `json:"value"`
}

// ApproveRequest is the body of POST /approve.
type ApproveRequest struct {
	Caller  string `json:"caller"`
	Spender string `json:"spender"`
	Value   string `json:"value"`
}

// TransferFromRequest is the body of POST /transfer-from.
type TransferFromRequest struct {
	Caller string `json:"caller"`
	From   string `json:"from"`
	To     string `json:"to"`
	Value  string `json:"value"`
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	meta := s.engine.Metadata()
	conserved := s.engine.Conserved()

	status := "running"
	if !conserved {
		status = "degraded"
	}

	writeJSON(w, http.StatusOK, StatusResponse{
		Status:    status,
		Uptime:    time.Since(s.startedAt).Truncate(time.Second).String(),
		StartedAt: s.startedAt,
		Token:     meta.Symbol,
		Holders:   s.engine.Holders(),
		Conserved: conserved,
	})
}

func (s *server) handleToken(w http.ResponseWriter, _ *http.Request) {
	meta := s.engine.Metadata()
	writeJSON(w, http.StatusOK, TokenResponse{
		Name:        meta.Name,
		Symbol:      meta.Symbol,
		Decimals:    meta.Decimals,
		TotalSupply: domain.FormatAmount(meta.TotalSupply),
	})
}

func (s *server) handleBalance(w http.ResponseWriter, r *http.Request) {
	account, err := parseAccountField("account", mux.Vars(r)["account"])
	if err != nil {
		badRequest(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceResponse{
		Account: account.String(),
		Balance: domain.FormatAmount(s.engine.BalanceOf(account)),
	})
}

func (s *server) handleAllowance(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	owner, err := parseAccountField("owner", vars["owner"])
	if err != nil {
		badRequest(w, err)
		return
	}
	spender, err := parseAccountField("spender", vars["spender"])
	if err != nil {
		badRequest(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AllowanceResponse{
		Owner:     owner.String(),
		Spender:   spender.String(),
		Allowance: domain.FormatAmount(s.engine.AllowanceOf(owner, spender)),
	})
}

func (s *server) handleEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var after uint64
	if raw := q.Get("after"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			badRequest(w, errors.New("after must be a non-negative integer"))
			return
		}
		after = v
	}

	limit := defaultEventsLimit
	if raw := q.Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			badRequest(w, errors.New("limit must be a positive integer"))
			return
		}
		limit = min(v, maxEventsLimit)
	}

	events := s.engine.EventsSince(after, limit)
	next := after
	if len(events) > 0 {
		next = events[len(events)-1].Seq
	}
	writeJSON(w, http.StatusOK, EventsResponse{Events: feed.NewMessages(events), Next: next})
}

func (s *server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err)
		return
	}

	var p fieldParser
	caller := p.account("caller", req.Caller)
	to := p.account("to", req.To)
	value := p.amount("value", req.Value)
	if p.err != nil {
		badRequest(w, p.err)
		return
	}

	ev, err := s.engine.Transfer(caller, to, value)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, feed.NewMessage(ev))
}

func (s *server) handleApprove(w http.ResponseWriter, r *http.Request) {
	var req ApproveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err)
		return
	}

	var p fieldParser
	caller := p.account("caller", req.Caller)
	spender := p.account("spender", req.Spender)
	value := p.amount("value", req.Value)
	if p.err != nil {
		badRequest(w, p.err)
		return
	}

	ev, err := s.engine.Approve(caller, spender, value)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, feed.NewMessage(ev))
}

func (s *server) handleTransferFrom(w http.ResponseWriter, r *http.Request) {
	var req TransferFromRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err)
		return
	}

	var p fieldParser
	caller := p.account("caller", req.Caller)
	from := p.account("from", req.From)
	to := p.account("to", req.To)
	value := p.amount("value", req.Value)
	if p.err != nil {
		badRequest(w, p.err)
		return
	}

	ev, err := s.engine.TransferFrom(caller, from, to, value)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, feed.NewMessage(ev))
}

// fieldParser parses request fields, keeping the first error.
type fieldParser struct {
	err error
}

func (p *fieldParser) account(name, raw string) domain.Account {
	if p.err != nil {
		return domain.NullAccount
	}
	a, err := parseAccountField(name, raw)
	p.err = err
	return a
}

func (p *fieldParser) amount(name, raw string) *uint256.Int {
	if p.err != nil {
		return nil
	}
	v, err := domain.ParseAmount(raw)
	if err != nil {
		p.err = fmt.Errorf("%s: %w", name, err)
	}
	return v
}

// parseAccountField parses a required account. The null account parses
// successfully; the engine decides whether it is acceptable.
func parseAccountField(name, raw string) (domain.Account, error) {
	if raw == "" {
		return domain.NullAccount, fmt.Errorf("%s is required", name)
	}
	a, err := domain.ParseAccount(raw)
	if err != nil {
		return domain.NullAccount, fmt.Errorf("%s: %w", name, err)
	}
	return a, nil
}
