package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"token-ledger/internal/ledger"
)

// Error kinds for failures that are not ledger rejections.
const (
	kindInvalidRequest = "InvalidRequest"
	kindRateLimited    = "RateLimited"
	kindInternal       = "Internal"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 16

// ErrorResponse is the JSON body of every error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer body.Close()

	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("decode request body: trailing data")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, ErrorResponse{Error: kind, Message: message})
}

// writeLedgerError maps an engine error to 422 for rejections, 500 otherwise.
func writeLedgerError(w http.ResponseWriter, err error) {
	if ledger.IsRejection(err) {
		writeError(w, http.StatusUnprocessableEntity, ledger.ErrorKind(err), err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, kindInternal, err.Error())
}

func badRequest(w http.ResponseWriter, err error) {
	writeError(w, http.StatusBadRequest, kindInvalidRequest, err.Error())
}
