package http

import (
	"errors"
	"net/http"

	"weddingsync/internal/calc"
	"weddingsync/internal/core"
	"weddingsync/internal/gemini"
	"weddingsync/internal/services"
	"weddingsync/internal/vault"
)

var (
	errBadRequest   = errors.New("malformed request")
	errMissingFile  = errors.New("missing file upload")
	errFileTooLarge = errors.New("file too large")
)

var notFound = []error{
	services.ErrExpenseNotFound,
	services.ErrSourceNotFound,
	services.ErrBankAccountNotFound,
	services.ErrProfileNotFound,
	services.ErrUnknownConfirmation,
	services.ErrNothingStaged,
}

var unprocessable = []error{
	core.ErrEmptyName,
	core.ErrNameTooLong,
	core.ErrInvalidCategory,
	core.ErrInvalidDate,
	core.ErrNegativeAmount,
	core.ErrInvalidTarget,
	core.ErrInvalidTxType,
	core.ErrEmptySourceName,
	core.ErrEmptyProfileName,
	core.ErrInvalidAmount,
	services.ErrNoFundingSources,
	services.ErrInvalidTransfer,
	services.ErrDefaultProfile,
	services.ErrInvalidDeletionKind,
	calc.ErrEmpty,
	calc.ErrSyntax,
	calc.ErrDivisionByZero,
}

var conflict = []error{
	services.ErrDuplicateSource,
	services.ErrStaleConfirmation,
}

// statusFor maps an error to the response status and the message shown to
// the caller. Unknown errors become a generic 500.
func statusFor(err error) (int, string) {
	if errors.Is(err, gemini.ErrNotConfigured) {
		return http.StatusServiceUnavailable, gemini.MsgNotConfigured
	}
	if msg := gemini.UserMessage(err); msg != "" {
		return http.StatusBadGateway, msg
	}
	if errors.Is(err, vault.ErrInvalidVault) {
		return http.StatusBadRequest, err.Error()
	}
	if errors.Is(err, errFileTooLarge) {
		return http.StatusRequestEntityTooLarge, err.Error()
	}
	if errors.Is(err, errBadRequest) || errors.Is(err, errMissingFile) {
		return http.StatusBadRequest, err.Error()
	}
	for _, target := range notFound {
		if errors.Is(err, target) {
			return http.StatusNotFound, target.Error()
		}
	}
	for _, target := range conflict {
		if errors.Is(err, target) {
			return http.StatusConflict, target.Error()
		}
	}
	for _, target := range unprocessable {
		if errors.Is(err, target) {
			return http.StatusUnprocessableEntity, target.Error()
		}
	}
	return http.StatusInternalServerError, "internal error"
}
