package services

import "errors"

var (
	ErrNoFundingSources    = errors.New("set up a funding source first")
	ErrExpenseNotFound     = errors.New("expense not found")
	ErrSourceNotFound      = errors.New("funding source not found")
	ErrDuplicateSource     = errors.New("funding source already exists")
	ErrInvalidTransfer     = errors.New("invalid transfer parameters")
	ErrBankAccountNotFound = errors.New("bank account not found")
	ErrProfileNotFound     = errors.New("profile not found")
	ErrDefaultProfile      = errors.New("the default profile cannot be deleted")
	ErrInvalidDeletionKind = errors.New("invalid deletion kind")
	ErrUnknownConfirmation = errors.New("unknown or already used confirmation")
	ErrStaleConfirmation   = errors.New("confirmation belongs to another profile")
	ErrNothingStaged       = errors.New("no staged analysis for this account")
)
