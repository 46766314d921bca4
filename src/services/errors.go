package services

import "errors"

var (
	ErrLotNotFound         = errors.New("lot not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrInvalidInput        = errors.New("invalid input")
	ErrParsingFailed       = errors.New("failed to parse import file")
	ErrImportFailed        = errors.New("import failed")
	ErrTagNotFound         = errors.New("tag not found")
	ErrCommentNotFound     = errors.New("comment not found")
	ErrTradeGroupNotFound  = errors.New("trade group not found")
	ErrConflict            = errors.New("conflict")
)
