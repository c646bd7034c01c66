// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
// SPDX-License-Identifier: Apache-2.0

package dispatcher

import (
	"errors"

	"github.com/telekom/mail-dispatcher/pkg/endpoint"
	"github.com/telekom/mail-dispatcher/pkg/ledger"
	"github.com/telekom/mail-dispatcher/pkg/mail"
)

var (
	// ErrInvalidEndpoint is returned by Send for an unknown endpoint id.
	ErrInvalidEndpoint = errors.New("unknown endpoint")
	// ErrInvalidRequest marks malformed boundary input.
	ErrInvalidRequest = errors.New("invalid request")
)

var errorCodes = []struct {
	err  error
	code mail.Code
}{
	{mail.ErrInvalidSender, mail.CodeInvalidSender},
	{mail.ErrInvalidRecipient, mail.CodeInvalidRecipient},
	{mail.ErrInvalidSubject, mail.CodeInvalidSubject},
	{mail.ErrInvalidContent, mail.CodeInvalidContent},
	{ErrInvalidEndpoint, mail.CodeInvalidEndpoint},
	{endpoint.ErrNotFound, mail.CodeEndpointNotFound},
	{endpoint.ErrInvalidHost, mail.CodeInvalidHost},
	{endpoint.ErrInvalidUser, mail.CodeInvalidUser},
	{endpoint.ErrInvalidPassword, mail.CodeInvalidPassword},
	{endpoint.ErrInvalidPort, mail.CodeInvalidPort},
	{endpoint.ErrInvalidDatabase, mail.CodeInvalidDatabase},
	{ledger.ErrNotFound, mail.CodeNotFound},
	{ErrInvalidRequest, mail.CodeInvalidRequest},
}

// CodeOf maps err to the result code reported at the boundary. Unknown errors
// map to CodeGeneralError.
func CodeOf(err error) mail.Code {
	if err == nil {
		return mail.CodeSuccess
	}
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	var te *mail.TransportError
	if errors.As(err, &te) {
		return mail.CodeNotSent
	}
	return mail.CodeGeneralError
}

// IsValidationError reports whether err rejects caller input, as opposed to a
// failed lookup or an internal error.
func IsValidationError(err error) bool {
	switch CodeOf(err) {
	case mail.CodeInvalidSender, mail.CodeInvalidRecipient, mail.CodeInvalidSubject,
		mail.CodeInvalidContent, mail.CodeInvalidHost, mail.CodeInvalidUser,
		mail.CodeInvalidPassword, mail.CodeInvalidPort, mail.CodeInvalidDatabase:
		return true
	}
	return false
}
