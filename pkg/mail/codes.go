// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
// SPDX-License-Identifier: Apache-2.0

package mail

// Code is the result code reported to callers. The numeric values are part
// of the external contract and must not change.
type Code int

const (
	CodeSuccess          Code = 0
	CodeInvalidSender    Code = -1
	CodeInvalidRecipient Code = -2
	CodeInvalidSubject   Code = -3
	CodeInvalidContent   Code = -4
	CodeInvalidEndpoint  Code = -5
	CodeEndpointNotFound Code = -6
	CodeInvalidHost      Code = -7
	CodeInvalidUser      Code = -8
	CodeInvalidPassword  Code = -9
	CodeInvalidPort      Code = -10
	CodeInvalidDatabase  Code = -11
	CodeNotSent          Code = -12
	CodeNotFound         Code = -13
	CodeInvalidRequest   Code = -14
	CodeGeneralError     Code = -999
)

var codeNames = map[Code]string{
	CodeSuccess:          "SUCCESS",
	CodeInvalidSender:    "INVALID_SENDER",
	CodeInvalidRecipient: "INVALID_RECIPIENT",
	CodeInvalidSubject:   "INVALID_SUBJECT",
	CodeInvalidContent:   "INVALID_CONTENT",
	CodeInvalidEndpoint:  "INVALID_ENDPOINT",
	CodeEndpointNotFound: "ENDPOINT_NOT_FOUND",
	CodeInvalidHost:      "INVALID_HOST",
	CodeInvalidUser:      "INVALID_USER",
	CodeInvalidPassword:  "INVALID_PASSWORD",
	CodeInvalidPort:      "INVALID_PORT",
	CodeInvalidDatabase:  "INVALID_DATABASE",
	CodeNotSent:          "NOT_SENT",
	CodeNotFound:         "NOT_FOUND",
	CodeInvalidRequest:   "INVALID_REQUEST",
	CodeGeneralError:     "GENERAL_ERROR",
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return "UNKNOWN"
}
