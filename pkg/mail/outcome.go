// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
// SPDX-License-Identifier: Apache-2.0

package mail

import (
	"errors"
	"fmt"
	"time"
	"unicode/utf8"
)

// MaxErrorTextLength bounds Outcome.ErrorText, in characters.
const MaxErrorTextLength = 300

// Outcome is the recorded result of one delivery attempt.
type Outcome struct {
	ItemID      int64     `json:"itemId"`
	EndpointID  int64     `json:"endpointId"`
	Status      Code      `json:"status"`
	ErrorCode   int       `json:"errorCode"`
	ErrorText   string    `json:"errorText"`
	CompletedAt time.Time `json:"completedAt"`
}

// Succeeded reports whether the item was delivered.
func (o Outcome) Succeeded() bool {
	return o.Status == CodeSuccess
}

// TransportError is the failure of a single delivery attempt. Code carries
// the SMTP reply code when one is known, otherwise -1.
type TransportError struct {
	Code int
	Text string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("delivery failed (%d): %s", e.Code, e.Text)
}

func newOutcome(item *Item) Outcome {
	return Outcome{
		ItemID:     item.ID,
		EndpointID: item.EndpointID,
		Status:     CodeNotSent,
	}
}

// complete records the attempt result into o.
func (o *Outcome) complete(err error, at time.Time) {
	o.CompletedAt = at
	if err == nil {
		o.Status = CodeSuccess
		o.ErrorCode = 0
		o.ErrorText = ""
		return
	}
	o.Status = CodeNotSent
	var te *TransportError
	if errors.As(err, &te) {
		o.ErrorCode = te.Code
		o.ErrorText = truncate(te.Text, MaxErrorTextLength)
		return
	}
	o.ErrorCode = -1
	o.ErrorText = truncate(err.Error(), MaxErrorTextLength)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
