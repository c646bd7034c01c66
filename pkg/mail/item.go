// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
// SPDX-License-Identifier: Apache-2.0

package mail

import (
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/telekom/mail-dispatcher/pkg/endpoint"
)

// MinSubjectLength is the shortest subject accepted, in characters.
const MinSubjectLength = 10

var (
	ErrInvalidSender    = errors.New("invalid sender address")
	ErrInvalidRecipient = errors.New("invalid recipient address")
	ErrInvalidSubject   = errors.New("subject too short")
	ErrInvalidContent   = errors.New("empty body")
)

var (
	addressPattern = regexp.MustCompile(`^[_a-z0-9-]+(\.[_a-z0-9-]+)*@[a-z0-9-]+(\.[a-z0-9-]+)*(\.[a-z]{2,4})$`)
	htmlPattern    = regexp.MustCompile(`(?i)<\s*(html|body|head|p|br|div|span|table|a|b|i|ul|ol|h[1-6])[\s/>]`)
)

// Priority of an item, mapped to the X-Priority header.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
)

// ParsePriority maps a boundary value: 2 is high, 0 is low, anything else
// is normal.
func ParsePriority(v int) Priority {
	switch v {
	case 2:
		return PriorityHigh
	case 0:
		return PriorityLow
	default:
		return PriorityNormal
	}
}

func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityLow:
		return "low"
	default:
		return "normal"
	}
}

func (p Priority) header() string {
	switch p {
	case PriorityHigh:
		return "1 (Highest)"
	case PriorityLow:
		return "5 (Lowest)"
	default:
		return "3 (Normal)"
	}
}

// Item is one outbound message. It carries a snapshot of the endpoint it was
// submitted for, so removing the endpoint later does not affect delivery.
type Item struct {
	ID               int64
	EndpointID       int64
	Endpoint         endpoint.Config
	SenderName       string
	SenderAddress    string
	RecipientName    string
	RecipientAddress string
	Subject          string
	Body             string
	Priority         Priority
	Sent             bool
	SentAt           time.Time
	CreatedAt        time.Time
}

// IsHTML reports whether the body looks like HTML markup.
func (i Item) IsHTML() bool {
	return htmlPattern.MatchString(i.Body)
}

// Database returns the namespace of the item's endpoint.
func (i Item) Database() string {
	return i.Endpoint.Database
}

// ValidateItem checks the content of an item. The first violation wins, in
// this order: body, sender, recipient, sender format, recipient format,
// subject length.
func ValidateItem(item Item) error {
	switch {
	case item.Body == "":
		return ErrInvalidContent
	case item.SenderAddress == "":
		return ErrInvalidSender
	case item.RecipientAddress == "":
		return ErrInvalidRecipient
	case !ValidAddress(item.SenderAddress):
		return ErrInvalidSender
	case !ValidAddress(item.RecipientAddress):
		return ErrInvalidRecipient
	case utf8.RuneCountInString(item.Subject) < MinSubjectLength:
		return ErrInvalidSubject
	}
	return nil
}

// ValidAddress reports whether addr is a plain mailbox address. Matching is
// case-insensitive.
func ValidAddress(addr string) bool {
	return addressPattern.MatchString(strings.ToLower(addr))
}

// normalize fills empty display names with the address.
func (i *Item) normalize() {
	if i.SenderName == "" {
		i.SenderName = i.SenderAddress
	}
	if i.RecipientName == "" {
		i.RecipientName = i.RecipientAddress
	}
}
