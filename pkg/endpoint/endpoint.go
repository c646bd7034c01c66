/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package endpoint

import (
	"errors"
	"fmt"
)

// MaxFieldLength bounds host, user and password.
const MaxFieldLength = 100

var (
	ErrInvalidHost     = errors.New("invalid endpoint host")
	ErrInvalidUser     = errors.New("invalid endpoint user")
	ErrInvalidPassword = errors.New("invalid endpoint password")
	ErrInvalidPort     = errors.New("invalid endpoint port")
	ErrInvalidDatabase = errors.New("invalid endpoint database")
	ErrNotFound        = errors.New("endpoint not found")
)

// SecurityMode selects how the SMTP connection is secured.
type SecurityMode int

const (
	// SecurityNone asks for no TLS. The SMTP transport still upgrades when
	// the server offers STARTTLS.
	SecurityNone SecurityMode = iota
	// SecurityStartTLS upgrades the connection with STARTTLS, verifying the
	// server certificate against Host.
	SecurityStartTLS
	// SecuritySSL connects with implicit TLS.
	SecuritySSL
	// SecurityDefault leaves the choice to the transport.
	SecurityDefault
)

// ParseSecurityMode maps a boundary value to a SecurityMode. Unknown values
// fall back to SecurityNone.
func ParseSecurityMode(v int) SecurityMode {
	m := SecurityMode(v)
	if m < SecurityNone || m > SecurityDefault {
		return SecurityNone
	}
	return m
}

func (m SecurityMode) String() string {
	switch m {
	case SecurityNone:
		return "none"
	case SecurityStartTLS:
		return "starttls"
	case SecuritySSL:
		return "ssl"
	case SecurityDefault:
		return "default"
	default:
		return fmt.Sprintf("SecurityMode(%d)", int(m))
	}
}

// Config describes one SMTP endpoint.
type Config struct {
	ID       int64        `json:"id" yaml:"-"`
	Host     string       `json:"host" yaml:"host"`
	Port     int          `json:"port" yaml:"port"`
	Security SecurityMode `json:"securityMode" yaml:"securityMode"`
	User     string       `json:"user" yaml:"user"`
	Password string       `json:"password,omitempty" yaml:"password"`
	// Database is the namespace used for bulk counting and cancellation.
	Database string `json:"database" yaml:"database"`
	// Banner is sent as the X-Mailer header.
	Banner string `json:"banner,omitempty" yaml:"banner"`
}

// Validate checks field presence, lengths and the port range. The first
// violation wins.
func (c Config) Validate() error {
	switch {
	case c.Database == "":
		return ErrInvalidDatabase
	case !validField(c.Host):
		return ErrInvalidHost
	case !validField(c.User):
		return ErrInvalidUser
	case !validField(c.Password):
		return ErrInvalidPassword
	case c.Port < 1 || c.Port > 65535:
		return ErrInvalidPort
	}
	return nil
}

func validField(s string) bool {
	return s != "" && len(s) <= MaxFieldLength
}

// Equal reports whether both configs address the same server with the same
// credentials. ID, Database and Banner do not take part.
func (c Config) Equal(o Config) bool {
	return c.Host == o.Host &&
		c.Port == o.Port &&
		c.Security == o.Security &&
		c.User == o.User &&
		c.Password == o.Password
}

// Redacted returns a copy without the password.
func (c Config) Redacted() Config {
	c.Password = ""
	return c
}

// Address returns host:port.
func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
