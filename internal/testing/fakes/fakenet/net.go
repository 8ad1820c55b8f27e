// Package fakenet provides a fake network dialer for testing.
package fakenet

import (
	"fmt"
	"net"
)

// Dialer is a fake network dialer that can be configured to return errors or specific connections.
type Dialer struct {
	DialFunc func(network, address string) (net.Conn, error)
	calls    []DialCall
}

// DialCall records a call to Dial.
type DialCall struct {
	Network string
	Address string
}

// NewDialer creates a new fake Dialer that returns an error by default.
func NewDialer() *Dialer {
	return &Dialer{
		DialFunc: func(network, address string) (net.Conn, error) {
			return nil, fmt.Errorf("fakenet: not configured")
		},
	}
}

// Dial records the call and delegates to DialFunc.
func (d *Dialer) Dial(network, address string) (net.Conn, error) {
	d.calls = append(d.calls, DialCall{Network: network, Address: address})
	return d.DialFunc(network, address)
}

// Calls returns all recorded Dial calls.
func (d *Dialer) Calls() []DialCall {
	return d.calls
}

// SetError configures the dialer to always return the given error.
func (d *Dialer) SetError(err error) {
	d.DialFunc = func(network, address string) (net.Conn, error) {
		return nil, err
	}
}
