// Package realnet provides the real implementation of the NetworkDialer port.
package realnet

import "net"

// Dialer implements ports.NetworkDialer using the real net.Dial function.
type Dialer struct{}

// NewDialer creates a new Dialer.
func NewDialer() *Dialer {
	return &Dialer{}
}

// Dial establishes a network connection.
func (d *Dialer) Dial(network, address string) (net.Conn, error) {
	return net.Dial(network, address)
}
