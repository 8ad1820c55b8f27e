// Package fakedialog provides a test fake for ports.DialogProvider.
package fakedialog

import "github.com/acolita/mutagen-bridge/internal/ports"

// Provider is a controllable fake DialogProvider for testing.
type Provider struct {
	// ConnectionResult is the form data returned by ConnectionForm.
	ConnectionResult ports.ConnectionFormData
	// SetupResult is the form data returned by SetupForm.
	SetupResult ports.SetupFormData
	// Err is returned by both forms when set.
	Err error

	// ConnectionCalled tracks whether ConnectionForm was invoked.
	ConnectionCalled bool
	// SetupCalled tracks whether SetupForm was invoked.
	SetupCalled bool
	// ConnectionPrefill captures the prefill passed to ConnectionForm.
	ConnectionPrefill ports.ConnectionFormData
	// SetupPrefill captures the prefill passed to SetupForm.
	SetupPrefill ports.SetupFormData
}

// New returns a new fake dialog provider.
func New() *Provider {
	return &Provider{}
}

// ConnectionForm returns the pre-configured ConnectionResult and Err.
func (p *Provider) ConnectionForm(prefill ports.ConnectionFormData) (ports.ConnectionFormData, error) {
	p.ConnectionCalled = true
	p.ConnectionPrefill = prefill
	if p.Err != nil {
		return prefill, p.Err
	}
	return p.ConnectionResult, nil
}

// SetupForm returns the pre-configured SetupResult and Err.
func (p *Provider) SetupForm(prefill ports.SetupFormData) (ports.SetupFormData, error) {
	p.SetupCalled = true
	p.SetupPrefill = prefill
	if p.Err != nil {
		return prefill, p.Err
	}
	return p.SetupResult, nil
}

// Ensure Provider implements ports.DialogProvider.
var _ ports.DialogProvider = (*Provider)(nil)
