package terminology

import "context"

// Provider allows external validation of code tables that are not
// configured locally, typically site-defined user tables held by a
// master-file service.
//
// When configured, the Registry delegates validation of codes from unknown
// tables to this provider instead of skipping the check.
//
// If the provider returns an error, the Registry accepts the code
// (fail-open), so validation is not broken by the service being
// unavailable.
type Provider interface {
	// ValidateCode checks if code is a member of table.
	ValidateCode(ctx context.Context, table, code string) (bool, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, table, code string) (bool, error)

// ValidateCode calls f(ctx, table, code).
func (f ProviderFunc) ValidateCode(ctx context.Context, table, code string) (bool, error) {
	return f(ctx, table, code)
}

// SetProvider configures an external terminology provider.
// Pass nil to remove a previously set provider.
func (r *Registry) SetProvider(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.provider = p
}

// Provider returns the configured external provider, or nil.
func (r *Registry) Provider() Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.provider
}
