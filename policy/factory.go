package policy

import (
	"fmt"
	"sync"

	paywall "github.com/lnpaywall/go-paywall"
)

// Factory resolves the fingerprint policy for a payment declaration. Built-in
// policies are stateless singletons; custom policies are registered once by
// key and shared across requests, so they must be safe for concurrent use.
type Factory struct {
	mu     sync.RWMutex
	custom map[string]RequestPolicy
}

// NewFactory returns a factory with no custom policies registered.
func NewFactory() *Factory {
	return &Factory{custom: make(map[string]RequestPolicy)}
}

// RegisterCustom makes policy available under the given key for declarations
// using RequestPolicyCustom.
func (f *Factory) RegisterCustom(key string, policy RequestPolicy) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.custom[key] = policy
}

// Policy returns the fingerprint policy selected by the declaration. An empty
// policy type defaults to URL and method.
func (f *Factory) Policy(declaration *paywall.PaymentRequired) (RequestPolicy, error) {
	switch declaration.RequestPolicy {
	case "", paywall.RequestPolicyURLAndMethod:
		return URLAndMethod{}, nil
	case paywall.RequestPolicyURLMethodAndParameters:
		return URLMethodAndParameters{}, nil
	case paywall.RequestPolicyWithBody:
		return WithBody{}, nil
	case paywall.RequestPolicyCustom:
		if declaration.CustomPolicy == "" {
			return nil, fmt.Errorf("policy: declaration selects a custom policy but names none")
		}
		f.mu.RLock()
		p, ok := f.custom[declaration.CustomPolicy]
		f.mu.RUnlock()
		if !ok {
			return nil, fmt.Errorf("policy: no custom policy registered under %q", declaration.CustomPolicy)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("policy: unknown request policy type %q", declaration.RequestPolicy)
	}
}
