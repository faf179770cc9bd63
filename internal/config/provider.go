package config

import "sync"

// Provider hands out the current configuration. The file watcher calls
// Update; the dispatch worker calls Current before every delivery
// attempt, so endpoint and credential changes apply to the next attempt
// without touching whatever was already cached.
//
// Callers must treat the returned Config as read-only.
type Provider struct {
	mu  sync.RWMutex
	cur *Config
}

// NewProvider returns a Provider seeded with cfg.
func NewProvider(cfg *Config) *Provider {
	return &Provider{cur: cfg}
}

// Current returns the most recently installed configuration.
func (p *Provider) Current() *Config {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cur
}

// Update installs cfg as the current configuration.
func (p *Provider) Update(cfg *Config) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cur = cfg
}
