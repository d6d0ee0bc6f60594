package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/dshills/keyshift/internal/script"
)

// Reloader keeps one profile applied to a target and swaps it for a new
// one on Reload. Engine-section changes need a restart and are only
// logged.
type Reloader struct {
	mu      sync.Mutex
	path    string
	target  Target
	rt      *script.Runtime
	log     logrus.FieldLogger
	env     LookupFunc
	current *Profile
	applied *Applied
}

// ReloaderOption configures a Reloader.
type ReloaderOption func(*Reloader)

// WithReloadLogger sets the logger.
func WithReloadLogger(log logrus.FieldLogger) ReloaderOption {
	return func(r *Reloader) {
		if log != nil {
			r.log = log
		}
	}
}

// WithEnv sets the environment lookup used for overrides.
func WithEnv(lookup LookupFunc) ReloaderOption {
	return func(r *Reloader) {
		r.env = lookup
	}
}

// NewReloader creates a reloader for the profile at path. Nothing is
// applied until Reload is called.
func NewReloader(path string, t Target, rt *script.Runtime, opts ...ReloaderOption) *Reloader {
	r := &Reloader{
		path:   path,
		target: t,
		rt:     rt,
		log:    logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Profile returns the profile currently applied, or nil.
func (r *Reloader) Profile() *Profile {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Reload loads the file and replaces the applied profile. When the new
// profile fails to load or apply, the previous one stays in effect.
func (r *Reloader) Reload() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	next, err := Load(r.path)
	if err == nil {
		err = next.ApplyEnv(r.env)
	}
	if err != nil {
		return err
	}

	if err := r.applied.Remove(r.target); err != nil {
		r.log.WithError(err).Warn("config: removing previous profile")
	}
	applied, err := next.Apply(r.target, r.rt)
	if err != nil {
		if r.current != nil {
			restored, rerr := r.current.Apply(r.target, r.rt)
			if rerr != nil {
				r.current, r.applied = nil, nil
				return errors.Join(err, fmt.Errorf("restoring previous profile: %w", rerr))
			}
			r.applied = restored
		}
		return err
	}

	if r.current != nil && r.current.Engine != next.Engine {
		r.log.Warn("config: engine settings changed; restart to apply them")
	}
	r.current, r.applied = next, applied
	r.log.WithFields(logrus.Fields{
		"path":          r.path,
		"registrations": applied.Len(),
	}).Info("config: profile applied")
	return nil
}

// Close removes the applied profile.
func (r *Reloader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	err := r.applied.Remove(r.target)
	r.current, r.applied = nil, nil
	return err
}
