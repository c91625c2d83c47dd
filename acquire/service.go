package acquire

import (
	"context"

	"github.com/Eleven711/ledgersync/libs/log"
	"github.com/Eleven711/ledgersync/libs/service"
)

// Dialer is implemented by whatever owns the node's outbound connections
// so Service can (re)dial configured seed peers without needing to know
// the transport's concrete type.
type Dialer interface {
	DialSeeds(ctx context.Context) error
	Close() error
}

// Service wraps a Registry and Router with the classical start/stop
// lifecycle the rest of this codebase's long-running components use:
// dialing configured peers on start, and releasing the transport on
// stop. Acquisitions already in flight are left to finish or fail on
// their own timers; Stop does not cancel them, since an abrupt restart
// loses no state that a fresh FindOrCreate couldn't rebuild.
type Service struct {
	*service.BaseService

	registry *Registry
	router   *Router
	dialer   Dialer
	logger   log.Logger
}

// NewService returns a Service that, once started, dials dialer's seed
// peers and leaves registry and router ready to drive acquisitions
// against whatever transport feeds them inbound envelopes.
func NewService(registry *Registry, router *Router, dialer Dialer, logger log.Logger) *Service {
	s := &Service{registry: registry, router: router, dialer: dialer, logger: logger}
	s.BaseService = service.NewBaseService(logger, "LedgerAcquireService", s)
	return s
}

// Registry exposes the wrapped Registry for callers that need to start
// acquisitions directly, e.g. an RPC handler taking a hash from a client.
func (s *Service) Registry() *Registry {
	return s.registry
}

// Router exposes the wrapped Router so a transport can feed it inbound
// envelopes.
func (s *Service) Router() *Router {
	return s.router
}

// OnStart implements service.Implementation.
func (s *Service) OnStart(ctx context.Context) error {
	if s.dialer == nil {
		return nil
	}
	return s.dialer.DialSeeds(ctx)
}

// OnStop implements service.Implementation. It does not touch any
// LedgerAcquire still in flight; PeerSet's own timer quiesces those on
// its own once the process that would otherwise drive them is gone.
func (s *Service) OnStop() {
	if s.dialer == nil {
		return
	}
	if err := s.dialer.Close(); err != nil {
		s.logger.Error("closing transport", "err", err)
	}
}
