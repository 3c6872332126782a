package infra

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"fixedwindow-gateway/middleware/ratelimit/domain"
)

// Pinger é o mínimo que o Supervisor precisa do store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Supervisor é dono do ciclo de vida da conexão com o store:
//
//	DISCONNECTED -> CONNECTING -> READY -> CONNECTING (erro) ...
//
// Uma única goroutine (Start) agenda as reconexões. As tentativas são
// ilimitadas, com espera fixa (backoff) entre elas. Falhas vistas no caminho
// da requisição só chegam aqui via ReportFailure, que apenas acorda o loop.
type Supervisor struct {
	pinger      Pinger
	closer      io.Closer
	backoff     time.Duration
	healthEvery time.Duration
	pingTimeout time.Duration
	logger      *slog.Logger
	onChange    func(domain.ConnState)

	mu      sync.Mutex
	state   domain.ConnState
	readyCh chan struct{} // fechado enquanto READY

	kick   chan struct{}
	cancel context.CancelFunc
	done   chan struct{}
}

type SupervisorOption func(*Supervisor)

// WithBackoff define a espera entre tentativas de conexão (padrão 5s).
func WithBackoff(d time.Duration) SupervisorOption {
	return func(s *Supervisor) { s.backoff = d }
}

// WithHealthEvery define o intervalo do health-check em READY (padrão 2s).
func WithHealthEvery(d time.Duration) SupervisorOption {
	return func(s *Supervisor) { s.healthEvery = d }
}

func WithPingTimeout(d time.Duration) SupervisorOption {
	return func(s *Supervisor) { s.pingTimeout = d }
}

func WithLogger(l *slog.Logger) SupervisorOption {
	return func(s *Supervisor) { s.logger = l }
}

// WithCloser registra o recurso liberado em Close (ex: *redis.Client).
func WithCloser(c io.Closer) SupervisorOption {
	return func(s *Supervisor) { s.closer = c }
}

// WithStateListener é chamado a cada transição de estado.
func WithStateListener(fn func(domain.ConnState)) SupervisorOption {
	return func(s *Supervisor) { s.onChange = fn }
}

func NewSupervisor(p Pinger, opts ...SupervisorOption) *Supervisor {
	s := &Supervisor{
		pinger:      p,
		backoff:     5 * time.Second,
		healthEvery: 2 * time.Second,
		pingTimeout: 2 * time.Second,
		readyCh:     make(chan struct{}),
		kick:        make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return s
}

func (s *Supervisor) State() domain.ConnState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Supervisor) Ready() bool { return s.State() == domain.StateReady }

// WaitReady bloqueia até READY ou até o ctx encerrar.
func (s *Supervisor) WaitReady(ctx context.Context) error {
	s.mu.Lock()
	ch := s.readyCh
	s.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ReportFailure avisa que uma operação no store falhou. Não bloqueia e não
// reconecta aqui: só pede ao loop um health-check imediato.
func (s *Supervisor) ReportFailure(error) {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// Start inicia o loop de conexão. Chamar uma única vez; pare com Close.
func (s *Supervisor) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		s.run(ctx)
	}()
}

// Close encerra o loop, passa para DISCONNECTED e libera a conexão.
func (s *Supervisor) Close() error {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
	s.setState(domain.StateDisconnected, nil)
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

func (s *Supervisor) run(ctx context.Context) {
	attempt := 0
	for {
		if s.State() != domain.StateReady {
			s.setState(domain.StateConnecting, nil)
			attempt++
			if err := s.ping(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				s.logger.Warn("store connect failed", "attempt", attempt, "retry_in", s.backoff, "err", err)
				if !sleep(ctx, s.backoff) {
					return
				}
				continue
			}
			attempt = 0
			s.setState(domain.StateReady, nil)
			continue
		}

		t := time.NewTimer(s.healthEvery)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		case <-s.kick:
			t.Stop()
		}

		if err := s.ping(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.setState(domain.StateConnecting, err)
		}
	}
}

func (s *Supervisor) ping(ctx context.Context) error {
	pctx, cancel := context.WithTimeout(ctx, s.pingTimeout)
	defer cancel()
	return s.pinger.Ping(pctx)
}

func (s *Supervisor) setState(next domain.ConnState, cause error) {
	s.mu.Lock()
	prev := s.state
	if prev == next {
		s.mu.Unlock()
		return
	}
	switch {
	case next == domain.StateReady:
		close(s.readyCh)
	case prev == domain.StateReady:
		s.readyCh = make(chan struct{})
	}
	s.state = next
	s.mu.Unlock()

	switch {
	case next == domain.StateReady:
		s.logger.Info("store connected")
	case prev == domain.StateReady:
		s.logger.Warn("store disconnected", "state", next.String(), "err", cause)
	default:
		s.logger.Debug("store state", "from", prev.String(), "to", next.String())
	}
	if s.onChange != nil {
		s.onChange(next)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
