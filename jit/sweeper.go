package jit

import (
	"context"
	"time"

	"github.com/juju/clock"
	"github.com/juju/loggo"
	"gopkg.in/tomb.v2"
)

var logger = loggo.GetLogger("goaccess.jit")

// SweepObserver is called after every sweep with the number of grants
// revoked and the sweep error, if any.
type SweepObserver func(revoked int, err error)

// Sweeper periodically revokes expired grants. It runs until killed and is
// safe to run alongside any number of requests, since each sweep is one
// idempotent store statement.
type Sweeper struct {
	tomb     tomb.Tomb
	workflow *Workflow
	clock    clock.Clock
	interval time.Duration
	observe  SweepObserver
}

// NewSweeper starts a sweeper for w on clk at w's configured interval.
// observe may be nil.
func NewSweeper(w *Workflow, clk clock.Clock, observe SweepObserver) *Sweeper {
	if clk == nil {
		clk = clock.WallClock
	}
	s := &Sweeper{
		workflow: w,
		clock:    clk,
		interval: w.Config().SweepInterval,
		observe:  observe,
	}
	s.tomb.Go(s.loop)
	return s
}

// Kill asks the sweeper to stop.
func (s *Sweeper) Kill() {
	s.tomb.Kill(nil)
}

// Wait blocks until the sweeper has stopped.
func (s *Sweeper) Wait() error {
	return s.tomb.Wait()
}

func (s *Sweeper) loop() error {
	for {
		select {
		case <-s.tomb.Dying():
			return tomb.ErrDying
		case <-s.clock.After(s.interval):
			ctx := s.tomb.Context(context.Background())
			n, err := s.workflow.SweepExpired(ctx)
			if err != nil {
				logger.Warningf("expired grant sweep failed: %v", err)
			} else if n > 0 {
				logger.Infof("revoked %d expired grants", n)
			}
			if s.observe != nil {
				s.observe(n, err)
			}
		}
	}
}
