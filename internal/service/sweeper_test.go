package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type countingPurger struct {
	calls atomic.Int32
	err   error
}

func (p *countingPurger) PurgeExpired(context.Context) (int64, error) {
	p.calls.Add(1)
	return 1, p.err
}

func TestSweeper_RunsUntilCancelled(t *testing.T) {
	t.Parallel()

	p := &countingPurger{err: errors.New("db down")}
	s := &Sweeper{Purger: p, Interval: 5 * time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return p.calls.Load() >= 2 }, time.Second, time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}

func TestSweeper_DisabledInterval(t *testing.T) {
	t.Parallel()

	p := &countingPurger{}
	s := &Sweeper{Purger: p}
	s.Run(context.Background())
	assert.Zero(t, p.calls.Load())
}

type blockingPurger struct {
	started chan struct{}
	release chan struct{}
}

func (p *blockingPurger) PurgeExpired(context.Context) (int64, error) {
	select {
	case p.started <- struct{}{}:
	default:
	}
	<-p.release
	return 0, nil
}

func TestSweeper_RunReturnsOnlyAfterInFlightPurge(t *testing.T) {
	t.Parallel()

	p := &blockingPurger{started: make(chan struct{}, 1), release: make(chan struct{})}
	s := &Sweeper{Purger: p, Interval: time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	<-p.started
	cancel()

	select {
	case <-done:
		t.Fatal("Run returned while a purge was still running")
	case <-time.After(20 * time.Millisecond):
	}

	close(p.release)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after the purge finished")
	}
}
