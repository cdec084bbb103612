// Package gogroup manages goroutines that share one cancelable context.
package gogroup

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
)

// GoGroup is a group of managed goroutines sharing one cancelable context.
//
// Routines launched through a group never panic into the runtime: a panic is
// recovered and reported as a PanicError. A failing routine either cancels the
// whole group (Go, Run) or is reported and started again (GoRestart).
type GoGroup interface {
	context.Context

	// Cancel the group, reporting err when it is not nil.
	Cancel(err error)
	Canceled() bool

	// Go runs f in a new goroutine. An error or panic cancels the group.
	Go(f func(GoGroup) error)
	// GoRestart runs f in a new goroutine and starts it again whenever it
	// returns before the group is canceled.
	GoRestart(f func(GoGroup) error)
	// Run calls f in the current goroutine, with Go's failure handling.
	Run(f func(GoGroup) error)

	// Wait for every routine to exit and return the errors collected by
	// the default callback.
	Wait() []error
	// ErrCallback replaces the error handler; nil restores collection for Wait.
	ErrCallback(func(error))

	// Child derives a group canceled with this one. Failures in the child
	// leave the parent running.
	Child(name string) GoGroup
	Name() string
}

// PanicError is a recovered panic.
type PanicError struct {
	Msg   interface{}
	Stack string
}

func (pe PanicError) Error() string {
	return fmt.Sprint(pe.Msg)
}

// New creates a group under ctxt, or under context.Background when ctxt is nil.
func New(ctxt context.Context, name string) GoGroup {
	if ctxt == nil {
		ctxt = context.Background()
	}
	g := &group{name: name}
	g.Context, g.cancel = context.WithCancel(ctxt)
	g.ErrCallback(nil)
	return g
}

type group struct {
	context.Context
	cancel context.CancelFunc
	name   string
	wg     sync.WaitGroup

	mu      sync.Mutex
	errs    []error
	onError func(error)
}

func (g *group) Name() string { return g.name }

func (g *group) Cancel(err error) {
	if err != nil {
		g.report(err)
	}
	g.cancel()
}

func (g *group) Canceled() bool {
	return g.Err() != nil
}

func (g *group) Go(f func(GoGroup) error) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		g.call(f, g.Cancel)
	}()
}

func (g *group) GoRestart(f func(GoGroup) error) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		for !g.Canceled() {
			g.call(f, g.report)
		}
	}()
}

func (g *group) Run(f func(GoGroup) error) {
	g.wg.Add(1)
	defer g.wg.Done()
	g.call(f, g.Cancel)
}

// call runs f and hands any error or recovered panic to fail.
func (g *group) call(f func(GoGroup) error, fail func(error)) {
	defer func() {
		if p := recover(); p != nil {
			fail(PanicError{Msg: p, Stack: string(debug.Stack())})
		}
	}()
	if err := f(g); err != nil {
		fail(err)
	}
}

func (g *group) Wait() []error {
	g.wg.Wait()
	g.mu.Lock()
	defer g.mu.Unlock()
	errs := g.errs
	g.errs = nil
	return errs
}

func (g *group) Child(name string) GoGroup {
	if name == "" {
		name = "child"
	}
	c := New(g, g.name+"-"+name).(*group)
	g.mu.Lock()
	c.onError = g.onError
	g.mu.Unlock()
	return c
}

func (g *group) report(err error) {
	g.mu.Lock()
	cb := g.onError
	g.mu.Unlock()
	cb(err)
}

func (g *group) collect(err error) {
	g.mu.Lock()
	g.errs = append(g.errs, err)
	g.mu.Unlock()
}

func (g *group) ErrCallback(f func(error)) {
	if f == nil {
		f = g.collect
	}
	g.mu.Lock()
	g.onError = f
	g.mu.Unlock()
}
