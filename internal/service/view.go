// Package service holds the backoffice views. Each view opens its own
// subscriptions on Mount and releases them on Unmount; views never share
// state with one another.
package service

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrNotConfirmed is returned when a destructive action is requested
	// without confirmation. No backend call is made.
	ErrNotConfirmed = errors.New("action requires confirmation")
	// ErrTerminalStatus is returned for transitions out of Approved or Rejected.
	ErrTerminalStatus = errors.New("ticket already processed")
	// ErrWriteFailed wraps backend write failures surfaced to the operator.
	ErrWriteFailed = errors.New("write rejected by backend")
	// ErrTitleRequired is returned when a movie is saved without a title.
	ErrTitleRequired = errors.New("title is required")
	// ErrInvalidContentRating is returned for unknown rating labels.
	ErrInvalidContentRating = errors.New("invalid content rating")
	// ErrInvalidPlan is returned for unknown subscription plans.
	ErrInvalidPlan = errors.New("invalid plan")
	// ErrUploadFailed wraps blob storage failures; the save is aborted.
	ErrUploadFailed = errors.New("image upload failed")
)

// Readier is implemented by views that load asynchronously.
type Readier interface {
	Ready() <-chan struct{}
}

// WaitReady blocks until v delivered its first state or ctx is done.
func WaitReady(ctx context.Context, v Readier) error {
	select {
	case <-v.Ready():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// readyFlag is closed once, on the first snapshot or error.
type readyFlag struct {
	once sync.Once
	ch   chan struct{}
}

func newReadyFlag() readyFlag {
	return readyFlag{ch: make(chan struct{})}
}

func (r *readyFlag) mark() {
	r.once.Do(func() { close(r.ch) })
}

func (r *readyFlag) Ready() <-chan struct{} {
	return r.ch
}

func notify(fn func()) {
	if fn != nil {
		fn()
	}
}
