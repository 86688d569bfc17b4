// Package explorer runs catalog navigation and selection on a background
// worker and exposes it to a UI through a non-blocking facade.
//
// Every page the worker shows gets a new, strictly increasing page id. The
// facade drops updates that belong to pages it has already left, so a UI
// polling PollUpdate only ever sees messages for the page on screen.
package explorer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"runtime"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/justyntemme/photoframe/internal/logging"
	"github.com/justyntemme/photoframe/internal/metrics"
	"github.com/justyntemme/photoframe/internal/photo"
	"github.com/justyntemme/photoframe/internal/store"
)

var (
	// ErrSessionFailed is returned after the worker reported a FailureUpdate.
	ErrSessionFailed = errors.New("explorer: session failed")
	// ErrClosed is returned for calls made after Close.
	ErrClosed = errors.New("explorer: session closed")
)

const (
	DefaultItemsPerPage = 9
	DefaultIdleWait     = 100 * time.Millisecond
	defaultCacheEntries = 16
)

// Options configures a session.
type Options struct {
	ItemsPerPage int
	// IdleWait bounds how long the worker waits for a request when it has
	// no display work left.
	IdleWait time.Duration
	// Bounds is the box photos are fitted into. Zero keeps the original size.
	Bounds    image.Point
	Decoder   photo.Decoder
	PhotoRoot string
}

func (o *Options) setDefaults() {
	if o.ItemsPerPage <= 0 {
		o.ItemsPerPage = DefaultItemsPerPage
	}
	if o.IdleWait <= 0 {
		o.IdleWait = DefaultIdleWait
	}
	if o.Decoder == nil {
		o.Decoder = photo.NewCache(photo.FileDecoder{}, defaultCacheEntries)
	}
}

// Explorer is one explorer session. Its methods must be called from a single
// goroutine (the UI).
type Explorer struct {
	id      uuid.UUID
	log     *zap.Logger
	db      *store.DB
	opts    Options
	handle  *sessionHandle
	cleanup runtime.Cleanup

	current int64
	started bool
	closed  bool
	failure error
}

// sessionHandle is what the worker and the cleanup share; it must not
// reference the Explorer so the Explorer can become unreachable.
type sessionHandle struct {
	requests  *mailbox[request]
	responses *mailbox[response]
	done      chan struct{}
	exitErr   error // written by the worker before done is closed
}

// New creates a session over db. No worker runs until Start.
func New(db *store.DB, opts Options) *Explorer {
	opts.setDefaults()
	id := uuid.New()
	return &Explorer{
		id:      id,
		log:     logging.L().With(zap.String("session", id.String())),
		db:      db,
		opts:    opts,
		current: -1,
		handle: &sessionHandle{
			requests:  newMailbox[request](),
			responses: newMailbox[response](),
			done:      make(chan struct{}),
		},
	}
}

// ID identifies the session in logs.
func (e *Explorer) ID() uuid.UUID {
	return e.id
}

// Start launches the worker and blocks until the root page is ready. ctx
// values are carried into the worker; cancellation is not.
func (e *Explorer) Start(ctx context.Context) (PageDescriptor, error) {
	if e.closed {
		return PageDescriptor{}, ErrClosed
	}
	if e.started {
		panic("explorer: Start called twice")
	}
	e.started = true

	w := &worker{
		ctx:       context.WithoutCancel(ctx),
		db:        e.db,
		opts:      e.opts,
		log:       e.log,
		requests:  e.handle.requests,
		responses: e.handle.responses,
		done:      e.handle.done,
		exitErr:   &e.handle.exitErr,
	}
	go w.run()

	e.cleanup = runtime.AddCleanup(e, func(h *sessionHandle) {
		// forgotten session: close without committing
		h.requests.put(closeRequest{})
	}, e.handle)

	e.log.Info("explorer session started", zap.Int("items_per_page", e.opts.ItemsPerPage))
	e.handle.requests.put(startRequest{})
	return e.awaitPage()
}

func (e *Explorer) usable() error {
	if !e.started {
		panic("explorer: used before Start")
	}
	if e.closed {
		return ErrClosed
	}
	if e.failure != nil {
		return fmt.Errorf("%w: %v", ErrSessionFailed, e.failure)
	}
	return nil
}

// GoInto opens item index of the current directory page.
func (e *Explorer) GoInto(index int) (PageDescriptor, error) {
	if err := e.usable(); err != nil {
		return PageDescriptor{}, err
	}
	e.handle.requests.put(goIntoRequest{pageID: e.current, index: index})
	return e.awaitPage()
}

// GoTo moves up, or to the previous or next page of the current directory.
func (e *Explorer) GoTo(d Direction) (PageDescriptor, error) {
	if err := e.usable(); err != nil {
		return PageDescriptor{}, err
	}
	e.handle.requests.put(goToRequest{pageID: e.current, direction: d})
	return e.awaitPage()
}

// Select sets item index of the current page (0 on a photo page). The
// result arrives as a SelectionUpdate.
func (e *Explorer) Select(index int, selected bool) error {
	if err := e.usable(); err != nil {
		return err
	}
	e.handle.requests.put(selectRequest{pageID: e.current, index: index, selected: selected})
	return nil
}

// SelectAll sets the whole catalog.
func (e *Explorer) SelectAll(selected bool) error {
	if err := e.usable(); err != nil {
		return err
	}
	e.handle.requests.put(selectAllRequest{pageID: e.current, selected: selected})
	return nil
}

// CommitOrCancel persists (save) or discards every edit since Start or the
// previous CommitOrCancel.
func (e *Explorer) CommitOrCancel(save bool) error {
	if err := e.usable(); err != nil {
		return err
	}
	e.handle.requests.put(commitRequest{save: save})
	return nil
}

// awaitPage blocks for the next page descriptor, dropping updates of the
// page being left.
func (e *Explorer) awaitPage() (PageDescriptor, error) {
	for {
		r := e.handle.responses.get()
		if r.page != nil {
			if r.page.PageID <= e.current {
				panic(fmt.Sprintf("explorer: page id %d does not follow %d", r.page.PageID, e.current))
			}
			e.current = r.page.PageID
			return *r.page, nil
		}
		if f, ok := r.update.(FailureUpdate); ok {
			e.failure = f.Err
			return PageDescriptor{}, fmt.Errorf("%w: %v", ErrSessionFailed, f.Err)
		}
		metrics.StaleUpdatesDropped.Inc()
	}
}

// PollUpdate returns the next update for the current page, or false when
// none is queued. It never blocks. A FailureUpdate is always returned and
// ends the session.
func (e *Explorer) PollUpdate() (Update, bool) {
	if !e.started || e.closed {
		return nil, false
	}
	for {
		r, ok := e.handle.responses.tryGet()
		if !ok {
			return nil, false
		}
		if r.page != nil {
			panic(fmt.Sprintf("explorer: unexpected page descriptor %d while polling", r.page.PageID))
		}
		if f, ok := r.update.(FailureUpdate); ok {
			e.failure = f.Err
			return f, true
		}
		switch id := r.update.PageID(); {
		case id < e.current:
			metrics.StaleUpdatesDropped.Inc()
			continue
		case id > e.current:
			panic(fmt.Sprintf("explorer: update for future page %d, current is %d", id, e.current))
		}
		return r.update, true
	}
}

// Close stops the worker and waits for it. Edits not yet committed are
// rolled back. The error that ended the worker, including a failed rollback
// on close, is returned wrapped in ErrSessionFailed. Close must be called at
// most once and never while a GoInto or GoTo is outstanding.
func (e *Explorer) Close() error {
	if e.closed {
		panic("explorer: Close called twice")
	}
	e.closed = true
	if !e.started {
		return nil
	}
	e.cleanup.Stop()
	e.handle.requests.put(closeRequest{})
	<-e.handle.done
	if err := e.handle.exitErr; err != nil {
		return fmt.Errorf("%w: %v", ErrSessionFailed, err)
	}
	return nil
}

// Failed reports the error that ended the session, if any.
func (e *Explorer) Failed() error {
	return e.failure
}
