package lgtv

import (
	"sync"

	"github.com/nerrad567/gray-logic-lgtv/internal/rs232"
)

// Handle owns the link to one set and serialises every exchange on a
// single worker goroutine. Entities and the validation sequence talk to
// the set only through a Handle.
//
// Thread Safety: All methods are safe for concurrent use. Request and
// Refresh block until the worker has run them.
type Handle struct {
	port    string
	tvID    int
	link    Link
	metrics *Metrics

	jobs      chan func(Link)
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error

	statusMu sync.RWMutex
	status   rs232.Status
}

// NewHandle starts the worker for link. metrics may be nil.
func NewHandle(port string, tvID int, link Link, metrics *Metrics) *Handle {
	h := &Handle{
		port:    port,
		tvID:    tvID,
		link:    link,
		metrics: metrics,
		jobs:    make(chan func(Link)),
		done:    make(chan struct{}),
		status:  link.Status(),
	}

	h.wg.Add(1)
	go h.run()
	return h
}

// Port returns the serial port the handle is bound to.
func (h *Handle) Port() string { return h.port }

// TVID returns the set ID the handle is bound to.
func (h *Handle) TVID() int { return h.tvID }

// Request sends one command on the worker and waits for the reply.
func (h *Handle) Request(category, action string) (bool, error) {
	var (
		ok  bool
		err error
	)
	if serr := h.submit(func(l Link) { ok, err = l.Request(category, action) }); serr != nil {
		return false, serr
	}
	h.metrics.observeRequest(category, ok, err)
	return ok, err
}

// Refresh re-reads the set's status on the worker.
func (h *Handle) Refresh() error {
	var err error
	if serr := h.submit(func(l Link) { err = l.UpdateStatus() }); serr != nil {
		return serr
	}
	return err
}

// Status returns the status cached after the last exchange. It never
// touches the serial port.
func (h *Handle) Status() rs232.Status {
	h.statusMu.RLock()
	defer h.statusMu.RUnlock()

	s := h.status
	s.Sources = append([]string(nil), h.status.Sources...)
	return s
}

// Close stops the worker and closes the link. Pending and later calls
// return ErrHandleClosed. Safe to call multiple times.
func (h *Handle) Close() error {
	h.closeOnce.Do(func() {
		close(h.done)
		h.wg.Wait()
		h.closeErr = h.link.Close()
	})
	return h.closeErr
}

// submit hands fn to the worker and waits until it has run.
func (h *Handle) submit(fn func(Link)) error {
	finished := make(chan struct{})
	job := func(l Link) {
		defer close(finished)
		fn(l)
	}

	select {
	case h.jobs <- job:
	case <-h.done:
		return ErrHandleClosed
	}
	<-finished
	return nil
}

// run is the worker loop; it is the only caller of the link.
func (h *Handle) run() {
	defer h.wg.Done()

	for {
		select {
		case <-h.done:
			return
		case job := <-h.jobs:
			job(h.link)

			s := h.link.Status()
			h.statusMu.Lock()
			h.status = s
			h.statusMu.Unlock()
		}
	}
}
