package mockserver

import (
	"fmt"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/form3tech-oss/pact-consumer/internal/app/contract"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// State is the lifecycle state of a Handle.
type State int32

const (
	StateStarting State = iota
	StateRunning
	StateStopped
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

type commandKind int

const (
	cmdGetURL commandKind = iota
	cmdGetPath
	cmdVerify
	cmdStop
)

func (k commandKind) String() string {
	switch k {
	case cmdGetURL:
		return "url"
	case cmdGetPath:
		return "path"
	case cmdVerify:
		return "verify"
	case cmdStop:
		return "stop"
	}
	return fmt.Sprintf("command(%d)", int(k))
}

type command struct {
	kind   commandKind
	suffix string
}

type response struct {
	url          string
	verification *Verification
	err          error
}

// bridge is the channel pair between the façade and the worker. The worker
// only references the bridge, never the Handle, so an unreachable Handle
// can be finalized while the worker still runs.
type bridge struct {
	mu        sync.Mutex
	stopped   bool
	commands  chan command
	responses chan response
	done      chan struct{}
	state     atomic.Int32
}

// Handle is a running mock server. Its methods are safe for concurrent use;
// commands are answered one at a time in the order they were sent.
type Handle struct {
	b *bridge
}

// Start serves pact on an ephemeral port. It returns immediately; the
// server is created by a dedicated worker and the first command waits for
// it. If the server cannot start every command fails with
// ErrServerUnavailable.
func Start(pact *contract.Pact, cfg Config) *Handle {
	b := &bridge{
		commands:  make(chan command, 1),
		responses: make(chan response, 1),
		done:      make(chan struct{}),
	}
	go b.run(pact, cfg)

	h := &Handle{b: b}
	runtime.SetFinalizer(h, func(h *Handle) {
		log.Debug("releasing unreachable mock server handle")
		_ = h.b.stop()
	})
	return h
}

func (b *bridge) run(pact *contract.Pact, cfg Config) {
	var srv *server
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("mock server worker panicked: %v", r)
			b.state.Store(int32(StateFailed))
		}
		if srv != nil {
			srv.shutdown()
		}
		if State(b.state.Load()) != StateFailed {
			b.state.Store(int32(StateStopped))
		}
		close(b.responses)
		close(b.done)
	}()

	srv, err := newServer(pact, cfg)
	if err != nil {
		log.WithError(err).Error("mock server failed to start")
		b.state.Store(int32(StateFailed))
		return
	}
	b.state.Store(int32(StateRunning))

	for cmd := range b.commands {
		switch cmd.kind {
		case cmdStop:
			return
		case cmdGetURL:
			b.responses <- response{url: srv.url}
		case cmdGetPath:
			b.responses <- response{url: srv.url + "/" + strings.TrimLeft(cmd.suffix, "/")}
		case cmdVerify:
			b.responses <- response{verification: srv.verification()}
		default:
			b.responses <- response{err: errors.Errorf("unknown %s", cmd.kind)}
		}
	}
}

// call sends one command and waits for its response. The lock keeps one
// command outstanding per handle.
func (b *bridge) call(cmd command) (response, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stopped {
		return response{}, errors.Wrapf(ErrChannelClosed, "%s", cmd.kind)
	}
	select {
	case <-b.done:
		return response{}, errors.Wrapf(ErrServerUnavailable, "%s: worker exited", cmd.kind)
	default:
	}

	select {
	case b.commands <- cmd:
	case <-b.done:
		return response{}, errors.Wrapf(ErrServerUnavailable, "%s: worker exited", cmd.kind)
	}

	resp, ok := <-b.responses
	if !ok {
		return response{}, errors.Wrapf(ErrServerUnavailable, "%s: worker exited", cmd.kind)
	}
	return resp, resp.err
}

// stop sends the single Stop command without waiting for the worker. A
// second stop, or a stop after the worker died, is a no-op.
func (b *bridge) stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return nil
	}
	b.stopped = true
	select {
	case b.commands <- command{kind: cmdStop}:
	case <-b.done:
	}
	return nil
}

// URL returns the base URL of the server, e.g. http://127.0.0.1:53121.
func (h *Handle) URL() (string, error) {
	resp, err := h.b.call(command{kind: cmdGetURL})
	return resp.url, err
}

// Path returns the URL of suffix under the server, e.g. Path("/orders").
func (h *Handle) Path(suffix string) (string, error) {
	resp, err := h.b.call(command{kind: cmdGetPath, suffix: suffix})
	return resp.url, err
}

// Verify reports which requests did not match and which interactions were
// never exercised so far.
func (h *Handle) Verify() (*Verification, error) {
	resp, err := h.b.call(command{kind: cmdVerify})
	return resp.verification, err
}

// Stop shuts the server down. It does not wait for the port to be released;
// use Done for that. Stopping twice is not an error.
func (h *Handle) Stop() error {
	return h.b.stop()
}

// Close stops the server and drops the finalizer.
func (h *Handle) Close() error {
	runtime.SetFinalizer(h, nil)
	return h.b.stop()
}

// Done is closed once the worker exited and the server is shut down.
func (h *Handle) Done() <-chan struct{} {
	return h.b.done
}

func (h *Handle) State() State {
	return State(h.b.state.Load())
}
