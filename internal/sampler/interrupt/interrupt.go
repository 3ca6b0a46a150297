// Package interrupt has the sources that can stop a run early.  They are all
// polled by the sampling loop and never block it.
package interrupt

import (
	"bufio"
	"io"
	"os"
	"os/signal"
	"sync/atomic"

	"github.com/signalfx/sqldtu-perfmon/internal/sampler"
	log "github.com/sirupsen/logrus"
)

var logger = log.WithFields(log.Fields{"component": "interrupt"})

// Flag is an interrupt that is set once and stays set
type Flag struct {
	set int32
}

var _ sampler.Interrupter = &Flag{}

// Set the flag.  Safe to call from any goroutine.
func (f *Flag) Set() {
	atomic.StoreInt32(&f.set, 1)
}

// Interrupted is true once Set has been called
func (f *Flag) Interrupted() bool {
	return atomic.LoadInt32(&f.set) == 1
}

// Keyboard is interrupted by a key press on the console.  Console input is
// line buffered, so that means Enter.
type Keyboard struct {
	Flag
	presses chan struct{}
	closed  chan struct{}
}

// NewKeyboard starts reading in, which is normally os.Stdin, in the
// background
func NewKeyboard(in io.Reader) *Keyboard {
	k := &Keyboard{
		presses: make(chan struct{}, 1),
		closed:  make(chan struct{}),
	}
	go k.read(in)
	return k
}

func (k *Keyboard) read(in io.Reader) {
	defer close(k.closed)

	r := bufio.NewReader(in)
	for {
		if _, err := r.ReadString('\n'); err != nil {
			if err != io.EOF {
				logger.WithError(err).Debug("Stopped reading console input")
			}
			return
		}
		k.Set()
		select {
		case k.presses <- struct{}{}:
		default:
		}
	}
}

// Wait blocks until the next key press, or until the input is closed.  A
// press that happened before Wait was called doesn't count.
func (k *Keyboard) Wait() {
	select {
	case <-k.presses:
	default:
	}

	select {
	case <-k.presses:
	case <-k.closed:
	}
}

// WatchSignals returns a flag that is set when one of sigs is received.  The
// returned func stops watching.
func WatchSignals(sigs ...os.Signal) (*Flag, func()) {
	f := &Flag{}
	ch := make(chan os.Signal, 1)
	done := make(chan struct{})
	signal.Notify(ch, sigs...)

	go func() {
		for {
			select {
			case s := <-ch:
				logger.Infof("Received %s, stopping after the current sample", s)
				f.Set()
			case <-done:
				return
			}
		}
	}()

	return f, func() {
		signal.Stop(ch)
		close(done)
	}
}

// Any is interrupted when any of its members is.  Nil members are ignored.
type Any []sampler.Interrupter

var _ sampler.Interrupter = Any{}

// Interrupted polls every member
func (a Any) Interrupted() bool {
	for _, i := range a {
		if i != nil && i.Interrupted() {
			return true
		}
	}
	return false
}
