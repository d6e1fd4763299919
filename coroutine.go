package contracts

import (
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"sync"
)

// ErrExhausted is returned when a finished generator is resumed again.
var ErrExhausted = errors.New("contracts: generator exhausted")

// Resumable is a bidirectional generator. Resume sends a value in and receives the next produced
// value; done reports that the generator completed and value is its completion value. The value
// sent with the first Resume is discarded, as nothing is waiting for it yet.
type Resumable interface {
	Resume(site *Location, sent any) (value any, done bool, err error)
}

// Puller is a pull-only iterator. ok is false once the source is exhausted.
type Puller interface {
	Next() (value any, ok bool, err error)
}

// Coroutine runs a generator body on its own goroutine, advancing only while a Resume call is
// waiting on it. It is not safe for concurrent Resume calls.
type Coroutine struct {
	body    func(yield func(any) any) any
	loc     *Location
	started bool
	done    bool

	resume chan any
	out    chan coStep
	stop   chan struct{}
	once   sync.Once
}

type coStep struct {
	value any
	done  bool
	err   error
}

// NewCoroutine returns a generator for body. body calls yield to produce a value and receives
// the next sent value; its return value completes the generator.
func NewCoroutine(body func(yield func(any) any) any) *Coroutine {
	return &Coroutine{
		body:   body,
		loc:    funcLocation(reflect.ValueOf(body)),
		resume: make(chan any),
		out:    make(chan coStep),
		stop:   make(chan struct{}),
	}
}

// At overrides the location reported for the generator body.
func (c *Coroutine) At(loc *Location) *Coroutine {
	c.loc = loc
	return c
}

func (c *Coroutine) Location() *Location { return c.loc }

func (c *Coroutine) Resume(_ *Location, sent any) (any, bool, error) {
	if c.done {
		return nil, true, ErrExhausted
	}
	select {
	case <-c.stop:
		c.done = true
		return nil, true, ErrExhausted
	default:
	}
	if !c.started {
		c.started = true
		go c.run()
	}
	select {
	case c.resume <- sent:
	case <-c.stop:
		c.done = true
		return nil, true, ErrExhausted
	}
	st := <-c.out
	if st.done {
		c.done = true
	}
	return st.value, st.done, st.err
}

// Next adapts the coroutine to Puller; the completion value is dropped.
func (c *Coroutine) Next() (any, bool, error) {
	v, done, err := c.Resume(nil, nil)
	if err != nil {
		if errors.Is(err, ErrExhausted) {
			return nil, false, nil
		}
		return nil, false, err
	}
	if done {
		return nil, false, nil
	}
	return v, true, nil
}

// Close stops a suspended body. It is safe to call more than once.
func (c *Coroutine) Close() {
	c.once.Do(func() { close(c.stop) })
}

func (c *Coroutine) run() {
	select {
	case <-c.resume:
	case <-c.stop:
		return
	}
	var final coStep
	defer func() {
		if r := recover(); r != nil {
			final = coStep{done: true, err: fmt.Errorf("contracts: generator panicked: %v", r)}
		}
		select {
		case c.out <- final:
		case <-c.stop:
		}
	}()
	yield := func(v any) any {
		select {
		case c.out <- coStep{value: v}:
		case <-c.stop:
			runtime.Goexit()
		}
		select {
		case s := <-c.resume:
			return s
		case <-c.stop:
			runtime.Goexit()
		}
		return nil
	}
	final = coStep{value: c.body(yield), done: true}
}
