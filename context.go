package contracts

// ExecutionContext transforms a violation raised below it, usually by adding one frame, and
// forwards the result to its parent. Root contexts stop the recursion.
type ExecutionContext interface {
	Wrap(err *ValueContractError) *ValueContractError
}

// ContextFunc adapts a function to ExecutionContext.
type ContextFunc func(err *ValueContractError) *ValueContractError

func (f ContextFunc) Wrap(err *ValueContractError) *ValueContractError { return f(err) }

// TopLevel returns a context that adds nothing.
func TopLevel() ExecutionContext {
	return ContextFunc(func(err *ValueContractError) *ValueContractError { return err })
}

// Root returns a terminal context for a value supplied at responsible under a contract
// written at declared. Either location may be nil.
func Root(declared, responsible *Location) ExecutionContext {
	return &rootContext{declared: declared, responsible: responsible}
}

type rootContext struct {
	declared    *Location
	responsible *Location
}

func (c *rootContext) Wrap(err *ValueContractError) *ValueContractError {
	ty, ind := err.NextTypeAndIndicator()
	return err.WithFrame(NewFrame(ty, ind, c.declared, c.responsible))
}

// frameContext embeds the innermost rendering into a compound layout, records one frame and
// forwards to upper.
type frameContext struct {
	upper       ExecutionContext
	layout      func(slot) slot
	declared    *Location
	responsible *Location

	// settle switches the chain to Out once this frame is recorded: the party named here is
	// the one at fault and every enclosing frame is context only.
	settle bool
}

func (c *frameContext) Wrap(err *ValueContractError) *ValueContractError {
	ty, ind := err.NextTypeAndIndicator()
	s := c.layout(slot{ty: ty, ind: ind})
	err = err.WithFrame(NewFrame(s.ty, s.ind, c.declared, c.responsible))
	if c.settle {
		err = err.Settled()
	}
	if c.upper == nil {
		return err
	}
	return c.upper.Wrap(err)
}

// settleIfKnown settles only when the responsible party is actually known; otherwise blame stays
// with whoever supplied the enclosing value.
func settleIfKnown(loc *Location) bool { return loc != nil }

// raise builds a fresh violation for v and lets ctx decorate it.
func raise(ctx ExecutionContext, v any, expected string, notes ...string) error {
	err := NewValueContractError(v, expected)
	for _, n := range notes {
		err = err.WithNote(n)
	}
	return wrapWith(ctx, err)
}

func wrapWith(ctx ExecutionContext, err *ValueContractError) error {
	if ctx == nil {
		return err
	}
	return ctx.Wrap(err)
}
