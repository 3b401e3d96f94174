package core

import (
	"reflect"
	"runtime"
	"sync"

	"go.uber.org/zap"
)

// Agency creates, tracks, and releases spies. One agency typically lives for
// one test; releasing everything it set up is a single UnspyAll call, which
// is what keeps spy state from leaking between tests.
//
// All registry operations are safe for concurrent use. The registry key is
// the address of the intercepted function cell, so the same variable or
// field can carry at most one spy at a time.
type Agency struct {
	mu    sync.Mutex
	spies map[uintptr]*Spy
	hook  Hook
	log   *zap.Logger
}

// AgencyOption configures an Agency.
type AgencyOption func(*Agency)

// WithLogger routes the agency's diagnostics to the given logger. The
// default discards them.
func WithLogger(log *zap.Logger) AgencyOption {
	return func(a *Agency) { a.log = log }
}

// WithHook replaces the interception mechanism. The default swaps func-typed
// variables and fields in place.
func WithHook(hook Hook) AgencyOption {
	return func(a *Agency) { a.hook = hook }
}

// NewAgency returns an empty agency.
func NewAgency(opts ...AgencyOption) *Agency {
	agency := &Agency{
		spies: map[uintptr]*Spy{},
		hook:  funcVarHook{},
		log:   zap.NewNop(),
	}

	for _, opt := range opts {
		opt(agency)
	}

	return agency
}

// spyConfig collects everything SpyOn options can declare.
type spyConfig struct {
	describeConfig

	fake        any
	fakeParams  string
	op          Operation
	useOriginal bool
}

// SpyOption configures one SpyOn call.
type SpyOption func(*spyConfig)

// WithFake routes every intercepted call to the given function instead of
// the original. The fake's signature is checked for compatibility up front;
// an incompatible fake fails SpyOn before any call ever reaches it.
func WithFake(fake any) SpyOption {
	return func(c *spyConfig) { c.fake = fake }
}

// WithFakeParams declares the fake's parameters for the compatibility check,
// in the same mini-language as WithParams.
func WithFakeParams(spec string) SpyOption {
	return func(c *spyConfig) { c.fakeParams = spec }
}

// WithOp delegates every intercepted call to the given operation.
func WithOp(op Operation) SpyOption {
	return func(c *spyConfig) { c.op = op }
}

// WithoutOriginal suppresses passthrough: intercepted calls that nothing
// else handles record themselves and yield zero values.
func WithoutOriginal() SpyOption {
	return func(c *spyConfig) { c.useOriginal = false }
}

// WithOwner declares who the target belongs to. An instance marks a bound
// method; a reflect.Type marks an unbound one whose first parameter is the
// receiver, which is stripped from recorded calls.
func WithOwner(owner any) SpyOption {
	return func(c *spyConfig) { c.owner = owner }
}

// WithField names a func-typed field on the target, which is then treated as
// the owner. The field is looked up and swapped in place.
func WithField(name string) SpyOption {
	return func(c *spyConfig) { c.fieldName = name }
}

// WithName overrides the inferred target name in diagnostics.
func WithName(name string) SpyOption {
	return func(c *spyConfig) { c.name = name }
}

// WithParams declares the target's parameters: names, defaults, and
// keyword-only markers that the Go type alone cannot express. For example
// "a, b=, *rest, key=" declares a defaulted b, variadic rest, and a
// keyword-only key.
func WithParams(spec string) SpyOption {
	return func(c *spyConfig) { c.paramSpec = spec }
}

// SpyOn intercepts the target and returns its spy. The target is a pointer
// to a func variable or field, or an owner combined with WithField.
//
// Without options the original still runs on every call; WithFake, WithOp,
// and WithoutOriginal change what a call does. Spying on an already-spied
// target fails with ExistingSpyError carrying the first spy's setup
// location.
func (a *Agency) SpyOn(target any, opts ...SpyOption) (*Spy, error) {
	cfg := spyConfig{useOriginal: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	sig, cell, err := describeTarget(target, cfg.describeConfig, a.log)
	if err != nil {
		return nil, err
	}

	spy := &Spy{
		agency:   a,
		sig:      sig,
		key:      cell.Addr().Pointer(),
		cell:     cell,
		original: reflect.ValueOf(cell.Interface()),
		mode:     modePassthrough,
	}

	origin := make([]uintptr, 16)
	spy.origin = origin[:runtime.Callers(2, origin)]

	switch {
	case cfg.op != nil:
		spy.mode = modeOperation
		spy.op = cfg.op
	case cfg.fake != nil:
		fakeSig, err := describeFake(cfg.fake, cfg.fakeParams, sig)
		if err != nil {
			return nil, err
		}

		if !sig.CompatibleWith(fakeSig) {
			return nil, &IncompatibleFakeError{
				Target:    sig.FuncName,
				TargetSig: sig.FormatParams(),
				Fake:      fakeSig.FuncName,
				FakeSig:   fakeSig.FormatParams(),
			}
		}

		spy.mode = modeFake
		spy.fake = reflect.ValueOf(cfg.fake)
		spy.fakeTakesOwner = fakeTakesOwner(spy.fake.Type(), sig)
	case !cfg.useOriginal:
		spy.mode = modeDisabled
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if prior, ok := a.spies[spy.key]; ok {
		return nil, &ExistingSpyError{Target: sig.FuncName, Origin: prior.origin}
	}

	if spy.op != nil {
		if err := spy.op.Setup(spy); err != nil {
			return nil, err
		}
	}

	handle, err := a.hook.Attach(spy)
	if err != nil {
		return nil, err
	}

	spy.handle = handle
	a.spies[spy.key] = spy

	a.log.Debug("spy attached",
		zap.String("target", sig.FuncName),
		zap.Stringer("mode", spy.mode))

	return spy, nil
}

// Unspy releases the spy on the given target, restoring the original
// behavior. Releasing a target that is not spied on fails, including a
// second release of the same target.
func (a *Agency) Unspy(target any) error {
	spy, err := a.resolveSpy(target)
	if err != nil {
		return err
	}

	return a.releaseSpy(spy)
}

// UnspyAll releases every spy this agency set up. Failures don't stop the
// sweep; the first one is returned after everything has been attempted.
func (a *Agency) UnspyAll() error {
	a.mu.Lock()
	spies := make([]*Spy, 0, len(a.spies))

	for _, spy := range a.spies {
		spies = append(spies, spy)
	}
	a.mu.Unlock()

	var firstErr error

	for _, spy := range spies {
		if err := a.releaseSpy(spy); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// Spies returns the currently active spies, in no particular order.
func (a *Agency) Spies() []*Spy {
	a.mu.Lock()
	defer a.mu.Unlock()

	spies := make([]*Spy, 0, len(a.spies))
	for _, spy := range a.spies {
		spies = append(spies, spy)
	}

	return spies
}

func (a *Agency) releaseSpy(spy *Spy) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	registered, ok := a.spies[spy.key]
	if !ok || registered != spy || spy.released {
		return &InvalidTargetError{Target: spy.Name(), Reason: "target is not spied on"}
	}

	if err := a.hook.Detach(spy.handle); err != nil {
		return err
	}

	spy.released = true
	delete(a.spies, spy.key)

	a.log.Debug("spy released", zap.String("target", spy.Name()))

	return nil
}

// lookup returns the active spy registered under key, or nil.
func (a *Agency) lookup(key uintptr) *Spy {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.spies[key]
}

// resolveSpy accepts either a *Spy or a spyable target and returns the
// active spy for it.
func (a *Agency) resolveSpy(spyOrTarget any) (*Spy, error) {
	if spy, ok := spyOrTarget.(*Spy); ok {
		return spy, nil
	}

	value := reflect.ValueOf(spyOrTarget)
	if value.Kind() != reflect.Pointer || value.Elem().Kind() != reflect.Func {
		return nil, &InvalidTargetError{
			Target: funcValueName(value),
			Reason: "target must be a spy or a pointer to a func variable or field",
		}
	}

	spy := a.lookup(value.Elem().Addr().Pointer())
	if spy == nil {
		return nil, &InvalidTargetError{
			Target: funcValueName(value.Elem()),
			Reason: "target is not spied on",
		}
	}

	return spy, nil
}
