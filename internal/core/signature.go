package core

import (
	"fmt"
	"reflect"
	"runtime"
	"strings"

	"go.uber.org/zap"
)

// FuncType classifies how a target binds to an owner.
type FuncType int

const (
	// TypeFunction is a standalone function variable or field with no owner.
	TypeFunction FuncType = iota

	// TypeBoundMethod is a func-typed field (or variable) belonging to an
	// owner instance. Calls do not carry the receiver; the descriptor does.
	TypeBoundMethod

	// TypeUnboundMethod is a function whose first parameter is the receiver,
	// owned by a type rather than an instance. Calls carry the receiver as
	// their first positional argument.
	TypeUnboundMethod
)

func (t FuncType) String() string {
	switch t {
	case TypeBoundMethod:
		return "bound method"
	case TypeUnboundMethod:
		return "unbound method"
	default:
		return "function"
	}
}

// Param is one named parameter in a signature.
type Param struct {
	Name       string
	HasDefault bool
}

// Signature is the structural model of a target's (or fake's) call shape.
// It is constructed once by Describe and never mutated afterward.
type Signature struct {
	FuncName string
	FuncType FuncType
	Owner    any

	// PosOrKw holds the positional-or-keyword parameters in declaration
	// order. For method types the receiver is the first entry.
	PosOrKw []Param

	// KwOnly holds keyword-only parameters.
	KwOnly []Param

	// VarArgs and VarKwargs name the catch-all parameters, empty if absent.
	VarArgs   string
	VarKwargs string

	// Slippery marks targets whose identity is not stable across accesses,
	// like Go method values, which are re-created on every access.
	Slippery bool

	goType reflect.Type
}

// posOrKwNames returns the positional-or-keyword names, dropping the
// receiver for method types when stripReceiver is set.
func (sig *Signature) posOrKwNames(stripReceiver bool) []string {
	params := sig.PosOrKw
	if stripReceiver && sig.FuncType != TypeFunction && len(params) > 0 {
		params = params[1:]
	}

	names := make([]string, len(params))
	for i, p := range params {
		names[i] = p.Name
	}

	return names
}

// Bind zips positional arguments against the receiver-stripped
// positional-or-keyword names and overlays the keyword arguments, producing
// the canonical name->value mapping used by matching and diagnostics. The
// call record itself keeps the caller's literal partitioning.
func (sig *Signature) Bind(args []any, kwargs map[string]any) map[string]any {
	names := sig.posOrKwNames(true)
	canonical := make(map[string]any, len(args)+len(kwargs))

	for i, arg := range args {
		if i >= len(names) {
			break
		}

		canonical[names[i]] = arg
	}

	for k, v := range kwargs {
		canonical[k] = v
	}

	return canonical
}

// CompatibleWith reports whether fake can stand in for this signature. The
// check is conservative and static: a false here means the fake could not
// possibly accept every call shape the original accepts, while a true may
// still let an exotic call fail at invocation time.
func (sig *Signature) CompatibleWith(fake *Signature) bool {
	if fake.VarArgs != "" && fake.VarKwargs != "" {
		return true
	}

	if (sig.VarArgs != "" && fake.VarArgs == "") ||
		(sig.VarKwargs != "" && fake.VarKwargs == "") {
		return false
	}

	origNames := sig.posOrKwNames(true)
	fakeNames := fake.posOrKwNames(true)

	if len(origNames) != len(fakeNames) {
		switch {
		case fake.VarArgs != "":
		case len(origNames) > len(fakeNames) && fake.coversKeywords(origNames[len(fakeNames):]):
		default:
			return false
		}
	}

	for _, p := range sig.KwOnly {
		if !fake.satisfiesKeyword(p.Name) {
			return false
		}
	}

	return true
}

// coversKeywords reports whether every name can be passed to this signature
// by keyword via its keyword-only or variadic-keyword parameters.
func (sig *Signature) coversKeywords(names []string) bool {
	if sig.VarKwargs != "" {
		return true
	}

	for _, name := range names {
		if !paramNamed(sig.KwOnly, name) {
			return false
		}
	}

	return true
}

// satisfiesKeyword reports whether a keyword argument with the given name
// can land somewhere in this signature.
func (sig *Signature) satisfiesKeyword(name string) bool {
	if sig.VarKwargs != "" {
		return true
	}

	if paramNamed(sig.KwOnly, name) {
		return true
	}

	for _, n := range sig.posOrKwNames(true) {
		if n == name {
			return true
		}
	}

	return false
}

func paramNamed(params []Param, name string) bool {
	for _, p := range params {
		if p.Name == name {
			return true
		}
	}

	return false
}

// FormatParams renders the parameter list in the same notation ParseParams
// accepts: "self, a, b=, *rest, key=, **extra".
func (sig *Signature) FormatParams() string {
	parts := []string{}

	for _, p := range sig.PosOrKw {
		parts = append(parts, formatParam(p))
	}

	if sig.VarArgs != "" {
		parts = append(parts, "*"+sig.VarArgs)
	} else if len(sig.KwOnly) > 0 {
		parts = append(parts, "*")
	}

	for _, p := range sig.KwOnly {
		parts = append(parts, formatParam(p))
	}

	if sig.VarKwargs != "" {
		parts = append(parts, "**"+sig.VarKwargs)
	}

	return strings.Join(parts, ", ")
}

func formatParam(p Param) string {
	if p.HasDefault {
		return p.Name + "="
	}

	return p.Name
}

// String renders the signature for diagnostics.
func (sig *Signature) String() string {
	return sig.FuncName + "(" + sig.FormatParams() + ")"
}

// ParseParams parses an explicit parameter declaration. The notation is one
// comma-separated list: plain names are positional-or-keyword, a trailing
// "=" marks a default, "*name" is the variadic-positional catch-all (a bare
// "*" just starts the keyword-only section), names after the star are
// keyword-only, and "**name" is the variadic-keyword catch-all.
func ParseParams(spec string) (posOrKw, kwOnly []Param, varArgs, varKwargs string, err error) {
	if strings.TrimSpace(spec) == "" {
		return nil, nil, "", "", nil
	}

	seen := map[string]bool{}
	afterStar := false

	for _, tok := range strings.Split(spec, ",") {
		tok = strings.TrimSpace(tok)

		switch {
		case varKwargs != "":
			return nil, nil, "", "", fmt.Errorf("parameter %q declared after **%s", tok, varKwargs)
		case strings.HasPrefix(tok, "**"):
			varKwargs = tok[2:]
			if varKwargs == "" || seen[varKwargs] {
				return nil, nil, "", "", fmt.Errorf("bad variadic-keyword parameter %q", tok)
			}

			seen[varKwargs] = true
		case tok == "*":
			if afterStar {
				return nil, nil, "", "", fmt.Errorf("duplicate * marker")
			}

			afterStar = true
		case strings.HasPrefix(tok, "*"):
			if afterStar {
				return nil, nil, "", "", fmt.Errorf("duplicate variadic-positional parameter %q", tok)
			}

			varArgs = tok[1:]
			if varArgs == "" || seen[varArgs] {
				return nil, nil, "", "", fmt.Errorf("bad variadic-positional parameter %q", tok)
			}

			seen[varArgs] = true
			afterStar = true
		default:
			param := Param{Name: tok}
			if strings.HasSuffix(tok, "=") {
				param = Param{Name: strings.TrimSuffix(tok, "="), HasDefault: true}
			}

			if param.Name == "" || seen[param.Name] {
				return nil, nil, "", "", fmt.Errorf("bad parameter %q", tok)
			}

			seen[param.Name] = true

			if afterStar {
				kwOnly = append(kwOnly, param)
			} else {
				posOrKw = append(posOrKw, param)
			}
		}
	}

	return posOrKw, kwOnly, varArgs, varKwargs, nil
}

// describeConfig carries the explicit declarations supplied to SpyOn. Every
// field is optional; anything missing is inferred.
type describeConfig struct {
	name      string
	owner     any
	fieldName string
	paramSpec string
}

// describeTarget resolves a target into its signature and the settable
// function cell the hook will swap. The strategy order is explicit
// declarations first, then structural inference from the Go type, then
// heuristics that log a diagnostic rather than silently guessing.
func describeTarget(target any, cfg describeConfig, log *zap.Logger) (*Signature, reflect.Value, error) {
	var cell reflect.Value

	sig := &Signature{FuncType: TypeFunction}
	value := reflect.ValueOf(target)

	switch {
	case cfg.fieldName != "":
		// Explicit owner + field name: look the func-typed field up on the
		// owner itself.
		owner := value
		for owner.Kind() == reflect.Pointer {
			owner = owner.Elem()
		}

		if owner.Kind() != reflect.Struct {
			return nil, cell, &InvalidTargetError{
				Target: fmt.Sprintf("%T", target),
				Reason: fmt.Sprintf("owner of field %q must be a struct or pointer to one", cfg.fieldName),
			}
		}

		cell = owner.FieldByName(cfg.fieldName)
		if !cell.IsValid() || cell.Kind() != reflect.Func {
			return nil, cell, &InvalidTargetError{
				Target: fmt.Sprintf("%T.%s", target, cfg.fieldName),
				Reason: "no func-typed field with that name",
			}
		}

		if !cell.CanSet() {
			return nil, cell, &InvalidTargetError{
				Target: fmt.Sprintf("%T.%s", target, cfg.fieldName),
				Reason: "field is not settable; pass a pointer to the owner",
			}
		}

		sig.FuncType = TypeBoundMethod
		sig.Owner = target
		sig.FuncName = ownerTypeName(target) + "." + cfg.fieldName
	case value.Kind() == reflect.Pointer && value.Elem().Kind() == reflect.Func:
		cell = value.Elem()
		sig.FuncName = funcValueName(cell)
	case value.Kind() == reflect.Func:
		// A bare func value regenerates a fresh identity on every access
		// (method values especially), so there is nothing stable to hook.
		sig.Slippery = true

		return sig, cell, &InvalidTargetError{
			Target: funcValueName(value),
			Reason: "func value is not addressable; pass a pointer to a function " +
				"variable or field, or an owner with WithField",
		}
	default:
		return nil, cell, &InvalidTargetError{
			Target: fmt.Sprintf("%T", target),
			Reason: "target must be a pointer to a func variable or field",
		}
	}

	if cell.IsNil() {
		return nil, cell, &InvalidTargetError{
			Target: sig.FuncName,
			Reason: "target function is nil",
		}
	}

	sig.goType = cell.Type()

	// Owner declarations refine the binding mode. An instance owner marks a
	// bound method; a reflect.Type owner marks an unbound method whose first
	// parameter is the receiver.
	if cfg.owner != nil {
		if ownerType, ok := cfg.owner.(reflect.Type); ok {
			sig.FuncType = TypeUnboundMethod
			sig.Owner = ownerType
		} else {
			sig.FuncType = TypeBoundMethod
			sig.Owner = cfg.owner
		}
	}

	if sig.FuncType == TypeUnboundMethod && sig.Slippery {
		return nil, cell, &InvalidTargetError{
			Target: sig.FuncName,
			Reason: "unbound method regenerates on access; there is no stable identity to hook",
		}
	}

	if cfg.name != "" {
		sig.FuncName = cfg.name
	}

	if err := fillParams(sig, cfg.paramSpec, log); err != nil {
		return nil, cell, err
	}

	return sig, cell, nil
}

// describeFake models a fake's signature so it can be compatibility-checked
// against the target. A fake for a bound method may declare the receiver as
// an extra leading Go parameter to get access to the owner.
func describeFake(fake any, paramSpec string, target *Signature) (*Signature, error) {
	value := reflect.ValueOf(fake)
	if !value.IsValid() || value.Kind() != reflect.Func || value.IsNil() {
		return nil, &InvalidTargetError{
			Target: fmt.Sprintf("%T", fake),
			Reason: "fake must be a non-nil func",
		}
	}

	sig := &Signature{
		FuncName: funcValueName(value),
		FuncType: TypeFunction,
		goType:   value.Type(),
	}

	// An owner-aware fake declares the receiver as a real leading Go
	// parameter, which is the unbound shape regardless of the target's mode.
	if fakeTakesOwner(value.Type(), target) {
		sig.FuncType = TypeUnboundMethod
	}

	if err := fillParams(sig, paramSpec, zap.NewNop()); err != nil {
		return nil, err
	}

	return sig, nil
}

// fakeTakesOwner reports whether a fake for a method target declares the
// receiver as an extra leading parameter.
func fakeTakesOwner(fakeType reflect.Type, target *Signature) bool {
	if target == nil || target.FuncType != TypeBoundMethod || target.goType == nil {
		return false
	}

	if fakeType.NumIn() != target.goType.NumIn()+1 || fakeType.IsVariadic() != target.goType.IsVariadic() {
		return false
	}

	ownerType := reflect.TypeOf(target.Owner)

	return ownerType != nil && ownerType.AssignableTo(fakeType.In(0))
}

// fillParams populates the parameter lists, preferring an explicit
// declaration over structural inference from the Go type. Structural
// inference has no parameter names to work with, so it synthesizes arg0..N
// and logs that keyword-style matching will need a declaration.
func fillParams(sig *Signature, paramSpec string, log *zap.Logger) error {
	if paramSpec != "" {
		posOrKw, kwOnly, varArgs, varKwargs, err := ParseParams(paramSpec)
		if err != nil {
			return &InvalidTargetError{Target: sig.FuncName, Reason: err.Error()}
		}

		sig.PosOrKw = posOrKw
		sig.KwOnly = kwOnly
		sig.VarArgs = varArgs
		sig.VarKwargs = varKwargs

		if sig.goType != nil && !declMatchesType(sig) {
			log.Warn("declared parameters do not line up with the function's Go type; "+
				"trusting the declaration",
				zap.String("target", sig.FuncName),
				zap.String("declared", sig.FormatParams()),
				zap.String("goType", sig.goType.String()))
		}

		return nil
	}

	if sig.goType == nil {
		return &InvalidTargetError{Target: sig.FuncName, Reason: "no signature declared and none inferable"}
	}

	numIn := sig.goType.NumIn()
	if sig.goType.IsVariadic() {
		numIn--
		sig.VarArgs = "args"
	}

	// Method modes name the leading receiver "self": bound methods carry it
	// only in the descriptor, unbound methods also in the Go type.
	offset := 0

	if sig.FuncType == TypeBoundMethod {
		sig.PosOrKw = append(sig.PosOrKw, Param{Name: "self"})
	} else if sig.FuncType == TypeUnboundMethod && numIn > 0 {
		sig.PosOrKw = append(sig.PosOrKw, Param{Name: "self"})
		offset = 1
	}

	for i := offset; i < numIn; i++ {
		sig.PosOrKw = append(sig.PosOrKw, Param{Name: fmt.Sprintf("arg%d", i-offset)})
	}

	log.Debug("inferred parameter names structurally; pass WithParams for "+
		"keyword-style matching against real names",
		zap.String("target", sig.FuncName),
		zap.String("inferred", sig.FormatParams()))

	return nil
}

// declMatchesType checks an explicit declaration against the Go func type's
// arity. Bound methods declare a receiver the Go type doesn't carry;
// variadic-keyword params have no Go representation at all.
func declMatchesType(sig *Signature) bool {
	declared := len(sig.posOrKwNames(sig.FuncType == TypeBoundMethod))

	numIn := sig.goType.NumIn()
	if sig.goType.IsVariadic() {
		numIn--

		if sig.VarArgs == "" {
			return false
		}
	}

	return declared == numIn
}

// funcValueName resolves a function value's name through the runtime, the
// same way the wrapped-function relayer identifies its targets.
func funcValueName(v reflect.Value) string {
	if v.Kind() != reflect.Func || v.IsNil() {
		return "<unknown func>"
	}

	name := runtime.FuncForPC(uintptr(v.UnsafePointer())).Name()
	name = strings.TrimSuffix(name, "-fm")

	return name
}

func ownerTypeName(owner any) string {
	t := reflect.TypeOf(owner)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	if t == nil {
		return "<nil>"
	}

	return t.Name()
}
