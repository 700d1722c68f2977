package consteval

import (
	"context"
	"errors"
	"fmt"

	"consteval/internal/interp"
	"consteval/internal/layout"
	"consteval/internal/mir"
	"consteval/internal/trace"
	"consteval/internal/types"
)

// EvalToAllocation evaluates key and returns the interned allocation holding
// the result. It must not be used for a static's own body; statics go through
// EvalStaticInitializer so their address stays unique.
func (e *Engine) EvalToAllocation(ctx context.Context, key ParamEnvAnd) (ConstAlloc, error) {
	if !key.Key.Promoted.IsSet() && e.defs.IsStatic(key.Key.Instance.Def) {
		interp.Bugf("EvalToAllocation called for the body of static %s", e.describe(key.Key))
	}
	return e.evalToAllocation(ctx, key)
}

// EvalStaticInitializer evaluates the initializer of a static item. The
// result always lives under the id reserved for def.
func (e *Engine) EvalStaticInitializer(ctx context.Context, def mir.DefID) (ConstAlloc, error) {
	if !e.defs.IsStatic(def) {
		interp.Bugf("EvalStaticInitializer called for non-static def#%d", def)
	}
	return e.evalToAllocation(ctx, For(Item(mir.Mono(def))))
}

func (e *Engine) evalToAllocation(ctx context.Context, key ParamEnvAnd) (ConstAlloc, error) {
	key = key.normalize()
	return e.allocs.Get(ctx, e.cacheKey(key), func(ctx context.Context) (ConstAlloc, error) {
		return e.evalToAllocationRaw(ctx, key)
	})
}

// queryScope opens a query span and makes it the parent of everything
// evaluated under ctx.
func (e *Engine) queryScope(ctx context.Context, name string, gid GlobalID) (context.Context, *trace.Span) {
	ctx, span := trace.StartSpan(ctx, e.tracer(ctx), trace.ScopeQuery, name)
	span.WithExtra("key", e.describe(gid))
	return ctx, span
}

func (e *Engine) evalToAllocationRaw(ctx context.Context, key ParamEnvAnd) (ConstAlloc, error) {
	gid := key.Key
	ctx, span := e.queryScope(ctx, "eval_to_allocation", gid)
	result := "ok"
	defer func() { span.End(result) }()

	if d, ok := e.nullaryIntrinsic(gid); ok {
		ca, err := e.intrinsicAllocation(d, gid.Instance)
		if err != nil {
			result = "error"
			return ConstAlloc{}, e.report(gid, err, interp.NoAlloc)
		}
		return ca, nil
	}

	body, err := e.bodies.ResolveBody(gid.Instance, gid.Promoted)
	if err != nil {
		result = "no body"
		return ConstAlloc{}, e.report(gid, missingBody(err), interp.NoAlloc)
	}

	m := e.newMachine(ctx, machineMode{
		canAccessMutGlobal: e.defs.IsStatic(gid.Instance.Def),
		checkAlignment:     e.opts.CheckAlignment,
	})
	mp, err := e.evalBody(m, gid, body, span.ID())
	if err == nil {
		err = e.constValidate(m, gid, mp, span.ID())
	}
	if err != nil {
		result = "error"
		return ConstAlloc{}, e.report(gid, err, mp.Ptr.Prov)
	}
	return ConstAlloc{Alloc: mp.Ptr.Prov, Type: mp.Type}, nil
}

func missingBody(err error) error {
	var ie *interp.InterpError
	if errors.As(err, &ie) {
		return err
	}
	return &interp.InterpError{Code: interp.CodeMissingBody, Message: err.Error(), Cause: err}
}

// EvalToValue evaluates key into a portable value. Calling it for a static's
// own body is a bug: the value would duplicate the static's storage.
func (e *Engine) EvalToValue(ctx context.Context, key ParamEnvAnd) (interp.ConstValue, error) {
	key = key.normalize()
	if !key.Key.Promoted.IsSet() && e.defs.IsStatic(key.Key.Instance.Def) {
		interp.Bugf("EvalToValue called for the body of static %s", e.describe(key.Key))
	}
	return e.values.Get(ctx, e.cacheKey(key), func(ctx context.Context) (interp.ConstValue, error) {
		return e.evalToValueRaw(ctx, key)
	})
}

func (e *Engine) evalToValueRaw(ctx context.Context, key ParamEnvAnd) (interp.ConstValue, error) {
	gid := key.Key
	ctx, span := e.queryScope(ctx, "eval_to_value", gid)
	result := "ok"
	defer func() { span.End(result) }()

	if d, ok := e.nullaryIntrinsic(gid); ok {
		v, err := interp.EvalNullaryIntrinsic(d.Intrinsic, gid.Instance.Args, e.types, e.layouts, e.opts.Target)
		if err != nil {
			result = "error"
			return interp.ConstValue{}, e.report(gid, err, interp.NoAlloc)
		}
		return v, nil
	}

	dk := e.diskKey(key)
	if v, ok := e.loadValue(dk, gid); ok {
		result = "disk"
		return v, nil
	}

	ca, err := e.evalToAllocation(ctx, key)
	if err != nil {
		result = "error"
		return interp.ConstValue{}, err
	}
	// The value was validated while being computed; reading it back needs
	// no alignment checks.
	m := e.newMachine(ctx, machineMode{canAccessMutGlobal: e.defs.IsStatic(gid.Instance.Def)})
	op, err := e.allocOperand(m, ca)
	if err != nil {
		result = "error"
		return interp.ConstValue{}, e.report(gid, err, ca.Alloc)
	}
	v := ToConstant(m, op, false)
	e.storeValue(dk, v, span.ID())
	return v, nil
}

// allocOperand returns the interned result of an evaluation as an operand.
func (e *Engine) allocOperand(m *interp.Machine, ca ConstAlloc) (interp.OpTy, error) {
	lay, err := m.LayoutOf(ca.Type)
	if err != nil {
		return interp.OpTy{}, err
	}
	ptr := interp.Pointer{Prov: ca.Alloc}
	if ca.Alloc == interp.NoAlloc {
		ptr.Offset = uint64(max(lay.Align, 1))
	}
	return interp.PlaceOp(interp.MPlace{Ptr: ptr, Type: ca.Type, Layout: lay}), nil
}

// nullaryIntrinsic reports whether gid names an intrinsic folded without a
// body.
func (e *Engine) nullaryIntrinsic(gid GlobalID) (*mir.Def, bool) {
	if gid.Promoted.IsSet() || e.defs.DefKind(gid.Instance.Def) != mir.DefIntrinsic {
		return nil, false
	}
	d, ok := e.prog.Def(gid.Instance.Def)
	if !ok || !interp.IsNullaryIntrinsic(d.Intrinsic) {
		return nil, false
	}
	return d, true
}

// intrinsicResultType is the type a nullary intrinsic folds to.
func (e *Engine) intrinsicResultType(name string) types.TypeID {
	b := e.types.Builtins()
	switch name {
	case "needs_drop":
		return b.Bool
	case "type_name":
		return e.types.Ref(b.Str)
	case "type_id":
		return b.U64
	default:
		return b.Usize
	}
}

// intrinsicAllocation folds an intrinsic and stores the value in interned
// memory so callers that need an allocation can share the cache.
func (e *Engine) intrinsicAllocation(d *mir.Def, inst mir.Instance) (ConstAlloc, error) {
	v, err := interp.EvalNullaryIntrinsic(d.Intrinsic, inst.Args, e.types, e.layouts, e.opts.Target)
	if err != nil {
		return ConstAlloc{}, err
	}
	ty := e.intrinsicResultType(d.Intrinsic)
	lay, err := e.layouts.LayoutOf(ty, layout.RevealAll)
	if err != nil {
		return ConstAlloc{}, err
	}
	order := e.opts.Target.ByteOrder()
	ps := e.opts.Target.PtrSize
	root := interp.NewAllocation(uint64(lay.Size), uint64(lay.Align), mir.Not, ps)
	switch v.Kind {
	case interp.ConstScalar:
		if err := root.WriteScalar(order, 0, v.Scalar); err != nil {
			return ConstAlloc{}, err
		}
	case interp.ConstSlice:
		dataID := e.globals.NextID()
		e.globals.Intern(dataID, v.Data)
		ptr := interp.ScalarFromPointer(interp.Pointer{Prov: dataID}, ps)
		if err := root.WriteScalar(order, 0, ptr); err != nil {
			return ConstAlloc{}, err
		}
		if err := root.WriteScalar(order, uint64(lay.Pair.SecondOffset), interp.ScalarFromUint(v.Meta, ps)); err != nil {
			return ConstAlloc{}, err
		}
	default:
		interp.Bugf("intrinsic `%s` folded to %s", d.Intrinsic, v.Kind)
	}
	id := e.globals.NextID()
	e.globals.Intern(id, root)
	return ConstAlloc{Alloc: id, Type: ty}, nil
}

// diskValue is the on-disk form of a portable ConstValue.
type diskValue struct {
	Kind  uint8  `msgpack:"kind"`
	Bits  uint64 `msgpack:"bits,omitempty"`
	Size  uint8  `msgpack:"size,omitempty"`
	Data  []byte `msgpack:"data,omitempty"`
	Align uint64 `msgpack:"align,omitempty"`
	Meta  uint64 `msgpack:"meta,omitempty"`
}

// loadValue reads a stored value for gid. Entries whose shape does not fit
// the result layout are ignored and recomputed.
func (e *Engine) loadValue(key string, gid GlobalID) (interp.ConstValue, bool) {
	if e.opts.Disk == nil {
		return interp.ConstValue{}, false
	}
	var dv diskValue
	ok, err := e.opts.Disk.Get(key, &dv)
	if err != nil || !ok {
		return interp.ConstValue{}, false
	}
	lay, ok := e.resultLayout(gid)
	if !ok {
		return interp.ConstValue{}, false
	}
	switch interp.ConstKind(dv.Kind) {
	case interp.ConstZeroSized:
		if lay.Size != 0 {
			return interp.ConstValue{}, false
		}
		return interp.ZeroSizedValue(), true
	case interp.ConstScalar:
		if int(dv.Size) != lay.Size {
			return interp.ConstValue{}, false
		}
		return interp.ScalarValue(interp.ScalarFromUint(dv.Bits, int(dv.Size))), true
	case interp.ConstSlice:
		if lay.Abi != layout.AbiScalarPair {
			return interp.ConstValue{}, false
		}
		data := interp.AllocationFromBytes(dv.Data, dv.Align, mir.Not, e.opts.Target.PtrSize)
		return interp.SliceValue(data, dv.Meta), true
	default:
		return interp.ConstValue{}, false
	}
}

// resultLayout is the layout of gid's result type.
func (e *Engine) resultLayout(gid GlobalID) (layout.TypeLayout, bool) {
	body, err := e.bodies.ResolveBody(gid.Instance, gid.Promoted)
	if err != nil {
		return layout.TypeLayout{}, false
	}
	lay, err := e.layouts.LayoutOf(e.types.Subst(body.ResultType(), gid.Instance.Args), layout.RevealAll)
	if err != nil {
		return layout.TypeLayout{}, false
	}
	return lay, true
}

func (e *Engine) storeValue(key string, v interp.ConstValue, parent uint64) {
	if e.opts.Disk == nil || !v.Portable() {
		return
	}
	dv := diskValue{Kind: uint8(v.Kind)}
	switch v.Kind {
	case interp.ConstScalar:
		dv.Bits, dv.Size = v.Scalar.Bits, v.Scalar.Size
	case interp.ConstSlice:
		if !v.Data.IsInit(0, v.Data.Size()) {
			return
		}
		dv.Data, dv.Align, dv.Meta = v.Data.Bytes, v.Data.Align, v.Meta
	}
	if err := e.opts.Disk.Put(key, dv); err != nil {
		trace.Point(e.opts.Tracer, trace.ScopeQuery, "disk_put_failed", fmt.Sprintf("%s: %v", key, err), parent)
	}
}
