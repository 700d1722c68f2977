package consteval

import (
	"fmt"

	"consteval/internal/layout"
	"consteval/internal/mir"
)

// GlobalID names one evaluation: an item, or one of its promoted bodies.
type GlobalID struct {
	Instance mir.Instance
	Promoted mir.Promoted
}

// Item is the key of an item's own body.
func Item(inst mir.Instance) GlobalID {
	return GlobalID{Instance: inst, Promoted: mir.NoPromoted}
}

// PromotedOf is the key of a promoted body of inst.
func PromotedOf(inst mir.Instance, idx mir.Promoted) GlobalID {
	return GlobalID{Instance: inst, Promoted: idx}
}

// ParamEnv is the typing environment of an evaluation.
type ParamEnv struct {
	Reveal layout.Reveal
}

// RevealAll is the environment constants are evaluated in.
func RevealAll() ParamEnv {
	return ParamEnv{Reveal: layout.RevealAll}
}

// ParamEnvAnd pairs a key with its environment.
type ParamEnvAnd struct {
	Env ParamEnv
	Key GlobalID
}

// For builds a request in the RevealAll environment.
func For(gid GlobalID) ParamEnvAnd {
	return ParamEnvAnd{Env: RevealAll(), Key: gid}
}

// normalize switches the environment to RevealAll; constant evaluation
// always sees through opaque types.
func (p ParamEnvAnd) normalize() ParamEnvAnd {
	p.Env.Reveal = layout.RevealAll
	return p
}

// cacheKey is the comparable form of a ParamEnvAnd. name is only used for
// cycle messages.
type cacheKey struct {
	inst     string
	promoted mir.Promoted
	reveal   layout.Reveal
	name     string
}

func (k cacheKey) String() string {
	return k.name
}

func (e *Engine) cacheKey(p ParamEnvAnd) cacheKey {
	return cacheKey{
		inst:     p.Key.Instance.Key(),
		promoted: p.Key.Promoted,
		reveal:   p.Env.Reveal,
		name:     e.describe(p.Key),
	}
}

// describe renders a key as `path::<T>` or `path::promoted[1]`.
func (e *Engine) describe(gid GlobalID) string {
	name := e.prog.InstanceString(gid.Instance)
	if gid.Promoted.IsSet() {
		name += "::" + gid.Promoted.String()
	}
	return name
}

// diskKey identifies a portable value across runs of the same program on
// the same target.
func (e *Engine) diskKey(p ParamEnvAnd) string {
	t := e.opts.Target
	return fmt.Sprintf("%s|%s/%d/%d/%s|%s|%s|%d", e.opts.DiskPrefix, t.Triple, t.PtrSize, t.PtrAlign, t.Endian,
		p.Key.Instance.Key(), p.Key.Promoted, p.Env.Reveal)
}
