package mir

import (
	"fmt"
	"strings"

	"consteval/internal/source"
	"consteval/internal/types"
)

// DefKind classifies items known to the program.
type DefKind uint8

const (
	DefInvalid DefKind = iota
	DefFn
	DefConst
	DefStatic
	DefConstParam
	DefAnonConst
	DefInlineConst
	DefAssocConst
	DefIntrinsic
)

func (k DefKind) String() string {
	switch k {
	case DefFn:
		return "fn"
	case DefConst:
		return "const"
	case DefStatic:
		return "static"
	case DefConstParam:
		return "const_param"
	case DefAnonConst:
		return "anon_const"
	case DefInlineConst:
		return "inline_const"
	case DefAssocConst:
		return "assoc_const"
	case DefIntrinsic:
		return "intrinsic"
	default:
		return fmt.Sprintf("DefKind(%d)", k)
	}
}

// IsConstLike reports whether bodies of this kind are evaluated at compile time.
func (k DefKind) IsConstLike() bool {
	switch k {
	case DefConst, DefStatic, DefConstParam, DefAnonConst, DefInlineConst, DefAssocConst:
		return true
	default:
		return false
	}
}

// ParseDefKind is the inverse of DefKind.String.
func ParseDefKind(s string) (DefKind, bool) {
	for k := DefFn; k <= DefIntrinsic; k++ {
		if k.String() == s {
			return k, true
		}
	}
	return DefInvalid, false
}

// Def is one item of a program.
type Def struct {
	ID         DefID
	Name       string
	Kind       DefKind
	Span       source.Span
	Mutability Mutability // statics only
	// Generics names the type parameters; types.Param indexes into Instance.Args.
	Generics  []string
	Type      types.TypeID // value type for consts and statics
	Body      *Body
	Promoted  []*Body
	Intrinsic string
}

// Instance is a definition together with the type arguments for its generics.
type Instance struct {
	Def  DefID
	Args []types.TypeID
}

// Mono returns the instance of a definition without generic arguments.
func Mono(def DefID) Instance {
	return Instance{Def: def}
}

// Key returns a comparable encoding of the instance.
func (i Instance) Key() string {
	if len(i.Args) == 0 {
		return fmt.Sprintf("%d", i.Def)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d<", i.Def)
	for n, a := range i.Args {
		if n > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, "%d", a)
	}
	sb.WriteByte('>')
	return sb.String()
}

// Equal reports whether both instances name the same item with the same args.
func (i Instance) Equal(o Instance) bool {
	if i.Def != o.Def || len(i.Args) != len(o.Args) {
		return false
	}
	for n := range i.Args {
		if i.Args[n] != o.Args[n] {
			return false
		}
	}
	return true
}

// SourceFile is a file carried inside a program so spans can be rendered.
type SourceFile struct {
	Path    string
	Content []byte
}

// Program is a complete lowered compilation unit.
type Program struct {
	Types *types.Interner
	Defs  []Def
	Files []SourceFile
}

// Def returns the definition with the given id.
func (p *Program) Def(id DefID) (*Def, bool) {
	if p == nil || id < 0 || int(id) >= len(p.Defs) {
		return nil, false
	}
	return &p.Defs[id], true
}

// Lookup finds a definition by name.
func (p *Program) Lookup(name string) (DefID, bool) {
	if p == nil {
		return NoDefID, false
	}
	for i := range p.Defs {
		if p.Defs[i].Name == name {
			return p.Defs[i].ID, true
		}
	}
	return NoDefID, false
}

// InstanceString renders an instance as `path::<A, B>`.
func (p *Program) InstanceString(inst Instance) string {
	d, ok := p.Def(inst.Def)
	name := fmt.Sprintf("def#%d", inst.Def)
	if ok {
		name = d.Name
	}
	if len(inst.Args) == 0 {
		return name
	}
	args := make([]string, len(inst.Args))
	for i, a := range inst.Args {
		args[i] = p.Types.Name(a)
	}
	return name + "::<" + strings.Join(args, ", ") + ">"
}
