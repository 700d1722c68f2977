package mir

type PlaceProjKind uint8

const (
	PlaceProjDeref PlaceProjKind = iota
	PlaceProjField
	PlaceProjIndex
	PlaceProjConstIndex
)

type PlaceProj struct {
	Kind PlaceProjKind

	FieldIdx   int
	IndexLocal LocalID
	// ConstIndex: Offset counted from the start, or from the end when FromEnd is set.
	Offset  uint64
	FromEnd bool
}

type Place struct {
	Local LocalID
	Proj  []PlaceProj
}

func (p Place) IsValid() bool {
	return p.Local != NoLocalID
}

// LocalPlace returns the place naming a local without projections.
func LocalPlace(l LocalID) Place {
	return Place{Local: l}
}

func (p Place) project(proj PlaceProj) Place {
	out := Place{Local: p.Local, Proj: make([]PlaceProj, len(p.Proj), len(p.Proj)+1)}
	copy(out.Proj, p.Proj)
	out.Proj = append(out.Proj, proj)
	return out
}

func (p Place) Deref() Place {
	return p.project(PlaceProj{Kind: PlaceProjDeref})
}

func (p Place) Field(idx int) Place {
	return p.project(PlaceProj{Kind: PlaceProjField, FieldIdx: idx})
}

func (p Place) Index(l LocalID) Place {
	return p.project(PlaceProj{Kind: PlaceProjIndex, IndexLocal: l})
}

func (p Place) ConstIndex(offset uint64, fromEnd bool) Place {
	return p.project(PlaceProj{Kind: PlaceProjConstIndex, Offset: offset, FromEnd: fromEnd})
}
