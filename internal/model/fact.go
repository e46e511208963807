package model

// SourceKind says whose content a fact came from.
type SourceKind string

const (
	SourceOwn        SourceKind = "own"
	SourceCompetitor SourceKind = "competitor"
)

// Provenance identifies the page a fact was extracted from.
type Provenance struct {
	Kind   SourceKind `json:"kind"`
	URL    string     `json:"url"`
	Domain string     `json:"domain,omitempty"`
}

// FactTriple is an entity-attribute-value statement extracted from a page.
type FactTriple struct {
	Entity     string     `json:"entity"`
	Attribute  string     `json:"attribute"`
	Value      string     `json:"value"`
	Confidence float64    `json:"confidence"`
	Source     Provenance `json:"source"`
}

// PairKey identifies a normalized (entity, attribute) pair.
type PairKey struct {
	Entity    string `json:"entity"`
	Attribute string `json:"attribute"`
}

func (k PairKey) String() string { return k.Entity + " / " + k.Attribute }
