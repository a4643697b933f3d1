package assign

import "slices"

// Vocabulary is the fixed list of material codes an operator can pick from.
type Vocabulary []string

// DefaultMaterials are the tool steels and aluminium the shop stocks.
var DefaultMaterials = Vocabulary{"SKS3", "S45C", "SKD11", "AL"}

// Contains reports whether code is part of the vocabulary.
func (v Vocabulary) Contains(code string) bool {
	return slices.Contains(v, code)
}

func (v Vocabulary) accepts(code string) bool {
	return v == nil || v.Contains(code)
}
