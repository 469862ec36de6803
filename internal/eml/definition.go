package eml

import (
	"fmt"

	"kiesraad/internal/emltree"
)

// Definition is the summary read from an election-definition document.
type Definition struct {
	ElectionID   string
	ElectionDate string
}

// ReadDefinition extracts the election identifier and date from an
// election-definition document. The identifier is mandatory; the date may be
// empty when the document does not carry one.
func ReadDefinition(doc *emltree.Node) (Definition, error) {
	ident := emltree.Get(doc, "EML", "ElectionEvent", "Election", "ElectionIdentifier")
	id, ok := emltree.Attr(ident, "Id")
	if !ok {
		return Definition{}, fmt.Errorf("eml: definition: %w: ElectionIdentifier/@Id", emltree.ErrFieldNotFound)
	}
	def := Definition{ElectionID: id}
	if date := prefixedText(ident, "ElectionDate", CountFamilies); date != nil {
		def.ElectionDate = *date
	}
	return def, nil
}
