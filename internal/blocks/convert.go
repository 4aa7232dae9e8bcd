package blocks

// Convert segments a document and builds the blocks of every section in
// document order. It fails with ErrNoContentMarker before producing any
// block when the start marker is missing.
func Convert(doc Document, opts Options) ([]Block, error) {
	sections, err := Segment(doc.Text, doc.StartMarker)
	if err != nil {
		return nil, err
	}
	var out []Block
	for _, sec := range sections {
		out = append(out, BuildBlocks(sec, opts)...)
	}
	return out, nil
}
