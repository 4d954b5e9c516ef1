package models

// BoxContent is the ordered content declared for one box.
type BoxContent struct {
	Box     string
	Content []Content
}

// boxSet is the Box -> []Content mapping shared by pages and templates. Box
// order is the order in which boxes were first used.
type boxSet struct {
	boxes   []*BoxContent
	removed []string
}

func (b *boxSet) add(box string, c Content) {
	for _, bc := range b.boxes {
		if bc.Box == box {
			bc.Content = append(bc.Content, c)
			return
		}
	}
	b.boxes = append(b.boxes, &BoxContent{Box: box, Content: []Content{c}})
}

// remove takes the content out of whatever box holds it and records the id
// in the removal list.
func (b *boxSet) remove(id string) {
	for _, bc := range b.boxes {
		kept := bc.Content[:0]
		for _, c := range bc.Content {
			if c.Identifier() != id {
				kept = append(kept, c)
			}
		}
		bc.Content = kept
	}
	for _, r := range b.removed {
		if r == id {
			return
		}
	}
	b.removed = append(b.removed, id)
}

func (b *boxSet) box(name string) []Content {
	for _, bc := range b.boxes {
		if bc.Box == name {
			return bc.Content
		}
	}
	return nil
}

func (b *boxSet) all() []Content {
	var out []Content
	for _, bc := range b.boxes {
		out = append(out, bc.Content...)
	}
	return out
}
