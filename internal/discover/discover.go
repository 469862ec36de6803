// Package discover finds and parses the EML documents of a batch on disk.
package discover

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"kiesraad/internal/batch"
	"kiesraad/internal/emltree"
)

// Base-name patterns of the three document classes.
const (
	DefinitionPattern    = "Verkiezingsdefinitie*.xml"
	CountPattern         = "Telling*_*.xml"
	CandidateListPattern = "Kandidatenlijsten_*.xml"
)

// Class is a logical document class.
type Class int

const (
	Unknown Class = iota
	Definition
	Count
	CandidateList
)

// Classify returns the class of a file by its base name.
func Classify(path string) Class {
	base := filepath.Base(path)
	switch {
	case match(DefinitionPattern, base):
		return Definition
	case match(CountPattern, base):
		return Count
	case match(CandidateListPattern, base):
		return CandidateList
	default:
		return Unknown
	}
}

func match(pattern, name string) bool {
	ok, _ := filepath.Match(pattern, name)
	return ok
}

// Discover walks root recursively and parses every document of a known class.
//
// Documents within each class are ordered by path. A document that fails to
// parse is still returned, with Err set, so the caller can report it.
// Only filesystem errors are returned.
func Discover(root string) (batch.Documents, error) {
	var docs batch.Documents

	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || Classify(path) == Unknown {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return docs, fmt.Errorf("discover %s: %w", root, err)
	}
	sort.Strings(paths)

	for _, p := range paths {
		d := Load(p)
		switch Classify(p) {
		case Definition:
			docs.Definitions = append(docs.Definitions, d)
		case Count:
			docs.Counts = append(docs.Counts, d)
		case CandidateList:
			docs.CandidateLists = append(docs.CandidateLists, d)
		}
	}
	return docs, nil
}

// Load reads and parses one file. Read and decode errors end up on the Document.
func Load(path string) batch.Document {
	d := batch.Document{Name: Stem(path), Path: path}

	f, err := os.Open(path)
	if err != nil {
		d.Err = err
		return d
	}
	defer f.Close()

	d.Tree, d.Err = emltree.Parse(f)
	return d
}

// Stem returns the base name of path without its extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
