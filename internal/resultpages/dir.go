package resultpages

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"kiesraad/internal/table"
)

// ParseDir parses every *.html page below dir into one table named after the
// election. The first directory level below dir is the province.
//
// Pages are read in path order and the rows sorted by municipality. A page
// that fails to read or parse is logged and skipped.
func ParseDir(dir, election string, unit Unit, logger Logger) (*table.Table, error) {
	if _, err := ParseUnit(string(unit)); err != nil {
		return nil, err
	}
	logf := logfOf(logger)

	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".html") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	sort.Strings(paths)

	recs := make([]*table.Record, 0, len(paths))
	for _, p := range paths {
		province := provinceOf(dir, p)
		b, err := os.ReadFile(p)
		if err != nil {
			logf("stage=pages path=%s status=skipped err=%v", p, err)
			continue
		}
		rec, err := ParsePage(string(b), election, province, unit)
		if err != nil {
			logf("stage=pages path=%s status=skipped err=%v", p, err)
			continue
		}
		recs = append(recs, rec)
	}

	sort.SliceStable(recs, func(i, j int) bool {
		a, _ := recs[i].Get(ColMunicipality)
		b, _ := recs[j].Get(ColMunicipality)
		return a.(string) < b.(string)
	})

	t := table.New(election, recs)
	t.Reorder(LeadingColumns)
	logf("stage=pages election=%s pages=%d rows=%d", election, len(paths), t.Len())
	return t, nil
}

// provinceOf returns the first path element of path below dir, or "" for
// pages directly inside dir.
func provinceOf(dir, path string) string {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return ""
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) < 2 {
		return ""
	}
	return parts[0]
}
