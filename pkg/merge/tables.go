package merge

import (
	"fmt"

	"github.com/grafana/profdiff/pkg/profile"
)

type libKey struct {
	hasBuildID bool
	a, b       string
}

type libHelper struct{}

func (libHelper) rewrite(_ *rewriter, l profile.Lib) (profile.Lib, error) { return l, nil }

// key identifies a library by its debug name and breakpad id, falling back
// to its name when the producer did not record a build identifier.
func (libHelper) key(l profile.Lib) libKey {
	if l.BreakpadID != "" {
		return libKey{hasBuildID: true, a: l.DebugName, b: l.BreakpadID}
	}
	return libKey{a: l.Name, b: l.DebugName}
}

type libraryTable = deduplicatingTable[profile.Lib, libKey, *profile.LibraryTable, libHelper]

func newLibraryTable() *libraryTable {
	return newDeduplicatingTable[profile.Lib, libKey](&profile.LibraryTable{}, libHelper{})
}

// MergeLibraries merges library tables. Each returned map has the length of
// the corresponding input table.
func MergeLibraries(tables ...profile.LibraryTable) (profile.LibraryTable, []IndexMap) {
	libs := newLibraryTable()
	maps := make([]IndexMap, len(tables))
	for i := range tables {
		// Libraries carry no references, ingesting never fails.
		maps[i], _ = libs.ingest(&tables[i], nil)
	}
	return *libs.table, maps
}

type resourceKey struct {
	name profile.Index
	lib  profile.Index
	typ  profile.ResourceType
}

type resourceHelper struct{}

func (resourceHelper) rewrite(r *rewriter, row profile.ResourceRow) (_ profile.ResourceRow, err error) {
	if row.Lib, err = r.libs.Rewrite(row.Lib); err != nil {
		return row, fmt.Errorf("lib: %w", err)
	}
	if row.Name, err = r.strings.Rewrite(row.Name); err != nil {
		return row, fmt.Errorf("name: %w", err)
	}
	if row.Host, err = r.strings.Rewrite(row.Host); err != nil {
		return row, fmt.Errorf("host: %w", err)
	}
	return row, nil
}

func (resourceHelper) key(row profile.ResourceRow) resourceKey {
	return resourceKey{name: row.Name, lib: row.Lib, typ: row.Type}
}

type resourceTable = deduplicatingTable[profile.ResourceRow, resourceKey, *profile.ResourceTable, resourceHelper]

func newResourceTable() *resourceTable {
	return newDeduplicatingTable[profile.ResourceRow, resourceKey](&profile.ResourceTable{}, resourceHelper{})
}

type nativeSymbolKey struct {
	lib     profile.Index
	address uint64
}

type nativeSymbolHelper struct{}

func (nativeSymbolHelper) rewrite(r *rewriter, row profile.NativeSymbolRow) (_ profile.NativeSymbolRow, err error) {
	if row.LibIndex, err = r.libs.Rewrite(row.LibIndex); err != nil {
		return row, fmt.Errorf("libIndex: %w", err)
	}
	if row.Name, err = r.strings.Rewrite(row.Name); err != nil {
		return row, fmt.Errorf("name: %w", err)
	}
	return row, nil
}

func (nativeSymbolHelper) key(row profile.NativeSymbolRow) nativeSymbolKey {
	return nativeSymbolKey{lib: row.LibIndex, address: row.Address}
}

type nativeSymbolTable = deduplicatingTable[profile.NativeSymbolRow, nativeSymbolKey, *profile.NativeSymbolTable, nativeSymbolHelper]

func newNativeSymbolTable() *nativeSymbolTable {
	return newDeduplicatingTable[profile.NativeSymbolRow, nativeSymbolKey](&profile.NativeSymbolTable{}, nativeSymbolHelper{})
}

type funcKey struct {
	name     profile.Index
	resource profile.Index
	isJS     bool
}

type funcHelper struct{}

func (funcHelper) rewrite(r *rewriter, row profile.FuncRow) (_ profile.FuncRow, err error) {
	if row.Name, err = r.strings.Rewrite(row.Name); err != nil {
		return row, fmt.Errorf("name: %w", err)
	}
	if row.Resource, err = r.resources.Rewrite(row.Resource); err != nil {
		return row, fmt.Errorf("resource: %w", err)
	}
	if row.FileName, err = r.strings.Rewrite(row.FileName); err != nil {
		return row, fmt.Errorf("fileName: %w", err)
	}
	return row, nil
}

func (funcHelper) key(row profile.FuncRow) funcKey {
	return funcKey{name: row.Name, resource: row.Resource, isJS: row.IsJS}
}

type funcTable = deduplicatingTable[profile.FuncRow, funcKey, *profile.FuncTable, funcHelper]

func newFuncTable() *funcTable {
	return newDeduplicatingTable[profile.FuncRow, funcKey](&profile.FuncTable{}, funcHelper{})
}
