// Package importer implements spec.md component C's import resolution:
// flattening imported files into sibling File statements under the root,
// detecting and breaking cycles, and suppressing duplicate imports of the
// same resolved path. Grounded on cmd_local/go/internal/modfetch/codehost's
// path-keyed dedup (a Repo is looked up and cached once per resolved
// path, same as here) and cmd_local/go/internal/modload's import-graph walk
// for the in-progress/visited bookkeeping shape used to break cycles.
package importer

import (
	"path/filepath"

	"github.com/anvil-lang/anvil/internal/ast"
	"github.com/anvil-lang/anvil/internal/diag"
	"github.com/anvil-lang/anvil/internal/intern"
	"github.com/anvil-lang/anvil/internal/ioutil"
	"github.com/anvil-lang/anvil/internal/parser"
	"golang.org/x/mod/module"
)

// Importer resolves import statements into a flattened tree of File
// statements, parsing each referenced file at most once.
type Importer struct {
	reader *ioutil.Reader
	table  *intern.Table
	sink   *diag.Sink

	// resolved is allocated by New and not otherwise read or written;
	// duplicate suppression by expanded path is done through visited.
	resolved map[string]*ast.FileStatement
	// visited marks a resolved path as "already flattened into the tree
	// somewhere", so a later `import` of the same path is dropped.
	visited map[string]bool
	// inProgress marks a path as mid-resolution on the current import
	// chain; a second import of an in-progress path is a cycle.
	inProgress map[string]bool
}

// New returns an Importer that reads files through reader, interns
// identifiers in table, and reports problems to sink.
func New(reader *ioutil.Reader, table *intern.Table, sink *diag.Sink) *Importer {
	return &Importer{
		reader:     reader,
		table:      table,
		sink:       sink,
		resolved:   map[string]*ast.FileStatement{},
		visited:    map[string]bool{},
		inProgress: map[string]bool{},
	}
}

// Load reads, lexes, and parses the file at path, then recursively resolves
// and flattens its imports, returning the root File statement.
func (im *Importer) Load(path string) (*ast.FileStatement, error) {
	file, err := im.parseFile(path)
	if err != nil {
		return nil, err
	}
	im.flatten(file)
	return file, nil
}

func (im *Importer) parseFile(path string) (*ast.FileStatement, error) {
	src, err := im.reader.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parser.Parse(im.table, im.sink, path, path, src), nil
}

// flatten walks file's top-level items, replacing each ImportRef with the
// resolved file's statements (or a placeholder), in place.
func (im *Importer) flatten(file *ast.FileStatement) {
	out := make([]ast.Statement, 0, len(file.Items))
	fromDir := filepath.Dir(file.Original)
	for _, item := range file.Items {
		ref, ok := item.(*ast.ImportRef)
		if !ok {
			out = append(out, item)
			continue
		}
		out = append(out, im.resolveOne(ref, fromDir)...)
	}
	file.Items = out
}

// resolveOne resolves a single import, returning zero or one replacement
// statement: empty for a duplicate (already flattened elsewhere), a single
// Internal placeholder for an unresolvable path or a broken cycle, or the
// nested, fully-flattened FileStatement otherwise.
func (im *Importer) resolveOne(ref *ast.ImportRef, fromDir string) []ast.Statement {
	if err := module.CheckImportPath(normalizeImportPath(ref.Path)); err != nil {
		im.sink.Wrap(diag.Error, ref.Pos(), "malformed import path "+ref.Path, err)
		return []ast.Statement{placeholder(ref, "malformed-import")}
	}

	resolvedPath, ok := im.reader.Resolve(fromDir, ref.Path)
	if !ok {
		im.sink.Report(diag.Error, ref.Pos(), "cannot find import %q", ref.Path)
		return []ast.Statement{placeholder(ref, "missing-import")}
	}

	if im.visited[resolvedPath] {
		// Already flattened into the tree from an earlier import of the
		// same resolved path; drop the duplicate silently.
		return nil
	}
	if im.inProgress[resolvedPath] {
		im.sink.Report(diag.Warning, ref.Pos(), "circular import of %q broken", ref.Path)
		return []ast.Statement{placeholder(ref, "circular-import")}
	}

	nested, err := im.parseFile(resolvedPath)
	if err != nil {
		im.sink.Wrap(diag.Error, ref.Pos(), "reading import "+ref.Path, err)
		return []ast.Statement{placeholder(ref, "unreadable-import")}
	}

	im.inProgress[resolvedPath] = true
	im.flatten(nested)
	delete(im.inProgress, resolvedPath)
	im.visited[resolvedPath] = true

	return []ast.Statement{nested}
}

func placeholder(ref *ast.ImportRef, tag string) ast.Statement {
	p := &ast.Internal{Tag: tag}
	p.SetPos(ref.Pos())
	return p
}

// normalizeImportPath converts an Anvil source-relative import path (e.g.
// "common/util.an") to forward slashes with filepath.ToSlash; it rejects
// nothing itself. resolveOne passes the result to
// golang.org/x/mod/module.CheckImportPath, which rejects malformed paths.
func normalizeImportPath(path string) string {
	return filepath.ToSlash(path)
}
