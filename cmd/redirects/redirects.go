package main

import (
	"debug/elf"
	"encoding/binary"
	"go/ast"
	"go/parser"
	"go/token"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

const (
	redirectDirective = "//go:redirect-from"
	redirectSection   = ".goredirectstbl"
)

var (
	ErrMalformedDirective = errors.New("malformed go:redirect-from directive")
	ErrMissingSection     = errors.New("missing " + redirectSection + " section")
	ErrMissingSymbol      = errors.New("could not locate symbol")
)

// redirect maps a runtime symbol to the kernel function that replaces it.
type redirect struct {
	src string
	dst string

	srcVMA uint64
	dstVMA uint64
}

// collectGoFiles returns every non-test Go file below root.
func collectGoFiles(root string) ([]string, error) {
	var goFiles []string
	err := filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if !info.IsDir() && filepath.Ext(p) == ".go" && !strings.HasSuffix(p, "_test.go") {
			goFiles = append(goFiles, p)
		}

		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "scanning %s", root)
	}

	return goFiles, nil
}

// findRedirects parses goFiles and returns the redirects declared on
// function declarations. goFiles must be relative to the module root so
// that modulePath can be used to build fully qualified symbol names.
func findRedirects(modulePath string, goFiles []string) ([]*redirect, error) {
	var redirects []*redirect

	for _, goFile := range goFiles {
		fset := token.NewFileSet()

		f, err := parser.ParseFile(fset, goFile, nil, parser.ParseComments)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing %s", goFile)
		}

		pkgPath := path.Join(modulePath, filepath.ToSlash(filepath.Dir(goFile)))

		for _, decl := range f.Decls {
			fnDecl, ok := decl.(*ast.FuncDecl)
			if !ok || fnDecl.Doc == nil || fnDecl.Recv != nil {
				continue
			}

			for _, comment := range fnDecl.Doc.List {
				if !strings.HasPrefix(comment.Text, redirectDirective) {
					continue
				}

				fqName := pkgPath + "." + fnDecl.Name.Name

				fields := strings.Fields(comment.Text)
				if len(fields) != 2 || fields[0] != redirectDirective {
					return nil, errors.Wrapf(ErrMalformedDirective, "%s: %s", fset.Position(comment.Pos()), fqName)
				}

				redirects = append(redirects, &redirect{
					src: fields[1],
					dst: fqName,
				})
			}
		}
	}

	return redirects, nil
}

// resolveSymbols looks up the addresses of both ends of every redirect in
// the kernel image.
func resolveSymbols(redirects []*redirect, imgFile string) error {
	f, err := elf.Open(imgFile)
	if err != nil {
		return errors.Wrapf(err, "opening %s", imgFile)
	}
	defer f.Close()

	symbols, err := f.Symbols()
	if err != nil {
		return errors.Wrapf(err, "reading symbols from %s", imgFile)
	}

	addrs := make(map[string]uint64, len(symbols))
	for _, symbol := range symbols {
		addrs[symbol.Name] = symbol.Value
	}

	for _, r := range redirects {
		r.srcVMA, r.dstVMA = addrs[r.src], addrs[r.dst]

		switch {
		case r.srcVMA == 0:
			return errors.Wrapf(ErrMissingSymbol, "%s: %q", imgFile, r.src)
		case r.dstVMA == 0:
			return errors.Wrapf(ErrMissingSymbol, "%s: %q", imgFile, r.dst)
		}
	}

	return nil
}

// writeTable stores the (src, dst) address pairs in the redirect table
// section of the kernel image. The rt0 code patches each src with a jump
// to its dst at boot.
func writeTable(redirects []*redirect, imgFile string) error {
	offset, err := tableOffset(imgFile)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(imgFile, os.O_WRONLY, 0)
	if err != nil {
		return errors.Wrapf(err, "opening %s for writing", imgFile)
	}
	defer f.Close()

	if _, err = f.Seek(int64(offset), io.SeekStart); err != nil {
		return errors.Wrapf(err, "seeking to %s", redirectSection)
	}

	return encodeTable(f, redirects)
}

func encodeTable(w io.Writer, redirects []*redirect) error {
	for _, r := range redirects {
		if err := binary.Write(w, binary.LittleEndian, [2]uint64{r.srcVMA, r.dstVMA}); err != nil {
			return errors.Wrap(err, "writing redirect table entry")
		}
	}

	return nil
}

func tableOffset(imgFile string) (uint64, error) {
	f, err := elf.Open(imgFile)
	if err != nil {
		return 0, errors.Wrapf(err, "opening %s", imgFile)
	}
	defer f.Close()

	section := f.Section(redirectSection)
	if section == nil {
		return 0, errors.Wrap(ErrMissingSection, imgFile)
	}

	return section.Offset, nil
}
