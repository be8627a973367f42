// Command redirects resolves the //go:redirect-from directives in the kernel
// sources and patches the kernel image so that the listed runtime functions
// jump to their kernel replacements (for example runtime.gopanic to
// fatal.Panic).
//
// Usage:
//
//	redirects count
//	redirects populate-table <kernel image>
package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"

	clog "irqos/internal/log"
)

var (
	fRoot   = pflag.StringP("root", "r", "kernel", "directory to scan for redirect directives")
	fModule = pflag.StringP("module", "m", "irqos", "module path of the kernel sources")
)

func main() {
	pflag.Parse()

	if err := run(pflag.Args()); err != nil {
		clog.L.Error("redirects failed", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return errors.New("missing command")
	}

	var imgFile string
	switch cmd := args[0]; cmd {
	case "count":
	case "populate-table":
		if len(args) != 2 {
			return errors.New("populate-table requires the path to the kernel image as an argument")
		}
		imgFile = args[1]
	default:
		return errors.Errorf("unknown command %q", cmd)
	}

	if info, err := os.Stat(*fRoot); err != nil || !info.IsDir() {
		return errors.Errorf("%s: not a directory; run this tool from the module root", *fRoot)
	}

	goFiles, err := collectGoFiles(*fRoot)
	if err != nil {
		return err
	}

	redirects, err := findRedirects(*fModule, goFiles)
	if err != nil {
		return err
	}

	if imgFile == "" {
		fmt.Printf("%d", len(redirects))
		return nil
	}

	if err = resolveSymbols(redirects, imgFile); err != nil {
		return err
	}

	for _, r := range redirects {
		clog.L.Debug("redirect", "src", r.src, "dst", r.dst, "src_vma", fmt.Sprintf("%#x", r.srcVMA), "dst_vma", fmt.Sprintf("%#x", r.dstVMA))
	}

	return writeTable(redirects, imgFile)
}
