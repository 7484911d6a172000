// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package cmd implements the dnswarden subcommands. Each RunX helper
// is invoked from main after argument parsing.
package cmd

import (
	"fmt"
	"io"
	"os"
)

// CLIPrinter writes user-facing command output.
type CLIPrinter struct {
	out io.Writer
}

// Printer is the package-wide output sink for commands.
var Printer = &CLIPrinter{out: os.Stdout}

func (p *CLIPrinter) Printf(format string, args ...any) {
	fmt.Fprintf(p.out, format, args...)
}

func (p *CLIPrinter) Println(args ...any) {
	fmt.Fprintln(p.out, args...)
}

func (p *CLIPrinter) Fprintf(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, format, args...)
}
