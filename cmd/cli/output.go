package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

const (
	plainLineTemplateConstant  = "%s"
	fieldLabelTemplateConstant = "  %-12s "
	fieldLabelSuffixConstant   = ":"
)

// consolePrinter writes human-facing command results.
type consolePrinter struct {
	writer  io.Writer
	heading *color.Color
	success *color.Color
	muted   *color.Color
}

func newConsolePrinter(writer io.Writer) consolePrinter {
	return consolePrinter{
		writer:  writer,
		heading: color.New(color.Bold),
		success: color.New(color.FgGreen),
		muted:   color.New(color.Faint),
	}
}

func (printer consolePrinter) Heading(format string, arguments ...any) {
	printer.heading.Fprintf(printer.writer, format+"\n", arguments...)
}

func (printer consolePrinter) Success(format string, arguments ...any) {
	printer.success.Fprintf(printer.writer, format+"\n", arguments...)
}

func (printer consolePrinter) Field(name string, value any) {
	printer.muted.Fprintf(printer.writer, fieldLabelTemplateConstant, name+fieldLabelSuffixConstant)
	fmt.Fprintln(printer.writer, value)
}

func (printer consolePrinter) Line(format string, arguments ...any) {
	fmt.Fprintf(printer.writer, format+"\n", arguments...)
}
