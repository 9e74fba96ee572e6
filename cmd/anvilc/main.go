// Command anvilc compiles an Anvil source file into a platform ROM image
// (spec.md §6). It wires together the compiler's external collaborators
// (internal/lexer, internal/parser, internal/importer) and its core
// (internal/compiler) with the output-side infrastructure
// (internal/container, internal/debugsym, internal/profile), following
// cmd_local/asm/main.go's shape: parse flags, run one linear pipeline,
// report diagnostics, exit 0 or 1.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/anvil-lang/anvil/internal/platform/gameboy"
	_ "github.com/anvil-lang/anvil/internal/platform/mos6502"
	_ "github.com/anvil-lang/anvil/internal/platform/spc700"

	"github.com/anvil-lang/anvil/internal/ast"
	"github.com/anvil-lang/anvil/internal/compiler"
	"github.com/anvil-lang/anvil/internal/container"
	"github.com/anvil-lang/anvil/internal/debugsym"
	"github.com/anvil-lang/anvil/internal/diag"
	"github.com/anvil-lang/anvil/internal/importer"
	"github.com/anvil-lang/anvil/internal/int128"
	"github.com/anvil-lang/anvil/internal/intern"
	"github.com/anvil-lang/anvil/internal/ioutil"
	"github.com/anvil-lang/anvil/internal/platform"
	"github.com/anvil-lang/anvil/internal/profile"
)

const version = "anvilc devel"

// importDirs collects a repeatable `-I` flag, the same "flag.Value that
// appends" shape cmd_local/go's -ldflags-family flags use for repeatable
// string options.
type importDirs []string

func (d *importDirs) String() string { return strings.Join(*d, ":") }

func (d *importDirs) Set(v string) error {
	*d = append(*d, v)
	return nil
}

func main() {
	log.SetFlags(0)
	log.SetPrefix("anvilc: ")

	fs := flag.NewFlagSet("anvilc", flag.ContinueOnError)

	var (
		output       string
		system       string
		symbolFormat string
		colorOutput  bool
		cpuprofile   string
		showVersion  bool
		dirs         importDirs
	)
	fs.StringVar(&output, "o", "", "write output to `FILE`")
	fs.StringVar(&output, "output", "", "write output to `FILE`")
	fs.StringVar(&system, "m", "", "target platform `NAME` (nes, gameboy, spc700); inferred from -o's extension if omitted")
	fs.StringVar(&system, "system", "", "target platform `NAME`")
	fs.Var(&dirs, "I", "add `DIR` to the import search path (repeatable)")
	fs.Var(&dirs, "import-dir", "add `DIR` to the import search path (repeatable)")
	fs.StringVar(&symbolFormat, "s", "", "write a symbol map in `FORMAT` (plain, fceux)")
	fs.StringVar(&symbolFormat, "symbol-format", "", "write a symbol map in `FORMAT`")
	fs.BoolVar(&colorOutput, "color", false, "colorize diagnostics")
	fs.StringVar(&cpuprofile, "cpuprofile", "", "write phase-timing pprof profile to `FILE`")
	fs.BoolVar(&showVersion, "version", false, "print the version and exit")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: anvilc [flags] input.an\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			return
		}
		os.Exit(1)
	}

	if showVersion {
		fmt.Println(version)
		return
	}

	args := fs.Args()
	if len(args) != 1 {
		fs.Usage()
		os.Exit(1)
	}
	input := args[0]

	if output == "" {
		if input == "-" {
			log.Fatal("-o is required when reading from stdin")
		}
		output = strings.TrimSuffix(input, filepath.Ext(input)) + defaultExtension(system)
	}

	if system == "" {
		inferred, ok := platform.InferFromExtension(filepath.Ext(output))
		if !ok {
			log.Fatalf("cannot infer -m/--system from output %q; pass -m explicitly (choices: %s)", output, strings.Join(platform.Names(), ", "))
		}
		system = inferred
	}
	backend, ok := platform.Lookup(system)
	if !ok {
		log.Fatalf("unknown system %q (choices: %s)", system, strings.Join(platform.Names(), ", "))
	}

	symFormat := debugsym.FormatPlain
	if symbolFormat != "" {
		f, ok := debugsym.FormatByName(symbolFormat)
		if !ok {
			log.Fatalf("unknown symbol format %q", symbolFormat)
		}
		symFormat = f
	}

	var rec *profile.Recorder
	if cpuprofile != "" {
		rec = profile.NewRecorder()
	}

	reader := ioutil.NewReader([]string(dirs))
	table := intern.NewTable()
	sink := diag.NewSink()

	root, err := importer.New(reader, table, sink).Load(input)
	if err != nil {
		log.Fatalf("reading %s: %v", input, err)
	}

	var prog *compiler.Program
	if sink.Ok() {
		prog, _ = compiler.Compile(compiler.Config{
			Table:    table,
			Sink:     sink,
			Backend:  backend,
			Reader:   reader,
			Profiler: rec,
		}, root)
	}

	sink.SortStable()
	printDiagnostics(sink, colorOutput)

	if prog == nil || !sink.Ok() {
		if sink.Ok() {
			log.Print("compilation failed")
		}
		os.Exit(1)
	}

	buf := &bytes.Buffer{}
	if err := container.Write(buf, container.FormatForSystem(system), prog.Banks, containerConfig(prog)); err != nil {
		log.Fatalf("writing container: %v", err)
	}

	out, err := ioutil.Create(output)
	if err != nil {
		log.Fatal(err)
	}
	if err := out.Write(buf.Bytes()); err != nil {
		out.Close()
		os.Remove(output)
		log.Fatal(err)
	}
	if err := out.Close(); err != nil {
		log.Fatal(err)
	}

	if symbolFormat != "" {
		symPath := strings.TrimSuffix(output, filepath.Ext(output)) + ".sym"
		symOut, err := ioutil.Create(symPath)
		if err != nil {
			log.Fatal(err)
		}
		if err := debugsym.Write(symOut, symFormat, prog.Defs, buf.Bytes()); err != nil {
			symOut.Close()
			os.Remove(symPath)
			log.Fatal(err)
		}
		if err := symOut.Close(); err != nil {
			log.Fatal(err)
		}
	}

	if cpuprofile != "" {
		profOut, err := ioutil.Create(cpuprofile)
		if err != nil {
			log.Fatal(err)
		}
		if err := rec.WriteTo(profOut); err != nil {
			profOut.Close()
			os.Remove(cpuprofile)
			log.Fatal(err)
		}
		if err := profOut.Close(); err != nil {
			log.Fatal(err)
		}
	}
}

func defaultExtension(system string) string {
	switch system {
	case "gameboy":
		return ".gb"
	case "spc700":
		return ".spc"
	case "sms":
		return ".sms"
	case "nes":
		return ".nes"
	default:
		return ".bin"
	}
}

// containerConfig reads the source `config { ... }` directive's mapper and
// mirroring entries, defaulting to mapper 0 / horizontal mirroring when the
// source omits them, the same defaults the iNES format itself treats as
// "no special hardware".
func containerConfig(prog *compiler.Program) container.Config {
	cfg := container.Config{Mirroring: "horizontal"}
	if v, ok := prog.Config["mapper"]; ok {
		if n, ok := intLiteralValue(v); ok {
			cfg.Mapper = int(n)
		}
	}
	if v, ok := prog.Config["mirroring"]; ok {
		if s, ok := stringLiteralValue(v); ok {
			cfg.Mirroring = s
		}
	}
	return cfg
}

func intLiteralValue(e ast.Expr) (int64, bool) {
	lit, ok := e.(*ast.IntLiteral)
	if !ok {
		return 0, false
	}
	return int128.Value{Hi: lit.Hi, Lo: lit.Lo}.FitsInt64()
}

func stringLiteralValue(e ast.Expr) (string, bool) {
	lit, ok := e.(*ast.StringLiteral)
	if !ok {
		return "", false
	}
	return lit.Value, true
}

func printDiagnostics(sink *diag.Sink, color bool) {
	for _, d := range sink.Diagnostics() {
		if color {
			fmt.Fprintln(os.Stderr, colorize(d))
			continue
		}
		fmt.Fprintln(os.Stderr, d.Error())
	}
}

// colorize wraps a diagnostic's severity word in an ANSI color: red for
// error/fatal, yellow for warning. anvilc has no terminal-capability
// detection of its own; `--color` is the user's explicit opt-in.
func colorize(d *diag.Diagnostic) string {
	code := "33" // yellow
	if d.Severity != diag.Warning {
		code = "31" // red
	}
	return fmt.Sprintf("%s: \x1b[%sm%s\x1b[0m: %s", d.Pos, code, d.Severity, d.Message)
}
