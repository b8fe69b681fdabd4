package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/wippyai/typelib"
	"github.com/wippyai/typelib/registry"
	_ "github.com/wippyai/typelib/snapshot"
	_ "github.com/wippyai/typelib/tlb"
	"github.com/wippyai/typelib/typemodel"
)

func main() {
	var (
		inFile      = flag.String("in", "", "Input type document")
		fromTag     = flag.String("from", "tlb", "Input format driver")
		outFile     = flag.String("out", "", "Output file (- for stdout)")
		toTag       = flag.String("to", "tlb", "Output format driver")
		mergeFile   = flag.String("merge", "", "Second document to merge in (same format as -in)")
		override    = flag.Bool("override", false, "Let merged definitions replace conflicting ones")
		buildExprs  = flag.String("build", "", "Type expressions to build (comma-separated)")
		resizeFile  = flag.String("resize", "", "YAML file mapping type names to new sizes")
		optsFile    = flag.String("opts", "", "YAML file with driver configuration")
		list        = flag.Bool("list", false, "List types and exit")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
		verbose     = flag.Bool("v", false, "Verbose logging")
	)
	flag.Parse()

	if *inFile == "" {
		fmt.Fprintln(os.Stderr, "Usage: typelib -in <doc> [-from tag] [-out file] [-to tag]")
		fmt.Fprintln(os.Stderr, "       typelib -in <doc> -list")
		fmt.Fprintln(os.Stderr, "       typelib -in <doc> -resize sizes.yaml -out <file>")
		fmt.Fprintln(os.Stderr, "       typelib -in <doc> -i  (interactive mode)")
		fmt.Fprintf(os.Stderr, "Drivers: %s\n", strings.Join(registry.Drivers(), ", "))
		os.Exit(1)
	}

	if *verbose {
		logger, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		registry.SetLogger(logger)
		defer logger.Sync()
	}

	if *interactive {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			fmt.Fprintln(os.Stderr, "Error: interactive mode requires a terminal")
			os.Exit(1)
		}
		if err := runInteractive(*inFile, *fromTag); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	err := run(*inFile, *fromTag, *outFile, *toTag, *mergeFile, *buildExprs,
		*resizeFile, *optsFile, *override, *list)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(inFile, fromTag, outFile, toTag, mergeFile, buildExprs, resizeFile, optsFile string, override, listOnly bool) error {
	cfg, err := loadConfig(optsFile)
	if err != nil {
		return err
	}

	reg, err := load(inFile, fromTag, cfg)
	if err != nil {
		return err
	}
	fmt.Printf("Document: %s\n", inFile)
	fmt.Printf("Types: %d\n", reg.NumTypes())

	if mergeFile != "" {
		other, err := load(mergeFile, fromTag, cfg)
		if err != nil {
			return err
		}
		if err := reg.Merge(other, override); err != nil {
			return fmt.Errorf("merge %s: %w", mergeFile, err)
		}
		fmt.Printf("Merged %s: %d types total\n", mergeFile, reg.NumTypes())
	}

	if buildExprs != "" {
		for _, expr := range strings.Split(buildExprs, ",") {
			expr = strings.TrimSpace(expr)
			typ, err := reg.Build(expr)
			if err != nil {
				return fmt.Errorf("build %s: %w", expr, err)
			}
			fmt.Printf("Built %s: %s, %d bytes\n", typ.Name, typ.Kind, typ.Size)
		}
	}

	if resizeFile != "" {
		sizes, err := loadSizes(resizeFile)
		if err != nil {
			return err
		}
		if err := reg.Resize(sizes); err != nil {
			return fmt.Errorf("resize: %w", err)
		}
		fmt.Printf("Resized %d types\n", len(sizes))
	}

	if listOnly {
		printTypes(reg)
		return nil
	}

	if outFile != "" {
		data, err := reg.Export(toTag, cfg)
		if err != nil {
			return err
		}
		if outFile == "-" {
			_, err = os.Stdout.Write(data)
			return err
		}
		if err := os.WriteFile(outFile, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", outFile, err)
		}
		fmt.Printf("Wrote %s (%d bytes, %s)\n", outFile, len(data), toTag)
	}
	return nil
}

func load(file, tag string, cfg *typelib.Config) (*registry.Registry, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	reg := registry.NewRegistry()
	if err := reg.Import(tag, data, cfg); err != nil {
		return nil, fmt.Errorf("import %s: %w", file, err)
	}
	return reg, nil
}

// loadConfig reads a nested YAML mapping and flattens it into driver
// configuration.
func loadConfig(file string) (*typelib.Config, error) {
	if file == "" {
		return nil, nil
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read opts: %w", err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse opts: %w", err)
	}
	cfg, err := typelib.FromMap(raw)
	if err != nil {
		return nil, fmt.Errorf("opts %s: %w", file, err)
	}
	return cfg, nil
}

func loadSizes(file string) (map[string]uint32, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read sizes: %w", err)
	}
	sizes := make(map[string]uint32)
	if err := yaml.Unmarshal(data, &sizes); err != nil {
		return nil, fmt.Errorf("parse sizes %s: %w", file, err)
	}
	return sizes, nil
}

func printTypes(reg *registry.Registry) {
	fmt.Printf("\nTypes:\n")
	reg.Each(func(typ *typemodel.Type) bool {
		fmt.Printf("  %-40s %-9s %5d bytes%s\n", typ.Name, typ.Kind, typ.Size, typeDetail(typ))
		return true
	})
	if aliases := reg.Aliases(); len(aliases) > 0 {
		fmt.Printf("\nAliases:\n")
		for _, a := range aliases {
			fmt.Printf("  %s -> %s\n", a.Name, a.Target)
		}
	}
}

func typeDetail(t *typemodel.Type) string {
	switch t.Kind {
	case typemodel.KindCompound:
		return fmt.Sprintf("  (%d fields)", len(t.Fields))
	case typemodel.KindEnum:
		return fmt.Sprintf("  (%d values)", len(t.Values))
	case typemodel.KindArray:
		return fmt.Sprintf("  (%d x %s)", t.Count, t.Elem.Name)
	case typemodel.KindPointer:
		return "  (-> " + t.Elem.Name + ")"
	case typemodel.KindContainer:
		return "  (" + t.ContainerKind + " of " + t.Elem.Name + ")"
	default:
		return ""
	}
}
