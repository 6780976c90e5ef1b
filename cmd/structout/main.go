package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/reoring/structout/classify"
	"github.com/reoring/structout/descriptor"
	"github.com/reoring/structout/dialect"
	"github.com/reoring/structout/internal/logging"
	"github.com/reoring/structout/jsonschema"
	"github.com/reoring/structout/synth"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	sub := os.Args[1]
	switch sub {
	case "schema":
		schemaCmd(os.Args[2:])
	case "reshape":
		reshapeCmd(os.Args[2:])
	case "classify":
		classifyCmd(os.Args[2:])
	case "fingerprint":
		fingerprintCmd(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "structout CLI\n\nUsage:\n  structout schema -f defs.yaml -type Name [-dialect canonical|strict|constrained] [-depth N] [-format json|yaml] [-o out]\n  structout reshape -f defs.yaml -type Name -in response.json [-depth N]\n  structout classify -status N [-retry-after S] [-body text]\n  structout fingerprint -f defs.yaml -type Name [-dialect name] [-depth N]\n\nNotes:\n  - Descriptor files are YAML; several documents or a list per document are accepted.\n  - -in - reads the response from stdin.")
}

// schemaFlags are shared by the sub-commands that synthesize a schema.
type schemaFlags struct {
	file     string
	typeName string
	dialect  string
	depth    int
	logLevel string
}

func (sf *schemaFlags) register(fs *flag.FlagSet, defaultDialect string) {
	fs.StringVar(&sf.file, "f", "", "YAML descriptor file")
	fs.StringVar(&sf.typeName, "type", "", "descriptor name to synthesize")
	fs.StringVar(&sf.dialect, "dialect", defaultDialect, "target dialect: canonical, strict or constrained")
	fs.IntVar(&sf.depth, "depth", dialect.DefaultDepthLimit, "constrained dialect $ref depth limit")
	fs.StringVar(&sf.logLevel, "log-level", "warn", "log level: debug, info, warn or error")
}

func (sf *schemaFlags) required(fs *flag.FlagSet) {
	if sf.file == "" || sf.typeName == "" {
		fs.Usage()
		os.Exit(2)
	}
}

func schemaCmd(args []string) {
	fs := flag.NewFlagSet("schema", flag.ExitOnError)
	var sf schemaFlags
	var format, out string
	sf.register(fs, dialect.NameCanonical)
	fs.StringVar(&format, "format", "json", "output format: json or yaml")
	fs.StringVar(&out, "o", "", "output filename (default stdout)")
	_ = fs.Parse(args)
	sf.required(fs)

	log := newLogger(sf.logLevel)
	defer func() { _ = log.Sync() }()

	res, err := buildSchema(sf, log)
	if err != nil {
		fatalf("%v", err)
	}
	var data []byte
	switch format {
	case "json":
		data, err = jsonschema.MarshalIndent(res.Schema)
		data = append(data, '\n')
	case "yaml":
		data, err = jsonschema.MarshalYAML(res.Schema)
	default:
		fatalf("unknown format %q", format)
	}
	if err != nil {
		fatalf("encode: %v", err)
	}
	if err := writeOutput(out, data); err != nil {
		fatalf("%v", err)
	}
}

func reshapeCmd(args []string) {
	fs := flag.NewFlagSet("reshape", flag.ExitOnError)
	var sf schemaFlags
	var in string
	sf.register(fs, dialect.NameConstrained)
	fs.StringVar(&in, "in", "", "response JSON file, or - for stdin")
	_ = fs.Parse(args)
	sf.required(fs)
	if in == "" {
		fs.Usage()
		os.Exit(2)
	}

	log := newLogger(sf.logLevel)
	defer func() { _ = log.Sync() }()

	res, err := buildSchema(sf, log)
	if err != nil {
		fatalf("%v", err)
	}
	raw, err := readInput(in)
	if err != nil {
		fatalf("%v", err)
	}
	log.Debug("reshaping response", zap.Int("reversals", len(res.Reversals)), zap.Int("bytes", len(raw)))
	shaped, err := dialect.ReshapeJSON(raw, res.Reversals...)
	if err != nil {
		fatalf("%v", err)
	}
	fmt.Println(string(shaped))
}

func classifyCmd(args []string) {
	fs := flag.NewFlagSet("classify", flag.ExitOnError)
	var status int
	var retryAfter, body, model string
	fs.IntVar(&status, "status", 0, "HTTP status code")
	fs.StringVar(&retryAfter, "retry-after", "", "Retry-After header value")
	fs.StringVar(&body, "body", "", "response body")
	fs.StringVar(&model, "model", "", "requested model, reported for invalid-model errors")
	_ = fs.Parse(args)
	if status == 0 {
		fs.Usage()
		os.Exit(2)
	}
	fmt.Print(describeKind(classify.ClassifyModel(status, body, retryAfter, model)))
}

func describeKind(k classify.ErrorKind) string {
	b := &strings.Builder{}
	fmt.Fprintf(b, "kind: %s\n", k.Kind)
	fmt.Fprintf(b, "message: %s\n", k)
	fmt.Fprintf(b, "retryable: %t\n", k.Retryable())
	if k.Retryable() {
		fmt.Fprintf(b, "backoff: %s\n", k.Backoff())
	}
	return b.String()
}

func fingerprintCmd(args []string) {
	fs := flag.NewFlagSet("fingerprint", flag.ExitOnError)
	var sf schemaFlags
	sf.register(fs, dialect.NameCanonical)
	_ = fs.Parse(args)
	sf.required(fs)

	log := newLogger(sf.logLevel)
	defer func() { _ = log.Sync() }()

	res, err := buildSchema(sf, log)
	if err != nil {
		fatalf("%v", err)
	}
	fp, err := jsonschema.Fingerprint(res.Schema)
	if err != nil {
		fatalf("%v", err)
	}
	fmt.Println(fp)
}

// buildSchema loads the descriptor file, synthesizes the named container and
// adapts it to the requested dialect.
func buildSchema(sf schemaFlags, log *zap.Logger) (dialect.Result, error) {
	data, err := os.ReadFile(sf.file)
	if err != nil {
		return dialect.Result{}, fmt.Errorf("read descriptors: %w", err)
	}
	reg, err := descriptor.LoadYAMLRegistry(data)
	if err != nil {
		return dialect.Result{}, err
	}
	root, ok := reg.Resolve(sf.typeName)
	if !ok {
		return dialect.Result{}, fmt.Errorf("descriptor %q not found in %s (have %s)", sf.typeName, sf.file, strings.Join(reg.Names(), ", "))
	}
	canonical, err := synth.Synthesize(root, reg)
	if err != nil {
		return dialect.Result{}, err
	}
	a, err := dialect.New(sf.dialect, sf.depth)
	if err != nil {
		return dialect.Result{}, err
	}
	res, err := a.Adapt(canonical)
	if err != nil {
		return dialect.Result{}, err
	}
	for _, w := range res.Warnings {
		log.Warn("dialect warning", zap.String("dialect", a.Name()), zap.String("warning", w))
	}
	log.Debug("schema built", zap.String("type", root.Name), zap.String("dialect", a.Name()), zap.Int("reversals", len(res.Reversals)))
	return res, nil
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func writeOutput(path string, data []byte) error {
	if path == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	return nil
}

func newLogger(level string) *zap.Logger {
	log, err := logging.New(level, "console")
	if err != nil {
		return zap.NewNop()
	}
	return log
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
