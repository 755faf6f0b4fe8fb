package main

import (
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/alexflint/go-arg"
	"github.com/pkg/errors"

	"prendaml/artifacts"
	"prendaml/db"
	qhttp "prendaml/http"
	"prendaml/predict"
)

type sourceArgs struct {
	Source     string `arg:"-s,--source" default:"dir" help:"bundle kind: dir or sqlite"`
	Path       string `arg:"-p,--path" default:"models" help:"bundle directory or sqlite file"`
	Compressed bool   `arg:"--compressed" help:"artifacts in the directory are gzip compressed"`
}

type checkCmd struct {
	sourceArgs
}

type packCmd struct {
	Dir        string `arg:"required,positional" help:"bundle directory to pack"`
	Output     string `arg:"required,positional" help:"sqlite file to write"`
	Compressed bool   `arg:"--compressed" help:"artifacts in the directory are gzip compressed"`
}

type predictCmd struct {
	sourceArgs
	Variant string `arg:"required,positional" help:"variant name"`
	Record  string `arg:"positional" help:"JSON record file, stdin when empty"`
}

type args struct {
	Check   *checkCmd   `arg:"subcommand:check" help:"load every variant of a bundle"`
	Pack    *packCmd    `arg:"subcommand:pack" help:"copy a bundle directory into a sqlite bundle"`
	Predict *predictCmd `arg:"subcommand:predict" help:"run one record through a variant"`
}

func (args) Version() string {
	return "artifacts 1.0"
}

func (args) Description() string {
	return `inspect, pack and exercise prendaml model bundles`
}

func main() {
	var args args
	p := arg.MustParse(&args)

	var err error
	switch {
	case args.Check != nil:
		err = runCheck(os.Stdout, args.Check.sourceArgs)
	case args.Pack != nil:
		var n int
		n, err = runPack(args.Pack.Dir, args.Pack.Output, args.Pack.Compressed)
		if err == nil {
			fmt.Printf("packed %d artifacts into %s\n", n, args.Pack.Output)
		}
	case args.Predict != nil:
		err = runPredict(os.Stdout, args.Predict)
	default:
		p.Fail("missing subcommand")
	}
	if err != nil {
		log.Fatalln(err)
	}
}

func openSource(a sourceArgs) (artifacts.Source, func() error, error) {
	return artifacts.Open(a.Source, a.Path, a.Compressed)
}

func runCheck(w io.Writer, a sourceArgs) error {
	src, closeSource, err := openSource(a)
	if err != nil {
		return err
	}
	defer closeSource()

	snap, err := predict.Load(src)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s: %d variants\n", snap.Source, len(snap.Variants))
	for _, v := range snap.Variants {
		cfg := v.Config()
		models := make([]string, 0, len(cfg.Models))
		for key, name := range cfg.Models {
			models = append(models, key+"="+name)
		}
		sort.Strings(models)
		fmt.Fprintf(w, "  %-14s POST %-18s %-4s %-12s %s\n", v.Name(), v.Route(), v.Body(), cfg.Encoding.Strategy, strings.Join(models, " "))
	}
	return nil
}

// runPack copies every file under dir into a sqlite bundle and verifies the
// result loads.
func runPack(dir, output string, compressed bool) (int, error) {
	src, err := artifacts.NewDirSource(dir, compressed)
	if err != nil {
		return 0, err
	}
	if _, err := predict.Load(src); err != nil {
		return 0, errors.Wrap(err, "refusing to pack a bundle that does not load")
	}

	store, err := db.Open(output, false)
	if err != nil {
		return 0, err
	}
	defer store.Close()

	n := 0
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		payload, err := src.Read(name)
		if err != nil {
			return err
		}
		if err := store.Put(name, payload); err != nil {
			return err
		}
		n++
		return nil
	})
	if err != nil {
		return n, err
	}

	if _, err := predict.Load(store); err != nil {
		return n, errors.Wrap(err, "packed bundle does not load")
	}
	return n, nil
}

func runPredict(w io.Writer, cmd *predictCmd) error {
	src, closeSource, err := openSource(cmd.sourceArgs)
	if err != nil {
		return err
	}
	defer closeSource()

	snap, err := predict.Load(src)
	if err != nil {
		return err
	}
	v, ok := snap.ByName(cmd.Variant)
	if !ok {
		return errors.Errorf("unknown variant %q", cmd.Variant)
	}

	in := io.Reader(os.Stdin)
	if cmd.Record != "" {
		f, err := os.Open(cmd.Record)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}
	dec := json.NewDecoder(in)
	dec.UseNumber()
	var rec predict.Record
	if err := dec.Decode(&rec); err != nil {
		return errors.Wrap(err, "decode record")
	}

	result, err := v.Predict(rec)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(qhttp.FormatResult(result))
}
