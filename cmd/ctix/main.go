package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"ctix/internal/config"
	"ctix/internal/cparse/clang"
	"ctix/internal/db"
	"ctix/internal/ignore"
	"ctix/internal/indexer"
	"ctix/internal/logging"
	"ctix/internal/scan"
	"ctix/internal/watch"
)

var logger *slog.Logger

const version = "0.1.0"

func main() {
	logger = logging.Default("ctix")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "index":
		runFullIndex(os.Args[2:])
	case "update":
		runUpdate(os.Args[2:])
	case "watch":
		runWatch(os.Args[2:])
	case "scan":
		runScan(os.Args[2:])
	case "define":
		runDefine(os.Args[2:])
	case "grep":
		runGrep(os.Args[2:])
	case "version":
		fmt.Printf("ctix v%s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		logger.Error("unknown command", "command", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`ctix: persistent C/C++ cross-reference index

Usage:
  ctix index [-exclude prefix,...] [path]   full reindex, clearing all tags first
  ctix update [file ...]                    incremental reindex (files, or all stale)
  ctix watch [path]                         watch a tree and update on change
  ctix scan <file> ...                      list #include directives found by the syntactic prescanner
  ctix define <file> <offset>               find the declaration at file:offset
  ctix grep <usr>                           list every occurrence of a symbol
  ctix version                              print the version
  ctix help                                 print this message`)
}

// loadIgnore loads root's .ctignore (plus the user's global
// ~/.gitignore) so it can compose with the exclude-prefix option in
// the cursor visitor's skip check. A load failure excludes nothing
// rather than aborting the pass.
func loadIgnore(root, ignoreFile string) *ignore.Matcher {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		logger.Warn("resolving ignore root failed", "root", root, "error", err)
		return nil
	}
	matcher, err := ignore.Load(absRoot, ignoreFile)
	if err != nil {
		logger.Warn("loading ignore file failed", "error", err)
		return nil
	}
	return matcher
}

func openStore(cfg config.Config) *db.Store {
	sqlDB, err := db.Open(db.Config{Path: cfg.DBPath, EnableWAL: true})
	if err != nil {
		logger.Error("opening database failed", "error", err)
		os.Exit(1)
	}
	if err := db.CreateSchema(context.Background(), sqlDB); err != nil {
		logger.Error("creating schema failed", "error", err)
		os.Exit(1)
	}
	return db.New(sqlDB)
}

func runFullIndex(args []string) {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	exclude := fs.String("exclude", "", "comma-separated path prefixes to exclude")
	diagnostics := fs.Bool("diagnostics", false, "print parser diagnostics per file")
	fs.Parse(args)

	cfg := config.LoadFromEnv()
	excludeList := cfg.Exclude
	if *exclude != "" {
		excludeList = splitCommaList(*exclude)
	}

	root := "."
	if fs.NArg() > 0 {
		root = fs.Arg(0)
	}

	store := openStore(cfg)
	defer store.Close()

	parser := clang.New()
	defer parser.Dispose()

	d := indexer.New(store, parser, os.Stdout, os.Stderr, *diagnostics)
	d.SetIgnore(loadIgnore(root, cfg.IgnoreFile))

	start := time.Now()
	if err := d.FullIndex(context.Background(), excludeList); err != nil {
		logger.Error("full index failed", "error", err)
		os.Exit(1)
	}
	logger.Info("full index complete", "duration", time.Since(start).Round(time.Millisecond))
}

func runUpdate(args []string) {
	fs := flag.NewFlagSet("update", flag.ExitOnError)
	diagnostics := fs.Bool("diagnostics", false, "print parser diagnostics per file")
	fs.Parse(args)

	cfg := config.LoadFromEnv()
	store := openStore(cfg)
	defer store.Close()

	parser := clang.New()
	defer parser.Dispose()

	var files []string
	if fs.NArg() > 0 {
		for i := 0; i < fs.NArg(); i++ {
			abs, err := filepath.Abs(fs.Arg(i))
			if err != nil {
				logger.Error("invalid path", "path", fs.Arg(i), "error", err)
				os.Exit(1)
			}
			files = append(files, abs)
		}
	}

	root, err := os.Getwd()
	if err != nil {
		root = "."
	}

	d := indexer.New(store, parser, os.Stdout, os.Stderr, *diagnostics)
	d.SetIgnore(loadIgnore(root, cfg.IgnoreFile))

	start := time.Now()
	if err := d.Update(context.Background(), files); err != nil {
		logger.Error("update failed", "error", err)
		os.Exit(1)
	}
	logger.Info("update complete", "duration", time.Since(start).Round(time.Millisecond))
}

func runWatch(args []string) {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	fs.Parse(args)

	path := "."
	if fs.NArg() > 0 {
		path = fs.Arg(0)
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		logger.Error("invalid path", "error", err)
		os.Exit(1)
	}

	cfg := config.LoadFromEnv()
	store := openStore(cfg)
	defer store.Close()

	parser := clang.New()
	defer parser.Dispose()

	d := indexer.New(store, parser, os.Stdout, os.Stderr, false)
	d.SetIgnore(loadIgnore(absPath, cfg.IgnoreFile))
	w := watch.New(absPath, d, time.Duration(cfg.WatchDebounceMs)*time.Millisecond, os.Stdout, os.Stderr)

	logger.Info("watching", "path", absPath, "debounce_ms", cfg.WatchDebounceMs)
	if err := w.Run(context.Background()); err != nil {
		logger.Error("watch failed", "error", err)
		os.Exit(1)
	}
}

// runScan runs the syntactic include prescanner over each named file
// and prints the #include directives it finds, without touching
// Storage or the semantic parser.
func runScan(args []string) {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	fs.Parse(args)

	if fs.NArg() < 1 {
		logger.Error("usage: ctix scan <file> ...")
		os.Exit(1)
	}

	ctx := context.Background()
	for i := 0; i < fs.NArg(); i++ {
		file := fs.Arg(i)
		content, err := os.ReadFile(file)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: reading %q: %v\n", file, err)
			continue
		}

		includes, err := scan.Includes(ctx, content)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: scanning %q: %v\n", file, err)
			continue
		}

		fmt.Printf("%s:\n", file)
		for _, inc := range includes {
			if inc.System {
				fmt.Printf("  <%s>\n", inc.Path)
			} else {
				fmt.Printf("  %q\n", inc.Path)
			}
		}
	}
}

func runDefine(args []string) {
	fs := flag.NewFlagSet("define", flag.ExitOnError)
	jsonOutput := fs.Bool("json", false, "output as JSON")
	fs.Parse(args)

	if fs.NArg() < 2 {
		logger.Error("usage: ctix define <file> <offset>")
		os.Exit(1)
	}
	file, err := filepath.Abs(fs.Arg(0))
	if err != nil {
		logger.Error("invalid path", "error", err)
		os.Exit(1)
	}
	offset, err := strconv.Atoi(fs.Arg(1))
	if err != nil {
		logger.Error("invalid offset", "offset", fs.Arg(1))
		os.Exit(1)
	}

	cfg := config.LoadFromEnv()
	store := openStore(cfg)
	defer store.Close()

	refDefs, err := store.FindDefinition(context.Background(), file, offset)
	if err != nil {
		logger.Error("find_definition failed", "error", err)
		os.Exit(1)
	}

	if *jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(refDefs); err != nil {
			logger.Error("encoding JSON failed", "error", err)
			os.Exit(1)
		}
		return
	}

	for _, rd := range refDefs {
		fmt.Printf("%s:%d:%d: %s %q -> %s:%d:%d\n",
			rd.Ref.File, rd.Ref.LineBegin, rd.Ref.ColBegin,
			rd.Ref.Kind, rd.Ref.Spelling,
			rd.Def.File, rd.Def.LineBegin, rd.Def.ColBegin)
	}
}

func runGrep(args []string) {
	fs := flag.NewFlagSet("grep", flag.ExitOnError)
	jsonOutput := fs.Bool("json", false, "output as JSON")
	fs.Parse(args)

	if fs.NArg() < 1 {
		logger.Error("usage: ctix grep <usr>")
		os.Exit(1)
	}
	usr := fs.Arg(0)

	cfg := config.LoadFromEnv()
	store := openStore(cfg)
	defer store.Close()

	refs, err := store.Grep(context.Background(), usr)
	if err != nil {
		logger.Error("grep failed", "error", err)
		os.Exit(1)
	}

	if *jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(refs); err != nil {
			logger.Error("encoding JSON failed", "error", err)
			os.Exit(1)
		}
		return
	}

	for _, ref := range refs {
		fmt.Printf("%s:%d:%d: %s %q\n", ref.File, ref.LineBegin, ref.ColBegin, ref.Kind, ref.Spelling)
	}
}

func splitCommaList(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if part := s[start:i]; part != "" {
				out = append(out, part)
			}
			start = i + 1
		}
	}
	return out
}
