// Package inputs enumerates and reads the tracefiles a command works on.
// Reads fan out across goroutines since inputs are independent files; the
// merge that follows stays strictly sequential, so the engine never sees
// concurrent mutation.
package inputs

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"
)

// File is one input slurped into memory.
type File struct {
	Path string
	Data []byte
}

// Expand resolves glob patterns among args into concrete paths, keeping
// plain paths as given so ordering survives. A pattern matching nothing
// is an error; a plain path that does not exist surfaces later, when it
// is read.
func Expand(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		if !strings.ContainsAny(arg, "*?[") {
			paths = append(paths, arg)
			continue
		}
		matches, err := filepath.Glob(arg)
		if err != nil {
			return nil, fmt.Errorf("bad input pattern %q: %w", arg, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no files match input pattern %q", arg)
		}
		paths = append(paths, matches...)
	}
	return paths, nil
}

// ReadAll loads every path, bounded by GOMAXPROCS, and returns the
// contents in the order the paths were given. The first failing read
// aborts the whole batch.
func ReadAll(paths []string) ([]File, error) {
	files := make([]File, len(paths))
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, path := range paths {
		i, path := i, path // per-iteration copies; this module builds with a pre-1.22 language version
		g.Go(func() error {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			files[i] = File{Path: path, Data: data}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}
