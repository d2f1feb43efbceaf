package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/roach88/vecverify/internal/loader"
	"github.com/roach88/vecverify/internal/suites"
)

// loadSuites resolves suite arguments. No arguments selects the built-in
// corpus. Each argument is a suite file, a directory of suite files, or the
// name of a built-in suite.
func loadSuites(args []string) ([]*loader.Suite, error) {
	if len(args) == 0 {
		return suites.Load()
	}

	var out []*loader.Suite
	for _, arg := range args {
		loaded, err := loadSuiteArg(arg)
		if err != nil {
			return nil, err
		}
		out = append(out, loaded...)
	}
	return out, nil
}

func loadSuiteArg(arg string) ([]*loader.Suite, error) {
	info, err := os.Stat(arg)
	switch {
	case err == nil && info.IsDir():
		loaded, err := loader.LoadFS(os.DirFS(arg), ".")
		if err != nil {
			return nil, err
		}
		if len(loaded) == 0 {
			return nil, fmt.Errorf("no suite files found in %s", arg)
		}
		return loaded, nil
	case err == nil:
		s, err := loader.LoadFile(arg)
		if err != nil {
			return nil, err
		}
		return []*loader.Suite{s}, nil
	case errors.Is(err, fs.ErrNotExist) && !strings.ContainsAny(arg, `/\.`):
		s, err := builtinSuite(arg)
		if err != nil {
			return nil, err
		}
		return []*loader.Suite{s}, nil
	default:
		return nil, fmt.Errorf("suite not found: %s", arg)
	}
}

// builtinSuite returns the built-in suite with the given name.
func builtinSuite(name string) (*loader.Suite, error) {
	all, err := suites.Load()
	if err != nil {
		return nil, err
	}
	for _, s := range all {
		if s.Name == name {
			return s, nil
		}
	}
	return nil, fmt.Errorf("suite not found: %s", name)
}

// globFilter returns a kernel name filter for pattern. An empty pattern
// selects every kernel.
func globFilter(pattern string) (func(string) bool, error) {
	if pattern == "" {
		return nil, nil
	}
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("invalid filter %q: %w", pattern, err)
	}
	return func(name string) bool {
		ok, _ := path.Match(pattern, name)
		return ok
	}, nil
}
