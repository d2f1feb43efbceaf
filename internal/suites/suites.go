// Package suites embeds the built-in verification corpus: one CUE file per
// suite, each a dataset plus the kernels that run over it.
package suites

import (
	"embed"
	"io/fs"

	"github.com/roach88/vecverify/internal/loader"
)

//go:embed *.cue
var files embed.FS

// FS returns the corpus. Suite files sit at its root.
func FS() fs.FS {
	return files
}

// Load compiles every built-in suite, in file name order.
func Load() ([]*loader.Suite, error) {
	return loader.LoadFS(files, ".")
}
