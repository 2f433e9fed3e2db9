package commonpaths

import (
	"path/filepath"

	"github.com/mitchellh/go-homedir"
)

const dataDirName = ".pingpong"

// DefaultDataDir is where the node keeps its profile unless told otherwise,
// falling back to the working directory when the home directory is unknown.
func DefaultDataDir() string {
	home, err := homedir.Dir()
	if err != nil {
		return dataDirName
	}
	return filepath.Join(home, dataDirName)
}

// Expand resolves a leading ~ in user provided paths.
func Expand(path string) (string, error) {
	return homedir.Expand(path)
}
