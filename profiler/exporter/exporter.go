package exporter

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
)

// Exporter delivers a named call-graph file somewhere a developer can fetch it.
type Exporter interface {
	Export(ctx context.Context, name string, data []byte) error
}

// DirExporter writes exports into a directory.
type DirExporter struct {
	dir string
}

func NewDirExporter(dir string) *DirExporter {
	return &DirExporter{dir: dir}
}

func (e *DirExporter) Export(_ context.Context, name string, data []byte) error {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return err
	}
	target := filepath.Join(e.dir, filepath.Base(name))
	tmp, err := ioutil.TempFile(e.dir, filepath.Base(name)+".tmp*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), target)
}
