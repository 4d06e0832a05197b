package loader

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/dopgraph/internal/document"
	"github.com/roach88/dopgraph/internal/oplog"
	"github.com/roach88/dopgraph/internal/registry"
)

// Result is a loaded document.
type Result struct {
	Script    *oplog.Script
	FileCount int
}

// Load loads path, which may be a .cue file, a .json op script or a
// directory holding one CUE package.
func Load(path string, mode Mode) (*Result, []error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, []error{&Error{Code: ErrCodeNotFound, Message: fmt.Sprintf("document not found: %s", path)}}
	}
	if err != nil {
		return nil, []error{&Error{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing document: %v", err)}}
	}
	if info.IsDir() {
		return LoadDir(path, mode)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, []error{&Error{Code: ErrCodeLoadFailed, Message: err.Error()}}
	}
	switch filepath.Ext(path) {
	case ".json":
		s, err := oplog.DecodeScript(data)
		if err != nil {
			return nil, []error{&Error{Code: ErrCodeDecode, Message: fmt.Sprintf("%s: %v", path, err)}}
		}
		return &Result{Script: s, FileCount: 1}, nil
	case ".cue":
		s, errs := CompileBytes(path, data, mode)
		return &Result{Script: s, FileCount: 1}, errs
	default:
		return nil, []error{&Error{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("unsupported document type %q (want .cue or .json)", filepath.Ext(path))}}
	}
}

// LoadDir loads the CUE package in dir.
func LoadDir(dir string, mode Mode) (*Result, []error) {
	files, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&Error{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(files) == 0 {
		return nil, []error{&Error{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{&Error{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{fromCUE(ErrCodeLoadFailed, inst.Err)}
	}
	v := cuecontext.New().BuildInstance(inst)
	s, errs := Compile(v, mode)
	return &Result{Script: s, FileCount: len(files)}, errs
}

// CompileBytes compiles one CUE source. filename is used for positions.
func CompileBytes(filename string, src []byte, mode Mode) (*oplog.Script, []error) {
	v := cuecontext.New().CompileBytes(src, cue.Filename(filename))
	return Compile(v, mode)
}

// FindCUEFiles walks dir and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// Build replays s into a new document over types.
func Build(types *registry.Registry, s *oplog.Script, mode oplog.Mode) (*document.Document, error) {
	d := document.New(types)
	if err := oplog.ReplayDocument(d, s, mode); err != nil {
		return nil, err
	}
	return d, nil
}
