package querydef

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueload "cuelang.org/go/cue/load"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaSource string

// Load reads definitions from a .cue file, a .yaml/.yml file, or a
// directory holding a CUE package. The result is validated; every problem
// found is returned.
func Load(path string) (*File, []error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, []error{newError(ErrCodeNotFound, "definitions not found: %s", path)}
	}
	if err != nil {
		return nil, []error{newError(ErrCodeNotFound, "error accessing definitions: %v", err)}
	}

	var (
		f    *File
		errs []error
	)
	switch ext := filepath.Ext(path); {
	case info.IsDir():
		f, errs = loadCUEPackage(path)
	case ext == ".cue":
		f, errs = loadCUEFile(path)
	case ext == ".yaml" || ext == ".yml":
		f, errs = loadYAMLFile(path)
	default:
		return nil, []error{newError(ErrCodeUnsupported, "unsupported definition file %s: want .cue, .yaml or .yml", path)}
	}
	if len(errs) > 0 {
		return nil, errs
	}

	f.Path = path
	if errs := Validate(f); len(errs) > 0 {
		return nil, errs
	}
	return f, nil
}

// ParseYAML decodes definitions from YAML. Unknown keys are rejected.
func ParseYAML(data []byte) (*File, []error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		return nil, []error{newError(ErrCodeYAML, "parsing YAML: %v", err)}
	}
	return &f, nil
}

// ParseCUE decodes definitions from CUE source. filename is used in
// error positions.
func ParseCUE(filename string, data []byte) (*File, []error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, fromCUE(ErrCodeBuildFailed, err)
	}
	return decodeCUE(ctx, v)
}

func loadYAMLFile(path string) (*File, []error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, []error{newError(ErrCodeReadFailed, "reading %s: %v", path, err)}
	}
	return ParseYAML(data)
}

func loadCUEFile(path string) (*File, []error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, []error{newError(ErrCodeReadFailed, "reading %s: %v", path, err)}
	}
	return ParseCUE(path, data)
}

func loadCUEPackage(dir string) (*File, []error) {
	instances := cueload.Instances([]string{"."}, &cueload.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{newError(ErrCodeLoadFailed, "no CUE instances loaded from %s", dir)}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, fromCUE(ErrCodeLoadFailed, inst.Err)
	}

	ctx := cuecontext.New()
	v := ctx.BuildInstance(inst)
	if err := v.Err(); err != nil {
		return nil, fromCUE(ErrCodeBuildFailed, err)
	}
	return decodeCUE(ctx, v)
}

// decodeCUE checks v against the embedded #File schema and decodes it.
func decodeCUE(ctx *cue.Context, v cue.Value) (*File, []error) {
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, []error{newError(ErrCodeGeneric, "embedded schema: %v", err)}
	}

	unified := schema.LookupPath(cue.ParsePath("#File")).Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, fromCUE(ErrCodeBuildFailed, err)
	}

	var f File
	if err := unified.Decode(&f); err != nil {
		return nil, fromCUE(ErrCodeBuildFailed, fmt.Errorf("decoding definitions: %w", err))
	}
	return &f, nil
}
