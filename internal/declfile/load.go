package declfile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
	"gopkg.in/yaml.v3"
)

// ErrUnsupportedFormat is returned for files that are neither YAML nor HCL.
var ErrUnsupportedFormat = errors.New("unsupported declaration format")

// Supported reports whether path has a declaration file extension.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".hcl":
		return true
	}
	return false
}

// LoadFile decodes one declaration file, choosing the format by extension.
func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return DecodeYAML(data, path)
	case ".hcl":
		return DecodeHCL(data, path)
	}
	return nil, fmt.Errorf("%s: %w", path, ErrUnsupportedFormat)
}

// DecodeYAML decodes a YAML document. Unknown keys are rejected so typos in
// attribute names do not go unnoticed.
func DecodeYAML(data []byte, filename string) (*Document, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	doc := &Document{}
	if err := dec.Decode(doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode YAML file %s: %w", filename, err)
	}
	return doc, nil
}

// hclFunctions may be called from expressions in HCL files.
var hclFunctions = map[string]function.Function{
	"upper":     stdlib.UpperFunc,
	"lower":     stdlib.LowerFunc,
	"trimspace": stdlib.TrimSpaceFunc,
	"join":      stdlib.JoinFunc,
	"format":    stdlib.FormatFunc,
}

// hclEvalContext exposes the file being decoded as file.name and file.dir.
// Placeholder tokens must be escaped as $${name} in HCL strings.
func hclEvalContext(filename string) *hcl.EvalContext {
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"file": cty.ObjectVal(map[string]cty.Value{
				"name": cty.StringVal(filepath.Base(filename)),
				"dir":  cty.StringVal(filepath.Dir(filename)),
			}),
		},
		Functions: hclFunctions,
	}
}

// DecodeHCL decodes an HCL document.
func DecodeHCL(data []byte, filename string) (*Document, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}

	doc := &Document{}
	if diags := gohcl.DecodeBody(file.Body, hclEvalContext(filename), doc); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", filename, diags)
	}
	return doc, nil
}

// Collect expands paths into the declaration files they name. Directories
// are walked in lexical order; files given explicitly are kept even when
// their extension is unknown, so LoadFile can report them.
func Collect(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", p, err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && Supported(path) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", p, err)
		}
	}
	return files, nil
}

// LoadPaths loads every declaration file under paths and merges their
// sites into one document, in file order.
func LoadPaths(paths []string) (*Document, error) {
	files, err := Collect(paths)
	if err != nil {
		return nil, err
	}
	merged := &Document{}
	for _, f := range files {
		doc, err := LoadFile(f)
		if err != nil {
			return nil, err
		}
		merged.Sites = append(merged.Sites, doc.Sites...)
	}
	return merged, nil
}
