package application

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	formatkit "github.com/gobeaver/formatkit"
)

func init() {
	formatkit.RegisterLoader(Json, func(fs *formatkit.FileSet) (any, error) {
		contents, err := fs.Contents()
		if err != nil {
			return nil, err
		}
		var v any
		if err := json.Unmarshal(contents, &v); err != nil {
			return nil, formatkit.NewError(formatkit.KindMismatch, "%s is not well-formed JSON: %v", fs, err)
		}
		return v, nil
	})
	formatkit.RegisterSaver(Json, func(value any, path string) error {
		data, err := json.MarshalIndent(value, "", "  ")
		if err != nil {
			return err
		}
		return os.WriteFile(path, append(data, '\n'), 0o644)
	})
	formatkit.RegisterLoader(Yaml, func(fs *formatkit.FileSet) (any, error) {
		contents, err := fs.Contents()
		if err != nil {
			return nil, err
		}
		var v any
		if err := yaml.Unmarshal(contents, &v); err != nil {
			return nil, formatkit.NewError(formatkit.KindMismatch, "%s is not well-formed YAML: %v", fs, err)
		}
		return v, nil
	})
	formatkit.RegisterSaver(Yaml, func(value any, path string) error {
		data, err := yaml.Marshal(value)
		if err != nil {
			return err
		}
		return os.WriteFile(path, data, 0o644)
	})
	formatkit.RegisterSampleGenerator(Json, func(destDir string) ([]string, error) {
		path := filepath.Join(destDir, "sample.json")
		if err := os.WriteFile(path, []byte("{\"a\": 1, \"b\": [\"x\", \"y\"]}\n"), 0o644); err != nil {
			return nil, err
		}
		return []string{path}, nil
	})
	formatkit.RegisterSampleGenerator(Yaml, func(destDir string) ([]string, error) {
		path := filepath.Join(destDir, "sample.yaml")
		if err := os.WriteFile(path, []byte("a: 1\nb:\n  - x\n  - y\n"), 0o644); err != nil {
			return nil, err
		}
		return []string{path}, nil
	})

	formatkit.MustRegisterConverter(formatkit.Converter{
		Task: formatkit.NewTask("json_to_yaml", jsonToYamlTask),
		In:   Json,
		Out:  Yaml,
	})
	formatkit.MustRegisterConverter(formatkit.Converter{
		Task: formatkit.NewTask("yaml_to_json", yamlToJsonTask),
		In:   Yaml,
		Out:  Json,
	})
}

func jsonToYamlTask(ctx context.Context, in *formatkit.FileSet, target *formatkit.Format, args map[string]any) (*formatkit.FileSet, error) {
	return transcode(in, target, ".yaml", args)
}

func yamlToJsonTask(ctx context.Context, in *formatkit.FileSet, target *formatkit.Format, args map[string]any) (*formatkit.FileSet, error) {
	return transcode(in, target, ".json", args)
}

// transcode reads the source through its loader and writes it back out
// through the target's saver, so the conversion inherits both formats'
// well-formedness checks.
func transcode(in *formatkit.FileSet, target *formatkit.Format, ext string, args map[string]any) (*formatkit.FileSet, error) {
	value, err := in.Load()
	if err != nil {
		return nil, err
	}
	destDir, err := destDirFor(args)
	if err != nil {
		return nil, err
	}
	src, err := in.Primary()
	if err != nil {
		return nil, err
	}
	stem, _ := in.Format().SplitExtension(src)
	return target.Save(value, filepath.Join(destDir, stem+ext))
}
