package application

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	iofs "io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	formatkit "github.com/gobeaver/formatkit"
)

func init() {
	formatkit.MustRegisterConverter(formatkit.Converter{
		Task: formatkit.NewTask("zip", zipTask),
		In:   formatkit.AnyFileSet,
		Out:  Zip.Of(formatkit.AnyFileSet),
	})
	formatkit.MustRegisterConverter(formatkit.Converter{
		Task: formatkit.NewTask("unzip", unzipTask),
		In:   Zip.Of(formatkit.AnyFileSet),
		Out:  formatkit.AnyFileSet,
	})
	formatkit.MustRegisterConverter(formatkit.Converter{
		Task: formatkit.NewTask("tar", tarTask),
		In:   formatkit.AnyFileSet,
		Out:  Tar.Of(formatkit.AnyFileSet),
	})
	formatkit.MustRegisterConverter(formatkit.Converter{
		Task: formatkit.NewTask("tar_gzip", tarGzipTask),
		In:   formatkit.AnyFileSet,
		Out:  TarGzip.Of(formatkit.AnyFileSet),
	})
	formatkit.MustRegisterConverter(formatkit.Converter{
		Task: formatkit.NewTask("untar", untarTask),
		In:   Tar.Of(formatkit.AnyFileSet),
		Out:  formatkit.AnyFileSet,
	})
	formatkit.MustRegisterConverter(formatkit.Converter{
		Task: formatkit.NewTask("untar_gzip", untarGzipTask),
		In:   TarGzip.Of(formatkit.AnyFileSet),
		Out:  formatkit.AnyFileSet,
	})
	formatkit.MustRegisterConverter(formatkit.Converter{
		Task: formatkit.NewTask("gzip", gzipTask),
		In:   formatkit.AnyFileSet,
		Out:  Gzip.Of(formatkit.AnyFileSet),
	})
	formatkit.MustRegisterConverter(formatkit.Converter{
		Task: formatkit.NewTask("gunzip", gunzipTask),
		In:   Gzip.Of(formatkit.AnyFileSet),
		Out:  formatkit.AnyFileSet,
	})
}

// destDirFor resolves where a conversion task writes its output: the
// "dest_dir" argument when present, a fresh directory under the
// configured scratch directory otherwise.
func destDirFor(args map[string]any) (string, error) {
	if d, ok := args["dest_dir"].(string); ok && d != "" {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return "", err
		}
		return d, nil
	}
	scratch, err := formatkit.ScratchDir()
	if err != nil {
		return "", err
	}
	return os.MkdirTemp(scratch, "convert-")
}

func archiveStem(in *formatkit.FileSet) string {
	paths := in.Paths()
	stem, _ := in.Format().SplitExtension(paths[0])
	return stem
}

// archiveEntries maps each covered file to its path within the archive:
// files inside a directory path keep their position relative to that
// directory, so unpacking reproduces the original tree.
func archiveEntries(in *formatkit.FileSet) (map[string]string, error) {
	files, err := in.AllFilePaths()
	if err != nil {
		return nil, err
	}
	roots := in.Paths()
	entries := make(map[string]string, len(files))
	for _, f := range files {
		name := filepath.Base(f)
		for _, root := range roots {
			prefix := root + string(filepath.Separator)
			if strings.HasPrefix(f, prefix) {
				rel, err := filepath.Rel(root, f)
				if err != nil {
					return nil, err
				}
				name = filepath.ToSlash(rel)
				break
			}
		}
		entries[f] = name
	}
	return entries, nil
}

func zipTask(ctx context.Context, in *formatkit.FileSet, target *formatkit.Format, args map[string]any) (*formatkit.FileSet, error) {
	destDir, err := destDirFor(args)
	if err != nil {
		return nil, err
	}
	dest := filepath.Join(destDir, archiveStem(in)+".zip")
	entries, err := archiveEntries(in)
	if err != nil {
		return nil, err
	}
	file, err := os.Create(dest)
	if err != nil {
		return nil, err
	}
	writer := zip.NewWriter(file)
	for _, src := range sortedKeys(entries) {
		if err := ctx.Err(); err != nil {
			writer.Close()
			file.Close()
			return nil, err
		}
		w, err := writer.Create(entries[src])
		if err != nil {
			writer.Close()
			file.Close()
			return nil, err
		}
		if err := writeFileTo(w, src); err != nil {
			writer.Close()
			file.Close()
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		file.Close()
		return nil, err
	}
	if err := file.Close(); err != nil {
		return nil, err
	}
	return target.New(dest)
}

func unzipTask(ctx context.Context, in *formatkit.FileSet, target *formatkit.Format, args map[string]any) (*formatkit.FileSet, error) {
	destDir, err := destDirFor(args)
	if err != nil {
		return nil, err
	}
	src, err := in.Primary()
	if err != nil {
		return nil, err
	}
	reader, err := zip.OpenReader(src)
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	var extracted []string
	for _, entry := range reader.File {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dest, err := safeExtractPath(destDir, entry.Name)
		if err != nil {
			return nil, err
		}
		if entry.FileInfo().IsDir() {
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return nil, err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return nil, err
		}
		rc, err := entry.Open()
		if err != nil {
			return nil, err
		}
		err = writeReaderTo(dest, rc, entry.Mode())
		rc.Close()
		if err != nil {
			return nil, err
		}
		extracted = append(extracted, dest)
	}
	return wrapExtracted(target, destDir, extracted)
}

func tarTask(ctx context.Context, in *formatkit.FileSet, target *formatkit.Format, args map[string]any) (*formatkit.FileSet, error) {
	return writeTar(ctx, in, target, args, false)
}

func tarGzipTask(ctx context.Context, in *formatkit.FileSet, target *formatkit.Format, args map[string]any) (*formatkit.FileSet, error) {
	return writeTar(ctx, in, target, args, true)
}

func writeTar(ctx context.Context, in *formatkit.FileSet, target *formatkit.Format, args map[string]any, compress bool) (*formatkit.FileSet, error) {
	destDir, err := destDirFor(args)
	if err != nil {
		return nil, err
	}
	ext := ".tar"
	if compress {
		ext = ".tar.gz"
	}
	dest := filepath.Join(destDir, archiveStem(in)+ext)
	entries, err := archiveEntries(in)
	if err != nil {
		return nil, err
	}
	file, err := os.Create(dest)
	if err != nil {
		return nil, err
	}
	var w io.WriteCloser = file
	var gz *gzip.Writer
	if compress {
		gz = gzip.NewWriter(file)
		w = gz
	}
	tw := tar.NewWriter(w)
	for _, src := range sortedKeys(entries) {
		if err := ctx.Err(); err != nil {
			break
		}
		err = addTarEntry(tw, src, entries[src])
		if err != nil {
			break
		}
	}
	if cerr := tw.Close(); err == nil {
		err = cerr
	}
	if gz != nil {
		if cerr := gz.Close(); err == nil {
			err = cerr
		}
	}
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, err
	}
	return target.New(dest)
}

func addTarEntry(tw *tar.Writer, src, name string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	hdr.Name = name
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	return writeFileTo(tw, src)
}

func untarTask(ctx context.Context, in *formatkit.FileSet, target *formatkit.Format, args map[string]any) (*formatkit.FileSet, error) {
	return readTar(ctx, in, target, args, false)
}

func untarGzipTask(ctx context.Context, in *formatkit.FileSet, target *formatkit.Format, args map[string]any) (*formatkit.FileSet, error) {
	return readTar(ctx, in, target, args, true)
}

func readTar(ctx context.Context, in *formatkit.FileSet, target *formatkit.Format, args map[string]any, compressed bool) (*formatkit.FileSet, error) {
	destDir, err := destDirFor(args)
	if err != nil {
		return nil, err
	}
	src, err := in.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()
	var r io.Reader = src
	if compressed {
		gz, err := gzip.NewReader(src)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		r = gz
	}
	tr := tar.NewReader(r)
	var extracted []string
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		dest, err := safeExtractPath(destDir, hdr.Name)
		if err != nil {
			return nil, err
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return nil, err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
				return nil, err
			}
			if err := writeReaderTo(dest, tr, iofs.FileMode(hdr.Mode)); err != nil {
				return nil, err
			}
			extracted = append(extracted, dest)
		}
	}
	return wrapExtracted(target, destDir, extracted)
}

func gzipTask(ctx context.Context, in *formatkit.FileSet, target *formatkit.Format, args map[string]any) (*formatkit.FileSet, error) {
	destDir, err := destDirFor(args)
	if err != nil {
		return nil, err
	}
	src, err := in.Primary()
	if err != nil {
		return nil, err
	}
	dest := filepath.Join(destDir, filepath.Base(src)+".gz")
	out, err := os.Create(dest)
	if err != nil {
		return nil, err
	}
	gz := gzip.NewWriter(out)
	gz.Name = filepath.Base(src)
	err = writeFileTo(gz, src)
	if cerr := gz.Close(); err == nil {
		err = cerr
	}
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, err
	}
	return target.New(dest)
}

func gunzipTask(ctx context.Context, in *formatkit.FileSet, target *formatkit.Format, args map[string]any) (*formatkit.FileSet, error) {
	destDir, err := destDirFor(args)
	if err != nil {
		return nil, err
	}
	src, err := in.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()
	gz, err := gzip.NewReader(src)
	if err != nil {
		return nil, err
	}
	defer gz.Close()
	name := gz.Name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(src.Name()), ".gz")
	}
	dest, err := safeExtractPath(destDir, name)
	if err != nil {
		return nil, err
	}
	if err := writeReaderTo(dest, gz, 0o644); err != nil {
		return nil, err
	}
	return target.New(dest)
}

// safeExtractPath joins an archive entry name onto destDir, rejecting
// entries that would escape it.
func safeExtractPath(destDir, name string) (string, error) {
	dest := filepath.Join(destDir, filepath.FromSlash(name))
	if !strings.HasPrefix(dest, filepath.Clean(destDir)+string(filepath.Separator)) {
		return "", fmt.Errorf("archive entry %q escapes the extraction directory", name)
	}
	return dest, nil
}

// wrapExtracted wraps extraction output in the target format: the
// top-level extracted entries for directory targets, the extracted files
// otherwise.
func wrapExtracted(target *formatkit.Format, destDir string, extracted []string) (*formatkit.FileSet, error) {
	if len(extracted) == 0 {
		return nil, fmt.Errorf("archive was empty")
	}
	if target.IsDir() {
		return target.New(destDir)
	}
	return target.New(extracted...)
}

func writeFileTo(w io.Writer, src string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}

func writeReaderTo(dest string, r io.Reader, mode iofs.FileMode) error {
	if mode == 0 {
		mode = 0o644
	}
	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode.Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func sortedKeys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
