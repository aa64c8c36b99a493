package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"infoproc/internal/trace"
)

// CollectSources gathers every source file the given tracefiles mention
// and concatenates their contents, each preceded by a "### FILE: path"
// marker, in sorted path order. Paths resolve relative to root when it
// is set.
func CollectSources(coverageFiles []string, root string) ([]byte, error) {
	found := make(map[string]struct{})
	collect := func(prefix trace.Prefix, payload string, rec *trace.Record) (trace.EntryResult, error) {
		found[payload] = struct{}{}
		return trace.Keep(payload), nil
	}

	for _, path := range coverageFiles {
		s := trace.NewStream()
		s.InstallHandler([]trace.Prefix{trace.PrefixSF}, collect)
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		err = s.Load(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	paths := make([]string, 0, len(found))
	for path := range found {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	var buf bytes.Buffer
	for _, source := range paths {
		osPath := source
		if root != "" {
			osPath = filepath.Join(root, source)
		}
		data, err := os.ReadFile(osPath)
		if err != nil {
			return nil, fmt.Errorf("source file could not be opened: %w", err)
		}
		fmt.Fprintf(&buf, "### FILE: %s\n", source)
		buf.Write(data)
	}
	return buf.Bytes(), nil
}

// PackZip writes a coverage archive: the configuration, the combined
// sources, and every listed file flattened to its base name. An
// existing archive at the path is replaced.
func PackZip(output string, cfg *Config, sources []byte, files []string) (err error) {
	if err := os.Remove(output); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	out, err := os.Create(output)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()

	zw := zip.NewWriter(out)
	if err := writeFixedMembers(zw, cfg, sources); err != nil {
		return err
	}
	for _, file := range files {
		if err := copyIntoZip(zw, file); err != nil {
			return err
		}
	}
	return zw.Close()
}

// PackDirectory writes the archive layout into a directory instead of a
// zip. An existing directory at the path is replaced.
func PackDirectory(output string, cfg *Config, sources []byte, files []string) error {
	if info, err := os.Stat(output); err == nil && info.IsDir() {
		if err := os.RemoveAll(output); err != nil {
			return err
		}
	}
	if err := os.MkdirAll(output, 0o755); err != nil {
		return err
	}

	data, err := cfg.Encode()
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(output, configMember), data, 0o644); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(output, sourcesMember), sources, 0o644); err != nil {
		return err
	}
	for _, file := range files {
		if err := copyFile(file, filepath.Join(output, filepath.Base(file))); err != nil {
			return err
		}
	}
	return nil
}

func writeFixedMembers(zw *zip.Writer, cfg *Config, sources []byte) error {
	data, err := cfg.Encode()
	if err != nil {
		return err
	}
	for _, member := range []struct {
		name string
		data []byte
	}{
		{configMember, data},
		{sourcesMember, sources},
	} {
		w, err := zw.Create(member.name)
		if err != nil {
			return err
		}
		if _, err := w.Write(member.data); err != nil {
			return err
		}
	}
	return nil
}

func copyIntoZip(zw *zip.Writer, path string) error {
	in, err := os.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()

	w, err := zw.Create(filepath.Base(path))
	if err != nil {
		return err
	}
	_, err = io.Copy(w, in)
	return err
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	_, err = io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	return err
}
