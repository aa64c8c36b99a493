package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"infoproc/internal/trace"
)

// Archive is an opened coverage archive. Its configuration is parsed on
// open when present; archives without one still open but cannot pair
// their members.
type Archive struct {
	path string
	zr   *zip.ReadCloser
	cfg  *Config
}

// Open opens a coverage archive for reading.
func Open(path string) (*Archive, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	a := &Archive{path: path, zr: zr}
	for _, f := range zr.File {
		if f.Name != configMember {
			continue
		}
		data, err := a.ReadMember(configMember)
		if err == nil {
			a.cfg, err = ParseConfig(data)
		}
		if err != nil {
			zr.Close()
			return nil, fmt.Errorf("%s: %s: %w", path, configMember, err)
		}
		break
	}
	return a, nil
}

// Close releases the underlying zip reader.
func (a *Archive) Close() error {
	return a.zr.Close()
}

// Path returns the archive's file path.
func (a *Archive) Path() string {
	return a.path
}

// Config returns the archive's configuration, nil when it carries none.
func (a *Archive) Config() *Config {
	return a.cfg
}

// Members lists the archive's member names in archive order.
func (a *Archive) Members() []string {
	names := make([]string, 0, len(a.zr.File))
	for _, f := range a.zr.File {
		names = append(names, f.Name)
	}
	return names
}

// ReadMember returns one member's contents.
func (a *Archive) ReadMember(name string) ([]byte, error) {
	rc, err := a.zr.Open(name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", a.path, err)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// LoadStream loads one member as a tracefile stream.
func (a *Archive) LoadStream(name string, opts ...trace.StreamOption) (*trace.Stream, error) {
	data, err := a.ReadMember(name)
	if err != nil {
		return nil, err
	}
	s := trace.NewStream(opts...)
	if err := s.Load(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("%s: %s: %w", a.path, name, err)
	}
	return s, nil
}

// MemberPair names a dataset's tracefile and its optional test
// description file.
type MemberPair struct {
	Info string
	Desc string
}

// PairedFiles resolves every dataset file the configuration lists
// against the paths available, matching by base name in listing order.
// A listed file that cannot be resolved is an error.
func PairedFiles(d *Datasets, availableInfos, availableDescs []string) ([]MemberPair, error) {
	var pairs []MemberPair
	for _, name := range d.Names() {
		set, _ := d.Dataset(name)
		for _, ct := range set.Types() {
			files, _ := set.Files(ct)
			info, ok := findByBase(availableInfos, files.Info)
			if !ok {
				return nil, fmt.Errorf("coverage file not found: %s", files.Info)
			}
			pair := MemberPair{Info: info}
			if files.Desc != "" {
				desc, ok := findByBase(availableDescs, files.Desc)
				if !ok {
					return nil, fmt.Errorf("description file not found: %s", files.Desc)
				}
				pair.Desc = desc
			}
			pairs = append(pairs, pair)
		}
	}
	return pairs, nil
}

// PairedFiles resolves the configuration's dataset listing against the
// archive's members.
func (a *Archive) PairedFiles() ([]MemberPair, error) {
	if a.cfg == nil || a.cfg.Datasets() == nil {
		return nil, fmt.Errorf("%s is not a valid coverage archive, its %s lists no datasets", a.path, configMember)
	}
	var infos, descs []string
	for _, name := range a.Members() {
		switch {
		case strings.HasSuffix(name, ".info"):
			infos = append(infos, name)
		case strings.HasSuffix(name, ".desc"):
			descs = append(descs, name)
		}
	}
	return PairedFiles(a.cfg.Datasets(), infos, descs)
}

// StreamPair is one dataset member with its loaded stream on each side
// of a comparison.
type StreamPair struct {
	Name  string
	Base  *trace.Stream
	Other *trace.Stream
}

// PairStreams loads the coverage members two archives share, pairing
// one-sided members against empty streams. Pairs are named by member
// name without its extension and returned sorted by name. The archives
// must share at least one coverage member.
func PairStreams(base, other *Archive, opts ...trace.StreamOption) ([]StreamPair, error) {
	baseInfos, err := infoMembers(base)
	if err != nil {
		return nil, err
	}
	otherInfos, err := infoMembers(other)
	if err != nil {
		return nil, err
	}

	shared := false
	members := make([]string, 0, len(baseInfos)+len(otherInfos))
	for member := range baseInfos {
		if otherInfos[member] {
			shared = true
		}
		members = append(members, member)
	}
	for member := range otherInfos {
		if !baseInfos[member] {
			members = append(members, member)
		}
	}
	if !shared {
		return nil, fmt.Errorf("archives %s and %s share no dataset member, nothing to compare", base.path, other.path)
	}
	sort.Strings(members)

	pairs := make([]StreamPair, 0, len(members))
	for _, member := range members {
		pair := StreamPair{Name: trimExt(member)}
		if baseInfos[member] {
			if pair.Base, err = base.LoadStream(member, opts...); err != nil {
				return nil, err
			}
		} else {
			pair.Base = trace.NewStream(opts...)
		}
		if otherInfos[member] {
			if pair.Other, err = other.LoadStream(member, opts...); err != nil {
				return nil, err
			}
		} else {
			pair.Other = trace.NewStream(opts...)
		}
		pairs = append(pairs, pair)
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Name < pairs[j].Name })
	return pairs, nil
}

func infoMembers(a *Archive) (map[string]bool, error) {
	pairs, err := a.PairedFiles()
	if err != nil {
		return nil, err
	}
	members := make(map[string]bool, len(pairs))
	for _, p := range pairs {
		members[p.Info] = true
	}
	return members, nil
}

func trimExt(member string) string {
	base := filepath.Base(member)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func findByBase(paths []string, base string) (string, bool) {
	for _, path := range paths {
		if filepath.Base(path) == base {
			return path, true
		}
	}
	return "", false
}
