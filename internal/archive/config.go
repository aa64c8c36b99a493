// Package archive reads and writes coverage archives: zip files (or
// directories) carrying a configuration, the combined program sources,
// and the dataset tracefiles with their optional test description
// files.
package archive

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"

	"go.uber.org/zap"
)

const (
	configMember  = "config.json"
	sourcesMember = "sources.txt"
)

// canonicalTypeOrder is the order coverage types are listed in within a
// generated dataset; anything else follows sorted.
var canonicalTypeOrder = []string{"line", "branch", "cond", "toggle"}

var infoPattern = regexp.MustCompile(`^coverage_(\w+)_(\w+).info`)

// ExtractTypeAndDataset derives the coverage type and dataset from a
// file named after the coverage_{type}_{dataset}.info convention.
func ExtractTypeAndDataset(path string) (coverageType, dataset string, ok bool) {
	m := infoPattern.FindStringSubmatch(filepath.Base(path))
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// DatasetFiles names one coverage type's files: the tracefile and an
// optional test description file.
type DatasetFiles struct {
	Info string
	Desc string
}

// Dataset lists one dataset's coverage types in declaration order.
type Dataset struct {
	types []string
	files map[string]DatasetFiles
}

func newDataset() *Dataset {
	return &Dataset{files: make(map[string]DatasetFiles)}
}

// Types returns the dataset's coverage types in declaration order.
func (d *Dataset) Types() []string {
	return append([]string(nil), d.types...)
}

// Files returns the files of one coverage type.
func (d *Dataset) Files(coverageType string) (DatasetFiles, bool) {
	files, ok := d.files[coverageType]
	return files, ok
}

func (d *Dataset) set(coverageType string, files DatasetFiles) {
	if _, ok := d.files[coverageType]; !ok {
		d.types = append(d.types, coverageType)
	}
	d.files[coverageType] = files
}

// Datasets maps dataset names to their coverage types. Declaration
// order is kept so a configuration round-trips stably.
type Datasets struct {
	names []string
	sets  map[string]*Dataset
}

func newDatasets() *Datasets {
	return &Datasets{sets: make(map[string]*Dataset)}
}

// Names returns the dataset names in declaration order.
func (d *Datasets) Names() []string {
	return append([]string(nil), d.names...)
}

// Dataset returns one dataset by name.
func (d *Datasets) Dataset(name string) (*Dataset, bool) {
	set, ok := d.sets[name]
	return set, ok
}

func (d *Datasets) set(name, coverageType string, files DatasetFiles) {
	set, ok := d.sets[name]
	if !ok {
		set = newDataset()
		d.sets[name] = set
		d.names = append(d.names, name)
	}
	set.set(coverageType, files)
}

// TypeAndDataset resolves the coverage type and dataset a member file
// belongs to, matching the member name against the listing exactly.
func (d *Datasets) TypeAndDataset(member string) (coverageType, dataset string, ok bool) {
	for _, name := range d.names {
		set := d.sets[name]
		for _, ct := range set.types {
			files := set.files[ct]
			if files.Info == member || (files.Desc != "" && files.Desc == member) {
				return ct, name, true
			}
		}
	}
	return "", "", false
}

// UnmarshalJSON decodes the datasets object keeping key order.
func (d *Datasets) UnmarshalJSON(data []byte) error {
	*d = *newDatasets()
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := expectDelim(dec, '{'); err != nil {
		return fmt.Errorf("datasets: %w", err)
	}
	for dec.More() {
		name, err := stringToken(dec)
		if err != nil {
			return fmt.Errorf("datasets: %w", err)
		}
		if err := expectDelim(dec, '{'); err != nil {
			return fmt.Errorf("dataset %q: %w", name, err)
		}
		for dec.More() {
			coverageType, err := stringToken(dec)
			if err != nil {
				return fmt.Errorf("dataset %q: %w", name, err)
			}
			var raw json.RawMessage
			if err := dec.Decode(&raw); err != nil {
				return fmt.Errorf("dataset %q: %w", name, err)
			}
			files, err := parseDatasetFiles(raw)
			if err != nil {
				return fmt.Errorf("dataset %q, type %q: %w", name, coverageType, err)
			}
			d.set(name, coverageType, files)
		}
		if _, err := dec.Token(); err != nil {
			return err
		}
	}
	_, err := dec.Token()
	return err
}

// MarshalJSON encodes the datasets object in declaration order. Paired
// entries serialize as a two-element [info, desc] list, unpaired ones as
// a bare string.
func (d *Datasets) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range d.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeKey(&buf, name); err != nil {
			return nil, err
		}
		set := d.sets[name]
		buf.WriteByte('{')
		for j, ct := range set.types {
			if j > 0 {
				buf.WriteByte(',')
			}
			if err := writeKey(&buf, ct); err != nil {
				return nil, err
			}
			files := set.files[ct]
			var value any = files.Info
			if files.Desc != "" {
				value = []string{files.Info, files.Desc}
			}
			encoded, err := json.Marshal(value)
			if err != nil {
				return nil, err
			}
			buf.Write(encoded)
		}
		buf.WriteByte('}')
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func parseDatasetFiles(raw json.RawMessage) (DatasetFiles, error) {
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return DatasetFiles{Info: single}, nil
	}
	var pair []string
	if err := json.Unmarshal(raw, &pair); err != nil || len(pair) != 2 {
		return DatasetFiles{}, fmt.Errorf("invalid dataset files %s, only pairs of .info and .desc files are allowed", raw)
	}
	switch {
	case hasExt(pair[0], ".info") && hasExt(pair[1], ".desc"):
		return DatasetFiles{Info: pair[0], Desc: pair[1]}, nil
	case hasExt(pair[0], ".desc") && hasExt(pair[1], ".info"):
		return DatasetFiles{Info: pair[1], Desc: pair[0]}, nil
	}
	return DatasetFiles{}, fmt.Errorf("invalid dataset files %s, only pairs of .info and .desc files are allowed", raw)
}

func hasExt(name, ext string) bool {
	return filepath.Ext(name) == ext
}

// Config is a coverage viewer configuration file. Keys keep their file
// order and unknown keys pass through packing untouched.
type Config struct {
	keys     []string
	raw      map[string]json.RawMessage
	datasets *Datasets
}

// NewConfig returns an empty configuration.
func NewConfig() *Config {
	return &Config{raw: make(map[string]json.RawMessage)}
}

// ParseConfig decodes a configuration file.
func ParseConfig(data []byte) (*Config, error) {
	cfg := NewConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Datasets returns the parsed datasets listing, nil when the
// configuration has none.
func (c *Config) Datasets() *Datasets {
	return c.datasets
}

// SetDatasets installs a datasets listing, appending the key when the
// configuration had none.
func (c *Config) SetDatasets(d *Datasets) {
	if _, ok := c.raw["datasets"]; !ok {
		c.keys = append(c.keys, "datasets")
		c.raw["datasets"] = nil
	}
	c.datasets = d
}

// UnmarshalJSON decodes the configuration keeping key order.
func (c *Config) UnmarshalJSON(data []byte) error {
	*c = *NewConfig()
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := expectDelim(dec, '{'); err != nil {
		return fmt.Errorf("configuration: %w", err)
	}
	for dec.More() {
		key, err := stringToken(dec)
		if err != nil {
			return fmt.Errorf("configuration: %w", err)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("configuration key %q: %w", key, err)
		}
		if _, ok := c.raw[key]; !ok {
			c.keys = append(c.keys, key)
		}
		c.raw[key] = raw
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	if raw, ok := c.raw["datasets"]; ok {
		c.datasets = newDatasets()
		if err := json.Unmarshal(raw, c.datasets); err != nil {
			return err
		}
	}
	return nil
}

// MarshalJSON encodes the configuration in key order.
func (c *Config) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range c.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeKey(&buf, key); err != nil {
			return nil, err
		}
		if key == "datasets" && c.datasets != nil {
			encoded, err := c.datasets.MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(encoded)
			continue
		}
		buf.Write(c.raw[key])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Encode serializes the configuration with two-space indentation.
func (c *Config) Encode() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// GenerateDatasets builds a datasets listing from files following the
// default naming convention. Coverage files must match
// coverage_{type}_{dataset}.info; descriptions pair up through the
// matching tests_{type}_{dataset}.desc name, and coverage files without
// one are listed alone with a warning.
func GenerateDatasets(coverageFiles, descriptionFiles []string, logger *zap.Logger) (*Datasets, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	working := newDatasets()
	for _, path := range coverageFiles {
		base := filepath.Base(path)
		coverageType, dataset, ok := ExtractTypeAndDataset(base)
		if !ok {
			return nil, fmt.Errorf("coverage file %s does not follow the coverage_{type}_{dataset}.info naming, list it in the configuration's datasets instead", path)
		}
		files := DatasetFiles{Info: base}
		descBase := fmt.Sprintf("tests_%s_%s.desc", coverageType, dataset)
		for _, descPath := range descriptionFiles {
			if filepath.Base(descPath) == descBase {
				files.Desc = descBase
				break
			}
		}
		if files.Desc == "" {
			logger.Warn("coverage file has no matching test description file",
				zap.String("coverage", base),
				zap.String("expected", descBase))
		}
		working.set(dataset, coverageType, files)
	}
	return working.canonicalized(), nil
}

// canonicalized reorders every dataset's types into canonical order with
// unknown types sorted after them.
func (d *Datasets) canonicalized() *Datasets {
	out := newDatasets()
	for _, name := range d.names {
		set := d.sets[name]
		canonical := make(map[string]bool, len(canonicalTypeOrder))
		for _, ct := range canonicalTypeOrder {
			canonical[ct] = true
		}
		rest := make([]string, 0, len(set.types))
		for _, ct := range set.types {
			if !canonical[ct] {
				rest = append(rest, ct)
			}
		}
		sort.Strings(rest)
		for _, ct := range append(append([]string(nil), canonicalTypeOrder...), rest...) {
			if files, ok := set.files[ct]; ok {
				out.set(name, ct, files)
			}
		}
	}
	return out
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}

func stringToken(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", err
	}
	s, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("expected a key, got %v", tok)
	}
	return s, nil
}

func writeKey(buf *bytes.Buffer, key string) error {
	encoded, err := json.Marshal(key)
	if err != nil {
		return err
	}
	buf.Write(encoded)
	buf.WriteByte(':')
	return nil
}
