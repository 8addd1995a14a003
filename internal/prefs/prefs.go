// Package prefs reads, merges and writes AutoPkg's preferences property list.
//
// The merge has two states. Without an existing preferences file the new
// input is used as is; with one, the input is merged over it one level deep:
// keys in the input win, keys only in the existing file are kept.
package prefs

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
	"howett.net/plist"

	"autopkg-setup/internal/logger"
	"autopkg-setup/internal/runner"
)

// Mapping is a flat preferences dictionary.
type Mapping map[string]any

// Output formats for Write.
const (
	FormatXML    = "xml"
	FormatBinary = "binary"
)

// ConfigurationError is fatal: the credentials file is missing or the
// preferences could not be written. The CLI exits with status 1 on it.
type ConfigurationError struct {
	Path string
	Msg  string
	Err  error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (%s): %v", e.Msg, e.Path, e.Err)
	}
	return fmt.Sprintf("%s (%s)", e.Msg, e.Path)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// Read loads an existing preferences file by converting it to JSON with
// plutil. The boolean is false when there is no file at path. The converted
// output holds the JSS credentials, so the call never echoes it.
func Read(r runner.Runner, plutil, path string) (Mapping, bool, error) {
	content, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read %s: %w", path, err)
	}

	res, err := r.Run(runner.Invocation{
		Args:  []string{plutil, "-convert", "json", "-o", "-", "--", "-"},
		Stdin: content,
		Quiet: true,
	})
	if err != nil {
		return nil, false, err
	}
	if !res.Success() {
		return nil, false, fmt.Errorf("plutil could not convert %s: %s", path, res.Combined())
	}

	m, err := decodeJSON(res.Stdout)
	if err != nil {
		return nil, false, fmt.Errorf("failed to parse converted %s: %w", path, err)
	}
	return m, true, nil
}

// decodeJSON keeps integral numbers as int64 so they are written back as
// <integer> rather than <real>.
func decodeJSON(data []byte) (Mapping, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return Mapping(normalizeMap(raw)), nil
}

func normalizeMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = normalize(v)
	}
	return out
}

func normalize(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	case map[string]any:
		return normalizeMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalize(e)
		}
		return out
	default:
		return v
	}
}

// LoadInput reads the user's YAML credentials/preferences file.
func LoadInput(path string) (Mapping, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, &ConfigurationError{
			Path: path,
			Msg:  "no credentials file found, please create it with your JSS URL, API user and password",
		}
	}
	if err != nil {
		return nil, &ConfigurationError{Path: path, Msg: "credentials file could not be read", Err: err}
	}

	var m Mapping
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, &ConfigurationError{Path: path, Msg: "credentials file is not a YAML mapping", Err: err}
	}
	if m == nil {
		m = Mapping{}
	}
	return m, nil
}

// Merge returns a new mapping holding existing overlaid with incoming.
// Neither argument is modified. Nested dictionaries are replaced, not merged.
func Merge(existing, incoming Mapping) Mapping {
	out := make(Mapping, len(existing)+len(incoming))
	for k, v := range existing {
		out[k] = v
	}
	for k, v := range incoming {
		out[k] = v
	}
	return out
}

// Encode serializes m as a property list. XML output ends with a newline.
func Encode(m Mapping, format string) ([]byte, error) {
	clean := make(map[string]any, len(m))
	for k, v := range m {
		// property lists have no null
		if v == nil {
			logger.Warn("[WARN] Dropping preference %s: empty value\n", k)
			continue
		}
		clean[k] = v
	}

	switch format {
	case FormatBinary:
		return plist.Marshal(clean, plist.BinaryFormat)
	case FormatXML, "":
		out, err := plist.MarshalIndent(clean, plist.XMLFormat, "\t")
		if err != nil {
			return nil, err
		}
		if !bytes.HasSuffix(out, []byte("\n")) {
			out = append(out, '\n')
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown property list format %q", format)
	}
}

// Write encodes m and replaces the file at path with it. The data goes to a
// temp file in the same directory first and is renamed into place. An
// existing file keeps its permissions; a new one is created 0644.
func Write(path string, m Mapping, format string) error {
	fail := func(err error) error {
		return &ConfigurationError{Path: path, Msg: "AutoPkg preferences could not be created", Err: err}
	}

	data, err := Encode(m, format)
	if err != nil {
		return fail(err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fail(err)
	}

	perm := os.FileMode(0644)
	if fi, err := os.Stat(path); err == nil {
		perm = fi.Mode().Perm()
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fail(err)
	}
	tmpName := tmp.Name()

	_, err = tmp.Write(data)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Chmod(tmpName, perm)
	}
	if err == nil {
		err = os.Rename(tmpName, path)
	}
	if err != nil {
		_ = os.Remove(tmpName)
		return fail(err)
	}

	logger.Debug("[DEBUG] Wrote %d keys to %s\n", len(m), path)
	return nil
}

// MergeFile runs the whole flow: read the existing preferences (if any),
// load the input file, merge, and write the result back to prefsPath.
func MergeFile(r runner.Runner, plutil, prefsPath, inputPath, format string) (Mapping, error) {
	existing, found, err := Read(r, plutil, prefsPath)
	if err != nil {
		return nil, err
	}
	if found {
		logger.Info("[INFO] Merging into existing %s (%d keys)\n", filepath.Base(prefsPath), len(existing))
	} else {
		logger.Info("[INFO] No existing %s\n", filepath.Base(prefsPath))
	}

	incoming, err := LoadInput(inputPath)
	if err != nil {
		return nil, err
	}

	merged := Merge(existing, incoming)
	if err := Write(prefsPath, merged, format); err != nil {
		return nil, err
	}
	return merged, nil
}
