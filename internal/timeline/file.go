package timeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

var ErrUnsupportedFormat = errors.New("unsupported project file format")

type FileFormat string

const (
	FormatJSON FileFormat = "json"
	FormatYAML FileFormat = "yaml"
)

// FormatForPath picks the encoding from a file extension.
func FormatForPath(path string) (FileFormat, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
}

func DecodeProject(data []byte, format FileFormat) (*Project, error) {
	var p Project
	var err error
	switch format {
	case FormatJSON:
		err = json.Unmarshal(data, &p)
	case FormatYAML:
		err = yaml.Unmarshal(data, &p)
	default:
		return nil, ErrUnsupportedFormat
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s project: %w", format, err)
	}
	if p.Timeline.Segments == nil && len(p.Recordings) > 0 {
		p.Timeline.Segments = DefaultTimeline(p.Recordings).Segments
	}
	for _, kind := range AnnotationKinds {
		tr, _ := p.Timeline.annotations(kind)
		tr.Sort()
	}
	return &p, nil
}

func EncodeProject(p *Project, format FileFormat) ([]byte, error) {
	switch format {
	case FormatJSON:
		return json.MarshalIndent(p, "", "  ")
	case FormatYAML:
		return yaml.Marshal(p)
	}
	return nil, ErrUnsupportedFormat
}

// LoadProjectFile reads a JSON or YAML project.
func LoadProjectFile(path string) (*Project, error) {
	format, err := FormatForPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read project file: %w", err)
	}
	return DecodeProject(data, format)
}

// SaveProjectFile writes the project atomically next to path.
func SaveProjectFile(path string, p *Project) error {
	format, err := FormatForPath(path)
	if err != nil {
		return err
	}
	data, err := EncodeProject(p, format)
	if err != nil {
		return fmt.Errorf("encode project: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write project file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace project file: %w", err)
	}
	return nil
}
