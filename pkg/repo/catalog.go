package repo

import (
	"fmt"
	"os"
	"reflect"

	"github.com/ethpandaops/toolchainbench/pkg/toolchain"
	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

var versionType = reflect.TypeOf(toolchain.Version(0))

// LoadCatalog reads the repo catalog. The file may be YAML or JSON.
func LoadCatalog(log logrus.FieldLogger, path string) ([]Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading repo catalog: %w", err)
	}

	return ParseCatalog(log, data)
}

// ParseCatalog decodes and validates catalog contents. Unknown fields are
// logged and ignored so older catalogs keep loading.
func ParseCatalog(log logrus.FieldLogger, data []byte) ([]Descriptor, error) {
	var raw []map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing repo catalog: %w", err)
	}

	var (
		descriptors []Descriptor
		meta        mapstructure.Metadata
	)

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: versionHook,
		Metadata:   &meta,
		Result:     &descriptors,
		TagName:    "mapstructure",
	})
	if err != nil {
		return nil, fmt.Errorf("creating catalog decoder: %w", err)
	}

	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("decoding repo catalog: %w", err)
	}

	if len(meta.Unused) > 0 {
		log.WithField("fields", meta.Unused).Warn("Ignoring unknown repo catalog fields")
	}

	for i := range descriptors {
		if descriptors[i].MinVersion == 0 {
			descriptors[i].MinVersion = toolchain.First
		}
	}

	if err := validate(descriptors); err != nil {
		return nil, err
	}

	return descriptors, nil
}

// versionHook turns "1.45.0", "V1_45" or 45 into a toolchain.Version.
func versionHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to != versionType {
		return data, nil
	}

	switch v := data.(type) {
	case string:
		return toolchain.Parse(v)
	case int:
		version := toolchain.Version(v)
		if !version.Valid() {
			return nil, fmt.Errorf("version ordinal %d outside catalog", v)
		}

		return version, nil
	default:
		return data, nil
	}
}

func validate(descriptors []Descriptor) error {
	if len(descriptors) == 0 {
		return fmt.Errorf("repo catalog is empty")
	}

	seen := make(map[string]struct{}, len(descriptors))

	for i, d := range descriptors {
		if d.Name == "" {
			return fmt.Errorf("repo %d: name is required", i)
		}

		if _, exists := seen[d.Name]; exists {
			return fmt.Errorf("repo %d: duplicate name %q", i, d.Name)
		}

		seen[d.Name] = struct{}{}

		if d.URL == "" {
			return fmt.Errorf("repo %q: url is required", d.Name)
		}

		if d.TouchFile == "" {
			return fmt.Errorf("repo %q: touch_file is required", d.Name)
		}
	}

	return nil
}
