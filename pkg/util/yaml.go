package util

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// LoadYAMLFile decodes the YAML file at path into v. Unknown fields are
// rejected.
func LoadYAMLFile(path string, v interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "open config file")
	}
	defer f.Close()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err = dec.Decode(v); err != nil {
		return errors.Wrapf(err, "parse config file %s", path)
	}
	return nil
}
