package threadpool

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadOptions reads pool Options from a YAML file.
//
//	workers: 3
//	allow_primary: false
//	pin_workers: true
//	retry:
//	  attempts: 3
//	  initial: 50ms
//	  max: 1s
//
// Fields that cannot be expressed in YAML (Env, Metrics, handlers) are left
// nil and filled by FillDefaults when the pool is built.
func LoadOptions(path string) (Options, error) {
	f, err := os.Open(path)
	if err != nil {
		return Options{}, fmt.Errorf("threadpool: open options %s: %w", path, err)
	}
	defer f.Close()
	return ParseOptions(f)
}

// ParseOptions decodes YAML Options from r. Unknown keys are rejected.
// An empty document yields zero Options.
func ParseOptions(r io.Reader) (Options, error) {
	var o Options
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&o); err != nil && !errors.Is(err, io.EOF) {
		return Options{}, fmt.Errorf("%w: decode options: %w", ErrConfiguration, err)
	}
	if o.Workers < 0 {
		return Options{}, fmt.Errorf("%w: worker count %d is negative", ErrConfiguration, o.Workers)
	}
	return o, nil
}
