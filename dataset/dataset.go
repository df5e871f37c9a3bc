// Package dataset defines the Source and Sink interfaces between the
// splitter and the storage formats, and a registry for format drivers.
// Drivers register themselves in their init function, importing a
// driver package for its side effect enables the format.
package dataset

import (
	"strings"

	"github.com/pkg/errors"
)

// Source streams the features of the first layer of an input dataset.
// Open functions must reject layers whose geometry type is neither
// linestring nor multilinestring.
type Source interface {
	Layer() Layer
	// Reset restarts reading at the first feature.
	Reset() error
	// Next returns the next feature, or nil once the source is
	// exhausted.
	Next() (*Feature, error)
	Close() error
}

// Sink writes linestring features to an output dataset. Begin and
// Commit bound write transactions, drivers without transaction
// support implement them as no-ops. At most one transaction is open
// at a time.
type Sink interface {
	// CreateLayer creates the output layer with a copy of the
	// field schema of layer.
	CreateLayer(layer Layer) error
	Write(feature *Feature) error
	Begin() error
	Commit() error
	// Flush writes buffered data to durable storage.
	Flush() error
	Close() error
}

// CreationOptions are opaque KEY=VALUE lists passed through to the
// output driver. Drivers ignore keys they do not know.
type CreationOptions struct {
	Dataset []string
	Layer   []string
}

func optionValue(options []string, key string) (string, bool) {
	for _, option := range options {
		parts := strings.SplitN(option, "=", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], key) {
			return parts[1], true
		}
	}
	return "", false
}

func (o CreationOptions) DatasetOption(key string) (string, bool) {
	return optionValue(o.Dataset, key)
}

func (o CreationOptions) LayerOption(key string) (string, bool) {
	return optionValue(o.Layer, key)
}

type sourceDriver struct {
	name  string
	match func(path string) bool
	open  func(path string) (Source, error)
}

var sourceDrivers []sourceDriver
var sinkDrivers = map[string]func(path string, opts CreationOptions) (Sink, error){}

// RegisterSource registers an input driver. match claims paths the
// driver can open, drivers are tried in registration order.
func RegisterSource(name string, match func(path string) bool, open func(path string) (Source, error)) {
	sourceDrivers = append(sourceDrivers, sourceDriver{name, match, open})
}

// RegisterSink registers an output driver under one or more format
// names (as given with -f). Lookup is case-insensitive.
func RegisterSink(open func(path string, opts CreationOptions) (Sink, error), names ...string) {
	for _, name := range names {
		sinkDrivers[strings.ToLower(name)] = open
	}
}

// OpenSource opens the input dataset with the first driver that
// claims the path.
func OpenSource(path string) (Source, error) {
	for _, driver := range sourceDrivers {
		if driver.match(path) {
			src, err := driver.open(path)
			if err != nil {
				return nil, errors.Wrapf(err, "opening %s as %s", path, driver.name)
			}
			return src, nil
		}
	}
	return nil, errors.Errorf("no driver found for input %s", path)
}

// CreateSink creates the output dataset with the driver registered
// for format.
func CreateSink(format, path string, opts CreationOptions) (Sink, error) {
	open, ok := sinkDrivers[strings.ToLower(format)]
	if !ok {
		return nil, errors.Errorf("unsupported output format %q", format)
	}
	sink, err := open(path, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "creating %s dataset %s", format, path)
	}
	return sink, nil
}

// HasSuffix reports whether path ends in one of the given file
// extensions, ignoring case.
func HasSuffix(path string, exts ...string) bool {
	lower := strings.ToLower(path)
	for _, ext := range exts {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
