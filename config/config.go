// Package config parses the command line and the optional YAML
// config file into the run options.
package config

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"
)

const (
	defaultFormat    = "ESRI Shapefile"
	defaultMinLength = 200
	defaultMaxLength = 2000
)

// Options holds the configuration of one run. Immutable after Parse.
type Options struct {
	Input  string
	Output string

	Format                 string
	DatasetCreationOptions []string
	LayerCreationOptions   []string

	// TransactionSize groups this many written segments per
	// transaction, zero keeps a single transaction open per
	// source linestring.
	TransactionSize int

	// Geographic forces spherical distances even when the source
	// does not report a geographic coordinate system.
	Geographic bool

	MinLength float64
	MaxLength float64

	Quiet bool
}

// fileConfig mirrors the flags that can be preset in a config file.
// File values apply only where the command line kept the default.
type fileConfig struct {
	Format          string   `yaml:"format"`
	TransactionSize *int     `yaml:"gt"`
	Geographic      bool     `yaml:"geographic"`
	MinLength       *float64 `yaml:"min_length"`
	MaxLength       *float64 `yaml:"max_length"`
	Dsco            []string `yaml:"dsco"`
	Lco             []string `yaml:"lco"`
}

// commaList collects repeatable KEY=VALUE options, each flag value
// may itself be a comma-joined list.
type commaList []string

func (l *commaList) String() string {
	return strings.Join(*l, ",")
}

func (l *commaList) Set(value string) error {
	for _, part := range strings.Split(value, ",") {
		if part != "" {
			*l = append(*l, part)
		}
	}
	return nil
}

func usage(fs *flag.FlagSet) func() {
	return func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS] INFILE OUTFILE\nOptions:\n", os.Args[0])
		fs.PrintDefaults()
	}
}

// Parse parses args (without the program name) into Options. It
// returns flag.ErrHelp when help was requested, usage is already
// printed to stderr in that case.
func Parse(args []string) (*Options, error) {
	opts := &Options{}
	var dsco, lco commaList
	var configFile string

	fs := flag.NewFlagSet("linesplit", flag.ContinueOnError)
	fs.Usage = usage(fs)
	fs.StringVar(&opts.Format, "f", defaultFormat, "output format")
	fs.StringVar(&opts.Format, "format", defaultFormat, "output format")
	fs.Var(&dsco, "dsco", "dataset creation option KEY=VALUE, comma separated or repeated")
	fs.Var(&lco, "lco", "layer creation option KEY=VALUE, comma separated or repeated")
	fs.IntVar(&opts.TransactionSize, "gt", 0, "group NUMBER segments per transaction, 0 for a single transaction")
	fs.BoolVar(&opts.Geographic, "geographic", false,
		"treat coordinates as geographic (long/lat) and calculate distances on a sphere, "+
			"not required if the coordinate system is recognized")
	fs.Float64Var(&opts.MinLength, "m", defaultMinLength, "minimum length, shorter lines are dropped")
	fs.Float64Var(&opts.MinLength, "min-length", defaultMinLength, "minimum length, shorter lines are dropped")
	fs.Float64Var(&opts.MaxLength, "M", defaultMaxLength, "maximum length of an output linestring")
	fs.Float64Var(&opts.MaxLength, "max-length", defaultMaxLength, "maximum length of an output linestring")
	fs.BoolVar(&opts.Quiet, "quiet", false, "suppress progress output")
	fs.StringVar(&configFile, "config", "", "YAML config file with option defaults")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	opts.DatasetCreationOptions = dsco
	opts.LayerCreationOptions = lco

	if configFile != "" {
		if err := opts.updateFromConfig(configFile); err != nil {
			return nil, err
		}
	}

	if fs.NArg() != 2 {
		usage(fs)()
		return nil, errors.New("two positional arguments required: INFILE OUTFILE")
	}
	opts.Input = fs.Arg(0)
	opts.Output = fs.Arg(1)

	if err := opts.check(); err != nil {
		return nil, err
	}
	return opts, nil
}

func (o *Options) updateFromConfig(filename string) error {
	buf, err := os.ReadFile(filename)
	if err != nil {
		return errors.Wrap(err, "reading config file")
	}
	conf := fileConfig{}
	if err := yaml.Unmarshal(buf, &conf); err != nil {
		return errors.Wrap(err, "parsing config file")
	}

	if conf.Format != "" && o.Format == defaultFormat {
		o.Format = conf.Format
	}
	if conf.TransactionSize != nil && o.TransactionSize == 0 {
		o.TransactionSize = *conf.TransactionSize
	}
	if conf.Geographic {
		o.Geographic = true
	}
	if conf.MinLength != nil && o.MinLength == defaultMinLength {
		o.MinLength = *conf.MinLength
	}
	if conf.MaxLength != nil && o.MaxLength == defaultMaxLength {
		o.MaxLength = *conf.MaxLength
	}
	o.DatasetCreationOptions = append(o.DatasetCreationOptions, conf.Dsco...)
	o.LayerCreationOptions = append(o.LayerCreationOptions, conf.Lco...)
	return nil
}

func (o *Options) check() error {
	if o.MaxLength <= 0 {
		return errors.New("max-length must be positive")
	}
	if o.MinLength < 0 {
		return errors.New("min-length must not be negative")
	}
	if o.TransactionSize < 0 {
		return errors.New("gt must not be negative")
	}
	for _, option := range append(o.DatasetCreationOptions, o.LayerCreationOptions...) {
		if !strings.Contains(option, "=") {
			return errors.Errorf("creation option %q is not KEY=VALUE", option)
		}
	}
	return nil
}
