// Package cmd ties the command line, the dataset drivers and the
// splitter together. All fatal errors of a run surface here, the core
// packages only return them.
package cmd

import (
	"flag"
	"fmt"
	"os"

	"github.com/pkg/errors"

	"github.com/omniscale/linesplit/config"
	"github.com/omniscale/linesplit/dataset"
	_ "github.com/omniscale/linesplit/dataset/flatgeobuf"
	_ "github.com/omniscale/linesplit/dataset/geojson"
	_ "github.com/omniscale/linesplit/dataset/gpkg"
	_ "github.com/omniscale/linesplit/dataset/postgis"
	_ "github.com/omniscale/linesplit/dataset/shp"
	"github.com/omniscale/linesplit/geo"
	"github.com/omniscale/linesplit/logging"
	"github.com/omniscale/linesplit/split"
	"github.com/omniscale/linesplit/stats"
)

var log = logging.NewLogger("")

func Main() {
	if len(os.Args) > 1 && (os.Args[1] == "version" || os.Args[1] == "--version") {
		fmt.Println(Version)
		os.Exit(0)
	}

	opts, err := config.Parse(os.Args[1:])
	if err == flag.ErrHelp {
		logging.Shutdown()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		logging.Shutdown()
		os.Exit(1)
	}
	if opts.Quiet {
		logging.SetQuiet(true)
	}

	if err := run(opts); err != nil {
		log.Error(err)
		logging.Shutdown()
		os.Exit(1)
	}
	logging.Shutdown()
	os.Exit(0)
}

func run(opts *config.Options) error {
	src, err := dataset.OpenSource(opts.Input)
	if err != nil {
		return err
	}
	defer src.Close()

	layer := src.Layer()
	geographic := layer.Geographic || opts.Geographic
	if geographic && !layer.Geographic {
		log.Printf("geographic mode forced for %s", opts.Input)
	}

	sink, err := dataset.CreateSink(opts.Format, opts.Output, dataset.CreationOptions{
		Dataset: opts.DatasetCreationOptions,
		Layer:   opts.LayerCreationOptions,
	})
	if err != nil {
		return err
	}
	defer sink.Close()

	if err := sink.CreateLayer(layer); err != nil {
		return errors.Wrap(err, "creating output layer")
	}

	counter := stats.NewCounter()
	splitter := split.Splitter{
		Metric:    geo.Metric{Geographic: geographic},
		MinLength: opts.MinLength,
		MaxLength: opts.MaxLength,
	}
	writer := split.NewWriter(splitter, opts.TransactionSize, sink, counter)

	step := log.StartStep(fmt.Sprintf("Splitting %s into %s", opts.Input, opts.Output))
	if err := writer.Run(src); err != nil {
		return err
	}
	if err := writer.Finalize(); err != nil {
		return err
	}
	log.StopStep(step)
	log.Print(counter.Summary())
	return nil
}
