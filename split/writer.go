package split

import (
	"github.com/paulmach/orb"
	"github.com/pkg/errors"

	"github.com/omniscale/linesplit/dataset"
	"github.com/omniscale/linesplit/logging"
	"github.com/omniscale/linesplit/stats"
)

// Writer runs the split over all features of a source and writes the
// segments to a sink. It owns the transaction state of the sink: when
// TransactionSize is zero a transaction is opened once per source
// linestring and committed at Finalize, otherwise the open
// transaction is committed and reopened after every TransactionSize
// written segments.
type Writer struct {
	Splitter        Splitter
	TransactionSize int

	sink    dataset.Sink
	counter *stats.Counter
	pending int
	inTx    bool
}

func NewWriter(splitter Splitter, transactionSize int, sink dataset.Sink, counter *stats.Counter) *Writer {
	return &Writer{
		Splitter:        splitter,
		TransactionSize: transactionSize,
		sink:            sink,
		counter:         counter,
	}
}

// Run streams all features from src through the splitter. It stops at
// the first error, a partially written output may remain.
func (w *Writer) Run(src dataset.Source) error {
	if err := src.Reset(); err != nil {
		return errors.Wrap(err, "resetting input")
	}
	for {
		feature, err := src.Next()
		if err != nil {
			return errors.Wrap(err, "reading feature")
		}
		if feature == nil {
			return nil
		}
		if err := w.WriteFeature(feature); err != nil {
			return err
		}
		w.counter.Features++
		if w.counter.Features%1000 == 0 {
			logging.Progress(w.counter.Progress())
		}
	}
}

// WriteFeature splits the geometry of one feature and writes the
// segments. Features with empty geometry are skipped silently, every
// member of a multilinestring is split independently.
func (w *Writer) WriteFeature(feature *dataset.Feature) error {
	switch geom := feature.Geometry.(type) {
	case nil:
		return nil
	case orb.LineString:
		return w.writeLineString(geom, feature)
	case orb.MultiLineString:
		for _, ls := range geom {
			if err := w.writeLineString(ls, feature); err != nil {
				return err
			}
		}
		return nil
	default:
		return errors.Errorf("unsupported geometry type %s", feature.Geometry.GeoJSONType())
	}
}

func (w *Writer) writeLineString(ls orb.LineString, feature *dataset.Feature) error {
	if len(ls) == 0 {
		return nil
	}
	if w.Splitter.shouldSkip(ls) {
		w.counter.Skipped++
		return nil
	}
	w.counter.Lines++
	if err := w.begin(); err != nil {
		return err
	}
	return w.Splitter.Split(ls, func(part orb.LineString) error {
		values := make([]interface{}, len(feature.Values))
		copy(values, feature.Values)
		if err := w.sink.Write(&dataset.Feature{Values: values, Geometry: part}); err != nil {
			return errors.Wrap(err, "writing segment")
		}
		w.counter.Segments++
		w.pending++
		if w.TransactionSize > 0 && w.pending > w.TransactionSize {
			if err := w.commit(); err != nil {
				return err
			}
			if err := w.begin(); err != nil {
				return err
			}
			w.pending = 0
		}
		return nil
	})
}

func (w *Writer) begin() error {
	if w.inTx {
		return nil
	}
	if err := w.sink.Begin(); err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	w.inTx = true
	return nil
}

func (w *Writer) commit() error {
	if !w.inTx {
		return nil
	}
	if err := w.sink.Commit(); err != nil {
		return errors.Wrap(err, "committing transaction")
	}
	w.inTx = false
	w.counter.Commits++
	return nil
}

// Finalize commits the open transaction and flushes the sink.
func (w *Writer) Finalize() error {
	if err := w.commit(); err != nil {
		return err
	}
	if err := w.sink.Flush(); err != nil {
		return errors.Wrap(err, "flushing output")
	}
	return nil
}
