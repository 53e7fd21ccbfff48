// Package output writes per-pair measurement rows. The batch pipeline writes
// to a Sink from a single goroutine after results are ordered, so sinks need
// no internal locking.
package output

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
)

// DefaultFileName is the CSV table written next to the frames.
const DefaultFileName = "Area.csv"

// ColumnLabel names every measurement column; columns are identified by count.
const ColumnLabel = "Area"

// Record is one measured frame pair.
type Record struct {
	Seq    int
	Prev   string
	Cur    string
	Counts []uint32
}

// Sink receives a header, then records in pair order, then Close.
type Sink interface {
	WriteHeader(regions int) error
	WriteRecord(rec Record) error
	Close() error
}

// CSV writes the delimited area table.
type CSV struct {
	w      *csv.Writer
	closer io.Closer
	fields []string
}

// NewCSV writes to w. If w is an io.Closer it is closed by Close.
func NewCSV(w io.Writer) *CSV {
	c := &CSV{w: csv.NewWriter(w)}
	if cl, ok := w.(io.Closer); ok {
		c.closer = cl
	}
	return c
}

// CreateCSV creates (truncates) the table file at path.
func CreateCSV(path string) (*CSV, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("output: create %s: %w", path, err)
	}
	return NewCSV(f), nil
}

func (c *CSV) WriteHeader(regions int) error {
	header := make([]string, regions)
	for i := range header {
		header[i] = ColumnLabel
	}
	return c.w.Write(header)
}

func (c *CSV) WriteRecord(rec Record) error {
	c.fields = c.fields[:0]
	for _, v := range rec.Counts {
		c.fields = append(c.fields, strconv.FormatUint(uint64(v), 10))
	}
	return c.w.Write(c.fields)
}

// Close flushes buffered rows and closes the underlying file.
func (c *CSV) Close() error {
	c.w.Flush()
	err := c.w.Error()
	if c.closer != nil {
		err = errors.Join(err, c.closer.Close())
	}
	return err
}

// Multi fans every call out to several sinks, stopping at the first error.
type Multi []Sink

func (m Multi) WriteHeader(regions int) error {
	for _, s := range m {
		if err := s.WriteHeader(regions); err != nil {
			return err
		}
	}
	return nil
}

func (m Multi) WriteRecord(rec Record) error {
	for _, s := range m {
		if err := s.WriteRecord(rec); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every sink and joins their errors.
func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}
