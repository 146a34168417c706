package engine

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
)

// csvSink streams conditioned frames to a CSV file: header row
// "t,ch0..chN-1[,model]", time column in seconds from the sink base.
// The header is written lazily on the first frame, once the channel count is
// known.
type csvSink struct {
	f             *os.File
	w             *bufio.Writer
	headerWritten bool
	withModel     bool
	baseNanos     int64
}

func newCSVSink(path string, withModel bool, baseNanos int64) (*csvSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	return &csvSink{
		f:         f,
		w:         bufio.NewWriter(f),
		withModel: withModel,
		baseNanos: baseNanos,
	}, nil
}

func (c *csvSink) writeFrame(tNanos int64, x []float64, modelValid bool, modelOut float64) error {
	if !c.headerWritten {
		c.w.WriteString("t")
		for i := range x {
			fmt.Fprintf(c.w, ",ch%d", i)
		}
		if c.withModel {
			c.w.WriteString(",model")
		}
		c.w.WriteByte('\n')
		c.headerWritten = true
	}

	ts := float64(tNanos-c.baseNanos) * 1e-9
	c.w.WriteString(strconv.FormatFloat(ts, 'f', -1, 64))
	for _, v := range x {
		c.w.WriteByte(',')
		c.w.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	}
	if c.withModel {
		c.w.WriteByte(',')
		out := 0.0
		if modelValid {
			out = modelOut
		}
		c.w.WriteString(strconv.FormatFloat(out, 'g', -1, 64))
	}
	if err := c.w.WriteByte('\n'); err != nil {
		return err
	}
	return nil
}

func (c *csvSink) close() error {
	if err := c.w.Flush(); err != nil {
		c.f.Close()
		return err
	}
	return c.f.Close()
}

// writeBiasCSV writes the stored bias as "ch0..chN-1" header plus one value
// row in the same column order.
func writeBiasCSV(path string, bias []float64) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("open bias csv: %w", err)
	}
	w := bufio.NewWriter(f)

	for i := range bias {
		if i > 0 {
			w.WriteByte(',')
		}
		fmt.Fprintf(w, "ch%d", i)
	}
	w.WriteByte('\n')
	for i, v := range bias {
		if i > 0 {
			w.WriteByte(',')
		}
		w.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	}
	w.WriteByte('\n')

	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
