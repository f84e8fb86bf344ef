package plot

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os/exec"
)

const gnuplotBinary = "gnuplot"

var gnuplotSetup = []string{
	"set terminal qt size 1200,700",
	"set title 'GPIO Toggle Jitter'",
	"set xlabel 'Sample Count'",
	"set ylabel 'Jitter (ns)'",
	"set key outside",
	"set ytics auto",
	"set format y '%.0f'",
}

// GnuplotAvailable reports whether a working gnuplot binary is on PATH.
func GnuplotAvailable() bool {
	path, err := exec.LookPath(gnuplotBinary)
	if err != nil {
		return false
	}
	return exec.Command(path, "--version").Run() == nil
}

// Gnuplot streams frames to a gnuplot process as inline data plots.
type Gnuplot struct {
	w     *bufio.Writer
	pipe  io.WriteCloser
	cmd   *exec.Cmd
	ready bool
}

// NewGnuplot starts "gnuplot -persistent" and returns a sink feeding its
// stdin. The plot window stays open after Close.
func NewGnuplot() (*Gnuplot, error) {
	cmd := exec.Command(gnuplotBinary, "-persistent")
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("gnuplot stdin: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start gnuplot: %w", err)
	}
	g := NewGnuplotWriter(stdin)
	g.cmd = cmd
	return g, nil
}

// NewGnuplotWriter returns a sink writing gnuplot commands to w.
func NewGnuplotWriter(w io.WriteCloser) *Gnuplot {
	return &Gnuplot{w: bufio.NewWriter(w), pipe: w}
}

func (g *Gnuplot) SendFrame(f Frame) error {
	if !g.ready {
		for _, line := range gnuplotSetup {
			fmt.Fprintln(g.w, line)
		}
		g.ready = true
	}

	fmt.Fprintf(g.w, "set xrange [%d:%d]\n", f.XMin, f.XMax)
	fmt.Fprintf(g.w, "set yrange [%d:%d]\n", f.YMin, f.YMax)
	fmt.Fprintln(g.w, "unset label 2")
	fmt.Fprintln(g.w, "unset label 3")
	fmt.Fprintf(g.w, "set label 2 'Max: %d ns' at screen 0.90, screen 0.55\n", f.MaxJitter)
	fmt.Fprintf(g.w, "set label 3 'Avg: %d ns' at screen 0.90, screen 0.50\n", f.MeanJitter)
	fmt.Fprintln(g.w, "plot '-' using 1:2 with linespoints pt 1 title 'Jitter (ns)', '-' using 1:2 with lines title 'Expected (0 ns)'")
	for _, p := range f.Points {
		fmt.Fprintf(g.w, "%d %d\n", p.Sequence, p.Deviation)
	}
	fmt.Fprintln(g.w, "e")
	fmt.Fprintf(g.w, "%d 0\n", f.XMin)
	fmt.Fprintf(g.w, "%d 0\n", f.XMax)
	fmt.Fprintln(g.w, "e")

	if err := g.w.Flush(); err != nil {
		return fmt.Errorf("write gnuplot frame: %w", err)
	}
	return nil
}

// Close flushes pending commands, closes the pipe and waits for gnuplot to
// detach.
func (g *Gnuplot) Close() error {
	err := g.w.Flush()
	if cerr := g.pipe.Close(); err == nil {
		err = cerr
	}
	if g.cmd != nil {
		if werr := g.cmd.Wait(); err == nil {
			err = werr
		}
	}
	if err != nil {
		return fmt.Errorf("close gnuplot: %w", err)
	}
	return nil
}

// Multi fans frames out to several sinks. Every sink receives every frame;
// errors are joined.
type Multi []Sink

func (m Multi) SendFrame(f Frame) error {
	var errs []error
	for _, s := range m {
		if err := s.SendFrame(f); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Combine returns nil for no sinks, the sink itself for one, and a Multi
// otherwise.
func Combine(sinks ...Sink) Sink {
	var live []Sink
	for _, s := range sinks {
		if s != nil {
			live = append(live, s)
		}
	}
	switch len(live) {
	case 0:
		return nil
	case 1:
		return live[0]
	default:
		return Multi(live)
	}
}
