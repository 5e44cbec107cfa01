// Command pixelsort sorts the pixels of an image on the GPU.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"golang.org/x/term"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gogpu/pixelsort"
)

const helperBanner = `pixelsort %s

Sorts image rows by luminance, tile by tile, on the GPU.

`

// config holds the parsed command line.
type config struct {
	in, out      string
	backend      string
	kernelPath   string
	entryPoint   string
	tileWidth    uint
	passes       int
	descending   bool
	verbose      bool
	listBackends bool
}

func parseFlags(args []string) (*config, error) {
	fs := flag.NewFlagSet("pixelsort", flag.ContinueOnError)
	c := &config{}
	fs.StringVar(&c.in, "in", pixelsort.StdioPath, "Source image (- for stdin)")
	fs.StringVar(&c.out, "out", pixelsort.StdioPath, "Destination image (- for stdout, PNG)")
	fs.StringVar(&c.backend, "backend", "", "Compute backend (empty selects the best GPU)")
	fs.StringVar(&c.kernelPath, "kernel", "", "WGSL kernel file (default: built-in kernels)")
	fs.StringVar(&c.entryPoint, "entry", "sort_tile", "Kernel entry point")
	fs.UintVar(&c.tileWidth, "tile", 256, "Tile width in pixels (power of two, max 256)")
	fs.IntVar(&c.passes, "passes", 1, "Number of kernel passes")
	fs.BoolVar(&c.descending, "desc", false, "Sort brightest first")
	fs.BoolVar(&c.verbose, "v", false, "Verbose logging")
	fs.BoolVar(&c.listBackends, "list-backends", false, "List available backends and exit")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), helperBanner, pixelsort.Version)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *config) options() ([]pixelsort.Option, error) {
	opts := []pixelsort.Option{
		pixelsort.WithBackend(c.backend),
		pixelsort.WithEntryPoint(c.entryPoint),
		pixelsort.WithTileWidth(uint32(c.tileWidth)), //nolint:gosec // validated by pixelsort.New
		pixelsort.WithPasses(c.passes),
		pixelsort.WithDescending(c.descending),
	}
	if c.kernelPath != "" {
		src, err := os.ReadFile(c.kernelPath)
		if err != nil {
			return nil, fmt.Errorf("read kernel: %w", err)
		}
		opts = append(opts, pixelsort.WithKernelSource(string(src)))
	}
	return opts, nil
}

// newLogger logs text to an interactive stderr and JSON otherwise.
func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	hopts := &slog.HandlerOptions{Level: level}
	if term.IsTerminal(int(os.Stderr.Fd())) {
		return slog.New(slog.NewTextHandler(os.Stderr, hopts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, hopts))
}

func main() {
	log.SetFlags(0)

	c, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		os.Exit(2)
	}
	pixelsort.SetLogger(newLogger(c.verbose))

	if c.listBackends {
		for _, name := range pixelsort.Backends() {
			fmt.Println(name)
		}
		return
	}

	if c.in == pixelsort.StdioPath && term.IsTerminal(int(os.Stdin.Fd())) {
		log.Fatal("pixelsort: no input; use -in or pipe an image to stdin")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, c); err != nil {
		log.Fatalf("pixelsort: %v", err)
	}
}

func run(ctx context.Context, c *config) error {
	opts, err := c.options()
	if err != nil {
		return err
	}

	start := time.Now()
	s, err := pixelsort.New(opts...)
	if err != nil {
		var nd *pixelsort.NoDeviceError
		if errors.As(err, &nd) && c.backend == "" {
			return fmt.Errorf("%w (available backends: %s; try -backend software)",
				err, strings.Join(pixelsort.Backends(), ", "))
		}
		return err
	}
	defer s.Close()

	pb, err := pixelsort.Decode(c.in)
	if err != nil {
		return err
	}
	res, err := s.Sort(ctx, pb)
	if err != nil {
		return err
	}
	if err := pixelsort.Encode(res, c.out); err != nil {
		return err
	}

	if c.out != pixelsort.StdioPath && term.IsTerminal(int(os.Stdout.Fd())) {
		p := message.NewPrinter(language.English)
		p.Printf("%s: sorted %d pixels (%dx%d) on %s in %v\n",
			c.out, int(res.Width)*int(res.Height), res.Width, res.Height,
			s.Adapter().Name, time.Since(start).Round(time.Millisecond))
	}
	return nil
}
