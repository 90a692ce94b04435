// ABOUTME: Wiring shared by the playback commands
// ABOUTME: Builds logger, source, outputs and runs narration with its control surfaces
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/harperreed/narrator-go/internal/config"
	"github.com/harperreed/narrator-go/internal/control"
	"github.com/harperreed/narrator-go/internal/discovery"
	"github.com/harperreed/narrator-go/internal/logger"
	"github.com/harperreed/narrator-go/internal/metrics"
	"github.com/harperreed/narrator-go/internal/tts"
	"github.com/harperreed/narrator-go/internal/ui"
	"github.com/harperreed/narrator-go/pkg/audio/output"
	"github.com/harperreed/narrator-go/pkg/narrator"
	"golang.org/x/sync/errgroup"
)

// app holds the process-wide pieces of a playback command
type app struct {
	cfg      *config.Config
	log      *slog.Logger
	logClose io.Closer
	metrics  *metrics.Metrics
	out      io.Writer
}

// runOptions selects the surfaces around a narration
type runOptions struct {
	tui    bool
	dryRun bool
	start  int  // zero-based first span
	only   bool // play just the start span
}

func newApp(opts *rootOptions, out io.Writer, quiet bool) (*app, error) {
	cfg, err := opts.load()
	if err != nil {
		return nil, err
	}

	log, closer, err := logger.Setup(logger.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
		Quiet:  quiet,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to setup logging: %w", err)
	}

	return &app{
		cfg:      cfg,
		log:      log,
		logClose: closer,
		metrics:  metrics.New(),
		out:      out,
	}, nil
}

func (a *app) Close() error {
	return a.logClose.Close()
}

// source builds the configured TTS source, browsing mDNS when asked to
func (a *app) source(ctx context.Context) (narrator.Source, error) {
	cfg := a.cfg.SourceConfig()
	cfg.Logger = a.log

	if a.cfg.TTS.Discover {
		mgr := discovery.NewManager(discovery.Config{Timeout: a.cfg.TTS.Timeout, Logger: a.log})
		svc, err := mgr.Lookup(ctx)
		if err != nil {
			return nil, fmt.Errorf("discover tts service: %w", err)
		}
		cfg.URL = svc.URL()
	}

	return tts.New(cfg)
}

// outputs returns the per-session output constructor
func (a *app) outputs(dryRun bool) func() (output.Output, error) {
	if dryRun {
		return func() (output.Output, error) {
			return output.NewVirtual(output.VirtualOptions{Realtime: true}), nil
		}
	}
	backend := a.cfg.Output.Backend
	return func() (output.Output, error) {
		return output.New(backend)
	}
}

// run narrates spans until they finish, the user stops, or a signal arrives
func (a *app) run(ctx context.Context, src narrator.Source, spans []string, opts runOptions) error {
	ctx, stopSignals := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	var prog *ui.Program
	printer := &statusPrinter{out: a.out}

	n, err := narrator.New(narrator.Config{
		Source:    src,
		NewOutput: a.outputs(opts.dryRun),
		Stream:    a.cfg.PlayerConfig(),
		Volume:    a.cfg.Output.Volume,
		Recorder:  a.metrics,
		Logger:    a.log,
		OnStateChange: func(st narrator.Status) {
			if prog != nil {
				prog.OnStateChange(st)
				return
			}
			printer.print(st)
		},
	})
	if err != nil {
		return err
	}
	if opts.tui {
		prog = ui.New(n, a.cfg.Output.Volume)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	if addr := a.cfg.Control.Addr; addr != "" {
		srv := control.New(n, control.Config{Addr: addr, Metrics: a.metrics, Logger: a.log})
		g.Go(func() error { return srv.Start(gctx) })
	}

	// signals and TUI quit end the run through Stop so playback tears down cleanly
	g.Go(func() error {
		<-gctx.Done()
		n.Stop()
		return nil
	})

	g.Go(func() error {
		var err error
		if opts.only {
			err = n.SpeakSpan(context.WithoutCancel(gctx), spans, opts.start)
		} else {
			err = n.SpeakFrom(context.WithoutCancel(gctx), spans, opts.start)
		}
		if err == nil {
			a.printEstimate(n, spans, prog)
		}
		if prog != nil {
			prog.Done(err)
		} else {
			cancel()
		}
		if errors.Is(err, narrator.ErrStopped) {
			return nil
		}
		return err
	})

	if prog != nil {
		g.Go(func() error {
			defer cancel()
			_, err := prog.Run()
			return err
		})
	}

	return g.Wait()
}

func (a *app) printEstimate(n *narrator.Narrator, spans []string, prog *ui.Program) {
	if len(spans) < 2 {
		return
	}
	est, err := n.Estimate(narrator.CountChars(spans))
	if err != nil {
		return
	}
	if prog != nil {
		prog.Estimate(est.String())
		return
	}
	fmt.Fprintf(a.out, "estimated document audio: %s\n", est)
}

// statusPrinter writes one line per state change
type statusPrinter struct {
	mu   sync.Mutex
	out  io.Writer
	last string
}

func (p *statusPrinter) print(st narrator.Status) {
	line := st.Summary()

	p.mu.Lock()
	defer p.mu.Unlock()
	if line == p.last {
		return
	}
	p.last = line
	fmt.Fprintln(p.out, line)
}
