package main

import (
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"kctvfetch/internal/broadcast"
	"kctvfetch/internal/download"
	"kctvfetch/internal/logging"
)

const progressBarWidth = 50

// progressReporter draws a bar on terminals and logs sampled percentages
// everywhere else.
type progressReporter struct {
	out    io.Writer
	tty    bool
	logger *slog.Logger

	mu  sync.Mutex
	bar *progressbar.ProgressBar
}

func newProgressReporter(out io.Writer, logger *slog.Logger) *progressReporter {
	return &progressReporter{out: out, tty: isTerminal(out), logger: logger}
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func (p *progressReporter) forDate(date broadcast.Date) download.ProgressFunc {
	p.finish()
	if p.tty {
		return p.barFunc(date)
	}
	return p.logFunc(date)
}

func (p *progressReporter) barFunc(date broadcast.Date) download.ProgressFunc {
	var last int64
	return func(written, total int64) {
		p.mu.Lock()
		defer p.mu.Unlock()
		// a new attempt restarts from zero
		if p.bar == nil || written < last {
			if p.bar != nil {
				_ = p.bar.Exit()
			}
			p.bar = progressbar.NewOptions64(total,
				progressbar.OptionSetWriter(p.out),
				progressbar.OptionSetWidth(progressBarWidth),
				progressbar.OptionShowBytes(true),
				progressbar.OptionSetDescription(date.String()),
				progressbar.OptionOnCompletion(func() { _, _ = io.WriteString(p.out, "\n") }),
			)
		}
		last = written
		_ = p.bar.Set64(written)
	}
}

func (p *progressReporter) logFunc(date broadcast.Date) download.ProgressFunc {
	sampler := logging.NewProgressSampler(10)
	var last int64
	return func(written, total int64) {
		if written < last {
			sampler.Reset()
		}
		last = written
		if total <= 0 {
			return
		}
		percent := float64(written) * 100 / float64(total)
		if !sampler.ShouldLog(percent) {
			return
		}
		p.logger.Info("download progress",
			logging.String("date", date.String()),
			logging.Int("percent", int(percent)),
			logging.String("written", humanize.IBytes(uint64(written))),
			logging.String("total", humanize.IBytes(uint64(total))),
		)
	}
}

func (p *progressReporter) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar != nil {
		_ = p.bar.Exit()
		p.bar = nil
	}
}
