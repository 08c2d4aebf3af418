package timestamps

import (
	"context"
	"iter"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"kctvfetch/internal/logging"
	"kctvfetch/internal/media/snapshots"
	"kctvfetch/internal/ocr"
)

// Recognizer converts one image into classified text.
type Recognizer interface {
	Recognize(ctx context.Context, imagePath string) (ocr.Result, error)
}

// scanner walks a snapshot set through recognise, filter and parse.
type scanner struct {
	rec         Recognizer
	parser      Parser
	concurrency int
	logger      *slog.Logger
}

// Scan yields every offset parsed from images in order. A recognition error is
// yielded once and ends the sequence; offsets yielded before it stay valid.
func (s scanner) Scan(ctx context.Context, images []snapshots.Snapshot) iter.Seq2[Offset, error] {
	if s.concurrency > 1 {
		return s.scanParallel(ctx, images)
	}
	return func(yield func(Offset, error) bool) {
		for _, img := range images {
			result, err := s.rec.Recognize(ctx, img.Path)
			if err != nil {
				yield(0, err)
				return
			}
			if !s.emit(img, result, yield) {
				return
			}
		}
	}
}

func (s scanner) scanParallel(ctx context.Context, images []snapshots.Snapshot) iter.Seq2[Offset, error] {
	return func(yield func(Offset, error) bool) {
		results := make([]ocr.Result, len(images))
		errs := make([]error, len(images))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.concurrency)
		for i, img := range images {
			g.Go(func() error {
				results[i], errs[i] = s.rec.Recognize(gctx, img.Path)
				return errs[i]
			})
		}
		firstErr := g.Wait()

		for i, img := range images {
			if errs[i] != nil {
				// a sibling failure cancels in-flight calls; report the cause
				if ctx.Err() != nil {
					yield(0, ctx.Err())
				} else {
					yield(0, firstErr)
				}
				return
			}
			if !s.emit(img, results[i], yield) {
				return
			}
		}
	}
}

func (s scanner) emit(img snapshots.Snapshot, result ocr.Result, yield func(Offset, error) bool) bool {
	if !result.Recognised() {
		s.logger.Debug("recognition result discarded",
			logging.String("image", img.Path),
			logging.Int("exit_code", result.ExitCode),
			logging.String("message", result.Message),
		)
		return true
	}
	for _, segment := range result.Segments {
		if !s.parser.Keep(segment) {
			continue
		}
		offset, ok := s.parser.Parse(segment)
		if !ok {
			s.logger.Debug("segment did not match clock pattern",
				logging.String("image", img.Path),
				logging.String("segment", segment),
			)
			continue
		}
		if !yield(offset, nil) {
			return false
		}
	}
	return true
}
