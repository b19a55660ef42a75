package analysis

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"gobengali/internal/clock"
	"gobengali/internal/service"
	"gobengali/internal/text"
)

// LanguageDetector is the part of the collaborator client used for source
// language detection.
type LanguageDetector interface {
	DetectLanguage(ctx context.Context, s string) (*service.DetectResponse, error)
}

// Detection is a detected source language.
type Detection struct {
	Generation uint64
	Language   string
	Confidence float64
	// Local is set when the collaborator failed and the language was guessed
	// from the scripts in the text.
	Local bool
}

// Detector debounces language detection for the buffer.
type Detector struct {
	svc      LanguageDetector
	minLen   int
	deb      *debouncer
	log      *slog.Logger
	onDetect func(Detection)
}

// NewDetector creates a detector. A nil svc detects from scripts only.
func NewDetector(svc LanguageDetector, c clock.Clock, debounce time.Duration, minLen int, log *slog.Logger, onDetect func(Detection)) *Detector {
	if log == nil {
		log = slog.Default()
	}
	return &Detector{
		svc:      svc,
		minLen:   minLen,
		deb:      newDebouncer(c, debounce),
		log:      log.With("component", "detect"),
		onDetect: onDetect,
	}
}

// Schedule arms detection for s. Texts shorter than the minimum cancel any
// pending detection instead.
func (d *Detector) Schedule(s string) bool {
	trimmed := strings.TrimSpace(s)
	if text.Len(trimmed) < d.minLen {
		d.deb.supersede()
		return false
	}
	d.deb.reset(func(ctx context.Context, gen uint64) {
		det := Detection{Generation: gen}
		if d.svc != nil {
			resp, err := d.svc.DetectLanguage(ctx, trimmed)
			if ctx.Err() != nil {
				return
			}
			if err == nil {
				det.Language, det.Confidence = resp.Language, resp.Confidence
			} else {
				d.log.Warn("language detection failed", "error", err)
			}
		}
		if det.Language == "" {
			det.Language, det.Local = text.DetectLanguage(trimmed), true
		}
		if !d.deb.current(gen) {
			return
		}
		if d.onDetect != nil {
			d.onDetect(det)
		}
	})
	return true
}

// IsCurrent reports whether gen is still the latest generation.
func (d *Detector) IsCurrent(gen uint64) bool { return d.deb.current(gen) }

// Cancel drops any pending detection.
func (d *Detector) Cancel() { d.deb.supersede() }

// Wait blocks until started detections have returned.
func (d *Detector) Wait() { d.deb.wait() }

// Close cancels outstanding work and waits for it.
func (d *Detector) Close() { d.deb.close() }
