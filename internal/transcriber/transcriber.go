// Package transcriber wraps the whisper.cpp CGO bindings behind the
// lazy-loaded Transcriber port (SPEC_FULL §4.5), grounded on the
// teacher pack's native whisper.cpp provider.
package transcriber

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"sync"
	"time"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/fede/whisperaloud/internal/domain"
	"github.com/fede/whisperaloud/internal/enginerr"
)

// Config selects the model and default language for transcription.
type Config struct {
	ModelPath string
	Language  string // BCP-47 hint; empty lets whisper.cpp auto-detect
	PreferGPU bool
}

// Transcriber lazily loads a whisper.cpp model on first use and keeps
// it resident until Unload is called, e.g. under memory pressure.
type Transcriber struct {
	cfg    Config
	onWarn func(string)

	mu    sync.Mutex
	model whisperlib.Model
}

// New builds a Transcriber. onWarn, if non-nil, receives non-fatal
// notices such as a GPU-to-CPU fallback.
func New(cfg Config, onWarn func(string)) *Transcriber {
	return &Transcriber{cfg: cfg, onWarn: onWarn}
}

// Transcribe runs inference over a finalized mono 16 kHz float32
// buffer. An empty buffer yields an empty result rather than an error,
// per the recording-discarded edge case.
func (t *Transcriber) Transcribe(ctx context.Context, samples []float32, languageHint string) (domain.TranscriptionResult, error) {
	if len(samples) == 0 {
		return domain.TranscriptionResult{}, nil
	}
	if err := ctx.Err(); err != nil {
		return domain.TranscriptionResult{}, err
	}

	model, err := t.ensureLoaded()
	if err != nil {
		return domain.TranscriptionResult{}, err
	}

	start := time.Now()

	wctx, err := model.NewContext()
	if err != nil {
		return domain.TranscriptionResult{}, enginerr.New(domain.ErrorCodeTranscriptionFailed, fmt.Errorf("create whisper context: %w", err))
	}

	lang := languageHint
	if lang == "" {
		lang = t.cfg.Language
	}
	if lang != "" {
		if err := wctx.SetLanguage(lang); err != nil && t.onWarn != nil {
			t.onWarn(fmt.Sprintf("failed to set language %q, using model default: %v", lang, err))
		}
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return domain.TranscriptionResult{}, enginerr.New(domain.ErrorCodeTranscriptionFailed, fmt.Errorf("process audio: %w", err))
	}

	segments, text, langProb, err := collectSegments(wctx)
	if err != nil {
		return domain.TranscriptionResult{}, enginerr.New(domain.ErrorCodeTranscriptionFailed, fmt.Errorf("read segments: %w", err))
	}

	return domain.TranscriptionResult{
		Text:                text,
		Language:            lang,
		LanguageProbability: langProb,
		Confidence:          meanConfidence(segments),
		AudioDurationSec:    float64(len(samples)) / 16000,
		ProcessingTime:      time.Since(start),
		Segments:            segments,
	}, nil
}

// segmentReader is the subset of whisper.cpp's Context used here,
// narrowed so tests can fake it without linking CGO.
type segmentReader interface {
	NextSegment() (whisperlib.Segment, error)
}

// collectSegments reads every segment off r, joining their text and
// computing each segment's mean token log probability along the way.
// It also returns the mean (linear) token probability across the whole
// buffer, used as the detected-language probability since whisper.cpp's
// Go binding surfaces per-token confidence but no separate per-language
// distribution.
func collectSegments(r segmentReader) ([]domain.Segment, string, float64, error) {
	var segments []domain.Segment
	var parts []string
	var probSum float64
	var probCount int

	for {
		seg, err := r.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, "", 0, err
		}
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}

		avgLogProb, sum, count := tokenLogProb(seg.Tokens)
		probSum += sum
		probCount += count

		segments = append(segments, domain.Segment{
			StartSec:   seg.Start.Seconds(),
			EndSec:     seg.End.Seconds(),
			Text:       text,
			AvgLogProb: avgLogProb,
		})
		parts = append(parts, text)
	}

	var langProb float64
	if probCount > 0 {
		langProb = probSum / float64(probCount)
	}
	return segments, strings.Join(parts, " "), langProb, nil
}

// tokenLogProb reduces one segment's tokens to its mean log probability
// (the avg_logprob spec.md §4.5's confidence formula is computed over)
// plus the raw probability sum/count so the caller can also fold it
// into a buffer-wide linear mean.
func tokenLogProb(tokens []whisperlib.Token) (avgLogProb, probSum float64, probCount int) {
	if len(tokens) == 0 {
		return 0, 0, 0
	}
	var logSum float64
	for _, tok := range tokens {
		p := float64(tok.P)
		if p <= 0 {
			p = 1e-6
		}
		logSum += math.Log(p)
		probSum += p
	}
	return logSum / float64(len(tokens)), probSum, len(tokens)
}

// meanConfidence applies spec.md §4.5's confidence formula,
// exp(mean(avg_logprob)) over segments, or 0 with no segments.
func meanConfidence(segments []domain.Segment) float64 {
	if len(segments) == 0 {
		return 0
	}
	var sum float64
	for _, seg := range segments {
		sum += seg.AvgLogProb
	}
	return math.Exp(sum / float64(len(segments)))
}

// ensureLoaded lazily loads the model, preferring GPU acceleration and
// falling back to CPU-only on a GPU-flavored load failure.
func (t *Transcriber) ensureLoaded() (whisperlib.Model, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.model != nil {
		return t.model, nil
	}

	if _, err := os.Stat(t.cfg.ModelPath); err != nil {
		return nil, enginerr.New(domain.ErrorCodeModelNotFound, fmt.Errorf("model %q: %w", t.cfg.ModelPath, err))
	}

	model, err := t.loadWithFallback()
	if err != nil {
		return nil, enginerr.New(domain.ErrorCodeModelLoadFailed, err)
	}

	t.model = model
	return t.model, nil
}

func (t *Transcriber) loadWithFallback() (whisperlib.Model, error) {
	if t.cfg.PreferGPU {
		model, err := whisperlib.New(t.cfg.ModelPath)
		if err == nil {
			return model, nil
		}
		if isGPUFailure(err) {
			if t.onWarn != nil {
				t.onWarn(fmt.Sprintf("GPU model load failed (%v), retrying on CPU", err))
			}
			return t.loadCPUOnly()
		}
		return nil, err
	}
	return t.loadCPUOnly()
}

func (t *Transcriber) loadCPUOnly() (whisperlib.Model, error) {
	// whisper.cpp selects its compute backend at build time; forcing
	// the CPU path here documents intent even when the binding offers
	// no runtime device switch.
	_ = os.Setenv("WHISPER_NO_GPU", "1")
	return whisperlib.New(t.cfg.ModelPath)
}

func isGPUFailure(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "cuda") || strings.Contains(msg, "metal") || strings.Contains(msg, "gpu")
}

// Unload releases the whisper model so it can be reloaded lazily on
// the next Transcribe call, e.g. under memory pressure.
func (t *Transcriber) Unload() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.model != nil {
		_ = t.model.Close()
		t.model = nil
	}
}
