// Package audio implements the Capture Source contract (SPEC_FULL §4.2)
// by shelling out to ffmpeg, generalizing the teacher's
// exec.CommandContext + stdout-pipe capture idiom to decode directly to
// fixed-size, fixed-format (mono, 16 kHz, float32) chunks.
package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fede/whisperaloud/internal/domain"
	"github.com/fede/whisperaloud/internal/enginerr"
	"github.com/fede/whisperaloud/internal/ports"
)

// ErrMaxDurationExceeded is returned by ReadChunk once the configured
// max recording duration has been reached; the Session Controller
// treats it as an implicit stop.
var ErrMaxDurationExceeded = errors.New("max recording duration exceeded")

const bytesPerSample = 4 // float32 little-endian

// FFMPEGCapture streams microphone PCM audio using ffmpeg, decoded to
// mono float32 at the engine sample rate.
type FFMPEGCapture struct {
	command string
	onWarn  func(string)
}

// NewFFMPEGCapture builds a capture source that shells out to the given
// ffmpeg binary (empty defaults to "ffmpeg"). onWarn, if non-nil, is
// called for non-fatal anomalies (e.g. a non-finite sample chunk).
func NewFFMPEGCapture(command string, onWarn func(string)) *FFMPEGCapture {
	if command == "" {
		command = "ffmpeg"
	}
	return &FFMPEGCapture{command: command, onWarn: onWarn}
}

func (c *FFMPEGCapture) Start(ctx context.Context, cfg ports.AudioConfig) (ports.AudioSession, error) {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.InputFormat == "" {
		cfg.InputFormat = "pulse"
	}
	if cfg.InputDevice == "" {
		cfg.InputDevice = "default"
	}
	if cfg.ChunkDuration <= 0 {
		cfg.ChunkDuration = 0.1
	}

	// Down-mixing and resampling to the engine's mono/16kHz contract
	// happen here, at the capture boundary, via ffmpeg's own -ac/-ar.
	args := []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", cfg.InputFormat,
		"-i", cfg.InputDevice,
		"-ac", "1",
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-f", "f32le",
		"-",
	}

	cmd := exec.CommandContext(ctx, c.command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, classifyOpenError(fmt.Errorf("failed to start ffmpeg: %w", err), "")
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	select {
	case err := <-waitErr:
		detail := stringsTrimSpaceSafe(stderr.String())
		if err != nil {
			return nil, classifyOpenError(fmt.Errorf("ffmpeg exited before capture started: %w: %s", err, detail), detail)
		}
		return nil, classifyOpenError(errors.New("ffmpeg exited before capture started"), detail)
	case <-time.After(250 * time.Millisecond):
	}

	chunkSamples := int(cfg.ChunkDuration * float64(cfg.SampleRate))
	if chunkSamples < 1 {
		chunkSamples = 1
	}
	var maxSamples int
	if cfg.MaxRecordingSeconds > 0 {
		maxSamples = int(cfg.MaxRecordingSeconds * float64(cfg.SampleRate))
	}

	return &ffmpegSession{
		stdout:       stdout,
		stderr:       &stderr,
		process:      cmd.Process,
		waitErr:      waitErr,
		chunkSamples: chunkSamples,
		maxSamples:   maxSamples,
		onWarn:       c.onWarn,
	}, nil
}

type ffmpegSession struct {
	stdout io.ReadCloser
	stderr *bytes.Buffer

	process *os.Process
	waitErr <-chan error

	chunkSamples int
	maxSamples   int
	totalSamples int
	leftover     []byte
	onWarn       func(string)

	stopOnce sync.Once
	stopErr  error
}

// ReadChunk returns the next fixed-size chunk of mono float32 samples.
// It returns io.EOF once the stream ends cleanly, or
// ErrMaxDurationExceeded once the configured cap has been reached.
func (s *ffmpegSession) ReadChunk() ([]float32, error) {
	if s.maxSamples > 0 && s.totalSamples >= s.maxSamples {
		return nil, ErrMaxDurationExceeded
	}

	need := s.chunkSamples * bytesPerSample
	buf := make([]byte, need)
	filled := copy(buf, s.leftover)
	s.leftover = nil

	var readErr error
	for filled < need {
		n, err := s.stdout.Read(buf[filled:])
		filled += n
		if err != nil {
			// cmd.Wait closes the stdout pipe once ffmpeg exits, so a read
			// that comes after it sees os.ErrClosed rather than io.EOF;
			// either way the stream has ended.
			if errors.Is(err, os.ErrClosed) {
				err = io.EOF
			}
			readErr = err
			break
		}
	}

	if filled == 0 {
		if readErr != nil {
			return nil, readErr
		}
		return nil, io.EOF
	}

	usable := (filled / bytesPerSample) * bytesPerSample
	if usable < filled {
		s.leftover = append(s.leftover, buf[usable:filled]...)
	}

	samples := decodeFloat32LE(buf[:usable])
	samples = sanitize(samples, s.onWarn)

	if s.maxSamples > 0 && s.totalSamples+len(samples) > s.maxSamples {
		samples = samples[:s.maxSamples-s.totalSamples]
	}
	s.totalSamples += len(samples)

	return samples, nil
}

// Read is retained to satisfy callers that want the raw byte stream
// (e.g. diagnostics); production code uses ReadChunk.
func (s *ffmpegSession) Read(p []byte) (int, error) {
	return s.stdout.Read(p)
}

func (s *ffmpegSession) Close() error {
	return s.Stop()
}

func (s *ffmpegSession) Stop() error {
	s.stopOnce.Do(func() {
		if s.process != nil {
			_ = s.process.Signal(os.Interrupt)
		}

		select {
		case err, ok := <-s.waitErr:
			if ok {
				s.stopErr = normalizeStopErr(err)
			}
		case <-time.After(1200 * time.Millisecond):
			if s.process != nil {
				_ = s.process.Kill()
			}
			err, ok := <-s.waitErr
			if ok {
				s.stopErr = normalizeStopErr(err)
			}
		}

		if closeErr := s.stdout.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
			if s.stopErr == nil {
				s.stopErr = closeErr
			}
		}

		if s.stopErr != nil && s.stderr != nil && s.stderr.Len() > 0 {
			s.stopErr = fmt.Errorf("%w: %s", s.stopErr, stringsTrimSpaceSafe(s.stderr.String()))
		}
	})

	return s.stopErr
}

func decodeFloat32LE(b []byte) []float32 {
	out := make([]float32, len(b)/bytesPerSample)
	for i := range out {
		bits := binary.LittleEndian.Uint32(b[i*bytesPerSample : i*bytesPerSample+bytesPerSample])
		out[i] = math.Float32frombits(bits)
	}
	return out
}

// sanitize replaces non-finite samples with silence, per SPEC_FULL §4.2,
// and warns at most once per chunk.
func sanitize(samples []float32, onWarn func(string)) []float32 {
	warned := false
	for i, s := range samples {
		f := float64(s)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			samples[i] = 0
			if !warned && onWarn != nil {
				warned = true
				onWarn("non-finite sample replaced with silence")
			}
		}
	}
	return samples
}

func normalizeStopErr(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}

func stringsTrimSpaceSafe(input string) string {
	if input == "" {
		return input
	}
	return string(bytes.TrimSpace([]byte(input)))
}

// classifyOpenError maps ffmpeg's stderr output to a stable
// domain.ErrorCode, defaulting to NoMicrophone when no clearer signal
// is present.
func classifyOpenError(err error, stderrText string) error {
	lower := strings.ToLower(stderrText)
	switch {
	case strings.Contains(lower, "device or resource busy"), strings.Contains(lower, "busy"):
		return enginerr.New(domain.ErrorCodeDeviceBusy, err)
	case strings.Contains(lower, "permission denied"):
		return enginerr.New(domain.ErrorCodePermissionDenied, err)
	default:
		return enginerr.New(domain.ErrorCodeNoMicrophone, err)
	}
}
