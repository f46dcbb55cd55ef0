// Package whispercpp adapts the teacher's cgo bindings to libwhisper.a
// into the engine.SttEngine collaborator contract. whisper.cpp exposes no
// incremental decode API, so it backs only the batch path: the periodic
// and VAD-confirmed re-transcription runs of StreamingTranscriber, never
// worker.Recognizer directly.
package whispercpp

// #cgo LDFLAGS: -l:libwhisper.a -lm -lstdc++
// #include <whisper.h>
// #include <stdlib.h>
import "C"

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"
	"unsafe"

	"github.com/localstt/streamstt/engine"
)

// Config selects the GGML model file and decode parallelism.
type Config struct {
	// ModelFile is the path to the GGML model to load.
	ModelFile string
	// NumThreads is how many CPU threads whisper_full uses per call.
	NumThreads int
	// Language is a BCP-47-ish language hint ("en", "" for auto-detect).
	Language string
}

// IsValid reports whether cfg is usable to construct a Context.
func (c Config) IsValid() error {
	if c == (Config{}) {
		return fmt.Errorf("whispercpp: invalid empty config")
	}
	if c.ModelFile == "" {
		return fmt.Errorf("whispercpp: ModelFile should not be empty")
	}
	if numCPU := runtime.NumCPU(); c.NumThreads <= 0 || c.NumThreads > numCPU {
		return fmt.Errorf("whispercpp: NumThreads should be in the range [1, %d]", numCPU)
	}
	if _, err := os.Stat(c.ModelFile); err != nil {
		return fmt.Errorf("whispercpp: failed to stat model file: %w", err)
	}
	return nil
}

// Context wraps one loaded whisper.cpp model. It is safe for concurrent
// Transcribe calls (guarded by an internal mutex): whisper_full is not
// reentrant on a single context, and StreamingTranscriber's periodic and
// VAD-confirmed paths may both want to use it at different times.
type Context struct {
	cfg Config

	mu  sync.Mutex
	ctx *C.struct_whisper_context
}

// New loads the GGML model at cfg.ModelFile.
func New(cfg Config) (*Context, error) {
	if err := cfg.IsValid(); err != nil {
		return nil, fmt.Errorf("whispercpp: failed to validate config: %w", err)
	}

	path := C.CString(cfg.ModelFile)
	defer C.free(unsafe.Pointer(path))

	ctx := C.whisper_init_from_file(path)
	if ctx == nil {
		return nil, fmt.Errorf("whispercpp: failed to load model file %q", cfg.ModelFile)
	}

	return &Context{cfg: cfg, ctx: ctx}, nil
}

// Transcribe implements engine.SttEngine. ctx is accepted for interface
// parity; whisper_full itself is not cancellable mid-call.
func (c *Context) Transcribe(_ context.Context, samples []float32) ([]engine.Segment, string, error) {
	if len(samples) == 0 {
		return nil, "", fmt.Errorf("whispercpp: samples should not be empty")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ctx == nil {
		return nil, "", fmt.Errorf("whispercpp: context is not initialized")
	}

	params := C.whisper_full_default_params(C.WHISPER_SAMPLING_GREEDY)
	params.no_context = C.bool(false)
	params.n_threads = C.int(c.cfg.NumThreads)
	params.split_on_word = C.bool(true)
	if c.cfg.Language != "" {
		lang := C.CString(c.cfg.Language)
		defer C.free(unsafe.Pointer(lang))
		params.language = lang
	}

	if ret := C.whisper_full(c.ctx, params, (*C.float)(&samples[0]), C.int(len(samples))); ret != 0 {
		return nil, "", fmt.Errorf("whispercpp: whisper_full failed with code %d", ret)
	}

	n := int(C.whisper_full_n_segments(c.ctx))
	segments := make([]engine.Segment, n)
	for i := 0; i < n; i++ {
		// whisper reports centisecond offsets; the pipeline works in ms.
		segments[i] = engine.Segment{
			Text:    C.GoString(C.whisper_full_get_segment_text(c.ctx, C.int(i))),
			StartMs: int64(C.whisper_full_get_segment_t0(c.ctx, C.int(i))) * 10,
			EndMs:   int64(C.whisper_full_get_segment_t1(c.ctx, C.int(i))) * 10,
		}
	}

	lang := ""
	if id := int(C.whisper_full_lang_id(c.ctx)); id >= 0 {
		lang = C.GoString(C.whisper_lang_str(C.int(id)))
	}

	return segments, lang, nil
}

// Destroy implements engine.SttEngine.
func (c *Context) Destroy() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ctx == nil {
		return fmt.Errorf("whispercpp: context is not initialized")
	}
	C.whisper_free(c.ctx)
	c.ctx = nil
	return nil
}
