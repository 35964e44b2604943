package ocr

import (
	"fmt"
	"log"
	"os"
	"sync"
	"time"
)

// Result of one receipt scan. Found distinguishes "no plausible amount in
// the text" from an amount of zero; both leave Amount at 0.
type Result struct {
	Amount float64
	Found  bool
	Text   string // raw recognized text, kept for logging
}

// Pipeline runs preprocess -> recognize -> extract for receipt images.
// Scans are serialized: a second invocation while one is in flight waits
// for the first to finish instead of racing on shared result state.
type Pipeline struct {
	mu      sync.Mutex
	engines EngineFactory
	ceiling float64
}

// NewPipeline builds a pipeline around an engine factory. The default
// extraction ceiling applies until SetCeiling overrides it.
func NewPipeline(factory EngineFactory) *Pipeline {
	return &Pipeline{engines: factory, ceiling: DefaultCeiling}
}

// SetCeiling overrides the extraction sanity bound. Values <= 0 are ignored.
func (p *Pipeline) SetCeiling(v float64) {
	if v > 0 {
		p.ceiling = v
	}
}

// Scan reads the image at path and returns the extracted candidate amount.
// Decode and recognition failures are errors; the extractor finding no
// amount is a normal completed scan with Found == false, inviting manual
// entry upstream.
func (p *Pipeline) Scan(path string) (Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := time.Now()
	tmp, err := NormalizeFile(path)
	if err != nil {
		scansTotal.WithLabelValues("decode_error").Inc()
		return Result{}, err
	}
	defer os.Remove(tmp)

	eng := p.engines()
	defer eng.Close()
	text, err := eng.Recognize(tmp)
	if err != nil {
		scansTotal.WithLabelValues("engine_error").Inc()
		return Result{}, fmt.Errorf("could not read image: %w", err)
	}

	amt, ok := ExtractAmountWithCeiling(text, p.ceiling)
	scanSeconds.Observe(time.Since(start).Seconds())
	if !ok {
		scansTotal.WithLabelValues("no_amount").Inc()
		log.Printf("OCR scan %s: no amount; text snippet=%q", path, snippet(text, 140))
		return Result{Text: text}, nil
	}
	scansTotal.WithLabelValues("ok").Inc()
	log.Printf("OCR scan %s: amount=%.2f", path, amt)
	return Result{Amount: amt, Found: true, Text: text}, nil
}
