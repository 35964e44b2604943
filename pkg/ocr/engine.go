package ocr

import "github.com/otiai10/gosseract/v2"

// Engine converts a normalized receipt image into raw text. Its internals
// are a black box to the rest of the pipeline.
type Engine interface {
	Recognize(path string) (string, error)
	Close() error
}

// EngineFactory builds a fresh Engine for a single pipeline invocation.
// One engine per scan keeps recognition state from leaking across scans;
// the pipeline closes the engine on every exit path.
type EngineFactory func() Engine

type tesseractEngine struct {
	client *gosseract.Client
}

// NewTesseractEngine returns an Engine backed by a gosseract client
// configured for a single language.
func NewTesseractEngine() Engine {
	c := gosseract.NewClient()
	_ = c.SetLanguage("eng")
	return &tesseractEngine{client: c}
}

func (t *tesseractEngine) Recognize(path string) (string, error) {
	t.client.SetImage(path)
	return t.client.Text()
}

func (t *tesseractEngine) Close() error {
	return t.client.Close()
}
