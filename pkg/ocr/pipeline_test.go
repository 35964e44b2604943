package ocr

import (
	"errors"
	"image/color"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/disintegration/imaging"
)

// stubEngine returns canned text without touching Tesseract.
type stubEngine struct {
	text   string
	err    error
	closed *int
}

func (s *stubEngine) Recognize(path string) (string, error) { return s.text, s.err }

func (s *stubEngine) Close() error {
	*s.closed++
	return nil
}

func writeFixtureImage(t *testing.T) string {
	t.Helper()
	img := imaging.New(200, 200, color.NRGBA{255, 255, 255, 255})
	f, err := os.CreateTemp("", "fixture-*.png")
	if err != nil {
		t.Skip("temp file")
	}
	_ = f.Close()
	if err := imaging.Save(img, f.Name()); err != nil {
		t.Fatalf("save fixture: %v", err)
	}
	t.Cleanup(func() { os.Remove(f.Name()) })
	return f.Name()
}

func TestPipelineScan(t *testing.T) {
	path := writeFixtureImage(t)
	closed := 0
	p := NewPipeline(func() Engine {
		return &stubEngine{text: "TOTAL\nS/ 46.90", closed: &closed}
	})

	res, err := p.Scan(path)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if !res.Found || res.Amount != 46.90 {
		t.Fatalf("expected 46.90 got %+v", res)
	}
	if closed != 1 {
		t.Fatalf("engine closed %d times, expected 1", closed)
	}
}

func TestPipelineNoAmountIsNotError(t *testing.T) {
	path := writeFixtureImage(t)
	closed := 0
	p := NewPipeline(func() Engine {
		return &stubEngine{text: "GRACIAS POR SU COMPRA", closed: &closed}
	})

	res, err := p.Scan(path)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if res.Found {
		t.Fatalf("expected no amount, got %+v", res)
	}
	if closed != 1 {
		t.Fatalf("engine closed %d times, expected 1", closed)
	}
}

func TestPipelineEngineError(t *testing.T) {
	path := writeFixtureImage(t)
	closed := 0
	p := NewPipeline(func() Engine {
		return &stubEngine{err: errors.New("boom"), closed: &closed}
	})

	_, err := p.Scan(path)
	if err == nil {
		t.Fatalf("expected engine error")
	}
	if closed != 1 {
		t.Fatalf("engine closed %d times after failure, expected 1", closed)
	}
}

func TestPipelineDecodeError(t *testing.T) {
	f, err := os.CreateTemp("", "broken-*.jpg")
	if err != nil {
		t.Skip("temp file")
	}
	if _, err := f.WriteString("nope"); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	_ = f.Close()
	defer os.Remove(f.Name())

	built := 0
	p := NewPipeline(func() Engine {
		built++
		return &stubEngine{closed: new(int)}
	})
	_, err = p.Scan(f.Name())
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode got %v", err)
	}
	if built != 0 {
		t.Fatalf("engine built before decode succeeded")
	}
}

// funcEngine lets a test observe recognition timing.
type funcEngine struct {
	fn func() (string, error)
}

func (f *funcEngine) Recognize(path string) (string, error) { return f.fn() }

func (f *funcEngine) Close() error { return nil }

func TestPipelineScansSerialized(t *testing.T) {
	path := writeFixtureImage(t)
	var inFlight, overlapped int32
	p := NewPipeline(func() Engine {
		return &funcEngine{fn: func() (string, error) {
			if atomic.AddInt32(&inFlight, 1) > 1 {
				atomic.StoreInt32(&overlapped, 1)
			}
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
			return "TOTAL 46.90", nil
		}}
	})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := p.Scan(path)
			if err != nil || !res.Found || res.Amount != 46.90 {
				t.Errorf("Scan: res=%+v err=%v", res, err)
			}
		}()
	}
	wg.Wait()
	if atomic.LoadInt32(&overlapped) != 0 {
		t.Fatalf("two scans ran concurrently; scans must wait for the one in flight")
	}
}

func TestPipelineCeilingOverride(t *testing.T) {
	path := writeFixtureImage(t)
	closed := 0
	p := NewPipeline(func() Engine {
		return &stubEngine{text: "pago 123456.00", closed: &closed}
	})
	p.SetCeiling(200000)

	res, err := p.Scan(path)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if !res.Found || res.Amount != 123456.00 {
		t.Fatalf("expected 123456.00 got %+v", res)
	}
}
