// Receipt intake worker: scans (or watches) a drop directory for receipt
// photos named pedido_<nro>_*.jpg, runs the OCR pipeline on each and writes
// the candidate amount onto the matching order, auto-validating on a match.
// Orders whose photo amount differs are left for a human: the tool never
// rejects on its own.
package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"pedidos/models"
	"pedidos/pkg/ocr"
	"pedidos/pkg/reconcile"
)

var fileNroRE = regexp.MustCompile(`^pedido_([0-9]+)[_.]`)

var db *gorm.DB

var (
	verbose  bool
	dryRun   bool
	pipeline *ocr.Pipeline
)

var extMime = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

func mustInitDBFromEnv() *gorm.DB {
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		log.Fatalf("DB_DSN must be set in environment to run this tool")
	}
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	return gdb
}

func main() {
	dirFlag := flag.String("dir", "uploads/recibos", "directory to scan for receipt images")
	watch := flag.Bool("watch", false, "watch directory for new files")
	workers := flag.Int("workers", 0, "worker pool size (default NumCPU)")
	ceiling := flag.Float64("max-amount", 0, "override OCR amount ceiling (0 = default)")
	flag.BoolVar(&dryRun, "dry-run", false, "scan and OCR but skip all DB writes")
	flag.BoolVar(&verbose, "verbose", false, "verbose per-file logging")
	flag.Parse()

	pipeline = ocr.NewPipeline(ocr.NewTesseractEngine)
	if *ceiling > 0 {
		pipeline.SetCeiling(*ceiling)
	}

	if !dryRun {
		db = mustInitDBFromEnv()
	}

	files := listImageFiles(*dirFlag)
	log.Printf("Scanning %d files (workers=%d)", len(files), effectiveWorkers(*workers))
	runWorkerPool(*dirFlag, files, effectiveWorkers(*workers))

	if *watch {
		if err := watchDirectory(*dirFlag, effectiveWorkers(*workers)); err != nil {
			log.Fatalf("watch failed: %v", err)
		}
	}
}

func effectiveWorkers(w int) int {
	if w <= 0 {
		return runtime.NumCPU()
	}
	return w
}

func logV(format string, args ...any) {
	if verbose {
		log.Printf(format, args...)
	}
}

func listImageFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !isSupportedExt(e.Name()) {
			continue
		}
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out
}

func isSupportedExt(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	_, ok := extMime[ext]
	return ok
}

func watchDirectory(dir string, workers int) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return err
	}
	log.Printf("Watching %s (debounced) ...", dir)

	fileCh := make(chan string, 256)
	go func() {
		// debounce so half-written files settle before processing
		pending := map[string]time.Time{}
		ticker := time.NewTicker(250 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					close(fileCh)
					return
				}
				if ev.Op&fsnotify.Create == fsnotify.Create {
					name := filepath.Base(ev.Name)
					if !isSupportedExt(name) {
						continue
					}
					pending[name] = time.Now()
				}
			case <-ticker.C:
				now := time.Now()
				for name, t := range pending {
					if now.Sub(t) > 300*time.Millisecond { // stable
						fileCh <- name
						delete(pending, name)
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					close(fileCh)
					return
				}
				log.Printf("watch error: %v", err)
			}
		}
	}()

	go runWorkerPool(dir, nil, workers, fileCh)
	// block forever (Ctrl+C to exit)
	select {}
}

func runWorkerPool(dir string, initial []string, workers int, extraCh ...<-chan string) {
	fileCh := make(chan string, 1024)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for name := range fileCh {
				processReceiptFile(dir, name)
			}
		}()
	}
	go func() {
		for _, f := range initial {
			fileCh <- f
		}
		for _, ch := range extraCh {
			go func(c <-chan string) {
				for n := range c {
					fileCh <- n
				}
			}(ch)
		}
		if len(extraCh) == 0 {
			close(fileCh)
		}
	}()
	if len(extraCh) == 0 {
		wg.Wait()
	}
}

// processReceiptFile ties one dropped photo to its order and records the
// extracted amount. Idempotent: already-linked uploads and already-settled
// orders are skipped.
func processReceiptFile(dir, name string) {
	m := fileNroRE.FindStringSubmatch(name)
	if m == nil {
		logV("SKIP unrecognized file name %s", name)
		return
	}
	nro, _ := strconv.Atoi(m[1])
	fullPath := filepath.Join(dir, name)

	res, err := pipeline.Scan(fullPath)
	if err != nil {
		log.Printf("OCR fail %s: %v", name, err)
		if !dryRun {
			recordFailedUpload(name, err.Error())
		}
		return
	}
	if !res.Found {
		logV("no amount in %s", name)
	}
	if dryRun {
		log.Printf("DRY nro=%d file=%s monto=%s", nro, name, reconcile.FormatAmount(res.Amount, res.Found))
		return
	}

	var pedido models.Pedido
	if err := db.Where("nro = ?", nro).First(&pedido).Error; err != nil {
		log.Printf("SKIP %s: pedido #%d no existe", name, nro)
		return
	}
	if pedido.Estado == models.EstadoValidado || pedido.Estado == models.EstadoRechazado || pedido.Estado == models.EstadoCancelado {
		logV("SKIP %s: pedido #%d ya %s", name, nro, pedido.Estado)
		return
	}

	var existing models.Upload
	if err := db.Where("file_name = ?", name).First(&existing).Error; err == nil {
		logV("SKIP upload exists %s", name)
		return
	}
	up := models.Upload{FileName: name, StorePath: "public/recibos/" + name, ContentType: extMime[strings.ToLower(filepath.Ext(name))], PedidoID: &pedido.ID}
	if res.Found {
		up.MontoDetectado = &res.Amount
	}
	if err := db.Create(&up).Error; err != nil {
		log.Printf("ERROR create upload %s: %v", name, err)
		return
	}

	if !res.Found {
		return // photo stored, amount left for manual entry
	}
	pedido.Foto = up.StorePath
	pedido.MontoFoto = &res.Amount
	pedido.TipoPago = models.TipoFoto
	if reconcile.Classify(pedido.Monto, res.Amount) == reconcile.Matched {
		pedido.Estado = models.EstadoValidado
		pedido.ValidadoPor = "ocr-worker"
	}
	if err := db.Save(&pedido).Error; err != nil {
		log.Printf("ERROR save pedido #%d: %v", nro, err)
		return
	}
	log.Printf("PEDIDO #%d monto_foto=%.2f estado=%s file=%s", nro, res.Amount, pedido.Estado, name)
}

func recordFailedUpload(name, reason string) {
	var existing models.Upload
	if err := db.Where("file_name = ?", name).First(&existing).Error; err == nil {
		return
	}
	up := models.Upload{FileName: name, StorePath: "public/recibos/" + name, Failed: true, FailedReason: reason}
	_ = db.Create(&up).Error
}
