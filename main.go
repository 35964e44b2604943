package main

import (
	"log"
	"os"
	"strconv"

	"pedidos/pkg/ocr"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

var jwtSecret []byte // loaded from env JWT_SECRET (fallback to dev default)

// receiptPipeline serializes all OCR scans for this process.
var receiptPipeline *ocr.Pipeline

func main() {
	if err := godotenv.Load(); err == nil {
		log.Println("loaded .env")
	}
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "dev-insecure-secret-change" // development fallback
	}
	jwtSecret = []byte(secret)

	receiptPipeline = ocr.NewPipeline(ocr.NewTesseractEngine)
	if v := os.Getenv("OCR_MAX_AMOUNT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			receiptPipeline.SetCeiling(f)
		}
	}

	// Lightweight migrate command: `./pedidos migrate` runs AutoMigrate and
	// seeding then exits. Useful for CI or manual DB setup.
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		initDB()
		log.Println("migration and seeding completed")
		return
	}

	initDB()

	r := gin.Default()

	setupRoutes(r)

	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = ":8081"
	}
	r.Run(addr)
}
