package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yourorg/product-catalog/internal/catalog"
	"github.com/yourorg/product-catalog/internal/models"
	"github.com/yourorg/product-catalog/internal/normalize"
	"github.com/yourorg/product-catalog/internal/storage"
)

// Seeds or migrates the catalog document from a local export file. Accepts
// either the JSON document itself or a CSV export with one product per row:
//
//	title,description,category,start,end,quantity,unit,contact,address,manager
//
// Dates in CSV rows are normalized to RFC 3339, including the old list
// system's /Date(ms)/ encoding.
func main() {
	input := flag.String("input", "", "path to a .json or .csv export (required)")
	replace := flag.Bool("replace", false, "overwrite the catalog document instead of appending")
	flag.Parse()
	if *input == "" {
		flag.Usage()
		os.Exit(2)
	}

	ctx := context.Background()
	zl, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer zl.Sync()

	var blobs storage.BlobStore
	if getenv("CATALOG_BACKEND", "s3") == "badger" {
		b, err := storage.NewBadger(getenv("BADGER_DIR", "/var/product-catalog/badger"))
		if err != nil {
			log.Fatalf("badger init: %v", err)
		}
		defer b.Close()
		blobs = b
	} else {
		s3c, err := storage.NewS3(ctx, getenv("CATALOG_BUCKET", "my-lists-images"))
		if err != nil {
			log.Fatalf("s3 init: %v", err)
		}
		blobs = s3c
	}

	f, err := os.Open(*input)
	if err != nil {
		log.Fatalf("open input: %v", err)
	}
	defer f.Close()

	var products []models.Product
	switch {
	case strings.HasSuffix(*input, ".json"):
		products, err = parseJSON(f)
	case strings.HasSuffix(*input, ".csv"):
		products, err = parseCSV(f)
	default:
		log.Fatalf("unsupported input type: %s", *input)
	}
	if err != nil {
		log.Fatalf("parse input: %v", err)
	}

	cat := catalog.New(blobs, catalog.ParseStrategy(getenv("CATALOG_WRITE_STRATEGY", "lww")), zl)
	if *replace {
		if err := cat.ReplaceAll(ctx, products); err != nil {
			log.Fatalf("write catalog: %v", err)
		}
	} else {
		for _, p := range products {
			if err := cat.Append(ctx, p); err != nil {
				log.Fatalf("append %q: %v", p.Title, err)
			}
		}
	}
	zl.Info("import finished", zap.Int("products", len(products)), zap.Bool("replace", *replace))
}

func parseJSON(r io.Reader) ([]models.Product, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var products []models.Product
	if err := json.Unmarshal(data, &products); err == nil {
		return products, nil
	}
	var single models.Product
	if err := json.Unmarshal(data, &single); err != nil {
		return nil, err
	}
	return []models.Product{single}, nil
}

func parseCSV(r io.Reader) ([]models.Product, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // exports often omit trailing columns
	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}

	stamp := time.Now().UTC().Format(time.RFC3339)
	var products []models.Product
	for _, rec := range records {
		// Pad short rows so column order alone decides meaning.
		for len(rec) < 10 {
			rec = append(rec, "")
		}
		if strings.TrimSpace(rec[0]) == "" {
			continue
		}
		products = append(products, models.Product{
			Title:       strings.TrimSpace(rec[0]),
			Description: rec[1],
			Category:    rec[2],
			StartDate:   normalize.Date(rec[3]),
			EndDate:     normalize.Date(rec[4]),
			Quantity:    rec[5],
			Unit:        rec[6],
			Contact: models.Contact{
				Email:       rec[7],
				LookupValue: rec[7],
			},
			Address:         rec[8],
			Manager:         rec[9],
			ModifiedDate:    stamp,
			LastUpdatedFrom: "Importer",
		})
	}
	return products, nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
