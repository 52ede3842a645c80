package main

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/minshop/minshop-backend/config"
	"github.com/minshop/minshop-backend/internal/app/model"
	"github.com/minshop/minshop-backend/internal/app/repository"
	"github.com/minshop/minshop-backend/internal/db"
	"github.com/xuri/excelize/v2"
)

// Imports a product catalog from an XLSX file with the columns:
// name, description, price, stock_quantity, category, image_url.
func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: go run cmd/seed/main.go <xlsx_file_path>")
	}
	filePath := os.Args[1]

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	if err := db.Initialize(&cfg.Database); err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	productRepo := repository.NewProductRepository(db.GetDB(), cfg.Catalog.CaseInsensitiveSearch)

	fmt.Printf("Reading XLSX file: %s\n", filePath)
	products, err := readProductsFromXLSX(filePath)
	if err != nil {
		log.Fatal("Failed to read XLSX:", err)
	}

	fmt.Printf("Total products to import: %d\n", len(products))

	fmt.Print("Do you want to proceed with the import? (yes/no): ")
	var confirm string
	fmt.Scanln(&confirm)
	if confirm != "yes" && confirm != "y" {
		fmt.Println("Import cancelled.")
		return
	}

	batchSize := 500
	if err := productRepo.BulkCreate(products, batchSize); err != nil {
		log.Fatal("Failed to bulk create products:", err)
	}

	fmt.Println("Import completed successfully!")
	fmt.Printf("Total products imported: %d\n", len(products))
}

func readProductsFromXLSX(filePath string) ([]model.Product, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open XLSX file: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, fmt.Errorf("no sheets found in XLSX file")
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no data found in XLSX file")
	}

	var products []model.Product
	seenNames := make(map[string]bool) // unique index on name
	skippedCount := 0

	for i, row := range rows {
		// First row is the header
		if i == 0 {
			fmt.Printf("Headers: %v\n", row)
			continue
		}

		if len(row) < 3 {
			skippedCount++
			continue
		}

		name := strings.TrimSpace(row[0])
		description := strings.TrimSpace(row[1])
		priceStr := strings.TrimSpace(row[2])

		if name == "" || priceStr == "" {
			skippedCount++
			continue
		}
		if seenNames[name] {
			skippedCount++
			continue
		}

		price, err := strconv.ParseFloat(priceStr, 64)
		if err != nil || price < 0 {
			skippedCount++
			continue
		}

		stock := 0
		if len(row) > 3 {
			if s, err := strconv.Atoi(strings.TrimSpace(row[3])); err == nil && s >= 0 {
				stock = s
			}
		}

		category := model.CategoryOther
		if len(row) > 4 {
			if c := parseCategory(strings.TrimSpace(row[4])); c != "" {
				category = c
			}
		}

		imageURL := ""
		if len(row) > 5 {
			imageURL = strings.TrimSpace(row[5])
		}

		seenNames[name] = true
		products = append(products, model.Product{
			Name:          name,
			Description:   description,
			Price:         price,
			StockQuantity: stock,
			Category:      category,
			ImageURL:      imageURL,
		})
	}

	fmt.Printf("\nSummary:\n")
	fmt.Printf("  Total rows: %d\n", len(rows)-1)
	fmt.Printf("  Valid products: %d\n", len(products))
	fmt.Printf("  Skipped rows: %d\n", skippedCount)

	return products, nil
}

func parseCategory(raw string) model.ProductCategory {
	switch strings.ToLower(raw) {
	case "electronics":
		return model.CategoryElectronics
	case "clothing":
		return model.CategoryClothing
	case "books":
		return model.CategoryBooks
	case "home":
		return model.CategoryHome
	case "other":
		return model.CategoryOther
	default:
		return ""
	}
}
