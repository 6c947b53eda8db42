// cmd/seeder/main.go
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ammerola/resell-stock/internal/adapters/db"
	"github.com/ammerola/resell-stock/internal/core/domain"
	"github.com/ammerola/resell-stock/internal/core/ports"
	"github.com/ammerola/resell-stock/internal/core/services"
	"github.com/ammerola/resell-stock/internal/pkg/config"
	"github.com/ammerola/resell-stock/internal/pkg/logger"
	"github.com/ammerola/resell-stock/internal/pkg/tenant"
	"github.com/ammerola/resell-stock/internal/workers"
)

// seederState tracks the files already loaded so a rerun resumes.
type seederState struct {
	Processed  []string  `json:"processed"`
	Count      int       `json:"processed_count"`
	LastUpdate time.Time `json:"last_update"`
}

func loadState(path string) seederState {
	var state seederState
	if data, err := os.ReadFile(path); err == nil {
		_ = json.Unmarshal(data, &state)
	}
	return state
}

func (s *seederState) save(path string) error {
	s.Count = len(s.Processed)
	s.LastUpdate = time.Now()
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// seeder loads wholesaler catalogs and supplier invoice PDFs from disk.
// With a nil catalog or invoice service it only parses.
type seeder struct {
	catalog    ports.CatalogService
	parser     ports.CatalogService
	invoices   ports.InvoiceService
	bucket     domain.Bucket
	supplierID *uuid.UUID
	logger     *slog.Logger
}

func (s *seeder) seedCatalog(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	preview, err := s.parser.Parse(filepath.Base(path), f)
	if err != nil {
		return 0, err
	}
	if s.catalog == nil {
		return len(preview.Rows), nil
	}
	return s.catalog.Confirm(ctx, preview.Rows, s.bucket)
}

func (s *seeder) seedInvoice(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	lines, err := workers.ExtractText(ctx, data, s.logger)
	if err != nil {
		return 0, err
	}
	inv, err := workers.ParseInvoiceText(lines)
	if err != nil {
		return 0, err
	}
	inv.SupplierID = s.supplierID
	inv.Notes = "Imported from " + filepath.Base(path)

	if s.invoices == nil {
		s.logger.InfoContext(ctx, "invoice parsed",
			slog.String("number", inv.Number),
			slog.String("amount_ttc", inv.AmountTTC.StringFixed(2)))
		return 1, nil
	}
	if err := s.invoices.Create(ctx, inv); err != nil {
		return 0, err
	}
	return 1, nil
}

func main() {
	var (
		catalogsDir = flag.String("catalogs", "./catalogs", "Directory containing wholesaler catalogs (.csv, .xlsx)")
		invoicesDir = flag.String("invoices", "./invoices", "Directory containing supplier PDF invoices")
		owner       = flag.String("user", "", "User the records are created for")
		bucket      = flag.String("bucket", "warehouse", "Bucket receiving catalog quantities (warehouse, fba, fbm)")
		supplier    = flag.String("supplier-id", "", "Supplier the invoices are attached to")
		stateFile   = flag.String("state", "./.seed_state.json", "State file for tracking progress")
		logLevel    = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
		dryRun      = flag.Bool("dry-run", false, "Parse files without modifying the database")
		force       = flag.Bool("force", false, "Reload every file")
	)
	flag.Parse()

	log := logger.SetupLogger(*logLevel, "text").Logger

	b, err := domain.ParseBucket(*bucket)
	if err != nil {
		log.Error("invalid bucket", slog.String("error", err.Error()))
		os.Exit(2)
	}
	s := &seeder{
		parser: services.NewCatalogService(nil, nil, log),
		bucket: b,
		logger: log,
	}
	if *supplier != "" {
		id, err := uuid.Parse(*supplier)
		if err != nil {
			log.Error("invalid supplier id", slog.String("error", err.Error()))
			os.Exit(2)
		}
		s.supplierID = &id
	}

	ctx := tenant.WithTenant(context.Background(), tenant.Tenant{UserID: *owner})

	if !*dryRun {
		cfg, err := config.Load(log)
		if err != nil {
			log.Error("failed to load configuration", slog.String("error", err.Error()))
			os.Exit(1)
		}
		database, err := db.NewDatabase(ctx, &db.Config{
			Host:           cfg.Database.Host,
			Port:           cfg.Database.Port,
			User:           cfg.Database.User,
			Password:       cfg.Database.Password,
			Database:       cfg.Database.Name,
			SSLMode:        cfg.Database.SSLMode,
			MaxConnections: 4,
			MinConnections: 1,
			ConnectTimeout: cfg.Database.ConnectTimeout,
		}, log)
		if err != nil {
			log.Error("failed to connect to database", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer database.Close()

		// No cache here; the API drops its views on the store notifications.
		views := services.NewViewCache(nil, 0, log)
		s.catalog = services.NewCatalogService(db.NewItemRepository(database, log), views, log)
		s.invoices = services.NewInvoiceService(
			db.NewInvoiceRepository(database, log),
			db.NewSupplierRepository(database, log),
			views, log)
	}

	var state seederState
	if !*force {
		state = loadState(*stateFile)
	}

	var files []string
	for _, pattern := range []string{
		filepath.Join(*catalogsDir, "*.csv"),
		filepath.Join(*catalogsDir, "*.xlsx"),
		filepath.Join(*invoicesDir, "*.pdf"),
	} {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			log.Error("failed to list files", slog.String("pattern", pattern), slog.String("error", err.Error()))
			os.Exit(1)
		}
		files = append(files, matches...)
	}

	var (
		totalFiles   int
		totalRecords int
		failed       []string
		details      = map[string]int{}
	)

	for i, path := range files {
		name := filepath.Base(path)
		fmt.Printf("PROGRESS: Processing %d/%d: %s\n", i+1, len(files), name)

		if slices.Contains(state.Processed, path) {
			log.Info("skipping already processed file", slog.String("file", name))
			continue
		}

		var n int
		if strings.EqualFold(filepath.Ext(path), ".pdf") {
			n, err = s.seedInvoice(ctx, path)
		} else {
			n, err = s.seedCatalog(ctx, path)
		}
		if err != nil {
			log.Error("failed to load file",
				slog.String("file", name),
				slog.Int("records", n),
				slog.String("error", err.Error()))
			failed = append(failed, name)
			fmt.Printf("ERROR: %s - %v\n", name, err)
			continue
		}

		fmt.Printf("SUCCESS: %s - %d records\n", name, n)
		details[name] = n
		totalFiles++
		totalRecords += n

		if !*dryRun {
			state.Processed = append(state.Processed, path)
			if totalFiles%10 == 0 {
				if err := state.save(*stateFile); err != nil {
					log.Warn("failed to save state", slog.String("error", err.Error()))
				}
			}
		}
	}

	if !*dryRun {
		if err := state.save(*stateFile); err != nil {
			log.Warn("failed to save state", slog.String("error", err.Error()))
		}
	}

	fmt.Println("\n" + strings.Repeat("=", 60))
	fmt.Println("SEEDING SUMMARY")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("Files loaded: %d\n", totalFiles)
	fmt.Printf("Records created: %d\n", totalRecords)

	if len(details) > 0 {
		fmt.Printf("\nLoaded (%d files):\n", len(details))
		for name, n := range details {
			fmt.Printf("  - %s: %d\n", name, n)
		}
	}
	if len(failed) > 0 {
		fmt.Printf("\nFailed (%d files):\n", len(failed))
		for _, name := range failed {
			fmt.Printf("  - %s\n", name)
		}
	}

	log.Info("seed operation completed",
		slog.Int("files", totalFiles),
		slog.Int("records", totalRecords),
		slog.Int("failed", len(failed)))

	if *dryRun {
		fmt.Println("\n[DRY RUN] No changes were made to the database")
	}
}
