package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"pillgenious/internal/catalog"
	"pillgenious/internal/logger"
	"pillgenious/internal/sheets"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Manage the drug catalog",
	Long: `Operator commands for the drug catalog selected by CATALOG_DRIVER
(mongo or postgres).`,
}

var catalogIndexCmd = &cobra.Command{
	Use:   "index",
	Short: "Create the full-text index used by drug search",
	Long: `Create the full-text index that image search queries first.

  mongo:    weighted text index on name and description
  postgres: catalog table (if missing) and a GIN index on the tsvector of name and description

The command is idempotent.`,
	Args: cobra.NoArgs,
	RunE: runCatalogIndex,
}

var catalogImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import drugs from a Google Sheet",
	Long: `Read drug rows from a Google Sheet and insert them into the catalog.

The first row of the worksheet must be a header. Recognized columns are
id, name, generic name, description, manufacturer, category, price, stock,
requires prescription and active. Only "name" is required.

Required environment variables:
  GOOGLE_APPLICATION_CREDENTIALS - Path to service account JSON file, OR
  GOOGLE_CREDENTIALS - Inline JSON credentials string`,
	Example: `  # Import the "Drugs" worksheet of GOOGLE_SHEET_URL
  pillgenious catalog import

  # Preview another worksheet without writing
  pillgenious catalog import --sheet-url https://docs.google.com/spreadsheets/d/abc123/edit --worksheet Stock --dry-run

  # Record the outcome of every row in an "Import Log" sheet
  pillgenious catalog import --log-sheet "Import Log"`,
	Args: cobra.NoArgs,
	RunE: runCatalogImport,
}

func init() {
	rootCmd.AddCommand(catalogCmd)
	catalogCmd.AddCommand(catalogIndexCmd)
	catalogCmd.AddCommand(catalogImportCmd)

	catalogIndexCmd.Flags().Int("timeout", 120, "Timeout in seconds")

	catalogImportCmd.Flags().String("sheet-url", "", "Google Sheets URL (default: GOOGLE_SHEET_URL)")
	catalogImportCmd.Flags().String("worksheet", "", "Worksheet to read (default: GOOGLE_SHEET_WORKSHEET)")
	catalogImportCmd.Flags().Bool("dry-run", false, "Parse and report rows without writing to the catalog")
	catalogImportCmd.Flags().String("log-sheet", "", "Append an import log to this sheet of the same spreadsheet")
	catalogImportCmd.Flags().Int("timeout", 300, "Timeout in seconds")
}

func runCatalogIndex(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("catalog")

	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}

	ctx, cancel := createContextWithTimeout(time.Duration(timeoutSecs)*time.Second, log)
	defer cancel()

	cat, err := openCatalog(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeCatalog(cat)

	indexer, ok := cat.(catalog.Indexer)
	if !ok {
		return fmt.Errorf("catalog driver %s does not support index creation", cat.Name())
	}
	if err := indexer.EnsureTextIndex(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to create text index")
		return fmt.Errorf("failed to create text index: %w", err)
	}

	fmt.Printf("Text index ready (%s)\n", cat.Name())
	return nil
}

func runCatalogImport(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("catalog")

	sheetURL, _ := cmd.Flags().GetString("sheet-url")
	worksheet, _ := cmd.Flags().GetString("worksheet")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	logSheet, _ := cmd.Flags().GetString("log-sheet")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}
	if sheetURL == "" {
		sheetURL = cfg.GoogleSheetURL
	}
	if worksheet == "" {
		worksheet = cfg.GoogleSheetWorksheet
	}
	if sheetURL == "" {
		return fmt.Errorf("no spreadsheet given: use --sheet-url or set GOOGLE_SHEET_URL")
	}

	ctx, cancel := createContextWithTimeout(time.Duration(timeoutSecs)*time.Second, log)
	defer cancel()

	sheetsService, err := sheets.NewSheetsService(ctx, sheetURL)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create Google Sheets service")
		return fmt.Errorf("failed to create Google Sheets service: %w", err)
	}

	drugs, rowErrs, err := sheetsService.ReadDrugs(ctx, worksheet)
	if err != nil {
		return fmt.Errorf("failed to read drugs from worksheet %q: %w", worksheet, err)
	}
	for _, rowErr := range rowErrs {
		log.Warn().Int("row", rowErr.Row).Err(rowErr.Err).Msg("Skipping row")
	}

	status := sheets.StatusDryRun
	inserted := 0
	if !dryRun {
		cat, err := openCatalog(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer closeCatalog(cat)

		importer, ok := cat.(catalog.Importer)
		if !ok {
			return fmt.Errorf("catalog driver %s does not support import", cat.Name())
		}
		inserted, err = importer.InsertDrugs(ctx, drugs)
		if err != nil {
			log.Error().Err(err).Int("inserted", inserted).Msg("Catalog import failed")
			return fmt.Errorf("catalog import failed after %d rows: %w", inserted, err)
		}
		status = sheets.StatusImported
	}

	log.Info().
		Int("rows", len(drugs)).
		Int("inserted", inserted).
		Int("skipped", len(rowErrs)).
		Bool("dry_run", dryRun).
		Msg("Catalog import finished")

	if logSheet != "" {
		entries := importLogEntries(len(drugs), rowErrs, status)
		if err := sheetsService.AppendImportLog(ctx, logSheet, entries); err != nil {
			log.Warn().Err(err).Str("sheet", logSheet).Msg("Failed to write import log")
		}
	}

	if dryRun {
		fmt.Printf("Dry run: %d rows valid, %d skipped\n", len(drugs), len(rowErrs))
		return nil
	}
	fmt.Printf("Imported %d of %d rows, %d skipped\n", inserted, len(drugs), len(rowErrs))
	return nil
}

func importLogEntries(valid int, rowErrs []sheets.RowError, status string) []sheets.ImportLogEntry {
	entries := make([]sheets.ImportLogEntry, 0, len(rowErrs)+1)
	entries = append(entries, sheets.ImportLogEntry{
		Name:   "batch",
		Status: status,
		Detail: fmt.Sprintf("%d valid rows", valid),
	})
	for _, rowErr := range rowErrs {
		entries = append(entries, sheets.ImportLogEntry{
			Row:    rowErr.Row,
			Status: sheets.StatusSkipped,
			Detail: rowErr.Err.Error(),
		})
	}
	return entries
}

func closeCatalog(cat catalog.Catalog) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := cat.Close(ctx); err != nil {
		logger.WithComponent("catalog").Warn().Err(err).Msg("Failed to close catalog")
	}
}
