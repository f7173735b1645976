package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"pillgenious/internal/drugsearch"
	"pillgenious/internal/logger"
	"pillgenious/internal/ocr"
	"pillgenious/pkg/models"
)

var scanCmd = &cobra.Command{
	Use:   "scan [image-file]",
	Short: "Find catalog drugs named on a medicine photo",
	Long: `Run the image search pipeline on a local image file.

The image is read with the configured OCR engine (OCR_ENGINE, default
tesseract). Drug-name keywords are extracted with a heuristic and, when
OPENAI_API_KEY is set, a language model. The catalog is then searched with
full-text search, falling back to literal pattern matching.

Use --no-search to stop after keyword extraction; no catalog connection is
needed in that mode.`,
	Example: `  # Search the catalog for the drugs on a box
  pillgenious scan paracetamol_box.jpg

  # Only show recognized text and keywords
  pillgenious scan prescription.png --no-search

  # JSON output written to a file
  pillgenious scan label.webp --json -o result.json`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

// ScanOutput represents the JSON output structure when --json flag is used
type ScanOutput struct {
	FileName           string        `json:"file_name"`
	FileSize           int64         `json:"file_size"`
	RawText            string        `json:"rawText"`
	Keywords           []string      `json:"keywords"`
	Drugs              []models.Drug `json:"drugs,omitempty"`
	ProcessingDuration string        `json:"processing_duration"`
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	scanCmd.Flags().Bool("json", false, "Output as JSON")
	scanCmd.Flags().Bool("no-search", false, "Extract keywords only, do not query the catalog")
	scanCmd.Flags().Int("timeout", 120, "Processing timeout in seconds")
}

func runScan(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("scan")

	outputPath, _ := cmd.Flags().GetString("output")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	noSearch, _ := cmd.Flags().GetBool("no-search")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	imagePath := args[0]

	log.Info().
		Str("file", imagePath).
		Bool("json", jsonOutput).
		Bool("no_search", noSearch).
		Int("timeout", timeoutSecs).
		Msg("Starting image scan")

	fileInfo, err := validateImageFile(imagePath, log)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}

	ctx, cancel := createContextWithTimeout(time.Duration(timeoutSecs)*time.Second, log)
	defer cancel()

	p, err := buildPipeline(ctx, cfg, !noSearch, log)
	if err != nil {
		return err
	}
	defer p.close(log)

	start := time.Now()
	output := ScanOutput{
		FileName: filepath.Base(fileInfo.Name()),
		FileSize: fileInfo.Size(),
	}

	if noSearch {
		extraction, err := p.service.ExtractKeywords(ctx, imagePath)
		if err != nil {
			return handleScanError(err, log)
		}
		output.RawText = extraction.RawText
		output.Keywords = extraction.Keywords
	} else {
		result, err := p.service.Search(ctx, imagePath)
		if err != nil {
			return handleScanError(err, log)
		}
		output.RawText = result.RawText
		output.Keywords = result.Keywords
		output.Drugs = result.Drugs
	}
	output.ProcessingDuration = time.Since(start).String()

	log.Info().
		Strs("keywords", output.Keywords).
		Int("drugs", len(output.Drugs)).
		Str("duration", output.ProcessingDuration).
		Msg("Image scan completed successfully")

	return outputScan(output, outputPath, jsonOutput, !noSearch, log)
}

// validateImageFile checks that the file exists, is a regular non-empty file
func validateImageFile(imagePath string, log zerolog.Logger) (os.FileInfo, error) {
	fileInfo, err := os.Stat(imagePath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Error().Str("file", imagePath).Msg("Image file not found")
			return nil, fmt.Errorf("image file not found: %s", imagePath)
		}
		if os.IsPermission(err) {
			log.Error().Str("file", imagePath).Msg("Permission denied accessing image file")
			return nil, fmt.Errorf("permission denied accessing image file: %s", imagePath)
		}
		return nil, fmt.Errorf("error accessing image file: %w", err)
	}

	if !fileInfo.Mode().IsRegular() {
		log.Error().Str("file", imagePath).Msg("Path is not a regular file")
		return nil, fmt.Errorf("path is not a regular file: %s", imagePath)
	}

	switch strings.ToLower(filepath.Ext(imagePath)) {
	case ".jpg", ".jpeg", ".png", ".webp", ".heic", ".heif", ".gif":
	default:
		log.Warn().Str("file", imagePath).Msg("File does not have a known image extension")
	}

	if fileInfo.Size() == 0 {
		log.Error().Str("file", imagePath).Msg("Image file is empty")
		return nil, fmt.Errorf("image file is empty: %s", imagePath)
	}

	return fileInfo, nil
}

// handleScanError provides user-friendly error messages for pipeline failures
func handleScanError(err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("Image scan failed")

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("image processing timed out. Try increasing --timeout")
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("image processing was canceled")
	case errors.Is(err, ocr.ErrUnreadableImage):
		return fmt.Errorf("the image file could not be read: %w", err)
	case errors.Is(err, ocr.ErrExtractionFailed):
		return fmt.Errorf("no text could be extracted. The file may be corrupt or in an unsupported format: %w", err)
	case errors.Is(err, drugsearch.ErrSearchFailed):
		return fmt.Errorf("catalog search failed. Check the catalog connection and run \"pillgenious catalog index\": %w", err)
	default:
		return fmt.Errorf("image scan failed: %w", err)
	}
}

// outputScan formats and outputs the scan results
func outputScan(output ScanOutput, outputPath string, jsonOutput, searched bool, log zerolog.Logger) error {
	var data []byte

	if jsonOutput {
		var err error
		data, err = json.MarshalIndent(output, "", "  ")
		if err != nil {
			log.Error().Err(err).Msg("Failed to marshal JSON output")
			return fmt.Errorf("failed to create JSON output: %w", err)
		}
	} else {
		data = []byte(formatScan(output, searched))
	}

	if outputPath != "" {
		if err := os.WriteFile(outputPath, data, 0644); err != nil {
			log.Error().
				Err(err).
				Str("output_file", outputPath).
				Msg("Failed to write output file")
			return fmt.Errorf("failed to write output file: %w", err)
		}
		log.Info().
			Str("output_file", outputPath).
			Int("bytes", len(data)).
			Msg("Scan results written to file")
		return nil
	}

	if _, err := os.Stdout.Write(data); err != nil {
		log.Error().Err(err).Msg("Failed to write to stdout")
		return fmt.Errorf("failed to write output: %w", err)
	}
	if !jsonOutput {
		fmt.Println()
	}
	return nil
}

func formatScan(output ScanOutput, searched bool) string {
	var b strings.Builder

	fmt.Fprintf(&b, "=== Scan Results for %s ===\n", output.FileName)
	fmt.Fprintf(&b, "Processing time: %s\n\n", output.ProcessingDuration)

	if output.RawText == "" {
		b.WriteString("No readable text found in image\n")
		return b.String()
	}

	b.WriteString("=== Extracted Text ===\n\n")
	b.WriteString(strings.TrimSpace(output.RawText))
	b.WriteString("\n\n=== Keywords ===\n\n")
	if len(output.Keywords) == 0 {
		b.WriteString("(none)\n")
	} else {
		b.WriteString(strings.Join(output.Keywords, ", "))
		b.WriteString("\n")
	}

	if !searched {
		return b.String()
	}

	fmt.Fprintf(&b, "\n=== Matching Drugs (%d) ===\n\n", len(output.Drugs))
	for i, drug := range output.Drugs {
		fmt.Fprintf(&b, "%2d. %s", i+1, drug.Name)
		if drug.Manufacturer != "" {
			fmt.Fprintf(&b, " (%s)", drug.Manufacturer)
		}
		if drug.Price > 0 {
			fmt.Fprintf(&b, " - %.2f", drug.Price)
		}
		if drug.RequiresPrescription {
			b.WriteString(" [Rx]")
		}
		b.WriteString("\n")
	}
	return b.String()
}
