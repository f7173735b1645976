package cmd

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pillgenious/internal/logger"
	"pillgenious/internal/sheets"
	"pillgenious/pkg/models"
)

func TestValidateImageFile(t *testing.T) {
	dir := t.TempDir()
	log := logger.Discard()

	if _, err := validateImageFile(filepath.Join(dir, "missing.jpg"), log); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("missing file error = %v", err)
	}
	if _, err := validateImageFile(dir, log); err == nil || !strings.Contains(err.Error(), "not a regular file") {
		t.Errorf("directory error = %v", err)
	}

	empty := filepath.Join(dir, "empty.png")
	if err := os.WriteFile(empty, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := validateImageFile(empty, log); err == nil || !strings.Contains(err.Error(), "empty") {
		t.Errorf("empty file error = %v", err)
	}

	label := filepath.Join(dir, "label.png")
	if err := os.WriteFile(label, []byte("\x89PNG"), 0o600); err != nil {
		t.Fatal(err)
	}
	info, err := validateImageFile(label, log)
	if err != nil || info.Size() != 4 {
		t.Errorf("validateImageFile() = %v, %v", info, err)
	}
}

func TestFormatScan(t *testing.T) {
	out := formatScan(ScanOutput{
		FileName:           "box.jpg",
		RawText:            "PARACETAMOL 500mg\n",
		Keywords:           []string{"Paracetamol", "Tab"},
		Drugs:              []models.Drug{{Name: "Paracetamol 500mg", Manufacturer: "GSK", Price: 3.5}, {Name: "Co-codamol", RequiresPrescription: true}},
		ProcessingDuration: "1.2s",
	}, true)

	for _, want := range []string{
		"=== Scan Results for box.jpg ===",
		"Paracetamol, Tab",
		"=== Matching Drugs (2) ===",
		" 1. Paracetamol 500mg (GSK) - 3.50",
		" 2. Co-codamol [Rx]",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	keywordsOnly := formatScan(ScanOutput{FileName: "box.jpg", RawText: "Ibuprofen", Keywords: []string{"Ibuprofen"}}, false)
	if strings.Contains(keywordsOnly, "Matching Drugs") {
		t.Error("drug section should be omitted without a search")
	}

	blank := formatScan(ScanOutput{FileName: "blank.jpg"}, true)
	if !strings.Contains(blank, "No readable text found in image") {
		t.Errorf("blank output = %s", blank)
	}
}

func TestImportLogEntries(t *testing.T) {
	entries := importLogEntries(3, []sheets.RowError{{Row: 5, Err: errors.New("name is empty")}}, sheets.StatusImported)

	if len(entries) != 2 {
		t.Fatalf("entries = %+v", entries)
	}
	if entries[0].Status != sheets.StatusImported || entries[0].Detail != "3 valid rows" {
		t.Errorf("summary entry = %+v", entries[0])
	}
	if entries[1].Row != 5 || entries[1].Status != sheets.StatusSkipped || entries[1].Detail != "name is empty" {
		t.Errorf("row entry = %+v", entries[1])
	}
}
