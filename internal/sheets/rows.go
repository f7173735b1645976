package sheets

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"pillgenious/pkg/models"
)

// ErrMissingNameColumn is returned when the header row has no name column.
var ErrMissingNameColumn = errors.New("header row has no \"name\" column")

// RowError describes a spreadsheet row that could not be imported.
// Row is 1-based, as shown in the Sheets UI.
type RowError struct {
	Row int
	Err error
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

// Column identifiers recognized in the header row.
const (
	colID = iota
	colName
	colGenericName
	colDescription
	colManufacturer
	colCategory
	colPrice
	colStock
	colPrescription
	colActive
)

// headerAliases maps normalized header labels to columns.
var headerAliases = map[string]int{
	"id":                    colID,
	"name":                  colName,
	"drug":                  colName,
	"drug name":             colName,
	"generic":               colGenericName,
	"generic name":          colGenericName,
	"description":           colDescription,
	"manufacturer":          colManufacturer,
	"category":              colCategory,
	"price":                 colPrice,
	"stock":                 colStock,
	"quantity":              colStock,
	"requires prescription": colPrescription,
	"prescription":          colPrescription,
	"rx":                    colPrescription,
	"active":                colActive,
	"is active":             colActive,
}

// ParseDrugRows converts sheet values into drugs. values[0] is the header row.
// Blank rows are skipped silently; rows with a missing name or malformed
// numbers become RowErrors.
func ParseDrugRows(values [][]interface{}) ([]models.Drug, []RowError, error) {
	drugs := []models.Drug{}
	if len(values) == 0 {
		return drugs, nil, nil
	}

	columns := mapHeader(values[0])
	if _, ok := columns[colName]; !ok {
		return nil, nil, ErrMissingNameColumn
	}

	var rowErrs []RowError
	for i, row := range values[1:] {
		if isBlankRow(row) {
			continue
		}
		drug, err := parseDrugRow(row, columns)
		if err != nil {
			rowErrs = append(rowErrs, RowError{Row: i + 2, Err: err})
			continue
		}
		drugs = append(drugs, drug)
	}
	return drugs, rowErrs, nil
}

func mapHeader(header []interface{}) map[int]int {
	columns := make(map[int]int)
	for idx, cell := range header {
		label := strings.ToLower(strings.Join(strings.Fields(strings.ReplaceAll(cellString(cell), "_", " ")), " "))
		if col, ok := headerAliases[label]; ok {
			if _, seen := columns[col]; !seen {
				columns[col] = idx
			}
		}
	}
	return columns
}

func parseDrugRow(row []interface{}, columns map[int]int) (models.Drug, error) {
	get := func(col int) string {
		idx, ok := columns[col]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(cellString(row[idx]))
	}

	drug := models.Drug{
		ID:           get(colID),
		Name:         get(colName),
		GenericName:  get(colGenericName),
		Description:  get(colDescription),
		Manufacturer: get(colManufacturer),
		Category:     get(colCategory),
		IsActive:     true,
	}
	if drug.Name == "" {
		return models.Drug{}, errors.New("name is empty")
	}

	var err error
	if drug.Price, err = parsePrice(get(colPrice)); err != nil {
		return models.Drug{}, fmt.Errorf("price: %w", err)
	}
	if drug.Stock, err = parseStock(get(colStock)); err != nil {
		return models.Drug{}, fmt.Errorf("stock: %w", err)
	}
	if drug.RequiresPrescription, err = parseFlag(get(colPrescription), false); err != nil {
		return models.Drug{}, fmt.Errorf("requires prescription: %w", err)
	}
	if drug.IsActive, err = parseFlag(get(colActive), true); err != nil {
		return models.Drug{}, fmt.Errorf("active: %w", err)
	}
	return drug, nil
}

func cellString(cell interface{}) string {
	switch v := cell.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func isBlankRow(row []interface{}) bool {
	for _, cell := range row {
		if strings.TrimSpace(cellString(cell)) != "" {
			return false
		}
	}
	return true
}

// parsePrice accepts "12.50", "12,50" and currency-prefixed values like "$3.99".
func parsePrice(s string) (float64, error) {
	s = strings.TrimLeft(s, "$€£ ")
	if s == "" {
		return 0, nil
	}
	if strings.Contains(s, ",") && !strings.Contains(s, ".") {
		s = strings.ReplaceAll(s, ",", ".")
	} else {
		s = strings.ReplaceAll(s, ",", "")
	}
	price, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if price < 0 {
		return 0, fmt.Errorf("negative value %v", price)
	}
	return price, nil
}

func parseStock(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

func parseFlag(s string, defaultValue bool) (bool, error) {
	switch strings.ToLower(s) {
	case "":
		return defaultValue, nil
	case "yes", "y", "true", "1", "x":
		return true, nil
	case "no", "n", "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("unrecognized value %q", s)
	}
}
