package memory

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"milex/internal/core"
)

const (
	militaryDataFile = "all_military_data.json"
	metadataFile     = "country_metadata.json"

	unknownContinent = "unknown"
)

type countryMetadata struct {
	ISOCode string `json:"iso_code"`
}

// NewFromFiles loads the JSON dataset from base. The main file holds one
// object per country with "Country", optional "Continent" and "Region", and
// one key per year. Null or non-numeric cells are treated as not recorded.
// Country ids follow file order starting at 1.
func NewFromFiles(base string) (*Store, error) {
	raw, err := os.ReadFile(filepath.Join(base, militaryDataFile))
	if err != nil {
		return nil, core.Unavailable(fmt.Errorf("read %s: %w", militaryDataFile, err))
	}
	meta, err := readMetadata(filepath.Join(base, metadataFile))
	if err != nil {
		return nil, core.Unavailable(err)
	}
	countries, records, err := parseMilitaryData(raw, meta)
	if err != nil {
		return nil, core.Unavailable(fmt.Errorf("parse %s: %w", militaryDataFile, err))
	}
	s, err := New(countries, records)
	if err != nil {
		return nil, core.Unavailable(err)
	}
	return s, nil
}

func readMetadata(path string) (map[string]countryMetadata, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", metadataFile, err)
	}
	var meta map[string]countryMetadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("parse %s: %w", metadataFile, err)
	}
	return meta, nil
}

func parseMilitaryData(raw []byte, meta map[string]countryMetadata) ([]core.Country, []core.ExpenditureRecord, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var rows []map[string]any
	if err := dec.Decode(&rows); err != nil {
		return nil, nil, err
	}

	countries := make([]core.Country, 0, len(rows))
	var records []core.ExpenditureRecord
	for i, row := range rows {
		name := stringField(row, "Country")
		if name == "" {
			return nil, nil, fmt.Errorf("row %d: missing Country", i)
		}
		c := core.Country{
			ID:        int64(i + 1),
			Name:      name,
			Continent: stringField(row, "Continent"),
			Region:    stringField(row, "Region"),
			ISOCode:   meta[name].ISOCode,
		}
		if c.Continent == "" {
			c.Continent = unknownContinent
		}
		countries = append(countries, c)

		yearKeys := make(map[int]string, len(row))
		years := make([]int, 0, len(row))
		for k := range row {
			if y, err := strconv.Atoi(strings.TrimSpace(k)); err == nil && y > 0 {
				yearKeys[y] = k
				years = append(years, y)
			}
		}
		sort.Ints(years)
		for _, y := range years {
			records = append(records, core.ExpenditureRecord{
				CountryID: c.ID,
				Year:      y,
				Amount:    parseCell(row[yearKeys[y]]),
			})
		}
	}
	return countries, records, nil
}

func stringField(row map[string]any, key string) string {
	s, _ := row[key].(string)
	return strings.TrimSpace(s)
}

// parseCell accepts JSON numbers and numeric strings. Anything else,
// including null and placeholders like "..." or "xxx", is absent.
func parseCell(v any) decimal.NullDecimal {
	var s string
	switch val := v.(type) {
	case json.Number:
		s = val.String()
	case string:
		s = strings.ReplaceAll(strings.TrimSpace(val), ",", "")
	default:
		return core.NoAmount()
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return core.NoAmount()
	}
	return core.NewAmount(d)
}
