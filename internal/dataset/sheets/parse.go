package sheets

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"milex/internal/core"
)

// parseSheet turns the values matrix into rows. The header must name ID,
// Country and Continent; Region, ISO and Population are optional and every
// header that is a four-digit year is a data column. Ids are read from the
// ID column so they survive rows being inserted or reordered.
func parseSheet(values [][]interface{}) ([]core.Country, []core.ExpenditureRecord, error) {
	if len(values) == 0 {
		return nil, nil, nil
	}
	headers := toStrings(values[0])
	colCountry := indexOf(headers, "Country")
	colContinent := indexOf(headers, "Continent")
	colID := indexOf(headers, "ID")
	if colCountry == -1 || colContinent == -1 || colID == -1 {
		missing := make([]string, 0, 3)
		if colCountry == -1 {
			missing = append(missing, "Country")
		}
		if colContinent == -1 {
			missing = append(missing, "Continent")
		}
		if colID == -1 {
			missing = append(missing, "ID")
		}
		return nil, nil, fmt.Errorf("unexpected header: missing %s; got headers=%v", strings.Join(missing, ","), headers)
	}
	colRegion := indexOf(headers, "Region")
	colISO := indexOf(headers, "ISO")
	colPopulation := indexOf(headers, "Population")

	yearCols := map[int]int{}
	for i, h := range headers {
		if len(h) != 4 {
			continue
		}
		if y, err := strconv.Atoi(h); err == nil && y > 0 {
			yearCols[y] = i
		}
	}
	years := make([]int, 0, len(yearCols))
	for y := range yearCols {
		years = append(years, y)
	}
	sort.Ints(years)

	var (
		countries []core.Country
		records   []core.ExpenditureRecord
	)
	for i := 1; i < len(values); i++ {
		row := toStrings(values[i])
		name := safeGet(row, colCountry)
		if name == "" {
			continue
		}
		id, err := strconv.ParseInt(safeGet(row, colID), 10, 64)
		if err != nil || id <= 0 {
			return nil, nil, fmt.Errorf("row %d (%s): invalid ID %q", i+1, name, safeGet(row, colID))
		}
		c := core.Country{
			ID:        id,
			Name:      name,
			Continent: safeGet(row, colContinent),
			Region:    safeGet(row, colRegion),
			ISOCode:   strings.ToUpper(safeGet(row, colISO)),
		}
		if c.Continent == "" {
			c.Continent = "unknown"
		}
		if p, ok := parseAmount(safeGet(row, colPopulation)); ok {
			c.Population = p.IntPart()
		}
		countries = append(countries, c)

		for _, y := range years {
			if amount, ok := parseAmount(safeGet(row, yearCols[y])); ok {
				records = append(records, core.ExpenditureRecord{CountryID: c.ID, Year: y, Amount: core.NewAmount(amount)})
			}
		}
	}
	return countries, records, nil
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func indexOf(arr []string, target string) int {
	for i, v := range arr {
		if strings.EqualFold(strings.TrimSpace(v), target) {
			return i
		}
	}
	return -1
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}

// parseAmount reads a cell. Blank, placeholder and negative cells are
// absent; thousands separators are dropped.
func parseAmount(s string) (decimal.Decimal, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.Decimal{}, false
	}
	return d, true
}
