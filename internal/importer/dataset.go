package importer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/xwines/xwines/internal/storage"
)

// Record is one row of the flat X-Wines dataset. Parquet files use the same
// column names with every column stored as a string.
type Record struct {
	WineID     string `parquet:"WineID"`
	WineName   string `parquet:"WineName"`
	Type       string `parquet:"Type"`
	Elaborate  string `parquet:"Elaborate"`
	Grapes     string `parquet:"Grapes"`
	Harmonize  string `parquet:"Harmonize"`
	ABV        string `parquet:"ABV"`
	Body       string `parquet:"Body"`
	Acidity    string `parquet:"Acidity"`
	Code       string `parquet:"Code"`
	Country    string `parquet:"Country"`
	RegionID   string `parquet:"RegionID"`
	RegionName string `parquet:"RegionName"`
	WineryID   string `parquet:"WineryID"`
	WineryName string `parquet:"WineryName"`
	Website    string `parquet:"Website"`
	Vintages   string `parquet:"Vintages"`
}

var datasetColumns = []string{
	"WineID", "WineName", "Type", "Elaborate", "Grapes", "Harmonize", "ABV", "Body", "Acidity",
	"Code", "Country", "RegionID", "RegionName", "WineryID", "WineryName", "Website", "Vintages",
}

func (r *Record) fields() []*string {
	return []*string{
		&r.WineID, &r.WineName, &r.Type, &r.Elaborate, &r.Grapes, &r.Harmonize, &r.ABV, &r.Body, &r.Acidity,
		&r.Code, &r.Country, &r.RegionID, &r.RegionName, &r.WineryID, &r.WineryName, &r.Website, &r.Vintages,
	}
}

type Format string

const (
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
)

// DetectFormat honours an explicit format and otherwise goes by extension.
func DetectFormat(explicit, name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(explicit)) {
	case "csv":
		return FormatCSV, nil
	case "parquet":
		return FormatParquet, nil
	case "":
	default:
		return "", fmt.Errorf("unsupported import format %q", explicit)
	}
	return formatForContentType(storage.ContentTypeFor(name)), nil
}

func formatForContentType(contentType string) Format {
	if contentType == storage.ContentTypeParquet {
		return FormatParquet
	}
	return FormatCSV
}

func decode(format Format, r io.Reader) ([]Record, error) {
	switch format {
	case FormatParquet:
		return decodeParquet(r)
	default:
		return decodeCSV(r)
	}
}

func decodeCSV(r io.Reader) ([]Record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	positions := make([]int, len(datasetColumns))
	var missing []string
	for i, column := range datasetColumns {
		pos, ok := index[column]
		if !ok {
			missing = append(missing, column)
		}
		positions[i] = pos
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("csv header is missing columns: %s", strings.Join(missing, ", "))
	}

	var records []Record
	for {
		line, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row %d: %w", len(records)+2, err)
		}
		var record Record
		for i, field := range record.fields() {
			if positions[i] < len(line) {
				*field = strings.TrimSpace(line[positions[i]])
			}
		}
		records = append(records, record)
	}
	return records, nil
}

func decodeParquet(r io.Reader) ([]Record, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read parquet: %w", err)
	}
	reader := parquet.NewGenericReader[Record](bytes.NewReader(raw))
	defer func() { _ = reader.Close() }()

	records := make([]Record, reader.NumRows())
	n, err := reader.Read(records)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read parquet rows: %w", err)
	}
	records = records[:n]
	for i := range records {
		for _, field := range records[i].fields() {
			*field = strings.TrimSpace(*field)
		}
	}
	return records, nil
}

type Country struct {
	Code string
	Name string
}

type Region struct {
	ID   int64
	Name string
	Code string
}

type Winery struct {
	ID      int64
	Name    string
	Website *string
}

type Wine struct {
	ID        int64
	Name      string
	Type      *string
	Elaborate *string
	Body      *string
	Acidity   *string
	ABV       *float64
	WineryID  *int64
	RegionID  *int64
}

// WineValue is one exploded list item of a wine.
type WineValue struct {
	WineID int64
	Value  any
}

// Dataset is the flat file split into the seven relational tables.
type Dataset struct {
	Countries []Country
	Regions   []Region
	Wineries  []Winery
	Wines     []Wine
	Grapes    []WineValue
	Harmonize []WineValue
	Vintages  []WineValue
}

// Normalize splits records into tables. The first occurrence of a key wins;
// countries and regions whose first occurrence is incomplete are dropped, and
// rows without a parseable identifier contribute nothing to that table.
func Normalize(records []Record) Dataset {
	var ds Dataset
	seenCountry := map[string]bool{}
	seenRegion := map[int64]bool{}
	seenWinery := map[int64]bool{}
	seenWine := map[int64]bool{}
	seenGrape := map[string]bool{}
	seenPairing := map[string]bool{}
	seenVintage := map[string]bool{}

	for _, rec := range records {
		if !seenCountry[rec.Code] {
			seenCountry[rec.Code] = true
			if rec.Code != "" && rec.Country != "" {
				ds.Countries = append(ds.Countries, Country{Code: rec.Code, Name: rec.Country})
			}
		}

		if id, ok := parseID(rec.RegionID); ok && !seenRegion[id] {
			seenRegion[id] = true
			if rec.RegionName != "" && rec.Code != "" {
				ds.Regions = append(ds.Regions, Region{ID: id, Name: rec.RegionName, Code: rec.Code})
			}
		}

		if id, ok := parseID(rec.WineryID); ok && !seenWinery[id] {
			seenWinery[id] = true
			ds.Wineries = append(ds.Wineries, Winery{ID: id, Name: rec.WineryName, Website: optional(rec.Website)})
		}

		wineID, ok := parseID(rec.WineID)
		if !ok {
			continue
		}
		if !seenWine[wineID] {
			seenWine[wineID] = true
			wine := Wine{
				ID:        wineID,
				Name:      rec.WineName,
				Type:      optional(rec.Type),
				Elaborate: optional(rec.Elaborate),
				Body:      optional(rec.Body),
				Acidity:   optional(rec.Acidity),
			}
			if abv, err := strconv.ParseFloat(rec.ABV, 64); err == nil {
				wine.ABV = &abv
			}
			if id, ok := parseID(rec.WineryID); ok {
				wine.WineryID = &id
			}
			if id, ok := parseID(rec.RegionID); ok {
				wine.RegionID = &id
			}
			ds.Wines = append(ds.Wines, wine)
		}

		for _, grape := range parseList(rec.Grapes) {
			if key := rec.WineID + "\x00" + grape; grape != "" && !seenGrape[key] {
				seenGrape[key] = true
				ds.Grapes = append(ds.Grapes, WineValue{WineID: wineID, Value: grape})
			}
		}
		for _, pairing := range parseList(rec.Harmonize) {
			if key := rec.WineID + "\x00" + pairing; pairing != "" && !seenPairing[key] {
				seenPairing[key] = true
				ds.Harmonize = append(ds.Harmonize, WineValue{WineID: wineID, Value: pairing})
			}
		}
		for _, item := range parseList(rec.Vintages) {
			year, err := strconv.Atoi(item)
			if err != nil {
				continue
			}
			if key := rec.WineID + "\x00" + item; !seenVintage[key] {
				seenVintage[key] = true
				ds.Vintages = append(ds.Vintages, WineValue{WineID: wineID, Value: year})
			}
		}
	}
	return ds
}

// parseList reads a bracketed list literal such as ['Beef', "Lamb's liver", 2019].
// Anything that is not a well-formed list yields no items.
func parseList(raw string) []string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return nil
	}
	s = s[1 : len(s)-1]
	var items []string
	for i := 0; ; {
		for i < len(s) && s[i] == ' ' {
			i++
		}
		if i >= len(s) {
			return items
		}
		var item string
		if quote := s[i]; quote == '\'' || quote == '"' {
			var b strings.Builder
			i++
			closed := false
			for i < len(s) {
				c := s[i]
				if c == '\\' && i+1 < len(s) {
					b.WriteByte(s[i+1])
					i += 2
					continue
				}
				i++
				if c == quote {
					closed = true
					break
				}
				b.WriteByte(c)
			}
			if !closed {
				return nil
			}
			item = b.String()
		} else {
			end := strings.IndexByte(s[i:], ',')
			if end < 0 {
				end = len(s) - i
			}
			item = strings.TrimSpace(s[i : i+end])
			i += end
			if item == "" {
				return nil
			}
		}
		items = append(items, item)

		for i < len(s) && s[i] == ' ' {
			i++
		}
		if i >= len(s) {
			return items
		}
		if s[i] != ',' {
			return nil
		}
		i++
	}
}

func parseID(raw string) (int64, bool) {
	if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return id, true
	}
	// pandas writes integer columns with missing values as floats ("100.0").
	if f, err := strconv.ParseFloat(raw, 64); err == nil && f == float64(int64(f)) {
		return int64(f), true
	}
	return 0, false
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
