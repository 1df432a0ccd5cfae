package refdata

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/medbillai/medbill/constants"
)

// LoadRates reads a tariff file, dispatching on extension (.xlsx or .csv).
func LoadRates(path string, tag constants.RateTag) ([]Rate, error) {
	rows, err := readTable(path)
	if err != nil {
		return nil, err
	}
	return parseRates(rows, tag)
}

// LoadHospitals reads an empanelment registry file (.xlsx or .csv).
func LoadHospitals(path string) ([]Hospital, error) {
	rows, err := readTable(path)
	if err != nil {
		return nil, err
	}
	return parseHospitals(rows)
}

// LoadStatsFromClaims reads a historical claims CSV (procedure, amount per
// row) and computes per-procedure mean and standard deviation.
func LoadStatsFromClaims(path string) ([]ProcedureStats, error) {
	rows, err := readTable(path)
	if err != nil {
		return nil, err
	}
	return computeStats(rows)
}

func readTable(path string) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return readXLSX(path)
	case ".csv":
		return readCSV(path)
	default:
		return nil, fmt.Errorf("unsupported reference file type: %s", filepath.Ext(path))
	}
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("xlsx has no sheets: %s", path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	var rows [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

// headerIndex locates the header row and maps wanted labels to column
// indices. Tariff workbooks carry title rows above the real header.
func headerIndex(rows [][]string, wanted map[string][]string) (headerRow int, cols map[string]int) {
	for ri, row := range rows {
		cols = map[string]int{}
		for ci, cell := range row {
			norm := normalize(cell)
			for key, aliases := range wanted {
				if _, ok := cols[key]; ok {
					continue
				}
				for _, alias := range aliases {
					if strings.Contains(norm, alias) {
						cols[key] = ci
						break
					}
				}
			}
		}
		// a usable header names at least the primary column
		if _, ok := cols["name"]; ok && len(cols) >= 2 {
			return ri, cols
		}
	}
	return -1, nil
}

func parseRates(rows [][]string, tag constants.RateTag) ([]Rate, error) {
	hr, cols := headerIndex(rows, map[string][]string{
		"name":     {"procedure", "treatment", "investigation", "name of"},
		"category": {"category", "speciality", "specialty"},
		"nonnabh":  {"non nabh", "nonnabh", "non accredited"},
		"nabh":     {"nabh"},
		"rate":     {"rate", "amount", "charges"},
	})
	if hr < 0 {
		return nil, fmt.Errorf("no recognizable header row in rate file")
	}

	var out []Rate
	for _, row := range rows[hr+1:] {
		name := cellAt(row, cols["name"])
		if name == "" {
			continue
		}
		r := Rate{ProcedureName: name, SchemeTag: tag}
		if ci, ok := cols["category"]; ok {
			r.Category = cellAt(row, ci)
		}
		if ci, ok := cols["nonnabh"]; ok {
			r.NonNABHRate = parseCellAmount(cellAt(row, ci))
		}
		if ci, ok := cols["nabh"]; ok {
			r.NABHRate = parseCellAmount(cellAt(row, ci))
		}
		// single-rate cards apply the same ceiling to both tiers
		if r.NonNABHRate == 0 && r.NABHRate == 0 {
			if ci, ok := cols["rate"]; ok {
				v := parseCellAmount(cellAt(row, ci))
				r.NonNABHRate, r.NABHRate = v, v
			}
		}
		if r.NonNABHRate == 0 && r.NABHRate == 0 {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func parseHospitals(rows [][]string) ([]Hospital, error) {
	hr, cols := headerIndex(rows, map[string][]string{
		"name":       {"hospital", "name of"},
		"city":       {"city", "place", "location"},
		"state":      {"state"},
		"nabh":       {"nabh"},
		"empanelled": {"empanelled for", "facilities", "speciality", "specialty"},
		"date":       {"date", "valid"},
	})
	if hr < 0 {
		return nil, fmt.Errorf("no recognizable header row in hospital file")
	}

	var out []Hospital
	for _, row := range rows[hr+1:] {
		name := cellAt(row, cols["name"])
		if name == "" {
			continue
		}
		h := Hospital{Name: name}
		if ci, ok := cols["city"]; ok {
			h.City = cellAt(row, ci)
		}
		if ci, ok := cols["state"]; ok {
			h.State = cellAt(row, ci)
		}
		if ci, ok := cols["nabh"]; ok {
			v := normalize(cellAt(row, ci))
			h.NABHStatus = v == "yes" || v == "y" || v == "nabh" || v == "accredited" || v == "true" || v == "1"
		}
		if ci, ok := cols["empanelled"]; ok {
			h.EmpanelledFor = cellAt(row, ci)
		}
		if ci, ok := cols["date"]; ok {
			h.EmpanelmentDate = cellAt(row, ci)
		}
		out = append(out, h)
	}
	return out, nil
}

func computeStats(rows [][]string) ([]ProcedureStats, error) {
	hr, cols := headerIndex(rows, map[string][]string{
		"name":   {"procedure", "treatment"},
		"amount": {"amount", "total", "claimed"},
	})
	if hr < 0 {
		return nil, fmt.Errorf("no recognizable header row in claims file")
	}
	amountCol, ok := cols["amount"]
	if !ok {
		return nil, fmt.Errorf("claims file has no amount column")
	}

	samples := map[string][]float64{}
	display := map[string]string{}
	for _, row := range rows[hr+1:] {
		name := cellAt(row, cols["name"])
		if name == "" {
			continue
		}
		amount := parseCellAmount(cellAt(row, amountCol))
		if amount <= 0 {
			continue
		}
		key := normalize(name)
		samples[key] = append(samples[key], amount)
		if _, ok := display[key]; !ok {
			display[key] = name
		}
	}

	var out []ProcedureStats
	for key, vals := range samples {
		mean, stdev := meanStdev(vals)
		out = append(out, ProcedureStats{
			Procedure:   display[key],
			MeanAmount:  mean,
			StdevAmount: stdev,
			SampleCount: len(vals),
		})
	}
	return out, nil
}

func meanStdev(vals []float64) (mean, stdev float64) {
	if len(vals) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	mean = sum / float64(len(vals))
	if len(vals) < 2 {
		return mean, 0
	}
	var sq float64
	for _, v := range vals {
		d := v - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(vals)-1))
}

func cellAt(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func parseCellAmount(s string) float64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	s = strings.TrimPrefix(s, "₹")
	if s == "" || s == "-" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}
