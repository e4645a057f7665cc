package export

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/campleads/internal/model"
)

// columnAliases maps accepted header spellings to LeadInput fields.
var columnAliases = map[string]string{
	"organization_name": "organization_name",
	"organization":      "organization_name",
	"name":              "organization_name",
	"category":          "category",
	"city":              "city",
	"phone_raw":         "phone_raw",
	"phone":             "phone_raw",
	"email":             "email",
	"website_url":       "website_url",
	"website":           "website_url",
	"social_url":        "social_url",
	"ai_raw_summary":    "ai_raw_summary",
	"notes":             "ai_raw_summary",
}

// ReadLeadInputs reads manually collected leads from an .xlsx or .csv file.
// The first row is a header naming the columns; unknown columns are ignored
// and rows with every known column empty are skipped.
func ReadLeadInputs(ctx context.Context, path string) ([]model.LeadInput, error) {
	var (
		rows [][]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		rows, err = readXLSX(path)
	case ".csv":
		rows, err = readCSV(ctx, path)
	default:
		return nil, eris.Errorf("export: unsupported file type %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	fields := make([]string, len(rows[0]))
	known := 0
	for i, h := range rows[0] {
		fields[i] = columnAliases[strings.ToLower(strings.TrimSpace(h))]
		if fields[i] != "" {
			known++
		}
	}
	if known == 0 {
		return nil, eris.Errorf("export: %s has no recognised header columns", filepath.Base(path))
	}

	out := make([]model.LeadInput, 0, len(rows)-1)
	for _, row := range rows[1:] {
		in, ok := toLeadInput(fields, row)
		if ok {
			out = append(out, in)
		}
	}
	return out, nil
}

func toLeadInput(fields, row []string) (model.LeadInput, bool) {
	var in model.LeadInput
	found := false
	for i, v := range row {
		if i >= len(fields) || fields[i] == "" {
			continue
		}
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		found = true
		switch fields[i] {
		case "organization_name":
			in.OrganizationName = v
		case "category":
			in.Category = v
		case "city":
			in.City = v
		case "phone_raw":
			in.PhoneRaw = v
		case "email":
			in.Email = v
		case "website_url":
			in.WebsiteURL = v
		case "social_url":
			in.SocialURL = v
		case "ai_raw_summary":
			in.AIRawSummary = v
		}
	}
	return in, found
}

func readXLSX(path string) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "export: open xlsx")
	}
	if len(f.Sheets) == 0 {
		return nil, nil
	}

	sheet := f.Sheets[0]
	if s, ok := f.Sheet[SheetName]; ok {
		sheet = s
	}

	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

func readCSV(ctx context.Context, path string) ([][]string, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "export: open csv")
	}
	defer fh.Close() //nolint:errcheck

	r := csv.NewReader(fh)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var rows [][]string
	for {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "export: read csv")
		}
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "export: read csv")
		}
		rows = append(rows, rec)
	}
	return rows, nil
}
