// Package export writes raw leads to review spreadsheets and reads manually
// collected leads back from XLSX or CSV files.
package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/campleads/internal/model"
)

// SheetName is the worksheet WriteLeadsXLSX creates.
const SheetName = "leads"

// Header is the column order of exported lead rows.
var Header = []string{
	"id",
	"organization_name",
	"category",
	"city",
	"phone_raw",
	"phone_normalized",
	"email",
	"website_url",
	"social_url",
	"source_method",
	"status",
	"verified",
	"group",
	"created_at",
}

// WriteLeadsXLSX writes one sheet with a header row and one row per lead.
func WriteLeadsXLSX(w io.Writer, leads []model.RawLead) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(SheetName)
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	addRow(sheet, Header)
	for _, l := range leads {
		row := sheet.AddRow()
		row.AddCell().SetInt64(l.ID)
		for _, v := range leadRow(l)[1:] {
			row.AddCell().SetString(v)
		}
	}

	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "export: write xlsx")
	}
	return nil
}

// WriteLeadsCSV writes the same columns as WriteLeadsXLSX as CSV.
func WriteLeadsCSV(w io.Writer, leads []model.RawLead) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}
	for _, l := range leads {
		if err := cw.Write(leadRow(l)); err != nil {
			return eris.Wrapf(err, "export: write csv row %d", l.ID)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush csv")
}

func addRow(sheet *xlsx.Sheet, values []string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

func leadRow(l model.RawLead) []string {
	created := ""
	if !l.CreatedAt.IsZero() {
		created = l.CreatedAt.UTC().Format(time.RFC3339)
	}
	return []string{
		strconv.FormatInt(l.ID, 10),
		l.OrganizationName,
		l.Category,
		l.City,
		l.PhoneRaw,
		l.PhoneNormalized,
		l.Email,
		l.WebsiteURL,
		l.SocialURL,
		string(l.SourceMethod),
		string(l.Status),
		strconv.FormatBool(l.Verified),
		l.Group,
		created,
	}
}
