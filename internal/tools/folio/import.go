// Package folio backfills member folios from the legacy registry export.
package folio

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ctm-colima/credential-service/internal/repository"
)

const (
	folioColumn   = 0
	licenseColumn = 9
	folioWidth    = 4
)

// Report counts the outcome of every data row.
type Report struct {
	Rows     int
	Updated  int
	Skipped  int
	Errors   int
	Problems []string
}

func (r Report) Lines() []string {
	return []string{
		fmt.Sprintf("rows=%d", r.Rows),
		fmt.Sprintf("updated=%d", r.Updated),
		fmt.Sprintf("skipped=%d (missing data, unknown license, folio already set or taken)", r.Skipped),
		fmt.Sprintf("errors=%d", r.Errors),
	}
}

// Import reads the CSV (header row first) and assigns the zero-padded folio in column 1 to the
// member whose license number matches column 10. Members that already carry a folio are skipped.
func Import(ctx context.Context, members repository.MemberRepository, in io.Reader) (Report, error) {
	var rep Report
	r := csv.NewReader(in)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	if _, err := r.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return rep, nil
		}
		return rep, fmt.Errorf("read header: %w", err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			return rep, nil
		}
		if err != nil {
			var pe *csv.ParseError
			if !errors.As(err, &pe) {
				return rep, fmt.Errorf("read csv: %w", err)
			}
			rep.Rows++
			rep.fail(pe.Line, pe.Err)
			continue
		}
		line, _ := r.FieldPos(0)
		if blank(record) {
			continue
		}
		rep.Rows++
		if err := rep.apply(ctx, members, record); err != nil {
			rep.fail(line, err)
		}
	}
}

func (rep *Report) apply(ctx context.Context, members repository.MemberRepository, record []string) error {
	if len(record) <= licenseColumn {
		rep.Skipped++
		return nil
	}
	folio := strings.TrimSpace(record[folioColumn])
	license := strings.TrimSpace(record[licenseColumn])
	if folio == "" || license == "" {
		rep.Skipped++
		return nil
	}
	folio = Pad(folio)

	found, err := members.FindByLicenseNumber(ctx, license)
	if err != nil {
		return fmt.Errorf("find license %s: %w", license, err)
	}
	if len(found) == 0 {
		rep.Skipped++
		rep.Problems = append(rep.Problems, "license "+license+" not found")
		return nil
	}
	m := found[0]
	if m.Folio != nil && *m.Folio != "" {
		rep.Skipped++
		return nil
	}
	taken, err := members.FolioExists(ctx, folio)
	if err != nil {
		return fmt.Errorf("check folio %s: %w", folio, err)
	}
	if taken {
		rep.Skipped++
		rep.Problems = append(rep.Problems, "folio "+folio+" already assigned")
		return nil
	}
	if err := members.SetFolio(ctx, m.ID, folio); err != nil {
		return fmt.Errorf("set folio %s: %w", folio, err)
	}
	rep.Updated++
	return nil
}

func (rep *Report) fail(line int, err error) {
	rep.Errors++
	rep.Problems = append(rep.Problems, fmt.Sprintf("line %d: %v", line, err))
}

// Pad left-pads folio with zeros to four characters. Longer values are returned unchanged.
func Pad(folio string) string {
	if len(folio) >= folioWidth {
		return folio
	}
	return strings.Repeat("0", folioWidth-len(folio)) + folio
}

func blank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
