package ingest

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/mind-engage/skillway/internal/content"
)

// Row is one data row read through a Mapping.
type Row struct {
	Index      int    `json:"rowIndex"` // 1-based, header excluded
	Subject    string `json:"subject"`
	Order      *int   `json:"order"`
	Title      string `json:"title"`
	Homework   string `json:"homework,omitempty"`
	Grade      *int   `json:"grade"`
	Difficulty string `json:"difficulty,omitempty"` // beginner|intermediate|advanced
	Resource   string `json:"resource,omitempty"`
	Test       string `json:"test,omitempty"`
}

type RowReport struct {
	Data       Row               `json:"data"`
	Errors     []string          `json:"errors"`
	Warnings   []string          `json:"warnings"`
	IsError    bool              `json:"isError"`
	HasWarning bool              `json:"hasWarning"`
	Raw        map[string]string `json:"raw"`
}

type Report struct {
	ValidCount   int         `json:"validCount"`
	ErrorCount   int         `json:"errorCount"`
	WarningCount int         `json:"warningCount"`
	Rows         []RowReport `json:"rows"`
}

// ReportError rejects a commit whose sheet has invalid rows.
type ReportError struct {
	Report Report
}

func (e *ReportError) Error() string {
	return fmt.Sprintf("%d of %d rows have errors", e.Report.ErrorCount, len(e.Report.Rows))
}

func (e *ReportError) Details() any { return e.Report }

var (
	resourceURL  = regexp.MustCompile(`(?i)^(https?://|www\.)`)
	resourceFile = regexp.MustCompile(`(?i)\.(mp4|mp3|pdf|docx?|xlsx?|pptx?|jpe?g|png|gif)$`)
	inlineTest   = regexp.MustCompile(`(?i)Q\d+\s*[:=]`)
)

// Validate checks every row. Rows with errors are excluded from
// ValidCount; warnings never make a row invalid.
func Validate(t Table, m Mapping) Report {
	cols := make(map[Field]int, len(Fields))
	for _, f := range Fields {
		cols[f] = t.Column(m[f])
	}
	cell := func(row []string, f Field) string {
		if i := cols[f]; i >= 0 && i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	rep := Report{Rows: make([]RowReport, 0, len(t.Rows))}
	orders := map[string]map[int]bool{}
	titles := map[string]bool{}

	for idx, raw := range t.Rows {
		var errs, warns []string
		r := Row{
			Index:    idx + 1,
			Subject:  cell(raw, FieldSubject),
			Title:    cell(raw, FieldTitle),
			Homework: cell(raw, FieldHomework),
			Resource: cell(raw, FieldResource),
			Test:     cell(raw, FieldTest),
		}

		if r.Subject == "" {
			errs = append(errs, "subject is missing")
		}
		if n, ok := parseInt(cell(raw, FieldOrder)); ok {
			r.Order = &n
		} else {
			errs = append(errs, "order is not a number")
		}
		if r.Title == "" {
			errs = append(errs, "title is missing")
		}
		if n, ok := parseInt(cell(raw, FieldGrade)); !ok {
			errs = append(errs, "grade is missing or not a number")
		} else if n < 1 || n > 11 {
			errs = append(errs, "grade must be between 1 and 11")
		} else {
			r.Grade = &n
		}
		if rawDiff := cell(raw, FieldDifficulty); rawDiff != "" {
			if level, ok := NormalizeDifficulty(rawDiff); ok {
				r.Difficulty = level
			} else {
				errs = append(errs, fmt.Sprintf("unknown difficulty %q, expected beginner, intermediate or advanced", rawDiff))
			}
		}
		if r.Resource != "" && !validResource(r.Resource) {
			warns = append(warns, "resource does not look like a link or a media file")
		}
		if r.Test != "" && !validTestFormat(r.Test) {
			warns = append(warns, "test should be JSON or Q1:...|Q2:... text")
		}

		if r.Subject != "" && r.Order != nil {
			key := content.NameKey(r.Subject)
			if orders[key] == nil {
				orders[key] = map[int]bool{}
			}
			if orders[key][*r.Order] {
				errs = append(errs, fmt.Sprintf("duplicate order %d for subject %q", *r.Order, r.Subject))
			}
			orders[key][*r.Order] = true
		}
		if r.Subject != "" && r.Title != "" {
			key := content.NameKey(r.Subject) + "\x00" + strings.ToLower(r.Title)
			if titles[key] {
				warns = append(warns, fmt.Sprintf("lesson %q appears more than once", r.Title))
			}
			titles[key] = true
		}

		rr := RowReport{
			Data:       r,
			Errors:     orEmpty(errs),
			Warnings:   orEmpty(warns),
			IsError:    len(errs) > 0,
			HasWarning: len(warns) > 0,
			Raw:        rawRow(t.Headers, raw),
		}
		if rr.IsError {
			rep.ErrorCount++
		} else {
			rep.ValidCount++
		}
		if rr.HasWarning {
			rep.WarningCount++
		}
		rep.Rows = append(rep.Rows, rr)
	}
	return rep
}

// parseInt accepts integers and integral decimals such as "3.0", which is
// how some spreadsheet tools export whole numbers.
func parseInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int(f), true
}

func validResource(link string) bool {
	return resourceURL.MatchString(link) || resourceFile.MatchString(link)
}

func validTestFormat(s string) bool {
	return gjson.Valid(s) || inlineTest.MatchString(s)
}

func rawRow(headers, row []string) map[string]string {
	out := make(map[string]string, len(headers))
	for i, h := range headers {
		if h != "" && i < len(row) {
			out[h] = row[i]
		}
	}
	return out
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
