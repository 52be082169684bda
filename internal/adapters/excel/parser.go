// Package excel turns an uploaded review workbook into domain reviews.
package excel

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"

	"review_analysis/internal/domain"
)

// Fixed leading columns; everything from colText on is free text.
const (
	colToken = iota
	colEta
	colAnzianita
	colArea
	colText
)

// Parse reads the first sheet of an xlsx workbook. The first row is a header.
func Parse(r io.Reader) ([]domain.Review, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, &domain.ParseError{Err: fmt.Errorf("open workbook: %w", err)}
	}
	defer func() {
		if err := f.Close(); err != nil {
			log.Warn().Err(err).Msg("close workbook")
		}
	}()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &domain.ParseError{Err: errors.New("no sheets")}
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, &domain.ParseError{Err: fmt.Errorf("read rows: %w", err)}
	}

	out := make([]domain.Review, 0, len(rows))
	for i, row := range rows {
		if i == 0 || len(row) == 0 {
			continue
		}
		token := cell(row, colToken)
		if token == "" {
			continue
		}
		out = append(out, domain.Review{
			Token:               token,
			EtaAnagrafica:       cell(row, colEta),
			AnzianitaLavorativa: cell(row, colAnzianita),
			AreaAziendale:       cell(row, colArea),
			Text:                joinText(row),
		})
	}
	log.Debug().Str("sheet", sheets[0]).Int("rows", len(rows)).Int("reviews", len(out)).Msg("workbook parsed")
	return out, nil
}

func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func joinText(row []string) string {
	if len(row) <= colText {
		return ""
	}
	parts := make([]string, 0, len(row)-colText)
	for _, c := range row[colText:] {
		if t := strings.TrimSpace(c); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}
