// Package importer loads catalog products from CSV exports so reference items
// have records to price against.
package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"commerce-basket/internal/domain"
	"commerce-basket/internal/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ProductWriter interface {
	Upsert(ctx context.Context, product domain.Product) (*domain.Product, error)
}

// CSVImporter reads product rows and upserts them by key. Rows without a key
// but with an image URL extend the product above them.
type CSVImporter struct {
	reader *csv.Reader
	writer ProductWriter
	log    *logger.Logger
}

func NewCSVImporter(r io.Reader, writer ProductWriter, log *logger.Logger) *CSVImporter {
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1 // rows may have trailing commas
	return &CSVImporter{
		reader: csvr,
		writer: writer,
		log:    logger.OrNop(log),
	}
}

// Column names understood by the importer. price (a decimal amount) wins over
// centAmount when both are present.
const (
	colID         = "id"
	colKey        = "key"
	colName       = "name.en"
	colDesc       = "description.en"
	colSKU        = "variants.sku"
	colPrice      = "price"
	colCentAmount = "variants.prices.value.centAmount"
	colCurrency   = "variants.prices.value.currencyCode"
	colImage      = "variants.images.url"
)

type productRow struct {
	product domain.Product
	images  []string
	line    int
}

// Run parses all rows and returns how many products were written.
func (i *CSVImporter) Run(ctx context.Context) (int, error) {
	headers, err := i.reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read headers: %w", err)
	}
	cols := make(map[string]int, len(headers))
	for idx, h := range headers {
		cols[strings.TrimSpace(h)] = idx
	}
	if _, ok := cols[colKey]; !ok {
		return 0, fmt.Errorf("%w: csv has no %q column", domain.ErrInvalidInput, colKey)
	}

	var (
		current  *productRow
		imported int
		line     = 1
	)
	flush := func() error {
		if current == nil {
			return nil
		}
		if err := i.save(ctx, current); err != nil {
			return err
		}
		imported++
		return nil
	}

	for {
		record, err := i.reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return imported, fmt.Errorf("read row %d: %w", line, err)
		}

		get := func(name string) string {
			pos, ok := cols[name]
			if !ok || pos >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[pos])
		}

		key := get(colKey)
		image := get(colImage)
		if key == "" {
			if current != nil && image != "" {
				current.images = append(current.images, image)
			}
			continue
		}

		if err := flush(); err != nil {
			return imported, err
		}
		row, err := parseRow(get, line)
		if err != nil {
			return imported, err
		}
		if image != "" {
			row.images = append(row.images, image)
		}
		current = row
	}

	if err := flush(); err != nil {
		return imported, err
	}
	i.log.Info("catalog import finished", "products", imported)
	return imported, nil
}

func parseRow(get func(string) string, line int) (*productRow, error) {
	p := domain.Product{
		ID:          get(colID),
		Key:         get(colKey),
		Name:        get(colName),
		Description: get(colDesc),
		SKU:         get(colSKU),
		Currency:    get(colCurrency),
	}
	if p.ID != "" {
		if _, err := uuid.Parse(p.ID); err != nil {
			return nil, fmt.Errorf("%w: row %d: invalid id %q", domain.ErrInvalidInput, line, p.ID)
		}
	}
	switch price, cents := get(colPrice), get(colCentAmount); {
	case price != "":
		d, err := decimal.NewFromString(price)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: invalid price %q", domain.ErrInvalidInput, line, price)
		}
		p.Price = d
	case cents != "":
		n, err := strconv.ParseInt(cents, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: invalid centAmount %q", domain.ErrInvalidInput, line, cents)
		}
		p.Price = decimal.New(n, -2)
	}
	return &productRow{product: p, line: line}, nil
}

func (i *CSVImporter) save(ctx context.Context, row *productRow) error {
	p := row.product
	if p.Name == "" || p.SKU == "" {
		return fmt.Errorf("%w: row %d: product %q misses name or sku", domain.ErrInvalidInput, row.line, p.Key)
	}
	if p.Price.IsNegative() {
		return fmt.Errorf("%w: row %d: product %q has a negative price", domain.ErrInvalidInput, row.line, p.Key)
	}
	p.Attributes = map[string]interface{}{}
	if len(row.images) > 0 {
		p.Attributes["images"] = row.images
	}
	saved, err := i.writer.Upsert(ctx, p)
	if err != nil {
		return fmt.Errorf("upsert product %q: %w", p.Key, err)
	}
	i.log.Debug("imported product", "key", saved.Key, "id", saved.ID, "price", saved.Price.String())
	return nil
}
