package importer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"commerce-basket/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProductRepo struct {
	items []domain.Product
	err   error
}

func (s *stubProductRepo) Upsert(_ context.Context, p domain.Product) (*domain.Product, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.items = append(s.items, p)
	return &p, nil
}

func TestCSVImporter_Run(t *testing.T) {
	csvData := `id,key,name.en,description.en,variants.sku,variants.prices.value.centAmount,variants.prices.value.currencyCode,variants.images.url
00000000-0000-0000-0000-000000000001,prod-1,Prod One,Desc one,SKU-1,1999,EUR,https://example.com/img1.jpg
,,,,,,,https://example.com/img2.jpg
,prod-2,Prod Two,Desc two,SKU-2,200,USD,`

	repo := &stubProductRepo{}
	count, err := NewCSVImporter(strings.NewReader(csvData), repo, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	require.Len(t, repo.items, 2)

	first := repo.items[0]
	assert.Equal(t, "00000000-0000-0000-0000-000000000001", first.ID)
	assert.Equal(t, "prod-1", first.Key)
	assert.Equal(t, "EUR", first.Currency)
	assert.True(t, first.Price.Equal(decimal.RequireFromString("19.99")), first.Price.String())
	assert.Equal(t, []string{"https://example.com/img1.jpg", "https://example.com/img2.jpg"}, first.Attributes["images"])

	second := repo.items[1]
	assert.Empty(t, second.ID)
	assert.True(t, second.Price.Equal(decimal.RequireFromString("2.00")))
	assert.NotContains(t, second.Attributes, "images")
}

func TestCSVImporter_DecimalPriceColumn(t *testing.T) {
	csvData := "key,name.en,variants.sku,price,variants.prices.value.centAmount\nmug,Mug,SKU-MUG,12.5,999\n"
	repo := &stubProductRepo{}
	_, err := NewCSVImporter(strings.NewReader(csvData), repo, nil).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, repo.items, 1)
	assert.True(t, repo.items[0].Price.Equal(decimal.RequireFromString("12.50")))
}

func TestCSVImporter_Rejects(t *testing.T) {
	cases := map[string]string{
		"no key column": "name.en,variants.sku\nMug,SKU\n",
		"bad id":        "id,key,name.en,variants.sku\nnot-a-uuid,mug,Mug,SKU\n",
		"bad price":     "key,name.en,variants.sku,price\nmug,Mug,SKU,abc\n",
		"missing sku":   "key,name.en\nmug,Mug\n",
		"negative":      "key,name.en,variants.sku,price\nmug,Mug,SKU,-1\n",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewCSVImporter(strings.NewReader(data), &stubProductRepo{}, nil).Run(context.Background())
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestCSVImporter_WriterErrorStopsRun(t *testing.T) {
	boom := errors.New("db down")
	csvData := "key,name.en,variants.sku\na,A,SKU-A\nb,B,SKU-B\n"
	count, err := NewCSVImporter(strings.NewReader(csvData), &stubProductRepo{err: boom}, nil).Run(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, count)
}
