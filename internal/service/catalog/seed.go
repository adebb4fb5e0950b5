package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// SeedFile формат YAML-файла с начальным каталогом:
//
//	products:
//	  - name: Lamp
//	    description: Desk lamp
//	    image: https://cdn.example.com/lamp.png
//	    price_minor: 1999
//	    stock: 25
type SeedFile struct {
	Products []ProductDraft `yaml:"products"`
}

// SeedReport итог загрузки.
type SeedReport struct {
	Created int
	Skipped int
}

// Seed загружает товары из YAML. Товары с уже занятыми названиями пропускаются,
// поэтому повторный запуск безопасен.
func (s *Service) Seed(ctx context.Context, r io.Reader) (SeedReport, error) {
	var file SeedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return SeedReport{}, fmt.Errorf("decode seed: %w", err)
	}

	var report SeedReport
	for i, draft := range file.Products {
		_, err := s.Create(ctx, draft)
		switch {
		case err == nil:
			report.Created++
		case errors.Is(err, domain.ErrProductExists):
			report.Skipped++
		default:
			return report, fmt.Errorf("seed product #%d %q: %w", i, draft.Name, err)
		}
	}
	return report, nil
}
