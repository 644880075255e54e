// Package service implements the catalog and generation use cases on top of
// a Store and a Generator. Every generation use case runs the same pipeline:
// build prompt, call the model, extract, validate, persist.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"menu-catalog-api/internal/apperr"
	"menu-catalog-api/internal/extract"
	"menu-catalog-api/internal/generation"
	"menu-catalog-api/internal/storage"
)

type Options struct {
	Paging                storage.PageLimits
	DefaultGeneratedItems int
	MaxGeneratedItems     int
	RecommendPerCategory  int
	GenerationTimeout     time.Duration
}

func (o *Options) applyDefaults() {
	if o.Paging.Default < 1 {
		o.Paging.Default = 10
	}
	if o.Paging.Max < o.Paging.Default {
		o.Paging.Max = 100
	}
	if o.DefaultGeneratedItems < 1 {
		o.DefaultGeneratedItems = 5
	}
	if o.MaxGeneratedItems < o.DefaultGeneratedItems {
		o.MaxGeneratedItems = 20
	}
	if o.RecommendPerCategory < 1 {
		o.RecommendPerCategory = 15
	}
}

type Service struct {
	store storage.Store
	gen   generation.Generator
	opts  Options
}

func New(store storage.Store, gen generation.Generator, opts Options) *Service {
	opts.applyDefaults()
	return &Service{store: store, gen: gen, opts: opts}
}

func (s *Service) Model() string { return s.gen.Model() }

// Ping reports whether the store is reachable.
func (s *Service) Ping(ctx context.Context) error { return s.store.Ping(ctx) }

// complete sends one prompt to the model and extracts a value of the given shape.
func (s *Service) complete(ctx context.Context, useCase, prompt string, params generation.Params, shape extract.Shape) (*extract.Result, error) {
	if s.opts.GenerationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.GenerationTimeout)
		defer cancel()
	}

	start := time.Now()
	raw, err := s.gen.Generate(ctx, prompt, params)
	if err != nil {
		log.WithFields(log.Fields{
			"event":    "generation_failed",
			"use_case": useCase,
			"model":    s.gen.Model(),
			"error":    err.Error(),
		}).Error("Language model call failed")
		return nil, err
	}

	res, err := extract.Extract(raw, shape)
	if err != nil {
		fields := log.Fields{
			"event":      "extraction_failed",
			"use_case":   useCase,
			"raw_length": len(raw),
		}
		var exErr *extract.ExtractionError
		if errors.As(err, &exErr) {
			fields["preview"] = exErr.Preview
			fields["attempts"] = strings.Join(exErr.Attempts, " | ")
		}
		log.WithFields(fields).Error("Could not extract structured data from model output")
		return nil, err
	}

	log.WithFields(log.Fields{
		"event":       "extraction_succeeded",
		"use_case":    useCase,
		"strategy":    res.Strategy,
		"raw_length":  len(raw),
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Extracted structured data from model output")
	return res, nil
}

// notFound converts storage.ErrNotFound into a caller-facing NotFoundError.
func notFound(err error, format string, args ...interface{}) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.NotFound(format, args...)
	}
	return err
}

func (s *Service) page(page, perPage int) (int, int) {
	return s.opts.Paging.Normalize(page, perPage)
}

// parseDateBound accepts YYYY-MM-DD or RFC 3339. A date-only upper bound
// covers the whole day.
func parseDateBound(field, value string, upper bool) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		if upper {
			t = t.Add(time.Nanosecond)
		}
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, apperr.NewValidation("Invalid query parameters",
			fmt.Sprintf("%s must be a date (YYYY-MM-DD) or RFC 3339 timestamp", field))
	}
	if upper {
		t = t.AddDate(0, 0, 1)
	}
	return &t, nil
}
