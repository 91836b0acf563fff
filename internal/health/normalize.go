// Package health reconciles the JSON payloads returned by target
// services' health endpoints into one canonical record.
package health

import (
	"errors"
	"fmt"

	"github.com/edvin/deploytrack/internal/model"
)

// Shape identifies one of the known health payload layouts.
type Shape string

const (
	ShapeAuto     Shape = "auto"
	ShapeStandard Shape = "standard"
	ShapeNested   Shape = "nested"
	ShapeSimple   Shape = "simple"
	ShapeDetailed Shape = "detailed"
	ShapeLegacy   Shape = "legacy"
)

// ErrUnrecognized is returned when a payload satisfies none of the
// known shapes (or the single hinted shape).
var ErrUnrecognized = errors.New("health payload matches no known shape")

// extractor attempts to read a canonical record out of a payload.
// It returns ok=false when the payload does not satisfy the shape's
// required fields; a missing or mistyped field is a non-match, never
// an error.
type extractor func(payload map[string]any) (*model.HealthRecord, bool)

// shapeEntry pairs a shape name with its extractor. Auto-detection
// walks this table in order, so more specific shapes must come before
// shapes whose required fields are a subset of theirs: standard is a
// strict superset of nested and has to be probed first.
type shapeEntry struct {
	shape   Shape
	extract extractor
}

var shapes = []shapeEntry{
	{ShapeStandard, extractStandard},
	{ShapeNested, extractNested},
	{ShapeSimple, extractSimple},
	{ShapeDetailed, extractDetailed},
	{ShapeLegacy, extractLegacy},
}

// Normalize converts a health payload into the canonical record. With
// ShapeAuto the shapes are tried in registration order and the first
// match wins; with an explicit hint only that shape is tried.
func Normalize(payload map[string]any, hint Shape) (*model.HealthRecord, error) {
	if hint == ShapeAuto || hint == "" {
		for _, entry := range shapes {
			if rec, ok := entry.extract(payload); ok {
				return rec, nil
			}
		}
		return nil, ErrUnrecognized
	}

	for _, entry := range shapes {
		if entry.shape != hint {
			continue
		}
		rec, ok := entry.extract(payload)
		if !ok {
			return nil, fmt.Errorf("shape %s: %w", hint, ErrUnrecognized)
		}
		return rec, nil
	}
	return nil, fmt.Errorf("unknown shape hint %q: %w", hint, ErrUnrecognized)
}

// KnownShape reports whether s names a supported shape hint.
func KnownShape(s Shape) bool {
	if s == ShapeAuto {
		return true
	}
	for _, entry := range shapes {
		if entry.shape == s {
			return true
		}
	}
	return false
}

func extractStandard(payload map[string]any) (*model.HealthRecord, bool) {
	platform, ok := stringField(payload, "platform")
	if !ok {
		return nil, false
	}
	release, ok := stringField(payload, "release")
	if !ok {
		return nil, false
	}
	schema, ok := stringField(payload, "schema")
	if !ok {
		return nil, false
	}
	return &model.HealthRecord{Platform: &platform, Release: release, SchemaVersion: schema}, true
}

func extractNested(payload map[string]any) (*model.HealthRecord, bool) {
	release, ok := stringField(payload, "release")
	if !ok {
		return nil, false
	}
	schema, ok := stringField(payload, "schema")
	if !ok {
		return nil, false
	}
	rec := &model.HealthRecord{Release: release, SchemaVersion: schema}
	if platform, ok := stringField(payload, "platform"); ok {
		rec.Platform = &platform
	}
	return rec, true
}

func extractSimple(payload map[string]any) (*model.HealthRecord, bool) {
	release, ok := stringField(payload, "version")
	if !ok {
		return nil, false
	}
	schema, ok := stringField(payload, "db_version")
	if !ok {
		return nil, false
	}
	return &model.HealthRecord{Release: release, SchemaVersion: schema}, true
}

func extractDetailed(payload map[string]any) (*model.HealthRecord, bool) {
	service, ok := mapField(payload, "service")
	if !ok {
		return nil, false
	}
	release, ok := stringField(service, "version")
	if !ok {
		return nil, false
	}
	database, ok := mapField(service, "database")
	if !ok {
		return nil, false
	}
	schema, ok := stringField(database, "schema_version")
	if !ok {
		return nil, false
	}
	rec := &model.HealthRecord{Release: release, SchemaVersion: schema}
	if platform, ok := stringField(service, "platform_version"); ok {
		rec.Platform = &platform
	}
	return rec, true
}

func extractLegacy(payload map[string]any) (*model.HealthRecord, bool) {
	release, ok := stringField(payload, "app_version")
	if !ok {
		return nil, false
	}
	schema, ok := stringField(payload, "db")
	if !ok {
		return nil, false
	}
	rec := &model.HealthRecord{Release: release, SchemaVersion: schema}
	if platform, ok := stringField(payload, "runtime"); ok {
		rec.Platform = &platform
	}
	return rec, true
}

func stringField(m map[string]any, key string) (string, bool) {
	v, ok := m[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func mapField(m map[string]any, key string) (map[string]any, bool) {
	v, ok := m[key]
	if !ok {
		return nil, false
	}
	nested, ok := v.(map[string]any)
	return nested, ok
}
