package services

import (
	"fmt"
	"os"
	"sync"

	"github.com/crm-electoral/app-crm/internal/logging"
	"github.com/crm-electoral/app-crm/internal/models"
	"github.com/crm-electoral/app-crm/internal/rules"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"
)

// featureNameKeys are the properties checked, in order, for a municipality name
var featureNameKeys = []string{"name", "NAME", "MPIO_CNMBR", "municipio"}

// GeoService holds the municipality polygons used by the dashboard map
type GeoService struct {
	path   string
	logger *logging.SafeLogger

	mu       sync.RWMutex
	features *geojson.FeatureCollection
}

// NewGeoService creates a geo service reading polygons from path on first use
func NewGeoService(path string, logger *logging.SafeLogger) *GeoService {
	return &GeoService{path: path, logger: logger}
}

// Load reads and parses the GeoJSON file, replacing any loaded collection
func (s *GeoService) Load() error {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("failed to read geojson %s: %w", s.path, err)
	}
	fc, err := ParseFeatureCollection(raw)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.features = fc
	s.mu.Unlock()

	s.logger.Info("geojson loaded", zap.String("path", s.path), zap.Int("features", len(fc.Features)))
	return nil
}

// ParseFeatureCollection decodes a GeoJSON FeatureCollection
func ParseFeatureCollection(raw []byte) (*geojson.FeatureCollection, error) {
	fc, err := geojson.UnmarshalFeatureCollection(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid geojson: %w", err)
	}
	if fc.Type != "FeatureCollection" {
		return nil, fmt.Errorf("invalid geojson: expected FeatureCollection, got %q", fc.Type)
	}
	return fc, nil
}

// Features returns the loaded collection, loading it on first call
func (s *GeoService) Features() (*geojson.FeatureCollection, error) {
	s.mu.RLock()
	fc := s.features
	s.mu.RUnlock()
	if fc != nil {
		return fc, nil
	}
	if err := s.Load(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.features, nil
}

// FeatureName returns the municipality name stored in a feature's properties
func FeatureName(f *geojson.Feature) string {
	for _, key := range featureNameKeys {
		if v := f.Properties.MustString(key, ""); v != "" {
			return v
		}
	}
	return ""
}

// JoinCounts copies the collection adding a count and percentage property
// to every feature. Features without registrants get zero.
func JoinCounts(fc *geojson.FeatureCollection, counts []models.MunicipalityCount) *geojson.FeatureCollection {
	byName := make(map[string]models.MunicipalityCount, len(counts))
	for _, c := range counts {
		byName[rules.Normalize(c.Name)] = c
	}

	out := geojson.NewFeatureCollection()
	for _, f := range fc.Features {
		joined := geojson.NewFeature(f.Geometry)
		joined.ID = f.ID
		joined.Properties = f.Properties.Clone()
		if joined.Properties == nil {
			joined.Properties = geojson.Properties{}
		}

		c := byName[rules.Normalize(FeatureName(f))]
		joined.Properties["count"] = c.Count
		joined.Properties["percentage"] = c.Percentage
		out.Append(joined)
	}
	return out
}
