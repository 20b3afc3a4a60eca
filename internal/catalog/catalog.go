// Package catalog holds the salon's service menu and resolves service names
// to durations.
package catalog

import (
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"glamora/internal/apperrors"
)

// Service is one bookable treatment.
type Service struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"-"`
	Category string        `json:"category"`
	Group    string        `json:"group,omitempty"`
}

// DurationMinutes is Duration expressed in whole minutes.
func (s Service) DurationMinutes() int {
	return int(s.Duration / time.Minute)
}

// Catalog is an immutable name-indexed service list.
type Catalog struct {
	byKey    map[string]Service
	services []Service
	fallback time.Duration
	log      zerolog.Logger
}

// New builds a catalog. fallback is the duration returned for unknown names.
func New(services []Service, fallback time.Duration, log zerolog.Logger) (*Catalog, error) {
	if fallback <= 0 {
		return nil, apperrors.Config("default service duration must be positive")
	}

	c := &Catalog{
		byKey:    make(map[string]Service, len(services)),
		fallback: fallback,
		log:      log.With().Str("component", "catalog").Logger(),
	}
	for i, s := range services {
		if strings.TrimSpace(s.Name) == "" {
			return nil, apperrors.Config("services[%d]: name is required", i)
		}
		if s.Duration <= 0 {
			return nil, apperrors.Config("services[%d] %q: duration must be positive", i, s.Name)
		}
		key := NormalizeName(s.Name)
		if _, dup := c.byKey[key]; dup {
			return nil, apperrors.Config("services[%d] %q: duplicate service", i, s.Name)
		}
		c.byKey[key] = s
		c.services = append(c.services, s)
	}

	sort.SliceStable(c.services, func(i, j int) bool {
		if c.services[i].Group != c.services[j].Group {
			return c.services[i].Group < c.services[j].Group
		}
		if c.services[i].Category != c.services[j].Category {
			return c.services[i].Category < c.services[j].Category
		}
		return c.services[i].Name < c.services[j].Name
	})
	return c, nil
}

// Lookup finds a service ignoring case, diacritics and extra whitespace.
func (c *Catalog) Lookup(name string) (Service, bool) {
	s, ok := c.byKey[NormalizeName(name)]
	return s, ok
}

// DurationOrDefault returns the service duration, or the fallback duration
// with usedDefault set when the name is unknown. Fallbacks are logged.
func (c *Catalog) DurationOrDefault(name string) (d time.Duration, usedDefault bool) {
	if s, ok := c.Lookup(name); ok {
		return s.Duration, false
	}
	c.log.Warn().
		Str("service", name).
		Dur("fallback", c.fallback).
		Msg("unknown service, using default duration")
	return c.fallback, true
}

// Default is the fallback duration.
func (c *Catalog) Default() time.Duration {
	return c.fallback
}

// All returns services ordered by group, category and name.
func (c *Catalog) All() []Service {
	out := make([]Service, len(c.services))
	copy(out, c.services)
	return out
}

// ByCategory returns services whose category matches.
func (c *Catalog) ByCategory(category string) []Service {
	key := NormalizeName(category)
	var out []Service
	for _, s := range c.services {
		if NormalizeName(s.Category) == key {
			out = append(out, s)
		}
	}
	return out
}

// NormalizeName folds case, strips diacritics and collapses whitespace, so
// "Melír" and "melir" compare equal.
func NormalizeName(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.Join(strings.Fields(strings.ToLower(out)), " ")
}
