package repository

import (
	"github.com/vibeteen/mural/internal/domain/model"
	"github.com/vibeteen/mural/pkg/logger"
)

// Option applies a configuration option to the DocStore.
type Option func(*DocStore)

// WithLogger sets the logger used by the store and by Badger itself.
func WithLogger(l logger.Logger) Option {
	return func(s *DocStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithCalendar sets the calendar used to normalize stored dates.
func WithCalendar(cal model.Calendar) Option {
	return func(s *DocStore) {
		s.calendar = cal
	}
}

// WithIDGenerator overrides how ids are assigned to records appended without one.
func WithIDGenerator(gen func() string) Option {
	return func(s *DocStore) {
		if gen != nil {
			s.newID = gen
		}
	}
}
