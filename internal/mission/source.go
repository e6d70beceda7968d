// Package mission holds the daily mission text shown above the board.
package mission

import (
	"context"
	"time"

	"github.com/vibeteen/mural/internal/domain/model"
)

// DefaultFallback is shown when no source text is available.
const DefaultFallback = "Ame o seu próximo"

// Source produces the current mission text.
type Source interface {
	Fetch(ctx context.Context) (string, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (string, error)

// Fetch calls f.
func (f SourceFunc) Fetch(ctx context.Context) (string, error) { return f(ctx) }

var dailyMissions = []string{
	"Abrace seu irmão hoje",
	"Ore por um amigo",
	"Elogie alguém de coração",
	"Ajude em casa hoje",
	"Perdoe quem te magoou",
	"Escreva um bilhete gentil",
	"Convide alguém para célula",
	"Compartilhe um versículo hoje",
	"Ouça alguém com atenção",
	"Agradeça a seus pais",
	"Sorria para um estranho",
	"Visite quem está sozinho",
	"Doe algo que não usa",
	"Leia um salmo hoje",
}

// DailySource picks one mission per calendar day from a fixed list.
type DailySource struct {
	calendar model.Calendar
	missions []string
	now      func() time.Time
}

// NewDailySource returns a DailySource over the built-in list.
func NewDailySource(cal model.Calendar) *DailySource {
	return &DailySource{calendar: cal, missions: dailyMissions, now: time.Now}
}

// Fetch returns the mission for today's calendar day.
func (s *DailySource) Fetch(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return s.For(s.now()), nil
}

// For returns the mission for the calendar day of t. The same day always
// yields the same text.
func (s *DailySource) For(t time.Time) string {
	if len(s.missions) == 0 {
		return ""
	}
	day := s.calendar.DayOf(t)
	parsed, err := time.Parse(time.DateOnly, day.String())
	if err != nil {
		return s.missions[0]
	}
	n := int(parsed.Unix() / 86400)
	return s.missions[((n%len(s.missions))+len(s.missions))%len(s.missions)]
}
