package feed

import "github.com/vibeteen/mural/internal/domain/model"

// Labels used when naming supporters.
const (
	ViewerLabel  = "You"
	UnknownLabel = "Someone"
)

// SupporterNames renders a supporter list for viewerID: the viewer first as
// ViewerLabel, then known members by first name, unknown ids as UnknownLabel.
func SupporterNames(supporters []string, members []model.Member, viewerID string) []string {
	byID := make(map[string]model.Member, len(members))
	for _, m := range members {
		byID[m.ID] = m
	}

	names := make([]string, 0, len(supporters))
	viewerIncluded := false
	for _, id := range supporters {
		if id == viewerID && viewerID != "" {
			viewerIncluded = true
			continue
		}
		m, ok := byID[id]
		if !ok || m.FirstName == "" {
			names = append(names, UnknownLabel)
			continue
		}
		names = append(names, m.FirstName)
	}
	if viewerIncluded {
		names = append([]string{ViewerLabel}, names...)
	}
	return names
}
