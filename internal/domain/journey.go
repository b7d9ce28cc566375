package domain

import (
	"hash/fnv"
	"sort"
	"time"
)

// VisitorJourney все события одного посетителя, собранные по запросу.
// Не сохраняется в базе.
type VisitorJourney struct {
	VisitorID      string    `json:"visitorId"`
	DisplayName    string    `json:"displayName"`
	FirstSeen      time.Time `json:"firstSeen"`
	LastSeen       time.Time `json:"lastSeen"`
	Location       string    `json:"location"`
	Device         *string   `json:"device"`
	Browser        *string   `json:"browser"`
	Source         *string   `json:"source"`
	Events         []Event   `json:"events"`
	TotalTimeSpent int       `json:"totalTimeSpent"`
	Clicked        bool      `json:"clicked"`
	ClickedLinks   []string  `json:"clickedLinks"`
}

// BuildJourneys группирует события по visitor_id, упорядочивает каждую группу
// по времени и возвращает не более limit путей, самые свежие первыми.
// События без visitor_id пропускаются.
func BuildJourneys(events []Event, limit int) []VisitorJourney {
	groups := make(map[string][]Event)
	for _, e := range events {
		if e.VisitorID == nil || *e.VisitorID == "" {
			continue
		}
		groups[*e.VisitorID] = append(groups[*e.VisitorID], e)
	}

	journeys := make([]VisitorJourney, 0, len(groups))
	for visitorID, group := range groups {
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].CreatedAt.Before(group[j].CreatedAt)
		})

		first := group[0]
		j := VisitorJourney{
			VisitorID:    visitorID,
			DisplayName:  VisitorName(visitorID),
			FirstSeen:    first.CreatedAt,
			LastSeen:     group[len(group)-1].CreatedAt,
			Location:     first.Location(),
			Device:       first.DeviceType,
			Browser:      first.Browser,
			Source:       first.SourcePlatform,
			Events:       group,
			ClickedLinks: []string{},
		}
		for _, e := range group {
			if e.TimeOnPage != nil {
				j.TotalTimeSpent += *e.TimeOnPage
			}
			if e.EventType == EventLinkClick {
				j.Clicked = true
				if e.LinkName != nil && *e.LinkName != "" {
					j.ClickedLinks = append(j.ClickedLinks, *e.LinkName)
				}
			}
		}
		journeys = append(journeys, j)
	}

	sort.SliceStable(journeys, func(i, k int) bool {
		if journeys[i].LastSeen.Equal(journeys[k].LastSeen) {
			return journeys[i].VisitorID < journeys[k].VisitorID
		}
		return journeys[i].LastSeen.After(journeys[k].LastSeen)
	})

	if limit > 0 && len(journeys) > limit {
		journeys = journeys[:limit]
	}
	return journeys
}

var visitorNames = []string{
	"Alex", "Blake", "Casey", "Dana", "Drew", "Eli", "Finn", "Gray", "Harper", "Jamie",
	"Jesse", "Jordan", "Kai", "Lee", "Logan", "Morgan", "Noel", "Parker", "Quinn", "Reese",
	"Riley", "Robin", "Rowan", "Sage", "Sam", "Skyler", "Taylor", "Toni", "Val", "Wren",
}

// VisitorName стабильный псевдоним для visitor_id, чтобы дашборд было удобно читать
func VisitorName(visitorID string) string {
	if visitorID == "" {
		return "Anonymous"
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(visitorID))
	return visitorNames[h.Sum32()%uint32(len(visitorNames))]
}
