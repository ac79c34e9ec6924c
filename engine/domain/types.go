// Package domain defines the politician record types, the error taxonomy, and
// the validation applied to user queries and oracle responses before they
// enter the cache.
package domain

import (
	"encoding/json"
	"time"
)

// Politician is the cached record for one identified politician. A record is
// either basic (identification fields only) or full (FullDetails set and every
// detail field populated).
type Politician struct {
	ID       string
	Name     string
	Title    string
	State    string
	PhotoURL string

	Biography       string
	Age             int
	Donations       []Donation
	IsraelDonations []Donation
	SocialMedia     map[string]string
	News            []NewsArticle
	Posts           []Post

	FullDetails bool
	LastUpdated time.Time
}

// Donation is a single contribution line in a dossier.
type Donation struct {
	Donor  string  `json:"donor"`
	Amount float64 `json:"amount"`
	Year   int     `json:"year"`
}

// NewsArticle is a news summary attached to a full record.
type NewsArticle struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
	Date    string `json:"date"`
	URL     string `json:"url"`
}

// Post is a recent social media post attached to a full record.
type Post struct {
	Text string `json:"text"`
	Date string `json:"date"`
}

// SearchQuery carries the user-supplied identification hints.
type SearchQuery struct {
	Name           string `json:"name"`
	State          string `json:"state"`
	AdditionalInfo string `json:"additionalInfo"`
	RefineInfo     string `json:"refineInfo,omitempty"`
}

type basicWire struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Title    string `json:"title"`
	State    string `json:"state"`
	PhotoURL string `json:"photoUrl"`
}

type fullWire struct {
	basicWire
	Biography       string            `json:"biography"`
	Age             int               `json:"age"`
	Donations       []Donation        `json:"donations"`
	IsraelDonations []Donation        `json:"israelDonations"`
	SocialMedia     map[string]string `json:"socialMedia"`
	News            []NewsArticle     `json:"news"`
	Posts           []Post            `json:"tweets"`
	FullDetails     bool              `json:"fullDetails"`
	LastUpdated     int64             `json:"lastUpdated"`
}

// MarshalJSON emits only the identification fields for basic records and the
// complete dossier for full ones. Detail lists are never null.
func (p Politician) MarshalJSON() ([]byte, error) {
	basic := basicWire{ID: p.ID, Name: p.Name, Title: p.Title, State: p.State, PhotoURL: p.PhotoURL}
	if !p.FullDetails {
		return json.Marshal(basic)
	}
	return json.Marshal(fullWire{
		basicWire:       basic,
		Biography:       p.Biography,
		Age:             p.Age,
		Donations:       nonNil(p.Donations),
		IsraelDonations: nonNil(p.IsraelDonations),
		SocialMedia:     nonNilMap(p.SocialMedia),
		News:            nonNil(p.News),
		Posts:           nonNil(p.Posts),
		FullDetails:     true,
		LastUpdated:     p.LastUpdated.UnixMilli(),
	})
}

// UnmarshalJSON accepts both wire shapes produced by MarshalJSON.
func (p *Politician) UnmarshalJSON(data []byte) error {
	var w fullWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*p = Politician{
		ID:              w.ID,
		Name:            w.Name,
		Title:           w.Title,
		State:           w.State,
		PhotoURL:        w.PhotoURL,
		Biography:       w.Biography,
		Age:             w.Age,
		Donations:       w.Donations,
		IsraelDonations: w.IsraelDonations,
		SocialMedia:     w.SocialMedia,
		News:            w.News,
		Posts:           w.Posts,
		FullDetails:     w.FullDetails,
	}
	if w.LastUpdated != 0 {
		p.LastUpdated = time.UnixMilli(w.LastUpdated)
	}
	return nil
}

// Clone returns a deep copy so cached records cannot be mutated through
// values handed to callers.
func (p Politician) Clone() Politician {
	c := p
	c.Donations = cloneSlice(p.Donations)
	c.IsraelDonations = cloneSlice(p.IsraelDonations)
	c.News = cloneSlice(p.News)
	c.Posts = cloneSlice(p.Posts)
	if p.SocialMedia != nil {
		c.SocialMedia = make(map[string]string, len(p.SocialMedia))
		for k, v := range p.SocialMedia {
			c.SocialMedia[k] = v
		}
	}
	return c
}

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	out := make([]T, len(s))
	copy(out, s)
	return out
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func nonNilMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
