package domain

import (
	"bytes"
	"encoding/json"
	"maps"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"github.com/WessleyAI/polidossier/pkg/fn"
)

// The types in this file mirror what the oracle is asked to return. Shapes
// the model commonly gets "almost right" are coerced; everything else
// decodes to zero values and is dropped by the normalizers.

// Number decodes a JSON number or a numeric-looking string ("$5,000",
// "approximately 64"). Anything else decodes to zero.
type Number float64

func (n *Number) UnmarshalJSON(b []byte) error {
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		*n = Number(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*n = Number(parseLooseNumber(s))
		return nil
	}
	*n = 0
	return nil
}

// parseLooseNumber reads the first run of digits in s, skipping thousands
// separators.
func parseLooseNumber(s string) float64 {
	var b strings.Builder
	started := false
	for _, r := range s {
		switch {
		case unicode.IsDigit(r):
			started = true
			b.WriteRune(r)
		case r == '.' && started:
			b.WriteRune(r)
		case r == ',' && started:
		default:
			if started {
				f, _ := strconv.ParseFloat(strings.TrimSuffix(b.String(), "."), 64)
				return f
			}
		}
	}
	f, _ := strconv.ParseFloat(strings.TrimSuffix(b.String(), "."), 64)
	return f
}

// Text decodes a string or an array of strings (joined as paragraphs).
type Text string

func (t *Text) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*t = Text(s)
		return nil
	}
	var parts []string
	if err := json.Unmarshal(b, &parts); err == nil {
		*t = Text(strings.Join(parts, "\n\n"))
		return nil
	}
	*t = ""
	return nil
}

// Str decodes a JSON string or number. Anything else decodes to "".
type Str string

func (s *Str) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		*s = ""
		return nil
	}
	switch x := v.(type) {
	case string:
		*s = Str(x)
	case float64:
		*s = Str(strconv.FormatFloat(x, 'f', -1, 64))
	default:
		*s = ""
	}
	return nil
}

// Handles decodes social handles. An object keeps its string values under
// lowercased keys; a URL or a list of URLs is keyed by site ("twitter",
// "x", "facebook"). Other shapes decode to an empty set.
type Handles map[string]string

func (h *Handles) UnmarshalJSON(b []byte) error {
	out := Handles{}
	var v any
	_ = json.Unmarshal(b, &v)
	switch x := v.(type) {
	case map[string]any:
		for k, val := range x {
			s, ok := val.(string)
			if !ok || Blank(s) {
				continue
			}
			out[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(s)
		}
	case []any:
		for _, val := range x {
			if s, ok := val.(string); ok {
				out.addURL(s)
			}
		}
	case string:
		out.addURL(x)
	}
	*h = out
	return nil
}

func (h Handles) addURL(raw string) {
	raw = strings.TrimSpace(raw)
	site := siteOf(raw)
	if site == "" {
		return
	}
	if _, ok := h[site]; !ok {
		h[site] = raw
	}
}

// siteOf returns the registrable label of a URL's host: "twitter" for
// https://www.twitter.com/jane. Bare handles have no site.
func siteOf(raw string) string {
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	labels := strings.Split(strings.ToLower(u.Hostname()), ".")
	if len(labels) < 2 {
		return ""
	}
	return labels[len(labels)-2]
}

// handleFromURL turns a profile URL into "@user". Anything that is not a URL
// with a path is returned unchanged.
func handleFromURL(v string) string {
	if !strings.Contains(v, "://") {
		return v
	}
	u, err := url.Parse(v)
	if err != nil {
		return v
	}
	user, _, _ := strings.Cut(strings.Trim(u.Path, "/"), "/")
	if user == "" {
		return v
	}
	return "@" + strings.TrimPrefix(user, "@")
}

// Identification is the identify/refine reply.
type Identification struct {
	Success *bool `json:"success"`
	Message Str   `json:"message"`
	ID      Str   `json:"id"`
	Name    Str   `json:"name"`
	Title   Str   `json:"title"`
	State   Str   `json:"state"`
}

// NoMatch reports an explicit success:false from the oracle.
func (i Identification) NoMatch() bool {
	return i.Success != nil && !*i.Success
}

// Basic converts a positive identification into a basic record. A reply that
// is neither a match nor carries a name is malformed.
func (i Identification) Basic() (Politician, error) {
	name := strings.TrimSpace(string(i.Name))
	if name == "" {
		return Politician{}, NewValidationError("name", string(i.Name), ErrMalformedUpstream)
	}
	return Politician{
		ID:    DeriveID(string(i.ID), name),
		Name:  name,
		Title: strings.TrimSpace(string(i.Title)),
		State: strings.TrimSpace(string(i.State)),
	}, nil
}

// DonationWire is one donation as the oracle writes it.
type DonationWire struct {
	Donor  Str    `json:"donor"`
	Name   Str    `json:"name"`
	Amount Number `json:"amount"`
	Year   Number `json:"year"`
}

// DonationList decodes a list of donations, a single donation object, or a
// donor-to-amount object. Entries that fail to decode are skipped; other
// shapes decode to nil.
type DonationList []DonationWire

func (l *DonationList) UnmarshalJSON(b []byte) error {
	*l = nil
	var items []json.RawMessage
	if err := json.Unmarshal(b, &items); err == nil {
		for _, item := range items {
			var d DonationWire
			if isObject(item) && json.Unmarshal(item, &d) == nil {
				*l = append(*l, d)
			}
		}
		return nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(b, &obj); err != nil {
		return nil
	}
	if _, ok := obj["donor"]; ok {
		return l.single(b)
	}
	if _, ok := obj["name"]; ok {
		return l.single(b)
	}
	for _, donor := range slices.Sorted(maps.Keys(obj)) {
		val := obj[donor]
		var d DonationWire
		if isObject(val) {
			if json.Unmarshal(val, &d) != nil {
				continue
			}
		} else {
			_ = json.Unmarshal(val, &d.Amount)
		}
		if Blank(string(d.Donor)) {
			d.Donor = Str(donor)
		}
		*l = append(*l, d)
	}
	return nil
}

func (l *DonationList) single(b []byte) error {
	var d DonationWire
	if json.Unmarshal(b, &d) == nil {
		*l = DonationList{d}
	}
	return nil
}

func isObject(b []byte) bool {
	return bytes.HasPrefix(bytes.TrimSpace(b), []byte("{"))
}

// Dossier is the full-details reply.
type Dossier struct {
	Biography       Text         `json:"biography"`
	Age             Number       `json:"age"`
	Donations       DonationList `json:"donations"`
	IsraelDonations DonationList `json:"israelDonations"`
	SocialMedia     Handles      `json:"socialMedia"`
	Twitter         Str          `json:"twitter"`
}

// Handle returns the social handle that drives the posts lookup, or "".
func (d Dossier) Handle() string {
	if h := strings.TrimSpace(string(d.Twitter)); h != "" {
		return handleFromURL(h)
	}
	social := d.Social()
	if h := social["twitter"]; h != "" {
		return handleFromURL(h)
	}
	return handleFromURL(social["x"])
}

// Social keeps non-blank handles with lowercased keys.
func (d Dossier) Social() map[string]string {
	out := make(map[string]string, len(d.SocialMedia))
	for k, v := range d.SocialMedia {
		if Blank(v) {
			continue
		}
		out[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}
	return out
}

// NormalizeDonations drops entries without a donor.
func NormalizeDonations(in []DonationWire) []Donation {
	out := fn.FilterMap(in, func(d DonationWire) (Donation, bool) {
		donor := strings.TrimSpace(string(d.Donor))
		if donor == "" {
			donor = strings.TrimSpace(string(d.Name))
		}
		if donor == "" {
			return Donation{}, false
		}
		return Donation{Donor: donor, Amount: float64(d.Amount), Year: int(d.Year)}, true
	})
	if out == nil {
		return []Donation{}
	}
	return out
}

// NewsWire is one article as the oracle writes it.
type NewsWire struct {
	Title         string `json:"title"`
	Summary       string `json:"summary"`
	Date          string `json:"date"`
	DatePublished string `json:"datePublished"`
	URL           string `json:"url"`
}

// NewsReply wraps the article list.
type NewsReply struct {
	Articles []NewsWire `json:"articles"`
}

// Normalize drops untitled articles.
func (r NewsReply) Normalize() []NewsArticle {
	out := fn.FilterMap(r.Articles, func(a NewsWire) (NewsArticle, bool) {
		if Blank(a.Title) {
			return NewsArticle{}, false
		}
		date := a.Date
		if Blank(date) {
			date = a.DatePublished
		}
		return NewsArticle{
			Title:   strings.TrimSpace(a.Title),
			Summary: strings.TrimSpace(a.Summary),
			Date:    strings.TrimSpace(date),
			URL:     strings.TrimSpace(a.URL),
		}, true
	})
	if out == nil {
		return []NewsArticle{}
	}
	return out
}

// PostWire is one post as the oracle writes it.
type PostWire struct {
	Text    string `json:"text"`
	Content string `json:"content"`
	Date    string `json:"date"`
}

// PostsReply wraps the post list. Older prompts answered under "tweets".
type PostsReply struct {
	Tweets []PostWire `json:"tweets"`
	Posts  []PostWire `json:"posts"`
}

// Normalize drops posts without text.
func (r PostsReply) Normalize() []Post {
	all := append(append([]PostWire{}, r.Tweets...), r.Posts...)
	out := fn.FilterMap(all, func(p PostWire) (Post, bool) {
		text := p.Text
		if Blank(text) {
			text = p.Content
		}
		if Blank(text) {
			return Post{}, false
		}
		return Post{Text: strings.TrimSpace(text), Date: strings.TrimSpace(p.Date)}, true
	})
	if out == nil {
		return []Post{}
	}
	return out
}
