package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMissingSection reports a document that decoded but lacks one of the
// required top-level sections.
var ErrMissingSection = errors.New("bio document is missing a required section")

// rawDocument mirrors BioDocument with pointer sections so that an absent or
// null section can be told apart from an empty one.
type rawDocument struct {
	Profile   *Profile    `json:"profile"`
	SEO       *SEO        `json:"seo"`
	Links     *[]Link     `json:"links"`
	Favorites *[]Favorite `json:"favorites"`
	Footer    *Footer     `json:"footer"`
}

// DecodeBioDocument parses the JSON text of a bio document and checks that
// every required section is present and non-null.
func DecodeBioDocument(data []byte) (*BioDocument, error) {
	var raw rawDocument
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode bio document: %w", err)
	}

	var missing []string
	if raw.Profile == nil {
		missing = append(missing, "profile")
	}
	if raw.SEO == nil {
		missing = append(missing, "seo")
	}
	if raw.Links == nil {
		missing = append(missing, "links")
	}
	if raw.Favorites == nil {
		missing = append(missing, "favorites")
	}
	if raw.Footer == nil {
		missing = append(missing, "footer")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingSection, strings.Join(missing, ", "))
	}

	return &BioDocument{
		Profile:   *raw.Profile,
		SEO:       *raw.SEO,
		Links:     *raw.Links,
		Favorites: *raw.Favorites,
		Footer:    *raw.Footer,
	}, nil
}

// SplitLinks partitions links by their featured flag. Order is preserved
// within each group.
func SplitLinks(links []Link) (featured, additional []Link) {
	for _, l := range links {
		if l.Featured {
			featured = append(featured, l)
		} else {
			additional = append(additional, l)
		}
	}
	return featured, additional
}

// NewIndexPageData builds the view model for the profile page.
func NewIndexPageData(doc *BioDocument, platform, lastUpdated string) IndexPageData {
	featured, additional := SplitLinks(doc.Links)
	return IndexPageData{
		Profile:     doc.Profile,
		SEO:         doc.SEO,
		Featured:    featured,
		Additional:  additional,
		Favorites:   doc.Favorites,
		Footer:      doc.Footer,
		Platform:    platform,
		LastUpdated: lastUpdated,
	}
}
