// Package knowledge is the static jurisdiction fact base consulted on every
// generated reply.
package knowledge

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Entry holds the three facts known about a jurisdiction.
type Entry struct {
	Incorporation string
	Taxation      string
	Benefits      string
}

// Fallback is returned when no jurisdiction could be selected.
const Fallback = "We can help with company formation across multiple jurisdictions."

// maxJurisdictions caps how many jurisdictions a digest mentions.
const maxJurisdictions = 2

type jurisdiction struct {
	id    string
	entry Entry
}

// jurisdictions is in fixed enumeration order. Selection walks this order, not
// the order names appear in the query.
var jurisdictions = []jurisdiction{
	{"singapore", Entry{
		Incorporation: "Singapore Private Limited Company can be incorporated usually around one week. Minimum 1 director required (can be foreigner). Minimum paid-up capital SGD $1. Corporate secretary mandatory.",
		Taxation:      "Corporate tax rate 17%. No capital gains tax. Extensive tax incentives available. Annual filing required.",
		Benefits:      "Strategic location, business-friendly environment, strong legal framework, access to ASEAN markets.",
	}},
	{"hong_kong", Entry{
		Incorporation: "Hong Kong Limited Company incorporation takes usually around one week. Minimum 1 director and 1 shareholder. Company secretary required. No minimum capital requirement.",
		Taxation:      "Profits tax rate 8.25% for first HK$2M and 16.5% above. No capital gains tax, dividend tax, or withholding tax. Territorial taxation system.",
		Benefits:      "International financial center, simple tax system, no foreign exchange controls, strategic Asian hub.",
	}},
	{"uk", Entry{
		Incorporation: "UK Limited Company formation usually around one week. Minimum 1 director and 1 shareholder. Company secretary optional.",
		Taxation:      "Corporation tax rate 25% (19% for small companies). VAT registration may be required. Annual confirmation statement required.",
		Benefits:      "Access to global markets, strong legal system, established business infrastructure, English-speaking.",
	}},
	{"usa", Entry{
		Incorporation: "US Corporation or LLC formation usually around one week. Requirements vary by state. Florida and New Mexico are popular options. Registered agent required.",
		Taxation:      "Federal corporate tax 21% plus state taxes. LLC has pass-through taxation. We work with several banking partners in USA.",
		Benefits:      "World's largest economy, access to capital markets, strong IP protection, established business ecosystem.",
	}},
	{"malaysia", Entry{
		Incorporation: "Malaysian Sdn Bhd incorporation takes usually around one week. Minimum 1 director (Malaysian resident required). Company secretary mandatory.",
		Taxation:      "Corporate tax rate 24%. MSC status companies get tax incentives. Labuan jurisdiction offers attractive tax rates.",
		Benefits:      "ASEAN hub, multicultural workforce, government incentives, strategic location.",
	}},
	{"thailand", Entry{
		Incorporation: "Thai Limited Company registration takes usually around one week. Minimum 3 shareholders. Foreign ownership restrictions apply.",
		Taxation:      "Corporate income tax 20%. BOI promoted companies get tax privileges. VAT 7%.",
		Benefits:      "Growing economy, ASEAN member, government investment promotion, skilled workforce.",
	}},
}

var (
	incorporationTopic = []string{"incorporation", "company", "business", "setup", "formation"}
	taxTopic           = []string{"tax", "taxation", "cost", "rate"}

	taxationField      = []string{"cost", "tax", "rate", "price"}
	incorporationField = []string{"incorporation", "setup", "formation", "company"}

	incorporationDefault = []string{"singapore", "hong_kong"}
	taxDefault           = []string{"singapore", "hong_kong", "uk"}
)

// displayNames holds the title-cased name of every jurisdiction. A Caser is
// not safe for concurrent use, so names are computed once at init.
var displayNames = func() map[string]string {
	titler := cases.Title(language.English)
	names := make(map[string]string, len(jurisdictions))
	for _, j := range jurisdictions {
		names[j.id] = titler.String(strings.ReplaceAll(j.id, "_", " "))
	}
	return names
}()

// Get returns the entry for a jurisdiction id.
func Get(id string) (Entry, bool) {
	for _, j := range jurisdictions {
		if j.id == id {
			return j.entry, true
		}
	}
	return Entry{}, false
}

// IDs returns the jurisdiction ids in enumeration order.
func IDs() []string {
	ids := make([]string, len(jurisdictions))
	for i, j := range jurisdictions {
		ids[i] = j.id
	}
	return ids
}

// Lookup builds a short knowledge digest for a user query. It is a pure
// function of the query.
func Lookup(query string) string {
	lower := strings.ToLower(query)

	var selected []string
	for _, j := range jurisdictions {
		if strings.Contains(lower, strings.ReplaceAll(j.id, "_", " ")) || strings.Contains(lower, j.id) {
			selected = append(selected, j.id)
		}
	}

	if len(selected) == 0 {
		switch {
		case containsAny(lower, incorporationTopic):
			selected = incorporationDefault
		case containsAny(lower, taxTopic):
			selected = taxDefault
		}
	}
	if len(selected) > maxJurisdictions {
		selected = selected[:maxJurisdictions]
	}

	parts := make([]string, 0, len(selected))
	for _, id := range selected {
		entry, ok := Get(id)
		if !ok {
			continue
		}
		name := displayNames[id]

		var fact string
		switch {
		case containsAny(lower, taxationField):
			fact = entry.Taxation
		case containsAny(lower, incorporationField):
			fact = entry.Incorporation
		default:
			fact = entry.Benefits
		}
		parts = append(parts, name+": "+fact)
	}

	if len(parts) == 0 {
		return Fallback
	}
	return strings.Join(parts, " | ")
}

func containsAny(lower string, words []string) bool {
	for _, w := range words {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}
