package domain

import (
	"net/url"
	"strings"
)

// Attribution carries optional pass-through tracking parameters appended to public links.
type Attribution struct {
	UTMSource string
	UTMMedium string
	Ref       string
}

// Empty reports whether no attribution parameter is set.
func (a Attribution) Empty() bool {
	return strings.TrimSpace(a.UTMSource) == "" && strings.TrimSpace(a.UTMMedium) == "" && strings.TrimSpace(a.Ref) == ""
}

// PublicCatalogURL returns <origin>/#/view/<slug>, suffixed with utm_source, utm_medium
// and ref query parameters when present. Parameter values are not validated.
func PublicCatalogURL(origin, slug string, attribution Attribution) string {
	base := strings.TrimRight(strings.TrimSpace(origin), "/") + "/#/view/" + slug
	if attribution.Empty() {
		return base
	}
	params := make([]string, 0, 3)
	add := func(key, value string) {
		if value = strings.TrimSpace(value); value != "" {
			params = append(params, key+"="+encodeComponent(value))
		}
	}
	add("utm_source", attribution.UTMSource)
	add("utm_medium", attribution.UTMMedium)
	add("ref", attribution.Ref)
	return base + "?" + strings.Join(params, "&")
}

// ShareLinks are ready-to-open distribution URLs for one catalog link.
type ShareLinks struct {
	URL      string
	Whatsapp string
	Facebook string
	Twitter  string
}

// BuildShareLinks renders channel share URLs for the given public link.
func BuildShareLinks(businessName, publicURL string) ShareLinks {
	whatsappText := "Check out our new digital catalog for " + businessName + ": " + publicURL
	twitterText := "Our digital menu is live! Check it out at " + businessName
	return ShareLinks{
		URL:      publicURL,
		Whatsapp: "https://wa.me/?text=" + encodeComponent(whatsappText),
		Facebook: "https://www.facebook.com/sharer/sharer.php?u=" + encodeComponent(publicURL),
		Twitter:  "https://twitter.com/intent/tweet?text=" + encodeComponent(twitterText) + "&url=" + encodeComponent(publicURL),
	}
}

// componentUnescaper restores the marks encodeURIComponent leaves alone.
var componentUnescaper = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// encodeComponent escapes like a browser's encodeURIComponent.
func encodeComponent(value string) string {
	return componentUnescaper.Replace(url.QueryEscape(value))
}
