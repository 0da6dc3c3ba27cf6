package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// FontFamily is the typeface token applied to the catalog body.
type FontFamily string

const (
	FontSans  FontFamily = "font-sans"
	FontSerif FontFamily = "font-serif"
	FontMono  FontFamily = "font-mono"
)

// FontSizeHeading is the heading size token.
type FontSizeHeading string

const (
	FontSizeHeadingSmall  FontSizeHeading = "text-2xl"
	FontSizeHeadingMedium FontSizeHeading = "text-3xl"
	FontSizeHeadingLarge  FontSizeHeading = "text-4xl"
)

// FontSizeBody is the body text size token.
type FontSizeBody string

const (
	FontSizeBodySmall  FontSizeBody = "text-sm"
	FontSizeBodyMedium FontSizeBody = "text-base"
	FontSizeBodyLarge  FontSizeBody = "text-lg"
)

// CardStyle controls item card decoration.
type CardStyle string

const (
	CardStyleRounded CardStyle = "rounded"
	CardStyleShadow  CardStyle = "shadow"
	CardStyleBorder  CardStyle = "border"
	CardStyleFlat    CardStyle = "flat"
)

// Spacing controls the density of the item grid.
type Spacing string

const (
	SpacingCompact     Spacing = "compact"
	SpacingComfortable Spacing = "comfortable"
	SpacingSpacious    Spacing = "spacious"
)

// LogoStyle controls how the business logo is framed. LogoStyleHidden suppresses it.
type LogoStyle string

const (
	LogoStyleCircle LogoStyle = "circle"
	LogoStyleSquare LogoStyle = "square"
	LogoStyleHidden LogoStyle = "hidden"
)

// BackgroundPattern decorates the page background.
type BackgroundPattern string

const (
	BackgroundPatternNone  BackgroundPattern = "none"
	BackgroundPatternDots  BackgroundPattern = "dots"
	BackgroundPatternGrid  BackgroundPattern = "grid"
	BackgroundPatternWaves BackgroundPattern = "waves"
)

// CatalogThemeConfig is a sparse override object. An empty field means "not set here".
type CatalogThemeConfig struct {
	PrimaryColor      string
	AccentColor       string
	BackgroundColor   string
	TextColor         string
	Font              FontFamily
	FontSizeHeading   FontSizeHeading
	FontSizeBody      FontSizeBody
	CardStyle         CardStyle
	Spacing           Spacing
	LogoStyle         LogoStyle
	BackgroundPattern BackgroundPattern
}

// DefaultTheme is the system-wide fallback for every theme field.
var DefaultTheme = CatalogThemeConfig{
	PrimaryColor:      "#2563EB",
	AccentColor:       "#F97316",
	BackgroundColor:   "#FFFFFF",
	TextColor:         "#0F172A",
	Font:              FontSans,
	FontSizeHeading:   FontSizeHeadingMedium,
	FontSizeBody:      FontSizeBodyMedium,
	CardStyle:         CardStyleRounded,
	Spacing:           SpacingComfortable,
	LogoStyle:         LogoStyleCircle,
	BackgroundPattern: BackgroundPatternNone,
}

var colorPattern = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6}|[0-9a-fA-F]{8})$`)

// ThemeFieldError reports an invalid theme value.
type ThemeFieldError struct {
	Field string
	Value string
}

func (e *ThemeFieldError) Error() string {
	return fmt.Sprintf("theme.%s: invalid value %q", e.Field, e.Value)
}

// Validate checks every set field against its allowed values.
func (c CatalogThemeConfig) Validate() error {
	colors := []struct {
		field string
		value string
	}{
		{"primaryColor", c.PrimaryColor},
		{"accentColor", c.AccentColor},
		{"backgroundColor", c.BackgroundColor},
		{"textColor", c.TextColor},
	}
	for _, color := range colors {
		if color.value != "" && !colorPattern.MatchString(color.value) {
			return &ThemeFieldError{Field: color.field, Value: color.value}
		}
	}
	if !oneOf(c.Font, FontSans, FontSerif, FontMono) {
		return &ThemeFieldError{Field: "font", Value: string(c.Font)}
	}
	if !oneOf(c.FontSizeHeading, FontSizeHeadingSmall, FontSizeHeadingMedium, FontSizeHeadingLarge) {
		return &ThemeFieldError{Field: "fontSizeHeading", Value: string(c.FontSizeHeading)}
	}
	if !oneOf(c.FontSizeBody, FontSizeBodySmall, FontSizeBodyMedium, FontSizeBodyLarge) {
		return &ThemeFieldError{Field: "fontSizeBody", Value: string(c.FontSizeBody)}
	}
	if !oneOf(c.CardStyle, CardStyleRounded, CardStyleShadow, CardStyleBorder, CardStyleFlat) {
		return &ThemeFieldError{Field: "cardStyle", Value: string(c.CardStyle)}
	}
	if !oneOf(c.Spacing, SpacingCompact, SpacingComfortable, SpacingSpacious) {
		return &ThemeFieldError{Field: "spacing", Value: string(c.Spacing)}
	}
	if !oneOf(c.LogoStyle, LogoStyleCircle, LogoStyleSquare, LogoStyleHidden) {
		return &ThemeFieldError{Field: "logoStyle", Value: string(c.LogoStyle)}
	}
	if !oneOf(c.BackgroundPattern, BackgroundPatternNone, BackgroundPatternDots, BackgroundPatternGrid, BackgroundPatternWaves) {
		return &ThemeFieldError{Field: "backgroundPattern", Value: string(c.BackgroundPattern)}
	}
	return nil
}

// oneOf accepts the empty value, which means "unset".
func oneOf[T ~string](value T, allowed ...T) bool {
	if value == "" {
		return true
	}
	for _, candidate := range allowed {
		if value == candidate {
			return true
		}
	}
	return false
}

// ResolvedTheme is a fully populated theme ready for rendering.
type ResolvedTheme struct {
	Template          Template
	PrimaryColor      string
	AccentColor       string
	BackgroundColor   string
	TextColor         string
	Font              FontFamily
	FontSizeHeading   FontSizeHeading
	FontSizeBody      FontSizeBody
	CardStyle         CardStyle
	Spacing           Spacing
	LogoStyle         LogoStyle
	BackgroundPattern BackgroundPattern
	Classes           TemplateClasses
	ShowLogo          bool
	LogoURL           string
}

// ResolveTheme computes every visual field using the order catalog theme, then template
// preset, then DefaultTheme. A hidden logo style suppresses the logo even when a URL is set.
func ResolveTheme(catalog Catalog) ResolvedTheme {
	template := catalog.Template.orDefault()
	own := catalog.Theme
	preset := template.Preset()

	resolved := ResolvedTheme{
		Template:          template,
		PrimaryColor:      firstSet(own.PrimaryColor, preset.PrimaryColor, DefaultTheme.PrimaryColor),
		AccentColor:       firstSet(own.AccentColor, preset.AccentColor, DefaultTheme.AccentColor),
		BackgroundColor:   firstSet(own.BackgroundColor, preset.BackgroundColor, DefaultTheme.BackgroundColor),
		TextColor:         firstSet(own.TextColor, preset.TextColor, DefaultTheme.TextColor),
		Font:              firstSet(own.Font, preset.Font, DefaultTheme.Font),
		FontSizeHeading:   firstSet(own.FontSizeHeading, preset.FontSizeHeading, DefaultTheme.FontSizeHeading),
		FontSizeBody:      firstSet(own.FontSizeBody, preset.FontSizeBody, DefaultTheme.FontSizeBody),
		CardStyle:         firstSet(own.CardStyle, preset.CardStyle, DefaultTheme.CardStyle),
		Spacing:           firstSet(own.Spacing, preset.Spacing, DefaultTheme.Spacing),
		LogoStyle:         firstSet(own.LogoStyle, preset.LogoStyle, DefaultTheme.LogoStyle),
		BackgroundPattern: firstSet(own.BackgroundPattern, preset.BackgroundPattern, DefaultTheme.BackgroundPattern),
		Classes:           template.Classes(),
	}
	resolved.ShowLogo = resolved.LogoStyle != LogoStyleHidden && strings.TrimSpace(catalog.LogoURL) != ""
	if resolved.ShowLogo {
		resolved.LogoURL = catalog.LogoURL
	}
	return resolved
}

func firstSet[T ~string](instance, template, global T) T {
	if strings.TrimSpace(string(instance)) != "" {
		return instance
	}
	if strings.TrimSpace(string(template)) != "" {
		return template
	}
	return global
}

// FontFamilyName maps the font token to the web font used by the viewer.
func (f FontFamily) FontFamilyName() string {
	switch f {
	case FontSerif:
		return "Playfair Display"
	case FontMono:
		return "JetBrains Mono"
	default:
		return "Inter"
	}
}

// CSSVariables renders the resolved colours and font as a :root custom property block.
func (r ResolvedTheme) CSSVariables() string {
	var b strings.Builder
	b.WriteString(":root {\n")
	fmt.Fprintf(&b, "  --primary-color: %s;\n", r.PrimaryColor)
	fmt.Fprintf(&b, "  --accent-color: %s;\n", r.AccentColor)
	fmt.Fprintf(&b, "  --bg-color: %s;\n", r.BackgroundColor)
	fmt.Fprintf(&b, "  --text-color: %s;\n", r.TextColor)
	fmt.Fprintf(&b, "  --font-family: %s;\n", r.Font.FontFamilyName())
	b.WriteString("}\n")
	return b.String()
}
