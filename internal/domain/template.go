package domain

import (
	"fmt"
	"strings"
)

// Template is the closed set of visual styles a catalog can be rendered with.
type Template string

const (
	TemplateMinimalist Template = "minimalist"
	TemplateGallery    Template = "gallery"
	TemplateClassic    Template = "classic"
	TemplateModern     Template = "modern"
	TemplateBold       Template = "bold"
)

// DefaultTemplate is applied to catalogs that were saved without a template.
const DefaultTemplate = TemplateModern

// Templates lists every template in display order.
func Templates() []Template {
	return []Template{TemplateMinimalist, TemplateGallery, TemplateClassic, TemplateModern, TemplateBold}
}

// Valid reports whether t is one of the declared templates.
func (t Template) Valid() bool {
	switch t {
	case TemplateMinimalist, TemplateGallery, TemplateClassic, TemplateModern, TemplateBold:
		return true
	}
	return false
}

// ParseTemplate normalises raw input into a Template. Empty input maps to DefaultTemplate.
func ParseTemplate(raw string) (Template, error) {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	if trimmed == "" {
		return DefaultTemplate, nil
	}
	t := Template(trimmed)
	if !t.Valid() {
		return "", fmt.Errorf("unknown template %q", raw)
	}
	return t, nil
}

// TemplateClasses holds the utility classes a template contributes to the viewer.
type TemplateClasses struct {
	Header string
	Text   string
	Accent string
	Card   string
}

// Classes returns the fixed class set for t. Unknown values fall back to DefaultTemplate.
func (t Template) Classes() TemplateClasses {
	switch t.orDefault() {
	case TemplateModern:
		return TemplateClasses{Header: "bg-indigo-600", Text: "text-gray-900", Accent: "indigo", Card: "bg-white shadow-sm border border-gray-100"}
	case TemplateClassic:
		return TemplateClasses{Header: "bg-stone-800", Text: "text-stone-900", Accent: "stone", Card: "bg-stone-50 border border-stone-200"}
	case TemplateMinimalist:
		return TemplateClasses{Header: "bg-black", Text: "text-black", Accent: "gray", Card: "bg-white border-b border-gray-100"}
	case TemplateBold:
		return TemplateClasses{Header: "bg-pink-500", Text: "text-gray-900", Accent: "pink", Card: "bg-white shadow-md border-t-4 border-pink-500"}
	case TemplateGallery:
		return TemplateClasses{Header: "bg-slate-900", Text: "text-white", Accent: "slate", Card: "bg-slate-800 border border-slate-700"}
	}
	panic(fmt.Sprintf("domain: template %q has no class set", t))
}

// Preset returns the template-level theme defaults. Fields left empty fall through to the
// global default during resolution.
func (t Template) Preset() CatalogThemeConfig {
	switch t.orDefault() {
	case TemplateModern:
		return CatalogThemeConfig{
			PrimaryColor: "#4F46E5",
			AccentColor:  "#6366F1",
			TextColor:    "#111827",
			CardStyle:    CardStyleShadow,
		}
	case TemplateClassic:
		return CatalogThemeConfig{
			PrimaryColor:    "#292524",
			AccentColor:     "#78716C",
			BackgroundColor: "#FAFAF9",
			TextColor:       "#1C1917",
			Font:            FontSerif,
			CardStyle:       CardStyleBorder,
			LogoStyle:       LogoStyleSquare,
		}
	case TemplateMinimalist:
		return CatalogThemeConfig{
			PrimaryColor:    "#000000",
			AccentColor:     "#6B7280",
			TextColor:       "#000000",
			FontSizeHeading: FontSizeHeadingSmall,
			CardStyle:       CardStyleFlat,
			Spacing:         SpacingSpacious,
		}
	case TemplateBold:
		return CatalogThemeConfig{
			PrimaryColor:    "#EC4899",
			AccentColor:     "#F472B6",
			TextColor:       "#111827",
			FontSizeHeading: FontSizeHeadingLarge,
			FontSizeBody:    FontSizeBodyLarge,
			CardStyle:       CardStyleShadow,
		}
	case TemplateGallery:
		return CatalogThemeConfig{
			PrimaryColor:    "#0F172A",
			AccentColor:     "#64748B",
			BackgroundColor: "#1E293B",
			TextColor:       "#FFFFFF",
			CardStyle:       CardStyleBorder,
			Spacing:         SpacingCompact,
		}
	}
	panic(fmt.Sprintf("domain: template %q has no preset", t))
}

func (t Template) orDefault() Template {
	if t.Valid() {
		return t
	}
	return DefaultTemplate
}
