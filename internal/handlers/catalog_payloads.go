package handlers

import (
	domain "github.com/showcase/api/internal/domain"
)

type themePayload struct {
	PrimaryColor      string `json:"primaryColor,omitempty" validate:"omitempty,max=16"`
	AccentColor       string `json:"accentColor,omitempty" validate:"omitempty,max=16"`
	BackgroundColor   string `json:"backgroundColor,omitempty" validate:"omitempty,max=16"`
	TextColor         string `json:"textColor,omitempty" validate:"omitempty,max=16"`
	Font              string `json:"font,omitempty" validate:"omitempty,max=32"`
	FontSizeHeading   string `json:"fontSizeHeading,omitempty" validate:"omitempty,max=32"`
	FontSizeBody      string `json:"fontSizeBody,omitempty" validate:"omitempty,max=32"`
	CardStyle         string `json:"cardStyle,omitempty" validate:"omitempty,max=32"`
	Spacing           string `json:"spacing,omitempty" validate:"omitempty,max=32"`
	LogoStyle         string `json:"logoStyle,omitempty" validate:"omitempty,max=32"`
	BackgroundPattern string `json:"backgroundPattern,omitempty" validate:"omitempty,max=32"`
}

type itemPayload struct {
	ID          string `json:"id,omitempty" validate:"omitempty,max=64"`
	Name        string `json:"name" validate:"max=200"`
	Description string `json:"description,omitempty" validate:"omitempty,max=2000"`
	Price       string `json:"price,omitempty" validate:"omitempty,max=64"`
	Category    string `json:"category,omitempty" validate:"omitempty,max=100"`
	ImageURL    string `json:"imageUrl,omitempty" validate:"omitempty,url,max=2048"`
	IsAvailable *bool  `json:"isAvailable,omitempty"`
	Notes       string `json:"notes,omitempty" validate:"omitempty,max=500"`
}

// catalogRequest is the full desired state of a catalog sent by the editor.
type catalogRequest struct {
	Slug           string        `json:"slug,omitempty" validate:"omitempty,max=120"`
	BusinessName   string        `json:"businessName" validate:"max=200"`
	Description    string        `json:"description,omitempty" validate:"omitempty,max=5000"`
	LogoURL        string        `json:"logoUrl,omitempty" validate:"omitempty,url,max=2048"`
	WhatsappNumber string        `json:"whatsappNumber,omitempty" validate:"omitempty,max=32"`
	PhoneNumber    string        `json:"phoneNumber,omitempty" validate:"omitempty,max=32"`
	Address        string        `json:"address,omitempty" validate:"omitempty,max=500"`
	Template       string        `json:"template,omitempty" validate:"omitempty,max=32"`
	Theme          themePayload  `json:"theme"`
	Items          []itemPayload `json:"items" validate:"max=500,dive"`
	IsActive       *bool         `json:"isActive,omitempty"`
}

type engagementPayload struct {
	Views           int64 `json:"views"`
	ItemClicks      int64 `json:"itemClicks"`
	CallClicks      int64 `json:"callClicks"`
	WhatsappClicks  int64 `json:"whatsappClicks"`
	DirectionClicks int64 `json:"directionClicks"`
}

type sharePayload struct {
	Whatsapp int64 `json:"whatsapp"`
	Facebook int64 `json:"facebook"`
	Twitter  int64 `json:"twitter"`
	Copy     int64 `json:"copy"`
}

type catalogPayload struct {
	ID              string            `json:"id"`
	UserID          string            `json:"userId,omitempty"`
	Slug            string            `json:"slug"`
	BusinessName    string            `json:"businessName"`
	Description     string            `json:"description,omitempty"`
	LogoURL         string            `json:"logoUrl,omitempty"`
	WhatsappNumber  string            `json:"whatsappNumber,omitempty"`
	PhoneNumber     string            `json:"phoneNumber,omitempty"`
	Address         string            `json:"address,omitempty"`
	Template        string            `json:"template"`
	Theme           themePayload      `json:"theme"`
	Items           []itemPayload     `json:"items"`
	IsActive        bool              `json:"isActive"`
	CreatedAt       int64             `json:"createdAt,omitempty"`
	LastUpdated     int64             `json:"lastUpdated,omitempty"`
	EngagementStats engagementPayload `json:"engagementStats"`
	ShareStats      sharePayload      `json:"shareStats"`
}

type resolvedThemePayload struct {
	Template          string `json:"template"`
	PrimaryColor      string `json:"primaryColor"`
	AccentColor       string `json:"accentColor"`
	BackgroundColor   string `json:"backgroundColor"`
	TextColor         string `json:"textColor"`
	Font              string `json:"font"`
	FontFamily        string `json:"fontFamily"`
	FontSizeHeading   string `json:"fontSizeHeading"`
	FontSizeBody      string `json:"fontSizeBody"`
	CardStyle         string `json:"cardStyle"`
	Spacing           string `json:"spacing"`
	LogoStyle         string `json:"logoStyle"`
	BackgroundPattern string `json:"backgroundPattern"`
	ShowLogo          bool   `json:"showLogo"`
	LogoURL           string `json:"logoUrl,omitempty"`
	Classes           struct {
		Header string `json:"header"`
		Text   string `json:"text"`
		Accent string `json:"accent"`
		Card   string `json:"card"`
	} `json:"classes"`
}

type categoryGroupPayload struct {
	Category string        `json:"category"`
	Items    []itemPayload `json:"items"`
}

func (t themePayload) toDomain() domain.CatalogThemeConfig {
	return domain.CatalogThemeConfig{
		PrimaryColor:      t.PrimaryColor,
		AccentColor:       t.AccentColor,
		BackgroundColor:   t.BackgroundColor,
		TextColor:         t.TextColor,
		Font:              domain.FontFamily(t.Font),
		FontSizeHeading:   domain.FontSizeHeading(t.FontSizeHeading),
		FontSizeBody:      domain.FontSizeBody(t.FontSizeBody),
		CardStyle:         domain.CardStyle(t.CardStyle),
		Spacing:           domain.Spacing(t.Spacing),
		LogoStyle:         domain.LogoStyle(t.LogoStyle),
		BackgroundPattern: domain.BackgroundPattern(t.BackgroundPattern),
	}
}

func newThemePayload(theme domain.CatalogThemeConfig) themePayload {
	return themePayload{
		PrimaryColor:      theme.PrimaryColor,
		AccentColor:       theme.AccentColor,
		BackgroundColor:   theme.BackgroundColor,
		TextColor:         theme.TextColor,
		Font:              string(theme.Font),
		FontSizeHeading:   string(theme.FontSizeHeading),
		FontSizeBody:      string(theme.FontSizeBody),
		CardStyle:         string(theme.CardStyle),
		Spacing:           string(theme.Spacing),
		LogoStyle:         string(theme.LogoStyle),
		BackgroundPattern: string(theme.BackgroundPattern),
	}
}

// toDomain treats a missing isAvailable as available.
func (p itemPayload) toDomain() domain.CatalogItem {
	available := true
	if p.IsAvailable != nil {
		available = *p.IsAvailable
	}
	return domain.CatalogItem{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Category:    p.Category,
		ImageURL:    p.ImageURL,
		IsAvailable: available,
		Notes:       p.Notes,
	}
}

func newItemPayloads(items []domain.CatalogItem) []itemPayload {
	out := make([]itemPayload, 0, len(items))
	for _, item := range items {
		available := item.IsAvailable
		out = append(out, itemPayload{
			ID:          item.ID,
			Name:        item.Name,
			Description: item.Description,
			Price:       item.Price,
			Category:    item.Category,
			ImageURL:    item.ImageURL,
			IsAvailable: &available,
			Notes:       item.Notes,
		})
	}
	return out
}

func (r catalogRequest) items() []domain.CatalogItem {
	out := make([]domain.CatalogItem, 0, len(r.Items))
	for _, item := range r.Items {
		out = append(out, item.toDomain())
	}
	return out
}

func newCatalogPayload(catalog domain.Catalog) catalogPayload {
	return catalogPayload{
		ID:             catalog.ID,
		UserID:         catalog.UserID,
		Slug:           catalog.Slug,
		BusinessName:   catalog.BusinessName,
		Description:    catalog.Description,
		LogoURL:        catalog.LogoURL,
		WhatsappNumber: catalog.WhatsappNumber,
		PhoneNumber:    catalog.PhoneNumber,
		Address:        catalog.Address,
		Template:       string(catalog.Template),
		Theme:          newThemePayload(catalog.Theme),
		Items:          newItemPayloads(catalog.Items),
		IsActive:       catalog.IsActive,
		CreatedAt:      epochMillis(catalog.CreatedAt),
		LastUpdated:    epochMillis(catalog.LastUpdated),
		EngagementStats: engagementPayload{
			Views:           catalog.EngagementStats.Views,
			ItemClicks:      catalog.EngagementStats.ItemClicks,
			CallClicks:      catalog.EngagementStats.CallClicks,
			WhatsappClicks:  catalog.EngagementStats.WhatsappClicks,
			DirectionClicks: catalog.EngagementStats.DirectionClicks,
		},
		ShareStats: sharePayload{
			Whatsapp: catalog.ShareStats.Whatsapp,
			Facebook: catalog.ShareStats.Facebook,
			Twitter:  catalog.ShareStats.Twitter,
			Copy:     catalog.ShareStats.Copy,
		},
	}
}

func newCatalogPayloads(catalogs []domain.Catalog) []catalogPayload {
	out := make([]catalogPayload, 0, len(catalogs))
	for _, catalog := range catalogs {
		out = append(out, newCatalogPayload(catalog))
	}
	return out
}

func newResolvedThemePayload(theme domain.ResolvedTheme) resolvedThemePayload {
	payload := resolvedThemePayload{
		Template:          string(theme.Template),
		PrimaryColor:      theme.PrimaryColor,
		AccentColor:       theme.AccentColor,
		BackgroundColor:   theme.BackgroundColor,
		TextColor:         theme.TextColor,
		Font:              string(theme.Font),
		FontFamily:        theme.Font.FontFamilyName(),
		FontSizeHeading:   string(theme.FontSizeHeading),
		FontSizeBody:      string(theme.FontSizeBody),
		CardStyle:         string(theme.CardStyle),
		Spacing:           string(theme.Spacing),
		LogoStyle:         string(theme.LogoStyle),
		BackgroundPattern: string(theme.BackgroundPattern),
		ShowLogo:          theme.ShowLogo,
		LogoURL:           theme.LogoURL,
	}
	payload.Classes.Header = theme.Classes.Header
	payload.Classes.Text = theme.Classes.Text
	payload.Classes.Accent = theme.Classes.Accent
	payload.Classes.Card = theme.Classes.Card
	return payload
}

func newCategoryGroupPayloads(groups []domain.CategoryGroup) []categoryGroupPayload {
	out := make([]categoryGroupPayload, 0, len(groups))
	for _, group := range groups {
		out = append(out, categoryGroupPayload{Category: group.Category, Items: newItemPayloads(group.Items)})
	}
	return out
}
