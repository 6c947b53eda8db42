// internal/core/services/listing.go
package services

import (
	"strings"
	"text/template"

	"github.com/ammerola/resell-stock/internal/core/domain"
)

// Marketplace listing platforms.
const (
	PlatformVinted    = "vinted"
	PlatformLeboncoin = "leboncoin"
)

var listingTemplates = map[string]*template.Template{
	PlatformVinted: template.Must(template.New(PlatformVinted).Parse(
		"{{.Name}}\n\nCondition: {{.Condition}}\nPrice: {{.Price}}€\n\n{{.Body}}\n\n---\n📦 New\n✅ {{.Condition}}\n💰 Price negotiable\n📮 Fast shipping")),
	PlatformLeboncoin: template.Must(template.New(PlatformLeboncoin).Parse(
		"{{.Name}}\n\nPrice: {{.Price}}€\nCondition: {{.Condition}}\n\n{{.Body}}\n\nFeel free to contact me.")),
}

// RenderListing builds the copy-paste listing text of item for platform.
func RenderListing(item *domain.Item, platform string) (string, error) {
	tmpl, ok := listingTemplates[strings.ToLower(strings.TrimSpace(platform))]
	if !ok {
		return "", domain.Invalid("platform", "unsupported platform %q", platform)
	}

	condition := item.Condition
	if condition == "" {
		condition = string(item.StockState)
	}
	body := item.Notes
	if strings.TrimSpace(body) == "" {
		body = "Item in " + strings.ToLower(condition) + " condition"
	}

	var sb strings.Builder
	err := tmpl.Execute(&sb, struct {
		Name, Condition, Price, Body string
	}{
		Name:      item.Name,
		Condition: condition,
		Price:     item.ResalePrice.StringFixed(2),
		Body:      body,
	})
	if err != nil {
		return "", err
	}
	return sb.String(), nil
}
