package validation

import (
	"fmt"

	"github.com/iudanet/tabkeeper/pkg/api"
)

// MaxCategories ограничивает размер dataset сверху; практический потолок,
// а не бизнес-правило
const MaxCategories = 500

// ValidateDataset проверяет структурную целостность dataset перед
// сохранением: категории имеют непустые уникальные ID, списки закладок
// ссылаются только на существующие категории.
func ValidateDataset(d *api.Dataset) error {
	if d == nil {
		return fmt.Errorf("dataset cannot be nil")
	}

	if len(d.Categories) > MaxCategories {
		return fmt.Errorf("too many categories: %d (max %d)", len(d.Categories), MaxCategories)
	}

	seen := make(map[string]bool, len(d.Categories))
	for i, cat := range d.Categories {
		if cat.ID == "" {
			return fmt.Errorf("category %d has empty id", i)
		}
		if seen[cat.ID] {
			return fmt.Errorf("duplicate category id: %s", cat.ID)
		}
		seen[cat.ID] = true
	}

	for catID := range d.Sites {
		if !seen[catID] {
			return fmt.Errorf("sites reference unknown category: %s", catID)
		}
	}

	return nil
}
