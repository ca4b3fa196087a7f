package catalog

import (
	"context"
	"real-estate-catalog/internal/models"
	"sort"
)

// ImageFetcher loads the image rows of many properties in one call
type ImageFetcher interface {
	ImagesFor(ctx context.Context, propertyIDs []string) ([]models.PropertyImage, error)
}

// Attach fills Gallery and PrimaryImage on every parent using exactly one
// fetcher call, never one per parent. Zero parents means zero calls.
func Attach(ctx context.Context, fetcher ImageFetcher, parents []models.Property) ([]models.Property, error) {
	if len(parents) == 0 {
		return parents, nil
	}

	ids := make([]string, len(parents))
	for i := range parents {
		ids[i] = parents[i].ID
	}

	images, err := fetcher.ImagesFor(ctx, ids)
	if err != nil {
		return parents, err
	}

	byParent := GroupImages(images)
	for i := range parents {
		gallery := byParent[parents[i].ID]
		parents[i].Gallery = gallery
		parents[i].PrimaryImage = PrimaryImage(gallery)
	}
	return parents, nil
}

// GroupImages groups rows by property and sorts each group by display order
func GroupImages(images []models.PropertyImage) map[string][]models.PropertyImage {
	byParent := make(map[string][]models.PropertyImage)
	for _, img := range images {
		byParent[img.PropertyID] = append(byParent[img.PropertyID], img)
	}
	for _, group := range byParent {
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Order < group[j].Order
		})
	}
	return byParent
}

// PrimaryImage picks the flagged image of an ordered gallery, else the first
// by order, else "". With several flagged images the first by order wins.
func PrimaryImage(gallery []models.PropertyImage) string {
	for _, img := range gallery {
		if img.IsPrimary {
			return img.URL
		}
	}
	if len(gallery) > 0 {
		return gallery[0].URL
	}
	return ""
}
