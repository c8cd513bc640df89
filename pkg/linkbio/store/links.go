package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/linkbio/linkbio/pkg/linkbio/changefeed"
	"github.com/linkbio/linkbio/pkg/linkbio/models"
)

// ListLinks returns a profile's links ordered by position
func (s *Store) ListLinks(ctx context.Context, profileID uint, activeOnly bool) ([]models.Link, error) {
	q := s.db.WithContext(ctx).Where("profile_id = ?", profileID)
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var links []models.Link
	if err := q.Order("position ASC, id ASC").Find(&links).Error; err != nil {
		return nil, classify("list links", err)
	}
	return links, nil
}

// GetLink looks a link up by id
func (s *Store) GetLink(ctx context.Context, id uint) (models.Link, error) {
	var l models.Link
	if err := s.db.WithContext(ctx).First(&l, id).Error; err != nil {
		return models.Link{}, classify("get link", err)
	}
	return l, nil
}

// CreateLink appends a link at the end of the profile's list. The position
// is computed and written in the same transaction.
func (s *Store) CreateLink(ctx context.Context, profileID uint, in LinkInput) (models.Link, error) {
	const op = "create link"
	if err := s.check(op, in); err != nil {
		return models.Link{}, err
	}
	linkType := in.Type
	if linkType == "" {
		linkType = models.LinkTypeLink
	}
	link := models.Link{
		ProfileID:   profileID,
		Title:       in.Title,
		URL:         in.URL,
		Icon:        in.Icon,
		Description: in.Description,
		IsActive:    boolOr(in.IsActive, true),
		Type:        linkType,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Select("id").First(&models.Profile{}, profileID).Error; err != nil {
			return err
		}
		var count int64
		if err := tx.Model(&models.Link{}).Where("profile_id = ?", profileID).Count(&count).Error; err != nil {
			return err
		}
		link.Position = int(count)
		return tx.Create(&link).Error
	})
	if err != nil {
		return models.Link{}, classify(op, err)
	}
	s.publish(ctx, change{changefeed.TableLinks, changefeed.ActionInsert, profileID, link, nil})
	return link, nil
}

// UpdateLink applies a patch
func (s *Store) UpdateLink(ctx context.Context, id uint, patch LinkPatch) (models.Link, error) {
	const op = "update link"
	if err := s.check(op, patch); err != nil {
		return models.Link{}, err
	}
	var link models.Link
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&link, id).Error; err != nil {
			return err
		}
		if patch.Title != nil {
			link.Title = *patch.Title
		}
		if patch.URL != nil {
			link.URL = *patch.URL
		}
		if patch.Icon != nil {
			link.Icon = *patch.Icon
		}
		if patch.Description != nil {
			link.Description = *patch.Description
		}
		if patch.Type != nil {
			link.Type = *patch.Type
		}
		if patch.IsActive != nil {
			link.IsActive = *patch.IsActive
		}
		return tx.Save(&link).Error
	})
	if err != nil {
		return models.Link{}, classify(op, err)
	}
	s.publish(ctx, change{changefeed.TableLinks, changefeed.ActionUpdate, link.ProfileID, link, nil})
	return link, nil
}

// DeleteLink soft-deletes a link and closes the gap it leaves in the
// positions of the remaining links. It returns the deleted link.
func (s *Store) DeleteLink(ctx context.Context, id uint) (models.Link, error) {
	const op = "delete link"
	var link models.Link
	var shifted []models.Link
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&link, id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&link).Error; err != nil {
			return err
		}
		var rest []models.Link
		if err := tx.Where("profile_id = ?", link.ProfileID).Order("position ASC, id ASC").Find(&rest).Error; err != nil {
			return err
		}
		for i := range rest {
			if rest[i].Position == i {
				continue
			}
			if err := tx.Model(&rest[i]).Update("position", i).Error; err != nil {
				return err
			}
			rest[i].Position = i
			shifted = append(shifted, rest[i])
		}
		return nil
	})
	if err != nil {
		return models.Link{}, classify(op, err)
	}

	changes := []change{{changefeed.TableLinks, changefeed.ActionDelete, link.ProfileID, nil, link}}
	for _, l := range shifted {
		changes = append(changes, change{changefeed.TableLinks, changefeed.ActionUpdate, l.ProfileID, l, nil})
	}
	s.publish(ctx, changes...)
	return link, nil
}

// ReorderLinks writes position = index for every id in one transaction.
// orderedIDs must list each of the profile's links exactly once; otherwise
// nothing is written.
func (s *Store) ReorderLinks(ctx context.Context, profileID uint, orderedIDs []uint) error {
	const op = "reorder links"
	var links []models.Link
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current []uint
		if err := tx.Model(&models.Link{}).Where("profile_id = ?", profileID).Pluck("id", &current).Error; err != nil {
			return err
		}
		if err := checkPermutation(current, orderedIDs); err != nil {
			return err
		}
		for i, id := range orderedIDs {
			err := tx.Model(&models.Link{}).
				Where("id = ? AND profile_id = ?", id, profileID).
				Update("position", i).Error
			if err != nil {
				return err
			}
		}
		return tx.Where("profile_id = ?", profileID).Order("position ASC").Find(&links).Error
	})
	if err != nil {
		return classify(op, err)
	}

	changes := make([]change, 0, len(links))
	for _, l := range links {
		changes = append(changes, change{changefeed.TableLinks, changefeed.ActionUpdate, profileID, l, nil})
	}
	s.publish(ctx, changes...)
	return nil
}

func checkPermutation(current, ordered []uint) error {
	if len(current) != len(ordered) {
		return newError(KindInvalid, "reorder links",
			fmt.Errorf("expected %d link ids, got %d", len(current), len(ordered)))
	}
	want := make(map[uint]bool, len(current))
	for _, id := range current {
		want[id] = true
	}
	for _, id := range ordered {
		if !want[id] {
			return newError(KindInvalid, "reorder links",
				fmt.Errorf("link %d is missing, repeated or owned by another profile", id))
		}
		delete(want, id)
	}
	return nil
}
