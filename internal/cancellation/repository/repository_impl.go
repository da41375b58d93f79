package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	cancellationdomain "github.com/saasykit/atlas/internal/cancellation/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() cancellationdomain.Repository {
	return &repo{}
}

func (r *repo) InsertCategory(ctx context.Context, db *gorm.DB, category *cancellationdomain.Category) error {
	return db.WithContext(ctx).Create(category).Error
}

func (r *repo) FindCategoryByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*cancellationdomain.Category, error) {
	var category cancellationdomain.Category
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, active, allow_message, require_message, created_at, updated_at
		 FROM cancellation_categories WHERE id = ?`,
		id,
	).Scan(&category).Error
	if err != nil {
		return nil, err
	}
	if category.ID == 0 {
		return nil, nil
	}
	return &category, nil
}

func (r *repo) ListCategories(ctx context.Context, db *gorm.DB, activeOnly bool) ([]cancellationdomain.Category, error) {
	stmt := db.WithContext(ctx).Model(&cancellationdomain.Category{})
	if activeOnly {
		stmt = stmt.Where("active = ?", true)
	}
	var categories []cancellationdomain.Category
	err := stmt.Order("name ASC").Find(&categories).Error
	return categories, err
}

func (r *repo) UpdateCategory(ctx context.Context, db *gorm.DB, category *cancellationdomain.Category) error {
	return db.WithContext(ctx).Save(category).Error
}

func (r *repo) DeleteCategory(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	if err := db.WithContext(ctx).Exec(`DELETE FROM cancellation_reasons WHERE category_id = ?`, id).Error; err != nil {
		return err
	}
	return db.WithContext(ctx).Exec(`DELETE FROM cancellation_categories WHERE id = ?`, id).Error
}

func (r *repo) InsertReason(ctx context.Context, db *gorm.DB, reason *cancellationdomain.Reason) error {
	return db.WithContext(ctx).Create(reason).Error
}

func (r *repo) FindReasonByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*cancellationdomain.Reason, error) {
	var reason cancellationdomain.Reason
	err := db.WithContext(ctx).Raw(
		`SELECT id, category_id, name, active, allow_message, require_message, created_at, updated_at
		 FROM cancellation_reasons WHERE id = ?`,
		id,
	).Scan(&reason).Error
	if err != nil {
		return nil, err
	}
	if reason.ID == 0 {
		return nil, nil
	}
	return &reason, nil
}

func (r *repo) ListReasons(ctx context.Context, db *gorm.DB, categoryID snowflake.ID, activeOnly bool) ([]cancellationdomain.Reason, error) {
	stmt := db.WithContext(ctx).Model(&cancellationdomain.Reason{}).Where("category_id = ?", categoryID)
	if activeOnly {
		stmt = stmt.Where("active = ?", true)
	}
	var reasons []cancellationdomain.Reason
	err := stmt.Order("name ASC").Find(&reasons).Error
	return reasons, err
}

func (r *repo) CountActiveReasons(ctx context.Context, db *gorm.DB, categoryID snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Model(&cancellationdomain.Reason{}).
		Where("category_id = ? AND active = ?", categoryID, true).
		Count(&count).Error
	return count, err
}

func (r *repo) UpdateReason(ctx context.Context, db *gorm.DB, reason *cancellationdomain.Reason) error {
	return db.WithContext(ctx).Save(reason).Error
}

func (r *repo) DeleteReason(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM cancellation_reasons WHERE id = ?`, id).Error
}
