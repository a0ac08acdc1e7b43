package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/gw-connect/connect-api/internal/models"
)

// StudyGroupRepository provides persistence for study groups and membership.
type StudyGroupRepository struct {
	db *sqlx.DB
}

// NewStudyGroupRepository creates a new study group repository.
func NewStudyGroupRepository(db *sqlx.DB) *StudyGroupRepository {
	return &StudyGroupRepository{db: db}
}

const studyGroupColumns = "id, name, course, description, owner_id, capacity, meeting_info, created_at, updated_at"

// List returns study groups with filtering and pagination.
func (r *StudyGroupRepository) List(ctx context.Context, filter models.StudyGroupFilter) ([]models.StudyGroup, int, error) {
	base := "FROM study_groups WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.Course != "" {
		conditions = append(conditions, fmt.Sprintf("course ILIKE $%d", len(args)+1))
		args = append(args, "%"+filter.Course+"%")
	}
	if filter.OwnerID != "" {
		conditions = append(conditions, fmt.Sprintf("owner_id = $%d", len(args)+1))
		args = append(args, filter.OwnerID)
	}
	if filter.Search != "" {
		idx := len(args) + 1
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d)", idx, idx))
		args = append(args, "%"+filter.Search+"%")
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY name ASC LIMIT %d OFFSET %d", studyGroupColumns, base, size, offset)
	var groups []models.StudyGroup
	if err := r.db.SelectContext(ctx, &groups, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list study groups: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count study groups: %w", err)
	}

	return groups, total, nil
}

// FindByID loads a study group by id.
func (r *StudyGroupRepository) FindByID(ctx context.Context, id string) (*models.StudyGroup, error) {
	query := fmt.Sprintf("SELECT %s FROM study_groups WHERE id = $1", studyGroupColumns)
	var group models.StudyGroup
	if err := r.db.GetContext(ctx, &group, query, id); err != nil {
		return nil, err
	}
	return &group, nil
}

// Create stores a new study group.
func (r *StudyGroupRepository) Create(ctx context.Context, group *models.StudyGroup) error {
	if group.ID == "" {
		group.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if group.CreatedAt.IsZero() {
		group.CreatedAt = now
	}
	group.UpdatedAt = now

	const query = `INSERT INTO study_groups (id, name, course, description, owner_id, capacity, meeting_info, created_at, updated_at) VALUES (:id, :name, :course, :description, :owner_id, :capacity, :meeting_info, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, group); err != nil {
		return fmt.Errorf("create study group: %w", err)
	}
	return nil
}

// Update modifies a study group.
func (r *StudyGroupRepository) Update(ctx context.Context, group *models.StudyGroup) error {
	group.UpdatedAt = time.Now().UTC()
	const query = `UPDATE study_groups SET name = :name, course = :course, description = :description, capacity = :capacity, meeting_info = :meeting_info, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, group); err != nil {
		return fmt.Errorf("update study group: %w", err)
	}
	return nil
}

// Delete removes a study group and its memberships.
func (r *StudyGroupRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete study group: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM study_group_members WHERE group_id = $1`, id); err != nil {
		return fmt.Errorf("delete study group members: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM study_groups WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete study group: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit delete study group: %w", err)
	}
	return nil
}

// ListMembers returns the members of a group in join order.
func (r *StudyGroupRepository) ListMembers(ctx context.Context, groupID string) ([]models.StudyGroupMember, error) {
	const query = `SELECT group_id, user_id, joined_at FROM study_group_members WHERE group_id = $1 ORDER BY joined_at ASC`
	var members []models.StudyGroupMember
	if err := r.db.SelectContext(ctx, &members, query, groupID); err != nil {
		return nil, fmt.Errorf("list study group members: %w", err)
	}
	return members, nil
}

// CountMembers returns the current membership size.
func (r *StudyGroupRepository) CountMembers(ctx context.Context, groupID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM study_group_members WHERE group_id = $1`, groupID); err != nil {
		return 0, fmt.Errorf("count study group members: %w", err)
	}
	return count, nil
}

// AddMember inserts a membership row, ignoring duplicates.
func (r *StudyGroupRepository) AddMember(ctx context.Context, groupID, userID string) error {
	const query = `INSERT INTO study_group_members (group_id, user_id, joined_at) VALUES ($1, $2, $3) ON CONFLICT (group_id, user_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, groupID, userID, time.Now().UTC()); err != nil {
		return fmt.Errorf("add study group member: %w", err)
	}
	return nil
}

// RemoveMember deletes a membership row.
func (r *StudyGroupRepository) RemoveMember(ctx context.Context, groupID, userID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM study_group_members WHERE group_id = $1 AND user_id = $2`, groupID, userID); err != nil {
		return fmt.Errorf("remove study group member: %w", err)
	}
	return nil
}
