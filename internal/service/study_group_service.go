package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/gw-connect/connect-api/internal/dto"
	"github.com/gw-connect/connect-api/internal/models"
	appErrors "github.com/gw-connect/connect-api/pkg/errors"
)

type studyGroupRepository interface {
	List(ctx context.Context, filter models.StudyGroupFilter) ([]models.StudyGroup, int, error)
	FindByID(ctx context.Context, id string) (*models.StudyGroup, error)
	Create(ctx context.Context, group *models.StudyGroup) error
	Update(ctx context.Context, group *models.StudyGroup) error
	Delete(ctx context.Context, id string) error
	ListMembers(ctx context.Context, groupID string) ([]models.StudyGroupMember, error)
	CountMembers(ctx context.Context, groupID string) (int, error)
	AddMember(ctx context.Context, groupID, userID string) error
	RemoveMember(ctx context.Context, groupID, userID string) error
}

type studyGroupNotifier interface {
	Dispatch(ctx context.Context, userID, event string, payload map[string]interface{})
}

// StudyGroupService manages member-run study groups. The owner administers
// the group; joining is open until capacity is reached.
type StudyGroupService struct {
	groups    studyGroupRepository
	notifier  studyGroupNotifier
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudyGroupService constructs a StudyGroupService.
func NewStudyGroupService(groups studyGroupRepository, notifier studyGroupNotifier, validate *validator.Validate, logger *zap.Logger) *StudyGroupService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudyGroupService{groups: groups, notifier: notifier, validator: validate, logger: logger}
}

// List returns study groups matching the filter.
func (s *StudyGroupService) List(ctx context.Context, filter models.StudyGroupFilter) ([]dto.StudyGroupDetail, int, error) {
	groups, total, err := s.groups.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list study groups")
	}

	details := make([]dto.StudyGroupDetail, 0, len(groups))
	for _, group := range groups {
		count, err := s.groups.CountMembers(ctx, group.ID)
		if err != nil {
			return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count members")
		}
		details = append(details, toDetail(group, count))
	}
	return details, total, nil
}

// Get returns one study group with its membership count.
func (s *StudyGroupService) Get(ctx context.Context, id string) (*dto.StudyGroupDetail, error) {
	group, err := s.requireGroup(ctx, id)
	if err != nil {
		return nil, err
	}
	count, err := s.groups.CountMembers(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count members")
	}
	detail := toDetail(*group, count)
	return &detail, nil
}

// Create opens a new study group with the caller as owner and first member.
func (s *StudyGroupService) Create(ctx context.Context, ownerID string, req dto.CreateStudyGroupRequest) (*dto.StudyGroupDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid study group payload")
	}

	group := &models.StudyGroup{
		Name:        req.Name,
		Course:      req.Course,
		Description: req.Description,
		OwnerID:     ownerID,
		Capacity:    req.Capacity,
		MeetingInfo: req.MeetingInfo,
	}
	if err := s.groups.Create(ctx, group); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create study group")
	}
	if err := s.groups.AddMember(ctx, group.ID, ownerID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add owner membership")
	}

	detail := toDetail(*group, 1)
	return &detail, nil
}

// Update edits group metadata, owner only.
func (s *StudyGroupService) Update(ctx context.Context, actorID, id string, req dto.UpdateStudyGroupRequest) (*dto.StudyGroupDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid study group payload")
	}
	group, err := s.requireGroup(ctx, id)
	if err != nil {
		return nil, err
	}
	if group.OwnerID != actorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the owner may edit the group")
	}

	count, err := s.groups.CountMembers(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count members")
	}
	if req.Capacity > 0 && req.Capacity < count {
		return nil, appErrors.Clone(appErrors.ErrValidation, "capacity below current member count")
	}

	group.Name = req.Name
	group.Course = req.Course
	group.Description = req.Description
	group.Capacity = req.Capacity
	group.MeetingInfo = req.MeetingInfo
	if err := s.groups.Update(ctx, group); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update study group")
	}

	detail := toDetail(*group, count)
	return &detail, nil
}

// Delete removes a group and its memberships, owner only.
func (s *StudyGroupService) Delete(ctx context.Context, actorID, id string) error {
	group, err := s.requireGroup(ctx, id)
	if err != nil {
		return err
	}
	if group.OwnerID != actorID {
		return appErrors.Clone(appErrors.ErrForbidden, "only the owner may delete the group")
	}
	if err := s.groups.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete study group")
	}
	return nil
}

// Join adds the caller to a group, enforcing the capacity limit.
func (s *StudyGroupService) Join(ctx context.Context, userID, id string) error {
	group, err := s.requireGroup(ctx, id)
	if err != nil {
		return err
	}
	count, err := s.groups.CountMembers(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count members")
	}
	if group.Capacity > 0 && count >= group.Capacity {
		return appErrors.Clone(appErrors.ErrConflict, "study group is full")
	}
	if err := s.groups.AddMember(ctx, id, userID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to join study group")
	}
	if s.notifier != nil && userID != group.OwnerID {
		s.notifier.Dispatch(ctx, group.OwnerID, "studygroup.member_joined", map[string]interface{}{
			"group_id": group.ID,
			"group":    group.Name,
			"user_id":  userID,
		})
	}
	return nil
}

// Leave removes the caller from a group. The owner cannot leave; they delete
// the group instead.
func (s *StudyGroupService) Leave(ctx context.Context, userID, id string) error {
	group, err := s.requireGroup(ctx, id)
	if err != nil {
		return err
	}
	if group.OwnerID == userID {
		return appErrors.Clone(appErrors.ErrValidation, "the owner cannot leave their own group")
	}
	if err := s.groups.RemoveMember(ctx, id, userID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to leave study group")
	}
	return nil
}

// Members lists the group's membership in join order.
func (s *StudyGroupService) Members(ctx context.Context, id string) ([]models.StudyGroupMember, error) {
	if _, err := s.requireGroup(ctx, id); err != nil {
		return nil, err
	}
	members, err := s.groups.ListMembers(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list members")
	}
	return members, nil
}

func (s *StudyGroupService) requireGroup(ctx context.Context, id string) (*models.StudyGroup, error) {
	group, err := s.groups.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "study group not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load study group")
	}
	return group, nil
}

func toDetail(group models.StudyGroup, members int) dto.StudyGroupDetail {
	return dto.StudyGroupDetail{
		ID:          group.ID,
		Name:        group.Name,
		Course:      group.Course,
		Description: group.Description,
		OwnerID:     group.OwnerID,
		Capacity:    group.Capacity,
		MeetingInfo: group.MeetingInfo,
		MemberCount: members,
	}
}
