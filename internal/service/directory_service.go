package service

import (
	"context"
	"crypto/sha1"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/gw-connect/connect-api/internal/dto"
	"github.com/gw-connect/connect-api/internal/models"
	appErrors "github.com/gw-connect/connect-api/pkg/errors"
)

type directoryUserRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
}

type directoryPersonReader interface {
	FindByUserID(ctx context.Context, userID string) (*models.Person, error)
}

type directoryCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

type directoryMetrics interface {
	RecordCacheOperation(hit bool)
}

// DirectoryServiceConfig tunes directory caching.
type DirectoryServiceConfig struct {
	CacheTTL time.Duration
}

// DirectoryService serves member search and profile management. Search
// results are cached briefly; any profile update clears the cache.
type DirectoryService struct {
	users     directoryUserRepository
	people    directoryPersonReader
	cache     directoryCache
	metrics   directoryMetrics
	validator *validator.Validate
	logger    *zap.Logger
	cfg       DirectoryServiceConfig
}

// NewDirectoryService constructs a DirectoryService.
func NewDirectoryService(users directoryUserRepository, people directoryPersonReader, cache directoryCache, metrics directoryMetrics, validate *validator.Validate, logger *zap.Logger, cfg DirectoryServiceConfig) *DirectoryService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	return &DirectoryService{
		users:     users,
		people:    people,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
}

type directoryPage struct {
	Entries    []dto.DirectoryEntry `json:"entries"`
	Pagination models.Pagination    `json:"pagination"`
}

// Search returns directory entries matching the query.
func (s *DirectoryService) Search(ctx context.Context, query dto.DirectoryQuery) ([]dto.DirectoryEntry, models.Pagination, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, models.Pagination{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid directory query")
	}

	cacheKey := directoryCacheKey(query)
	if s.cache != nil {
		var cached directoryPage
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			s.recordCache(true)
			return cached.Entries, cached.Pagination, nil
		}
		s.recordCache(false)
	}

	filter := models.UserFilter{
		Department: query.Department,
		Search:     query.Search,
		Page:       query.Page,
		PageSize:   query.PageSize,
		SortBy:     query.SortBy,
		SortOrder:  query.SortOrder,
	}
	if query.Role != "" {
		role := models.UserRole(query.Role)
		filter.Role = &role
	}

	users, total, err := s.users.List(ctx, filter)
	if err != nil {
		return nil, models.Pagination{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to search directory")
	}

	entries := make([]dto.DirectoryEntry, 0, len(users))
	for _, user := range users {
		entries = append(entries, s.toEntry(ctx, &user))
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	pagination := models.Pagination{Page: page, PageSize: size, TotalCount: total}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, directoryPage{Entries: entries, Pagination: pagination}, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("directory cache write failed", zap.Error(err))
		}
	}
	return entries, pagination, nil
}

// GetProfile returns one member's public profile.
func (s *DirectoryService) GetProfile(ctx context.Context, userID string) (*dto.DirectoryEntry, error) {
	user, err := s.requireUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	entry := s.toEntry(ctx, user)
	return &entry, nil
}

// UpdateProfile edits the caller's own profile and clears cached search pages.
func (s *DirectoryService) UpdateProfile(ctx context.Context, userID string, req dto.UpdateProfileRequest) (*dto.DirectoryEntry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid profile payload")
	}
	user, err := s.requireUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	interests, err := json.Marshal(req.Interests)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode interests")
	}

	user.FullName = req.FullName
	user.Department = req.Department
	user.Title = req.Title
	user.Bio = req.Bio
	user.Interests = interests
	user.AvatarURL = req.AvatarURL

	if err := s.users.Update(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update profile")
	}

	if s.cache != nil {
		if err := s.cache.DeleteByPattern(ctx, "directory:*"); err != nil {
			s.logger.Warn("directory cache invalidation failed", zap.Error(err))
		}
	}

	entry := s.toEntry(ctx, user)
	return &entry, nil
}

func (s *DirectoryService) toEntry(ctx context.Context, user *models.User) dto.DirectoryEntry {
	entry := dto.DirectoryEntry{
		ID:         user.ID,
		FullName:   user.FullName,
		Role:       user.Role,
		Department: user.Department,
		Title:      user.Title,
		Bio:        user.Bio,
		AvatarURL:  user.AvatarURL,
	}
	if len(user.Interests) > 0 {
		_ = json.Unmarshal(user.Interests, &entry.Interests)
	}
	if s.people != nil && (user.Role == models.RoleFaculty || user.Role == models.RoleAlumni) {
		if person, err := s.people.FindByUserID(ctx, user.ID); err == nil {
			entry.Bookable = true
			entry.PersonID = person.ID
		}
	}
	return entry
}

func (s *DirectoryService) requireUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

func (s *DirectoryService) recordCache(hit bool) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordCacheOperation(hit)
}

func directoryCacheKey(query dto.DirectoryQuery) string {
	raw := strings.Join([]string{
		query.Role,
		query.Department,
		query.Search,
		fmt.Sprintf("%d", query.Page),
		fmt.Sprintf("%d", query.PageSize),
		query.SortBy,
		query.SortOrder,
	}, "|")
	sum := sha1.Sum([]byte(raw))
	return fmt.Sprintf("directory:%x", sum)
}
