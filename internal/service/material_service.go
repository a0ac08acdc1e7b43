package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gw-connect/connect-api/internal/dto"
	"github.com/gw-connect/connect-api/internal/models"
	appErrors "github.com/gw-connect/connect-api/pkg/errors"
	"github.com/gw-connect/connect-api/pkg/storage"
)

type materialRepository interface {
	List(ctx context.Context, filter models.MaterialFilter) ([]models.Material, int, error)
	FindByID(ctx context.Context, id string) (*models.Material, error)
	Create(ctx context.Context, material *models.Material) error
	Update(ctx context.Context, material *models.Material) error
	Delete(ctx context.Context, id string) error
}

type materialStorage interface {
	SaveStream(filename string, r io.Reader) (string, error)
	Open(filename string) (io.ReadCloser, error)
	Delete(filename string) error
}

// MaterialServiceConfig tunes upload limits and download links.
type MaterialServiceConfig struct {
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
}

// MaterialService manages shared study resources: metadata in the database,
// bytes on local storage, downloads through signed time-limited tokens.
type MaterialService struct {
	materials materialRepository
	store     materialStorage
	signer    *storage.SignedURLSigner
	validator *validator.Validate
	logger    *zap.Logger
	cfg       MaterialServiceConfig
	allowed   map[string]bool
}

// NewMaterialService constructs a MaterialService.
func NewMaterialService(materials materialRepository, store materialStorage, signer *storage.SignedURLSigner, validate *validator.Validate, logger *zap.Logger, cfg MaterialServiceConfig) *MaterialService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxFileSizeBytes <= 0 {
		cfg.MaxFileSizeBytes = 25 << 20
	}
	allowed := make(map[string]bool, len(cfg.AllowedMIMEs))
	for _, mime := range cfg.AllowedMIMEs {
		allowed[strings.ToLower(mime)] = true
	}
	return &MaterialService{
		materials: materials,
		store:     store,
		signer:    signer,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		allowed:   allowed,
	}
}

// List returns materials matching the filter.
func (s *MaterialService) List(ctx context.Context, filter models.MaterialFilter) ([]models.Material, int, error) {
	materials, total, err := s.materials.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list materials")
	}
	return materials, total, nil
}

// Get loads one material's metadata.
func (s *MaterialService) Get(ctx context.Context, id string) (*models.Material, error) {
	return s.requireMaterial(ctx, id)
}

// Upload stores a new material. Size is capped and the MIME type must be on
// the allow list when one is configured.
func (s *MaterialService) Upload(ctx context.Context, ownerID, title, description, course, fileName, mimeType string, size int64, r io.Reader) (*models.Material, error) {
	if title == "" || fileName == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "title and file are required")
	}
	if size > s.cfg.MaxFileSizeBytes {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds the %d byte limit", s.cfg.MaxFileSizeBytes))
	}
	mime := strings.ToLower(strings.TrimSpace(mimeType))
	if len(s.allowed) > 0 && !s.allowed[mime] {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file type %s is not allowed", mimeType))
	}

	id := uuid.NewString()
	relPath := filepath.Join("materials", id+filepath.Ext(fileName))
	limited := io.LimitReader(r, s.cfg.MaxFileSizeBytes+1)
	if _, err := s.store.SaveStream(relPath, limited); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store file")
	}

	material := &models.Material{
		ID:          id,
		OwnerID:     ownerID,
		Title:       title,
		Description: description,
		Course:      course,
		FileName:    fileName,
		FilePath:    relPath,
		MIMEType:    mime,
		SizeBytes:   size,
	}
	if err := s.materials.Create(ctx, material); err != nil {
		if cleanupErr := s.store.Delete(relPath); cleanupErr != nil {
			s.logger.Warn("failed to remove orphaned upload", zap.String("path", relPath), zap.Error(cleanupErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create material")
	}
	return material, nil
}

// Update edits material metadata, owner only.
func (s *MaterialService) Update(ctx context.Context, actorID, id string, req dto.UpdateMaterialRequest) (*models.Material, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid material payload")
	}
	material, err := s.requireOwned(ctx, actorID, id)
	if err != nil {
		return nil, err
	}

	material.Title = req.Title
	material.Description = req.Description
	material.Course = req.Course
	if err := s.materials.Update(ctx, material); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update material")
	}
	return material, nil
}

// Delete removes a material and its stored file, owner only.
func (s *MaterialService) Delete(ctx context.Context, actorID, id string) error {
	material, err := s.requireOwned(ctx, actorID, id)
	if err != nil {
		return err
	}
	if err := s.materials.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete material")
	}
	if err := s.store.Delete(material.FilePath); err != nil {
		s.logger.Warn("failed to delete stored file", zap.String("path", material.FilePath), zap.Error(err))
	}
	return nil
}

// DownloadLink issues a signed, time-limited token for the material's file.
func (s *MaterialService) DownloadLink(ctx context.Context, id string) (*dto.DownloadLink, error) {
	material, err := s.requireMaterial(ctx, id)
	if err != nil {
		return nil, err
	}
	token, expiresAt, err := s.signer.Generate(material.ID, material.FilePath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download")
	}
	return &dto.DownloadLink{
		URL:       fmt.Sprintf("/api/v1/materials/download/%s", token),
		ExpiresAt: expiresAt,
	}, nil
}

// OpenByToken validates a signed token and opens the referenced file.
func (s *MaterialService) OpenByToken(ctx context.Context, token string) (*models.Material, io.ReadCloser, error) {
	resourceID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	material, err := s.requireMaterial(ctx, resourceID)
	if err != nil {
		return nil, nil, err
	}
	if material.FilePath != relPath {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "download token does not match the file")
	}
	file, err := s.store.Open(relPath)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "stored file missing")
	}
	return material, file, nil
}

func (s *MaterialService) requireMaterial(ctx context.Context, id string) (*models.Material, error) {
	material, err := s.materials.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "material not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load material")
	}
	return material, nil
}

func (s *MaterialService) requireOwned(ctx context.Context, actorID, id string) (*models.Material, error) {
	material, err := s.requireMaterial(ctx, id)
	if err != nil {
		return nil, err
	}
	if material.OwnerID != actorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the owner may modify this material")
	}
	return material, nil
}
