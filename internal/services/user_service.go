package services

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"

	"edulearn-connect/internal/cache"
	"edulearn-connect/internal/models"
	"edulearn-connect/internal/pkg/validation"
	"edulearn-connect/internal/repositories"
	"edulearn-connect/internal/storage"

	"go.uber.org/zap"
)

var (
	ErrMissingField = errors.New("required field missing")
	ErrSaveFailed   = errors.New("failed to save user")
)

// RegisterInput holds the text fields of the add-user form.
type RegisterInput struct {
	Name  string `form:"name" validate:"required"`
	Email string `form:"email" validate:"required"`
}

// UserService defines the operations behind the listing page and the add-user form
type UserService interface {
	ListUsers(ctx context.Context, lg *zap.Logger) ([]models.User, error)
	RegisterUser(ctx context.Context, lg *zap.Logger, input RegisterInput, file *multipart.FileHeader) (*models.User, error)
}

type userServiceImpl struct {
	userRepo repositories.UserRepository
	store    *storage.Store
	cache    cache.UserListCache
}

// NewUserService creates a new UserService. A nil cache disables caching.
func NewUserService(userRepo repositories.UserRepository, store *storage.Store, listCache cache.UserListCache) UserService {
	if listCache == nil {
		listCache = cache.NewUserListCache(nil, 0)
	}
	return &userServiceImpl{
		userRepo: userRepo,
		store:    store,
		cache:    listCache,
	}
}

// ListUsers returns all users, newest first. Cache failures fall back to the database.
func (s *userServiceImpl) ListUsers(ctx context.Context, lg *zap.Logger) ([]models.User, error) {
	if users, ok, err := s.cache.Get(ctx); err != nil {
		lg.Warn("User list cache read failed, querying database", zap.Error(err))
	} else if ok {
		lg.Debug("User list served from cache", zap.Int("count", len(users)))
		return users, nil
	}

	// Taken before the query so a write landing during it voids the Set below.
	gen, genErr := s.cache.Generation(ctx)
	if genErr != nil {
		lg.Warn("User list cache generation read failed, not caching this listing", zap.Error(genErr))
	}

	users, err := s.userRepo.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not list users: %w", err)
	}
	if genErr == nil {
		if err := s.cache.Set(ctx, gen, users); err != nil {
			lg.Warn("User list cache write failed", zap.Error(err))
		}
	}
	return users, nil
}

// RegisterUser stores the uploaded picture and inserts the user row.
// When the insert fails the stored picture is removed again.
func (s *userServiceImpl) RegisterUser(ctx context.Context, lg *zap.Logger, input RegisterInput, file *multipart.FileHeader) (*models.User, error) {
	if verrs := validation.ValidateStruct(&input); verrs != nil {
		lg.Warn("Add user validation failed", zap.Strings("messages", validation.Messages(verrs)))
		return nil, fmt.Errorf("%w: %v", ErrMissingField, validation.Messages(verrs))
	}
	if file == nil {
		lg.Warn("Add user request has no profile_pic file")
		return nil, fmt.Errorf("%w: profile_pic", ErrMissingField)
	}

	storedPath, err := s.store.Save(file)
	if err != nil {
		lg.Error("Failed to store profile picture", zap.String("filename", file.Filename), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}

	user := &models.User{
		Name:       input.Name,
		Email:      input.Email,
		ProfilePic: storedPath,
	}
	if _, err := s.userRepo.CreateUser(ctx, user); err != nil {
		lg.Error("Failed to insert user, removing stored picture", zap.String("path", storedPath), zap.Error(err))
		if rmErr := s.store.Remove(storedPath); rmErr != nil {
			lg.Error("Failed to remove orphaned picture", zap.String("path", storedPath), zap.Error(rmErr))
		}
		return nil, fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}

	if err := s.cache.Invalidate(ctx); err != nil {
		lg.Warn("User list cache invalidation failed", zap.Error(err))
	}
	lg.Info("User registered", zap.Int64("userID", user.ID), zap.String("profile_pic", storedPath))
	return user, nil
}
