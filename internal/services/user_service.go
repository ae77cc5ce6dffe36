package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"taskreward-backend/internal/database"
	"taskreward-backend/internal/models"
	"time"

	"gorm.io/gorm"
)

var ErrUserAlreadyExists = errors.New("user already exists")

const userCacheTTL = time.Hour

func userCacheKey(userID uint) string {
	return fmt.Sprintf("user:%d", userID)
}

// CreateUser registers a user with a zero balance.
func CreateUser(username, role string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", ErrInvalidInput)
	}
	if role == "" {
		role = "user"
	}

	var count int64
	if err := database.DB.Model(&models.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrUserAlreadyExists
	}

	user := &models.User{Username: username, Role: role, Version: 1}
	if err := database.DB.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// FindUserByID loads a user through the Redis cache when one is configured.
func FindUserByID(userID uint) (models.User, error) {
	cacheKey := userCacheKey(userID)
	if database.RedisClient != nil {
		val, err := database.RedisClient.Get(database.Ctx, cacheKey).Result()
		if err == nil {
			var user models.User
			if err := json.Unmarshal([]byte(val), &user); err == nil {
				return user, nil
			}
		}
	}

	var user models.User
	if err := database.DB.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return user, ErrUserNotFound
		}
		return user, err
	}

	if database.RedisClient != nil {
		if data, err := json.Marshal(user); err == nil {
			database.RedisClient.Set(database.Ctx, cacheKey, data, userCacheTTL)
		}
	}

	return user, nil
}

// FindUserByUsername looks a user up by name, bypassing the cache.
func FindUserByUsername(username string) (models.User, error) {
	var user models.User
	if err := database.DB.Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return user, ErrUserNotFound
		}
		return user, err
	}
	return user, nil
}

// ListUsers returns every user ordered by ID.
func ListUsers() ([]models.User, error) {
	var users []models.User
	if err := database.DB.Order("id").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func invalidateUserCache(userID uint) {
	if database.RedisClient != nil {
		database.RedisClient.Del(database.Ctx, userCacheKey(userID))
	}
}
