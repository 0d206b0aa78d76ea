package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bookletku/internal/database/models"
	"bookletku/internal/platform"
	"bookletku/internal/utils"
)

const MIN_PASSWORD_LENGTH = 6

var ErrWeakPassword = fmt.Errorf("password must be at least %d characters", MIN_PASSWORD_LENGTH)

type refreshEntry struct {
	UserID string `json:"user_id"`
}

func (b *Backend) SignUp(ctx context.Context, email, password, name string) (platform.Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return platform.Session{}, errors.New("email is required")
	}
	if len(password) < MIN_PASSWORD_LENGTH {
		return platform.Session{}, ErrWeakPassword
	}

	var existing models.UserAccount
	if err := b.db.WithContext(ctx).Where("email = ?", email).First(&existing).Error; err == nil {
		return platform.Session{}, platform.ErrEmailTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return platform.Session{}, dbError("check existing user", err)
	}

	pwHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return platform.Session{}, fmt.Errorf("error hashing password: %w", err)
	}

	account := models.UserAccount{
		ID:       uuid.NewString(),
		Email:    email,
		Password: string(pwHash),
	}
	if err := b.db.WithContext(ctx).Create(&account).Error; err != nil {
		return platform.Session{}, dbError("create user", err)
	}

	log.Printf("backend: registered user %s", account.ID)
	return b.issue(ctx, platform.User{ID: account.ID, Email: email, Name: name}, platform.RoleUser)
}

func (b *Backend) SignIn(ctx context.Context, email, password string) (platform.Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var account models.UserAccount
	if err := b.db.WithContext(ctx).Where("email = ?", email).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return platform.Session{}, platform.ErrInvalidCredentials
		}
		return platform.Session{}, dbError("find user", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.Password), []byte(password)); err != nil {
		return platform.Session{}, platform.ErrInvalidCredentials
	}

	now := time.Now()
	if err := b.db.WithContext(ctx).Model(&account).Update("last_login", &now).Error; err != nil {
		log.Printf("backend: last login for %s not recorded: %v", account.ID, err)
	}

	user, role := b.userWithRole(ctx, account)
	return b.issue(ctx, user, role)
}

// SignOut revokes a refresh token. Unknown tokens are ignored.
func (b *Backend) SignOut(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	if err := b.redis.Del(ctx, REFRESH_TOKEN_PREFIX+refreshToken).Err(); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// Refresh rotates a refresh token: the old one is consumed and a new
// session is issued with the user's current role.
func (b *Backend) Refresh(ctx context.Context, refreshToken string) (platform.Session, error) {
	if refreshToken == "" {
		return platform.Session{}, platform.ErrInvalidRefreshToken
	}

	key := REFRESH_TOKEN_PREFIX + refreshToken
	val, err := b.redis.GetDel(ctx, key).Result()
	if err == redis.Nil {
		return platform.Session{}, platform.ErrInvalidRefreshToken
	}
	if err != nil {
		return platform.Session{}, fmt.Errorf("consume refresh token: %w", err)
	}

	var entry refreshEntry
	if err := json.Unmarshal([]byte(val), &entry); err != nil {
		return platform.Session{}, platform.ErrInvalidRefreshToken
	}

	var account models.UserAccount
	if err := b.db.WithContext(ctx).First(&account, "id = ?", entry.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return platform.Session{}, platform.ErrInvalidRefreshToken
		}
		return platform.Session{}, dbError("find user", err)
	}

	user, role := b.userWithRole(ctx, account)
	return b.issue(ctx, user, role)
}

// EnsureAdmin creates or updates an account with the admin role. It bypasses
// row authorization and is meant for seeding.
func (b *Backend) EnsureAdmin(ctx context.Context, email, password, name string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var account models.UserAccount
	err := b.db.WithContext(ctx).Where("email = ?", email).First(&account).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		sess, err := b.SignUp(ctx, email, password, name)
		if err != nil {
			return "", err
		}
		account.ID = sess.User.ID
	case err != nil:
		return "", dbError("find admin", err)
	}

	err = b.upsertProfile(ctx, platform.ProfileRow{ID: account.ID, Email: email, Name: name, Role: platform.RoleAdmin})
	if err != nil {
		return "", err
	}
	return account.ID, nil
}

// EnsureStore creates the store row without an admin session when it does
// not exist yet. An existing row keeps its settings. Used for seeding.
func (b *Backend) EnsureStore(ctx context.Context, row platform.StoreRow) error {
	store := models.Store{
		ID:             row.ID,
		Name:           row.Name,
		StoreLocation:  row.StoreLocation,
		OperatingHours: row.OperatingHours,
		WhatsappNumber: row.WhatsappNumber,
	}
	res := b.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(&store)
	if res.Error != nil {
		return dbError("ensure store", res.Error)
	}
	if res.RowsAffected > 0 {
		b.publishChange(ctx, platform.TableStores, platform.ChangeInsert, row.ID)
	}
	return nil
}

func (b *Backend) userWithRole(ctx context.Context, account models.UserAccount) (platform.User, string) {
	user := platform.User{ID: account.ID, Email: account.Email}
	var profile models.UserProfile
	if err := b.db.WithContext(ctx).First(&profile, "id = ?", account.ID).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("backend: profile lookup for %s: %v", account.ID, err)
		}
		return user, platform.RoleUser
	}
	user.Name = profile.Name
	if profile.Role == "" {
		return user, platform.RoleUser
	}
	return user, profile.Role
}

func (b *Backend) issue(ctx context.Context, user platform.User, role string) (platform.Session, error) {
	access, exp, err := utils.GenerateToken(b.opts.JWTSecret, user.ID, user.Email, role, b.opts.AccessTTL)
	if err != nil {
		return platform.Session{}, fmt.Errorf("error generating token: %w", err)
	}

	refresh := uuid.NewString()
	entry, _ := json.Marshal(refreshEntry{UserID: user.ID})
	if err := b.redis.Set(ctx, REFRESH_TOKEN_PREFIX+refresh, entry, b.opts.RefreshTTL).Err(); err != nil {
		return platform.Session{}, fmt.Errorf("store refresh token: %w", err)
	}

	return platform.Session{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    exp,
		User:         user,
	}, nil
}
