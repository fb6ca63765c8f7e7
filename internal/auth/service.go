// Package auth はセルフホスト構成（BACKEND=postgres）のメールアドレス・パスワード認証を提供する。
// パスワードはbcryptでハッシュ化し、アクセストークンはHS256署名のJWT、
// リフレッシュトークンは乱数をSHA-256ハッシュで保存する。
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/fanfootprint/internal/model"
	"github.com/hitoshi/fanfootprint/internal/repository"
)

// MinPasswordLength はパスワードの最小文字数。
const MinPasswordLength = 6

// 認証失敗時のメッセージ。UIにそのまま表示される。
var (
	ErrInvalidCredentials = errors.New("Invalid login credentials")
	ErrUserExists         = errors.New("User already registered")
	ErrWeakPassword       = fmt.Errorf("Password should be at least %d characters", MinPasswordLength)
	ErrMissingEmail       = errors.New("Email is required")
	ErrInvalidRefresh     = errors.New("Invalid Refresh Token")
)

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	RefreshTokenTTL time.Duration
	BcryptCost      int // 0の場合はbcrypt.DefaultCost
}

// Service はアカウントの作成・認証とトークンの発行を行う。
// 全ブラウザセッションで共有する。
type Service struct {
	accounts repository.AccountRepository
	refresh  repository.RefreshTokenRepository
	jwt      *JWTManager
	config   ServiceConfig
	logger   *slog.Logger
	now      func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	accounts repository.AccountRepository,
	refresh repository.RefreshTokenRepository,
	jwt *JWTManager,
	config ServiceConfig,
	logger *slog.Logger,
) *Service {
	if config.BcryptCost == 0 {
		config.BcryptCost = bcrypt.DefaultCost
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		accounts: accounts,
		refresh:  refresh,
		jwt:      jwt,
		config:   config,
		logger:   logger,
		now:      time.Now,
	}
}

// Register はアカウントを作成し、セッションを発行する。
func (s *Service) Register(ctx context.Context, email, password string) (*model.AuthSession, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, ErrMissingEmail
	}
	if len(password) < MinPasswordLength {
		return nil, ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.config.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	account := &model.Account{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    s.now(),
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	s.logger.Info("account created", slog.String("account_id", account.ID))
	return s.issue(ctx, account)
}

// Authenticate はメールアドレスとパスワードを検証し、セッションを発行する。
func (s *Service) Authenticate(ctx context.Context, email, password string) (*model.AuthSession, error) {
	account, err := s.accounts.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	if account == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return s.issue(ctx, account)
}

// Verify はアクセストークンを検証し、トークンの持ち主を返す。
func (s *Service) Verify(accessToken string) (*model.AuthUser, error) {
	claims, err := s.jwt.ValidateToken(accessToken)
	if err != nil {
		return nil, err
	}
	return &model.AuthUser{ID: claims.Subject, Email: claims.Email}, nil
}

// Refresh はリフレッシュトークンを検証して失効させ、新しいセッションを発行する。
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*model.AuthSession, error) {
	hash := hashToken(refreshToken)
	stored, err := s.refresh.FindByHash(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to find refresh token: %w", err)
	}
	if stored == nil || !stored.Active(s.now()) {
		return nil, ErrInvalidRefresh
	}

	account, err := s.accounts.FindByID(ctx, stored.AccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	if account == nil {
		return nil, ErrInvalidRefresh
	}

	if err := s.refresh.Revoke(ctx, hash); err != nil {
		return nil, err
	}
	return s.issue(ctx, account)
}

// Revoke はリフレッシュトークンを失効させる。
func (s *Service) Revoke(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.refresh.Revoke(ctx, hashToken(refreshToken))
}

// issue はアクセストークンとリフレッシュトークンを発行する。
func (s *Service) issue(ctx context.Context, account *model.Account) (*model.AuthSession, error) {
	access, expiresAt, err := s.jwt.GenerateToken(account.ID, account.Email)
	if err != nil {
		return nil, err
	}

	refresh, err := generateRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}
	now := s.now()
	if err := s.refresh.Create(ctx, &model.RefreshToken{
		TokenHash: hashToken(refresh),
		AccountID: account.ID,
		ExpiresAt: now.Add(s.config.RefreshTokenTTL),
		CreatedAt: now,
	}); err != nil {
		return nil, err
	}

	return &model.AuthSession{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    expiresAt,
		User:         model.AuthUser{ID: account.ID, Email: account.Email},
	}, nil
}

// generateRefreshToken は暗号的に安全なリフレッシュトークンを生成する。
func generateRefreshToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
