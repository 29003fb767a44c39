package services

import (
	"context"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/voltaprotect/groupbuy-backend/internal/platform/apierr"
	"github.com/voltaprotect/groupbuy-backend/internal/platform/ctxutil"
	"github.com/voltaprotect/groupbuy-backend/internal/platform/envutil"
	"github.com/voltaprotect/groupbuy-backend/internal/platform/logger"
	"github.com/voltaprotect/groupbuy-backend/internal/repos"
	"github.com/voltaprotect/groupbuy-backend/internal/types"
)

type JWTClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// AuthService manages admin sessions: password login, JWT access tokens and
// rotating refresh tokens stored in admin_token rows.
type AuthService interface {
	Login(ctx context.Context, email, password string) (string, string, error)
	Refresh(ctx context.Context, refreshToken string) (string, string, error)
	Logout(ctx context.Context) error
	SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)

	// SeedAdmin creates the bootstrap admin from ADMIN_EMAIL/ADMIN_PASSWORD
	// when no account with that email exists.
	SeedAdmin(ctx context.Context) error
}

type authService struct {
	db           *gorm.DB
	log          *logger.Logger
	adminRepo    repos.AdminUserRepo
	tokenRepo    repos.AdminTokenRepo
	jwtSecretKey string
	accessTTL    time.Duration
	refreshTTL   time.Duration
}

func NewAuthService(
	db *gorm.DB,
	baseLog *logger.Logger,
	adminRepo repos.AdminUserRepo,
	tokenRepo repos.AdminTokenRepo,
) AuthService {
	return &authService{
		db:           db,
		log:          baseLog.With("service", "AuthService"),
		adminRepo:    adminRepo,
		tokenRepo:    tokenRepo,
		jwtSecretKey: envutil.Str("JWT_SECRET_KEY", "dev-secret-change-me"),
		accessTTL:    envutil.Duration("JWT_ACCESS_TTL", 1*time.Hour),
		refreshTTL:   envutil.Duration("JWT_REFRESH_TTL", 30*24*time.Hour),
	}
}

func (as *authService) Login(ctx context.Context, email, password string) (string, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return "", "", apierr.Validationf("email and password are required")
	}

	admin, err := as.adminRepo.GetByEmail(ctx, nil, email)
	if err != nil {
		return "", "", apierr.Internal(err)
	}
	if admin == nil {
		return "", "", apierr.Unauthorizedf("invalid credentials")
	}
	if cErr := bcrypt.CompareHashAndPassword([]byte(admin.Password), []byte(password)); cErr != nil {
		return "", "", apierr.Unauthorizedf("invalid credentials")
	}

	var accessToken, refreshToken string
	err = as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if dErr := as.tokenRepo.DeleteExpired(ctx, tx, time.Now().UTC()); dErr != nil {
			return dErr
		}
		var iErr error
		accessToken, refreshToken, iErr = as.issueTokens(ctx, tx, admin)
		return iErr
	})
	if err != nil {
		return "", "", apierr.Internal(err)
	}
	return accessToken, refreshToken, nil
}

func (as *authService) Refresh(ctx context.Context, refreshToken string) (string, string, error) {
	if refreshToken == "" {
		return "", "", apierr.Unauthorizedf("refresh token required")
	}

	var newAccess, newRefresh string
	err := as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, tErr := as.tokenRepo.GetByRefreshToken(ctx, tx, refreshToken)
		if tErr != nil {
			return tErr
		}
		if existing == nil || existing.ExpiresAt.Before(time.Now()) {
			return apierr.Unauthorizedf("refresh token invalid or expired")
		}
		admin, aErr := as.adminRepo.GetByID(ctx, tx, existing.AdminUserID)
		if aErr != nil {
			return aErr
		}
		if admin == nil {
			return apierr.Unauthorizedf("refresh token invalid or expired")
		}
		// Rotation: the presented refresh token is single use.
		if dErr := as.tokenRepo.DeleteByAdminID(ctx, tx, existing.AdminUserID); dErr != nil {
			return dErr
		}
		var iErr error
		newAccess, newRefresh, iErr = as.issueTokens(ctx, tx, admin)
		return iErr
	})
	if err != nil {
		return "", "", apierr.From(err)
	}
	return newAccess, newRefresh, nil
}

func (as *authService) Logout(ctx context.Context) error {
	rd := ctxutil.GetRequestData(ctx)
	if rd == nil || rd.TokenString == "" {
		return apierr.Unauthorizedf("no active session")
	}
	return as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		token, tErr := as.tokenRepo.GetByAccessToken(ctx, tx, rd.TokenString)
		if tErr != nil {
			return tErr
		}
		if token == nil {
			return nil
		}
		return as.tokenRepo.DeleteByAdminID(ctx, tx, token.AdminUserID)
	})
}

func (as *authService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
	if tokenString == "" {
		return ctx, apierr.Unauthorizedf("missing token")
	}
	parsed, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(as.jwtSecretKey), nil
	})
	if err != nil {
		return ctx, apierr.Unauthorizedf("invalid token")
	}
	claims, ok := parsed.Claims.(*JWTClaims)
	if !ok || !parsed.Valid {
		return ctx, apierr.Unauthorizedf("invalid token")
	}
	adminID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return ctx, apierr.Unauthorizedf("invalid token")
	}

	// The token row must still exist: logout revokes sessions before the
	// JWT itself expires.
	stored, sErr := as.tokenRepo.GetByAccessToken(ctx, nil, tokenString)
	if sErr != nil {
		return ctx, apierr.Internal(sErr)
	}
	if stored == nil {
		return ctx, apierr.Unauthorizedf("session revoked")
	}

	rd := &ctxutil.RequestData{
		AdminID:     adminID,
		Email:       claims.Email,
		TokenString: tokenString,
	}
	return ctxutil.WithRequestData(ctx, rd), nil
}

func (as *authService) SeedAdmin(ctx context.Context) error {
	email := strings.ToLower(strings.TrimSpace(envutil.Str("ADMIN_EMAIL", "")))
	password := envutil.Str("ADMIN_PASSWORD", "")
	if email == "" || password == "" {
		return nil
	}
	existing, err := as.adminRepo.GetByEmail(ctx, nil, email)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err = as.adminRepo.Create(ctx, nil, &types.AdminUser{
		ID:        uuid.New(),
		Email:     email,
		Password:  string(hashed),
		Name:      envutil.Str("ADMIN_NAME", "Administrator"),
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err == nil {
		as.log.Info("Seeded bootstrap admin", "email", email)
	}
	return err
}

func (as *authService) issueTokens(ctx context.Context, tx *gorm.DB, admin *types.AdminUser) (string, string, error) {
	claims := JWTClaims{
		Email: admin.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   admin.ID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(as.accessTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(as.jwtSecretKey))
	if err != nil {
		return "", "", err
	}
	refreshToken := uuid.New().String()
	now := time.Now().UTC()
	_, err = as.tokenRepo.Create(ctx, tx, &types.AdminToken{
		ID:           uuid.New(),
		AdminUserID:  admin.ID,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    now.Add(as.refreshTTL),
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return "", "", err
	}
	return accessToken, refreshToken, nil
}
