// Package auth регистрирует операторов, проверяет пароли и выпускает JWT.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/vladislavdragonenkov/sales/internal/domain"
)

const (
	// DefaultTokenTTL — время жизни токена, если в конфигурации не задано иное.
	DefaultTokenTTL = 120 * time.Minute
	// MinPasswordLength — минимальная длина пароля при регистрации.
	MinPasswordLength = 6
)

var (
	// ErrInvalidToken возвращается для просроченного, поддельного или некорректного токена.
	ErrInvalidToken = errors.New("invalid token")
	// ErrSecretRequired возвращается, если не задан ключ подписи.
	ErrSecretRequired = errors.New("jwt signing secret is required")
)

// Config описывает параметры выпуска токенов.
type Config struct {
	Secret   string
	Issuer   string
	Audience string
	TTL      time.Duration
}

// Claims — полезная нагрузка токена.
type Claims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Identity — аутентифицированный вызывающий.
type Identity struct {
	UserID string
	Email  string
	Name   string
	Role   domain.Role
}

// Session — результат успешной регистрации или входа.
type Session struct {
	Token     string
	ExpiresAt time.Time
	Email     string
	FullName  string
	Role      domain.Role
}

// RegisterInput — данные регистрации.
type RegisterInput struct {
	FullName string
	Email    string
	Password string
}

// Service выпускает и проверяет токены.
type Service struct {
	users    domain.UserRepository
	cfg      Config
	hashCost int
	now      func() time.Time
	newID    func() string
	logger   *log.Entry
}

// Option настраивает Service.
type Option func(*Service)

// WithClock задаёт источник времени для выпуска и проверки токенов.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		s.now = clock
	}
}

// WithHashCost задаёт стоимость bcrypt; в тестах используют bcrypt.MinCost.
func WithHashCost(cost int) Option {
	return func(s *Service) {
		s.hashCost = cost
	}
}

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService создаёт сервис аутентификации.
func NewService(users domain.UserRepository, cfg Config, options ...Option) (*Service, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, ErrSecretRequired
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTokenTTL
	}

	s := &Service{
		users:    users,
		cfg:      cfg,
		hashCost: bcrypt.DefaultCost,
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, option := range options {
		option(s)
	}
	if s.logger == nil {
		s.logger = log.WithField("component", "auth")
	}
	return s, nil
}

// Register создаёт учётную запись с ролью Admin и сразу выпускает токен.
func (s *Service) Register(ctx context.Context, in RegisterInput) (Session, error) {
	fullName := strings.TrimSpace(in.FullName)
	email := domain.NormalizeEmail(in.Email)
	switch {
	case fullName == "":
		return Session{}, domain.Validation(domain.ErrNameRequired, "full name is required")
	case email == "":
		return Session{}, domain.Validation(domain.ErrEmailRequired, "email is required")
	case strings.TrimSpace(in.Password) == "" || len(in.Password) < MinPasswordLength:
		return Session{}, domain.Validation(domain.ErrPasswordTooShort, "password must be at least %d characters long", MinPasswordLength)
	}

	hash, err := s.HashPassword(in.Password)
	if err != nil {
		return Session{}, domain.Storage("hash password", err)
	}

	user := domain.User{
		ID:           s.newID(),
		Email:        email,
		FullName:     fullName,
		PasswordHash: hash,
		Role:         domain.RoleAdmin,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return Session{}, domain.Storage("create user", err)
	}

	s.logger.WithField("user_id", user.ID).Info("user registered")
	return s.issue(user)
}

// Login проверяет пароль и выпускает токен. Любая неудача отдаётся как ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	user, err := s.users.GetByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		if domain.IsNotFound(err) {
			return Session{}, invalidCredentials()
		}
		return Session{}, domain.Storage("load user", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logger.WithField("user_id", user.ID).Warn("login rejected")
		return Session{}, invalidCredentials()
	}
	return s.issue(user)
}

// HashPassword возвращает bcrypt-хэш пароля.
func (s *Service) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Parse проверяет подпись, срок действия, издателя и аудиторию токена.
func (s *Service) Parse(raw string) (Identity, error) {
	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	}
	if s.cfg.Issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(s.cfg.Issuer))
	}
	if s.cfg.Audience != "" {
		parserOptions = append(parserOptions, jwt.WithAudience(s.cfg.Audience))
	}

	var claims Claims
	token, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
		return []byte(s.cfg.Secret), nil
	}, parserOptions...)
	if err != nil || !token.Valid {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	return Identity{
		UserID: claims.Subject,
		Email:  claims.Email,
		Name:   claims.Name,
		Role:   domain.Role(claims.Role),
	}, nil
}

func (s *Service) issue(user domain.User) (Session, error) {
	now := s.now().UTC()
	expiresAt := now.Add(s.cfg.TTL)

	claims := Claims{
		Email: user.Email,
		Name:  user.FullName,
		Role:  string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    s.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	if s.cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{s.cfg.Audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return Session{}, fmt.Errorf("sign token: %w", err)
	}

	return Session{
		Token:     signed,
		ExpiresAt: expiresAt,
		Email:     user.Email,
		FullName:  user.FullName,
		Role:      user.Role,
	}, nil
}

func invalidCredentials() error {
	return domain.Validation(domain.ErrInvalidCredentials, "Invalid credentials.")
}
