package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/example/localdelivery/pkg/auth"
	"github.com/example/localdelivery/pkg/errs"
	"github.com/example/localdelivery/pkg/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const (
	maxUsername       = 15
	minPasswordLength = 6
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	nonDigit     = regexp.MustCompile(`\D`)
)

type RegisterInput struct {
	Username string `json:"username"`
	Email    string `json:"useremail"`
	Phone    string `json:"userphone"`
	Password string `json:"userpassword"`
}

type LoginInput struct {
	Email    string `json:"useremail"`
	Password string `json:"userpassword"`
}

type ProfileInput struct {
	Username *string `json:"username"`
	Email    *string `json:"useremail"`
	Phone    *string `json:"userphone"`
}

type Session struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

type UserService struct {
	users    UserStore
	tokens   *auth.TokenIssuer
	identity IdentityCache
	logger   *zap.Logger
	now      func() time.Time
}

// NewUserService builds the account service. identity may be nil.
func NewUserService(users UserStore, tokens *auth.TokenIssuer, identity IdentityCache, logger *zap.Logger) *UserService {
	return &UserService{
		users:    users,
		tokens:   tokens,
		identity: identity,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *UserService) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	username := strings.TrimSpace(in.Username)
	email := normalizeEmail(in.Email)

	if username == "" || email == "" || in.Password == "" {
		return nil, errs.Validation("username, useremail and userpassword are required")
	}
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if !emailPattern.MatchString(email) {
		return nil, errs.Validation("invalid email address")
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}

	var phone string
	if strings.TrimSpace(in.Phone) != "" {
		p, ok := normalizePhone(in.Phone)
		if !ok {
			return nil, errs.Validation("phone must have at least 10 digits")
		}
		phone = p
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, errs.Unexpected(err, "hash password")
	}

	now := s.now()
	user := &models.User{
		ID:           primitive.NewObjectID(),
		Username:     username,
		Email:        email,
		Phone:        phone,
		PasswordHash: hash,
		Addresses:    []models.Address{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("User registered", zap.String("user_id", user.ID.Hex()))
	return s.session(user)
}

func (s *UserService) Login(ctx context.Context, in LoginInput) (*Session, error) {
	email := normalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return nil, errs.Validation("useremail and userpassword are required")
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if !auth.CheckPassword(user.PasswordHash, in.Password) {
		return nil, errs.Auth("invalid password")
	}
	return s.session(user)
}

func (s *UserService) Profile(ctx context.Context, userID primitive.ObjectID) (*models.User, error) {
	return s.users.FindByID(ctx, userID)
}

func (s *UserService) UpdateProfile(ctx context.Context, userID primitive.ObjectID, in ProfileInput) (*models.User, error) {
	var u ProfileUpdate

	if in.Username != nil {
		username := strings.TrimSpace(*in.Username)
		if username != "" {
			if err := validateUsername(username); err != nil {
				return nil, err
			}
			u.Username = &username
		}
	}
	if in.Email != nil {
		email := normalizeEmail(*in.Email)
		if email != "" {
			if !emailPattern.MatchString(email) {
				return nil, errs.Validation("invalid email address")
			}
			u.Email = &email
		}
	}
	if in.Phone != nil && strings.TrimSpace(*in.Phone) != "" {
		phone, ok := normalizePhone(*in.Phone)
		if !ok {
			return nil, errs.Validation("phone must have at least 10 digits")
		}
		u.Phone = &phone
	}

	if u.Username == nil && u.Email == nil && u.Phone == nil {
		return nil, errs.Validation("no valid fields to update")
	}

	user, err := s.users.UpdateProfile(ctx, userID, u)
	if err != nil {
		return nil, err
	}
	s.forget(ctx, userID)
	return user, nil
}

// Authenticate resolves a bearer token to the caller's identity, consulting
// the identity cache before the user store.
func (s *UserService) Authenticate(ctx context.Context, token string) (*models.Identity, error) {
	if token == "" {
		return nil, errs.Auth("authentication token missing")
	}
	subject, err := s.tokens.Parse(token)
	if err != nil {
		if errors.Is(err, auth.ErrNoSecret) {
			return nil, errs.Unexpected(err, "verify token")
		}
		return nil, errs.Auth("invalid or expired token")
	}

	if s.identity != nil {
		cached, err := s.identity.GetIdentity(ctx, subject)
		if err != nil {
			s.logger.Warn("Identity cache read failed", zap.String("user_id", subject), zap.Error(err))
		} else if cached != nil {
			return cached, nil
		}
	}

	id, err := primitive.ObjectIDFromHex(subject)
	if err != nil {
		return nil, errs.Auth("invalid or expired token")
	}
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errs.Is(err, errs.KindNotFound) {
			return nil, errs.Auth("user no longer exists")
		}
		return nil, err
	}

	identity := &models.Identity{UserID: user.ID, IsAdmin: user.IsAdmin}
	if s.identity != nil {
		if err := s.identity.SetIdentity(ctx, identity); err != nil {
			s.logger.Warn("Identity cache write failed", zap.String("user_id", subject), zap.Error(err))
		}
	}
	return identity, nil
}

func (s *UserService) session(user *models.User) (*Session, error) {
	token, err := s.tokens.Issue(user.ID.Hex())
	if err != nil {
		return nil, errs.Unexpected(err, "issue token")
	}
	return &Session{Token: token, User: user}, nil
}

func (s *UserService) forget(ctx context.Context, userID primitive.ObjectID) {
	if s.identity == nil {
		return
	}
	if err := s.identity.DeleteIdentity(ctx, userID.Hex()); err != nil {
		s.logger.Warn("Identity cache invalidation failed", zap.String("user_id", userID.Hex()), zap.Error(err))
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// normalizePhone keeps the last 10 digits of the input.
func normalizePhone(raw string) (string, bool) {
	digits := nonDigit.ReplaceAllString(raw, "")
	if len(digits) < 10 {
		return "", false
	}
	return digits[len(digits)-10:], true
}

func validateUsername(username string) error {
	if len([]rune(username)) > maxUsername {
		return errs.Validation("username must be at most %d characters", maxUsername)
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return errs.Validation("password must be at least %d characters", minPasswordLength)
	}
	var lower, upper, digit, special bool
	for _, r := range password {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune("!@#$%^&*", r):
			special = true
		}
	}
	if !lower || !upper || !digit || !special {
		return errs.Validation("password must contain a lowercase letter, an uppercase letter, a digit and one of !@#$%%^&*")
	}
	return nil
}
