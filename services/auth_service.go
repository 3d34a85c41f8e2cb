package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	stderrors "errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"github.com/dontidros/natours-project/config"
	"github.com/dontidros/natours-project/events"
	"github.com/dontidros/natours-project/logger"
	"github.com/dontidros/natours-project/mailer"
	"github.com/dontidros/natours-project/models"
	"github.com/dontidros/natours-project/utils/errors"
)

const (
	PasswordCost      = 12
	MinPasswordLength = 8
)

var (
	ErrIncorrectLogin  = errors.Unauthorized("Incorrect email or password")
	ErrInvalidToken    = errors.Unauthorized("Invalid token. Please log in again!")
	ErrExpiredToken    = errors.Unauthorized("Your token has expired! Please log in again.")
	ErrUserGone        = errors.Unauthorized("The user belonging to this token does no longer exist.")
	ErrPasswordChanged = errors.Unauthorized("User recently changed password! Please log in again.")
	ErrResetToken      = errors.Validation("Token is invalid or has expired")
)

// Claims is the JWT payload issued at login.
type Claims struct {
	ID string `json:"id"`
	jwt.RegisteredClaims
}

type SignupInput struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

type AuthService struct {
	users  *UserFactory
	cfg    config.AuthConfig
	mailer mailer.Service
	events events.Publisher
	cost   int
	now    func() time.Time
}

func NewAuthService(users *UserFactory, cfg config.AuthConfig, m mailer.Service, pub events.Publisher) *AuthService {
	return &AuthService{
		users:  users,
		cfg:    cfg,
		mailer: m,
		events: pub,
		cost:   PasswordCost,
		now:    time.Now,
	}
}

// Signup creates a regular user and returns it with a fresh token.
// welcomeURL is linked from the welcome e-mail.
func (s *AuthService) Signup(ctx context.Context, in SignupInput, welcomeURL string) (*models.User, string, error) {
	if err := checkPassword(in.Password, in.PasswordConfirm); err != nil {
		return nil, "", err
	}
	hash, err := s.hash(in.Password)
	if err != nil {
		return nil, "", err
	}
	user, err := s.users.CreateOne(ctx, &models.User{
		Name:     in.Name,
		Email:    in.Email,
		Role:     models.RoleUser,
		Password: hash,
	})
	if err != nil {
		return nil, "", err
	}
	if err := s.mailer.SendWelcome(user.Email, user.Name, welcomeURL); err != nil {
		logger.WarnContext(ctx, "welcome email failed", "user", user.ID.Hex(), "error", err)
	}
	if err := s.events.Publish(ctx, events.UserSignedUp, events.UserSignedUpEvent{
		UserID:    user.ID.Hex(),
		Email:     user.Email,
		CreatedAt: s.now(),
	}); err != nil {
		logger.WarnContext(ctx, "publish signup event failed", "error", err)
	}
	token, err := s.SignToken(user.ID)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	if email == "" || password == "" {
		return nil, "", errors.Validation("Please provide email and password!")
	}
	user, err := s.users.FindOne(ctx, bson.M{"email": strings.ToLower(strings.TrimSpace(email))})
	if err != nil {
		if errors.StatusOf(err) == http.StatusNotFound {
			return nil, "", ErrIncorrectLogin
		}
		return nil, "", err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return nil, "", ErrIncorrectLogin
	}
	token, err := s.SignToken(user.ID)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// SignToken issues an HS256 token carrying the user id.
func (s *AuthService) SignToken(id primitive.ObjectID) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		ID: id.Hex(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.JWTExpiresIn)),
		},
	})
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", errors.Wrap(err, "JWT_ERROR", "Failed to generate token", http.StatusInternalServerError)
	}
	return signed, nil
}

// VerifyToken resolves a token to its still-active user.
func (s *AuthService) VerifyToken(ctx context.Context, tokenString string) (*models.User, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return []byte(s.cfg.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		if stderrors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	id, err := primitive.ObjectIDFromHex(claims.ID)
	if err != nil {
		return nil, ErrInvalidToken
	}
	user, err := s.users.FindOne(ctx, bson.M{"_id": id})
	if err != nil {
		if errors.StatusOf(err) == http.StatusNotFound {
			return nil, ErrUserGone
		}
		return nil, err
	}
	if claims.IssuedAt == nil || user.ChangedPasswordAfter(claims.IssuedAt.Time) {
		return nil, ErrPasswordChanged
	}
	return user, nil
}

// ForgotPassword stores a hashed single-use reset token and e-mails the
// plain token, embedded by resetURL, to the user.
func (s *AuthService) ForgotPassword(ctx context.Context, email string, resetURL func(token string) string) error {
	user, err := s.users.FindOne(ctx, bson.M{"email": strings.ToLower(strings.TrimSpace(email))})
	if err != nil {
		if errors.StatusOf(err) == http.StatusNotFound {
			return errors.NotFound("There is no user with email address.")
		}
		return err
	}

	token, hashed, err := newResetToken()
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "Failed to generate reset token", http.StatusInternalServerError)
	}
	expires := s.now().Add(s.cfg.ResetTokenExpiry)
	store := s.users.Store()
	if _, err := store.Update(ctx, bson.M{"_id": user.ID}, bson.M{"$set": bson.M{
		"passwordResetToken":   hashed,
		"passwordResetExpires": expires,
	}}); err != nil {
		return storeError(err)
	}

	if err := s.mailer.SendPasswordReset(user.Email, user.Name, resetURL(token)); err != nil {
		logger.ErrorContext(ctx, "password reset email failed", "user", user.ID.Hex(), "error", err)
		if _, uerr := store.Update(ctx, bson.M{"_id": user.ID}, unsetReset()); uerr != nil {
			logger.ErrorContext(ctx, "clearing reset token failed", "user", user.ID.Hex(), "error", uerr)
		}
		return errors.NewAPIError(errors.CodeInternal, "There was an error sending the email. Try again later!", http.StatusInternalServerError)
	}
	return nil
}

func (s *AuthService) ResetPassword(ctx context.Context, token, password, confirm string) (*models.User, string, error) {
	user, err := s.users.FindOne(ctx, bson.M{
		"passwordResetToken":   hashResetToken(token),
		"passwordResetExpires": bson.M{"$gt": s.now()},
	})
	if err != nil {
		if errors.StatusOf(err) == http.StatusNotFound {
			return nil, "", ErrResetToken
		}
		return nil, "", err
	}
	if err := s.setPassword(ctx, user, password, confirm); err != nil {
		return nil, "", err
	}
	signed, err := s.SignToken(user.ID)
	return user, signed, err
}

// UpdatePassword changes the password of a logged-in user after checking
// the current one.
func (s *AuthService) UpdatePassword(ctx context.Context, userID primitive.ObjectID, current, password, confirm string) (*models.User, string, error) {
	user, err := s.users.FindOne(ctx, bson.M{"_id": userID})
	if err != nil {
		return nil, "", err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(current)) != nil {
		return nil, "", errors.Unauthorized("Your current password is wrong.")
	}
	if err := s.setPassword(ctx, user, password, confirm); err != nil {
		return nil, "", err
	}
	signed, err := s.SignToken(user.ID)
	return user, signed, err
}

func (s *AuthService) setPassword(ctx context.Context, user *models.User, password, confirm string) error {
	if err := checkPassword(password, confirm); err != nil {
		return err
	}
	hash, err := s.hash(password)
	if err != nil {
		return err
	}
	// Backdated so a token signed right after still verifies.
	changed := s.now().Add(-time.Second)
	update := unsetReset()
	update["$set"] = bson.M{"password": hash, "passwordChangedAt": changed}
	if _, err := s.users.Store().Update(ctx, bson.M{"_id": user.ID}, update); err != nil {
		return storeError(err)
	}
	user.Password = hash
	user.PasswordChangedAt = &changed
	user.PasswordResetToken = ""
	user.PasswordResetExpires = nil
	return nil
}

func (s *AuthService) hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", errors.Wrap(err, "HASH_ERROR", "failed to hash password", http.StatusInternalServerError)
	}
	return string(hash), nil
}

func checkPassword(password, confirm string) error {
	var msgs []string
	if len(password) < MinPasswordLength {
		msgs = append(msgs, "password must have at least 8 characters")
	}
	if password != confirm {
		msgs = append(msgs, "Passwords are not the same!")
	}
	if len(msgs) > 0 {
		return errors.Validation("Invalid input data. " + strings.Join(msgs, ". "))
	}
	return nil
}

func unsetReset() bson.M {
	return bson.M{"$unset": bson.M{"passwordResetToken": "", "passwordResetExpires": ""}}
}

func newResetToken() (plain, hashed string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}
	plain = hex.EncodeToString(buf)
	return plain, hashResetToken(plain), nil
}

func hashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
