package service

import (
	"context"
	"errors"
	"testing"

	"billing-backend/internal/repository"

	"github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("test_secret")

func newUserService(t *testing.T) UserService {
	t.Helper()
	db := newTestDB(t)
	return NewUserService(repository.NewUserRepository(db))
}

func TestCreateUserAndLogin(t *testing.T) {
	users := newUserService(t)

	created, err := users.CreateUser(context.Background(), CreateUserRequest{
		Username: "alice",
		Email:    "alice@test",
		Password: "correct-horse",
		Role:     "admin",
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if created.Role != "admin" {
		t.Errorf("role = %q", created.Role)
	}

	tokens, err := users.Login(context.Background(), LoginRequest{Username: "alice", Password: "correct-horse"}, testSecret)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if tokens.AccessToken == "" {
		t.Fatal("empty access token")
	}

	parsed, err := jwt.Parse(tokens.AccessToken, func(token *jwt.Token) (interface{}, error) {
		return testSecret, nil
	})
	if err != nil || !parsed.Valid {
		t.Fatalf("parse token: %v", err)
	}
	claims := parsed.Claims.(jwt.MapClaims)
	if claims["sub"] != created.ID || claims["role"] != "admin" {
		t.Errorf("claims = %v", claims)
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	users := newUserService(t)

	if _, err := users.CreateUser(context.Background(), CreateUserRequest{
		Username: "bob", Email: "bob@test", Password: "password1", Role: "staff",
	}); err != nil {
		t.Fatalf("create user: %v", err)
	}

	if _, err := users.Login(context.Background(), LoginRequest{Username: "bob", Password: "wrong"}, testSecret); err == nil {
		t.Fatal("expected login failure")
	}
	if _, err := users.Login(context.Background(), LoginRequest{Username: "nobody", Password: "password1"}, testSecret); err == nil {
		t.Fatal("expected login failure for unknown user")
	}
}

func TestCreateUserDuplicateUsername(t *testing.T) {
	users := newUserService(t)

	req := CreateUserRequest{Username: "carol", Email: "carol@test", Password: "password1", Role: "staff"}
	if _, err := users.CreateUser(context.Background(), req); err != nil {
		t.Fatalf("first create: %v", err)
	}

	req.Email = "carol2@test"
	_, err := users.CreateUser(context.Background(), req)
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
}
