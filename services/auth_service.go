package services

import (
	"fmt"

	"github.com/google/uuid"

	"paluwagan/auth"
	"paluwagan/domain/pool"
	"paluwagan/errors"
	"paluwagan/repositories"
)

type IAuthService interface {
	Login(codename, password string) (Token, pool.Member, error)
	Register(codename, password string) (Token, pool.Member, error)
}

type AuthService struct {
	members repositories.IMemberRepository
	tokens  *auth.TokenSource
}

type Token string

func NewAuthService(members repositories.IMemberRepository, tokens *auth.TokenSource) *AuthService {
	return &AuthService{members: members, tokens: tokens}
}

func (s *AuthService) Register(codename, password string) (Token, pool.Member, error) {
	valReq := auth.RegisterRequest{
		Codename: codename,
		Password: password,
	}

	// Business rules first; hashing is the expensive step.
	if err := auth.ValidateRegister(valReq); err != nil {
		return "", pool.Member{}, fmt.Errorf("%w: %v", errors.ErrInvalidPassword, err)
	}

	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return "", pool.Member{}, fmt.Errorf("hashing failed: %w", err)
	}

	member, err := s.members.CreateMember(codename, hashedPassword, []string{"member"})
	if err != nil {
		return "", pool.Member{}, err // Propagates ErrMemberAlreadyExists
	}

	token, err := s.tokens.Generate(member.ID.String(), member.Codename, member.Roles)
	if err != nil {
		return "", pool.Member{}, errors.ErrTokenGeneration
	}
	return Token(token), member, nil
}

func (s *AuthService) Login(codename, password string) (Token, pool.Member, error) {
	record, err := s.members.GetByCodename(codename)
	if err != nil {
		// Generic error to prevent member enumeration.
		return "", pool.Member{}, errors.ErrInvalidCredentials
	}

	match, err := auth.ComparePassword(password, record.PasswordHash)
	if err != nil || !match {
		return "", pool.Member{}, errors.ErrInvalidCredentials
	}

	token, err := s.tokens.Generate(record.ID.String(), record.Codename, record.Roles)
	if err != nil {
		return "", pool.Member{}, errors.ErrTokenGeneration
	}
	return Token(token), record.Member, nil
}

// EnsureAdmin seeds the configured admin account at startup when missing.
func (s *AuthService) EnsureAdmin(codename, password string) (pool.Member, error) {
	if record, err := s.members.GetByCodename(codename); err == nil {
		return record.Member, nil
	}
	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return pool.Member{}, err
	}
	return s.members.CreateMember(codename, hashedPassword, []string{"member", "admin"})
}

// MemberByID exposes the directory lookup for the gateway.
func (s *AuthService) MemberByID(id uuid.UUID) (pool.Member, error) {
	return s.members.MemberByID(id)
}
