package services

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/couponloop/exchange-backend/internal/apierr"
	"github.com/couponloop/exchange-backend/internal/logger"
	"github.com/couponloop/exchange-backend/internal/requestdata"
	"github.com/couponloop/exchange-backend/internal/types"
)

// IdentityService resolves bearer credentials to a verified wallet address.
// Wallet verification itself (signature challenge, session exchange) lives in
// an external identity provider; this service only validates the tokens that
// provider signs and makes the wallet address available on the request
// context.
type IdentityService interface {
	SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
	MintToken(walletAddress string) (string, error)
}

type identityService struct {
	log          *logger.Logger
	jwtSecretKey string
	tokenTTL     time.Duration
}

func NewIdentityService(baseLog *logger.Logger, jwtSecretKey string, tokenTTL time.Duration) IdentityService {
	return &identityService{
		log:          baseLog.With("service", "IdentityService"),
		jwtSecretKey: jwtSecretKey,
		tokenTTL:     tokenTTL,
	}
}

type walletClaims struct {
	WalletAddress string `json:"wallet_address"`
	jwt.RegisteredClaims
}

func (s *identityService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
	if tokenString == "" {
		return ctx, apierr.Unauthorized("missing token")
	}
	parsed, err := jwt.ParseWithClaims(tokenString, &walletClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecretKey), nil
	})
	if err != nil {
		return ctx, apierr.Unauthorized("invalid token: %v", err)
	}
	claims, ok := parsed.Claims.(*walletClaims)
	if !ok || !parsed.Valid {
		return ctx, apierr.Unauthorized("invalid token claims")
	}
	if !types.IsWalletAddress(claims.WalletAddress) {
		return ctx, apierr.Unauthorized("token carries no wallet address")
	}
	rd := &requestdata.RequestData{
		TokenString:   tokenString,
		WalletAddress: claims.WalletAddress,
	}
	return requestdata.WithRequestData(ctx, rd), nil
}

func (s *identityService) MintToken(walletAddress string) (string, error) {
	if !types.IsWalletAddress(walletAddress) {
		return "", apierr.InvalidRequest("not a wallet address: %q", walletAddress)
	}
	now := time.Now()
	claims := walletClaims{
		WalletAddress: walletAddress,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   walletAddress,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.jwtSecretKey))
	if err != nil {
		s.log.Error("Token signing failed", "error", err)
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
