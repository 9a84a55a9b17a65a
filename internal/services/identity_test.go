package services

import (
	"context"
	"testing"
	"time"

	"github.com/couponloop/exchange-backend/internal/apierr"
	"github.com/couponloop/exchange-backend/internal/logger"
	"github.com/couponloop/exchange-backend/internal/requestdata"
)

func newIdentitySvc(t *testing.T, ttl time.Duration) IdentityService {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return NewIdentityService(log, "test-secret", ttl)
}

func TestMintAndResolveToken(t *testing.T) {
	svc := newIdentitySvc(t, time.Hour)

	token, err := svc.MintToken(aliceAddr)
	if err != nil {
		t.Fatalf("MintToken: %v", err)
	}

	ctx, err := svc.SetContextFromToken(context.Background(), token)
	if err != nil {
		t.Fatalf("SetContextFromToken: %v", err)
	}
	rd := requestdata.GetRequestData(ctx)
	if rd == nil {
		t.Fatal("context carries no request data")
	}
	if rd.WalletAddress != aliceAddr {
		t.Fatalf("wallet address: want=%s got=%s", aliceAddr, rd.WalletAddress)
	}
}

func TestMintTokenRejectsNonWalletSubject(t *testing.T) {
	svc := newIdentitySvc(t, time.Hour)
	for _, addr := range []string{"", "alice", "0x123", "0xZZaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"} {
		if _, err := svc.MintToken(addr); !apierr.IsCode(err, apierr.CodeInvalidRequest) {
			t.Fatalf("MintToken(%q): want invalid_request, got %v", addr, err)
		}
	}
}

func TestResolveRejectsBadTokens(t *testing.T) {
	svc := newIdentitySvc(t, time.Hour)

	if _, err := svc.SetContextFromToken(context.Background(), ""); !apierr.IsCode(err, apierr.CodeUnauthorized) {
		t.Fatalf("empty token: want unauthorized, got %v", err)
	}
	if _, err := svc.SetContextFromToken(context.Background(), "not.a.jwt"); !apierr.IsCode(err, apierr.CodeUnauthorized) {
		t.Fatalf("garbage token: want unauthorized, got %v", err)
	}

	// Token signed with a different secret must not resolve.
	other := newIdentitySvc(t, time.Hour)
	foreign, err := NewIdentityService(mustLogger(t), "other-secret", time.Hour).MintToken(bobAddr)
	if err != nil {
		t.Fatalf("MintToken: %v", err)
	}
	if _, err := other.SetContextFromToken(context.Background(), foreign); !apierr.IsCode(err, apierr.CodeUnauthorized) {
		t.Fatalf("foreign signature: want unauthorized, got %v", err)
	}
}

func TestResolveRejectsExpiredToken(t *testing.T) {
	svc := newIdentitySvc(t, -time.Minute)
	token, err := svc.MintToken(carolAddr)
	if err != nil {
		t.Fatalf("MintToken: %v", err)
	}
	if _, err := svc.SetContextFromToken(context.Background(), token); !apierr.IsCode(err, apierr.CodeUnauthorized) {
		t.Fatalf("expired token: want unauthorized, got %v", err)
	}
}

func mustLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}
