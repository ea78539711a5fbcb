// Package siweauth implements the siwe_getNonce / siwe_signIn methods: nonce
// issuance, SIWE message parsing, signature verification, and JWT issuance.
package siweauth

import (
	"context"
	"fmt"
	"time"

	"github.com/scroll-tech/rpc-auth-proxy/internal/jwtauth"
	"github.com/scroll-tech/rpc-auth-proxy/internal/noncestore"
	"github.com/scroll-tech/rpc-auth-proxy/internal/rpcerr"
	"github.com/scroll-tech/rpc-auth-proxy/internal/upstream"
	"github.com/sirupsen/logrus"
	"github.com/spruceid/siwe-go"
)

// Service orchestrates the Nonce Store, the Signature Verifier, and the JWT
// Signer behind the two siwe_* RPC methods.
type Service struct {
	nonces    *noncestore.Store
	signer    *jwtauth.Signer
	upstream  upstream.Upstream
	jwtExpiry time.Duration
	log       *logrus.Entry
}

// NewService wires a Service from its collaborators.
func NewService(nonces *noncestore.Store, signer *jwtauth.Signer, up upstream.Upstream, jwtExpiry time.Duration, log *logrus.Entry) *Service {
	return &Service{nonces: nonces, signer: signer, upstream: up, jwtExpiry: jwtExpiry, log: log}
}

// GetNonce mints and returns a fresh nonce.
func (s *Service) GetNonce(ctx context.Context) (string, *rpcerr.Error) {
	nonce, err := s.nonces.Fresh()
	if err != nil {
		return "", rpcerr.Internal("unable to generate nonce")
	}
	return nonce, nil
}

// SignIn validates message/signature and, on success, issues a JWT scoped
// to the address the message claims to be signed by.
//
// The nonce is consumed before signature verification runs, by design: a
// forged sign-in attempt still burns the captured nonce, so a slow online
// signature oracle cannot be used to amortise it across many guesses.
func (s *Service) SignIn(ctx context.Context, message string, signature []byte) (string, *rpcerr.Error) {
	parsed, err := siwe.ParseMessage(message)
	if err != nil {
		return "", rpcerr.InvalidParams(fmt.Sprintf("invalid SIWE message: %s", err))
	}

	nonce := parsed.GetNonce()
	if !s.nonces.Consume(nonce) {
		return "", rpcerr.InvalidParams(fmt.Sprintf("invalid message nonce: %s", nonce))
	}

	address := parsed.GetAddress()
	ok, err := Verify(ctx, s.upstream, address, message, signature)
	if err != nil {
		s.log.WithError(err).Warn("siwe signature verification failed")
		return "", rpcerr.Internal("signature verification failed")
	}
	if !ok {
		return "", rpcerr.InvalidParams("invalid message or signature")
	}

	exp := time.Now().Add(s.jwtExpiry)
	token, err := s.signer.Issue(address, exp)
	if err != nil {
		s.log.WithError(err).Error("jwt issuance failed")
		return "", rpcerr.Internal("unable to issue token")
	}
	return token, nil
}
