package siweauth

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/scroll-tech/rpc-auth-proxy/internal/jwtauth"
	"github.com/scroll-tech/rpc-auth-proxy/internal/noncestore"
	"github.com/sirupsen/logrus"
	"github.com/spruceid/siwe-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testSigner(t *testing.T) *jwtauth.Signer {
	t.Helper()
	signer, err := jwtauth.New([]jwtauth.KeyEntry{{Kid: "k1", Secret: []byte("secret")}}, "k1")
	require.NoError(t, err)
	return signer
}

func silentLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	l.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(l)
}

func buildSIWE(t *testing.T, address, nonce string) string {
	t.Helper()
	msg, err := siwe.InitMessage(
		"example.com",
		address,
		"https://example.com",
		nonce,
		map[string]interface{}{
			"statement": "Sign in to the rpc-auth-proxy",
			"version":   "1",
			"chainId":   1,
			"issuedAt":  time.Now().Format(time.RFC3339),
		},
	)
	require.NoError(t, err)
	return msg.String()
}

func TestService_GetNonce(t *testing.T) {
	svc := NewService(noncestore.New(), testSigner(t), new(mockUpstream), time.Hour, silentLog())

	nonce, err := svc.GetNonce(context.Background())
	require.Nil(t, err)
	assert.NotEmpty(t, nonce)
}

func TestService_SignIn_Success(t *testing.T) {
	nonces := noncestore.New()
	svc := NewService(nonces, testSigner(t), new(mockUpstream), time.Hour, silentLog())

	nonce, rerr := svc.GetNonce(context.Background())
	require.Nil(t, rerr)

	privateKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	address := crypto.PubkeyToAddress(privateKey.PublicKey)

	message := buildSIWE(t, address.Hex(), nonce)
	hash := eip191Hash(message)
	sig, err := crypto.Sign(hash.Bytes(), privateKey)
	require.NoError(t, err)
	sig[64] += 27

	up := svc.upstream.(*mockUpstream)
	up.On("GetCode", mock.Anything, address).Return([]byte{}, nil)

	token, rerr := svc.SignIn(context.Background(), message, sig)
	require.Nil(t, rerr)
	assert.NotEmpty(t, token)

	claims, verr := svc.signer.Verify(token)
	require.NoError(t, verr)
	assert.Equal(t, address, claims.Address)
}

func TestService_SignIn_RejectsUnknownNonce(t *testing.T) {
	svc := NewService(noncestore.New(), testSigner(t), new(mockUpstream), time.Hour, silentLog())

	privateKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	address := crypto.PubkeyToAddress(privateKey.PublicKey)

	message := buildSIWE(t, address.Hex(), "never-issued-nonce")
	hash := eip191Hash(message)
	sig, err := crypto.Sign(hash.Bytes(), privateKey)
	require.NoError(t, err)
	sig[64] += 27

	_, rerr := svc.SignIn(context.Background(), message, sig)
	require.NotNil(t, rerr)
	assert.Equal(t, -32602, rerr.Code)
}

func TestService_SignIn_NonceIsBurnedEvenOnBadSignature(t *testing.T) {
	nonces := noncestore.New()
	svc := NewService(nonces, testSigner(t), new(mockUpstream), time.Hour, silentLog())

	nonce, rerr := svc.GetNonce(context.Background())
	require.Nil(t, rerr)

	privateKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	address := crypto.PubkeyToAddress(privateKey.PublicKey)
	message := buildSIWE(t, address.Hex(), nonce)

	up := svc.upstream.(*mockUpstream)
	up.On("GetCode", mock.Anything, address).Return([]byte{}, nil)

	garbageSig := make([]byte, 65)
	_, rerr = svc.SignIn(context.Background(), message, garbageSig)
	require.NotNil(t, rerr)

	// A second attempt with the same nonce, even with a correct signature,
	// must fail because the nonce was already consumed.
	hash := eip191Hash(message)
	validSig, err := crypto.Sign(hash.Bytes(), privateKey)
	require.NoError(t, err)
	validSig[64] += 27

	_, rerr = svc.SignIn(context.Background(), message, validSig)
	require.NotNil(t, rerr)
	assert.Contains(t, rerr.Message, "nonce")
}

func TestService_SignIn_RejectsMalformedMessage(t *testing.T) {
	svc := NewService(noncestore.New(), testSigner(t), new(mockUpstream), time.Hour, silentLog())

	_, rerr := svc.SignIn(context.Background(), "not a siwe message", []byte("sig"))
	require.NotNil(t, rerr)
	assert.Equal(t, -32602, rerr.Code)
}

