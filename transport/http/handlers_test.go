package http

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/blocchat/gatekeeper/adapters/policy"
	"github.com/blocchat/gatekeeper/adapters/store"
	"github.com/blocchat/gatekeeper/core"
	"github.com/blocchat/gatekeeper/internal/eth"
	"github.com/blocchat/gatekeeper/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubOracle struct {
	native map[string]*big.Int
	tokens map[string]*big.Int
	err    error
}

func (o *stubOracle) NativeBalance(ctx context.Context, holder string) (*big.Int, error) {
	if o.err != nil {
		return nil, o.err
	}
	if b, ok := o.native[holder]; ok {
		return new(big.Int).Set(b), nil
	}
	return big.NewInt(0), nil
}

func (o *stubOracle) TokenBalance(ctx context.Context, tokenAddress, holder string) (*big.Int, error) {
	if o.err != nil {
		return nil, o.err
	}
	if b, ok := o.tokens[tokenAddress]; ok {
		return new(big.Int).Set(b), nil
	}
	return big.NewInt(0), nil
}

type apiFixture struct {
	router  *gin.Engine
	key     *ecdsa.PrivateKey
	address string
	oracle  *stubOracle
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	address := crypto.PubkeyToAddress(key.PublicKey).Hex()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	policies, err := policy.NewGormStore(db)
	require.NoError(t, err)

	log := zerolog.Nop()
	nonces := service.NewNonceManager(store.NewMemoryChallengeStore(), service.DefaultNonceTTL)
	sessions := service.NewSessionManager(store.NewMemorySessionStore(), service.DefaultSessionTTL)
	auth := service.NewAuthService(core.NewWhitelist([]string{address}), nonces, sessions, nil, log)

	oracle := &stubOracle{native: map[string]*big.Int{}, tokens: map[string]*big.Int{}}
	gates := service.NewGateService(policies, oracle, service.DefaultGateTimeout, false, log)

	return &apiFixture{
		router:  SetupRouter(auth, gates, db, nil, log),
		key:     key,
		address: address,
		oracle:  oracle,
	}
}

func (f *apiFixture) do(t *testing.T, method, path string, body any, modify ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, m := range modify {
		m(req)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func (f *apiFixture) sign(t *testing.T, message string) string {
	t.Helper()
	sig, err := crypto.Sign(eth.PersonalHash(message), f.key)
	require.NoError(t, err)
	return hexutil.Encode(sig)
}

// login runs the challenge and authenticate steps and returns the session
// token.
func (f *apiFixture) login(t *testing.T) string {
	t.Helper()

	rec := f.do(t, http.MethodPost, "/api/admin/nonce", gin.H{"wallet_address": f.address})
	require.Equal(t, http.StatusOK, rec.Code)
	challenge := decodeJSON(t, rec)

	rec = f.do(t, http.MethodPost, "/api/admin/auth", gin.H{
		"wallet_address": f.address,
		"nonce":          challenge["nonce"],
		"signature":      f.sign(t, challenge["message"].(string)),
	})
	require.Equal(t, http.StatusOK, rec.Code)
	return decodeJSON(t, rec)["session_token"].(string)
}

func bearer(token string) func(*http.Request) {
	return func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func sessionCookie(token string) func(*http.Request) {
	return func(req *http.Request) {
		req.AddCookie(&http.Cookie{Name: SessionCookie, Value: token})
	}
}

func TestAuthFlow(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/admin/nonce", gin.H{"wallet_address": f.address})
	require.Equal(t, http.StatusOK, rec.Code)
	challenge := decodeJSON(t, rec)
	nonce := challenge["nonce"].(string)
	message := challenge["message"].(string)
	assert.Contains(t, message, nonce)

	rec = f.do(t, http.MethodPost, "/api/admin/auth", gin.H{
		"wallet_address": f.address,
		"nonce":          nonce,
		"signature":      f.sign(t, message),
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeJSON(t, rec)
	assert.Equal(t, true, body["success"])
	token := body["session_token"].(string)
	assert.Len(t, token, 64)

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == SessionCookie {
			cookie = c
		}
	}
	require.NotNil(t, cookie, "login must set the session cookie")
	assert.Equal(t, token, cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.True(t, cookie.Secure)
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)

	// The cookie and the bearer header both authenticate the check endpoint.
	for _, with := range []func(*http.Request){sessionCookie(token), bearer(token)} {
		rec = f.do(t, http.MethodGet, "/api/admin/check", nil, with)
		require.Equal(t, http.StatusOK, rec.Code)
		body = decodeJSON(t, rec)
		assert.Equal(t, true, body["authenticated"])
		assert.Equal(t, strings.ToLower(f.address), body["wallet_address"])
	}

	rec = f.do(t, http.MethodPost, "/api/admin/logout", nil, sessionCookie(token))
	require.Equal(t, http.StatusOK, rec.Code)
	var cleared *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == SessionCookie {
			cleared = c
		}
	}
	require.NotNil(t, cleared)
	assert.Less(t, cleared.MaxAge, 0)

	rec = f.do(t, http.MethodGet, "/api/admin/check", nil, sessionCookie(token))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decodeJSON(t, rec)["authenticated"])
}

func TestAuthRejectsNonWhitelistedWallet(t *testing.T) {
	f := newAPIFixture(t)

	otherKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	other := crypto.PubkeyToAddress(otherKey.PublicKey).Hex()

	// Challenges are issued to any valid address; the whitelist gates login.
	rec := f.do(t, http.MethodPost, "/api/admin/nonce", gin.H{"wallet_address": other})
	require.Equal(t, http.StatusOK, rec.Code)
	challenge := decodeJSON(t, rec)

	sig, err := crypto.Sign(eth.PersonalHash(challenge["message"].(string)), otherKey)
	require.NoError(t, err)
	rec = f.do(t, http.MethodPost, "/api/admin/auth", gin.H{
		"wallet_address": other,
		"nonce":          challenge["nonce"],
		"signature":      hexutil.Encode(sig),
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, false, decodeJSON(t, rec)["success"])
}

func TestAuthRejectsWrongSigner(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/admin/nonce", gin.H{"wallet_address": f.address})
	require.Equal(t, http.StatusOK, rec.Code)
	challenge := decodeJSON(t, rec)

	otherKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	sig, err := crypto.Sign(eth.PersonalHash(challenge["message"].(string)), otherKey)
	require.NoError(t, err)

	rec = f.do(t, http.MethodPost, "/api/admin/auth", gin.H{
		"wallet_address": f.address,
		"nonce":          challenge["nonce"],
		"signature":      hexutil.Encode(sig),
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthRejectsBadNonce(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/admin/auth", gin.H{
		"wallet_address": f.address,
		"nonce":          "never-issued",
		"signature":      f.sign(t, "whatever"),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNonceRejectsInvalidAddress(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/admin/nonce", gin.H{"wallet_address": "not-an-address"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/admin/nonce", gin.H{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGateManagementRequiresSession(t *testing.T) {
	f := newAPIFixture(t)

	payload := gin.H{
		"operator":     "AND",
		"requirements": []gin.H{{"token_symbol": "ETH", "min_amount": "1"}},
	}

	rec := f.do(t, http.MethodPost, "/api/token-gates/conversations/conv1", payload)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/token-gates/conversations/conv1", payload, bearer("bogus"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token := f.login(t)
	rec = f.do(t, http.MethodPost, "/api/token-gates/conversations/conv1", payload, bearer(token))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGatePolicyLifecycle(t *testing.T) {
	f := newAPIFixture(t)
	token := f.login(t)

	rec := f.do(t, http.MethodGet, "/api/token-gates/conversations/conv1", nil, bearer(token))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	usdc := "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"
	rec = f.do(t, http.MethodPost, "/api/token-gates/conversations/conv1", gin.H{
		"operator": "OR",
		"requirements": []gin.H{
			{"token_symbol": "ETH", "min_amount": "1000000000000000000"},
			{"token_symbol": "USDC", "min_amount": "5000000", "token_address": usdc},
		},
	}, bearer(token))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/token-gates/conversations/conv1", nil, bearer(token))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeJSON(t, rec)
	assert.Equal(t, "OR", body["operator"])
	requirements := body["requirements"].([]any)
	require.Len(t, requirements, 2)
	first := requirements[0].(map[string]any)
	assert.Equal(t, "ETH", first["token_symbol"])
	assert.Nil(t, first["token_address"])

	rec = f.do(t, http.MethodDelete, "/api/token-gates/conversations/conv1", nil, bearer(token))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/token-gates/conversations/conv1", nil, bearer(token))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGateReplaceValidation(t *testing.T) {
	f := newAPIFixture(t)
	token := f.login(t)

	cases := []gin.H{
		{"operator": "XOR", "requirements": []gin.H{{"token_symbol": "ETH", "min_amount": "1"}}},
		{"operator": "AND", "requirements": []gin.H{{"token_symbol": "ETH", "min_amount": "1.5"}}},
		{"operator": "AND", "requirements": []gin.H{{"token_symbol": "BAD", "min_amount": "1", "token_address": "0xzz"}}},
		{"operator": "AND"},
	}
	for i, payload := range cases {
		rec := f.do(t, http.MethodPost, "/api/token-gates/conversations/conv1", payload, bearer(token))
		assert.Equal(t, http.StatusBadRequest, rec.Code, "case %d", i)
	}
}

func TestGateVerifyIsPublic(t *testing.T) {
	f := newAPIFixture(t)
	token := f.login(t)

	min := "1000000000000000000"
	rec := f.do(t, http.MethodPost, "/api/token-gates/conversations/conv1", gin.H{
		"operator":     "AND",
		"requirements": []gin.H{{"token_symbol": "ETH", "min_amount": min}},
	}, bearer(token))
	require.Equal(t, http.StatusOK, rec.Code)

	memberKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	member := crypto.PubkeyToAddress(memberKey.PublicKey).Hex()
	normalized := strings.ToLower(member)

	poor, ok := new(big.Int).SetString("500000000000000000", 10)
	require.True(t, ok)
	f.oracle.native[normalized] = poor

	// No session credential on the request.
	rec = f.do(t, http.MethodPost, "/api/token-gates/verify", gin.H{
		"conversation_id": "conv1",
		"wallet_address":  member,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeJSON(t, rec)
	assert.Equal(t, false, body["allowed"])
	met := body["requirements_met"].([]any)
	require.Len(t, met, 1)
	status := met[0].(map[string]any)
	assert.Equal(t, "ETH", status["token"])
	assert.Equal(t, min, status["required"])
	assert.Equal(t, "500000000000000000", status["balance"])
	assert.Equal(t, false, status["met"])

	rich, ok := new(big.Int).SetString("2000000000000000000", 10)
	require.True(t, ok)
	f.oracle.native[normalized] = rich

	rec = f.do(t, http.MethodPost, "/api/token-gates/verify", gin.H{
		"conversation_id": "conv1",
		"wallet_address":  member,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeJSON(t, rec)["allowed"])
}

func TestGateVerifyWithoutPolicyAllows(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/token-gates/verify", gin.H{
		"conversation_id": "no-such-conversation",
		"wallet_address":  f.address,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeJSON(t, rec)
	assert.Equal(t, true, body["allowed"])
	assert.Empty(t, body["requirements_met"])
}

func TestGateVerifyFailsClosedOnUpstreamError(t *testing.T) {
	f := newAPIFixture(t)
	token := f.login(t)

	rec := f.do(t, http.MethodPost, "/api/token-gates/conversations/conv1", gin.H{
		"operator":     "AND",
		"requirements": []gin.H{{"token_symbol": "ETH", "min_amount": "1"}},
	}, bearer(token))
	require.Equal(t, http.StatusOK, rec.Code)

	f.oracle.err = fmt.Errorf("rpc unavailable")
	rec = f.do(t, http.MethodPost, "/api/token-gates/verify", gin.H{
		"conversation_id": "conv1",
		"wallet_address":  f.address,
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHealth(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeJSON(t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "ok", body["database"])
}
