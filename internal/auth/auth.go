// Package auth authenticates wallets by their personal_sign signature.
//
// Clients send three headers: the wallet address, a message that ends with a
// unix timestamp, and the EIP-191 signature of that message. The recovered
// signer must match the claimed address and the timestamp must be recent.
package auth

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/unclebandit/squdy-backend/internal/config"
	appErrors "github.com/unclebandit/squdy-backend/internal/errors"
	"github.com/unclebandit/squdy-backend/internal/handler"
)

const (
	HeaderAddress   = "X-Wallet-Address"
	HeaderSignature = "X-Wallet-Signature"
	HeaderMessage   = "X-Wallet-Message"
)

type contextKey struct{}

type Verifier struct {
	MaxAge time.Duration
	Now    func() time.Time

	admins map[string]bool
}

func NewVerifier(cfg config.AuthConfig) *Verifier {
	admins := make(map[string]bool, len(cfg.AdminWallets))
	for _, w := range cfg.AdminWallets {
		admins[strings.ToLower(strings.TrimSpace(w))] = true
	}
	return &Verifier{MaxAge: cfg.SignatureMaxAge, Now: time.Now, admins: admins}
}

// Verify checks the signed message and returns the lower-cased wallet address.
// Signatures are not single-use; they stay valid until older than MaxAge.
func (v *Verifier) Verify(address, signature, message string) (string, error) {
	if address == "" || signature == "" || message == "" {
		return "", appErrors.NewUnauthorized("Missing wallet authentication headers")
	}
	if !common.IsHexAddress(address) {
		return "", appErrors.NewUnauthorized("Invalid wallet address")
	}

	signedAt, err := messageTimestamp(message)
	if err != nil {
		return "", err
	}
	age := v.Now().Sub(signedAt)
	if age > v.MaxAge || age < -v.MaxAge {
		return "", appErrors.NewUnauthorized("Signature expired")
	}

	sig, err := hexutil.Decode(signature)
	if err != nil || len(sig) != crypto.SignatureLength {
		return "", appErrors.NewUnauthorized("Invalid signature")
	}
	// wallets produce V as 27/28
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return "", appErrors.NewUnauthorized("Invalid signature")
	}
	recovered := crypto.PubkeyToAddress(*pub)
	if recovered != common.HexToAddress(address) {
		return "", appErrors.NewUnauthorized("Signature does not match wallet address")
	}
	return strings.ToLower(recovered.Hex()), nil
}

func (v *Verifier) IsAdmin(wallet string) bool {
	return v.admins[strings.ToLower(wallet)]
}

func messageTimestamp(message string) (time.Time, error) {
	fields := strings.FieldsFunc(message, func(r rune) bool {
		return unicode.IsSpace(r) || r == ':'
	})
	if len(fields) == 0 {
		return time.Time{}, appErrors.NewUnauthorized("Signed message must end with a unix timestamp")
	}
	ts, err := strconv.ParseInt(fields[len(fields)-1], 10, 64)
	if err != nil {
		return time.Time{}, appErrors.NewUnauthorized("Signed message must end with a unix timestamp")
	}
	// accept milliseconds too
	if ts > 1e12 {
		return time.UnixMilli(ts), nil
	}
	return time.Unix(ts, 0), nil
}

// RequireWallet rejects requests without a valid signature and stores the
// wallet in the request context.
func (v *Verifier) RequireWallet(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wallet, err := v.Verify(r.Header.Get(HeaderAddress), r.Header.Get(HeaderSignature), r.Header.Get(HeaderMessage))
		if err != nil {
			handler.WriteError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithWallet(r.Context(), wallet)))
	})
}

// RequireAdmin must run after RequireWallet.
func (v *Verifier) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wallet, ok := WalletFrom(r.Context())
		if !ok {
			handler.WriteError(w, appErrors.NewUnauthorized("Wallet authentication required"))
			return
		}
		if !v.IsAdmin(wallet) {
			handler.WriteError(w, appErrors.NewForbidden("Admin access required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func WithWallet(ctx context.Context, wallet string) context.Context {
	return context.WithValue(ctx, contextKey{}, wallet)
}

func WalletFrom(ctx context.Context) (string, bool) {
	wallet, ok := ctx.Value(contextKey{}).(string)
	return wallet, ok && wallet != ""
}
