package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrSignatureMissing means the delivery carried no signature header.
	ErrSignatureMissing = errors.New("missing webhook signature")
	// ErrSignatureInvalid means the signature did not match the payload.
	// Callers must not expose more detail than a generic rejection.
	ErrSignatureInvalid = errors.New("invalid webhook signature")
)

// SignatureVerifier authenticates a raw webhook delivery against its
// signature header. Implementations are provider-agnostic: the secret and
// raw bytes go in, verified-or-not comes out.
type SignatureVerifier interface {
	Verify(payload []byte, signatureHeader string) error
}

const defaultSignatureTolerance = 5 * time.Minute

// HMACVerifier verifies signatures of the form "t=<unix>,v1=<hex>" where v1
// is HMAC-SHA256 over "<unix>.<payload>" under a shared secret. Multiple v1
// elements are accepted to allow secret rotation.
type HMACVerifier struct {
	secret    []byte
	tolerance time.Duration
}

// NewHMACVerifier creates a verifier for the given shared secret.
func NewHMACVerifier(secret string) *HMACVerifier {
	return &HMACVerifier{
		secret:    []byte(secret),
		tolerance: defaultSignatureTolerance,
	}
}

// Verify checks the signature header against the payload.
func (v *HMACVerifier) Verify(payload []byte, signatureHeader string) error {
	if signatureHeader == "" {
		return ErrSignatureMissing
	}
	if len(v.secret) == 0 {
		return ErrSignatureInvalid
	}

	var timestamp string
	var signatures []string
	for _, element := range strings.Split(signatureHeader, ",") {
		parts := strings.SplitN(element, "=", 2)
		if len(parts) != 2 {
			continue
		}
		switch parts[0] {
		case "t":
			timestamp = parts[1]
		case "v1":
			signatures = append(signatures, parts[1])
		}
	}

	if timestamp == "" || len(signatures) == 0 {
		return ErrSignatureInvalid
	}

	timestampInt, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return ErrSignatureInvalid
	}

	// Reject stale deliveries to limit replay
	if time.Now().Unix()-timestampInt > int64(v.tolerance.Seconds()) {
		return ErrSignatureInvalid
	}

	signedPayload := timestamp + "." + string(payload)
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(signedPayload))
	expectedSignature := hex.EncodeToString(mac.Sum(nil))

	for _, providedSig := range signatures {
		if hmac.Equal([]byte(expectedSignature), []byte(providedSig)) {
			return nil
		}
	}

	return ErrSignatureInvalid
}
