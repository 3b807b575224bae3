package statusnet

import (
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-fed/httpsig"
)

// signedHeaders are covered by the signature of a bodyless GET
var signedHeaders = []string{httpsig.RequestTarget, "host", "date"}

// Signer adds an HTTP signature to outgoing requests, for servers that
// only answer signed (authorized) fetches
type Signer struct {
	KeyID string
	Key   crypto.PrivateKey
}

func NewSigner(keyID string, key crypto.PrivateKey) *Signer {
	return &Signer{KeyID: keyID, Key: key}
}

// Sign sets the Date and Host headers if needed and signs the request
func (s *Signer) Sign(r *http.Request) error {
	if r.Header.Get("Date") == "" {
		r.Header.Set("Date", time.Now().UTC().Format(http.TimeFormat))
	}
	if r.Header.Get("Host") == "" {
		r.Header.Set("Host", r.URL.Host)
	}
	// httpsig signers are not safe for concurrent use
	signer, _, err := httpsig.NewSigner([]httpsig.Algorithm{httpsig.RSA_SHA256}, httpsig.DigestSha256, signedHeaders, httpsig.Signature, 0)
	if err != nil {
		return err
	}
	return signer.SignRequest(s.Key, s.KeyID, r, nil)
}

// LoadPrivateKey reads a PEM private key file
func LoadPrivateKey(filename string) (crypto.PrivateKey, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return ParsePrivateKey(b)
}

// ParsePrivateKey accepts PKCS#8 and PKCS#1 PEM blocks
func ParsePrivateKey(pemBytes []byte) (crypto.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, fmt.Errorf("no pem block found")
	}
	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	return key, nil
}
