package email

import (
	"bytes"
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/emersion/go-msgauth/dkim"
)

// dkimHeaderKeys are the headers covered by the signature.
var dkimHeaderKeys = []string{
	"from",
	"to",
	"subject",
	"date",
	"message-id",
	"mime-version",
	"content-type",
}

// DKIMSigner adds a DKIM-Signature header to raw RFC 5322 messages.
type DKIMSigner struct {
	domain   string
	selector string
	key      crypto.Signer
}

// NewDKIMSigner builds a signer from the SMTP_DKIM_* settings.
// It returns nil without error when DKIM is not configured.
func NewDKIMSigner(cfg Config) (*DKIMSigner, error) {
	if cfg.DKIMSelector == "" && cfg.DKIMPrivateKey == "" && cfg.DKIMKeyPath == "" {
		return nil, nil
	}
	if cfg.DKIMSelector == "" {
		return nil, fmt.Errorf("%w: SMTP_DKIM_SELECTOR is required when DKIM is enabled", ErrInvalidConfig)
	}

	pemData := []byte(cfg.DKIMPrivateKey)
	if len(pemData) == 0 {
		if cfg.DKIMKeyPath == "" {
			return nil, fmt.Errorf("%w: SMTP_DKIM_PRIVATE_KEY or SMTP_DKIM_KEY_PATH is required", ErrInvalidConfig)
		}
		data, err := os.ReadFile(cfg.DKIMKeyPath)
		if err != nil {
			return nil, fmt.Errorf("%w: read DKIM key: %w", ErrInvalidConfig, err)
		}
		pemData = data
	}

	key, err := parsePrivateKey(pemData)
	if err != nil {
		return nil, fmt.Errorf("%w: parse DKIM key: %w", ErrInvalidConfig, err)
	}

	domain := cfg.DKIMDomain
	if domain == "" {
		domain = domainOf(cfg.SenderEmail)
	}
	if domain == "" {
		return nil, fmt.Errorf("%w: cannot determine DKIM signing domain", ErrInvalidConfig)
	}

	return &DKIMSigner{domain: domain, selector: cfg.DKIMSelector, key: key}, nil
}

// Sign returns message with a DKIM-Signature header prepended.
// A nil signer returns the message unchanged.
func (s *DKIMSigner) Sign(message []byte) ([]byte, error) {
	if s == nil {
		return message, nil
	}

	var signed bytes.Buffer
	err := dkim.Sign(&signed, bytes.NewReader(message), &dkim.SignOptions{
		Domain:                 s.domain,
		Selector:               s.selector,
		Signer:                 s.key,
		HeaderCanonicalization: dkim.CanonicalizationRelaxed,
		BodyCanonicalization:   dkim.CanonicalizationRelaxed,
		HeaderKeys:             dkimHeaderKeys,
	})
	if err != nil {
		return nil, fmt.Errorf("dkim signing failed: %w", err)
	}
	return signed.Bytes(), nil
}

func parsePrivateKey(pemData []byte) (crypto.Signer, error) {
	for {
		block, rest := pem.Decode(pemData)
		if block == nil {
			return nil, errors.New("no private key found in PEM data")
		}

		switch block.Type {
		case "RSA PRIVATE KEY":
			return x509.ParsePKCS1PrivateKey(block.Bytes)
		case "PRIVATE KEY":
			key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
			if err != nil {
				return nil, err
			}
			signer, ok := key.(crypto.Signer)
			if !ok {
				return nil, errors.New("unsupported PKCS#8 key type")
			}
			return signer, nil
		}
		pemData = rest
	}
}

func domainOf(address string) string {
	if i := strings.LastIndex(address, "@"); i >= 0 && i+1 < len(address) {
		return strings.ToLower(address[i+1:])
	}
	return ""
}
