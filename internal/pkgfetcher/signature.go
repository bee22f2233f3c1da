package pkgfetcher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/bohica-labs/writescore-installer/internal/failure"
	"github.com/bohica-labs/writescore-installer/internal/utils/logger"
)

const maxSignatureBytes = 64 * 1024

// LoadKeyRing reads an armored public key. key is either the armored text
// itself or a path to a file holding it.
func LoadKeyRing(key string) (openpgp.EntityList, error) {
	var data []byte
	if strings.HasPrefix(strings.TrimSpace(key), "-----BEGIN PGP") {
		data = []byte(key)
	} else {
		var err error
		data, err = os.ReadFile(key)
		if err != nil {
			return nil, fmt.Errorf("reading signing key %s: %w", key, err)
		}
	}
	keyring, err := openpgp.ReadArmoredKeyRing(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parsing signing key: %w", err)
	}
	return keyring, nil
}

// VerifySignature downloads the armored detached signature at signatureURL
// and checks it over the archive at archivePath.
func VerifySignature(ctx context.Context, archivePath, signatureURL, signingKey string, opts Options) error {
	log := logger.Logger()

	keyring, err := LoadKeyRing(signingKey)
	if err != nil {
		return failure.Integrity(stepVerify, "%v", err)
	}

	body, _, err := open(ctx, signatureURL, opts)
	if err != nil {
		return err
	}
	defer body.Close()

	sig, err := io.ReadAll(io.LimitReader(body, maxSignatureBytes))
	if err != nil {
		return failure.Integrity(stepFetch, "reading signature %s: %v", signatureURL, err)
	}

	archive, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", archivePath, err)
	}
	defer archive.Close()

	signer, err := openpgp.CheckArmoredDetachedSignature(keyring, archive, bytes.NewReader(sig), nil)
	if err != nil {
		return failure.Integrity(stepVerify, "signature check failed for %s: %v", archivePath, err)
	}

	for name := range signer.Identities {
		log.Infof("good signature from %s", name)
		break
	}
	return nil
}
