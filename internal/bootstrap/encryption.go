package bootstrap

import (
	"log/slog"

	"github.com/commandcenter/inboxauth/internal/data/cryptoutil"
)

// CreateEncryptor returns the AES-GCM encryptor for provider tokens, or a noop encryptor
// (with a warning) when no usable key is configured.
//
//nolint:ireturn // callers only need the Encryptor contract.
func CreateEncryptor(key string, logger *slog.Logger) cryptoutil.Encryptor {
	if logger == nil {
		logger = slog.Default()
	}
	if key == "" {
		logger.Warn("TOKEN_ENCRYPTION_KEY is empty, provider tokens are stored unencrypted")
		return cryptoutil.NoopEncryptor{}
	}
	keyBytes, err := cryptoutil.KeyFromString(key)
	if err == nil {
		var enc *cryptoutil.AESGCMEncryptor
		if enc, err = cryptoutil.NewAESGCMEncryptor(keyBytes); err == nil {
			return enc
		}
	}
	logger.Warn("failed to create token encryptor, provider tokens are stored unencrypted", "error", err)
	return cryptoutil.NoopEncryptor{}
}
