package tlsutil

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSelfSignedCA(t *testing.T, dir string) string {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template := x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "enginelink test CA"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	require.NoError(t, err)

	path := filepath.Join(dir, "ca.pem")
	require.NoError(t, os.WriteFile(path,
		pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600))
	return path
}

func TestLoad_ZeroConfigReturnsNil(t *testing.T) {
	cfg, err := Load(ClientConfig{})
	require.NoError(t, err)
	assert.Nil(t, cfg)
	assert.True(t, ClientConfig{}.IsZero())
}

func TestLoad_CustomCA(t *testing.T) {
	caPath := writeSelfSignedCA(t, t.TempDir())

	cfg, err := Load(ClientConfig{CAFiles: []string{caPath}})
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.NotNil(t, cfg.RootCAs)
	assert.Equal(t, uint16(tls.VersionTLS12), cfg.MinVersion)
}

func TestLoad_MissingCAFile(t *testing.T) {
	_, err := Load(ClientConfig{CAFiles: []string{filepath.Join(t.TempDir(), "nope.pem")}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read CA file")
}

func TestLoad_BadPEM(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.pem")
	require.NoError(t, os.WriteFile(path, []byte("not pem"), 0o600))

	_, err := Load(ClientConfig{CAFiles: []string{path}})
	require.Error(t, err)
}

func TestLoad_MinVersion(t *testing.T) {
	cfg, err := Load(ClientConfig{MinVersion: "1.3"})
	require.NoError(t, err)
	assert.Equal(t, uint16(tls.VersionTLS13), cfg.MinVersion)

	_, err = Load(ClientConfig{MinVersion: "1.0"})
	require.Error(t, err)
}

func TestLoad_KeypairMustBePaired(t *testing.T) {
	_, err := Load(ClientConfig{CertFile: "cert.pem"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "set together")
}

func TestLoad_InsecureSkipVerify(t *testing.T) {
	cfg, err := Load(ClientConfig{InsecureSkipVerify: true})
	require.NoError(t, err)
	assert.True(t, cfg.InsecureSkipVerify)
}
