package dto

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	cryptoDomain "github.com/allisson/hsmvault/internal/crypto/domain"
)

func TestMapStatusToResponse(t *testing.T) {
	now := time.Now().UTC()
	status := &cryptoDomain.ProviderStatus{
		Type:        cryptoDomain.ProviderPKCS11,
		State:       cryptoDomain.StateActive,
		ActivatedAt: now,
		Healthy:     true,
		Config: cryptoDomain.ProviderConfig{
			Type: cryptoDomain.ProviderPKCS11,
			PKCS11: &cryptoDomain.PKCS11Config{
				LibraryPath: "/usr/lib/softhsm/libsofthsm2.so",
				SlotID:      0,
				KeyLabel:    "master_key",
				PIN:         "1234",
			},
		},
	}

	response := MapStatusToResponse(status)

	assert.Equal(t, "PKCS11", response.HSMType)
	assert.Equal(t, "active", response.State)
	assert.Equal(t, now, response.ActivatedAt)
	assert.True(t, response.Healthy)
	assert.Equal(t, "10s", response.Timeout)
	assert.Equal(t, "****", response.Config.PIN)
	assert.Equal(t, "master_key", response.Config.Label)
	if assert.NotNil(t, response.Config.SlotID) {
		assert.Equal(t, uint(0), *response.Config.SlotID)
	}
}

func TestMapDefaultsToResponse(t *testing.T) {
	defaults := testDefaults()
	defaults.CloudKMS.SecretAccessKey = "secret"

	response := MapDefaultsToResponse(defaults)

	assert.Equal(t, "SIMULATED", response.HSMType)
	assert.Equal(t, "simulated_kek.key", response.Simulated.KeyFilePath)
	assert.Equal(t, LegacyPKCS11View{
		PIN:         "****",
		SlotID:      "1",
		Label:       "master_key",
		LibraryPath: "/opt/safenet/lunaclient/lib/libCryptoki2_64.so",
	}, response.Luna)
	assert.Equal(t, "ap-northeast-2", response.AWS.Region)
	assert.Equal(t, "****", response.AWS.SecretKey)
	assert.Equal(t, "12341234", defaults.Luna.PIN)
}
