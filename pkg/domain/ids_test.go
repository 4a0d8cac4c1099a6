package domain

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "appregistry/pkg/domain-errors"
)

func TestParseApplicationID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseApplicationID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseApplicationID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseApplicationID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		valid := uuid.New()
		id, err := ParseApplicationID(valid.String())
		require.NoError(t, err)
		assert.Equal(t, ApplicationID(valid), id)
	})
}

func TestParseUserID_Invariants(t *testing.T) {
	_, err := ParseUserID("")
	require.Error(t, err)

	valid := uuid.New()
	id, err := ParseUserID(valid.String())
	require.NoError(t, err)
	assert.Equal(t, UserID(valid), id)
}

// IDs marshal as canonical UUID strings, not as byte arrays.
func TestID_JSONRoundTrip(t *testing.T) {
	appID := NewApplicationID()

	data, err := json.Marshal(appID)
	require.NoError(t, err)
	assert.Equal(t, `"`+appID.String()+`"`, string(data))

	var decoded ApplicationID
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, appID, decoded)
}

func TestID_JSONRejectsNil(t *testing.T) {
	var decoded UserID
	err := json.Unmarshal([]byte(`"`+uuid.Nil.String()+`"`), &decoded)
	require.Error(t, err)
}

func TestIsZero(t *testing.T) {
	assert.True(t, ApplicationID{}.IsZero())
	assert.True(t, UserID{}.IsZero())
	assert.True(t, NotificationID{}.IsZero())
	assert.False(t, NewApplicationID().IsZero())
}
