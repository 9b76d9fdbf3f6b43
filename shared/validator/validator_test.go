package validator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type samplePayload struct {
	MovieID string `json:"movieId" validate:"required"`
	Page    int    `json:"page"    validate:"omitempty,min=1,max=500"`
	Email   string `json:"email"   validate:"omitempty,email"`
}

func TestValidator_Struct(t *testing.T) {
	v, err := New()
	require.NoError(t, err)

	tests := []struct {
		name    string
		payload samplePayload
		wantMsg string
		wantTag string
	}{
		{
			name:    "valid",
			payload: samplePayload{MovieID: "550", Page: 2},
		},
		{
			name:    "missing movie id",
			payload: samplePayload{},
			wantMsg: "movieId is required",
			wantTag: "required",
		},
		{
			name:    "page out of range",
			payload: samplePayload{MovieID: "1", Page: 501},
			wantTag: "max",
		},
		{
			name:    "invalid email",
			payload: samplePayload{MovieID: "1", Email: "nope"},
			wantTag: "email",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(tt.payload)
			if tt.wantTag == "" {
				assert.NoError(t, err)
				return
			}

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			require.Len(t, verr.Errors, 1)
			assert.Equal(t, tt.wantTag, verr.Errors[0].Tag)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, verr.Errors[0].Message)
				assert.Equal(t, tt.wantMsg, verr.Error())
			}
		})
	}
}

func TestValidator_NonStruct(t *testing.T) {
	v, err := New()
	require.NoError(t, err)

	err = v.Struct("not a struct")
	require.Error(t, err)

	var verr *ValidationError
	assert.False(t, errors.As(err, &verr))
}
