package shared

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type decodeTarget struct {
	Type    string `json:"type"`
	Retries int    `json:"retries"`
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name        string
		requestBody string
		wantErr     bool
		errContains string
	}{
		{
			name:        "valid json",
			requestBody: `{"type": "echo", "retries": 3}`,
		},
		{
			name:        "invalid json",
			requestBody: `{"type": "echo", "retries": 3,}`, // trailing comma
			wantErr:     true,
			errContains: "invalid character",
		},
		{
			name:        "empty body",
			requestBody: "",
			wantErr:     true,
			errContains: "EOF",
		},
		{
			name:        "unknown field",
			requestBody: `{"type": "echo", "priority": 1}`,
			wantErr:     true,
			errContains: `unknown field "priority"`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(
				http.MethodPost,
				"/test",
				bytes.NewBufferString(tc.requestBody),
			)

			var target decodeTarget
			err := DecodeJSON(req, &target)

			if tc.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.errContains)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "echo", target.Type)
			assert.Equal(t, 3, target.Retries)
		})
	}
}

// errorReader fails every read
type errorReader struct{}

func (er errorReader) Read(p []byte) (n int, err error) {
	return 0, io.ErrUnexpectedEOF
}

func TestDecodeJSONWithReadError(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/test", errorReader{})

	var target struct{}
	err := DecodeJSON(req, &target)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected EOF")
}

type selfValidating struct {
	Name string `validate:"required"`
}

func (v *selfValidating) Validate() error {
	if v.Name == "invalid" {
		return &validator.ValidationErrors{}
	}
	return nil
}

type tagged struct {
	Workers int `validate:"gte=1"`
}

func TestValidateRequest(t *testing.T) {
	tests := []struct {
		name    string
		req     interface{}
		wantErr bool
	}{
		{
			name:    "valid request with validator",
			req:     &selfValidating{Name: "test"},
			wantErr: false,
		},
		{
			name:    "invalid request with validator",
			req:     &selfValidating{Name: "invalid"},
			wantErr: true,
		},
		{
			name:    "struct tags satisfied",
			req:     &tagged{Workers: 2},
			wantErr: false,
		},
		{
			name:    "struct tags violated",
			req:     &tagged{Workers: 0},
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateRequest(tc.req)

			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
