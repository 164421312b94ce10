package model_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ezoic/elasticity/core/model"
	elErrors "github.com/ezoic/elasticity/pkg/errors"
)

func TestArtifactRoundTrip(t *testing.T) {
	params := map[string]interface{}{"intercept": 1.5}
	a, err := model.NewArtifact("LinearRegression", []string{"Price", "Store"},
		map[string][]string{"Store": {"StoreA", "StoreB"}}, params)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, a.Write(&buf))

	got, err := model.ReadArtifact(&buf)
	require.NoError(t, err)
	assert.Equal(t, "LinearRegression", got.ModelSpec.Name)
	assert.Equal(t, model.FormatVersion, got.ModelSpec.FormatVersion)
	assert.Equal(t, []string{"Price", "Store"}, got.FeatureNames)
	assert.Equal(t, []string{"StoreA", "StoreB"}, got.Categories["Store"])

	var decoded struct {
		Intercept float64 `json:"intercept"`
	}
	require.NoError(t, got.DecodeParams(&decoded))
	assert.Equal(t, 1.5, decoded.Intercept)
}

func TestReadArtifactRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", "\x80\x04\x95pickle"},
		{"missing version", `{"model_spec":{"name":"LinearRegression"},"feature_names":["a"],"params":{}}`},
		{"unsupported version", `{"model_spec":{"name":"LinearRegression","format_version":"9.9"},"feature_names":["a"],"params":{}}`},
		{"missing name", `{"model_spec":{"format_version":"1.0"},"feature_names":["a"],"params":{}}`},
		{"missing features", `{"model_spec":{"name":"X","format_version":"1.0"},"params":{}}`},
		{"missing params", `{"model_spec":{"name":"X","format_version":"1.0"},"feature_names":["a"]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := model.ReadArtifact(strings.NewReader(tt.body))
			require.Error(t, err)
			assert.True(t, errors.Is(err, elErrors.ErrDeserialization), "got %v", err)
		})
	}
}

func TestStateManager(t *testing.T) {
	s := model.NewStateManager()
	assert.False(t, s.IsFitted())

	s.SetFitted()
	s.SetDimensions(5, 100)
	assert.True(t, s.IsFitted())
	nf, ns := s.GetDimensions()
	assert.Equal(t, 5, nf)
	assert.Equal(t, 100, ns)

	s.Reset()
	assert.False(t, s.IsFitted())
}
