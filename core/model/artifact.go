package model

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/ezoic/elasticity/pkg/errors"
)

// FormatVersion is the only artifact format version this module reads and writes.
const FormatVersion = "1.0"

// ArtifactSpec identifies the estimator stored in an artifact.
type ArtifactSpec struct {
	Name           string `json:"name"`                      // estimator name, e.g. "RandomForestRegressor"
	FormatVersion  string `json:"format_version"`            // artifact format version
	SKLearnVersion string `json:"sklearn_version,omitempty"` // producing scikit-learn version, if exported from Python
}

// Artifact is a serialized trained model together with the feature names it was
// trained on, in column order. Categories maps string-valued feature columns to the
// ordered category list used to encode them.
type Artifact struct {
	ModelSpec    ArtifactSpec        `json:"model_spec"`
	FeatureNames []string            `json:"feature_names"`
	Categories   map[string][]string `json:"categories,omitempty"`
	Params       json.RawMessage     `json:"params"`
}

// ReadArtifact decodes and validates an artifact envelope. The estimator params are
// left raw for the estimator package to decode.
func ReadArtifact(r io.Reader) (*Artifact, error) {
	var a Artifact
	if err := json.NewDecoder(r).Decode(&a); err != nil {
		return nil, errors.NewDeserializationError("ReadArtifact", "model artifact", err)
	}

	if a.ModelSpec.FormatVersion == "" {
		return nil, errors.NewDeserializationError("ReadArtifact", "model artifact",
			errors.New("format_version is required"))
	}
	if a.ModelSpec.FormatVersion != FormatVersion {
		return nil, errors.NewDeserializationError("ReadArtifact", "model artifact",
			errors.Newf("unsupported format version: %s", a.ModelSpec.FormatVersion))
	}
	if a.ModelSpec.Name == "" {
		return nil, errors.NewDeserializationError("ReadArtifact", "model artifact",
			errors.New("model name is required"))
	}
	if len(a.FeatureNames) == 0 {
		return nil, errors.NewDeserializationError("ReadArtifact", "model artifact",
			errors.New("feature_names cannot be empty"))
	}
	if len(a.Params) == 0 {
		return nil, errors.NewDeserializationError("ReadArtifact", "model artifact",
			errors.New("params are required"))
	}

	return &a, nil
}

// DecodeParams unmarshals the estimator params into v.
func (a *Artifact) DecodeParams(v interface{}) error {
	if err := json.Unmarshal(a.Params, v); err != nil {
		return errors.NewDeserializationError("DecodeParams", a.ModelSpec.Name+" params", err)
	}
	return nil
}

// NewArtifact builds an artifact for the named estimator from its params.
func NewArtifact(name string, featureNames []string, categories map[string][]string, params interface{}) (*Artifact, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal params: %w", err)
	}
	return &Artifact{
		ModelSpec:    ArtifactSpec{Name: name, FormatVersion: FormatVersion},
		FeatureNames: featureNames,
		Categories:   categories,
		Params:       raw,
	}, nil
}

// Write encodes the artifact as indented JSON.
func (a *Artifact) Write(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(a); err != nil {
		return fmt.Errorf("failed to encode artifact: %w", err)
	}
	return nil
}
