package feature

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

// encMode produces deterministic CBOR: identical models encode to
// identical bytes.
var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("feature: CBOR encoder initialization failed: " + err.Error())
	}
}

// SaveModel serializes the model to path. Files ending in ".cbor" are
// written as CBOR, everything else as indented JSON.
func SaveModel(model *Model, path string) error {
	var data []byte
	var err error
	if isCBOR(path) {
		data, err = MarshalModelCBOR(model)
	} else {
		data, err = json.MarshalIndent(model, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("encode model: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// LoadModel deserializes a model written by SaveModel.
func LoadModel(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if isCBOR(path) {
		return UnmarshalModelCBOR(data)
	}
	return UnmarshalModel(data)
}

// MarshalModel serializes the model to JSON bytes.
func MarshalModel(model *Model) ([]byte, error) {
	return json.Marshal(model)
}

// UnmarshalModel deserializes a model from JSON bytes.
func UnmarshalModel(data []byte) (*Model, error) {
	var model Model
	if err := json.Unmarshal(data, &model); err != nil {
		return nil, err
	}
	return &model, nil
}

// MarshalModelCBOR serializes the model to CBOR bytes.
func MarshalModelCBOR(model *Model) ([]byte, error) {
	return encMode.Marshal(model)
}

// UnmarshalModelCBOR deserializes a model from CBOR bytes.
func UnmarshalModelCBOR(data []byte) (*Model, error) {
	var model Model
	if err := cbor.Unmarshal(data, &model); err != nil {
		return nil, err
	}
	return &model, nil
}

func isCBOR(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".cbor")
}
