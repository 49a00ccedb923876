package factstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"vocatio/internal/errors"
	"vocatio/internal/types"
)

// LoadCandidate reads a candidate record from a JSON or YAML file.
func LoadCandidate(path string) (*types.CandidateRecord, error) {
	var record types.CandidateRecord
	if err := decodeFile(path, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// LoadJob reads a job record from a JSON or YAML file.
func LoadJob(path string) (*types.JobRecord, error) {
	var record types.JobRecord
	if err := decodeFile(path, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// DecodeRecord decodes data according to the file extension in name.
func DecodeRecord(name string, data []byte, out any) error {
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, out); err != nil {
			return errors.NewValidationError(errors.ErrCodeInvalidFormat,
				fmt.Sprintf("invalid YAML in %s", name), err)
		}
	case ".json", "":
		if err := json.Unmarshal(data, out); err != nil {
			return errors.NewValidationError(errors.ErrCodeInvalidFormat,
				fmt.Sprintf("invalid JSON in %s", name), err)
		}
	default:
		return errors.NewValidationError(errors.ErrCodeInvalidFormat,
			fmt.Sprintf("unsupported record file type %q", ext), nil).
			WithContext("supported", []string{".json", ".yaml", ".yml"})
	}
	return nil
}

func decodeFile(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.NewIOError(errors.ErrCodeFileNotFound, "record file not found", err).
				WithContext("path", path)
		}
		return errors.NewIOError(errors.ErrCodeFileNotReadable, "failed to read record file", err).
			WithContext("path", path)
	}
	return DecodeRecord(path, data, out)
}
