package common

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"vocatio/internal/errors"
	"vocatio/internal/factstore"
	"vocatio/internal/types"
	"vocatio/internal/utils"
)

// InputFile is one file named on the command line.
type InputFile struct {
	Name string
	Data []byte
}

// FileProcessor handles common file operations.
type FileProcessor struct {
	logger  *errors.Logger
	maxSize int64
}

// NewFileProcessor creates a new file processor. maxSize caps input files in
// bytes; zero means unlimited.
func NewFileProcessor(logger *errors.Logger, maxSize int64) *FileProcessor {
	return &FileProcessor{logger: logger, maxSize: maxSize}
}

// ReadFile reads content from a file with proper error handling.
func (fp *FileProcessor) ReadFile(filename string) ([]byte, error) {
	file, err := os.Open(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewIOError(errors.ErrCodeFileNotFound,
				fmt.Sprintf("File not found: %s", filename), err)
		}
		return nil, errors.NewIOError(errors.ErrCodeFileNotReadable,
			fmt.Sprintf("Cannot read file: %s", filename), err)
	}
	defer func() {
		if err := file.Close(); err != nil && fp.logger != nil {
			fp.logger.Warn("Failed to close file", "filename", filename, "error", err)
		}
	}()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, errors.NewIOError(errors.ErrCodeFileNotReadable,
			fmt.Sprintf("Failed to read file content: %s", filename), err)
	}

	return content, nil
}

// WriteFile writes content to a file with directory creation.
func (fp *FileProcessor) WriteFile(filename, content string) error {
	dir := filepath.Dir(filename)
	if dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return errors.NewIOError("DIRECTORY_CREATE_FAILED",
				fmt.Sprintf("Cannot create directory: %s", dir), err)
		}
	}

	if err := os.WriteFile(filename, []byte(content), 0600); err != nil {
		return errors.NewIOError("FILE_WRITE_FAILED",
			fmt.Sprintf("Cannot write file: %s", filename), err)
	}

	return nil
}

// ValidateAndReadFiles validates and reads multiple input files.
func (fp *FileProcessor) ValidateAndReadFiles(filenames ...string) ([]InputFile, error) {
	files := make([]InputFile, len(filenames))

	for i, filename := range filenames {
		if err := utils.ValidateInputFile(filename, fp.maxSize); err != nil {
			return nil, errors.NewValidationError("INVALID_INPUT_FILE",
				fmt.Sprintf("Invalid file %s", filename), err)
		}

		if !utils.IsRecordFile(filename) && fp.logger != nil {
			fp.logger.Warn("File has no .json/.yaml extension, decoding as JSON",
				"filename", filename)
		}

		content, err := fp.ReadFile(filename)
		if err != nil {
			return nil, err
		}

		files[i] = InputFile{Name: filename, Data: content}
	}

	return files, nil
}

// ValidateOutputFile validates output file path.
func (fp *FileProcessor) ValidateOutputFile(filename string) error {
	if filename == "" {
		return nil // stdout is valid
	}

	if err := utils.ValidateOutputFile(filename); err != nil {
		return errors.NewValidationError("INVALID_OUTPUT_FILE",
			fmt.Sprintf("Invalid output file: %s", filename), err)
	}

	return nil
}

// DecodeCandidate decodes an input file as a candidate record.
func DecodeCandidate(file InputFile) (*types.CandidateRecord, error) {
	var record types.CandidateRecord
	if err := factstore.DecodeRecord(file.Name, file.Data, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// DecodeJob decodes an input file as a job record.
func DecodeJob(file InputFile) (*types.JobRecord, error) {
	var record types.JobRecord
	if err := factstore.DecodeRecord(file.Name, file.Data, &record); err != nil {
		return nil, err
	}
	return &record, nil
}
