package dto

import (
	"time"

	filesDomain "github.com/allisson/hsmvault/internal/files/domain"
)

// FileResponse represents a stored artifact in API responses.
type FileResponse struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modifiedAt"`
}

// ListFilesResponse lists stored artifacts.
type ListFilesResponse struct {
	Data []FileResponse `json:"data"`
}

// EncryptFileResponse describes the artifact pair written by an encryption.
type EncryptFileResponse struct {
	OriginalFilename  string `json:"originalFilename"`
	OriginalSize      int64  `json:"originalSize"`
	EncryptedFilename string `json:"encryptedFilename"`
	EncryptedSize     int64  `json:"encryptedSize"`
	DEKFilename       string `json:"dekFilename"`
	EncryptedDEK      string `json:"encryptedDek"`
}

// DecryptFileResponse describes the restored plaintext artifact.
type DecryptFileResponse struct {
	OriginalFilename string `json:"originalFilename"`
	Size             int64  `json:"size"`
}

// MapFileToResponse converts a domain file to an API response.
func MapFileToResponse(file *filesDomain.FileInfo) FileResponse {
	return FileResponse{
		Name:       file.Name,
		Size:       file.Size,
		ModifiedAt: file.ModifiedAt,
	}
}

// MapFilesToListResponse converts domain files to a list response.
func MapFilesToListResponse(files []*filesDomain.FileInfo) ListFilesResponse {
	data := make([]FileResponse, 0, len(files))
	for _, file := range files {
		data = append(data, MapFileToResponse(file))
	}
	return ListFilesResponse{Data: data}
}

// MapEncryptResultToResponse converts an encryption result to an API response.
func MapEncryptResultToResponse(result *filesDomain.EncryptResult) EncryptFileResponse {
	return EncryptFileResponse{
		OriginalFilename:  result.OriginalFilename,
		OriginalSize:      result.OriginalSize,
		EncryptedFilename: result.EncryptedFilename,
		EncryptedSize:     result.EncryptedSize,
		DEKFilename:       result.DEKFilename,
		EncryptedDEK:      result.EncryptedDEK,
	}
}

// MapDecryptResultToResponse converts a decryption result to an API response.
func MapDecryptResultToResponse(result *filesDomain.DecryptResult) DecryptFileResponse {
	return DecryptFileResponse{
		OriginalFilename: result.OriginalFilename,
		Size:             result.Size,
	}
}
