package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/phrazzld/mediajobs/internal/domain"
	"github.com/phrazzld/mediajobs/internal/encode"
)

// Multipart field names of the audio endpoints.
const (
	formAudioFile = "audioFile"
	formPrompt    = "prompt"
	formAPIKey    = "openaiApiKey"
	formProvider  = "provider"
)

const (
	sniffLength     = 3072
	multipartMemory = 32 << 20
	formOverhead    = 1 << 20
)

// UploadConfig bounds accepted audio uploads.
type UploadConfig struct {
	// Dir receives accepted files.
	Dir              string
	MaxUploadMB      float64
	AllowedExtension string
}

type audioUpload struct {
	Path     string
	Prompt   string
	APIKey   string
	Provider string
}

// receiveUpload validates the multipart audio upload and stores the file
// under cfg.Dir. Rejections are domain validation errors; nothing is left
// on disk when an error is returned.
func receiveUpload(w http.ResponseWriter, r *http.Request, cfg UploadConfig) (*audioUpload, error) {
	limit := int64(cfg.MaxUploadMB*1024*1024) + formOverhead
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, domain.NewValidationError(formAudioFile, "file is too big")
		}
		return nil, domain.NewValidationError(formAudioFile, "a multipart form with an audio file is required")
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	file, header, err := r.FormFile(formAudioFile)
	if err != nil {
		return nil, domain.NewValidationError(formAudioFile, "is required")
	}
	defer func() {
		_ = file.Close()
	}()

	if header.Size == 0 {
		return nil, domain.NewValidationError(formAudioFile, "file is empty")
	}
	if encode.BytesToMB(header.Size) >= cfg.MaxUploadMB {
		return nil, domain.NewValidationError(formAudioFile, "file is too big")
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if ext != strings.ToLower(cfg.AllowedExtension) {
		return nil, domain.NewValidationError(formAudioFile,
			fmt.Sprintf("only %s files are accepted", cfg.AllowedExtension))
	}

	head := make([]byte, sniffLength)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if !isAudio(mimetype.Detect(head[:n])) {
		return nil, domain.NewValidationError(formAudioFile, "file content is not audio")
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to rewind upload: %w", err)
	}

	path, err := storeUpload(file, cfg.Dir, ext)
	if err != nil {
		return nil, err
	}

	return &audioUpload{
		Path:     path,
		Prompt:   r.FormValue(formPrompt),
		APIKey:   r.FormValue(formAPIKey),
		Provider: strings.TrimSpace(r.FormValue(formProvider)),
	}, nil
}

func storeUpload(src io.Reader, dir, ext string) (string, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}

	path := filepath.Join(dir, uuid.NewString()+ext)
	dst, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return "", fmt.Errorf("failed to create upload file: %w", err)
	}

	_, copyErr := io.Copy(dst, src)
	closeErr := dst.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("failed to store upload: %w", err)
	}
	return path, nil
}

func isAudio(mtype *mimetype.MIME) bool {
	for m := mtype; m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "audio/") {
			return true
		}
	}
	return false
}
