package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"devnotes/config"
	"devnotes/models"
)

var allowedExtensions = map[string]bool{
	"png":  true,
	"jpg":  true,
	"jpeg": true,
	"gif":  true,
}

var allowedMIMETypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
}

// saveProfilePicture stores an uploaded picture as user_<id>.<ext> under
// the upload directory and returns the filename to record. The caller has
// already parsed and size-capped the form; with no upload in it, the
// user's current picture is returned untouched. A rejected upload returns
// an error and leaves the old file in place.
func saveProfilePicture(r *http.Request, user *models.User) (string, error) {
	file, header, err := r.FormFile("profile_picture")
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return user.ProfilePicture, nil
	}
	if err != nil {
		return "", errors.New("error uploading file")
	}
	defer file.Close()

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(header.Filename), "."))
	if !allowedExtensions[ext] {
		return "", errors.New("invalid file type, please upload PNG, JPG or GIF")
	}

	// Sniff the actual content, the extension alone is not trusted.
	head := make([]byte, 512)
	n, err := file.Read(head)
	if err != nil && err != io.EOF {
		return "", errors.New("error reading uploaded file")
	}
	if !allowedMIMETypes[http.DetectContentType(head[:n])] {
		return "", errors.New("uploaded file is not a valid image")
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", errors.New("error reading uploaded file")
	}

	uploadDir := config.AppConfig.UploadDir
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		return "", errors.New("error storing uploaded file")
	}

	filename := fmt.Sprintf("user_%d.%s", user.ID, ext)
	dst, err := os.Create(filepath.Join(uploadDir, filename))
	if err != nil {
		return "", errors.New("error storing uploaded file")
	}
	defer dst.Close()
	if _, err := io.Copy(dst, file); err != nil {
		return "", errors.New("error storing uploaded file")
	}

	// A previous picture with a different extension is now orphaned.
	if user.ProfilePicture != "" && user.ProfilePicture != filename {
		os.Remove(filepath.Join(uploadDir, user.ProfilePicture))
	}

	return filename, nil
}
