package services

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"

	"github.com/dontidros/natours-project/utils/errors"
)

const (
	UserPhotoSize   = 500
	TourImageWidth  = 2000
	TourImageHeight = 1333
	JPEGQuality     = 90
	MaxTourImages   = 3
)

var ErrNotAnImage = errors.Validation("Not an image! Please upload only images.")

// ImageService resizes uploads to JPEG files under the public image folder.
type ImageService struct {
	dir string
	now func() time.Time
}

func NewImageService(dir string) *ImageService {
	return &ImageService{dir: dir, now: time.Now}
}

// ResizeUserPhoto stores a 500x500 crop and returns its file name.
func (s *ImageService) ResizeUserPhoto(userID string, r io.Reader) (string, error) {
	name := fmt.Sprintf("user-%s-%d.jpeg", userID, s.now().UnixMilli())
	if err := s.save(r, "users", name, UserPhotoSize, UserPhotoSize); err != nil {
		return "", err
	}
	return name, nil
}

// ResizeTourImages stores the cover and up to three gallery images. Either
// may be absent; the returned names are empty for what was not uploaded.
func (s *ImageService) ResizeTourImages(tourID string, cover io.Reader, images []io.Reader) (string, []string, error) {
	if len(images) > MaxTourImages {
		return "", nil, errors.Validation(fmt.Sprintf("A tour can have at most %d images", MaxTourImages))
	}
	stamp := s.now().UnixMilli()
	var coverName string
	if cover != nil {
		coverName = fmt.Sprintf("tour-%s-%d-cover.jpeg", tourID, stamp)
		if err := s.save(cover, "tours", coverName, TourImageWidth, TourImageHeight); err != nil {
			return "", nil, err
		}
	}
	names := make([]string, 0, len(images))
	for i, img := range images {
		name := fmt.Sprintf("tour-%s-%d-%d.jpeg", tourID, stamp, i+1)
		if err := s.save(img, "tours", name, TourImageWidth, TourImageHeight); err != nil {
			return "", nil, err
		}
		names = append(names, name)
	}
	return coverName, names, nil
}

func (s *ImageService) save(r io.Reader, folder, name string, width, height int) error {
	br := bufio.NewReader(r)
	head, _ := br.Peek(512)
	if !IsImage(http.DetectContentType(head)) {
		return ErrNotAnImage
	}
	img, err := imaging.Decode(br, imaging.AutoOrientation(true))
	if err != nil {
		return ErrNotAnImage
	}
	dst := imaging.Fill(img, width, height, imaging.Center, imaging.Lanczos)

	dir := filepath.Join(s.dir, folder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, errors.CodeInternal, "Failed to store image", http.StatusInternalServerError)
	}
	if err := imaging.Save(dst, filepath.Join(dir, name), imaging.JPEGQuality(JPEGQuality)); err != nil {
		return errors.Wrap(err, errors.CodeInternal, "Failed to store image", http.StatusInternalServerError)
	}
	return nil
}

// IsImage reports whether a MIME type denotes an image.
func IsImage(contentType string) bool {
	return strings.HasPrefix(contentType, "image/")
}
