package facade

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/typhonjs-backbone-parse/typhonjs-core-parse-user/shared/deferred"
	"github.com/typhonjs-backbone-parse/typhonjs-core-parse-user/shared/events"
	"github.com/typhonjs-backbone-parse/typhonjs-core-parse-user/shared/models"
)

// Media type, optional parameters, then the base64 payload.
var dataURLPattern = regexp.MustCompile(`^data:([^;,]*)(?:;[^;,]*)*;base64,(.*)$`)

var (
	errNotImage    = errors.New("missing src or width")
	errNotDataURL  = errors.New("src is not a base64 data URL")
	errNoExtension = errors.New("mime type has no subtype")
)

type parsedImage struct {
	key  string
	file models.File
}

// parseImage derives the attachment key and file for one upload element.
func parseImage(index int, img models.Image) (parsedImage, error) {
	if img.Src == "" || img.Width <= 0 {
		return parsedImage{}, &ImageError{Index: index, Err: errNotImage}
	}

	m := dataURLPattern.FindStringSubmatch(img.Src)
	if m == nil {
		return parsedImage{}, &ImageError{Index: index, Err: errNotDataURL}
	}
	mimeType := m[1]
	_, extension, ok := strings.Cut(mimeType, "/")
	if !ok || extension == "" {
		return parsedImage{}, &ImageError{Index: index, Err: errNoExtension}
	}

	data, err := base64.StdEncoding.DecodeString(m[2])
	if err != nil {
		return parsedImage{}, &ImageError{Index: index, Err: fmt.Errorf("invalid base64 payload: %w", err)}
	}
	if detected := mimetype.Detect(data); !strings.HasPrefix(detected.String(), "image/") {
		return parsedImage{}, &ImageError{Index: index, Err: fmt.Errorf("content is %s", detected.String())}
	}

	return parsedImage{
		key: fmt.Sprintf("image%dpx", img.Width),
		file: models.File{
			Name:     fmt.Sprintf("photo-%dpx.%s", img.Width, extension),
			MimeType: mimeType,
			Data:     data,
		},
	}, nil
}

// SetAndSaveImages uploads images and attaches them to the current user under
// image{width}px keys. An empty list resolves with nil without contacting the
// backend. The result resolves with the attachment keys in input order.
func (f *Facade) SetAndSaveImages(ctx context.Context, images []models.Image) (*deferred.Result[[]string], error) {
	user, err := f.session("setAndSaveImages")
	if err != nil {
		return nil, err
	}
	if len(images) == 0 {
		return deferred.Resolved[[]string](nil), nil
	}

	files := make([]models.File, 0, len(images))
	keys := make([]string, 0, len(images))
	latest := make(map[string]int, len(images))
	for i, img := range images {
		parsed, err := parseImage(i, img)
		if err != nil {
			return nil, err
		}
		if _, seen := latest[parsed.key]; !seen {
			keys = append(keys, parsed.key)
		}
		latest[parsed.key] = i
		files = append(files, parsed.file)
	}

	return deferred.Go(func() ([]string, error) {
		saved, err := f.backend.SaveAll(ctx, files)
		if err != nil {
			return nil, err
		}
		if len(saved) != len(files) {
			return nil, fmt.Errorf("setAndSaveImages - backend saved %d of %d files", len(saved), len(files))
		}
		for _, key := range keys {
			user.SetFile(key, saved[latest[key]])
		}
		if err := f.backend.Save(ctx, user); err != nil {
			return nil, err
		}

		f.bus.Trigger(ctx, events.UserImagesChanged, events.ImagesChangedEvent{Keys: keys})
		return keys, nil
	}), nil
}
