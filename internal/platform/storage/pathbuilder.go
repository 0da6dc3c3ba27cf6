package storage

import (
	"fmt"
	"strings"
	"sync"
)

// ImagePurpose captures what an uploaded catalog image is used for.
type ImagePurpose string

const (
	PurposeLogo      ImagePurpose = "logo"
	PurposeItemImage ImagePurpose = "item"
)

// ParseImagePurpose accepts the wire names above. Empty input means an item image.
func ParseImagePurpose(value string) (ImagePurpose, error) {
	switch ImagePurpose(strings.ToLower(strings.TrimSpace(value))) {
	case "", PurposeItemImage:
		return PurposeItemImage, nil
	case PurposeLogo:
		return PurposeLogo, nil
	default:
		return "", fmt.Errorf("storage: unsupported image purpose %q", value)
	}
}

// PathParams provide required identifiers to compose storage object keys.
type PathParams struct {
	Prefix   string
	UserID   string
	ImageID  string
	FileName string
}

// PathBuilder composes the object path for a given image purpose.
type PathBuilder func(PathParams) (string, error)

var (
	pathBuilders = map[ImagePurpose]PathBuilder{
		PurposeLogo:      ownerScopedPath("logos"),
		PurposeItemImage: ownerScopedPath("items"),
	}
	pathBuildersMu sync.RWMutex
)

// RegisterPathBuilder overrides or registers a builder for a specific purpose.
func RegisterPathBuilder(purpose ImagePurpose, builder PathBuilder) {
	pathBuildersMu.Lock()
	defer pathBuildersMu.Unlock()
	if builder == nil {
		delete(pathBuilders, purpose)
		return
	}
	pathBuilders[purpose] = builder
}

// BuildObjectPath resolves the storage object path for the given purpose.
func BuildObjectPath(purpose ImagePurpose, params PathParams) (string, error) {
	pathBuildersMu.RLock()
	builder, ok := pathBuilders[purpose]
	pathBuildersMu.RUnlock()
	if !ok {
		return "", fmt.Errorf("storage: unsupported image purpose %q", purpose)
	}
	return builder(params)
}

func ownerScopedPath(folder string) PathBuilder {
	return func(params PathParams) (string, error) {
		userID, err := validateSegment("userID", params.UserID)
		if err != nil {
			return "", err
		}
		imageID, err := validateSegment("imageID", params.ImageID)
		if err != nil {
			return "", err
		}
		name := strings.TrimSpace(params.FileName)
		if name == "" {
			name = imageID + ".jpg"
		}
		fileName, err := validateFileName(name)
		if err != nil {
			return "", err
		}
		path := fmt.Sprintf("%s/%s/%s", userID, folder, fileName)
		if prefix := strings.Trim(strings.TrimSpace(params.Prefix), "/"); prefix != "" {
			path = prefix + "/" + path
		}
		return path, nil
	}
}

func validateSegment(name, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("storage: %s is required", name)
	}
	if strings.ContainsAny(value, "/\\") {
		return "", fmt.Errorf("storage: %s contains invalid path characters", name)
	}
	if strings.Contains(value, "..") {
		return "", fmt.Errorf("storage: %s contains invalid traversal sequence", name)
	}
	return value, nil
}

func validateFileName(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("storage: fileName is required")
	}
	if strings.ContainsAny(value, "/\\") {
		return "", fmt.Errorf("storage: fileName contains invalid path characters")
	}
	if strings.Contains(value, "..") {
		return "", fmt.Errorf("storage: fileName contains invalid traversal sequence")
	}
	return value, nil
}
