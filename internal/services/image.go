package services

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// ImageBuilder turns CMS image asset references into CDN URLs.
type ImageBuilder struct {
	cdnURL    string
	projectID string
	dataset   string
}

// NewImageBuilder creates an [ImageBuilder] for the project's dataset.
func NewImageBuilder(cdnURL, projectID, dataset string) *ImageBuilder {
	if cdnURL == "" {
		cdnURL = "https://cdn.sanity.io"
	}
	return &ImageBuilder{cdnURL: strings.TrimRight(cdnURL, "/"), projectID: projectID, dataset: dataset}
}

// URL builds the CDN URL for ref, an asset reference such as
// "image-Tb9Ew8CXIwaY6R1kjMvI0uRR-2000x3000-jpg". Width and height are optional
// (zero omits them); when either is set the image is cropped to fit.
//
// Malformed references yield "".
func (b *ImageBuilder) URL(ref string, width, height int) string {
	rest, ok := strings.CutPrefix(ref, "image-")
	if !ok {
		return ""
	}

	parts := strings.Split(rest, "-")
	if len(parts) < 3 {
		return ""
	}

	format := parts[len(parts)-1]
	dims := parts[len(parts)-2]
	id := strings.Join(parts[:len(parts)-2], "-")

	w, h, ok := strings.Cut(dims, "x")
	if !ok || id == "" || format == "" {
		return ""
	}
	if _, err := strconv.Atoi(w); err != nil {
		return ""
	}
	if _, err := strconv.Atoi(h); err != nil {
		return ""
	}

	u := fmt.Sprintf("%s/images/%s/%s/%s-%s.%s", b.cdnURL, b.projectID, b.dataset, id, dims, format)

	q := url.Values{}
	if width > 0 {
		q.Set("w", strconv.Itoa(width))
	}
	if height > 0 {
		q.Set("h", strconv.Itoa(height))
	}
	if len(q) > 0 {
		q.Set("fit", "crop")
		u += "?" + q.Encode()
	}
	return u
}
