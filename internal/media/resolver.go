// Package media builds CDN addresses for images and HLS streams and owns the
// per-feed video pipeline.
package media

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyStreamID is returned when a video has no usable stream identifier
var ErrEmptyStreamID = errors.New("empty stream id")

// PresetPublic is the default named image variant
const PresetPublic = "public"

// Transform is either a named preset or an explicit resize instruction
type Transform struct {
	Preset string
	Width  int
	Height int
	Fit    string
}

// Preset returns a named-preset transform
func Preset(name string) Transform {
	return Transform{Preset: name}
}

// Path renders the transform as the last URL segment
func (t Transform) Path() string {
	if t.Width > 0 || t.Height > 0 {
		parts := make([]string, 0, 3)
		if t.Width > 0 {
			parts = append(parts, fmt.Sprintf("w=%d", t.Width))
		}
		if t.Height > 0 {
			parts = append(parts, fmt.Sprintf("h=%d", t.Height))
		}
		if t.Fit != "" {
			parts = append(parts, "fit="+t.Fit)
		}
		return strings.Join(parts, ",")
	}
	if t.Preset != "" {
		return t.Preset
	}
	return PresetPublic
}

// IsNamed reports whether the transform uses a named preset
func (t Transform) IsNamed() bool {
	return t.Width <= 0 && t.Height <= 0
}

// Config holds the CDN coordinates. Values come from the environment.
type Config struct {
	ImageHost     string
	ImagesAccount string
	StreamHost    string
	ManifestFile  string
	Placeholder   string
}

// Resolver maps opaque media identifiers to CDN addresses
type Resolver struct {
	imageHost    string
	account      string
	streamHost   string
	manifestFile string
	placeholder  string
}

// NewResolver creates a Resolver, filling defaults for the manifest and placeholder
func NewResolver(cfg Config) *Resolver {
	r := &Resolver{
		imageHost:    strings.TrimSuffix(cfg.ImageHost, "/"),
		account:      strings.Trim(cfg.ImagesAccount, "/"),
		streamHost:   strings.TrimSuffix(cfg.StreamHost, "/"),
		manifestFile: cfg.ManifestFile,
		placeholder:  cfg.Placeholder,
	}
	if r.manifestFile == "" {
		r.manifestFile = "video.m3u8"
	}
	if r.placeholder == "" {
		r.placeholder = "/placeholder.svg"
	}
	return r
}

// Placeholder is the static address used when no image can be shown
func (r *Resolver) Placeholder() string {
	return r.placeholder
}

// Image returns the transformed image address, or the placeholder for an empty id
func (r *Resolver) Image(imageID string, t Transform) string {
	imageID = strings.TrimSpace(imageID)
	if imageID == "" {
		return r.placeholder
	}
	return fmt.Sprintf("%s/%s", r.bareImage(imageID), t.Path())
}

func (r *Resolver) bareImage(imageID string) string {
	return fmt.Sprintf("https://%s/%s/%s", r.imageHost, r.account, imageID)
}

// ImageCandidates lists the addresses to try in order. Named presets degrade to
// the bare path before the placeholder; explicit transforms go straight to it.
func (r *Resolver) ImageCandidates(imageID string, t Transform) []string {
	imageID = strings.TrimSpace(imageID)
	if imageID == "" {
		return []string{r.placeholder}
	}
	candidates := []string{r.Image(imageID, t)}
	if t.IsNamed() {
		candidates = append(candidates, r.bareImage(imageID))
	}
	return append(candidates, r.placeholder)
}

// Video returns the HLS manifest address for a stream
func (r *Resolver) Video(streamID string) (string, error) {
	streamID = strings.TrimSpace(streamID)
	if streamID == "" {
		return "", ErrEmptyStreamID
	}
	return fmt.Sprintf("https://%s/%s/manifest/%s", r.streamHost, streamID, r.manifestFile), nil
}

// StreamHost builds the Cloudflare Stream customer host from a customer code
func StreamHost(customerCode string) string {
	return fmt.Sprintf("customer-%s.cloudflarestream.com", customerCode)
}
