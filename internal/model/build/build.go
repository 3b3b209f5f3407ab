package build

// Platform is the CPU family a build is offered on.
type Platform string

const (
	PlatformAMD   Platform = "amd"
	PlatformIntel Platform = "intel"
)

// Build is a showcased configuration that visitors can review.
type Build struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Tagline   string     `json:"tagline"`
	Platforms []Platform `json:"platforms"`
	Page      string     `json:"page"`
}

// Seed lists the builds that have a page on the site.
func Seed() []Build {
	both := []Platform{PlatformAMD, PlatformIntel}
	return []Build{
		{ID: "creator-4k", Name: "Creator 4K", Tagline: "4K editing and color work", Platforms: both, Page: "builds/creator-4k.html"},
		{ID: "photo-pro", Name: "Photo Pro", Tagline: "Fast catalog and RAW processing", Platforms: both, Page: "builds/photo-pro.html"},
		{ID: "rgb-showcase", Name: "RGB Showcase", Tagline: "Glass, fans and synchronized lighting", Platforms: both, Page: "builds/rgb-showcase.html"},
		{ID: "silence-optimized", Name: "Silence Optimized", Tagline: "Near-silent under sustained load", Platforms: both, Page: "builds/silence-optimized.html"},
		{ID: "small-form-factor", Name: "Small Form Factor", Tagline: "Full performance in a compact case", Platforms: both, Page: "builds/small-form-factor.html"},
		{ID: "streaming-gaming", Name: "Streaming + Gaming", Tagline: "Play and encode on one machine", Platforms: both, Page: "builds/streaming-gaming.html"},
	}
}
