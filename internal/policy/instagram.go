package policy

import "time"

// InstagramPackage is the Android package of the Instagram app.
const InstagramPackage = "com.instagram.android"

// InstagramReelsPolicy gates the Instagram Reels viewer.
type InstagramReelsPolicy struct{}

// NewInstagramReelsPolicy creates the Reels gating policy.
func NewInstagramReelsPolicy() *InstagramReelsPolicy {
	return &InstagramReelsPolicy{}
}

func (p *InstagramReelsPolicy) ID() string {
	return "instagram_reels"
}

func (p *InstagramReelsPolicy) Name() string {
	return "Instagram Reels"
}

func (p *InstagramReelsPolicy) PackageName() string {
	return InstagramPackage
}

// ViewerIdentifiers returns view IDs present only while a reel is playing.
func (p *InstagramReelsPolicy) ViewerIdentifiers() []string {
	return []string{
		"clips_viewer_view_pager",
		"clips_viewer_root",
		"reel_viewer_page",
		"reels_viewer_fragment_container",
		"clips_viewer_fragment",
		"reel_feed_item",
	}
}

// IgnorePhrases returns descriptions of the Reels tab and buttons (Spanish
// and English UI), which sit next to the viewer but are not the viewer.
func (p *InstagramReelsPolicy) IgnorePhrases() []string {
	return []string{
		"bandeja de reels",
		"reels tab",
		"reels button",
		"ir a reels",
	}
}

func (p *InstagramReelsPolicy) DebounceInterval() time.Duration {
	return DefaultDebounceInterval
}

// Ensure InstagramReelsPolicy implements AppPolicy.
var _ AppPolicy = (*InstagramReelsPolicy)(nil)
