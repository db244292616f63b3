// Package fixtures provides UI trees and event sessions for integration tests.
package fixtures

import (
	"github.com/eliteGoblin/focusd/reelgate/internal/snapshot"
)

// InstagramPackage is the monitored package used by fixtures.
const InstagramPackage = "com.instagram.android"

func id(name string) string {
	return InstagramPackage + ":id/" + name
}

// ReelsViewerTree mimics the full-screen Reels viewer. The tab bar comes
// first in document order, so its "Reels tab" button is visited before the
// viewer pager.
func ReelsViewerTree() *snapshot.Node {
	return &snapshot.Node{ID: id("action_bar_root"), Children: []*snapshot.Node{
		tabBar(),
		{ID: id("clips_viewer_container"), Children: []*snapshot.Node{
			{ID: id("clips_viewer_view_pager"), Children: []*snapshot.Node{
				{ID: id("clips_video_container"), Desc: "Video by creator"},
				{ID: id("clips_ufi_like_button"), Desc: "Like"},
			}},
		}},
	}}
}

// HomeFeedTree mimics the home feed: a Reels tab button but no viewer.
func HomeFeedTree() *snapshot.Node {
	return &snapshot.Node{ID: id("action_bar_root"), Children: []*snapshot.Node{
		tabBar(),
		{ID: id("list"), Children: []*snapshot.Node{
			{ID: id("row_feed_photo_profile_name"), Desc: "someone"},
			{ID: id("row_feed_photo_imageview"), Desc: "Photo by someone"},
		}},
	}}
}

// ReelInFeedTree is a reel embedded in the home feed under an element whose
// description is ignored. The viewer identifier below it must still match.
func ReelInFeedTree() *snapshot.Node {
	return &snapshot.Node{ID: id("action_bar_root"), Children: []*snapshot.Node{
		{Desc: "Reels tab", Children: []*snapshot.Node{
			{ID: id("clips_viewer_view_pager")},
		}},
	}}
}

// DeepChain returns a single-child chain of depth nodes ending in leafID.
func DeepChain(depth int, leafID string) *snapshot.Node {
	root := &snapshot.Node{ID: leafID}
	for i := 1; i < depth; i++ {
		root = &snapshot.Node{Children: []*snapshot.Node{root}}
	}
	return root
}

func tabBar() *snapshot.Node {
	return &snapshot.Node{ID: id("tab_bar"), Children: []*snapshot.Node{
		{ID: id("feed_tab"), Desc: "Home"},
		{ID: id("search_tab"), Desc: "Search and explore"},
		{ID: id("clips_tab"), Desc: "Reels"},
		{ID: id("profile_tab"), Desc: "Profile"},
	}}
}
