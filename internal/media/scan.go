package media

import (
	"fmt"
	"hash/fnv"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"
)

var (
	imageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".gif": true}
	videoExts = map[string]bool{".mov": true, ".mp4": true, ".m4v": true}
)

type scanned struct {
	image, video         string
	imageMod, videoMod   time.Time
	imageSize, videoSize int64
	hasImg, hasVid       bool
}

// scanDirs lists the supported media in dirs. A video sharing its base name
// with an image is folded into that image as a live photo.
func scanDirs(fs afero.Fs, dirs []string, favorites map[string]bool, caps Caps) ([]Item, error) {
	var items []Item

	for _, dir := range dirs {
		infos, err := afero.ReadDir(fs, dir)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", dir, err)
		}

		groups := make(map[string]*scanned)
		var order []string

		for _, info := range infos {
			name := info.Name()
			if info.IsDir() || strings.HasPrefix(name, ".") {
				continue
			}

			ext := strings.ToLower(filepath.Ext(name))
			if !imageExts[ext] && !videoExts[ext] {
				continue
			}

			base := strings.ToLower(strings.TrimSuffix(name, filepath.Ext(name)))
			g, ok := groups[base]
			if !ok {
				g = &scanned{}
				groups[base] = g
				order = append(order, base)
			}

			path := filepath.Join(dir, name)
			if imageExts[ext] && !g.hasImg {
				g.image, g.imageMod, g.imageSize, g.hasImg = path, info.ModTime(), info.Size(), true
			} else if videoExts[ext] && !g.hasVid {
				g.video, g.videoMod, g.videoSize, g.hasVid = path, info.ModTime(), info.Size(), true
			}
		}

		for _, base := range order {
			g := groups[base]
			var item Item
			switch {
			case g.hasImg && g.hasVid:
				item = Item{Path: g.image, Paired: g.video, Created: g.imageMod, Kind: KindLivePhoto, Size: g.imageSize + g.videoSize}
			case g.hasImg:
				item = Item{Path: g.image, Created: g.imageMod, Kind: KindPhoto, Size: g.imageSize}
			default:
				item = Item{Path: g.video, Created: g.videoMod, Kind: KindVideo, Size: g.videoSize}
			}
			item.ID = itemID(item.Path)
			item.Favorite = favorites[item.ID]
			item.Caps = caps
			items = append(items, item)
		}
	}

	SortByCreated(items)
	return items, nil
}

// SortByCreated orders items oldest first, by path for equal timestamps.
func SortByCreated(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Created.Equal(items[j].Created) {
			return items[i].Path < items[j].Path
		}
		return items[i].Created.Before(items[j].Created)
	})
}

func itemID(path string) string {
	h := fnv.New64a()
	h.Write([]byte(filepath.Clean(path)))
	return fmt.Sprintf("%016x", h.Sum64())
}

// diffItems classifies the differences between two snapshots.
func diffItems(before, after []Item) ChangeSet {
	cs := ChangeSet{Changes: make(map[string]Change)}

	next := make(map[string]Item, len(after))
	for _, item := range after {
		next[item.ID] = item
	}

	seen := make(map[string]bool, len(before))
	for _, old := range before {
		seen[old.ID] = true
		cur, ok := next[old.ID]
		if !ok {
			cs.Changes[old.ID] = Change{Deleted: true}
			continue
		}
		if changed(old, cur) {
			cs.Changes[old.ID] = Change{After: cur}
		}
	}

	for _, item := range after {
		if !seen[item.ID] {
			cs.Inserted = append(cs.Inserted, item)
		}
	}

	return cs
}

func changed(a, b Item) bool {
	return a.Favorite != b.Favorite ||
		a.Kind != b.Kind ||
		a.Paired != b.Paired ||
		a.Size != b.Size ||
		!a.Created.Equal(b.Created) ||
		a.Caps != b.Caps
}

// OnThisDay returns the items created on day's month and day in any year.
func OnThisDay(items []Item, day time.Time) []Item {
	var out []Item
	for _, item := range items {
		if item.Created.Month() == day.Month() && item.Created.Day() == day.Day() {
			out = append(out, item)
		}
	}
	return out
}
