// Package fsio is the file service: deterministic path resolution for
// every on-disk location the SDK manages, directory/file lifecycle helpers,
// and an async file object layered on the runtime's strand so concurrent
// reads/writes against one file always serialize.
package fsio

import (
	"os"
	"path/filepath"
	"strconv"
)

// SizeTag selects which rendition of a gallery/logo/avatar image a cache
// path refers to.
type SizeTag string

const (
	SizeOriginal  SizeTag = "original"
	SizeThumb50   SizeTag = "thumb_50x50"
	SizeThumb100  SizeTag = "thumb_100x100"
)

// Paths resolves every deterministic on-disk location as a pure function
// of a root directory and the identifiers involved, matching the layout
// named by the persisted-metadata external interface.
type Paths struct {
	root string
}

// NewPaths returns a resolver rooted at root.
func NewPaths(root string) *Paths {
	return &Paths{root: root}
}

// Root returns the configured root directory.
func (p *Paths) Root() string {
	return p.root
}

// ModInstallDir is the extracted-mod directory for gameID/modID.
func (p *Paths) ModInstallDir(gameID int64, modID int64) string {
	return filepath.Join(p.root, strconv.FormatInt(gameID, 10), "mods", strconv.FormatInt(modID, 10))
}

// ModLogoDir is the logo cache directory for a mod.
func (p *Paths) ModLogoDir(gameID int64, modID int64) string {
	return filepath.Join(p.root, strconv.FormatInt(gameID, 10), "cache", "mods", strconv.FormatInt(modID, 10), "logos")
}

// ModLogoPath resolves a specific logo rendition's cache path.
func (p *Paths) ModLogoPath(gameID int64, modID int64, size SizeTag) string {
	return filepath.Join(p.ModLogoDir(gameID, modID), string(size))
}

// ModGalleryDir is the gallery image cache directory for a mod, index.
func (p *Paths) ModGalleryDir(gameID int64, modID int64, index int) string {
	return filepath.Join(p.root, strconv.FormatInt(gameID, 10), "cache", "mods", strconv.FormatInt(modID, 10), "gallery", strconv.Itoa(index))
}

// UserAvatarDir is the avatar cache directory for a user.
func (p *Paths) UserAvatarDir(gameID int64, userID int64) string {
	return filepath.Join(p.root, strconv.FormatInt(gameID, 10), "cache", "users", strconv.FormatInt(userID, 10), "avatars")
}

// MetadataDir is the directory holding persisted user metadata JSON for a
// game.
func (p *Paths) MetadataDir(gameID int64) string {
	return filepath.Join(p.root, strconv.FormatInt(gameID, 10), "metadata")
}

// MetadataPath is the persisted user metadata JSON file for a user.
func (p *Paths) MetadataPath(gameID int64, userID int64) string {
	return filepath.Join(p.MetadataDir(gameID), strconv.FormatInt(userID, 10)+".json")
}

// TempDir is the platform temp path the file service stages downloads in.
func (p *Paths) TempDir() string {
	return os.TempDir()
}

// DownloadSideFile returns the ".download" side-file path for a given
// final destination.
func DownloadSideFile(destPath string) string {
	return destPath + ".download"
}

