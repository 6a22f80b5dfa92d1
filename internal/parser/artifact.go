package parser

import (
	"path"
	"strings"

	"github.com/pipescope/core/internal/models"
)

// ArtifactKind classifies the content of a stage output.
type ArtifactKind string

const (
	ArtifactImage  ArtifactKind = "image"
	ArtifactTable  ArtifactKind = "table"
	ArtifactVideo  ArtifactKind = "video"
	ArtifactAudio  ArtifactKind = "audio"
	ArtifactFolder ArtifactKind = "folder"
	ArtifactOther  ArtifactKind = "other"
)

var artifactKindByExt = map[string]ArtifactKind{
	".png":     ArtifactImage,
	".jpg":     ArtifactImage,
	".jpeg":    ArtifactImage,
	".gif":     ArtifactImage,
	".bmp":     ArtifactImage,
	".svg":     ArtifactImage,
	".webp":    ArtifactImage,
	".tif":     ArtifactImage,
	".tiff":    ArtifactImage,
	".csv":     ArtifactTable,
	".tsv":     ArtifactTable,
	".parquet": ArtifactTable,
	".xlsx":    ArtifactTable,
	".xls":     ArtifactTable,
	".feather": ArtifactTable,
	".mp4":     ArtifactVideo,
	".mov":     ArtifactVideo,
	".avi":     ArtifactVideo,
	".mkv":     ArtifactVideo,
	".webm":    ArtifactVideo,
	".mp3":     ArtifactAudio,
	".wav":     ArtifactAudio,
	".flac":    ArtifactAudio,
	".ogg":     ArtifactAudio,
	".m4a":     ArtifactAudio,
	".aac":     ArtifactAudio,
}

// ClassifyArtifact picks the kind of an output. An explicit kind in meta
// wins, then the directory marker, then the file extension.
func ClassifyArtifact(p string, isDir bool, meta models.ArtifactMeta) ArtifactKind {
	switch kind := ArtifactKind(strings.ToLower(meta.Kind)); kind {
	case ArtifactImage, ArtifactTable, ArtifactVideo, ArtifactAudio, ArtifactFolder, ArtifactOther:
		return kind
	}
	if isDir {
		return ArtifactFolder
	}
	if kind, ok := artifactKindByExt[strings.ToLower(path.Ext(p))]; ok {
		return kind
	}
	return ArtifactOther
}

// normalizeArtifactPath cleans a stage path and reports a trailing-slash
// directory marker.
func normalizeArtifactPath(p string) (string, bool) {
	p = strings.ReplaceAll(strings.TrimSpace(p), "\\", "/")
	dir := strings.HasSuffix(p, "/")
	p = path.Clean(p)
	p = strings.TrimPrefix(p, "./")
	return p, dir
}
