package internal

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/barasher/go-exiftool"
	"github.com/rwcarlsen/goexif/exif"
)

// MetadataRecord is the normalized, flat view of one file's attributes.
// Pointer fields distinguish "absent" from "present but empty".
// It is built once per file and not mutated afterwards.
type MetadataRecord struct {
	BaseName      string // filename without extension
	Extension     string // extension without the leading dot
	DirectoryPath string // absolute directory containing the source file
	Subdirs       string // subdirectory chain relative to the scan root

	OriginalName *string
	Album        *string
	Title        *string
	CameraMake   *string
	CameraModel  *string
	Latitude     *float64
	Longitude    *float64
	DateOriginal *time.Time
	DateCreated  *time.Time
	DateModified *time.Time

	Checksum string // always set once the file exists on disk
}

// Extractor produces raw tag name -> value pairs for a file. Missing tags
// are simply absent from the map, never inferred.
type Extractor interface {
	Extract(path string) (map[string]string, error)
	Close() error
}

// Tag precedence per record field. First present tag wins.
var (
	dateOriginalTags = []string{"DateTimeOriginal", "CreationDate", "ContentCreateDate", "DateCreated"}
	dateCreatedTags  = []string{"CreateDate", "MediaCreateDate", "TrackCreateDate"}
	dateModifiedTags = []string{"FileModifyDate", "ModifyDate"}
	albumTags        = []string{"Album"}
	titleTags        = []string{"Title", "DisplayName"}
	cameraMakeTags   = []string{"Make", "CameraMake"}
	cameraModelTags  = []string{"Model", "CameraModel"}
	originalNameTags = []string{"OriginalFileName"}
	latitudeTags     = []string{"GPSLatitude"}
	longitudeTags    = []string{"GPSLongitude"}
)

// BuildRecord extracts metadata for src and assembles a MetadataRecord.
// subdirs is the subdirectory chain of src relative to the scan root.
func BuildRecord(src, subdirs string, ex Extractor, albumFromFolder bool) (*MetadataRecord, error) {
	checksum, err := fileHash(src)
	if err != nil {
		return nil, fmt.Errorf("failed to hash %s: %w", src, err)
	}

	ext := filepath.Ext(src)
	rec := &MetadataRecord{
		BaseName:      strings.TrimSuffix(filepath.Base(src), ext),
		Extension:     strings.TrimPrefix(ext, "."),
		DirectoryPath: filepath.Dir(src),
		Subdirs:       subdirs,
		Checksum:      checksum,
	}

	tags, err := ex.Extract(src)
	if err != nil {
		// Extraction failure is recoverable: the record keeps filename and
		// filesystem facts, path resolution falls back on those.
		tags = map[string]string{}
	}

	rec.OriginalName = firstTag(tags, originalNameTags)
	rec.Album = firstTag(tags, albumTags)
	rec.Title = firstTag(tags, titleTags)
	rec.CameraMake = firstTag(tags, cameraMakeTags)
	rec.CameraModel = firstTag(tags, cameraModelTags)
	rec.DateOriginal = firstDateTag(tags, dateOriginalTags)
	rec.DateCreated = firstDateTag(tags, dateCreatedTags)
	rec.DateModified = firstDateTag(tags, dateModifiedTags)
	rec.Latitude = firstCoordTag(tags, latitudeTags)
	rec.Longitude = firstCoordTag(tags, longitudeTags)

	if rec.DateModified == nil {
		if fi, statErr := os.Stat(src); statErr == nil {
			t := fi.ModTime()
			rec.DateModified = &t
		}
	}

	if rec.Album == nil && albumFromFolder && subdirs != "" {
		folder := filepath.Base(subdirs)
		rec.Album = &folder
	}

	return rec, err
}

func firstTag(tags map[string]string, keys []string) *string {
	for _, k := range keys {
		if v, ok := tags[k]; ok && v != "" {
			return &v
		}
	}
	return nil
}

func firstDateTag(tags map[string]string, keys []string) *time.Time {
	for _, k := range keys {
		if v, ok := tags[k]; ok && v != "" {
			if t, err := parseExifDate(v); err == nil {
				return &t
			}
		}
	}
	return nil
}

func firstCoordTag(tags map[string]string, keys []string) *float64 {
	for _, k := range keys {
		if v, ok := tags[k]; ok && v != "" {
			if f, err := parseGPSCoordinate(v); err == nil {
				return &f
			}
		}
	}
	return nil
}

var exifDateLayouts = []string{
	"2006:01:02 15:04:05-07:00",
	"2006:01:02 15:04:05Z07:00",
	"2006:01:02 15:04:05.999",
	"2006:01:02 15:04:05",
	"2006:01:02",
	time.RFC3339,
}

func parseExifDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range exifDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date value %q", value)
}

var dmsRegex = regexp.MustCompile(`(\d+(?:\.\d+)?) deg (\d+(?:\.\d+)?)' (\d+(?:\.\d+)?)"? ?([NSEW])?`)

// parseGPSCoordinate accepts decimal degrees or exiftool's DMS notation
// (`51 deg 30' 12.3" N`).
func parseGPSCoordinate(value string) (float64, error) {
	value = strings.TrimSpace(value)
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f, nil
	}

	m := dmsRegex.FindStringSubmatch(value)
	if m == nil {
		return 0, fmt.Errorf("unrecognized coordinate value %q", value)
	}
	deg, _ := strconv.ParseFloat(m[1], 64)
	min, _ := strconv.ParseFloat(m[2], 64)
	sec, _ := strconv.ParseFloat(m[3], 64)
	coord := deg + min/60 + sec/3600
	if m[4] == "S" || m[4] == "W" {
		coord = -coord
	}
	return coord, nil
}

// ExifToolExtractor extracts metadata through an exiftool subprocess.
type ExifToolExtractor struct {
	et *exiftool.Exiftool
}

func NewExifToolExtractor() (*ExifToolExtractor, error) {
	et, err := exiftool.NewExiftool()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize exiftool: %w", err)
	}
	return &ExifToolExtractor{et: et}, nil
}

func (e *ExifToolExtractor) Extract(path string) (map[string]string, error) {
	infos := e.et.ExtractMetadata(path)
	if len(infos) == 0 {
		return nil, fmt.Errorf("exiftool returned no metadata for %s", path)
	}
	if infos[0].Err != nil {
		return nil, fmt.Errorf("exiftool extraction failed for %s: %w", path, infos[0].Err)
	}

	tags := make(map[string]string, len(infos[0].Fields))
	for key := range infos[0].Fields {
		if v, err := infos[0].GetString(key); err == nil {
			tags[key] = v
		}
	}
	return tags, nil
}

func (e *ExifToolExtractor) Close() error {
	return e.et.Close()
}

// NativeExtractor decodes EXIF directly, without an exiftool binary.
// Only image formats supported by goexif yield tags; everything else
// comes back empty and the caller falls back to filesystem facts.
type NativeExtractor struct{}

func NewNativeExtractor() *NativeExtractor {
	return &NativeExtractor{}
}

func (e *NativeExtractor) Extract(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		// No EXIF data is not an extraction error, just an empty record.
		return map[string]string{}, nil
	}

	tags := map[string]string{}

	if tag, err := x.Get(exif.DateTimeOriginal); err == nil {
		if v, err := tag.StringVal(); err == nil {
			tags["DateTimeOriginal"] = v
		}
	}
	if tag, err := x.Get(exif.DateTime); err == nil {
		if v, err := tag.StringVal(); err == nil {
			tags["CreateDate"] = v
		}
	}
	if tag, err := x.Get(exif.Make); err == nil {
		if v, err := tag.StringVal(); err == nil {
			tags["Make"] = v
		}
	}
	if tag, err := x.Get(exif.Model); err == nil {
		if v, err := tag.StringVal(); err == nil {
			tags["Model"] = v
		}
	}
	if lat, lon, err := x.LatLong(); err == nil {
		tags["GPSLatitude"] = strconv.FormatFloat(lat, 'f', -1, 64)
		tags["GPSLongitude"] = strconv.FormatFloat(lon, 'f', -1, 64)
	}

	return tags, nil
}

func (e *NativeExtractor) Close() error {
	return nil
}

// NewExtractor picks exiftool when requested and available, the native
// decoder otherwise.
func NewExtractor(useExifTool bool, logger *Logger) Extractor {
	if useExifTool {
		ex, err := NewExifToolExtractor()
		if err == nil {
			return ex
		}
		if logger != nil {
			logger.Warn("exiftool unavailable, falling back to native EXIF decoding: %v", err)
		}
	}
	return NewNativeExtractor()
}
