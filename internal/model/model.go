// Package model holds the data shapes shared across the filter compiler and
// the file pipelines: tag definitions, file references, and the staged and
// encrypted block rows.
package model

import "time"

// TagType is the declared type of a tag definition, driving both storage
// column selection and operator legality in the query generator.
type TagType string

const (
	TagText     TagType = "Text"
	TagBool     TagType = "Bool"
	TagInt      TagType = "Int"
	TagDouble   TagType = "Double"
	TagDate     TagType = "Date"
	TagDateTime TagType = "DateTime"
	TagLink     TagType = "Link"
)

// StorageColumn returns the tag-value table column backing this tag type.
func (t TagType) StorageColumn() string {
	switch t {
	case TagText, TagLink:
		return "value_string"
	case TagBool:
		return "value_boolean"
	case TagInt:
		return "value_integer"
	case TagDouble:
		return "value_double"
	case TagDate:
		return "value_date"
	case TagDateTime:
		return "value_datetime"
	default:
		return ""
	}
}

// TagDefinition is the typed schema of one attribute.
type TagDefinition struct {
	Name    string
	Type    TagType
}

// FileReference is the lifecycle-carrying row for one uploaded file.
type FileReference struct {
	FileID             int64
	FileRef            string
	MimeType           string
	Checksum           *string
	OriginalFileSize   *int64
	EncryptedFileSize  *int64
	TotalPart          *int
	IsEncrypted        bool
	IsFulltextParsed   bool
	IsPreviewGenerated bool
}

// StagedBlock is one row of the staging table (table A), owned by the
// uploading session and never visible to readers.
type StagedBlock struct {
	SessionID        string
	UserID           string
	ItemInfo         string
	FileRef          string
	PartNumber       int
	OriginalPartSize int
	PartData         []byte // raw cleartext bytes, base64-encoded at rest
	StartTimeGMT     time.Time
}

// EncryptedBlock is one row of the encrypted block table (table B).
type EncryptedBlock struct {
	FileReferenceID int64
	PartNumber      int
	PartData        []byte // ciphertext, base64-encoded at rest
}

// FileMetadataRow is one row of the file metadata table (table C).
type FileMetadataRow struct {
	FileReferenceID int64
	MetaKey         string
	Value           string
}

// MaxMetadataValueLen is the cutoff past which a Tika metadata value is
// dropped rather than persisted.
const MaxMetadataValueLen = 200
