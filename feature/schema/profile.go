package schema

import "strings"

// Variant identifies a database generation.
type Variant string

const (
	Legacy     Variant = "legacy"
	V10_11Plus Variant = "v10.11+"
	// Generic is the identity view used for databases without a library table.
	Generic Variant = "generic"
)

// Logical table names.
const (
	TableItems         = "items"
	TableAncestors     = "ancestors"
	TableMediaStreams  = "media_streams"
	TableChapters      = "chapters"
	TableAttachments   = "attachments"
	TableUserData      = "user_data"
	TableItemValues    = "item_values"
	TablePeople        = "people"
	TableImages        = "images"
	TableProviders     = "providers"
	TableTrailerTypes  = "trailer_types"
	TableMetadataField = "metadata_fields"
)

// Logical column names of the items table.
const (
	ColID           = "id"
	ColType         = "type"
	ColPath         = "path"
	ColDateCreated  = "date_created"
	ColDateModified = "date_modified"
	ColImages       = "images"
)

// Profile is the naming and storage convention of one generation.
type Profile struct {
	Variant Variant
	// Tables maps logical table names to physical names.
	Tables map[string]string
	// ItemColumns maps logical item columns to physical names.
	ItemColumns map[string]string
	// IDColumnCandidates are probed in order for the item identifier column.
	IDColumnCandidates []string
	// IDStorage is the storage kind this generation uses for identifiers.
	IDStorage StorageKind
	// NewTables lists logical tables that do not exist in Legacy.
	NewTables []string
}

// LegacyProfile returns the profile of Jellyfin 10.10 and earlier.
func LegacyProfile() Profile {
	return Profile{
		Variant: Legacy,
		Tables: map[string]string{
			TableItems:        "TypedBaseItems",
			TableAncestors:    "AncestorIds",
			TableMediaStreams: "mediastreams",
			TableChapters:     "Chapters2",
			TableAttachments:  "mediaattachments",
			TableUserData:     "UserDatas",
			TableItemValues:   "ItemValues",
			TablePeople:       "People",
		},
		ItemColumns: map[string]string{
			ColID:           "guid",
			ColType:         "type",
			ColPath:         "Path",
			ColDateCreated:  "DateCreated",
			ColDateModified: "DateModified",
			ColImages:       "Images",
		},
		IDColumnCandidates: []string{"guid", "Id"},
		IDStorage:          StorageBinary,
	}
}

// V1011Profile returns the profile of Jellyfin 10.11 and later.
func V1011Profile() Profile {
	return Profile{
		Variant: V10_11Plus,
		Tables: map[string]string{
			TableItems:         "BaseItems",
			TableAncestors:     "AncestorIds",
			TableMediaStreams:  "MediaStreamInfos",
			TableChapters:      "Chapters",
			TableAttachments:   "AttachmentStreamInfos",
			TableUserData:      "UserData",
			TableItemValues:    "ItemValuesMap",
			TablePeople:        "PeopleBaseItemMap",
			TableImages:        "BaseItemImageInfos",
			TableProviders:     "BaseItemProviders",
			TableTrailerTypes:  "BaseItemTrailerTypes",
			TableMetadataField: "BaseItemMetadataFields",
		},
		ItemColumns: map[string]string{
			ColID:           "Id",
			ColType:         "Type",
			ColPath:         "Path",
			ColDateCreated:  "DateCreated",
			ColDateModified: "DateModified",
		},
		IDColumnCandidates: []string{"Id"},
		IDStorage:          StorageHexText,
		NewTables:          []string{TableImages, TableProviders, TableTrailerTypes, TableMetadataField},
	}
}

// GenericProfile returns the identity profile.
func GenericProfile() Profile {
	return Profile{
		Variant:     Generic,
		Tables:      map[string]string{},
		ItemColumns: map[string]string{},
		IDStorage:   StorageDynamic,
	}
}

// GetProfile returns the profile for a variant name, Generic when unknown.
func GetProfile(v Variant) Profile {
	switch v {
	case Legacy:
		return LegacyProfile()
	case V10_11Plus:
		return V1011Profile()
	default:
		return GenericProfile()
	}
}

// logicalTable maps a logical or physical name of any generation to a logical name.
func logicalTable(name string) (string, bool) {
	for _, p := range []Profile{LegacyProfile(), V1011Profile()} {
		if _, ok := p.Tables[name]; ok {
			return name, true
		}
		for logical, physical := range p.Tables {
			if strings.EqualFold(physical, name) {
				return logical, true
			}
		}
	}
	return "", false
}

// logicalItemColumn maps a logical or physical item column of any generation to a logical name.
func logicalItemColumn(name string) (string, bool) {
	for _, p := range []Profile{LegacyProfile(), V1011Profile()} {
		if _, ok := p.ItemColumns[name]; ok {
			return name, true
		}
		for logical, physical := range p.ItemColumns {
			if strings.EqualFold(physical, name) {
				return logical, true
			}
		}
	}
	return "", false
}
