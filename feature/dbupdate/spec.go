package dbupdate

// TableSpec names the columns of one table that carry paths or identifiers.
type TableSpec struct {
	// Name is a physical or logical table name.
	Name string `mapstructure:"name" json:"name"`
	// PathColumns hold a single path.
	PathColumns []string `mapstructure:"path_columns" json:"path_columns,omitempty"`
	// JSONColumns hold JSON documents whose string values may be paths.
	JSONColumns []string `mapstructure:"json_columns" json:"json_columns,omitempty"`
	// ImageColumns use the Jellyfin image list format.
	ImageColumns []string `mapstructure:"image_columns" json:"image_columns,omitempty"`
	// IDColumns hold identifiers in plain byte order.
	IDColumns []string `mapstructure:"id_columns" json:"id_columns,omitempty"`
	// AncestorColumns hold identifiers in ancestor byte order.
	AncestorColumns []string `mapstructure:"ancestor_columns" json:"ancestor_columns,omitempty"`
}

// HasPathColumns reports whether the spec names any path-bearing column.
func (s TableSpec) HasPathColumns() bool {
	return len(s.PathColumns)+len(s.JSONColumns)+len(s.ImageColumns) > 0
}

// HasIDColumns reports whether the spec names any identifier column.
func (s TableSpec) HasIDColumns() bool {
	return len(s.IDColumns)+len(s.AncestorColumns) > 0
}
