package paths

// Policy decides what happens to an absolute path no rule matches.
type Policy string

const (
	PolicyPassthrough Policy = "passthrough"
	PolicyReport      Policy = "report"
	PolicyFatal       Policy = "fatal"
)

// Rule replaces the Source prefix with Target.
type Rule struct {
	Source string `mapstructure:"source" json:"source"`
	Target string `mapstructure:"target" json:"target"`
}

// Special holds the targets of Jellyfin's path variables.
type Special struct {
	AppDataPath  string `mapstructure:"app_data_path" json:"app_data_path"`
	MetadataPath string `mapstructure:"metadata_path" json:"metadata_path"`
}

// Config describes one rule set.
type Config struct {
	// TargetSeparator is "/" or "\".
	TargetSeparator string `mapstructure:"target_separator" json:"target_separator" default:"/"`
	// CaseInsensitive compares source prefixes without regard to case.
	CaseInsensitive bool `mapstructure:"case_insensitive" json:"case_insensitive" default:"false"`
	// Unresolved is the policy for absolute paths no rule matches.
	Unresolved Policy `mapstructure:"unresolved" json:"unresolved" default:"passthrough"`
	// Rules are evaluated in order.
	Rules []Rule `mapstructure:"rules" json:"rules"`
	// Special adds %AppDataPath% and %MetadataPath% rules after Rules.
	Special Special `mapstructure:"special" json:"special"`
}

// AllRules returns Rules followed by the rules for the special variables.
func (c Config) AllRules() []Rule {
	out := append([]Rule(nil), c.Rules...)
	if c.Special.AppDataPath != "" {
		out = append(out, Rule{Source: "%AppDataPath%", Target: c.Special.AppDataPath})
	}
	if c.Special.MetadataPath != "" {
		out = append(out, Rule{Source: "%MetadataPath%", Target: c.Special.MetadataPath})
	}
	return out
}
