package validator

// Limits are the thresholds the validator judges files against. A Limits
// value is never modified once a Validator holds it, so validators built
// from different profiles can run side by side.
type Limits struct {
	// Files above this are rejected without being read.
	MaxFileSize int64 `yaml:"max_file_size" json:"max_file_size"`
	// Metadata sections above this are an error.
	MaxMetadataSize int64 `yaml:"max_metadata_size" json:"max_metadata_size"`
	// Data sections above this draw a warning.
	DataWarnSize int64 `yaml:"data_warn_size" json:"data_warn_size"`
	// Decompressed JSON above this draws a warning.
	JSONWarnSize int64 `yaml:"json_warn_size" json:"json_warn_size"`

	MaxDependencies         int `yaml:"max_dependencies" json:"max_dependencies"`
	MaxKeywords             int `yaml:"max_keywords" json:"max_keywords"`
	MaxNameLength           int `yaml:"max_name_length" json:"max_name_length"`
	MaxDependencyNameLength int `yaml:"max_dependency_name_length" json:"max_dependency_name_length"`
	MaxKeywordLength        int `yaml:"max_keyword_length" json:"max_keyword_length"`

	// Whole-file size warnings from the performance stage.
	LargeFileWarnSize int64 `yaml:"large_file_warn_size" json:"large_file_warn_size"`
	SmallFileWarnSize int64 `yaml:"small_file_warn_size" json:"small_file_warn_size"`
	// Uncompressed payloads above this get a hint to enable gzip.
	CompressHintSize int64 `yaml:"compress_hint_size" json:"compress_hint_size"`
}

func DefaultLimits() Limits {
	return Limits{
		MaxFileSize:     1 << 30,
		MaxMetadataSize: 1 << 20,
		DataWarnSize:    100 << 20,
		JSONWarnSize:    10 << 20,

		MaxDependencies:         1000,
		MaxKeywords:             100,
		MaxNameLength:           100,
		MaxDependencyNameLength: 100,
		MaxKeywordLength:        50,

		LargeFileWarnSize: 10 << 20,
		SmallFileWarnSize: 48,
		CompressHintSize:  1 << 20,
	}
}
