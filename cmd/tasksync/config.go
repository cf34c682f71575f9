// Config loading for the tasksync CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/mesh-intelligence/tasksync/internal/adapters/reminders"
	"github.com/mesh-intelligence/tasksync/internal/adapters/supernote"
	"github.com/mesh-intelligence/tasksync/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"

	cfgKeyDataDir = "data_dir"

	cfgKeyConflictPolicy       = "conflict_policy"
	cfgKeyConflictWindow       = "conflict_window_seconds"
	cfgKeySyncCompleted        = "sync_completed"
	cfgKeyCompletedMaxAge      = "completed_max_age_days"
	cfgKeyDedupeRepeating      = "dedupe_repeating"
	cfgKeyAutoCreateCategories = "auto_create_categories"
	cfgKeyCategoryMappings     = "category_mappings"

	cfgKeySupernoteContainer = "supernote.container"
	cfgKeySupernoteHost      = "supernote.host"
	cfgKeySupernotePort      = "supernote.port"
	cfgKeySupernoteDatabase  = "supernote.database"
	cfgKeySupernoteUser      = "supernote.user"
	cfgKeySupernotePassword  = "supernote.password"

	cfgKeyRemindersCLI     = "reminders.cli_path"
	cfgKeyRemindersHelper  = "reminders.helper_path"
	cfgKeyRemindersDefault = "reminders.default_list"
)

// defaultConfigYAML is the content written to config.yaml on first run.
const defaultConfigYAML = `# tasksync configuration

# Conflict resolution: prefer_recent, prefer_apple or prefer_supernote.
conflict_policy: prefer_recent

# Edits this close together (seconds) count as simultaneous.
conflict_window_seconds: 60

# Sync completed tasks as well as pending ones.
sync_completed: true

# Unlinked completed Apple reminders older than this are ignored.
completed_max_age_days: 180

# Collapse repeating Apple reminders sharing one title into the best
# instance before matching.
dedupe_repeating: true

# Create the counterpart category when one side has a category the other
# lacks.
auto_create_categories: true

# Pin categories together by native id instead of relying on titles:
# category_mappings:
#   - supernote_id: <task_list_id>
#     apple_id: <list identifier>

# Supernote database. With container set, mysql runs via docker exec;
# otherwise host/port are used directly.
supernote:
  container: supernote-mysql
  database: supernote
  user: root
  password: ""

# Apple Reminders binaries.
reminders:
  cli_path: reminders
  helper_path: reminder-helper
  default_list: Inbox

# Data directory (optional; overridable by --data-dir flag)
# data_dir:
`

// loadConfig reads config.yaml from the resolved config directory using
// Viper. It creates the config directory and a default config.yaml on
// first run. A missing config.yaml is not an error.
func loadConfig(configDir string) (*viper.Viper, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure config dir: %w", err)
	}
	if err := ensureDefaultConfigFile(configDir); err != nil {
		return nil, fmt.Errorf("ensure default config: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return v, nil
}

func setDefaults(v *viper.Viper) {
	def := types.DefaultConfig()
	v.SetDefault(cfgKeyConflictPolicy, def.ConflictPolicy)
	v.SetDefault(cfgKeyConflictWindow, def.ConflictWindowSeconds)
	v.SetDefault(cfgKeySyncCompleted, def.SyncCompleted)
	v.SetDefault(cfgKeyCompletedMaxAge, def.CompletedMaxAgeDays)
	v.SetDefault(cfgKeyDedupeRepeating, def.DedupeRepeating)
	v.SetDefault(cfgKeyAutoCreateCategories, def.AutoCreateCategories)
	v.SetDefault(cfgKeySupernoteDatabase, "supernote")
	v.SetDefault(cfgKeySupernoteUser, "root")
	v.SetDefault(cfgKeyRemindersCLI, "reminders")
	v.SetDefault(cfgKeyRemindersHelper, "reminder-helper")
	v.SetDefault(cfgKeyRemindersDefault, "Inbox")
}

func ensureDefaultConfigFile(configDir string) error {
	path := filepath.Join(configDir, configFileExt)
	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}

// engineConfig builds the validated engine configuration from loaded
// settings.
func engineConfig(v *viper.Viper) (types.Config, error) {
	cfg := types.Config{
		ConflictPolicy:        v.GetString(cfgKeyConflictPolicy),
		ConflictWindowSeconds: v.GetInt(cfgKeyConflictWindow),
		SyncCompleted:         v.GetBool(cfgKeySyncCompleted),
		CompletedMaxAgeDays:   v.GetInt(cfgKeyCompletedMaxAge),
		DedupeRepeating:       v.GetBool(cfgKeyDedupeRepeating),
		AutoCreateCategories:  v.GetBool(cfgKeyAutoCreateCategories),
	}
	mappings, err := categoryMappings(v)
	if err != nil {
		return types.Config{}, err
	}
	cfg.CategoryMappings = mappings
	if err := cfg.Validate(); err != nil {
		return types.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func categoryMappings(v *viper.Viper) ([]types.CategoryMapping, error) {
	raw, ok := v.Get(cfgKeyCategoryMappings).([]any)
	if !ok {
		return nil, nil
	}
	mappings := make([]types.CategoryMapping, 0, len(raw))
	for i, entry := range raw {
		fields, ok := entry.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("category_mappings[%d]: expected a mapping", i)
		}
		m := types.CategoryMapping{}
		if id, ok := fields["supernote_id"].(string); ok {
			m.SupernoteID = id
		}
		if id, ok := fields["apple_id"].(string); ok {
			m.AppleID = id
		}
		mappings = append(mappings, m)
	}
	return mappings, nil
}

func supernoteOptions(v *viper.Viper) supernote.Options {
	return supernote.Options{
		Container: v.GetString(cfgKeySupernoteContainer),
		Host:      v.GetString(cfgKeySupernoteHost),
		Port:      v.GetInt(cfgKeySupernotePort),
		Database:  v.GetString(cfgKeySupernoteDatabase),
		User:      v.GetString(cfgKeySupernoteUser),
		Password:  v.GetString(cfgKeySupernotePassword),
	}
}

func remindersOptions(v *viper.Viper) reminders.Options {
	return reminders.Options{
		CLIPath:     v.GetString(cfgKeyRemindersCLI),
		HelperPath:  v.GetString(cfgKeyRemindersHelper),
		DefaultList: v.GetString(cfgKeyRemindersDefault),
	}
}
