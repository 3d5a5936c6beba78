package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const configHeader = `# dittostore configuration file
#
# Every value can be overridden with a DSTORE_ environment variable, for
# example DSTORE_LOGGING_LEVEL=DEBUG.
#
# Repositories are numbered from 1 in the order they appear:
#
#   repos:
#     - type: posix
#       path: /var/lib/pgbackrest
#     - type: s3
#       path: /backups
#       s3:
#         bucket: my-bucket
#         region: us-east-1
#
`

// InitConfig writes a default configuration file at the default location
// and returns its path. An existing file is kept unless force is set.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes a default configuration file at path.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", path)
		}
	}

	data, err := yaml.Marshal(GetDefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return writeConfigFile(path, append([]byte(configHeader), data...))
}
