// Package common holds the handful of process-startup helpers shared by
// the allocator's cmd entrypoint: config loading and logging setup, in
// the same shape the teacher's internal/common package uses.
package common

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// LoadConfig reads config.yaml from path and unmarshals it into config.
// Any failure here is treated as fatal: an allocator that can't read
// its own configuration has nothing useful to do.
func LoadConfig(config interface{}, path string) {
	viper.SetConfigName("config")
	viper.AddConfigPath(path)
	if err := viper.ReadInConfig(); err != nil {
		log.Errorf("failed to read configuration from %s: %s", path, err)
		os.Exit(1)
	}
	if err := viper.Unmarshal(config); err != nil {
		log.Errorf("failed to unmarshal configuration: %s", err)
		os.Exit(1)
	}
}

// ConfigureLogging installs the allocator's process-wide log format.
func ConfigureLogging() {
	log.SetFormatter(&log.TextFormatter{ForceColors: true, FullTimestamp: true})
	log.SetOutput(os.Stdout)
}
