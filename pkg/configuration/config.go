package configuration

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Config holds the application settings as section -> key -> value.
type Config struct {
	settings map[string]map[string]string
	filePath string
	mu       sync.RWMutex
}

var (
	globalConfig *Config
	once         sync.Once
)

// LocalOverrideFile is read after the main file, from the same directory,
// and overrides any key it sets.
const LocalOverrideFile = "settings.local.cfg"

// sectionOrder is the order sections are written in.
var sectionOrder = []string{"Calculator", "History", "Network", "Security", "JWT", "TLS", "Debug"}

// Initialize loads the global configuration from configPath, creating a
// default file if none exists.
func Initialize(configPath string) error {
	var err error
	once.Do(func() {
		globalConfig, err = loadConfig(configPath)
		if err != nil {
			return
		}
		localConfigPath := filepath.Join(filepath.Dir(configPath), LocalOverrideFile)
		if _, statErr := os.Stat(localConfigPath); statErr == nil {
			// A broken override file leaves the base config in place.
			_ = globalConfig.loadLocalConfig(localConfigPath)
		}
	})
	return err
}

// loadConfig reads filePath, or writes the defaults there if it is missing.
func loadConfig(filePath string) (*Config, error) {
	config := &Config{
		settings: make(map[string]map[string]string),
		filePath: filePath,
	}
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		config.createDefaultConfig()
		if err := config.saveToFile(); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return config, nil
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	if err := parseINI(file, config.settings); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filePath, err)
	}
	return config, nil
}

// loadLocalConfig merges the override file into c.
func (c *Config) loadLocalConfig(filePath string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	c.mu.Lock()
	defer c.mu.Unlock()
	return parseINI(file, c.settings)
}

// parseINI reads "[Section]" headers and "key = value" lines into settings.
// Blank lines and lines starting with ';' or '#' are skipped, as are keys
// outside any section.
func parseINI(r io.Reader, settings map[string]map[string]string) error {
	scanner := bufio.NewScanner(r)
	currentSection := ""

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, ";") || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			currentSection = strings.TrimSpace(line[1 : len(line)-1])
			if settings[currentSection] == nil {
				settings[currentSection] = make(map[string]string)
			}
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if ok && currentSection != "" {
			settings[currentSection][strings.TrimSpace(key)] = strings.TrimSpace(value)
		}
	}
	return scanner.Err()
}

// createDefaultConfig fills c with the settings every component reads.
func (c *Config) createDefaultConfig() {
	c.settings["Calculator"] = map[string]string{
		"default_mode":    "standard",
		"default_base":    "DEC",
		"error_indicator": "Error",
	}

	// backend is one of memory, sqlite or bolt
	c.settings["History"] = map[string]string{
		"backend":     "memory",
		"path":        "history.db",
		"max_entries": "1000",
		"load_limit":  "100",
	}

	c.settings["Network"] = map[string]string{
		"listen_address":      ":8080",
		"pong_timeout":        "60s",
		"write_wait_timeout":  "10s",
		"max_message_size_kb": "4",
		"client_send_buffer":  "64",
		"allowed_origins":     "",
	}

	c.settings["Security"] = map[string]string{
		"rate_limit_messages": "200",
		"rate_limit_window":   "1m",
		"max_clients":         "100",
		"max_sessions":        "1000",
		"session_idle_time":   "30m",
	}

	c.settings["JWT"] = map[string]string{
		"secret_key":             "",
		"token_expiration_hours": "24",
	}

	c.settings["TLS"] = map[string]string{
		"enabled":         "false",
		"port":            "443",
		"cert_file":       "",
		"key_file":        "",
		"auto_cert":       "false",
		"domain":          "",
		"email":           "",
		"cert_dir":        "certs",
		"redirect_http":   "true",
		"min_tls_version": "1.2",
	}

	c.settings["Debug"] = map[string]string{
		"enable_debug_logging": "false",
		"log_level":            "INFO",
		"log_file":             "debug.log",
		"max_log_size_mb":      "10",
		"log_rotation_count":   "3",
		"log_calc":             "false",
		"log_session":          "false",
		"log_history":          "true",
		"log_websocket":        "false",
		"log_auth":             "true",
		"log_security":         "true",
		"log_database":         "true",
		"log_config":           "true",
		"log_general":          "true",
	}
}

// saveToFile writes c to its file path. Known sections come first in a fixed
// order, then any others; keys are sorted so the output is stable.
func (c *Config) saveToFile() error {
	dir := filepath.Dir(c.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	file, err := os.Create(c.filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	fmt.Fprint(w, "; retrocalc configuration file\n")
	fmt.Fprint(w, "; Generated automatically - modify with care\n")
	fmt.Fprint(w, ";\n\n")

	for _, section := range orderedSections(c.settings) {
		settings := c.settings[section]
		fmt.Fprintf(w, "[%s]\n", section)

		keys := make([]string, 0, len(settings))
		for key := range settings {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			fmt.Fprintf(w, "%s = %s\n", key, settings[key])
		}
		fmt.Fprint(w, "\n")
	}

	return w.Flush()
}

func orderedSections(settings map[string]map[string]string) []string {
	known := make(map[string]bool, len(sectionOrder))
	var sections []string
	for _, section := range sectionOrder {
		known[section] = true
		if _, exists := settings[section]; exists {
			sections = append(sections, section)
		}
	}

	var extra []string
	for section := range settings {
		if !known[section] {
			extra = append(extra, section)
		}
	}
	sort.Strings(extra)
	return append(sections, extra...)
}

// GetString returns the value of section.key, or defaultValue when it is
// unset or the configuration was never initialized.
func GetString(section, key, defaultValue string) string {
	if globalConfig == nil {
		return defaultValue
	}

	globalConfig.mu.RLock()
	defer globalConfig.mu.RUnlock()

	if sectionMap, exists := globalConfig.settings[section]; exists {
		if value, exists := sectionMap[key]; exists {
			return value
		}
	}

	return defaultValue
}

// GetInt returns section.key as an int.
func GetInt(section, key string, defaultValue int) int {
	str := GetString(section, key, "")
	if str == "" {
		return defaultValue
	}

	if value, err := strconv.Atoi(str); err == nil {
		return value
	}

	return defaultValue
}

// GetFloat returns section.key as a float64.
func GetFloat(section, key string, defaultValue float64) float64 {
	str := GetString(section, key, "")
	if str == "" {
		return defaultValue
	}

	if value, err := strconv.ParseFloat(str, 64); err == nil {
		return value
	}

	return defaultValue
}

// GetBool returns section.key as a bool.
func GetBool(section, key string, defaultValue bool) bool {
	str := GetString(section, key, "")
	if str == "" {
		return defaultValue
	}

	if value, err := strconv.ParseBool(str); err == nil {
		return value
	}

	return defaultValue
}

// GetDuration returns section.key parsed with time.ParseDuration.
func GetDuration(section, key string, defaultValue time.Duration) time.Duration {
	str := GetString(section, key, "")
	if str == "" {
		return defaultValue
	}

	if value, err := time.ParseDuration(str); err == nil {
		return value
	}

	return defaultValue
}

// GetSection returns a copy of all key-value pairs of a section.
func GetSection(sectionName string) map[string]string {
	result := make(map[string]string)
	if globalConfig == nil {
		return result
	}

	globalConfig.mu.RLock()
	defer globalConfig.mu.RUnlock()

	for key, value := range globalConfig.settings[sectionName] {
		result[key] = value
	}
	return result
}

// SetString sets section.key for the running process. Use Save to persist it.
func SetString(section, key, value string) {
	if globalConfig == nil {
		return
	}

	globalConfig.mu.Lock()
	defer globalConfig.mu.Unlock()

	if globalConfig.settings[section] == nil {
		globalConfig.settings[section] = make(map[string]string)
	}

	globalConfig.settings[section][key] = value
}

// Save writes the current configuration back to its file.
func Save() error {
	if globalConfig == nil {
		return fmt.Errorf("configuration not initialized")
	}

	globalConfig.mu.RLock()
	defer globalConfig.mu.RUnlock()

	return globalConfig.saveToFile()
}
