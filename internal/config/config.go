package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cwarden/memories/internal/parser"
)

type Config struct {
	// Library settings
	MediaDirs    []string
	Database     string
	LogDir       string
	WatchLibrary bool
	ReadOnly     bool

	// Loading settings
	PreviewSize     int
	PreviewCacheTTL time.Duration
	FetchWorkers    int

	// Notification settings
	NotificationTime   parser.Clock
	AlertURLs          []string
	AlertPoll          time.Duration
	AlertRate          time.Duration
	Locale             string
	DebugNotifications bool

	// Upgrade settings
	HighQualityLimit int

	// Display settings
	TimeFormat string
	DateFormat string

	// UI settings
	Colors        map[string]string
	KeyBindings   map[string]string
	ConfirmDelete bool
	ExportDir     string
}

func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()

	return &Config{
		MediaDirs:    []string{filepath.Join(home, "Pictures")},
		Database:     filepath.Join(dataHome(home), "memories", "memories.db"),
		LogDir:       filepath.Join(dataHome(home), "memories", "logs"),
		WatchLibrary: true,

		PreviewSize:     256,
		PreviewCacheTTL: 10 * time.Minute,
		FetchWorkers:    4,

		NotificationTime: parser.Clock{Hour: 10},
		AlertPoll:        30 * time.Second,
		AlertRate:        2 * time.Second,
		Locale:           "en",

		HighQualityLimit: 25,

		TimeFormat: "15:04",
		DateFormat: "Jan 2, 2006",

		Colors: map[string]string{
			"normal":   "252",
			"header":   "220",
			"favorite": "196",
			"help":     "241",
			"message":  "220",
			"progress": "39",
			"error":    "160",
		},

		KeyBindings: map[string]string{
			"q": "quit",
			"?": "help",
			"l": "next",
			"h": "prev",
			"g": "first",
			"G": "last",
			"f": "favorite",
			"d": "delete",
			"s": "share",
			"r": "retry",
		},

		ConfirmDelete: true,
		ExportDir:     filepath.Join(home, "Downloads"),
	}
}

func dataHome(home string) string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return dir
	}
	return filepath.Join(home, ".local", "share")
}

// LoadConfig returns the defaults overlaid with the first rc file found.
// An explicit path must exist.
func LoadConfig(explicit string) (*Config, error) {
	config := DefaultConfig()

	if explicit != "" {
		if err := config.loadFromFile(explicit); err != nil {
			return nil, fmt.Errorf("error loading config from %s: %w", explicit, err)
		}
		return config, nil
	}

	// Try multiple config file locations
	configPaths := []string{
		os.Getenv("MEMORIES_CONFIG"),
		filepath.Join(os.Getenv("XDG_CONFIG_HOME"), "memories", "memoriesrc"),
		filepath.Join(os.Getenv("HOME"), ".config", "memories", "memoriesrc"),
		filepath.Join(os.Getenv("HOME"), ".memoriesrc"),
	}

	for _, path := range configPaths {
		if path == "" || path == filepath.Join("memories", "memoriesrc") {
			continue
		}

		if _, err := os.Stat(path); err == nil {
			if err := config.loadFromFile(path); err != nil {
				return nil, fmt.Errorf("error loading config from %s: %w", path, err)
			}
			break
		}
	}

	if os.Getenv("MEMORIES_DEBUG_NOTIFICATIONS") == "1" {
		config.DebugNotifications = true
	}

	return config, nil
}

func (c *Config) loadFromFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip comments and empty lines
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if err := c.parseLine(line); err != nil {
			return fmt.Errorf("line %d: %w", lineNum, err)
		}
	}

	return scanner.Err()
}

var (
	setRe   = regexp.MustCompile(`^set\s+(\w+)\s+(.+)$`)
	bindRe  = regexp.MustCompile(`^bind\s+(\S+)\s+(\S+)$`)
	colorRe = regexp.MustCompile(`^color\s+(\w+)\s+(.+)$`)
)

func (c *Config) parseLine(line string) error {
	if line == "" || strings.HasPrefix(line, "#") {
		return nil
	}

	// set variable value
	if matches := setRe.FindStringSubmatch(line); matches != nil {
		return c.setVariable(matches[1], matches[2])
	}

	// bind key action
	if matches := bindRe.FindStringSubmatch(line); matches != nil {
		c.KeyBindings[matches[1]] = matches[2]
		return nil
	}

	// color element color_spec
	if matches := colorRe.FindStringSubmatch(line); matches != nil {
		c.Colors[matches[1]] = strings.Trim(matches[2], `"'`)
		return nil
	}

	return fmt.Errorf("unknown config line: %s", line)
}

func (c *Config) setVariable(name, value string) error {
	// Remove quotes if present
	value = strings.Trim(value, `"'`)

	switch name {
	case "media_dir", "media_dirs":
		c.MediaDirs = splitList(value, true)

	case "database":
		c.Database = expandHome(value)

	case "log_dir":
		c.LogDir = expandHome(value)

	case "watch_library":
		c.WatchLibrary = parseBool(value)

	case "read_only":
		c.ReadOnly = parseBool(value)

	case "preview_size":
		size, err := strconv.Atoi(value)
		if err != nil || size < 16 {
			return fmt.Errorf("invalid preview_size: %s", value)
		}
		c.PreviewSize = size

	case "preview_cache_ttl":
		ttl, err := parseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid preview_cache_ttl: %s", value)
		}
		c.PreviewCacheTTL = ttl

	case "fetch_workers":
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return fmt.Errorf("invalid fetch_workers: %s", value)
		}
		c.FetchWorkers = n

	case "notification_time":
		clock, err := parser.NewTimeParser().ParseClock(value)
		if err != nil {
			return fmt.Errorf("invalid notification_time: %w", err)
		}
		c.NotificationTime = clock

	case "alert_url", "alert_urls":
		c.AlertURLs = splitList(value, false)

	case "alert_poll":
		d, err := parseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid alert_poll: %s", value)
		}
		c.AlertPoll = d

	case "alert_rate":
		d, err := parseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid alert_rate: %s", value)
		}
		c.AlertRate = d

	case "locale":
		c.Locale = value

	case "debug_notifications":
		c.DebugNotifications = parseBool(value)

	case "high_quality_limit":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid high_quality_limit: %s", value)
		}
		c.HighQualityLimit = n

	case "time_format":
		c.TimeFormat = value

	case "date_format":
		c.DateFormat = value

	case "confirm_delete":
		c.ConfirmDelete = parseBool(value)

	case "export_dir":
		c.ExportDir = expandHome(value)

	default:
		return fmt.Errorf("unknown config variable: %s", name)
	}

	return nil
}

func splitList(value string, paths bool) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if paths {
			item = expandHome(item)
		}
		out = append(out, item)
	}
	return out
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

func parseBool(value string) bool {
	return strings.ToLower(value) == "true" || value == "1"
}

func parseDuration(value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err == nil {
		return d, nil
	}
	// Try parsing as seconds
	seconds, err2 := strconv.Atoi(value)
	if err2 != nil {
		return 0, err
	}
	return time.Duration(seconds) * time.Second, nil
}
