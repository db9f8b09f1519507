package preflight

import (
	"bufio"
	"os"
	"strings"
)

// PyPI distribution names whose import name differs.
var importNames = map[string]string{
	"python-dotenv":       "dotenv",
	"python-telegram-bot": "telegram",
	"pika":                "pika",
	"psycopg2-binary":     "psycopg2",
	"psycopg2":            "psycopg2",
	"pyyaml":              "yaml",
	"pillow":              "PIL",
	"beautifulsoup4":      "bs4",
	"google-generativeai": "google.generativeai",
	"telethon":            "telethon",
}

// ParseRequirements reads a pip-style manifest, dropping comments, blanks,
// options, and version constraints.
func ParseRequirements(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var reqs []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "-") {
			continue
		}
		for _, sep := range []string{"==", ">=", "<=", "~=", "!=", ">", "<", ";", "["} {
			if i := strings.Index(line, sep); i >= 0 {
				line = line[:i]
			}
		}
		line = strings.TrimSpace(line)
		if line != "" {
			reqs = append(reqs, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return reqs, nil
}

// ImportName maps a distribution name to the module probed with "import".
func ImportName(dist string) string {
	key := strings.ToLower(dist)
	if mod, ok := importNames[key]; ok {
		return mod
	}
	return strings.ReplaceAll(key, "-", "_")
}
