// Package icon canonicalizes tile icon identifiers, migrating legacy emoji
// values to named icons.
package icon

import (
	"log/slog"
	"regexp"

	"github.com/starford/tiledash/internal/models"
)

var nameRe = regexp.MustCompile(`^[a-z0-9-]+$`)

var emojiToName = map[string]string{
	"🔬":  "flask-conical",
	"📋":  "file-text",
	"🚢":  "ship",
	"⚙️": "settings",
	"⚙":  "settings",
	"🔧":  "wrench",
	"📊":  "bar-chart",
	"🎬":  "film",
	"👤":  "user",
	"📷":  "camera",
	"📁":  "folder-open",
}

// Valid reports whether name is a canonical icon identifier.
func Valid(name string) bool {
	return nameRe.MatchString(name)
}

// Migrate maps raw to a canonical icon name. Known emoji are translated,
// canonical names pass through, and anything else becomes
// models.DefaultIcon with a warning logged.
func Migrate(raw string, logger *slog.Logger) string {
	if name, ok := emojiToName[raw]; ok {
		return name
	}
	if Valid(raw) {
		return raw
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("icon: unsupported icon migrated",
		slog.String("icon", raw),
		slog.String("fallback", models.DefaultIcon))
	return models.DefaultIcon
}
