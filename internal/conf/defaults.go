// conf/defaults.go default values for settings
package conf

import (
	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "SceneFuse")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "logs/scenefuse.log")

	viper.SetDefault("database.sqlite.enabled", true)
	viper.SetDefault("database.sqlite.path", "scenefuse.db")
	viper.SetDefault("database.mysql.enabled", false)
	viper.SetDefault("database.mysql.username", "scenefuse")
	viper.SetDefault("database.mysql.password", "")
	viper.SetDefault("database.mysql.database", "scenefuse")
	viper.SetDefault("database.mysql.host", "localhost")
	viper.SetDefault("database.mysql.port", "3306")

	// Fusion priority per source code; lower wins, manual is fixed at 1 and
	// unknown codes fall back to 10.
	viper.SetDefault("sources.priorities", map[string]int{
		"ra":          2,
		"tm":          3,
		"dice":        4,
		"bandsintown": 5,
		"mb":          6,
		"wp":          7,
	})

	viper.SetDefault("matching.eventthreshold", 0.6)
	viper.SetDefault("matching.venuethreshold", 0.7)
	viper.SetDefault("matching.artistthreshold", 0.7)
	viper.SetDefault("matching.organizerthreshold", 0.7)
	viper.SetDefault("matching.nearduplicatetitle", 0.8)
	viper.SetDefault("matching.timebonusminutes", 60)
	viper.SetDefault("matching.timemaxminutes", 180)

	viper.SetDefault("geocoding.enabled", true)
	viper.SetDefault("geocoding.baseurl", "https://nominatim.openstreetmap.org")
	viper.SetDefault("geocoding.minintervalms", 1100)
	viper.SetDefault("geocoding.cachettlminutes", 1440)
	viper.SetDefault("geocoding.timeoutseconds", 10)

	viper.SetDefault("enrichment.music.enabled", false)
	viper.SetDefault("enrichment.music.baseurl", "https://musicbrainz.org/ws/2")
	viper.SetDefault("enrichment.music.minintervalms", 1100)
	viper.SetDefault("enrichment.music.cachettlminutes", 10080)
	viper.SetDefault("enrichment.music.timeoutseconds", 10)

	viper.SetDefault("enrichment.encyclopedia.enabled", false)
	viper.SetDefault("enrichment.encyclopedia.baseurl", "https://en.wikipedia.org/api/rest_v1")
	viper.SetDefault("enrichment.encyclopedia.minintervalms", 500)
	viper.SetDefault("enrichment.encyclopedia.cachettlminutes", 10080)
	viper.SetDefault("enrichment.encyclopedia.timeoutseconds", 10)
}
